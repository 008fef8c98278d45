package editlog

import (
	"fmt"
	"strings"
	"testing"
	"time"
	"unicode/utf8"
)

func TestLog_CapAndTruncation(t *testing.T) {
	l := NewLog(0, 0) // defaults

	long := strings.Repeat("x", 80)
	for i := 0; i < 8; i++ {
		l.Record(RecentEdit{
			DocumentID: "doc1",
			ChangeType: ChangeInsert,
			Snippet:    fmt.Sprintf("%d-%s", i, long),
			Timestamp:  time.Now().Add(time.Duration(i) * time.Millisecond),
		})
	}

	trail := l.Recent("doc1")
	if len(trail) != DefaultMaxEdits {
		t.Fatalf("trail length = %d, want %d", len(trail), DefaultMaxEdits)
	}
	// Most recent first.
	if !strings.HasPrefix(trail[0].Snippet, "7-") {
		t.Errorf("trail[0] = %q, want the latest edit first", trail[0].Snippet)
	}
	for _, e := range trail {
		if len(e.Snippet) > DefaultMaxSnippetLen {
			t.Errorf("snippet length %d exceeds cap %d", len(e.Snippet), DefaultMaxSnippetLen)
		}
	}
}

func TestLog_TruncationKeepsRunesWhole(t *testing.T) {
	l := NewLog(5, 4)
	l.Record(RecentEdit{DocumentID: "d", ChangeType: ChangeInsert, Snippet: "ab——"})

	trail := l.Recent("d")
	if len(trail) != 1 {
		t.Fatalf("trail length = %d, want 1", len(trail))
	}
	got := trail[0].Snippet
	if !utf8.ValidString(got) {
		t.Errorf("snippet %q is not valid UTF-8", got)
	}
	if got != "ab" {
		t.Errorf("snippet = %q, want %q (cap must not split the em dash)", got, "ab")
	}
}

func TestLog_SinceMark(t *testing.T) {
	l := NewLog(3, 20)
	for i := 0; i < 4; i++ {
		l.Record(RecentEdit{DocumentID: "d", ChangeType: ChangeReplace, Snippet: "s"})
	}
	if got := l.SinceMark(); got != 4 {
		t.Errorf("SinceMark = %d, want 4 (counts past the trail cap)", got)
	}
	l.Mark()
	if got := l.SinceMark(); got != 0 {
		t.Errorf("SinceMark after Mark = %d, want 0", got)
	}
}

func TestLog_AllMergesNewestFirst(t *testing.T) {
	l := NewLog(5, 50)
	base := time.Now()
	l.Record(RecentEdit{DocumentID: "a", Snippet: "oldest", Timestamp: base})
	l.Record(RecentEdit{DocumentID: "b", Snippet: "middle", Timestamp: base.Add(time.Second)})
	l.Record(RecentEdit{DocumentID: "a", Snippet: "newest", Timestamp: base.Add(2 * time.Second)})

	all := l.All()
	if len(all) != 3 {
		t.Fatalf("All() length = %d, want 3", len(all))
	}
	want := []string{"newest", "middle", "oldest"}
	for i, w := range want {
		if all[i].Snippet != w {
			t.Errorf("All()[%d] = %q, want %q", i, all[i].Snippet, w)
		}
	}
}

func TestQueue_DrainCopiesAndClears(t *testing.T) {
	q := NewQueue()
	q.Enqueue(NewEvent(EventDocumentChange, nil, PriorityNormal))
	q.Enqueue(NewEvent(EventCursorMove, nil, PriorityLow))

	batch := q.DrainSnapshot()
	if len(batch) != 2 {
		t.Fatalf("batch length = %d, want 2", len(batch))
	}
	if batch[0].Type != EventDocumentChange || batch[1].Type != EventCursorMove {
		t.Errorf("batch not in arrival order: %+v", batch)
	}
	if q.Len() != 0 {
		t.Errorf("queue not cleared after drain")
	}

	// Events enqueued after the snapshot belong to the next drain.
	q.Enqueue(NewEvent(EventOutlineUpdate, nil, PriorityNormal))
	if len(batch) != 2 {
		t.Errorf("snapshot mutated by later enqueue")
	}
	if q.Len() != 1 {
		t.Errorf("later enqueue lost")
	}
}

func TestQueue_DrainEmptyIsNil(t *testing.T) {
	q := NewQueue()
	if batch := q.DrainSnapshot(); batch != nil {
		t.Errorf("DrainSnapshot on empty queue = %v, want nil", batch)
	}
}

func TestHasHighPriority(t *testing.T) {
	batch := []Event{
		NewEvent(EventCursorMove, nil, PriorityLow),
		NewEvent(EventDocumentChange, nil, PriorityNormal),
	}
	if HasHighPriority(batch) {
		t.Errorf("no high event, got true")
	}
	batch = append(batch, NewEvent(EventForceRefresh, nil, PriorityHigh))
	if !HasHighPriority(batch) {
		t.Errorf("high event present, got false")
	}
}
