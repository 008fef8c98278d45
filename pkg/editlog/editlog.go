// Package editlog keeps a lossy, bounded trail of recent document edits
// and the queue of pending context-update events. The trail feeds the
// context builder's "recent changes" section; the queue feeds the
// staleness tracker's drain cycle.
package editlog

import (
	"sync"
	"time"
	"unicode/utf8"
)

// ChangeType classifies a document mutation.
type ChangeType string

const (
	ChangeInsert  ChangeType = "insert"
	ChangeDelete  ChangeType = "delete"
	ChangeReplace ChangeType = "replace"
)

// RecentEdit is one recorded mutation. Snippet is truncated at record
// time; Position is a byte offset into the document text.
type RecentEdit struct {
	DocumentID string     `json:"documentId"`
	SectionID  string     `json:"sectionId,omitempty"`
	Position   int        `json:"position"`
	ChangeType ChangeType `json:"changeType"`
	Snippet    string     `json:"textSnippet"`
	Timestamp  time.Time  `json:"timestamp"`
}

const (
	// DefaultMaxEdits bounds the per-document trail.
	DefaultMaxEdits = 5
	// DefaultMaxSnippetLen bounds each recorded snippet, in bytes.
	DefaultMaxSnippetLen = 50
)

// Log is the bounded per-document edit trail. Most recent first.
type Log struct {
	mu            sync.Mutex
	edits         map[string][]RecentEdit
	maxEdits      int
	maxSnippetLen int
	sinceMark     int
}

// NewLog creates a trail with the given bounds; zero values select the
// defaults.
func NewLog(maxEdits, maxSnippetLen int) *Log {
	if maxEdits <= 0 {
		maxEdits = DefaultMaxEdits
	}
	if maxSnippetLen <= 0 {
		maxSnippetLen = DefaultMaxSnippetLen
	}
	return &Log{
		edits:         make(map[string][]RecentEdit),
		maxEdits:      maxEdits,
		maxSnippetLen: maxSnippetLen,
	}
}

// Record prepends an edit to its document's trail, truncating the snippet
// and dropping the oldest entry past the cap.
func (l *Log) Record(edit RecentEdit) {
	l.mu.Lock()
	defer l.mu.Unlock()

	edit.Snippet = truncate(edit.Snippet, l.maxSnippetLen)
	trail := append([]RecentEdit{edit}, l.edits[edit.DocumentID]...)
	if len(trail) > l.maxEdits {
		trail = trail[:l.maxEdits]
	}
	l.edits[edit.DocumentID] = trail
	l.sinceMark++
}

// Recent returns the document's trail, most recent first.
func (l *Log) Recent(documentID string) []RecentEdit {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]RecentEdit(nil), l.edits[documentID]...)
}

// All returns every document's trail merged, most recent first.
func (l *Log) All() []RecentEdit {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []RecentEdit
	for _, trail := range l.edits {
		out = append(out, trail...)
	}
	// Insertion order within a trail is already newest-first; merge by
	// timestamp across documents.
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].Timestamp.After(out[j-1].Timestamp); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

// SinceMark returns the number of edits recorded since the last Mark.
// The tracker uses this as its accumulated-edits rebuild threshold.
func (l *Log) SinceMark() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sinceMark
}

// Mark resets the accumulated-edit counter (called after a rebuild).
func (l *Log) Mark() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sinceMark = 0
}

// ForgetDocument drops a document's trail (document deleted).
func (l *Log) ForgetDocument(documentID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.edits, documentID)
}

// truncate cuts s to at most max bytes without splitting a rune.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}
