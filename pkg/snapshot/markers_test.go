package snapshot

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestDetectMarkers_SceneBreakAndChapter(t *testing.T) {
	text := "# The Harbor\nCalm water before dawn here.\n***\nStorm at night again soon.\n"
	markers := detectMarkers("doc1", text)

	var breaks, chapters []Marker
	for _, m := range markers {
		switch m.Type {
		case MarkerSceneBreak:
			breaks = append(breaks, m)
		case MarkerChapterStart:
			chapters = append(chapters, m)
		}
	}
	if len(chapters) != 1 || chapters[0].Label != "The Harbor" {
		t.Errorf("chapters = %+v, want one labeled The Harbor", chapters)
	}
	if len(breaks) != 1 {
		t.Fatalf("scene breaks = %+v, want one", breaks)
	}
	if want := strings.Index(text, "***"); breaks[0].Position != want {
		t.Errorf("break position = %d, want %d", breaks[0].Position, want)
	}
}

func TestDetectMarkers_POVShift(t *testing.T) {
	text := "She opened her letters and read her mail slowly.\n" +
		"***\n" +
		"He dropped his coat and checked his watch and his keys.\n"
	markers := detectMarkers("doc1", text)

	var shift *Marker
	for i := range markers {
		if markers[i].Type == MarkerPOVShift {
			shift = &markers[i]
		}
	}
	if shift == nil {
		t.Fatalf("no POV shift in %+v", markers)
	}
	if shift.Label != "she -> he" {
		t.Errorf("shift label = %q, want she -> he", shift.Label)
	}
}

func TestDetectMarkers_TimelineJump(t *testing.T) {
	markers := detectMarkers("doc1", "Three years later the house still stood.\n")
	if len(markers) != 1 || markers[0].Type != MarkerTimelineJump {
		t.Fatalf("markers = %+v, want one timeline jump", markers)
	}
	if markers[0].Label != "years later" {
		t.Errorf("label = %q, want years later", markers[0].Label)
	}
}

func TestDetectMarkers_QuietText(t *testing.T) {
	if got := detectMarkers("doc1", "Nothing unusual happens in this paragraph at all.\n"); got != nil {
		t.Errorf("markers = %+v, want none", got)
	}
	if got := detectMarkers("doc1", ""); got != nil {
		t.Errorf("empty text markers = %+v, want none", got)
	}
}

func TestDominantPOV(t *testing.T) {
	if got := dominantPOV("She took her bag and her keys."); got != "she" {
		t.Errorf("pov = %q, want she", got)
	}
	if got := dominantPOV("He left."); got != "" {
		t.Errorf("pov = %q, want empty on weak signal", got)
	}
}

func TestDigestDeterministic(t *testing.T) {
	text := "The lighthouse keeper watched the storm. The storm broke the lighthouse lantern."
	a := digest(text, 3, 120)
	b := digest(text, 3, 120)
	if a != b {
		t.Errorf("digest not deterministic: %q vs %q", a, b)
	}
	if !strings.HasPrefix(a, "The lighthouse keeper watched the storm.") {
		t.Errorf("digest lead = %q", a)
	}
	if !strings.Contains(a, "lighthouse") || !strings.Contains(a, "storm") {
		t.Errorf("digest topics missing: %q", a)
	}
	if digest("", 3, 120) != "" {
		t.Error("digest of empty text should be empty")
	}
}

func TestFirstSentenceKeepsRunesWhole(t *testing.T) {
	// The 4-byte cap lands inside the three-byte em dash.
	got := firstSentence("ab——cd.", 4)
	if !utf8.ValidString(got) {
		t.Errorf("lead %q is not valid UTF-8", got)
	}
	if got != "ab" {
		t.Errorf("lead = %q, want %q", got, "ab")
	}
}
