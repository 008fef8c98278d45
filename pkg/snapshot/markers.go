package snapshot

import (
	"strings"
	"unicode"
)

// Scene-break and heading detection operates on raw document text, line
// by line, tracking byte offsets for marker positions.

var timelinePhrases = []string{
	"years later", "months later", "weeks later", "days later",
	"the next morning", "the next day", "the following day",
	"that evening", "that night", "meanwhile", "earlier that",
	"long ago", "hours later",
}

func isSceneBreakLine(line string) bool {
	trimmed := strings.TrimSpace(line)
	switch trimmed {
	case "***", "* * *", "---", "- - -", "#":
		return true
	}
	if len(trimmed) >= 3 {
		all := true
		for _, r := range trimmed {
			if r != '*' && r != '-' && r != ' ' && r != '~' {
				all = false
				break
			}
		}
		if all {
			return true
		}
	}
	return false
}

func chapterLabel(line string) (string, bool) {
	trimmed := strings.TrimSpace(line)
	if strings.HasPrefix(trimmed, "# ") {
		return strings.TrimSpace(trimmed[2:]), true
	}
	lower := strings.ToLower(trimmed)
	if strings.HasPrefix(lower, "chapter ") && len(trimmed) < 60 {
		return trimmed, true
	}
	return "", false
}

// dominantPOV picks the most frequent third-person pronoun gender of a
// text block: "he", "she", or "they". Empty when prose has no clear lead.
func dominantPOV(text string) string {
	var he, she, they, first int
	for _, w := range strings.Fields(strings.ToLower(text)) {
		w = strings.TrimFunc(w, func(r rune) bool { return !unicode.IsLetter(r) })
		switch w {
		case "he", "him", "his":
			he++
		case "she", "her", "hers":
			she++
		case "they", "them", "their":
			they++
		case "i", "me", "my":
			first++
		}
	}
	best, count := "", 0
	for _, c := range []struct {
		name string
		n    int
	}{{"he", he}, {"she", she}, {"they", they}, {"I", first}} {
		if c.n > count {
			best, count = c.name, c.n
		}
	}
	if count < 3 {
		return "" // too little signal to call
	}
	return best
}

// detectMarkers derives narrative progression markers from a document's
// raw text: scene breaks, chapter starts, POV shifts between scene-break
// delimited blocks, and timeline-jump phrases. Best effort; may be empty.
func detectMarkers(documentID, text string) []Marker {
	if text == "" {
		return nil
	}

	var markers []Marker
	offset := 0
	blockStart := 0
	prevPOV := ""

	flushBlock := func(end int) {
		block := text[blockStart:end]
		pov := dominantPOV(block)
		if pov != "" && prevPOV != "" && pov != prevPOV {
			markers = append(markers, Marker{
				DocumentID: documentID,
				Position:   blockStart,
				Type:       MarkerPOVShift,
				Label:      prevPOV + " -> " + pov,
			})
		}
		if pov != "" {
			prevPOV = pov
		}
	}

	for _, line := range strings.SplitAfter(text, "\n") {
		if isSceneBreakLine(line) {
			flushBlock(offset)
			markers = append(markers, Marker{
				DocumentID: documentID,
				Position:   offset,
				Type:       MarkerSceneBreak,
				Label:      strings.TrimSpace(line),
			})
			blockStart = offset + len(line)
		} else if label, ok := chapterLabel(line); ok {
			markers = append(markers, Marker{
				DocumentID: documentID,
				Position:   offset,
				Type:       MarkerChapterStart,
				Label:      label,
			})
		} else {
			lower := strings.ToLower(line)
			for _, phrase := range timelinePhrases {
				if idx := strings.Index(lower, phrase); idx >= 0 {
					markers = append(markers, Marker{
						DocumentID: documentID,
						Position:   offset + idx,
						Type:       MarkerTimelineJump,
						Label:      phrase,
					})
					break
				}
			}
		}
		offset += len(line)
	}
	flushBlock(len(text))

	return markers
}
