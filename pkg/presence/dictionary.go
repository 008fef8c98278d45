// Package presence detects character mentions in manuscript text.
// A single Aho-Corasick automaton compiled from character names and
// aliases serves as both dictionary lookup and text scanner.
package presence

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/coregx/ahocorasick"

	"github.com/inkfold/inkfold/pkg/project"
)

// isJoiner reports punctuation that commonly appears inside names.
// Preserved during canonicalization so multiword names stay coherent:
// "Monkey D. Luffy", "O'Brien", "Jean-Luc".
func isJoiner(r rune) bool {
	switch r {
	case '\'', '’', '‘',
		'-', '–', '—',
		'·', '.', '_', '&':
		return true
	default:
		return false
	}
}

func isSeparator(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r) && !isJoiner(r)
}

// Canonicalize folds text to the normalized form used for both pattern
// compilation and document scanning: lowercase, joiners preserved,
// separator runs collapsed to single spaces, edges trimmed. Matching only
// works because the same function runs on both sides.
func Canonicalize(s string) string {
	var out strings.Builder
	out.Grow(len(s))

	lastWasSpace := true
	for _, ch := range s {
		c := unicode.ToLower(ch)
		if c == '’' || c == '‘' {
			c = '\''
		}
		if c == '–' || c == '—' {
			c = '-'
		}
		if unicode.IsLetter(c) || unicode.IsDigit(c) || isJoiner(c) {
			out.WriteRune(c)
			lastWasSpace = false
		} else if !lastWasSpace {
			out.WriteRune(' ')
			lastWasSpace = true
		}
	}

	result := out.String()
	if len(result) > 0 && result[len(result)-1] == ' ' {
		result = result[:len(result)-1]
	}
	return result
}

// Mention is a detected character reference in text. Offsets index the
// original (pre-canonicalization) text.
type Mention struct {
	CharacterID string
	Start       int
	End         int
	Surface     string // original text slice, casing preserved
}

// Dictionary maps surface forms to characters via Aho-Corasick.
type Dictionary struct {
	ac *ahocorasick.Automaton

	// pattern index -> character IDs sharing that surface form
	patternToIDs [][]string
	patternIndex map[string]int
	patterns     []string

	roles map[string]project.Role
}

// Compile builds a dictionary from the given characters. Patterns are
// each character's name, aliases, and auto-generated short forms.
func Compile(characters []*project.Character) (*Dictionary, error) {
	d := &Dictionary{
		patternIndex: make(map[string]int),
		roles:        make(map[string]project.Role),
	}

	for _, c := range characters {
		d.roles[c.ID] = c.Role

		surfaces := append([]string{c.Name}, c.Aliases...)
		surfaces = append(surfaces, autoAliases(c.Name)...)

		for _, surface := range surfaces {
			key := Canonicalize(surface)
			if key == "" {
				continue
			}
			if idx, exists := d.patternIndex[key]; exists {
				d.patternToIDs[idx] = appendUnique(d.patternToIDs[idx], c.ID)
			} else {
				idx := len(d.patterns)
				d.patterns = append(d.patterns, key)
				d.patternIndex[key] = idx
				d.patternToIDs = append(d.patternToIDs, []string{c.ID})
			}
		}
	}

	if len(d.patterns) == 0 {
		return d, nil
	}

	// LeftmostLongest prefers "Mary Stone" over "Mary".
	automaton, err := ahocorasick.NewBuilder().
		AddStrings(d.patterns).
		SetMatchKind(ahocorasick.LeftmostLongest).
		SetPrefilter(true).
		Build()
	if err != nil {
		return nil, err
	}
	d.ac = automaton
	return d, nil
}

// Lookup resolves a surface form to character IDs, best role first.
func (d *Dictionary) Lookup(surface string) []string {
	idx, exists := d.patternIndex[Canonicalize(surface)]
	if !exists {
		return nil
	}
	return d.rankByRole(d.patternToIDs[idx])
}

// Scan finds all character mentions in text. Where several characters
// share a surface form, the highest role weight wins.
func (d *Dictionary) Scan(text string) []Mention {
	if d.ac == nil || text == "" {
		return nil
	}

	canonical := Canonicalize(text)
	canonToOrig := buildOffsetMap(text)

	all := d.ac.FindAllOverlapping([]byte(canonical))

	// Keep only word-bounded candidates, then select leftmost-longest
	// non-overlapping spans regardless of the automaton's emission order.
	candidates := all[:0]
	for _, m := range all {
		if wordBounded(canonical, m.Start, m.End) {
			candidates = append(candidates, m)
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Start != candidates[j].Start {
			return candidates[i].Start < candidates[j].Start
		}
		return candidates[i].End > candidates[j].End
	})

	out := make([]Mention, 0, len(candidates))
	lastEnd := 0
	for _, m := range candidates {
		if m.Start < lastEnd {
			continue
		}
		origStart := mapOffset(m.Start, canonToOrig, len(text))
		origEnd := mapOffset(m.End, canonToOrig, len(text))
		if origStart >= len(text) || origEnd > len(text) || origStart >= origEnd {
			continue
		}
		ids := d.rankByRole(d.patternToIDs[m.PatternID])
		if len(ids) == 0 {
			continue
		}
		lastEnd = m.End
		out = append(out, Mention{
			CharacterID: ids[0],
			Start:       origStart,
			End:         origEnd,
			Surface:     text[origStart:origEnd],
		})
	}
	return out
}

// Contains reports whether the character is mentioned anywhere in text.
func (d *Dictionary) Contains(text, characterID string) bool {
	for _, m := range d.Scan(text) {
		if m.CharacterID == characterID {
			return true
		}
	}
	return false
}

func (d *Dictionary) rankByRole(ids []string) []string {
	if len(ids) <= 1 {
		return ids
	}
	out := append([]string(nil), ids...)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && d.roles[out[j]].Weight() > d.roles[out[j-1]].Weight(); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

// wordBounded rejects matches embedded inside larger words in the
// canonical text ("Ann" inside "Anniversary").
func wordBounded(canonical string, start, end int) bool {
	if start > 0 {
		r, _ := utf8.DecodeLastRuneInString(canonical[:start])
		if r != ' ' {
			return false
		}
	}
	if end < len(canonical) {
		r, _ := utf8.DecodeRuneInString(canonical[end:])
		if r != ' ' {
			return false
		}
	}
	return true
}

// buildOffsetMap maps each canonical byte position to the byte position
// in the original text that produced it. Canonicalization may change
// byte lengths, so matches need this to anchor back to the source.
func buildOffsetMap(original string) []int {
	mapping := make([]int, 0, len(original)+1)

	lastWasSpace := true
	origPos := 0
	for _, ch := range original {
		runeLen := utf8.RuneLen(ch)
		c := unicode.ToLower(ch)
		if c == '’' || c == '‘' {
			c = '\''
		}
		if c == '–' || c == '—' {
			c = '-'
		}

		if unicode.IsLetter(c) || unicode.IsDigit(c) || isJoiner(c) {
			for i := 0; i < utf8.RuneLen(c); i++ {
				mapping = append(mapping, origPos)
			}
			lastWasSpace = false
		} else if !lastWasSpace {
			mapping = append(mapping, origPos)
			lastWasSpace = true
		}
		origPos += runeLen
	}
	mapping = append(mapping, origPos)
	return mapping
}

func mapOffset(canonOffset int, mapping []int, originalLen int) int {
	if canonOffset >= len(mapping) {
		return originalLen
	}
	if canonOffset < 0 {
		return 0
	}
	return mapping[canonOffset]
}

// autoAliases derives short forms from a full name: last name, first
// name, and first+last for three-part names.
func autoAliases(name string) []string {
	tokens := strings.Fields(Canonicalize(name))
	if len(tokens) <= 1 {
		return nil
	}

	first := tokens[0]
	last := tokens[len(tokens)-1]
	var out []string
	if len(last) >= 3 {
		out = append(out, last)
	}
	if len(tokens) >= 3 && first != last {
		out = append(out, first+" "+last)
	}
	if len(first) >= 4 && first != last {
		out = append(out, first)
	}
	return out
}

func appendUnique(slice []string, item string) []string {
	for _, s := range slice {
		if s == item {
			return slice
		}
	}
	return append(slice, item)
}
