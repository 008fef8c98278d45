package assist

import (
	"regexp"
	"strings"
)

// One left-to-right scan over the whole response yields citations in
// appearance order regardless of type.
var citationPattern = regexp.MustCompile(`\[(doc|char|outline):([a-zA-Z0-9_-]+)\]`)

var suggestedEditPattern = regexp.MustCompile(
	"(?s)```suggested-edit\\s*\nOriginal:\\s*(.+?)\\s*\nSuggested:\\s*(.+?)\\s*\nExplanation:\\s*(.+?)\\s*```",
)

// Resolver turns cited IDs into display names. Implementations must
// return ok=false for unknown IDs so the parser can substitute a
// placeholder.
type Resolver interface {
	DocumentTitle(id string) (string, bool)
	CharacterName(id string) (string, bool)
	OutlineTitle(id string) (string, bool)
}

// ParseCitations extracts unique citations from response content in
// order of first appearance. Duplicate (type, id) pairs collapse to the
// first occurrence. Unknown IDs still produce citations with
// placeholder names; the model may cite entities the store no longer
// holds.
func ParseCitations(content string, resolver Resolver) []Citation {
	seen := make(map[string]bool)
	var citations []Citation

	for _, m := range citationPattern.FindAllStringSubmatch(content, -1) {
		kind, id := m[1], m[2]
		key := kind + ":" + id
		if seen[key] {
			continue
		}
		seen[key] = true

		var c Citation
		switch kind {
		case "doc":
			c = Citation{Type: CitationDocument, ID: id, Name: "Document " + id}
			if resolver != nil {
				if name, ok := resolver.DocumentTitle(id); ok {
					c.Name = name
				}
			}
		case "char":
			c = Citation{Type: CitationCharacter, ID: id, Name: "Character " + id}
			if resolver != nil {
				if name, ok := resolver.CharacterName(id); ok {
					c.Name = name
				}
			}
		case "outline":
			c = Citation{Type: CitationOutline, ID: id, Name: "Outline " + id}
			if resolver != nil {
				if name, ok := resolver.OutlineTitle(id); ok {
					c.Name = name
				}
			}
		}
		citations = append(citations, c)
	}
	return citations
}

// ParseSuggestedEdit extracts the first fenced suggested-edit block, if
// any. Fields are whitespace-trimmed.
func ParseSuggestedEdit(content string) *SuggestedEdit {
	m := suggestedEditPattern.FindStringSubmatch(content)
	if m == nil {
		return nil
	}
	return &SuggestedEdit{
		OriginalText:  strings.TrimSpace(m[1]),
		SuggestedText: strings.TrimSpace(m[2]),
		Explanation:   strings.TrimSpace(m[3]),
	}
}

// ParseResponse builds a structured response from raw completion
// content.
func ParseResponse(content string, usage TokenUsage, resolver Resolver) *Response {
	return &Response{
		Content:       content,
		Citations:     ParseCitations(content, resolver),
		SuggestedEdit: ParseSuggestedEdit(content),
		Usage:         usage,
	}
}
