package project

import "strings"

// ExtractText flattens a document content tree into plain text. Leaves
// inside one block join with single spaces; blocks join with newlines so
// line-oriented consumers can see paragraph boundaries.
func ExtractText(root DocNode) string {
	var blocks []string
	var leaves func(n DocNode, parts *[]string)
	leaves = func(n DocNode, parts *[]string) {
		if n.Text != "" {
			*parts = append(*parts, n.Text)
		}
		for _, child := range n.Content {
			leaves(child, parts)
		}
	}
	var walk func(n DocNode)
	walk = func(n DocNode) {
		switch n.Type {
		case "paragraph", "heading", "blockquote", "codeBlock":
			var parts []string
			leaves(n, &parts)
			if block := strings.Join(parts, " "); block != "" {
				blocks = append(blocks, block)
			}
		default:
			if n.Text != "" {
				blocks = append(blocks, n.Text)
			}
			for _, child := range n.Content {
				walk(child)
			}
		}
	}
	walk(root)
	return strings.Join(blocks, "\n")
}

// CountWords returns the whitespace-delimited token count of text.
// Empty or all-whitespace text counts zero.
func CountWords(text string) int {
	return len(strings.Fields(text))
}
