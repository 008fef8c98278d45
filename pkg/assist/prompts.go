package assist

import (
	"fmt"
	"strings"

	"github.com/inkfold/inkfold/pkg/project"
	"github.com/inkfold/inkfold/pkg/snapshot"
)

const editorSystemPrompt = `You are an expert fiction editor working with an author on their manuscript. Your role is to provide:
- Grammar, spelling, and punctuation corrections
- Style and prose quality improvements
- Consistency checks against the project context
- Line-level feedback with specific, actionable suggestions

When suggesting edits, always explain WHY the change improves the writing. Be encouraging but honest.

When referencing project elements, use citations in this format:
- [doc:ID] for documents
- [char:ID] for characters
- [outline:ID] for outline nodes

Keep responses focused and practical. Prioritize the most impactful suggestions.`

const coachSystemPrompt = `You are a writing coach and story consultant helping an author develop their craft. Your role is to provide:
- Big-picture story guidance (structure, pacing, arc)
- Character development advice
- Theme and subtext analysis
- Craft techniques and suggestions

Focus on the WHY behind storytelling choices. Help the author understand the principles so they can apply them independently.

When referencing project elements, use citations in this format:
- [doc:ID] for documents
- [char:ID] for characters
- [outline:ID] for outline nodes

Be supportive but challenge the author to grow. Ask thought-provoking questions when appropriate.`

// SystemPrompt returns the persona prompt for a mode. Unknown modes get
// the editor persona.
func SystemPrompt(mode Mode) string {
	if mode == ModeCoach {
		return coachSystemPrompt
	}
	return editorSystemPrompt
}

// contextSection renders the snapshot into prompt markdown. Nil or
// empty snapshots render nothing.
func contextSection(snap *snapshot.Snapshot) string {
	if snap == nil {
		return ""
	}
	var sections []string

	if snap.ProjectSummary != "" {
		sections = append(sections, "## Project Overview\n"+snap.ProjectSummary)
	}
	if snap.DocumentSummary != "" {
		sections = append(sections, "## Current Document\n"+snap.DocumentSummary)
	}
	if len(snap.ActiveCharacterIDs) > 0 {
		sections = append(sections, "## Relevant Characters\nCharacter IDs in scene: "+strings.Join(snap.ActiveCharacterIDs, ", "))
	}
	if len(snap.ActiveOutlineNodeIDs) > 0 {
		sections = append(sections, "## Relevant Outline Nodes\nOutline node IDs: "+strings.Join(snap.ActiveOutlineNodeIDs, ", "))
	}
	if len(snap.RecentEdits) > 0 {
		var lines []string
		for i, edit := range snap.RecentEdits {
			if i >= 5 {
				break
			}
			lines = append(lines, fmt.Sprintf("- %s: %q", edit.ChangeType, edit.Snippet))
		}
		sections = append(sections, "## Recent Changes\n"+strings.Join(lines, "\n"))
	}
	if snap.Staleness == snapshot.Stale || snap.Staleness == snapshot.Outdated {
		sections = append(sections, fmt.Sprintf("Note: project context may be %s. Some details might not reflect the latest changes.", snap.Staleness))
	}

	return strings.Join(sections, "\n\n")
}

// characterContext renders character sheets with their citation tags so
// the model can cite them back.
func characterContext(characters []*project.Character) string {
	if len(characters) == 0 {
		return ""
	}
	var blocks []string
	for _, c := range characters {
		parts := []string{fmt.Sprintf("### %s [char:%s]", c.Name, c.ID)}
		parts = append(parts, "- Role: "+string(c.Role))
		if len(c.Aliases) > 0 {
			parts = append(parts, "- Also known as: "+strings.Join(c.Aliases, ", "))
		}
		if c.Description != "" {
			parts = append(parts, "- Description: "+c.Description)
		}
		if c.Attributes.Personality != "" {
			parts = append(parts, "- Personality: "+c.Attributes.Personality)
		}
		if c.Attributes.Speech != "" {
			parts = append(parts, "- Speech pattern: "+c.Attributes.Speech)
		}
		blocks = append(blocks, strings.Join(parts, "\n"))
	}
	return "## Characters\n" + strings.Join(blocks, "\n\n")
}

// outlineContext renders outline nodes with their citation tags.
func outlineContext(nodes []*project.OutlineNode) string {
	if len(nodes) == 0 {
		return ""
	}
	var blocks []string
	for _, n := range nodes {
		parts := []string{fmt.Sprintf("### %s: %s [outline:%s]", strings.ToUpper(string(n.Type)), n.Title, n.ID)}
		parts = append(parts, "- Status: "+string(n.Status))
		if n.Description != "" {
			parts = append(parts, "- Description: "+n.Description)
		}
		if n.Metadata.POV != "" {
			parts = append(parts, "- POV: "+n.Metadata.POV)
		}
		if n.Metadata.Location != "" {
			parts = append(parts, "- Location: "+n.Metadata.Location)
		}
		if n.Metadata.Tension > 0 {
			parts = append(parts, fmt.Sprintf("- Tension level: %d/10", n.Metadata.Tension))
		}
		blocks = append(blocks, strings.Join(parts, "\n"))
	}
	return "## Story Structure\n" + strings.Join(blocks, "\n\n")
}

// BuildPrompt renders the user turn: project context, character sheets,
// story structure, the selected text fenced off, then the author's
// literal request.
func BuildPrompt(req Request, characters []*project.Character, nodes []*project.OutlineNode) string {
	parts := []string{"# Project Context", contextSection(req.Context)}

	if cc := characterContext(characters); cc != "" {
		parts = append(parts, cc)
	}
	if oc := outlineContext(nodes); oc != "" {
		parts = append(parts, oc)
	}
	if req.SelectedText != "" {
		parts = append(parts, "# Selected Text for Review", "```", req.SelectedText, "```")
	}
	parts = append(parts, "# Author's Request", req.UserMessage)

	return strings.Join(parts, "\n\n")
}

// BuildMessages returns the system prompt and the conversation turns:
// filtered history first, then the context-laden user turn. History
// entries with roles other than user or assistant are dropped.
func BuildMessages(req Request, characters []*project.Character, nodes []*project.OutlineNode) (string, []Message) {
	var msgs []Message
	for _, m := range req.History {
		if m.Role == RoleUser || m.Role == RoleAssistant {
			msgs = append(msgs, m)
		}
	}
	msgs = append(msgs, Message{Role: RoleUser, Content: BuildPrompt(req, characters, nodes)})
	return SystemPrompt(req.Mode), msgs
}
