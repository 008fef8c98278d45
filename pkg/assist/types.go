// Package assist assembles chat requests for the writing assistant and
// parses provider responses back into structured results: citations,
// suggested edits, and token usage.
package assist

import (
	"context"

	"github.com/inkfold/inkfold/pkg/snapshot"
)

// Mode selects the assistant's persona.
type Mode string

const (
	// ModeEditor gives line-level feedback on prose.
	ModeEditor Mode = "editor"
	// ModeCoach gives big-picture story guidance.
	ModeCoach Mode = "coach"
)

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Request is one assistant invocation. Context carries the snapshot the
// prompt is grounded in; History carries prior turns verbatim.
type Request struct {
	Mode         Mode
	UserMessage  string
	SelectedText string
	Context      *snapshot.Snapshot
	History      []Message
}

// CitationType classifies what a citation points at.
type CitationType string

const (
	CitationDocument  CitationType = "document"
	CitationCharacter CitationType = "character"
	CitationOutline   CitationType = "outline"
)

// Citation is one resolved reference extracted from a response.
type Citation struct {
	Type CitationType `json:"type"`
	ID   string       `json:"id"`
	Name string       `json:"name"`
}

// SuggestedEdit is a structured revision proposal parsed from a fenced
// suggested-edit block.
type SuggestedEdit struct {
	OriginalText  string `json:"originalText"`
	SuggestedText string `json:"suggestedText"`
	Explanation   string `json:"explanation"`
}

// TokenUsage mirrors the provider's usage accounting.
type TokenUsage struct {
	Prompt     int `json:"prompt"`
	Completion int `json:"completion"`
	Total      int `json:"total"`
}

// Response is the parsed assistant reply.
type Response struct {
	Content       string         `json:"content"`
	Citations     []Citation     `json:"citations"`
	SuggestedEdit *SuggestedEdit `json:"suggestedEdit,omitempty"`
	Usage         TokenUsage     `json:"tokenUsage"`
}

// StreamCallbacks receive streaming progress. Any callback may be nil.
type StreamCallbacks struct {
	OnStart    func()
	OnToken    func(token string)
	OnComplete func(resp *Response)
	OnError    func(err error)
}

// Completion is a raw provider result before parsing.
type Completion struct {
	Content string
	Usage   TokenUsage
}

// CompletionProvider abstracts the model backend. Stream must call
// onToken for each content delta and still return the full completion.
type CompletionProvider interface {
	Complete(ctx context.Context, system string, messages []Message) (*Completion, error)
	Stream(ctx context.Context, system string, messages []Message, onToken func(string)) (*Completion, error)
}

// QuickActionType names a canned editing task.
type QuickActionType string

const (
	ActionGrammarCheck     QuickActionType = "grammar_check"
	ActionStyleImprove     QuickActionType = "style_improve"
	ActionConsistencyCheck QuickActionType = "consistency_check"
	ActionPacingAnalysis   QuickActionType = "pacing_analysis"
	ActionDialogueReview   QuickActionType = "dialogue_review"
	ActionCharacterVoice   QuickActionType = "character_voice"
)

// QuickAction is a predefined prompt for a common editing task.
type QuickAction struct {
	Type        QuickActionType
	Label       string
	Description string
	Prompt      string
}

// QuickActions lists the built-in editing tasks in display order.
var QuickActions = []QuickAction{
	{
		Type:        ActionGrammarCheck,
		Label:       "Grammar",
		Description: "Check for grammar and spelling issues",
		Prompt:      "Review the following text for grammar, spelling, and punctuation errors. Suggest corrections with explanations.",
	},
	{
		Type:        ActionStyleImprove,
		Label:       "Style",
		Description: "Improve prose style and flow",
		Prompt:      "Analyze the following text for style improvements. Suggest ways to make the prose more engaging, varied, and polished while maintaining the author's voice.",
	},
	{
		Type:        ActionConsistencyCheck,
		Label:       "Consistency",
		Description: "Check for inconsistencies",
		Prompt:      "Review the text for consistency issues: character behavior, timeline, world details, and narrative voice. Flag any inconsistencies with the project context provided.",
	},
	{
		Type:        ActionPacingAnalysis,
		Label:       "Pacing",
		Description: "Analyze scene pacing",
		Prompt:      "Analyze the pacing of this text. Is it moving too fast or too slow? Are there areas that drag or feel rushed? Provide specific suggestions.",
	},
	{
		Type:        ActionDialogueReview,
		Label:       "Dialogue",
		Description: "Review dialogue quality",
		Prompt:      "Review the dialogue in this text. Is it natural? Does each character have a distinct voice? Are there any talking head issues? Suggest improvements.",
	},
	{
		Type:        ActionCharacterVoice,
		Label:       "Voice",
		Description: "Check character voice consistency",
		Prompt:      "Analyze the character voices in this text against their profiles. Are they consistent with their established personalities, speech patterns, and backgrounds?",
	},
}

// QuickActionByType looks up a built-in action.
func QuickActionByType(typ QuickActionType) (QuickAction, bool) {
	for _, a := range QuickActions {
		if a.Type == typ {
			return a, true
		}
	}
	return QuickAction{}, false
}
