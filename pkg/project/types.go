// Package project is the authoritative in-memory store for a writing
// project's entities: the project itself, its documents, characters, and
// outline nodes. All mutation goes through Store methods; readers get
// copies or read-only views. The context builder in pkg/snapshot consumes
// this store but never mutates it.
package project

import "time"

// Settings holds per-project behavior knobs surfaced in the UI.
type Settings struct {
	DefaultModel          string        `json:"defaultModel"`
	AutosaveInterval      time.Duration `json:"autosaveInterval"`
	ContextUpdateDebounce time.Duration `json:"contextUpdateDebounce"`
}

// Project owns documents, characters and outline nodes, and at most one
// live context snapshot at a time (held by the tracker, not here).
type Project struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Settings    Settings  `json:"settings"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// DocNode is one node of a document's structured content tree: either a
// container (Content non-nil) or a text leaf (Text non-empty). Marks carry
// inline formatting and are opaque to this package.
type DocNode struct {
	Type    string    `json:"type"`
	Text    string    `json:"text,omitempty"`
	Content []DocNode `json:"content,omitempty"`
	Marks   []Mark    `json:"marks,omitempty"`
}

// Mark is an inline formatting annotation on a text leaf.
type Mark struct {
	Type  string            `json:"type"`
	Attrs map[string]string `json:"attrs,omitempty"`
}

// CursorPosition is the last known selection in a document.
type CursorPosition struct {
	Anchor int       `json:"anchor"`
	Head   int       `json:"head"`
	At     time.Time `json:"at"`
}

// Document is manuscript content. The editing surface owns Content; this
// store only reads it (word count is derived on every content update).
type Document struct {
	ID         string          `json:"id"`
	ProjectID  string          `json:"projectId"`
	ParentID   string          `json:"parentId,omitempty"`
	Title      string          `json:"title"`
	Content    DocNode         `json:"content"`
	SortOrder  int             `json:"sortOrder"`
	WordCount  int             `json:"wordCount"`
	LastCursor *CursorPosition `json:"lastCursor,omitempty"`
	CreatedAt  time.Time       `json:"createdAt"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

// Role orders characters by narrative importance. The ordering is the
// tie-break when the context builder truncates under a token budget.
type Role string

const (
	RoleProtagonist Role = "protagonist"
	RoleAntagonist  Role = "antagonist"
	RoleSupporting  Role = "supporting"
	RoleMinor       Role = "minor"
	RoleMentioned   Role = "mentioned"
)

// Weight returns truncation priority (higher = kept longer).
func (r Role) Weight() int {
	switch r {
	case RoleProtagonist:
		return 10
	case RoleAntagonist:
		return 8
	case RoleSupporting:
		return 5
	case RoleMinor:
		return 2
	case RoleMentioned:
		return 1
	default:
		return 0
	}
}

// Attributes are free-text character facts.
type Attributes struct {
	Age                 string            `json:"age,omitempty"`
	Occupation          string            `json:"occupation,omitempty"`
	PhysicalDescription string            `json:"physicalDescription,omitempty"`
	Personality         string            `json:"personality,omitempty"`
	Backstory           string            `json:"backstory,omitempty"`
	Goals               string            `json:"goals,omitempty"`
	Fears               string            `json:"fears,omitempty"`
	Strengths           string            `json:"strengths,omitempty"`
	Weaknesses          string            `json:"weaknesses,omitempty"`
	Speech              string            `json:"speech,omitempty"`
	Custom              map[string]string `json:"custom,omitempty"`
}

// Relationship links a character to another character.
type Relationship struct {
	CharacterID string `json:"characterId"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

// Arc describes a character's planned change across the story.
type Arc struct {
	StartingState string   `json:"startingState"`
	EndingState   string   `json:"endingState"`
	KeyMoments    []string `json:"keyMoments,omitempty"`
}

// Character identity is the ID; Name and Aliases are surface forms used
// for citation labels and presence matching only.
type Character struct {
	ID            string         `json:"id"`
	ProjectID     string         `json:"projectId"`
	Name          string         `json:"name"`
	Aliases       []string       `json:"aliases,omitempty"`
	Role          Role           `json:"role"`
	Description   string         `json:"description,omitempty"`
	Attributes    Attributes     `json:"attributes"`
	Relationships []Relationship `json:"relationships,omitempty"`
	Arc           *Arc           `json:"arc,omitempty"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
}

// NodeType classifies outline nodes. Acts and chapters are expected to
// contain scenes and beats, but containment is advisory, not enforced.
type NodeType string

const (
	NodeAct     NodeType = "act"
	NodeChapter NodeType = "chapter"
	NodeScene   NodeType = "scene"
	NodeBeat    NodeType = "beat"
	NodeNote    NodeType = "note"
)

// NodeStatus is monotonic by convention only; regressions are legal.
type NodeStatus string

const (
	StatusPlanned    NodeStatus = "planned"
	StatusInProgress NodeStatus = "in_progress"
	StatusDraft      NodeStatus = "draft"
	StatusRevised    NodeStatus = "revised"
	StatusComplete   NodeStatus = "complete"
)

// NodeMetadata is optional planning detail on an outline node.
type NodeMetadata struct {
	WordCountTarget int    `json:"wordCountTarget,omitempty"`
	POV             string `json:"pov,omitempty"`
	Timeline        string `json:"timeline,omitempty"`
	Location        string `json:"location,omitempty"`
	Tension         int    `json:"tension,omitempty"` // 0-10
	Notes           string `json:"notes,omitempty"`
}

// OutlineNode is one node of the story-structure forest. ParentID empty
// means root; multiple roots are allowed. Linked document IDs may dangle
// after a document delete; readers must tolerate unknown IDs.
type OutlineNode struct {
	ID                string       `json:"id"`
	ProjectID         string       `json:"projectId"`
	ParentID          string       `json:"parentId,omitempty"`
	Type              NodeType     `json:"type"`
	Title             string       `json:"title"`
	Description       string       `json:"description,omitempty"`
	SortOrder         int          `json:"sortOrder"`
	LinkedDocumentIDs []string     `json:"linkedDocumentIds,omitempty"`
	LinkedSectionIDs  []string     `json:"linkedSectionIds,omitempty"`
	Color             string       `json:"color,omitempty"`
	Status            NodeStatus   `json:"status"`
	Metadata          NodeMetadata `json:"metadata"`
	CreatedAt         time.Time    `json:"createdAt"`
	UpdatedAt         time.Time    `json:"updatedAt"`
}
