// Package snapshot builds and models context snapshots: versioned,
// budget-limited summaries of project state assembled for submission to a
// language model. The builder is pure: same store state and focus, same
// snapshot (modulo IDs and timestamps).
package snapshot

import (
	"time"

	"github.com/inkfold/inkfold/pkg/editlog"
)

// Staleness is the four-level freshness indicator of a snapshot.
type Staleness string

const (
	Fresh    Staleness = "fresh"
	Recent   Staleness = "recent"
	Stale    Staleness = "stale"
	Outdated Staleness = "outdated"
)

// Rank orders staleness for monotonic-decay checks.
func (s Staleness) Rank() int {
	switch s {
	case Fresh:
		return 0
	case Recent:
		return 1
	case Stale:
		return 2
	case Outdated:
		return 3
	default:
		return 3
	}
}

// CompressionLevel records how much detail survived the token budget.
type CompressionLevel string

const (
	CompressionFull     CompressionLevel = "full"
	CompressionStandard CompressionLevel = "standard"
	CompressionCompact  CompressionLevel = "compact"
	CompressionMinimal  CompressionLevel = "minimal"
)

// SectionSummary is a derived digest of one document section.
type SectionSummary struct {
	SectionID      string   `json:"sectionId"`
	DocumentID     string   `json:"documentId"`
	Title          string   `json:"title"`
	Summary        string   `json:"summary"`
	KeyPoints      []string `json:"keyPoints,omitempty"`
	CharacterIDs   []string `json:"characterIds,omitempty"`
	OutlineNodeIDs []string `json:"outlineNodeIds,omitempty"`
	WordCount      int      `json:"wordCount"`
}

// PresenceEntry records where a character appears across the project.
// LastMention is a byte offset into LastMentionDocID, the document that
// holds the latest scanned mention.
type PresenceEntry struct {
	DocumentIDs      []string `json:"documentIds"`
	SectionIDs       []string `json:"sectionIds,omitempty"`
	TotalMentions    int      `json:"totalMentions"`
	LastMention      int      `json:"lastMentionPosition"`
	LastMentionDocID string   `json:"lastMentionDocumentId,omitempty"`
}

// ImplementationStatus reports how far a planned outline node has been
// written, derived from linked-document word counts.
type ImplementationStatus string

const (
	ImplNotStarted ImplementationStatus = "not_started"
	ImplPartial    ImplementationStatus = "partial"
	ImplComplete   ImplementationStatus = "complete"
)

// AlignmentEntry maps an outline node to what exists of it in prose.
type AlignmentEntry struct {
	DocumentID string               `json:"documentId"`
	SectionIDs []string             `json:"sectionIds,omitempty"`
	Status     ImplementationStatus `json:"implementationStatus"`
	WordCount  int                  `json:"wordCount"`
}

// MarkerType classifies derived narrative progression markers.
type MarkerType string

const (
	MarkerSceneBreak   MarkerType = "scene_break"
	MarkerChapterStart MarkerType = "chapter_start"
	MarkerPOVShift     MarkerType = "pov_shift"
	MarkerTimelineJump MarkerType = "timeline_jump"
)

// Marker is a best-effort derived signal, never author-declared data.
type Marker struct {
	DocumentID string     `json:"documentId"`
	Position   int        `json:"position"`
	Type       MarkerType `json:"markerType"`
	Label      string     `json:"label"`
}

// Snapshot is the versioned context assembled for one project, at most
// one live per project. Created only by the Builder; its staleness and
// timestamps are advanced only by the tracker.
type Snapshot struct {
	ID            string    `json:"id"`
	ProjectID     string    `json:"projectId"`
	DocumentID    string    `json:"documentId,omitempty"` // empty: no focused document
	Version       int       `json:"version"`
	CreatedAt     time.Time `json:"createdAt"`
	LastUpdatedAt time.Time `json:"lastUpdatedAt"`
	Staleness     Staleness `json:"staleness"`

	ActiveCharacterIDs   []string `json:"activeCharacterIds"`
	ActiveOutlineNodeIDs []string `json:"activeOutlineNodeIds"`

	ProjectSummary   string           `json:"projectSummary,omitempty"`
	DocumentSummary  string           `json:"documentSummary,omitempty"`
	SectionSummaries []SectionSummary `json:"sectionSummaries,omitempty"`

	Presence  map[string]PresenceEntry  `json:"characterPresence,omitempty"`
	Alignment map[string]AlignmentEntry `json:"outlineAlignment,omitempty"`

	RecentEdits []editlog.RecentEdit `json:"recentEdits,omitempty"`
	Markers     []Marker             `json:"narrativeProgression,omitempty"`

	TokenEstimate    int              `json:"tokenEstimate"`
	CompressionLevel CompressionLevel `json:"compressionLevel"`
}

// Clone returns a copy detached from the receiver's top-level slices
// and maps, so a held snapshot cannot observe later in-place updates.
// Element values are shared; builds never mutate them after publish.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	c := *s
	c.ActiveCharacterIDs = append([]string(nil), s.ActiveCharacterIDs...)
	c.ActiveOutlineNodeIDs = append([]string(nil), s.ActiveOutlineNodeIDs...)
	c.SectionSummaries = append([]SectionSummary(nil), s.SectionSummaries...)
	c.RecentEdits = append([]editlog.RecentEdit(nil), s.RecentEdits...)
	c.Markers = append([]Marker(nil), s.Markers...)
	if s.Presence != nil {
		c.Presence = make(map[string]PresenceEntry, len(s.Presence))
		for k, v := range s.Presence {
			c.Presence[k] = v
		}
	}
	if s.Alignment != nil {
		c.Alignment = make(map[string]AlignmentEntry, len(s.Alignment))
		for k, v := range s.Alignment {
			c.Alignment[k] = v
		}
	}
	return &c
}

// Focus identifies what the author is working on right now.
type Focus struct {
	ProjectID  string
	DocumentID string // optional
	Cursor     int    // byte offset, <0 when unknown
}
