package snapshot

import (
	"crypto/rand"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/inkfold/inkfold/pkg/editlog"
	"github.com/inkfold/inkfold/pkg/presence"
	"github.com/inkfold/inkfold/pkg/project"
)

// Options bounds the builder's output independent of the token budget.
type Options struct {
	// PresenceWindowBytes is how much focused-document text (ending at
	// the cursor when known) is searched for active characters.
	PresenceWindowBytes int
	// MaxSectionSummaries caps the snapshot's section list.
	MaxSectionSummaries int
	// MaxActiveCharacters caps the unfocused active-character fallback.
	MaxActiveCharacters int
	// MaxRecentEdits caps the merged recent-edit list.
	MaxRecentEdits int
	// MaxMarkers caps derived narrative markers.
	MaxMarkers int
}

// DefaultOptions returns the builder bounds used when a field is zero.
func DefaultOptions() Options {
	return Options{
		PresenceWindowBytes: 4096,
		MaxSectionSummaries: 12,
		MaxActiveCharacters: 20,
		MaxRecentEdits:      5,
		MaxMarkers:          20,
	}
}

// Builder assembles context snapshots from the entity store and the edit
// trail. Pure and deterministic for a given store state and focus; it
// never errors on missing or empty inputs.
type Builder struct {
	store  *project.Store
	log    *editlog.Log
	policy BudgetPolicy
	opts   Options
	now    func() time.Time
}

// NewBuilder wires a builder over the store and edit trail.
func NewBuilder(store *project.Store, log *editlog.Log, policy BudgetPolicy, opts Options) *Builder {
	def := DefaultOptions()
	if opts.PresenceWindowBytes <= 0 {
		opts.PresenceWindowBytes = def.PresenceWindowBytes
	}
	if opts.MaxSectionSummaries <= 0 {
		opts.MaxSectionSummaries = def.MaxSectionSummaries
	}
	if opts.MaxActiveCharacters <= 0 {
		opts.MaxActiveCharacters = def.MaxActiveCharacters
	}
	if opts.MaxRecentEdits <= 0 {
		opts.MaxRecentEdits = def.MaxRecentEdits
	}
	if opts.MaxMarkers <= 0 {
		opts.MaxMarkers = def.MaxMarkers
	}
	if len(policy.Order) == 0 {
		policy.Order = DefaultBudgetPolicy().Order
	}
	return &Builder{store: store, log: log, policy: policy, opts: opts, now: time.Now}
}

// SetClock overrides the builder's time source. Used by tests.
func (b *Builder) SetClock(now func() time.Time) { b.now = now }

func newSnapshotID() string {
	entropy := ulid.Monotonic(rand.Reader, 0)
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// Build assembles a fresh snapshot for the focus. prev carries the
// version counter forward; nil means first build. An empty project
// yields a minimal valid snapshot, never an error.
func (b *Builder) Build(focus Focus, prev *Snapshot) (*Snapshot, error) {
	characters := b.store.Characters(focus.ProjectID)
	documents := b.store.Documents(focus.ProjectID)
	nodes := b.store.OutlineNodes(focus.ProjectID)

	dict, err := presence.Compile(characters)
	if err != nil {
		return nil, fmt.Errorf("snapshot: compile presence dictionary: %w", err)
	}

	version := 1
	if prev != nil {
		version = prev.Version + 1
	}
	now := b.now()
	snap := &Snapshot{
		ID:            newSnapshotID(),
		ProjectID:     focus.ProjectID,
		DocumentID:    focus.DocumentID,
		Version:       version,
		CreatedAt:     now,
		LastUpdatedAt: now,
		Staleness:     Fresh,
		Presence:      make(map[string]PresenceEntry),
		Alignment:     make(map[string]AlignmentEntry),
	}

	if p, err := b.store.GetProject(focus.ProjectID); err == nil {
		snap.ProjectSummary = digest(p.Description, 6, 160)
	}

	docText := make(map[string]string, len(documents))
	for _, d := range documents {
		docText[d.ID] = project.ExtractText(d.Content)
	}

	var focusedText string
	if focus.DocumentID != "" {
		focusedText = docText[focus.DocumentID]
		snap.DocumentSummary = digest(focusedText, 6, 160)
	}

	snap.ActiveCharacterIDs = b.activeCharacters(dict, characters, focusedText, focus)
	snap.ActiveOutlineNodeIDs = b.activeOutlineNodes(nodes, focus)
	b.buildPresence(snap, dict, documents, docText)
	b.buildSections(snap, dict, documents, docText, focus)
	b.buildAlignment(snap, nodes, docText)

	if b.log != nil {
		snap.RecentEdits = trimEdits(b.log.All(), b.opts.MaxRecentEdits)
	}

	for _, d := range documents {
		snap.Markers = append(snap.Markers, detectMarkers(d.ID, docText[d.ID])...)
		if len(snap.Markers) >= b.opts.MaxMarkers {
			snap.Markers = snap.Markers[:b.opts.MaxMarkers]
			break
		}
	}

	roleOf := func(id string) int {
		for _, c := range characters {
			if c.ID == id {
				return c.Role.Weight()
			}
		}
		return 0
	}
	applyBudget(snap, b.policy, roleOf)

	return snap, nil
}

// activeCharacters finds characters mentioned in the focused document's
// recent text window, or falls back to all project characters (by role
// weight) up to the cap when there is no focus.
func (b *Builder) activeCharacters(dict *presence.Dictionary, characters []*project.Character, focusedText string, focus Focus) []string {
	if focus.DocumentID == "" || focusedText == "" {
		var out []string
		for _, c := range characters { // already role-ordered
			out = append(out, c.ID)
			if len(out) >= b.opts.MaxActiveCharacters {
				break
			}
		}
		return out
	}

	window := recentWindow(focusedText, focus.Cursor, b.opts.PresenceWindowBytes)
	seen := make(map[string]bool)
	var out []string
	for _, m := range dict.Scan(window) {
		if !seen[m.CharacterID] {
			seen[m.CharacterID] = true
			out = append(out, m.CharacterID)
		}
	}
	sort.Strings(out)
	return out
}

// recentWindow returns up to windowBytes of text ending at the cursor,
// or the document tail when the cursor is unknown.
func recentWindow(text string, cursor, windowBytes int) string {
	end := len(text)
	if cursor >= 0 && cursor < end {
		end = cursor
	}
	start := end - windowBytes
	if start < 0 {
		start = 0
	}
	return text[start:end]
}

// activeOutlineNodes collects nodes linked to the focused document plus
// their ancestors, so a scene's chapter and act ride along. Without a
// focus, root nodes stand in.
func (b *Builder) activeOutlineNodes(nodes []*project.OutlineNode, focus Focus) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(id string) {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}

	if focus.DocumentID == "" {
		for _, n := range nodes {
			if n.ParentID == "" {
				add(n.ID)
			}
		}
		sort.Strings(out)
		return out
	}

	for _, n := range b.store.NodesLinkedToDocument(focus.DocumentID) {
		add(n.ID)
		for _, anc := range b.store.Ancestors(n.ID) {
			add(anc.ID)
		}
	}
	sort.Strings(out)
	return out
}

func (b *Builder) buildPresence(snap *Snapshot, dict *presence.Dictionary, documents []*project.Document, docText map[string]string) {
	for _, d := range documents {
		text := docText[d.ID]
		if text == "" {
			continue
		}
		for _, m := range dict.Scan(text) {
			entry := snap.Presence[m.CharacterID]
			entry.DocumentIDs = appendUniqueString(entry.DocumentIDs, d.ID)
			entry.TotalMentions++
			entry.LastMention = m.Start
			entry.LastMentionDocID = d.ID
			snap.Presence[m.CharacterID] = entry
		}
	}
}

// buildSections derives section summaries by splitting each document on
// scene breaks and chapter headings, focused document first.
func (b *Builder) buildSections(snap *Snapshot, dict *presence.Dictionary, documents []*project.Document, docText map[string]string, focus Focus) {
	ordered := make([]*project.Document, 0, len(documents))
	for _, d := range documents {
		if d.ID == focus.DocumentID {
			ordered = append([]*project.Document{d}, ordered...)
		} else {
			ordered = append(ordered, d)
		}
	}

	for _, d := range ordered {
		if len(snap.SectionSummaries) >= b.opts.MaxSectionSummaries {
			return
		}
		for i, sec := range splitSections(docText[d.ID]) {
			if len(snap.SectionSummaries) >= b.opts.MaxSectionSummaries {
				return
			}
			sectionID := fmt.Sprintf("%s#%d", d.ID, i)
			summary := SectionSummary{
				SectionID:  sectionID,
				DocumentID: d.ID,
				Title:      sec.title,
				Summary:    digest(sec.text, 4, 120),
				KeyPoints:  keywords(sec.text, 3),
				WordCount:  project.CountWords(sec.text),
			}
			charSeen := make(map[string]bool)
			for _, m := range dict.Scan(sec.text) {
				if !charSeen[m.CharacterID] {
					charSeen[m.CharacterID] = true
					summary.CharacterIDs = append(summary.CharacterIDs, m.CharacterID)
				}
			}
			sort.Strings(summary.CharacterIDs)
			// Cross-link sections into presence entries.
			for _, id := range summary.CharacterIDs {
				entry := snap.Presence[id]
				entry.SectionIDs = appendUniqueString(entry.SectionIDs, sectionID)
				snap.Presence[id] = entry
			}
			snap.SectionSummaries = append(snap.SectionSummaries, summary)
		}
	}
}

type rawSection struct {
	title string
	text  string
}

// splitSections cuts document text on scene-break lines and chapter
// headings. A document with neither is a single untitled section.
func splitSections(text string) []rawSection {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	var sections []rawSection
	var current strings.Builder
	title := ""

	flush := func() {
		body := strings.TrimSpace(current.String())
		if body != "" || title != "" {
			sections = append(sections, rawSection{title: title, text: body})
		}
		current.Reset()
	}

	for _, line := range strings.SplitAfter(text, "\n") {
		if isSceneBreakLine(line) {
			flush()
			title = ""
			continue
		}
		if label, ok := chapterLabel(line); ok {
			flush()
			title = label
			continue
		}
		current.WriteString(line)
	}
	flush()
	return sections
}

// buildAlignment maps outline nodes to their written state. Dangling
// document links (deleted documents) contribute nothing but do not
// error.
func (b *Builder) buildAlignment(snap *Snapshot, nodes []*project.OutlineNode, docText map[string]string) {
	for _, n := range nodes {
		if len(n.LinkedDocumentIDs) == 0 {
			continue
		}
		entry := AlignmentEntry{SectionIDs: append([]string(nil), n.LinkedSectionIDs...)}
		for _, docID := range n.LinkedDocumentIDs {
			text, ok := docText[docID]
			if !ok {
				continue // dangling link, tolerated
			}
			if entry.DocumentID == "" {
				entry.DocumentID = docID
			}
			entry.WordCount += project.CountWords(text)
		}
		entry.Status = implementationStatus(entry.WordCount, n.Metadata.WordCountTarget)
		snap.Alignment[n.ID] = entry
	}
}

func implementationStatus(words, target int) ImplementationStatus {
	if words == 0 {
		return ImplNotStarted
	}
	if target > 0 {
		if words >= target {
			return ImplComplete
		}
		return ImplPartial
	}
	if words >= 500 {
		return ImplComplete
	}
	return ImplPartial
}

func appendUniqueString(slice []string, item string) []string {
	for _, s := range slice {
		if s == item {
			return slice
		}
	}
	return append(slice, item)
}
