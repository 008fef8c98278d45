// Package engine wires the entity store, edit log, snapshot builder,
// staleness tracker, and assistant into one session-scoped pipeline.
// Editor callbacks come in at the top; a current context snapshot and
// assistant responses come out at the bottom.
package engine

import (
	"fmt"
	"time"

	"github.com/inkfold/inkfold/internal/store"
	"github.com/inkfold/inkfold/pkg/assist"
	"github.com/inkfold/inkfold/pkg/editlog"
	"github.com/inkfold/inkfold/pkg/project"
	"github.com/inkfold/inkfold/pkg/snapshot"
	"github.com/inkfold/inkfold/pkg/tracker"
)

// Options configure a new Engine.
type Options struct {
	Tracker tracker.Config
	Budget  snapshot.BudgetPolicy
	Builder snapshot.Options
	// Persist, when set, mirrors the in-memory store durably. The
	// engine never requires it; a nil Persist keeps everything
	// session-local.
	Persist store.Storer
}

// DefaultOptions returns the default engine configuration without
// persistence.
func DefaultOptions() Options {
	return Options{
		Tracker: tracker.DefaultConfig(),
		Budget:  snapshot.DefaultBudgetPolicy(),
		Builder: snapshot.DefaultOptions(),
	}
}

// Engine owns one writing session. All methods are safe for concurrent
// use; snapshot processing is single-flight inside the tracker.
type Engine struct {
	store   *project.Store
	log     *editlog.Log
	queue   *editlog.Queue
	tracker *tracker.Tracker
	assist  *assist.Service
	persist store.Storer
}

// New builds an engine around a fresh in-memory store.
func New(opts Options) *Engine {
	st := project.NewStore()
	lg := editlog.NewLog(editlog.DefaultMaxEdits, editlog.DefaultMaxSnippetLen)
	q := editlog.NewQueue()
	b := snapshot.NewBuilder(st, lg, opts.Budget, opts.Builder)
	tr := tracker.New(b, lg, q, opts.Tracker)

	return &Engine{
		store:   st,
		log:     lg,
		queue:   q,
		tracker: tr,
		assist:  assist.NewService(st, nil),
		persist: opts.Persist,
	}
}

// Store exposes the underlying entity store.
func (e *Engine) Store() *project.Store { return e.store }

// Assist exposes the assistant service for configuring a provider and
// sending requests.
func (e *Engine) Assist() *assist.Service { return e.assist }

// Tracker exposes the staleness tracker.
func (e *Engine) Tracker() *tracker.Tracker { return e.tracker }

// Snapshot returns a detached copy of the current context snapshot with
// staleness decayed to now, or nil before the first build.
func (e *Engine) Snapshot() *snapshot.Snapshot { return e.tracker.Current() }

// OpenProject focuses the tracker on a project and runs the first
// snapshot build.
func (e *Engine) OpenProject(projectID string) error {
	if _, err := e.store.GetProject(projectID); err != nil {
		return err
	}
	e.tracker.SetFocus(snapshot.Focus{ProjectID: projectID, Cursor: -1})
	return e.tracker.DrainAndProcess()
}

// largeEditWords is the absolute word-count delta past which a change
// event is enqueued high priority, forcing the next drain to rebuild.
const largeEditWords = 50

// ApplyEdit replaces a document's content, records the edit in the
// trail, and enqueues a change event. Small edits queue at normal
// priority; a large word-count swing queues high.
func (e *Engine) ApplyEdit(documentID string, content project.DocNode, change editlog.ChangeType, position int, snippet string) error {
	old, err := e.store.GetDocument(documentID)
	if err != nil {
		return fmt.Errorf("engine: apply edit: %w", err)
	}
	updated, err := e.store.UpdateDocument(documentID, project.DocumentPatch{Content: &content})
	if err != nil {
		return fmt.Errorf("engine: apply edit: %w", err)
	}
	e.log.Record(editlog.RecentEdit{
		DocumentID: documentID,
		Position:   position,
		ChangeType: change,
		Snippet:    snippet,
		Timestamp:  time.Now(),
	})
	priority := editlog.PriorityNormal
	if delta := updated.WordCount - old.WordCount; delta >= largeEditWords || delta <= -largeEditWords {
		priority = editlog.PriorityHigh
	}
	e.queue.Enqueue(editlog.NewEvent(editlog.EventDocumentChange, documentID, priority))
	return e.tracker.DrainAndProcess()
}

// SwitchDocument moves focus to another document. Document switches are
// high priority: the next drain always rebuilds.
func (e *Engine) SwitchDocument(documentID string) error {
	doc, err := e.store.GetDocument(documentID)
	if err != nil {
		return err
	}
	f := e.tracker.Focus()
	f.ProjectID = doc.ProjectID
	f.DocumentID = documentID
	f.Cursor = -1
	if doc.LastCursor != nil {
		f.Cursor = doc.LastCursor.Head
	}
	e.tracker.SetFocus(f)
	e.queue.Enqueue(editlog.NewEvent(editlog.EventDocumentSwitch, documentID, editlog.PriorityHigh))
	return e.tracker.DrainAndProcess()
}

// MoveCursor records the cursor position. Low priority; on its own it
// only triggers cheap refreshes.
func (e *Engine) MoveCursor(documentID string, pos project.CursorPosition) error {
	if err := e.store.SetCursor(documentID, pos); err != nil {
		return err
	}
	f := e.tracker.Focus()
	if f.DocumentID == documentID {
		f.Cursor = pos.Head
		e.tracker.SetFocus(f)
	}
	e.queue.Enqueue(editlog.NewEvent(editlog.EventCursorMove, documentID, editlog.PriorityLow))
	return e.tracker.DrainAndProcess()
}

// UpdateOutline patches an outline node and enqueues an outline event.
func (e *Engine) UpdateOutline(nodeID string, patch project.OutlinePatch) (*project.OutlineNode, error) {
	n, err := e.store.UpdateOutlineNode(nodeID, patch)
	if err != nil {
		return nil, err
	}
	e.queue.Enqueue(editlog.NewEvent(editlog.EventOutlineUpdate, nodeID, editlog.PriorityNormal))
	if err := e.tracker.DrainAndProcess(); err != nil {
		return n, err
	}
	return n, nil
}

// UpdateCharacter patches a character and enqueues a character event.
func (e *Engine) UpdateCharacter(characterID string, patch project.CharacterPatch) (*project.Character, error) {
	c, err := e.store.UpdateCharacter(characterID, patch)
	if err != nil {
		return nil, err
	}
	e.queue.Enqueue(editlog.NewEvent(editlog.EventCharacterUpdate, characterID, editlog.PriorityNormal))
	if err := e.tracker.DrainAndProcess(); err != nil {
		return c, err
	}
	return c, nil
}

// DeleteCharacter removes a character, prunes it from the live snapshot
// immediately, and schedules a high-priority rebuild.
func (e *Engine) DeleteCharacter(characterID string) error {
	if err := e.store.DeleteCharacter(characterID); err != nil {
		return err
	}
	e.tracker.PruneCharacter(characterID)
	e.queue.Enqueue(editlog.NewEvent(editlog.EventCharacterUpdate, characterID, editlog.PriorityHigh))
	return e.tracker.DrainAndProcess()
}

// ReorderDocuments applies a new sibling order. Low priority.
func (e *Engine) ReorderDocuments(projectID string, orderedIDs []string) error {
	e.store.ReorderDocuments(projectID, orderedIDs)
	e.queue.Enqueue(editlog.NewEvent(editlog.EventDocumentReorder, projectID, editlog.PriorityLow))
	return e.tracker.DrainAndProcess()
}

// Refresh forces a full rebuild regardless of pending event volume.
func (e *Engine) Refresh() error {
	return e.tracker.ForceRefresh()
}

// Save mirrors the whole in-memory store, and the current snapshot if
// any, into the persistent store.
func (e *Engine) Save() error {
	if e.persist == nil {
		return fmt.Errorf("engine: no persistent store configured")
	}
	for _, p := range e.store.Projects() {
		if err := e.persist.UpsertProject(p); err != nil {
			return err
		}
		for _, d := range e.store.Documents(p.ID) {
			if err := e.persist.UpsertDocument(d); err != nil {
				return err
			}
		}
		for _, c := range e.store.Characters(p.ID) {
			if err := e.persist.UpsertCharacter(c); err != nil {
				return err
			}
		}
		for _, n := range e.store.OutlineNodes(p.ID) {
			if err := e.persist.UpsertOutlineNode(n); err != nil {
				return err
			}
		}
	}
	if snap := e.tracker.Current(); snap != nil {
		if err := e.persist.SaveSnapshot(snap); err != nil {
			return err
		}
	}
	return nil
}

// Load replaces the in-memory store with the persisted state.
func (e *Engine) Load() error {
	if e.persist == nil {
		return fmt.Errorf("engine: no persistent store configured")
	}
	projects, err := e.persist.ListProjects()
	if err != nil {
		return err
	}
	var documents []*project.Document
	var characters []*project.Character
	var nodes []*project.OutlineNode
	for _, p := range projects {
		docs, err := e.persist.ListDocuments(p.ID)
		if err != nil {
			return err
		}
		documents = append(documents, docs...)
		chars, err := e.persist.ListCharacters(p.ID)
		if err != nil {
			return err
		}
		characters = append(characters, chars...)
		ns, err := e.persist.ListOutlineNodes(p.ID)
		if err != nil {
			return err
		}
		nodes = append(nodes, ns...)
	}
	e.store.Restore(projects, documents, characters, nodes)
	return nil
}
