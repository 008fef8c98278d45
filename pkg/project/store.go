package project

import (
	"crypto/rand"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// ErrNotFound is returned when an entity ID is unknown to the store.
var ErrNotFound = errors.New("project: not found")

// ErrCycle is returned when a move would make an outline node its own
// ancestor.
var ErrCycle = errors.New("project: outline move would create a cycle")

// Store holds all entities for any number of projects. Safe for
// interleaved access from an event loop plus a background drain; writes
// are atomic from the caller's point of view.
type Store struct {
	mu         sync.RWMutex
	projects   map[string]*Project
	documents  map[string]*Document
	characters map[string]*Character
	outline    map[string]*OutlineNode

	// parent node ID -> child node IDs, maintained incrementally so
	// children() never scans. Root nodes live under the empty key.
	children map[string][]string

	now func() time.Time
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		projects:   make(map[string]*Project),
		documents:  make(map[string]*Document),
		characters: make(map[string]*Character),
		outline:    make(map[string]*OutlineNode),
		children:   make(map[string][]string),
		now:        time.Now,
	}
}

// SetClock overrides the store's time source. Used by tests.
func (s *Store) SetClock(now func() time.Time) { s.now = now }

func newID() string {
	entropy := ulid.Monotonic(rand.Reader, 0)
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// ---------------------------------------------------------------------------
// Projects
// ---------------------------------------------------------------------------

// CreateProject registers a new project and returns it.
func (s *Store) CreateProject(name, description string) *Project {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	p := &Project{
		ID:          newID(),
		Name:        name,
		Description: description,
		Settings: Settings{
			AutosaveInterval:      30 * time.Second,
			ContextUpdateDebounce: 2 * time.Second,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.projects[p.ID] = p
	cp := *p
	return &cp
}

// GetProject returns a copy of the project.
func (s *Store) GetProject(id string) (*Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.projects[id]
	if !ok {
		return nil, fmt.Errorf("project %s: %w", id, ErrNotFound)
	}
	cp := *p
	return &cp, nil
}

// ProjectPatch is a partial project update; nil fields are left alone.
type ProjectPatch struct {
	Name        *string
	Description *string
	Settings    *Settings
}

// UpdateProject merges the patch and refreshes UpdatedAt.
func (s *Store) UpdateProject(id string, patch ProjectPatch) (*Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.projects[id]
	if !ok {
		return nil, fmt.Errorf("project %s: %w", id, ErrNotFound)
	}
	if patch.Name != nil {
		p.Name = *patch.Name
	}
	if patch.Description != nil {
		p.Description = *patch.Description
	}
	if patch.Settings != nil {
		p.Settings = *patch.Settings
	}
	p.UpdatedAt = s.now()
	cp := *p
	return &cp, nil
}

// ---------------------------------------------------------------------------
// Documents
// ---------------------------------------------------------------------------

// CreateDocument appends a document to the project's ordering.
func (s *Store) CreateDocument(projectID, title string) *Document {
	s.mu.Lock()
	defer s.mu.Unlock()

	order := 0
	for _, d := range s.documents {
		if d.ProjectID == projectID {
			order++
		}
	}
	now := s.now()
	doc := &Document{
		ID:        newID(),
		ProjectID: projectID,
		Title:     title,
		Content:   DocNode{Type: "doc", Content: []DocNode{{Type: "paragraph"}}},
		SortOrder: order,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.documents[doc.ID] = doc
	cp := *doc
	return &cp
}

// GetDocument returns a copy of the document.
func (s *Store) GetDocument(id string) (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.documents[id]
	if !ok {
		return nil, fmt.Errorf("document %s: %w", id, ErrNotFound)
	}
	cp := *d
	return &cp, nil
}

// DocumentPatch is a partial document update; nil fields are left alone.
type DocumentPatch struct {
	Title     *string
	Content   *DocNode
	SortOrder *int
	ParentID  *string
}

// UpdateDocument merges the patch, refreshes UpdatedAt, and recomputes
// WordCount whenever the patch carries content.
func (s *Store) UpdateDocument(id string, patch DocumentPatch) (*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.documents[id]
	if !ok {
		return nil, fmt.Errorf("document %s: %w", id, ErrNotFound)
	}
	if patch.Title != nil {
		d.Title = *patch.Title
	}
	if patch.Content != nil {
		d.Content = *patch.Content
		d.WordCount = CountWords(ExtractText(d.Content))
	}
	if patch.SortOrder != nil {
		d.SortOrder = *patch.SortOrder
	}
	if patch.ParentID != nil {
		d.ParentID = *patch.ParentID
	}
	d.UpdatedAt = s.now()
	cp := *d
	return &cp, nil
}

// SetCursor records the last cursor position on a document.
func (s *Store) SetCursor(id string, pos CursorPosition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.documents[id]
	if !ok {
		return fmt.Errorf("document %s: %w", id, ErrNotFound)
	}
	d.LastCursor = &pos
	return nil
}

// DeleteDocument removes a document. Outline links to it are left
// dangling on purpose: outline structure survives document reorganization.
func (s *Store) DeleteDocument(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.documents[id]; !ok {
		return fmt.Errorf("document %s: %w", id, ErrNotFound)
	}
	delete(s.documents, id)
	return nil
}

// ReorderDocuments assigns SortOrder from the given ID ordering. IDs not
// listed keep their order; IDs from other projects are ignored.
func (s *Store) ReorderDocuments(projectID string, orderedIDs []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, id := range orderedIDs {
		if d, ok := s.documents[id]; ok && d.ProjectID == projectID {
			d.SortOrder = i
			d.UpdatedAt = s.now()
		}
	}
}

// Documents returns the project's documents in sort order.
func (s *Store) Documents(projectID string) []*Document {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Document
	for _, d := range s.documents {
		if d.ProjectID == projectID {
			cp := *d
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SortOrder != out[j].SortOrder {
			return out[i].SortOrder < out[j].SortOrder
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// ---------------------------------------------------------------------------
// Characters
// ---------------------------------------------------------------------------

// CreateCharacter registers a character with the given role.
func (s *Store) CreateCharacter(projectID, name string, role Role) *Character {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	c := &Character{
		ID:        newID(),
		ProjectID: projectID,
		Name:      name,
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.characters[c.ID] = c
	cp := *c
	return &cp
}

// GetCharacter returns a copy of the character.
func (s *Store) GetCharacter(id string) (*Character, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.characters[id]
	if !ok {
		return nil, fmt.Errorf("character %s: %w", id, ErrNotFound)
	}
	cp := *c
	return &cp, nil
}

// CharacterPatch is a partial character update; nil fields are left alone.
type CharacterPatch struct {
	Name          *string
	Aliases       *[]string
	Role          *Role
	Description   *string
	Attributes    *Attributes
	Relationships *[]Relationship
	Arc           **Arc
}

// UpdateCharacter merges the patch and refreshes UpdatedAt.
func (s *Store) UpdateCharacter(id string, patch CharacterPatch) (*Character, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.characters[id]
	if !ok {
		return nil, fmt.Errorf("character %s: %w", id, ErrNotFound)
	}
	if patch.Name != nil {
		c.Name = *patch.Name
	}
	if patch.Aliases != nil {
		c.Aliases = append([]string(nil), (*patch.Aliases)...)
	}
	if patch.Role != nil {
		c.Role = *patch.Role
	}
	if patch.Description != nil {
		c.Description = *patch.Description
	}
	if patch.Attributes != nil {
		c.Attributes = *patch.Attributes
	}
	if patch.Relationships != nil {
		c.Relationships = append([]Relationship(nil), (*patch.Relationships)...)
	}
	if patch.Arc != nil {
		c.Arc = *patch.Arc
	}
	c.UpdatedAt = s.now()
	cp := *c
	return &cp, nil
}

// DeleteCharacter removes a character. The caller (engine) is responsible
// for pruning the character's presence records from the live snapshot.
func (s *Store) DeleteCharacter(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.characters[id]; !ok {
		return fmt.Errorf("character %s: %w", id, ErrNotFound)
	}
	delete(s.characters, id)
	return nil
}

// Characters returns the project's characters ordered by role weight
// (descending), then name.
func (s *Store) Characters(projectID string) []*Character {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Character
	for _, c := range s.characters {
		if c.ProjectID == projectID {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		wi, wj := out[i].Role.Weight(), out[j].Role.Weight()
		if wi != wj {
			return wi > wj
		}
		return out[i].Name < out[j].Name
	})
	return out
}
