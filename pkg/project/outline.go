package project

import (
	"fmt"
	"sort"
)

// CreateOutlineNode appends a node under parentID ("" for root) at the end
// of its sibling ordering.
func (s *Store) CreateOutlineNode(projectID string, typ NodeType, title, parentID string) (*OutlineNode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if parentID != "" {
		if _, ok := s.outline[parentID]; !ok {
			return nil, fmt.Errorf("outline parent %s: %w", parentID, ErrNotFound)
		}
	}
	now := s.now()
	n := &OutlineNode{
		ID:        newID(),
		ProjectID: projectID,
		ParentID:  parentID,
		Type:      typ,
		Title:     title,
		SortOrder: len(s.children[parentID]),
		Status:    StatusPlanned,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.outline[n.ID] = n
	s.children[parentID] = append(s.children[parentID], n.ID)
	cp := *n
	return &cp, nil
}

// GetOutlineNode returns a copy of the node.
func (s *Store) GetOutlineNode(id string) (*OutlineNode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, ok := s.outline[id]
	if !ok {
		return nil, fmt.Errorf("outline node %s: %w", id, ErrNotFound)
	}
	cp := *n
	return &cp, nil
}

// OutlinePatch is a partial outline-node update; nil fields are left
// alone. Reparenting goes through MoveOutlineNode, not a patch.
type OutlinePatch struct {
	Title       *string
	Description *string
	Type        *NodeType
	Status      *NodeStatus
	Color       *string
	Metadata    *NodeMetadata
}

// UpdateOutlineNode merges the patch and refreshes UpdatedAt. Status may
// regress; progression is convention, not invariant.
func (s *Store) UpdateOutlineNode(id string, patch OutlinePatch) (*OutlineNode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.outline[id]
	if !ok {
		return nil, fmt.Errorf("outline node %s: %w", id, ErrNotFound)
	}
	if patch.Title != nil {
		n.Title = *patch.Title
	}
	if patch.Description != nil {
		n.Description = *patch.Description
	}
	if patch.Type != nil {
		n.Type = *patch.Type
	}
	if patch.Status != nil {
		n.Status = *patch.Status
	}
	if patch.Color != nil {
		n.Color = *patch.Color
	}
	if patch.Metadata != nil {
		n.Metadata = *patch.Metadata
	}
	n.UpdatedAt = s.now()
	cp := *n
	return &cp, nil
}

// MoveOutlineNode reparents a node and inserts it at newIndex among its
// new siblings, resequencing SortOrder on both sibling sets. Rejects moves
// that would make the node its own ancestor.
func (s *Store) MoveOutlineNode(id, newParentID string, newIndex int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.outline[id]
	if !ok {
		return fmt.Errorf("outline node %s: %w", id, ErrNotFound)
	}
	if newParentID != "" {
		if _, ok := s.outline[newParentID]; !ok {
			return fmt.Errorf("outline parent %s: %w", newParentID, ErrNotFound)
		}
		// Walk up from the new parent; hitting id means a cycle.
		for cur := newParentID; cur != ""; {
			if cur == id {
				return fmt.Errorf("move %s under %s: %w", id, newParentID, ErrCycle)
			}
			cur = s.outline[cur].ParentID
		}
	}

	oldParentID := n.ParentID
	s.detachChild(oldParentID, id)

	siblings := s.children[newParentID]
	if newIndex < 0 {
		newIndex = 0
	}
	if newIndex > len(siblings) {
		newIndex = len(siblings)
	}
	siblings = append(siblings, "")
	copy(siblings[newIndex+1:], siblings[newIndex:])
	siblings[newIndex] = id
	s.children[newParentID] = siblings

	n.ParentID = newParentID
	n.UpdatedAt = s.now()
	s.resequence(oldParentID)
	s.resequence(newParentID)
	return nil
}

// DeleteOutlineNode removes the node and all descendants transitively.
// Returns the number of nodes removed.
func (s *Store) DeleteOutlineNode(id string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.outline[id]
	if !ok {
		return 0, fmt.Errorf("outline node %s: %w", id, ErrNotFound)
	}

	removed := 0
	var drop func(nodeID string)
	drop = func(nodeID string) {
		for _, childID := range s.children[nodeID] {
			drop(childID)
		}
		delete(s.children, nodeID)
		delete(s.outline, nodeID)
		removed++
	}
	s.detachChild(n.ParentID, id)
	drop(id)
	s.resequence(n.ParentID)
	return removed, nil
}

// LinkOutlineToDocument adds a document (and optional section) link.
// Duplicate links are ignored.
func (s *Store) LinkOutlineToDocument(nodeID, documentID, sectionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.outline[nodeID]
	if !ok {
		return fmt.Errorf("outline node %s: %w", nodeID, ErrNotFound)
	}
	n.LinkedDocumentIDs = appendUnique(n.LinkedDocumentIDs, documentID)
	if sectionID != "" {
		n.LinkedSectionIDs = appendUnique(n.LinkedSectionIDs, sectionID)
	}
	n.UpdatedAt = s.now()
	return nil
}

// UnlinkOutlineFromDocument removes a document link.
func (s *Store) UnlinkOutlineFromDocument(nodeID, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.outline[nodeID]
	if !ok {
		return fmt.Errorf("outline node %s: %w", nodeID, ErrNotFound)
	}
	out := n.LinkedDocumentIDs[:0]
	for _, id := range n.LinkedDocumentIDs {
		if id != documentID {
			out = append(out, id)
		}
	}
	n.LinkedDocumentIDs = out
	n.UpdatedAt = s.now()
	return nil
}

// Children returns the node's direct children in sort order. Pass "" for
// root nodes.
func (s *Store) Children(parentID string) []*OutlineNode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.childrenLocked(parentID)
}

func (s *Store) childrenLocked(parentID string) []*OutlineNode {
	ids := s.children[parentID]
	out := make([]*OutlineNode, 0, len(ids))
	for _, id := range ids {
		if n, ok := s.outline[id]; ok {
			cp := *n
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SortOrder < out[j].SortOrder })
	return out
}

// Ancestors returns the chain from the node's parent up to its root,
// nearest first.
func (s *Store) Ancestors(id string) []*OutlineNode {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*OutlineNode
	n, ok := s.outline[id]
	if !ok {
		return nil
	}
	for cur := n.ParentID; cur != ""; {
		parent, ok := s.outline[cur]
		if !ok {
			break
		}
		cp := *parent
		out = append(out, &cp)
		cur = parent.ParentID
	}
	return out
}

// OutlineNodes returns all of the project's nodes, roots-first depth
// order within each root, roots in sort order.
func (s *Store) OutlineNodes(projectID string) []*OutlineNode {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*OutlineNode
	var walk func(parentID string)
	walk = func(parentID string) {
		for _, n := range s.childrenLocked(parentID) {
			if n.ProjectID != projectID {
				continue
			}
			out = append(out, n)
			walk(n.ID)
		}
	}
	walk("")
	return out
}

// NodesLinkedToDocument returns outline nodes whose links include the
// document.
func (s *Store) NodesLinkedToDocument(documentID string) []*OutlineNode {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*OutlineNode
	for _, n := range s.outline {
		for _, id := range n.LinkedDocumentIDs {
			if id == documentID {
				cp := *n
				out = append(out, &cp)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) detachChild(parentID, id string) {
	ids := s.children[parentID]
	for i, cid := range ids {
		if cid == id {
			s.children[parentID] = append(ids[:i], ids[i+1:]...)
			return
		}
	}
}

func (s *Store) resequence(parentID string) {
	for i, id := range s.children[parentID] {
		if n, ok := s.outline[id]; ok {
			n.SortOrder = i
		}
	}
}

func appendUnique(slice []string, item string) []string {
	for _, s := range slice {
		if s == item {
			return slice
		}
	}
	return append(slice, item)
}
