package project

import "sort"

// Projects returns all projects, name-ordered.
func (s *Store) Projects() []*Project {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Project, 0, len(s.projects))
	for _, p := range s.projects {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Restore replaces the store's contents with previously persisted
// entities and rebuilds the outline child index. Used when loading a
// project database; IDs are trusted as-is.
func (s *Store) Restore(projects []*Project, documents []*Document, characters []*Character, nodes []*OutlineNode) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.projects = make(map[string]*Project, len(projects))
	for _, p := range projects {
		s.projects[p.ID] = p
	}
	s.documents = make(map[string]*Document, len(documents))
	for _, d := range documents {
		s.documents[d.ID] = d
	}
	s.characters = make(map[string]*Character, len(characters))
	for _, c := range characters {
		s.characters[c.ID] = c
	}

	s.outline = make(map[string]*OutlineNode, len(nodes))
	s.children = make(map[string][]string)
	ordered := append([]*OutlineNode(nil), nodes...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].SortOrder < ordered[j].SortOrder })
	for _, n := range ordered {
		s.outline[n.ID] = n
		s.children[n.ParentID] = append(s.children[n.ParentID], n.ID)
	}
}
