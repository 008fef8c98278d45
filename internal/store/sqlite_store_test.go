package store

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/inkfold/inkfold/pkg/project"
	"github.com/inkfold/inkfold/pkg/snapshot"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore()
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestProjectRoundTrip(t *testing.T) {
	s := newTestStore(t)

	now := time.Now().Truncate(time.Millisecond).UTC()
	p := &project.Project{
		ID:          "p1",
		Name:        "Tideline",
		Description: "A harbor town mystery.",
		Settings: project.Settings{
			DefaultModel:          "claude-sonnet-4-20250514",
			AutosaveInterval:      30 * time.Second,
			ContextUpdateDebounce: 2 * time.Second,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, s.UpsertProject(p))

	got, err := s.GetProject("p1")
	require.NoError(t, err)
	require.Equal(t, p.Name, got.Name)
	require.Equal(t, p.Settings, got.Settings)
	require.True(t, got.CreatedAt.Equal(now))

	p.Name = "Tideline (rev)"
	require.NoError(t, s.UpsertProject(p))
	got, err = s.GetProject("p1")
	require.NoError(t, err)
	require.Equal(t, "Tideline (rev)", got.Name)

	_, err = s.GetProject("missing")
	require.True(t, errors.Is(err, project.ErrNotFound))
}

func TestListProjectsOrderedByName(t *testing.T) {
	s := newTestStore(t)

	now := time.Now()
	for _, name := range []string{"Zephyr", "Anchorage"} {
		require.NoError(t, s.UpsertProject(&project.Project{
			ID: name, Name: name, CreatedAt: now, UpdatedAt: now,
		}))
	}
	all, err := s.ListProjects()
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, "Anchorage", all[0].Name)
}

func TestDocumentRoundTrip(t *testing.T) {
	s := newTestStore(t)

	now := time.Now().Truncate(time.Millisecond).UTC()
	d := &project.Document{
		ID:        "d1",
		ProjectID: "p1",
		Title:     "Chapter One",
		Content: project.DocNode{
			Type: "doc",
			Content: []project.DocNode{
				{Type: "paragraph", Content: []project.DocNode{{Type: "text", Text: "The tide went out."}}},
			},
		},
		SortOrder:  2,
		WordCount:  4,
		LastCursor: &project.CursorPosition{Anchor: 3, Head: 7, At: now},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	require.NoError(t, s.UpsertDocument(d))

	got, err := s.GetDocument("d1")
	require.NoError(t, err)
	require.Equal(t, "The tide went out.", project.ExtractText(got.Content))
	require.NotNil(t, got.LastCursor)
	require.Equal(t, 7, got.LastCursor.Head)
	require.Equal(t, 4, got.WordCount)
}

func TestListDocumentsScopedAndOrdered(t *testing.T) {
	s := newTestStore(t)

	now := time.Now()
	docs := []*project.Document{
		{ID: "b", ProjectID: "p1", Title: "Second", SortOrder: 1, CreatedAt: now, UpdatedAt: now},
		{ID: "a", ProjectID: "p1", Title: "First", SortOrder: 0, CreatedAt: now, UpdatedAt: now},
		{ID: "c", ProjectID: "other", Title: "Elsewhere", SortOrder: 0, CreatedAt: now, UpdatedAt: now},
	}
	for _, d := range docs {
		require.NoError(t, s.UpsertDocument(d))
	}

	got, err := s.ListDocuments("p1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "First", got[0].Title)
	require.Equal(t, "Second", got[1].Title)
}

func TestCharacterRoundTrip(t *testing.T) {
	s := newTestStore(t)

	now := time.Now()
	c := &project.Character{
		ID:          "c1",
		ProjectID:   "p1",
		Name:        "Eleanor Vance",
		Role:        project.RoleProtagonist,
		Description: "Lighthouse keeper's daughter.",
		Aliases:     []string{"Ellie", "El"},
		Attributes: project.Attributes{
			Personality: "stubborn, observant",
			Speech:      "clipped sentences",
		},
		Relationships: []project.Relationship{
			{CharacterID: "c2", Type: "rival", Description: "childhood grudge"},
		},
		Arc: &project.Arc{
			StartingState: "distrusts the town",
			EndingState:   "defends it",
			KeyMoments:    []string{"the storm"},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, s.UpsertCharacter(c))

	got, err := s.GetCharacter("c1")
	require.NoError(t, err)
	require.Equal(t, project.RoleProtagonist, got.Role)
	require.Equal(t, []string{"Ellie", "El"}, got.Aliases)
	require.Len(t, got.Relationships, 1)
	require.NotNil(t, got.Arc)
	require.Equal(t, "defends it", got.Arc.EndingState)

	require.NoError(t, s.DeleteCharacter("c1"))
	_, err = s.GetCharacter("c1")
	require.True(t, errors.Is(err, project.ErrNotFound))
}

func TestCharacterWithoutArc(t *testing.T) {
	s := newTestStore(t)

	now := time.Now()
	require.NoError(t, s.UpsertCharacter(&project.Character{
		ID: "c2", ProjectID: "p1", Name: "Bram", Role: project.RoleMinor,
		CreatedAt: now, UpdatedAt: now,
	}))
	got, err := s.GetCharacter("c2")
	require.NoError(t, err)
	require.Nil(t, got.Arc)
	require.Empty(t, got.Aliases)
}

func TestOutlineNodeRoundTrip(t *testing.T) {
	s := newTestStore(t)

	now := time.Now()
	n := &project.OutlineNode{
		ID:                "n1",
		ProjectID:         "p1",
		ParentID:          "act1",
		Type:              project.NodeScene,
		Title:             "The Harbor",
		Description:       "Eleanor finds the wrecked skiff.",
		SortOrder:         3,
		LinkedDocumentIDs: []string{"d1"},
		LinkedSectionIDs:  []string{"d1#0"},
		Status:            project.StatusDraft,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	require.NoError(t, s.UpsertOutlineNode(n))

	got, err := s.GetOutlineNode("n1")
	require.NoError(t, err)
	require.Equal(t, project.NodeScene, got.Type)
	require.Equal(t, project.StatusDraft, got.Status)
	require.Equal(t, []string{"d1"}, got.LinkedDocumentIDs)
	require.Equal(t, []string{"d1#0"}, got.LinkedSectionIDs)
	require.Equal(t, "act1", got.ParentID)

	nodes, err := s.ListOutlineNodes("p1")
	require.NoError(t, err)
	require.Len(t, nodes, 1)

	require.NoError(t, s.DeleteOutlineNode("n1"))
	nodes, err = s.ListOutlineNodes("p1")
	require.NoError(t, err)
	require.Empty(t, nodes)
}

func TestSnapshotLatestByVersion(t *testing.T) {
	s := newTestStore(t)

	now := time.Now().Truncate(time.Millisecond).UTC()
	for v := 1; v <= 3; v++ {
		require.NoError(t, s.SaveSnapshot(&snapshot.Snapshot{
			ID:        "s" + string(rune('0'+v)),
			ProjectID: "p1",
			Version:   v,
			CreatedAt: now,
			Staleness: snapshot.Fresh,
		}))
	}
	require.NoError(t, s.SaveSnapshot(&snapshot.Snapshot{
		ID: "other", ProjectID: "p2", Version: 9, CreatedAt: now,
	}))

	got, err := s.LatestSnapshot("p1")
	require.NoError(t, err)
	require.Equal(t, 3, got.Version)
	require.Equal(t, snapshot.Fresh, got.Staleness)

	_, err = s.LatestSnapshot("empty")
	require.True(t, errors.Is(err, project.ErrNotFound))
}

func TestSnapshotOverwriteSameVersion(t *testing.T) {
	s := newTestStore(t)

	now := time.Now()
	snapA := &snapshot.Snapshot{ID: "a", ProjectID: "p1", Version: 1, CreatedAt: now}
	snapB := &snapshot.Snapshot{ID: "b", ProjectID: "p1", Version: 1, CreatedAt: now}
	require.NoError(t, s.SaveSnapshot(snapA))
	require.NoError(t, s.SaveSnapshot(snapB))

	got, err := s.LatestSnapshot("p1")
	require.NoError(t, err)
	require.Equal(t, "b", got.ID)
}

func TestFileBackedStore(t *testing.T) {
	path := t.TempDir() + "/project.db"

	s, err := NewSQLiteStoreWithDSN(path)
	require.NoError(t, err)
	now := time.Now()
	require.NoError(t, s.UpsertProject(&project.Project{
		ID: "p1", Name: "Durable", CreatedAt: now, UpdatedAt: now,
	}))
	require.NoError(t, s.Close())

	s2, err := NewSQLiteStoreWithDSN(path)
	require.NoError(t, err)
	defer s2.Close()
	got, err := s2.GetProject("p1")
	require.NoError(t, err)
	require.Equal(t, "Durable", got.Name)
}
