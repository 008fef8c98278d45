// Package store provides SQLite-backed persistence for inkfold project
// databases. Entities persist as typed rows with JSON columns for
// nested data; snapshots persist as versioned JSON documents.
package store

import (
	"github.com/inkfold/inkfold/pkg/project"
	"github.com/inkfold/inkfold/pkg/snapshot"
)

// Storer defines the interface for data persistence. The in-memory
// entity store is the source of truth during a session; the Storer
// mirrors it durably between sessions.
type Storer interface {
	// Projects
	UpsertProject(p *project.Project) error
	GetProject(id string) (*project.Project, error)
	ListProjects() ([]*project.Project, error)
	DeleteProject(id string) error

	// Documents
	UpsertDocument(d *project.Document) error
	GetDocument(id string) (*project.Document, error)
	ListDocuments(projectID string) ([]*project.Document, error)
	DeleteDocument(id string) error

	// Characters
	UpsertCharacter(c *project.Character) error
	GetCharacter(id string) (*project.Character, error)
	ListCharacters(projectID string) ([]*project.Character, error)
	DeleteCharacter(id string) error

	// Outline
	UpsertOutlineNode(n *project.OutlineNode) error
	GetOutlineNode(id string) (*project.OutlineNode, error)
	ListOutlineNodes(projectID string) ([]*project.OutlineNode, error)
	DeleteOutlineNode(id string) error

	// Snapshots, versioned per project
	SaveSnapshot(s *snapshot.Snapshot) error
	LatestSnapshot(projectID string) (*snapshot.Snapshot, error)

	Close() error
}
