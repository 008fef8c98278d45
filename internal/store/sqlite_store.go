package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/inkfold/inkfold/pkg/project"
	"github.com/inkfold/inkfold/pkg/snapshot"
)

// SQLiteStore is the SQLite-backed project database. Safe for
// concurrent use.
type SQLiteStore struct {
	mu sync.RWMutex
	db *sql.DB
}

// schema defines all tables. Nested structures (document content,
// character attributes, node metadata, whole snapshots) persist as JSON
// text columns; referential integrity is managed at the application
// level.
const schema = `
CREATE TABLE IF NOT EXISTS projects (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    description TEXT,
    settings TEXT,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS documents (
    id TEXT PRIMARY KEY,
    project_id TEXT NOT NULL,
    parent_id TEXT,
    title TEXT NOT NULL,
    content TEXT NOT NULL,
    sort_order INTEGER DEFAULT 0,
    word_count INTEGER DEFAULT 0,
    last_cursor TEXT,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_documents_project ON documents(project_id);

CREATE TABLE IF NOT EXISTS characters (
    id TEXT PRIMARY KEY,
    project_id TEXT NOT NULL,
    name TEXT NOT NULL,
    role TEXT NOT NULL,
    description TEXT,
    aliases TEXT,
    attributes TEXT,
    relationships TEXT,
    arc TEXT,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_characters_project ON characters(project_id);
CREATE INDEX IF NOT EXISTS idx_characters_name ON characters(name);

CREATE TABLE IF NOT EXISTS outline_nodes (
    id TEXT PRIMARY KEY,
    project_id TEXT NOT NULL,
    parent_id TEXT,
    type TEXT NOT NULL,
    title TEXT NOT NULL,
    description TEXT,
    status TEXT,
    color TEXT,
    sort_order INTEGER DEFAULT 0,
    metadata TEXT,
    linked_document_ids TEXT,
    linked_section_ids TEXT,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_outline_project ON outline_nodes(project_id);
CREATE INDEX IF NOT EXISTS idx_outline_parent ON outline_nodes(parent_id);

CREATE TABLE IF NOT EXISTS snapshots (
    project_id TEXT NOT NULL,
    version INTEGER NOT NULL,
    data TEXT NOT NULL,
    created_at INTEGER NOT NULL,
    PRIMARY KEY (project_id, version)
);
`

// NewSQLiteStore creates an in-memory project database.
func NewSQLiteStore() (*SQLiteStore, error) {
	return NewSQLiteStoreWithDSN(":memory:")
}

// NewSQLiteStoreWithDSN opens or creates a database at dsn. Use
// ":memory:" for ephemeral storage or a file path for a durable one.
func NewSQLiteStoreWithDSN(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: create schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func toJSON(v interface{}) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func fromJSON(raw sql.NullString, v interface{}) error {
	if !raw.Valid || raw.String == "" {
		return nil
	}
	return json.Unmarshal([]byte(raw.String), v)
}

func millis(t time.Time) int64 { return t.UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

// ---------------------------------------------------------------------------
// Projects
// ---------------------------------------------------------------------------

func (s *SQLiteStore) UpsertProject(p *project.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	settings, err := toJSON(p.Settings)
	if err != nil {
		return fmt.Errorf("store: encode project settings: %w", err)
	}
	_, err = s.db.Exec(`
		INSERT INTO projects (id, name, description, settings, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			settings = excluded.settings,
			updated_at = excluded.updated_at
	`, p.ID, p.Name, p.Description, settings, millis(p.CreatedAt), millis(p.UpdatedAt))
	if err != nil {
		return fmt.Errorf("store: upsert project: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetProject(id string) (*project.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return scanProject(s.db.QueryRow(`
		SELECT id, name, description, settings, created_at, updated_at
		FROM projects WHERE id = ?`, id))
}

func (s *SQLiteStore) ListProjects() ([]*project.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT id, name, description, settings, created_at, updated_at
		FROM projects ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("store: list projects: %w", err)
	}
	defer rows.Close()

	var out []*project.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) DeleteProject(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`DELETE FROM projects WHERE id = ?`, id)
	return err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProject(row rowScanner) (*project.Project, error) {
	var p project.Project
	var description, settings sql.NullString
	var createdAt, updatedAt int64

	err := row.Scan(&p.ID, &p.Name, &description, &settings, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("store: project: %w", project.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("store: scan project: %w", err)
	}
	p.Description = description.String
	if err := fromJSON(settings, &p.Settings); err != nil {
		return nil, fmt.Errorf("store: decode project settings: %w", err)
	}
	p.CreatedAt = fromMillis(createdAt)
	p.UpdatedAt = fromMillis(updatedAt)
	return &p, nil
}

// ---------------------------------------------------------------------------
// Documents
// ---------------------------------------------------------------------------

func (s *SQLiteStore) UpsertDocument(d *project.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	content, err := toJSON(d.Content)
	if err != nil {
		return fmt.Errorf("store: encode document content: %w", err)
	}
	var cursor interface{}
	if d.LastCursor != nil {
		if cursor, err = toJSON(d.LastCursor); err != nil {
			return fmt.Errorf("store: encode cursor: %w", err)
		}
	}
	_, err = s.db.Exec(`
		INSERT INTO documents (id, project_id, parent_id, title, content, sort_order, word_count, last_cursor, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			parent_id = excluded.parent_id,
			title = excluded.title,
			content = excluded.content,
			sort_order = excluded.sort_order,
			word_count = excluded.word_count,
			last_cursor = excluded.last_cursor,
			updated_at = excluded.updated_at
	`, d.ID, d.ProjectID, d.ParentID, d.Title, content, d.SortOrder, d.WordCount, cursor,
		millis(d.CreatedAt), millis(d.UpdatedAt))
	if err != nil {
		return fmt.Errorf("store: upsert document: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetDocument(id string) (*project.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return scanDocument(s.db.QueryRow(`
		SELECT id, project_id, parent_id, title, content, sort_order, word_count, last_cursor, created_at, updated_at
		FROM documents WHERE id = ?`, id))
}

func (s *SQLiteStore) ListDocuments(projectID string) ([]*project.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT id, project_id, parent_id, title, content, sort_order, word_count, last_cursor, created_at, updated_at
		FROM documents WHERE project_id = ? ORDER BY sort_order`, projectID)
	if err != nil {
		return nil, fmt.Errorf("store: list documents: %w", err)
	}
	defer rows.Close()

	var out []*project.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) DeleteDocument(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`DELETE FROM documents WHERE id = ?`, id)
	return err
}

func scanDocument(row rowScanner) (*project.Document, error) {
	var d project.Document
	var parentID, content, cursor sql.NullString
	var createdAt, updatedAt int64

	err := row.Scan(&d.ID, &d.ProjectID, &parentID, &d.Title, &content,
		&d.SortOrder, &d.WordCount, &cursor, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("store: document: %w", project.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("store: scan document: %w", err)
	}
	d.ParentID = parentID.String
	if err := fromJSON(content, &d.Content); err != nil {
		return nil, fmt.Errorf("store: decode document content: %w", err)
	}
	if cursor.Valid && cursor.String != "" {
		d.LastCursor = &project.CursorPosition{}
		if err := fromJSON(cursor, d.LastCursor); err != nil {
			return nil, fmt.Errorf("store: decode cursor: %w", err)
		}
	}
	d.CreatedAt = fromMillis(createdAt)
	d.UpdatedAt = fromMillis(updatedAt)
	return &d, nil
}

// ---------------------------------------------------------------------------
// Characters
// ---------------------------------------------------------------------------

func (s *SQLiteStore) UpsertCharacter(c *project.Character) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	aliases, err := toJSON(c.Aliases)
	if err != nil {
		return fmt.Errorf("store: encode aliases: %w", err)
	}
	attrs, err := toJSON(c.Attributes)
	if err != nil {
		return fmt.Errorf("store: encode attributes: %w", err)
	}
	rels, err := toJSON(c.Relationships)
	if err != nil {
		return fmt.Errorf("store: encode relationships: %w", err)
	}
	var arc interface{}
	if c.Arc != nil {
		if arc, err = toJSON(c.Arc); err != nil {
			return fmt.Errorf("store: encode arc: %w", err)
		}
	}
	_, err = s.db.Exec(`
		INSERT INTO characters (id, project_id, name, role, description, aliases, attributes, relationships, arc, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			role = excluded.role,
			description = excluded.description,
			aliases = excluded.aliases,
			attributes = excluded.attributes,
			relationships = excluded.relationships,
			arc = excluded.arc,
			updated_at = excluded.updated_at
	`, c.ID, c.ProjectID, c.Name, string(c.Role), c.Description, aliases, attrs, rels, arc,
		millis(c.CreatedAt), millis(c.UpdatedAt))
	if err != nil {
		return fmt.Errorf("store: upsert character: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetCharacter(id string) (*project.Character, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return scanCharacter(s.db.QueryRow(`
		SELECT id, project_id, name, role, description, aliases, attributes, relationships, arc, created_at, updated_at
		FROM characters WHERE id = ?`, id))
}

func (s *SQLiteStore) ListCharacters(projectID string) ([]*project.Character, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT id, project_id, name, role, description, aliases, attributes, relationships, arc, created_at, updated_at
		FROM characters WHERE project_id = ? ORDER BY name`, projectID)
	if err != nil {
		return nil, fmt.Errorf("store: list characters: %w", err)
	}
	defer rows.Close()

	var out []*project.Character
	for rows.Next() {
		c, err := scanCharacter(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) DeleteCharacter(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`DELETE FROM characters WHERE id = ?`, id)
	return err
}

func scanCharacter(row rowScanner) (*project.Character, error) {
	var c project.Character
	var role string
	var description, aliases, attrs, rels, arc sql.NullString
	var createdAt, updatedAt int64

	err := row.Scan(&c.ID, &c.ProjectID, &c.Name, &role, &description,
		&aliases, &attrs, &rels, &arc, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("store: character: %w", project.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("store: scan character: %w", err)
	}
	c.Role = project.Role(role)
	c.Description = description.String
	if err := fromJSON(aliases, &c.Aliases); err != nil {
		return nil, fmt.Errorf("store: decode aliases: %w", err)
	}
	if err := fromJSON(attrs, &c.Attributes); err != nil {
		return nil, fmt.Errorf("store: decode attributes: %w", err)
	}
	if err := fromJSON(rels, &c.Relationships); err != nil {
		return nil, fmt.Errorf("store: decode relationships: %w", err)
	}
	if arc.Valid && arc.String != "" && arc.String != "null" {
		c.Arc = &project.Arc{}
		if err := fromJSON(arc, c.Arc); err != nil {
			return nil, fmt.Errorf("store: decode arc: %w", err)
		}
	}
	c.CreatedAt = fromMillis(createdAt)
	c.UpdatedAt = fromMillis(updatedAt)
	return &c, nil
}

// ---------------------------------------------------------------------------
// Outline nodes
// ---------------------------------------------------------------------------

func (s *SQLiteStore) UpsertOutlineNode(n *project.OutlineNode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	meta, err := toJSON(n.Metadata)
	if err != nil {
		return fmt.Errorf("store: encode node metadata: %w", err)
	}
	docIDs, err := toJSON(n.LinkedDocumentIDs)
	if err != nil {
		return fmt.Errorf("store: encode linked documents: %w", err)
	}
	secIDs, err := toJSON(n.LinkedSectionIDs)
	if err != nil {
		return fmt.Errorf("store: encode linked sections: %w", err)
	}
	_, err = s.db.Exec(`
		INSERT INTO outline_nodes (id, project_id, parent_id, type, title, description, status, color, sort_order, metadata, linked_document_ids, linked_section_ids, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			parent_id = excluded.parent_id,
			type = excluded.type,
			title = excluded.title,
			description = excluded.description,
			status = excluded.status,
			color = excluded.color,
			sort_order = excluded.sort_order,
			metadata = excluded.metadata,
			linked_document_ids = excluded.linked_document_ids,
			linked_section_ids = excluded.linked_section_ids,
			updated_at = excluded.updated_at
	`, n.ID, n.ProjectID, n.ParentID, string(n.Type), n.Title, n.Description,
		string(n.Status), n.Color, n.SortOrder, meta, docIDs, secIDs,
		millis(n.CreatedAt), millis(n.UpdatedAt))
	if err != nil {
		return fmt.Errorf("store: upsert outline node: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetOutlineNode(id string) (*project.OutlineNode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return scanOutlineNode(s.db.QueryRow(`
		SELECT id, project_id, parent_id, type, title, description, status, color, sort_order, metadata, linked_document_ids, linked_section_ids, created_at, updated_at
		FROM outline_nodes WHERE id = ?`, id))
}

func (s *SQLiteStore) ListOutlineNodes(projectID string) ([]*project.OutlineNode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT id, project_id, parent_id, type, title, description, status, color, sort_order, metadata, linked_document_ids, linked_section_ids, created_at, updated_at
		FROM outline_nodes WHERE project_id = ? ORDER BY sort_order`, projectID)
	if err != nil {
		return nil, fmt.Errorf("store: list outline nodes: %w", err)
	}
	defer rows.Close()

	var out []*project.OutlineNode
	for rows.Next() {
		n, err := scanOutlineNode(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) DeleteOutlineNode(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`DELETE FROM outline_nodes WHERE id = ?`, id)
	return err
}

func scanOutlineNode(row rowScanner) (*project.OutlineNode, error) {
	var n project.OutlineNode
	var typ, status string
	var parentID, description, color, meta, docIDs, secIDs sql.NullString
	var createdAt, updatedAt int64

	err := row.Scan(&n.ID, &n.ProjectID, &parentID, &typ, &n.Title, &description,
		&status, &color, &n.SortOrder, &meta, &docIDs, &secIDs, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("store: outline node: %w", project.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("store: scan outline node: %w", err)
	}
	n.ParentID = parentID.String
	n.Type = project.NodeType(typ)
	n.Description = description.String
	n.Status = project.NodeStatus(status)
	n.Color = color.String
	if err := fromJSON(meta, &n.Metadata); err != nil {
		return nil, fmt.Errorf("store: decode node metadata: %w", err)
	}
	if err := fromJSON(docIDs, &n.LinkedDocumentIDs); err != nil {
		return nil, fmt.Errorf("store: decode linked documents: %w", err)
	}
	if err := fromJSON(secIDs, &n.LinkedSectionIDs); err != nil {
		return nil, fmt.Errorf("store: decode linked sections: %w", err)
	}
	n.CreatedAt = fromMillis(createdAt)
	n.UpdatedAt = fromMillis(updatedAt)
	return &n, nil
}

// ---------------------------------------------------------------------------
// Snapshots
// ---------------------------------------------------------------------------

// SaveSnapshot persists one snapshot version as a JSON document.
// Re-saving the same version overwrites it.
func (s *SQLiteStore) SaveSnapshot(snap *snapshot.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := toJSON(snap)
	if err != nil {
		return fmt.Errorf("store: encode snapshot: %w", err)
	}
	_, err = s.db.Exec(`
		INSERT INTO snapshots (project_id, version, data, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(project_id, version) DO UPDATE SET
			data = excluded.data,
			created_at = excluded.created_at
	`, snap.ProjectID, snap.Version, data, millis(snap.CreatedAt))
	if err != nil {
		return fmt.Errorf("store: save snapshot: %w", err)
	}
	return nil
}

// LatestSnapshot returns the highest-version snapshot for a project, or
// project.ErrNotFound when none exists.
func (s *SQLiteStore) LatestSnapshot(projectID string) (*snapshot.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var data string
	err := s.db.QueryRow(`
		SELECT data FROM snapshots WHERE project_id = ?
		ORDER BY version DESC LIMIT 1`, projectID).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("store: snapshot: %w", project.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("store: load snapshot: %w", err)
	}

	var snap snapshot.Snapshot
	if err := json.Unmarshal([]byte(data), &snap); err != nil {
		return nil, fmt.Errorf("store: decode snapshot: %w", err)
	}
	return &snap, nil
}

var _ Storer = (*SQLiteStore)(nil)
