package main

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/inkfold/inkfold/internal/config"
	"github.com/inkfold/inkfold/internal/store"
	"github.com/inkfold/inkfold/pkg/engine"
	"github.com/inkfold/inkfold/pkg/project"
)

// setupTestStore seeds an in-memory database with one project.
func setupTestStore(t *testing.T) (*store.SQLiteStore, string) {
	t.Helper()
	persist, err := store.NewSQLiteStore()
	if err != nil {
		t.Fatalf("failed to init test store: %v", err)
	}
	t.Cleanup(func() { persist.Close() })

	opts := engine.DefaultOptions()
	opts.Persist = persist
	e := engine.New(opts)
	p := e.Store().CreateProject("Tideline", "A harbor town mystery.")
	e.Store().CreateDocument(p.ID, "Chapter One")
	e.Store().CreateCharacter(p.ID, "Eleanor", project.RoleProtagonist)
	if err := e.OpenProject(p.ID); err != nil {
		t.Fatalf("failed to open project: %v", err)
	}
	if err := e.Save(); err != nil {
		t.Fatalf("failed to seed store: %v", err)
	}
	return persist, p.ID
}

// runApp executes the CLI and captures stdout.
func runApp(t *testing.T, persist *store.SQLiteStore, args ...string) string {
	t.Helper()
	old := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("failed to create pipe: %v", err)
	}
	os.Stdout = w

	app := newCLIApp(persist, config.Default())
	runErr := app.Run(append([]string{"inkfold"}, args...))

	w.Close()
	os.Stdout = old
	out, _ := io.ReadAll(r)
	if runErr != nil {
		t.Fatalf("command %v failed: %v", args, runErr)
	}
	return string(out)
}

func TestProjectsCommand(t *testing.T) {
	persist, _ := setupTestStore(t)

	out := runApp(t, persist, "projects")

	var rows []struct {
		ID        string `json:"id"`
		Name      string `json:"name"`
		Documents int    `json:"documents"`
	}
	if err := json.Unmarshal([]byte(out), &rows); err != nil {
		t.Fatalf("invalid JSON output: %v\n%s", err, out)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 project, got %d", len(rows))
	}
	if rows[0].Name != "Tideline" || rows[0].Documents != 1 {
		t.Errorf("unexpected row: %+v", rows[0])
	}
}

func TestStatusCommand(t *testing.T) {
	persist, projectID := setupTestStore(t)

	out := runApp(t, persist, "status", projectID)

	var status struct {
		Version   int    `json:"version"`
		Staleness string `json:"staleness"`
	}
	if err := json.Unmarshal([]byte(out), &status); err != nil {
		t.Fatalf("invalid JSON output: %v\n%s", err, out)
	}
	if status.Version != 1 {
		t.Errorf("expected version 1, got %d", status.Version)
	}
	if status.Staleness != "fresh" {
		t.Errorf("expected fresh staleness, got %q", status.Staleness)
	}
}

func TestStatusCommandMissingArg(t *testing.T) {
	persist, _ := setupTestStore(t)

	app := newCLIApp(persist, config.Default())
	if err := app.Run([]string{"inkfold", "status"}); err == nil {
		t.Fatal("expected an error without a project-id")
	}
}

func TestContextCommandRebuildsSnapshot(t *testing.T) {
	persist, projectID := setupTestStore(t)

	out := runApp(t, persist, "context", projectID, "--save")

	var snap struct {
		ProjectID string `json:"projectId"`
		Version   int    `json:"version"`
	}
	if err := json.Unmarshal([]byte(out), &snap); err != nil {
		t.Fatalf("invalid JSON output: %v\n%s", err, out)
	}
	if snap.ProjectID != projectID {
		t.Errorf("expected project %s, got %s", projectID, snap.ProjectID)
	}
	if snap.Version < 1 {
		t.Errorf("expected a built snapshot, got version %d", snap.Version)
	}
}

func TestScanCommandFindsMentions(t *testing.T) {
	persist, projectID := setupTestStore(t)

	path := filepath.Join(t.TempDir(), "scene.txt")
	text := "Eleanor watched the tide. Nobody saw Eleanor leave."
	if err := os.WriteFile(path, []byte(text), 0o600); err != nil {
		t.Fatalf("failed to write scene: %v", err)
	}

	out := runApp(t, persist, "scan", projectID, path)

	var hits []struct {
		Name    string `json:"name"`
		Start   int    `json:"start"`
		Surface string `json:"surface"`
	}
	if err := json.Unmarshal([]byte(out), &hits); err != nil {
		t.Fatalf("invalid JSON output: %v\n%s", err, out)
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 mentions, got %d", len(hits))
	}
	if hits[0].Name != "Eleanor" || hits[0].Start != 0 {
		t.Errorf("unexpected first mention: %+v", hits[0])
	}
}

func TestAskCommandRequiresAPIKey(t *testing.T) {
	persist, projectID := setupTestStore(t)

	app := newCLIApp(persist, config.Default())
	err := app.Run([]string{"inkfold", "ask", projectID, "How is the pacing?"})
	if err == nil {
		t.Fatal("expected an error without an API key")
	}
}
