package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/inkfold/inkfold/internal/config"
	"github.com/inkfold/inkfold/internal/store"
	"github.com/inkfold/inkfold/pkg/assist"
	"github.com/inkfold/inkfold/pkg/engine"
	"github.com/inkfold/inkfold/pkg/presence"
	"github.com/inkfold/inkfold/pkg/provider"
	"github.com/inkfold/inkfold/pkg/snapshot"
	"github.com/inkfold/inkfold/pkg/tracker"
)

// newCLIApp creates the CLI application with all commands.
func newCLIApp(persist store.Storer, cfg *config.Config) *cli.App {
	app := &cli.App{
		Name:    "inkfold",
		Usage:   "Writing-project context engine and AI assistant",
		Version: Version,
		Commands: []*cli.Command{
			projectsCmd(persist),
			statusCmd(persist),
			contextCmd(persist, cfg),
			scanCmd(persist),
			askCmd(persist, cfg),
			chatCmd(persist, cfg),
			quickCmd(persist, cfg),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// newEngine loads the persisted project state into a fresh engine.
func newEngine(persist store.Storer, cfg *config.Config) (*engine.Engine, error) {
	opts := engine.DefaultOptions()
	opts.Persist = persist
	opts.Budget.TokenBudget = cfg.Context.TokenBudget
	opts.Tracker = tracker.Config{
		FreshFor:              cfg.Context.FreshFor.Std(),
		RecentFor:             cfg.Context.RecentFor.Std(),
		StaleFor:              cfg.Context.StaleFor.Std(),
		QueueRebuildThreshold: cfg.Context.QueueRebuildThreshold,
		EditRebuildThreshold:  cfg.Context.EditRebuildThreshold,
	}
	e := engine.New(opts)
	if err := e.Load(); err != nil {
		return nil, fmt.Errorf("load project database: %w", err)
	}
	return e, nil
}

// openProject focuses the engine, optionally on one document.
func openProject(e *engine.Engine, projectID, documentID string) (*snapshot.Snapshot, error) {
	if err := e.OpenProject(projectID); err != nil {
		return nil, err
	}
	if documentID != "" {
		if err := e.SwitchDocument(documentID); err != nil {
			return nil, err
		}
	}
	return e.Snapshot(), nil
}

// projectsCmd lists all persisted projects.
func projectsCmd(persist store.Storer) *cli.Command {
	return &cli.Command{
		Name:  "projects",
		Usage: "List projects in the database",
		Action: func(c *cli.Context) error {
			projects, err := persist.ListProjects()
			if err != nil {
				return outputError(err)
			}
			type row struct {
				ID        string `json:"id"`
				Name      string `json:"name"`
				Documents int    `json:"documents"`
			}
			rows := make([]row, 0, len(projects))
			for _, p := range projects {
				docs, err := persist.ListDocuments(p.ID)
				if err != nil {
					return outputError(err)
				}
				rows = append(rows, row{ID: p.ID, Name: p.Name, Documents: len(docs)})
			}
			return outputJSON(rows)
		},
	}
}

// statusCmd summarizes the latest persisted snapshot for a project.
func statusCmd(persist store.Storer) *cli.Command {
	return &cli.Command{
		Name:      "status",
		Usage:     "Show the latest saved context snapshot for a project",
		ArgsUsage: "<project-id>",
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return outputError(fmt.Errorf("project-id is required"))
			}
			snap, err := persist.LatestSnapshot(c.Args().First())
			if err != nil {
				return outputError(err)
			}
			return outputJSON(map[string]any{
				"version":          snap.Version,
				"staleness":        snap.Staleness,
				"documentId":       snap.DocumentID,
				"activeCharacters": len(snap.ActiveCharacterIDs),
				"activeOutline":    len(snap.ActiveOutlineNodeIDs),
				"sections":         len(snap.SectionSummaries),
				"tokenEstimate":    snap.TokenEstimate,
				"compression":      snap.CompressionLevel,
				"createdAt":        snap.CreatedAt,
			})
		},
	}
}

// contextCmd rebuilds a snapshot from the stored project and prints it.
func contextCmd(persist store.Storer, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:      "context",
		Usage:     "Build a fresh context snapshot for a project",
		ArgsUsage: "<project-id>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "doc", Aliases: []string{"d"}, Usage: "Focused document ID"},
			&cli.BoolFlag{Name: "save", Usage: "Persist the rebuilt snapshot"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return outputError(fmt.Errorf("project-id is required"))
			}
			e, err := newEngine(persist, cfg)
			if err != nil {
				return outputError(err)
			}
			snap, err := openProject(e, c.Args().First(), c.String("doc"))
			if err != nil {
				return outputError(err)
			}
			if c.Bool("save") {
				if err := e.Save(); err != nil {
					return outputError(err)
				}
			}
			return outputJSON(snap)
		},
	}
}

// scanCmd finds character mentions in a text file or stdin.
func scanCmd(persist store.Storer) *cli.Command {
	return &cli.Command{
		Name:      "scan",
		Usage:     "Scan text for character mentions (file argument or stdin)",
		ArgsUsage: "<project-id> [file]",
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return outputError(fmt.Errorf("project-id is required"))
			}
			var text string
			if c.NArg() > 1 {
				data, err := os.ReadFile(c.Args().Get(1))
				if err != nil {
					return outputError(err)
				}
				text = string(data)
			} else {
				var err error
				if text, err = readStdin(); err != nil {
					return outputError(err)
				}
			}
			if text == "" {
				return outputError(fmt.Errorf("text must be given as a file or piped via stdin"))
			}

			characters, err := persist.ListCharacters(c.Args().First())
			if err != nil {
				return outputError(err)
			}
			dict, err := presence.Compile(characters)
			if err != nil {
				return outputError(err)
			}
			names := make(map[string]string, len(characters))
			for _, ch := range characters {
				names[ch.ID] = ch.Name
			}

			type hit struct {
				CharacterID string `json:"characterId"`
				Name        string `json:"name"`
				Start       int    `json:"start"`
				End         int    `json:"end"`
				Surface     string `json:"surface"`
			}
			mentions := dict.Scan(text)
			hits := make([]hit, 0, len(mentions))
			for _, m := range mentions {
				hits = append(hits, hit{
					CharacterID: m.CharacterID,
					Name:        names[m.CharacterID],
					Start:       m.Start,
					End:         m.End,
					Surface:     m.Surface,
				})
			}
			return outputJSON(hits)
		},
	}
}

// askCmd sends one assistant request with full project context.
func askCmd(persist store.Storer, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:      "ask",
		Usage:     "Ask the assistant (message as argument or piped via stdin)",
		ArgsUsage: "<project-id> [message]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "doc", Aliases: []string{"d"}, Usage: "Focused document ID"},
			&cli.StringFlag{Name: "mode", Aliases: []string{"m"}, Value: "editor", Usage: "Persona: editor|coach"},
			&cli.StringFlag{Name: "selected", Aliases: []string{"s"}, Usage: "Selected text to review"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return outputError(fmt.Errorf("project-id is required"))
			}
			message := strings.TrimSpace(strings.Join(c.Args().Tail(), " "))
			if message == "" {
				var err error
				if message, err = readStdin(); err != nil {
					return outputError(err)
				}
			}
			if message == "" {
				return outputError(fmt.Errorf("a message is required"))
			}

			e, snap, err := engineWithProvider(persist, cfg, c.Args().First(), c.String("doc"))
			if err != nil {
				return outputError(err)
			}
			resp, err := e.Assist().Send(c.Context, assist.Request{
				Mode:         assist.Mode(c.String("mode")),
				UserMessage:  message,
				SelectedText: c.String("selected"),
				Context:      snap,
			})
			if err != nil {
				return outputError(err)
			}
			return outputResponse(resp)
		},
	}
}

// chatCmd starts an interactive streaming conversation. History carries
// across turns within the session.
func chatCmd(persist store.Storer, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:      "chat",
		Usage:     "Interactive assistant session (streams tokens as they arrive)",
		ArgsUsage: "<project-id>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "doc", Aliases: []string{"d"}, Usage: "Focused document ID"},
			&cli.StringFlag{Name: "mode", Aliases: []string{"m"}, Value: "editor", Usage: "Persona: editor|coach"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return outputError(fmt.Errorf("project-id is required"))
			}
			e, snap, err := engineWithProvider(persist, cfg, c.Args().First(), c.String("doc"))
			if err != nil {
				return outputError(err)
			}

			scanner := bufio.NewScanner(os.Stdin)
			fmt.Println("inkfold chat. Empty line or Ctrl-D to quit.")
			for {
				fmt.Print("> ")
				if !scanner.Scan() {
					break
				}
				message := strings.TrimSpace(scanner.Text())
				if message == "" {
					break
				}
				err := e.Assist().Stream(c.Context, assist.Request{
					Mode:        assist.Mode(c.String("mode")),
					UserMessage: message,
					Context:     snap,
				}, assist.StreamCallbacks{
					OnToken: func(tok string) { fmt.Print(tok) },
					OnComplete: func(resp *assist.Response) {
						fmt.Println()
						if len(resp.Citations) > 0 {
							fmt.Println("References:")
							for _, cit := range resp.Citations {
								fmt.Printf("  [%s:%s] %s\n", cit.Type, cit.ID, cit.Name)
							}
						}
					},
				})
				if err != nil {
					fmt.Fprintf(os.Stderr, "error: %v\n", err)
				}
			}
			return scanner.Err()
		},
	}
}

// quickCmd runs a canned editorial action on selected text from stdin.
func quickCmd(persist store.Storer, cfg *config.Config) *cli.Command {
	actions := make([]string, 0, len(assist.QuickActions))
	for _, a := range assist.QuickActions {
		actions = append(actions, string(a.Type))
	}
	return &cli.Command{
		Name:      "quick",
		Usage:     "Run a quick action on text piped via stdin: " + strings.Join(actions, ", "),
		ArgsUsage: "<project-id> <action>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "doc", Aliases: []string{"d"}, Usage: "Focused document ID"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() < 2 {
				return outputError(fmt.Errorf("project-id and action are required"))
			}
			selected, err := readStdin()
			if err != nil {
				return outputError(err)
			}
			if selected == "" {
				return outputError(fmt.Errorf("selected text must be piped via stdin"))
			}

			e, snap, err := engineWithProvider(persist, cfg, c.Args().First(), c.String("doc"))
			if err != nil {
				return outputError(err)
			}
			resp, err := e.Assist().RunQuickAction(c.Context,
				assist.QuickActionType(c.Args().Get(1)), assist.Request{
					SelectedText: selected,
					Context:      snap,
				})
			if err != nil {
				return outputError(err)
			}
			return outputResponse(resp)
		},
	}
}

// engineWithProvider loads the engine, opens the project, and wires the
// configured completion provider.
func engineWithProvider(persist store.Storer, cfg *config.Config, projectID, documentID string) (*engine.Engine, *snapshot.Snapshot, error) {
	e, err := newEngine(persist, cfg)
	if err != nil {
		return nil, nil, err
	}
	snap, err := openProject(e, projectID, documentID)
	if err != nil {
		return nil, nil, err
	}
	p, err := provider.New(cfg.Provider)
	if err != nil {
		return nil, nil, err
	}
	e.Assist().SetProvider(p)
	return e, snap, nil
}

// Helper functions

// outputJSON marshals result to stdout as JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputResponse prints an assistant reply with its parsed extras.
func outputResponse(resp *assist.Response) error {
	fmt.Println(resp.Content)
	if len(resp.Citations) > 0 {
		fmt.Println("\nReferences:")
		for _, cit := range resp.Citations {
			fmt.Printf("  [%s:%s] %s\n", cit.Type, cit.ID, cit.Name)
		}
	}
	if resp.Usage.Total > 0 {
		fmt.Printf("\nTokens: %d prompt, %d completion\n", resp.Usage.Prompt, resp.Usage.Completion)
	}
	return nil
}

// outputError formats error for CLI.
func outputError(err error) error {
	return cli.Exit(err.Error(), 1)
}

// readStdin reads all content from stdin.
func readStdin() (string, error) {
	stat, err := os.Stdin.Stat()
	if err != nil || (stat.Mode()&os.ModeCharDevice) != 0 {
		return "", nil
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
