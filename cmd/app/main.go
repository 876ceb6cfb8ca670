package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/markit/internal"
	"github.com/starford/markit/internal/apperr"
	"github.com/starford/markit/internal/export"
	"github.com/starford/markit/internal/models"
	"github.com/starford/markit/internal/noteservice"
	pkgconfig "github.com/starford/markit/pkg/config"
)

var version = "dev"

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	configPath := cmd.String("config")

	cfg := internal.NewDefaultConfig()
	if _, err := pkgconfig.LoadOrDefault(configPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// openApp opens the application for a one-shot command. Logs go to stderr so
// stdout carries only command output. Read-only commands can run next to a
// server; writing ones need the store's writer lock.
func openApp(cmd *cli.Command, readOnly bool) (*internal.App, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	opts := []internal.Option{internal.WithConfig(cfg), internal.WithLogWriter(os.Stderr)}
	if readOnly {
		opts = append(opts, internal.WithReadOnly())
	}
	app, err := internal.Open(opts...)
	return app, lockHint(err)
}

func lockHint(err error) error {
	if errors.Is(err, apperr.ErrLocked) {
		return fmt.Errorf("%w: another markit process is writing this store; stop it or use its HTTP API", err)
	}
	return err
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	opts := []internal.Option{
		internal.WithConfig(cfg),
	}

	if err := lockHint(internal.Run(ctx, opts...)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}

	return nil
}

func serveMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return lockHint(internal.RunMCP(ctx, version, internal.WithConfig(cfg), internal.WithLogWriter(os.Stderr)))
}

func listNotes(ctx context.Context, cmd *cli.Command) error {
	app, err := openApp(cmd, true)
	if err != nil {
		return err
	}
	defer app.Close()

	items := app.Service.ListNotes(ctx, cmd.String("query"))
	if cmd.Bool("json") {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(items)
	}

	for _, it := range items {
		fmt.Fprintln(os.Stdout, noteservice.Describe(it))
	}
	return nil
}

func newNote(ctx context.Context, cmd *cli.Command) error {
	app, err := openApp(cmd, false)
	if err != nil {
		return err
	}
	defer app.Close()

	var p models.Patch
	if cmd.IsSet("title") {
		title := cmd.String("title")
		p.Title = &title
	}
	if cmd.IsSet("content") {
		content := cmd.String("content")
		p.Content = &content
	}
	note, err := app.Service.CreateNote(ctx, p)
	if err != nil {
		return fmt.Errorf("create note: %w", err)
	}
	fmt.Fprintln(os.Stdout, note.ID)
	return nil
}

func exportNote(ctx context.Context, cmd *cli.Command) error {
	id := cmd.Args().First()
	if id == "" {
		return fmt.Errorf("export: note id is required")
	}
	app, err := openApp(cmd, true)
	if err != nil {
		return err
	}
	defer app.Close()

	a, err := app.Service.ExportNote(ctx, id)
	if err != nil {
		return fmt.Errorf("export %s: %w", id, err)
	}
	if cmd.String("out") == "-" {
		_, err := a.WriteTo(os.Stdout)
		return err
	}
	path, err := export.WriteFile(cmd.String("out"), a)
	if err != nil {
		return err
	}
	fmt.Fprintln(os.Stdout, path)
	return nil
}

func listBackups(_ context.Context, cmd *cli.Command) error {
	app, err := openApp(cmd, true)
	if err != nil {
		return err
	}
	defer app.Close()

	keys, err := app.Adapter.Quarantined()
	if err != nil {
		return fmt.Errorf("list backups: %w", err)
	}
	for _, k := range keys {
		fmt.Fprintln(os.Stdout, k)
	}
	return nil
}

func main() {
	cmd := &cli.Command{
		Name:    "markit",
		Usage:   "Markdown note manager with autosave and export",
		Version: version,
		Action:  serve,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API",
				Action: serve,
			},
			{
				Name:   "mcp",
				Usage:  "Serve MCP tools over stdio",
				Action: serveMCP,
			},
			{
				Name:  "list",
				Usage: "List notes, newest first",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "query", Aliases: []string{"q"}, Usage: "Only notes whose title or content contains this term"},
					&cli.BoolFlag{Name: "json", Usage: "Print JSON instead of a table"},
				},
				Action: listNotes,
			},
			{
				Name:  "new",
				Usage: "Create a note and print its id",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "title", Usage: "Initial title"},
					&cli.StringFlag{Name: "content", Usage: "Initial markdown content"},
				},
				Action: newNote,
			},
			{
				Name:      "export",
				Usage:     "Write a note to a markdown file",
				ArgsUsage: "<id>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Value: ".", Usage: "Target directory, or - for stdout"},
				},
				Action: exportNote,
			},
			{
				Name:   "backups",
				Usage:  "List quarantined copies of unreadable note stores",
				Action: listBackups,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
