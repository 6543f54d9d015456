package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/raido/internal"
	"github.com/starford/raido/internal/mcpserver"
	"github.com/starford/raido/internal/session"
	"github.com/starford/raido/internal/update"
	pkgconfig "github.com/starford/raido/pkg/config"
)

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	configPath := cmd.String("config")
	if _, err := os.Stat(configPath); err == nil {
		if err := pkgconfig.Load(configPath, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	} else if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// cliLogger writes JSON logs to stderr so stdout stays clean for
// command output and the MCP stdio transport.
func cliLogger(cfg *internal.Config) *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)
	return logger
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func mcpCmd(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := cliLogger(cfg)
	svc, db, _, err := internal.BuildService(cfg, logger, nil)
	if err != nil {
		return err
	}
	defer db.Close()
	return mcpserver.New(svc).ServeStdio()
}

func discover(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := cliLogger(cfg)
	svc, db, _, err := internal.BuildService(cfg, logger, nil)
	if err != nil {
		return err
	}
	defer db.Close()

	pending, err := svc.Discover(ctx)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		fmt.Println("no pending updates")
		return nil
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tORIGIN\tPRIORITY\tTYPE\tSCOPE\tAUTHORIZED\tTITLE")
	for _, p := range pending {
		scope := p.Scope.Value
		if p.Scope.Inferred {
			scope += " (inferred)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%t\t%s\n",
			p.Record.ID, p.Record.Origin, p.Record.Meta.Priority,
			p.Record.Meta.EffectiveType(), scope, p.Authorized, p.Record.Title)
	}
	return tw.Flush()
}

func apply(ctx context.Context, cmd *cli.Command) error {
	id := cmd.Args().First()
	if id == "" {
		return fmt.Errorf("usage: apply <update-id>")
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := cliLogger(cfg)
	svc, db, _, err := internal.BuildService(cfg, logger, nil)
	if err != nil {
		return err
	}
	defer db.Close()

	// Advisory lease so overlapping operator sessions don't race apply.
	owner := cfg.Agent.Name
	if _, err := session.Acquire(cfg.Session.LeasePath, owner, cfg.Session.TTL); err != nil {
		return fmt.Errorf("session lease: %w", err)
	}
	defer func() {
		if err := session.Release(cfg.Session.LeasePath, owner); err != nil {
			logger.Warn("lease release failed", slog.String("error", err.Error()))
		}
	}()

	entry, err := svc.Apply(ctx, id)
	if err != nil {
		return err
	}
	fmt.Printf("applied %s (type %s) at %s\n", entry.ID, entry.UpdateType, entry.AppliedAt.Format("2006-01-02 15:04:05"))
	return nil
}

func skip(ctx context.Context, cmd *cli.Command) error {
	id := cmd.Args().First()
	if id == "" {
		return fmt.Errorf("usage: skip <update-id>")
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := cliLogger(cfg)
	svc, db, _, err := internal.BuildService(cfg, logger, nil)
	if err != nil {
		return err
	}
	defer db.Close()

	p, err := svc.Skip(ctx, id)
	if err != nil {
		return err
	}
	fmt.Printf("skipped %s; it will resurface on the next discovery pass\n", p.Record.ID)
	return nil
}

func publish(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := cliLogger(cfg)
	svc, db, _, err := internal.BuildService(cfg, logger, nil)
	if err != nil {
		return err
	}
	defer db.Close()

	meta := update.Meta{
		CreatedBy: cmd.String("created-by"),
		Date:      cmd.String("date"),
		Priority:  cmd.String("priority"),
		Type:      cmd.String("type"),
		Scope:     cmd.String("scope"),
	}
	if meta.CreatedBy == "" {
		meta.CreatedBy = cfg.Agent.Name
	}
	files := cmd.StringSlice("file")
	var fileList strings.Builder
	for _, f := range files {
		fmt.Fprintf(&fileList, "- %s\n", f)
	}
	sections := map[string]string{
		"What to do":     cmd.String("what"),
		"Files affected": strings.TrimRight(fileList.String(), "\n"),
		"Why":            cmd.String("why"),
		"Verification":   cmd.String("verify"),
	}
	rec, err := svc.Publish(ctx, meta, cmd.String("title"), sections)
	if err != nil {
		return err
	}
	fmt.Printf("published %s at %s\n", rec.ID, rec.Path)
	return nil
}

func main() {
	configFlag := &cli.StringFlag{
		Name:        "config",
		Aliases:     []string{"c"},
		Usage:       "Path to config file",
		DefaultText: "config/config.yaml",
		Value:       "config/config.yaml",
		Sources:     cli.EnvVars("APP_CONFIG_FILE"),
	}

	cmd := &cli.Command{
		Name:  "raido",
		Usage: "File-based update queue for coordinating AI coding-agent sessions",
		Flags: []cli.Flag{configFlag},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API, SSE broker, and store watchers",
				Action: serve,
			},
			{
				Name:   "mcp",
				Usage:  "Run the MCP server on stdin/stdout for agent sessions",
				Action: mcpCmd,
			},
			{
				Name:   "discover",
				Usage:  "List all pending updates for this project",
				Action: discover,
			},
			{
				Name:      "apply",
				Usage:     "Mark an update as applied and remove it from the queue",
				ArgsUsage: "<update-id>",
				Action:    apply,
			},
			{
				Name:      "skip",
				Usage:     "Defer an update so it resurfaces on the next pass",
				ArgsUsage: "<update-id>",
				Action:    skip,
			},
			{
				Name:   "publish",
				Usage:  "Publish a new update record into the project-local queue",
				Action: publish,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "title", Required: true, Usage: "Human-readable title"},
					&cli.StringFlag{Name: "created-by", Usage: "Author identity (defaults to agent name)"},
					&cli.StringFlag{Name: "date", Usage: "ISO date (defaults to today)"},
					&cli.StringFlag{Name: "priority", Usage: "low, normal, high, or urgent"},
					&cli.StringFlag{Name: "type", Usage: "Free-form category (schema, config, ...)"},
					&cli.StringFlag{Name: "scope", Usage: "planning, implementation, or mixed"},
					&cli.StringFlag{Name: "what", Required: true, Usage: "Instructions for the consuming agent"},
					&cli.StringSliceFlag{Name: "file", Usage: "Affected path (repeatable)"},
					&cli.StringFlag{Name: "why", Required: true, Usage: "Rationale for the change"},
					&cli.StringFlag{Name: "verify", Required: true, Usage: "How to check the change landed"},
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
