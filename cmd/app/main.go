package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/ansuz/internal"
	"github.com/starford/ansuz/internal/mcpserver"
	pkgconfig "github.com/starford/ansuz/pkg/config"
)

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	configPath := cmd.String("config")

	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.Load(configPath, cfg); err != nil {
		// Defaults are usable without a config file unless one was
		// explicitly requested.
		if errors.Is(err, os.ErrNotExist) && !cmd.IsSet("config") {
			if vErr := cfg.Validate(); vErr != nil {
				return nil, vErr
			}
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
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

// oneShot loads config, builds the pipeline, and runs fn against it.
func oneShot(ctx context.Context, cmd *cli.Command, fn func(ctx context.Context, p *internal.Pipeline) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger := internal.NewLogger(slog.LevelWarn)
	pipeline, err := internal.BuildPipeline(cfg, logger)
	if err != nil {
		return err
	}
	defer pipeline.Close()

	return fn(ctx, pipeline)
}

func annotate(ctx context.Context, cmd *cli.Command) error {
	path := cmd.Args().First()
	force := cmd.Bool("force")
	all := cmd.Bool("all")
	if path == "" && !all {
		return fmt.Errorf("usage: %s <note-path> (or --all [dir])", cmd.Name)
	}

	return oneShot(ctx, cmd, func(ctx context.Context, p *internal.Pipeline) error {
		if !all {
			res, err := p.Notes.ProcessNote(ctx, path, force)
			if err != nil {
				return err
			}
			fmt.Printf("%s: %s\n", path, res.Message)
			return nil
		}

		notes, err := p.Store.List(path)
		if err != nil {
			return err
		}
		var failed int
		for _, note := range notes {
			res, err := p.Notes.ProcessNote(ctx, note.Path, force)
			if err != nil {
				failed++
				fmt.Printf("%s: error: %v\n", note.Path, err)
				continue
			}
			fmt.Printf("%s: %s\n", note.Path, res.Message)
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d notes failed", failed, len(notes))
		}
		return nil
	})
}

func suggest(ctx context.Context, cmd *cli.Command) error {
	path := cmd.Args().First()
	if path == "" {
		return fmt.Errorf("usage: %s <note-path>", cmd.Name)
	}

	return oneShot(ctx, cmd, func(ctx context.Context, p *internal.Pipeline) error {
		data, err := p.Store.Read(path)
		if err != nil {
			return err
		}
		tags, err := p.Tagger.FetchTags(ctx, string(data))
		if err != nil {
			return err
		}
		for _, tag := range tags {
			fmt.Println(tag)
		}
		return nil
	})
}

func check(ctx context.Context, cmd *cli.Command) error {
	return oneShot(ctx, cmd, func(ctx context.Context, p *internal.Pipeline) error {
		res := p.Tagger.TestConnection(ctx)
		fmt.Println(res.Message)
		if !res.Success {
			return fmt.Errorf("provider check failed")
		}
		return nil
	})
}

func mcpServe(ctx context.Context, cmd *cli.Command) error {
	return oneShot(ctx, cmd, func(_ context.Context, p *internal.Pipeline) error {
		srv := mcpserver.New(p.Store, p.Notes, p.Tagger)
		return srv.ServeStdio()
	})
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
	forceFlag := &cli.BoolFlag{
		Name:  "force",
		Usage: "Add tags even when the note already carries the maximum",
	}

	cmd := &cli.Command{
		Name:   "ansuz",
		Usage:  "AI metadata assistant for Markdown vaults: tag generation, frontmatter enrichment, and change-driven annotation",
		Action: serve,
		Flags:  []cli.Flag{configFlag},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Start the HTTP server and file watcher",
				Action: serve,
				Flags:  []cli.Flag{configFlag},
			},
			{
				Name:      "tag",
				Usage:     "Print tag suggestions for a vault note",
				ArgsUsage: "<note-path>",
				Action:    suggest,
				Flags:     []cli.Flag{configFlag},
			},
			{
				Name:      "annotate",
				Usage:     "Generate metadata for a note and merge it into its frontmatter",
				ArgsUsage: "<note-path>",
				Action:    annotate,
				Flags: []cli.Flag{configFlag, forceFlag,
					&cli.BoolFlag{
						Name:  "all",
						Usage: "Annotate every note under the given directory (vault root when omitted)",
					},
				},
			},
			{
				Name:   "check",
				Usage:  "Verify that the configured AI backend is reachable",
				Action: check,
				Flags:  []cli.Flag{configFlag},
			},
			{
				Name:   "mcp",
				Usage:  "Serve metadata tools over the Model Context Protocol on stdio",
				Action: mcpServe,
				Flags:  []cli.Flag{configFlag},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
