package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/MaherFSF/Yemenactr-sub008/internal"
	pkgconfig "github.com/MaherFSF/Yemenactr-sub008/pkg/config"
)

var version = "dev"

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.Load(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if seed := cmd.String("seed"); seed != "" {
		cfg.Registry.SeedPath = seed
	}
	return cfg, nil
}

// action adapts an internal entry point into a cli action.
func action(entry func(context.Context, ...internal.Option) error, extra ...internal.Option) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		opts := append([]internal.Option{
			internal.WithConfig(cfg),
			internal.WithVersion(version),
		}, extra...)
		if err := entry(ctx, opts...); err != nil {
			return fmt.Errorf("app run error: %w", err)
		}
		return nil
	}
}

func main() {
	// Command output goes to stdout, so logs go to stderr outside serve.
	quiet := internal.WithLogOutput(os.Stderr)

	cmd := &cli.Command{
		Name:    "evidence-router",
		Usage:   "Routes evidence artifacts to platform pages and reports which sources feed each page",
		Version: version,
		Action:  action(internal.Run),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
			&cli.StringFlag{
				Name:    "seed",
				Usage:   "Registry seed file, overrides registry.seed_path",
				Sources: cli.EnvVars("APP_REGISTRY_SEED"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API with SSE events",
				Action: action(internal.Run),
			},
			{
				Name:   "mcp",
				Usage:  "Serve routing and feed-matrix tools over MCP stdio",
				Action: action(internal.RunMCP, quiet),
			},
			{
				Name:   "seed",
				Usage:  "Sync the registry from the seed file and print the report",
				Action: action(internal.Seed, quiet),
			},
			{
				Name:   "export",
				Usage:  "Print the sector feed matrix as CSV",
				Action: action(internal.Export, quiet),
			},
			{
				Name:   "stats",
				Usage:  "Print registry-wide feed matrix statistics as JSON",
				Action: action(internal.Stats, quiet),
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
