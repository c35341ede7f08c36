package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/quire/internal"
	pkgconfig "github.com/starford/quire/pkg/config"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:        "config",
		Aliases:     []string{"c"},
		Usage:       "Path to config file",
		DefaultText: "quire.yaml",
		Value:       "quire.yaml",
		Sources:     cli.EnvVars("QUIRE_CONFIG_FILE"),
	}
}

// loadConfig reads the config file (if present), applies flag overrides and
// validates the result.
func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	configPath := cmd.String("config")

	cfg := internal.NewDefaultConfig()
	found, err := pkgconfig.LoadOptional(configPath, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if !found {
		slog.Warn("config file not found, using defaults", slog.String("path", configPath))
	}

	if cmd.IsSet("source") {
		cfg.Site.Source = cmd.String("source")
	}
	if cmd.IsSet("output") {
		cfg.Site.Output = cmd.String("output")
	}
	if cmd.IsSet("strict") {
		cfg.Site.Strict = cmd.Bool("strict")
	}
	if cmd.IsSet("port") {
		cfg.App.HTTP.Port = int(cmd.Int("port"))
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func runBuild(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.Build(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("build failed: %w", err)
	}
	return nil
}

func runServe(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.Serve(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("serve failed: %w", err)
	}
	return nil
}

func runMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.ServeMCP(ctx, internal.WithConfig(cfg), internal.WithVersion(version)); err != nil {
		return fmt.Errorf("mcp failed: %w", err)
	}
	return nil
}

func sourceFlag() cli.Flag {
	return &cli.StringFlag{Name: "source", Aliases: []string{"s"}, Usage: "Source directory (overrides site.source)"}
}

// buildFlags returns fresh flag values; urfave/cli keeps parsed state in them.
func buildFlags() []cli.Flag {
	return []cli.Flag{
		configFlag(),
		sourceFlag(),
		&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Output directory (overrides site.output)"},
		&cli.BoolFlag{Name: "strict", Usage: "Fail the build on documents missing from the chapter list"},
	}
}

func newCommand() *cli.Command {
	return &cli.Command{
		Name:    "quire",
		Usage:   "Build a static HTML book from Markdown chapters",
		Version: version,
		Commands: []*cli.Command{
			{
				Name:   "build",
				Usage:  "Build the book once and publish it to the output directory",
				Flags:  buildFlags(),
				Action: runBuild,
			},
			{
				Name:  "serve",
				Usage: "Build, serve locally and rebuild on changes with live reload",
				Flags: append(buildFlags(),
					&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Usage: "HTTP port (overrides app.http.port)"},
				),
				Action: runServe,
			},
			{
				Name:   "mcp",
				Usage:  "Serve the book to MCP clients over stdio",
				Flags:  []cli.Flag{configFlag(), sourceFlag()},
				Action: runMCP,
			},
		},
	}
}

// run executes the CLI and returns the process exit code.
func run(ctx context.Context, args []string) int {
	if err := newCommand().Run(ctx, args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		return 1
	}
	return 0
}

func main() {
	os.Exit(run(context.Background(), os.Args))
}
