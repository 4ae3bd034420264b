package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/tiddlyhal/internal"
	pkgconfig "github.com/starford/tiddlyhal/pkg/config"
)

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.Load(cmd.String("config"), cfg); err != nil {
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

func serveMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.RunMCP(ctx, internal.WithConfig(cfg))
}

func renderDoc(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	req := internal.RenderRequest{
		Collection: cmd.Args().First(),
		Kind:       cmd.String("kind"),
		Name:       cmd.String("name"),
		Title:      cmd.String("title"),
		Revision:   int(cmd.Int("revision")),
		Revisions:  cmd.Bool("revisions"),
		Search:     cmd.String("search"),
	}
	return internal.RunRender(ctx, req, os.Stdout, internal.WithConfig(cfg))
}

func main() {
	cmd := &cli.Command{
		Name:   "tiddlyhal",
		Usage:  "Serve TiddlyWeb bags, recipes and tiddlers as HAL hypermedia",
		Action: serve,
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
				Usage:  "Start the HTTP server",
				Action: serve,
			},
			{
				Name:   "mcp",
				Usage:  "Serve MCP tools over stdio",
				Action: serveMCP,
			},
			{
				Name:      "render",
				Usage:     "Print one HAL document from the vault",
				ArgsUsage: "[bags|recipes]",
				Action:    renderDoc,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "kind", Aliases: []string{"k"}, Usage: "Container kind: bag or recipe"},
					&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Usage: "Container name"},
					&cli.StringFlag{Name: "title", Aliases: []string{"t"}, Usage: "Tiddler title"},
					&cli.IntFlag{Name: "revision", Aliases: []string{"r"}, Usage: "Tiddler revision"},
					&cli.BoolFlag{Name: "revisions", Usage: "List the tiddler's revisions"},
					&cli.StringFlag{Name: "search", Aliases: []string{"q"}, Usage: "Search query"},
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
