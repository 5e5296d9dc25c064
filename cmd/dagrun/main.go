// Package main provides the dagrun CLI: the API server plus operational
// subcommands.
package main

import (
	"context"
	"os"

	cli "github.com/urfave/cli/v3"

	"github.com/dagrun/dagrun/pkg/log"
)

func main() {
	root := &cli.Command{
		Name:                  "dagrun",
		Usage:                 "Workflow automation engine",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "Storage URL (postgres://, file://, memory://)",
				Value:   "memory://",
				Sources: cli.EnvVars("DATABASE_URL"),
			},
		},
		Commands: []*cli.Command{
			serverCommand(),
			reconcileCommand(),
		},
	}

	if err := root.Run(context.Background(), os.Args); err != nil {
		log.WithModule("main").Error("command failed", "error", err)
		os.Exit(1)
	}
}
