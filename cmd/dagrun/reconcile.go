package main

import (
	"context"
	"time"

	cli "github.com/urfave/cli/v3"

	"github.com/dagrun/dagrun/pkg/log"
	"github.com/dagrun/dagrun/pkg/persistence"
	"github.com/dagrun/dagrun/pkg/reconcile"
)

func reconcileCommand() *cli.Command {
	return &cli.Command{
		Name:  "reconcile",
		Usage: "Fail stuck executions and exit",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "stuck-after",
				Usage: "Age past which a non-terminal execution is failed",
				Value: reconcile.DefaultStuckAfter,
			},
			&cli.BoolFlag{
				Name:  "all",
				Usage: "Fail every non-terminal execution regardless of age",
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))
			logger := log.WithModule("reconcile")

			store, err := persistence.FromURL(ctx, command.String("database-url"))
			if err != nil {
				return err
			}

			defer func() {
				if err := store.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "close persistence", "error", err)
				}
			}()

			var stuckAfter time.Duration
			if !command.Bool("all") {
				stuckAfter = command.Duration("stuck-after")
			}

			reconciler := reconcile.New(store, logger, stuckAfter)

			var repaired int
			if command.Bool("all") {
				repaired, err = reconciler.SweepInterrupted(ctx)
			} else {
				repaired, err = reconciler.SweepStuck(ctx)
			}

			if err != nil {
				return err
			}

			logger.InfoContext(ctx, "reconcile finished", "repaired", repaired)

			return nil
		},
	}
}
