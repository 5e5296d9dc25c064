package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	cli "github.com/urfave/cli/v3"
	"go.opentelemetry.io/otel/trace"

	"github.com/dagrun/dagrun/pkg/ai"
	"github.com/dagrun/dagrun/pkg/eventbus"
	"github.com/dagrun/dagrun/pkg/log"
	"github.com/dagrun/dagrun/pkg/notify"
	"github.com/dagrun/dagrun/pkg/otelhelper"
	"github.com/dagrun/dagrun/pkg/persistence"
	"github.com/dagrun/dagrun/pkg/protocol"
	"github.com/dagrun/dagrun/pkg/queue"
	"github.com/dagrun/dagrun/pkg/reconcile"
	"github.com/dagrun/dagrun/pkg/registry"
	"github.com/dagrun/dagrun/pkg/sandbox"
	"github.com/dagrun/dagrun/pkg/scheduler"
	"github.com/dagrun/dagrun/pkg/stream"
	"github.com/dagrun/dagrun/pkg/web"
)

const (
	defaultPort          = 9090
	reconcileInterval    = 5 * time.Minute
	shutdownGracePeriod  = 15 * time.Second
	serviceName          = "dagrun"
	defaultSandboxTarget = ""
)

func serverCommand() *cli.Command {
	return &cli.Command{
		Name:  "server",
		Usage: "Run the API server and execution engine",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus backend (gochannel, kafka)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS"),
			},
			&cli.StringFlag{
				Name:    "sandbox-url",
				Usage:   "Base URL of the code sandbox service",
				Value:   defaultSandboxTarget,
				Sources: cli.EnvVars("SANDBOX_URL"),
			},
			&cli.IntFlag{
				Name:    "workers",
				Usage:   "Concurrent workflow executions",
				Value:   queue.DefaultWorkers,
				Sources: cli.EnvVars("WORKERS"),
			},
			&cli.BoolFlag{
				Name:    "tracing",
				Usage:   "Enable OTLP trace export",
				Sources: cli.EnvVars("TRACING_ENABLED"),
			},
			&cli.StringFlag{
				Name:    "triggers-file",
				Usage:   "JSON file with queue and schedule trigger definitions",
				Sources: cli.EnvVars("TRIGGERS_FILE"),
			},
		},
		Action: runServer,
	}
}

func runServer(ctx context.Context, command *cli.Command) error {
	log.Setup(command.String("log-level"))
	logger := log.WithModule("server")

	logger.InfoContext(ctx, "initializing dagrun")

	store, err := persistence.FromURL(ctx, command.String("database-url"))
	if err != nil {
		return err
	}

	defer func() {
		if err := store.Close(ctx); err != nil {
			logger.ErrorContext(ctx, "close persistence", "error", err)
		}
	}()

	var bus eventbus.EventBus

	switch command.String("event-bus") {
	case "kafka":
		bus, err = eventbus.NewKafkaEventBus(logger, serviceName)
		if err != nil {
			return err
		}
	default:
		bus = eventbus.NewGoChannelEventBus(logger)
	}

	defer func() {
		if err := bus.Close(); err != nil {
			logger.ErrorContext(ctx, "close event bus", "error", err)
		}
	}()

	var tracer trace.Tracer

	if command.Bool("tracing") {
		tracer, err = otelhelper.NewTracer(ctx, serviceName)
		if err != nil {
			return err
		}
	}

	aiRegistry := ai.NewRegistry()
	aiRegistry.Register("openai", ai.NewOpenAI())
	aiRegistry.Register("google", ai.NewGoogle())

	var sb protocol.Sandbox = sandbox.Disabled{}
	if url := command.String("sandbox-url"); url != "" {
		sb = sandbox.NewClient(url)
	}

	deps := protocol.Dependencies{
		Logger:     logger,
		AI:         aiRegistry,
		AIConfigs:  ai.NewEnvConfigSource(),
		Sandbox:    sb,
		Notifier:   notify.NewDispatcher(log.WithModule("notify"), nil),
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}

	reg, err := registry.NewWithDefaults()
	if err != nil {
		return err
	}

	sched, err := scheduler.New(reg, store, bus, tracer, log.WithModule("scheduler"), deps)
	if err != nil {
		return err
	}

	q, err := queue.New(sched, log.WithModule("queue"), queue.Config{
		Workers: int(command.Int("workers")),
	})
	if err != nil {
		return err
	}
	defer q.Shutdown()

	hub := stream.NewHub(log.WithModule("stream"))
	hub.Attach(bus)

	if err := bus.Subscribe(ctx); err != nil {
		return err
	}

	reconciler := reconcile.New(store, log.WithModule("reconcile"), 0)

	// Whatever is still non-terminal was orphaned by the previous process.
	if repaired, err := reconciler.SweepInterrupted(ctx); err != nil {
		logger.ErrorContext(ctx, "startup reconcile", "error", err)
	} else if repaired > 0 {
		logger.WarnContext(ctx, "reconciled interrupted executions", "count", repaired)
	}

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	go reconciler.RunPeriodic(runCtx, reconcileInterval)

	enqueue := func(ctx context.Context, workflowID, orgID, userID string, input map[string]any) (string, error) {
		task, err := q.Enqueue(ctx, workflowID, orgID, userID, input)
		if err != nil {
			return "", err
		}

		return task.ID, nil
	}

	triggers, err := startTriggers(runCtx, command.String("triggers-file"), log.WithModule("triggers"), enqueue)
	if err != nil {
		return err
	}
	defer stopTriggers(context.Background(), triggers, logger)

	handlers := web.NewAPIHandlers(store, reg, q, hub, reconciler, log.WithModule("api"))
	app := web.NewApp(handlers)

	errCh := make(chan error, 1)

	go func() {
		errCh <- app.Listen(":" + strconv.Itoa(int(command.Int("port"))))
	}()

	select {
	case err := <-errCh:
		return err
	case <-runCtx.Done():
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
		defer cancel()

		return app.ShutdownWithContext(shutdownCtx)
	}
}
