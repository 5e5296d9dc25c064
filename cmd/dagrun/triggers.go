package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/dagrun/dagrun/pkg/protocol"
	queuetrigger "github.com/dagrun/dagrun/pkg/triggers/queue"
	"github.com/dagrun/dagrun/pkg/triggers/schedule"
)

type triggerSpec struct {
	Type   string         `json:"type"`
	Config map[string]any `json:"config"`
}

// startTriggers reads the trigger definitions file and starts each trigger
// against the queue. Returns the started triggers for shutdown.
func startTriggers(ctx context.Context, path string, logger *slog.Logger, callback protocol.TriggerCallback) ([]protocol.Trigger, error) {
	if path == "" {
		return nil, nil
	}

	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read triggers file: %w", err)
	}

	var specs []triggerSpec
	if err := json.Unmarshal(payload, &specs); err != nil {
		return nil, fmt.Errorf("parse triggers file: %w", err)
	}

	var triggers []protocol.Trigger

	for i, spec := range specs {
		var (
			trigger protocol.Trigger
			err     error
		)

		switch spec.Type {
		case "queue":
			trigger, err = queuetrigger.NewTrigger(ctx, spec.Config, logger)
		case "schedule":
			trigger, err = schedule.NewTrigger(spec.Config, logger)
		default:
			err = fmt.Errorf("unknown trigger type %q", spec.Type)
		}

		if err != nil {
			stopTriggers(ctx, triggers, logger)

			return nil, fmt.Errorf("trigger %d: %w", i, err)
		}

		if err := trigger.Start(ctx, callback); err != nil {
			stopTriggers(ctx, triggers, logger)

			return nil, fmt.Errorf("start trigger %d: %w", i, err)
		}

		triggers = append(triggers, trigger)
	}

	return triggers, nil
}

func stopTriggers(ctx context.Context, triggers []protocol.Trigger, logger *slog.Logger) {
	for _, t := range triggers {
		if err := t.Stop(ctx); err != nil {
			logger.ErrorContext(ctx, "stop trigger", "error", err)
		}
	}
}
