// Package schedule provides the cron trigger: a workflow execution is
// queued on every matching tick.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/dagrun/dagrun/pkg/protocol"
)

type Trigger struct {
	WorkflowID string
	OrgID      string
	UserID     string
	CronExpr   string

	cron     *cron.Cron
	callback protocol.TriggerCallback
	logger   *slog.Logger
}

func NewTrigger(config map[string]any, logger *slog.Logger) (*Trigger, error) {
	cronExpr, _ := config["cron"].(string)
	workflowID, _ := config["workflow_id"].(string)
	orgID, _ := config["org_id"].(string)
	userID, _ := config["user_id"].(string)

	t := &Trigger{
		WorkflowID: workflowID,
		OrgID:      orgID,
		UserID:     userID,
		CronExpr:   cronExpr,
		logger: logger.With(
			"module", "schedule_trigger",
			"cron", cronExpr,
			"workflow_id", workflowID,
		),
	}

	if err := t.Validate(context.Background()); err != nil {
		return nil, err
	}

	return t, nil
}

func (t *Trigger) Validate(_ context.Context) error {
	if t.WorkflowID == "" {
		return errors.New("schedule trigger requires a workflow id")
	}

	if t.CronExpr == "" {
		return errors.New("schedule trigger requires a cron expression")
	}

	if _, err := cron.ParseStandard(t.CronExpr); err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}

	return nil
}

func (t *Trigger) Start(ctx context.Context, callback protocol.TriggerCallback) error {
	t.logger.InfoContext(ctx, "starting schedule trigger")
	t.callback = callback

	t.cron = cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DefaultLogger),
		cron.Recover(cron.DefaultLogger),
	))

	if _, err := t.cron.AddFunc(t.CronExpr, t.tick); err != nil {
		return fmt.Errorf("add cron job: %w", err)
	}

	t.cron.Start()

	return nil
}

func (t *Trigger) tick() {
	input := map[string]any{
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	taskID, err := t.callback(context.Background(), t.WorkflowID, t.OrgID, t.UserID, input)
	if err != nil {
		t.logger.Error("queue scheduled execution", "error", err)

		return
	}

	t.logger.Info("queued scheduled execution", "task_id", taskID)
}

func (t *Trigger) Stop(_ context.Context) error {
	t.logger.Info("stopping schedule trigger")

	if t.cron != nil {
		t.cron.Stop()
	}

	return nil
}
