// Package reconcile repairs execution records that can no longer make
// progress: runs interrupted by a crash or restart, and runs stuck past a
// hard deadline.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dagrun/dagrun/pkg/models"
	"github.com/dagrun/dagrun/pkg/persistence"
)

// DefaultStuckAfter is the age past which a non-terminal execution is
// considered abandoned by the periodic sweep.
const DefaultStuckAfter = 30 * time.Minute

const interruptedMessage = "execution interrupted by service restart"

type Reconciler struct {
	store      persistence.Persistence
	logger     *slog.Logger
	stuckAfter time.Duration
}

func New(store persistence.Persistence, logger *slog.Logger, stuckAfter time.Duration) *Reconciler {
	if stuckAfter <= 0 {
		stuckAfter = DefaultStuckAfter
	}

	return &Reconciler{store: store, logger: logger, stuckAfter: stuckAfter}
}

// SweepInterrupted fails every non-terminal execution. Run at startup: the
// in-process engine cannot be executing anything yet, so whatever is still
// PENDING or RUNNING was orphaned by the previous process.
func (r *Reconciler) SweepInterrupted(ctx context.Context) (int, error) {
	return r.sweep(ctx, func(*models.Execution) bool { return true }, interruptedMessage)
}

// SweepStuck fails non-terminal executions older than the stuck deadline.
// Run periodically while the service is up.
func (r *Reconciler) SweepStuck(ctx context.Context) (int, error) {
	cutoff := time.Now().UTC().Add(-r.stuckAfter)

	return r.sweep(ctx, func(e *models.Execution) bool {
		started := e.CreatedAt
		if e.StartedAt != nil {
			started = *e.StartedAt
		}

		return started.Before(cutoff)
	}, fmt.Sprintf("execution exceeded the %s deadline", r.stuckAfter))
}

func (r *Reconciler) sweep(ctx context.Context, eligible func(*models.Execution) bool, message string) (int, error) {
	executions, err := r.store.NonTerminalExecutions(ctx)
	if err != nil {
		return 0, fmt.Errorf("list non-terminal executions: %w", err)
	}

	repaired := 0

	for _, execution := range executions {
		if !eligible(execution) {
			continue
		}

		now := time.Now().UTC()
		execution.Status = models.ExecutionStatusFailed
		execution.Error = message
		execution.CompletedAt = &now

		if err := r.store.UpdateExecution(ctx, execution); err != nil {
			r.logger.Error("reconcile execution", "execution_id", execution.ID, "error", err)

			continue
		}

		r.logger.Warn("execution reconciled to failed",
			"execution_id", execution.ID, "workflow_id", execution.WorkflowID, "reason", message)
		repaired++
	}

	return repaired, nil
}

// RunPeriodic sweeps stuck executions on the given interval until the
// context ends.
func (r *Reconciler) RunPeriodic(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.SweepStuck(ctx); err != nil {
				r.logger.Error("periodic reconcile", "error", err)
			}
		}
	}
}
