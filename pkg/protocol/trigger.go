package protocol

import "context"

// TriggerCallback enqueues one execution for a workflow. It returns the
// task id assigned by the queue.
type TriggerCallback func(ctx context.Context, workflowID, orgID, userID string, input map[string]any) (string, error)

// Trigger is an external event source (queue consumer, cron schedule) that
// turns events into execution requests.
type Trigger interface {
	Start(ctx context.Context, callback TriggerCallback) error
	Stop(ctx context.Context) error
	Validate(ctx context.Context) error
}
