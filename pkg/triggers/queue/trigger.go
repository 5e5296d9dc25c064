// Package queue provides a Redis-backed trigger: messages pushed onto a
// list become queued workflow executions.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/dagrun/dagrun/pkg/protocol"
)

const popTimeout = time.Second

type Trigger struct {
	WorkflowID string
	OrgID      string
	UserID     string
	Queue      string
	Connection map[string]string

	client   redis.UniversalClient
	callback protocol.TriggerCallback
	logger   *slog.Logger
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

func NewTrigger(ctx context.Context, config map[string]any, logger *slog.Logger) (*Trigger, error) {
	queue, _ := config["queue"].(string)
	workflowID, _ := config["workflow_id"].(string)
	orgID, _ := config["org_id"].(string)
	userID, _ := config["user_id"].(string)

	connection := make(map[string]string)
	if raw, ok := config["connection"].(map[string]any); ok {
		for k, v := range raw {
			if s, ok := v.(string); ok {
				connection[k] = s
			}
		}
	}

	t := &Trigger{
		WorkflowID: workflowID,
		OrgID:      orgID,
		UserID:     userID,
		Queue:      queue,
		Connection: connection,
		stopCh:     make(chan struct{}),
		logger: logger.With(
			"module", "queue_trigger",
			"queue", queue,
			"workflow_id", workflowID,
		),
	}

	if err := t.Validate(ctx); err != nil {
		return nil, err
	}

	return t, nil
}

func (t *Trigger) Validate(_ context.Context) error {
	if t.Queue == "" {
		return errors.New("queue trigger requires a queue name")
	}

	if t.WorkflowID == "" {
		return errors.New("queue trigger requires a workflow id")
	}

	return nil
}

func (t *Trigger) Start(ctx context.Context, callback protocol.TriggerCallback) error {
	t.logger.InfoContext(ctx, "starting queue trigger")
	t.callback = callback

	if err := t.connect(ctx); err != nil {
		return fmt.Errorf("connect queue trigger: %w", err)
	}

	t.wg.Add(1)

	go t.consume(ctx)

	return nil
}

func (t *Trigger) connect(ctx context.Context) error {
	addr := t.Connection["addr"]
	if addr == "" {
		addr = "localhost:6379"
	}

	db := 0

	if dbStr := t.Connection["db"]; dbStr != "" {
		parsed, err := strconv.Atoi(dbStr)
		if err != nil {
			return fmt.Errorf("invalid db value %q: %w", dbStr, err)
		}

		db = parsed
	}

	t.client = redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: t.Connection["password"],
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := t.client.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}

	t.logger.InfoContext(ctx, "connected to redis", "addr", addr, "db", db)

	return nil
}

func (t *Trigger) consume(ctx context.Context) {
	defer t.wg.Done()

	for {
		select {
		case <-t.stopCh:
			return
		case <-ctx.Done():
			return
		default:
			if err := t.processMessage(ctx); err != nil {
				t.logger.ErrorContext(ctx, "process queue message", "error", err)
				time.Sleep(time.Second)
			}
		}
	}
}

func (t *Trigger) processMessage(ctx context.Context) error {
	result, err := t.client.BLPop(ctx, popTimeout, t.Queue).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}

		return fmt.Errorf("pop message: %w", err)
	}

	if len(result) < 2 {
		return nil
	}

	message := result[1]

	var input map[string]any
	if err := json.Unmarshal([]byte(message), &input); err != nil {
		// Non-JSON payloads are wrapped so workflows still see them.
		input = map[string]any{"message": message}
	}

	taskID, err := t.callback(ctx, t.WorkflowID, t.OrgID, t.UserID, input)
	if err != nil {
		return fmt.Errorf("enqueue execution: %w", err)
	}

	t.logger.InfoContext(ctx, "queued execution from message", "task_id", taskID)

	return nil
}

func (t *Trigger) Stop(ctx context.Context) error {
	t.logger.InfoContext(ctx, "stopping queue trigger")

	close(t.stopCh)
	t.wg.Wait()

	if t.client != nil {
		if err := t.client.Close(); err != nil {
			t.logger.ErrorContext(ctx, "close redis client", "error", err)
		}
	}

	return nil
}
