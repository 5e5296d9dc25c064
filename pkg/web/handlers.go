// Package web provides the HTTP API: workflow management, synchronous and
// queued execution, task polling and the execution event stream.
package web

import (
	"errors"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/dagrun/dagrun/pkg/models"
	"github.com/dagrun/dagrun/pkg/persistence"
	"github.com/dagrun/dagrun/pkg/queue"
	"github.com/dagrun/dagrun/pkg/reconcile"
	"github.com/dagrun/dagrun/pkg/registry"
	"github.com/dagrun/dagrun/pkg/stream"
)

type APIHandlers struct {
	store      persistence.Persistence
	registry   *registry.Registry
	queue      *queue.Queue
	hub        *stream.Hub
	reconciler *reconcile.Reconciler
	validator  *validator.Validate
	logger     *slog.Logger
}

func NewAPIHandlers(
	store persistence.Persistence,
	reg *registry.Registry,
	q *queue.Queue,
	hub *stream.Hub,
	reconciler *reconcile.Reconciler,
	logger *slog.Logger,
) *APIHandlers {
	return &APIHandlers{
		store:      store,
		registry:   reg,
		queue:      q,
		hub:        hub,
		reconciler: reconciler,
		validator:  validator.New(validator.WithRequiredStructEnabled()),
		logger:     logger,
	}
}

func (h *APIHandlers) GetWorkflows(c fiber.Ctx) error {
	workflows, err := h.store.Workflows(c.Context())
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{"workflows": workflows})
}

func (h *APIHandlers) CreateWorkflow(c fiber.Ctx) error {
	var req CreateWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "invalid JSON payload: "+err.Error())
	}

	if err := h.validator.Struct(&req); err != nil {
		return badRequest(c, err.Error())
	}

	now := time.Now().UTC()
	workflow := &models.WorkflowGraph{
		ID:          uuid.NewString(),
		Name:        req.Name,
		Description: req.Description,
		Status:      models.WorkflowStatusDraft,
		OrgID:       req.OrgID,
		Nodes:       req.Nodes,
		Edges:       req.Edges,
		Variables:   req.Variables,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	defaultEnabled(workflow.Nodes)

	if err := h.registry.ValidateGraph(workflow); err != nil {
		return badRequest(c, err.Error())
	}

	if err := h.store.SaveWorkflow(c.Context(), workflow); err != nil {
		return internalError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(workflow)
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	workflow, err := h.store.WorkflowByID(c.Context(), c.Params("id"))
	if err != nil {
		if persistence.IsWorkflowNotFound(err) {
			return notFound(c, "workflow not found")
		}

		return internalError(c, err)
	}

	return c.JSON(workflow)
}

func (h *APIHandlers) UpdateWorkflow(c fiber.Ctx) error {
	workflow, err := h.store.WorkflowByID(c.Context(), c.Params("id"))
	if err != nil {
		if persistence.IsWorkflowNotFound(err) {
			return notFound(c, "workflow not found")
		}

		return internalError(c, err)
	}

	if workflow.Status == models.WorkflowStatusPublished {
		return conflict(c, "published workflows are immutable")
	}

	var req UpdateWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "invalid JSON payload: "+err.Error())
	}

	if err := h.validator.Struct(&req); err != nil {
		return badRequest(c, err.Error())
	}

	if req.Name != nil {
		workflow.Name = *req.Name
	}

	if req.Description != nil {
		workflow.Description = *req.Description
	}

	if req.Nodes != nil {
		workflow.Nodes = req.Nodes
		defaultEnabled(workflow.Nodes)
	}

	if req.Edges != nil {
		workflow.Edges = req.Edges
	}

	if req.Variables != nil {
		workflow.Variables = req.Variables
	}

	workflow.UpdatedAt = time.Now().UTC()

	if err := h.registry.ValidateGraph(workflow); err != nil {
		return badRequest(c, err.Error())
	}

	if err := h.store.SaveWorkflow(c.Context(), workflow); err != nil {
		return internalError(c, err)
	}

	return c.JSON(workflow)
}

func (h *APIHandlers) DeleteWorkflow(c fiber.Ctx) error {
	if err := h.store.DeleteWorkflow(c.Context(), c.Params("id")); err != nil {
		if persistence.IsWorkflowNotFound(err) {
			return notFound(c, "workflow not found")
		}

		return internalError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) PublishWorkflow(c fiber.Ctx) error {
	workflow, err := h.store.WorkflowByID(c.Context(), c.Params("id"))
	if err != nil {
		if persistence.IsWorkflowNotFound(err) {
			return notFound(c, "workflow not found")
		}

		return internalError(c, err)
	}

	// Publishing re-validates: drafts can hold half-built graphs, published
	// workflows cannot.
	if err := h.registry.ValidateGraph(workflow); err != nil {
		return badRequest(c, err.Error())
	}

	workflow.Status = models.WorkflowStatusPublished
	workflow.UpdatedAt = time.Now().UTC()

	if err := h.store.SaveWorkflow(c.Context(), workflow); err != nil {
		return internalError(c, err)
	}

	return c.JSON(workflow)
}

// ExecuteWorkflow runs a workflow synchronously, bounded by the queue's sync
// timeout. A still-running task is returned as 202 with its id for polling.
func (h *APIHandlers) ExecuteWorkflow(c fiber.Ctx) error {
	req, orgID, err := h.parseExecuteRequest(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	task, err := h.queue.ExecuteSync(c.Context(), c.Params("id"), orgID, req.UserID, req.Input)
	if err != nil {
		if errors.Is(err, queue.ErrQueueFull) {
			return tooManyRequests(c, "execution queue is full")
		}

		return internalError(c, err)
	}

	if !task.Status.IsTerminal() {
		return c.Status(fiber.StatusAccepted).JSON(TaskResponse{Task: task})
	}

	return c.JSON(h.taskResponse(c, task))
}

// EnqueueWorkflow queues a workflow run and returns immediately.
func (h *APIHandlers) EnqueueWorkflow(c fiber.Ctx) error {
	req, orgID, err := h.parseExecuteRequest(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	task, err := h.queue.Enqueue(c.Context(), c.Params("id"), orgID, req.UserID, req.Input)
	if err != nil {
		if errors.Is(err, queue.ErrQueueFull) {
			return tooManyRequests(c, "execution queue is full")
		}

		return internalError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(TaskResponse{Task: task})
}

func (h *APIHandlers) parseExecuteRequest(c fiber.Ctx) (*ExecuteRequest, string, error) {
	req := &ExecuteRequest{}

	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(req); err != nil {
			return nil, "", err
		}

		if err := h.validator.Struct(req); err != nil {
			return nil, "", err
		}
	}

	return req, c.Get("X-Org-ID"), nil
}

func (h *APIHandlers) GetTask(c fiber.Ctx) error {
	task, err := h.queue.Task(c.Context(), c.Params("id"))
	if err != nil {
		if errors.Is(err, queue.ErrTaskNotFound) {
			return notFound(c, "task not found")
		}

		return internalError(c, err)
	}

	return c.JSON(TaskResponse{Task: task})
}

// GetTaskDetails returns the task plus its execution record once one exists.
func (h *APIHandlers) GetTaskDetails(c fiber.Ctx) error {
	task, err := h.queue.Task(c.Context(), c.Params("id"))
	if err != nil {
		if errors.Is(err, queue.ErrTaskNotFound) {
			return notFound(c, "task not found")
		}

		return internalError(c, err)
	}

	return c.JSON(h.taskResponse(c, task))
}

func (h *APIHandlers) taskResponse(c fiber.Ctx, task *models.Task) TaskResponse {
	resp := TaskResponse{Task: task}

	if task.ExecutionID != "" {
		execution, err := h.store.ExecutionByID(c.Context(), task.ExecutionID)
		if err == nil {
			resp.Execution = execution
		} else if !persistence.IsExecutionNotFound(err) {
			h.logger.Error("load execution for task", "task_id", task.ID, "error", err)
		}
	}

	return resp
}

func (h *APIHandlers) CancelTask(c fiber.Ctx) error {
	task, err := h.queue.Cancel(c.Context(), c.Params("id"))
	if err != nil {
		switch {
		case errors.Is(err, queue.ErrTaskNotFound):
			return notFound(c, "task not found")
		case errors.Is(err, queue.ErrNotCancellable):
			return conflict(c, "only pending tasks can be cancelled")
		default:
			return internalError(c, err)
		}
	}

	return c.JSON(TaskResponse{Task: task})
}

func (h *APIHandlers) GetExecution(c fiber.Ctx) error {
	execution, err := h.store.ExecutionByID(c.Context(), c.Params("id"))
	if err != nil {
		if persistence.IsExecutionNotFound(err) {
			return notFound(c, "execution not found")
		}

		return internalError(c, err)
	}

	return c.JSON(execution)
}

// Reconcile forces a stuck-execution sweep.
func (h *APIHandlers) Reconcile(c fiber.Ctx) error {
	repaired, err := h.reconciler.SweepStuck(c.Context())
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{"repaired": repaired})
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	if err := h.store.HealthCheck(c.Context()); err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status": "unhealthy",
			"error":  err.Error(),
		})
	}

	return c.JSON(fiber.Map{"status": "healthy"})
}

// defaultEnabled turns nodes on unless the payload disabled them through
// config. JSON cannot distinguish an omitted "enabled" from false, and
// payloads omit it far more often than they disable nodes.
func defaultEnabled(nodes []*models.Node) {
	for _, n := range nodes {
		if n.Config == nil {
			n.Config = map[string]any{}
		}

		disabled, _ := n.Config["disabled"].(bool)
		n.Enabled = !disabled
	}
}
