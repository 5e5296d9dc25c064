// Package scheduler executes workflow graphs: it linearizes the graph,
// dispatches nodes to their processors, prunes branches, propagates
// failures, and reports lifecycle events and execution records.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/dagrun/dagrun/pkg/eventbus"
	"github.com/dagrun/dagrun/pkg/events"
	"github.com/dagrun/dagrun/pkg/models"
	"github.com/dagrun/dagrun/pkg/nodes/loop"
	"github.com/dagrun/dagrun/pkg/otelhelper"
	"github.com/dagrun/dagrun/pkg/persistence"
	"github.com/dagrun/dagrun/pkg/protocol"
	"github.com/dagrun/dagrun/pkg/registry"
	"github.com/dagrun/dagrun/pkg/template"
)

type Scheduler struct {
	registry   *registry.Registry
	store      persistence.Persistence
	bus        eventbus.EventBus
	tracer     trace.Tracer
	logger     *slog.Logger
	deps       protocol.Dependencies
	processors map[models.NodeType]protocol.Processor
}

func New(
	reg *registry.Registry,
	store persistence.Persistence,
	bus eventbus.EventBus,
	tracer trace.Tracer,
	logger *slog.Logger,
	deps protocol.Dependencies,
) (*Scheduler, error) {
	processors := make(map[models.NodeType]protocol.Processor)

	for _, t := range reg.Types() {
		proc, err := reg.Create(t, deps)
		if err != nil {
			return nil, fmt.Errorf("create processor for %q: %w", t, err)
		}

		// Container types have no processor.
		if proc != nil {
			processors[t] = proc
		}
	}

	return &Scheduler{
		registry:   reg,
		store:      store,
		bus:        bus,
		tracer:     tracer,
		logger:     logger,
		deps:       deps,
		processors: processors,
	}, nil
}

// ExecuteWorkflow loads the published graph, creates an execution record and
// runs it to completion. The returned execution is terminal.
func (s *Scheduler) ExecuteWorkflow(ctx context.Context, workflowID, orgID, userID, executionID string, input map[string]any) (*models.Execution, error) {
	graph, err := s.store.PublishedWorkflowByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	if err := s.registry.ValidateGraph(graph); err != nil {
		return nil, err
	}

	execution := &models.Execution{
		ID:         executionID,
		WorkflowID: workflowID,
		OrgID:      orgID,
		UserID:     userID,
		Status:     models.ExecutionStatusPending,
		Input:      input,
		CreatedAt:  time.Now().UTC(),
	}

	if err := s.store.CreateExecution(ctx, execution); err != nil {
		return nil, fmt.Errorf("create execution: %w", err)
	}

	return s.Run(ctx, graph, execution)
}

// Run executes a validated graph against an existing execution record and
// drives the record to a terminal status. Node failures never surface as Go
// errors; only infrastructure failures do.
func (s *Scheduler) Run(ctx context.Context, graph *models.WorkflowGraph, execution *models.Execution) (*models.Execution, error) {
	started := time.Now()

	plan, err := BuildPlan(graph)
	if err != nil {
		return s.finishFailed(ctx, execution, started, err.Error())
	}

	if s.tracer != nil {
		var span trace.Span

		ctx, span = otelhelper.StartSpan(ctx, s.tracer, "workflow.execute",
			attribute.String(otelhelper.WorkflowIDKey, graph.ID),
			attribute.String(otelhelper.ExecutionIDKey, execution.ID),
		)
		defer span.End()
	}

	ec := models.NewExecutionContext(execution.ID, graph.ID, graph.Variables, execution.Input)
	scope := template.NewContextScope(graph, ec)

	now := time.Now().UTC()
	execution.Status = models.ExecutionStatusRunning
	execution.StartedAt = &now

	if err := s.store.UpdateExecution(ctx, execution); err != nil {
		return nil, fmt.Errorf("mark execution running: %w", err)
	}

	r := &run{
		scheduler: s,
		graph:     graph,
		plan:      plan,
		ec:        ec,
		scope:     scope,
		execution: execution,
		results:   make(map[string]models.NodeResult, len(plan.Order)),
		skipErr:   make(map[string]bool),
		branches:  make(map[string]string),
	}

	r.publish(ctx, events.ExecutionStarted{
		BaseEvent:  r.base(events.ExecutionStartedEvent),
		TotalNodes: len(plan.Order),
	})

	for _, nodeID := range plan.Order {
		r.step(ctx, plan.Nodes[nodeID])
	}

	return r.finish(ctx, started)
}

// run is the per-execution state of one scheduler pass.
type run struct {
	scheduler *Scheduler
	graph     *models.WorkflowGraph
	plan      *Plan
	ec        *models.ExecutionContext
	scope     *template.ContextScope
	execution *models.Execution
	results   map[string]models.NodeResult
	// skipErr marks nodes skipped because a required upstream failed, as
	// opposed to nodes pruned by branch selection.
	skipErr   map[string]bool
	branches  map[string]string
	completed int
	files     []models.OutputFile
}

type edgeState int

const (
	edgeActive edgeState = iota
	edgePruned
	edgeTainted
)

// classify determines how one incoming edge affects its target.
func (r *run) classify(e *models.Edge) edgeState {
	result, ran := r.results[e.Source]
	if !ran {
		// Source not in the plan (dangling after rewiring): ignore.
		return edgePruned
	}

	switch result.Status {
	case models.ResultStatusError:
		// Notification failures are best-effort and do not block downstream.
		if r.plan.Nodes[e.Source].Type == models.NodeTypeNotification {
			return edgeActive
		}

		return edgeTainted
	case models.ResultStatusSkipped:
		if r.skipErr[e.Source] {
			return edgeTainted
		}

		return edgePruned
	}

	if e.Branch != "" {
		if selected, ok := r.branches[e.Source]; ok && selected != e.Branch {
			return edgePruned
		}
	}

	return edgeActive
}

// step decides whether the node runs or is skipped, executes it, and records
// the outcome.
func (r *run) step(ctx context.Context, node *models.Node) {
	incoming := r.plan.Incoming[node.ID]

	tainted := false
	active := len(incoming) == 0

	for _, e := range incoming {
		switch r.classify(e) {
		case edgeTainted:
			tainted = true
		case edgeActive:
			active = true
		}
	}

	switch {
	case tainted:
		r.record(ctx, node, models.SkippedResult(node.ID), true)

		return
	case !node.Enabled || !active:
		r.record(ctx, node, models.SkippedResult(node.ID), false)

		return
	}

	r.publish(ctx, events.NodeStarted{
		BaseEvent: r.base(events.NodeStartedEvent),
		NodeID:    node.ID,
		NodeName:  node.Name,
		NodeType:  node.Type,
		Progress:  r.progress(),
	})

	if r.scheduler.tracer != nil {
		var span trace.Span

		ctx, span = otelhelper.StartSpan(ctx, r.scheduler.tracer, "node.execute",
			attribute.String(otelhelper.ExecutionIDKey, r.execution.ID),
			attribute.String(otelhelper.NodeIDKey, node.ID),
			attribute.String(otelhelper.NodeTypeKey, string(node.Type)),
			attribute.String(otelhelper.NodeNameKey, node.Name),
		)
		defer span.End()
	}

	var result models.NodeResult

	if node.Type == models.NodeTypeLoop {
		result = r.runLoop(ctx, node)
	} else {
		result = r.dispatch(ctx, node)
	}

	r.record(ctx, node, result, false)
}

func (r *run) dispatch(ctx context.Context, node *models.Node) models.NodeResult {
	proc, ok := r.scheduler.processors[node.Type]
	if !ok {
		return models.ErrorResult(node.ID, fmt.Sprintf("no processor for node type %q", node.Type))
	}

	return proc.Process(ctx, node, protocol.ProcessEnv{
		Context: r.ec,
		Scope:   r.scope,
		Logger:  r.scheduler.logger,
	})
}

// runLoop executes the loop body once per planned iteration. Iteration
// variables and body outputs live in a scope layered over the run scope, so
// they never leak into the shared context and the append-only invariant on
// node outputs holds across iterations.
func (r *run) runLoop(ctx context.Context, node *models.Node) models.NodeResult {
	cfg, err := loop.ParseConfig(node.Config)
	if err != nil {
		return models.ErrorResult(node.ID, err.Error())
	}

	iterations, truncated, err := cfg.Plan(r.scope)
	if err != nil {
		return models.ErrorResult(node.ID, err.Error())
	}

	body := r.plan.LoopBodies[node.ID]
	collected := make([]any, 0, len(iterations))

	for _, it := range iterations {
		layered := &template.LayeredScope{
			Parent: r.scope,
			Vars: map[string]any{
				cfg.ItemVar:  it.Item,
				cfg.IndexVar: it.Index,
			},
		}

		outputs := make(map[string]any, len(body))

		for _, child := range body {
			if !child.Enabled {
				continue
			}

			result := r.dispatchInScope(ctx, child, layered)
			if result.Status == models.ResultStatusError && child.Type != models.NodeTypeNotification {
				return models.ErrorResult(node.ID,
					fmt.Sprintf("iteration %d: node %q: %s", it.Index, child.Name, result.Error))
			}

			if result.Status == models.ResultStatusSuccess {
				layered.Vars[child.Name] = result.Data
				outputs[child.Name] = result.Data
			}

			r.files = append(r.files, result.Files...)
		}

		collected = append(collected, outputs)
	}

	return models.SuccessResult(node.ID, map[string]any{
		"iterations": len(iterations),
		"truncated":  truncated,
		"results":    collected,
	})
}

func (r *run) dispatchInScope(ctx context.Context, node *models.Node, scope template.Scope) models.NodeResult {
	proc, ok := r.scheduler.processors[node.Type]
	if !ok {
		return models.ErrorResult(node.ID, fmt.Sprintf("no processor for node type %q", node.Type))
	}

	return proc.Process(ctx, node, protocol.ProcessEnv{
		Context: r.ec,
		Scope:   scope,
		Logger:  r.scheduler.logger,
	})
}

// record stores a node outcome, feeds successful output into the shared
// context and publishes the progress event.
func (r *run) record(ctx context.Context, node *models.Node, result models.NodeResult, errTaint bool) {
	r.results[node.ID] = result
	r.completed++

	if errTaint {
		r.skipErr[node.ID] = true
	}

	switch result.Status {
	case models.ResultStatusSuccess:
		if branch, ok := result.Data["branch"].(string); ok {
			r.branches[node.ID] = branch
		}

		if err := r.ec.SetNodeOutput(node.ID, result.Data); err != nil {
			r.scheduler.logger.Error("record node output", "node_id", node.ID, "error", err)
		}

		r.files = append(r.files, result.Files...)

		r.publish(ctx, events.NodeCompleted{
			BaseEvent:  r.base(events.NodeCompletedEvent),
			NodeID:     node.ID,
			NodeName:   node.Name,
			Status:     result.Status,
			Data:       result.Data,
			DurationMs: result.DurationMs,
			Progress:   r.progress(),
		})
	case models.ResultStatusError:
		r.scheduler.logger.Warn("node failed",
			"execution_id", r.execution.ID, "node_id", node.ID, "error", result.Error)

		r.publish(ctx, events.NodeErrored{
			BaseEvent:  r.base(events.NodeErroredEvent),
			NodeID:     node.ID,
			NodeName:   node.Name,
			Error:      result.Error,
			DurationMs: result.DurationMs,
			Progress:   r.progress(),
		})
	case models.ResultStatusSkipped:
		r.publish(ctx, events.NodeCompleted{
			BaseEvent: r.base(events.NodeCompletedEvent),
			NodeID:    node.ID,
			NodeName:  node.Name,
			Status:    result.Status,
			Progress:  r.progress(),
		})
	}
}

// finish derives the terminal status. An execution succeeds when its output
// path succeeded: at least one OUTPUT node produced data and none was lost
// to an upstream failure. Graphs without OUTPUT nodes succeed unless any
// blocking node failed.
func (r *run) finish(ctx context.Context, started time.Time) (*models.Execution, error) {
	var (
		hasOutput       bool
		outputSucceeded bool
		outputBlocked   bool
		firstError      string
	)

	output := make(map[string]any)

	for _, nodeID := range r.plan.Order {
		node := r.plan.Nodes[nodeID]
		result := r.results[nodeID]

		if result.Status == models.ResultStatusError && node.Type != models.NodeTypeNotification && firstError == "" {
			firstError = fmt.Sprintf("node %q: %s", node.Name, result.Error)
		}

		if node.Type != models.NodeTypeOutput {
			continue
		}

		hasOutput = true

		switch result.Status {
		case models.ResultStatusSuccess:
			outputSucceeded = true

			for k, v := range result.Data {
				output[k] = v
			}
		case models.ResultStatusError:
			outputBlocked = true
		case models.ResultStatusSkipped:
			if r.skipErr[nodeID] {
				outputBlocked = true
			}
		}
	}

	failed := false

	if hasOutput {
		failed = !outputSucceeded || outputBlocked
	} else {
		failed = firstError != ""
	}

	prompt, completion, total, cost := r.ec.Usage()

	execution := r.execution
	execution.PromptTokens = prompt
	execution.CompletionTokens = completion
	execution.TotalTokens = total
	execution.Cost = cost
	execution.DurationMs = time.Since(started).Milliseconds()

	now := time.Now().UTC()
	execution.CompletedAt = &now

	for i := range r.files {
		file := r.files[i]
		file.ExecutionID = execution.ID

		if err := r.scheduler.store.AppendOutputFile(ctx, &file); err != nil {
			r.scheduler.logger.Error("persist output file", "execution_id", execution.ID, "error", err)
		}

		execution.OutputFiles = append(execution.OutputFiles, file)
	}

	if failed {
		execution.Status = models.ExecutionStatusFailed

		if firstError != "" {
			execution.Error = firstError
		} else {
			execution.Error = "no output node completed"
		}

		r.publish(ctx, events.ExecutionFailed{
			BaseEvent:  r.base(events.ExecutionFailedEvent),
			Error:      execution.Error,
			DurationMs: execution.DurationMs,
		})
	} else {
		execution.Status = models.ExecutionStatusCompleted

		if len(output) > 0 {
			execution.Output = output
		}

		r.publish(ctx, events.ExecutionCompleted{
			BaseEvent:   r.base(events.ExecutionCompletedEvent),
			Output:      execution.Output,
			DurationMs:  execution.DurationMs,
			TotalTokens: total,
			Cost:        cost,
		})
	}

	if err := r.scheduler.store.UpdateExecution(ctx, execution); err != nil {
		return nil, fmt.Errorf("finalize execution: %w", err)
	}

	return execution, nil
}

func (s *Scheduler) finishFailed(ctx context.Context, execution *models.Execution, started time.Time, message string) (*models.Execution, error) {
	now := time.Now().UTC()
	execution.Status = models.ExecutionStatusFailed
	execution.Error = message
	execution.DurationMs = time.Since(started).Milliseconds()
	execution.CompletedAt = &now

	if s.bus != nil {
		event := events.ExecutionFailed{
			BaseEvent: events.BaseEvent{
				ID:          s.bus.GenerateID(),
				Type:        events.ExecutionFailedEvent,
				Timestamp:   now,
				WorkflowID:  execution.WorkflowID,
				ExecutionID: execution.ID,
			},
			Error:      message,
			DurationMs: execution.DurationMs,
		}

		if err := s.bus.Publish(ctx, execution.ID, event); err != nil {
			s.logger.Error("publish event", "execution_id", execution.ID, "error", err)
		}
	}

	if err := s.store.UpdateExecution(ctx, execution); err != nil {
		return nil, fmt.Errorf("finalize execution: %w", err)
	}

	return execution, nil
}

func (r *run) progress() events.Progress {
	return events.Progress{Completed: r.completed, Total: len(r.plan.Order)}
}

func (r *run) base(t events.EventType) events.BaseEvent {
	id := ""
	if r.scheduler.bus != nil {
		id = r.scheduler.bus.GenerateID()
	}

	return events.BaseEvent{
		ID:          id,
		Type:        t,
		Timestamp:   time.Now().UTC(),
		WorkflowID:  r.graph.ID,
		ExecutionID: r.execution.ID,
	}
}

func (r *run) publish(ctx context.Context, event events.Event) {
	if r.scheduler.bus == nil {
		return
	}

	if err := r.scheduler.bus.Publish(ctx, r.execution.ID, event); err != nil {
		r.scheduler.logger.Error("publish event",
			"execution_id", r.execution.ID, "event_type", event.GetType(), "error", err)
	}
}
