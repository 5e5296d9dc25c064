package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/lib/pq" // postgres driver

	"github.com/dagrun/dagrun/pkg/models"
)

// Postgres stores workflows and executions in PostgreSQL. Graph structure
// and payloads live in JSONB columns; the engine never queries inside
// them.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	p := &Postgres{db: db}

	if err := p.migrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return p, nil
}

func (p *Postgres) migrate(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS workflows (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'draft',
			org_id TEXT NOT NULL DEFAULT '',
			nodes JSONB NOT NULL DEFAULT '[]',
			edges JSONB NOT NULL DEFAULT '[]',
			variables JSONB NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS executions (
			id TEXT PRIMARY KEY,
			workflow_id TEXT NOT NULL,
			org_id TEXT NOT NULL DEFAULT '',
			user_id TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			input JSONB NOT NULL DEFAULT '{}',
			output JSONB NOT NULL DEFAULT '{}',
			error TEXT NOT NULL DEFAULT '',
			prompt_tokens INTEGER NOT NULL DEFAULT 0,
			completion_tokens INTEGER NOT NULL DEFAULT 0,
			total_tokens INTEGER NOT NULL DEFAULT 0,
			cost DOUBLE PRECISION NOT NULL DEFAULT 0,
			duration_ms BIGINT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			started_at TIMESTAMPTZ,
			completed_at TIMESTAMPTZ
		)`,
		`CREATE INDEX IF NOT EXISTS idx_executions_status ON executions (status)`,
		`CREATE TABLE IF NOT EXISTS output_files (
			id TEXT PRIMARY KEY,
			execution_id TEXT NOT NULL REFERENCES executions (id),
			node_id TEXT NOT NULL DEFAULT '',
			name TEXT NOT NULL,
			url TEXT NOT NULL,
			mime_type TEXT NOT NULL DEFAULT '',
			size_bytes BIGINT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
	}

	for _, stmt := range statements {
		if _, err := p.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}

	return nil
}

func (p *Postgres) Workflows(ctx context.Context) ([]*models.WorkflowGraph, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT id, name, description, status, org_id, nodes, edges, variables, created_at, updated_at
		 FROM workflows ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.WorkflowGraph

	for rows.Next() {
		w, err := scanWorkflow(rows)
		if err != nil {
			return nil, err
		}

		out = append(out, w)
	}

	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWorkflow(row rowScanner) (*models.WorkflowGraph, error) {
	var (
		w         models.WorkflowGraph
		nodes     []byte
		edges     []byte
		variables []byte
	)

	err := row.Scan(&w.ID, &w.Name, &w.Description, &w.Status, &w.OrgID,
		&nodes, &edges, &variables, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(nodes, &w.Nodes); err != nil {
		return nil, fmt.Errorf("failed to decode nodes: %w", err)
	}

	if err := json.Unmarshal(edges, &w.Edges); err != nil {
		return nil, fmt.Errorf("failed to decode edges: %w", err)
	}

	if err := json.Unmarshal(variables, &w.Variables); err != nil {
		return nil, fmt.Errorf("failed to decode variables: %w", err)
	}

	return &w, nil
}

func (p *Postgres) SaveWorkflow(ctx context.Context, workflow *models.WorkflowGraph) error {
	nodes, err := json.Marshal(workflow.Nodes)
	if err != nil {
		return err
	}

	edges, err := json.Marshal(workflow.Edges)
	if err != nil {
		return err
	}

	variables, err := json.Marshal(workflow.Variables)
	if err != nil {
		return err
	}

	if workflow.Variables == nil {
		variables = []byte("{}")
	}

	_, err = p.db.ExecContext(ctx,
		`INSERT INTO workflows (id, name, description, status, org_id, nodes, edges, variables, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())
		 ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			status = EXCLUDED.status,
			org_id = EXCLUDED.org_id,
			nodes = EXCLUDED.nodes,
			edges = EXCLUDED.edges,
			variables = EXCLUDED.variables,
			updated_at = now()`,
		workflow.ID, workflow.Name, workflow.Description, workflow.Status, workflow.OrgID,
		nodes, edges, variables)

	return err
}

func (p *Postgres) WorkflowByID(ctx context.Context, id string) (*models.WorkflowGraph, error) {
	row := p.db.QueryRowContext(ctx,
		`SELECT id, name, description, status, org_id, nodes, edges, variables, created_at, updated_at
		 FROM workflows WHERE id = $1`, id)

	w, err := scanWorkflow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrWorkflowNotFound, id)
	}

	return w, err
}

func (p *Postgres) PublishedWorkflowByID(ctx context.Context, id string) (*models.WorkflowGraph, error) {
	row := p.db.QueryRowContext(ctx,
		`SELECT id, name, description, status, org_id, nodes, edges, variables, created_at, updated_at
		 FROM workflows WHERE id = $1 AND status = $2`, id, models.WorkflowStatusPublished)

	w, err := scanWorkflow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return p.WorkflowByID(ctx, id)
	}

	return w, err
}

func (p *Postgres) DeleteWorkflow(ctx context.Context, id string) error {
	result, err := p.db.ExecContext(ctx, `DELETE FROM workflows WHERE id = $1`, id)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrWorkflowNotFound, id)
	}

	return nil
}

func (p *Postgres) CreateExecution(ctx context.Context, execution *models.Execution) error {
	input, err := json.Marshal(execution.Input)
	if err != nil {
		return err
	}

	output, err := json.Marshal(execution.Output)
	if err != nil {
		return err
	}

	_, err = p.db.ExecContext(ctx,
		`INSERT INTO executions (id, workflow_id, org_id, user_id, status, input, output, error,
			prompt_tokens, completion_tokens, total_tokens, cost, duration_ms, created_at, started_at, completed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, now(), $14, $15)`,
		execution.ID, execution.WorkflowID, execution.OrgID, execution.UserID, execution.Status,
		input, output, execution.Error,
		execution.PromptTokens, execution.CompletionTokens, execution.TotalTokens,
		execution.Cost, execution.DurationMs, execution.StartedAt, execution.CompletedAt)

	return err
}

func (p *Postgres) UpdateExecution(ctx context.Context, execution *models.Execution) error {
	output, err := json.Marshal(execution.Output)
	if err != nil {
		return err
	}

	result, err := p.db.ExecContext(ctx,
		`UPDATE executions SET status = $2, output = $3, error = $4,
			prompt_tokens = $5, completion_tokens = $6, total_tokens = $7,
			cost = $8, duration_ms = $9, started_at = $10, completed_at = $11
		 WHERE id = $1`,
		execution.ID, execution.Status, output, execution.Error,
		execution.PromptTokens, execution.CompletionTokens, execution.TotalTokens,
		execution.Cost, execution.DurationMs, execution.StartedAt, execution.CompletedAt)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrExecutionNotFound, execution.ID)
	}

	return nil
}

func (p *Postgres) ExecutionByID(ctx context.Context, id string) (*models.Execution, error) {
	row := p.db.QueryRowContext(ctx,
		`SELECT id, workflow_id, org_id, user_id, status, input, output, error,
			prompt_tokens, completion_tokens, total_tokens, cost, duration_ms, created_at, started_at, completed_at
		 FROM executions WHERE id = $1`, id)

	e, err := scanExecution(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrExecutionNotFound, id)
	}

	if err != nil {
		return nil, err
	}

	files, err := p.outputFiles(ctx, id)
	if err != nil {
		return nil, err
	}

	e.OutputFiles = files

	return e, nil
}

func scanExecution(row rowScanner) (*models.Execution, error) {
	var (
		e      models.Execution
		input  []byte
		output []byte
	)

	err := row.Scan(&e.ID, &e.WorkflowID, &e.OrgID, &e.UserID, &e.Status, &input, &output, &e.Error,
		&e.PromptTokens, &e.CompletionTokens, &e.TotalTokens, &e.Cost, &e.DurationMs,
		&e.CreatedAt, &e.StartedAt, &e.CompletedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(input, &e.Input); err != nil {
		return nil, fmt.Errorf("failed to decode input: %w", err)
	}

	if err := json.Unmarshal(output, &e.Output); err != nil {
		return nil, fmt.Errorf("failed to decode output: %w", err)
	}

	return &e, nil
}

func (p *Postgres) NonTerminalExecutions(ctx context.Context) ([]*models.Execution, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT id, workflow_id, org_id, user_id, status, input, output, error,
			prompt_tokens, completion_tokens, total_tokens, cost, duration_ms, created_at, started_at, completed_at
		 FROM executions WHERE status IN ($1, $2)`,
		models.ExecutionStatusPending, models.ExecutionStatusRunning)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Execution

	for rows.Next() {
		e, err := scanExecution(rows)
		if err != nil {
			return nil, err
		}

		out = append(out, e)
	}

	return out, rows.Err()
}

func (p *Postgres) AppendOutputFile(ctx context.Context, file *models.OutputFile) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO output_files (id, execution_id, node_id, name, url, mime_type, size_bytes, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, now())`,
		file.ID, file.ExecutionID, file.NodeID, file.Name, file.URL, file.MimeType, file.SizeBytes)

	return err
}

func (p *Postgres) outputFiles(ctx context.Context, executionID string) ([]models.OutputFile, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT id, execution_id, node_id, name, url, mime_type, size_bytes, created_at
		 FROM output_files WHERE execution_id = $1 ORDER BY created_at`, executionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.OutputFile

	for rows.Next() {
		var f models.OutputFile

		err := rows.Scan(&f.ID, &f.ExecutionID, &f.NodeID, &f.Name, &f.URL, &f.MimeType, &f.SizeBytes, &f.CreatedAt)
		if err != nil {
			return nil, err
		}

		out = append(out, f)
	}

	return out, rows.Err()
}

func (p *Postgres) HealthCheck(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

func (p *Postgres) Close(_ context.Context) error {
	return p.db.Close()
}
