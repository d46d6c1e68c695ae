package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// ExecutionRepository persists agent_executions rows. Execution status
// transitions exactly once, from active to one of
// {completed, failed, handoff} (spec §3 invariant).
type ExecutionRepository struct {
	db *sql.DB
}

func NewExecutionRepository(db *sql.DB) *ExecutionRepository {
	return &ExecutionRepository{db: db}
}

// Create inserts the initial active row for a new turn.
func (r *ExecutionRepository) Create(ctx context.Context, id, businessID, conversationID string, startedAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO agent_executions (id, business_id, conversation_id, status, started_at, nodes_visited, tokens_used, cost, metadata)
		VALUES ($1, $2, $3, $4, $5, '{}', 0, 0, '{}')`,
		id, businessID, conversationID, StatusActive, startedAt)
	if err != nil {
		return fmt.Errorf("store: create execution %s: %w", id, err)
	}
	return nil
}

// Complete transitions the execution to its terminal status (completed,
// failed, or handoff) and writes the final accounting fields. This is
// the only write path that may set a terminal status.
func (r *ExecutionRepository) Complete(ctx context.Context, id string, status ExecutionStatus, nodesVisited []string, tokensUsed int, cost float64, execErr *string, metadata map[string]any) error {
	nodesJSON, err := json.Marshal(nodesVisited)
	if err != nil {
		return fmt.Errorf("store: marshal nodes_visited: %w", err)
	}
	metaJSON, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("store: marshal metadata: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		UPDATE agent_executions
		SET status = $2, completed_at = now(), nodes_visited = $3, tokens_used = $4, cost = $5, error = $6, metadata = $7
		WHERE id = $1`,
		id, status, nodesJSON, tokensUsed, cost, execErr, metaJSON)
	if err != nil {
		return fmt.Errorf("store: complete execution %s: %w", id, err)
	}
	return nil
}
