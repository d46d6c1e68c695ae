package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// ToolExecutionRepository writes tool_executions rows. See
// SPEC_FULL.md "Supplemented Features" — no node in this engine
// currently calls it; it exists so the Analytics Writers component's
// contract (agent_executions, tool_executions, rag_metrics, llm_calls)
// is complete and forward-compatible with a future tool-calling node.
type ToolExecutionRepository struct {
	db *sql.DB
}

func NewToolExecutionRepository(db *sql.DB) *ToolExecutionRepository {
	return &ToolExecutionRepository{db: db}
}

func (r *ToolExecutionRepository) Record(ctx context.Context, rec ToolExecutionRecord) error {
	inputRaw, err := json.Marshal(rec.Input)
	if err != nil {
		return fmt.Errorf("store: marshal tool input: %w", err)
	}
	outputRaw, err := json.Marshal(rec.Output)
	if err != nil {
		return fmt.Errorf("store: marshal tool output: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO tool_executions (execution_id, tool_name, input, output, duration_ms, error)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		rec.ExecutionID, rec.ToolName, inputRaw, outputRaw, rec.DurationMS, rec.Error)
	if err != nil {
		return fmt.Errorf("store: insert tool_executions: %w", err)
	}
	return nil
}
