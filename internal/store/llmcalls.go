package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/atenea-ai/agent-engine/internal/llm"
)

// LLMCallRepository writes llm_calls rows. It implements llm.Recorder so
// internal/llm.Tracker can persist through this repository without
// internal/llm importing internal/store.
type LLMCallRepository struct {
	db *sql.DB
}

func NewLLMCallRepository(db *sql.DB) *LLMCallRepository {
	return &LLMCallRepository{db: db}
}

// RecordLLMCall implements llm.Recorder.
func (r *LLMCallRepository) RecordLLMCall(ctx context.Context, rec llm.LLMCallRecord) error {
	var executionID any
	if rec.ExecutionID != "" {
		executionID = rec.ExecutionID
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO llm_calls (
			business_id, execution_id, operation_type, operation_context, provider, model,
			input_tokens, output_tokens, cached_tokens, total_tokens,
			input_cost, output_cost, cached_cost, total_cost,
			duration_ms, reasoning_effort, cache_hit, error
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)`,
		rec.BusinessID, executionID, rec.OperationType, rec.OperationContext, rec.Provider, rec.Model,
		rec.InputTokens, rec.OutputTokens, rec.CachedTokens, rec.TotalTokens,
		rec.InputCost, rec.OutputCost, rec.CachedCost, rec.TotalCost,
		rec.DurationMS, rec.ReasoningEffort, rec.CacheHit, nullableString(rec.Error),
	)
	if err != nil {
		return fmt.Errorf("store: insert llm_calls: %w", err)
	}
	return nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
