package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/atenea-ai/agent-engine/internal/rag"
)

// RAGMetricsRepository writes rag_metrics rows — always one per
// optimized_rag node execution, even on exception (spec §4.7 step 8).
type RAGMetricsRepository struct {
	db *sql.DB
}

func NewRAGMetricsRepository(db *sql.DB) *RAGMetricsRepository {
	return &RAGMetricsRepository{db: db}
}

func (r *RAGMetricsRepository) Record(ctx context.Context, rec rag.MetricsRecord) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO rag_metrics (
			execution_id, business_id, original_query, queries_generated, queries_executed,
			search_strategy, semantic_weight, keyword_weight, threshold_used,
			chunks_found, chunks_after_reranking, reranking_applied, relevance_validation_passed,
			search_duration_ms, reranking_duration_ms, total_duration_ms
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`,
		rec.ExecutionID, rec.BusinessID, rec.OriginalQuery, rec.QueriesGenerated, rec.QueriesExecuted,
		rec.SearchStrategy, rec.SemanticWeight, rec.KeywordWeight, rec.ThresholdUsed,
		rec.ChunksFound, rec.ChunksAfterReranking, rec.RerankingApplied, rec.RelevanceValidationPassed,
		rec.SearchDurationMS, rec.RerankingDurationMS, rec.TotalDurationMS,
	)
	if err != nil {
		return fmt.Errorf("store: insert rag_metrics: %w", err)
	}
	return nil
}
