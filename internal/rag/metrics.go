package rag

import "context"

// MetricsRecord is the rag_metrics row (spec §3), defined here (not in
// internal/store) so the Optimized RAG node depends only on this
// package's Recorder contract, the way the Knowledge Base Client and
// Embedder are abstract collaborators.
type MetricsRecord struct {
	ExecutionID                string
	BusinessID                 string
	OriginalQuery              string
	QueriesGenerated           int
	QueriesExecuted            int
	SearchStrategy             string
	SemanticWeight             float64
	KeywordWeight              float64
	ThresholdUsed              float64
	ChunksFound                int
	ChunksAfterReranking       *int
	RerankingApplied           bool
	RelevanceValidationPassed  *bool
	SearchDurationMS           int64
	RerankingDurationMS        *int64
	TotalDurationMS            int64
}

// Recorder persists RAG Metrics Records. Implemented by internal/store.
type Recorder interface {
	Record(ctx context.Context, rec MetricsRecord) error
}

// MetricsSink receives per-execution observations for Prometheus export.
type MetricsSink interface {
	ObserveRAG(strategy string, seconds float64, chunksFound int, rerankApplied, fellBack bool)
}
