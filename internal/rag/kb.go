// Package rag implements the Knowledge Base Client contract, multi-query
// expansion, and the Optimized RAG node (spec §4.4, §4.7), grounded in
// original_source/app/services/knowledge_base.py and
// original_source/app/services/agent_engine/nodes/optimized_rag.py, with
// the concurrent fan-out pattern adapted from the teacher's
// pkg/rag/multiquery.go (MultiQueryExpander/CombineResults).
package rag

import (
	"context"
	"time"
)

// SearchResult is one retrieved chunk (spec §4.4).
type SearchResult struct {
	ID            string
	DocumentID    string
	ChunkIndex    int
	Content       string
	Metadata      map[string]any
	SemanticScore float64
	KeywordScore  float64
	CombinedScore float64
	RerankScore   *float64 // nil when the chunk was never passed through the reranker
}

// Stats is the per-business knowledge base summary (spec §4.4).
type Stats struct {
	TotalDocuments       int
	TotalChunks          int
	AvgChunkChars        float64
	LastEmbeddingCreated *time.Time
}

// Embedder is the opaque embeddings-generation collaborator (spec §1:
// "we consume an opaque Embedder interface").
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// KnowledgeBase is the contract the Optimized RAG node depends on (spec
// §4.4). The concrete implementation (internal/store.PostgresKB) is an
// external collaborator from CORE's point of view.
type KnowledgeBase interface {
	// SemanticSearch performs cosine-similarity nearest-neighbor search.
	SemanticSearch(ctx context.Context, businessID, query string, k int, threshold float64) ([]SearchResult, error)
	// HybridSearch combines cosine similarity with Spanish full-text rank.
	HybridSearch(ctx context.Context, businessID, query string, k int, semanticWeight, keywordWeight, threshold float64) ([]SearchResult, error)
	Stats(ctx context.Context, businessID string) (Stats, error)
}
