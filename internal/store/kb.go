package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/atenea-ai/agent-engine/internal/llm"
	"github.com/atenea-ai/agent-engine/internal/rag"
)

// PostgresKB implements rag.KnowledgeBase against a pgvector-enabled
// Postgres table, grounded directly in
// original_source/app/services/knowledge_base.py's search() and
// hybrid_search() SQL (cosine distance via the <=> operator, Spanish
// full-text rank via ts_rank/plainto_tsquery). Every query filters by
// business_id (spec §4.4 invariant: "all returned chunks belong to
// business_id").
type PostgresKB struct {
	db       *sql.DB
	embedder rag.Embedder
	tracker  *llm.Tracker
}

func NewPostgresKB(db *sql.DB, embedder rag.Embedder, tracker *llm.Tracker) *PostgresKB {
	return &PostgresKB{db: db, embedder: embedder, tracker: tracker}
}

// hasEmbeddings performs the cheap existence check required before
// calling the embedder (spec §4.4: "if the business has zero chunks with
// embeddings, returns an empty result without calling the embedder").
func (k *PostgresKB) hasEmbeddings(ctx context.Context, businessID string) (bool, error) {
	var exists bool
	err := k.db.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM documents_embeddings
			WHERE business_id = $1 AND embedding IS NOT NULL
			LIMIT 1
		)`, businessID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("store: check embeddings existence for %s: %w", businessID, err)
	}
	return exists, nil
}

func (k *PostgresKB) embed(ctx context.Context, businessID, query string) ([]float32, error) {
	call := k.tracker.Start(llm.CallMeta{
		BusinessID:    businessID,
		OperationType: llm.OperationEmbedding,
	})
	vec, err := k.embedder.Embed(ctx, query)
	tokens := llm.EstimateEmbeddingTokens(query)
	call.Record(tokens, 0, 0, false)
	call.Done(ctx, err)
	if err != nil {
		return nil, fmt.Errorf("store: embed query: %w", err)
	}
	return vec, nil
}

// SemanticSearch implements rag.KnowledgeBase.SemanticSearch.
func (k *PostgresKB) SemanticSearch(ctx context.Context, businessID, query string, kResults int, threshold float64) ([]rag.SearchResult, error) {
	if kResults < 1 {
		kResults = 1
	}

	has, err := k.hasEmbeddings(ctx, businessID)
	if err != nil {
		return nil, err
	}
	if !has {
		return nil, nil
	}

	vector, err := k.embed(ctx, businessID, query)
	if err != nil {
		return nil, err
	}

	rows, err := k.db.QueryContext(ctx, `
		SELECT id, document_id, chunk_index, content, metadata,
		       1 - (embedding <=> $2) AS semantic_score
		FROM documents_embeddings
		WHERE business_id = $1
		  AND 1 - (embedding <=> $2) >= $3
		ORDER BY semantic_score DESC
		LIMIT $4`,
		businessID, pqVector(vector), threshold, kResults)
	if err != nil {
		return nil, fmt.Errorf("store: semantic search: %w", err)
	}
	defer rows.Close()

	var results []rag.SearchResult
	for rows.Next() {
		var r rag.SearchResult
		var metaRaw []byte
		if err := rows.Scan(&r.ID, &r.DocumentID, &r.ChunkIndex, &r.Content, &metaRaw, &r.SemanticScore); err != nil {
			return nil, fmt.Errorf("store: scan semantic result: %w", err)
		}
		r.Metadata = decodeMetadata(metaRaw)
		r.CombinedScore = r.SemanticScore
		results = append(results, r)
	}
	return results, rows.Err()
}

// HybridSearch implements rag.KnowledgeBase.HybridSearch, combining
// cosine similarity and Spanish full-text rank via a weighted sum (spec
// §4.4). Chunks with keyword_score = 0 still participate through the
// left join (semantic-only contribution).
func (k *PostgresKB) HybridSearch(ctx context.Context, businessID, query string, kResults int, semanticWeight, keywordWeight, threshold float64) ([]rag.SearchResult, error) {
	if kResults < 1 {
		kResults = 1
	}

	has, err := k.hasEmbeddings(ctx, businessID)
	if err != nil {
		return nil, err
	}
	if !has {
		return nil, nil
	}

	vector, err := k.embed(ctx, businessID, query)
	if err != nil {
		return nil, err
	}

	rows, err := k.db.QueryContext(ctx, `
		WITH semantic AS (
			SELECT id, document_id, chunk_index, content, metadata,
			       1 - (embedding <=> $2) AS semantic_score
			FROM documents_embeddings
			WHERE business_id = $1
		),
		keyword AS (
			SELECT id, ts_rank(content_tsvector, plainto_tsquery('spanish', $3)) AS keyword_score
			FROM documents_embeddings
			WHERE business_id = $1
			  AND content_tsvector @@ plainto_tsquery('spanish', $3)
		)
		SELECT s.id, s.document_id, s.chunk_index, s.content, s.metadata,
		       s.semantic_score, COALESCE(k.keyword_score, 0) AS keyword_score,
		       ($4 * s.semantic_score + $5 * COALESCE(k.keyword_score, 0)) AS combined_score
		FROM semantic s
		LEFT JOIN keyword k ON k.id = s.id
		WHERE ($4 * s.semantic_score + $5 * COALESCE(k.keyword_score, 0)) >= $6
		ORDER BY combined_score DESC
		LIMIT $7`,
		businessID, pqVector(vector), query, semanticWeight, keywordWeight, threshold, kResults)
	if err != nil {
		return nil, fmt.Errorf("store: hybrid search: %w", err)
	}
	defer rows.Close()

	var results []rag.SearchResult
	for rows.Next() {
		var r rag.SearchResult
		var metaRaw []byte
		if err := rows.Scan(&r.ID, &r.DocumentID, &r.ChunkIndex, &r.Content, &metaRaw,
			&r.SemanticScore, &r.KeywordScore, &r.CombinedScore); err != nil {
			return nil, fmt.Errorf("store: scan hybrid result: %w", err)
		}
		r.Metadata = decodeMetadata(metaRaw)
		results = append(results, r)
	}
	return results, rows.Err()
}

// Stats implements rag.KnowledgeBase.Stats.
func (k *PostgresKB) Stats(ctx context.Context, businessID string) (rag.Stats, error) {
	var stats rag.Stats
	err := k.db.QueryRowContext(ctx, `
		SELECT count(DISTINCT document_id), count(*), COALESCE(avg(length(content)), 0), max(created_at)
		FROM documents_embeddings WHERE business_id = $1`, businessID).Scan(
		&stats.TotalDocuments, &stats.TotalChunks, &stats.AvgChunkChars, &stats.LastEmbeddingCreated)
	if err != nil {
		return rag.Stats{}, fmt.Errorf("store: kb stats for %s: %w", businessID, err)
	}
	return stats, nil
}

// pqVector formats a float32 vector as the pgvector literal lib/pq will
// pass through as a parameter (pgvector accepts the bracketed text form
// "[v1,v2,...]" for both vector and halfvec columns).
func pqVector(v []float32) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, f := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%g", f)
	}
	b.WriteByte(']')
	return b.String()
}

func decodeMetadata(raw []byte) map[string]any {
	if len(raw) == 0 {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil
	}
	return m
}
