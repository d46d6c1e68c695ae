// Package store implements Postgres persistence for everything the
// engine writes or reads: agent_executions, llm_calls, rag_metrics,
// conversations, agent_configs, tool_executions, and the pgvector-backed
// knowledge base (documents_embeddings). It uses github.com/lib/pq, the
// teacher's own direct Postgres dependency — no backend in the teacher's
// pkg/databases (chromem/qdrant/pinecone/milvus/weaviate/chroma) speaks
// pgvector + Spanish tsvector, so this is a new provider grounded in
// the DatabaseProvider interface shape from pkg/databases/registry.go
// and in original_source/app/services/knowledge_base.py's SQL.
package store

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

// Open opens and pings a Postgres connection pool.
func Open(dsn string, maxOpenConns int) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open postgres: %w", err)
	}
	if maxOpenConns > 0 {
		db.SetMaxOpenConns(maxOpenConns)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: ping postgres: %w", err)
	}
	return db, nil
}
