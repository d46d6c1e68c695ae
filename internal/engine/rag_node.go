package engine

import (
	"context"

	"github.com/atenea-ai/agent-engine/internal/rag"
)

// OptimizedRAG adapts rag.Node's pipeline (spec §4.7) into a graph node,
// translating between Turn State's KBSearchStrategy and the rag
// package's own copy of that enum (state.go documents why the two types
// are kept separate).
type OptimizedRAG struct {
	node *rag.Node
}

func NewOptimizedRAG(node *rag.Node) *OptimizedRAG {
	return &OptimizedRAG{node: node}
}

func toRAGStrategy(s KBSearchStrategy) rag.KBSearchStrategy {
	switch s {
	case KBStrategyExact:
		return rag.StrategyExact
	case KBStrategyBroad:
		return rag.StrategyBroad
	case KBStrategyMultiQuery:
		return rag.StrategyMultiQuery
	default:
		return rag.StrategyNone
	}
}

// Run executes the Optimized RAG pipeline and folds its output into a
// Turn State Update (spec §4.7 "State output").
func (o *OptimizedRAG) Run(ctx context.Context, s *State) Update {
	query, _ := s.LastHumanMessage()

	out := o.node.Run(ctx, rag.OptimizedRAGInput{
		BusinessID:     s.BusinessID,
		ExecutionID:    s.ExecutionID,
		OriginalQuery:  query,
		Confidence:     s.Confidence,
		SearchStrategy: toRAGStrategy(s.KBSearchStrategy),
	})

	return Update{
		Node:             "optimized_rag",
		RetrievedDocs:    out.RetrievedDocs,
		RetrievedDocsSet: true,
	}
}
