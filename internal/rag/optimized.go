package rag

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	// Default hybrid-search weights (spec §4.4's caller-chosen weights;
	// these are the engine's chosen defaults for the optimized_rag node).
	defaultSemanticWeight = 0.6
	defaultKeywordWeight  = 0.4

	maxFanOut = 3 // spec §4.7 step 3, §5: "bounded by |queries| <= 3"
)

// OptimizedRAGInput is everything the node needs from Turn State.
type OptimizedRAGInput struct {
	BusinessID     string
	ExecutionID    string
	OriginalQuery  string
	Confidence     float64
	SearchStrategy KBSearchStrategy
}

// OptimizedRAGOutput is the partial Turn State update (spec §4.7 "State
// output").
type OptimizedRAGOutput struct {
	RetrievedDocs []string // nil when empty
}

// Node implements the Optimized RAG pipeline (spec §4.7).
type Node struct {
	kb       KnowledgeBase
	expander *QueryExpander
	reranker *Reranker
	recorder Recorder
	metrics  MetricsSink
}

func NewNode(kb KnowledgeBase, expander *QueryExpander, reranker *Reranker, recorder Recorder, metrics MetricsSink) *Node {
	return &Node{kb: kb, expander: expander, reranker: reranker, recorder: recorder, metrics: metrics}
}

// adaptiveThreshold implements spec §4.7 step 1.
func adaptiveThreshold(confidence float64) float64 {
	switch {
	case confidence > 0.85:
		return 0.30
	case confidence > 0.70:
		return 0.35
	default:
		return 0.40
	}
}

// Run executes the full pipeline and always writes a RAG Metrics Record,
// even when an internal step fails (spec §4.7 step 8, §7 "A RAG Metrics
// Record is written regardless").
func (n *Node) Run(ctx context.Context, in OptimizedRAGInput) OptimizedRAGOutput {
	start := time.Now()
	threshold := adaptiveThreshold(in.Confidence)

	metric := MetricsRecord{
		ExecutionID:    in.ExecutionID,
		BusinessID:     in.BusinessID,
		OriginalQuery:  in.OriginalQuery,
		SearchStrategy: string(in.SearchStrategy),
		SemanticWeight: defaultSemanticWeight,
		KeywordWeight:  defaultKeywordWeight,
		ThresholdUsed:  threshold,
	}

	defer func() {
		metric.TotalDurationMS = time.Since(start).Milliseconds()
		n.persist(ctx, metric)
	}()

	queries := n.expander.Expand(ctx, in.BusinessID, in.ExecutionID, in.OriginalQuery, in.SearchStrategy)
	if len(queries) > maxFanOut {
		queries = queries[:maxFanOut]
	}
	metric.QueriesGenerated = len(queries)

	searchStart := time.Now()
	resultSets, executed := n.fanOutSearch(ctx, in.BusinessID, queries, threshold)
	metric.QueriesExecuted = executed
	metric.SearchDurationMS = time.Since(searchStart).Milliseconds()

	merged := CombineResults(resultSets)
	metric.ChunksFound = len(merged)

	candidates := merged
	rerankApplied := false
	if len(merged) >= 5 {
		rerankStart := time.Now()
		candidates, rerankApplied = n.reranker.Rerank(ctx, in.BusinessID, in.ExecutionID, in.OriginalQuery, merged)
		ms := time.Since(rerankStart).Milliseconds()
		metric.RerankingDurationMS = &ms
	}
	metric.RerankingApplied = rerankApplied
	if rerankApplied {
		n := len(candidates)
		metric.ChunksAfterReranking = &n
	}

	validated := validateRelevance(candidates)

	if len(validated) == 0 && threshold > 0.2 {
		fallbackResults, err := n.kb.SemanticSearch(ctx, in.BusinessID, in.OriginalQuery, 3, 0.2)
		if err == nil {
			validated = fallbackResults
		}
		if n.metrics != nil {
			n.metrics.ObserveRAG(string(in.SearchStrategy), time.Since(start).Seconds(), metric.ChunksFound, rerankApplied, true)
		}
	} else if n.metrics != nil {
		n.metrics.ObserveRAG(string(in.SearchStrategy), time.Since(start).Seconds(), metric.ChunksFound, rerankApplied, false)
	}

	passed := len(validated) > 0
	metric.RelevanceValidationPassed = &passed

	if len(validated) == 0 {
		return OptimizedRAGOutput{RetrievedDocs: nil}
	}
	docs := make([]string, len(validated))
	for i, c := range validated {
		docs[i] = c.Content
	}
	return OptimizedRAGOutput{RetrievedDocs: docs}
}

// fanOutSearch runs HybridSearch for each query concurrently, bounded by
// maxFanOut, using gather-all-settled semantics: a failed query is
// treated as an empty result, never aborting the others; its error is
// discarded, not logged (spec §4.7 step 3, §5, design notes).
func (n *Node) fanOutSearch(ctx context.Context, businessID string, queries []string, threshold float64) ([][]SearchResult, int) {
	results := make([][]SearchResult, len(queries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxFanOut)

	for i, q := range queries {
		i, q := i, q
		g.Go(func() error {
			res, err := n.kb.HybridSearch(gctx, businessID, q, 10, defaultSemanticWeight, defaultKeywordWeight, threshold)
			if err != nil {
				// Isolated per-query failure: the error is dropped and the
				// query contributes no results (spec §4.7 step 3).
				return nil
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait() // errors are never returned; each goroutine swallows its own

	executed := len(queries)
	return results, executed
}

// validateRelevance implements spec §4.7 step 6: keep a chunk iff
// combined_score >= 0.4 AND rerank_score >= 0.5, waiving the rerank
// bound for chunks that were never reranked.
func validateRelevance(candidates []SearchResult) []SearchResult {
	var out []SearchResult
	for _, c := range candidates {
		if c.CombinedScore < 0.4 {
			continue
		}
		if c.RerankScore != nil && *c.RerankScore < 0.5 {
			continue
		}
		out = append(out, c)
	}
	return out
}

func (n *Node) persist(ctx context.Context, metric MetricsRecord) {
	if n.recorder == nil {
		return
	}
	_ = n.recorder.Record(ctx, metric) // best-effort; write errors are logged by the recorder implementation
}
