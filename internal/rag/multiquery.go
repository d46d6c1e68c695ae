package rag

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/atenea-ai/agent-engine/internal/llm"
)

// queryExpansionResult and rerankResult are the structured-output shapes
// for the query-expansion and reranking calls respectively (spec §4.7
// steps 2 and 5); BuildSchema turns each into a strict JSON schema.
type queryExpansionResult struct {
	Queries []string `json:"queries"`
}

type rerankResult struct {
	Scores []float64 `json:"scores"`
}

// KBSearchStrategy is a closed enumeration (spec §3).
type KBSearchStrategy string

const (
	StrategyExact      KBSearchStrategy = "exact"
	StrategyBroad       KBSearchStrategy = "broad"
	StrategyMultiQuery  KBSearchStrategy = "multi_query"
	StrategyNone        KBSearchStrategy = "none"
)

// QueryExpander generates alternative phrasings of a query per strategy
// (spec §4.7 step 2), adapted from the teacher's MultiQueryExpander
// (pkg/rag/multiquery.go) which always keeps the original query first
// and asks the LLM for N-1 additional phrasings in one call.
type QueryExpander struct {
	llmClient llm.Client
	tracker   *llm.Tracker
	model     string
}

func NewQueryExpander(llmClient llm.Client, tracker *llm.Tracker, model string) *QueryExpander {
	return &QueryExpander{llmClient: llmClient, tracker: tracker, model: model}
}

// Expand returns the query list for strategy, always including the
// original query first. On generation failure it degrades to
// []string{original} (spec §4.7 step 2: "On generation failure, degrade
// to [original]").
func (e *QueryExpander) Expand(ctx context.Context, businessID, executionID, original string, strategy KBSearchStrategy) []string {
	switch strategy {
	case StrategyExact, StrategyNone:
		return []string{original}
	case StrategyBroad:
		return e.generate(ctx, businessID, executionID, original, 1)
	case StrategyMultiQuery:
		return e.generate(ctx, businessID, executionID, original, 2)
	default:
		return []string{original}
	}
}

func (e *QueryExpander) generate(ctx context.Context, businessID, executionID, original string, extra int) []string {
	fallback := []string{original}
	if e.llmClient == nil {
		return fallback
	}

	prompt := fmt.Sprintf(
		"Genera %d reformulaciones alternativas (en español) de la siguiente consulta de un cliente, "+
			"manteniendo la misma intención pero variando el vocabulario. Consulta original: %q",
		extra, original)

	schema := llm.BuildSchema("query_expansion", queryExpansionResult{})
	temp := 0.7
	maxTokens := 200

	call := e.tracker.Start(llm.CallMeta{
		BusinessID:       businessID,
		ExecutionID:      executionID,
		OperationType:    llm.OperationQueryExpansion,
		OperationContext: "optimized_rag.expand",
		Provider:         e.llmClient.Provider(),
		Model:            e.model,
		ReasoningEffort:  llm.EffortLow,
	})

	resp, err := e.llmClient.Complete(ctx, llm.CompletionRequest{
		Model:          e.model,
		Messages:       []llm.Message{{Role: llm.RoleHuman, Content: prompt}},
		ResponseSchema: schema,
		Temperature:    &temp,
		MaxTokens:      &maxTokens,
	})
	if err != nil {
		call.Done(ctx, err)
		return fallback
	}

	var parsed queryExpansionResult
	if jsonErr := json.Unmarshal([]byte(resp.Text), &parsed); jsonErr != nil {
		call.Record(resp.Usage.InputTokens, resp.Usage.OutputTokens, resp.Usage.CachedTokens, false)
		call.Done(ctx, jsonErr)
		return fallback
	}
	call.Record(resp.Usage.InputTokens, resp.Usage.OutputTokens, resp.Usage.CachedTokens, false)
	call.Done(ctx, nil)

	return dedupWithOriginal(original, parsed.Queries)
}

// dedupWithOriginal returns [original, ...generated] with case-insensitive
// dedup, mirroring the teacher's parseQueries/ExpandQuery contract.
func dedupWithOriginal(original string, generated []string) []string {
	seen := map[string]bool{strings.ToLower(strings.TrimSpace(original)): true}
	out := []string{original}
	for _, q := range generated {
		q = strings.TrimSpace(q)
		if q == "" {
			continue
		}
		key := strings.ToLower(q)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, q)
	}
	return out
}

// CombineResults merges result sets from multiple queries, keying each
// chunk by (document_id, chunk_index) and keeping the highest combined
// score (spec §4.7 step 4), adapted from the teacher's
// MultiQueryExpander.CombineResults.
func CombineResults(resultSets [][]SearchResult) []SearchResult {
	best := make(map[string]SearchResult)
	for _, set := range resultSets {
		for _, r := range set {
			key := fmt.Sprintf("%s:%d", r.DocumentID, r.ChunkIndex)
			if existing, ok := best[key]; !ok || r.CombinedScore > existing.CombinedScore {
				best[key] = r
			}
		}
	}

	merged := make([]SearchResult, 0, len(best))
	for _, r := range best {
		merged = append(merged, r)
	}
	sortByCombinedScoreDesc(merged)
	return merged
}

func sortByCombinedScoreDesc(results []SearchResult) {
	for i := 1; i < len(results); i++ {
		for j := i; j > 0 && results[j].CombinedScore > results[j-1].CombinedScore; j-- {
			results[j], results[j-1] = results[j-1], results[j]
		}
	}
}
