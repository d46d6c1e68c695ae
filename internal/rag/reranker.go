package rag

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/atenea-ai/agent-engine/internal/llm"
)

// Reranker scores candidate chunks with a second LLM pass to improve
// precision (spec §4.7 step 5), grounded in
// original_source/app/services/agent_engine/nodes/optimized_rag.py's
// rerank_results().
type Reranker struct {
	llmClient llm.Client
	tracker   *llm.Tracker
	model     string
}

func NewReranker(llmClient llm.Client, tracker *llm.Tracker, model string) *Reranker {
	return &Reranker{llmClient: llmClient, tracker: tracker, model: model}
}

// Rerank scores up to 10 candidates and returns the top 5 reordered by
// rerank_score, plus whether reranking actually ran. On scoring-count
// mismatch the missing scores are padded with 0.5 (spec §4.7 step 5). On
// reranker failure it returns the input order unchanged and applied=false.
func (rr *Reranker) Rerank(ctx context.Context, businessID, executionID, query string, candidates []SearchResult) (reranked []SearchResult, applied bool) {
	if rr.llmClient == nil || len(candidates) == 0 {
		return candidates, false
	}

	top := candidates
	if len(top) > 10 {
		top = top[:10]
	}

	var listing strings.Builder
	for i, c := range top {
		fmt.Fprintf(&listing, "%d. %s\n", i+1, c.Content)
	}

	prompt := fmt.Sprintf(
		"Consulta del cliente: %q\n\nCandidatos numerados:\n%s\n"+
			"Asigna a cada candidato un puntaje de relevancia entre 0 y 1 respecto a la consulta. "+
			"Devuelve exactamente %d puntajes, en el mismo orden.",
		query, listing.String(), len(top))

	schema := llm.BuildSchema("rerank_scores", rerankResult{})
	temp := 0.0
	maxTokens := 300

	call := rr.tracker.Start(llm.CallMeta{
		BusinessID:       businessID,
		ExecutionID:      executionID,
		OperationType:    llm.OperationReranking,
		OperationContext: "optimized_rag.rerank",
		Provider:         rr.llmClient.Provider(),
		Model:            rr.model,
		ReasoningEffort:  llm.EffortLow,
	})

	resp, err := rr.llmClient.Complete(ctx, llm.CompletionRequest{
		Model:          rr.model,
		Messages:       []llm.Message{{Role: llm.RoleHuman, Content: prompt}},
		ResponseSchema: schema,
		Temperature:    &temp,
		MaxTokens:      &maxTokens,
	})
	if err != nil {
		call.Done(ctx, err)
		return candidates, false
	}

	var parsed rerankResult
	if jsonErr := json.Unmarshal([]byte(resp.Text), &parsed); jsonErr != nil {
		call.Record(resp.Usage.InputTokens, resp.Usage.OutputTokens, resp.Usage.CachedTokens, false)
		call.Done(ctx, jsonErr)
		return candidates, false
	}
	call.Record(resp.Usage.InputTokens, resp.Usage.OutputTokens, resp.Usage.CachedTokens, false)
	call.Done(ctx, nil)

	scores := parsed.Scores
	for len(scores) < len(top) {
		scores = append(scores, 0.5)
	}

	scored := make([]SearchResult, len(top))
	for i, c := range top {
		score := scores[i]
		c.RerankScore = &score
		scored[i] = c
	}
	sortByRerankScoreDesc(scored)

	if len(scored) > 5 {
		scored = scored[:5]
	}
	return scored, true
}

func sortByRerankScoreDesc(results []SearchResult) {
	for i := 1; i < len(results); i++ {
		for j := i; j > 0 && *results[j].RerankScore > *results[j-1].RerankScore; j-- {
			results[j], results[j-1] = results[j-1], results[j]
		}
	}
}
