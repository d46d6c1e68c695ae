package rag

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atenea-ai/agent-engine/internal/llm"
)

func candidates(n int) []SearchResult {
	out := make([]SearchResult, n)
	for i := range out {
		out[i] = SearchResult{DocumentID: "d", ChunkIndex: i, Content: "chunk", CombinedScore: 0.5}
	}
	return out
}

func TestRerank_NilClientReturnsUnchanged(t *testing.T) {
	rr := NewReranker(nil, newTestTracker(), "gpt-5-mini")
	in := candidates(3)

	out, applied := rr.Rerank(context.Background(), "biz1", "exec1", "query", in)
	assert.False(t, applied)
	assert.Equal(t, in, out)
}

func TestRerank_EmptyCandidatesReturnsUnchanged(t *testing.T) {
	client := &fakeLLMClient{complete: func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
		t.Fatal("must not call the LLM with zero candidates")
		return nil, nil
	}}
	rr := NewReranker(client, newTestTracker(), "gpt-5-mini")

	out, applied := rr.Rerank(context.Background(), "biz1", "exec1", "query", nil)
	assert.False(t, applied)
	assert.Empty(t, out)
}

// spec §4.7 step 5: on scoring-count mismatch the missing scores are
// padded with 0.5.
func TestRerank_PadsMissingScoresWithPointFive(t *testing.T) {
	client := &fakeLLMClient{complete: func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
		return jsonResponse(t, rerankResult{Scores: []float64{0.9}}), nil
	}}
	rr := NewReranker(client, newTestTracker(), "gpt-5-mini")
	in := candidates(3)

	out, applied := rr.Rerank(context.Background(), "biz1", "exec1", "query", in)
	require.True(t, applied)
	require.Len(t, out, 3)

	var paddedCount int
	for _, c := range out {
		require.NotNil(t, c.RerankScore)
		if *c.RerankScore == 0.5 {
			paddedCount++
		}
	}
	assert.Equal(t, 2, paddedCount)
}

func TestRerank_ReturnsTopFiveSortedDescending(t *testing.T) {
	scores := []float64{0.1, 0.9, 0.3, 0.7, 0.2, 0.8}
	client := &fakeLLMClient{complete: func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
		return jsonResponse(t, rerankResult{Scores: scores}), nil
	}}
	rr := NewReranker(client, newTestTracker(), "gpt-5-mini")
	in := candidates(len(scores))

	out, applied := rr.Rerank(context.Background(), "biz1", "exec1", "query", in)
	require.True(t, applied)
	require.Len(t, out, 5)

	for i := 1; i < len(out); i++ {
		assert.GreaterOrEqual(t, *out[i-1].RerankScore, *out[i].RerankScore)
	}
	assert.Equal(t, 0.9, *out[0].RerankScore)
}

func TestRerank_CapsCandidatesAtTen(t *testing.T) {
	var gotPromptCandidateCount int
	var gotPrompt string
	client := &fakeLLMClient{complete: func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
		gotPromptCandidateCount = len(req.Messages)
		gotPrompt = req.Messages[0].Content
		return jsonResponse(t, rerankResult{Scores: make([]float64, 10)}), nil
	}}
	rr := NewReranker(client, newTestTracker(), "gpt-5-mini")
	in := candidates(15)

	out, applied := rr.Rerank(context.Background(), "biz1", "exec1", "query", in)
	require.True(t, applied)
	assert.LessOrEqual(t, len(out), 5)
	assert.Equal(t, 1, gotPromptCandidateCount) // one user message carries the listing
	// The listing numbers candidates 1..10; the 11th of the 15 is never sent.
	assert.Contains(t, gotPrompt, "10. chunk")
	assert.NotContains(t, gotPrompt, "11. chunk")
}

func TestRerank_FailureReturnsUnchangedOrderAndAppliedFalse(t *testing.T) {
	client := &fakeLLMClient{complete: func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
		return nil, errors.New("provider timeout")
	}}
	rr := NewReranker(client, newTestTracker(), "gpt-5-mini")
	in := candidates(3)

	out, applied := rr.Rerank(context.Background(), "biz1", "exec1", "query", in)
	assert.False(t, applied)
	assert.Equal(t, in, out)
}

func TestRerank_MalformedJSONReturnsUnchangedOrderAndAppliedFalse(t *testing.T) {
	client := &fakeLLMClient{complete: func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
		return &llm.CompletionResponse{Text: "not json"}, nil
	}}
	rr := NewReranker(client, newTestTracker(), "gpt-5-mini")
	in := candidates(3)

	out, applied := rr.Rerank(context.Background(), "biz1", "exec1", "query", in)
	assert.False(t, applied)
	assert.Equal(t, in, out)
}
