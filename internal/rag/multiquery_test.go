package rag

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atenea-ai/agent-engine/internal/llm"
)

type fakeLLMClient struct {
	provider llm.Provider
	complete func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error)
}

func (f *fakeLLMClient) Provider() llm.Provider { return f.provider }

func (f *fakeLLMClient) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return f.complete(ctx, req)
}

func newTestTracker() *llm.Tracker {
	return llm.NewTracker(llm.NewPricing(), noopMetricsRecorder{}, nil, nil)
}

type noopMetricsRecorder struct{}

func (noopMetricsRecorder) RecordLLMCall(ctx context.Context, rec llm.LLMCallRecord) error {
	return nil
}

func jsonResponse(t *testing.T, v any) *llm.CompletionResponse {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return &llm.CompletionResponse{Text: string(b)}
}

func TestQueryExpander_Expand_ExactStrategyReturnsOriginalOnly(t *testing.T) {
	e := NewQueryExpander(&fakeLLMClient{complete: func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
		t.Fatal("exact strategy must never call the LLM")
		return nil, nil
	}}, newTestTracker(), "gpt-5-mini")

	got := e.Expand(context.Background(), "biz1", "exec1", "¿cuál es el horario?", StrategyExact)
	assert.Equal(t, []string{"¿cuál es el horario?"}, got)
}

func TestQueryExpander_Expand_NoneStrategyReturnsOriginalOnly(t *testing.T) {
	e := NewQueryExpander(nil, newTestTracker(), "gpt-5-mini")
	got := e.Expand(context.Background(), "biz1", "exec1", "hola", StrategyNone)
	assert.Equal(t, []string{"hola"}, got)
}

func TestQueryExpander_Expand_NilClientDegradesToOriginal(t *testing.T) {
	e := NewQueryExpander(nil, newTestTracker(), "gpt-5-mini")
	got := e.Expand(context.Background(), "biz1", "exec1", "¿tienen envíos?", StrategyMultiQuery)
	assert.Equal(t, []string{"¿tienen envíos?"}, got)
}

func TestQueryExpander_Expand_BroadStrategyAddsGeneratedQueries(t *testing.T) {
	client := &fakeLLMClient{complete: func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
		return jsonResponse(t, queryExpansionResult{Queries: []string{"¿qué horario manejan?"}}), nil
	}}
	e := NewQueryExpander(client, newTestTracker(), "gpt-5-mini")

	got := e.Expand(context.Background(), "biz1", "exec1", "¿cuál es el horario?", StrategyBroad)
	assert.Equal(t, []string{"¿cuál es el horario?", "¿qué horario manejan?"}, got)
}

// spec §4.7 step 2: "On generation failure, degrade to [original]".
func TestQueryExpander_Expand_DegradesToOriginalOnLLMError(t *testing.T) {
	client := &fakeLLMClient{complete: func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
		return nil, errors.New("provider unavailable")
	}}
	e := NewQueryExpander(client, newTestTracker(), "gpt-5-mini")

	got := e.Expand(context.Background(), "biz1", "exec1", "original", StrategyMultiQuery)
	assert.Equal(t, []string{"original"}, got)
}

func TestQueryExpander_Expand_DegradesToOriginalOnMalformedJSON(t *testing.T) {
	client := &fakeLLMClient{complete: func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
		return &llm.CompletionResponse{Text: "not json"}, nil
	}}
	e := NewQueryExpander(client, newTestTracker(), "gpt-5-mini")

	got := e.Expand(context.Background(), "biz1", "exec1", "original", StrategyMultiQuery)
	assert.Equal(t, []string{"original"}, got)
}

func TestDedupWithOriginal_CaseInsensitiveAndTrims(t *testing.T) {
	got := dedupWithOriginal("¿Cuál es el horario?", []string{
		"  ¿cuál es el horario?  ", // dup of original, different case/whitespace
		"¿qué horario tienen?",
		"¿Qué horario tienen?", // dup of the previous, different case
		"",
	})
	assert.Equal(t, []string{"¿Cuál es el horario?", "¿qué horario tienen?"}, got)
}

func TestCombineResults_KeepsHighestScorePerChunkKey(t *testing.T) {
	setA := []SearchResult{{DocumentID: "d1", ChunkIndex: 0, CombinedScore: 0.5, Content: "a"}}
	setB := []SearchResult{{DocumentID: "d1", ChunkIndex: 0, CombinedScore: 0.9, Content: "b"}}

	merged := CombineResults([][]SearchResult{setA, setB})

	require.Len(t, merged, 1)
	assert.Equal(t, 0.9, merged[0].CombinedScore)
	assert.Equal(t, "b", merged[0].Content)
}

func TestCombineResults_SortsDescendingByCombinedScore(t *testing.T) {
	set := []SearchResult{
		{DocumentID: "d1", ChunkIndex: 0, CombinedScore: 0.3},
		{DocumentID: "d2", ChunkIndex: 0, CombinedScore: 0.9},
		{DocumentID: "d3", ChunkIndex: 0, CombinedScore: 0.6},
	}

	merged := CombineResults([][]SearchResult{set})

	require.Len(t, merged, 3)
	assert.Equal(t, "d2", merged[0].DocumentID)
	assert.Equal(t, "d3", merged[1].DocumentID)
	assert.Equal(t, "d1", merged[2].DocumentID)
}

func TestCombineResults_DistinctChunkIndexSameDocumentAreDistinctKeys(t *testing.T) {
	set := []SearchResult{
		{DocumentID: "d1", ChunkIndex: 0, CombinedScore: 0.5},
		{DocumentID: "d1", ChunkIndex: 1, CombinedScore: 0.4},
	}
	merged := CombineResults([][]SearchResult{set})
	assert.Len(t, merged, 2)
}
