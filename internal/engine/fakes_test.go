package engine

import (
	"context"
	"errors"

	"github.com/atenea-ai/agent-engine/internal/llm"
)

// fakeLLMClient is a scriptable stand-in for llm.Client, letting engine
// node tests drive structured-output success/failure paths without a
// real provider. Grounded in the same "fake over mock framework" style
// as the teacher's own test suite (no gomock/mockery in its dependency
// graph).
type fakeLLMClient struct {
	provider  llm.Provider
	responses []fakeResponse
	calls     int
}

type fakeResponse struct {
	text string
	err  error
	in   int
	out  int
}

func newFakeClient(responses ...fakeResponse) *fakeLLMClient {
	return &fakeLLMClient{provider: llm.ProviderOpenAI, responses: responses}
}

func (f *fakeLLMClient) Provider() llm.Provider { return f.provider }

func (f *fakeLLMClient) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	if f.calls >= len(f.responses) {
		return nil, errors.New("fakeLLMClient: no more scripted responses")
	}
	r := f.responses[f.calls]
	f.calls++
	if r.err != nil {
		return nil, r.err
	}
	return &llm.CompletionResponse{
		Text:  r.text,
		Usage: llm.Usage{InputTokens: r.in, OutputTokens: r.out},
	}, nil
}

// noopRecorder discards LLM Call Records, used when a test doesn't
// assert on tracker persistence.
type noopRecorder struct{}

func (noopRecorder) RecordLLMCall(ctx context.Context, rec llm.LLMCallRecord) error { return nil }

func newTestTracker() *llm.Tracker {
	return llm.NewTracker(llm.NewPricing(), noopRecorder{}, nil, nil)
}
