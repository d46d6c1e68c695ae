package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingRecorder struct {
	records []LLMCallRecord
}

func (r *recordingRecorder) RecordLLMCall(ctx context.Context, rec LLMCallRecord) error {
	r.records = append(r.records, rec)
	return nil
}

type failingRecorder struct{}

func (failingRecorder) RecordLLMCall(ctx context.Context, rec LLMCallRecord) error {
	return errors.New("db unavailable")
}

func TestTracker_Done_PersistsRecordOnSuccess(t *testing.T) {
	rec := &recordingRecorder{}
	tracker := NewTracker(NewPricing(), rec, nil, nil)

	call := tracker.Start(CallMeta{
		BusinessID: "biz1", ExecutionID: "exec1",
		OperationType: OperationChat, Model: "gpt-5-mini", Provider: ProviderOpenAI,
	})
	call.Record(100, 50, 0, false)
	call.Done(context.Background(), nil)

	require.Len(t, rec.records, 1)
	got := rec.records[0]
	assert.Equal(t, 100, got.InputTokens)
	assert.Equal(t, 50, got.OutputTokens)
	assert.Equal(t, 150, got.TotalTokens)
	assert.Equal(t, got.InputCost+got.OutputCost+got.CachedCost, got.TotalCost)
	assert.Empty(t, got.Error)
}

// spec §4.2: "If the underlying call raises, the record is still
// written with error populated."
func TestTracker_Done_StillPersistsRecordOnFailure(t *testing.T) {
	rec := &recordingRecorder{}
	tracker := NewTracker(NewPricing(), rec, nil, nil)

	call := tracker.Start(CallMeta{BusinessID: "biz1", OperationType: OperationChat, Model: "gpt-5-mini"})
	call.Done(context.Background(), errors.New("provider timeout"))

	require.Len(t, rec.records, 1)
	assert.Equal(t, "provider timeout", rec.records[0].Error)
	assert.Equal(t, 0, rec.records[0].TotalTokens)
}

func TestTracker_Done_OmittedRecordDefaultsToZeroCost(t *testing.T) {
	rec := &recordingRecorder{}
	tracker := NewTracker(NewPricing(), rec, nil, nil)

	call := tracker.Start(CallMeta{BusinessID: "biz1", OperationType: OperationEmbedding, Model: "text-embedding-3-small"})
	call.Done(context.Background(), nil)

	require.Len(t, rec.records, 1)
	assert.Equal(t, 0.0, rec.records[0].TotalCost)
}

// spec §4.2: "Persistence failures must log but never propagate."
func TestTracker_Done_PersistenceFailureDoesNotPanicOrPropagate(t *testing.T) {
	tracker := NewTracker(NewPricing(), failingRecorder{}, nil, nil)
	call := tracker.Start(CallMeta{BusinessID: "biz1", OperationType: OperationChat, Model: "gpt-5-mini"})
	call.Record(10, 10, 0, false)

	assert.NotPanics(t, func() {
		call.Done(context.Background(), nil)
	})
}

func TestAccumulator_AggregatesAcrossConcurrentCalls(t *testing.T) {
	rec := &recordingRecorder{}
	tracker := NewTracker(NewPricing(), rec, nil, nil)
	acc := NewAccumulator()
	ctx := WithAccumulator(context.Background(), acc)

	done := make(chan struct{})
	for i := 0; i < 5; i++ {
		go func() {
			call := tracker.Start(CallMeta{BusinessID: "biz1", OperationType: OperationChat, Model: "gpt-5-mini"})
			call.Record(100, 100, 0, false)
			call.Done(ctx, nil)
			done <- struct{}{}
		}()
	}
	for i := 0; i < 5; i++ {
		<-done
	}

	tokens, cost := acc.Totals()
	assert.Equal(t, 1000, tokens)
	assert.Greater(t, cost, 0.0)
}

func TestAccumulator_NilIsSafe(t *testing.T) {
	var acc *Accumulator
	tokens, cost := acc.Totals()
	assert.Equal(t, 0, tokens)
	assert.Equal(t, 0.0, cost)
	assert.NotPanics(t, func() { acc.add(10, 1.0) })
}

// spec §4.2: max(1, floor(len(text)/4)) is unconditional, so empty text
// is still 1 token.
func TestEstimateEmbeddingTokens_EmptyStringIsOne(t *testing.T) {
	assert.Equal(t, 1, EstimateEmbeddingTokens(""))
}

func TestEstimateEmbeddingTokens_NonEmptyIsAtLeastOne(t *testing.T) {
	assert.GreaterOrEqual(t, EstimateEmbeddingTokens("a"), 1)
}

func TestEstimateEmbeddingTokens_LongerTextMoreTokens(t *testing.T) {
	short := EstimateEmbeddingTokens("hola")
	long := EstimateEmbeddingTokens("hola, ¿cómo estás? quisiera saber el horario de atención de la tienda")
	assert.Greater(t, long, short)
}
