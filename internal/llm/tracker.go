package llm

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/pkoukk/tiktoken-go"
)

// Accumulator aggregates token and cost totals across every LLM call
// made within one turn, so the Agent Engine can populate
// agent_executions.tokens_used/cost without reading llm_calls back (spec
// §3: "Execution/LLM/RAG records are write-only artifacts; nodes never
// read them back" — the accumulator is an in-memory running total kept
// by the caller, not a read of the persisted rows, and it satisfies spec
// §8 invariant 3: sum(llm_calls.total_cost) <= agent_executions.cost).
// Safe for concurrent use since RAG's fan-out issues multiple calls in
// parallel within one turn.
type Accumulator struct {
	mu     sync.Mutex
	tokens int
	cost   float64
}

// NewAccumulator returns a zeroed Accumulator for one turn.
func NewAccumulator() *Accumulator { return &Accumulator{} }

func (a *Accumulator) add(tokens int, cost float64) {
	if a == nil {
		return
	}
	a.mu.Lock()
	a.tokens += tokens
	a.cost += cost
	a.mu.Unlock()
}

// Totals returns the running token and cost totals.
func (a *Accumulator) Totals() (tokens int, cost float64) {
	if a == nil {
		return 0, 0
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.tokens, a.cost
}

// LLMCallRecord is one row written per outbound LLM/embedding request
// (spec §3). It is produced exclusively by Tracker — "This component is
// the ONLY site that writes LLM Call Records" (spec §4.2).
type LLMCallRecord struct {
	BusinessID       string
	ExecutionID      string // empty when the call is not part of a turn (e.g. standalone embedding backfill)
	OperationType    OperationType
	OperationContext string
	Provider         Provider
	Model            string
	InputTokens      int
	OutputTokens     int
	CachedTokens     int
	TotalTokens      int
	InputCost        float64
	OutputCost       float64
	CachedCost       float64
	TotalCost        float64
	DurationMS       int64
	ReasoningEffort  ReasoningEffort
	CacheHit         bool
	Error            string
}

// Recorder persists LLM Call Records. Implemented by internal/store.
type Recorder interface {
	RecordLLMCall(ctx context.Context, rec LLMCallRecord) error
}

// MetricsSink receives per-call observations for Prometheus export.
// Implemented by internal/observability.Metrics; nil is valid.
type MetricsSink interface {
	ObserveLLMCall(operationType, provider, model string, seconds float64, inputTokens, outputTokens int, cost float64, failed bool)
}

// Tracker is the scoped-acquisition factory for one outbound LLM call
// (spec §4.2). It binds Pricing and a Recorder; both are immutable after
// construction and safe for concurrent use across turns (spec §5).
type Tracker struct {
	pricing  *Pricing
	recorder Recorder
	metrics  MetricsSink
	logger   *slog.Logger
}

func NewTracker(pricing *Pricing, recorder Recorder, metrics MetricsSink, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{pricing: pricing, recorder: recorder, metrics: metrics, logger: logger}
}

// CallMeta is the static metadata known before the call is made.
type CallMeta struct {
	BusinessID       string
	ExecutionID      string
	OperationType    OperationType
	OperationContext string
	Provider         Provider
	Model            string
	ReasoningEffort  ReasoningEffort
}

type accumulatorCtxKey struct{}

// WithAccumulator attaches an Accumulator to ctx so every Tracker.Done
// call made underneath it — regardless of which node or package issued
// the call — contributes its tokens/cost to the turn's running total,
// without threading an Accumulator parameter through every call site
// (orchestrator, reranker, query expander, embedder, respond, validate).
func WithAccumulator(ctx context.Context, acc *Accumulator) context.Context {
	return context.WithValue(ctx, accumulatorCtxKey{}, acc)
}

func accumulatorFromContext(ctx context.Context) *Accumulator {
	acc, _ := ctx.Value(accumulatorCtxKey{}).(*Accumulator)
	return acc
}

// Call is the scoped handle for one in-flight LLM call. Start it, make
// the call, call Record with the usage once it succeeds, then Done with
// the call's error (nil on success) — binding release to every exit
// path without relying on a deferred interface (spec design notes:
// "acquisition binds the release to all exit paths").
type Call struct {
	tracker  *Tracker
	meta     CallMeta
	start    time.Time
	in       int
	out      int
	cached   int
	cacheHit bool
}

// Start begins measurement for one outbound call.
func (t *Tracker) Start(meta CallMeta) *Call {
	return &Call{tracker: t, meta: meta, start: time.Now()}
}

// Record supplies token counts once the provider responds. If never
// called, Done persists a record with zero tokens and zero cost (spec
// §4.2: "if omitted they default to zero").
func (c *Call) Record(inputTokens, outputTokens, cachedTokens int, cacheHit bool) {
	c.in, c.out, c.cached = inputTokens, outputTokens, cachedTokens
	c.cacheHit = cacheHit
}

// Done finalizes the call: computes duration and cost, persists the LLM
// Call Record, and emits metrics. callErr is the error the wrapped call
// returned, if any — recorded but never altered or swallowed by Done
// itself (the caller's error still propagates unchanged, per spec §4.2).
func (c *Call) Done(ctx context.Context, callErr error) {
	duration := time.Since(c.start)
	breakdown := c.tracker.pricing.Compute(c.meta.Model, c.in, c.out, c.cached)

	rec := LLMCallRecord{
		BusinessID:       c.meta.BusinessID,
		ExecutionID:      c.meta.ExecutionID,
		OperationType:    c.meta.OperationType,
		OperationContext: c.meta.OperationContext,
		Provider:         c.meta.Provider,
		Model:            c.meta.Model,
		InputTokens:      c.in,
		OutputTokens:     c.out,
		CachedTokens:     c.cached,
		TotalTokens:      c.in + c.out,
		InputCost:        breakdown.InputCost,
		OutputCost:       breakdown.OutputCost,
		CachedCost:       breakdown.CachedCost,
		TotalCost:        breakdown.TotalCost,
		DurationMS:       duration.Milliseconds(),
		ReasoningEffort:  c.meta.ReasoningEffort,
		CacheHit:         c.cacheHit,
	}
	if callErr != nil {
		rec.Error = callErr.Error()
	}

	if c.tracker.recorder != nil {
		// Persistence failures must log but never propagate (spec §4.2,
		// §7 "Tracking/metrics write errors").
		if err := c.tracker.recorder.RecordLLMCall(ctx, rec); err != nil {
			c.tracker.logger.Error("llm: failed to persist call record",
				"execution_id", rec.ExecutionID, "operation_type", rec.OperationType, "error", err)
		}
	}

	if c.tracker.metrics != nil {
		c.tracker.metrics.ObserveLLMCall(string(rec.OperationType), string(rec.Provider), rec.Model,
			duration.Seconds(), rec.InputTokens, rec.OutputTokens, rec.TotalCost, callErr != nil)
	}

	accumulatorFromContext(ctx).add(rec.TotalTokens, rec.TotalCost)
}

// embeddingEncoding is the tiktoken-go encoding used for local token
// estimation (SPEC_FULL.md DOMAIN STACK: tiktoken-go wired into
// tracker.go as the primary estimator). cl100k_base matches the
// text-embedding-3-* family this engine's default embedder uses.
var embeddingEncoding, embeddingEncodingErr = tiktoken.GetEncoding("cl100k_base")

// EstimateEmbeddingTokens approximates token count when a provider omits
// usage on embedding calls (spec §4.2's max(1, floor(len(text)/4))),
// preferring an exact tiktoken-go count and falling back to the formula
// only if tiktoken itself errors. Empty input is still 1 token, matching
// the formula and the original's own estimate_embedding_tokens (no
// empty-string special case there either).
func EstimateEmbeddingTokens(text string) int {
	if embeddingEncodingErr == nil && len(text) > 0 {
		return len(embeddingEncoding.Encode(text, nil, nil))
	}
	if n := len(text) / 4; n > 0 {
		return n
	}
	return 1
}
