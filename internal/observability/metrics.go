// Package observability provides Prometheus metrics and OpenTelemetry
// tracing for the agent execution engine.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsConfig controls whether metrics are collected and under what
// namespace they are registered.
type MetricsConfig struct {
	Enabled   bool
	Namespace string
}

func (c *MetricsConfig) SetDefaults() {
	if c.Namespace == "" {
		c.Namespace = "agent_engine"
	}
}

// Metrics holds every Prometheus collector the engine emits. A nil
// *Metrics is valid and every method on it is a no-op, so callers never
// need to guard metric calls behind an enabled check.
type Metrics struct {
	config   *MetricsConfig
	registry *prometheus.Registry

	nodeExecutions *prometheus.CounterVec
	nodeDuration   *prometheus.HistogramVec

	llmCalls        *prometheus.CounterVec
	llmCallDuration *prometheus.HistogramVec
	llmTokensInput  *prometheus.CounterVec
	llmTokensOutput *prometheus.CounterVec
	llmCostTotal    *prometheus.CounterVec
	llmErrors       *prometheus.CounterVec

	ragSearches       *prometheus.CounterVec
	ragSearchDuration *prometheus.HistogramVec
	ragChunksFound    *prometheus.HistogramVec
	ragRerankApplied  *prometheus.CounterVec
	ragFallbacks      *prometheus.CounterVec

	executionsTotal   *prometheus.CounterVec
	executionDuration *prometheus.HistogramVec
	handoffsTotal     *prometheus.CounterVec
	retriesTotal      *prometheus.CounterVec
}

// NewMetrics creates a Metrics instance, or returns (nil, nil) when
// metrics are disabled so callers can pass the result straight through.
func NewMetrics(cfg *MetricsConfig) (*Metrics, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, nil
	}
	cfg.SetDefaults()

	m := &Metrics{config: cfg, registry: prometheus.NewRegistry()}
	m.initNodeMetrics()
	m.initLLMMetrics()
	m.initRAGMetrics()
	m.initExecutionMetrics()
	return m, nil
}

// Registry exposes the underlying Prometheus registry for a /metrics handler.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) initNodeMetrics() {
	m.nodeExecutions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.config.Namespace,
		Subsystem: "graph",
		Name:      "node_executions_total",
		Help:      "Total number of graph node executions",
	}, []string{"node"})
	m.nodeDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.config.Namespace,
		Subsystem: "graph",
		Name:      "node_duration_seconds",
		Help:      "Node execution duration in seconds",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 14),
	}, []string{"node"})
	m.registry.MustRegister(m.nodeExecutions, m.nodeDuration)
}

func (m *Metrics) initLLMMetrics() {
	m.llmCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.config.Namespace,
		Subsystem: "llm",
		Name:      "calls_total",
		Help:      "Total number of outbound LLM calls",
	}, []string{"operation_type", "provider", "model"})
	m.llmCallDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.config.Namespace,
		Subsystem: "llm",
		Name:      "call_duration_seconds",
		Help:      "LLM call duration in seconds",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 14),
	}, []string{"operation_type", "provider", "model"})
	m.llmTokensInput = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.config.Namespace,
		Subsystem: "llm",
		Name:      "tokens_input_total",
		Help:      "Total input tokens consumed",
	}, []string{"operation_type", "model"})
	m.llmTokensOutput = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.config.Namespace,
		Subsystem: "llm",
		Name:      "tokens_output_total",
		Help:      "Total output tokens produced",
	}, []string{"operation_type", "model"})
	m.llmCostTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.config.Namespace,
		Subsystem: "llm",
		Name:      "cost_usd_total",
		Help:      "Total computed cost in USD",
	}, []string{"operation_type", "model"})
	m.llmErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.config.Namespace,
		Subsystem: "llm",
		Name:      "errors_total",
		Help:      "Total LLM call errors",
	}, []string{"operation_type", "provider", "model"})
	m.registry.MustRegister(m.llmCalls, m.llmCallDuration, m.llmTokensInput,
		m.llmTokensOutput, m.llmCostTotal, m.llmErrors)
}

func (m *Metrics) initRAGMetrics() {
	m.ragSearches = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.config.Namespace,
		Subsystem: "rag",
		Name:      "searches_total",
		Help:      "Total RAG node executions",
	}, []string{"strategy"})
	m.ragSearchDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.config.Namespace,
		Subsystem: "rag",
		Name:      "search_duration_seconds",
		Help:      "RAG node total duration in seconds",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 14),
	}, []string{"strategy"})
	m.ragChunksFound = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.config.Namespace,
		Subsystem: "rag",
		Name:      "chunks_found",
		Help:      "Chunks found per RAG execution, pre-validation",
		Buckets:   []float64{0, 1, 2, 3, 5, 8, 10, 15, 20, 30},
	}, []string{"strategy"})
	m.ragRerankApplied = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.config.Namespace,
		Subsystem: "rag",
		Name:      "reranking_applied_total",
		Help:      "Total RAG executions where reranking fired",
	}, []string{})
	m.ragFallbacks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.config.Namespace,
		Subsystem: "rag",
		Name:      "semantic_fallbacks_total",
		Help:      "Total RAG executions that fell back to semantic-only search",
	}, []string{})
	m.registry.MustRegister(m.ragSearches, m.ragSearchDuration, m.ragChunksFound,
		m.ragRerankApplied, m.ragFallbacks)
}

func (m *Metrics) initExecutionMetrics() {
	m.executionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.config.Namespace,
		Subsystem: "execution",
		Name:      "total",
		Help:      "Total agent executions by terminal status",
	}, []string{"status"})
	m.executionDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.config.Namespace,
		Subsystem: "execution",
		Name:      "duration_seconds",
		Help:      "Execution duration in seconds",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 14),
	}, []string{"status"})
	m.handoffsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.config.Namespace,
		Subsystem: "execution",
		Name:      "handoffs_total",
		Help:      "Total executions ending in handoff",
	}, []string{"reason"})
	m.retriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.config.Namespace,
		Subsystem: "execution",
		Name:      "retries_total",
		Help:      "Total respond retries",
	}, []string{})
	m.registry.MustRegister(m.executionsTotal, m.executionDuration, m.handoffsTotal, m.retriesTotal)
}

func (m *Metrics) ObserveNode(node string, seconds float64) {
	if m == nil {
		return
	}
	m.nodeExecutions.WithLabelValues(node).Inc()
	m.nodeDuration.WithLabelValues(node).Observe(seconds)
}

func (m *Metrics) ObserveLLMCall(operationType, provider, model string, seconds float64, inputTokens, outputTokens int, cost float64, failed bool) {
	if m == nil {
		return
	}
	m.llmCalls.WithLabelValues(operationType, provider, model).Inc()
	m.llmCallDuration.WithLabelValues(operationType, provider, model).Observe(seconds)
	m.llmTokensInput.WithLabelValues(operationType, model).Add(float64(inputTokens))
	m.llmTokensOutput.WithLabelValues(operationType, model).Add(float64(outputTokens))
	m.llmCostTotal.WithLabelValues(operationType, model).Add(cost)
	if failed {
		m.llmErrors.WithLabelValues(operationType, provider, model).Inc()
	}
}

func (m *Metrics) ObserveRAG(strategy string, seconds float64, chunksFound int, rerankApplied, fellBack bool) {
	if m == nil {
		return
	}
	m.ragSearches.WithLabelValues(strategy).Inc()
	m.ragSearchDuration.WithLabelValues(strategy).Observe(seconds)
	m.ragChunksFound.WithLabelValues(strategy).Observe(float64(chunksFound))
	if rerankApplied {
		m.ragRerankApplied.WithLabelValues().Inc()
	}
	if fellBack {
		m.ragFallbacks.WithLabelValues().Inc()
	}
}

func (m *Metrics) ObserveExecution(status string, seconds float64) {
	if m == nil {
		return
	}
	m.executionsTotal.WithLabelValues(status).Inc()
	m.executionDuration.WithLabelValues(status).Observe(seconds)
}

func (m *Metrics) ObserveHandoff(reason string) {
	if m == nil {
		return
	}
	m.handoffsTotal.WithLabelValues(reason).Inc()
}

func (m *Metrics) ObserveRetry() {
	if m == nil {
		return
	}
	m.retriesTotal.WithLabelValues().Inc()
}

// Handler exposes the registry's collectors for scraping. Callers must
// check for a nil *Metrics before mounting it (disabled metrics have no
// registry to serve).
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
