// Package llm defines the abstract LLM provider contract the engine
// depends on (spec: "the engine depends only on the abstract contract"),
// the pricing table, the scoped LLM Tracker, and the concrete provider
// clients that satisfy the contract for this deployment. The contract
// itself — Client.Complete — is the only thing CORE components import;
// openai.go (OpenAIClient, built by NewOpenAIClient or NewGroqClient) is
// the external-collaborator implementation, kept
// in this package the way the teacher keeps pkg/llms/openai.go and
// pkg/llms/anthropic.go alongside the shared pkg/llms/types.go contract.
package llm

import (
	"context"
	"fmt"
)

// Role is a closed enumeration matching Turn State's message roles.
type Role string

const (
	RoleHuman  Role = "human"
	RoleAI     Role = "ai"
	RoleSystem Role = "system"
)

// Message is one turn in a conversation passed to a provider.
type Message struct {
	Role    Role
	Content string
}

// Provider is a closed enumeration of supported LLM backends.
type Provider string

const (
	ProviderOpenAI Provider = "openai"
	ProviderGroq   Provider = "groq"
)

// OperationType is a closed enumeration used for cost attribution,
// metrics labels, and LLM Call Records. It is never a free string past
// the wire boundary.
type OperationType string

const (
	OperationEmbedding       OperationType = "embedding"
	OperationOrchestrator    OperationType = "orchestrator"
	OperationQueryExpansion  OperationType = "query_expansion"
	OperationReranking       OperationType = "reranking"
	OperationChat            OperationType = "chat"
	OperationValidation      OperationType = "validation"
	OperationSummarization   OperationType = "summarization"
)

// ReasoningEffort is a closed enumeration of per-call reasoning budgets.
// Smart router never calls the LLM; orchestrator/reranker/query-expansion
// use EffortLow, respond/retry use EffortMedium/EffortHigh respectively
// per spec §4.8 ("Retry... uses higher reasoning effort").
type ReasoningEffort string

const (
	EffortLow    ReasoningEffort = "low"
	EffortMedium ReasoningEffort = "medium"
	EffortHigh   ReasoningEffort = "high"
)

// Usage reports token accounting for one call. CachedTokens is the part
// of InputTokens the provider served from cache. Pricing.Compute charges
// InputTokens at the input rate and CachedTokens at the cached-input rate
// on top of that; it does not subtract CachedTokens from InputTokens.
type Usage struct {
	InputTokens  int
	OutputTokens int
	CachedTokens int
}

// JSONSchema is a minimal strict JSON Schema representation sufficient to
// drive structured-output enforcement on both provider backends. Built
// via BuildSchema from a Go struct using invopop/jsonschema, not
// hand-maintained as a literal.
type JSONSchema struct {
	Name   string
	Strict bool
	Schema map[string]any
}

// CompletionRequest is the abstract request shape every provider backend
// accepts. response_schema enforcement is mandatory when set: a schema
// violation is an error, never a defensive field-by-field parse.
type CompletionRequest struct {
	Model           string
	Messages        []Message
	ReasoningEffort ReasoningEffort
	ResponseSchema  *JSONSchema
	Temperature     *float64
	MaxTokens       *int
}

// CompletionResponse is the abstract response shape every provider
// backend returns.
type CompletionResponse struct {
	Text  string
	Usage Usage
}

// Client is the abstract LLM provider contract (spec §6). The engine's
// CORE components depend only on this interface.
type Client interface {
	Provider() Provider
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}

// SchemaViolationError marks a structured-output response that failed to
// satisfy its requested schema. Per design notes, this is always an
// error, never silently coerced.
type SchemaViolationError struct {
	SchemaName string
	Detail     string
}

func (e *SchemaViolationError) Error() string {
	return fmt.Sprintf("llm: response violated schema %q: %s", e.SchemaName, e.Detail)
}
