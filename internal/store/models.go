package store

import "time"

// ExecutionStatus is a closed enumeration matching spec §3's Execution
// Record status field.
type ExecutionStatus string

const (
	StatusActive    ExecutionStatus = "active"
	StatusCompleted ExecutionStatus = "completed"
	StatusFailed    ExecutionStatus = "failed"
	StatusHandoff   ExecutionStatus = "handoff"
)

// ExecutionRecord is the agent_executions row (spec §3).
type ExecutionRecord struct {
	ID             string
	BusinessID     string
	ConversationID string
	Status         ExecutionStatus
	StartedAt      time.Time
	CompletedAt    *time.Time
	NodesVisited   []string
	TokensUsed     int
	Cost           float64
	Error          *string
	Metadata       map[string]any
}

// ToolExecutionRecord is the tool_executions row — a forward-compatible
// contract (SPEC_FULL.md "Supplemented Features"); no node currently
// writes one since spec.md's nodes never invoke external tools.
type ToolExecutionRecord struct {
	ExecutionID string
	ToolName    string
	Input       map[string]any
	Output      map[string]any
	DurationMS  int64
	Error       *string
}

// AgentConfig is the per-business agent configuration (spec §3).
type AgentConfig struct {
	BusinessID             string
	BusinessName           string
	SystemPrompt           string
	AgentPrompt            *string
	GreetPrompt            *string
	HandoffPrompt          *string
	FallbackPrompt         *string
	Provider               string
	Model                  string
	MaxTokens              int
	Enabled                bool
	CustomVariables        map[string]string
	EnableDynamicVariables bool
	EnableConversationMemory bool
}

