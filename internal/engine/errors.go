package engine

import "errors"

// Sentinel errors for AgentEngine.Chat's pre-flight checks (spec §6,
// §7 "Configuration errors"), checked with errors.Is the way the
// teacher's pkg/rag/errors.go defines its sentinel set.
var (
	// ErrAgentNotFound mirrors store.ErrAgentNotFound; engine re-exports
	// it so callers of Chat don't need to import internal/store just to
	// check the error kind.
	ErrAgentNotFound = errors.New("engine: no agent configuration exists for this business")

	// ErrAgentDisabled is returned when the business's agent config has
	// enabled=false (spec §3 invariant).
	ErrAgentDisabled = errors.New("engine: agent is disabled for this business")

	// ErrDeadlineExceeded marks a turn that was aborted by the turn-level
	// deadline (spec §4.9 "Cancellation", default 60s).
	ErrDeadlineExceeded = errors.New("engine: deadline_exceeded")
)
