// Graph Executor: a table-driven state machine over Turn State (spec
// §4.9, design notes "prefer a table-driven executor... over an
// inheritance hierarchy"), grounded in
// original_source/app/services/agent_engine/graph.py's StateGraph wiring
// and adapted from the teacher's factory.go dispatch-by-name style
// (pkg/reasoning/factory.go).
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// End is the sentinel "no more nodes" return value.
const End = ""

// NodeFunc runs one graph node against the current Turn State and
// returns its partial Update. Node-specific dependencies (LLM client,
// prompt config, conversation summary) are bound into the closure by the
// caller (AgentEngine.buildNodeTable), not threaded through this signature,
// so the executor itself stays dependency-free.
type NodeFunc func(ctx context.Context, s *State) Update

// NodeHook observes one node execution (the node's name and how long it
// took) — AgentEngine uses it to feed the per-node Prometheus histogram
// without the executor importing internal/observability directly; node
// spans are opened by AgentEngine.traced, not by this hook.
type NodeHook func(node string, duration time.Duration)

// Graph is the compiled node table plus the fixed edge logic from spec
// §4.9. Edges are not configurable — they are the literal edge table the
// spec defines — only the node handlers are supplied per turn.
type Graph struct {
	nodes map[string]NodeFunc
	hook  NodeHook
}

// NewGraph builds a Graph from a complete node table. Every node name
// the edge table can reach must be present; NewGraph does not validate
// this (the caller, AgentEngine.buildNodeTable, always supplies the full
// fixed set).
func NewGraph(nodes map[string]NodeFunc, hook NodeHook) *Graph {
	return &Graph{nodes: nodes, hook: hook}
}

// entryNode is the graph's single entry point (spec §4.9: "Entry:
// smart_router").
const entryNode = "smart_router"

// maxSteps bounds the executor against a malformed edge table looping
// forever; the fixed table in nextNode never needs more than six hops
// (smart_router -> orchestrator -> optimized_rag -> respond -> validate
// -> retry_respond), so this is generous headroom, not a tuned limit.
const maxSteps = 32

// Run drives the graph from entryNode to termination, applying each
// node's Update to state in order (spec §4.9: "nodes_visited must
// reflect the actual execution order"). ctx carries the turn-level
// deadline (spec §4.9 "Cancellation"); a node observing ctx.Err() should
// return promptly, but Run itself also checks between steps so a
// deadline exceeded while a node was mid-flight still halts further
// dispatch.
func (g *Graph) Run(ctx context.Context, s *State) error {
	current := entryNode

	for step := 0; current != End; step++ {
		if step >= maxSteps {
			return fmt.Errorf("engine: graph exceeded %d steps without terminating (node table misconfigured)", maxSteps)
		}
		if err := ctx.Err(); err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return ErrDeadlineExceeded
			}
			return fmt.Errorf("engine: %w", err)
		}

		fn, ok := g.nodes[current]
		if !ok {
			return fmt.Errorf("engine: no handler registered for node %q", current)
		}

		start := time.Now()
		update := fn(ctx, s)
		if g.hook != nil {
			g.hook(current, time.Since(start))
		}
		s.Apply(update)

		current = nextNode(current, s)
	}
	return nil
}

// nextNode implements the conditional edges of spec §4.9's table
// verbatim. It only reads State, with one exception: after the
// orchestrator, when routeAfterOrchestrator reports the suggest_handoff
// branch, nextNode itself sets SuggestHandoffInResponse=true on State
// (routeAfterOrchestrator does not mutate State).
func nextNode(current string, s *State) string {
	switch current {
	case "smart_router":
		// request_human is detected entirely within the fast path
		// (should_handoff set directly, use_full_orchestrator=false), so
		// it must still reach handoff here rather than falling through to
		// respond (SPEC_FULL.md "OPEN QUESTIONS — RESOLVED" §1, spec.md §8
		// scenario S2).
		if s.ShouldHandoff {
			return "handoff"
		}
		if !s.UseFullOrchestrator {
			return "respond"
		}
		return "orchestrator"

	case "orchestrator":
		next, applySuggestFlag := routeAfterOrchestrator(s)
		if applySuggestFlag {
			s.SuggestHandoffInResponse = true
		}
		return next

	case "greet":
		return "respond"

	case "optimized_rag":
		return "respond"

	case "respond":
		if s.Confidence >= 0.75 {
			return End
		}
		return "validate"

	case "validate":
		if s.WasRetried || (s.ValidationPassed != nil && *s.ValidationPassed) {
			return End
		}
		return "retry_respond"

	case "retry_respond":
		return End

	case "handoff":
		return End

	default:
		return End
	}
}

// routeAfterOrchestrator maps RoutingDecisionFor's cascade onto the next
// node name, and reports whether the suggest_handoff branch fired (which
// the caller must apply as a state mutation, since this function does not
// mutate State itself).
func routeAfterOrchestrator(s *State) (next string, suggestHandoff bool) {
	switch RoutingDecisionFor(s, true) {
	case RouteForceHandoff:
		return "handoff", false
	case RouteSuggestHandoff:
		return remainingPredicateCascade(s), true
	case RouteGreet:
		return "greet", false
	case RouteRetrieveKnowledge:
		return "optimized_rag", false
	default:
		return "respond", false
	}
}

func remainingPredicateCascade(s *State) string {
	if s.IsFirstMessage {
		return "greet"
	}
	if s.NeedsKnowledgeBase {
		return "optimized_rag"
	}
	return "respond"
}
