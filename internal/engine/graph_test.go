package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// nodeScript returns a NodeFunc that applies a fixed Update, letting
// tests script a sequence of node outputs without real collaborators.
func nodeScript(update Update) NodeFunc {
	return func(ctx context.Context, s *State) Update { return update }
}

// S1: fast-path greeting — smart_router -> respond -> END (confidence
// 0.95 >= 0.75, so validate never runs).
func TestGraph_S1_FastPathGreeting(t *testing.T) {
	conf := 0.95
	nodes := map[string]NodeFunc{
		"smart_router": nodeScript(Update{Node: "smart_router", Confidence: &conf, UseFullOrchestrator: boolPtr(false)}),
		"respond":      nodeScript(Update{Node: "respond", AppendMessages: []Message{{Role: RoleAI, Content: "¡Hola!"}}}),
	}
	g := NewGraph(nodes, nil)
	s := &State{Messages: []Message{{Role: RoleHuman, Content: "hola"}}}

	require.NoError(t, g.Run(context.Background(), s))
	assert.Equal(t, []string{"smart_router", "respond"}, s.NodesVisited)
}

// S2: fast-path handoff — smart_router -> handoff -> END, respond never
// runs, even though use_full_orchestrator=false (spec §8 S2,
// SPEC_FULL.md "OPEN QUESTIONS — RESOLVED" §1: should_handoff takes
// priority over the use_full_orchestrator=false -> respond edge).
func TestGraph_S2_FastPathHandoff(t *testing.T) {
	conf := 0.95
	shouldHandoff := true
	respondCalled := false
	nodes := map[string]NodeFunc{
		"smart_router": nodeScript(Update{
			Node: "smart_router", Confidence: &conf, UseFullOrchestrator: boolPtr(false),
			ShouldHandoff: &shouldHandoff,
		}),
		"handoff": nodeScript(Update{Node: "handoff", AppendMessages: []Message{{Role: RoleAI, Content: "te conecto"}}}),
		"respond": func(ctx context.Context, s *State) Update {
			respondCalled = true
			return Update{Node: "respond"}
		},
	}

	g := NewGraph(nodes, nil)
	s := &State{Messages: []Message{{Role: RoleHuman, Content: "quiero hablar con una persona"}}}
	require.NoError(t, g.Run(context.Background(), s))

	assert.Equal(t, []string{"smart_router", "handoff"}, s.NodesVisited)
	assert.False(t, respondCalled, "respond must not run when the fast path sets should_handoff")
}

// The real SmartRouter node, wired through the actual graph, must send
// request_human straight to handoff without ever calling respond. This
// is the authoritative S2 scenario (spec §8 S2).
func TestGraph_RouterRequestHuman_RoutesToHandoff(t *testing.T) {
	router := NewSmartRouter()
	respondCalled := false
	nodes := map[string]NodeFunc{
		"smart_router": func(ctx context.Context, s *State) Update { return router.Run(s) },
		"orchestrator": nodeScript(Update{Node: "orchestrator"}),
		"handoff":      nodeScript(Update{Node: "handoff", AppendMessages: []Message{{Role: RoleAI, Content: "te transfiero"}}}),
		"respond": func(ctx context.Context, s *State) Update {
			respondCalled = true
			return Update{Node: "respond", AppendMessages: []Message{{Role: RoleAI, Content: "respuesta"}}}
		},
	}
	g := NewGraph(nodes, nil)
	s := &State{Messages: []Message{{Role: RoleHuman, Content: "quiero hablar con una persona"}}}
	require.NoError(t, g.Run(context.Background(), s))

	assert.Equal(t, []string{"smart_router", "handoff"}, s.NodesVisited)
	assert.False(t, respondCalled, "respond must not run on the request_human fast path")
}

// S6: orchestrator confidence 0.35 -> force_handoff; respond must never
// execute (spec §8 S6).
func TestGraph_S6_ForceHandoffByLowConfidence(t *testing.T) {
	respondCalled := false
	nodes := map[string]NodeFunc{
		"smart_router": nodeScript(Update{Node: "smart_router", UseFullOrchestrator: boolPtr(true)}),
		"orchestrator": func(ctx context.Context, s *State) Update {
			conf := 0.35
			return Update{Node: "orchestrator", Confidence: &conf}
		},
		"handoff": nodeScript(Update{Node: "handoff"}),
		"respond": func(ctx context.Context, s *State) Update {
			respondCalled = true
			return Update{Node: "respond"}
		},
	}
	g := NewGraph(nodes, nil)
	s := &State{Messages: []Message{{Role: RoleHuman, Content: "algo complejo"}}}
	require.NoError(t, g.Run(context.Background(), s))

	assert.Equal(t, []string{"smart_router", "orchestrator", "handoff"}, s.NodesVisited)
	assert.False(t, respondCalled)
}

// Boundary: confidence exactly 0.4 is NOT force_handoff (the predicate
// is strictly "< 0.4"); exactly 0.6 is NOT suggest_handoff ("< 0.6").
func TestGraph_ConfidenceBoundaries(t *testing.T) {
	t.Run("0.4 is not force_handoff", func(t *testing.T) {
		s := &State{Confidence: 0.4, NeedsKnowledgeBase: false}
		next, suggest := routeAfterOrchestrator(s)
		assert.NotEqual(t, "handoff", next)
		// 0.4 falls in the suggest_handoff band (0.4 <= confidence < 0.6).
		assert.True(t, suggest)
	})
	t.Run("0.6 is not suggest_handoff", func(t *testing.T) {
		s := &State{Confidence: 0.6, NeedsKnowledgeBase: false}
		next, suggest := routeAfterOrchestrator(s)
		assert.False(t, suggest)
		assert.Equal(t, "respond", next)
	})
	t.Run("0.39 forces handoff", func(t *testing.T) {
		s := &State{Confidence: 0.39}
		next, _ := routeAfterOrchestrator(s)
		assert.Equal(t, "handoff", next)
	})
	t.Run("0.59 suggests handoff and falls through", func(t *testing.T) {
		s := &State{Confidence: 0.59, NeedsKnowledgeBase: true}
		next, suggest := routeAfterOrchestrator(s)
		assert.True(t, suggest)
		assert.Equal(t, "optimized_rag", next)
	})
}

// respond -> validate only when confidence < 0.75; spec §8 invariant 8.
func TestGraph_RespondSkipsValidateAboveThreshold(t *testing.T) {
	for _, tc := range []struct {
		name       string
		confidence float64
		wantNext   string
	}{
		{"0.75 skips validate", 0.75, End},
		{"0.74 runs validate", 0.74, "validate"},
		{"0.9 skips validate", 0.9, End},
	} {
		t.Run(tc.name, func(t *testing.T) {
			s := &State{Confidence: tc.confidence}
			assert.Equal(t, tc.wantNext, nextNode("respond", s))
		})
	}
}

// validate -> END when passed or already retried; otherwise retry_respond.
func TestGraph_ValidateRouting(t *testing.T) {
	passed := true
	failed := false

	t.Run("passed ends", func(t *testing.T) {
		s := &State{ValidationPassed: &passed}
		assert.Equal(t, End, nextNode("validate", s))
	})
	t.Run("failed retries", func(t *testing.T) {
		s := &State{ValidationPassed: &failed}
		assert.Equal(t, "retry_respond", nextNode("validate", s))
	})
	t.Run("already retried always ends, even if failed", func(t *testing.T) {
		s := &State{ValidationPassed: &failed, WasRetried: true}
		assert.Equal(t, End, nextNode("validate", s))
	})
	t.Run("retry_respond always ends", func(t *testing.T) {
		s := &State{}
		assert.Equal(t, End, nextNode("retry_respond", s))
	})
}

// S5: low confidence -> respond -> validate fails -> retry_respond ->
// END, with exactly one retry and no second validate pass (spec §8 S5,
// invariant 6).
func TestGraph_S5_RetryRunsAtMostOnce(t *testing.T) {
	validateCalls := 0
	nodes := map[string]NodeFunc{
		"smart_router": nodeScript(Update{Node: "smart_router", UseFullOrchestrator: boolPtr(true)}),
		"orchestrator": func(ctx context.Context, s *State) Update {
			conf := 0.5
			needsKB := false
			return Update{Node: "orchestrator", Confidence: &conf, NeedsKnowledgeBase: &needsKB, IsFirstMessage: boolPtr(false)}
		},
		"respond": nodeScript(Update{Node: "respond", AppendMessages: []Message{{Role: RoleAI, Content: "primera respuesta"}}}),
		"validate": func(ctx context.Context, s *State) Update {
			validateCalls++
			passed := false
			score := 0.55
			return Update{Node: "validate", ValidationPassed: &passed, QualityScore: &score}
		},
		"retry_respond": func(ctx context.Context, s *State) Update {
			improved := "respuesta mejorada"
			retried := true
			return Update{Node: "retry_respond", ReplaceLastAIMessage: &improved, WasRetried: &retried}
		},
	}
	g := NewGraph(nodes, nil)
	s := &State{Messages: []Message{{Role: RoleHuman, Content: "pregunta dificil"}}, IsFirstMessage: false}
	require.NoError(t, g.Run(context.Background(), s))

	assert.Equal(t, []string{"smart_router", "orchestrator", "respond", "validate", "retry_respond"}, s.NodesVisited)
	assert.Equal(t, 1, validateCalls, "validate must not run a second time after retry")
	assert.True(t, s.WasRetried)
	reply, ok := s.LastAIMessage()
	require.True(t, ok)
	assert.Equal(t, "respuesta mejorada", reply)
}

func TestGraph_UnknownNode_Errors(t *testing.T) {
	nodes := map[string]NodeFunc{
		"smart_router": nodeScript(Update{Node: "smart_router", UseFullOrchestrator: boolPtr(true)}),
	}
	g := NewGraph(nodes, nil)
	s := &State{}
	err := g.Run(context.Background(), s)
	require.Error(t, err)
}

func TestGraph_RespectsCancelledContext(t *testing.T) {
	nodes := map[string]NodeFunc{
		"smart_router": nodeScript(Update{Node: "smart_router", UseFullOrchestrator: boolPtr(true)}),
		"orchestrator": nodeScript(Update{Node: "orchestrator"}),
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	g := NewGraph(nodes, nil)
	err := g.Run(ctx, &State{})
	require.Error(t, err)
}
