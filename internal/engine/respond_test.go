package engine

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atenea-ai/agent-engine/internal/prompt"
)

func basePromptConfig() prompt.Config {
	return prompt.Config{
		BusinessName:           "Tienda Demo",
		SystemPrompt:           "Eres el asistente de Tienda Demo.",
		EnableDynamicVariables: true,
	}
}

func TestRespond_Run_AppendsLLMReply(t *testing.T) {
	client := newFakeClient(fakeResponse{text: "¡Claro, puedo ayudarte!", in: 50, out: 20})
	respond := NewRespond(client, newTestTracker(), "gpt-5-mini", 500)
	s := &State{Messages: []Message{{Role: RoleHuman, Content: "¿me ayudas?"}}}

	u := respond.Run(context.Background(), s, basePromptConfig(), "")

	require.Len(t, u.AppendMessages, 1)
	assert.Equal(t, RoleAI, u.AppendMessages[0].Role)
	assert.Equal(t, "¡Claro, puedo ayudarte!", u.AppendMessages[0].Content)
	assert.Equal(t, "respond", u.Node)
}

// spec §8 invariant 7 / §4.8: when needs_knowledge_base was true but
// nothing was retrieved, the responder must be instructed to refuse and
// offer a human — verified here via the guardrail prefix making it into
// the composed prompt (the fake client doesn't see the prompt directly,
// so we verify buildSystemPrompt separately and rely on the graceful
// message test for the LLM-failure path).
func TestBuildSystemPrompt_AppliesGuardrailWhenKnowledgeMissingButNeeded(t *testing.T) {
	cfg := basePromptConfig()
	st := prompt.State{NeedsKnowledgeBase: true, RetrievedDocs: nil}

	system := buildSystemPrompt(cfg, st)
	assert.True(t, strings.HasPrefix(system, prompt.GuardrailPrefix))
}

func TestBuildSystemPrompt_NoGuardrailWhenDocsPresent(t *testing.T) {
	cfg := basePromptConfig()
	st := prompt.State{NeedsKnowledgeBase: true, RetrievedDocs: []string{"doc"}}

	system := buildSystemPrompt(cfg, st)
	assert.False(t, strings.HasPrefix(system, "⚠️ IMPORTANTE"))
}

func TestRespond_Run_LLMFailure_EmitsGracefulDegradation(t *testing.T) {
	client := newFakeClient(fakeResponse{err: errors.New("upstream timeout")})
	respond := NewRespond(client, newTestTracker(), "gpt-5-mini", 500)
	s := &State{Messages: []Message{{Role: RoleHuman, Content: "hola"}}}

	u := respond.Run(context.Background(), s, basePromptConfig(), "")

	require.Len(t, u.AppendMessages, 1)
	assert.Equal(t, gracefulDegradationMessage, u.AppendMessages[0].Content)
}

func TestRespond_Run_NoClient_EmitsGracefulDegradation(t *testing.T) {
	respond := NewRespond(nil, newTestTracker(), "gpt-5-mini", 0)
	s := &State{Messages: []Message{{Role: RoleHuman, Content: "hola"}}}

	u := respond.Run(context.Background(), s, basePromptConfig(), "")
	require.Len(t, u.AppendMessages, 1)
	assert.Equal(t, gracefulDegradationMessage, u.AppendMessages[0].Content)
}

func TestRecentHistory_WindowIsFive(t *testing.T) {
	var msgs []Message
	for i := 0; i < 8; i++ {
		msgs = append(msgs, Message{Role: RoleHuman, Content: string(rune('a' + i))})
	}
	recent := recentHistory(msgs)
	require.Len(t, recent, historyWindow)
	assert.Equal(t, "d", recent[0].Content)
	assert.Equal(t, "h", recent[len(recent)-1].Content)
}

func TestRecentHistory_FewerThanWindow(t *testing.T) {
	msgs := []Message{{Role: RoleHuman, Content: "solo uno"}}
	recent := recentHistory(msgs)
	require.Len(t, recent, 1)
}
