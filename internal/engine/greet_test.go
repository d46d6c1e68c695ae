package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atenea-ai/agent-engine/internal/prompt"
)

func TestGreet_Run_UsesConfiguredPrompt(t *testing.T) {
	cfg := prompt.Config{GreetPrompt: "¡Bienvenido a Tienda Demo!"}
	u := Greet{}.Run(cfg, prompt.State{})

	require.Len(t, u.AppendMessages, 1)
	assert.Equal(t, "¡Bienvenido a Tienda Demo!", u.AppendMessages[0].Content)
	assert.Equal(t, RoleAI, u.AppendMessages[0].Role)
}

func TestGreet_Run_FallsBackToDefault(t *testing.T) {
	u := Greet{}.Run(prompt.Config{}, prompt.State{})

	require.Len(t, u.AppendMessages, 1)
	assert.Equal(t, defaultGreeting, u.AppendMessages[0].Content)
}

func TestHandoff_Run_UsesConfiguredPrompt(t *testing.T) {
	cfg := prompt.Config{HandoffPrompt: "Te transfiero con un asesor ahora mismo."}
	u := Handoff{}.Run(cfg, prompt.State{})

	require.Len(t, u.AppendMessages, 1)
	assert.Equal(t, "Te transfiero con un asesor ahora mismo.", u.AppendMessages[0].Content)
	assert.Equal(t, "handoff", u.Node)
}

func TestHandoff_Run_FallsBackToDefault(t *testing.T) {
	u := Handoff{}.Run(prompt.Config{}, prompt.State{})
	require.Len(t, u.AppendMessages, 1)
	assert.NotEmpty(t, u.AppendMessages[0].Content)
}
