package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runRouter(t *testing.T, messages ...string) Update {
	t.Helper()
	var msgs []Message
	for _, m := range messages {
		msgs = append(msgs, Message{Role: RoleHuman, Content: m})
	}
	s := &State{Messages: msgs}
	return NewSmartRouter().Run(s)
}

func TestSmartRouter_Greeting(t *testing.T) {
	u := runRouter(t, "Hola, buenas tardes")
	require.NotNil(t, u.UseFullOrchestrator)
	assert.False(t, *u.UseFullOrchestrator)
	require.NotNil(t, u.Intent)
	assert.Equal(t, IntentGreeting, *u.Intent)
	require.NotNil(t, u.Confidence)
	assert.Equal(t, 0.95, *u.Confidence)
	require.NotNil(t, u.ShouldHandoff)
	assert.False(t, *u.ShouldHandoff)
}

func TestSmartRouter_Farewell(t *testing.T) {
	u := runRouter(t, "bueno, nos vemos, chao")
	require.NotNil(t, u.Intent)
	assert.Equal(t, IntentOther, *u.Intent)
	require.NotNil(t, u.CustomerSentiment)
	assert.Equal(t, SentimentPositive, *u.CustomerSentiment)
}

func TestSmartRouter_Thanks(t *testing.T) {
	u := runRouter(t, "muchas gracias por la ayuda")
	require.NotNil(t, u.Intent)
	assert.Equal(t, IntentOther, *u.Intent)
}

func TestSmartRouter_RequestHuman(t *testing.T) {
	u := runRouter(t, "quiero hablar con una persona por favor")
	require.NotNil(t, u.Intent)
	assert.Equal(t, IntentRequestHuman, *u.Intent)
	require.NotNil(t, u.ShouldHandoff)
	assert.True(t, *u.ShouldHandoff)
	require.NotNil(t, u.HandoffReason)
	assert.NotEmpty(t, *u.HandoffReason)
}

func TestSmartRouter_NoMatch_DefersToOrchestrator(t *testing.T) {
	u := runRouter(t, "¿cuánto cuesta el envío a otra ciudad?")
	require.NotNil(t, u.UseFullOrchestrator)
	assert.True(t, *u.UseFullOrchestrator)
	// Planning fields are left for the orchestrator (spec §4.5): no
	// Confidence/Intent is set on the no-match path.
	assert.Nil(t, u.Confidence)
	assert.Nil(t, u.Intent)
}

func TestSmartRouter_NoMessages_DefersToOrchestrator(t *testing.T) {
	u := runRouter(t)
	require.NotNil(t, u.UseFullOrchestrator)
	assert.True(t, *u.UseFullOrchestrator)
}

func TestSmartRouter_IsFirstMessage(t *testing.T) {
	u := runRouter(t, "hola")
	require.NotNil(t, u.IsFirstMessage)
	assert.True(t, *u.IsFirstMessage)

	u2 := runRouter(t, "hola", "¿tienen envíos?", "hola de nuevo")
	require.NotNil(t, u2.IsFirstMessage)
	assert.False(t, *u2.IsFirstMessage)
}

func TestSmartRouter_CaseInsensitive(t *testing.T) {
	u := runRouter(t, "HOLA BUENOS DIAS")
	require.NotNil(t, u.Intent)
	assert.Equal(t, IntentGreeting, *u.Intent)
}

func TestSmartRouter_NodeNameRecorded(t *testing.T) {
	u := runRouter(t, "hola")
	assert.Equal(t, "smart_router", u.Node)
}
