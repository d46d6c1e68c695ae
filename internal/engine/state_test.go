package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestState_LastHumanMessage(t *testing.T) {
	s := &State{Messages: []Message{
		{Role: RoleHuman, Content: "hola"},
		{Role: RoleAI, Content: "¡hola!"},
		{Role: RoleHuman, Content: "tengo una pregunta"},
	}}

	msg, ok := s.LastHumanMessage()
	require.True(t, ok)
	assert.Equal(t, "tengo una pregunta", msg)
}

func TestState_LastHumanMessage_NoneYet(t *testing.T) {
	s := &State{Messages: []Message{{Role: RoleSystem, Content: "setup"}}}
	_, ok := s.LastHumanMessage()
	assert.False(t, ok)
}

func TestState_LastAIMessage(t *testing.T) {
	s := &State{Messages: []Message{
		{Role: RoleAI, Content: "first reply"},
		{Role: RoleHuman, Content: "follow up"},
		{Role: RoleAI, Content: "second reply"},
	}}
	msg, ok := s.LastAIMessage()
	require.True(t, ok)
	assert.Equal(t, "second reply", msg)
}

func TestState_HumanMessageCount(t *testing.T) {
	s := &State{Messages: []Message{
		{Role: RoleHuman, Content: "a"},
		{Role: RoleAI, Content: "b"},
		{Role: RoleHuman, Content: "c"},
		{Role: RoleHuman, Content: "d"},
	}}
	assert.Equal(t, 3, s.HumanMessageCount())
}

// Apply must append Messages/NodesVisited while overwriting every other
// scalar field, per spec §4.9's merge semantics.
func TestState_Apply_AppendsMessagesAndNodesVisited(t *testing.T) {
	s := &State{}
	conf := 0.9

	s.Apply(Update{
		Node:           "smart_router",
		AppendMessages: []Message{{Role: RoleHuman, Content: "hola"}},
		Confidence:     &conf,
	})
	require.Len(t, s.Messages, 1)
	assert.Equal(t, []string{"smart_router"}, s.NodesVisited)
	assert.Equal(t, 0.9, s.Confidence)

	s.Apply(Update{
		Node:           "respond",
		AppendMessages: []Message{{Role: RoleAI, Content: "respuesta"}},
	})
	require.Len(t, s.Messages, 2)
	assert.Equal(t, []string{"smart_router", "respond"}, s.NodesVisited)
	// Confidence untouched by the second update (no pointer set) retains
	// its prior value.
	assert.Equal(t, 0.9, s.Confidence)
}

func TestState_Apply_OverwritesScalarFields(t *testing.T) {
	s := &State{}
	first := IntentGreeting
	second := IntentQuestion

	s.Apply(Update{Node: "a", Intent: &first})
	assert.Equal(t, IntentGreeting, s.Intent)

	s.Apply(Update{Node: "b", Intent: &second})
	assert.Equal(t, IntentQuestion, s.Intent)
}

func TestState_Apply_ReplaceLastAIMessage(t *testing.T) {
	s := &State{Messages: []Message{
		{Role: RoleHuman, Content: "pregunta"},
		{Role: RoleAI, Content: "respuesta original"},
	}}
	improved := "respuesta mejorada"

	s.Apply(Update{Node: "retry_respond", ReplaceLastAIMessage: &improved})

	require.Len(t, s.Messages, 2)
	assert.Equal(t, "respuesta mejorada", s.Messages[1].Content)
	msg, ok := s.LastAIMessage()
	require.True(t, ok)
	assert.Equal(t, "respuesta mejorada", msg)
}

func TestState_Apply_ReplaceLastAIMessage_NoPriorAIMessage(t *testing.T) {
	s := &State{Messages: []Message{{Role: RoleHuman, Content: "pregunta"}}}
	improved := "respuesta"

	s.Apply(Update{Node: "retry_respond", ReplaceLastAIMessage: &improved})

	// Nothing to replace: the human message is untouched, no AI message
	// is synthesized out of thin air.
	require.Len(t, s.Messages, 1)
	assert.Equal(t, RoleHuman, s.Messages[0].Role)
}

func TestState_Apply_SearchQueriesSetGatesOverwrite(t *testing.T) {
	s := &State{SearchQueries: []string{"prior"}}

	// SearchQueriesSet=false means "node didn't touch this field" — it
	// must be left alone even though SearchQueries is a nil slice here.
	s.Apply(Update{Node: "noop"})
	assert.Equal(t, []string{"prior"}, s.SearchQueries)

	s.Apply(Update{Node: "orchestrator", SearchQueries: []string{"a", "b"}, SearchQueriesSet: true})
	assert.Equal(t, []string{"a", "b"}, s.SearchQueries)

	s.Apply(Update{Node: "router", SearchQueries: nil, SearchQueriesSet: true})
	assert.Nil(t, s.SearchQueries)
}

func TestState_Apply_RetrievedDocsSetGatesOverwrite(t *testing.T) {
	s := &State{RetrievedDocs: []string{"doc1"}}

	s.Apply(Update{Node: "noop"})
	assert.Equal(t, []string{"doc1"}, s.RetrievedDocs)

	s.Apply(Update{Node: "optimized_rag", RetrievedDocs: nil, RetrievedDocsSet: true})
	assert.Nil(t, s.RetrievedDocs)
}
