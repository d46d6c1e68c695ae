package engine

import "github.com/atenea-ai/agent-engine/internal/prompt"

// defaultGreeting is emitted when the business has not configured a
// greet_prompt (spec §4.8 "Greet").
const defaultGreeting = "¡Hola! 👋 ¿En qué puedo ayudarte hoy?"

// Greet is the leaf node for first-message and greeting-intent turns
// (spec §4.8), grounded in
// original_source/app/services/agent_engine/nodes/greet.py.
type Greet struct{}

func NewGreet() *Greet { return &Greet{} }

// Run appends either the configured greet_prompt (composed through the
// Prompt Composer, so variable interpolation still applies) or the fixed
// default greeting.
func (Greet) Run(cfg prompt.Config, st prompt.State) Update {
	text := prompt.ComposeSpecialized(cfg, st, prompt.LayerGreet)
	if text == "" {
		text = defaultGreeting
	}
	return Update{
		Node:           "greet",
		AppendMessages: []Message{{Role: RoleAI, Content: text}},
	}
}
