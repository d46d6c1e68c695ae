package engine

import "github.com/atenea-ai/agent-engine/internal/prompt"

// Handoff is the terminal leaf node that announces transfer to a human
// operator (spec §4.8 "Handoff"). It does not touch
// public.conversations itself — SPEC_FULL.md Open Question 2 resolves
// that side effect as an external collaborator's responsibility; this
// node only appends the reply. The execution record's transition to
// status=handoff is the Agent Engine's job (it inspects NodesVisited),
// keeping with "nodes never read back" execution records.
type Handoff struct{}

func NewHandoff() *Handoff { return &Handoff{} }

// Run composes the handoff_prompt layer (or its documented default) and
// appends it as the turn's reply.
func (Handoff) Run(cfg prompt.Config, st prompt.State) Update {
	text := prompt.ComposeSpecialized(cfg, st, prompt.LayerHandoff)
	return Update{
		Node:           "handoff",
		AppendMessages: []Message{{Role: RoleAI, Content: text}},
	}
}
