package engine

import (
	"context"
	"fmt"

	"github.com/atenea-ai/agent-engine/internal/llm"
	"github.com/atenea-ai/agent-engine/internal/prompt"
)

// RetryRespond reconstructs the respond prompt with the validator's
// feedback injected and regenerates the reply, at higher reasoning
// effort, exactly once per turn (spec §4.8 "Retry Respond"), grounded in
// original_source/app/services/agent_engine/nodes/retry_respond.py.
type RetryRespond struct {
	respond *Respond
}

func NewRetryRespond(respond *Respond) *RetryRespond {
	return &RetryRespond{respond: respond}
}

// Run is only reached once per turn (the graph has no edge back into
// validate after retry_respond — spec §4.9, §8 invariant 6). It replaces
// the last assistant message rather than appending a new one.
func (rr *RetryRespond) Run(ctx context.Context, s *State, cfg prompt.Config, summaryText string) Update {
	st := toPromptState(s, summaryText)
	system := buildSystemPrompt(cfg, st)
	system += criticalFeedbackBlock(s.ValidationIssues, s.ValidationFeedback)

	messages := append([]llm.Message{{Role: llm.RoleSystem, Content: system}}, recentHistory(s.Messages)...)

	text, ok := rr.respond.complete(ctx, s, messages, llm.EffortHigh, "retry_respond.regenerate")
	if !ok {
		text = gracefulDegradationMessage
	}

	retried := true
	return Update{
		Node:                 "retry_respond",
		ReplaceLastAIMessage: &text,
		WasRetried:           &retried,
	}
}

// criticalFeedbackBlock formats the validator's issues and suggestions
// as a mandatory correction block appended to the system prompt (spec
// §4.8: "injected critical block containing the validator's issues and
// suggestions").
func criticalFeedbackBlock(issues []string, feedback string) string {
	if len(issues) == 0 && feedback == "" {
		return ""
	}
	block := "\n\n⚠️ CRÍTICO: Tu respuesta anterior tuvo problemas de calidad. Corrígelos en esta nueva respuesta:\n"
	for _, issue := range issues {
		block += fmt.Sprintf("- %s\n", issue)
	}
	if feedback != "" {
		block += feedback + "\n"
	}
	return block
}
