package engine

import (
	"context"

	"github.com/atenea-ai/agent-engine/internal/llm"
	"github.com/atenea-ai/agent-engine/internal/prompt"
)

// gracefulDegradationMessage is the fixed reply emitted when the
// responder LLM call itself fails (spec §4.8 "Respond": "On LLM
// failure, emits a fixed graceful-degradation message").
const gracefulDegradationMessage = "Disculpa, tuve un problema técnico procesando tu mensaje. " +
	"¿Podrías intentar de nuevo, o prefieres que te conecte con un asesor humano?"

// historyWindow is how many recent messages are concatenated into the
// chat-completion request's message list (spec §4.8: "concatenates the
// last 5 messages in role-labeled form").
const historyWindow = 5

// Respond is the leaf node that produces the turn's reply via the
// configured LLM (spec §4.8 "Respond"), grounded in
// original_source/app/services/agent_engine/nodes/respond.py.
type Respond struct {
	llmClient llm.Client
	tracker   *llm.Tracker
	model     string
	maxTokens int
}

func NewRespond(llmClient llm.Client, tracker *llm.Tracker, model string, maxTokens int) *Respond {
	return &Respond{llmClient: llmClient, tracker: tracker, model: model, maxTokens: maxTokens}
}

func toPromptState(s *State, summaryText string) prompt.State {
	return prompt.State{
		CustomerName:             s.CustomerName,
		ConversationSummaryText:  summaryText,
		CustomerSentiment:        string(s.CustomerSentiment),
		Complexity:               string(s.Complexity),
		RetrievedDocs:            s.RetrievedDocs,
		Confidence:               s.Confidence,
		SuggestHandoffInResponse: s.SuggestHandoffInResponse,
		NeedsKnowledgeBase:       s.NeedsKnowledgeBase,
	}
}

// buildSystemPrompt assembles the full multi-layer system prompt (spec
// §4.3) and prepends the anti-hallucination guardrail when knowledge was
// expected but nothing was retrieved (spec §4.8: "applies an
// anti-hallucination guardrail when retrieved_docs is empty AND the
// orchestrator set needs_knowledge_base = true").
func buildSystemPrompt(cfg prompt.Config, st prompt.State) string {
	system := prompt.ComposeFull(cfg, st, true, true)
	if len(st.RetrievedDocs) == 0 && st.NeedsKnowledgeBase {
		system = prompt.GuardrailPrefix + system
	}
	return system
}

// recentHistory returns the last historyWindow messages as role-labeled
// completion messages, role mapped 1:1 (human/ai/system).
func recentHistory(messages []Message) []llm.Message {
	recent := messages
	if len(recent) > historyWindow {
		recent = recent[len(recent)-historyWindow:]
	}
	out := make([]llm.Message, 0, len(recent))
	for _, m := range recent {
		out = append(out, llm.Message{Role: llm.Role(m.Role), Content: m.Content})
	}
	return out
}

// Run composes the prompt, calls the LLM inside a Tracker scope
// (operation_type=chat), and appends either the model's reply or the
// fixed graceful-degradation message on failure.
func (r *Respond) Run(ctx context.Context, s *State, cfg prompt.Config, summaryText string) Update {
	st := toPromptState(s, summaryText)
	system := buildSystemPrompt(cfg, st)

	messages := append([]llm.Message{{Role: llm.RoleSystem, Content: system}}, recentHistory(s.Messages)...)

	text, ok := r.complete(ctx, s, messages, llm.EffortMedium, "respond_node.generate")
	if !ok {
		text = gracefulDegradationMessage
	}

	return Update{
		Node:           "respond",
		AppendMessages: []Message{{Role: RoleAI, Content: text}},
	}
}

// complete issues one chat-completions call inside a Tracker scope,
// returning (text, true) on success or ("", false) on failure — the
// caller decides the user-facing fallback, keeping respond.go and
// retry.go's error handling identical (spec §4.8, §7 "Generation
// errors").
func (r *Respond) complete(ctx context.Context, s *State, messages []llm.Message, effort llm.ReasoningEffort, opContext string) (string, bool) {
	if r.llmClient == nil {
		return "", false
	}

	call := r.tracker.Start(llm.CallMeta{
		BusinessID:       s.BusinessID,
		ExecutionID:      s.ExecutionID,
		OperationType:    llm.OperationChat,
		OperationContext: opContext,
		Provider:         r.llmClient.Provider(),
		Model:            r.model,
		ReasoningEffort:  effort,
	})

	req := llm.CompletionRequest{Model: r.model, Messages: messages, ReasoningEffort: effort}
	if r.maxTokens > 0 {
		req.MaxTokens = &r.maxTokens
	}

	resp, err := r.llmClient.Complete(ctx, req)
	if err != nil {
		call.Done(ctx, err)
		return "", false
	}
	call.Record(resp.Usage.InputTokens, resp.Usage.OutputTokens, resp.Usage.CachedTokens, false)
	call.Done(ctx, nil)
	return resp.Text, true
}
