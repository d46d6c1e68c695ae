package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/atenea-ai/agent-engine/internal/llm"
	"github.com/atenea-ai/agent-engine/internal/memory"
)

// orchestratorResult is the strict-schema JSON shape the orchestrator
// LLM call must return, grounded in
// original_source/app/services/agent_engine/nodes/orchestrator.py's
// ORCHESTRATOR_SCHEMA.
type orchestratorResult struct {
	Intent              string   `json:"intent"`
	Confidence          float64  `json:"confidence"`
	NeedsKnowledgeBase  bool     `json:"needs_knowledge_base"`
	KBSearchStrategy    string   `json:"kb_search_strategy"`
	SearchQueries       []string `json:"search_queries"`
	Complexity          string   `json:"complexity"`
	ShouldHandoff       bool     `json:"should_handoff"`
	HandoffReason       *string  `json:"handoff_reason"`
	ResponseStrategy    string   `json:"response_strategy"`
	CustomerSentiment   string   `json:"customer_sentiment"`
	Reasoning           string   `json:"reasoning"`
}

const orchestratorSystemPrompt = `Eres el orchestrator de un agente conversacional inteligente.

Analiza el mensaje del cliente y responde en JSON estructurado con tu plan para el turno:
intent, confidence (tu confianza en poder responder bien), needs_knowledge_base,
kb_search_strategy, search_queries (0-3 reformulaciones si multi_query), complexity,
should_handoff, handoff_reason, response_strategy, customer_sentiment, reasoning.

CRITERIOS DE CONFIDENCE:
- 0.9-1.0: muy seguro (pregunta simple o info clara esperada en la base de conocimiento)
- 0.7-0.9: seguro moderado
- 0.5-0.7: inseguro (pregunta ambigua)
- 0.3-0.5: muy inseguro (pregunta compleja o fuera de alcance)
- 0.0-0.3: sin capacidad de responder

CRITERIOS DE HANDOFF: solicitud explícita de humano, pregunta fuera de alcance del negocio,
sentimiento muy negativo, o confidence baja en temas críticos (precios, garantías, soporte técnico).`

// Orchestrator is the LLM-planned turn-decision node (spec §4.6).
type Orchestrator struct {
	llmClient llm.Client
	tracker   *llm.Tracker
	model     string
}

func NewOrchestrator(llmClient llm.Client, tracker *llm.Tracker, model string) *Orchestrator {
	return &Orchestrator{llmClient: llmClient, tracker: tracker, model: model}
}

// Run makes one structured-output LLM call and returns the planning
// fields as an Update (spec §4.6); the routing decision is derived
// afterwards by the graph (routeAfterOrchestrator -> RoutingDecisionFor).
// On any failure it applies the conservative fallback.
func (o *Orchestrator) Run(ctx context.Context, s *State, businessContext string, summary *memory.Summary) Update {
	current, _ := s.LastHumanMessage()

	result, err := o.plan(ctx, s, businessContext, current, summary)
	if err != nil {
		result = conservativeFallback(current)
	}

	return toUpdate(result)
}

func (o *Orchestrator) plan(ctx context.Context, s *State, businessContext, current string, summary *memory.Summary) (orchestratorResult, error) {
	if o.llmClient == nil {
		return orchestratorResult{}, fmt.Errorf("engine: no llm client configured for orchestrator")
	}

	history := buildConversationContext(s.Messages, summary)

	userMsg := fmt.Sprintf(
		"CONTEXTO DE NEGOCIO:\n%s\n\nCONVERSACIÓN (últimos 3 mensajes + resumen):\n%s\n\n"+
			"MENSAJE ACTUAL DEL CLIENTE:\n%q\n\nESTADO:\n- Es primer mensaje: %t\n",
		businessContext, history, current, s.IsFirstMessage)

	schema := llm.BuildSchema("orchestrator_plan", orchestratorResult{})
	temp := 0.2

	call := o.tracker.Start(llm.CallMeta{
		BusinessID:       s.BusinessID,
		ExecutionID:      s.ExecutionID,
		OperationType:    llm.OperationOrchestrator,
		OperationContext: "orchestrator.plan",
		Provider:         o.llmClient.Provider(),
		Model:            o.model,
		ReasoningEffort:  llm.EffortLow,
	})

	resp, err := o.llmClient.Complete(ctx, llm.CompletionRequest{
		Model: o.model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: orchestratorSystemPrompt},
			{Role: llm.RoleHuman, Content: userMsg},
		},
		ResponseSchema: schema,
		Temperature:    &temp,
	})
	if err != nil {
		call.Done(ctx, err)
		return orchestratorResult{}, err
	}

	var parsed orchestratorResult
	if jsonErr := json.Unmarshal([]byte(resp.Text), &parsed); jsonErr != nil {
		call.Record(resp.Usage.InputTokens, resp.Usage.OutputTokens, resp.Usage.CachedTokens, false)
		call.Done(ctx, jsonErr)
		return orchestratorResult{}, jsonErr
	}
	call.Record(resp.Usage.InputTokens, resp.Usage.OutputTokens, resp.Usage.CachedTokens, false)
	call.Done(ctx, nil)

	return parsed, nil
}

// conservativeFallback implements spec §4.6's documented degradation on
// LLM or JSON-parse failure.
func conservativeFallback(originalMessage string) orchestratorResult {
	return orchestratorResult{
		Intent:             "question",
		Confidence:         0.4,
		NeedsKnowledgeBase: true,
		KBSearchStrategy:   "broad",
		SearchQueries:      []string{originalMessage},
		Complexity:         "medium",
		ShouldHandoff:      false,
		ResponseStrategy:   "with_context",
		CustomerSentiment:  "neutral",
		Reasoning:          "conservative fallback: orchestrator call failed",
	}
}

func toUpdate(r orchestratorResult) Update {
	intent := Intent(r.Intent)
	sentiment := Sentiment(r.CustomerSentiment)
	complexity := Complexity(r.Complexity)
	strategy := ResponseStrategy(r.ResponseStrategy)
	kbStrategy := KBSearchStrategy(r.KBSearchStrategy)
	confidence := r.Confidence
	needsKB := r.NeedsKnowledgeBase
	shouldHandoff := r.ShouldHandoff
	reasoning := r.Reasoning

	u := Update{
		Node:                  "orchestrator",
		Intent:                &intent,
		CustomerSentiment:     &sentiment,
		Confidence:            &confidence,
		NeedsKnowledgeBase:    &needsKB,
		KBSearchStrategy:      &kbStrategy,
		SearchQueries:         r.SearchQueries,
		SearchQueriesSet:      true,
		Complexity:            &complexity,
		ResponseStrategy:      &strategy,
		ShouldHandoff:         &shouldHandoff,
		OrchestratorReasoning: &reasoning,
	}
	if r.HandoffReason != nil {
		u.HandoffReason = r.HandoffReason
	}
	return u
}

// buildConversationContext implements the sliding-window context from
// original_source/app/services/agent_engine/nodes/orchestrator.py's
// build_conversation_context: last 3 messages, plus the cached summary
// text when the conversation has grown past 5 messages.
func buildConversationContext(messages []Message, summary *memory.Summary) string {
	var b strings.Builder
	if summary != nil && len(messages) > 5 && summary.Text != "" {
		fmt.Fprintf(&b, "[Resumen conversación previa: %s]\n\n", summary.Text)
	}

	recent := messages
	if len(recent) > 3 {
		recent = recent[len(recent)-3:]
	}
	for _, m := range recent {
		role := "Asistente"
		if m.Role == RoleHuman {
			role = "Cliente"
		}
		fmt.Fprintf(&b, "%s: %s\n", role, m.Content)
	}
	return b.String()
}

// RoutingDecisionFor derives routing_decision from the predicate cascade
// in spec §4.9. graph.go's routeAfterOrchestrator is its only caller;
// applyGreetPredicate is false for call sites that never reach the greet
// branch (none currently — it is always true from the graph).
func RoutingDecisionFor(s *State, applyGreetPredicate bool) RoutingDecision {
	if s.ShouldHandoff || s.Confidence < 0.4 {
		return RouteForceHandoff
	}
	if s.Confidence < 0.6 {
		return RouteSuggestHandoff
	}
	if applyGreetPredicate && s.IsFirstMessage {
		return RouteGreet
	}
	if s.NeedsKnowledgeBase {
		return RouteRetrieveKnowledge
	}
	return RouteDirectRespond
}
