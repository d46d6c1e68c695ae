package engine

import "strings"

// obviousPatterns is the deterministic keyword table for the fast path
// (spec §4.5), verbatim from
// original_source/app/services/agent_engine/nodes/smart_router.py's
// OBVIOUS_PATTERNS, in a fixed check order: the first set with a matching
// keyword wins, so a message containing both a greeting keyword (e.g.
// "hola") and a later set's keyword is classified as a greeting.
var obviousPatterns = []struct {
	intent   string
	keywords []string
}{
	{"greeting", []string{"hola", "buenos días", "buenas tardes", "buenas noches", "hey", "hi", "buenas"}},
	{"farewell", []string{"adiós", "adios", "chao", "chau", "hasta luego", "bye", "nos vemos"}},
	{"thanks", []string{"gracias", "thank", "thanks", "grazie", "muchas gracias"}},
	{"request_human", []string{"hablar con", "persona", "humano", "agente", "operador", "asesor"}},
}

// SmartRouter is the fast-path node (spec §4.5). It never calls the LLM.
type SmartRouter struct{}

func NewSmartRouter() *SmartRouter { return &SmartRouter{} }

// Run classifies the latest human message against obviousPatterns. On no
// match it sets UseFullOrchestrator=true and leaves planning fields for
// the orchestrator; on match it sets the full planning tuple directly
// (spec §4.5).
func (SmartRouter) Run(s *State) Update {
	msg, ok := s.LastHumanMessage()
	isFirst := s.HumanMessageCount() <= 1
	if !ok {
		full := true
		return Update{Node: "smart_router", UseFullOrchestrator: &full}
	}

	lower := strings.ToLower(msg)
	detected := ""
	for _, p := range obviousPatterns {
		for _, kw := range p.keywords {
			if strings.Contains(lower, kw) {
				detected = p.intent
				break
			}
		}
		if detected != "" {
			break
		}
	}

	if detected == "" {
		full := true
		return Update{Node: "smart_router", UseFullOrchestrator: &full}
	}

	no := false
	conf := 0.95
	simple := ComplexitySimple
	none := KBStrategyNone
	var empty []string

	base := Update{
		Node:                "smart_router",
		UseFullOrchestrator: boolPtr(false),
		Confidence:          &conf,
		NeedsKnowledgeBase:  &no,
		KBSearchStrategy:    &none,
		SearchQueries:       empty,
		SearchQueriesSet:    true,
		Complexity:          &simple,
		IsFirstMessage:      &isFirst,
	}

	switch detected {
	case "greeting":
		intent := IntentGreeting
		sentiment := SentimentNeutral
		strategy := StrategyDirect
		reason := "Fast-path: detected greeting pattern"
		shouldHandoff := false
		base.Intent, base.CustomerSentiment, base.ResponseStrategy = &intent, &sentiment, &strategy
		base.OrchestratorReasoning, base.ShouldHandoff = &reason, &shouldHandoff
	case "farewell":
		intent := IntentOther
		sentiment := SentimentPositive
		strategy := StrategyDirect
		reason := "Fast-path: detected farewell pattern"
		shouldHandoff := false
		base.Intent, base.CustomerSentiment, base.ResponseStrategy = &intent, &sentiment, &strategy
		base.OrchestratorReasoning, base.ShouldHandoff = &reason, &shouldHandoff
	case "thanks":
		intent := IntentOther
		sentiment := SentimentPositive
		strategy := StrategyDirect
		reason := "Fast-path: detected thanks pattern"
		shouldHandoff := false
		base.Intent, base.CustomerSentiment, base.ResponseStrategy = &intent, &sentiment, &strategy
		base.OrchestratorReasoning, base.ShouldHandoff = &reason, &shouldHandoff
	case "request_human":
		intent := IntentRequestHuman
		sentiment := SentimentNeutral
		strategy := StrategyDeflect
		reason := "Fast-path: detected request for human agent"
		handoffReason := "Cliente solicitó explícitamente hablar con humano"
		shouldHandoff := true
		base.Intent, base.CustomerSentiment, base.ResponseStrategy = &intent, &sentiment, &strategy
		base.OrchestratorReasoning, base.ShouldHandoff = &reason, &shouldHandoff
		base.HandoffReason = &handoffReason
	}

	return base
}

func boolPtr(b bool) *bool { return &b }
