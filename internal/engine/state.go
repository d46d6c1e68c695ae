// Package engine implements the Agent Execution Engine: Turn State, the
// graph nodes, the table-driven graph executor, and the public Chat
// entry point (spec §2–§4.9, §6), grounded in
// original_source/app/services/agent_engine/graph.py and its nodes/
// package, with the executor's structure adapted from the teacher's
// table-driven reasoning/factory.go dispatch style.
package engine

import "time"

// Role mirrors llm.Role for messages stored on Turn State; kept as its
// own type so this package doesn't need to import internal/llm just to
// name a message's role.
type Role string

const (
	RoleHuman  Role = "human"
	RoleAI     Role = "ai"
	RoleSystem Role = "system"
)

// Message is one entry in Turn State's message history (spec §3).
type Message struct {
	Role    Role
	Content string
}

// Intent is a closed enumeration (spec §3).
type Intent string

const (
	IntentGreeting      Intent = "greeting"
	IntentQuestion      Intent = "question"
	IntentComplaint     Intent = "complaint"
	IntentRequestHuman  Intent = "request_human"
	IntentOther         Intent = "other"
)

// Sentiment is a closed enumeration (spec §3).
type Sentiment string

const (
	SentimentVeryPositive Sentiment = "very_positive"
	SentimentPositive     Sentiment = "positive"
	SentimentNeutral      Sentiment = "neutral"
	SentimentNegative     Sentiment = "negative"
	SentimentVeryNegative Sentiment = "very_negative"
)

// Complexity is a closed enumeration (spec §3).
type Complexity string

const (
	ComplexitySimple  Complexity = "simple"
	ComplexityMedium  Complexity = "medium"
	ComplexityComplex Complexity = "complex"
)

// ResponseStrategy is a closed enumeration (spec §3).
type ResponseStrategy string

const (
	StrategyDirect      ResponseStrategy = "direct"
	StrategyWithContext ResponseStrategy = "with_context"
	StrategyMultiStep   ResponseStrategy = "multi_step"
	StrategyDeflect     ResponseStrategy = "deflect"
)

// KBSearchStrategy mirrors rag.KBSearchStrategy, kept local to Turn
// State so this package's state shape doesn't require importing
// internal/rag's strategy type directly (converted at the Optimized RAG
// node boundary, the only place it matters).
type KBSearchStrategy string

const (
	KBStrategyExact      KBSearchStrategy = "exact"
	KBStrategyBroad      KBSearchStrategy = "broad"
	KBStrategyMultiQuery KBSearchStrategy = "multi_query"
	KBStrategyNone       KBSearchStrategy = "none"
)

// RoutingDecision is the derived routing signal computed by
// RoutingDecisionFor after the orchestrator node (spec §4.9); the smart
// router's fast path routes on its own fields and does not compute one.
type RoutingDecision string

const (
	RouteForceHandoff     RoutingDecision = "force_handoff"
	RouteSuggestHandoff   RoutingDecision = "suggest_handoff"
	RouteGreet            RoutingDecision = "greet"
	RouteRetrieveKnowledge RoutingDecision = "retrieve_knowledge"
	RouteDirectRespond    RoutingDecision = "direct_respond"
)

// RAGMetricsSummary is the State-visible subset of a RAG Metrics Record
// (spec §3 "Retrieval": rag_metrics).
type RAGMetricsSummary struct {
	ChunksRetrieved  int
	TotalTokens      int
	Sources          []string
	AvgSimilarity    float64
	RetrievalTimeMS  int64
}

// State is the value that flows through the graph; every node returns a
// partial Update that State.Apply merges in (spec §3, §4.9).
type State struct {
	Messages []Message

	BusinessID     string
	ConversationID string
	CustomerPhone  string
	CustomerName   string
	ExecutionID    string
	StartedAt      time.Time

	Intent            Intent
	CustomerSentiment Sentiment
	IsFirstMessage    bool

	Confidence                float64
	NeedsKnowledgeBase        bool
	KBSearchStrategy          KBSearchStrategy
	SearchQueries             []string
	Complexity                Complexity
	ResponseStrategy          ResponseStrategy
	ShouldHandoff             bool
	HandoffReason             string
	OrchestratorReasoning     string
	UseFullOrchestrator       bool
	SuggestHandoffInResponse  bool

	RetrievedDocs []string
	RAGMetrics    *RAGMetricsSummary

	ValidationPassed    *bool
	QualityScore        float64
	ValidationIssues    []string
	ValidationFeedback  string
	WasRetried          bool

	NodesVisited []string
	ToolsUsed    []string
}

// LastHumanMessage returns the latest human-role message's content, and
// whether one exists.
func (s *State) LastHumanMessage() (string, bool) {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == RoleHuman {
			return s.Messages[i].Content, true
		}
	}
	return "", false
}

// LastAIMessage returns the latest assistant-role message's content, and
// whether one exists.
func (s *State) LastAIMessage() (string, bool) {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == RoleAI {
			return s.Messages[i].Content, true
		}
	}
	return "", false
}

// HumanMessageCount counts human-role messages, used by smart_router to
// decide "is this the first message" (spec §4.5).
func (s *State) HumanMessageCount() int {
	n := 0
	for _, m := range s.Messages {
		if m.Role == RoleHuman {
			n++
		}
	}
	return n
}

// Update is a partial Turn State mutation returned by a node. Messages
// and NodesVisited accumulate via ...Append fields (spec §4.9: "messages
// and nodes_visited are appended; all other scalar fields are
// overwritten"); every other field uses a pointer/slice-or-nil
// "set if non-nil" convention so a node that doesn't touch a field
// leaves it alone.
type Update struct {
	AppendMessages []Message
	Node           string // appended to NodesVisited; required on every node's Update

	Intent                   *Intent
	CustomerSentiment        *Sentiment
	IsFirstMessage           *bool
	Confidence               *float64
	NeedsKnowledgeBase       *bool
	KBSearchStrategy         *KBSearchStrategy
	SearchQueries            []string
	SearchQueriesSet         bool
	Complexity               *Complexity
	ResponseStrategy         *ResponseStrategy
	ShouldHandoff            *bool
	HandoffReason            *string
	OrchestratorReasoning    *string
	UseFullOrchestrator      *bool
	SuggestHandoffInResponse *bool

	RetrievedDocs    []string
	RetrievedDocsSet bool
	RAGMetrics       *RAGMetricsSummary

	ValidationPassed   *bool
	QualityScore       *float64
	ValidationIssues   []string
	ValidationFeedback *string
	WasRetried         *bool

	// ReplaceLastAIMessage, when set, replaces the current last AI
	// message instead of appending (used only by retry_respond, spec
	// §4.8: "replaces the last assistant message with the improved one").
	ReplaceLastAIMessage *string
}

// Apply merges Update into State following spec §4.9's merge semantics.
func (s *State) Apply(u Update) {
	if u.ReplaceLastAIMessage != nil {
		for i := len(s.Messages) - 1; i >= 0; i-- {
			if s.Messages[i].Role == RoleAI {
				s.Messages[i].Content = *u.ReplaceLastAIMessage
				break
			}
		}
	}
	s.Messages = append(s.Messages, u.AppendMessages...)
	if u.Node != "" {
		s.NodesVisited = append(s.NodesVisited, u.Node)
	}

	if u.Intent != nil {
		s.Intent = *u.Intent
	}
	if u.CustomerSentiment != nil {
		s.CustomerSentiment = *u.CustomerSentiment
	}
	if u.IsFirstMessage != nil {
		s.IsFirstMessage = *u.IsFirstMessage
	}
	if u.Confidence != nil {
		s.Confidence = *u.Confidence
	}
	if u.NeedsKnowledgeBase != nil {
		s.NeedsKnowledgeBase = *u.NeedsKnowledgeBase
	}
	if u.KBSearchStrategy != nil {
		s.KBSearchStrategy = *u.KBSearchStrategy
	}
	if u.SearchQueriesSet {
		s.SearchQueries = u.SearchQueries
	}
	if u.Complexity != nil {
		s.Complexity = *u.Complexity
	}
	if u.ResponseStrategy != nil {
		s.ResponseStrategy = *u.ResponseStrategy
	}
	if u.ShouldHandoff != nil {
		s.ShouldHandoff = *u.ShouldHandoff
	}
	if u.HandoffReason != nil {
		s.HandoffReason = *u.HandoffReason
	}
	if u.OrchestratorReasoning != nil {
		s.OrchestratorReasoning = *u.OrchestratorReasoning
	}
	if u.UseFullOrchestrator != nil {
		s.UseFullOrchestrator = *u.UseFullOrchestrator
	}
	if u.SuggestHandoffInResponse != nil {
		s.SuggestHandoffInResponse = *u.SuggestHandoffInResponse
	}
	if u.RetrievedDocsSet {
		s.RetrievedDocs = u.RetrievedDocs
	}
	if u.RAGMetrics != nil {
		s.RAGMetrics = u.RAGMetrics
	}
	if u.ValidationPassed != nil {
		s.ValidationPassed = u.ValidationPassed
	}
	if u.QualityScore != nil {
		s.QualityScore = *u.QualityScore
	}
	if u.ValidationIssues != nil {
		s.ValidationIssues = u.ValidationIssues
	}
	if u.ValidationFeedback != nil {
		s.ValidationFeedback = *u.ValidationFeedback
	}
	if u.WasRetried != nil {
		s.WasRetried = *u.WasRetried
	}
}
