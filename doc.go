// Package agentengine is the root of the conversational agent execution
// engine: a directed graph of stateful nodes that classifies, plans,
// retrieves, responds to, and validates one turn of a WhatsApp-style
// customer conversation.
//
// # Architecture
//
// A turn enters at the smart router, which either resolves a few
// deterministic patterns (greeting, farewell, request for a human) on
// the spot or hands off to an LLM-driven orchestrator that plans the
// rest of the turn: whether to retrieve from the knowledge base, what
// search strategy to use, and whether the conversation should go to a
// human agent. The graph executor in internal/engine applies every
// node's partial state update and walks the fixed edge table until the
// turn ends after respond, validate, retry_respond, or handoff (greet
// always continues to respond).
//
//	Customer message → smart_router → [orchestrator] → [optimized_rag]
//	  → respond → [validate → retry_respond] → reply
//
// # Packages
//
//   - internal/engine: Turn State, the graph nodes, and the public
//     AgentEngine.Chat entry point
//   - internal/rag: knowledge base retrieval, multi-query expansion,
//     and reranking
//   - internal/prompt: multi-layer prompt composition
//   - internal/memory: conversation summary caching and refresh
//   - internal/llm: the abstract LLM provider contract, pricing, and
//     call tracking
//   - internal/store: Postgres persistence for every record this
//     engine writes
//   - internal/observability: Prometheus metrics and OpenTelemetry
//     tracing
//   - internal/httpapi: the thin HTTP surface that exposes Chat
//
// # Status
//
// This engine powers one conversational turn end to end; it does not
// own authentication, multi-tenant provisioning, document ingestion,
// billing, or streaming partial responses — those are the
// responsibility of the systems that call it.
package agentengine
