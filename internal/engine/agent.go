package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/atenea-ai/agent-engine/internal/llm"
	"github.com/atenea-ai/agent-engine/internal/memory"
	"github.com/atenea-ai/agent-engine/internal/observability"
	"github.com/atenea-ai/agent-engine/internal/prompt"
	"github.com/atenea-ai/agent-engine/internal/rag"
	"github.com/atenea-ai/agent-engine/internal/store"
)

// ExecutionCompletedEvent is the payload of the best-effort
// execution.completed event published after every turn (SPEC_FULL.md
// Open Question 2). Publishing is additive instrumentation, never a
// required side effect of Chat.
type ExecutionCompletedEvent struct {
	ExecutionID    string
	BusinessID     string
	ConversationID string
	Status         string
	DurationMS     int64
	TokensUsed     int
	Cost           float64
	NodesVisited   []string
}

// CompletionPublisher is implemented by internal/analytics.Bus. Engine
// only depends on this narrow contract so it never imports a Kafka
// client directly.
type CompletionPublisher interface {
	PublishExecutionCompleted(ctx context.Context, event ExecutionCompletedEvent) error
}

// ChatRequest is one inbound turn. PriorMessages is supplied by the
// caller — this engine's scope (spec §1 Non-goals) does not include a
// message store, so message history is handed in rather than fetched.
type ChatRequest struct {
	BusinessID     string
	ConversationID string
	CustomerPhone  string
	CustomerName   string
	Message        string
	PriorMessages  []Message
}

// ChatResult is Chat's public return value (spec §6).
type ChatResult struct {
	Response     string
	ExecutionID  string
	Intent       Intent
	Sentiment    Sentiment
	NodesVisited []string
	DurationMS   int64
	Handoff      bool
	TokensUsed   int
	Cost         float64
}

// Deps bundles every collaborator AgentEngine needs. PlanningClient
// backs the orchestrator and validator — internal planning calls that
// are never business-configurable — while ResponseClients selects the
// customer-facing model per business via AgentConfig.Provider (spec §3:
// "Provider, Model ... how Respond calls the LLM").
type Deps struct {
	ConfigRepo        *store.AgentConfigRepository
	ExecutionRepo     *store.ExecutionRepository
	Memory            *memory.Manager
	RAGNode           *rag.Node
	Tracker           *llm.Tracker
	PlanningClient    llm.Client
	ResponseClients   map[llm.Provider]llm.Client
	OrchestratorModel string
	ValidatorModel    string
	TurnDeadline      time.Duration
	Metrics           *observability.Metrics
	Tracer            *observability.Tracer
	Publisher         CompletionPublisher // nil disables event publishing
	Logger            *slog.Logger
}

// AgentEngine is the public entry point for running one conversational
// turn through the graph (spec §2, §6).
type AgentEngine struct {
	configRepo      *store.AgentConfigRepository
	executionRepo   *store.ExecutionRepository
	memoryManager   *memory.Manager
	router          *SmartRouter
	orchestrator    *Orchestrator
	optimizedRAG    *OptimizedRAG
	greet           *Greet
	handoff         *Handoff
	validate        *Validate
	tracker         *llm.Tracker
	responseClients map[llm.Provider]llm.Client
	turnDeadline    time.Duration
	metrics         *observability.Metrics
	tracer          *observability.Tracer
	publisher       CompletionPublisher
	logger          *slog.Logger
}

func NewAgentEngine(d Deps) *AgentEngine {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	deadline := d.TurnDeadline
	if deadline <= 0 {
		deadline = 60 * time.Second
	}

	return &AgentEngine{
		configRepo:      d.ConfigRepo,
		executionRepo:   d.ExecutionRepo,
		memoryManager:   d.Memory,
		router:          NewSmartRouter(),
		orchestrator:    NewOrchestrator(d.PlanningClient, d.Tracker, d.OrchestratorModel),
		optimizedRAG:    NewOptimizedRAG(d.RAGNode),
		greet:           NewGreet(),
		handoff:         NewHandoff(),
		validate:        NewValidate(d.PlanningClient, d.Tracker, d.ValidatorModel),
		tracker:         d.Tracker,
		responseClients: d.ResponseClients,
		turnDeadline:    deadline,
		metrics:         d.Metrics,
		tracer:          d.Tracer,
		publisher:       d.Publisher,
		logger:          logger,
	}
}

func (e *AgentEngine) clientFor(provider string) llm.Client {
	if c, ok := e.responseClients[llm.Provider(provider)]; ok && c != nil {
		return c
	}
	return e.responseClients[llm.ProviderOpenAI]
}

// Chat runs one turn of the graph for businessID/conversationID (spec
// §2, §6). Once the Execution Record has been created, it is completed
// exactly once with a terminal status, whether the turn completes, fails,
// or ends in handoff. The pre-flight failures (no agent config, agent
// disabled, record creation failing) return before any record exists.
func (e *AgentEngine) Chat(ctx context.Context, req ChatRequest) (ChatResult, error) {
	cfg, err := e.configRepo.Get(ctx, req.BusinessID)
	if err != nil {
		if errors.Is(err, store.ErrAgentNotFound) {
			return ChatResult{}, ErrAgentNotFound
		}
		return ChatResult{}, fmt.Errorf("engine: load agent config: %w", err)
	}
	if !cfg.Enabled {
		return ChatResult{}, ErrAgentDisabled
	}

	executionID := uuid.NewString()
	startedAt := time.Now()
	if err := e.executionRepo.Create(ctx, executionID, req.BusinessID, req.ConversationID, startedAt); err != nil {
		return ChatResult{}, fmt.Errorf("engine: create execution record: %w", err)
	}

	turnCtx, cancel := context.WithTimeout(ctx, e.turnDeadline)
	defer cancel()
	acc := llm.NewAccumulator()
	turnCtx = llm.WithAccumulator(turnCtx, acc)

	summary, err := e.memoryManager.GetOrRefresh(turnCtx, req.BusinessID, req.ConversationID, executionID)
	if err != nil {
		e.logger.Warn("engine: conversation memory unavailable, continuing without summary",
			"conversation_id", req.ConversationID, "error", err)
		summary = nil
	}
	summaryText := ""
	if summary != nil {
		summaryText = summary.Text
	}

	state := &State{
		Messages:       append(append([]Message{}, req.PriorMessages...), Message{Role: RoleHuman, Content: req.Message}),
		BusinessID:     req.BusinessID,
		ConversationID: req.ConversationID,
		CustomerPhone:  req.CustomerPhone,
		CustomerName:   req.CustomerName,
		ExecutionID:    executionID,
		StartedAt:      startedAt,
		IsFirstMessage: len(req.PriorMessages) == 0,
	}

	promptCfg := toPromptConfig(cfg)
	businessContext := buildBusinessContext(cfg)
	responseClient := e.clientFor(cfg.Provider)

	nodeTable := e.buildNodeTable(promptCfg, businessContext, summary, summaryText, responseClient, cfg.Model, cfg.MaxTokens)

	hook := func(node string, duration time.Duration) {
		e.metrics.ObserveNode(node, duration.Seconds())
	}
	runErr := NewGraph(nodeTable, hook).Run(turnCtx, state)

	status := terminalStatus(state, runErr)
	durationMS := time.Since(startedAt).Milliseconds()
	tokens, cost := acc.Totals()

	var execErr *string
	if runErr != nil {
		msg := runErr.Error()
		execErr = &msg
		e.logger.Error("engine: turn failed", "execution_id", executionID, "business_id", req.BusinessID, "error", runErr)
	}

	metadata := map[string]any{
		"intent":      string(state.Intent),
		"sentiment":   string(state.CustomerSentiment),
		"was_retried": state.WasRetried,
	}

	tailCtx, tailCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer tailCancel()

	if err := e.executionRepo.Complete(tailCtx, executionID, status, state.NodesVisited, tokens, cost, execErr, metadata); err != nil {
		e.logger.Error("engine: failed to persist execution completion", "execution_id", executionID, "error", err)
	}

	e.metrics.ObserveExecution(string(status), time.Since(startedAt).Seconds())
	if status == store.StatusHandoff {
		e.metrics.ObserveHandoff(state.HandoffReason)
	}
	if state.WasRetried {
		e.metrics.ObserveRetry()
	}

	if e.publisher != nil {
		event := ExecutionCompletedEvent{
			ExecutionID:    executionID,
			BusinessID:     req.BusinessID,
			ConversationID: req.ConversationID,
			Status:         string(status),
			DurationMS:     durationMS,
			TokensUsed:     tokens,
			Cost:           cost,
			NodesVisited:   state.NodesVisited,
		}
		if perr := e.publisher.PublishExecutionCompleted(tailCtx, event); perr != nil {
			e.logger.Warn("engine: failed to publish execution.completed event", "execution_id", executionID, "error", perr)
		}
	}

	reply, _ := state.LastAIMessage()
	result := ChatResult{
		Response:     reply,
		ExecutionID:  executionID,
		Intent:       state.Intent,
		Sentiment:    state.CustomerSentiment,
		NodesVisited: state.NodesVisited,
		DurationMS:   durationMS,
		Handoff:      status == store.StatusHandoff,
		TokensUsed:   tokens,
		Cost:         cost,
	}
	if runErr != nil {
		return result, fmt.Errorf("engine: turn execution: %w", runErr)
	}
	return result, nil
}

// buildNodeTable closes every node handler over this turn's prompt
// config, business context, conversation summary, and customer-facing
// LLM client/model, then wraps each in a tracing span (spec §4.9: "one
// span per node execution").
func (e *AgentEngine) buildNodeTable(cfg prompt.Config, businessContext string, summary *memory.Summary, summaryText string, responseClient llm.Client, responseModel string, maxTokens int) map[string]NodeFunc {
	respond := NewRespond(responseClient, e.tracker, responseModel, maxTokens)
	retry := NewRetryRespond(respond)

	table := map[string]NodeFunc{
		"smart_router":  func(ctx context.Context, s *State) Update { return e.router.Run(s) },
		"orchestrator":  func(ctx context.Context, s *State) Update { return e.orchestrator.Run(ctx, s, businessContext, summary) },
		"optimized_rag": func(ctx context.Context, s *State) Update { return e.optimizedRAG.Run(ctx, s) },
		"greet":         func(ctx context.Context, s *State) Update { return e.greet.Run(cfg, toPromptState(s, summaryText)) },
		"handoff":       func(ctx context.Context, s *State) Update { return e.handoff.Run(cfg, toPromptState(s, summaryText)) },
		"respond":       func(ctx context.Context, s *State) Update { return respond.Run(ctx, s, cfg, summaryText) },
		"validate":      func(ctx context.Context, s *State) Update { return e.validate.Run(ctx, s) },
		"retry_respond": func(ctx context.Context, s *State) Update { return retry.Run(ctx, s, cfg, summaryText) },
	}
	for name, fn := range table {
		table[name] = e.traced(name, fn)
	}
	return table
}

func (e *AgentEngine) traced(name string, fn NodeFunc) NodeFunc {
	return func(ctx context.Context, s *State) Update {
		spanCtx, span := e.tracer.StartNodeSpan(ctx, name)
		defer span.End()
		return fn(spanCtx, s)
	}
}

// terminalStatus derives the Execution Record's terminal status (spec
// §3 invariant: active -> {completed, failed, handoff} exactly once).
// Handoff is detected from the last node visited rather than a
// dedicated flag, since handoff is always the graph's last stop (spec
// §4.9 edge table: "handoff" has no outgoing edge).
func terminalStatus(s *State, runErr error) store.ExecutionStatus {
	if runErr != nil {
		return store.StatusFailed
	}
	if len(s.NodesVisited) > 0 && s.NodesVisited[len(s.NodesVisited)-1] == "handoff" {
		return store.StatusHandoff
	}
	return store.StatusCompleted
}

func toPromptConfig(cfg *store.AgentConfig) prompt.Config {
	return prompt.Config{
		BusinessName:             cfg.BusinessName,
		SystemPrompt:             cfg.SystemPrompt,
		AgentPrompt:              derefString(cfg.AgentPrompt),
		GreetPrompt:              derefString(cfg.GreetPrompt),
		HandoffPrompt:            derefString(cfg.HandoffPrompt),
		FallbackPrompt:           derefString(cfg.FallbackPrompt),
		CustomVariables:          cfg.CustomVariables,
		EnableDynamicVariables:   cfg.EnableDynamicVariables,
		EnableConversationMemory: cfg.EnableConversationMemory,
	}
}

func derefString(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func buildBusinessContext(cfg *store.AgentConfig) string {
	if cfg.BusinessName == "" {
		return "Negocio sin nombre configurado."
	}
	return fmt.Sprintf("Nombre del negocio: %s", cfg.BusinessName)
}
