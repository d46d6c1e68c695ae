// Command agentserver wires every collaborator the agent execution
// engine depends on — Postgres, Redis, Kafka, OpenTelemetry, Prometheus,
// the two LLM provider backends — and serves AgentEngine.Chat over HTTP.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/atenea-ai/agent-engine/internal/analytics"
	"github.com/atenea-ai/agent-engine/internal/config"
	"github.com/atenea-ai/agent-engine/internal/engine"
	"github.com/atenea-ai/agent-engine/internal/httpapi"
	"github.com/atenea-ai/agent-engine/internal/llm"
	"github.com/atenea-ai/agent-engine/internal/memory"
	"github.com/atenea-ai/agent-engine/internal/observability"
	"github.com/atenea-ai/agent-engine/internal/rag"
	"github.com/atenea-ai/agent-engine/internal/store"
	"github.com/redis/go-redis/v9"
)

func main() {
	if err := run(); err != nil {
		slog.Default().Error("agentserver: fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", os.Getenv("AGENTENGINE_CONFIG"), "path to config.yaml")
	flag.Parse()
	if *configPath == "" {
		*configPath = "config.yaml"
	}

	// Local .env is optional; a missing file is not an error, matching
	// godotenv's usual dev-convenience role in the rest of the pack.
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	loader, err := config.NewLoader(*configPath)
	if err != nil {
		return fmt.Errorf("agentserver: %w", err)
	}
	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("agentserver: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := store.Open(cfg.Postgres.DSN, cfg.Postgres.MaxOpenConn)
	if err != nil {
		return fmt.Errorf("agentserver: %w", err)
	}
	defer db.Close()

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("agentserver: connect redis: %w", err)
		}
		defer redisClient.Close()
	}

	metrics, err := observability.NewMetrics(&observability.MetricsConfig{
		Enabled:   cfg.Metrics.Enabled,
		Namespace: cfg.Metrics.Namespace,
	})
	if err != nil {
		return fmt.Errorf("agentserver: %w", err)
	}

	tracer, err := observability.NewTracer(ctx, observability.TracingConfig{
		Enabled:      cfg.Tracing.Enabled,
		ServiceName:  "agent-engine",
		OTLPEndpoint: cfg.Tracing.OTLPEndpoint,
	})
	if err != nil {
		return fmt.Errorf("agentserver: %w", err)
	}
	if tracer != nil {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tracer.Shutdown(shutdownCtx); err != nil {
				logger.Warn("agentserver: tracer shutdown failed", "error", err)
			}
		}()
	}

	openaiClient, err := llm.NewOpenAIClient(llm.OpenAIConfig{APIKey: cfg.LLM.OpenAIAPIKey, BaseURL: cfg.LLM.OpenAIBaseURL})
	if err != nil {
		return fmt.Errorf("agentserver: %w", err)
	}
	responseClients := map[llm.Provider]llm.Client{llm.ProviderOpenAI: openaiClient}
	if cfg.LLM.GroqAPIKey != "" {
		groqClient, err := llm.NewGroqClient(llm.OpenAIConfig{APIKey: cfg.LLM.GroqAPIKey, BaseURL: cfg.LLM.GroqBaseURL})
		if err != nil {
			return fmt.Errorf("agentserver: %w", err)
		}
		responseClients[llm.ProviderGroq] = groqClient
	}

	embedder, err := llm.NewOpenAIEmbedder(cfg.LLM.OpenAIAPIKey, cfg.LLM.OpenAIBaseURL, cfg.LLM.EmbeddingModel)
	if err != nil {
		return fmt.Errorf("agentserver: %w", err)
	}

	llmCallRepo := store.NewLLMCallRepository(db)
	tracker := llm.NewTracker(llm.NewPricing(), llmCallRepo, metrics, logger)

	kb := store.NewPostgresKB(db, embedder, tracker)
	expander := rag.NewQueryExpander(openaiClient, tracker, cfg.LLM.QueryExpansionModel)
	reranker := rag.NewReranker(openaiClient, tracker, cfg.LLM.RerankModel)
	ragMetricsRepo := store.NewRAGMetricsRepository(db)
	ragNode := rag.NewNode(kb, expander, reranker, ragMetricsRepo, metrics)

	conversationRepo := store.NewConversationRepository(db)
	memoryManager := memory.NewManager(conversationRepo, openaiClient, tracker, cfg.LLM.SummarizationModel, redisClient)

	var publisher engine.CompletionPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		bus := analytics.NewBus(cfg.Kafka.Brokers, cfg.Kafka.Topic, logger)
		defer func() {
			if err := bus.Close(); err != nil {
				logger.Warn("agentserver: kafka writer close failed", "error", err)
			}
		}()
		publisher = bus
	}

	agentEngine := engine.NewAgentEngine(engine.Deps{
		ConfigRepo:        store.NewAgentConfigRepository(db),
		ExecutionRepo:     store.NewExecutionRepository(db),
		Memory:            memoryManager,
		RAGNode:           ragNode,
		Tracker:           tracker,
		PlanningClient:    openaiClient,
		ResponseClients:   responseClients,
		OrchestratorModel: cfg.LLM.OrchestratorModel,
		ValidatorModel:    cfg.LLM.ValidatorModel,
		TurnDeadline:      cfg.TurnLimit.Deadline(),
		Metrics:           metrics,
		Tracer:            tracer,
		Publisher:         publisher,
		Logger:            logger,
	})

	mux := http.NewServeMux()
	mux.Handle("/", httpapi.NewServer(agentEngine, logger))
	if metrics != nil {
		mux.Handle("/metrics", metrics.Handler())
	}
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: mux,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("agentserver: listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("agentserver: shutting down")
	case err := <-errCh:
		return fmt.Errorf("agentserver: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
