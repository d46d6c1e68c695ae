// Package memory implements lazy generation, caching, and refresh of
// conversation summaries (spec §3 Conversation Summary, §4 component
// table "Conversation Memory"), grounded in
// original_source/app/services/agent_engine/conversation_memory.py.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/atenea-ai/agent-engine/internal/llm"
)

// Summary is the conversation summary this package owns. internal/store
// reads and writes it (as JSON in conversations.summary) and imports this
// package, not the other way round, keeping this package's dependency
// surface to the repository interface below.
type Summary struct {
	Text          string
	Topics        []string
	MessageCount  int
	LastUpdatedAt time.Time
}

// Repository is the persistence contract this package depends on.
// Implemented by internal/store.ConversationRepository.
type Repository interface {
	GetSummary(ctx context.Context, conversationID string) (*Summary, error)
	SaveSummary(ctx context.Context, conversationID string, summary Summary) error
	MessageCount(ctx context.Context, conversationID string) (int, error)
}

// ShouldRefresh implements the three-way OR refresh policy from spec §3:
// regenerate when (a) no summary exists and messages >= 5, OR (b) >= 10
// new messages since last summary, OR (c) summary older than 24h.
func ShouldRefresh(summary *Summary, messageCount int) bool {
	if summary == nil {
		return messageCount >= 5
	}
	if messageCount-summary.MessageCount >= 10 {
		return true
	}
	return time.Since(summary.LastUpdatedAt) > 24*time.Hour
}

type summarizeResult struct {
	Text   string   `json:"text"`
	Topics []string `json:"topics"`
}

// Manager provides lazy summary access with a Redis-backed regeneration
// lock so concurrent turns on the same conversation don't race to
// regenerate (SPEC_FULL.md DOMAIN STACK: Redis entry — the database row
// remains the source of truth; Redis only debounces).
type Manager struct {
	repo      Repository
	llmClient llm.Client
	tracker   *llm.Tracker
	model     string
	redis     *redis.Client // nil disables the debounce lock; refresh still works, just without cross-process coordination
}

func NewManager(repo Repository, llmClient llm.Client, tracker *llm.Tracker, model string, redisClient *redis.Client) *Manager {
	return &Manager{repo: repo, llmClient: llmClient, tracker: tracker, model: model, redis: redisClient}
}

// GetOrRefresh returns the current summary, regenerating it first if the
// refresh policy says so (spec: "lazy generation, caching, and refresh").
func (m *Manager) GetOrRefresh(ctx context.Context, businessID, conversationID string, executionID string) (*Summary, error) {
	summary, err := m.repo.GetSummary(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("memory: get summary: %w", err)
	}

	count, err := m.repo.MessageCount(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("memory: count messages: %w", err)
	}

	if !ShouldRefresh(summary, count) {
		return summary, nil
	}

	if !m.acquireLock(ctx, conversationID) {
		// Another turn is already regenerating; serve the stale summary
		// rather than duplicate the LLM call.
		return summary, nil
	}
	defer m.releaseLock(ctx, conversationID)

	fresh, err := m.summarize(ctx, businessID, conversationID, executionID, count)
	if err != nil {
		// Summarization failure is non-fatal: serve the stale summary
		// (possibly nil) and let the next turn retry.
		return summary, nil
	}
	return fresh, nil
}

func (m *Manager) summarize(ctx context.Context, businessID, conversationID, executionID string, messageCount int) (*Summary, error) {
	if m.llmClient == nil {
		return nil, fmt.Errorf("memory: no llm client configured")
	}

	prompt := "Resume la conversación hasta ahora en 2-3 oraciones, en español, e identifica los temas principales tratados."
	schema := llm.BuildSchema("conversation_summary", summarizeResult{})
	temp := 0.3

	call := m.tracker.Start(llm.CallMeta{
		BusinessID:       businessID,
		ExecutionID:      executionID,
		OperationType:    llm.OperationSummarization,
		OperationContext: "memory.summarize",
		Provider:         m.llmClient.Provider(),
		Model:            m.model,
		ReasoningEffort:  llm.EffortLow,
	})

	resp, err := m.llmClient.Complete(ctx, llm.CompletionRequest{
		Model:          m.model,
		Messages:       []llm.Message{{Role: llm.RoleHuman, Content: prompt}},
		ResponseSchema: schema,
		Temperature:    &temp,
	})
	if err != nil {
		call.Done(ctx, err)
		return nil, err
	}

	var parsed summarizeResult
	if jsonErr := json.Unmarshal([]byte(resp.Text), &parsed); jsonErr != nil {
		call.Record(resp.Usage.InputTokens, resp.Usage.OutputTokens, resp.Usage.CachedTokens, false)
		call.Done(ctx, jsonErr)
		return nil, jsonErr
	}
	call.Record(resp.Usage.InputTokens, resp.Usage.OutputTokens, resp.Usage.CachedTokens, false)
	call.Done(ctx, nil)

	summary := Summary{
		Text:          parsed.Text,
		Topics:        parsed.Topics,
		MessageCount:  messageCount,
		LastUpdatedAt: time.Now(),
	}
	if err := m.repo.SaveSummary(ctx, conversationID, summary); err != nil {
		return nil, fmt.Errorf("memory: save summary: %w", err)
	}
	return &summary, nil
}

func (m *Manager) acquireLock(ctx context.Context, conversationID string) bool {
	if m.redis == nil {
		return true
	}
	ok, err := m.redis.SetNX(ctx, lockKey(conversationID), "1", 30*time.Second).Result()
	if err != nil {
		// Redis unavailable: fail open rather than block summarization.
		return true
	}
	return ok
}

func (m *Manager) releaseLock(ctx context.Context, conversationID string) {
	if m.redis == nil {
		return
	}
	m.redis.Del(ctx, lockKey(conversationID))
}

func lockKey(conversationID string) string {
	return "agent-engine:summary-lock:" + conversationID
}
