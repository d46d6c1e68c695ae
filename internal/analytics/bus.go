// Package analytics publishes best-effort execution-completed events to
// Kafka (SPEC_FULL.md Open Question 2, DOMAIN STACK "Event Bus"),
// grounded in the producer-wrapper shape of intelligencedev-manifold's
// Kafka integration and adapted to this engine's event payload. It is
// additive instrumentation: internal/engine.AgentEngine.Chat never fails
// a turn because publishing failed.
package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/atenea-ai/agent-engine/internal/engine"
)

// Bus publishes execution.completed events to one Kafka topic. It
// implements engine.CompletionPublisher.
type Bus struct {
	writer *kafka.Writer
	logger *slog.Logger
}

// NewBus constructs a Bus writing to topic across brokers. The returned
// writer uses RequireOne acknowledgment and synchronous writes with a
// 50ms batch timeout — publishing here is already best-effort at the
// caller level, so the writer doesn't need RequireAll.
func NewBus(brokers []string, topic string, logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireOne,
			BatchTimeout: 50 * time.Millisecond,
		},
		logger: logger,
	}
}

type executionCompletedWire struct {
	ExecutionID    string   `json:"execution_id"`
	BusinessID     string   `json:"business_id"`
	ConversationID string   `json:"conversation_id"`
	Status         string   `json:"status"`
	DurationMS     int64    `json:"duration_ms"`
	TokensUsed     int      `json:"tokens_used"`
	Cost           float64  `json:"cost"`
	NodesVisited   []string `json:"nodes_visited"`
}

// PublishExecutionCompleted implements engine.CompletionPublisher.
func (b *Bus) PublishExecutionCompleted(ctx context.Context, event engine.ExecutionCompletedEvent) error {
	payload, err := json.Marshal(executionCompletedWire{
		ExecutionID:    event.ExecutionID,
		BusinessID:     event.BusinessID,
		ConversationID: event.ConversationID,
		Status:         event.Status,
		DurationMS:     event.DurationMS,
		TokensUsed:     event.TokensUsed,
		Cost:           event.Cost,
		NodesVisited:   event.NodesVisited,
	})
	if err != nil {
		return fmt.Errorf("analytics: marshal execution.completed event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(event.ExecutionID),
		Value: payload,
		Time:  time.Now(),
	}
	if err := b.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("analytics: publish execution.completed: %w", err)
	}
	return nil
}

// Close flushes and closes the underlying Kafka writer.
func (b *Bus) Close() error {
	return b.writer.Close()
}
