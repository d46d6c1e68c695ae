package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/atenea-ai/agent-engine/internal/memory"
)

// ConversationRepository reads and writes the conversations.summary JSON
// column (spec §3, §6).
type ConversationRepository struct {
	db *sql.DB
}

func NewConversationRepository(db *sql.DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

type summaryWire struct {
	Text          string    `json:"text"`
	Topics        []string  `json:"topics"`
	MessageCount  int       `json:"message_count"`
	LastUpdatedAt time.Time `json:"last_updated_at"`
}

// GetSummary returns the current summary, or (nil, nil) when the
// conversation has no summary yet.
func (r *ConversationRepository) GetSummary(ctx context.Context, conversationID string) (*memory.Summary, error) {
	var raw []byte
	err := r.db.QueryRowContext(ctx, `SELECT summary FROM conversations WHERE id = $1`, conversationID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && raw == nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: get conversation summary %s: %w", conversationID, err)
	}

	var wire summaryWire
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("store: decode conversation summary %s: %w", conversationID, err)
	}
	return &memory.Summary{
		Text:          wire.Text,
		Topics:        wire.Topics,
		MessageCount:  wire.MessageCount,
		LastUpdatedAt: wire.LastUpdatedAt,
	}, nil
}

// SaveSummary overwrites the conversation's cached summary.
func (r *ConversationRepository) SaveSummary(ctx context.Context, conversationID string, summary memory.Summary) error {
	raw, err := json.Marshal(summaryWire{
		Text:          summary.Text,
		Topics:        summary.Topics,
		MessageCount:  summary.MessageCount,
		LastUpdatedAt: summary.LastUpdatedAt,
	})
	if err != nil {
		return fmt.Errorf("store: encode conversation summary: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `UPDATE conversations SET summary = $2 WHERE id = $1`, conversationID, raw)
	if err != nil {
		return fmt.Errorf("store: save conversation summary %s: %w", conversationID, err)
	}
	return nil
}

// MessageCount returns how many messages the conversation currently has,
// used by the refresh policy in internal/memory.
func (r *ConversationRepository) MessageCount(ctx context.Context, conversationID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM messages WHERE conversation_id = $1`, conversationID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("store: count messages %s: %w", conversationID, err)
	}
	return count, nil
}
