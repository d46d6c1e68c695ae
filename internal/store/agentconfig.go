package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrAgentNotFound is returned when no agent configuration exists for a
// business (spec §6: "Fails with NotFound if no agent config exists").
var ErrAgentNotFound = errors.New("store: agent config not found")

// AgentConfigRepository reads per-business agent configuration.
type AgentConfigRepository struct {
	db *sql.DB
}

func NewAgentConfigRepository(db *sql.DB) *AgentConfigRepository {
	return &AgentConfigRepository{db: db}
}

func (r *AgentConfigRepository) Get(ctx context.Context, businessID string) (*AgentConfig, error) {
	var (
		cfg             AgentConfig
		customVarsRaw   []byte
		agentPrompt     sql.NullString
		greetPrompt     sql.NullString
		handoffPrompt   sql.NullString
		fallbackPrompt  sql.NullString
	)
	cfg.BusinessID = businessID

	err := r.db.QueryRowContext(ctx, `
		SELECT ac.system_prompt, ac.agent_prompt, ac.greet_prompt, ac.handoff_prompt, ac.fallback_prompt,
		       ac.provider, ac.model, ac.max_tokens, ac.enabled, ac.custom_variables,
		       ac.enable_dynamic_variables, ac.enable_conversation_memory, b.name
		FROM agent_configs ac JOIN businesses b ON b.id = ac.business_id
		WHERE ac.business_id = $1`, businessID).Scan(
		&cfg.SystemPrompt, &agentPrompt, &greetPrompt, &handoffPrompt, &fallbackPrompt,
		&cfg.Provider, &cfg.Model, &cfg.MaxTokens, &cfg.Enabled, &customVarsRaw,
		&cfg.EnableDynamicVariables, &cfg.EnableConversationMemory, &cfg.BusinessName,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAgentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get agent config %s: %w", businessID, err)
	}

	if agentPrompt.Valid {
		cfg.AgentPrompt = &agentPrompt.String
	}
	if greetPrompt.Valid {
		cfg.GreetPrompt = &greetPrompt.String
	}
	if handoffPrompt.Valid {
		cfg.HandoffPrompt = &handoffPrompt.String
	}
	if fallbackPrompt.Valid {
		cfg.FallbackPrompt = &fallbackPrompt.String
	}

	if len(customVarsRaw) > 0 {
		if err := json.Unmarshal(customVarsRaw, &cfg.CustomVariables); err != nil {
			return nil, fmt.Errorf("store: decode custom_variables for %s: %w", businessID, err)
		}
	}

	return &cfg, nil
}
