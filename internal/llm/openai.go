package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	openaiDefaultBaseURL = "https://api.openai.com/v1"
	openaiDefaultTimeout = 60 * time.Second
)

// OpenAIConfig configures the OpenAI-style chat-completions client. This
// is a non-streaming client (spec §1 non-goal: "does not provide
// streaming partial responses"), using raw net/http the way the teacher
// implements pkg/model/openai/openai.go rather than the official SDK.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// OpenAIClient implements Client against the OpenAI-compatible chat
// completions API (also used for Groq's OpenAI-compatible endpoint; see
// NewGroqClient).
type OpenAIClient struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
	provider   Provider
}

// NewOpenAIClient constructs a Client backed by api.openai.com.
func NewOpenAIClient(cfg OpenAIConfig) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("llm: openai API key is required")
	}
	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = openaiDefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = openaiDefaultTimeout
	}
	return &OpenAIClient{
		httpClient: &http.Client{Timeout: timeout},
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		provider:   ProviderOpenAI,
	}, nil
}

// NewGroqClient constructs a Client backed by Groq's OpenAI-compatible
// chat completions endpoint (spec §6: "two provider backends are
// expected — OpenAI-style responses/chat, Groq-style responses").
func NewGroqClient(cfg OpenAIConfig) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("llm: groq API key is required")
	}
	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.groq.com/openai/v1"
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = openaiDefaultTimeout
	}
	return &OpenAIClient{
		httpClient: &http.Client{Timeout: timeout},
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		provider:   ProviderGroq,
	}, nil
}

func (c *OpenAIClient) Provider() Provider { return c.provider }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type       string         `json:"type"`
	JSONSchema *jsonSchemaDef `json:"json_schema,omitempty"`
}

type jsonSchemaDef struct {
	Name   string         `json:"name"`
	Strict bool           `json:"strict"`
	Schema map[string]any `json:"schema"`
}

type chatCompletionRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    *float64        `json:"temperature,omitempty"`
	MaxTokens      *int            `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatCompletionChoice struct {
	Message chatMessage `json:"message"`
}

type chatCompletionUsage struct {
	PromptTokens            int `json:"prompt_tokens"`
	CompletionTokens        int `json:"completion_tokens"`
	PromptTokensDetails     *struct {
		CachedTokens int `json:"cached_tokens"`
	} `json:"prompt_tokens_details,omitempty"`
}

type chatCompletionResponse struct {
	Choices []chatCompletionChoice `json:"choices"`
	Usage   chatCompletionUsage    `json:"usage"`
	Error   *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

func roleToWire(r Role) string {
	switch r {
	case RoleHuman:
		return "user"
	case RoleAI:
		return "assistant"
	case RoleSystem:
		return "system"
	default:
		return "user"
	}
}

// Complete sends one chat-completions request and returns the
// aggregated text plus usage. When req.ResponseSchema is set, the
// response is requested in strict JSON-schema mode; a response with no
// choices is then reported as a SchemaViolationError. The returned text
// itself is not checked against the schema here — callers decode it.
func (c *OpenAIClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	wireMessages := make([]chatMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		wireMessages = append(wireMessages, chatMessage{Role: roleToWire(m.Role), Content: m.Content})
	}

	body := chatCompletionRequest{
		Model:       req.Model,
		Messages:    wireMessages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	if req.ResponseSchema != nil {
		body.ResponseFormat = &responseFormat{
			Type: "json_schema",
			JSONSchema: &jsonSchemaDef{
				Name:   req.ResponseSchema.Name,
				Strict: req.ResponseSchema.Strict,
				Schema: req.ResponseSchema.Schema,
			},
		}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("llm: encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("llm: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("llm: %s request failed: %w", c.provider, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("llm: read response: %w", err)
	}

	var parsed chatCompletionResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("llm: decode response: %w", err)
	}
	if parsed.Error != nil {
		return nil, fmt.Errorf("llm: %s error: %s", c.provider, parsed.Error.Message)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("llm: %s returned status %d: %s", c.provider, resp.StatusCode, string(raw))
	}
	if len(parsed.Choices) == 0 {
		if req.ResponseSchema != nil {
			return nil, &SchemaViolationError{SchemaName: req.ResponseSchema.Name, Detail: "no choices returned"}
		}
		return nil, fmt.Errorf("llm: %s returned no choices", c.provider)
	}

	cached := 0
	if parsed.Usage.PromptTokensDetails != nil {
		cached = parsed.Usage.PromptTokensDetails.CachedTokens
	}

	return &CompletionResponse{
		Text: parsed.Choices[0].Message.Content,
		Usage: Usage{
			InputTokens:  parsed.Usage.PromptTokens,
			OutputTokens: parsed.Usage.CompletionTokens,
			CachedTokens: cached,
		},
	}, nil
}
