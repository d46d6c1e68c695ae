package engine

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/atenea-ai/agent-engine/internal/llm"
)

// validatorResult is the strict-schema JSON shape the validator call
// returns (spec §4.8 "Validate"), grounded in
// original_source/app/services/agent_engine/nodes/validate.py's
// VALIDATION_SCHEMA.
type validatorResult struct {
	Passed      bool     `json:"passed"`
	QualityScore float64 `json:"quality_score"`
	Issues      []string `json:"issues"`
	Suggestions []string `json:"suggestions"`
}

const validatorSystemPrompt = `Eres un validador de calidad de respuestas de un agente conversacional.

Evalúa la última respuesta del asistente según estos cinco criterios:
1. Precisión: ¿la información es correcta y está basada en el contexto provisto?
2. Completitud: ¿responde completamente a la pregunta del cliente?
3. Tono: ¿es profesional y apropiado?
4. Claridad: ¿es fácil de entender?
5. Seguridad: ¿evita inventar información no presente en el contexto?

Responde en JSON con: passed (bool), quality_score (0.0-1.0), issues (lista de problemas encontrados),
suggestions (lista de sugerencias concretas de mejora).`

// Validate is the conditional self-validation node (spec §4.8
// "Validate"). The graph executor only invokes it when confidence < 0.75
// (spec §4.9); Validate itself does not check that predicate.
type Validate struct {
	llmClient llm.Client
	tracker   *llm.Tracker
	model     string
}

func NewValidate(llmClient llm.Client, tracker *llm.Tracker, model string) *Validate {
	return &Validate{llmClient: llmClient, tracker: tracker, model: model}
}

// Run scores the last assistant reply. On any failure it fails open:
// passed=true, quality_score=0.8 (spec §4.8, §7 "Validation errors").
func (v *Validate) Run(ctx context.Context, s *State) Update {
	result, err := v.validate(ctx, s)
	if err != nil {
		passed := true
		score := 0.8
		return Update{
			Node:               "validate",
			ValidationPassed:   &passed,
			QualityScore:       &score,
			ValidationIssues:   nil,
			ValidationFeedback: strPtr("validation call failed, failing open"),
		}
	}

	passed := result.Passed
	score := result.QualityScore
	feedback := formatFeedback(result)
	return Update{
		Node:               "validate",
		ValidationPassed:   &passed,
		QualityScore:       &score,
		ValidationIssues:   result.Issues,
		ValidationFeedback: &feedback,
	}
}

func (v *Validate) validate(ctx context.Context, s *State) (validatorResult, error) {
	if v.llmClient == nil {
		return validatorResult{}, fmt.Errorf("engine: no llm client configured for validate")
	}
	reply, ok := s.LastAIMessage()
	if !ok {
		return validatorResult{}, fmt.Errorf("engine: validate called with no assistant reply to score")
	}
	question, _ := s.LastHumanMessage()

	userMsg := fmt.Sprintf("PREGUNTA DEL CLIENTE:\n%s\n\nRESPUESTA DEL ASISTENTE A EVALUAR:\n%s", question, reply)
	schema := llm.BuildSchema("validation_result", validatorResult{})
	temp := 0.0

	call := v.tracker.Start(llm.CallMeta{
		BusinessID:       s.BusinessID,
		ExecutionID:      s.ExecutionID,
		OperationType:    llm.OperationValidation,
		OperationContext: "validate_node.score",
		Provider:         v.llmClient.Provider(),
		Model:            v.model,
		ReasoningEffort:  llm.EffortLow,
	})

	resp, err := v.llmClient.Complete(ctx, llm.CompletionRequest{
		Model: v.model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: validatorSystemPrompt},
			{Role: llm.RoleHuman, Content: userMsg},
		},
		ResponseSchema: schema,
		Temperature:    &temp,
	})
	if err != nil {
		call.Done(ctx, err)
		return validatorResult{}, err
	}

	var parsed validatorResult
	if jsonErr := json.Unmarshal([]byte(resp.Text), &parsed); jsonErr != nil {
		call.Record(resp.Usage.InputTokens, resp.Usage.OutputTokens, resp.Usage.CachedTokens, false)
		call.Done(ctx, jsonErr)
		return validatorResult{}, jsonErr
	}
	call.Record(resp.Usage.InputTokens, resp.Usage.OutputTokens, resp.Usage.CachedTokens, false)
	call.Done(ctx, nil)
	return parsed, nil
}

func formatFeedback(r validatorResult) string {
	if len(r.Suggestions) == 0 {
		return ""
	}
	feedback := "Sugerencias de mejora:"
	for _, s := range r.Suggestions {
		feedback += "\n- " + s
	}
	return feedback
}

func strPtr(s string) *string { return &s }
