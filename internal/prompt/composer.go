// Package prompt implements the multi-layer prompt composition system
// (spec §4.3), grounded in
// original_source/app/services/agent_engine/prompt_composer.py's
// PromptComposer class. Four layers — system, agent, knowledge-base
// context, and confidence-driven disclaimer — plus an optional
// conversation-memory tail are joined in order; any layer with no
// content to contribute is simply omitted, never emitted empty.
package prompt

import (
	"fmt"
	"strings"
	"time"
)

// Layer selects which base prompt Compose draws from, mirroring the
// original's layer='system'|'agent'|'greet'|'handoff'|'fallback'.
type Layer string

const (
	LayerSystem   Layer = "system"
	LayerAgent    Layer = "agent"
	LayerGreet    Layer = "greet"
	LayerHandoff  Layer = "handoff"
	LayerFallback Layer = "fallback"
)

// Config is the subset of the per-business agent configuration the
// composer needs. It mirrors store.AgentConfig's fields rather than
// importing internal/store, keeping this package a leaf the way
// internal/memory keeps its own Summary type instead of importing
// internal/store.
type Config struct {
	BusinessName             string
	SystemPrompt             string
	AgentPrompt              string
	GreetPrompt              string
	HandoffPrompt            string
	FallbackPrompt           string
	CustomVariables          map[string]string
	EnableDynamicVariables   bool
	EnableConversationMemory bool
}

// State is the subset of Turn State (spec §3) the composer reads.
type State struct {
	CustomerName              string
	ConversationSummaryText   string
	CustomerSentiment         string
	Complexity                string
	RetrievedDocs             []string
	Confidence                float64
	SuggestHandoffInResponse  bool
	NeedsKnowledgeBase        bool
}

// anti-hallucination guardrail prefix, prepended by the caller (the
// respond node) when retrieved_docs is empty and needs_knowledge_base
// is true (spec §4.8 "Respond"). It is exported so the engine's
// respond.go and respond_test.go share one constant.
const GuardrailPrefix = `⚠️ IMPORTANTE: No se encontró información relevante en la base de conocimiento para esta consulta.
DEBES indicar claramente que no tienes esa información disponible y ofrecer conectar con un asesor humano.
NO inventes ni asumas información que no esté en el contexto provisto.

`

const (
	defaultSystemPrompt = `Eres un asistente de atención al cliente de WhatsApp.

REGLAS CRÍTICAS:
- Siempre sé respetuoso y profesional
- Si no tienes información en la base de conocimiento, di "No tengo esa información" y ofrece conectar con un humano
- Usa el contexto de conocimiento provisto para responder
- NO inventes información`

	defaultHandoffPrompt  = "Te conecto con un asesor que te ayudará mejor 👤"
	defaultFallbackPrompt = "Lo siento, no tengo información específica sobre eso. ¿Te gustaría que te conecte con un asesor?"
)

const memorySummaryMaxChars = 300

// Compose builds a single layer's prompt: base prompt selection,
// system-variable injection (gated by enable_dynamic_variables),
// custom-variable injection, and — system layer only — a
// conversation-memory tail (spec §4.3 steps 1–4). Returns "" when the
// layer has no configured base prompt (agent/greet layers default to
// empty, not a fallback string).
func Compose(cfg Config, st State, layer Layer) string {
	base := baseForLayer(cfg, layer)
	if base == "" {
		return ""
	}

	if cfg.EnableDynamicVariables {
		base = injectSystemVariables(base, cfg, st)
	}
	base = injectCustomVariables(base, cfg.CustomVariables)

	if layer == LayerSystem && cfg.EnableConversationMemory {
		if text := st.ConversationSummaryText; text != "" {
			if runes := []rune(text); len(runes) > memorySummaryMaxChars {
				text = string(runes[:memorySummaryMaxChars])
			}
			base += "\n\n--- Resumen de Conversación Previa ---\n" + text + "\n"
		}
	}

	return base
}

func baseForLayer(cfg Config, layer Layer) string {
	switch layer {
	case LayerSystem:
		if cfg.SystemPrompt != "" {
			return cfg.SystemPrompt
		}
		return defaultSystemPrompt
	case LayerAgent:
		return cfg.AgentPrompt
	case LayerGreet:
		return cfg.GreetPrompt
	case LayerHandoff:
		if cfg.HandoffPrompt != "" {
			return cfg.HandoffPrompt
		}
		return defaultHandoffPrompt
	case LayerFallback:
		if cfg.FallbackPrompt != "" {
			return cfg.FallbackPrompt
		}
		return defaultFallbackPrompt
	default:
		return ""
	}
}

// ComposeSpecialized composes the greet, handoff, or fallback layer
// (spec: "specialized prompts"). It is Compose under a name that
// matches how respond/greet/handoff nodes call it, mirroring the
// original's compose_specialized_prompt wrapper.
func ComposeSpecialized(cfg Config, st State, layer Layer) string {
	return Compose(cfg, st, layer)
}

// ComposeFull assembles the complete prompt handed to the chat
// completion call in the respond node (spec §4.3's 4-layer assembly):
// system (always), agent instructions (optional), knowledge-base
// context (optional), confidence-driven disclaimer (optional). Each
// present layer is separated by a blank line via a labeled header,
// exactly as the original's "\n".join(layers) with the same header
// strings.
func ComposeFull(cfg Config, st State, includeKBContext, includeDisclaimers bool) string {
	var layers []string

	if system := Compose(cfg, st, LayerSystem); system != "" {
		layers = append(layers, system)
	}

	if agent := Compose(cfg, st, LayerAgent); agent != "" {
		layers = append(layers, "\n--- Instrucciones Específicas ---\n"+agent)
	}

	if includeKBContext && len(st.RetrievedDocs) > 0 {
		kb := strings.Join(st.RetrievedDocs, "\n\n")
		layers = append(layers, "\n--- Base de Conocimiento ---\n"+kb)
	}

	if includeDisclaimers {
		if d := confidenceDisclaimer(st.Confidence, st.SuggestHandoffInResponse); d != "" {
			layers = append(layers, d)
		}
	}

	return strings.Join(layers, "\n")
}

// confidenceDisclaimer implements spec §4.3 step 4's three confidence
// bands, verbatim from _build_confidence_disclaimer.
func confidenceDisclaimer(confidence float64, suggestHandoff bool) string {
	switch {
	case confidence < 0.4:
		return `

⚠️ CRÍTICO: Tu nivel de confianza sobre esta consulta es MUY BAJO (<40%).
No tienes información suficiente para responder con certeza.
DEBES ofrecer conectar al usuario con un asesor humano de forma directa y clara.
Ejemplo: "Para ayudarte mejor con esto, te recomiendo hablar con uno de nuestros asesores. ¿Te conecto?"
`
	case confidence < 0.6:
		return `

💡 NOTA: Tu nivel de confianza sobre esta consulta es MEDIO (40-60%).
Responde lo mejor que puedas con la información disponible, pero al final
sugiere de forma natural que pueden contactar a un asesor si necesitan más ayuda.
Ejemplo: "Si necesitas más detalles específicos, puedo conectarte con un asesor 👤"
`
	case suggestHandoff:
		return `

💡 SUGERENCIA: Aunque puedes responder, el usuario podría beneficiarse de atención humana.
Incluye sutilmente la opción de hablar con un asesor si lo prefiere.
`
	default:
		return ""
	}
}

// systemVariable resolves one {placeholder}'s replacement text from
// config/state, mirroring SYSTEM_VARIABLES' lambda table.
type systemVariable func(cfg Config, st State) string

var systemVariables = map[string]systemVariable{
	"business_name": func(cfg Config, st State) string {
		if cfg.BusinessName != "" {
			return cfg.BusinessName
		}
		return "nuestro negocio"
	},
	"customer_name": func(cfg Config, st State) string {
		if st.CustomerName != "" {
			return st.CustomerName
		}
		return "Cliente"
	},
	"current_time": func(cfg Config, st State) string {
		return time.Now().Format("03:04 PM")
	},
	"current_date": func(cfg Config, st State) string {
		return time.Now().Format("02 de January, 2006")
	},
	"day_of_week": func(cfg Config, st State) string {
		return time.Now().Format("Monday")
	},
	"conversation_summary": func(cfg Config, st State) string {
		return st.ConversationSummaryText
	},
	"sentiment": func(cfg Config, st State) string {
		if st.CustomerSentiment != "" {
			return st.CustomerSentiment
		}
		return "neutral"
	},
	"complexity": func(cfg Config, st State) string {
		if st.Complexity != "" {
			return st.Complexity
		}
		return "medium"
	},
}

// injectSystemVariables replaces every {name} placeholder present in
// prompt with its resolved value. A variable whose resolver is absent
// from systemVariables, or whose placeholder isn't present, is left
// untouched — there is no error path here, matching the original's
// try/except-and-keep-placeholder behavior.
func injectSystemVariables(p string, cfg Config, st State) string {
	for name, resolve := range systemVariables {
		placeholder := "{" + name + "}"
		if strings.Contains(p, placeholder) {
			p = strings.ReplaceAll(p, placeholder, resolve(cfg, st))
		}
	}
	return p
}

// injectCustomVariables substitutes config.custom_variables after
// system variables, leaving any placeholder with no matching entry
// intact (spec §4.3: "unresolved placeholders are left intact").
func injectCustomVariables(p string, vars map[string]string) string {
	for name, value := range vars {
		placeholder := fmt.Sprintf("{%s}", name)
		if strings.Contains(p, placeholder) {
			p = strings.ReplaceAll(p, placeholder, value)
		}
	}
	return p
}
