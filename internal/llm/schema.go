package llm

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// BuildSchema reflects a Go struct into a strict JSON Schema used to
// force structured output from a provider, instead of hand-maintaining
// schema literals for the orchestrator, reranker, query-expansion, and
// validator calls. name becomes the schema's wire identifier.
func BuildSchema(name string, v any) *JSONSchema {
	reflector := &jsonschema.Reflector{
		DoNotReference:            true,
		ExpandedStruct:            true,
		RequiredFromJSONSchemaTags: false,
		AllowAdditionalProperties: false,
	}
	schema := reflector.Reflect(v)

	raw, _ := schema.MarshalJSON()
	var asMap map[string]any
	_ = json.Unmarshal(raw, &asMap)

	return &JSONSchema{
		Name:   name,
		Strict: true,
		Schema: asMap,
	}
}
