package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type exampleSchemaStruct struct {
	Name       string   `json:"name"`
	Confidence float64  `json:"confidence"`
	Tags       []string `json:"tags"`
}

func TestBuildSchema_ReflectsStructIntoJSONSchema(t *testing.T) {
	schema := BuildSchema("example", exampleSchemaStruct{})

	require.NotNil(t, schema)
	assert.Equal(t, "example", schema.Name)
	assert.True(t, schema.Strict)
	require.NotNil(t, schema.Schema)

	props, ok := schema.Schema["properties"].(map[string]any)
	require.True(t, ok, "schema must expose a properties map")
	assert.Contains(t, props, "name")
	assert.Contains(t, props, "confidence")
	assert.Contains(t, props, "tags")
}
