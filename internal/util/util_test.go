package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderTemplate(t *testing.T) {
	out, err := RenderTemplate("Review {{.generated_code}} carefully", map[string]any{"generated_code": "def f(): pass"})
	require.NoError(t, err)
	assert.Equal(t, "Review def f(): pass carefully", out)
}

func TestRenderTemplate_FastPath(t *testing.T) {
	out, err := RenderTemplate("no markers here", nil)
	require.NoError(t, err)
	assert.Equal(t, "no markers here", out)
}

func TestRenderTemplate_PreservesQuotes(t *testing.T) {
	out, err := RenderTemplate(`say "hello" to {{.name}}`, map[string]any{"name": `<world>`})
	require.NoError(t, err)
	assert.Equal(t, `say "hello" to <world>`, out)
}

func TestRenderTemplate_Funcs(t *testing.T) {
	out, err := RenderTemplate("{{upper .x}}", map[string]any{"x": "loud"})
	require.NoError(t, err)
	assert.Equal(t, "LOUD", out)
}

func TestCreateSchema(t *testing.T) {
	type args struct {
		Query string `json:"query" description:"Search query"`
		Count int    `json:"count,omitempty"`
	}

	schema := CreateSchema(args{})
	assert.Equal(t, "object", schema["type"])

	props := schema["properties"].(map[string]any)
	q := props["query"].(map[string]any)
	assert.Equal(t, "string", q["type"])
	assert.Equal(t, "Search query", q["description"])
	assert.Equal(t, "integer", props["count"].(map[string]any)["type"])

	required := schema["required"].([]string)
	assert.Equal(t, []string{"query"}, required)
}

func TestValidateParameters(t *testing.T) {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{"type": "string"},
			"count": map[string]any{"type": "integer"},
		},
		"required": []any{"query"},
	}

	assert.NoError(t, ValidateParameters(map[string]any{"query": "x", "count": float64(3)}, schema))

	err := ValidateParameters(map[string]any{}, schema)
	require.Error(t, err)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "query", verr.Field)

	err = ValidateParameters(map[string]any{"query": 42}, schema)
	require.Error(t, err)
}

func TestStripCodeFences(t *testing.T) {
	cases := map[string]string{
		"```python\nprint('hi')\n```": "print('hi')",
		"```\ncode\n```":              "code",
		"plain":                       "plain",
		"```python```":                "python",
	}
	for in, want := range cases {
		assert.Equal(t, want, StripCodeFences(in), "input %q", in)
	}
}
