package jsonx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractObjectPlain(t *testing.T) {
	var out struct {
		Action string `json:"action"`
	}
	err := ExtractObject(`{"action":"home"}`, &out)
	require.NoError(t, err)
	assert.Equal(t, "home", out.Action)
}

func TestExtractObjectProseWrapped(t *testing.T) {
	text := "Sure! Here is my decision:\n```json\n{\"action\":\"post\",\"delaySeconds\":12}\n```\nLet me know."
	var out struct {
		Action       string  `json:"action"`
		DelaySeconds float64 `json:"delaySeconds"`
	}
	err := ExtractObject(text, &out)
	require.NoError(t, err)
	assert.Equal(t, "post", out.Action)
	assert.Equal(t, 12.0, out.DelaySeconds)
}

func TestExtractObjectNestedBraces(t *testing.T) {
	text := `preamble {"outer":{"inner":"value"},"n":1} trailing`
	var out map[string]interface{}
	err := ExtractObject(text, &out)
	require.NoError(t, err)
	assert.Equal(t, 1.0, out["n"])
	inner, ok := out["outer"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "value", inner["inner"])
}

func TestExtractObjectNoObject(t *testing.T) {
	var out map[string]interface{}
	err := ExtractObject("no json here at all", &out)
	assert.Error(t, err)
}

func TestExtractObjectIllFormed(t *testing.T) {
	var out map[string]interface{}
	err := ExtractObject(`result: {"action": "home",}`, &out)
	assert.Error(t, err)
}

func TestObjectStringTakesOutermostSpan(t *testing.T) {
	raw, err := ObjectString(`a {"x":1} b {"y":2} c`)
	// First '{' to last '}' spans both objects; that span is not valid JSON.
	assert.Error(t, err)
	assert.Empty(t, raw)
}

func TestField(t *testing.T) {
	res, ok := Field(`thinking... {"shouldReply":true,"reply":"hi"}`, "shouldReply")
	require.True(t, ok)
	assert.True(t, res.Bool())

	_, ok = Field(`{"shouldReply":true}`, "reply")
	assert.False(t, ok)
}
