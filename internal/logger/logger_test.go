package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWritesToFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "agent.log")
	l, err := New(Config{Level: "debug", File: file, Console: false})
	require.NoError(t, err)

	zl := l.GetZerolog()
	zl.Info().Str("component", "test").Msg("hello")
	require.NoError(t, l.Close())

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello")
}

func TestInvalidLevelFallsBackToInfo(t *testing.T) {
	l, err := New(Config{Level: "chatty", Console: false})
	require.NoError(t, err)
	defer l.Close()
	assert.Equal(t, "info", l.GetZerolog().GetLevel().String())
}

func TestRedactorScrubsCredentials(t *testing.T) {
	r := NewRedactor()

	cases := map[string]string{
		"calling with sk-abcdefghijklmnopqrstuvwx":             "sk-",
		"url ?key=abcdefghijklmnopqrstuvwxyz123456":            "key=abcdef",
		"Authorization: Bearer moltbook-token-here":            "moltbook-token-here",
		`payload {"api_key":"super-secret-value","name":"ok"}`: "super-secret-value",
	}
	for input, secret := range cases {
		out := r.Redact(input)
		assert.NotContains(t, out, secret, "input %q leaked", input)
		assert.Contains(t, out, "[REDACTED]")
	}
}

func TestRedactorLeavesPlainTextAlone(t *testing.T) {
	r := NewRedactor()
	assert.Equal(t, "a perfectly normal message", r.Redact("a perfectly normal message"))
}

func TestRedactionWrapsFileOutput(t *testing.T) {
	file := filepath.Join(t.TempDir(), "agent.log")
	l, err := New(Config{Level: "info", File: file, Console: false, Redaction: true})
	require.NoError(t, err)

	zl := l.GetZerolog()
	zl.Info().Msg("token Bearer abc.def.ghi leaked")
	require.NoError(t, l.Close())

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "abc.def.ghi")
}
