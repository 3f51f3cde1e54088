// Package llm invokes the configured language-model providers with
// credential/model failover and round-robin continuity across calls.
//
// Invariants:
// - Rotation indices are persisted through the shared state document so a
//   later caller never retries a key that was just rate-limited.
// - A call exhausts all (credential, model) combinations of a provider before
//   the router moves to the next provider.
// - Under a healthy multi-provider configuration, consecutive calls start
//   from different providers.
package llm

import "context"

// ProviderName identifies an LLM backend.
type ProviderName string

const (
	ProviderGemini ProviderName = "gemini"
	ProviderGLM    ProviderName = "glm"
	ProviderKimi   ProviderName = "kimi"
)

// KnownProviders is the fixed priority order used for auto-detection.
var KnownProviders = []ProviderName{ProviderGemini, ProviderGLM, ProviderKimi}

// KeyPrefix returns the environment-variable prefix holding a provider's
// API keys (unsuffixed first, then numeric suffixes).
func KeyPrefix(p ProviderName) string {
	switch p {
	case ProviderGemini:
		return "GOOGLE_API_KEY"
	case ProviderGLM:
		return "GLM_API_KEY"
	case ProviderKimi:
		return "KIMI_API_KEY"
	default:
		return ""
	}
}

// Options tune a single invocation.
type Options struct {
	// Model overrides the candidate model list's first entry.
	Model string
	// MaxAttempts caps the number of (credential, model) combinations tried.
	// Zero means all of them.
	MaxAttempts int
}

// Result is a successful invocation.
type Result struct {
	Text      string
	Provider  ProviderName
	KeyIndex  int
	Model     string
	RequestID string
}

// Client is one provider backend.
type Client interface {
	Name() ProviderName
	Invoke(ctx context.Context, prompt string, opts Options) (*Result, error)
}

// RotationStore persists rotation state between calls. *state.Store
// satisfies it.
type RotationStore interface {
	KeyIndex(provider string) int
	SetKeyIndex(provider string, idx int) error
	MarkProviderUsed(provider string, idx int, model string) error
	LastProvider() string
}

// clampIndex resets an out-of-range rotation index to 0. Covers external
// config shrinkage (a key removed from the environment).
func clampIndex(idx, keyCount int) int {
	if idx < 0 || idx >= keyCount {
		return 0
	}
	return idx
}
