package llm

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/moltagent/moltagent/internal/metrics"
)

// ResolveOrder resolves the configured provider order once at startup.
//
// providersSpec is a comma-separated allow-list ("gemini,glm"), or "auto" to
// probe environ for any configured credential per provider in the fixed
// priority order. When empty, the legacy single-provider override applies,
// defaulting to gemini.
func ResolveOrder(providersSpec, legacy string, environ []string) []ProviderName {
	spec := strings.TrimSpace(providersSpec)
	if spec != "" {
		items := strings.Split(spec, ",")
		var order []ProviderName
		auto := false
		for _, item := range items {
			name := ProviderName(strings.ToLower(strings.TrimSpace(item)))
			if name == "" {
				continue
			}
			if name == "auto" {
				auto = true
				continue
			}
			if !isKnownProvider(name) {
				log.Warn().Str("provider", string(name)).Msg("Ignoring unknown provider in allow-list")
				continue
			}
			order = append(order, name)
		}
		if auto {
			return detectProviders(environ)
		}
		if len(order) > 0 {
			return order
		}
		return []ProviderName{ProviderGemini}
	}

	switch ProviderName(strings.ToLower(strings.TrimSpace(legacy))) {
	case ProviderGLM:
		return []ProviderName{ProviderGLM}
	case ProviderKimi:
		return []ProviderName{ProviderKimi}
	default:
		return []ProviderName{ProviderGemini}
	}
}

func isKnownProvider(name ProviderName) bool {
	for _, p := range KnownProviders {
		if p == name {
			return true
		}
	}
	return false
}

// detectProviders probes the environment for any configured credential per
// provider, preserving the fixed priority order.
func detectProviders(environ []string) []ProviderName {
	var order []ProviderName
	for _, p := range KnownProviders {
		if len(DiscoverKeys(environ, KeyPrefix(p))) > 0 {
			order = append(order, p)
		}
	}
	if len(order) == 0 {
		return []ProviderName{ProviderGemini}
	}
	return order
}

// Router tries providers in rotated order, delegating each to its client.
type Router struct {
	order    []ProviderName
	clients  map[ProviderName]Client
	rotation RotationStore
	metrics  *metrics.Metrics
}

// NewRouter builds a router over the resolved provider order. Clients whose
// environment is not configured may be absent from clients; they are
// skipped. m may be nil, disabling instrumentation.
func NewRouter(order []ProviderName, clients map[ProviderName]Client, rotation RotationStore, m *metrics.Metrics) *Router {
	return &Router{order: order, clients: clients, rotation: rotation, metrics: m}
}

// Order returns the configured provider order.
func (r *Router) Order() []ProviderName {
	return r.order
}

// Primary returns the first provider in the configured order.
func (r *Router) Primary() ProviderName {
	if len(r.order) == 0 {
		return ""
	}
	return r.order[0]
}

// Call invokes the prompt against the providers, continuing the round-robin
// rotation from the last successfully used provider.
func (r *Router) Call(ctx context.Context, prompt string, opts Options) (*Result, error) {
	if len(r.order) == 0 {
		return nil, &ExhaustedError{Last: nil}
	}

	start := 0
	if last := ProviderName(r.rotation.LastProvider()); last != "" {
		for i, p := range r.order {
			if p == last {
				start = (i + 1) % len(r.order)
				break
			}
		}
	}

	var lastErr error
	attempts := 0

	for offset := 0; offset < len(r.order); offset++ {
		provider := r.order[(start+offset)%len(r.order)]
		client, ok := r.clients[provider]
		if !ok {
			log.Warn().Str("provider", string(provider)).Msg("Provider configured but not constructed, skipping")
			continue
		}

		log.Debug().
			Str("provider", string(provider)).
			Int("prompt_len", len(prompt)).
			Msg("Trying provider")

		started := time.Now()
		result, err := client.Invoke(ctx, prompt, opts)
		r.observeCall(provider, started, err)
		if err == nil {
			return result, nil
		}
		attempts++
		lastErr = err
		log.Warn().
			Str("provider", string(provider)).
			Err(err).
			Msg("Provider failed, trying next if any")
	}

	return nil, &ExhaustedError{Attempts: attempts, Last: lastErr}
}

func (r *Router) observeCall(provider ProviderName, started time.Time, err error) {
	if r.metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	r.metrics.LLMCallsTotal.WithLabelValues(string(provider), status).Inc()
	r.metrics.LLMCallDuration.WithLabelValues(string(provider)).Observe(time.Since(started).Seconds())
}
