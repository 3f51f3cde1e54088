package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"

	"github.com/moltagent/moltagent/internal/metrics"
)

const defaultGeminiEndpoint = "https://generativelanguage.googleapis.com/v1beta"

// GeminiClient calls the Gemini generateContent REST API with key rotation.
type GeminiClient struct {
	keys       []string
	envDefault string
	endpoint   string
	httpClient *http.Client
	rotation   RotationStore
	metrics    *metrics.Metrics
}

// NewGeminiClient discovers GOOGLE_API_KEY* credentials from environ. m may
// be nil, disabling instrumentation.
func NewGeminiClient(environ []string, rotation RotationStore, m *metrics.Metrics) (*GeminiClient, error) {
	keys := DiscoverKeys(environ, KeyPrefix(ProviderGemini))
	if len(keys) == 0 {
		return nil, fmt.Errorf("no %s* variables found in environment", KeyPrefix(ProviderGemini))
	}
	endpoint := EnvValue(environ, "GEMINI_API_URL")
	if endpoint == "" {
		endpoint = defaultGeminiEndpoint
	}
	return &GeminiClient{
		keys:       keys,
		envDefault: EnvValue(environ, "GEMINI_DEFAULT_MODEL"),
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: 120 * time.Second},
		rotation:   rotation,
		metrics:    m,
	}, nil
}

func (c *GeminiClient) countAttempt(outcome string) {
	if c.metrics != nil {
		c.metrics.LLMAttemptsTotal.WithLabelValues(string(ProviderGemini), outcome).Inc()
	}
}

func (c *GeminiClient) countRotation() {
	if c.metrics != nil {
		c.metrics.LLMKeyRotationsTotal.WithLabelValues(string(ProviderGemini)).Inc()
	}
}

// Name implements Client.
func (c *GeminiClient) Name() ProviderName { return ProviderGemini }

// Invoke iterates (credential, model) pairs starting from the persisted
// rotation index; soft failures persist the advanced index immediately.
func (c *GeminiClient) Invoke(ctx context.Context, prompt string, opts Options) (*Result, error) {
	models := CandidateModels(opts.Model, c.envDefault, geminiDefaultModels)
	requestID := uuid.NewString()

	start := clampIndex(c.rotation.KeyIndex(string(ProviderGemini)), len(c.keys))
	rotIdx := start

	maxAttempts := len(c.keys) * len(models)
	if opts.MaxAttempts > 0 && opts.MaxAttempts < maxAttempts {
		maxAttempts = opts.MaxAttempts
	}

	attempts := 0
	var lastErr error

	for keyOffset := 0; keyOffset < len(c.keys) && attempts < maxAttempts; keyOffset++ {
		keyIndex := (start + keyOffset) % len(c.keys)
		for _, model := range models {
			if attempts >= maxAttempts {
				break
			}
			attempts++

			text, status, err := c.generateContent(ctx, c.keys[keyIndex], model, prompt)
			if err == nil {
				c.countAttempt("success")
				if perr := c.rotation.MarkProviderUsed(string(ProviderGemini), keyIndex, model); perr != nil {
					log.Warn().Err(perr).Msg("Failed to persist Gemini rotation state")
				}
				return &Result{
					Text:      text,
					Provider:  ProviderGemini,
					KeyIndex:  keyIndex,
					Model:     model,
					RequestID: requestID,
				}, nil
			}

			soft := IsSoftStatus(status)
			lastErr = &AttemptError{
				Provider: ProviderGemini,
				KeyIndex: keyIndex,
				Model:    model,
				Status:   status,
				Soft:     soft,
				Err:      err,
			}
			log.Warn().
				Str("request_id", requestID).
				Int("key_index", keyIndex).
				Str("model", model).
				Int("status", status).
				Bool("soft", soft).
				Err(err).
				Msg("Gemini attempt failed")

			if soft {
				c.countAttempt("soft_failure")
				c.countRotation()
				rotIdx = (rotIdx + 1) % len(c.keys)
				if perr := c.rotation.SetKeyIndex(string(ProviderGemini), rotIdx); perr != nil {
					log.Warn().Err(perr).Msg("Failed to persist Gemini key index")
				}
			} else {
				c.countAttempt("hard_failure")
			}
		}
	}

	return nil, &ExhaustedError{Provider: ProviderGemini, Attempts: attempts, Last: lastErr}
}

// generateContent performs one HTTP attempt. A response missing a text part
// is a failure (status 0), not a crash.
func (c *GeminiClient) generateContent(ctx context.Context, apiKey, model, prompt string) (string, int, error) {
	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s",
		c.endpoint, model, url.QueryEscape(apiKey))

	body, err := json.Marshal(map[string]interface{}{
		"contents": []map[string]interface{}{
			{
				"role":  "user",
				"parts": []map[string]string{{"text": prompt}},
			},
		},
	})
	if err != nil {
		return "", 0, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", resp.StatusCode, fmt.Errorf("HTTP %d: %s", resp.StatusCode, truncate(string(data), 300))
	}

	text := gjson.GetBytes(data, "candidates.0.content.parts.0.text")
	if !text.Exists() {
		text = gjson.GetBytes(data, "candidates.0.output_text")
	}
	if !text.Exists() || text.Type != gjson.String {
		return "", resp.StatusCode, fmt.Errorf("response contains no text")
	}
	return text.String(), resp.StatusCode, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
