package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/rs/zerolog/log"

	"github.com/moltagent/moltagent/internal/metrics"
)

const (
	defaultGLMBaseURL  = "https://api.z.ai/api/paas/v4/"
	defaultKimiBaseURL = "https://api.moonshot.ai/v1/"
)

// ChatClient calls an OpenAI-compatible chat-completions backend (GLM, Kimi)
// with nested credential/model rotation.
type ChatClient struct {
	name       ProviderName
	keys       []string
	envDefault string
	builtin    []string
	baseURL    string
	rotation   RotationStore
	metrics    *metrics.Metrics
	// extra request options, injected by tests
	reqOpts []option.RequestOption
}

// NewGLMClient discovers GLM_API_KEY* credentials from environ. m may be
// nil, disabling instrumentation.
func NewGLMClient(environ []string, rotation RotationStore, m *metrics.Metrics) (*ChatClient, error) {
	return newChatClient(environ, rotation, m, ProviderGLM, "GLM_API_URL", "GLM_DEFAULT_MODEL", defaultGLMBaseURL, glmDefaultModels)
}

// NewKimiClient discovers KIMI_API_KEY* credentials from environ. m may be
// nil, disabling instrumentation.
func NewKimiClient(environ []string, rotation RotationStore, m *metrics.Metrics) (*ChatClient, error) {
	return newChatClient(environ, rotation, m, ProviderKimi, "KIMI_API_URL", "KIMI_DEFAULT_MODEL", defaultKimiBaseURL, kimiDefaultModels)
}

func newChatClient(environ []string, rotation RotationStore, m *metrics.Metrics, name ProviderName, urlVar, modelVar, defaultURL string, builtin []string) (*ChatClient, error) {
	keys := DiscoverKeys(environ, KeyPrefix(name))
	if len(keys) == 0 {
		return nil, fmt.Errorf("no %s* variables found in environment", KeyPrefix(name))
	}
	baseURL := EnvValue(environ, urlVar)
	if baseURL == "" {
		baseURL = defaultURL
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &ChatClient{
		name:       name,
		keys:       keys,
		envDefault: EnvValue(environ, modelVar),
		builtin:    builtin,
		baseURL:    baseURL,
		rotation:   rotation,
		metrics:    m,
	}, nil
}

func (c *ChatClient) countAttempt(outcome string) {
	if c.metrics != nil {
		c.metrics.LLMAttemptsTotal.WithLabelValues(string(c.name), outcome).Inc()
	}
}

func (c *ChatClient) countRotation() {
	if c.metrics != nil {
		c.metrics.LLMKeyRotationsTotal.WithLabelValues(string(c.name)).Inc()
	}
}

// Name implements Client.
func (c *ChatClient) Name() ProviderName { return c.name }

// Invoke iterates all models of credential i before advancing to credential
// i+1, wrapping credentials, covering min(maxAttempts, keys*models)
// combinations.
func (c *ChatClient) Invoke(ctx context.Context, prompt string, opts Options) (*Result, error) {
	models := CandidateModels(opts.Model, c.envDefault, c.builtin)
	requestID := uuid.NewString()

	start := clampIndex(c.rotation.KeyIndex(string(c.name)), len(c.keys))
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

			text, status, err := c.complete(ctx, c.keys[keyIndex], model, prompt)
			if err == nil {
				c.countAttempt("success")
				if perr := c.rotation.MarkProviderUsed(string(c.name), keyIndex, model); perr != nil {
					log.Warn().Err(perr).Str("provider", string(c.name)).Msg("Failed to persist rotation state")
				}
				log.Debug().
					Str("request_id", requestID).
					Str("provider", string(c.name)).
					Int("key_index", keyIndex).
					Str("model", model).
					Int("attempts", attempts).
					Msg("Chat completion succeeded")
				return &Result{
					Text:      text,
					Provider:  c.name,
					KeyIndex:  keyIndex,
					Model:     model,
					RequestID: requestID,
				}, nil
			}

			soft := IsSoftStatus(status)
			lastErr = &AttemptError{
				Provider: c.name,
				KeyIndex: keyIndex,
				Model:    model,
				Status:   status,
				Soft:     soft,
				Err:      err,
			}
			log.Warn().
				Str("request_id", requestID).
				Str("provider", string(c.name)).
				Int("key_index", keyIndex).
				Str("model", model).
				Int("status", status).
				Bool("soft", soft).
				Err(err).
				Msg("Chat completion attempt failed")

			if soft {
				c.countAttempt("soft_failure")
				c.countRotation()
				rotIdx = (rotIdx + 1) % len(c.keys)
				if perr := c.rotation.SetKeyIndex(string(c.name), rotIdx); perr != nil {
					log.Warn().Err(perr).Str("provider", string(c.name)).Msg("Failed to persist key index")
				}
			} else {
				c.countAttempt("hard_failure")
			}
		}
	}

	return nil, &ExhaustedError{Provider: c.name, Attempts: attempts, Last: lastErr}
}

// complete performs one chat-completions attempt. The status is 0 when the
// failure was not an HTTP error.
func (c *ChatClient) complete(ctx context.Context, apiKey, model, prompt string) (string, int, error) {
	reqOpts := append([]option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithBaseURL(c.baseURL),
		option.WithMaxRetries(0), // rotation is the retry strategy
	}, c.reqOpts...)
	client := openai.NewClient(reqOpts...)

	completion, err := client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
	})
	if err != nil {
		var apierr *openai.Error
		if errors.As(err, &apierr) {
			return "", apierr.StatusCode, fmt.Errorf("chat completion failed: %w", err)
		}
		return "", 0, fmt.Errorf("chat completion failed: %w", err)
	}

	if len(completion.Choices) == 0 || completion.Choices[0].Message.Content == "" {
		return "", 0, fmt.Errorf("response contains no usable text")
	}
	return completion.Choices[0].Message.Content, 200, nil
}
