package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chatCompletionBody(content string) string {
	return fmt.Sprintf(`{"id":"cmpl-1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":%q},"finish_reason":"stop"}]}`, content)
}

func glmEnviron(serverURL string, keys ...string) []string {
	environ := []string{"GLM_API_URL=" + serverURL}
	for i, k := range keys {
		name := "GLM_API_KEY"
		if i > 0 {
			name = fmt.Sprintf("GLM_API_KEY%d", i+1)
		}
		environ = append(environ, name+"="+k)
	}
	return environ
}

func bearerKey(r *http.Request) string {
	return strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
}

func TestChatClientRotatesPastRateLimitedKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if bearerKey(r) == "limited" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			fmt.Fprint(w, `{"error":{"message":"rate limited"}}`)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, chatCompletionBody("glm says hi"))
	}))
	defer server.Close()

	rotation := newMemRotation()
	client, err := NewGLMClient(glmEnviron(server.URL, "limited", "fresh"), rotation, nil)
	require.NoError(t, err)

	result, err := client.Invoke(context.Background(), "hi", Options{Model: "glm-4.6"})
	require.NoError(t, err)
	assert.Equal(t, "glm says hi", result.Text)
	assert.Equal(t, ProviderGLM, result.Provider)
	assert.Equal(t, "glm-4.6", result.Model)

	// All five candidate models of the limited key fail soft before the
	// fresh key is tried, so the persisted index has wrapped back around.
	assert.Equal(t, "glm", rotation.LastProvider())
	assert.Equal(t, "glm-4.6", rotation.lastModel["glm"])
}

func TestChatClientModelsNestedWithinKey(t *testing.T) {
	var seen []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, bearerKey(r))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error":{"message":"nope"}}`)
	}))
	defer server.Close()

	rotation := newMemRotation()
	client, err := NewKimiClient([]string{
		"KIMI_API_URL=" + server.URL,
		"KIMI_API_KEY=first",
		"KIMI_API_KEY2=second",
	}, rotation, nil)
	require.NoError(t, err)

	_, err = client.Invoke(context.Background(), "hi", Options{})
	require.Error(t, err)

	// Two built-in Kimi models: both tried for key one before key two.
	require.Len(t, seen, 4)
	assert.Equal(t, []string{"first", "first", "second", "second"}, seen)

	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, ProviderKimi, exhausted.Provider)
	assert.Equal(t, 4, exhausted.Attempts)
}

func TestChatClientMaxAttemptsCapsCombinations(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	rotation := newMemRotation()
	client, err := NewKimiClient([]string{
		"KIMI_API_URL=" + server.URL,
		"KIMI_API_KEY=a",
		"KIMI_API_KEY2=b",
	}, rotation, nil)
	require.NoError(t, err)

	_, err = client.Invoke(context.Background(), "hi", Options{MaxAttempts: 3})
	require.Error(t, err)
	assert.Equal(t, 3, calls)

	// Three soft failures from index 0 across two keys: (0+3) mod 2.
	assert.Equal(t, 1, rotation.KeyIndex("kimi"))
}

func TestChatClientEmptyChoicesIsHardFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"cmpl-1","object":"chat.completion","choices":[]}`)
	}))
	defer server.Close()

	rotation := newMemRotation()
	client, err := NewGLMClient(glmEnviron(server.URL, "k"), rotation, nil)
	require.NoError(t, err)

	_, err = client.Invoke(context.Background(), "hi", Options{Model: "glm-4.6", MaxAttempts: 1})
	require.Error(t, err)
	assert.Equal(t, 0, rotation.KeyIndex("glm"))
}
