package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func geminiEnviron(serverURL string, keys ...string) []string {
	environ := []string{"GEMINI_API_URL=" + serverURL}
	for i, k := range keys {
		name := "GOOGLE_API_KEY"
		if i > 0 {
			name = fmt.Sprintf("GOOGLE_API_KEY%d", i+1)
		}
		environ = append(environ, name+"="+k)
	}
	return environ
}

func geminiTextBody(text string) string {
	return fmt.Sprintf(`{"candidates":[{"content":{"parts":[{"text":%q}]}}]}`, text)
}

func TestGeminiSoftFailureAdvancesPersistedIndex(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	rotation := newMemRotation()
	client, err := NewGeminiClient(geminiEnviron(server.URL, "a", "b", "c"), rotation, nil)
	require.NoError(t, err)

	_, err = client.Invoke(context.Background(), "hi", Options{MaxAttempts: 2})
	require.Error(t, err)

	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, ProviderGemini, exhausted.Provider)
	assert.Equal(t, 2, exhausted.Attempts)

	// (start + N soft failures) mod K = (0 + 2) mod 3.
	assert.Equal(t, 2, rotation.KeyIndex("gemini"))
}

func TestGeminiRotatesToWorkingKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("key") == "bad" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		fmt.Fprint(w, geminiTextBody("hello from gemini"))
	}))
	defer server.Close()

	rotation := newMemRotation()
	client, err := NewGeminiClient(geminiEnviron(server.URL, "bad", "good"), rotation, nil)
	require.NoError(t, err)

	result, err := client.Invoke(context.Background(), "hi", Options{})
	require.NoError(t, err)
	assert.Equal(t, "hello from gemini", result.Text)
	assert.Equal(t, 1, result.KeyIndex)
	assert.Equal(t, "gemini-2.5-flash", result.Model)

	// Success persists rotation state for the next caller.
	assert.Equal(t, 1, rotation.KeyIndex("gemini"))
	assert.Equal(t, "gemini", rotation.LastProvider())
}

func TestGeminiClampsOutOfRangeIndex(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, geminiTextBody("ok"))
	}))
	defer server.Close()

	rotation := newMemRotation()
	// Simulates external config shrinkage: the persisted index points past
	// the discovered key list.
	rotation.idx["gemini"] = 7

	client, err := NewGeminiClient(geminiEnviron(server.URL, "only"), rotation, nil)
	require.NoError(t, err)

	result, err := client.Invoke(context.Background(), "hi", Options{})
	require.NoError(t, err)
	assert.Equal(t, 0, result.KeyIndex)
}

func TestGeminiMissingTextIsFailureNotCrash(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"candidates":[]}`)
	}))
	defer server.Close()

	rotation := newMemRotation()
	client, err := NewGeminiClient(geminiEnviron(server.URL, "k"), rotation, nil)
	require.NoError(t, err)

	_, err = client.Invoke(context.Background(), "hi", Options{})
	require.Error(t, err)

	// A hard failure does not advance the persisted rotation index.
	assert.Equal(t, 0, rotation.KeyIndex("gemini"))
}

func TestGeminiHardFailureContinuesToNextKey(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, geminiTextBody("recovered"))
	}))
	defer server.Close()

	rotation := newMemRotation()
	client, err := NewGeminiClient(geminiEnviron(server.URL, "a", "b"), rotation, nil)
	require.NoError(t, err)

	result, err := client.Invoke(context.Background(), "hi", Options{})
	require.NoError(t, err)
	assert.Equal(t, "recovered", result.Text)
	assert.Equal(t, 1, result.KeyIndex)
}

func TestGeminiNoKeysConfigured(t *testing.T) {
	_, err := NewGeminiClient([]string{"PATH=/bin"}, newMemRotation(), nil)
	assert.Error(t, err)
}
