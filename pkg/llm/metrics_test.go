package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moltagent/moltagent/internal/metrics"
)

func TestRouterAndClientRecordMetrics(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if bearerKey(r) == "limited" {
			w.WriteHeader(http.StatusTooManyRequests)
			fmt.Fprint(w, `{"error":{"message":"rate limited"}}`)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, chatCompletionBody("ok"))
	}))
	defer server.Close()

	rotation := newMemRotation()
	m := metrics.NewMetrics()
	client, err := NewGLMClient(glmEnviron(server.URL, "limited", "fresh"), rotation, m)
	require.NoError(t, err)
	router := NewRouter([]ProviderName{ProviderGLM}, map[ProviderName]Client{ProviderGLM: client}, rotation, m)

	_, err = router.Call(context.Background(), "hi", Options{Model: "glm-4.6"})
	require.NoError(t, err)

	// One soft failure on the limited key, then success on the fresh one.
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LLMCallsTotal.WithLabelValues("glm", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LLMAttemptsTotal.WithLabelValues("glm", "soft_failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LLMAttemptsTotal.WithLabelValues("glm", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LLMKeyRotationsTotal.WithLabelValues("glm")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.LLMCallDuration))
}

func TestRouterRecordsErrorCall(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	rotation := newMemRotation()
	m := metrics.NewMetrics()
	client, err := NewGLMClient(glmEnviron(server.URL, "only"), rotation, m)
	require.NoError(t, err)
	router := NewRouter([]ProviderName{ProviderGLM}, map[ProviderName]Client{ProviderGLM: client}, rotation, m)

	_, err = router.Call(context.Background(), "hi", Options{Model: "glm-4.6"})
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.LLMCallsTotal.WithLabelValues("glm", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LLMAttemptsTotal.WithLabelValues("glm", "soft_failure")))
}
