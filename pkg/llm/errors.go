package llm

import (
	"fmt"
	"net/http"
)

// IsSoftStatus reports whether an HTTP status is a key-related failure worth
// rotating past (auth or rate limit) rather than a provider problem.
func IsSoftStatus(status int) bool {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusTooManyRequests:
		return true
	default:
		return false
	}
}

// AttemptError is one failed (credential, model) combination.
type AttemptError struct {
	Provider ProviderName
	KeyIndex int
	Model    string
	Status   int
	Soft     bool
	Err      error
}

func (e *AttemptError) Error() string {
	kind := "hard"
	if e.Soft {
		kind = "soft"
	}
	return fmt.Sprintf("%s key index %d model %q: %s failure (status=%d): %v",
		e.Provider, e.KeyIndex, e.Model, kind, e.Status, e.Err)
}

func (e *AttemptError) Unwrap() error { return e.Err }

// ExhaustedError is raised when every combination of a provider, or every
// provider of the router, has been tried without success.
type ExhaustedError struct {
	Provider ProviderName // empty for router-level exhaustion
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	if e.Provider == "" {
		return fmt.Sprintf("all configured providers exhausted after %d attempts: %v", e.Attempts, e.Last)
	}
	return fmt.Sprintf("provider %s exhausted after %d attempts: %v", e.Provider, e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error { return e.Last }
