// Package state persists the agent's shared document as a single JSON file.
//
// Invariants:
// - Every mutation is a full read-modify-write of the whole document.
// - Capped sequences (actions, topics, verification attempts) never exceed
//   their caps and are ordered newest first.
// - Cooldown checks must go through a fresh Load, never a cached copy.
//
// The store is safe for concurrent use within one process. Two processes
// sharing one file will lose updates (last write wins on the whole document).
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Store owns the state document at a fixed path.
type Store struct {
	path string
	mu   sync.Mutex
}

// Open creates a store for the document at path. The file is created with
// defaults on first Load, not here.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("state path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}
	return &Store{path: path}, nil
}

// Path returns the document location.
func (s *Store) Path() string {
	return s.path
}

// Load reads the full document, writing defaults first if it does not exist
// or cannot be parsed.
func (s *Store) Load() (*State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked()
}

func (s *Store) loadLocked() (*State, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read state file: %w", err)
		}
		initial := NewState()
		if err := s.writeLocked(initial); err != nil {
			return nil, err
		}
		log.Info().Str("path", s.path).Msg("State file created with defaults")
		return initial, nil
	}

	st := NewState()
	if err := json.Unmarshal(data, st); err != nil {
		// A corrupt document is unrecoverable; start over rather than crash
		// the loop forever.
		log.Error().Err(err).Str("path", s.path).Msg("State file corrupt, resetting to defaults")
		initial := NewState()
		if werr := s.writeLocked(initial); werr != nil {
			return nil, werr
		}
		return initial, nil
	}
	st.normalize()
	return st, nil
}

// Update performs an atomic read-modify-write: it loads the latest document,
// applies mutate, and rewrites the whole file. The updated document is
// returned.
func (s *Store) Update(mutate func(*State)) (*State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.loadLocked()
	if err != nil {
		return nil, err
	}
	mutate(st)
	st.normalize()
	if err := s.writeLocked(st); err != nil {
		return nil, err
	}
	return st, nil
}

func (s *Store) writeLocked(st *State) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace state file: %w", err)
	}
	return nil
}

// AppendAction prepends rec to the action history, evicting beyond the cap.
func (s *Store) AppendAction(rec ActionRecord) error {
	if rec.At.IsZero() {
		rec.At = time.Now().UTC()
	}
	_, err := s.Update(func(st *State) {
		st.RecentActions = append([]ActionRecord{rec}, st.RecentActions...)
		if len(st.RecentActions) > MaxRecentActions {
			st.RecentActions = st.RecentActions[:MaxRecentActions]
		}
	})
	if err != nil {
		log.Error().Err(err).Str("kind", rec.Kind).Msg("Failed to record action")
	}
	return err
}

// AppendTopic prepends a topic entry and bumps its running counter.
func (s *Store) AppendTopic(entry TopicEntry) error {
	if entry.Topic == "" {
		entry.Topic = "unknown"
	}
	if entry.Sentiment == "" {
		entry.Sentiment = "neutral"
	}
	if entry.Subtopics == nil {
		entry.Subtopics = []string{}
	}
	now := time.Now().UTC()
	entry.At = now

	_, err := s.Update(func(st *State) {
		st.TopicHistory = append([]TopicEntry{entry}, st.TopicHistory...)
		if len(st.TopicHistory) > MaxTopicHistory {
			st.TopicHistory = st.TopicHistory[:MaxTopicHistory]
		}
		prev := st.TopicStats[entry.Topic]
		at := now
		st.TopicStats[entry.Topic] = TopicStat{Count: prev.Count + 1, LastAt: &at}
	})
	if err != nil {
		log.Error().Err(err).Str("topic", entry.Topic).Msg("Failed to record topic")
	}
	return err
}

// AppendVerification prepends a verification attempt.
func (s *Store) AppendVerification(attempt VerificationAttempt) error {
	attempt.At = time.Now().UTC()
	_, err := s.Update(func(st *State) {
		st.VerificationHistory = append([]VerificationAttempt{attempt}, st.VerificationHistory...)
		if len(st.VerificationHistory) > MaxVerificationHistory {
			st.VerificationHistory = st.VerificationHistory[:MaxVerificationHistory]
		}
	})
	if err != nil {
		log.Error().Err(err).Msg("Failed to record verification attempt")
	}
	return err
}

// KeyIndex returns the persisted rotation index for a provider (0 when the
// document cannot be read).
func (s *Store) KeyIndex(provider string) int {
	st, err := s.Load()
	if err != nil {
		return 0
	}
	return st.ProviderKeyIndex[provider]
}

// SetKeyIndex persists an advanced rotation index so a later caller does not
// retry an exhausted key.
func (s *Store) SetKeyIndex(provider string, idx int) error {
	_, err := s.Update(func(st *State) {
		st.ProviderKeyIndex[provider] = idx
	})
	return err
}

// MarkProviderUsed records a successful call: rotation index, last provider,
// and the model used (diagnostic only).
func (s *Store) MarkProviderUsed(provider string, idx int, model string) error {
	_, err := s.Update(func(st *State) {
		st.ProviderKeyIndex[provider] = idx
		st.LastUsedProvider = provider
		if model != "" {
			st.LastUsedModel[provider] = model
		}
	})
	return err
}

// LastProvider returns the provider used by the last successful call.
func (s *Store) LastProvider() string {
	st, err := s.Load()
	if err != nil {
		return ""
	}
	return st.LastUsedProvider
}
