package state

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "state.json"))
	require.NoError(t, err)
	return store
}

func TestLoadCreatesDefaults(t *testing.T) {
	store := newTestStore(t)

	st, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, st.MoltbookAPIKey)
	assert.Empty(t, st.RecentActions)
	assert.NotNil(t, st.ProviderKeyIndex)
	assert.NotNil(t, st.TopicStats)

	// The file must exist after first access.
	_, err = os.Stat(store.Path())
	assert.NoError(t, err)
}

func TestLoadCorruptFileResets(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, os.WriteFile(store.Path(), []byte("{not json"), 0600))

	st, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, st.LastUsedProvider)
}

func TestUpdateReadModifyWrite(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Update(func(st *State) {
		st.MoltbookAPIKey = "moltbook-key"
		st.AgentName = "TestAgent"
	})
	require.NoError(t, err)

	_, err = store.Update(func(st *State) {
		st.LastStatus = "claimed"
	})
	require.NoError(t, err)

	st, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "moltbook-key", st.MoltbookAPIKey)
	assert.Equal(t, "TestAgent", st.AgentName)
	assert.Equal(t, "claimed", st.LastStatus)
}

func TestAppendActionCapsAtThirtyNewestFirst(t *testing.T) {
	store := newTestStore(t)

	for i := 0; i < MaxRecentActions+1; i++ {
		require.NoError(t, store.AppendAction(ActionRecord{
			Kind:    "home",
			Summary: fmt.Sprintf("action %d", i),
		}))
	}

	st, err := store.Load()
	require.NoError(t, err)
	require.Len(t, st.RecentActions, MaxRecentActions)
	assert.Equal(t, "action 30", st.RecentActions[0].Summary)
	// The oldest original entry is evicted.
	assert.Equal(t, "action 1", st.RecentActions[MaxRecentActions-1].Summary)
}

func TestAppendTopicUpdatesStats(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.AppendTopic(TopicEntry{Topic: "music", Source: "post"}))
	require.NoError(t, store.AppendTopic(TopicEntry{Topic: "music", Source: "comment"}))
	require.NoError(t, store.AppendTopic(TopicEntry{}))

	st, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, 2, st.TopicStats["music"].Count)
	assert.Equal(t, 1, st.TopicStats["unknown"].Count)
	require.Len(t, st.TopicHistory, 3)
	assert.Equal(t, "unknown", st.TopicHistory[0].Topic)
	assert.Equal(t, "neutral", st.TopicHistory[0].Sentiment)
}

func TestVerificationHistoryCap(t *testing.T) {
	store := newTestStore(t)

	for i := 0; i < MaxVerificationHistory+5; i++ {
		require.NoError(t, store.AppendVerification(VerificationAttempt{
			ChallengeText: fmt.Sprintf("challenge %d", i),
			Answer:        "42",
			Success:       i%2 == 0,
		}))
	}

	st, err := store.Load()
	require.NoError(t, err)
	assert.Len(t, st.VerificationHistory, MaxVerificationHistory)
	assert.Equal(t, "challenge 24", st.VerificationHistory[0].ChallengeText)
}

func TestRotationHelpers(t *testing.T) {
	store := newTestStore(t)

	assert.Equal(t, 0, store.KeyIndex("glm"))
	require.NoError(t, store.SetKeyIndex("glm", 2))
	assert.Equal(t, 2, store.KeyIndex("glm"))

	require.NoError(t, store.MarkProviderUsed("glm", 1, "glm-4.6"))
	st, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "glm", st.LastUsedProvider)
	assert.Equal(t, 1, st.ProviderKeyIndex["glm"])
	assert.Equal(t, "glm-4.6", st.LastUsedModel["glm"])
	assert.Equal(t, "glm", store.LastProvider())
}

func TestNormalizeClampsNegativeIndexAndCaps(t *testing.T) {
	store := newTestStore(t)

	st := NewState()
	st.ProviderKeyIndex["gemini"] = -3
	for i := 0; i < MaxTopicHistory+10; i++ {
		st.TopicHistory = append(st.TopicHistory, TopicEntry{Topic: "t", At: time.Now()})
	}
	st.normalize()
	assert.Equal(t, 0, st.ProviderKeyIndex["gemini"])
	assert.Len(t, st.TopicHistory, MaxTopicHistory)
	_ = store
}

func TestSnapshotWritesCopy(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Update(func(st *State) { st.AgentName = "SnapAgent" })
	require.NoError(t, err)

	dir := filepath.Join(t.TempDir(), "backups")
	require.NoError(t, os.MkdirAll(dir, 0700))
	sn := NewSnapshotter(store, dir)
	require.NoError(t, sn.Snapshot())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}
