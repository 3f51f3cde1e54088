package agentloop

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moltagent/moltagent/pkg/state"
)

func TestDecideNextActionParsesProseWrappedJSON(t *testing.T) {
	caller := &fakeCaller{responses: []string{
		"Sure! Here is my decision:\n{\"action\": \"home\", \"delaySeconds\": 42}\nLet me know.",
	}}
	engine, store := newTestEngine(t, &fakePlatform{}, caller)

	st, err := store.Load()
	require.NoError(t, err)

	decision, result, err := engine.DecideNextAction(context.Background(), st)
	require.NoError(t, err)
	assert.Equal(t, "home", decision.Action)
	require.NotNil(t, decision.DelaySeconds)
	assert.Equal(t, float64(42), *decision.DelaySeconds)
	assert.Equal(t, "test-model", result.Model)
}

func TestDecideNextActionRejectsMissingAction(t *testing.T) {
	caller := &fakeCaller{responses: []string{`{"delaySeconds": 10}`}}
	engine, store := newTestEngine(t, &fakePlatform{}, caller)

	st, err := store.Load()
	require.NoError(t, err)

	_, _, err = engine.DecideNextAction(context.Background(), st)
	assert.Error(t, err)
}

func TestDecideNextActionRejectsNonJSON(t *testing.T) {
	caller := &fakeCaller{responses: []string{"I think you should check your home feed."}}
	engine, store := newTestEngine(t, &fakePlatform{}, caller)

	st, err := store.Load()
	require.NoError(t, err)

	_, _, err = engine.DecideNextAction(context.Background(), st)
	assert.Error(t, err)
}

func TestDecisionContextLimitsAndCandidate(t *testing.T) {
	engine, store := newTestEngine(t, &fakePlatform{}, &fakeCaller{})

	st, err := store.Load()
	require.NoError(t, err)
	st.AgentName = "self"
	for i := 0; i < 20; i++ {
		st.TopicHistory = append(st.TopicHistory, state.TopicEntry{Topic: "music"})
		st.RecentActions = append(st.RecentActions, state.ActionRecord{Kind: "comment", Summary: "c", PostAuthor: "alice", At: time.Now()})
	}

	snapshot := engine.buildDecisionContext(st)
	assert.Len(t, snapshot.RecentTopics, contextTopicLimit)
	assert.Len(t, snapshot.RecentActionsSummary.LastActions, contextActionLimit)
	assert.Equal(t, contextActionLimit, snapshot.RecentActionsSummary.Counts["comment"])
	assert.Equal(t, "alice", snapshot.FollowCandidate)
}

func TestDecisionContextHidesCandidateDuringCooldown(t *testing.T) {
	engine, store := newTestEngine(t, &fakePlatform{}, &fakeCaller{})

	st, err := store.Load()
	require.NoError(t, err)
	st.AgentName = "self"
	st.LastFollowAt = timePtr(time.Now().Add(-time.Hour))
	for i := 0; i < 3; i++ {
		st.RecentActions = append(st.RecentActions, state.ActionRecord{Kind: "comment", PostAuthor: "alice"})
	}

	snapshot := engine.buildDecisionContext(st)
	assert.Equal(t, "", snapshot.FollowCandidate)
}
