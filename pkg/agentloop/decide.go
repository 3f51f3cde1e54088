package agentloop

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/xeipuuv/gojsonschema"

	"github.com/moltagent/moltagent/pkg/jsonx"
	"github.com/moltagent/moltagent/pkg/llm"
	"github.com/moltagent/moltagent/pkg/state"
)

// Decision is the validated action choice for one iteration.
type Decision struct {
	Action string `json:"action"`

	// Pointer so an absent field and an explicit 0 stay distinct.
	DelaySeconds *float64 `json:"delaySeconds"`

	// Action-specific optional fields.
	AgentName   string `json:"agentName,omitempty"`
	Description string `json:"description,omitempty"`
	Title       string `json:"title,omitempty"`
	Content     string `json:"content,omitempty"`
}

const decisionSchemaJSON = `{
	"type": "object",
	"required": ["action"],
	"properties": {
		"action": {"type": "string", "minLength": 1},
		"delaySeconds": {"type": "number"},
		"agentName": {"type": "string"},
		"description": {"type": "string"},
		"title": {"type": "string"},
		"content": {"type": "string"}
	}
}`

var decisionSchema = gojsonschema.NewStringLoader(decisionSchemaJSON)

// validateDecision checks the extracted JSON against the decision schema
// before it enters the engine.
func validateDecision(jsonText string) error {
	result, err := gojsonschema.Validate(decisionSchema, gojsonschema.NewStringLoader(jsonText))
	if err != nil {
		return fmt.Errorf("decision schema check: %w", err)
	}
	if !result.Valid() {
		errs := []string{}
		for _, verr := range result.Errors() {
			errs = append(errs, verr.String())
		}
		return fmt.Errorf("decision validation errors: %v", errs)
	}
	return nil
}

// decisionContext is the snapshot serialized into the decide prompt.
type decisionContext struct {
	HasMoltbookAPIKey bool       `json:"hasMoltbookApiKey"`
	LastMoltbookCheck *time.Time `json:"lastMoltbookCheck"`
	LastStatus        string     `json:"lastStatus,omitempty"`
	AgentName         string     `json:"agentName,omitempty"`
	AgentDescription  string     `json:"agentDescription,omitempty"`
	PersonaSummary    string     `json:"personaSummary,omitempty"`

	RecentTopics []contextTopic `json:"recentTopics"`

	LastPostAt      *time.Time `json:"lastPostAt"`
	LastCommentAt   *time.Time `json:"lastCommentAt"`
	LastFollowAt    *time.Time `json:"lastFollowAt"`
	FollowCandidate string     `json:"followCandidate,omitempty"`

	RecentActionsSummary contextActions `json:"recentActionsSummary"`
}

type contextTopic struct {
	Topic     string `json:"topic"`
	PostTitle string `json:"postTitle,omitempty"`
}

type contextActions struct {
	Counts      map[string]int  `json:"counts"`
	LastActions []contextAction `json:"lastActions"`
}

type contextAction struct {
	Kind    string    `json:"kind"`
	At      time.Time `json:"at"`
	Summary string    `json:"summary"`
}

const (
	contextTopicLimit  = 15
	contextActionLimit = 10
)

// buildDecisionContext assembles the snapshot the LLM decides from.
func (e *Engine) buildDecisionContext(st *state.State) decisionContext {
	topics := st.TopicHistory
	if len(topics) > contextTopicLimit {
		topics = topics[:contextTopicLimit]
	}
	ctxTopics := make([]contextTopic, 0, len(topics))
	for _, t := range topics {
		ctxTopics = append(ctxTopics, contextTopic{Topic: t.Topic, PostTitle: t.PostTitle})
	}

	recent := st.RecentActions
	if len(recent) > contextActionLimit {
		recent = recent[:contextActionLimit]
	}
	counts := map[string]int{}
	lastActions := make([]contextAction, 0, len(recent))
	for _, a := range recent {
		if a.Kind == "" {
			continue
		}
		counts[a.Kind]++
		lastActions = append(lastActions, contextAction{Kind: a.Kind, At: a.At, Summary: a.Summary})
	}

	settings := e.currentSettings()
	candidate := ""
	if name := pickFollowCandidate(st, settings.AgentName); name != "" && followCooldownElapsed(st, e.now()) {
		candidate = name
	}

	return decisionContext{
		HasMoltbookAPIKey:    st.MoltbookAPIKey != "",
		LastMoltbookCheck:    st.LastMoltbookCheck,
		LastStatus:           st.LastStatus,
		AgentName:            st.AgentName,
		AgentDescription:     st.AgentDescription,
		PersonaSummary:       st.PersonaSummary,
		RecentTopics:         ctxTopics,
		LastPostAt:           st.LastPostAt,
		LastCommentAt:        st.LastCommentAt,
		LastFollowAt:         st.LastFollowAt,
		FollowCandidate:      candidate,
		RecentActionsSummary: contextActions{Counts: counts, LastActions: lastActions},
	}
}

// DecideNextAction asks the LLM for the next action. An unparsable or
// schema-invalid response is an error for this iteration; the caller does
// not retry.
func (e *Engine) DecideNextAction(ctx context.Context, st *state.State) (*Decision, *llm.Result, error) {
	snapshot := e.buildDecisionContext(st)
	contextJSON, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return nil, nil, fmt.Errorf("marshal decision context: %w", err)
	}

	settings := e.currentSettings()
	agentName := st.AgentName
	if agentName == "" {
		agentName = settings.AgentName
	}
	prompt := fillTemplate(settings.Prompts.DecideNextAction, map[string]string{
		"agentName": agentName,
		"context":   string(contextJSON),
	})

	result, err := e.caller.Call(ctx, prompt, e.callOptions())
	if err != nil {
		return nil, nil, fmt.Errorf("decide next action: %w", err)
	}

	jsonText, err := jsonx.ObjectString(result.Text)
	if err != nil {
		return nil, result, fmt.Errorf("decision response has no JSON object: %w", err)
	}
	if err := validateDecision(jsonText); err != nil {
		return nil, result, err
	}

	var decision Decision
	if err := json.Unmarshal([]byte(jsonText), &decision); err != nil {
		return nil, result, fmt.Errorf("parse decision: %w", err)
	}

	log.Debug().
		Str("action", decision.Action).
		Str("provider", string(result.Provider)).
		Int("key_index", result.KeyIndex).
		Str("request_id", result.RequestID).
		Msg("Decision received")

	return &decision, result, nil
}

const defaultDelaySeconds = 30

// clampDelay bounds the decided delay to [1s, 60s]; an absent or
// non-finite value falls back to 30s. An explicit 0 clamps to 1s.
func clampDelay(p *float64) time.Duration {
	v := float64(defaultDelaySeconds)
	if p != nil && !math.IsNaN(*p) && !math.IsInf(*p, 0) {
		v = *p
	}
	secs := math.Round(v)
	if secs < 1 {
		secs = 1
	}
	if secs > 60 {
		secs = 60
	}
	return time.Duration(secs) * time.Second
}
