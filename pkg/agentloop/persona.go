package agentloop

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/moltagent/moltagent/pkg/jsonx"
	"github.com/moltagent/moltagent/pkg/state"
)

const (
	personaRefreshInterval = time.Hour
	personaTopicDelta      = 3
	personaInputLimit      = 20
	maxPersonaBullets      = 5
)

// maybeUpdatePersonaSummary refreshes the persona from interaction history.
// Skipped while the last refresh is under an hour old unless the topic
// history grew by more than three entries. Failures are logged and
// swallowed.
func (e *Engine) maybeUpdatePersonaSummary(ctx context.Context) {
	st, err := e.store.Load()
	if err != nil {
		log.Error().Err(err).Msg("Persona update: failed to load state")
		return
	}
	if len(st.TopicHistory) == 0 {
		return
	}

	topics := st.TopicHistory
	if len(topics) > personaInputLimit {
		topics = topics[:personaInputLimit]
	}
	actions := st.RecentActions
	if len(actions) > personaInputLimit {
		actions = actions[:personaInputLimit]
	}

	now := e.now()
	if st.LastPersonaUpdateAt != nil &&
		now.Sub(*st.LastPersonaUpdateAt) < personaRefreshInterval &&
		len(topics) <= st.LastPersonaTopicCount+personaTopicDelta {
		return
	}

	topicsJSON, _ := json.MarshalIndent(topics, "", "  ")
	actionsJSON, _ := json.MarshalIndent(actions, "", "  ")

	settings := e.currentSettings()
	agentName := st.AgentName
	if agentName == "" {
		agentName = settings.AgentName
	}
	prompt := fillTemplate(settings.Prompts.PersonaSummary, map[string]string{
		"agentName": agentName,
		"topics":    string(topicsJSON),
		"actions":   string(actionsJSON),
	})

	result, err := e.caller.Call(ctx, prompt, e.callOptions())
	if err != nil {
		log.Error().Err(err).Msg("Persona summary call failed")
		return
	}

	var parsed struct {
		Summary string   `json:"summary"`
		Persona string   `json:"persona"`
		Bullets []string `json:"bullets"`
	}
	if err := jsonx.ExtractObject(result.Text, &parsed); err != nil {
		log.Error().Err(err).Msg("Failed to parse persona summary")
		return
	}

	summary := parsed.Summary
	if summary == "" {
		summary = parsed.Persona
	}
	summary = strings.TrimSpace(summary)

	bullets := parsed.Bullets
	if len(bullets) > maxPersonaBullets {
		bullets = bullets[:maxPersonaBullets]
	}
	if len(bullets) > 0 {
		summary += "\n- " + strings.Join(bullets, "\n- ")
	}
	if strings.TrimSpace(summary) == "" {
		return
	}

	topicCount := len(topics)
	if _, err := e.store.Update(func(s *state.State) {
		s.PersonaSummary = summary
		s.LastPersonaUpdateAt = &now
		s.LastPersonaTopicCount = topicCount
	}); err != nil {
		log.Error().Err(err).Msg("Failed to persist persona summary")
		return
	}

	log.Info().Int("topics", topicCount).Msg("Persona summary refreshed")
}
