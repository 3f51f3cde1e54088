package agentloop

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/moltagent/moltagent/pkg/jsonx"
	"github.com/moltagent/moltagent/pkg/moltbook"
	"github.com/moltagent/moltagent/pkg/state"
)

const maxSubtopics = 6

// topicInfo is a classified interaction.
type topicInfo struct {
	Topic     string   `json:"topic"`
	Subtopics []string `json:"subtopics"`
	Sentiment string   `json:"sentiment"`
}

// classifyInteraction asks the LLM to label an interaction. Parse failures
// fall back to unknown/neutral rather than failing the caller.
func (e *Engine) classifyInteraction(ctx context.Context, postTitle, postContent, commentText string) (topicInfo, error) {
	fallback := topicInfo{Topic: "unknown", Subtopics: []string{}, Sentiment: "neutral"}

	settings := e.currentSettings()
	prompt := fillTemplate(settings.Prompts.Classify, map[string]string{
		"agentName":   settings.AgentName,
		"postTitle":   orDash(postTitle),
		"postContent": orDash(postContent),
		"commentText": orDash(commentText),
	})

	result, err := e.caller.Call(ctx, prompt, e.callOptions())
	if err != nil {
		return fallback, fmt.Errorf("classify interaction: %w", err)
	}

	var parsed topicInfo
	if err := jsonx.ExtractObject(result.Text, &parsed); err != nil {
		log.Warn().Err(err).Msg("Failed to parse classification, using defaults")
		return fallback, nil
	}

	info := fallback
	if topic := strings.ToLower(strings.TrimSpace(parsed.Topic)); topic != "" {
		info.Topic = topic
	}
	if sentiment := strings.ToLower(strings.TrimSpace(parsed.Sentiment)); sentiment != "" {
		info.Sentiment = sentiment
	}
	if len(parsed.Subtopics) > maxSubtopics {
		parsed.Subtopics = parsed.Subtopics[:maxSubtopics]
	}
	if parsed.Subtopics != nil {
		info.Subtopics = parsed.Subtopics
	}
	return info, nil
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

const (
	minCommentLen      = 10
	maxCommentLen      = 400
	cannedCommentText  = "Interesting post! Thanks for sharing."
	snippetRecordLimit = 200
	previewRecordLimit = 160
)

// matchesKeywords reports whether the post text contains any configured
// keyword.
func matchesKeywords(text string, keywords []string) bool {
	lower := strings.ToLower(text)
	for _, kw := range keywords {
		if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// generateComment produces comment text for the target post. When the post
// falls outside the configured keywords an explicit stay-on-topic rule is
// injected so the persona does not drag the comment off the post's subject.
// Out-of-range or failed generations fall back to the provided content.
func (e *Engine) generateComment(ctx context.Context, st *state.State, target *moltbook.Post, fallbackContent string) string {
	settings := e.currentSettings()

	title := target.ResolveTitle()
	body := target.ResolveBody()
	persona := st.PersonaSummary
	if persona == "" {
		persona = st.AgentDescription
	}
	if persona == "" {
		persona = settings.AgentDescription
	}

	offTopicRule := ""
	if !matchesKeywords(title+" "+body, settings.Keywords) {
		offTopicRule = "\n" + strings.TrimSpace(settings.Prompts.CommentOffTopic) + "\n"
	}

	agentName := st.AgentName
	if agentName == "" {
		agentName = settings.AgentName
	}
	bodyText := body
	if bodyText == "" {
		bodyText = "(no body)"
	}
	prompt := fillTemplate(settings.Prompts.Comment, map[string]string{
		"agentName":    agentName,
		"title":        title,
		"body":         bodyText,
		"offTopicRule": offTopicRule,
		"persona":      persona,
	})

	result, err := e.caller.Call(ctx, prompt, e.callOptions())
	if err != nil {
		log.Error().Err(err).Msg("Comment generation failed, using fallback")
	} else if comment := strings.TrimSpace(result.Text); len(comment) > minCommentLen && len(comment) <= maxCommentLen {
		return comment
	}

	if fallbackContent != "" {
		return fallbackContent
	}
	return cannedCommentText
}
