package agentloop

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/moltagent/moltagent/pkg/jsonx"
	"github.com/moltagent/moltagent/pkg/moltbook"
	"github.com/moltagent/moltagent/pkg/state"
)

// maybeReplyToComments runs after the primary action. It answers at most
// one new comment on the agent's own posts, gated by the comment cooldown
// and a strict shouldReply check from the LLM.
func (e *Engine) maybeReplyToComments(ctx context.Context) error {
	st, err := e.store.Load()
	if err != nil {
		return fmt.Errorf("load state: %w", err)
	}
	if st.MoltbookAPIKey == "" {
		return nil
	}
	if !cooldownElapsed(st.LastCommentAt, commentCooldown, e.now()) {
		return nil
	}

	home, err := e.platform.GetHome(ctx, st.MoltbookAPIKey)
	if err != nil {
		return fmt.Errorf("get home: %w", err)
	}
	selfName := home.YourAccount.Name

	var target *moltbook.PostActivity
	for i := range home.ActivityOnYourPosts {
		if home.ActivityOnYourPosts[i].NewNotificationCount > 0 {
			target = &home.ActivityOnYourPosts[i]
			break
		}
	}
	if target == nil {
		log.Debug().Msg("No new activity on own posts that needs a reply")
		return nil
	}

	postID := target.PostID.String()
	comments, err := e.platform.GetPostComments(ctx, st.MoltbookAPIKey, postID, "new")
	if err != nil {
		return fmt.Errorf("get post comments: %w", err)
	}
	if len(comments) == 0 {
		return nil
	}

	// Newest comment not authored by self, or the newest one outright.
	targetComment := &comments[0]
	for i := range comments {
		if comments[i].AuthorName() != selfName {
			targetComment = &comments[i]
			break
		}
	}

	commentJSON, _ := json.MarshalIndent(targetComment, "", "  ")
	settings := e.currentSettings()
	agentName := st.AgentName
	if agentName == "" {
		agentName = settings.AgentName
	}
	prompt := fillTemplate(settings.Prompts.ReplyToComment, map[string]string{
		"agentName":     agentName,
		"selfName":      selfName,
		"postTitle":     target.PostTitle,
		"targetComment": string(commentJSON),
	})

	result, err := e.caller.Call(ctx, prompt, e.callOptions())
	if err != nil {
		return fmt.Errorf("reply decision: %w", err)
	}

	var replyDecision struct {
		ShouldReply bool   `json:"shouldReply"`
		Reply       string `json:"reply"`
	}
	if err := jsonx.ExtractObject(result.Text, &replyDecision); err != nil {
		log.Error().Err(err).Msg("Failed to parse reply decision")
		return nil
	}
	if !replyDecision.ShouldReply {
		log.Info().Msg("Decided not to reply to this comment")
		return nil
	}
	replyText := strings.TrimSpace(replyDecision.Reply)
	if replyText == "" {
		log.Info().Msg("Reply text is empty, aborting reply")
		return nil
	}

	resp, err := e.platform.AddComment(ctx, st.MoltbookAPIKey, postID, replyText, targetComment.ResolveID())
	if err != nil {
		return fmt.Errorf("add reply: %w", err)
	}

	e.solveAndVerify(ctx, st, resp.ChallengeVerification(), "reply verification")

	if err := e.platform.MarkNotificationsReadByPost(ctx, st.MoltbookAPIKey, postID); err != nil {
		log.Warn().Err(err).Msg("Failed to mark notifications as read")
	}

	now := e.now()
	if _, err := e.store.Update(func(s *state.State) {
		s.LastCommentAt = &now
	}); err != nil {
		return fmt.Errorf("persist reply timestamp: %w", err)
	}

	rec := state.ActionRecord{
		Kind:         "reply_comment",
		Summary:      "Replied to a comment on own post.",
		PostTitle:    target.PostTitle,
		TargetAuthor: targetComment.AuthorName(),
		ReplyPreview: truncateText(replyText, previewRecordLimit),
	}

	combined := fmt.Sprintf("%s\nReply: %s", targetComment.Content, replyText)
	info, err := e.classifyInteraction(ctx, target.PostTitle, "", combined)
	if err != nil {
		log.Error().Err(err).Msg("Failed to classify reply topic")
	} else {
		rec.Topic = info.Topic
		e.recordTopic(info, state.TopicEntry{
			Source:    "reply_comment",
			PostTitle: target.PostTitle,
			Snippet:   truncateText(replyText, snippetRecordLimit),
		})
	}

	e.recordAction(rec)
	return nil
}
