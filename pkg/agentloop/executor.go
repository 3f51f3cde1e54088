package agentloop

import (
	"context"
	"errors"
	"fmt"
	"strings"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog/log"

	"github.com/moltagent/moltagent/pkg/moltbook"
	"github.com/moltagent/moltagent/pkg/state"
)

// recordAction appends to the capped in-state history, the archive, and
// the event stream. Recording failures never fail the action itself.
func (e *Engine) recordAction(rec state.ActionRecord) {
	if rec.ID == "" {
		rec.ID, _ = gonanoid.New()
	}
	if rec.At.IsZero() {
		rec.At = e.now()
	}
	if err := e.store.AppendAction(rec); err != nil {
		log.Error().Err(err).Str("kind", rec.Kind).Msg("Failed to record action")
	}
	if err := e.archive.Append(rec); err != nil {
		log.Warn().Err(err).Str("kind", rec.Kind).Msg("Failed to archive action")
	}
	e.events.Publish(rec.Kind, rec.Summary)
	e.metrics.ActionsTotal.WithLabelValues(rec.Kind).Inc()
}

func (e *Engine) skipAction(action, reason string) {
	log.Info().Str("action", action).Str("reason", reason).Msg("Action skipped")
	e.metrics.ActionsSkippedTotal.WithLabelValues(action, reason).Inc()
}

// Execute runs one branch for the decided action. Every branch re-reads
// the persisted state so cooldown guards see the latest document.
func (e *Engine) Execute(ctx context.Context, decision *Decision) error {
	st, err := e.store.Load()
	if err != nil {
		return fmt.Errorf("load state: %w", err)
	}

	switch decision.Action {
	case "register":
		return e.executeRegister(ctx, st, decision)
	case "check_status":
		return e.executeCheckStatus(ctx, st)
	case "home":
		return e.executeHome(ctx, st)
	case "follow":
		return e.executeFollow(ctx, st, decision)
	case "post":
		return e.executePost(ctx, st, decision)
	case "comment":
		return e.executeComment(ctx, st, decision)
	case "idle":
		log.Info().Msg("Agent chose to idle this iteration")
		return nil
	default:
		log.Warn().Str("action", decision.Action).Msg("Unrecognized action, doing nothing")
		return nil
	}
}

func (e *Engine) executeRegister(ctx context.Context, st *state.State, decision *Decision) error {
	if st.MoltbookAPIKey != "" {
		e.skipAction("register", "already_registered")
		return nil
	}

	settings := e.currentSettings()
	agentName := st.AgentName
	if agentName == "" {
		agentName = strings.TrimSpace(decision.AgentName)
	}
	if agentName == "" {
		agentName = settings.AgentName
	}
	description := st.AgentDescription
	if description == "" {
		description = strings.TrimSpace(decision.Description)
	}
	if description == "" {
		description = settings.AgentDescription
	}

	log.Info().Str("name", agentName).Msg("Registering a new Moltbook agent")
	resp, err := e.platform.RegisterAgent(ctx, agentName, description)
	if err != nil {
		return fmt.Errorf("register agent: %w", err)
	}
	if resp.Agent == nil || resp.Agent.APIKey == "" {
		return errors.New("register succeeded but no api_key was returned")
	}

	if _, err := e.store.Update(func(s *state.State) {
		s.MoltbookAPIKey = resp.Agent.APIKey
		s.AgentName = agentName
		s.AgentDescription = description
	}); err != nil {
		return fmt.Errorf("persist registration: %w", err)
	}

	log.Info().Msg("Moltbook registration succeeded")
	if resp.Agent.ClaimURL != "" {
		log.Info().Str("claim_url", resp.Agent.ClaimURL).Msg("Share this claim URL with your human")
	}
	if resp.Agent.VerificationCode != "" {
		log.Info().Str("verification_code", resp.Agent.VerificationCode).Msg("Verification code for claiming")
	}

	status := resp.Status
	if status == "" {
		status = "pending_claim"
	}
	e.recordAction(state.ActionRecord{
		Kind:       "register",
		Summary:    fmt.Sprintf("Registered agent %s (pending claim).", agentName),
		AgentName:  agentName,
		ProfileURL: resp.Agent.ProfileURL,
		Status:     status,
	})
	return nil
}

func (e *Engine) executeCheckStatus(ctx context.Context, st *state.State) error {
	if st.MoltbookAPIKey == "" {
		e.skipAction("check_status", "no_api_key")
		return nil
	}

	resp, err := e.platform.GetStatus(ctx, st.MoltbookAPIKey)
	if err != nil {
		return fmt.Errorf("check status: %w", err)
	}

	if _, err := e.store.Update(func(s *state.State) {
		s.LastStatus = resp.Status
	}); err != nil {
		return fmt.Errorf("persist status: %w", err)
	}

	log.Info().Str("status", resp.Status).Msg("Claim status checked")
	e.recordAction(state.ActionRecord{
		Kind:    "check_status",
		Summary: fmt.Sprintf("Claim status: %s", resp.Status),
		Status:  resp.Status,
	})
	return nil
}

func (e *Engine) executeHome(ctx context.Context, st *state.State) error {
	if st.MoltbookAPIKey == "" {
		e.skipAction("home", "no_api_key")
		return nil
	}

	home, err := e.platform.GetHome(ctx, st.MoltbookAPIKey)
	if err != nil {
		return fmt.Errorf("get home: %w", err)
	}

	account := home.YourAccount
	log.Info().
		Str("name", account.Name).
		Int("karma", account.Karma).
		Int("unread", account.UnreadNotificationCount).
		Msg("Home summary")

	// Authors seen in the followed-accounts feed are merged into the
	// following set without an actual follow call. The set is a display
	// derived hint, not a source of truth.
	now := e.now()
	if _, err := e.store.Update(func(s *state.State) {
		s.LastMoltbookCheck = &now
		for _, p := range home.PostsFromFollowed.Posts {
			name := strings.TrimSpace(p.ResolveAuthor())
			if name != "" && !s.IsFollowing(name) {
				s.FollowingNames = append(s.FollowingNames, name)
			}
		}
	}); err != nil {
		return fmt.Errorf("persist home check: %w", err)
	}

	e.recordAction(state.ActionRecord{
		Kind:        "home",
		Summary:     fmt.Sprintf("Home: karma=%d, unread=%d", account.Karma, account.UnreadNotificationCount),
		Karma:       account.Karma,
		UnreadCount: account.UnreadNotificationCount,
	})
	return nil
}

func (e *Engine) executeFollow(ctx context.Context, st *state.State, decision *Decision) error {
	if st.MoltbookAPIKey == "" {
		e.skipAction("follow", "no_api_key")
		return nil
	}

	name := strings.TrimSpace(decision.AgentName)
	if name == "" {
		name = pickFollowCandidate(st, e.currentSettings().AgentName)
	}
	if name == "" {
		e.skipAction("follow", "no_candidate")
		return nil
	}
	if st.IsFollowing(name) {
		e.skipAction("follow", "already_following")
		return nil
	}
	if !followCooldownElapsed(st, e.now()) {
		e.skipAction("follow", "cooldown")
		return nil
	}

	if err := e.platform.FollowAgent(ctx, st.MoltbookAPIKey, name); err != nil {
		log.Error().Err(err).Str("name", name).Msg("Follow failed")
		e.metrics.ActionErrorsTotal.WithLabelValues("follow").Inc()
		return nil
	}

	now := e.now()
	if _, err := e.store.Update(func(s *state.State) {
		s.LastFollowAt = &now
		if !s.IsFollowing(name) {
			s.FollowingNames = append(s.FollowingNames, name)
		}
	}); err != nil {
		return fmt.Errorf("persist follow: %w", err)
	}

	log.Info().Str("name", name).Msg("Followed agent")
	e.recordAction(state.ActionRecord{
		Kind:      "follow",
		Summary:   fmt.Sprintf("Followed %s (consistently enjoyed their content).", name),
		AgentName: name,
	})
	return nil
}

func (e *Engine) executePost(ctx context.Context, st *state.State, decision *Decision) error {
	if st.MoltbookAPIKey == "" {
		e.skipAction("post", "no_api_key")
		return nil
	}
	if !cooldownElapsed(st.LastPostAt, postExecutorCooldown, e.now()) {
		e.skipAction("post", "cooldown")
		return nil
	}

	settings := e.currentSettings()
	title := strings.TrimSpace(decision.Title)
	if title == "" {
		title = "Thoughts from an autonomous agent"
	}
	content := strings.TrimSpace(decision.Content)
	if content == "" {
		content = "Observations from my recent wanderings around Moltbook."
	}

	log.Info().Str("submolt", settings.Submolt).Str("title", title).Msg("Creating a new post")
	resp, err := e.platform.CreatePost(ctx, st.MoltbookAPIKey, settings.Submolt, title, content)
	if err != nil {
		return fmt.Errorf("create post: %w", err)
	}

	postTitle := title
	postContent := content
	if resp.Post != nil {
		if resp.Post.ResolveTitle() != "" {
			postTitle = resp.Post.ResolveTitle()
		}
		if resp.Post.Content != "" {
			postContent = resp.Post.Content
		}
	}

	e.solveAndVerify(ctx, st, resp.ChallengeVerification(), "post verification")

	now := e.now()
	if _, err := e.store.Update(func(s *state.State) {
		s.LastPostAt = &now
	}); err != nil {
		return fmt.Errorf("persist post timestamp: %w", err)
	}

	rec := state.ActionRecord{
		Kind:    "post",
		Summary: fmt.Sprintf("Posted in %s: %q", settings.Submolt, truncateText(title, 80)),
		Title:   title,
		Submolt: settings.Submolt,
	}

	// Classification is best effort; the post already succeeded.
	info, err := e.classifyInteraction(ctx, postTitle, postContent, "")
	if err != nil {
		log.Error().Err(err).Msg("Failed to classify post topic")
	} else {
		rec.Topic = info.Topic
		e.recordTopic(info, state.TopicEntry{
			Source:    "post",
			PostTitle: postTitle,
			Snippet:   truncateText(content, snippetRecordLimit),
		})
	}

	e.recordAction(rec)
	return nil
}

func (e *Engine) executeComment(ctx context.Context, st *state.State, decision *Decision) error {
	if st.MoltbookAPIKey == "" {
		e.skipAction("comment", "no_api_key")
		return nil
	}
	if !cooldownElapsed(st.LastCommentAt, commentCooldown, e.now()) {
		e.skipAction("comment", "cooldown")
		return nil
	}

	feed, err := e.platform.GetFeed(ctx, st.MoltbookAPIKey, "hot", 20)
	if err != nil {
		return fmt.Errorf("get feed: %w", err)
	}
	posts := feed.AllPosts()
	if len(posts) == 0 {
		e.skipAction("comment", "empty_feed")
		return nil
	}

	target := e.pickCommentTarget(st, posts)

	fallback := strings.TrimSpace(decision.Content)
	content := e.generateComment(ctx, st, target, fallback)

	log.Info().Str("post", target.ResolveTitle()).Msg("Adding comment to post")
	resp, err := e.platform.AddComment(ctx, st.MoltbookAPIKey, target.ResolveID(), content, "")
	if err != nil {
		return fmt.Errorf("add comment: %w", err)
	}

	e.solveAndVerify(ctx, st, resp.ChallengeVerification(), "comment verification")

	// Upvoting the post we engaged with is best effort.
	if postID := target.ResolveID(); postID != "" {
		if err := e.platform.UpvotePost(ctx, st.MoltbookAPIKey, postID); err != nil {
			log.Warn().Err(err).Msg("Upvote post failed")
		}
	}

	now := e.now()
	if _, err := e.store.Update(func(s *state.State) {
		s.LastCommentAt = &now
	}); err != nil {
		return fmt.Errorf("persist comment timestamp: %w", err)
	}

	rec := state.ActionRecord{
		Kind:           "comment",
		Summary:        "Commented on a post from feed.",
		PostID:         target.ResolveID(),
		PostTitle:      target.ResolveTitle(),
		PostAuthor:     target.ResolveAuthor(),
		CommentPreview: truncateText(content, previewRecordLimit),
	}

	info, err := e.classifyInteraction(ctx, target.ResolveTitle(), target.ResolveBody(), content)
	if err != nil {
		log.Error().Err(err).Msg("Failed to classify comment topic")
	} else {
		rec.Topic = info.Topic
		e.recordTopic(info, state.TopicEntry{
			Source:    "comment",
			PostTitle: target.ResolveTitle(),
			Snippet:   truncateText(content, snippetRecordLimit),
		})
	}

	e.recordAction(rec)
	return nil
}

// pickCommentTarget excludes posts already commented on, prefers keyword
// matches, and picks uniformly at random from the preferred subset.
func (e *Engine) pickCommentTarget(st *state.State, posts []moltbook.Post) *moltbook.Post {
	commented := commentedPostIDs(st.RecentActions)

	eligible := []*moltbook.Post{}
	for i := range posts {
		if id := posts[i].ResolveID(); id != "" && !commented[id] {
			eligible = append(eligible, &posts[i])
		}
	}
	pool := eligible
	if len(pool) == 0 {
		pool = make([]*moltbook.Post, 0, len(posts))
		for i := range posts {
			pool = append(pool, &posts[i])
		}
	}

	keywords := e.currentSettings().Keywords
	preferred := []*moltbook.Post{}
	for _, p := range pool {
		if matchesKeywords(p.ResolveTitle()+" "+p.ResolveBody(), keywords) {
			preferred = append(preferred, p)
		}
	}
	if len(preferred) == 0 {
		preferred = pool
	}
	return preferred[e.rng.Intn(len(preferred))]
}

// recordTopic appends a topic entry built from classification output.
func (e *Engine) recordTopic(info topicInfo, entry state.TopicEntry) {
	entry.Topic = info.Topic
	entry.Subtopics = info.Subtopics
	entry.Sentiment = info.Sentiment
	entry.At = e.now()
	if err := e.store.AppendTopic(entry); err != nil {
		log.Error().Err(err).Msg("Failed to record topic entry")
	}
}

func truncateText(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}
