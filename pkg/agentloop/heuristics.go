package agentloop

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/moltagent/moltagent/pkg/state"
)

// Cooldown windows read by the heuristics and the executor.
const (
	commentCooldown       = 60 * time.Second
	postExecutorCooldown  = 40 * time.Minute
	postHeuristicCooldown = 2 * time.Hour
	followCooldown        = 6 * time.Hour
)

// recentStats summarizes the action history for the heuristics.
type recentStats struct {
	counts   map[string]int
	lastKind string
	streak   int
}

func buildRecentStats(recent []state.ActionRecord) recentStats {
	stats := recentStats{counts: map[string]int{}}
	for _, a := range recent {
		if a.Kind == "" {
			continue
		}
		stats.counts[a.Kind]++
	}
	if len(recent) > 0 {
		stats.lastKind = recent[0].Kind
		for _, a := range recent {
			if a.Kind != stats.lastKind {
				break
			}
			stats.streak++
		}
	}
	return stats
}

func cooldownElapsed(last *time.Time, window time.Duration, now time.Time) bool {
	return last == nil || now.Sub(*last) > window
}

func followCooldownElapsed(st *state.State, now time.Time) bool {
	return cooldownElapsed(st.LastFollowAt, followCooldown, now)
}

// applyHeuristics breaks pathological "always check home" streaks. With a
// home streak of 3+ and the comment cooldown elapsed the action becomes
// comment; when commenting is not possible, a streak of 5+ with the post
// cooldown elapsed forces a post 30% of the time.
func (e *Engine) applyHeuristics(decision *Decision, st *state.State) {
	if decision.Action != "home" {
		return
	}

	stats := buildRecentStats(st.RecentActions)
	if stats.lastKind != "home" {
		return
	}

	now := e.now()
	canComment := cooldownElapsed(st.LastCommentAt, commentCooldown, now)
	canPost := cooldownElapsed(st.LastPostAt, postHeuristicCooldown, now)

	switch {
	case stats.streak >= 3 && canComment:
		log.Info().Int("streak", stats.streak).Msg("Home streak heuristic: forcing comment")
		decision.Action = "comment"
	case stats.streak >= 5 && canPost && e.rng.Float64() < 0.3:
		log.Info().Int("streak", stats.streak).Msg("Home streak heuristic: forcing post")
		decision.Action = "post"
	}
}
