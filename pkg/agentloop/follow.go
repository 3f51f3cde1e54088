package agentloop

import (
	"sort"
	"strings"

	"github.com/moltagent/moltagent/pkg/state"
)

const followEngagementThreshold = 2

// engagementByAuthor counts how often each author shows up in recent
// comment and reply actions.
func engagementByAuthor(recent []state.ActionRecord) map[string]int {
	byAuthor := map[string]int{}
	for _, a := range recent {
		author := a.PostAuthor
		if author == "" {
			author = a.TargetAuthor
		}
		author = strings.TrimSpace(author)
		if author != "" {
			byAuthor[author]++
		}
	}
	return byAuthor
}

// pickFollowCandidate returns an author engaged with at least twice who is
// not the agent itself and not already followed. Ties break toward the
// highest engagement count, then alphabetically for stability.
func pickFollowCandidate(st *state.State, defaultSelfName string) string {
	selfName := st.AgentName
	if selfName == "" {
		selfName = defaultSelfName
	}

	engagement := engagementByAuthor(st.RecentActions)

	type candidate struct {
		name  string
		count int
	}
	candidates := []candidate{}
	for name, count := range engagement {
		if name == selfName || count < followEngagementThreshold || st.IsFollowing(name) {
			continue
		}
		candidates = append(candidates, candidate{name: name, count: count})
	}
	if len(candidates) == 0 {
		return ""
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].count != candidates[j].count {
			return candidates[i].count > candidates[j].count
		}
		return candidates[i].name < candidates[j].name
	})
	return candidates[0].name
}

// commentedPostIDs collects ids of posts already commented on so the same
// post is not targeted twice.
func commentedPostIDs(recent []state.ActionRecord) map[string]bool {
	ids := map[string]bool{}
	for _, a := range recent {
		if a.Kind == "comment" && a.PostID != "" {
			ids[a.PostID] = true
		}
	}
	return ids
}
