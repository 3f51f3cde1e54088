package state

import "time"

// Caps for the bounded history sequences. Oldest entries are evicted.
const (
	MaxRecentActions       = 30
	MaxTopicHistory        = 50
	MaxVerificationHistory = 20
)

// ActionRecord is an immutable record of a completed (or skipped) action.
// Only the fields relevant to the action kind are set.
type ActionRecord struct {
	ID      string    `json:"id,omitempty"`
	Kind    string    `json:"kind"`
	Summary string    `json:"summary"`
	At      time.Time `json:"at"`

	AgentName      string `json:"agentName,omitempty"`
	ProfileURL     string `json:"profileUrl,omitempty"`
	Status         string `json:"status,omitempty"`
	Karma          int    `json:"karma,omitempty"`
	UnreadCount    int    `json:"unreadNotifications,omitempty"`
	PostID         string `json:"postId,omitempty"`
	PostTitle      string `json:"postTitle,omitempty"`
	PostAuthor     string `json:"postAuthor,omitempty"`
	TargetAuthor   string `json:"targetAuthor,omitempty"`
	Title          string `json:"title,omitempty"`
	Submolt        string `json:"submolt,omitempty"`
	Topic          string `json:"topic,omitempty"`
	CommentPreview string `json:"commentPreview,omitempty"`
	ReplyPreview   string `json:"replyPreview,omitempty"`
}

// TopicEntry records one classified interaction.
type TopicEntry struct {
	Topic     string    `json:"topic"`
	Subtopics []string  `json:"subtopics"`
	Sentiment string    `json:"sentiment"`
	Source    string    `json:"source,omitempty"`
	PostTitle string    `json:"postTitle,omitempty"`
	Snippet   string    `json:"snippet,omitempty"`
	At        time.Time `json:"at"`
}

// TopicStat aggregates how often a topic has been seen.
type TopicStat struct {
	Count  int        `json:"count"`
	LastAt *time.Time `json:"lastAt"`
}

// VerificationAttempt records one answer to a platform challenge.
type VerificationAttempt struct {
	ChallengeText string    `json:"challengeText"`
	Answer        string    `json:"ourAnswer"`
	Success       bool      `json:"success"`
	At            time.Time `json:"at"`
}

// State is the single persisted document shared by the agent loop, the LLM
// clients, and the dashboard. It is read fully and rewritten wholesale on
// every mutation.
type State struct {
	// Provider rotation. Keyed by provider name ("gemini", "glm", "kimi").
	ProviderKeyIndex map[string]int    `json:"providerKeyIndex"`
	LastUsedProvider string            `json:"lastUsedProvider,omitempty"`
	LastUsedModel    map[string]string `json:"lastUsedModel,omitempty"`

	// Platform identity. Set once at registration.
	MoltbookAPIKey   string `json:"moltbookApiKey,omitempty"`
	AgentName        string `json:"agentName,omitempty"`
	AgentDescription string `json:"agentDescription,omitempty"`

	LastStatus        string     `json:"lastStatus,omitempty"`
	LastMoltbookCheck *time.Time `json:"lastMoltbookCheck,omitempty"`

	// Cooldown timestamps. Nil means the action has never run.
	LastPostAt    *time.Time `json:"lastPostAt,omitempty"`
	LastCommentAt *time.Time `json:"lastCommentAt,omitempty"`
	LastFollowAt  *time.Time `json:"lastFollowAt,omitempty"`
	LastUpvoteAt  *time.Time `json:"lastUpvoteAt,omitempty"`

	RecentActions       []ActionRecord        `json:"recentActions"`
	TopicHistory        []TopicEntry          `json:"topicHistory"`
	TopicStats          map[string]TopicStat  `json:"topicStats"`
	VerificationHistory []VerificationAttempt `json:"verificationHistory"`
	FollowingNames      []string              `json:"followingNames"`

	PersonaSummary        string     `json:"personaSummary,omitempty"`
	LastPersonaUpdateAt   *time.Time `json:"lastPersonaUpdateAt,omitempty"`
	LastPersonaTopicCount int        `json:"lastPersonaTopicCount"`
}

// NewState returns the document written on first access.
func NewState() *State {
	return &State{
		ProviderKeyIndex: map[string]int{},
		LastUsedModel:    map[string]string{},
		RecentActions:    []ActionRecord{},
		TopicHistory:     []TopicEntry{},
		TopicStats:       map[string]TopicStat{},

		VerificationHistory: []VerificationAttempt{},
		FollowingNames:      []string{},
	}
}

// normalize repairs a freshly loaded document: nil maps/slices become empty
// and capped sequences are trimmed. Rotation indices are only range-checked
// against key counts by the LLM clients, which know how many keys exist.
func (s *State) normalize() {
	if s.ProviderKeyIndex == nil {
		s.ProviderKeyIndex = map[string]int{}
	}
	for name, idx := range s.ProviderKeyIndex {
		if idx < 0 {
			s.ProviderKeyIndex[name] = 0
		}
	}
	if s.LastUsedModel == nil {
		s.LastUsedModel = map[string]string{}
	}
	if s.TopicStats == nil {
		s.TopicStats = map[string]TopicStat{}
	}
	if s.RecentActions == nil {
		s.RecentActions = []ActionRecord{}
	}
	if s.TopicHistory == nil {
		s.TopicHistory = []TopicEntry{}
	}
	if s.VerificationHistory == nil {
		s.VerificationHistory = []VerificationAttempt{}
	}
	if s.FollowingNames == nil {
		s.FollowingNames = []string{}
	}
	if len(s.RecentActions) > MaxRecentActions {
		s.RecentActions = s.RecentActions[:MaxRecentActions]
	}
	if len(s.TopicHistory) > MaxTopicHistory {
		s.TopicHistory = s.TopicHistory[:MaxTopicHistory]
	}
	if len(s.VerificationHistory) > MaxVerificationHistory {
		s.VerificationHistory = s.VerificationHistory[:MaxVerificationHistory]
	}
}

// IsFollowing reports whether name is in the following set.
func (s *State) IsFollowing(name string) bool {
	for _, n := range s.FollowingNames {
		if n == name {
			return true
		}
	}
	return false
}
