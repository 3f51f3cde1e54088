// Package agentloop drives the agent: one decision, one action, one reply
// pass, one persona pass per iteration.
//
// Invariants:
//   - Cooldown guards re-read the persisted state immediately before acting,
//     never a value cached at the top of the iteration.
//   - An iteration error aborts only that iteration; Run backs off and
//     continues.
//   - Randomized choices go through the injected rand source.
package agentloop

import (
	"context"
	"math/rand"
	"time"

	"github.com/moltagent/moltagent/internal/metrics"
	"github.com/moltagent/moltagent/pkg/llm"
	"github.com/moltagent/moltagent/pkg/moltbook"
	"github.com/moltagent/moltagent/pkg/state"
)

// Caller invokes the provider router. *llm.Router satisfies it.
type Caller interface {
	Call(ctx context.Context, prompt string, opts llm.Options) (*llm.Result, error)
}

// Platform is the Moltbook surface the loop depends on. *moltbook.Client
// satisfies it.
type Platform interface {
	RegisterAgent(ctx context.Context, name, description string) (*moltbook.RegisterResponse, error)
	GetStatus(ctx context.Context, apiKey string) (*moltbook.StatusResponse, error)
	GetHome(ctx context.Context, apiKey string) (*moltbook.HomeResponse, error)
	CreatePost(ctx context.Context, apiKey, submoltName, title, content string) (*moltbook.CreatePostResponse, error)
	AddComment(ctx context.Context, apiKey, postID, content, parentID string) (*moltbook.AddCommentResponse, error)
	GetFeed(ctx context.Context, apiKey, sort string, limit int) (*moltbook.FeedResponse, error)
	GetPostComments(ctx context.Context, apiKey, postID, sort string) ([]moltbook.Comment, error)
	MarkNotificationsReadByPost(ctx context.Context, apiKey, postID string) error
	VerifyContent(ctx context.Context, apiKey, verificationCode, answer string) (*moltbook.VerifyResponse, error)
	UpvotePost(ctx context.Context, apiKey, postID string) error
	UpvoteComment(ctx context.Context, apiKey, commentID string) error
	FollowAgent(ctx context.Context, apiKey, agentName string) error
}

// ActionSink receives every recorded action in addition to the capped
// in-state history. The sqlite archive implements it.
type ActionSink interface {
	Append(rec state.ActionRecord) error
}

// EventSink receives loop events for live observers such as the dashboard.
type EventSink interface {
	Publish(kind, message string)
}

// Settings is the hot-reloadable persona configuration read fresh each
// iteration.
type Settings struct {
	AgentName        string
	AgentDescription string
	Keywords         []string
	Submolt          string
	MaxLLMAttempts   int
	Prompts          Prompts
}

// Params wires an Engine. Store, Platform, Caller, and Metrics are
// required; the rest default to no-ops.
type Params struct {
	Store    *state.Store
	Platform Platform
	Caller   Caller
	Metrics  *metrics.Metrics
	Settings func() Settings
	Archive  ActionSink
	Events   EventSink
	Rand     *rand.Rand
	Now      func() time.Time
}

// Engine executes agent iterations against the platform.
type Engine struct {
	store    *state.Store
	platform Platform
	caller   Caller
	metrics  *metrics.Metrics
	settings func() Settings
	archive  ActionSink
	events   EventSink
	rng      *rand.Rand
	now      func() time.Time
}

// NewEngine creates an engine from params, filling in defaults.
func NewEngine(p Params) *Engine {
	e := &Engine{
		store:    p.Store,
		platform: p.Platform,
		caller:   p.Caller,
		metrics:  p.Metrics,
		settings: p.Settings,
		archive:  p.Archive,
		events:   p.Events,
		rng:      p.Rand,
		now:      p.Now,
	}
	if e.settings == nil {
		e.settings = func() Settings { return Settings{} }
	}
	if e.archive == nil {
		e.archive = noopSink{}
	}
	if e.events == nil {
		e.events = noopEvents{}
	}
	if e.rng == nil {
		e.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e
}

// currentSettings returns the settings with empty fields defaulted.
func (e *Engine) currentSettings() Settings {
	s := e.settings()
	if s.AgentName == "" {
		s.AgentName = "MoltbookAgent"
	}
	if s.AgentDescription == "" {
		s.AgentDescription = "An agentic AI on Moltbook."
	}
	if s.Submolt == "" {
		s.Submolt = "general"
	}
	s.Prompts = s.Prompts.withDefaults()
	return s
}

// callOptions builds the provider options for one LLM call.
func (e *Engine) callOptions() llm.Options {
	return llm.Options{MaxAttempts: e.settings().MaxLLMAttempts}
}

type noopSink struct{}

func (noopSink) Append(state.ActionRecord) error { return nil }

type noopEvents struct{}

func (noopEvents) Publish(string, string) {}
