package agentloop

import (
	"context"
	"errors"
	"math/rand"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/moltagent/moltagent/internal/metrics"
	"github.com/moltagent/moltagent/pkg/llm"
	"github.com/moltagent/moltagent/pkg/moltbook"
	"github.com/moltagent/moltagent/pkg/state"
)

// fakeCaller replays scripted responses in order.
type fakeCaller struct {
	responses []string
	err       error
	prompts   []string
}

func (f *fakeCaller) Call(_ context.Context, prompt string, _ llm.Options) (*llm.Result, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return nil, f.err
	}
	if len(f.responses) == 0 {
		return nil, errors.New("fake caller: no responses left")
	}
	text := f.responses[0]
	f.responses = f.responses[1:]
	return &llm.Result{Text: text, Provider: llm.ProviderGemini, Model: "test-model"}, nil
}

// fakePlatform records calls and returns configurable responses. The zero
// value answers every operation with an empty success.
type fakePlatform struct {
	calls []string

	registerResp *moltbook.RegisterResponse
	statusResp   *moltbook.StatusResponse
	homeResp     *moltbook.HomeResponse
	feedResp     *moltbook.FeedResponse
	postResp     *moltbook.CreatePostResponse
	commentResp  *moltbook.AddCommentResponse
	comments     []moltbook.Comment

	createPostErr error
	addCommentErr error
	followErr     error
	upvoteErr     error
}

func (f *fakePlatform) record(call string) { f.calls = append(f.calls, call) }

func (f *fakePlatform) count(call string) int {
	n := 0
	for _, c := range f.calls {
		if c == call {
			n++
		}
	}
	return n
}

func (f *fakePlatform) RegisterAgent(_ context.Context, name, _ string) (*moltbook.RegisterResponse, error) {
	f.record("register")
	if f.registerResp != nil {
		return f.registerResp, nil
	}
	return &moltbook.RegisterResponse{
		Agent:  &moltbook.RegisteredAgent{APIKey: "mb_test_key", Name: name, ClaimURL: "https://moltbook.test/claim"},
		Status: "pending_claim",
	}, nil
}

func (f *fakePlatform) GetStatus(context.Context, string) (*moltbook.StatusResponse, error) {
	f.record("status")
	if f.statusResp != nil {
		return f.statusResp, nil
	}
	return &moltbook.StatusResponse{Status: "claimed"}, nil
}

func (f *fakePlatform) GetHome(context.Context, string) (*moltbook.HomeResponse, error) {
	f.record("home")
	if f.homeResp != nil {
		return f.homeResp, nil
	}
	return &moltbook.HomeResponse{}, nil
}

func (f *fakePlatform) CreatePost(_ context.Context, _, _, _, _ string) (*moltbook.CreatePostResponse, error) {
	f.record("create_post")
	if f.createPostErr != nil {
		return nil, f.createPostErr
	}
	if f.postResp != nil {
		return f.postResp, nil
	}
	return &moltbook.CreatePostResponse{}, nil
}

func (f *fakePlatform) AddComment(_ context.Context, _, _, _, _ string) (*moltbook.AddCommentResponse, error) {
	f.record("add_comment")
	if f.addCommentErr != nil {
		return nil, f.addCommentErr
	}
	if f.commentResp != nil {
		return f.commentResp, nil
	}
	return &moltbook.AddCommentResponse{}, nil
}

func (f *fakePlatform) GetFeed(_ context.Context, _, _ string, _ int) (*moltbook.FeedResponse, error) {
	f.record("feed")
	if f.feedResp != nil {
		return f.feedResp, nil
	}
	return &moltbook.FeedResponse{}, nil
}

func (f *fakePlatform) GetPostComments(context.Context, string, string, string) ([]moltbook.Comment, error) {
	f.record("comments")
	return f.comments, nil
}

func (f *fakePlatform) MarkNotificationsReadByPost(context.Context, string, string) error {
	f.record("mark_read")
	return nil
}

func (f *fakePlatform) VerifyContent(_ context.Context, _, _, answer string) (*moltbook.VerifyResponse, error) {
	f.record("verify:" + answer)
	return &moltbook.VerifyResponse{Success: true, Message: "ok"}, nil
}

func (f *fakePlatform) UpvotePost(context.Context, string, string) error {
	f.record("upvote_post")
	return f.upvoteErr
}

func (f *fakePlatform) UpvoteComment(context.Context, string, string) error {
	f.record("upvote_comment")
	return nil
}

func (f *fakePlatform) FollowAgent(_ context.Context, _, name string) error {
	f.record("follow:" + name)
	return f.followErr
}

// newTestEngine wires an engine against a temp-dir store, a seeded rand,
// and the given fakes.
func newTestEngine(t *testing.T, platform Platform, caller Caller) (*Engine, *state.Store) {
	t.Helper()

	store, err := state.Open(filepath.Join(t.TempDir(), "state.json"))
	require.NoError(t, err)

	engine := NewEngine(Params{
		Store:    store,
		Platform: platform,
		Caller:   caller,
		Metrics:  metrics.NewMetrics(),
		Settings: func() Settings {
			return Settings{
				AgentName:        "TestAgent",
				AgentDescription: "A test agent.",
				Keywords:         []string{"music", "synth"},
				Submolt:          "general",
			}
		},
		Rand: rand.New(rand.NewSource(1)),
	})
	return engine, store
}

func seedAPIKey(t *testing.T, store *state.Store) {
	t.Helper()
	_, err := store.Update(func(s *state.State) {
		s.MoltbookAPIKey = "mb_test_key"
		s.AgentName = "TestAgent"
	})
	require.NoError(t, err)
}

func timePtr(tm time.Time) *time.Time { return &tm }
