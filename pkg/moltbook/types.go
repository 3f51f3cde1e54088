package moltbook

import (
	"encoding/json"
	"strings"
)

// ID tolerates platform payloads that encode identifiers as either JSON
// strings or numbers.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" {
		*id = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string { return string(id) }

// Verification is a platform-issued challenge gating a publish operation.
type Verification struct {
	VerificationCode string `json:"verification_code"`
	ChallengeText    string `json:"challenge_text"`
}

// Author identifies a post or comment author.
type Author struct {
	Name string `json:"name"`
}

// Post is a feed or home post. The platform is inconsistent about field
// names across endpoints, so accessors resolve the alternatives.
type Post struct {
	PostID         ID            `json:"post_id"`
	RawID          ID            `json:"id"`
	AltID          ID            `json:"postId"`
	Title          string        `json:"title"`
	PostTitle      string        `json:"post_title"`
	Content        string        `json:"content"`
	ContentPreview string        `json:"content_preview"`
	AuthorName     string        `json:"author_name"`
	Author         *Author       `json:"author"`
	Verification   *Verification `json:"verification"`
}

// ResolveID returns the first non-empty id field.
func (p *Post) ResolveID() string {
	for _, id := range []ID{p.PostID, p.RawID, p.AltID} {
		if id != "" {
			return id.String()
		}
	}
	return ""
}

// ResolveTitle returns the first non-empty title field.
func (p *Post) ResolveTitle() string {
	if p.Title != "" {
		return p.Title
	}
	return p.PostTitle
}

// ResolveBody returns the preview when the full content is absent.
func (p *Post) ResolveBody() string {
	if p.ContentPreview != "" {
		return p.ContentPreview
	}
	return p.Content
}

// ResolveAuthor returns the author name from either field shape.
func (p *Post) ResolveAuthor() string {
	if p.AuthorName != "" {
		return p.AuthorName
	}
	if p.Author != nil {
		return p.Author.Name
	}
	return ""
}

// Comment is a comment on a post.
type Comment struct {
	RawID        ID            `json:"id"`
	CommentID    ID            `json:"comment_id"`
	Content      string        `json:"content"`
	Author       *Author       `json:"author"`
	Verification *Verification `json:"verification"`
}

// ResolveID returns the first non-empty id field.
func (c *Comment) ResolveID() string {
	if c.RawID != "" {
		return c.RawID.String()
	}
	return c.CommentID.String()
}

// AuthorName returns the comment author's name, or "".
func (c *Comment) AuthorName() string {
	if c.Author == nil {
		return ""
	}
	return c.Author.Name
}

// RegisteredAgent is the identity issued at registration.
type RegisteredAgent struct {
	APIKey           string `json:"api_key"`
	ClaimURL         string `json:"claim_url"`
	VerificationCode string `json:"verification_code"`
	ProfileURL       string `json:"profile_url"`
	Name             string `json:"name"`
}

// RegisterResponse is returned by RegisterAgent.
type RegisterResponse struct {
	Agent  *RegisteredAgent `json:"agent"`
	Status string           `json:"status"`
}

// StatusResponse is returned by GetStatus. Status may be any JSON value on
// the wire; it is normalized to a string.
type StatusResponse struct {
	Status string `json:"-"`
}

func (s *StatusResponse) UnmarshalJSON(data []byte) error {
	var envelope struct {
		Status json.RawMessage `json:"status"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return err
	}
	raw := envelope.Status
	if len(raw) == 0 {
		raw = data
	}
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		s.Status = str
		return nil
	}
	s.Status = string(raw)
	return nil
}

// AccountSummary describes the agent's own account on the home dashboard.
type AccountSummary struct {
	Name                    string `json:"name"`
	Karma                   int    `json:"karma"`
	UnreadNotificationCount int    `json:"unread_notification_count"`
}

// PostActivity summarizes notifications on one of the agent's own posts.
type PostActivity struct {
	PostID               ID     `json:"post_id"`
	PostTitle            string `json:"post_title"`
	NewNotificationCount int    `json:"new_notification_count"`
}

// HomeResponse is the dashboard snapshot.
type HomeResponse struct {
	YourAccount         AccountSummary `json:"your_account"`
	ActivityOnYourPosts []PostActivity `json:"activity_on_your_posts"`
	PostsFromFollowed   struct {
		Posts []Post `json:"posts"`
	} `json:"posts_from_accounts_you_follow"`
}

// FeedResponse wraps a feed page; some deployments nest posts under data.
type FeedResponse struct {
	Posts []Post `json:"posts"`
	Data  struct {
		Posts []Post `json:"posts"`
	} `json:"data"`
}

// AllPosts returns whichever post list the platform populated.
func (f *FeedResponse) AllPosts() []Post {
	if len(f.Posts) > 0 {
		return f.Posts
	}
	return f.Data.Posts
}

// CreatePostResponse wraps a created post and its optional verification.
type CreatePostResponse struct {
	Post         *Post         `json:"post"`
	Verification *Verification `json:"verification"`
	Title        string        `json:"title"`
}

// ChallengeVerification returns the verification challenge regardless of
// where the platform embedded it.
func (r *CreatePostResponse) ChallengeVerification() *Verification {
	if r.Post != nil && r.Post.Verification != nil {
		return r.Post.Verification
	}
	return r.Verification
}

// AddCommentResponse wraps a created comment and its optional verification.
type AddCommentResponse struct {
	Comment      *Comment      `json:"comment"`
	Verification *Verification `json:"verification"`
}

// ChallengeVerification returns the verification challenge regardless of
// where the platform embedded it.
func (r *AddCommentResponse) ChallengeVerification() *Verification {
	if r.Comment != nil && r.Comment.Verification != nil {
		return r.Comment.Verification
	}
	return r.Verification
}

// VerifyResponse is returned by VerifyContent.
type VerifyResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}
