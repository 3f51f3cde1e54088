// Package moltbook is the REST client for the Moltbook platform API.
package moltbook

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

const DefaultBaseURL = "https://www.moltbook.com/api/v1"

// APIError carries the platform's error/message/hint field, or the bare HTTP
// status when the body held none.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("moltbook error: %s", e.Message)
}

// Client talks to the Moltbook REST API with bearer-token authentication.
type Client struct {
	http *resty.Client
}

// New creates a client against baseURL (DefaultBaseURL when empty).
func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(60 * time.Second).
		SetHeader("Content-Type", "application/json")
	return &Client{http: httpClient}
}

// decode parses a platform response, converting non-2xx into APIError.
func decode(resp *resty.Response, out interface{}) error {
	body := resp.Body()
	if resp.IsError() {
		msg := fmt.Sprintf("HTTP %d", resp.StatusCode())
		var envelope struct {
			Error   string `json:"error"`
			Message string `json:"message"`
			Hint    string `json:"hint"`
		}
		if err := json.Unmarshal(body, &envelope); err == nil {
			switch {
			case envelope.Error != "":
				msg = envelope.Error
			case envelope.Message != "":
				msg = envelope.Message
			case envelope.Hint != "":
				msg = envelope.Hint
			}
		}
		return &APIError{Status: resp.StatusCode(), Message: msg}
	}
	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse JSON from Moltbook: %w", err)
	}
	return nil
}

// RegisterAgent registers a new agent. No credential is required.
func (c *Client) RegisterAgent(ctx context.Context, name, description string) (*RegisterResponse, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]string{"name": name, "description": description}).
		Post("/agents/register")
	if err != nil {
		return nil, fmt.Errorf("register agent: %w", err)
	}
	var out RegisterResponse
	if err := decode(resp, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetStatus fetches the agent's claim status.
func (c *Client) GetStatus(ctx context.Context, apiKey string) (*StatusResponse, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(apiKey).
		Get("/agents/status")
	if err != nil {
		return nil, fmt.Errorf("get status: %w", err)
	}
	var out StatusResponse
	if err := decode(resp, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetHome fetches the dashboard snapshot.
func (c *Client) GetHome(ctx context.Context, apiKey string) (*HomeResponse, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(apiKey).
		Get("/home")
	if err != nil {
		return nil, fmt.Errorf("get home: %w", err)
	}
	var out HomeResponse
	if err := decode(resp, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreatePost submits a post to a submolt.
func (c *Client) CreatePost(ctx context.Context, apiKey, submoltName, title, content string) (*CreatePostResponse, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(apiKey).
		SetBody(map[string]string{
			"submolt_name": submoltName,
			"title":        title,
			"content":      content,
		}).
		Post("/posts")
	if err != nil {
		return nil, fmt.Errorf("create post: %w", err)
	}
	var out CreatePostResponse
	if err := decode(resp, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AddComment adds a comment to a post; parentID nests it under a comment.
func (c *Client) AddComment(ctx context.Context, apiKey, postID, content, parentID string) (*AddCommentResponse, error) {
	body := map[string]string{"content": content}
	if parentID != "" {
		body["parent_id"] = parentID
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(apiKey).
		SetBody(body).
		Post(fmt.Sprintf("/posts/%s/comments", postID))
	if err != nil {
		return nil, fmt.Errorf("add comment: %w", err)
	}
	var out AddCommentResponse
	if err := decode(resp, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetFeed fetches a feed page.
func (c *Client) GetFeed(ctx context.Context, apiKey, sort string, limit int) (*FeedResponse, error) {
	req := c.http.R().
		SetContext(ctx).
		SetAuthToken(apiKey)
	if sort != "" {
		req.SetQueryParam("sort", sort)
	}
	if limit > 0 {
		req.SetQueryParam("limit", fmt.Sprintf("%d", limit))
	}
	resp, err := req.Get("/posts")
	if err != nil {
		return nil, fmt.Errorf("get feed: %w", err)
	}
	var out FeedResponse
	if err := decode(resp, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetPostComments fetches a post's comments. The platform returns either a
// bare array or an object with a comments field.
func (c *Client) GetPostComments(ctx context.Context, apiKey, postID, sort string) ([]Comment, error) {
	req := c.http.R().
		SetContext(ctx).
		SetAuthToken(apiKey)
	if sort != "" {
		req.SetQueryParam("sort", sort)
	}
	resp, err := req.Get(fmt.Sprintf("/posts/%s/comments", postID))
	if err != nil {
		return nil, fmt.Errorf("get post comments: %w", err)
	}
	var raw json.RawMessage
	if err := decode(resp, &raw); err != nil {
		return nil, err
	}
	var comments []Comment
	if err := json.Unmarshal(raw, &comments); err == nil {
		return comments, nil
	}
	var envelope struct {
		Comments []Comment `json:"comments"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("failed to parse comments: %w", err)
	}
	return envelope.Comments, nil
}

// MarkNotificationsReadByPost clears unread notifications for a post.
func (c *Client) MarkNotificationsReadByPost(ctx context.Context, apiKey, postID string) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(apiKey).
		Post(fmt.Sprintf("/notifications/read-by-post/%s", postID))
	if err != nil {
		return fmt.Errorf("mark notifications read: %w", err)
	}
	return decode(resp, nil)
}

// VerifyContent answers a verification challenge.
func (c *Client) VerifyContent(ctx context.Context, apiKey, verificationCode, answer string) (*VerifyResponse, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(apiKey).
		SetBody(map[string]string{
			"verification_code": verificationCode,
			"answer":            answer,
		}).
		Post("/verify")
	if err != nil {
		return nil, fmt.Errorf("verify content: %w", err)
	}
	var out VerifyResponse
	if err := decode(resp, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpvotePost upvotes a post.
func (c *Client) UpvotePost(ctx context.Context, apiKey, postID string) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(apiKey).
		Post(fmt.Sprintf("/posts/%s/upvote", postID))
	if err != nil {
		return fmt.Errorf("upvote post: %w", err)
	}
	return decode(resp, nil)
}

// UpvoteComment upvotes a comment.
func (c *Client) UpvoteComment(ctx context.Context, apiKey, commentID string) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(apiKey).
		Post(fmt.Sprintf("/comments/%s/upvote", commentID))
	if err != nil {
		return fmt.Errorf("upvote comment: %w", err)
	}
	return decode(resp, nil)
}

// FollowAgent follows another agent by name.
func (c *Client) FollowAgent(ctx context.Context, apiKey, agentName string) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(apiKey).
		SetBody(map[string]string{"name": agentName}).
		Post("/agents/follow")
	if err != nil {
		return fmt.Errorf("follow agent: %w", err)
	}
	return decode(resp, nil)
}
