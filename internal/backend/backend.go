// Package backend is the HTTP client for the arena conversation API. All
// responses share a {code,msg,data} envelope; codes 0 and 200 are success.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/arenalab/arena/internal/store"
	"github.com/arenalab/arena/internal/stream"
)

// DefaultTimeout bounds non-streaming API calls.
const DefaultTimeout = 15 * time.Second

// Client talks to the arena backend.
type Client struct {
	baseURL string
	userID  string
	http    *http.Client
}

// Opts holds parameters for creating a Client.
type Opts struct {
	BaseURL string
	UserID  string
	Timeout time.Duration // defaults to DefaultTimeout
}

// New creates a backend Client.
func New(opts Opts) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("backend: base url is required")
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		userID:  opts.UserID,
		http:    &http.Client{Timeout: timeout},
	}, nil
}

// envelope is the common response wrapper.
type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

func (e *envelope) ok() bool { return e.Code == 0 || e.Code == 200 }

// do runs one request and unmarshals the envelope's data into out (when out
// is non-nil).
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("backend: marshal %s: %w", path, err)
		}
		reader = bytes.NewReader(raw)
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("backend: build %s: %w", path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.userID != "" {
		req.Header.Set("userId", c.userID)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("backend: %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("backend: %s: HTTP %d: %s", path, resp.StatusCode, strings.TrimSpace(string(text)))
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("backend: decode %s: %w", path, err)
	}
	if !env.ok() {
		return fmt.Errorf("backend: %s: code %d: %s", path, env.Code, env.Msg)
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("backend: decode %s data: %w", path, err)
		}
	}
	return nil
}

// ConversationInfo is the result of creating a conversation: the
// server-issued session id plus the per-session mask code → private id map.
type ConversationInfo struct {
	SessionID    string            `json:"sessionId"`
	PriIDMapping map[string]string `json:"priIdMapping"`
}

// CreateConversation registers a new conversation under a task.
func (c *Client) CreateConversation(ctx context.Context, taskID string) (ConversationInfo, error) {
	var info ConversationInfo
	payload := map[string]any{"taskId": taskID, "messages": []stream.Message{}}
	if err := c.do(ctx, http.MethodPost, "/conv/create", nil, payload, &info); err != nil {
		return ConversationInfo{}, err
	}
	return info, nil
}

// HistoryChat is one archived exchange turn for a single provider.
type HistoryChat struct {
	Question  string            `json:"question"`
	Created   int64             `json:"created"`
	Liked     bool              `json:"liked"`
	PrivateID string            `json:"privateId"`
	Citations []stream.Citation `json:"citations"`
	Choices   []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// Content joins the chat's delta fragments into the full answer text.
func (h *HistoryChat) Content() string {
	var b strings.Builder
	for _, choice := range h.Choices {
		b.WriteString(choice.Delta.Content)
	}
	return b.String()
}

// History is a server-stored conversation keyed by mask code.
type History struct {
	SessionID  string                   `json:"sessionId"`
	QuestionID string                   `json:"questionId"`
	Question   string                   `json:"question"`
	ChatMap    map[string][]HistoryChat `json:"chatMap"`
}

// History fetches a conversation's stored exchanges.
func (c *Client) History(ctx context.Context, sessionID string) (History, error) {
	var h History
	q := url.Values{"sessionId": {sessionID}}
	if err := c.do(ctx, http.MethodGet, "/conv/his", q, nil, &h); err != nil {
		return History{}, err
	}
	return h, nil
}

// Like submits a vote for one provider's answer by private id. The backend
// returns whether the vote was accepted.
func (c *Client) Like(ctx context.Context, priID string) (bool, error) {
	var accepted bool
	q := url.Values{"priId": {priID}}
	if err := c.do(ctx, http.MethodGet, "/conv/like", q, nil, &accepted); err != nil {
		return false, err
	}
	return accepted, nil
}

// Rename updates a conversation's server-side title.
func (c *Client) Rename(ctx context.Context, sessionID, title string) error {
	q := url.Values{"sessionId": {sessionID}, "title": {title}}
	return c.do(ctx, http.MethodGet, "/conv/rename", q, nil, nil)
}

// Delete removes a conversation on the server.
func (c *Client) Delete(ctx context.Context, sessionID string) error {
	q := url.Values{"sessionId": {sessionID}}
	return c.do(ctx, http.MethodGet, "/conv/del", q, nil, nil)
}

// TaskList fetches the server task forest for hydration.
func (c *Client) TaskList(ctx context.Context) ([]store.TaskNode, error) {
	var nodes []store.TaskNode
	if err := c.do(ctx, http.MethodGet, "/task/list", nil, nil, &nodes); err != nil {
		return nil, err
	}
	return nodes, nil
}

// VoteFeedback submits the optional post-vote feedback reasons.
func (c *Client) VoteFeedback(ctx context.Context, questionID, answerID string, reasons []string) error {
	payload := map[string]any{
		"questionId": questionID,
		"answerId":   answerID,
		"reasons":    reasons,
	}
	return c.do(ctx, http.MethodPost, "/arena/vote/feedback", nil, payload, nil)
}
