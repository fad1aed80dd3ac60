package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang/glog"

	"github.com/creatorlink/chatsync/chat"
)

const (
	requestTimeout = 10 * time.Second

	// Cap on decoded response bodies. The timeline endpoint returns the
	// full history for one peer; anything past this is a server bug.
	bodyLimitBytes = 4 << 20
)

// Client talks to the message backend over its JSON/HTTP contract.
// It is stateless beyond the base URL and credential.
type Client struct {
	baseURL string
	session chat.Session
	hc      *http.Client
}

// NewClient creates a Client for the given backend base URL, e.g.
// "http://127.0.0.1:3000". The session token authorizes every request.
func NewClient(baseURL string, session chat.Session) *Client {
	return &Client{
		baseURL: baseURL,
		session: session,
		hc:      &http.Client{Timeout: requestTimeout},
	}
}

// ListConversations fetches the conversation list, ordered by recency.
func (c *Client) ListConversations(ctx context.Context) ([]chat.Conversation, error) {
	var out []chat.Conversation
	if err := c.get(ctx, "/api/messages/conversations", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// LoadTimeline fetches the full message history with one peer, oldest
// first. Returns *NotFoundError if the backend does not know the peer.
func (c *Client) LoadTimeline(ctx context.Context, peerID int64) ([]chat.Message, error) {
	var out []chat.Message
	err := c.get(ctx, fmt.Sprintf("/api/messages/%d", peerID), nil, &out)
	if err != nil {
		var nf *NotFoundError
		if errors.As(err, &nf) {
			return nil, &NotFoundError{PeerID: peerID}
		}
		return nil, err
	}
	return out, nil
}

// Send performs the durable write. The returned message carries the
// server-assigned identifier and authoritative timestamp.
func (c *Client) Send(ctx context.Context, receiverID int64, content string) (*chat.Message, error) {
	body := map[string]interface{}{
		"receiverId": receiverID,
		"content":    content,
	}
	var out chat.Message
	if err := c.post(ctx, "/api/messages", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SearchUsers looks up directory candidates by name/email substring,
// case-insensitive. An empty or blank query yields an empty result by
// policy: the backend must never be asked for an unscoped directory dump.
func (c *Client) SearchUsers(ctx context.Context, query string) ([]chat.User, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	q := url.Values{"query": []string{query}}
	var out []chat.User
	if err := c.get(ctx, "/api/messages/users/search", q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// MarkRead acknowledges to the backend that the conversation with peerID
// has been read. Callers fire this without blocking on it.
func (c *Client) MarkRead(ctx context.Context, peerID int64) error {
	err := c.post(ctx, fmt.Sprintf("/api/messages/%d/read", peerID), nil, nil)
	var nf *NotFoundError
	if errors.As(err, &nf) {
		return &NotFoundError{PeerID: peerID}
	}
	return err
}

// statusError is internal: the cause inside a TransportError for non-2xx
// responses other than 404.
type statusError struct {
	code int
	op   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d", e.op, e.code)
}

func (c *Client) get(ctx context.Context, path string, q url.Values, out interface{}) error {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return &TransportError{Op: "GET " + path, Err: err}
	}
	return c.do(req, "GET "+path, out)
}

func (c *Client) post(ctx context.Context, path string, body, out interface{}) error {
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return &TransportError{Op: "POST " + path, Err: err}
		}
		rd = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, rd)
	if err != nil {
		return &TransportError{Op: "POST " + path, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, "POST "+path, out)
}

func (c *Client) do(req *http.Request, op string, out interface{}) error {
	req.Header.Set("Authorization", "Bearer "+c.session.Token)

	resp, err := c.hc.Do(req)
	if err != nil {
		glog.Errorf("do(): %s error: %v", op, err)
		return &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(ioutil.Discard, resp.Body)
		if resp.StatusCode == http.StatusNotFound {
			return &NotFoundError{}
		}
		return &TransportError{Op: op, Err: &statusError{code: resp.StatusCode, op: op}}
	}

	if out == nil {
		_, _ = io.Copy(ioutil.Discard, resp.Body)
		return nil
	}

	raw, err := ioutil.ReadAll(io.LimitReader(resp.Body, bodyLimitBytes))
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		glog.Errorf("do(): %s decode error: %v, body: %.100s", op, err, raw)
		return &TransportError{Op: op, Err: err}
	}
	return nil
}
