// Package transport is the client's adapter to the Lucent HTTP API: the
// completion stream, the deep-search stream, and the chat persistence
// endpoints.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/lucentai/lucent-client/internal/logger"
)

// Settings is the send-time request configuration. It is read through a
// SettingsProvider at the moment a request body is built, never captured
// earlier: a slow-to-resolve in-flight send must observe the latest
// settings, not a snapshot taken when the chat was opened.
type Settings struct {
	Model        string  `json:"model"`
	Temperature  float64 `json:"temperature"`
	SystemPrompt string  `json:"systemPrompt,omitempty"`
	WebSearch    bool    `json:"webSearch,omitempty"`
}

// SettingsProvider returns the current settings. Implementations are
// typically a closure over a mutable settings cell owned by the app.
type SettingsProvider func() Settings

// StatusError is returned when an endpoint answers with a non-2xx status
// before any stream is established.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.Code)
}

// Client talks to the Lucent backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
	settings   SettingsProvider
	logger     *logger.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client. Streaming
// endpoints need a client without an overall timeout, so the default has
// none; per-request deadlines come from contexts.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient creates a backend client rooted at baseURL.
func NewClient(baseURL string, settings SettingsProvider, log *logger.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{},
		settings:   settings,
		logger:     log.WithComponent("transport"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ClarifyAnswer is one answered clarifying question.
type ClarifyAnswer struct {
	Question string `json:"q"`
	Answer   string `json:"a"`
}

// DeepSearchRequest is the body of POST /api/deep-search.
type DeepSearchRequest struct {
	Query          string          `json:"query"`
	ChatID         string          `json:"chatId"`
	SkipClarify    bool            `json:"skipClarify"`
	ClarifyAnswers []ClarifyAnswer `json:"clarifyAnswers,omitempty"`
}

// OpenDeepSearch opens the research event stream. The returned body is
// the raw frame stream; the caller owns closing it.
//
// A non-2xx response is a pre-stream transport failure and returns a
// *StatusError with the body already drained and closed.
func (c *Client) OpenDeepSearch(ctx context.Context, req DeepSearchRequest) (io.ReadCloser, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode deep-search request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/deep-search", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("deep-search request failed: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		return nil, &StatusError{Code: resp.StatusCode}
	}

	c.logger.Debug("deep-search stream opened",
		slog.String("chat_id", req.ChatID),
		slog.Bool("skip_clarify", req.SkipClarify))

	return resp.Body, nil
}

// ChatStream is an in-flight completion stream with a stop control.
type ChatStream struct {
	Body   io.ReadCloser
	cancel context.CancelFunc
}

// Stop aborts the in-flight request. Reading the body after Stop returns
// the cancellation error.
func (s *ChatStream) Stop() {
	s.cancel()
	s.Body.Close()
}

// chatRequest is the body of POST /api/chat.
type chatRequest struct {
	ChatID   string        `json:"chatId"`
	Messages []ChatMessage `json:"messages"`
	Settings Settings      `json:"settings"`
}

// StreamChat dispatches a completion request and returns the chunked
// response stream. Settings are latched from the provider here, at send
// time.
func (c *Client) StreamChat(ctx context.Context, chatID string, history []ChatMessage) (*ChatStream, error) {
	streamCtx, cancel := context.WithCancel(ctx)

	body, err := json.Marshal(chatRequest{
		ChatID:   chatID,
		Messages: history,
		Settings: c.settings(),
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to encode chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(streamCtx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		cancel()
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("chat request failed: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		cancel()
		return nil, &StatusError{Code: resp.StatusCode}
	}

	return &ChatStream{Body: resp.Body, cancel: cancel}, nil
}

// ChatMessage is one persisted message row as the backend returns it.
type ChatMessage struct {
	ID        string          `json:"id"`
	ChatID    string          `json:"chatId"`
	Role      string          `json:"role"`
	Content   string          `json:"content"`
	Reasoning string          `json:"reasoning,omitempty"`
	Parts     json.RawMessage `json:"parts,omitempty"`
	Streaming bool            `json:"streaming,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}

// FetchChat loads the chat's persisted message rows. This is the
// authoritative read a completed research session reconciles against.
func (c *Client) FetchChat(ctx context.Context, chatID string) ([]ChatMessage, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/chats/"+chatID, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("chat fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		return nil, &StatusError{Code: resp.StatusCode}
	}

	var rows []ChatMessage
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, fmt.Errorf("failed to decode chat payload: %w", err)
	}

	return rows, nil
}

// TruncateChat discards the last count messages server-side. Used before
// resubmitting an edited message.
func (c *Client) TruncateChat(ctx context.Context, chatID string, count int) error {
	return c.postJSON(ctx, "/api/chat/truncate", map[string]any{
		"chatId": chatID,
		"count":  count,
	})
}

// CreateMessage persists a single message row.
func (c *Client) CreateMessage(ctx context.Context, chatID, role, content string) error {
	return c.postJSON(ctx, "/api/messages", map[string]any{
		"chatId":  chatID,
		"role":    role,
		"content": content,
	})
}

func (c *Client) postJSON(ctx context.Context, path string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{Code: resp.StatusCode}
	}
	return nil
}
