// Package gateway integrates the external WhatsApp messaging bridge used to
// reach doctors about bookings and availability. The bridge is an HTTP
// service (a hosted WhatsApp web client); this package wraps its REST API
// behind the Messenger contract so the rest of the service never sees the
// wire format.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

// Message is one message fetched from a gateway conversation.
type Message struct {
	ID        string    `json:"id"`
	From      string    `json:"from"`
	Body      string    `json:"body"`
	FromMe    bool      `json:"fromMe"`
	Timestamp time.Time `json:"timestamp"`
}

// Messenger is the outbound messaging contract.
type Messenger interface {
	// SendText delivers one text message to a conversation.
	SendText(ctx context.Context, conversationID, text string) error
	// ListMessages fetches up to limit recent messages from a conversation.
	ListMessages(ctx context.Context, conversationID string, limit int) ([]Message, error)
}

// Client talks to the WhatsApp bridge over HTTP.
type Client struct {
	baseURL string
	session string
	hc      *http.Client
	log     zerolog.Logger
}

// NewClient constructs a gateway client. baseURL is the bridge root (no
// trailing slash), session names the bridge session to use.
func NewClient(baseURL, session string, timeout time.Duration, log zerolog.Logger) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		session: session,
		hc:      &http.Client{Timeout: timeout},
		log:     log,
	}
}

// sendTextRequest is the bridge's send payload.
type sendTextRequest struct {
	ChatID  string `json:"chatId"`
	Text    string `json:"text"`
	Session string `json:"session"`
}

// SendText delivers one text message to a conversation. Non-2xx bridge
// responses are returned as errors with the status included.
func (c *Client) SendText(ctx context.Context, conversationID, text string) error {
	body, err := json.Marshal(sendTextRequest{
		ChatID:  conversationID,
		Text:    text,
		Session: c.session,
	})
	if err != nil {
		return fmt.Errorf("gateway: encode send request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/sendText", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("gateway: build send request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("gateway: send text: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.log.Warn().
			Int("status", resp.StatusCode).
			Str("conversation", conversationID).
			Msg("gateway send rejected")
		return fmt.Errorf("gateway: send text: status %d: %s", resp.StatusCode, snippet)
	}
	return nil
}

// bridgeMessage is the bridge's wire shape for one message. Timestamps are
// unix seconds.
type bridgeMessage struct {
	ID        string `json:"id"`
	From      string `json:"from"`
	Body      string `json:"body"`
	FromMe    bool   `json:"fromMe"`
	Timestamp int64  `json:"timestamp"`
}

// ListMessages fetches up to limit recent messages from a conversation.
func (c *Client) ListMessages(ctx context.Context, conversationID string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 20
	}

	u := fmt.Sprintf("%s/api/%s/chats/%s/messages?limit=%s",
		c.baseURL,
		url.PathEscape(c.session),
		url.PathEscape(conversationID),
		strconv.Itoa(limit),
	)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("gateway: build list request: %w", err)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway: list messages: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gateway: list messages: status %d", resp.StatusCode)
	}

	var raw []bridgeMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("gateway: decode messages: %w", err)
	}

	out := make([]Message, 0, len(raw))
	for _, m := range raw {
		out = append(out, Message{
			ID:        m.ID,
			From:      m.From,
			Body:      m.Body,
			FromMe:    m.FromMe,
			Timestamp: time.Unix(m.Timestamp, 0).UTC(),
		})
	}
	return out, nil
}
