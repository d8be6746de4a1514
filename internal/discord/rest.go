package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/herald-bot/herald/internal/httpkit"
)

// DefaultAPIBase is the Discord REST API endpoint.
const DefaultAPIBase = "https://discord.com/api/v10"

// Client is a Discord REST API client authenticated with a bot token.
type Client struct {
	token      string
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a Discord REST client.
func NewClient(token string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		token:      token,
		baseURL:    DefaultAPIBase,
		httpClient: httpkit.NewClient(),
		logger:     logger.With("component", "discord"),
	}
}

// do performs a JSON request against the REST API. body and out may be
// nil. Non-2xx responses are returned as errors carrying the (bounded)
// response body, including 429 rate limits.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bot "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("discord %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errBody := httpkit.ReadErrorBody(resp.Body, 4096)
		c.logger.Error("discord API error",
			"method", method,
			"path", path,
			"status", resp.StatusCode,
			"body", errBody,
		)
		return fmt.Errorf("discord API error %d: %s", resp.StatusCode, errBody)
	}

	if out == nil {
		httpkit.DrainAndClose(resp.Body, 4096)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Messages fetches up to limit messages from a channel, newest first.
// When before is non-empty, only messages older than that message ID are
// returned.
func (c *Client) Messages(ctx context.Context, channelID string, limit int, before string) ([]Message, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if before != "" {
		q.Set("before", before)
	}
	path := "/channels/" + channelID + "/messages"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var msgs []Message
	if err := c.do(ctx, http.MethodGet, path, nil, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

// createMessagePayload is the wire body for message creation.
type createMessagePayload struct {
	Content          string            `json:"content"`
	MessageReference *MessageReference `json:"message_reference,omitempty"`
}

// CreateMessage posts content to a channel. When ref is non-nil the
// message is sent as a reply to the referenced message.
func (c *Client) CreateMessage(ctx context.Context, channelID, content string, ref *MessageReference) (*Message, error) {
	payload := createMessagePayload{
		Content:          content,
		MessageReference: ref,
	}

	var msg Message
	if err := c.do(ctx, http.MethodPost, "/channels/"+channelID+"/messages", payload, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// TriggerTyping shows the bot as typing in a channel. The indicator
// expires on its own after roughly ten seconds.
func (c *Client) TriggerTyping(ctx context.Context, channelID string) error {
	return c.do(ctx, http.MethodPost, "/channels/"+channelID+"/typing", nil, nil)
}

// Channel fetches channel metadata.
func (c *Client) Channel(ctx context.Context, channelID string) (*Channel, error) {
	var ch Channel
	if err := c.do(ctx, http.MethodGet, "/channels/"+channelID, nil, &ch); err != nil {
		return nil, err
	}
	return &ch, nil
}

// Guild fetches guild metadata.
func (c *Client) Guild(ctx context.Context, guildID string) (*Guild, error) {
	var g Guild
	if err := c.do(ctx, http.MethodGet, "/guilds/"+guildID, nil, &g); err != nil {
		return nil, err
	}
	return &g, nil
}

// CurrentUser fetches the bot's own user record.
func (c *Client) CurrentUser(ctx context.Context) (*User, error) {
	var u User
	if err := c.do(ctx, http.MethodGet, "/users/@me", nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}
