package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/herald-bot/herald/internal/config"
	"github.com/herald-bot/herald/internal/httpkit"
)

// DefaultBaseURL is the public OpenAI API endpoint.
const DefaultBaseURL = "https://api.openai.com/v1"

// Client is a client for the OpenAI Responses API.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates an OpenAI client. baseURL may be empty to use the
// public endpoint.
func NewClient(apiKey, baseURL string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	// Completion responses can take significant time before headers
	// arrive (long prompts, reasoning models). Use a generous response
	// header timeout and no overall client timeout; ctx deadlines
	// control cancellation.
	t := httpkit.NewTransport()
	t.ResponseHeaderTimeout = 120 * time.Second

	return &Client{
		apiKey:  apiKey,
		baseURL: baseURL,
		logger:  logger.With("provider", "openai"),
		httpClient: httpkit.NewClient(
			httpkit.WithTimeout(0),
			httpkit.WithTransport(t),
		),
	}
}

// createPayload is the wire form of a create request. Format is attached
// only for Parse calls.
type createPayload struct {
	Model        string      `json:"model"`
	Instructions string      `json:"instructions,omitempty"`
	Input        []InputTurn `json:"input"`
	Tools        []Tool      `json:"tools,omitempty"`
	Text         *textParam  `json:"text,omitempty"`
}

type textParam struct {
	Format formatParam `json:"format"`
}

type formatParam struct {
	Type   string         `json:"type"`
	Name   string         `json:"name"`
	Schema map[string]any `json:"schema"`
	Strict bool           `json:"strict"`
}

// Create sends a request expecting free-text or tool-call output.
func (c *Client) Create(ctx context.Context, req *Request) (*Response, error) {
	payload := createPayload{
		Model:        req.Model,
		Instructions: req.Instructions,
		Input:        req.Input,
		Tools:        req.Tools,
	}
	return c.post(ctx, payload)
}

// Parse sends a request whose output is constrained to the given JSON
// schema, and unmarshals the structured output text into out.
func (c *Client) Parse(ctx context.Context, req *Request, format TextFormat, out any) error {
	payload := createPayload{
		Model:        req.Model,
		Instructions: req.Instructions,
		Input:        req.Input,
		Text: &textParam{
			Format: formatParam{
				Type:   "json_schema",
				Name:   format.Name,
				Schema: format.Schema,
				Strict: true,
			},
		},
	}

	resp, err := c.post(ctx, payload)
	if err != nil {
		return err
	}

	text := resp.OutputText()
	if text == "" {
		return fmt.Errorf("openai parse: response contained no structured output")
	}
	if err := json.Unmarshal([]byte(text), out); err != nil {
		return fmt.Errorf("openai parse: decode structured output: %w", err)
	}
	return nil
}

// post issues the HTTP request and decodes the response envelope.
func (c *Client) post(ctx context.Context, payload createPayload) (*Response, error) {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	c.logger.Debug("preparing request",
		"model", payload.Model,
		"input_turns", len(payload.Input),
		"tools", len(payload.Tools),
		"structured", payload.Text != nil,
	)
	c.logger.Log(ctx, config.LevelTrace, "request payload", "json", string(jsonData))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/responses", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		errBody := httpkit.ReadErrorBody(httpResp.Body, 4096)
		c.logger.Error("API error", "status", httpResp.StatusCode, "body", errBody)
		return nil, fmt.Errorf("openai API error %d: %s", httpResp.StatusCode, errBody)
	}

	var resp Response
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("openai response error: %s", resp.Error.Message)
	}

	c.logger.Debug("response received",
		"model", resp.Model,
		"input_tokens", resp.Usage.InputTokens,
		"output_tokens", resp.Usage.OutputTokens,
		"function_calls", len(resp.FunctionCalls()),
	)
	c.logger.Log(ctx, config.LevelTrace, "response content", "content", resp.OutputText())

	return &resp, nil
}
