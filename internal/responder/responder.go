// Package responder implements the response-orchestration loop: deciding
// whether an inbound message addresses the bot, assembling conversational
// context, driving the bounded tool-call loop against the completion
// service, and delivering the answer back into the channel.
package responder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/herald-bot/herald/internal/discord"
	"github.com/herald-bot/herald/internal/openai"
)

const (
	// maxAttempts bounds the tool-call loop. On the final attempt the
	// tool is withheld, forcing a terminal answer.
	maxAttempts = 3

	// maxAttachmentParts caps attachment-derived content parts per
	// message; anything beyond is silently dropped.
	maxAttachmentParts = 10

	// chunkLimit is Discord's per-message character limit.
	chunkLimit = 2000

	// minFetchLimit and maxFetchLimit bound a single get_messages call.
	minFetchLimit = 1
	maxFetchLimit = 20
)

// apologyReply is sent when the cycle fails for a reason the user should
// not see the details of.
const apologyReply = "Sorry, something went wrong while putting that answer together."

// Gateway is the chat platform surface the responder needs. Implemented
// by *discord.Client.
type Gateway interface {
	// Messages fetches up to limit messages older than before (newest
	// first, as the platform returns them).
	Messages(ctx context.Context, channelID string, limit int, before string) ([]discord.Message, error)
	// CreateMessage posts content; when ref is non-nil the message is a
	// reply.
	CreateMessage(ctx context.Context, channelID, content string, ref *discord.MessageReference) (*discord.Message, error)
	// TriggerTyping shows the bot as typing in the channel.
	TriggerTyping(ctx context.Context, channelID string) error
	// Channel and Guild resolve display names for the system preamble.
	Channel(ctx context.Context, channelID string) (*discord.Channel, error)
	Guild(ctx context.Context, guildID string) (*discord.Guild, error)
}

// Completer is the completion service surface. Implemented by
// *openai.Client.
type Completer interface {
	Create(ctx context.Context, req *openai.Request) (*openai.Response, error)
	Parse(ctx context.Context, req *openai.Request, format openai.TextFormat, out any) error
}

// Inliner fetches a text attachment body for inlining. Implemented by
// *fetch.Fetcher.
type Inliner interface {
	Inline(ctx context.Context, url, contentType string) (string, error)
}

// Config holds the dependencies for a Responder.
type Config struct {
	Gateway   Gateway
	Completer Completer
	Inliner   Inliner
	Logger    *slog.Logger

	// BotUser is the bot's own identity, from the gateway READY event.
	BotUser discord.User

	// SeedDepth is how many messages preceding the trigger seed the
	// working history. Defaults to 5.
	SeedDepth int

	// TypingInterval is the typing indicator refresh period. Defaults
	// to 8 seconds.
	TypingInterval time.Duration

	// RateLimit is the per-author messages-per-minute budget.
	// 0 = unlimited.
	RateLimit int
}

// Responder runs one response cycle per accepted inbound message. Each
// cycle's state (history, attempt counter) is private to the cycle;
// concurrent cycles share nothing but the rate limiter.
type Responder struct {
	gateway        Gateway
	completer      Completer
	inliner        Inliner
	logger         *slog.Logger
	botUser        discord.User
	seedDepth      int
	typingInterval time.Duration

	limiter *rateLimiter
}

// New creates a Responder.
func New(cfg Config) *Responder {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	seedDepth := cfg.SeedDepth
	if seedDepth <= 0 {
		seedDepth = 5
	}
	interval := cfg.TypingInterval
	if interval <= 0 {
		interval = 8 * time.Second
	}
	return &Responder{
		gateway:        cfg.Gateway,
		completer:      cfg.Completer,
		inliner:        cfg.Inliner,
		logger:         logger,
		botUser:        cfg.BotUser,
		seedDepth:      seedDepth,
		typingInterval: interval,
		limiter:        newRateLimiter(cfg.RateLimit),
	}
}

// HandleMessage runs one full response cycle for an inbound message.
// It never returns an error: every failure path ends with either an
// error reply or a logged drop. Panics from anywhere inside the cycle
// are caught here, and only here.
func (r *Responder) HandleMessage(ctx context.Context, msg *discord.Message) {
	prompt, ok := r.accept(msg)
	if !ok {
		return
	}

	if !r.limiter.allow(msg.Author.ID) {
		r.logger.Warn("message rate-limited",
			"author_id", msg.Author.ID,
			"channel_id", msg.ChannelID,
		)
		return
	}

	logger := r.logger.With(
		"request_id", uuid.NewString(),
		"channel_id", msg.ChannelID,
		"author_id", msg.Author.ID,
	)
	logger.Info("message accepted",
		"message_id", msg.ID,
		"prompt_len", len(prompt),
		"attachments", len(msg.Attachments),
	)

	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("panic during response cycle", "panic", rec)
			r.sendErrorReply(ctx, logger, msg, apologyReply)
		}
	}()

	text, err := r.orchestrate(ctx, logger, msg)
	if err != nil {
		var selErr *SelectionError
		var compErr *CompletionError
		switch {
		case errors.As(err, &selErr):
			logger.Error("model selection failed", "error", selErr)
			r.sendErrorReply(ctx, logger, msg, selErr.Error())
		case errors.As(err, &compErr):
			logger.Error("completion call failed", "error", compErr)
			r.sendErrorReply(ctx, logger, msg, compErr.Error())
		default:
			logger.Error("response cycle failed", "error", err)
			r.sendErrorReply(ctx, logger, msg, apologyReply)
		}
		return
	}

	if err := r.deliver(ctx, msg, text); err != nil {
		logger.Error("reply delivery failed", "error", err)
		return
	}
	logger.Info("reply delivered", "reply_len", len(text))
}

// orchestrate is the bounded tool-call state machine. It selects a
// model, seeds the history, and loops: rebuild input from the current
// history, call the completion service, and either return its text
// (terminal) or honor its get_messages calls and try again. The tool is
// withheld on the final attempt so the model must answer.
func (r *Responder) orchestrate(ctx context.Context, logger *slog.Logger, msg *discord.Message) (string, error) {
	model, err := r.selectModel(ctx, logger, msg)
	if err != nil {
		return "", err
	}

	history, err := r.seedHistory(ctx, msg)
	if err != nil {
		return "", err
	}

	instructions := r.preamble(ctx, msg)

	stopTyping := r.startTyping(ctx, msg.ChannelID)
	defer stopTyping()

	for attempt := 0; attempt < maxAttempts; attempt++ {
		req := &openai.Request{
			Model:        model,
			Instructions: instructions,
			Input:        r.assemble(ctx, history),
		}
		if attempt < maxAttempts-1 {
			req.Tools = []openai.Tool{getMessagesTool()}
		}

		resp, err := r.completer.Create(ctx, req)
		if err != nil {
			return "", &CompletionError{Err: err}
		}

		calls := getMessagesCalls(resp)
		if len(calls) == 0 {
			logger.Info("answer ready",
				"attempt", attempt,
				"history_len", len(history),
				"model", model,
			)
			return resp.OutputText(), nil
		}

		// Honor every tool call in the response, each anchored to the
		// earliest message known at the time it is processed.
		for _, call := range calls {
			limit := parseFetchLimit(call.Arguments)
			history, err = r.expandHistory(ctx, msg.ChannelID, history, limit)
			if err != nil {
				return "", err
			}
		}
		logger.Info("history expanded",
			"attempt", attempt,
			"tool_calls", len(calls),
			"history_len", len(history),
		)
	}

	// Unreachable when the final attempt withholds the tool, but the
	// loop bound is enforced rather than assumed.
	return "", fmt.Errorf("no terminal answer after %d attempts", maxAttempts)
}

// sendErrorReply delivers an error message as a reply to the trigger.
// Best-effort: a failure here is only logged.
func (r *Responder) sendErrorReply(ctx context.Context, logger *slog.Logger, msg *discord.Message, text string) {
	if err := r.deliver(ctx, msg, text); err != nil {
		logger.Error("error reply delivery failed", "error", err)
	}
}

// getMessagesTool is the single tool offered on non-final attempts.
func getMessagesTool() openai.Tool {
	return openai.Tool{
		Name:        "get_messages",
		Description: "Fetch earlier messages from this channel when the visible conversation is not enough to answer. Fetch only as many as you need.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"limit": map[string]any{
					"type":        "integer",
					"minimum":     minFetchLimit,
					"maximum":     maxFetchLimit,
					"description": "How many earlier messages to fetch.",
				},
			},
			"required":             []string{"limit"},
			"additionalProperties": false,
		},
	}
}

// getMessagesCalls returns the get_messages invocations in a response.
func getMessagesCalls(resp *openai.Response) []openai.FunctionCall {
	var calls []openai.FunctionCall
	for _, call := range resp.FunctionCalls() {
		if call.Name == "get_messages" {
			calls = append(calls, call)
		}
	}
	return calls
}

// parseFetchLimit extracts the limit argument from a tool call. The
// strict schema should guarantee a valid value; anything malformed is
// clamped rather than trusted.
func parseFetchLimit(arguments string) int {
	var args struct {
		Limit int `json:"limit"`
	}
	if err := json.Unmarshal([]byte(arguments), &args); err != nil {
		return minFetchLimit
	}
	return clampFetchLimit(args.Limit)
}

func clampFetchLimit(n int) int {
	if n < minFetchLimit {
		return minFetchLimit
	}
	if n > maxFetchLimit {
		return maxFetchLimit
	}
	return n
}

// preamble builds the fixed system instructions for completion calls,
// naming the guild and channel the conversation lives in. Name lookups
// are best-effort; identifiers are used when they fail.
func (r *Responder) preamble(ctx context.Context, msg *discord.Message) string {
	channelName := msg.ChannelID
	if ch, err := r.gateway.Channel(ctx, msg.ChannelID); err == nil && ch.Name != "" {
		channelName = ch.Name
	}

	guildName := "Direct Message"
	if msg.GuildID != "" {
		guildName = msg.GuildID
		if g, err := r.gateway.Guild(ctx, msg.GuildID); err == nil && g.Name != "" {
			guildName = g.Name
		}
	}

	return fmt.Sprintf(systemPreamble, r.botUser.DisplayName(), guildName, channelName)
}

// systemPreamble describes the assistant's role. Each conversation turn
// the model sees carries a from/time header; the preamble tells it not
// to imitate that framing in its answer.
const systemPreamble = `You are %s, an assistant that answers questions in a chat server.
You are currently in %s, channel %s.
The recent conversation is provided as input. If it is not enough to answer, call get_messages to fetch earlier messages, requesting only as many as you need.
Reply with the answer text only. Do not prefix it with from/time headers like the ones in the conversation context.`
