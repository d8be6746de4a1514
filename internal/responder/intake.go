package responder

import (
	"strings"
	"unicode"

	"github.com/herald-bot/herald/internal/discord"
)

// mentionPrefixes returns the literal tokens the platform uses to render
// a mention of the given user at the start of message content. The
// second form appears when the mentioning client uses a server nickname.
func mentionPrefixes(userID string) [2]string {
	return [2]string{"<@" + userID + ">", "<@!" + userID + ">"}
}

// accept decides whether msg addresses the bot and returns the prompt
// text. A message qualifies when it starts with a mention of the bot or
// is a reply to one of the bot's messages. Messages from any bot account
// (including this one) never qualify, and a qualifying message whose
// prompt is empty is dropped as not actionable.
func (r *Responder) accept(msg *discord.Message) (string, bool) {
	if msg.Author.Bot {
		return "", false
	}

	var prompt string
	switch {
	case hasMentionPrefix(msg.Content, r.botUser.ID):
		prompt = stripMentionPrefix(msg.Content, r.botUser.ID)
	case msg.ReferencedMessage != nil && msg.ReferencedMessage.Author.ID == r.botUser.ID:
		prompt = msg.Content
	default:
		return "", false
	}

	if strings.TrimSpace(prompt) == "" {
		r.logger.Debug("ignoring empty prompt",
			"message_id", msg.ID,
			"author_id", msg.Author.ID,
		)
		return "", false
	}
	return prompt, true
}

// hasMentionPrefix reports whether content starts with a mention of
// userID.
func hasMentionPrefix(content, userID string) bool {
	for _, p := range mentionPrefixes(userID) {
		if strings.HasPrefix(content, p) {
			return true
		}
	}
	return false
}

// stripMentionPrefix removes a leading mention of userID and any
// whitespace after it. Content without the prefix is returned unchanged.
func stripMentionPrefix(content, userID string) string {
	for _, p := range mentionPrefixes(userID) {
		if strings.HasPrefix(content, p) {
			return strings.TrimLeftFunc(strings.TrimPrefix(content, p), unicode.IsSpace)
		}
	}
	return content
}
