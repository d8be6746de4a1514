package responder

import (
	"context"
	"fmt"

	"github.com/herald-bot/herald/internal/discord"
)

// splitChunks splits text into consecutive rune-bounded chunks of at
// most limit characters. Concatenating the chunks reproduces the text
// exactly; no characters are added, dropped, or reordered. Empty text
// yields no chunks.
func splitChunks(text string, limit int) []string {
	if text == "" {
		return nil
	}
	runes := []rune(text)
	var chunks []string
	for len(runes) > limit {
		chunks = append(chunks, string(runes[:limit]))
		runes = runes[limit:]
	}
	return append(chunks, string(runes))
}

// deliver posts text into the trigger's channel, split into
// platform-sized chunks. The first chunk is a reply to the trigger so
// the thread of conversation is visible; the rest follow as plain
// messages in order. Empty text sends nothing.
func (r *Responder) deliver(ctx context.Context, msg *discord.Message, text string) error {
	chunks := splitChunks(text, chunkLimit)
	for i, chunk := range chunks {
		var ref *discord.MessageReference
		if i == 0 {
			ref = &discord.MessageReference{
				MessageID: msg.ID,
				ChannelID: msg.ChannelID,
			}
		}
		if _, err := r.gateway.CreateMessage(ctx, msg.ChannelID, chunk, ref); err != nil {
			return fmt.Errorf("send chunk %d/%d: %w", i+1, len(chunks), err)
		}
	}
	return nil
}
