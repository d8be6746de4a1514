package responder

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/herald-bot/herald/internal/discord"
	"github.com/herald-bot/herald/internal/openai"
)

// ContentKind classifies an attachment by its declared media type.
type ContentKind int

const (
	KindImage ContentKind = iota
	KindPlainText
	KindOther
)

// ClassifyAttachment maps a declared media type to a ContentKind. Only
// the declared type is consulted; attachment bytes are never sniffed.
func ClassifyAttachment(contentType string) ContentKind {
	switch {
	case strings.HasPrefix(contentType, "image/"):
		return KindImage
	case strings.HasPrefix(contentType, "text/"):
		return KindPlainText
	default:
		return KindOther
	}
}

// assemble renders the working history into completion input, one turn
// per message in order. Assembly never mutates the history, so running
// it again over the same messages yields the same turns.
func (r *Responder) assemble(ctx context.Context, history []discord.Message) []openai.InputTurn {
	turns := make([]openai.InputTurn, 0, len(history))
	for i := range history {
		turns = append(turns, r.turn(ctx, &history[i]))
	}
	return turns
}

// turn renders one message. The bot's own messages become plain-text
// assistant turns; everything else becomes a user turn whose first part
// is the header block, followed by attachment-derived parts.
func (r *Responder) turn(ctx context.Context, msg *discord.Message) openai.InputTurn {
	header := r.headerBlock(msg)

	if msg.Author.ID == r.botUser.ID {
		return openai.InputTurn{Role: openai.RoleAssistant, Text: header}
	}

	parts := []openai.ContentPart{openai.TextPart(header)}
	for i := range msg.Attachments {
		if i >= maxAttachmentParts {
			r.logger.Debug("attachment cap reached, dropping the rest",
				"message_id", msg.ID,
				"dropped", len(msg.Attachments)-maxAttachmentParts,
			)
			break
		}
		parts = append(parts, r.attachmentPart(ctx, msg, &msg.Attachments[i]))
	}
	return openai.InputTurn{Role: openai.RoleUser, Parts: parts}
}

// headerBlock formats a message as a from/time header followed by the
// body. The bot's own messages drop the leading mention echo so the
// model does not learn to reproduce it.
func (r *Responder) headerBlock(msg *discord.Message) string {
	body := msg.Content
	if msg.Author.ID == r.botUser.ID {
		body = stripMentionPrefix(body, r.botUser.ID)
	}
	return fmt.Sprintf("from:%s\ntime:%s\n%s",
		msg.Author.DisplayName(),
		msg.Timestamp.UTC().Format(time.RFC3339),
		body,
	)
}

// attachmentPart converts one attachment into a content part. Images
// pass by URL, text attachments are downloaded and inlined, and anything
// else (or a failed download) is passed as a file reference.
func (r *Responder) attachmentPart(ctx context.Context, msg *discord.Message, att *discord.Attachment) openai.ContentPart {
	switch ClassifyAttachment(att.ContentType) {
	case KindImage:
		return openai.ImagePart(att.URL, "")
	case KindPlainText:
		content, err := r.inliner.Inline(ctx, att.URL, att.ContentType)
		if err != nil {
			r.logger.Warn("attachment inline failed, passing file reference",
				"filename", att.Filename,
				"error", err,
			)
			return openai.FilePart(att.URL)
		}
		embedded := fmt.Sprintf("from:%s\ntime:%s\nfilename:%s\ncontent:\n%s",
			msg.Author.DisplayName(),
			msg.Timestamp.UTC().Format(time.RFC3339),
			att.Filename,
			content,
		)
		return openai.EmbeddedTextPart(embedded)
	default:
		return openai.FilePart(att.URL)
	}
}
