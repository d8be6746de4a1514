// Package discord provides a minimal client for the Discord REST API
// and realtime gateway, covering what the responder needs: receiving
// message events, reading channel history, and sending replies.
package discord

import "time"

// User is a Discord user or bot account.
type User struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	GlobalName string `json:"global_name,omitempty"`
	Bot        bool   `json:"bot,omitempty"`
}

// DisplayName returns the user-facing name: the global display name when
// set, otherwise the account username.
func (u User) DisplayName() string {
	if u.GlobalName != "" {
		return u.GlobalName
	}
	return u.Username
}

// Attachment describes a file attached to a message. ContentType is the
// media type declared by Discord, not derived from the filename.
type Attachment struct {
	ID          string `json:"id"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type,omitempty"`
	Size        int64  `json:"size"`
	URL         string `json:"url"`
}

// MessageReference identifies the message another message replies to.
type MessageReference struct {
	MessageID string `json:"message_id,omitempty"`
	ChannelID string `json:"channel_id,omitempty"`
	GuildID   string `json:"guild_id,omitempty"`
}

// Message is a Discord message. Timestamps arrive as ISO-8601 strings on
// the wire and are parsed into time.Time here; nothing downstream handles
// raw timestamp strings.
type Message struct {
	ID          string       `json:"id"`
	ChannelID   string       `json:"channel_id"`
	GuildID     string       `json:"guild_id,omitempty"`
	Author      User         `json:"author"`
	Content     string       `json:"content"`
	Timestamp   time.Time    `json:"timestamp"`
	Attachments []Attachment `json:"attachments,omitempty"`

	// MessageReference is set when this message is a reply.
	MessageReference *MessageReference `json:"message_reference,omitempty"`
	// ReferencedMessage is the resolved reply target, when Discord
	// includes it in the event.
	ReferencedMessage *Message `json:"referenced_message,omitempty"`
}

// Channel is the subset of a Discord channel the responder cares about.
// Name is empty for DM channels.
type Channel struct {
	ID      string `json:"id"`
	Type    int    `json:"type"`
	GuildID string `json:"guild_id,omitempty"`
	Name    string `json:"name,omitempty"`
}

// Guild is the subset of a Discord guild the responder cares about.
type Guild struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
