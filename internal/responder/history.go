package responder

import (
	"context"
	"fmt"
	"sort"

	"github.com/herald-bot/herald/internal/discord"
)

// seedHistory builds the initial working history for a cycle: the
// trigger message, its reply target when present, and the messages
// preceding the anchor. The anchor is the reply target when the trigger
// is a reply, otherwise the trigger itself, so a reply to an old message
// pulls in the context around that message rather than the present.
func (r *Responder) seedHistory(ctx context.Context, msg *discord.Message) ([]discord.Message, error) {
	seed := []discord.Message{*msg}
	anchor := msg.ID
	if msg.ReferencedMessage != nil {
		seed = append(seed, *msg.ReferencedMessage)
		anchor = msg.ReferencedMessage.ID
	} else if msg.MessageReference != nil && msg.MessageReference.MessageID != "" {
		anchor = msg.MessageReference.MessageID
	}

	older, err := r.gateway.Messages(ctx, msg.ChannelID, r.seedDepth, anchor)
	if err != nil {
		return nil, fmt.Errorf("seed history: %w", err)
	}
	return mergeHistory(seed, older), nil
}

// expandHistory fetches up to limit messages older than the earliest
// message currently known and returns the merged history as a fresh
// slice. The input is never mutated, so turns already rendered from it
// stay valid.
func (r *Responder) expandHistory(ctx context.Context, channelID string, history []discord.Message, limit int) ([]discord.Message, error) {
	limit = clampFetchLimit(limit)

	before := ""
	if len(history) > 0 {
		before = history[0].ID
	}

	older, err := r.gateway.Messages(ctx, channelID, limit, before)
	if err != nil {
		return nil, fmt.Errorf("expand history: %w", err)
	}
	return mergeHistory(history, older), nil
}

// mergeHistory combines two message sets into a new slice with no
// duplicate ids, ordered oldest first. Ties on timestamp fall back to
// numeric id order, since ids are time-ordered decimal strings.
func mergeHistory(a, b []discord.Message) []discord.Message {
	seen := make(map[string]bool, len(a)+len(b))
	merged := make([]discord.Message, 0, len(a)+len(b))
	for _, set := range [2][]discord.Message{a, b} {
		for _, m := range set {
			if seen[m.ID] {
				continue
			}
			seen[m.ID] = true
			merged = append(merged, m)
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		if !merged[i].Timestamp.Equal(merged[j].Timestamp) {
			return merged[i].Timestamp.Before(merged[j].Timestamp)
		}
		return snowflakeLess(merged[i].ID, merged[j].ID)
	})
	return merged
}

// snowflakeLess compares two decimal id strings numerically.
func snowflakeLess(a, b string) bool {
	if len(a) != len(b) {
		return len(a) < len(b)
	}
	return a < b
}
