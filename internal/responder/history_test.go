package responder

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/herald-bot/herald/internal/discord"
)

func historyResponder(gw *fakeGateway) *Responder {
	return New(Config{
		Gateway:   gw,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		BotUser:   discord.User{ID: testBotID},
		SeedDepth: 5,
	})
}

func historyIDs(history []discord.Message) []string {
	ids := make([]string, len(history))
	for i, m := range history {
		ids[i] = m.ID
	}
	return ids
}

func TestMergeHistory_DedupesAndSorts(t *testing.T) {
	a := []discord.Message{channelMessage(3, "1", "c"), channelMessage(1, "1", "a")}
	b := []discord.Message{channelMessage(2, "1", "b"), channelMessage(3, "1", "c again")}

	merged := mergeHistory(a, b)

	want := []string{"1", "2", "3"}
	got := historyIDs(merged)
	if len(got) != len(want) {
		t.Fatalf("merged = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("merged[%d] = %s, want %s", i, got[i], want[i])
		}
	}
	// First occurrence wins on duplicate ids.
	if merged[2].Content != "c" {
		t.Errorf("duplicate kept %q, want first occurrence", merged[2].Content)
	}
}

func TestMergeHistory_TimestampTieBreaksOnID(t *testing.T) {
	a := channelMessage(9, "1", "first")
	b := channelMessage(10, "1", "second")
	b.Timestamp = a.Timestamp

	merged := mergeHistory([]discord.Message{b}, []discord.Message{a})
	if merged[0].ID != "9" || merged[1].ID != "10" {
		t.Errorf("order = %v, want numeric id order", historyIDs(merged))
	}
}

func TestSeedHistory_AnchorsOnTrigger(t *testing.T) {
	var msgs []discord.Message
	for i := 1; i <= 8; i++ {
		msgs = append(msgs, channelMessage(i, "7", "m"))
	}
	gw := &fakeGateway{history: msgs}
	r := historyResponder(gw)

	trigger := triggerMessage(20, "<@"+testBotID+"> hi")
	history, err := r.seedHistory(context.Background(), trigger)
	if err != nil {
		t.Fatalf("seedHistory: %v", err)
	}

	// Five before the trigger plus the trigger itself.
	want := []string{"4", "5", "6", "7", "8", "20"}
	got := historyIDs(history)
	if len(got) != len(want) {
		t.Fatalf("history = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("history[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestSeedHistory_ReplyAnchorsOnTarget(t *testing.T) {
	var msgs []discord.Message
	for i := 1; i <= 10; i++ {
		msgs = append(msgs, channelMessage(i, "7", "m"))
	}
	gw := &fakeGateway{history: msgs}
	r := historyResponder(gw)

	target := channelMessage(6, "7", "the referenced one")
	trigger := triggerMessage(20, "what about this?")
	trigger.MessageReference = &discord.MessageReference{MessageID: target.ID, ChannelID: testChannel}
	trigger.ReferencedMessage = &target

	history, err := r.seedHistory(context.Background(), trigger)
	if err != nil {
		t.Fatalf("seedHistory: %v", err)
	}

	// The fetch is anchored before the reply target, not the trigger.
	if len(gw.fetches) != 1 || gw.fetches[0].before != "6" {
		t.Errorf("fetches = %+v, want before=6", gw.fetches)
	}
	want := []string{"1", "2", "3", "4", "5", "6", "20"}
	got := historyIDs(history)
	if len(got) != len(want) {
		t.Fatalf("history = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("history[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestExpandHistory_FetchesBeforeEarliest(t *testing.T) {
	var msgs []discord.Message
	for i := 1; i <= 10; i++ {
		msgs = append(msgs, channelMessage(i, "7", "m"))
	}
	gw := &fakeGateway{history: msgs}
	r := historyResponder(gw)

	current := []discord.Message{channelMessage(6, "7", "m"), channelMessage(7, "7", "m")}
	expanded, err := r.expandHistory(context.Background(), testChannel, current, 3)
	if err != nil {
		t.Fatalf("expandHistory: %v", err)
	}

	if gw.fetches[0].before != "6" || gw.fetches[0].limit != 3 {
		t.Errorf("fetch = %+v, want limit=3 before=6", gw.fetches[0])
	}
	want := []string{"3", "4", "5", "6", "7"}
	got := historyIDs(expanded)
	if len(got) != len(want) {
		t.Fatalf("expanded = %v, want %v", got, want)
	}
	// The input slice is untouched.
	if len(current) != 2 || current[0].ID != "6" {
		t.Errorf("input history mutated: %v", historyIDs(current))
	}
}

func TestExpandHistory_ClampsLimit(t *testing.T) {
	gw := &fakeGateway{}
	r := historyResponder(gw)

	if _, err := r.expandHistory(context.Background(), testChannel, nil, 500); err != nil {
		t.Fatalf("expandHistory: %v", err)
	}
	if gw.fetches[0].limit != maxFetchLimit {
		t.Errorf("limit = %d, want clamped to %d", gw.fetches[0].limit, maxFetchLimit)
	}
}

func TestSnowflakeLess(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"9", "10", true},
		{"10", "9", false},
		{"100", "101", true},
		{"101", "101", false},
	}
	for _, tt := range tests {
		if got := snowflakeLess(tt.a, tt.b); got != tt.want {
			t.Errorf("snowflakeLess(%s, %s) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}
