package responder

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/herald-bot/herald/internal/discord"
	"github.com/herald-bot/herald/internal/openai"
)

// ModelTiers is the closed set of completion models, smallest to
// largest. The selector must return exactly one of these.
var ModelTiers = []string{"gpt-4.1-nano", "gpt-4.1-mini", "gpt-4.1", "gpt-5"}

// selectionModel runs the classification call itself. Routing is a
// cheap structured-output task, so the smallest tier does it.
const selectionModel = "gpt-4.1-nano"

// selectModel classifies the trigger message into a model tier using a
// structured-output call with a strict enum schema. Any failure, and any
// answer outside the tier set, is a SelectionError. No retry: the
// selection call runs exactly once per cycle.
func (r *Responder) selectModel(ctx context.Context, logger *slog.Logger, msg *discord.Message) (string, error) {
	req := &openai.Request{
		Model:        selectionModel,
		Instructions: selectionInstructions(),
		Input:        []openai.InputTurn{r.turn(ctx, msg)},
	}
	format := openai.TextFormat{
		Name: "model_selection",
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"model": map[string]any{
					"type": "string",
					"enum": ModelTiers,
				},
			},
			"required":             []string{"model"},
			"additionalProperties": false,
		},
	}

	var out struct {
		Model string `json:"model"`
	}
	if err := r.completer.Parse(ctx, req, format, &out); err != nil {
		return "", &SelectionError{Err: err}
	}
	if !slices.Contains(ModelTiers, out.Model) {
		return "", &SelectionError{Err: fmt.Errorf("model selection returned %q, not a known tier", out.Model)}
	}

	logger.Info("model selected", "model", out.Model)
	return out.Model, nil
}

func selectionInstructions() string {
	return fmt.Sprintf(
		"You route chat messages to the cheapest completion model that can answer them well. "+
			"Choose exactly one of: %s. "+
			"Pick the smallest tier for greetings and simple conversational exchanges. "+
			"Escalate only when the message needs deep reasoning, long or technical content, or careful writing.",
		strings.Join(ModelTiers, ", "),
	)
}
