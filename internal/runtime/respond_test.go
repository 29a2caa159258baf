package runtime

import (
	"context"
	"testing"

	"github.com/espalier-ai/espalier/internal/logging"
	"github.com/espalier-ai/espalier/pkg/domain"
)

func TestResponseActionRendersSlots(t *testing.T) {
	d := testDomain(t)
	tracker := domain.NewTracker("a", d)
	tracker.Apply(domain.NewSlotSet("cuisine", "italian"))

	action := responseAction{name: "utter_greet", logger: logging.NewNop()}
	result, err := action.Run(context.Background(), tracker, d)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(result.Events) != 1 {
		t.Fatalf("expected one event, got %d", len(result.Events))
	}
	bot, ok := result.Events[0].(domain.BotUttered)
	if !ok {
		t.Fatalf("expected BotUttered, got %T", result.Events[0])
	}
	if bot.Text != "Hello italian fan!" {
		t.Errorf("rendered %q", bot.Text)
	}
}

func TestResponseActionUnfilledSlotRendersEmpty(t *testing.T) {
	d := testDomain(t)
	action := responseAction{name: "utter_greet", logger: logging.NewNop()}

	result, err := action.Run(context.Background(), domain.NewTracker("a", d), d)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	bot := result.Events[0].(domain.BotUttered)
	if bot.Text != "Hello  fan!" {
		t.Errorf("rendered %q", bot.Text)
	}
}

// A missing template must not deadlock the dialogue: the action
// apologizes instead of failing.
func TestResponseActionMissingTemplate(t *testing.T) {
	d := testDomain(t)
	action := responseAction{name: "utter_gone", logger: logging.NewNop()}

	result, err := action.Run(context.Background(), domain.NewTracker("a", d), d)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	bot := result.Events[0].(domain.BotUttered)
	if bot.Text != missingTemplateApology {
		t.Errorf("got %q, want apology", bot.Text)
	}
}
