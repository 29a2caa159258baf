package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/espalier-ai/espalier/pkg/domain"
)

// missingTemplateApology is uttered when a response template is
// missing. Dialogue must not deadlock on a content-authoring error, so
// this is a warning, never a failure.
const missingTemplateApology = "Sorry, I can't find the right words for that."

var slotPlaceholder = regexp.MustCompile(`\{([a-zA-Z_][a-zA-Z0-9_]*)\}`)

// renderResponse substitutes {slot_name} placeholders with current slot
// values. Unfilled slots render as an empty string.
func renderResponse(r domain.Response, t *domain.Tracker) string {
	return slotPlaceholder.ReplaceAllStringFunc(r.Text, func(match string) string {
		name := match[1 : len(match)-1]
		if value, ok := t.Slot(name); ok {
			return fmt.Sprintf("%v", value)
		}
		return ""
	})
}

// responseAction utters one declared response template.
type responseAction struct {
	name   string
	logger *slog.Logger
}

func (a responseAction) Name() string { return a.name }

func (a responseAction) Run(_ context.Context, t *domain.Tracker, d *domain.Domain) (*domain.Result, error) {
	variations, ok := d.Responses[a.name]
	if !ok || len(variations) == 0 {
		a.logger.Warn("response template missing, substituting apology", "response", a.name)
		return &domain.Result{Events: []domain.Event{domain.NewBotUttered(missingTemplateApology)}}, nil
	}
	text := renderResponse(variations[0], t)
	return &domain.Result{Events: []domain.Event{domain.NewBotUttered(text)}}, nil
}
