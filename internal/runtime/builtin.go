package runtime

import (
	"context"
	"log/slog"

	"github.com/espalier-ai/espalier/pkg/domain"
)

// listenAction is the turn terminator: it asks nothing of the state and
// signals the caller to wait for the next user message.
type listenAction struct{}

func (listenAction) Name() string { return domain.ActionListen }

func (listenAction) Run(context.Context, *domain.Tracker, *domain.Domain) (*domain.Result, error) {
	return &domain.Result{}, nil
}

// restartAction wipes the conversation. If the domain declares an
// utter_restart template it is spoken first so the user sees the reset.
type restartAction struct{}

func (restartAction) Name() string { return domain.ActionRestart }

func (restartAction) Run(_ context.Context, t *domain.Tracker, d *domain.Domain) (*domain.Result, error) {
	var events []domain.Event
	if d.HasResponse("utter_restart") {
		events = append(events, domain.NewBotUttered(renderResponse(d.Responses["utter_restart"][0], t)))
	}
	events = append(events, domain.NewRestarted())
	return &domain.Result{Events: events}, nil
}

// sessionStartAction opens a fresh session.
type sessionStartAction struct{}

func (sessionStartAction) Name() string { return domain.ActionSessionStart }

func (sessionStartAction) Run(context.Context, *domain.Tracker, *domain.Domain) (*domain.Result, error) {
	return &domain.Result{Events: []domain.Event{domain.NewSessionStarted()}}, nil
}

// fallbackAction is what the policy layer routes to when nothing else
// applies. It utters the domain's utter_default template when present.
type fallbackAction struct {
	logger *slog.Logger
}

func (fallbackAction) Name() string { return domain.ActionDefaultFallback }

func (a fallbackAction) Run(_ context.Context, t *domain.Tracker, d *domain.Domain) (*domain.Result, error) {
	text := missingTemplateApology
	if d.HasResponse("utter_default") {
		text = renderResponse(d.Responses["utter_default"][0], t)
	} else {
		a.logger.Warn("no utter_default template declared, using generic fallback text")
	}
	return &domain.Result{Events: []domain.Event{domain.NewBotUttered(text)}}, nil
}

// extractSlotsAction maps recognized entities onto same-named declared
// slots, outside of any form. Values that fail type coercion are
// silently skipped: extraction failure is "no value", never an error.
type extractSlotsAction struct{}

func (extractSlotsAction) Name() string { return domain.ActionExtractSlots }

func (extractSlotsAction) Run(_ context.Context, t *domain.Tracker, d *domain.Domain) (*domain.Result, error) {
	if t.LatestMessage == nil {
		return &domain.Result{}, nil
	}
	var events []domain.Event
	for _, entity := range t.LatestMessage.Entities {
		slot, ok := d.Slots[entity.Name]
		if !ok {
			continue
		}
		value, ok := slot.Coerce(entity.Value)
		if !ok {
			continue
		}
		events = append(events, domain.NewSlotSet(entity.Name, value))
	}
	return &domain.Result{Events: events}, nil
}
