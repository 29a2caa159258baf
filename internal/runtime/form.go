package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/espalier-ai/espalier/pkg/domain"
	"github.com/espalier-ai/espalier/pkg/ports"
)

// newFormAction wires a form's slot-filling step into the generic loop
// driver.
func newFormAction(name string, form domain.Form, deps Deps) ports.Action {
	return &loopAction{
		name: name,
		step: &formStep{
			name:     name,
			form:     form,
			endpoint: deps.Endpoint,
			logger:   deps.logger(),
		},
	}
}

// formStep drives a structured information-gathering dialogue until
// every required slot holds a value.
type formStep struct {
	name     string
	form     domain.Form
	endpoint ports.ActionEndpoint
	logger   *slog.Logger
}

// requestedSlot computes which slot to ask for: a pending revisit
// request takes precedence, otherwise the first required slot, in
// declaration order, still unset. Empty means the form is complete.
func (f *formStep) requestedSlot(t *domain.Tracker) string {
	if v, ok := t.Slot(domain.RequestedSlot); ok {
		if name, ok := v.(string); ok && f.requires(name) && !t.SlotFilled(name) {
			return name
		}
	}
	for _, name := range f.form.RequiredSlots {
		if !t.SlotFilled(name) {
			return name
		}
	}
	return ""
}

func (f *formStep) requires(slot string) bool {
	for _, name := range f.form.RequiredSlots {
		if name == slot {
			return true
		}
	}
	return false
}

func (f *formStep) activate(context.Context, *domain.Tracker, *domain.Domain) ([]domain.Event, error) {
	return nil, nil
}

func (f *formStep) done(t *domain.Tracker, _ *domain.Domain) bool {
	return f.requestedSlot(t) == ""
}

// step runs one turn of slot filling: extract a candidate for the
// requested slot, validate it (remotely when the form declares a
// validator), and repeat within the same turn for as long as the
// validation round trips keep making progress. It finishes by asking
// for the next unfilled slot.
func (f *formStep) step(ctx context.Context, t *domain.Tracker, d *domain.Domain) ([]domain.Event, error) {
	var events []domain.Event
	emit := func(batch ...domain.Event) {
		events = append(events, batch...)
		t.Apply(batch...)
	}

	// Bounded by the slot count: each round must move the requested
	// slot forward or the filling phase ends.
	for round := 0; round <= len(f.form.RequiredSlots); round++ {
		slot := f.requestedSlot(t)
		if slot == "" {
			return events, nil
		}

		candidate, found := f.extract(slot, t, d)
		if !found {
			break
		}

		if f.form.Validate == "" {
			// No validator: the value is accepted unconditionally, and
			// only one slot fills per user turn.
			emit(domain.NewSlotSet(slot, candidate))
			break
		}

		accepted, err := f.validate(ctx, slot, candidate, t, d)
		if err != nil {
			return nil, err
		}
		emit(accepted...)

		if f.requestedSlot(t) == slot {
			// The validator neither filled nor redirected the slot;
			// stop so the same slot is re-requested next turn.
			break
		}
	}

	emit(f.prompt(t, d)...)
	return events, nil
}

// validate stages the candidate value on a tracker copy and delegates
// to the form's custom validation action. The remote response may
// confirm, override or clear the value, and may redirect the form to a
// different slot.
func (f *formStep) validate(ctx context.Context, slot string, candidate any, t *domain.Tracker, d *domain.Domain) ([]domain.Event, error) {
	if f.endpoint == nil {
		return nil, fmt.Errorf("%w: form %q declares validator %q but no endpoint is configured",
			domain.ErrServerUnavailable, f.name, f.form.Validate)
	}

	staged := t.Copy()
	staged.Apply(domain.NewSlotSet(slot, candidate))

	resp, err := f.endpoint.Execute(ctx, f.form.Validate, staged, d)
	if err != nil {
		var rej *domain.RejectionError
		if errors.As(err, &rej) {
			// Rejection wins for the value, but a requested-slot
			// redirect in the same response is still honored for the
			// next turn. Redirecting to a filled slot requires the
			// rejection to also clear it.
			rej.Events = salvageSlotEvents(rej.Events)
			f.logger.Debug("form validation rejected", "form", f.name, "slot", slot)
			return nil, rej
		}
		return nil, err
	}

	events := make([]domain.Event, 0, len(resp.Responses)+len(resp.Events))
	for _, r := range resp.Responses {
		events = append(events, domain.NewBotUttered(r.Text))
	}
	events = append(events, resp.Events...)
	return events, nil
}

// extract maps the latest user message onto the slot's declared type
// via the form's fill rules. Type mismatch is "no value", never an
// error.
func (f *formStep) extract(slot string, t *domain.Tracker, d *domain.Domain) (any, bool) {
	msg := t.LatestMessage
	if msg == nil {
		return nil, false
	}
	decl := d.Slots[slot]
	for _, mapping := range f.form.MappingsFor(slot) {
		if mapping.FromEntity != "" {
			if raw, ok := msg.EntityValue(mapping.FromEntity); ok {
				if value, ok := decl.Coerce(raw); ok {
					return value, true
				}
			}
		}
		if mapping.FromText {
			if value, ok := decl.Coerce(msg.Text); ok {
				return value, true
			}
		}
	}
	return nil, false
}

// prompt records which slot is being asked for and utters its ask
// template when one is declared (utter_ask_<form>_<slot> wins over
// utter_ask_<slot>).
func (f *formStep) prompt(t *domain.Tracker, d *domain.Domain) []domain.Event {
	slot := f.requestedSlot(t)
	if slot == "" {
		return nil
	}
	events := []domain.Event{domain.NewSlotSet(domain.RequestedSlot, slot)}
	for _, name := range []string{
		fmt.Sprintf("utter_ask_%s_%s", f.name, slot),
		fmt.Sprintf("utter_ask_%s", slot),
	} {
		if d.HasResponse(name) {
			events = append(events, domain.NewBotUttered(renderResponse(d.Responses[name][0], t)))
			break
		}
	}
	return events
}

// deactivate runs the form's submission logic and clears the
// requested-slot pointer.
func (f *formStep) deactivate(ctx context.Context, t *domain.Tracker, d *domain.Domain) ([]domain.Event, error) {
	var events []domain.Event
	if f.form.Submit != "" {
		if f.endpoint == nil {
			return nil, fmt.Errorf("%w: form %q declares submit action %q but no endpoint is configured",
				domain.ErrServerUnavailable, f.name, f.form.Submit)
		}
		resp, err := f.endpoint.Execute(ctx, f.form.Submit, t, d)
		if err != nil {
			return nil, err
		}
		for _, r := range resp.Responses {
			events = append(events, domain.NewBotUttered(r.Text))
		}
		events = append(events, resp.Events...)
	}
	if _, ok := t.Slot(domain.RequestedSlot); ok {
		events = append(events, domain.NewSlotSet(domain.RequestedSlot, nil))
	}
	return events, nil
}

// salvageSlotEvents filters a batch down to the mutations allowed to
// survive a rejection: requested-slot pointer updates and nil clears.
// No value-bearing slot set may slip past a rejected validation.
func salvageSlotEvents(events []domain.Event) []domain.Event {
	var out []domain.Event
	for _, evt := range events {
		set, ok := evt.(domain.SlotSet)
		if !ok {
			continue
		}
		if set.Name == domain.RequestedSlot || set.Value == nil {
			out = append(out, set)
		}
	}
	return out
}
