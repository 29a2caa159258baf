package runtime

import (
	"context"
	"errors"

	"github.com/espalier-ai/espalier/pkg/domain"
)

// loopStep is the per-loop behavior a concrete loop (e.g. a form)
// plugs into the generic driver. Steps receive a working copy of the
// tracker with this invocation's earlier events already folded in; they
// must express all effects as returned events.
type loopStep interface {
	// activate runs once when the loop becomes active.
	activate(ctx context.Context, t *domain.Tracker, d *domain.Domain) ([]domain.Event, error)
	// step runs the loop's per-turn work. It may return
	// *domain.RejectionError to signal it cannot proceed this turn.
	step(ctx context.Context, t *domain.Tracker, d *domain.Domain) ([]domain.Event, error)
	// done reports whether the loop's goal is satisfied.
	done(t *domain.Tracker, d *domain.Domain) bool
	// deactivate runs the loop's completion logic before the driver
	// emits LoopDeactivated.
	deactivate(ctx context.Context, t *domain.Tracker, d *domain.Domain) ([]domain.Event, error)
}

// loopAction drives a loopStep through the loop lifecycle. The check
// order on every invocation is fixed: interruption first, then
// activation, then the per-turn step. Skipping the interruption check
// would let a step mutate slots for a loop the user already abandoned.
type loopAction struct {
	name string
	step loopStep
}

func (l *loopAction) Name() string { return l.name }

func (l *loopAction) Run(ctx context.Context, t *domain.Tracker, d *domain.Domain) (*domain.Result, error) {
	// Hard reset on interruption, bypassing normal deactivation.
	if t.InterruptionRequested() {
		if t.ActiveLoopIs(l.name) {
			return &domain.Result{Events: []domain.Event{domain.NewLoopDeactivated(l.name)}}, nil
		}
		return &domain.Result{}, nil
	}

	// The driver simulates event application on a copy so the step sees
	// slots set earlier in this same invocation. The caller's tracker
	// stays untouched.
	working := t.Copy()
	var batch []domain.Event
	emit := func(events ...domain.Event) {
		batch = append(batch, events...)
		working.Apply(events...)
	}

	// Re-activating the active loop is a no-op continuation: partial
	// progress from prior turns must survive.
	if !working.ActiveLoopIs(l.name) {
		emit(domain.NewLoopActivated(l.name))
		events, err := l.step.activate(ctx, working, d)
		if err != nil {
			return nil, l.reject(err, batch)
		}
		emit(events...)
	}

	if !l.step.done(working, d) {
		events, err := l.step.step(ctx, working, d)
		if err != nil {
			return nil, l.reject(err, batch)
		}
		emit(events...)
	}

	if l.step.done(working, d) {
		events, err := l.step.deactivate(ctx, working, d)
		if err != nil {
			return nil, l.reject(err, batch)
		}
		emit(events...)
		emit(domain.NewLoopDeactivated(l.name))
	}

	return &domain.Result{Events: batch}, nil
}

// reject shapes a step failure for the caller. A rejection keeps the
// loop active: the events to apply are this invocation's bookkeeping so
// far, any revisit requests the step salvaged, and the rejection
// marker. Every other error propagates as-is, with zero events.
func (l *loopAction) reject(err error, batch []domain.Event) error {
	var rej *domain.RejectionError
	if !errors.As(err, &rej) {
		return err
	}
	events := append(batch, rej.Events...)
	events = append(events, domain.NewActionRejected(l.name, rej.Message))
	rej.ActionName = l.name
	rej.Events = events
	return rej
}
