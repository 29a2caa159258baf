package runtime

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/espalier-ai/espalier/pkg/domain"
)

// countingStep completes after a fixed number of per-turn steps.
type countingStep struct {
	need     int
	steps    int
	rejectOn int
}

func (s *countingStep) activate(context.Context, *domain.Tracker, *domain.Domain) ([]domain.Event, error) {
	return []domain.Event{domain.NewBotUttered("starting")}, nil
}

func (s *countingStep) step(context.Context, *domain.Tracker, *domain.Domain) ([]domain.Event, error) {
	s.steps++
	if s.rejectOn != 0 && s.steps == s.rejectOn {
		return nil, &domain.RejectionError{Message: "cannot proceed"}
	}
	return []domain.Event{domain.NewSlotSet("progress", s.steps)}, nil
}

func (s *countingStep) done(*domain.Tracker, *domain.Domain) bool {
	return s.steps >= s.need
}

func (s *countingStep) deactivate(context.Context, *domain.Tracker, *domain.Domain) ([]domain.Event, error) {
	return []domain.Event{domain.NewBotUttered("finished")}, nil
}

func TestLoopLifecycle(t *testing.T) {
	step := &countingStep{need: 2}
	loop := &loopAction{name: "demo_loop", step: step}
	d := &domain.Domain{}

	// Turn 1: activate + first step, not done yet.
	tracker := domain.NewTracker("a", d)
	result, err := loop.Run(context.Background(), tracker, d)
	if err != nil {
		t.Fatalf("turn 1: %v", err)
	}
	got := eventTypes(result.Events)
	want := []domain.EventType{domain.EventLoopActivated, domain.EventBotUttered, domain.EventSlotSet}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("turn 1 events = %v, want %v", got, want)
	}
	tracker.Apply(result.Events...)

	// Turn 2: second step satisfies the goal; loop deactivates.
	result, err = loop.Run(context.Background(), tracker, d)
	if err != nil {
		t.Fatalf("turn 2: %v", err)
	}
	got = eventTypes(result.Events)
	want = []domain.EventType{domain.EventSlotSet, domain.EventBotUttered, domain.EventLoopDeactivated}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("turn 2 events = %v, want %v", got, want)
	}
}

func TestLoopRejectionKeepsLoopActive(t *testing.T) {
	loop := &loopAction{name: "demo_loop", step: &countingStep{need: 3, rejectOn: 1}}
	d := &domain.Domain{}

	tracker := domain.NewTracker("a", d)
	_, err := loop.Run(context.Background(), tracker, d)

	var rej *domain.RejectionError
	if !errors.As(err, &rej) {
		t.Fatalf("got %v, want RejectionError", err)
	}
	if rej.ActionName != "demo_loop" {
		t.Errorf("rejection action = %q", rej.ActionName)
	}
	for _, evt := range rej.Events {
		if evt.Type() == domain.EventLoopDeactivated {
			t.Fatal("a rejected loop must stay active")
		}
	}
	// Applying the rejection events leaves the loop active and marked.
	tracker.Apply(rej.Events...)
	if !tracker.ActiveLoopIs("demo_loop") {
		t.Fatal("loop should still be active after rejection")
	}
	if !tracker.ActiveLoop.Rejected {
		t.Error("loop state should carry the rejection flag")
	}
}
