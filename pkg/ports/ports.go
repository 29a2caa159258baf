package ports

import (
	"context"

	"github.com/espalier-ai/espalier/pkg/domain"
)

// Action is a named, executable unit. Run observes the tracker and
// domain as read-only snapshots and communicates every effect through
// the returned events; it must be side-effect-free with respect to
// engine state.
//
// A Run that cannot complete may return *domain.RejectionError, a
// recoverable refusal the caller can react to by picking another
// action. Any other error means no events may be applied.
type Action interface {
	Name() string
	Run(ctx context.Context, tracker *domain.Tracker, d *domain.Domain) (*domain.Result, error)
}

// ActionEndpoint executes business logic hosted outside the engine's
// process. Implementations map transport failures onto the error kinds
// in pkg/domain and validate the response against the domain before
// returning it.
type ActionEndpoint interface {
	Execute(ctx context.Context, action string, tracker *domain.Tracker, d *domain.Domain) (*domain.RemoteResponse, error)
}

// TrackerStore persists conversation trackers between turns. The engine
// itself is stateless; stores exist for hosts that own the conversation
// lifecycle (e.g. the HTTP surface).
type TrackerStore interface {
	// Save persists the tracker for a sender.
	Save(ctx context.Context, senderID string, tracker *domain.Tracker) error

	// Load retrieves the tracker for a sender.
	// Returns domain.ErrSessionNotFound when none exists.
	Load(ctx context.Context, senderID string) (*domain.Tracker, error)

	// Delete removes the tracker for a sender.
	Delete(ctx context.Context, senderID string) error
}
