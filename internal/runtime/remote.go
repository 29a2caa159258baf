package runtime

import (
	"context"
	"fmt"

	"github.com/espalier-ai/espalier/pkg/domain"
	"github.com/espalier-ai/espalier/pkg/ports"
)

// remoteAction executes a declared custom action on the action server.
// Response directives become bot utterances, spoken before the
// server's own events are applied.
type remoteAction struct {
	name     string
	endpoint ports.ActionEndpoint
}

func (a remoteAction) Name() string { return a.name }

func (a remoteAction) Run(ctx context.Context, t *domain.Tracker, d *domain.Domain) (*domain.Result, error) {
	if a.endpoint == nil {
		return nil, fmt.Errorf("%w: no action endpoint configured for custom action %q", domain.ErrServerUnavailable, a.name)
	}
	resp, err := a.endpoint.Execute(ctx, a.name, t, d)
	if err != nil {
		return nil, err
	}
	events := make([]domain.Event, 0, len(resp.Responses)+len(resp.Events))
	for _, r := range resp.Responses {
		events = append(events, domain.NewBotUttered(r.Text))
	}
	events = append(events, resp.Events...)
	return &domain.Result{Events: events}, nil
}
