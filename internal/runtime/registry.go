package runtime

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/espalier-ai/espalier/internal/logging"
	"github.com/espalier-ai/espalier/pkg/domain"
	"github.com/espalier-ai/espalier/pkg/ports"
)

// Deps carries the collaborators actions may need at run time.
type Deps struct {
	// Endpoint reaches the remote action server. May be nil when the
	// domain declares no custom actions.
	Endpoint ports.ActionEndpoint
	Logger   *slog.Logger
}

func (d Deps) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return logging.NewNop()
}

// Resolve maps an action identifier (a name, or a numeric index into
// the domain's deterministic action ordering) to exactly one executable
// action. Resolution order: built-ins, forms, response templates, then
// declared custom actions (served remotely). Anything else fails with
// domain.ErrUnknownAction, which is fatal to the calling turn.
func Resolve(identifier string, d *domain.Domain, deps Deps) (ports.Action, error) {
	if identifier == "" {
		return nil, fmt.Errorf("%w: empty identifier", domain.ErrUnknownAction)
	}

	name := identifier
	if idx, err := strconv.Atoi(identifier); err == nil {
		names := d.ActionNames()
		if idx < 0 || idx >= len(names) {
			return nil, fmt.Errorf("%w: index %d out of range (%d actions)", domain.ErrUnknownAction, idx, len(names))
		}
		name = names[idx]
	}

	switch name {
	case domain.ActionListen:
		return listenAction{}, nil
	case domain.ActionRestart:
		return restartAction{}, nil
	case domain.ActionSessionStart:
		return sessionStartAction{}, nil
	case domain.ActionDefaultFallback:
		return fallbackAction{logger: deps.logger()}, nil
	case domain.ActionExtractSlots:
		return extractSlotsAction{}, nil
	}

	if d.IsForm(name) {
		return newFormAction(name, d.Forms[name], deps), nil
	}
	if d.HasResponse(name) {
		return responseAction{name: name, logger: deps.logger()}, nil
	}
	for _, declared := range d.Actions {
		if declared == name {
			return remoteAction{name: name, endpoint: deps.Endpoint}, nil
		}
	}

	return nil, fmt.Errorf("%w: %q", domain.ErrUnknownAction, name)
}
