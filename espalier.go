package espalier

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/espalier-ai/espalier/internal/logging"
	"github.com/espalier-ai/espalier/internal/metrics"
	"github.com/espalier-ai/espalier/internal/runtime"
	"github.com/espalier-ai/espalier/pkg/adapters/rest"
	"github.com/espalier-ai/espalier/pkg/domain"
	"github.com/espalier-ai/espalier/pkg/ports"
)

// Engine resolves action identifiers and executes them against a
// dialogue tracker. It holds no conversation state of its own: every
// effect is returned as events for the caller to apply, which keeps a
// single Engine safe to share across concurrent conversations.
type Engine struct {
	endpoint ports.ActionEndpoint
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// Option configures an Engine.
type Option func(*Engine)

// WithEndpoint injects a custom action endpoint implementation.
func WithEndpoint(endpoint ports.ActionEndpoint) Option {
	return func(e *Engine) {
		e.endpoint = endpoint
	}
}

// WithActionServer points the engine at a remote action server.
func WithActionServer(cfg rest.Config) Option {
	return func(e *Engine) {
		e.endpoint = rest.New(cfg)
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithMetrics registers Prometheus collectors with reg and enables
// instrumentation of action runs and action-server calls.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(e *Engine) {
		e.metrics = metrics.New(reg)
	}
}

// New creates an Engine.
func New(opts ...Option) *Engine {
	e := &Engine{logger: logging.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	if e.metrics != nil && e.endpoint != nil {
		e.endpoint = &instrumentedEndpoint{next: e.endpoint, metrics: e.metrics}
	}
	return e
}

// Resolve maps an action identifier (name or numeric index) to its
// executable action, or fails with domain.ErrUnknownAction.
func (e *Engine) Resolve(identifier string, d *domain.Domain) (ports.Action, error) {
	return runtime.Resolve(identifier, d, runtime.Deps{Endpoint: e.endpoint, Logger: e.logger})
}

// RunAction resolves and executes one action. The returned events are
// the action's complete effect for this turn; the caller applies them
// to its tracker. On *domain.RejectionError the caller may apply the
// error's Events and pick a different action; on any other error zero
// events must be applied.
func (e *Engine) RunAction(ctx context.Context, identifier string, tracker *domain.Tracker, d *domain.Domain) (*domain.Result, error) {
	action, err := e.Resolve(identifier, d)
	if err != nil {
		e.metrics.ObserveAction(identifier, "unknown")
		return nil, err
	}

	result, err := action.Run(ctx, tracker, d)
	if err != nil {
		var rej *domain.RejectionError
		if errors.As(err, &rej) {
			e.metrics.ObserveAction(action.Name(), "rejected")
			e.logger.Info("action rejected execution", "action", action.Name(), "reason", rej.Message)
		} else {
			e.metrics.ObserveAction(action.Name(), "error")
			e.logger.Error("action failed", "action", action.Name(), "error", err)
		}
		return nil, err
	}

	e.metrics.ObserveAction(action.Name(), "success")
	e.logger.Debug("action executed", "action", action.Name(), "events", len(result.Events))
	return result, nil
}

// instrumentedEndpoint records latency and outcome of action-server
// round trips.
type instrumentedEndpoint struct {
	next    ports.ActionEndpoint
	metrics *metrics.Metrics
}

func (i *instrumentedEndpoint) Execute(ctx context.Context, action string, tracker *domain.Tracker, d *domain.Domain) (*domain.RemoteResponse, error) {
	start := time.Now()
	resp, err := i.next.Execute(ctx, action, tracker, d)
	i.metrics.ObserveRemote(remoteOutcome(err), time.Since(start))
	return resp, err
}

func remoteOutcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, domain.ErrServerTimeout):
		return "timeout"
	case errors.Is(err, domain.ErrServerUnavailable):
		return "unavailable"
	case errors.Is(err, domain.ErrInvalidResponse):
		return "invalid_response"
	default:
		var rej *domain.RejectionError
		if errors.As(err, &rej) {
			return "rejected"
		}
		return "error"
	}
}
