package espalier_test

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/espalier-ai/espalier"
	"github.com/espalier-ai/espalier/pkg/domain"
)

type scriptedEndpoint struct {
	respond func(action string, tracker *domain.Tracker) (*domain.RemoteResponse, error)
}

func (s scriptedEndpoint) Execute(_ context.Context, action string, tracker *domain.Tracker, _ *domain.Domain) (*domain.RemoteResponse, error) {
	return s.respond(action, tracker)
}

func loadDomain(t *testing.T) *domain.Domain {
	t.Helper()
	d, err := domain.Load([]byte(`
name: restaurant_bot
actions:
  - action_check_restaurants
slots:
  cuisine:
    type: text
  time:
    type: text
forms:
  book_restaurant:
    required_slots: [cuisine, time]
responses:
  utter_greet:
    - text: "Hello!"
`))
	require.NoError(t, err)
	return d
}

func TestRunActionUnknown(t *testing.T) {
	engine := espalier.New()
	_, err := engine.RunAction(context.Background(), "does_not_exist", domain.NewTracker("a", nil), loadDomain(t))
	assert.ErrorIs(t, err, domain.ErrUnknownAction)
}

func TestRunActionResponse(t *testing.T) {
	engine := espalier.New()
	d := loadDomain(t)

	result, err := engine.RunAction(context.Background(), "utter_greet", domain.NewTracker("a", d), d)
	require.NoError(t, err)
	require.Len(t, result.Events, 1)
	assert.Equal(t, domain.EventBotUttered, result.Events[0].Type())
}

// Identical context, domain and remote responses produce an identical
// ordered event sequence.
func TestRunActionDeterminism(t *testing.T) {
	fixed := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	restore := domain.Clock
	domain.Clock = func() time.Time { return fixed }
	defer func() { domain.Clock = restore }()

	d := loadDomain(t)
	endpoint := scriptedEndpoint{respond: func(string, *domain.Tracker) (*domain.RemoteResponse, error) {
		return &domain.RemoteResponse{Events: []domain.Event{domain.NewSlotSet("cuisine", "italian")}}, nil
	}}

	run := func() []domain.Event {
		engine := espalier.New(espalier.WithEndpoint(endpoint))
		tracker := domain.NewTracker("a", d)
		tracker.Apply(domain.NewUserUttered(domain.Message{Text: "hi"}))
		result, err := engine.RunAction(context.Background(), "action_check_restaurants", tracker, d)
		require.NoError(t, err)
		return result.Events
	}

	first := run()
	second := run()
	assert.Equal(t, first, second)
}

func TestRunActionWithMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	engine := espalier.New(
		espalier.WithMetrics(reg),
		espalier.WithEndpoint(scriptedEndpoint{respond: func(string, *domain.Tracker) (*domain.RemoteResponse, error) {
			return &domain.RemoteResponse{}, nil
		}}),
	)
	d := loadDomain(t)

	_, err := engine.RunAction(context.Background(), "action_check_restaurants", domain.NewTracker("a", d), d)
	require.NoError(t, err)

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "espalier_actions_executed_total")
	assert.Contains(t, names, "espalier_action_server_call_seconds")
}
