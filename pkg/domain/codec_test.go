package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/espalier-ai/espalier/pkg/domain"
)

func TestDecodeEvent(t *testing.T) {
	evt, err := domain.DecodeEvent(map[string]any{
		"event": "slot",
		"name":  "cuisine",
		"value": "italian",
	})
	require.NoError(t, err)

	set, ok := evt.(domain.SlotSet)
	require.True(t, ok, "expected a SlotSet, got %T", evt)
	assert.Equal(t, "cuisine", set.Name)
	assert.Equal(t, "italian", set.Value)
}

func TestDecodeEventUserWithEntities(t *testing.T) {
	evt, err := domain.DecodeEvent(map[string]any{
		"event":  "user",
		"text":   "book me italian",
		"intent": "request_restaurant",
		"entities": []map[string]any{
			{"entity": "cuisine", "value": "italian"},
		},
		"timestamp": "2026-08-30T12:00:00Z",
	})
	require.NoError(t, err)

	user, ok := evt.(domain.UserUttered)
	require.True(t, ok)
	assert.Equal(t, "request_restaurant", user.Intent)
	require.Len(t, user.Entities, 1)
	assert.Equal(t, "cuisine", user.Entities[0].Name)
	assert.False(t, user.Timestamp().IsZero())
}

func TestDecodeEventErrors(t *testing.T) {
	_, err := domain.DecodeEvent(map[string]any{"name": "x"})
	assert.Error(t, err, "missing discriminator")

	_, err = domain.DecodeEvent(map[string]any{"event": "wormhole"})
	assert.Error(t, err, "unknown discriminator")
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	batch := []domain.Event{
		domain.NewLoopActivated("book_restaurant"),
		domain.NewSlotSet("cuisine", "italian"),
		domain.NewBotUttered("When would you like to go?"),
		domain.NewActionRejected("book_restaurant", "validation failed"),
	}

	raws, err := domain.EncodeEvents(batch)
	require.NoError(t, err)
	require.Len(t, raws, len(batch))
	assert.Equal(t, "loop_activated", raws[0]["event"])

	decoded, err := domain.DecodeEvents(raws)
	require.NoError(t, err)
	require.Len(t, decoded, len(batch))
	for i := range batch {
		assert.Equal(t, batch[i].Type(), decoded[i].Type(), "order must be preserved")
	}

	rejected, ok := decoded[3].(domain.ActionRejected)
	require.True(t, ok)
	assert.Equal(t, "validation failed", rejected.Reason)
}
