package rest

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/espalier-ai/espalier/pkg/domain"
)

func testDomain(t *testing.T) *domain.Domain {
	t.Helper()
	d, err := domain.Load([]byte(`
name: restaurant_bot
actions:
  - action_check_restaurants
slots:
  cuisine:
    type: text
`))
	require.NoError(t, err)
	return d
}

func newTracker(d *domain.Domain) *domain.Tracker {
	tracker := domain.NewTracker("alice", d)
	tracker.Apply(domain.NewUserUttered(domain.Message{Text: "hi"}))
	return tracker
}

func TestExecuteSuccess(t *testing.T) {
	d := testDomain(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "Bearer sesame", r.Header.Get("Authorization"))

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "action_check_restaurants", req["next_action"])
		assert.Equal(t, "alice", req["sender_id"])
		assert.Equal(t, "restaurant_bot", req["domain"])
		assert.Contains(t, req, "tracker")

		json.NewEncoder(w).Encode(map[string]any{
			"events": []map[string]any{
				{"event": "slot", "name": "cuisine", "value": "italian"},
				{"event": "bot", "text": "Checking..."},
			},
			"responses": []map[string]any{{"text": "Found 3 places"}},
		})
	}))
	defer srv.Close()

	client := New(Config{URL: srv.URL, Token: "sesame"})
	resp, err := client.Execute(context.Background(), "action_check_restaurants", newTracker(d), d)
	require.NoError(t, err)

	require.Len(t, resp.Events, 2)
	set := resp.Events[0].(domain.SlotSet)
	assert.Equal(t, "cuisine", set.Name)
	require.Len(t, resp.Responses, 1)
	assert.Equal(t, "Found 3 places", resp.Responses[0].Text)
}

// Events referencing undeclared slots or actions must never reach the
// tracker.
func TestExecuteRejectsUndeclaredReferences(t *testing.T) {
	d := testDomain(t)

	cases := map[string]map[string]any{
		"undeclared slot":   {"event": "slot", "name": "undeclared_slot", "value": "x"},
		"undeclared action": {"event": "action", "name": "action_nowhere"},
		"undeclared loop":   {"event": "loop_activated", "name": "ghost_form"},
	}

	for name, evt := range cases {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				json.NewEncoder(w).Encode(map[string]any{"events": []map[string]any{evt}})
			}))
			defer srv.Close()

			client := New(Config{URL: srv.URL})
			resp, err := client.Execute(context.Background(), "action_check_restaurants", newTracker(d), d)
			assert.ErrorIs(t, err, domain.ErrInvalidResponse)
			assert.Nil(t, resp, "no events may be returned on validation failure")
		})
	}
}

func TestExecuteMalformedBody(t *testing.T) {
	d := testDomain(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, "{not json")
	}))
	defer srv.Close()

	client := New(Config{URL: srv.URL})
	_, err := client.Execute(context.Background(), "action_check_restaurants", newTracker(d), d)
	assert.ErrorIs(t, err, domain.ErrInvalidResponse)
}

// A 400 carrying the rejection marker is a business-rule refusal, not a
// transport error.
func TestExecuteRejection(t *testing.T) {
	d := testDomain(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{
			"action_name": "action_check_restaurants",
			"error":       "fully booked",
		})
	}))
	defer srv.Close()

	client := New(Config{URL: srv.URL})
	_, err := client.Execute(context.Background(), "action_check_restaurants", newTracker(d), d)

	var rej *domain.RejectionError
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, "fully booked", rej.Message)
}

// Rejection-body events face the same declaration check as success
// responses: undeclared references are dropped before they can reach
// the caller's tracker.
func TestExecuteRejectionDropsUndeclaredEvents(t *testing.T) {
	d := testDomain(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{
			"action_name": "action_check_restaurants",
			"error":       "fully booked",
			"events": []map[string]any{
				{"event": "slot", "name": "undeclared_slot", "value": "x"},
				{"event": "slot", "name": "requested_slot", "value": "cuisine"},
			},
		})
	}))
	defer srv.Close()

	client := New(Config{URL: srv.URL})
	_, err := client.Execute(context.Background(), "action_check_restaurants", newTracker(d), d)

	var rej *domain.RejectionError
	require.ErrorAs(t, err, &rej)
	require.Len(t, rej.Events, 1)
	set := rej.Events[0].(domain.SlotSet)
	assert.Equal(t, domain.RequestedSlot, set.Name)
	assert.Equal(t, "cuisine", set.Value)
}

func TestExecuteServerError(t *testing.T) {
	d := testDomain(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := New(Config{URL: srv.URL})
	_, err := client.Execute(context.Background(), "action_check_restaurants", newTracker(d), d)

	var srvErr *domain.ServerError
	require.ErrorAs(t, err, &srvErr)
	assert.Equal(t, http.StatusInternalServerError, srvErr.Status)
	assert.Contains(t, srvErr.Message, "boom")
}

// A timed-out call maps to ErrServerTimeout and yields zero events.
func TestExecuteTimeout(t *testing.T) {
	d := testDomain(t)
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	client := New(Config{URL: srv.URL, Timeout: 50 * time.Millisecond})
	resp, err := client.Execute(context.Background(), "action_check_restaurants", newTracker(d), d)
	assert.ErrorIs(t, err, domain.ErrServerTimeout)
	assert.Nil(t, resp)
}

func TestExecuteUnavailable(t *testing.T) {
	d := testDomain(t)
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // connection refused from here on

	client := New(Config{URL: srv.URL})
	_, err := client.Execute(context.Background(), "action_check_restaurants", newTracker(d), d)
	assert.ErrorIs(t, err, domain.ErrServerUnavailable)
}

// Bodies above the threshold travel gzipped; semantics are unchanged.
func TestExecuteCompressesLargeBodies(t *testing.T) {
	d := testDomain(t)

	var encoding string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		encoding = r.Header.Get("Content-Encoding")
		body := r.Body
		if encoding == "gzip" {
			zr, err := gzip.NewReader(r.Body)
			require.NoError(t, err)
			body = zr
		}
		var req map[string]any
		require.NoError(t, json.NewDecoder(body).Decode(&req))
		assert.Equal(t, "action_check_restaurants", req["next_action"])
		json.NewEncoder(w).Encode(map[string]any{"events": []map[string]any{}})
	}))
	defer srv.Close()

	client := New(Config{URL: srv.URL, CompressThreshold: 16})
	_, err := client.Execute(context.Background(), "action_check_restaurants", newTracker(d), d)
	require.NoError(t, err)
	assert.Equal(t, "gzip", encoding)

	// Disabled compression sends the body verbatim.
	client = New(Config{URL: srv.URL, CompressThreshold: -1})
	_, err = client.Execute(context.Background(), "action_check_restaurants", newTracker(d), d)
	require.NoError(t, err)
	assert.Empty(t, encoding)
}
