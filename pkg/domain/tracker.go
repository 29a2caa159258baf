package domain

import (
	"encoding/json"
	"fmt"
)

// LoopState is the transient sub-state of an active loop. It exists
// only between a LoopActivated and the matching LoopDeactivated.
type LoopState struct {
	Name     string `json:"name"`
	Rejected bool   `json:"rejected,omitempty"`
}

// Tracker is the conversation state: slot values, the active loop, the
// latest user message and the ordered event log. Actions observe it as
// a read-only snapshot; the only mutation entrypoint is Apply, and the
// engine never calls Apply itself — that is the caller's job.
type Tracker struct {
	SenderID      string
	Slots         map[string]any
	ActiveLoop    *LoopState
	LatestMessage *Message
	Events        []Event
}

// NewTracker creates a fresh tracker for a sender, seeding slots with
// the domain's declared initial values.
func NewTracker(senderID string, d *Domain) *Tracker {
	t := &Tracker{SenderID: senderID, Slots: map[string]any{}}
	if d != nil {
		for name, slot := range d.Slots {
			if slot.InitialValue != nil {
				t.Slots[name] = slot.InitialValue
			}
		}
	}
	return t
}

// Apply folds events into the tracker state, in order. It is the
// single mutation entrypoint; everything else on Tracker is read-only.
func (t *Tracker) Apply(events ...Event) {
	for _, evt := range events {
		t.Events = append(t.Events, evt)
		switch e := evt.(type) {
		case UserUttered:
			msg := Message{Text: e.Text, Intent: e.Intent, Entities: e.Entities}
			t.LatestMessage = &msg
		case SlotSet:
			if t.Slots == nil {
				t.Slots = map[string]any{}
			}
			if e.Value == nil {
				delete(t.Slots, e.Name)
			} else {
				t.Slots[e.Name] = e.Value
			}
		case LoopActivated:
			t.ActiveLoop = &LoopState{Name: e.Name}
		case LoopDeactivated:
			t.ActiveLoop = nil
		case ActionRejected:
			if t.ActiveLoop != nil {
				t.ActiveLoop.Rejected = true
			}
		case Restarted:
			t.Slots = map[string]any{}
			t.ActiveLoop = nil
			t.LatestMessage = nil
		}
	}
}

// Slot returns a slot's current value. The second return is false when
// the slot holds no value.
func (t *Tracker) Slot(name string) (any, bool) {
	v, ok := t.Slots[name]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// SlotFilled reports whether the slot currently holds a value.
func (t *Tracker) SlotFilled(name string) bool {
	_, ok := t.Slot(name)
	return ok
}

// ActiveLoopIs reports whether the named loop is the active one.
func (t *Tracker) ActiveLoopIs(name string) bool {
	return t.ActiveLoop != nil && t.ActiveLoop.Name == name
}

// InterruptionRequested reports whether the latest user message carries
// the reserved restart intent. Loops must honor this before any of
// their own logic runs.
func (t *Tracker) InterruptionRequested() bool {
	return t.LatestMessage != nil && t.LatestMessage.Intent == IntentRestart
}

// Copy returns an independent snapshot. The engine works on copies when
// it needs to simulate event application mid-turn; the caller's tracker
// is never touched.
func (t *Tracker) Copy() *Tracker {
	clone := &Tracker{
		SenderID: t.SenderID,
		Slots:    make(map[string]any, len(t.Slots)),
		Events:   append([]Event(nil), t.Events...),
	}
	for k, v := range t.Slots {
		clone.Slots[k] = v
	}
	if t.ActiveLoop != nil {
		loop := *t.ActiveLoop
		clone.ActiveLoop = &loop
	}
	if t.LatestMessage != nil {
		msg := *t.LatestMessage
		clone.LatestMessage = &msg
	}
	return clone
}

// wireTracker is the serialized form shared by persistence and the
// action-server request body.
type wireTracker struct {
	SenderID      string           `json:"sender_id"`
	Slots         map[string]any   `json:"slots"`
	ActiveLoop    *LoopState       `json:"active_loop,omitempty"`
	LatestMessage *Message         `json:"latest_message,omitempty"`
	Events        []map[string]any `json:"events"`
}

// MarshalJSON serializes the tracker, encoding the event log in its
// tagged wire form.
func (t *Tracker) MarshalJSON() ([]byte, error) {
	raws, err := EncodeEvents(t.Events)
	if err != nil {
		return nil, err
	}
	return json.Marshal(wireTracker{
		SenderID:      t.SenderID,
		Slots:         t.Slots,
		ActiveLoop:    t.ActiveLoop,
		LatestMessage: t.LatestMessage,
		Events:        raws,
	})
}

// UnmarshalJSON restores a tracker serialized by MarshalJSON.
func (t *Tracker) UnmarshalJSON(data []byte) error {
	var w wireTracker
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("decode tracker: %w", err)
	}
	events, err := DecodeEvents(w.Events)
	if err != nil {
		return fmt.Errorf("decode tracker events: %w", err)
	}
	t.SenderID = w.SenderID
	t.Slots = w.Slots
	if t.Slots == nil {
		t.Slots = map[string]any{}
	}
	t.ActiveLoop = w.ActiveLoop
	t.LatestMessage = w.LatestMessage
	t.Events = events
	return nil
}
