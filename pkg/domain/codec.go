package domain

import (
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"
)

// eventKey is the wire field carrying the variant discriminator.
const eventKey = "event"

// DecodeEvent rebuilds a typed event from its wire form, a generic map
// with an "event" discriminator. Unknown discriminators and malformed
// payloads are errors; callers decide whether that poisons the whole
// batch (the action-server client treats it as fatal).
func DecodeEvent(raw map[string]any) (Event, error) {
	kind, _ := raw[eventKey].(string)
	if kind == "" {
		return nil, fmt.Errorf("event payload missing %q field", eventKey)
	}

	var target Event
	switch EventType(kind) {
	case EventUserUttered:
		target = &UserUttered{}
	case EventBotUttered:
		target = &BotUttered{}
	case EventSlotSet:
		target = &SlotSet{}
	case EventActionExecuted:
		target = &ActionExecuted{}
	case EventActionRejected:
		target = &ActionRejected{}
	case EventLoopActivated:
		target = &LoopActivated{}
	case EventLoopDeactivated:
		target = &LoopDeactivated{}
	case EventRestarted:
		target = &Restarted{}
	case EventSessionStarted:
		target = &SessionStarted{}
	default:
		return nil, fmt.Errorf("unknown event type %q", kind)
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.StringToTimeHookFunc(time.RFC3339Nano),
		Result:     target,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(raw); err != nil {
		return nil, fmt.Errorf("decode %s event: %w", kind, err)
	}

	// Deref to the value form so equality and type switches behave the
	// same for decoded and freshly constructed events.
	switch e := target.(type) {
	case *UserUttered:
		return *e, nil
	case *BotUttered:
		return *e, nil
	case *SlotSet:
		return *e, nil
	case *ActionExecuted:
		return *e, nil
	case *ActionRejected:
		return *e, nil
	case *LoopActivated:
		return *e, nil
	case *LoopDeactivated:
		return *e, nil
	case *Restarted:
		return *e, nil
	case *SessionStarted:
		return *e, nil
	}
	return target, nil
}

// DecodeEvents decodes an ordered batch, preserving order. The first
// malformed entry fails the whole batch.
func DecodeEvents(raws []map[string]any) ([]Event, error) {
	events := make([]Event, 0, len(raws))
	for i, raw := range raws {
		evt, err := DecodeEvent(raw)
		if err != nil {
			return nil, fmt.Errorf("event %d: %w", i, err)
		}
		events = append(events, evt)
	}
	return events, nil
}

// EncodeEvent flattens a typed event into its wire map form.
func EncodeEvent(evt Event) (map[string]any, error) {
	out := map[string]any{}
	if err := mapstructure.Decode(evt, &out); err != nil {
		return nil, fmt.Errorf("encode %s event: %w", evt.Type(), err)
	}
	out[eventKey] = string(evt.Type())
	if ts, ok := out["timestamp"].(time.Time); ok {
		out["timestamp"] = ts.Format(time.RFC3339Nano)
	}
	return out, nil
}

// EncodeEvents flattens an ordered batch, preserving order.
func EncodeEvents(events []Event) ([]map[string]any, error) {
	raws := make([]map[string]any, 0, len(events))
	for _, evt := range events {
		raw, err := EncodeEvent(evt)
		if err != nil {
			return nil, err
		}
		raws = append(raws, raw)
	}
	return raws, nil
}
