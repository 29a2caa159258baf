package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// SlotType names the value shape a slot accepts.
type SlotType string

const (
	SlotText        SlotType = "text"
	SlotBool        SlotType = "bool"
	SlotFloat       SlotType = "float"
	SlotCategorical SlotType = "categorical"
	SlotList        SlotType = "list"
)

// Slot declares a named, typed piece of conversation state.
type Slot struct {
	Type SlotType `yaml:"type"`
	// Values restricts a categorical slot to a fixed vocabulary.
	Values []string `yaml:"values,omitempty"`
	// InitialValue seeds the slot when a tracker is created or restarted.
	InitialValue any `yaml:"initial_value,omitempty"`
}

// RequestedSlot is the reserved slot a form uses to track (and a remote
// validator to override) which slot is being asked for next.
const RequestedSlot = "requested_slot"

// Coerce maps a raw extracted value onto the slot's declared type.
// The boolean reports whether the value conforms; a false result is not
// an error condition, it means "nothing usable was extracted".
func (s Slot) Coerce(value any) (any, bool) {
	if value == nil {
		return nil, false
	}
	switch s.Type {
	case SlotText, "":
		str, ok := asString(value)
		if !ok || str == "" {
			return nil, false
		}
		return str, true
	case SlotBool:
		return coerceBool(value)
	case SlotFloat:
		return coerceFloat(value)
	case SlotCategorical:
		str, ok := asString(value)
		if !ok {
			return nil, false
		}
		for _, allowed := range s.Values {
			if strings.EqualFold(str, allowed) {
				return allowed, true
			}
		}
		return nil, false
	case SlotList:
		switch v := value.(type) {
		case []any:
			return v, true
		case []string:
			out := make([]any, len(v))
			for i, s := range v {
				out[i] = s
			}
			return out, true
		default:
			return []any{value}, true
		}
	}
	return nil, false
}

func asString(value any) (string, bool) {
	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v), true
	case fmt.Stringer:
		return strings.TrimSpace(v.String()), true
	default:
		return "", false
	}
}

func coerceBool(value any) (any, bool) {
	switch v := value.(type) {
	case bool:
		return v, true
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "yes", "y":
			return true, true
		case "false", "no", "n":
			return false, true
		}
	}
	return nil, false
}

func coerceFloat(value any) (any, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil, false
		}
		return f, true
	}
	return nil, false
}
