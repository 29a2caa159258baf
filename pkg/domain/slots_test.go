package domain

import "testing"

func TestSlotCoerce(t *testing.T) {
	categorical := Slot{Type: SlotCategorical, Values: []string{"italian", "thai"}}

	tests := []struct {
		name  string
		slot  Slot
		in    any
		want  any
		valid bool
	}{
		{"text passthrough", Slot{Type: SlotText}, "Rome", "Rome", true},
		{"text trims", Slot{Type: SlotText}, "  Rome ", "Rome", true},
		{"text rejects non-string", Slot{Type: SlotText}, 42, nil, false},
		{"untyped defaults to text", Slot{}, "ok", "ok", true},
		{"bool literal", Slot{Type: SlotBool}, true, true, true},
		{"bool yes", Slot{Type: SlotBool}, "yes", true, true},
		{"bool no", Slot{Type: SlotBool}, "No", false, true},
		{"bool mismatch", Slot{Type: SlotBool}, "tomorrow", nil, false},
		{"float from json number", Slot{Type: SlotFloat}, float64(4), float64(4), true},
		{"float from string", Slot{Type: SlotFloat}, "2.5", 2.5, true},
		{"float mismatch", Slot{Type: SlotFloat}, "a few", nil, false},
		{"categorical case-insensitive", categorical, "Italian", "italian", true},
		{"categorical outside vocabulary", categorical, "french", nil, false},
		{"nil never coerces", Slot{Type: SlotText}, nil, nil, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := tc.slot.Coerce(tc.in)
			if ok != tc.valid {
				t.Fatalf("Coerce(%v) validity = %v, want %v", tc.in, ok, tc.valid)
			}
			if tc.valid && got != tc.want {
				t.Errorf("Coerce(%v) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}
}

func TestSlotCoerceList(t *testing.T) {
	slot := Slot{Type: SlotList}

	got, ok := slot.Coerce("solo")
	if !ok {
		t.Fatal("expected scalar to wrap into a list")
	}
	if list, _ := got.([]any); len(list) != 1 || list[0] != "solo" {
		t.Errorf("got %v, want [solo]", got)
	}

	got, ok = slot.Coerce([]string{"a", "b"})
	if !ok {
		t.Fatal("expected string slice to coerce")
	}
	if list, _ := got.([]any); len(list) != 2 {
		t.Errorf("got %v, want two elements", got)
	}
}
