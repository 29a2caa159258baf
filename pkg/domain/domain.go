package domain

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Reserved names of the engine's built-in actions.
const (
	ActionListen          = "action_listen"
	ActionRestart         = "action_restart"
	ActionSessionStart    = "action_session_start"
	ActionDefaultFallback = "action_default_fallback"
	ActionExtractSlots    = "action_extract_slots"
)

// DefaultActions lists the built-in action names every domain exposes,
// in their stable index order.
func DefaultActions() []string {
	return []string{
		ActionListen,
		ActionRestart,
		ActionSessionStart,
		ActionDefaultFallback,
		ActionExtractSlots,
	}
}

// SlotMapping describes one way a form may fill a slot from the latest
// user message.
type SlotMapping struct {
	// FromEntity fills the slot from a recognized entity of this name.
	FromEntity string `yaml:"from_entity,omitempty"`
	// FromText fills the slot from the raw message text. Only honored
	// while the slot is the one currently being requested.
	FromText bool `yaml:"from_text,omitempty"`
}

// Form declares a slot-filling loop: which slots it must collect, how
// they may be filled, and which remote actions (if any) validate
// candidate values and run on completion.
type Form struct {
	RequiredSlots []string                 `yaml:"required_slots"`
	Mappings      map[string][]SlotMapping `yaml:"mappings,omitempty"`
	Validate      string                   `yaml:"validate,omitempty"`
	Submit        string                   `yaml:"submit,omitempty"`
}

// MappingsFor returns the fill rules for a slot, defaulting to a
// same-named entity mapping when the form declares none.
func (f Form) MappingsFor(slot string) []SlotMapping {
	if m, ok := f.Mappings[slot]; ok && len(m) > 0 {
		return m
	}
	return []SlotMapping{{FromEntity: slot}}
}

// Response is one template variation for a bot utterance.
type Response struct {
	Text string `yaml:"text"`
}

// Domain is the static conversation schema: declared actions, forms,
// slots and response templates. It is read-only after Load and safe for
// unsynchronized concurrent reads.
type Domain struct {
	Name      string                `yaml:"name,omitempty"`
	Actions   []string              `yaml:"actions,omitempty"`
	Forms     map[string]Form       `yaml:"forms,omitempty"`
	Slots     map[string]Slot       `yaml:"slots,omitempty"`
	Responses map[string][]Response `yaml:"responses,omitempty"`
}

// Load parses a domain descriptor from YAML and validates it.
func Load(data []byte) (*Domain, error) {
	var d Domain
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("parse domain: %w", err)
	}
	if err := d.Check(); err != nil {
		return nil, err
	}
	return &d, nil
}

// LoadFile reads and parses a domain descriptor from disk.
func LoadFile(path string) (*Domain, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read domain file: %w", err)
	}
	return Load(data)
}

// Check verifies internal consistency of the declarations.
func (d *Domain) Check() error {
	var problems []string
	for name, form := range d.Forms {
		for _, slot := range form.RequiredSlots {
			if _, ok := d.Slots[slot]; !ok {
				problems = append(problems, fmt.Sprintf("form %q requires undeclared slot %q", name, slot))
			}
		}
		if form.Validate != "" && !contains(d.Actions, form.Validate) {
			problems = append(problems, fmt.Sprintf("form %q validator %q is not a declared action", name, form.Validate))
		}
		if form.Submit != "" && !contains(d.Actions, form.Submit) {
			problems = append(problems, fmt.Sprintf("form %q submit action %q is not a declared action", name, form.Submit))
		}
	}
	for name, slot := range d.Slots {
		if slot.Type == SlotCategorical && len(slot.Values) == 0 {
			problems = append(problems, fmt.Sprintf("categorical slot %q declares no values", name))
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid domain: %s", strings.Join(problems, "; "))
	}
	return nil
}

// ActionNames returns every executable action name in a deterministic
// order: built-ins, then forms, then responses, then declared custom
// actions. Numeric action identifiers index into this ordering.
func (d *Domain) ActionNames() []string {
	names := DefaultActions()
	seen := map[string]bool{}
	for _, n := range names {
		seen[n] = true
	}
	for _, n := range sortedKeys(d.Forms) {
		if !seen[n] {
			names = append(names, n)
			seen[n] = true
		}
	}
	for _, n := range sortedKeys(d.Responses) {
		if !seen[n] {
			names = append(names, n)
			seen[n] = true
		}
	}
	for _, n := range d.Actions {
		if !seen[n] {
			names = append(names, n)
			seen[n] = true
		}
	}
	return names
}

// HasAction reports whether name is executable in this domain, either
// as a built-in, form, response or declared custom action.
func (d *Domain) HasAction(name string) bool {
	return contains(DefaultActions(), name) ||
		d.IsForm(name) ||
		d.HasResponse(name) ||
		contains(d.Actions, name)
}

// HasSlot reports whether a slot name is declared. The reserved
// requested-slot pointer always counts as declared.
func (d *Domain) HasSlot(name string) bool {
	if name == RequestedSlot {
		return true
	}
	_, ok := d.Slots[name]
	return ok
}

// IsForm reports whether name is a declared form.
func (d *Domain) IsForm(name string) bool {
	_, ok := d.Forms[name]
	return ok
}

// HasResponse reports whether a response template exists for name.
func (d *Domain) HasResponse(name string) bool {
	r, ok := d.Responses[name]
	return ok && len(r) > 0
}

func contains(list []string, name string) bool {
	for _, n := range list {
		if n == name {
			return true
		}
	}
	return false
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
