package domain

import (
	"time"
)

// EventType is the wire discriminator for an event variant.
type EventType string

const (
	EventUserUttered     EventType = "user"
	EventBotUttered      EventType = "bot"
	EventSlotSet         EventType = "slot"
	EventActionExecuted  EventType = "action"
	EventActionRejected  EventType = "action_execution_rejected"
	EventLoopActivated   EventType = "loop_activated"
	EventLoopDeactivated EventType = "loop_deactivated"
	EventRestarted       EventType = "restarted"
	EventSessionStarted  EventType = "session_started"
)

// Clock produces event timestamps. Tests may replace it to get
// reproducible event sequences.
var Clock = time.Now

// Event is one atomic conversation-state change. Events are immutable
// once created; ordering within a batch is significant and must be
// preserved by anything that transports them.
type Event interface {
	Type() EventType
	Timestamp() time.Time
}

// Base carries the fields shared by every event variant.
type Base struct {
	Time time.Time `json:"timestamp" mapstructure:"timestamp"`
}

func (b Base) Timestamp() time.Time { return b.Time }

func newBase() Base { return Base{Time: Clock()} }

// UserUttered records a message received from the user, together with
// whatever the upstream NLU extracted from it.
type UserUttered struct {
	Base     `mapstructure:",squash"`
	Text     string   `json:"text" mapstructure:"text"`
	Intent   string   `json:"intent,omitempty" mapstructure:"intent"`
	Entities []Entity `json:"entities,omitempty" mapstructure:"entities"`
}

func (UserUttered) Type() EventType { return EventUserUttered }

// NewUserUttered builds a user event from an understood message.
func NewUserUttered(msg Message) UserUttered {
	return UserUttered{Base: newBase(), Text: msg.Text, Intent: msg.Intent, Entities: msg.Entities}
}

// BotUttered records a message the bot sends back to the user.
type BotUttered struct {
	Base     `mapstructure:",squash"`
	Text     string         `json:"text" mapstructure:"text"`
	Metadata map[string]any `json:"metadata,omitempty" mapstructure:"metadata"`
}

func (BotUttered) Type() EventType { return EventBotUttered }

func NewBotUttered(text string) BotUttered {
	return BotUttered{Base: newBase(), Text: text}
}

// SlotSet records a slot receiving a value. A nil value unsets the slot.
type SlotSet struct {
	Base  `mapstructure:",squash"`
	Name  string `json:"name" mapstructure:"name"`
	Value any    `json:"value" mapstructure:"value"`
}

func (SlotSet) Type() EventType { return EventSlotSet }

func NewSlotSet(name string, value any) SlotSet {
	return SlotSet{Base: newBase(), Name: name, Value: value}
}

// ActionExecuted records that a named action ran to completion.
type ActionExecuted struct {
	Base `mapstructure:",squash"`
	Name string `json:"name" mapstructure:"name"`
}

func (ActionExecuted) Type() EventType { return EventActionExecuted }

func NewActionExecuted(name string) ActionExecuted {
	return ActionExecuted{Base: newBase(), Name: name}
}

// ActionRejected records that an action declined to complete this turn,
// leaving the caller free to select an alternative.
type ActionRejected struct {
	Base   `mapstructure:",squash"`
	Name   string `json:"name" mapstructure:"name"`
	Reason string `json:"reason,omitempty" mapstructure:"reason"`
}

func (ActionRejected) Type() EventType { return EventActionRejected }

func NewActionRejected(name, reason string) ActionRejected {
	return ActionRejected{Base: newBase(), Name: name, Reason: reason}
}

// LoopActivated marks the start of a multi-turn loop.
type LoopActivated struct {
	Base `mapstructure:",squash"`
	Name string `json:"name" mapstructure:"name"`
}

func (LoopActivated) Type() EventType { return EventLoopActivated }

func NewLoopActivated(name string) LoopActivated {
	return LoopActivated{Base: newBase(), Name: name}
}

// LoopDeactivated marks the end of a multi-turn loop, whether completed
// or interrupted.
type LoopDeactivated struct {
	Base `mapstructure:",squash"`
	Name string `json:"name" mapstructure:"name"`
}

func (LoopDeactivated) Type() EventType { return EventLoopDeactivated }

func NewLoopDeactivated(name string) LoopDeactivated {
	return LoopDeactivated{Base: newBase(), Name: name}
}

// Restarted wipes the conversation back to a clean state.
type Restarted struct {
	Base `mapstructure:",squash"`
}

func (Restarted) Type() EventType { return EventRestarted }

func NewRestarted() Restarted { return Restarted{Base: newBase()} }

// SessionStarted opens a fresh conversation session.
type SessionStarted struct {
	Base `mapstructure:",squash"`
}

func (SessionStarted) Type() EventType { return EventSessionStarted }

func NewSessionStarted() SessionStarted { return SessionStarted{Base: newBase()} }
