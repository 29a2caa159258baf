package domain

// Entity is one piece of structured information the upstream NLU
// recognized inside a user message.
type Entity struct {
	Name  string `json:"entity" mapstructure:"entity"`
	Value any    `json:"value" mapstructure:"value"`
}

// Message is the latest user utterance as understood upstream. The
// engine only reads it; producing it (intent and entity extraction) is
// an external concern.
type Message struct {
	Text     string   `json:"text"`
	Intent   string   `json:"intent,omitempty"`
	Entities []Entity `json:"entities,omitempty"`
}

// IntentRestart is the reserved intent that hard-interrupts any active
// loop before its own logic runs.
const IntentRestart = "restart"

// EntityValue returns the value of the first recognized entity with the
// given name.
func (m *Message) EntityValue(name string) (any, bool) {
	if m == nil {
		return nil, false
	}
	for _, e := range m.Entities {
		if e.Name == name {
			return e.Value, true
		}
	}
	return nil, false
}
