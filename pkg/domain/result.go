package domain

// Directive tells the caller what to do after applying an action's
// events.
type Directive string

const (
	// DirectiveNone means the turn proceeds normally.
	DirectiveNone Directive = ""
	// DirectiveRepeatTurn asks the caller to run another prediction
	// against the updated state within the same turn.
	DirectiveRepeatTurn Directive = "repeat_turn"
)

// Result is what an action returns: the ordered event batch describing
// its effects, plus an optional directive. Actions never mutate the
// tracker directly.
type Result struct {
	Events    []Event
	Directive Directive
}

// ResponsePayload is a response directive from the action server: a
// message the server wants uttered verbatim.
type ResponsePayload struct {
	Text string `json:"text"`
}

// RemoteResponse is the parsed, domain-validated reply from the action
// server.
type RemoteResponse struct {
	Events    []Event
	Responses []ResponsePayload
}
