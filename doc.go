// Package espalier is the action execution engine of a dialogue
// system. Given an external policy's decision to run a named action, it
// resolves that name against the domain descriptor, executes the action
// (locally, or on a remote action server), and returns the ordered
// batch of events describing the resulting state changes.
//
// The engine never mutates conversation state itself: actions observe a
// read-only tracker snapshot and express every effect as events the
// caller applies. Multi-turn interactions (forms) are modeled as loops
// that survive interruption, resumption and validation rejection across
// turns.
//
//	engine := espalier.New(
//		espalier.WithActionServer(rest.Config{URL: "http://localhost:5055/webhook"}),
//	)
//	result, err := engine.RunAction(ctx, "book_restaurant", tracker, dom)
//	if err == nil {
//		tracker.Apply(result.Events...)
//	}
package espalier
