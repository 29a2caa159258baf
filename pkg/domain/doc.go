// Package domain holds the value types shared across the engine: the
// event variants that describe conversation-state changes, the domain
// descriptor (actions, forms, slots, response templates), the dialogue
// tracker, and the error kinds callers dispatch on.
//
// Everything here is either immutable after construction (Domain,
// events) or mutated through exactly one entrypoint (Tracker.Apply,
// which belongs to the caller, never the engine).
package domain
