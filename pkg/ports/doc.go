// Package ports defines the interfaces between the engine core and the
// outside world: executable actions, the remote action endpoint, and
// tracker persistence. Adapters under pkg/adapters implement them.
package ports
