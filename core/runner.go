package core

import "context"

// Runner coordinates agent execution and event emission within conversational
// sessions. A concrete implementation is responsible for:
//   - Registering available agents (by name) via Register
//   - Spawning asynchronous runs (Invoke) returning event + error channels
//   - Synchronous convenience execution (InvokeSync) collecting emitted events
//   - Cooperative cancellation through Cancel
//
// Semantics & guarantees:
//   - Event ordering: events emitted within a single run are delivered in the
//     order produced by the underlying agent pipeline.
//   - Channel lifecycle: the returned events channel is closed after the run
//     completes (success, error, or cancellation). The error channel carries
//     at most one terminal error then closes (buffered size 1).
//   - Cancellation: context cancellation or explicit Cancel(runID) stops
//     further event emission and triggers cleanup.
//   - Partial events: implementations may emit partial events; consumers
//     should rely on IsPartial() to decide persistence or display strategy.
type Runner interface {
	// Register makes an agent available for later invocation by name.
	Register(a Agent)

	// Invoke starts an asynchronous agent run bound to sessionID using the
	// provided userContent as the starting input. It returns:
	//   runID    - stable identifier for cancellation / tracking
	//   eventsCh - ordered stream of events (closed on completion)
	//   errorsCh - terminal error channel (size 1, closed after send/none)
	// The immediate error return covers startup failures (e.g. session load).
	Invoke(ctx context.Context, sessionID, agentName string, userContent Content) (string, <-chan Event, <-chan error, error)

	// InvokeSync executes an agent to completion, collecting all emitted
	// events into a slice. Convenience wrapper that drains Invoke. Returns the
	// runID that produced the events.
	InvokeSync(ctx context.Context, sessionID, agentName string, userContent Content) (string, []Event, error)

	// Cancel requests cooperative termination of an in-flight run. It is
	// idempotent; cancelling an unknown or already finished run returns an
	// error describing the condition.
	Cancel(runID string) error
}
