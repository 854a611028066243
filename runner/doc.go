// Package runner implements the orchestration layer that executes registered
// agents within sessions.
//
// The Runner resolves an agent by name, builds a RunContext wired to the
// configured stores, streams events to the caller and applies event side
// effects (state deltas, history persistence) in emission order. Agents block
// after each non-partial event until the runner confirms persistence, so a
// later model turn always observes the session produced by the previous one.
package runner
