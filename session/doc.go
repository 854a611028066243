// Package session provides SessionStore implementations used by the runner to
// persist conversation history and shared state. The in-memory store suits
// tests and short-lived demos; the SQLite store persists sessions across
// process restarts.
package session
