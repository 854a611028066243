// Package memory contains concrete MemoryStore implementations. The store
// interface and SearchResult type live in the core package; depend on
// core.MemoryStore in calling code and select an implementation at wiring
// time. Pluggable backends (vector databases, embedding indexes) can be added
// here without introducing dependency cycles.
package memory
