// Package model defines the provider-agnostic abstractions and concrete
// helpers for interacting with language models inside agentpipe.
//
// Core goals:
//   - Unify streaming + non-streaming generation behind a single interface
//   - Normalize tool / function call representation (ToolDefinition, ToolCall)
//   - Keep request/response shapes minimal and transport independent
//   - Facilitate lightweight mocking for tests (MockModel)
//
// Providers (OpenAI, Anthropic, Gemini, OpenAI-compatible local endpoints)
// implement the Model interface from this package so higher layers (agents,
// flows) remain decoupled from vendor SDKs. Traced wraps any Model with an
// OpenTelemetry span per generation.
package model
