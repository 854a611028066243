// Package agentpipe provides a high-level façade over the runner and store
// abstractions (sessions, artifacts, memory, logging) for building multi-agent
// pipelines. Most applications interact with this package by:
//  1. Creating an AgentPipe via New() (optionally overriding default in-memory stores)
//  2. Registering one or more agents (llm, sequential, parallel, loop, remote)
//  3. Invoking agents asynchronously (Invoke) or synchronously (InvokeSync)
//
// The façade delegates orchestration to runner.Runner while keeping setup
// concise. All defaults are safe for local development and testing; production
// deployments typically supply durable stores and a structured logger.
package agentpipe

import (
	"context"

	"github.com/hupe1980/agentpipe/artifact"
	"github.com/hupe1980/agentpipe/core"
	"github.com/hupe1980/agentpipe/logging"
	"github.com/hupe1980/agentpipe/memory"
	"github.com/hupe1980/agentpipe/runner"
	"github.com/hupe1980/agentpipe/session"
)

// Options configures the AgentPipe instance.
type Options struct {
	// EventBufferSize sets the channel buffer size for event processing.
	EventBufferSize int

	// MaxModelCalls limits model calls per run, guarding against infinite
	// tool loops.
	MaxModelCalls int

	// Stores default to in-memory implementations if not provided.
	SessionStore  core.SessionStore
	ArtifactStore core.ArtifactStore
	MemoryStore   core.MemoryStore

	// Logger defaults to a no-op logger if nil.
	Logger logging.Logger
}

// AgentPipe is the high-level façade aggregating the runner and its stores.
type AgentPipe struct {
	opts   Options
	runner core.Runner
}

// New creates a new AgentPipe instance with optional overrides. Any unset
// store is initialized with an in-memory implementation.
func New(optFns ...func(o *Options)) *AgentPipe {
	opts := Options{
		EventBufferSize: 100,
		MaxModelCalls:   100,
		SessionStore:    session.NewInMemoryStore(),
		ArtifactStore:   artifact.NewInMemoryStore(),
		MemoryStore:     memory.NewInMemoryStore(),
		Logger:          logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	r := runner.New(func(o *runner.Options) {
		o.EventBufferSize = opts.EventBufferSize
		o.MaxModelCalls = opts.MaxModelCalls
		o.SessionStore = opts.SessionStore
		o.ArtifactStore = opts.ArtifactStore
		o.MemoryStore = opts.MemoryStore
		o.Logger = opts.Logger
	})

	return &AgentPipe{opts: opts, runner: r}
}

// RegisterAgent adds an agent to the underlying runner.
func (p *AgentPipe) RegisterAgent(a core.Agent) { p.runner.Register(a) }

// Runner exposes the underlying runner for advanced wiring (e.g. mounting a
// remote server on top of the same registry).
func (p *AgentPipe) Runner() core.Runner { return p.runner }

// Invoke starts an asynchronous run returning event and error channels.
func (p *AgentPipe) Invoke(
	ctx context.Context,
	sessionID string,
	agentName string,
	userContent core.Content,
) (string, <-chan core.Event, <-chan error, error) {
	return p.runner.Invoke(ctx, sessionID, agentName, userContent)
}

// InvokeSync runs an agent to completion, accumulating emitted events.
func (p *AgentPipe) InvokeSync(
	ctx context.Context,
	sessionID string,
	agentName string,
	userContent core.Content,
) (string, []core.Event, error) {
	return p.runner.InvokeSync(ctx, sessionID, agentName, userContent)
}
