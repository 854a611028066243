package runner

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/agentpipe/artifact"
	"github.com/hupe1980/agentpipe/core"
	"github.com/hupe1980/agentpipe/logging"
	"github.com/hupe1980/agentpipe/memory"
	"github.com/hupe1980/agentpipe/session"
)

// Options holds dependency and configuration overrides passed to New().
type Options struct {
	// EventBufferSize sets channel buffering for event delivery.
	EventBufferSize int
	// MaxModelCalls limits the number of model calls per run.
	MaxModelCalls int
	// SessionStore persists conversation history and state.
	SessionStore core.SessionStore
	// ArtifactStore persists binary artifacts.
	ArtifactStore core.ArtifactStore
	// MemoryStore persists searchable memories.
	MemoryStore core.MemoryStore
	// Logger receives structured run diagnostics.
	Logger logging.Logger
}

// Runner coordinates agent execution: it resolves registered agents by name,
// creates run contexts, streams events, applies side effects, and persists
// history. Public methods are safe for concurrent use.
type Runner struct {
	eventBufferSize int
	maxModelCalls   int

	sessionStore  core.SessionStore
	artifactStore core.ArtifactStore
	memoryStore   core.MemoryStore
	logger        logging.Logger

	agents     map[string]core.Agent
	activeRuns map[string]context.CancelFunc
	mu         sync.RWMutex
}

// Compile-time interface compliance.
var _ core.Runner = (*Runner)(nil)

// New constructs a Runner with optional overrides. Defaults use in-memory
// stores and a no-op logger.
func New(optFns ...func(o *Options)) *Runner {
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

	return &Runner{
		eventBufferSize: opts.EventBufferSize,
		maxModelCalls:   opts.MaxModelCalls,
		sessionStore:    opts.SessionStore,
		artifactStore:   opts.ArtifactStore,
		memoryStore:     opts.MemoryStore,
		logger:          opts.Logger,
		agents:          make(map[string]core.Agent),
		activeRuns:      make(map[string]context.CancelFunc),
	}
}

// Register makes an agent available for invocation by name. Registering a
// second agent under the same name replaces the first.
func (r *Runner) Register(a core.Agent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.agents[a.Name()] = a
}

// Invoke starts an asynchronous run of the named agent bound to sessionID.
// It returns the run id, an ordered event stream (closed on completion) and a
// terminal error channel (at most one error, then closed).
func (r *Runner) Invoke(
	ctx context.Context,
	sessionID, agentName string,
	userContent core.Content,
) (string, <-chan core.Event, <-chan error, error) {
	r.mu.RLock()
	target, ok := r.agents[agentName]
	r.mu.RUnlock()
	if !ok {
		return "", nil, nil, fmt.Errorf("agent %s not registered", agentName)
	}

	sess, err := r.sessionStore.Get(sessionID)
	if err != nil {
		return "", nil, nil, fmt.Errorf("failed to get session: %w", err)
	}

	runID := core.NewID()

	eventsCh := make(chan core.Event, r.eventBufferSize)
	errorsCh := make(chan error, 1)
	agentEmit := make(chan core.Event, r.eventBufferSize)
	resumeCh := make(chan struct{}, 1)

	ctx, cancel := context.WithCancel(ctx)
	r.mu.Lock()
	r.activeRuns[runID] = cancel
	r.mu.Unlock()

	runCtx := core.NewRunContext(
		ctx,
		sessionID,
		runID,
		core.AgentInfo{Name: target.Name(), Type: agentType(target)},
		userContent,
		r.maxModelCalls,
		agentEmit,
		resumeCh,
		sess,
		r.sessionStore,
		r.artifactStore,
		r.memoryStore,
		r.logger,
	)

	userEvent := core.NewUserContentEvent(runID, &userContent)
	if err := r.sessionStore.AppendEvent(sessionID, userEvent); err != nil {
		cancel()
		r.removeRun(runID)
		return "", nil, nil, fmt.Errorf("failed to append user event: %w", err)
	}
	runCtx.Session.AddEvent(userEvent)

	r.logger.Info("runner.invoke", "run_id", runID, "session_id", sessionID, "agent", agentName)

	go func() {
		defer func() {
			close(agentEmit)
			cancel()
			r.removeRun(runID)
		}()

		if err := r.runAgent(runCtx, target); err != nil {
			select {
			case <-runCtx.Done():
			case errorsCh <- fmt.Errorf("agent execution failed: %w", err):
			}
		}
	}()

	go func() {
		defer func() { close(eventsCh); close(errorsCh) }()

		r.processEvents(runCtx, sessionID, agentEmit, resumeCh, eventsCh, errorsCh)
	}()

	return runID, eventsCh, errorsCh, nil
}

// InvokeSync runs the named agent to completion and collects all emitted
// events. It returns the run id alongside the events.
func (r *Runner) InvokeSync(
	ctx context.Context,
	sessionID, agentName string,
	userContent core.Content,
) (string, []core.Event, error) {
	runID, eventsCh, errorsCh, err := r.Invoke(ctx, sessionID, agentName, userContent)
	if err != nil {
		return "", nil, err
	}

	var events []core.Event
	for ev := range eventsCh {
		events = append(events, ev)
	}

	if runErr := <-errorsCh; runErr != nil {
		return runID, events, runErr
	}

	return runID, events, nil
}

// Cancel requests cooperative termination of an in-flight run.
func (r *Runner) Cancel(runID string) error {
	r.mu.Lock()
	cancel, exists := r.activeRuns[runID]
	r.mu.Unlock()

	if !exists {
		return fmt.Errorf("run %s not found", runID)
	}

	cancel()
	return nil
}

func (r *Runner) removeRun(runID string) {
	r.mu.Lock()
	delete(r.activeRuns, runID)
	r.mu.Unlock()
}

func (r *Runner) runAgent(runCtx *core.RunContext, a core.Agent) error {
	if err := a.Start(runCtx); err != nil {
		return err
	}

	defer func() {
		if err := a.Stop(runCtx); err != nil {
			r.logger.Warn("runner.agent.stop.error", "agent", a.Name(), "error", err.Error())
		}
	}()

	return a.Run(runCtx)
}

// processEvents applies side effects and persists history in emission order.
// State deltas are applied before the event is appended so a freshly loaded
// session always matches the event stream delivered to the caller. The resume
// signal is sent only after persistence completes.
func (r *Runner) processEvents(
	runCtx *core.RunContext,
	sessionID string,
	agentEmit <-chan core.Event,
	resumeCh chan<- struct{},
	eventsCh chan<- core.Event,
	errorsCh chan<- error,
) {
	for {
		select {
		case <-runCtx.Done():
			return
		case ev, ok := <-agentEmit:
			if !ok {
				return
			}

			if err := r.applyEventActions(sessionID, ev); err != nil {
				select {
				case <-runCtx.Done():
				case errorsCh <- fmt.Errorf("failed to apply event actions: %w", err):
				}
				return
			}

			if !ev.IsPartial() {
				if err := r.sessionStore.AppendEvent(sessionID, ev); err != nil {
					select {
					case <-runCtx.Done():
					case errorsCh <- fmt.Errorf("failed to append event to session: %w", err):
					}
					return
				}
			}

			select {
			case <-runCtx.Done():
				return
			case eventsCh <- ev:
				r.logger.Debug("runner.event.delivered", "event_id", ev.ID, "session_id", sessionID, "author", ev.Author)
			}

			if !ev.IsPartial() {
				select {
				case <-runCtx.Done():
					return
				case resumeCh <- struct{}{}:
				default:
				}
			}
		}
	}
}

func (r *Runner) applyEventActions(sessionID string, ev core.Event) error {
	if len(ev.Actions.StateDelta) > 0 {
		if err := r.sessionStore.ApplyDelta(sessionID, ev.Actions.StateDelta); err != nil {
			return fmt.Errorf("failed to apply state delta: %w", err)
		}
	}

	if ev.Actions.TransferToAgent != nil && *ev.Actions.TransferToAgent != "" {
		r.logger.Debug("runner.event.transfer", "target", *ev.Actions.TransferToAgent, "session_id", sessionID)
	}

	if ev.Actions.Escalate != nil && *ev.Actions.Escalate {
		r.logger.Debug("runner.event.escalate", "session_id", sessionID)
	}

	return nil
}

// agentType reports the category of an agent implementation when it exposes
// one, falling back to "agent".
func agentType(a core.Agent) string {
	if t, ok := a.(interface{ AgentType() string }); ok {
		return t.AgentType()
	}
	return "agent"
}
