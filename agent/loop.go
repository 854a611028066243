package agent

import (
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/agentpipe/core"
)

// ErrEscalated is returned when a child agent signals escalation.
var ErrEscalated = errors.New("child agent escalated")

// LoopAgent coordinates the repeated execution of a child agent.
//
// This agent type enables iterative workflows by executing a child agent
// multiple times with configurable termination conditions: maximum
// iterations, a custom predicate over the child's output, interval timing
// and escalation monitoring.
//
// LoopAgent is ideal for:
//   - Draft / critique refinement cycles
//   - Retry logic with custom conditions
//   - Workflows requiring convergence checking
type LoopAgent struct {
	BaseAgent
	child       core.Agent        // Child agent to execute repeatedly
	maxIters    int               // Maximum number of iterations allowed
	interval    time.Duration     // Time delay between iterations
	stopOnError bool              // Whether to stop execution on child agent errors
	predicate   func(string) bool // Termination condition over the child's text output
}

// NewLoopAgent constructs a looping coordinator around a child agent.
// Defaults: 100 iterations, no interval, stop on first error.
func NewLoopAgent(name string, child core.Agent, opts ...LoopOption) *LoopAgent {
	la := &LoopAgent{
		BaseAgent:   NewBaseAgent(name),
		child:       child,
		maxIters:    100,
		interval:    0,
		stopOnError: true,
	}

	for _, o := range opts {
		o(la)
	}

	return la
}

// LoopOption defines a configuration function for customizing LoopAgent
// behavior.
type LoopOption func(*LoopAgent)

// WithMaxIters sets the maximum number of iterations for the loop.
//
// The loop terminates after this many iterations even if other termination
// conditions are not met.
func WithMaxIters(n int) LoopOption {
	return func(l *LoopAgent) { l.maxIters = n }
}

// WithInterval sets the time delay between loop iterations.
//
// Useful for rate limiting, polling scenarios, or giving external systems
// time to process between iterations. Set to 0 for no delay.
func WithInterval(d time.Duration) LoopOption {
	return func(l *LoopAgent) { l.interval = d }
}

// WithStopOnError controls whether a child error terminates the loop.
func WithStopOnError(stop bool) LoopOption {
	return func(l *LoopAgent) { l.stopOnError = stop }
}

// WithPredicate sets a custom termination condition based on output.
//
// The predicate receives the concatenated assistant text emitted by the
// child during an iteration and should return true to terminate the loop
// early.
//
// Example:
//
//	WithPredicate(func(output string) bool {
//	    return strings.Contains(output, "APPROVED")
//	})
func WithPredicate(pred func(string) bool) LoopOption {
	return func(l *LoopAgent) { l.predicate = pred }
}

// AgentType categorizes this implementation for run context metadata.
func (l *LoopAgent) AgentType() string { return "loop" }

// Run implements core.Agent, performing iterative execution with escalation
// detection. The same RunContext state is maintained across iterations, so
// the child can accumulate session state. The loop returns early (nil error)
// on escalation or when the predicate matches the child's output.
func (l *LoopAgent) Run(rc *core.RunContext) error {
	for i := 0; i < l.maxIters; i++ {
		select {
		case <-rc.Done():
			return rc.Err()
		default:
		}

		rc.LogDebug("loop.iteration.start", "agent", l.Name(), "iteration", i+1)

		output, childErr := l.runChildWithMonitoring(rc)

		if errors.Is(childErr, ErrEscalated) {
			rc.LogInfo("loop.escalated", "agent", l.Name(), "iteration", i+1)
			return nil // Escalation is early termination, not an error
		}

		if childErr != nil {
			if l.stopOnError {
				return fmt.Errorf("loop iteration %d failed for agent %s: %w", i+1, l.child.Name(), childErr)
			}
			rc.LogWarn("loop.iteration.error", "agent", l.Name(), "iteration", i+1, "error", childErr.Error())
		}

		if l.predicate != nil && l.predicate(output) {
			rc.LogInfo("loop.predicate.matched", "agent", l.Name(), "iteration", i+1)
			return nil
		}

		if l.interval > 0 && i < l.maxIters-1 {
			select {
			case <-rc.Done():
				return rc.Err()
			case <-time.After(l.interval):
			}
		}
	}

	rc.LogDebug("loop.complete", "agent", l.Name(), "iterations", l.maxIters)

	return nil
}

// runChildWithMonitoring executes the child while intercepting emitted events
// to detect escalation flags and capture assistant text before forwarding to
// the parent context. It returns the concatenated final assistant text of
// the iteration for predicate evaluation.
func (l *LoopAgent) runChildWithMonitoring(rc *core.RunContext) (string, error) {
	interceptChan := make(chan core.Event, 10)
	resumeChan := make(chan struct{}, 10)
	childCtx := rc.NewChildContext(interceptChan, resumeChan, rc.Branch)

	done := make(chan error, 1)

	go func() {
		done <- l.child.Run(childCtx)
	}()

	var output string

	// processEvent captures assistant text, checks escalation and forwards
	// the event to the parent. escalated=true terminates the iteration.
	processEvent := func(event core.Event) (escalated bool, err error) {
		if !event.IsPartial() && event.Content != nil && event.Content.Role == "assistant" {
			if text := event.Text(); text != "" {
				if output != "" {
					output += "\n"
				}
				output += text
			}
		}

		if err := rc.EmitEvent(event); err != nil {
			return false, err
		}

		if event.Actions.Escalate != nil && *event.Actions.Escalate {
			return true, nil
		}

		return false, nil
	}

	for {
		select {
		case event := <-interceptChan:
			escalated, err := processEvent(event)
			if err != nil {
				return output, err
			}

			// The child may be blocked in WaitForResume after emitting, so
			// it must be resumed even when the event carried an escalation.
			select {
			case resumeChan <- struct{}{}:
			case <-rc.Done():
				return output, rc.Err()
			}

			if escalated {
				// Keep relaying and resuming until the child winds down.
				for {
					select {
					case event := <-interceptChan:
						if _, err := processEvent(event); err != nil {
							return output, err
						}
						select {
						case resumeChan <- struct{}{}:
						case <-rc.Done():
							return output, rc.Err()
						}
					case <-done:
						return output, ErrEscalated
					case <-rc.Done():
						return output, rc.Err()
					}
				}
			}

		case err := <-done:
			// Child finished; drain any buffered events before returning.
			for {
				select {
				case event := <-interceptChan:
					escalated, perr := processEvent(event)
					if perr != nil {
						return output, perr
					}
					if escalated {
						return output, ErrEscalated
					}
				default:
					return output, err
				}
			}

		case <-rc.Done():
			return output, rc.Err()
		}
	}
}

// CreateEscalationEvent constructs an escalation signal event with the given
// author and optional content describing the reason.
func CreateEscalationEvent(runID, author string, content *core.Content) core.Event {
	escalate := true
	ev := core.NewEvent(runID, author)
	ev.Actions.Escalate = &escalate
	ev.Content = content
	return ev
}
