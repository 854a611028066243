package agent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/agentpipe/core"
)

// ParallelAgent coordinates the concurrent execution of multiple child
// agents.
//
// Each child agent receives a separate branch context to prevent state
// conflicts while maintaining access to the shared session state.
//
// ParallelAgent is ideal for:
//   - Independent task processing
//   - I/O bound operations that can run concurrently
//   - Data gathering from multiple sources
type ParallelAgent struct {
	BaseAgent
	children []core.Agent  // Child agents to execute in parallel
	timeout  time.Duration // Maximum execution time for all children; 0 means none
}

// NewParallelAgent creates a new parallel execution coordinator. The agent
// executes the provided children concurrently, each in its own isolated
// branch context. A positive timeout bounds the whole fan-out.
func NewParallelAgent(name string, timeout time.Duration, children ...core.Agent) *ParallelAgent {
	return &ParallelAgent{
		BaseAgent: NewBaseAgent(name),
		children:  children,
		timeout:   timeout,
	}
}

// AgentType categorizes this implementation for run context metadata.
func (p *ParallelAgent) AgentType() string { return "parallel" }

// Run implements core.Agent, launching all children concurrently. Each child
// runs behind its own emit/resume pair: events are relayed to the parent
// emitter and the branch is resumed locally, so concurrent branches never
// compete for the single run-level resume signal. The first error
// encountered (after all complete) is returned; successful children continue
// even if siblings fail.
func (p *ParallelAgent) Run(rc *core.RunContext) error {
	ctx := rc.Context
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(rc.Context, p.timeout)
		defer cancel()
	}

	var wg sync.WaitGroup
	errCh := make(chan error, len(p.children))

	for _, child := range p.children {
		wg.Add(1)
		go func(c core.Agent) {
			defer wg.Done()

			if err := p.runBranch(ctx, rc, c); err != nil {
				errCh <- fmt.Errorf("parallel execution failed for agent %s: %w", c.Name(), err)
			}
		}(child)
	}

	wg.Wait()
	close(errCh)

	if len(errCh) > 0 {
		return <-errCh
	}

	return nil
}

// runBranch executes one child behind an intercepting emit/resume pair. The
// branch context carries the path "Parent.Child" (hierarchical for nested
// parallel agents) and fresh delta buffers for isolation.
func (p *ParallelAgent) runBranch(ctx context.Context, rc *core.RunContext, child core.Agent) error {
	interceptChan := make(chan core.Event, 10)
	resumeChan := make(chan struct{}, 10)

	branchSuffix := fmt.Sprintf("%s.%s", p.Name(), child.Name())
	branchCtx := rc.NewChildContext(interceptChan, resumeChan, buildBranchPath(rc.Branch, branchSuffix))
	branchCtx.Context = ctx

	done := make(chan error, 1)

	go func() {
		done <- child.Run(branchCtx)
	}()

	// forward relays the event to the parent emitter and resumes the branch
	// so the child can continue past its WaitForResume.
	forward := func(ev core.Event) error {
		select {
		case rc.Emit <- ev:
		case <-ctx.Done():
			return ctx.Err()
		}

		select {
		case resumeChan <- struct{}{}:
		case <-ctx.Done():
			return ctx.Err()
		}

		return nil
	}

	for {
		select {
		case ev := <-interceptChan:
			if err := forward(ev); err != nil {
				return err
			}

		case err := <-done:
			// Child finished; drain any buffered events before returning.
			for {
				select {
				case ev := <-interceptChan:
					if ferr := forward(ev); ferr != nil {
						return ferr
					}
				default:
					return err
				}
			}

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
