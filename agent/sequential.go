package agent

import (
	"fmt"

	"github.com/hupe1980/agentpipe/core"
)

// SequentialAgent coordinates the execution of multiple child agents in
// sequence.
//
// This agent type enables pipelines by executing child agents one after
// another, passing the accumulated session state between them. Each agent's
// output becomes available to subsequent agents in the sequence.
//
// SequentialAgent is ideal for:
//   - Multi-step data processing pipelines
//   - Workflows requiring a specific execution order
//   - Scenarios where agent outputs build upon each other
type SequentialAgent struct {
	BaseAgent
	children []core.Agent // Child agents to execute in sequence
}

// NewSequentialAgent creates a new sequential execution coordinator. The
// agent executes the provided children in the order they are specified,
// passing session state between each step.
func NewSequentialAgent(name string, children ...core.Agent) *SequentialAgent {
	return &SequentialAgent{
		BaseAgent: NewBaseAgent(name),
		children:  children,
	}
}

// AgentType categorizes this implementation for run context metadata.
func (s *SequentialAgent) AgentType() string { return "sequential" }

// Run implements core.Agent. It executes each child agent in order with the
// same run context so they share session state; errors stop further
// processing immediately.
func (s *SequentialAgent) Run(rc *core.RunContext) error {
	for _, child := range s.children {
		if err := child.Run(rc); err != nil {
			return fmt.Errorf("sequential execution failed at agent %s: %w", child.Name(), err)
		}
	}

	return nil
}
