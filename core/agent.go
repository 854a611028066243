package core

// Agent is the interface every agent in agentpipe implements.
//
// Agents are the processing units of the framework. They receive input through
// a RunContext, process it asynchronously, and emit events to communicate
// results and state changes back to the runner. The sub-agent management
// methods support both single-agent setups and hierarchical topologies
// (sequential pipelines, parallel fan-out, loops).
//
// Implementations must:
//   - Respect context cancellation for graceful shutdown
//   - Emit events through the provided RunContext
//   - Handle the resume mechanism properly after non-partial events
//   - Manage their lifecycle through Start/Stop
type Agent interface {
	Name() string
	Description() string
	Start(rc *RunContext) error
	Stop(rc *RunContext) error
	Run(rc *RunContext) error
	SetSubAgents(children ...Agent) error
	SubAgents() []Agent
	Parent() Agent
	FindAgent(name string) Agent
}

// AgentInfo carries identifying details about an agent used in contexts and
// events. Name is the external identifier; Type categorizes the implementation
// (e.g. "llm", "sequential", "parallel", "loop", "remote").
type AgentInfo struct{ Name, Type string }
