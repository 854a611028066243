// Package flow provides execution flow management for agents.
//
// Flows orchestrate the execution pipeline of an agent, from assembling the
// model request to streaming responses and running tool calls. Pluggable
// request/response processors keep the pipeline modular and extensible.
package flow

import (
	"github.com/hupe1980/agentpipe/core"
	"github.com/hupe1980/agentpipe/model"
	"github.com/hupe1980/agentpipe/tool"
)

// Flow defines the interface for agent execution flows.
//
// A flow orchestrates the complete execution pipeline of an agent, from
// processing the initial request to generating the final response. Different
// flow implementations provide different capabilities such as simple
// execution or multi-agent transfers.
type Flow interface {
	// Execute runs the flow with the given context. It returns a channel of
	// events that represent the execution progress.
	Execute(rc *core.RunContext) (<-chan core.Event, error)
}

// FlowAgent defines the interface that agents must implement to work with
// flows. It provides flows with access to agent capabilities without exposing
// the full agent implementation details.
type FlowAgent interface {
	// GetName returns the agent's display name.
	GetName() string

	// GetLLM returns the language model instance.
	GetLLM() model.Model

	// ResolveInstructions produces the system prompt for the current run.
	ResolveInstructions(rc *core.RunContext) (string, error)

	// GetTools returns the registered tools for function calling.
	GetTools() map[string]tool.Tool

	// GetSubAgents returns the list of child agents.
	GetSubAgents() []FlowAgent

	// IsFunctionCallingEnabled returns whether function calling is enabled.
	IsFunctionCallingEnabled() bool

	// IsStreamingEnabled returns whether streaming responses are enabled.
	IsStreamingEnabled() bool

	// IsTransferEnabled returns whether agent transfer is enabled.
	IsTransferEnabled() bool

	// GetOutputKey returns the session state key for saving responses.
	GetOutputKey() string

	// MaxHistoryMessages returns the maximum number of conversation history
	// messages to keep.
	MaxHistoryMessages() int

	// ExecuteTool executes a named tool with the given arguments.
	ExecuteTool(toolCtx *core.ToolContext, toolName string, args string) (any, error)

	// TransferToAgent transfers execution to a named sub-agent.
	TransferToAgent(rc *core.RunContext, agentName string) error
}

// RequestProcessor processes the request before sending it to the LLM.
type RequestProcessor interface {
	// Name returns the processor's identifier.
	Name() string
	// ProcessRequest modifies the chat request before LLM execution.
	ProcessRequest(rc *core.RunContext, req *model.Request, agent FlowAgent) error
}

// ResponseProcessor processes the response after receiving it from the LLM.
type ResponseProcessor interface {
	// Name returns the processor's identifier.
	Name() string
	// ProcessResponse handles the LLM response and may generate additional
	// events.
	ProcessResponse(rc *core.RunContext, resp *model.Response, agent FlowAgent) error
}
