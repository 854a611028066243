package agent

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hupe1980/agentpipe/core"
	"github.com/hupe1980/agentpipe/flow"
	"github.com/hupe1980/agentpipe/model"
	"github.com/hupe1980/agentpipe/tool"
)

// LLMAgentOptions configures an LLMAgent instance.
//
// Use functional options with NewLLMAgent to override defaults.
type LLMAgentOptions struct {
	Instruction           Instruction
	EnableStreaming       bool
	EnableFunctionCalling bool
	ToolTimeout           time.Duration
	OutputKey             string
	MaxHistoryMessages    int
	AllowTransfer         bool
	Tools                 map[string]tool.Tool
}

// LLMAgent integrates with language models to provide intelligent text
// processing capabilities.
//
// This agent implementation supports:
//   - Natural language conversation through system prompts
//   - Function calling with registered tools
//   - Streaming responses for real-time interactions
//   - Session state management with output keys
//   - Template-based prompt customization
//
// LLMAgent embeds BaseAgent to inherit standard agent lifecycle and hierarchy
// management.
type LLMAgent struct {
	BaseAgent
	llm                   model.Model          // Language model interface
	instruction           Instruction          // Instructions for the LLM
	tools                 map[string]tool.Tool // Registered tools for function calling
	enableFunctionCalling bool                 // Whether to enable tool usage
	enableStreaming       bool                 // Whether to stream responses
	toolTimeout           time.Duration        // Timeout for individual tool calls
	outputKey             string               // Key for saving responses to session state
	maxHistoryMessages    int                  // Maximum number of history messages to keep
	allowTransfer         bool                 // Whether agent can transfer control to sub-agents
}

// NewLLMAgent creates a new model-based agent with sensible defaults:
// streaming and function calling enabled, a 15-second tool timeout, a
// 20-message history window and sub-agent transfer enabled.
func NewLLMAgent(name string, llm model.Model, optFns ...func(o *LLMAgentOptions)) *LLMAgent {
	opts := LLMAgentOptions{
		Instruction:           NewInstructionFromText(fmt.Sprintf("You are %s, a helpful AI assistant.", name)),
		EnableStreaming:       true,
		EnableFunctionCalling: true,
		ToolTimeout:           15 * time.Second,
		MaxHistoryMessages:    20,
		AllowTransfer:         true,
		Tools:                 make(map[string]tool.Tool),
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &LLMAgent{
		BaseAgent:             NewBaseAgent(name),
		llm:                   llm,
		instruction:           opts.Instruction,
		enableStreaming:       opts.EnableStreaming,
		enableFunctionCalling: opts.EnableFunctionCalling,
		toolTimeout:           opts.ToolTimeout,
		outputKey:             opts.OutputKey,
		maxHistoryMessages:    opts.MaxHistoryMessages,
		allowTransfer:         opts.AllowTransfer,
		tools:                 opts.Tools,
	}
}

// RegisterTool adds a function tool to the agent's capability set.
//
// Registered tools become available for the language model to call during
// conversations when function calling is enabled.
func (a *LLMAgent) RegisterTool(t tool.Tool) {
	a.tools[t.Name()] = t
}

// RegisterTools adds multiple tools to the agent's capability set.
func (a *LLMAgent) RegisterTools(tools ...tool.Tool) {
	for _, t := range tools {
		a.RegisterTool(t)
	}
}

// UnregisterTool removes a tool from the agent's capability set.
//
// Returns true if the tool was found and removed, false if it wasn't
// registered.
func (a *LLMAgent) UnregisterTool(name string) bool {
	if _, exists := a.tools[name]; exists {
		delete(a.tools, name)
		return true
	}
	return false
}

// HasTool checks if a tool is registered with the agent.
func (a *LLMAgent) HasTool(name string) bool {
	_, exists := a.tools[name]
	return exists
}

// ListTools returns the names of all registered tools.
func (a *LLMAgent) ListTools() []string {
	names := make([]string, 0, len(a.tools))
	for name := range a.tools {
		names = append(names, name)
	}
	return names
}

// GetTool retrieves a specific tool by name.
func (a *LLMAgent) GetTool(name string) (tool.Tool, bool) {
	t, exists := a.tools[name]
	return t, exists
}

// ClearTools removes all registered tools from the agent.
func (a *LLMAgent) ClearTools() {
	a.tools = make(map[string]tool.Tool)
}

// FlowAgent interface implementation
//
// The following methods let the LLMAgent plug into the flow architecture for
// a modular execution pipeline.

// GetName returns the agent's display name.
func (a *LLMAgent) GetName() string {
	return a.Name()
}

// GetLLM returns the language model instance.
func (a *LLMAgent) GetLLM() model.Model {
	return a.llm
}

// GetTools returns a copy of the registered tools for function calling.
func (a *LLMAgent) GetTools() map[string]tool.Tool {
	tools := make(map[string]tool.Tool, len(a.tools))
	for name, t := range a.tools {
		tools[name] = t
	}

	return tools
}

// GetSubAgents returns the list of child agents as FlowAgents.
func (a *LLMAgent) GetSubAgents() []flow.FlowAgent {
	subAgents := a.SubAgents()
	flowAgents := make([]flow.FlowAgent, 0, len(subAgents))
	for _, subAgent := range subAgents {
		if flowAgent, ok := subAgent.(flow.FlowAgent); ok {
			flowAgents = append(flowAgents, flowAgent)
		}
	}
	return flowAgents
}

// IsFunctionCallingEnabled returns whether function calling is enabled.
func (a *LLMAgent) IsFunctionCallingEnabled() bool {
	return a.enableFunctionCalling
}

// IsStreamingEnabled returns whether streaming responses are enabled.
func (a *LLMAgent) IsStreamingEnabled() bool {
	return a.enableStreaming
}

// IsTransferEnabled returns whether agent transfer is enabled.
func (a *LLMAgent) IsTransferEnabled() bool {
	return a.allowTransfer
}

// GetOutputKey returns the session state key for saving responses.
func (a *LLMAgent) GetOutputKey() string {
	return a.outputKey
}

// MaxHistoryMessages returns the maximum number of conversation history
// messages to keep.
func (a *LLMAgent) MaxHistoryMessages() int {
	return a.maxHistoryMessages
}

// ResolveInstructions produces the final instruction string (system prompt)
// by resolving static or dynamic instruction sources.
func (a *LLMAgent) ResolveInstructions(rc *core.RunContext) (string, error) {
	return a.instruction.Resolve(rc)
}

// ExecuteTool deserializes JSON arguments and invokes the named tool,
// returning its result or an error if the tool is unknown or validation
// fails.
func (a *LLMAgent) ExecuteTool(toolCtx *core.ToolContext, toolName string, args string) (any, error) {
	t, exists := a.tools[toolName]
	if !exists {
		return nil, fmt.Errorf("tool %s not found", toolName)
	}

	argsMap := make(map[string]any)
	if err := json.Unmarshal([]byte(args), &argsMap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal args: %w", err)
	}

	return t.Call(toolCtx, argsMap)
}

// TransferToAgent delegates execution to a named descendant agent using the
// same run context (shared session state, emit channel).
func (a *LLMAgent) TransferToAgent(rc *core.RunContext, agentName string) error {
	targetAgent := a.FindAgent(agentName)
	if targetAgent == nil {
		return fmt.Errorf("agent '%s' not found in hierarchy", agentName)
	}

	return targetAgent.Run(rc)
}

// AgentType categorizes this implementation for run context metadata.
func (a *LLMAgent) AgentType() string { return "llm" }

// Run implements core.Agent using the flow selector to choose an execution
// strategy then streams flow events to the parent run context.
func (a *LLMAgent) Run(rc *core.RunContext) error {
	rc.LogDebug(
		"agent.run.start",
		"agent", a.Name(),
		"run", rc.RunID,
	)

	ctx := rc.Context

	selector := flow.NewSelector()
	fl := selector.SelectFlow(a)

	rc.LogDebug(
		"agent.flow.selected",
		"agent", a.Name(),
		"flow", fmt.Sprintf("%T", fl),
	)

	eventChan, err := fl.Execute(rc)
	if err != nil {
		rc.LogError(
			"agent.flow.execute.error",
			"agent", a.Name(),
			"error", err.Error(),
		)

		return fmt.Errorf("flow execution failed: %w", err)
	}

	for event := range eventChan {
		if event.Branch == nil && rc.Branch != "" {
			branch := rc.Branch
			event.Branch = &branch
		}

		select {
		case rc.Emit <- event:
			role := ""
			if event.Content != nil {
				role = event.Content.Role
			}

			rc.LogDebug(
				"agent.event.forward",
				"agent", a.Name(),
				"event_id", event.ID,
				"role", role,
				"fn_calls", len(event.GetFunctionCalls()),
			)
		case <-ctx.Done():
			rc.LogWarn("agent.run.context_done", "agent", a.Name(), "error", ctx.Err())

			return ctx.Err()
		}
	}

	rc.LogDebug("agent.flow.execute.complete", "agent", a.Name())

	return nil
}
