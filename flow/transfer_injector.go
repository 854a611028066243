package flow

import (
	"fmt"
	"strings"

	"github.com/hupe1980/agentpipe/core"
	"github.com/hupe1980/agentpipe/model"
)

// TransferToolInjector dynamically exposes the transfer_to_agent tool when
// the agent allows transfer and has sub-agents. The tool description lists
// the reachable agents so the model can choose a sensible target.
type TransferToolInjector struct{}

// NewTransferToolInjector creates a new transfer tool injector.
func NewTransferToolInjector() *TransferToolInjector { return &TransferToolInjector{} }

// Name returns the processor's identifier.
func (p *TransferToolInjector) Name() string { return "transfer_tool_injector" }

// ProcessRequest appends the transfer_to_agent tool definition (at most once)
// when applicable.
func (p *TransferToolInjector) ProcessRequest(rc *core.RunContext, req *model.Request, agent FlowAgent) error {
	if !agent.IsTransferEnabled() {
		return nil
	}

	subAgents := agent.GetSubAgents()
	if len(subAgents) == 0 {
		return nil
	}

	for _, td := range req.Tools {
		if td.Function.Name == "transfer_to_agent" {
			return nil
		}
	}

	names := make([]string, 0, len(subAgents))
	for _, sa := range subAgents {
		names = append(names, sa.GetName())
	}

	req.Tools = append(req.Tools, model.ToolDefinition{
		Type: "function",
		Function: model.FunctionDefinition{
			Name: "transfer_to_agent",
			Description: fmt.Sprintf(
				"Transfer control to another agent when it is better suited. Available agents: %s",
				strings.Join(names, ", "),
			),
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"agent": map[string]any{
						"type":        "string",
						"description": "Target agent name",
						"enum":        names,
					},
				},
				"required": []string{"agent"},
			},
		},
	})

	return nil
}
