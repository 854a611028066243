package flow

import (
	"fmt"
	"maps"

	"github.com/hupe1980/agentpipe/core"
	internalutil "github.com/hupe1980/agentpipe/internal/util"
	"github.com/hupe1980/agentpipe/model"
)

// InstructionsProcessor resolves the agent's system prompt and renders it as
// a template against the session state.
type InstructionsProcessor struct{}

// NewInstructionsProcessor creates a new instructions processor.
func NewInstructionsProcessor() *InstructionsProcessor { return &InstructionsProcessor{} }

// Name returns the processor's identifier.
func (p *InstructionsProcessor) Name() string { return "instructions" }

// ProcessRequest sets the rendered system instructions on the request.
// Staged state (pending deltas) shadows persisted session state during
// template rendering so agents see the freshest values.
func (p *InstructionsProcessor) ProcessRequest(rc *core.RunContext, req *model.Request, agent FlowAgent) error {
	instructions, err := agent.ResolveInstructions(rc)
	if err != nil {
		return fmt.Errorf("failed to resolve instruction: %w", err)
	}

	rc.LogDebug("agent.instruction.resolved", "agent", agent.GetName(), "length", len(instructions))

	state := map[string]any{}
	if rc.Session != nil && rc.Session.State != nil {
		maps.Copy(state, rc.Session.State)
	}
	maps.Copy(state, rc.StateDelta)

	if len(state) > 0 {
		rendered, tplErr := internalutil.RenderTemplate(instructions, state)
		if tplErr != nil {
			return fmt.Errorf("failed to render template: %w", tplErr)
		}
		req.Instructions = rendered
	} else {
		req.Instructions = instructions
	}

	return nil
}

// ContentsProcessor assembles the conversation contents for the request from
// session history.
type ContentsProcessor struct{}

// NewContentsProcessor creates a new contents processor.
func NewContentsProcessor() *ContentsProcessor { return &ContentsProcessor{} }

// Name returns the processor's identifier.
func (p *ContentsProcessor) Name() string { return "contents" }

// ProcessRequest windows the session's conversation history to the agent's
// configured limit. When no history exists yet (e.g. a direct child run that
// bypassed the runner) the run's user content is used instead.
func (p *ContentsProcessor) ProcessRequest(rc *core.RunContext, req *model.Request, agent FlowAgent) error {
	var contents []core.Content

	if rc.Session != nil {
		events := rc.Session.GetConversationHistory()
		if max := agent.MaxHistoryMessages(); max > 0 && len(events) > max {
			events = events[len(events)-max:]
		}

		for _, ev := range events {
			if ev.Content != nil && len(ev.Content.Parts) > 0 {
				contents = append(contents, *ev.Content)
			}
		}
	}

	if len(contents) == 0 && len(rc.UserContent.Parts) > 0 {
		contents = append(contents, rc.UserContent)
	}

	req.Contents = contents
	return nil
}
