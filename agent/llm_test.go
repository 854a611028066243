package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentpipe/core"
	"github.com/hupe1980/agentpipe/model"
	"github.com/hupe1980/agentpipe/tool"
)

func TestNewLLMAgent_Defaults(t *testing.T) {
	llm := model.NewMockModel("mock-1", "mock")
	a := NewLLMAgent("Assistant", llm)

	assert.Equal(t, "Assistant", a.Name())
	assert.True(t, a.IsStreamingEnabled())
	assert.True(t, a.IsFunctionCallingEnabled())
	assert.True(t, a.IsTransferEnabled())
	assert.Equal(t, 20, a.MaxHistoryMessages())
	assert.Empty(t, a.GetOutputKey())
	assert.Same(t, llm, a.GetLLM())
}

func TestNewLLMAgent_Options(t *testing.T) {
	llm := model.NewMockModel("mock-1", "mock")
	a := NewLLMAgent("Writer", llm, func(o *LLMAgentOptions) {
		o.Instruction = NewInstructionFromText("You write stories.")
		o.EnableStreaming = false
		o.OutputKey = "generated_code"
		o.MaxHistoryMessages = 5
	})

	assert.False(t, a.IsStreamingEnabled())
	assert.Equal(t, "generated_code", a.GetOutputKey())
	assert.Equal(t, 5, a.MaxHistoryMessages())

	text, err := a.ResolveInstructions(nil)
	require.NoError(t, err)
	assert.Equal(t, "You write stories.", text)
}

func TestLLMAgent_ToolRegistry(t *testing.T) {
	a := NewLLMAgent("Assistant", model.NewMockModel("mock-1", "mock"))

	echo := tool.NewFunctionTool("echo", "Echo the input", map[string]any{"type": "object"},
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			return args, nil
		})

	a.RegisterTool(echo)
	assert.True(t, a.HasTool("echo"))
	assert.Contains(t, a.ListTools(), "echo")

	got, ok := a.GetTool("echo")
	assert.True(t, ok)
	assert.Equal(t, "echo", got.Name())

	assert.True(t, a.UnregisterTool("echo"))
	assert.False(t, a.HasTool("echo"))
	assert.False(t, a.UnregisterTool("echo"))
}

func TestLLMAgent_GetToolsReturnsCopy(t *testing.T) {
	a := NewLLMAgent("Assistant", model.NewMockModel("mock-1", "mock"))
	a.RegisterTool(tool.NewStateManagerTool())

	tools := a.GetTools()
	delete(tools, "state_manager")

	assert.True(t, a.HasTool("state_manager"))
}

func TestLLMAgent_ExecuteTool(t *testing.T) {
	a := NewLLMAgent("Assistant", model.NewMockModel("mock-1", "mock"))

	sum := tool.NewFunctionTool("calculate_sum", "Calculate the sum of two numbers",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"a": map[string]any{"type": "number"},
				"b": map[string]any{"type": "number"},
			},
			"required": []string{"a", "b"},
		},
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			return args["a"].(float64) + args["b"].(float64), nil
		})
	a.RegisterTool(sum)

	rc, _ := newRunContextForTest("Assistant", "llm")
	toolCtx := core.NewToolContext(rc, "fc-1")

	result, err := a.ExecuteTool(toolCtx, "calculate_sum", `{"a": 1, "b": 2}`)
	require.NoError(t, err)
	assert.Equal(t, 3.0, result)

	_, err = a.ExecuteTool(toolCtx, "missing", `{}`)
	assert.Error(t, err)

	_, err = a.ExecuteTool(toolCtx, "calculate_sum", `not-json`)
	assert.Error(t, err)
}

func TestLLMAgent_RunStampsBranch(t *testing.T) {
	a := NewLLMAgent("Assistant", model.NewMockModel("mock-1", "mock"))

	rc, emit := newRunContextForTest("Assistant", "llm")
	rc.Branch = "FanOut.Assistant"
	rc.Resume = nil // direct execution without a runner

	require.NoError(t, a.Run(rc))

	close(emit)
	var sawFinal bool
	for ev := range emit {
		require.NotNil(t, ev.Branch)
		assert.Equal(t, "FanOut.Assistant", *ev.Branch)
		if ev.IsFinalResponse() {
			sawFinal = true
		}
	}
	assert.True(t, sawFinal)
}

func TestLLMAgent_TransferToAgent_NotFound(t *testing.T) {
	a := NewLLMAgent("Assistant", model.NewMockModel("mock-1", "mock"))

	rc, _ := newRunContextForTest("Assistant", "llm")

	err := a.TransferToAgent(rc, "Ghost")
	assert.Error(t, err)
}
