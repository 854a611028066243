package tool

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentpipe/code"
	"github.com/hupe1980/agentpipe/core"
	"github.com/hupe1980/agentpipe/logging"
)

func newToolContextForTest(t *testing.T) *core.ToolContext {
	t.Helper()

	emit := make(chan core.Event, 16)
	rc := core.NewRunContext(
		context.Background(),
		"sess-x",
		"run-x",
		core.AgentInfo{Name: "Agent1", Type: "llm"},
		*core.NewTextContent("user", "hello"),
		10,
		emit,
		nil,
		core.NewSession("sess-x"),
		nil,
		nil,
		nil,
		logging.NoOpLogger{},
	)

	return core.NewToolContext(rc, "fc-1")
}

func sumParameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"a": map[string]any{"type": "number"},
			"b": map[string]any{"type": "number"},
		},
		"required": []string{"a", "b"},
	}
}

func TestFunctionTool_Call(t *testing.T) {
	sum := NewFunctionTool("calculate_sum", "Calculate the sum of two numbers", sumParameters(),
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			return args["a"].(float64) + args["b"].(float64), nil
		})

	result, err := sum.Call(newToolContextForTest(t), map[string]any{"a": 2.0, "b": 3.0})
	require.NoError(t, err)
	assert.Equal(t, 5.0, result)
}

func TestFunctionTool_ValidationError(t *testing.T) {
	sum := NewFunctionTool("calculate_sum", "Calculate the sum of two numbers", sumParameters(),
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			t.Fatal("fn must not run on invalid args")
			return nil, nil
		})

	_, err := sum.Call(newToolContextForTest(t), map[string]any{"a": 2.0})
	require.Error(t, err)

	toolErr, ok := err.(*ToolError)
	require.True(t, ok)
	assert.Equal(t, "VALIDATION_ERROR", toolErr.Code)
	assert.Equal(t, "calculate_sum", toolErr.Tool)
}

func TestFunctionTool_ExecutionError(t *testing.T) {
	boom := NewFunctionTool("boom", "Always fails", map[string]any{"type": "object"},
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			return nil, fmt.Errorf("kaboom")
		})

	_, err := boom.Call(newToolContextForTest(t), map[string]any{})
	require.Error(t, err)

	toolErr, ok := err.(*ToolError)
	require.True(t, ok)
	assert.Equal(t, "EXECUTION_ERROR", toolErr.Code)
	assert.Equal(t, "kaboom", toolErr.Message)
}

func TestFunctionTool_ToolErrorPassthrough(t *testing.T) {
	custom := NewToolError("custom", "rate limited", "RATE_LIMITED")
	failing := NewFunctionTool("custom", "Fails with custom code", map[string]any{"type": "object"},
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			return nil, custom
		})

	_, err := failing.Call(newToolContextForTest(t), map[string]any{})
	assert.Same(t, custom, err)
}

func TestTransferToAgentTool(t *testing.T) {
	tc := newToolContextForTest(t)
	transfer := NewTransferToAgentTool()

	result, err := transfer.Call(tc, map[string]any{"agent": "Researcher"})
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"transferred": true, "agent": "Researcher"}, result)
	require.NotNil(t, tc.Actions().TransferToAgent)
	assert.Equal(t, "Researcher", *tc.Actions().TransferToAgent)
}

func TestTransferToAgentTool_MissingAgent(t *testing.T) {
	transfer := NewTransferToAgentTool()

	_, err := transfer.Call(newToolContextForTest(t), map[string]any{})
	assert.Error(t, err)
}

func TestStateManagerTool_SetAndGetState(t *testing.T) {
	tc := newToolContextForTest(t)
	sm := NewStateManagerTool()

	_, err := sm.Call(tc, map[string]any{"operation": "set_state", "key": "topic", "value": "go"})
	require.NoError(t, err)

	result, err := sm.Call(tc, map[string]any{"operation": "get_state", "key": "topic"})
	require.NoError(t, err)

	got := result.(map[string]any)
	assert.Equal(t, true, got["exists"])
	assert.Equal(t, "go", got["value"])
}

func TestStateManagerTool_Escalate(t *testing.T) {
	tc := newToolContextForTest(t)
	sm := NewStateManagerTool()

	_, err := sm.Call(tc, map[string]any{"operation": "escalate"})
	require.NoError(t, err)

	require.NotNil(t, tc.Actions().Escalate)
	assert.True(t, *tc.Actions().Escalate)
}

func TestStateManagerTool_UnknownOperation(t *testing.T) {
	sm := NewStateManagerTool()

	_, err := sm.Call(newToolContextForTest(t), map[string]any{"operation": "frobnicate"})
	assert.Error(t, err)
}

type fakeExecutor struct {
	lastLanguage string
	lastSnippet  string
	result       *code.Result
	err          error
}

func (f *fakeExecutor) Execute(_ context.Context, language, snippet string) (*code.Result, error) {
	f.lastLanguage = language
	f.lastSnippet = snippet
	return f.result, f.err
}

func TestCodeExecutionTool_Success(t *testing.T) {
	exec := &fakeExecutor{result: &code.Result{Stdout: "42\n"}}
	execute := NewCodeExecutionTool(exec)

	result, err := execute.Call(newToolContextForTest(t), map[string]any{
		"code": "```python\nprint(6 * 7)\n```",
	})
	require.NoError(t, err)

	got := result.(map[string]any)
	assert.Equal(t, "Success", got["outcome"])
	assert.Equal(t, "42\n", got["stdout"])
	assert.Contains(t, got["summary"], "Execution Outcome: Success")

	assert.Equal(t, "python", exec.lastLanguage)
	assert.Equal(t, "print(6 * 7)", exec.lastSnippet)
}

func TestCodeExecutionTool_Failure(t *testing.T) {
	exec := &fakeExecutor{result: &code.Result{Stderr: "NameError: x", ExitCode: 1}}
	execute := NewCodeExecutionTool(exec)

	result, err := execute.Call(newToolContextForTest(t), map[string]any{
		"code":     "print(x)",
		"language": "python",
	})
	require.NoError(t, err)

	got := result.(map[string]any)
	assert.Equal(t, "Failure", got["outcome"])
	assert.Equal(t, 1, got["exit_code"])
	assert.Contains(t, got["summary"], "NameError")
}

func TestCodeExecutionTool_MissingCode(t *testing.T) {
	execute := NewCodeExecutionTool(&fakeExecutor{})

	_, err := execute.Call(newToolContextForTest(t), map[string]any{})
	assert.Error(t, err)
}

func TestToolError_Error(t *testing.T) {
	withCode := NewToolError("web_search", "api down", "EXECUTION_ERROR")
	assert.Equal(t, "tool error [EXECUTION_ERROR] in web_search: api down", withCode.Error())

	noCode := &ToolError{Tool: "web_search", Message: "api down"}
	assert.Equal(t, "tool error in web_search: api down", noCode.Error())
}
