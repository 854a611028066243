package flow

import (
	"fmt"
	"testing"
	"time"

	"github.com/hupe1980/agentpipe/core"
	"github.com/hupe1980/agentpipe/tool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// slowTool returns its canned result after an optional delay. It can also
// stage a state delta or panic to exercise executor recovery.
type slowTool struct {
	name       string
	delay      time.Duration
	result     any
	stateKey   string
	stateValue any
	panics     bool
}

func (s *slowTool) Name() string               { return s.name }
func (s *slowTool) Description() string        { return "test tool" }
func (s *slowTool) Parameters() map[string]any { return map[string]any{"type": "object"} }

func (s *slowTool) Call(toolCtx *core.ToolContext, args map[string]any) (any, error) {
	if s.panics {
		panic("tool exploded")
	}
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	if s.stateKey != "" {
		toolCtx.SetState(s.stateKey, s.stateValue)
	}
	return s.result, nil
}

func registryOf(tools ...*slowTool) map[string]tool.Tool {
	reg := make(map[string]tool.Tool, len(tools))
	for _, t := range tools {
		reg[t.name] = t
	}
	return reg
}

func callsFor(names ...string) []core.FunctionCall {
	calls := make([]core.FunctionCall, len(names))
	for i, n := range names {
		calls[i] = core.FunctionCall{ID: fmt.Sprintf("fc-%d", i), Name: n, Arguments: "{}"}
	}
	return calls
}

func runExecutor(t *testing.T, cfg FunctionExecutorConfig, reg map[string]tool.Tool, calls []core.FunctionCall) []core.Event {
	t.Helper()

	rc := newFlowRunContext("A")
	agent := &fakeAgent{name: "A"}

	var emitted []core.Event
	emit := func(ev core.Event) error {
		emitted = append(emitted, ev)
		return nil
	}

	NewParallelFunctionExecutor(cfg).Execute(rc, agent, reg, calls, emit)
	return emitted
}

func TestFunctionExecutor_SingleCall(t *testing.T) {
	reg := registryOf(&slowTool{name: "alpha", result: "ok"})
	events := runExecutor(t, FunctionExecutorConfig{}, reg, callsFor("alpha"))

	require.Len(t, events, 1)
	responses := events[0].GetFunctionResponses()
	require.Len(t, responses, 1)
	assert.Equal(t, "alpha", responses[0].Name)
	assert.Equal(t, "fc-0", responses[0].ID)
}

func TestFunctionExecutor_PreserveOrder(t *testing.T) {
	// The first tool is slowest; ordered emission must still match the
	// original call order.
	reg := registryOf(
		&slowTool{name: "alpha", delay: 40 * time.Millisecond, result: "a"},
		&slowTool{name: "beta", delay: 10 * time.Millisecond, result: "b"},
		&slowTool{name: "gamma", result: "c"},
	)
	events := runExecutor(t, FunctionExecutorConfig{PreserveOrder: true}, reg, callsFor("alpha", "beta", "gamma"))

	require.Len(t, events, 3)
	for i, want := range []string{"alpha", "beta", "gamma"} {
		responses := events[i].GetFunctionResponses()
		require.Len(t, responses, 1)
		assert.Equal(t, want, responses[0].Name)
	}
}

func TestFunctionExecutor_UnorderedEmitsAll(t *testing.T) {
	reg := registryOf(
		&slowTool{name: "alpha", delay: 20 * time.Millisecond, result: "a"},
		&slowTool{name: "beta", result: "b"},
	)
	events := runExecutor(t, FunctionExecutorConfig{PreserveOrder: false}, reg, callsFor("alpha", "beta"))

	require.Len(t, events, 2)
	seen := map[string]bool{}
	for _, ev := range events {
		for _, fr := range ev.GetFunctionResponses() {
			seen[fr.Name] = true
		}
	}
	assert.True(t, seen["alpha"] && seen["beta"])
}

func TestFunctionExecutor_PanicRecovery(t *testing.T) {
	reg := registryOf(
		&slowTool{name: "boom", panics: true},
		&slowTool{name: "safe", result: "ok"},
	)
	events := runExecutor(t, FunctionExecutorConfig{PreserveOrder: true}, reg, callsFor("boom", "safe"))

	require.Len(t, events, 2)

	boomResp := events[0].GetFunctionResponses()[0]
	assert.Contains(t, boomResp.Error, "panic recovered")

	safeResp := events[1].GetFunctionResponses()[0]
	assert.Equal(t, "safe", safeResp.Name)
}

func TestFunctionExecutor_UnknownTool(t *testing.T) {
	events := runExecutor(t, FunctionExecutorConfig{}, map[string]tool.Tool{}, callsFor("missing"))

	require.Len(t, events, 1)
	resp := events[0].GetFunctionResponses()[0]
	assert.Contains(t, resp.Error, "not found")
}

func TestFunctionExecutor_AppliesToolActions(t *testing.T) {
	reg := registryOf(&slowTool{name: "writer", result: "done", stateKey: "written", stateValue: "yes"})
	events := runExecutor(t, FunctionExecutorConfig{}, reg, callsFor("writer"))

	require.Len(t, events, 1)
	assert.Equal(t, "yes", events[0].Actions.StateDelta["written"])
}
