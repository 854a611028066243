package agent

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentpipe/core"
)

// scriptedAgent emits one assistant event per Run call, taking its text from
// a script indexed by call count.
type scriptedAgent struct {
	BaseAgent
	script   []string
	escalate map[int]bool // call index -> escalate after emitting
	calls    int
	err      error
}

func newScriptedAgent(name string, script ...string) *scriptedAgent {
	return &scriptedAgent{
		BaseAgent: NewBaseAgent(name),
		script:    script,
		escalate:  map[int]bool{},
	}
}

func (s *scriptedAgent) Run(rc *core.RunContext) error {
	idx := s.calls
	s.calls++

	if s.err != nil {
		return s.err
	}

	text := "done"
	if idx < len(s.script) {
		text = s.script[idx]
	}

	ev := core.NewMessageEvent(s.Name(), text)
	ev.RunID = rc.RunID
	if s.escalate[idx] {
		escalate := true
		ev.Actions.Escalate = &escalate
	}

	return rc.EmitEvent(ev)
}

func TestNewLoopAgent_Defaults(t *testing.T) {
	child := newScriptedAgent("Child")
	agent := NewLoopAgent("Loop Agent", child)

	assert.Equal(t, "Loop Agent", agent.Name())
	assert.Equal(t, 100, agent.maxIters)
	assert.True(t, agent.stopOnError)
	assert.Nil(t, agent.predicate)
}

func TestLoopAgent_MaxIters(t *testing.T) {
	child := newScriptedAgent("Child")
	agent := NewLoopAgent("Loop Agent", child, WithMaxIters(3))

	rc, _ := newRunContextForTest("Loop Agent", "loop")

	err := agent.Run(rc)
	require.NoError(t, err)
	assert.Equal(t, 3, child.calls)
}

func TestLoopAgent_PredicateStopsLoop(t *testing.T) {
	child := newScriptedAgent("Critic", "REVISE: tighten intro", "REVISE: fix typo", "APPROVED")
	agent := NewLoopAgent("Loop Agent", child,
		WithMaxIters(10),
		WithPredicate(func(output string) bool {
			return strings.Contains(output, "APPROVED")
		}),
	)

	rc, _ := newRunContextForTest("Loop Agent", "loop")

	err := agent.Run(rc)
	require.NoError(t, err)
	assert.Equal(t, 3, child.calls)
}

func TestLoopAgent_EscalationStopsLoop(t *testing.T) {
	child := newScriptedAgent("Child", "working", "giving up")
	child.escalate[1] = true

	agent := NewLoopAgent("Loop Agent", child, WithMaxIters(10))

	rc, emit := newRunContextForTest("Loop Agent", "loop")

	err := agent.Run(rc)
	require.NoError(t, err)
	assert.Equal(t, 2, child.calls)

	// The escalation event is forwarded to the parent.
	close(emit)
	var sawEscalation bool
	for ev := range emit {
		if ev.Actions.Escalate != nil && *ev.Actions.Escalate {
			sawEscalation = true
		}
	}
	assert.True(t, sawEscalation)
}

// haltingAgent emits an escalation event and then blocks in WaitForResume
// before returning, the way flow-driven agents do after non-partial events.
type haltingAgent struct {
	BaseAgent
	finished bool
}

func (a *haltingAgent) Run(rc *core.RunContext) error {
	ev := core.NewMessageEvent(a.Name(), "giving up")
	ev.RunID = rc.RunID
	escalate := true
	ev.Actions.Escalate = &escalate

	if err := rc.EmitEvent(ev); err != nil {
		return err
	}
	if err := rc.WaitForResume(); err != nil {
		return err
	}

	a.finished = true
	return nil
}

func TestLoopAgent_EscalationResumesWaitingChild(t *testing.T) {
	child := &haltingAgent{BaseAgent: NewBaseAgent("Child")}
	agent := NewLoopAgent("Loop Agent", child, WithMaxIters(5))

	rc, _ := newRunContextForTest("Loop Agent", "loop")

	errCh := make(chan error, 1)
	go func() { errCh <- agent.Run(rc) }()

	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not terminate after child escalated")
	}

	assert.True(t, child.finished)
}

func TestLoopAgent_StopOnError(t *testing.T) {
	child := newScriptedAgent("Child")
	child.err = fmt.Errorf("boom")

	agent := NewLoopAgent("Loop Agent", child, WithMaxIters(5))

	rc, _ := newRunContextForTest("Loop Agent", "loop")

	err := agent.Run(rc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.Equal(t, 1, child.calls)
}

func TestLoopAgent_ContinueOnError(t *testing.T) {
	child := newScriptedAgent("Child")
	child.err = fmt.Errorf("boom")

	agent := NewLoopAgent("Loop Agent", child, WithMaxIters(3), WithStopOnError(false))

	rc, _ := newRunContextForTest("Loop Agent", "loop")

	err := agent.Run(rc)
	require.NoError(t, err)
	assert.Equal(t, 3, child.calls)
}

func TestCreateEscalationEvent(t *testing.T) {
	content := &core.Content{
		Role:  "assistant",
		Parts: []core.Part{core.TextPart{Text: "cannot complete"}},
	}

	ev := CreateEscalationEvent("run-1", "Child", content)

	assert.Equal(t, "run-1", ev.RunID)
	assert.Equal(t, "Child", ev.Author)
	require.NotNil(t, ev.Actions.Escalate)
	assert.True(t, *ev.Actions.Escalate)
	assert.Equal(t, "cannot complete", ev.Text())
}
