package runner

import (
	"context"
	"testing"
	"time"

	"github.com/hupe1980/agentpipe/agent"
	"github.com/hupe1980/agentpipe/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// echoAgent emits one assistant message per run, optionally staging a state
// delta first.
type echoAgent struct {
	name     string
	reply    string
	stateKey string
	stateVal any
	runErr   error
	block    bool
}

func (a *echoAgent) Name() string                       { return a.name }
func (a *echoAgent) Description() string                { return "test agent" }
func (a *echoAgent) Start(rc *core.RunContext) error    { return nil }
func (a *echoAgent) Stop(rc *core.RunContext) error     { return nil }
func (a *echoAgent) SetSubAgents(c ...core.Agent) error { return nil }
func (a *echoAgent) SubAgents() []core.Agent            { return nil }
func (a *echoAgent) Parent() core.Agent                 { return nil }
func (a *echoAgent) FindAgent(name string) core.Agent   { return nil }
func (a *echoAgent) AgentType() string                  { return "llm" }

func (a *echoAgent) Run(rc *core.RunContext) error {
	if a.runErr != nil {
		return a.runErr
	}
	if a.block {
		<-rc.Done()
		return rc.Err()
	}

	if a.stateKey != "" {
		rc.SetState(a.stateKey, a.stateVal)
	}

	ev := core.NewMessageEvent(a.name, a.reply)
	ev.RunID = rc.RunID
	if err := rc.EmitEvent(ev); err != nil {
		return err
	}
	return rc.WaitForResume()
}

func TestRunner_InvokeUnknownAgent(t *testing.T) {
	r := New()

	_, _, _, err := r.Invoke(context.Background(), "s1", "ghost", *core.NewTextContent("user", "hi"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not registered")
}

func TestRunner_InvokeSyncCollectsEvents(t *testing.T) {
	r := New()
	r.Register(&echoAgent{name: "Echo", reply: "pong"})

	runID, events, err := r.InvokeSync(context.Background(), "s1", "Echo", *core.NewTextContent("user", "ping"))
	require.NoError(t, err)
	assert.NotEmpty(t, runID)

	require.Len(t, events, 1)
	assert.Equal(t, "pong", events[0].Text())
	assert.Equal(t, "Echo", events[0].Author)
	assert.Equal(t, runID, events[0].RunID)
}

func TestRunner_PersistsHistory(t *testing.T) {
	r := New()
	r.Register(&echoAgent{name: "Echo", reply: "pong"})

	_, _, err := r.InvokeSync(context.Background(), "s1", "Echo", *core.NewTextContent("user", "ping"))
	require.NoError(t, err)
	_, _, err = r.InvokeSync(context.Background(), "s1", "Echo", *core.NewTextContent("user", "ping again"))
	require.NoError(t, err)

	sess, err := r.sessionStore.Get("s1")
	require.NoError(t, err)

	// Two user events plus two agent replies.
	events := sess.GetEvents()
	require.Len(t, events, 4)
	assert.Equal(t, "ping", events[0].Text())
	assert.Equal(t, "pong", events[1].Text())
	assert.Equal(t, "ping again", events[2].Text())
}

func TestRunner_AppliesStateDeltas(t *testing.T) {
	r := New()
	r.Register(&echoAgent{name: "Writer", reply: "done", stateKey: "generated_code", stateVal: "x := 1"})

	_, _, err := r.InvokeSync(context.Background(), "s1", "Writer", *core.NewTextContent("user", "write"))
	require.NoError(t, err)

	sess, err := r.sessionStore.Get("s1")
	require.NoError(t, err)

	v, ok := sess.GetState("generated_code")
	require.True(t, ok)
	assert.Equal(t, "x := 1", v)
}

func TestRunner_ParallelFanOutCompletes(t *testing.T) {
	r := New()

	fanOut := agent.NewParallelAgent("FanOut", 5*time.Second,
		&echoAgent{name: "A", reply: "notes from A"},
		&echoAgent{name: "B", reply: "notes from B"},
	)
	r.Register(fanOut)

	type result struct {
		events []core.Event
		err    error
	}
	resCh := make(chan result, 1)
	go func() {
		_, events, err := r.InvokeSync(context.Background(), "s1", "FanOut", *core.NewTextContent("user", "research"))
		resCh <- result{events: events, err: err}
	}()

	select {
	case res := <-resCh:
		require.NoError(t, res.err)
		require.Len(t, res.events, 2)
		texts := map[string]bool{}
		for _, ev := range res.events {
			require.NotNil(t, ev.Branch)
			texts[ev.Text()] = true
		}
		assert.True(t, texts["notes from A"])
		assert.True(t, texts["notes from B"])
	case <-time.After(3 * time.Second):
		t.Fatal("parallel fan-out run never completed")
	}
}

func TestRunner_RunErrorSurfaced(t *testing.T) {
	r := New()
	r.Register(&echoAgent{name: "Broken", runErr: assert.AnError})

	_, _, err := r.InvokeSync(context.Background(), "s1", "Broken", *core.NewTextContent("user", "go"))
	require.Error(t, err)
	assert.ErrorIs(t, err, assert.AnError)
}

func TestRunner_Cancel(t *testing.T) {
	r := New()
	r.Register(&echoAgent{name: "Sleeper", block: true})

	runID, eventsCh, errorsCh, err := r.Invoke(context.Background(), "s1", "Sleeper", *core.NewTextContent("user", "wait"))
	require.NoError(t, err)

	require.NoError(t, r.Cancel(runID))

	select {
	case <-eventsCh:
	case <-time.After(2 * time.Second):
		t.Fatal("events channel not closed after cancel")
	}
	<-errorsCh

	// The run is gone; cancelling again reports it.
	assert.Eventually(t, func() bool {
		return r.Cancel(runID) != nil
	}, time.Second, 10*time.Millisecond)
}

func TestRunner_RegisterReplaces(t *testing.T) {
	r := New()
	r.Register(&echoAgent{name: "Echo", reply: "first"})
	r.Register(&echoAgent{name: "Echo", reply: "second"})

	_, events, err := r.InvokeSync(context.Background(), "s1", "Echo", *core.NewTextContent("user", "hi"))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "second", events[0].Text())
}
