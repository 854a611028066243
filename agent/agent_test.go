package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/hupe1980/agentpipe/core"
	"github.com/hupe1980/agentpipe/logging"
)

// MockAgent for testing composite agents
type MockAgent struct {
	mock.Mock
	name string
}

func NewMockAgent(name string) *MockAgent {
	return &MockAgent{name: name}
}

func (m *MockAgent) Name() string { return m.name }

func (m *MockAgent) Run(rc *core.RunContext) error {
	args := m.Called(rc)
	return args.Error(0)
}

func (m *MockAgent) Start(rc *core.RunContext) error {
	args := m.Called(rc)
	return args.Error(0)
}

func (m *MockAgent) Stop(rc *core.RunContext) error {
	args := m.Called(rc)
	return args.Error(0)
}

func (m *MockAgent) SubAgents() []core.Agent {
	args := m.Called()
	return args.Get(0).([]core.Agent)
}

func (m *MockAgent) Description() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockAgent) SetSubAgents(children ...core.Agent) error {
	args := m.Called(children)
	return args.Error(0)
}

func (m *MockAgent) Parent() core.Agent {
	args := m.Called()
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).(core.Agent)
}

func (m *MockAgent) FindAgent(name string) core.Agent {
	args := m.Called(name)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).(core.Agent)
}

// newRunContextForTest builds a RunContext wired to buffered channels for
// composite agent tests.
func newRunContextForTest(name, agentType string) (*core.RunContext, chan core.Event) {
	emit := make(chan core.Event, 64)
	resume := make(chan struct{}, 64)

	rc := core.NewRunContext(
		context.Background(),
		"test-session",
		"test-run",
		core.AgentInfo{Name: name, Type: agentType},
		*core.NewTextContent("user", "test input"),
		10,
		emit,
		resume,
		core.NewSession("test-session"),
		nil,
		nil,
		nil,
		logging.NoOpLogger{},
	)

	return rc, emit
}

func TestNewEventID(t *testing.T) {
	eventID := core.NewID()
	assert.NotEmpty(t, eventID)
	assert.Len(t, eventID, 36) // UUID length
}

func TestBaseAgent_Hierarchy(t *testing.T) {
	parent := NewSequentialAgent("Parent")
	child1 := NewSequentialAgent("Child1")
	child2 := NewSequentialAgent("Child2")

	err := parent.SetSubAgents(child1, child2)
	assert.NoError(t, err)

	subs := parent.SubAgents()
	assert.Len(t, subs, 2)
	assert.NotNil(t, child1.Parent())

	found := parent.FindAgent("Child2")
	assert.NotNil(t, found)
	assert.Equal(t, "Child2", found.Name())

	assert.Nil(t, parent.FindAgent("Missing"))
}

func TestBaseAgent_StartStop(t *testing.T) {
	a := NewSequentialAgent("Lifecycle")
	rc, _ := newRunContextForTest("Lifecycle", "sequential")

	assert.NoError(t, a.Start(rc))
	assert.Error(t, a.Start(rc)) // already running
	assert.NoError(t, a.Stop(rc))
	assert.Error(t, a.Stop(rc)) // not running
}

func TestBuildBranchPath(t *testing.T) {
	assert.Equal(t, "child", buildBranchPath("", "child"))
	assert.Equal(t, "parent", buildBranchPath("parent", ""))
	assert.Equal(t, "parent.child", buildBranchPath("parent", "child"))
}
