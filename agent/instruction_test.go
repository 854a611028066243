package agent

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentpipe/core"
)

func TestInstruction_Static(t *testing.T) {
	instr := NewInstructionFromText("You are a helpful assistant.")

	assert.True(t, instr.IsStatic())

	text, err := instr.Resolve(nil)
	require.NoError(t, err)
	assert.Equal(t, "You are a helpful assistant.", text)
}

func TestInstruction_FromFunc(t *testing.T) {
	rc, _ := newRunContextForTest("Agent1", "llm")
	rc.SetState("topic", "compilers")

	instr := NewInstructionFromFunc(func(rc *core.RunContext) (string, error) {
		topic, _ := rc.GetState("topic")
		return fmt.Sprintf("Explain %v.", topic), nil
	})

	assert.False(t, instr.IsStatic())

	text, err := instr.Resolve(rc)
	require.NoError(t, err)
	assert.Equal(t, "Explain compilers.", text)
}

func TestInstruction_ProviderError(t *testing.T) {
	instr := NewInstructionFromProvider(Func(func(rc *core.RunContext) (string, error) {
		return "", assert.AnError
	}))

	_, err := instr.Resolve(nil)
	assert.ErrorIs(t, err, assert.AnError)
}
