package code

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalExecutor_Bash(t *testing.T) {
	e := NewLocalExecutor()

	result, err := e.Execute(context.Background(), "bash", "echo hello")
	require.NoError(t, err)

	assert.True(t, result.Success())
	assert.Equal(t, "hello\n", result.Stdout)
	assert.Empty(t, result.Stderr)
}

func TestLocalExecutor_NonZeroExit(t *testing.T) {
	e := NewLocalExecutor()

	result, err := e.Execute(context.Background(), "bash", "echo boom >&2; exit 3")
	require.NoError(t, err)

	assert.False(t, result.Success())
	assert.Equal(t, 3, result.ExitCode)
	assert.Contains(t, result.Stderr, "boom")
}

func TestLocalExecutor_Timeout(t *testing.T) {
	e := NewLocalExecutor(func(o *LocalOptions) {
		o.Timeout = 100 * time.Millisecond
	})

	_, err := e.Execute(context.Background(), "bash", "sleep 5")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
}

func TestLocalExecutor_OutputTruncation(t *testing.T) {
	e := NewLocalExecutor(func(o *LocalOptions) {
		o.MaxOutputBytes = 16
	})

	result, err := e.Execute(context.Background(), "bash", "printf 'aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa'")
	require.NoError(t, err)

	assert.True(t, strings.HasSuffix(result.Stdout, "(output truncated)"))
}

func TestLocalExecutor_UnsupportedLanguage(t *testing.T) {
	e := NewLocalExecutor()

	_, err := e.Execute(context.Background(), "cobol", "DISPLAY 'HI'.")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported language")
}
