package code

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"
)

// LocalOptions configures a LocalExecutor.
type LocalOptions struct {
	// Timeout bounds a single execution. Zero means the 30s default.
	Timeout time.Duration
	// MaxOutputBytes caps captured stdout and stderr individually. Zero means
	// the 64KiB default.
	MaxOutputBytes int
	// WorkDir is the directory snippets run in. Empty means a fresh temp
	// directory per execution.
	WorkDir string
}

// LocalExecutor runs snippets as subprocesses on the local machine. It
// supports python and bash; snippets are written to a temp file and executed
// with the matching interpreter.
//
// Local execution runs untrusted model output with the privileges of the
// current process. Use it for trusted environments only.
type LocalExecutor struct {
	opts LocalOptions
}

// NewLocalExecutor constructs a LocalExecutor.
func NewLocalExecutor(optFns ...func(o *LocalOptions)) *LocalExecutor {
	opts := LocalOptions{
		Timeout:        30 * time.Second,
		MaxOutputBytes: 64 * 1024,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &LocalExecutor{opts: opts}
}

// Execute implements Executor.
func (e *LocalExecutor) Execute(ctx context.Context, language, snippet string) (*Result, error) {
	interpreter, ext, err := resolveInterpreter(language)
	if err != nil {
		return nil, err
	}

	dir := e.opts.WorkDir
	if dir == "" {
		tmp, err := os.MkdirTemp("", "agentpipe-exec-*")
		if err != nil {
			return nil, fmt.Errorf("create exec dir: %w", err)
		}
		defer os.RemoveAll(tmp)
		dir = tmp
	}

	file := filepath.Join(dir, "snippet"+ext)
	if err := os.WriteFile(file, []byte(snippet), 0o600); err != nil {
		return nil, fmt.Errorf("write snippet: %w", err)
	}

	execCtx, cancel := context.WithTimeout(ctx, e.opts.Timeout)
	defer cancel()

	cmd := exec.CommandContext(execCtx, interpreter, file)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()

	if execCtx.Err() == context.DeadlineExceeded {
		return nil, fmt.Errorf("execution timed out after %s", e.opts.Timeout)
	}

	result := &Result{
		Stdout: truncate(stdout.String(), e.opts.MaxOutputBytes),
		Stderr: truncate(stderr.String(), e.opts.MaxOutputBytes),
	}

	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		return nil, fmt.Errorf("run %s: %w", interpreter, runErr)
	}

	return result, nil
}

func resolveInterpreter(language string) (interpreter, ext string, err error) {
	switch language {
	case "python", "python3", "py", "":
		return "python3", ".py", nil
	case "bash", "sh", "shell":
		return "bash", ".sh", nil
	default:
		return "", "", fmt.Errorf("unsupported language: %s", language)
	}
}

func truncate(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	return s[:limit] + "\n... (output truncated)"
}
