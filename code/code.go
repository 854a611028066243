// Package code provides pluggable execution of model generated code snippets.
package code

import "context"

// Result captures the outcome of a single code execution.
type Result struct {
	// Stdout holds the captured standard output, possibly truncated.
	Stdout string `json:"stdout"`
	// Stderr holds the captured standard error, possibly truncated.
	Stderr string `json:"stderr"`
	// ExitCode is the process exit code; 0 means success.
	ExitCode int `json:"exit_code"`
}

// Success reports whether the execution completed with a zero exit code.
func (r *Result) Success() bool { return r.ExitCode == 0 }

// Executor defines the interface for executing code snippets.
type Executor interface {
	// Execute runs the given code snippet in the named language and returns
	// the captured result. A non-zero exit code is reported via the Result,
	// not the error; the error covers setup and timeout failures.
	Execute(ctx context.Context, language, code string) (*Result, error)
}
