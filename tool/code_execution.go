package tool

import (
	"fmt"
	"strings"

	"github.com/hupe1980/agentpipe/code"
	"github.com/hupe1980/agentpipe/core"
	"github.com/hupe1980/agentpipe/internal/util"
)

// CodeExecutionTool runs model generated snippets through a code.Executor and
// reports the captured outcome back to the model.
type CodeExecutionTool struct {
	executor code.Executor
}

// NewCodeExecutionTool constructs a code execution tool backed by the given
// executor.
func NewCodeExecutionTool(executor code.Executor) *CodeExecutionTool {
	return &CodeExecutionTool{executor: executor}
}

func (t *CodeExecutionTool) Name() string { return "execute_code" }

func (t *CodeExecutionTool) Description() string {
	return "Execute a code snippet and return its output. Use this to run and verify code instead of guessing results."
}

func (t *CodeExecutionTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"code": map[string]any{
				"type":        "string",
				"description": "The code to execute. Markdown fences are stripped automatically.",
			},
			"language": map[string]any{
				"type":        "string",
				"enum":        []string{"python", "bash"},
				"description": "Language of the snippet (default: python)",
			},
		},
		"required": []string{"code"},
	}
}

// Call executes the snippet and returns a structured result. A failing
// snippet (non-zero exit) is a successful tool call; the outcome field tells
// the model what happened so it can self-correct.
func (t *CodeExecutionTool) Call(toolCtx *core.ToolContext, args map[string]any) (any, error) {
	raw, ok := args["code"].(string)
	if !ok || raw == "" {
		return nil, fmt.Errorf("missing required field 'code'")
	}

	language := "python"
	if l, ok := args["language"].(string); ok && l != "" {
		language = l
	}

	snippet := util.StripCodeFences(raw)

	result, err := t.executor.Execute(toolCtx.Context(), language, snippet)
	if err != nil {
		return nil, fmt.Errorf("code execution failed: %w", err)
	}

	outcome := "Success"
	if !result.Success() {
		outcome = "Failure"
	}

	var summary strings.Builder
	fmt.Fprintf(&summary, "Execution Outcome: %s (exit code %d)", outcome, result.ExitCode)
	if result.Stdout != "" {
		fmt.Fprintf(&summary, "\nStdout:\n%s", result.Stdout)
	}
	if result.Stderr != "" {
		fmt.Fprintf(&summary, "\nStderr:\n%s", result.Stderr)
	}

	return map[string]any{
		"outcome":   outcome,
		"exit_code": result.ExitCode,
		"stdout":    result.Stdout,
		"stderr":    result.Stderr,
		"summary":   summary.String(),
	}, nil
}
