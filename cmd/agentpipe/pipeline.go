package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/hupe1980/agentpipe/agent"
	"github.com/hupe1980/agentpipe/code"
	"github.com/hupe1980/agentpipe/config"
	"github.com/hupe1980/agentpipe/core"
	"github.com/hupe1980/agentpipe/tool"
)

var pipelineCmd = &cobra.Command{
	Use:   "pipeline [task]",
	Short: "Run the write-review-refactor-execute code pipeline",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		logger := newLogger()
		llm, err := newModel(cfg, providerFlag(cmd))
		if err != nil {
			return err
		}

		pipe, closeStore, err := newPipe(cfg, logger)
		if err != nil {
			return err
		}
		defer closeStore()

		writer := agent.NewLLMAgent("CodeWriter", llm, func(o *agent.LLMAgentOptions) {
			o.Instruction = agent.NewInstructionFromText(
				"Write a short Python script solving the user's request. Respond with only the code in a fenced block.")
			o.OutputKey = "generated_code"
		})

		reviewer := agent.NewLLMAgent("CodeReviewer", llm, func(o *agent.LLMAgentOptions) {
			o.Instruction = agent.NewInstructionFromText(
				"Review this code and list concrete problems or improvements:\n{{.generated_code}}")
			o.OutputKey = "review_comments"
		})

		refactorer := agent.NewLLMAgent("CodeRefactorer", llm, func(o *agent.LLMAgentOptions) {
			o.Instruction = agent.NewInstructionFromText(
				"Rewrite the code applying the review comments. Respond with only the final code in a fenced block.\nCode:\n{{.generated_code}}\nReview:\n{{.review_comments}}")
			o.OutputKey = "refactored_code"
		})

		executor := tool.NewCodeExecutionTool(code.NewLocalExecutor())
		interpreter := agent.NewLLMAgent("CodeInterpreter", llm, func(o *agent.LLMAgentOptions) {
			o.Instruction = agent.NewInstructionFromText(
				"Execute this code with the execute_code tool and summarize the outcome:\n{{.refactored_code}}")
			o.Tools = map[string]tool.Tool{executor.Name(): executor}
			o.OutputKey = "execution_summary"
		})

		pipeline := agent.NewSequentialAgent("CodePipeline", writer, reviewer, refactorer, interpreter)
		pipe.RegisterAgent(pipeline)

		plain, _ := cmd.Flags().GetBool("plain")
		sessionID := fmt.Sprintf("pipeline-%d", time.Now().Unix())

		_, events, err := pipe.InvokeSync(cmd.Context(), sessionID, pipeline.Name(),
			*core.NewTextContent("user", args[0]))
		if err != nil {
			return err
		}
		for _, ev := range events {
			printEvent(ev, !plain)
		}
		return nil
	},
}

func init() {
	pipelineCmd.Flags().Bool("plain", false, "print raw text instead of rendered markdown")
}
