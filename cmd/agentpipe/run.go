package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hupe1980/agentpipe/agent"
	"github.com/hupe1980/agentpipe/config"
	"github.com/hupe1980/agentpipe/core"
	"github.com/hupe1980/agentpipe/tool"
)

var runCmd = &cobra.Command{
	Use:   "run [prompt]",
	Short: "Run a single agent with the given prompt",
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

		instruction, _ := cmd.Flags().GetString("instruction")
		sessionID, _ := cmd.Flags().GetString("session")
		stream, _ := cmd.Flags().GetBool("stream")
		plain, _ := cmd.Flags().GetBool("plain")
		search, _ := cmd.Flags().GetBool("search")

		tools := map[string]tool.Tool{}
		if search {
			if cfg.Search.APIKey == "" {
				return errors.New("web search requires BRAVE_API_KEY or search.api_key in the config file")
			}
			ws, err := tool.NewWebSearchTool(cfg.Search.APIKey)
			if err != nil {
				return err
			}
			tools[ws.Name()] = ws
		}

		assistant := agent.NewLLMAgent("Assistant", llm, func(o *agent.LLMAgentOptions) {
			o.Instruction = agent.NewInstructionFromText(instruction)
			o.EnableStreaming = stream
			if len(tools) > 0 {
				o.Tools = tools
			}
		})
		pipe.RegisterAgent(assistant)

		userContent := *core.NewTextContent("user", args[0])

		if stream {
			_, events, errs, err := pipe.Invoke(cmd.Context(), sessionID, assistant.Name(), userContent)
			if err != nil {
				return err
			}
			for ev := range events {
				if ev.IsPartial() {
					fmt.Print(ev.Text())
					continue
				}
				fmt.Println()
			}
			return <-errs
		}

		_, events, err := pipe.InvokeSync(cmd.Context(), sessionID, assistant.Name(), userContent)
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
	runCmd.Flags().String("instruction", "You are a helpful assistant.", "system instruction for the agent")
	runCmd.Flags().String("session", "cli", "session id; reuse one to keep conversation history")
	runCmd.Flags().Bool("stream", false, "stream tokens as they are generated")
	runCmd.Flags().Bool("plain", false, "print raw text instead of rendered markdown")
	runCmd.Flags().Bool("search", false, "expose the web search tool to the agent")
}
