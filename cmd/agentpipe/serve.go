package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/hupe1980/agentpipe/agent"
	"github.com/hupe1980/agentpipe/config"
	"github.com/hupe1980/agentpipe/remote"
	"github.com/hupe1980/agentpipe/runner"
	"github.com/hupe1980/agentpipe/tool"
	"github.com/hupe1980/agentpipe/trace"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve agents over HTTP for remote consumption",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		logger := newLogger()

		if cfg.Trace.Enabled {
			shutdown, err := trace.Init(cmd.Context(), trace.Config{
				Endpoint: cfg.Trace.Endpoint,
				Insecure: cfg.Trace.Insecure,
				Logger:   logger,
			})
			if err != nil {
				return err
			}
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = shutdown(ctx)
			}()
		}

		llm, err := newModel(cfg, providerFlag(cmd))
		if err != nil {
			return err
		}

		store, closeStore, err := newSessionStore(cfg)
		if err != nil {
			return err
		}
		defer closeStore()

		run := runner.New(func(o *runner.Options) {
			o.SessionStore = store
			o.Logger = logger
		})

		server := remote.NewServer(run, func(o *remote.ServerOptions) {
			o.Token = cfg.Server.Token
			o.Logger = logger
		})

		assistant := agent.NewLLMAgent("Assistant", llm, func(o *agent.LLMAgentOptions) {
			o.Instruction = agent.NewInstructionFromText("You are a helpful assistant.")
		})
		server.RegisterAgent(assistant)

		if cfg.Search.APIKey != "" {
			ws, err := tool.NewWebSearchTool(cfg.Search.APIKey)
			if err != nil {
				return err
			}
			researcher := agent.NewLLMAgent("Researcher", llm, func(o *agent.LLMAgentOptions) {
				o.Instruction = agent.NewInstructionFromText(
					"Answer using current information. Use the web search tool before answering.")
				o.Tools = map[string]tool.Tool{ws.Name(): ws}
			})
			server.RegisterAgent(researcher)
		}

		return server.ListenAndServe(cfg.Server.Addr)
	},
}
