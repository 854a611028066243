package main

import (
	"fmt"
	"os"
	"path/filepath"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/spf13/cobra"

	"github.com/hupe1980/agentpipe"
	"github.com/hupe1980/agentpipe/config"
	"github.com/hupe1980/agentpipe/core"
	"github.com/hupe1980/agentpipe/logging"
	"github.com/hupe1980/agentpipe/model"
	"github.com/hupe1980/agentpipe/model/anthropic"
	"github.com/hupe1980/agentpipe/model/gemini"
	"github.com/hupe1980/agentpipe/model/openai"
	"github.com/hupe1980/agentpipe/session"
	"github.com/hupe1980/agentpipe/trace"
)

func newLogger() logging.Logger {
	return logging.NewFromEnv("text", os.Stderr)
}

// newModel builds the model adapter for the selected provider. With tracing
// enabled the adapter is wrapped so every model call produces a span.
func newModel(cfg *config.Config, provider string) (model.Model, error) {
	if provider == "" {
		provider = cfg.DefaultProvider
	}
	p := cfg.Provider(provider)

	var m model.Model
	switch provider {
	case "openai":
		m = openai.NewModel(func(o *openai.Options) {
			if p.Model != "" {
				o.Model = p.Model
			}
			o.APIKey = p.APIKey
			o.BaseURL = p.BaseURL
		})
	case "anthropic":
		m = anthropic.NewModel(func(o *anthropic.Options) {
			if p.Model != "" {
				o.Model = anthropicsdk.Model(p.Model)
			}
			o.APIKey = p.APIKey
		})
	case "gemini":
		gm, err := gemini.NewModel(func(o *gemini.Options) {
			if p.Model != "" {
				o.Model = p.Model
			}
			o.APIKey = p.APIKey
		})
		if err != nil {
			return nil, err
		}
		m = gm
	default:
		return nil, fmt.Errorf("unknown provider %q", provider)
	}

	if cfg.Trace.Enabled {
		m = model.NewTraced(m, trace.Tracer())
	}
	return m, nil
}

// newSessionStore returns the configured session backend and a close func.
func newSessionStore(cfg *config.Config) (core.SessionStore, func() error, error) {
	switch cfg.Session.Backend {
	case "", "memory":
		return session.NewInMemoryStore(), func() error { return nil }, nil
	case "sqlite":
		if err := os.MkdirAll(filepath.Dir(cfg.Session.Path), 0o755); err != nil {
			return nil, nil, err
		}
		store, err := session.NewSQLiteStore(cfg.Session.Path)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown session backend %q", cfg.Session.Backend)
	}
}

// newPipe wires the façade from the loaded configuration. The returned close
// func releases the session backend.
func newPipe(cfg *config.Config, logger logging.Logger) (*agentpipe.AgentPipe, func() error, error) {
	store, closeStore, err := newSessionStore(cfg)
	if err != nil {
		return nil, nil, err
	}

	pipe := agentpipe.New(func(o *agentpipe.Options) {
		o.SessionStore = store
		o.Logger = logger
	})
	return pipe, closeStore, nil
}

func providerFlag(cmd *cobra.Command) string {
	v, _ := cmd.Flags().GetString("provider")
	return v
}

// formatToolCall renders a function call as a one-line summary. Arguments
// are already a serialized JSON payload.
func formatToolCall(fc core.FunctionCall) string {
	return fmt.Sprintf("⚙ %s(%s)", fc.Name, fc.Arguments)
}

// printEvent writes one agent event to stdout: tool calls and responses as
// styled one-liners, final text as rendered markdown.
func printEvent(ev core.Event, markdown bool) {
	for _, fc := range ev.GetFunctionCalls() {
		fmt.Println(toolStyle.Render(formatToolCall(fc)))
	}
	for _, fr := range ev.GetFunctionResponses() {
		if fr.Error != "" {
			fmt.Println(toolStyle.Render(fmt.Sprintf("⚙ %s failed: %s", fr.Name, fr.Error)))
			continue
		}
		fmt.Println(faintStyle.Render(fmt.Sprintf("⚙ %s done", fr.Name)))
	}

	if ev.IsPartial() || ev.Text() == "" {
		return
	}
	fmt.Println(authorStyle.Render(ev.Author))
	if markdown {
		fmt.Println(renderMarkdown(ev.Text()))
	} else {
		fmt.Println(ev.Text())
	}
}
