package remote

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hupe1980/agentpipe/agent"
	"github.com/hupe1980/agentpipe/core"
)

// ProxyAgentOptions configures a ProxyAgent.
type ProxyAgentOptions struct {
	// Token is sent as a bearer token when non-empty.
	Token string
	// HTTPClient overrides the default client (no timeout; SSE streams are
	// long-lived).
	HTTPClient *http.Client
}

// ProxyAgent is a core.Agent whose execution happens in a remote agentpipe
// server. Events streamed back over SSE are re-emitted into the local run, so
// a remote agent composes with local topologies transparently.
type ProxyAgent struct {
	agent.BaseAgent

	baseURL    string
	remoteName string
	token      string
	client     *http.Client
}

// NewProxyAgent creates a proxy for the remote agent named remoteName served
// at baseURL (e.g. "http://localhost:8080").
func NewProxyAgent(name, baseURL, remoteName string, optFns ...func(o *ProxyAgentOptions)) *ProxyAgent {
	opts := ProxyAgentOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}

	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{}
	}

	p := &ProxyAgent{
		BaseAgent:  agent.NewBaseAgent(name),
		baseURL:    strings.TrimRight(baseURL, "/"),
		remoteName: remoteName,
		token:      opts.Token,
		client:     client,
	}
	p.SetDescription(fmt.Sprintf("Proxy for remote agent %s", remoteName))
	return p
}

// AgentType categorizes this implementation for run context metadata.
func (p *ProxyAgent) AgentType() string { return "remote" }

// Run sends the user content to the remote server and re-emits the streamed
// events under the local run id.
func (p *ProxyAgent) Run(rc *core.RunContext) error {
	body, err := json.Marshal(map[string]string{
		"session_id": rc.SessionID,
		"message":    rc.UserContent.FirstText(),
	})
	if err != nil {
		return fmt.Errorf("failed to encode run request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/agents/%s/runs", p.baseURL, p.remoteName)

	req, err := http.NewRequestWithContext(rc.Context, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build run request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	if p.token != "" {
		req.Header.Set("Authorization", "Bearer "+p.token)
	}

	start := time.Now()
	rc.LogInfo("remote.proxy.run.start", "agent", p.Name(), "remote", p.remoteName, "url", url)

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("remote agent request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("remote agent returned status %d", resp.StatusCode)
	}

	if err := p.consumeStream(rc, resp); err != nil {
		return err
	}

	rc.LogInfo("remote.proxy.run.complete", "agent", p.Name(), "duration_ms", time.Since(start).Milliseconds())
	return nil
}

// consumeStream parses the SSE stream and re-emits remote events locally.
func (p *ProxyAgent) consumeStream(rc *core.RunContext, resp *http.Response) error {
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var eventName string
	var data strings.Builder

	dispatch := func() error {
		defer func() { eventName = ""; data.Reset() }()

		switch eventName {
		case "event":
			var ev core.Event
			if err := json.Unmarshal([]byte(data.String()), &ev); err != nil {
				return fmt.Errorf("failed to decode remote event: %w", err)
			}
			// Rebind the event to the local run so downstream processing
			// attributes it correctly.
			ev.RunID = rc.RunID
			if err := rc.EmitEvent(ev); err != nil {
				return err
			}
			if !ev.IsPartial() {
				return rc.WaitForResume()
			}
			return nil
		case "error":
			var payload struct {
				Error string `json:"error"`
			}
			if err := json.Unmarshal([]byte(data.String()), &payload); err != nil {
				return fmt.Errorf("remote agent failed")
			}
			return fmt.Errorf("remote agent failed: %s", payload.Error)
		default:
			// "done" and unknown event types end or skip silently.
			return nil
		}
	}

	for scanner.Scan() {
		line := scanner.Text()

		switch {
		case strings.HasPrefix(line, "event: "):
			eventName = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data.WriteString(strings.TrimPrefix(line, "data: "))
		case line == "":
			if eventName != "" {
				if err := dispatch(); err != nil {
					return err
				}
			}
		}
	}

	return scanner.Err()
}
