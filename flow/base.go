package flow

import (
	"fmt"

	"github.com/hupe1980/agentpipe/core"
	"github.com/hupe1980/agentpipe/model"
)

// BaseFlow is a single-agent flow implementation that supports a
// request -> LLM -> (optional tool loop) cycle with pluggable pre/post
// processors. Tool batches run through a FunctionExecutor which preserves the
// original call order.
type BaseFlow struct {
	agent              FlowAgent
	requestProcessors  []RequestProcessor
	responseProcessors []ResponseProcessor
	functionExecutor   FunctionExecutor
}

// NewBaseFlow creates a new basic single-agent flow.
func NewBaseFlow(agent FlowAgent) *BaseFlow {
	return &BaseFlow{
		agent:              agent,
		requestProcessors:  []RequestProcessor{},
		responseProcessors: []ResponseProcessor{},
		functionExecutor: NewParallelFunctionExecutor(FunctionExecutorConfig{
			PreserveOrder: true,
		}),
	}
}

// AddRequestProcessor appends a request processor; order of registration
// defines execution order.
func (f *BaseFlow) AddRequestProcessor(processor RequestProcessor) {
	f.requestProcessors = append(f.requestProcessors, processor)
}

// AddResponseProcessor appends a response processor executed after each model
// chunk.
func (f *BaseFlow) AddResponseProcessor(processor ResponseProcessor) {
	f.responseProcessors = append(f.responseProcessors, processor)
}

// SetFunctionExecutor replaces the executor used for tool call batches.
func (f *BaseFlow) SetFunctionExecutor(executor FunctionExecutor) {
	f.functionExecutor = executor
}

// Execute launches the flow asynchronously and returns a channel of Events.
// The channel is closed when a final response is emitted, a transfer is
// performed or an unrecoverable error occurs. Callers should range over the
// returned channel.
func (f *BaseFlow) Execute(rc *core.RunContext) (<-chan core.Event, error) {
	eventChan := make(chan core.Event, 100)

	go func() {
		defer close(eventChan)

		for {
			last, transferTarget := f.runOnce(rc, eventChan)

			if transferTarget != "" {
				rc.LogInfo("flow.transfer", "agent", f.agent.GetName(), "target", transferTarget)
				if err := f.agent.TransferToAgent(rc, transferTarget); err != nil {
					f.emitError(rc, eventChan, fmt.Errorf("transfer to %s failed: %w", transferTarget, err))
				}
				return
			}

			if last == nil {
				return
			}
			// A function response means the model gets another turn.
			if len(last.GetFunctionResponses()) > 0 {
				continue
			}
			if last.IsPartial() {
				rc.LogWarn("flow.unexpected_partial_tail", "agent", f.agent.GetName())
				return
			}
			if last.IsFinalResponse() {
				return
			}
		}
	}()

	return eventChan, nil
}

// emitError converts an internal error to a system Event.
func (f *BaseFlow) emitError(rc *core.RunContext, eventChan chan<- core.Event, err error) {
	ev := core.NewEvent(rc.RunID, "system")
	msg := err.Error()
	ev.ErrorMessage = &msg

	select {
	case eventChan <- ev:
	case <-rc.Context.Done():
	}
}

// waitForResume blocks until the runner confirms persistence of the last
// non-partial event. A nil resume channel (direct execution without a runner)
// skips synchronization.
func (f *BaseFlow) waitForResume(rc *core.RunContext) error {
	if rc.Resume == nil {
		return nil
	}

	select {
	case <-rc.Context.Done():
		return rc.Context.Err()
	case <-rc.Resume:
		return nil
	}
}

// runOnce performs one model turn (including any tool executions) and
// returns the last emitted Event plus a pending transfer target. A nil event
// signals termination.
func (f *BaseFlow) runOnce(rc *core.RunContext, eventChan chan<- core.Event) (*core.Event, string) {
	// Refresh the session snapshot so request processors see the latest
	// conversation, including tool responses from the previous turn.
	if rc.SessionStore != nil {
		if latest, err := rc.SessionStore.Get(rc.SessionID); err == nil && latest != nil {
			rc.Session = latest
		}
	}

	req := new(model.Request)
	req.Stream = f.agent.IsStreamingEnabled()

	for _, processor := range f.requestProcessors {
		if err := processor.ProcessRequest(rc, req, f.agent); err != nil {
			f.emitError(rc, eventChan, fmt.Errorf("request processor %s failed: %w", processor.Name(), err))
			return nil, ""
		}
	}

	if f.agent.IsFunctionCallingEnabled() {
		tools := f.agent.GetTools()
		for _, t := range tools {
			req.Tools = append(req.Tools, model.ToolDefinition{
				Type: "function",
				Function: model.FunctionDefinition{
					Name:        t.Name(),
					Description: t.Description(),
					Parameters:  t.Parameters(),
				},
			})
		}
	}

	if err := rc.Limiter.Increment(); err != nil {
		f.emitError(rc, eventChan, err)
		return nil, ""
	}

	llm := f.agent.GetLLM()

	respCh, errCh := llm.Generate(rc.Context, *req)

	var lastEvent *core.Event
	var transferTarget string

	emit := func(ev core.Event) error {
		select {
		case eventChan <- ev:
		case <-rc.Context.Done():
			return rc.Context.Err()
		}

		if ev.Actions.TransferToAgent != nil {
			transferTarget = *ev.Actions.TransferToAgent
		}

		if !ev.IsPartial() {
			return f.waitForResume(rc)
		}

		return nil
	}

loop:
	for {
		select {
		case resp, ok := <-respCh:
			if !ok {
				break loop
			}

			for _, processor := range f.responseProcessors {
				if err := processor.ProcessResponse(rc, &resp, f.agent); err != nil {
					f.emitError(rc, eventChan, fmt.Errorf("response processor %s failed: %w", processor.Name(), err))
					return nil, transferTarget
				}
			}

			ev := core.NewEvent(rc.RunID, f.agent.GetName())
			ev.Content = &resp.Content
			ev.Partial = &resp.Partial

			fnCalls := ev.GetFunctionCalls()

			if !resp.Partial && len(fnCalls) == 0 {
				complete := true
				ev.TurnComplete = &complete

				// Persist the final response under the agent's output key.
				if key := f.agent.GetOutputKey(); key != "" {
					if text := ev.Text(); text != "" {
						if ev.Actions.StateDelta == nil {
							ev.Actions.StateDelta = map[string]any{}
						}
						ev.Actions.StateDelta[key] = text
						rc.SetState(key, text)
					}
				}
			}

			lastEvent = &ev

			if err := emit(ev); err != nil {
				return lastEvent, transferTarget
			}

			if len(fnCalls) > 0 {
				toolEmit := func(respEv core.Event) error {
					lastEvent = &respEv
					return emit(respEv)
				}

				f.functionExecutor.Execute(rc, f.agent, f.agent.GetTools(), fnCalls, toolEmit)
			}

		case err, ok := <-errCh:
			if ok && err != nil {
				rc.LogError("flow.model.error", "agent", f.agent.GetName(), "error", err.Error())
				f.emitError(rc, eventChan, err)
				return nil, transferTarget
			}
			if !ok {
				errCh = nil
				if respCh == nil {
					break loop
				}
				continue
			}
		}
	}

	return lastEvent, transferTarget
}
