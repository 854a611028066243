package model

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Traced decorates a Model with an OpenTelemetry span per Generate call.
// Attributes follow the gen_ai semantic conventions so traces line up with
// other instrumented LLM clients.
type Traced struct {
	inner  Model
	tracer trace.Tracer
}

// NewTraced wraps the given model. The tracer is typically obtained from the
// trace package's Tracer() accessor.
func NewTraced(inner Model, tracer trace.Tracer) *Traced {
	return &Traced{inner: inner, tracer: tracer}
}

// Generate starts a span, delegates to the wrapped model and forwards its
// channels. Token usage from the final response and any terminal error are
// recorded on the span before it ends.
func (t *Traced) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	info := t.inner.Info()

	spanCtx, span := t.tracer.Start(ctx, "generate_content "+info.Name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("gen_ai.operation.name", "chat"),
			attribute.String("gen_ai.request.model", info.Name),
			attribute.String("gen_ai.system", info.Provider),
			attribute.Int("gen_ai.request.tool_count", len(req.Tools)),
			attribute.Bool("gen_ai.request.stream", req.Stream),
		),
	)

	innerResp, innerErr := t.inner.Generate(spanCtx, req)

	out := make(chan Response, 32)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)
		defer span.End()

		for innerResp != nil || innerErr != nil {
			select {
			case resp, ok := <-innerResp:
				if !ok {
					innerResp = nil
					continue
				}
				if !resp.Partial {
					span.SetAttributes(attribute.String("gen_ai.response.finish_reason", resp.FinishReason))
					if resp.Usage != nil {
						span.SetAttributes(
							attribute.Int("gen_ai.usage.input_tokens", resp.Usage.PromptTokens),
							attribute.Int("gen_ai.usage.output_tokens", resp.Usage.CompletionTokens),
						)
					}
				}
				out <- resp
			case err, ok := <-innerErr:
				if !ok {
					innerErr = nil
					continue
				}
				if err != nil {
					span.RecordError(err)
					span.SetStatus(codes.Error, err.Error())
					errCh <- err
				}
			}
		}
	}()

	return out, errCh
}

// Info returns the wrapped model's metadata.
func (t *Traced) Info() Info { return t.inner.Info() }
