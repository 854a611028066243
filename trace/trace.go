// Package trace bootstraps OpenTelemetry tracing for agentpipe processes.
// Spans cover model calls (via model.Traced) and remote agent requests;
// export goes to an OTLP/HTTP collector.
package trace

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/hupe1980/agentpipe/logging"
)

const tracerName = "agentpipe"

// Config holds tracing configuration.
type Config struct {
	ServiceName string // resource service.name; defaults to "agentpipe"
	Endpoint    string // host:port of the OTLP endpoint; empty uses the SDK default
	URLPath     string // path for the OTLP traces endpoint
	Headers     map[string]string
	Insecure    bool
	Logger      logging.Logger
}

type errorHandler struct{ logger logging.Logger }

func (h errorHandler) Handle(err error) {
	h.logger.Error("otel.error", "error", err.Error())
}

// Init configures the global tracer provider with an OTLP/HTTP exporter and
// returns a shutdown function that flushes pending spans.
func Init(ctx context.Context, cfg Config) (func(context.Context) error, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	otel.SetErrorHandler(errorHandler{logger: logger})

	var opts []otlptracehttp.Option
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	if cfg.Endpoint != "" {
		opts = append(opts, otlptracehttp.WithEndpoint(cfg.Endpoint))
	}
	if cfg.URLPath != "" {
		opts = append(opts, otlptracehttp.WithURLPath(cfg.URLPath))
	}
	if len(cfg.Headers) > 0 {
		opts = append(opts, otlptracehttp.WithHeaders(cfg.Headers))
	}

	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, err
	}

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = tracerName
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceName(serviceName)),
	)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	logger.Info("trace.initialized", "service", serviceName, "endpoint", cfg.Endpoint)

	return tp.Shutdown, nil
}

// Tracer returns the agentpipe tracer from the global provider.
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}
