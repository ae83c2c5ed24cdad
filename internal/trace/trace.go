// Package trace sets up OpenTelemetry for walletai: one trace per mention,
// with child spans for model calls, tool calls and outbound HTTP.
package trace

import (
	"context"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const ServiceName = "walletai"

type Config struct {
	Endpoint string // host:port of the OTLP collector
	URLPath  string
	APIKey   string // sent as a bearer token
	Insecure bool
	// SampleRatio is the share of new traces kept. Child spans follow their
	// parent.
	SampleRatio float64
	Environment string
	Version     string
}

type errorHandler struct{}

func (errorHandler) Handle(err error) {
	slog.Error("otel error", "error", err)
}

// Init installs a global tracer provider exporting over OTLP/HTTP in
// batches. The returned shutdown flushes pending spans.
func Init(ctx context.Context, cfg Config) (shutdown func(context.Context) error, err error) {
	otel.SetErrorHandler(errorHandler{})

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
	if cfg.APIKey != "" {
		opts = append(opts, otlptracehttp.WithHeaders(map[string]string{
			"Authorization": "Bearer " + cfg.APIKey,
		}))
	}

	inner, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, err
	}
	exporter := &countingExporter{inner: inner}

	attrs := []resource.Option{resource.WithAttributes(semconv.ServiceName(ServiceName))}
	if cfg.Version != "" {
		attrs = append(attrs, resource.WithAttributes(semconv.ServiceVersion(cfg.Version)))
	}
	if cfg.Environment != "" {
		attrs = append(attrs, resource.WithAttributes(semconv.DeploymentEnvironment(cfg.Environment)))
	}
	res, err := resource.New(ctx, attrs...)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler(cfg.SampleRatio)),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	slog.Debug("tracing initialised", "endpoint", cfg.Endpoint, "url_path", cfg.URLPath, "sample_ratio", cfg.SampleRatio)

	return func(ctx context.Context) error {
		err := tp.Shutdown(ctx)
		slog.Debug("tracing shut down", "exported", exporter.exported.Load(), "failed", exporter.failed.Load())
		return err
	}, nil
}

func sampler(ratio float64) sdktrace.Sampler {
	if ratio <= 0 || ratio >= 1 {
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	}
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
}

// countingExporter logs failed exports and keeps totals for the shutdown log.
type countingExporter struct {
	inner    sdktrace.SpanExporter
	exported atomic.Int64
	failed   atomic.Int64
}

func (e *countingExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	if err := e.inner.ExportSpans(ctx, spans); err != nil {
		e.failed.Add(int64(len(spans)))
		slog.Warn("span export failed", "spans", len(spans), "error", err)
		return err
	}
	e.exported.Add(int64(len(spans)))
	return nil
}

func (e *countingExporter) Shutdown(ctx context.Context) error {
	return e.inner.Shutdown(ctx)
}

func Tracer() trace.Tracer {
	return otel.Tracer(ServiceName)
}

// HTTPClient returns a client whose requests become child spans of the
// caller's context. A zero timeout means none.
func HTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport,
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				return r.Method + " " + r.URL.Host
			}),
		),
	}
}
