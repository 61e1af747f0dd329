package tracing

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
)

const instrumentation = "github.com/viniciushammett/go-log-stream-detector"

type Config struct {
	Enabled      bool
	ServiceName  string
	OTLPEndpoint string
	// SampleRatio is clamped to [0,1]; spans of a sampled parent are always kept.
	SampleRatio float64
	DialTimeout time.Duration
	// Attributes end up on the resource next to service.name.
	Attributes map[string]string
}

type Closer func(context.Context) error

func noop(context.Context) error { return nil }

// Init installs a global OTLP/gRPC tracer provider. Disabled tracing keeps the
// otel no-op provider, so Tracer() is always safe to call.
func Init(ctx context.Context, cfg Config) (Closer, error) {
	if !cfg.Enabled {
		return noop, nil
	}
	exp, err := dialExporter(ctx, cfg.OTLPEndpoint, cfg.DialTimeout)
	if err != nil {
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sampler(cfg.SampleRatio)),
		sdktrace.WithBatcher(exp, sdktrace.WithBatchTimeout(time.Second)),
		sdktrace.WithResource(serviceResource(cfg)),
	)
	otel.SetTracerProvider(tp)
	return func(ctx context.Context) error {
		// flush antes de desligar
		if err := tp.ForceFlush(ctx); err != nil {
			return fmt.Errorf("flush spans: %w", err)
		}
		return tp.Shutdown(ctx)
	}, nil
}

func dialExporter(ctx context.Context, endpoint string, timeout time.Duration) (sdktrace.SpanExporter, error) {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	exp, err := otlptracegrpc.New(dialCtx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure(),
		otlptracegrpc.WithDialOption(grpc.WithBlock()),
	)
	if err != nil {
		return nil, fmt.Errorf("otlp exporter %s: %w", endpoint, err)
	}
	return exp, nil
}

func sampler(ratio float64) sdktrace.Sampler {
	switch {
	case ratio >= 1:
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	case ratio <= 0:
		return sdktrace.ParentBased(sdktrace.NeverSample())
	}
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
}

func serviceResource(cfg Config) *resource.Resource {
	attrs := []attribute.KeyValue{semconv.ServiceName(cfg.ServiceName)}
	for k, v := range cfg.Attributes {
		attrs = append(attrs, attribute.String(k, v))
	}
	return resource.NewSchemaless(attrs...)
}

func Tracer() trace.Tracer { return otel.Tracer(instrumentation) }
