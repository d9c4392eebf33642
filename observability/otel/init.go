package otel

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

const (
	instrumentationName = "github.com/hustletexas/cyber-arcade-verse-rally"
	serviceNamespace    = "cyber-arcade"
	defaultCollector    = "localhost:4318"
	defaultPushInterval = 15 * time.Second
)

// Attribute keys stamped on every span and metric stream of an arcade
// process.
const (
	TokenSymbolKey = attribute.Key("arcade.token.symbol")
	GenesisHashKey = attribute.Key("arcade.genesis.hash")
)

// Config captures the knobs for wiring OpenTelemetry exporters.
type Config struct {
	ServiceName string
	Version     string
	Environment string
	// TokenSymbol and GenesisHash identify which arcade deployment emitted
	// the telemetry. Both are optional.
	TokenSymbol string
	GenesisHash string

	Endpoint string
	Insecure bool
	Headers  map[string]string
	// Timeout bounds a single export call. Zero keeps the exporter default.
	Timeout time.Duration
	// Gzip compresses export payloads.
	Gzip bool

	Metrics bool
	Traces  bool
	// SampleRatio is the fraction of root spans kept. Zero keeps all.
	SampleRatio float64
	// PushInterval is the metric export cadence. Zero means 15s.
	PushInterval time.Duration
}

// Enabled reports whether any exporter is requested.
func (c Config) Enabled() bool { return c.Metrics || c.Traces }

// Tracer returns the tracer used by the runtime and daemon. It is a no-op
// until Init installs a provider.
func Tracer() trace.Tracer { return otel.Tracer(instrumentationName) }

// Resource describes the emitting process. Each call mints a fresh
// service.instance.id.
func Resource(cfg Config) (*resource.Resource, error) {
	if cfg.ServiceName == "" {
		return nil, errors.New("telemetry: service name required")
	}
	attrs := []attribute.KeyValue{
		semconv.ServiceNameKey.String(cfg.ServiceName),
		semconv.ServiceNamespaceKey.String(serviceNamespace),
		semconv.ServiceInstanceIDKey.String(uuid.NewString()),
	}
	if cfg.Version != "" {
		attrs = append(attrs, semconv.ServiceVersionKey.String(cfg.Version))
	}
	if cfg.Environment != "" {
		attrs = append(attrs, semconv.DeploymentEnvironmentKey.String(cfg.Environment))
	}
	if cfg.TokenSymbol != "" {
		attrs = append(attrs, TokenSymbolKey.String(cfg.TokenSymbol))
	}
	if cfg.GenesisHash != "" {
		attrs = append(attrs, GenesisHashKey.String(cfg.GenesisHash))
	}
	return resource.Merge(resource.Default(), resource.NewSchemaless(attrs...))
}

// Providers holds whatever Init installed globally.
type Providers struct {
	tracer *sdktrace.TracerProvider
	meter  *sdkmetric.MeterProvider
}

// Shutdown flushes and stops the installed providers, meter first. It is
// safe on a nil receiver.
func (p *Providers) Shutdown(ctx context.Context) error {
	if p == nil {
		return nil
	}
	var errs []error
	if p.meter != nil {
		errs = append(errs, p.meter.Shutdown(ctx))
	}
	if p.tracer != nil {
		errs = append(errs, p.tracer.Shutdown(ctx))
	}
	return errors.Join(errs...)
}

// Init installs the global providers requested by cfg. With no exporter
// enabled it returns empty Providers and leaves the no-op globals alone.
func Init(ctx context.Context, cfg Config) (*Providers, error) {
	res, err := Resource(cfg)
	if err != nil {
		return nil, err
	}
	providers := &Providers{}
	if !cfg.Enabled() {
		return providers, nil
	}
	if cfg.Traces {
		if providers.tracer, err = newTracerProvider(ctx, cfg, res); err != nil {
			return nil, err
		}
		otel.SetTracerProvider(providers.tracer)
	}
	if cfg.Metrics {
		if providers.meter, err = newMeterProvider(ctx, cfg, res); err != nil {
			_ = providers.Shutdown(ctx)
			return nil, err
		}
		otel.SetMeterProvider(providers.meter)
	}
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
	return providers, nil
}

func collector(cfg Config) string {
	if cfg.Endpoint == "" {
		return defaultCollector
	}
	return cfg.Endpoint
}

// Sampler keeps every span unless a ratio strictly inside (0,1) is set, in
// which case root spans are sampled and children follow their parent.
func Sampler(ratio float64) sdktrace.Sampler {
	if ratio > 0 && ratio < 1 {
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
	}
	return sdktrace.AlwaysSample()
}

func newTracerProvider(ctx context.Context, cfg Config, res *resource.Resource) (*sdktrace.TracerProvider, error) {
	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(collector(cfg))}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	if len(cfg.Headers) > 0 {
		opts = append(opts, otlptracehttp.WithHeaders(cfg.Headers))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, otlptracehttp.WithTimeout(cfg.Timeout))
	}
	if cfg.Gzip {
		opts = append(opts, otlptracehttp.WithCompression(otlptracehttp.GzipCompression))
	}
	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("telemetry: trace exporter: %w", err)
	}
	return sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(Sampler(cfg.SampleRatio)),
		sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(2*time.Second)),
	), nil
}

func newMeterProvider(ctx context.Context, cfg Config, res *resource.Resource) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(collector(cfg))}
	if cfg.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}
	if len(cfg.Headers) > 0 {
		opts = append(opts, otlpmetrichttp.WithHeaders(cfg.Headers))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, otlpmetrichttp.WithTimeout(cfg.Timeout))
	}
	if cfg.Gzip {
		opts = append(opts, otlpmetrichttp.WithCompression(otlpmetrichttp.GzipCompression))
	}
	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("telemetry: metric exporter: %w", err)
	}
	interval := cfg.PushInterval
	if interval <= 0 {
		interval = defaultPushInterval
	}
	return sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval))),
	), nil
}

// ParseHeaders reads "key=value" pairs separated by commas. Malformed pairs
// and empty keys are dropped.
func ParseHeaders(raw string) map[string]string {
	headers := map[string]string{}
	for _, pair := range strings.Split(raw, ",") {
		key, value, found := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !found || key == "" {
			continue
		}
		headers[key] = strings.TrimSpace(value)
	}
	return headers
}
