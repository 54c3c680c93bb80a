// Package observability installs OpenTelemetry trace and meter providers
// for the REST dispatcher, exporting to stdout or an OTLP collector.
package observability

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.32.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/gaborage/go-bricks-rest/logger"
)

// Provider manages the lifecycle of tracing and metrics providers.
type Provider interface {
	TracerProvider() trace.TracerProvider
	MeterProvider() metric.MeterProvider

	// Shutdown flushes pending data and stops exporters.
	Shutdown(ctx context.Context) error
	ForceFlush(ctx context.Context) error
}

type provider struct {
	config         Config
	log            logger.Logger
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	mu             sync.Mutex
}

// NewProvider creates a provider from cfg and installs it globally together
// with the W3C trace context propagator. A disabled configuration yields a
// no-op provider and leaves the globals untouched.
func NewProvider(cfg *Config, log logger.Logger) (Provider, error) {
	if cfg == nil {
		return nil, ErrNilConfig
	}
	if log == nil {
		log = logger.Nop()
	}

	safeCfg := *cfg
	safeCfg.ApplyDefaults()
	if err := safeCfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid observability config: %w", err)
	}

	if !safeCfg.Enabled {
		log.Debug().Msg("Observability disabled, using no-op provider")
		return newNoopProvider(), nil
	}

	p := &provider{config: safeCfg, log: log}

	res, err := p.createResource()
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	if safeCfg.TraceEnabled() {
		if *safeCfg.Trace.SampleRate == 0 {
			log.Warn().Msg("Trace sample rate is 0.0, no spans will be recorded")
		}
		if err := p.initTraceProvider(res); err != nil {
			return nil, fmt.Errorf("failed to initialize trace provider: %w", err)
		}
		otel.SetTracerProvider(p.tracerProvider)
	}

	if safeCfg.MetricsEnabled() {
		if err := p.initMeterProvider(res); err != nil {
			p.shutdownPartial()
			return nil, fmt.Errorf("failed to initialize meter provider: %w", err)
		}
		otel.SetMeterProvider(p.meterProvider)
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	log.Info().
		Str("service", safeCfg.Service.Name).
		Bool("traces", safeCfg.TraceEnabled()).
		Bool("metrics", safeCfg.MetricsEnabled()).
		Str("trace_endpoint", safeCfg.Trace.Exporter.Endpoint).
		Str("metrics_endpoint", safeCfg.Metrics.Exporter.Endpoint).
		Msg("Observability provider initialized")

	return p, nil
}

func (p *provider) shutdownPartial() {
	if p.tracerProvider != nil {
		_ = p.tracerProvider.Shutdown(context.Background())
	}
}

func (p *provider) createResource() (*resource.Resource, error) {
	custom, err := resource.New(
		context.Background(),
		resource.WithAttributes(
			semconv.ServiceName(p.config.Service.Name),
			semconv.ServiceVersion(p.config.Service.Version),
			semconv.DeploymentEnvironmentName(p.config.Environment),
		),
	)
	if err != nil {
		return nil, err
	}
	return resource.Merge(resource.Default(), custom)
}

func (p *provider) initTraceProvider(res *resource.Resource) error {
	exporter, err := p.createTraceExporter()
	if err != nil {
		return fmt.Errorf("failed to create trace exporter: %w", err)
	}

	bsp := sdktrace.NewBatchSpanProcessor(
		exporter,
		sdktrace.WithBatchTimeout(p.config.Trace.BatchTimeout),
		sdktrace.WithExportTimeout(p.config.Trace.Exporter.ExportTimeout),
	)

	p.tracerProvider = sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(*p.config.Trace.SampleRate))),
	)
	return nil
}

func (p *provider) createTraceExporter() (sdktrace.SpanExporter, error) {
	e := p.config.Trace.Exporter
	if e.Endpoint == EndpointStdout {
		return stdouttrace.New(stdouttrace.WithPrettyPrint())
	}

	ctx := context.Background()
	switch e.Protocol {
	case ProtocolHTTP:
		opts := []otlptracehttp.Option{otlptracehttp.WithTimeout(e.ExportTimeout)}
		if hasScheme(e.Endpoint) {
			opts = append(opts, otlptracehttp.WithEndpointURL(e.Endpoint))
		} else {
			opts = append(opts, otlptracehttp.WithEndpoint(e.Endpoint))
		}
		if e.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		if len(e.Headers) > 0 {
			opts = append(opts, otlptracehttp.WithHeaders(e.Headers))
		}
		return otlptracehttp.New(ctx, opts...)
	case ProtocolGRPC:
		opts := []otlptracegrpc.Option{
			otlptracegrpc.WithEndpoint(e.Endpoint),
			otlptracegrpc.WithTimeout(e.ExportTimeout),
		}
		if e.Insecure {
			opts = append(opts, otlptracegrpc.WithTLSCredentials(insecure.NewCredentials()))
		}
		if len(e.Headers) > 0 {
			opts = append(opts, otlptracegrpc.WithHeaders(e.Headers))
		}
		return otlptracegrpc.New(ctx, opts...)
	default:
		return nil, fmt.Errorf("trace protocol '%s': %w", e.Protocol, ErrInvalidProtocol)
	}
}

func hasScheme(endpoint string) bool {
	return strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://")
}

// TracerProvider returns the configured trace provider.
func (p *provider) TracerProvider() trace.TracerProvider {
	if p.tracerProvider == nil {
		return tracenoop.NewTracerProvider()
	}
	return p.tracerProvider
}

// MeterProvider returns the configured meter provider.
func (p *provider) MeterProvider() metric.MeterProvider {
	if p.meterProvider == nil {
		return metricnoop.NewMeterProvider()
	}
	return p.meterProvider
}

// Shutdown flushes pending telemetry and stops both providers.
func (p *provider) Shutdown(ctx context.Context) error {
	return p.each(ctx, "shutdown", (*sdktrace.TracerProvider).Shutdown, (*sdkmetric.MeterProvider).Shutdown)
}

// ForceFlush exports pending telemetry without stopping the providers.
func (p *provider) ForceFlush(ctx context.Context) error {
	return p.each(ctx, "flush", (*sdktrace.TracerProvider).ForceFlush, (*sdkmetric.MeterProvider).ForceFlush)
}

func (p *provider) each(
	ctx context.Context,
	op string,
	traceOp func(*sdktrace.TracerProvider, context.Context) error,
	meterOp func(*sdkmetric.MeterProvider, context.Context) error,
) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []error
	if p.tracerProvider != nil {
		if err := traceOp(p.tracerProvider, ctx); err != nil {
			errs = append(errs, fmt.Errorf("trace provider %s: %w", op, err))
		}
	}
	if p.meterProvider != nil {
		if err := meterOp(p.meterProvider, ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter provider %s: %w", op, err))
		}
	}
	return errors.Join(errs...)
}
