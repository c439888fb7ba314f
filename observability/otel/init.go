package otel

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"runtime/debug"
	"strings"
	"time"

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

	"safetymodule/config"
)

const (
	// DefaultEndpoint is the OTLP/HTTP collector used when none is set.
	DefaultEndpoint = "localhost:4318"
	// ServiceNamespace groups every process of the safety module.
	ServiceNamespace = "safetymodule"

	metricInterval = 15 * time.Second
	batchTimeout   = 2 * time.Second
)

// ModulesKey lists the engines a process hosts.
const ModulesKey = attribute.Key("safetymodule.modules")

// Identity names the process in exported telemetry.
type Identity struct {
	Service     string
	Environment string
	// Instance defaults to the hostname.
	Instance string
	Modules  []string
}

// Providers owns the installed SDK providers.
type Providers struct {
	traces  *sdktrace.TracerProvider
	metrics *sdkmetric.MeterProvider
}

// Tracing reports whether spans are exported.
func (p *Providers) Tracing() bool { return p != nil && p.traces != nil }

// Metering reports whether OTLP metrics are exported.
func (p *Providers) Metering() bool { return p != nil && p.metrics != nil }

// Shutdown flushes and stops the providers, metrics first.
func (p *Providers) Shutdown(ctx context.Context) error {
	if p == nil {
		return nil
	}
	var errs []error
	if p.metrics != nil {
		errs = append(errs, p.metrics.Shutdown(ctx))
	}
	if p.traces != nil {
		errs = append(errs, p.traces.Shutdown(ctx))
	}
	return errors.Join(errs...)
}

// Tracer returns the named tracer of the global provider. Before Start it is
// a no-op tracer.
func Tracer(name string) trace.Tracer { return otel.Tracer(name) }

// collector is the parsed OTLP target shared by both exporters.
type collector struct {
	host     string
	insecure bool
	headers  map[string]string
}

// parseCollector accepts host:port or an http(s) URL; an http scheme forces
// an insecure connection.
func parseCollector(cfg config.Observability) (collector, error) {
	out := collector{host: strings.TrimSpace(cfg.OTLPEndpoint), insecure: cfg.OTLPInsecure}
	if out.host == "" {
		out.host = DefaultEndpoint
	}
	if strings.Contains(out.host, "://") {
		u, err := url.Parse(out.host)
		if err != nil {
			return out, fmt.Errorf("otlp endpoint: %w", err)
		}
		switch u.Scheme {
		case "http":
			out.insecure = true
		case "https":
		default:
			return out, fmt.Errorf("otlp endpoint: unsupported scheme %q", u.Scheme)
		}
		out.host = u.Host
	}
	headers, err := ParseHeaders(cfg.OTLPHeaders)
	if err != nil {
		return out, err
	}
	out.headers = headers
	return out, nil
}

func newResource(id Identity) (*resource.Resource, error) {
	instance := id.Instance
	if instance == "" {
		instance, _ = os.Hostname()
	}
	attrs := []attribute.KeyValue{
		semconv.ServiceName(id.Service),
		semconv.ServiceNamespace(ServiceNamespace),
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		attrs = append(attrs, semconv.ServiceVersion(info.Main.Version))
	}
	if instance != "" {
		attrs = append(attrs, semconv.ServiceInstanceID(instance))
	}
	if id.Environment != "" {
		attrs = append(attrs, semconv.DeploymentEnvironment(id.Environment))
	}
	if len(id.Modules) > 0 {
		attrs = append(attrs, ModulesKey.StringSlice(id.Modules))
	}
	return resource.Merge(resource.Default(), resource.NewSchemaless(attrs...))
}

func sampler(ratio float64) sdktrace.Sampler {
	if ratio <= 0 || ratio >= 1 {
		return sdktrace.AlwaysSample()
	}
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
}

// Start installs the global providers requested by cfg. The propagator is
// installed even when nothing is exported so inbound trace context still
// reaches the handlers.
func Start(ctx context.Context, id Identity, cfg config.Observability) (*Providers, error) {
	if id.Service == "" {
		return nil, fmt.Errorf("service name required for telemetry")
	}
	if cfg.SampleRatio < 0 || cfg.SampleRatio > 1 {
		return nil, fmt.Errorf("sample ratio %v outside [0, 1]", cfg.SampleRatio)
	}
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	p := &Providers{}
	if !cfg.Traces && !cfg.Metrics {
		return p, nil
	}
	target, err := parseCollector(cfg)
	if err != nil {
		return nil, err
	}
	res, err := newResource(id)
	if err != nil {
		return nil, fmt.Errorf("build resource: %w", err)
	}

	if cfg.Traces {
		opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(target.host), otlptracehttp.WithHeaders(target.headers)}
		if target.insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		exporter, err := otlptracehttp.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("create trace exporter: %w", err)
		}
		p.traces = sdktrace.NewTracerProvider(
			sdktrace.WithResource(res),
			sdktrace.WithSampler(sampler(cfg.SampleRatio)),
			sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(batchTimeout)),
		)
		otel.SetTracerProvider(p.traces)
	}

	if cfg.Metrics {
		opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(target.host), otlpmetrichttp.WithHeaders(target.headers)}
		if target.insecure {
			opts = append(opts, otlpmetrichttp.WithInsecure())
		}
		exporter, err := otlpmetrichttp.New(ctx, opts...)
		if err != nil {
			_ = p.Shutdown(ctx)
			return nil, fmt.Errorf("create metric exporter: %w", err)
		}
		p.metrics = sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(metricInterval))),
		)
		otel.SetMeterProvider(p.metrics)
	}
	return p, nil
}

// ParseHeaders reads the OTEL_EXPORTER_OTLP_HEADERS format: comma separated
// key=value pairs with percent-encoded values.
func ParseHeaders(raw string) (map[string]string, error) {
	headers := map[string]string{}
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		key, value, found := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !found || key == "" {
			return nil, fmt.Errorf("otlp header %q: want key=value", pair)
		}
		decoded, err := url.PathUnescape(strings.TrimSpace(value))
		if err != nil {
			return nil, fmt.Errorf("otlp header %q: %w", key, err)
		}
		headers[key] = decoded
	}
	return headers, nil
}
