// Package otel exports registry counters through OpenTelemetry.
package otel

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/mycoool/imonitor/internal/types"
)

const (
	ExporterNone     = "none"
	ExporterStdout   = "stdout"
	ExporterOTLPHTTP = "otlphttp"
	ExporterOTLPGRPC = "otlpgrpc"
)

const serviceName = "imonitor"

// NodeCounter returns the number of nodes per status
type NodeCounter func(ctx context.Context) (map[string]int64, error)

// Recorder records report outcomes and evictions
type Recorder struct {
	meterProvider *sdkmetric.MeterProvider
	meter         metric.Meter
	shutdown      func(context.Context) error

	reportsAccepted metric.Int64Counter
	reportsRejected metric.Int64Counter
	nodesEvicted    metric.Int64Counter
	nodesGauge      metric.Int64ObservableGauge
}

// New builds a Recorder for the configured exporter. "none" records into a
// provider with no reader.
func New(ctx context.Context, cfg types.MetricsConfig, version string) (*Recorder, error) {
	exporter := strings.ToLower(strings.TrimSpace(cfg.Exporter))
	if exporter == "" || exporter == ExporterNone {
		return newRecorder(sdkmetric.NewMeterProvider())
	}

	exp, err := createExporter(ctx, exporter, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics exporter: %w", err)
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes("",
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics resource: %w", err)
	}

	return newRecorder(sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp)),
		sdkmetric.WithResource(res),
	))
}

// NewWithReader builds a Recorder on an explicit reader
func NewWithReader(reader sdkmetric.Reader) (*Recorder, error) {
	return newRecorder(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)))
}

func newRecorder(mp *sdkmetric.MeterProvider) (*Recorder, error) {
	r := &Recorder{
		meterProvider: mp,
		meter:         mp.Meter(serviceName),
		shutdown:      mp.Shutdown,
	}

	var err error
	r.reportsAccepted, err = r.meter.Int64Counter(
		"imonitor.reports.accepted",
		metric.WithDescription("Reports applied to a node"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create accepted counter: %w", err)
	}

	r.reportsRejected, err = r.meter.Int64Counter(
		"imonitor.reports.rejected",
		metric.WithDescription("Reports refused, by reason"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create rejected counter: %w", err)
	}

	r.nodesEvicted, err = r.meter.Int64Counter(
		"imonitor.nodes.evicted",
		metric.WithDescription("Duplicate nodes removed by identity reconciliation"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create evicted counter: %w", err)
	}

	r.nodesGauge, err = r.meter.Int64ObservableGauge(
		"imonitor.nodes",
		metric.WithDescription("Registered nodes by status"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create nodes gauge: %w", err)
	}
	return r, nil
}

func createExporter(ctx context.Context, exporter string, cfg types.MetricsConfig) (sdkmetric.Exporter, error) {
	switch exporter {
	case ExporterStdout:
		return stdoutmetric.New()

	case ExporterOTLPGRPC:
		opts := []otlpmetricgrpc.Option{}
		if cfg.Endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(cfg.Endpoint))
		}
		if cfg.Insecure {
			opts = append(opts, otlpmetricgrpc.WithInsecure())
		}
		return otlpmetricgrpc.New(ctx, opts...)

	case ExporterOTLPHTTP:
		opts := []otlpmetrichttp.Option{}
		if cfg.Endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(cfg.Endpoint))
		}
		if cfg.Insecure {
			opts = append(opts, otlpmetrichttp.WithInsecure())
		}
		return otlpmetrichttp.New(ctx, opts...)

	default:
		return nil, fmt.Errorf("unknown exporter type: %s", exporter)
	}
}

// ObserveNodes reports node counts per status at each collection
func (r *Recorder) ObserveNodes(count NodeCounter) error {
	_, err := r.meter.RegisterCallback(func(ctx context.Context, o metric.Observer) error {
		counts, err := count(ctx)
		if err != nil {
			return err
		}
		for status, n := range counts {
			o.ObserveInt64(r.nodesGauge, n, metric.WithAttributes(attribute.String("status", status)))
		}
		return nil
	}, r.nodesGauge)
	return err
}

func (r *Recorder) ReportAccepted(ctx context.Context) {
	r.reportsAccepted.Add(ctx, 1)
}

func (r *Recorder) ReportRejected(ctx context.Context, reason string) {
	r.reportsRejected.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

func (r *Recorder) NodesEvicted(ctx context.Context, n int) {
	if n <= 0 {
		return
	}
	r.nodesEvicted.Add(ctx, int64(n))
}

// Shutdown flushes and stops the exporter
func (r *Recorder) Shutdown(ctx context.Context) error {
	if r.shutdown == nil {
		return nil
	}
	return r.shutdown(ctx)
}
