package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/kbukum/iterpipe/logger"
)

// Status values recorded on instruments.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// MeterConfig configures the OpenTelemetry meter provider.
type MeterConfig struct {
	// ServiceName is the name of the service.
	ServiceName string
	// ServiceVersion is the version of the service.
	ServiceVersion string
	// Environment is the deployment environment (dev, staging, prod).
	Environment string
	// Endpoint is the OTLP HTTP endpoint host:port (e.g., "localhost:4318").
	Endpoint string
	// Insecure allows insecure connections (for development).
	Insecure bool
	// Interval is the metric export interval.
	Interval time.Duration
}

// DefaultMeterConfig returns sensible defaults for development.
func DefaultMeterConfig(serviceName string) MeterConfig {
	return MeterConfig{
		ServiceName:    serviceName,
		ServiceVersion: "1.0.0",
		Environment:    "development",
		Endpoint:       "localhost:4318",
		Insecure:       true,
		Interval:       15 * time.Second,
	}
}

// InitMeter initializes the OpenTelemetry meter provider and installs it globally.
// Returns a MeterProvider that should be shut down on application exit.
func InitMeter(ctx context.Context, config *MeterConfig) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpoint(config.Endpoint),
	}
	if config.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}

	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	res, err := newResource(config.ServiceName, config.ServiceVersion, config.Environment)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	readerOpts := []sdkmetric.PeriodicReaderOption{}
	if config.Interval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(config.Interval))
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)),
		sdkmetric.WithResource(res),
	)

	otel.SetMeterProvider(mp)

	logger.Info("meter initialized", logger.Fields(
		"service", config.ServiceName,
		"endpoint", config.Endpoint,
		"interval", config.Interval.String(),
	))

	return mp, nil
}

// Meter returns a named meter from the global provider.
func Meter(name string) metric.Meter {
	return otel.Meter(name)
}

// PipeMetrics holds the instruments of the dispatch engine.
// A nil *PipeMetrics is valid and records nothing.
type PipeMetrics struct {
	items            metric.Int64Counter
	blocks           metric.Int64Counter
	dispatchDuration metric.Float64Histogram
	errors           metric.Int64Counter
	executorActive   metric.Int64UpDownCounter
}

// NewPipeMetrics creates the engine instruments on the given meter.
func NewPipeMetrics(meter metric.Meter) (*PipeMetrics, error) {
	items, err := meter.Int64Counter("iterpipe.items",
		metric.WithDescription("Elements dispatched, by pipe and status"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating iterpipe.items counter: %w", err)
	}

	blocks, err := meter.Int64Counter("iterpipe.blocks",
		metric.WithDescription("Blocks dispatched"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating iterpipe.blocks counter: %w", err)
	}

	dispatchDuration, err := meter.Float64Histogram("iterpipe.dispatch.duration",
		metric.WithDescription("Duration of a single send in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating iterpipe.dispatch.duration histogram: %w", err)
	}

	errorTotal, err := meter.Int64Counter("iterpipe.errors",
		metric.WithDescription("Failed runs by error code"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating iterpipe.errors counter: %w", err)
	}

	executorActive, err := meter.Int64UpDownCounter("iterpipe.executor.active",
		metric.WithDescription("Executor slots currently in use"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating iterpipe.executor.active gauge: %w", err)
	}

	return &PipeMetrics{
		items:            items,
		blocks:           blocks,
		dispatchDuration: dispatchDuration,
		errors:           errorTotal,
		executorActive:   executorActive,
	}, nil
}

// RecordItem counts one dispatched element.
func (m *PipeMetrics) RecordItem(ctx context.Context, pipe, status string) {
	if m == nil {
		return
	}
	m.items.Add(ctx, 1, metric.WithAttributes(
		attribute.String("pipe", pipe),
		attribute.String("status", status),
	))
}

// RecordBlock counts one dispatched block of size elements.
func (m *PipeMetrics) RecordBlock(ctx context.Context, pipe string, size int) {
	if m == nil {
		return
	}
	m.blocks.Add(ctx, 1, metric.WithAttributes(
		attribute.String("pipe", pipe),
		attribute.Int("size", size),
	))
}

// RecordDispatch records the duration of one send.
func (m *PipeMetrics) RecordDispatch(ctx context.Context, sender, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.dispatchDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("sender", sender),
		attribute.String("status", status),
	))
}

// RecordError counts a failed run by error code.
func (m *PipeMetrics) RecordError(ctx context.Context, pipe, code string) {
	if m == nil {
		return
	}
	m.errors.Add(ctx, 1, metric.WithAttributes(
		attribute.String("pipe", pipe),
		attribute.String("code", code),
	))
}

// ExecutorAcquired increments the busy slot count of executor name.
func (m *PipeMetrics) ExecutorAcquired(ctx context.Context, name string) {
	if m == nil {
		return
	}
	m.executorActive.Add(ctx, 1, metric.WithAttributes(attribute.String("executor", name)))
}

// ExecutorReleased decrements the busy slot count of executor name.
func (m *PipeMetrics) ExecutorReleased(ctx context.Context, name string) {
	if m == nil {
		return
	}
	m.executorActive.Add(ctx, -1, metric.WithAttributes(attribute.String("executor", name)))
}
