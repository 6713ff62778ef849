package observability

import (
	"context"
	"fmt"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/kbukum/iterpipe/errors"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}
	out := make(map[string]metricdata.Aggregation)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

func sumOf(t *testing.T, data metricdata.Aggregation) int64 {
	t.Helper()
	sum, ok := data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("expected int64 sum, got %T", data)
	}
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestDefaultTracerConfig(t *testing.T) {
	cfg := DefaultTracerConfig("test-service")

	if cfg.ServiceName != "test-service" {
		t.Errorf("expected ServiceName 'test-service', got %s", cfg.ServiceName)
	}
	if cfg.Endpoint != "localhost:4318" {
		t.Errorf("expected Endpoint 'localhost:4318', got %s", cfg.Endpoint)
	}
	if cfg.SampleRate != 1.0 {
		t.Errorf("expected SampleRate 1.0, got %f", cfg.SampleRate)
	}
}

func TestDefaultMeterConfig(t *testing.T) {
	cfg := DefaultMeterConfig("test-service")
	if cfg.Interval != 15*time.Second {
		t.Errorf("expected Interval 15s, got %v", cfg.Interval)
	}
	if !cfg.Insecure {
		t.Error("expected Insecure true for default config")
	}
}

func TestSampler(t *testing.T) {
	tests := []struct {
		rate float64
		want string
	}{
		{1.0, "AlwaysOnSampler"},
		{0, "AlwaysOffSampler"},
		{0.5, "TraceIDRatioBased{0.5}"},
	}
	for _, tt := range tests {
		if got := sampler(tt.rate).Description(); got != tt.want {
			t.Errorf("rate %v: expected %s, got %s", tt.rate, tt.want, got)
		}
	}
}

func TestNewResource(t *testing.T) {
	res, err := newResource("svc", "1.2.3", "test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	found := false
	for _, kv := range res.Attributes() {
		if kv.Key == "service.name" && kv.Value.AsString() == "svc" {
			found = true
		}
	}
	if !found {
		t.Error("expected service.name attribute")
	}
}

func TestPipeMetrics_Record(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer mp.Shutdown(context.Background())

	metrics, err := NewPipeMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx := context.Background()
	metrics.RecordItem(ctx, "p", StatusOK)
	metrics.RecordItem(ctx, "p", StatusOK)
	metrics.RecordItem(ctx, "p", StatusError)
	metrics.RecordBlock(ctx, "p", 3)
	metrics.RecordDispatch(ctx, "stub", StatusOK, 10*time.Millisecond)
	metrics.RecordError(ctx, "p", "DISPATCH_ERROR")
	metrics.ExecutorAcquired(ctx, "pool")
	metrics.ExecutorAcquired(ctx, "pool")
	metrics.ExecutorReleased(ctx, "pool")

	data := collect(t, reader)
	if got := sumOf(t, data["iterpipe.items"]); got != 3 {
		t.Errorf("expected 3 items, got %d", got)
	}
	if got := sumOf(t, data["iterpipe.blocks"]); got != 1 {
		t.Errorf("expected 1 block, got %d", got)
	}
	if got := sumOf(t, data["iterpipe.errors"]); got != 1 {
		t.Errorf("expected 1 error, got %d", got)
	}
	if got := sumOf(t, data["iterpipe.executor.active"]); got != 1 {
		t.Errorf("expected 1 active slot, got %d", got)
	}
	hist, ok := data["iterpipe.dispatch.duration"].(metricdata.Histogram[float64])
	if !ok || len(hist.DataPoints) != 1 || hist.DataPoints[0].Count != 1 {
		t.Errorf("expected one dispatch duration sample, got %+v", data["iterpipe.dispatch.duration"])
	}
}

func TestPipeMetrics_Nil(t *testing.T) {
	var metrics *PipeMetrics
	ctx := context.Background()
	// Should not panic
	metrics.RecordItem(ctx, "p", StatusOK)
	metrics.RecordBlock(ctx, "p", 1)
	metrics.RecordDispatch(ctx, "s", StatusOK, time.Millisecond)
	metrics.RecordError(ctx, "p", "X")
	metrics.ExecutorAcquired(ctx, "e")
	metrics.ExecutorReleased(ctx, "e")
}

func TestNewPipeMetrics_Noop(t *testing.T) {
	metrics, err := NewPipeMetrics(noop.NewMeterProvider().Meter("test"))
	if err != nil || metrics == nil {
		t.Fatalf("expected metrics, got %v, %v", metrics, err)
	}
}

func TestRunContext(t *testing.T) {
	rc := NewRunContext("orders", "run-1", nil)
	ctx := WithRunContext(context.Background(), rc)
	if got := RunContextFromContext(ctx); got != rc {
		t.Error("expected run context from context")
	}
	if RunContextFromContext(context.Background()) != nil {
		t.Error("expected nil when run context not set")
	}
	rc.StartTime = time.Now().Add(-50 * time.Millisecond)
	if d := rc.Duration(); d < 45*time.Millisecond {
		t.Errorf("expected duration around 50ms, got %v", d)
	}
}

func TestRunContext_Spans(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	defer tp.Shutdown(context.Background())
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	defer otel.SetTracerProvider(prev)

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	metrics, _ := NewPipeMetrics(mp.Meter("test"))

	rc := NewRunContext("orders", "run-1", metrics)
	ctx, span := rc.StartRunSpan(context.Background())
	if RunContextFromContext(ctx) != rc {
		t.Error("StartRunSpan should store the run context")
	}
	rc.EndRun(ctx, span, "", 5, errors.Dispatch(6, fmt.Errorf("boom")))

	spans := exporter.GetSpans()
	if len(spans) != 1 || spans[0].Name != SpanRun {
		t.Fatalf("expected one %s span, got %d", SpanRun, len(spans))
	}
	attrs := attribute.NewSet(spans[0].Attributes...)
	if v, ok := attrs.Value(AttrErrorCode); !ok || v.AsString() != "DISPATCH_ERROR" {
		t.Errorf("expected error code attribute, got %v", v)
	}
	if v, ok := attrs.Value(AttrPipe); !ok || v.AsString() != "orders" {
		t.Errorf("expected pipe attribute, got %v", v)
	}
	if got := sumOf(t, collect(t, reader)["iterpipe.errors"]); got != 1 {
		t.Errorf("expected 1 recorded error, got %d", got)
	}
}

func TestSetSpanAttribute(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	defer tp.Shutdown(context.Background())
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	defer otel.SetTracerProvider(prev)

	ctx, span := StartSpan(context.Background(), "test-attrs")
	SetSpanAttribute(ctx, "string-key", "value")
	SetSpanAttribute(ctx, "int-key", 42)
	SetSpanAttribute(ctx, "int64-key", int64(100))
	SetSpanAttribute(ctx, "float-key", 3.14)
	SetSpanAttribute(ctx, "bool-key", true)
	SetSpanAttribute(ctx, "string-slice-key", []string{"a", "b"})
	// Unsupported type is ignored
	SetSpanAttribute(ctx, "unsupported-key", struct{}{})
	SetSpanError(ctx, fmt.Errorf("test error"))
	span.End()

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if n := len(spans[0].Attributes); n != 6 {
		t.Errorf("expected 6 attributes, got %d", n)
	}
	if len(spans[0].Events) != 1 {
		t.Errorf("expected error event, got %d events", len(spans[0].Events))
	}
}

func TestSetSpanAttributeNoSpan(t *testing.T) {
	ctx := context.Background()
	// Should not panic with background context
	SetSpanAttribute(ctx, "key", "value")
	SetSpanError(ctx, fmt.Errorf("no span error"))
}

func TestConfig_ApplyDefaults(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()
	if cfg.Endpoint != "localhost:4318" || cfg.SampleRate != 1.0 || cfg.Interval != 15*time.Second {
		t.Errorf("unexpected defaults %+v", cfg)
	}
}

func TestInit_Disabled(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{}, "svc", "1.0.0", "test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("unexpected shutdown error: %v", err)
	}
}

func TestInitTracer(t *testing.T) {
	prev := otel.GetTracerProvider()
	defer otel.SetTracerProvider(prev)
	cfg := DefaultTracerConfig("test-service")
	tp, err := InitTracer(context.Background(), &cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_ = tp.Shutdown(context.Background())
}

func TestInitMeter(t *testing.T) {
	prev := otel.GetMeterProvider()
	defer otel.SetMeterProvider(prev)
	cfg := DefaultMeterConfig("test-service")
	cfg.Interval = 0
	mp, err := InitMeter(context.Background(), &cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Shutdown flushes to an unreachable collector; only the setup path matters here.
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_ = mp.Shutdown(ctx)
}
