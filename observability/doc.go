// Package observability provides OpenTelemetry tracing and metrics for the
// dispatch engine.
//
// Setup:
//
//	shutdown, err := observability.Init(ctx, cfg.Telemetry, "iterpipe", version.Get().Short(), "production")
//	defer shutdown(ctx)
//
// Instruments:
//
//	metrics, err := observability.NewPipeMetrics(observability.Meter("iterpipe"))
//	metrics.RecordItem(ctx, "orders", observability.StatusOK)
//
// Runs:
//
//	rc := observability.NewRunContext("orders", runID, metrics)
//	ctx, span := rc.StartRunSpan(ctx)
//	defer rc.EndRun(ctx, span, "success", n, err)
package observability
