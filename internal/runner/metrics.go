package runner

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	tracer = otel.Tracer("llm-optimizer.runner")
	meter  = otel.Meter("llm-optimizer.runner")
)

var (
	functionDuration metric.Float64Histogram
	functionTotal    metric.Int64Counter
	candidateTotal   metric.Int64Counter
	stateTransitions metric.Int64Counter
	speedupHistogram metric.Float64Histogram

	metricsOnce sync.Once
	metricsErr  error
)

func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		functionDuration, err = meter.Float64Histogram(
			"optimizer_function_duration_seconds",
			metric.WithDescription("Wall time spent optimizing one function"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		functionTotal, err = meter.Int64Counter(
			"optimizer_functions_total",
			metric.WithDescription("Functions processed, by status"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		candidateTotal, err = meter.Int64Counter(
			"optimizer_candidates_total",
			metric.WithDescription("Candidates evaluated, by verdict"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		stateTransitions, err = meter.Int64Counter(
			"optimizer_state_transitions_total",
			metric.WithDescription("Orchestrator state transitions"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		speedupHistogram, err = meter.Float64Histogram(
			"optimizer_winner_speedup_ratio",
			metric.WithDescription("Speedup of accepted candidates"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func startFunctionSpan(ctx context.Context, functionID, traceID string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Runner.OptimizeFunction",
		trace.WithAttributes(
			attribute.String("optimizer.function_id", functionID),
			attribute.String("optimizer.trace_id", traceID),
		),
	)
}

func setFunctionSpanResult(span trace.Span, out *Outcome) {
	span.SetAttributes(
		attribute.String("optimizer.status", string(out.Status)),
		attribute.Bool("optimizer.accepted", out.Accepted),
		attribute.String("optimizer.winner_id", out.WinnerID),
		attribute.Int("optimizer.candidates", len(out.PerCandidate)),
	)
}

func recordFunctionMetrics(ctx context.Context, out *Outcome, duration time.Duration) {
	if err := initMetrics(); err != nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("status", string(out.Status)))
	functionDuration.Record(ctx, duration.Seconds(), attrs)
	functionTotal.Add(ctx, 1, attrs)
	if out.Accepted {
		speedupHistogram.Record(ctx, out.Speedup)
	}
}

func recordCandidate(ctx context.Context, verdict, reason string) {
	if err := initMetrics(); err != nil {
		return
	}
	candidateTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("verdict", verdict),
		attribute.String("reason", reason),
	))
}

func recordStateTransition(ctx context.Context, span trace.Span, from, to State) {
	span.AddEvent("state_transition", trace.WithAttributes(
		attribute.String("from", string(from)),
		attribute.String("to", string(to)),
	))
	if err := initMetrics(); err != nil {
		return
	}
	stateTransitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("from", string(from)),
		attribute.String("to", string(to)),
	))
}
