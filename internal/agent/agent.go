package agent

import (
	"context"
	"fmt"
	"log/slog"
)

// Agent is the process-wide monitoring client handle.
// Its methods never fail the caller: client errors and panics end in a log line.
type Agent struct {
	client Client
	config Config
	logger *slog.Logger
}

// Config returns the configuration the agent was built with
func (a *Agent) Config() Config {
	return a.config
}

// StartMonitoring tells the client to begin its session
func (a *Agent) StartMonitoring(ctx context.Context) {
	a.call(ctx, "start_monitoring", func() error {
		return a.client.StartMonitoring(ctx)
	})
}

// TrackError forwards a captured fault
func (a *Agent) TrackError(ctx context.Context, event ErrorEvent) {
	a.call(ctx, "track_error", func() error {
		return a.client.TrackError(ctx, event)
	})
}

// TrackPerformance forwards a timing measurement
func (a *Agent) TrackPerformance(ctx context.Context, event PerformanceEvent) {
	a.call(ctx, "track_performance", func() error {
		return a.client.TrackPerformance(ctx, event)
	})
}

// ReportHealth forwards a health report
func (a *Agent) ReportHealth(ctx context.Context, report HealthReport) {
	a.call(ctx, "report_health", func() error {
		return a.client.ReportHealth(ctx, report.Status, report)
	})
}

func (a *Agent) call(ctx context.Context, op string, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.ErrorContext(ctx, "Monitoring client panicked",
				"operation", op,
				"panic", fmt.Sprint(r))
		}
	}()

	if err := fn(); err != nil {
		a.logger.WarnContext(ctx, "Monitoring client call failed",
			"operation", op,
			"error", err)
	}
}
