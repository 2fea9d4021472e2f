package agent

import "context"

// RejectionFallbackMessage is reported when a rejection reason has no message
const RejectionFallbackMessage = "Unhandled Promise Rejection"

// Bootstrap initializes the agent from the environment default key and binds
// it to host. It runs at most once per manager; later calls return Current().
// When initialization fails nothing is bound to host.
func (m *Manager) Bootstrap(host Host) *Agent {
	m.mu.Lock()
	if m.bootstrapped {
		m.mu.Unlock()
		return m.Current()
	}
	m.mu.Unlock()

	agent := m.Initialize("")
	if agent == nil {
		return nil
	}

	m.mu.Lock()
	if m.bootstrapped {
		m.mu.Unlock()
		return agent
	}
	m.bootstrapped = true
	m.mu.Unlock()

	ctx := context.Background()

	agent.StartMonitoring(ctx)

	host.OnUncaughtFault(func(f Fault) {
		agent.TrackError(ctx, faultEvent(f, host.Page()))
	})

	host.OnUnhandledRejection(func(r Rejection) {
		agent.TrackError(ctx, rejectionEvent(r, host.Page()))
	})

	if _, ok := host.NavigationTiming(); ok {
		host.OnLoadComplete(func() {
			// loadEventEnd is only filled in after the load handlers return
			host.Defer(func() {
				timing, ok := host.NavigationTiming()
				if !ok {
					return
				}
				agent.TrackPerformance(ctx, pageLoadEvent(timing, host.Page()))
			})
		})
	}

	agent.ReportHealth(ctx, healthReport(0))

	host.Every(agent.config.HealthCheckInterval, func() {
		agent.ReportHealth(ctx, healthReport(host.Uptime().Seconds()))
	})

	m.logger.Info("Monitoring agent bound to host",
		"app_id", agent.config.AppID,
		"health_check_interval", agent.config.HealthCheckInterval.String())

	return agent
}

func eventContext(page PageContext) EventContext {
	return EventContext{URL: page.URL, UserAgent: page.UserAgent}
}

func faultEvent(f Fault, page PageContext) ErrorEvent {
	return ErrorEvent{
		ErrorType: ErrorTypeRuntime,
		Message:   f.Message,
		File:      f.Filename,
		Line:      f.Line,
		Column:    f.Column,
		Stack:     f.Stack,
		Severity:  SeverityError,
		Context:   eventContext(page),
	}
}

func rejectionEvent(r Rejection, page PageContext) ErrorEvent {
	message := r.Message
	if message == "" {
		message = RejectionFallbackMessage
	}
	return ErrorEvent{
		ErrorType: ErrorTypeRuntime,
		Message:   message,
		Stack:     r.Stack,
		Severity:  SeverityError,
		Context:   eventContext(page),
	}
}

func pageLoadEvent(t NavigationTiming, page PageContext) PerformanceEvent {
	return PerformanceEvent{
		MetricName: MetricPageLoad,
		Value:      t.LoadEventEnd - t.NavigationStart,
		Page:       page.Path,
		Metadata: map[string]float64{
			"dns_lookup":  t.DomainLookupEnd - t.DomainLookupStart,
			"tcp_connect": t.ConnectEnd - t.ConnectStart,
			"ttfb":        t.ResponseStart - t.RequestStart,
			"download":    t.ResponseEnd - t.ResponseStart,
			"dom_ready":   t.DOMContentLoadedEventEnd - t.NavigationStart,
		},
	}
}

func healthReport(uptime float64) HealthReport {
	return HealthReport{
		Status: StatusHealthy,
		Uptime: uptime,
		Metrics: HealthMetrics{
			ResponseTime: 0,
			ErrorRate:    0,
			ActiveUsers:  1,
		},
	}
}
