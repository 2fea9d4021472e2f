package agent

import (
	"context"
	"time"
)

// Severity and kind literals used in error events
const (
	ErrorTypeRuntime = "runtime"
	SeverityError    = "error"

	StatusHealthy = "healthy"

	MetricPageLoad = "page_load"
)

// EventContext carries the browsing context an event was captured in
type EventContext struct {
	URL       string `json:"url"`
	UserAgent string `json:"user_agent"`
}

// ErrorEvent describes a captured fault
type ErrorEvent struct {
	ErrorType string       `json:"error_type"`
	Message   string       `json:"message"`
	File      string       `json:"file,omitempty"`
	Line      int          `json:"line,omitempty"`
	Column    int          `json:"column,omitempty"`
	Stack     string       `json:"stack,omitempty"`
	Severity  string       `json:"severity"`
	Context   EventContext `json:"context"`
}

// PerformanceEvent describes a timing measurement in milliseconds
type PerformanceEvent struct {
	MetricName string             `json:"metric_name"`
	Value      float64            `json:"value"`
	Page       string             `json:"page"`
	Metadata   map[string]float64 `json:"metadata,omitempty"`
}

// HealthMetrics is the metrics body of a health report
type HealthMetrics struct {
	ResponseTime float64 `json:"response_time"`
	ErrorRate    float64 `json:"error_rate"`
	ActiveUsers  int     `json:"active_users"`
}

// HealthReport is a liveness snapshot; Uptime is in seconds
type HealthReport struct {
	Status  string        `json:"status"`
	Uptime  float64       `json:"uptime"`
	Metrics HealthMetrics `json:"metrics"`
}

// Client is the monitoring client the agent drives
type Client interface {
	StartMonitoring(ctx context.Context) error
	TrackError(ctx context.Context, event ErrorEvent) error
	TrackPerformance(ctx context.Context, event PerformanceEvent) error
	ReportHealth(ctx context.Context, status string, report HealthReport) error
}

// Factory constructs a Client for a configuration
type Factory func(Config) (Client, error)

// Fault is an uncaught synchronous error reported by the host
type Fault struct {
	Message  string
	Filename string
	Line     int
	Column   int
	Stack    string
}

// Rejection is an unhandled asynchronous failure reported by the host.
// Message is empty when the rejection reason carries none.
type Rejection struct {
	Message string
	Stack   string
}

// NavigationTiming holds navigation milestones in milliseconds since the epoch
type NavigationTiming struct {
	NavigationStart          float64
	DomainLookupStart        float64
	DomainLookupEnd          float64
	ConnectStart             float64
	ConnectEnd               float64
	RequestStart             float64
	ResponseStart            float64
	ResponseEnd              float64
	DOMContentLoadedEventEnd float64
	LoadEventEnd             float64
}

// PageContext describes the current document
type PageContext struct {
	URL       string
	Path      string
	UserAgent string
}

// Host is the runtime the agent binds to
type Host interface {
	OnUncaughtFault(handler func(Fault))
	OnUnhandledRejection(handler func(Rejection))
	// OnLoadComplete runs handler once the document load event fires
	OnLoadComplete(handler func())
	// Defer schedules fn on the next tick of the event loop
	Defer(fn func())
	NavigationTiming() (NavigationTiming, bool)
	Page() PageContext
	// Uptime reads a monotonic clock started with the page
	Uptime() time.Duration
	Every(interval time.Duration, fn func())
}
