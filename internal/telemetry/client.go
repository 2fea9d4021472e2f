package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/nathannam/crav-agent/internal/agent"
)

// ErrInvalidEndpoint is returned when the configured API URL cannot be used
var ErrInvalidEndpoint = errors.New("invalid monitoring endpoint")

// Delivery paths, relative to the configured API URL
const (
	PathStart       = "monitoring/start"
	PathErrors      = "monitoring/errors"
	PathPerformance = "monitoring/performance"
	PathHealth      = "monitoring/health"
)

// Headers attached to every delivery
const (
	HeaderSessionID     = "X-Session-ID"
	HeaderCorrelationID = "X-Correlation-ID"
	HeaderAppID         = "X-App-ID"
)

// Client delivers agent events to the monitoring API and mirrors them as
// OpenTelemetry spans and metrics. Deliveries are fire-and-forget.
type Client struct {
	cfg       agent.Config
	base      *url.URL
	sessionID string

	httpClient     *http.Client
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
	logger         *slog.Logger
	now            func() time.Time

	tracer           trace.Tracer
	errorsTotal      metric.Int64Counter
	durations        metric.Float64Histogram
	uptime           metric.Float64Gauge
	deliveryFailures metric.Int64Counter

	inflight sync.WaitGroup
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient sets the HTTP client used for deliveries
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTracerProvider overrides the global tracer provider
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Client) { c.tracerProvider = tp }
}

// WithMeterProvider overrides the global meter provider
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(c *Client) { c.meterProvider = mp }
}

// WithLogger sets the client logger
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// Factory adapts NewClient to agent.Factory
func Factory(opts ...Option) agent.Factory {
	return func(cfg agent.Config) (agent.Client, error) {
		return NewClient(cfg, opts...)
	}
}

// NewClient creates a client for cfg
func NewClient(cfg agent.Config, opts ...Option) (*Client, error) {
	base, err := url.Parse(cfg.APIURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidEndpoint, err)
	}
	if (base.Scheme != "http" && base.Scheme != "https") || base.Host == "" {
		return nil, fmt.Errorf("%w: %q is not an absolute http(s) URL", ErrInvalidEndpoint, cfg.APIURL)
	}
	if cfg.AppID == "" {
		return nil, errors.New("monitoring client requires an app id")
	}

	c := &Client{
		cfg:       cfg,
		base:      base,
		sessionID: "session_" + uuid.NewString(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.tracerProvider == nil {
		c.tracerProvider = otel.GetTracerProvider()
	}
	if c.meterProvider == nil {
		c.meterProvider = otel.GetMeterProvider()
	}
	if c.logger == nil {
		c.logger = GetLogger()
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport,
				otelhttp.WithTracerProvider(c.tracerProvider),
				otelhttp.WithMeterProvider(c.meterProvider)),
			Timeout: 10 * time.Second,
		}
	}
	c.logger = c.logger.With("app_id", cfg.AppID)

	c.tracer = c.tracerProvider.Tracer(instrumentationName)
	meter := c.meterProvider.Meter(instrumentationName)

	if c.errorsTotal, err = meter.Int64Counter("crav.errors",
		metric.WithDescription("Captured client-side errors"),
		metric.WithUnit("{error}")); err != nil {
		return nil, fmt.Errorf("creating error counter: %w", err)
	}
	if c.durations, err = meter.Float64Histogram("crav.performance.duration",
		metric.WithDescription("Client-side timing measurements"),
		metric.WithUnit("ms")); err != nil {
		return nil, fmt.Errorf("creating duration histogram: %w", err)
	}
	if c.uptime, err = meter.Float64Gauge("crav.health.uptime",
		metric.WithDescription("Seconds since the page started"),
		metric.WithUnit("s")); err != nil {
		return nil, fmt.Errorf("creating uptime gauge: %w", err)
	}
	if c.deliveryFailures, err = meter.Int64Counter("crav.delivery.failures",
		metric.WithDescription("Deliveries the monitoring API did not accept"),
		metric.WithUnit("{delivery}")); err != nil {
		return nil, fmt.Errorf("creating delivery failure counter: %w", err)
	}

	return c, nil
}

// SessionID returns the session identifier sent with every delivery
func (c *Client) SessionID() string {
	return c.sessionID
}

// StartMonitoring registers the session with the monitoring API
func (c *Client) StartMonitoring(ctx context.Context) error {
	if !c.cfg.AutoMonitor {
		return nil
	}

	payload := startPayload{
		envelope: c.envelope(),
		AppName:  c.cfg.AppName,
		Category: c.cfg.Category,
		Features: features{
			AutoMonitor:   c.cfg.AutoMonitor,
			ErrorTracking: c.cfg.ErrorTracking,
			Performance:   c.cfg.Performance,
			Analytics:     c.cfg.Analytics,
		},
		AutoFix:               c.cfg.AutoFix,
		HealthCheckIntervalMs: c.cfg.HealthCheckInterval.Milliseconds(),
		PerformanceThresholds: thresholds{
			PageLoad:    c.cfg.Thresholds.PageLoad.Milliseconds(),
			APIResponse: c.cfg.Thresholds.APIResponse.Milliseconds(),
			Render:      c.cfg.Thresholds.Render.Milliseconds(),
		},
	}

	c.logger.InfoContext(ctx, "Monitoring session started",
		"session_id", c.sessionID,
		"category", c.cfg.Category.String())
	return c.send(ctx, "start", PathStart, payload.CorrelationID, payload)
}

// TrackError records a captured fault and delivers it
func (c *Client) TrackError(ctx context.Context, event agent.ErrorEvent) error {
	if !c.cfg.ErrorTracking {
		return nil
	}

	c.errorsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("app.id", c.cfg.AppID),
		attribute.String("error.type", event.ErrorType),
		attribute.String("error.severity", event.Severity),
	))

	payload := errorPayload{envelope: c.envelope(), ErrorEvent: event}
	return c.send(ctx, "error", PathErrors, payload.CorrelationID, payload)
}

// TrackPerformance records a timing measurement and delivers it
func (c *Client) TrackPerformance(ctx context.Context, event agent.PerformanceEvent) error {
	if !c.cfg.Performance {
		return nil
	}

	exceeded := c.exceedsThreshold(event)
	c.durations.Record(ctx, event.Value, metric.WithAttributes(
		attribute.String("app.id", c.cfg.AppID),
		attribute.String("metric.name", event.MetricName),
		attribute.Bool("threshold.exceeded", exceeded),
	))
	if exceeded {
		c.logger.WarnContext(ctx, "Performance budget exceeded",
			"metric", event.MetricName,
			"value_ms", event.Value,
			"page", event.Page)
	}

	payload := performancePayload{
		envelope:          c.envelope(),
		PerformanceEvent:  event,
		ThresholdExceeded: exceeded,
	}
	return c.send(ctx, "performance", PathPerformance, payload.CorrelationID, payload)
}

// ReportHealth delivers a health report under status
func (c *Client) ReportHealth(ctx context.Context, status string, report agent.HealthReport) error {
	report.Status = status
	c.uptime.Record(ctx, report.Uptime, metric.WithAttributes(
		attribute.String("app.id", c.cfg.AppID),
		attribute.String("health.status", status),
	))

	payload := healthPayload{envelope: c.envelope(), HealthReport: report}
	return c.send(ctx, "health", PathHealth, payload.CorrelationID, payload)
}

// Flush waits until in-flight deliveries finish or ctx is done
func (c *Client) Flush(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		c.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) exceedsThreshold(event agent.PerformanceEvent) bool {
	var budget time.Duration
	switch event.MetricName {
	case agent.MetricPageLoad:
		budget = c.cfg.Thresholds.PageLoad
	case "api_response":
		budget = c.cfg.Thresholds.APIResponse
	case "render":
		budget = c.cfg.Thresholds.Render
	default:
		return false
	}
	return budget > 0 && event.Value > float64(budget.Milliseconds())
}

func (c *Client) envelope() envelope {
	return envelope{
		AppID:         c.cfg.AppID,
		SessionID:     c.sessionID,
		CorrelationID: "corr_" + uuid.NewString(),
		Timestamp:     c.now().UTC(),
	}
}

// send marshals body and delivers it in the background
func (c *Client) send(ctx context.Context, op, path, correlationID string, body any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshaling %s payload: %w", op, err)
	}

	c.inflight.Add(1)
	go func() {
		defer c.inflight.Done()
		c.deliver(context.WithoutCancel(ctx), op, path, correlationID, data)
	}()
	return nil
}

func (c *Client) deliver(ctx context.Context, op, path, correlationID string, data []byte) {
	ctx, span := c.tracer.Start(ctx, "monitoring."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("app.id", c.cfg.AppID),
			attribute.String("session.id", c.sessionID),
			attribute.String("correlation.id", correlationID),
		))
	defer span.End()

	if err := c.post(ctx, path, correlationID, data); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "delivery failed")
		c.deliveryFailures.Add(ctx, 1, metric.WithAttributes(
			attribute.String("app.id", c.cfg.AppID),
			attribute.String("operation", op),
		))
		c.logger.WarnContext(ctx, "Failed to deliver monitoring event",
			"operation", op,
			"correlation_id", correlationID,
			"error", err)
		return
	}

	c.logger.DebugContext(ctx, "Delivered monitoring event",
		"operation", op,
		"correlation_id", correlationID)
}

func (c *Client) post(ctx context.Context, path, correlationID string, data []byte) error {
	target := c.base.JoinPath(path)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.String(), bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderSessionID, c.sessionID)
	req.Header.Set(HeaderCorrelationID, correlationID)
	req.Header.Set(HeaderAppID, c.cfg.AppID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("posting to %s: %w", target.Path, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("posting to %s: unexpected status %d", target.Path, resp.StatusCode)
	}
	return nil
}
