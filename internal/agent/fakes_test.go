package agent

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// fakeHost records registrations so tests can fire them by hand
type fakeHost struct {
	faultHandlers     []func(Fault)
	rejectionHandlers []func(Rejection)
	loadHandlers      []func()
	deferred          []func()
	intervals         []time.Duration
	ticks             []func()

	timing    NavigationTiming
	hasTiming bool
	page      PageContext
	uptime    time.Duration
}

func newFakeHost() *fakeHost {
	return &fakeHost{
		page: PageContext{
			URL:       "https://logo.crav.dev/editor?id=7",
			Path:      "/editor",
			UserAgent: "Mozilla/5.0 (test)",
		},
	}
}

func (h *fakeHost) OnUncaughtFault(fn func(Fault)) { h.faultHandlers = append(h.faultHandlers, fn) }
func (h *fakeHost) OnUnhandledRejection(fn func(Rejection)) { h.rejectionHandlers = append(h.rejectionHandlers, fn) }
func (h *fakeHost) OnLoadComplete(fn func()) { h.loadHandlers = append(h.loadHandlers, fn) }
func (h *fakeHost) Defer(fn func()) { h.deferred = append(h.deferred, fn) }
func (h *fakeHost) NavigationTiming() (NavigationTiming, bool) { return h.timing, h.hasTiming }
func (h *fakeHost) Page() PageContext { return h.page }
func (h *fakeHost) Uptime() time.Duration { return h.uptime }

func (h *fakeHost) Every(d time.Duration, fn func()) {
	h.intervals = append(h.intervals, d)
	h.ticks = append(h.ticks, fn)
}

func (h *fakeHost) listenerCount() int {
	return len(h.faultHandlers) + len(h.rejectionHandlers) + len(h.loadHandlers) + len(h.ticks)
}

func (h *fakeHost) fault(f Fault) {
	for _, fn := range h.faultHandlers {
		fn(f)
	}
}

func (h *fakeHost) reject(r Rejection) {
	for _, fn := range h.rejectionHandlers {
		fn(r)
	}
}

func (h *fakeHost) load() {
	for _, fn := range h.loadHandlers {
		fn()
	}
}

func (h *fakeHost) runDeferred() {
	pending := h.deferred
	h.deferred = nil
	for _, fn := range pending {
		fn()
	}
}

func (h *fakeHost) tick(uptime time.Duration) {
	h.uptime = uptime
	for _, fn := range h.ticks {
		fn()
	}
}

type healthCall struct {
	status string
	report HealthReport
}

// recordingClient captures every call the agent makes
type recordingClient struct {
	mu          sync.Mutex
	starts      int
	errors      []ErrorEvent
	performance []PerformanceEvent
	health      []healthCall

	failWith error
	panicOn  string
}

func (c *recordingClient) StartMonitoring(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.starts++
	return c.fail("start")
}

func (c *recordingClient) TrackError(ctx context.Context, event ErrorEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errors = append(c.errors, event)
	return c.fail("error")
}

func (c *recordingClient) TrackPerformance(ctx context.Context, event PerformanceEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.performance = append(c.performance, event)
	return c.fail("performance")
}

func (c *recordingClient) ReportHealth(ctx context.Context, status string, report HealthReport) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.health = append(c.health, healthCall{status: status, report: report})
	return c.fail("health")
}

func (c *recordingClient) fail(op string) error {
	if c.panicOn == op {
		panic("transport exploded")
	}
	return c.failWith
}

// countingFactory returns the same client and counts constructions
type countingFactory struct {
	client  *recordingClient
	calls   int
	configs []Config
	err     error
}

func (f *countingFactory) build(cfg Config) (Client, error) {
	f.calls++
	f.configs = append(f.configs, cfg)
	if f.err != nil {
		return nil, f.err
	}
	return f.client, nil
}

func envLookup(env map[string]string) LookupFunc {
	return func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}
}

func testLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})), &buf
}

var errTransport = errors.New("transport down")
