package telemetry

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/log/global"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

const instrumentationName = "github.com/nathannam/crav-agent"

// EnvLogLevel selects the console log level
const EnvLogLevel = "CRAV_LOG_LEVEL"

var (
	loggerMu sync.RWMutex
	logger   = slog.New(NewConsoleHandler(os.Stdout, ParseLevel(os.Getenv(EnvLogLevel))))
)

// GetLogger returns the process logger
func GetLogger() *slog.Logger {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	return logger
}

// otlpConfigured reports whether any OTLP endpoint is set in the environment
func otlpConfigured() bool {
	for _, key := range []string{
		"OTEL_EXPORTER_OTLP_ENDPOINT",
		"OTEL_EXPORTER_OTLP_TRACES_ENDPOINT",
		"OTEL_EXPORTER_OTLP_METRICS_ENDPOINT",
		"OTEL_EXPORTER_OTLP_LOGS_ENDPOINT",
	} {
		if os.Getenv(key) != "" {
			return true
		}
	}
	return false
}

// SetupInstrumentation installs the global OpenTelemetry providers and the
// process logger. OTLP exporters are only created when an OTLP endpoint is
// configured; otherwise telemetry stays in-process. The returned func flushes
// and shuts the providers down.
func SetupInstrumentation(serviceName, serviceVersion string) func() {
	ctx := context.Background()
	level := ParseLevel(os.Getenv(EnvLogLevel))
	console := NewConsoleHandler(os.Stdout, level)

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(serviceVersion),
		),
		resource.WithTelemetrySDK(),
	)
	if err != nil {
		slog.New(console).Warn("Failed to build telemetry resource", "error", err)
		res = resource.Default()
	}

	if !otlpConfigured() {
		setLogger(slog.New(console))
		GetLogger().Debug("OTLP endpoint not configured, exporting nothing")
		return func() {}
	}

	var shutdowns []func(context.Context) error

	traceExporter, err := otlptracehttp.New(ctx)
	if err != nil {
		slog.New(console).Warn("Failed to create trace exporter", "error", err)
	} else {
		tp := sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(traceExporter),
			sdktrace.WithResource(res),
		)
		otel.SetTracerProvider(tp)
		shutdowns = append(shutdowns, tp.Shutdown)
	}

	metricExporter, err := otlpmetrichttp.New(ctx)
	if err != nil {
		slog.New(console).Warn("Failed to create metric exporter", "error", err)
	} else {
		mp := sdkmetric.NewMeterProvider(
			sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter,
				sdkmetric.WithInterval(30*time.Second))),
			sdkmetric.WithResource(res),
		)
		otel.SetMeterProvider(mp)
		shutdowns = append(shutdowns, mp.Shutdown)
	}

	logExporter, err := otlploghttp.New(ctx)
	if err != nil {
		slog.New(console).Warn("Failed to create log exporter", "error", err)
		setLogger(slog.New(console))
	} else {
		lp := sdklog.NewLoggerProvider(
			sdklog.WithProcessor(sdklog.NewBatchProcessor(logExporter)),
			sdklog.WithResource(res),
		)
		global.SetLoggerProvider(lp)
		shutdowns = append(shutdowns, lp.Shutdown)
		setLogger(slog.New(fanoutHandler{
			console,
			otelslog.NewHandler(instrumentationName, otelslog.WithLoggerProvider(lp)),
		}))
	}

	GetLogger().Info("OpenTelemetry instrumentation initialized",
		"service", serviceName,
		"version", serviceVersion)

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		var errs []error
		for _, shutdown := range shutdowns {
			errs = append(errs, shutdown(ctx))
		}
		if err := errors.Join(errs...); err != nil {
			slog.New(console).Warn("Telemetry shutdown incomplete", "error", err)
		}
	}
}

func setLogger(l *slog.Logger) {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	logger = l
}
