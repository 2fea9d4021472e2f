package telemetry

import (
	"time"

	"github.com/nathannam/crav-agent/internal/agent"
	"github.com/nathannam/crav-agent/internal/apps"
)

// envelope is shared by every delivery
type envelope struct {
	AppID         string    `json:"app_id"`
	SessionID     string    `json:"session_id"`
	CorrelationID string    `json:"correlation_id"`
	Timestamp     time.Time `json:"timestamp"`
}

// features advertised at registration
type features struct {
	AutoMonitor   bool `json:"auto_monitor"`
	ErrorTracking bool `json:"error_tracking"`
	Performance   bool `json:"performance"`
	Analytics     bool `json:"analytics"`
}

// thresholds in milliseconds
type thresholds struct {
	PageLoad    int64 `json:"page_load"`
	APIResponse int64 `json:"api_response"`
	Render      int64 `json:"render"`
}

type startPayload struct {
	envelope
	AppName               string              `json:"app_name"`
	Category              apps.Category       `json:"category"`
	Features              features            `json:"features"`
	AutoFix               agent.AutoFixConfig `json:"auto_fix"`
	HealthCheckIntervalMs int64               `json:"health_check_interval_ms"`
	PerformanceThresholds thresholds          `json:"performance_thresholds"`
}

type errorPayload struct {
	envelope
	agent.ErrorEvent
}

type performancePayload struct {
	envelope
	agent.PerformanceEvent
	ThresholdExceeded bool `json:"threshold_exceeded"`
}

type healthPayload struct {
	envelope
	agent.HealthReport
}
