package agent

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/nathannam/crav-agent/internal/apps"
)

// Environment variables read by LoadConfig
const (
	EnvAPIURL              = "CRAV_MONITOR_API_URL"
	EnvHealthCheckInterval = "CRAV_HEALTH_CHECK_INTERVAL"
	EnvAutoFix             = "CRAV_AUTO_FIX"
)

// Defaults applied when the environment is silent
const (
	DefaultAPIURL              = "https://monitor.crav.dev/api"
	DefaultHealthCheckInterval = 300000 * time.Millisecond

	// MinHealthCheckInterval is the shortest accepted health report period
	MinHealthCheckInterval = time.Second
)

// ErrInvalidConfig is returned when an environment override cannot be used
var ErrInvalidConfig = errors.New("invalid agent configuration")

// LookupFunc reads an environment value
type LookupFunc func(key string) (string, bool)

// DefaultStrategies returns the auto-fix strategy order used when none is configured
func DefaultStrategies() []string {
	return []string{"typescript_fix", "dependency_install", "retry_with_backoff"}
}

// DefaultThresholds returns the default performance budgets
func DefaultThresholds() PerformanceThresholds {
	return PerformanceThresholds{
		PageLoad:    3000 * time.Millisecond,
		APIResponse: 1000 * time.Millisecond,
		Render:      100 * time.Millisecond,
	}
}

// AutoFixConfig controls automated remediation on the backend
type AutoFixConfig struct {
	Enabled    bool     `json:"enabled"`
	Strategies []string `json:"strategies"`
}

// PerformanceThresholds are the budgets events are compared against
type PerformanceThresholds struct {
	PageLoad    time.Duration `json:"page_load"`
	APIResponse time.Duration `json:"api_response"`
	Render      time.Duration `json:"render"`
}

// Config is the agent configuration, built once per process
type Config struct {
	AppID               string                `json:"app_id"`
	AppName             string                `json:"app_name"`
	Category            apps.Category         `json:"category"`
	APIURL              string                `json:"api_url"`
	AutoMonitor         bool                  `json:"auto_monitor"`
	ErrorTracking       bool                  `json:"error_tracking"`
	Performance         bool                  `json:"performance"`
	Analytics           bool                  `json:"analytics"`
	AutoFix             AutoFixConfig         `json:"auto_fix"`
	HealthCheckInterval time.Duration         `json:"health_check_interval"`
	Thresholds          PerformanceThresholds `json:"performance_thresholds"`
}

// LoadConfig merges a descriptor with environment overrides and defaults
func LoadConfig(desc apps.Descriptor, lookup LookupFunc) (Config, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}

	cfg := Config{
		AppID:               desc.ID,
		AppName:             desc.Name,
		Category:            desc.Category,
		APIURL:              DefaultAPIURL,
		AutoMonitor:         true,
		ErrorTracking:       true,
		Performance:         true,
		Analytics:           true,
		AutoFix:             AutoFixConfig{Enabled: true, Strategies: DefaultStrategies()},
		HealthCheckInterval: DefaultHealthCheckInterval,
		Thresholds:          DefaultThresholds(),
	}

	if raw, ok := lookupNonEmpty(lookup, EnvAPIURL); ok {
		u, err := url.Parse(raw)
		if err != nil {
			return Config{}, fmt.Errorf("%w: %s: %w", ErrInvalidConfig, EnvAPIURL, err)
		}
		if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return Config{}, fmt.Errorf("%w: %s must be an absolute http(s) URL, got %q", ErrInvalidConfig, EnvAPIURL, raw)
		}
		cfg.APIURL = strings.TrimRight(raw, "/")
	}

	if raw, ok := lookupNonEmpty(lookup, EnvHealthCheckInterval); ok {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return Config{}, fmt.Errorf("%w: parsing %s %q: %w", ErrInvalidConfig, EnvHealthCheckInterval, raw, err)
		}
		d = pickDuration(d, DefaultHealthCheckInterval)
		if d < MinHealthCheckInterval {
			return Config{}, fmt.Errorf("%w: %s %q is below the %s minimum", ErrInvalidConfig, EnvHealthCheckInterval, raw, MinHealthCheckInterval)
		}
		cfg.HealthCheckInterval = d
	}

	if raw, ok := lookupNonEmpty(lookup, EnvAutoFix); ok {
		enabled, err := strconv.ParseBool(raw)
		if err != nil {
			return Config{}, fmt.Errorf("%w: parsing %s %q: %w", ErrInvalidConfig, EnvAutoFix, raw, err)
		}
		cfg.AutoFix.Enabled = enabled
	}

	return cfg, nil
}

func lookupNonEmpty(lookup LookupFunc, key string) (string, bool) {
	v, ok := lookup(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func pickDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}
