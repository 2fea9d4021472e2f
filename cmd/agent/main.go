//go:build js && wasm

package main

import (
	"github.com/nathannam/crav-agent/internal/agent"
	"github.com/nathannam/crav-agent/internal/browser"
	"github.com/nathannam/crav-agent/internal/telemetry"
)

// version is set with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	cleanup := telemetry.SetupInstrumentation("crav-agent", version)
	defer cleanup()

	logger := telemetry.GetLogger()

	manager := agent.NewManager(telemetry.Factory(), agent.WithLogger(logger))
	browser.Export("cravMonitoring", manager)

	if manager.Bootstrap(browser.New()) == nil {
		logger.Debug("Page running unmonitored")
	}

	// Listeners and timers call back into Go for the page lifetime
	done := make(chan struct{})
	<-done
}
