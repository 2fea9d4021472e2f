//go:build js && wasm

package browser

import (
	"syscall/js"

	"github.com/nathannam/crav-agent/internal/agent"
)

// Export publishes initialize(appKey?) and current() on globalThis[name]
func Export(name string, m *agent.Manager) {
	initialize := js.FuncOf(func(this js.Value, args []js.Value) interface{} {
		key := ""
		if len(args) > 0 && args[0].Type() == js.TypeString {
			key = args[0].String()
		}
		return describe(m.Initialize(key))
	})

	current := js.FuncOf(func(this js.Value, args []js.Value) interface{} {
		return describe(m.Current())
	})

	js.Global().Set(name, js.ValueOf(map[string]interface{}{
		"initialize": initialize,
		"current":    current,
	}))
}

func describe(a *agent.Agent) interface{} {
	if a == nil {
		return js.Null()
	}
	cfg := a.Config()
	return js.ValueOf(map[string]interface{}{
		"appId":    cfg.AppID,
		"appName":  cfg.AppName,
		"category": cfg.Category.String(),
		"apiUrl":   cfg.APIURL,
	})
}
