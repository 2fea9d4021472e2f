//go:build js && wasm

package browser

import (
	"sync"
	"syscall/js"
	"time"

	"github.com/nathannam/crav-agent/internal/agent"
)

// Host binds the agent to the browser window.
// Registered callbacks live for the page lifetime and are never released.
// Handlers run inside JS callbacks and must not block.
type Host struct {
	mu        sync.Mutex
	callbacks []js.Func
	started   time.Time
}

var _ agent.Host = (*Host)(nil)

// New creates a host for the current window
func New() *Host {
	return &Host{started: time.Now()}
}

// keep pins a callback so the Go side does not drop it
func (h *Host) keep(fn js.Func) js.Func {
	h.mu.Lock()
	h.callbacks = append(h.callbacks, fn)
	h.mu.Unlock()
	return fn
}

// OnUncaughtFault listens for window error events
func (h *Host) OnUncaughtFault(handler func(agent.Fault)) {
	callback := h.keep(js.FuncOf(func(this js.Value, args []js.Value) interface{} {
		if len(args) == 0 {
			return nil
		}
		event := args[0]
		handler(agent.Fault{
			Message:  stringProp(event, "message"),
			Filename: stringProp(event, "filename"),
			Line:     intProp(event, "lineno"),
			Column:   intProp(event, "colno"),
			Stack:    stringProp(prop(event, "error"), "stack"),
		})
		return nil
	}))
	js.Global().Call("addEventListener", "error", callback)
}

// OnUnhandledRejection listens for window unhandledrejection events
func (h *Host) OnUnhandledRejection(handler func(agent.Rejection)) {
	callback := h.keep(js.FuncOf(func(this js.Value, args []js.Value) interface{} {
		if len(args) == 0 {
			return nil
		}
		reason := prop(args[0], "reason")
		handler(agent.Rejection{
			Message: stringProp(reason, "message"),
			Stack:   stringProp(reason, "stack"),
		})
		return nil
	}))
	js.Global().Call("addEventListener", "unhandledrejection", callback)
}

// OnLoadComplete runs handler after the window load event. The wasm module
// usually starts after load has fired, in which case handler is scheduled
// for the next tick instead.
func (h *Host) OnLoadComplete(handler func()) {
	document := js.Global().Get("document")
	if stringProp(document, "readyState") == "complete" {
		h.Defer(handler)
		return
	}

	var callback js.Func
	callback = js.FuncOf(func(this js.Value, args []js.Value) interface{} {
		js.Global().Call("removeEventListener", "load", callback)
		callback.Release()
		handler()
		return nil
	})
	js.Global().Call("addEventListener", "load", callback)
}

// Defer schedules fn with setTimeout(fn, 0)
func (h *Host) Defer(fn func()) {
	var callback js.Func
	callback = js.FuncOf(func(this js.Value, args []js.Value) interface{} {
		callback.Release()
		fn()
		return nil
	})
	js.Global().Call("setTimeout", callback, 0)
}

// NavigationTiming reads performance.timing
func (h *Host) NavigationTiming() (agent.NavigationTiming, bool) {
	timing := prop(js.Global().Get("performance"), "timing")
	if !isObject(timing) {
		return agent.NavigationTiming{}, false
	}
	return agent.NavigationTiming{
		NavigationStart:          floatProp(timing, "navigationStart"),
		DomainLookupStart:        floatProp(timing, "domainLookupStart"),
		DomainLookupEnd:          floatProp(timing, "domainLookupEnd"),
		ConnectStart:             floatProp(timing, "connectStart"),
		ConnectEnd:               floatProp(timing, "connectEnd"),
		RequestStart:             floatProp(timing, "requestStart"),
		ResponseStart:            floatProp(timing, "responseStart"),
		ResponseEnd:              floatProp(timing, "responseEnd"),
		DOMContentLoadedEventEnd: floatProp(timing, "domContentLoadedEventEnd"),
		LoadEventEnd:             floatProp(timing, "loadEventEnd"),
	}, true
}

// Page returns the location and user agent of the document
func (h *Host) Page() agent.PageContext {
	location := js.Global().Get("location")
	return agent.PageContext{
		URL:       stringProp(location, "href"),
		Path:      stringProp(location, "pathname"),
		UserAgent: stringProp(js.Global().Get("navigator"), "userAgent"),
	}
}

// Uptime reads performance.now(), falling back to the Go monotonic clock
func (h *Host) Uptime() time.Duration {
	performance := js.Global().Get("performance")
	if isObject(performance) && prop(performance, "now").Type() == js.TypeFunction {
		ms := performance.Call("now").Float()
		return time.Duration(ms * float64(time.Millisecond))
	}
	return time.Since(h.started)
}

// Every runs fn with setInterval
func (h *Host) Every(interval time.Duration, fn func()) {
	callback := h.keep(js.FuncOf(func(this js.Value, args []js.Value) interface{} {
		fn()
		return nil
	}))
	js.Global().Call("setInterval", callback, interval.Milliseconds())
}

func isObject(v js.Value) bool {
	t := v.Type()
	return t == js.TypeObject || t == js.TypeFunction
}

// prop reads v[name], yielding undefined when v is not an object
func prop(v js.Value, name string) js.Value {
	if !isObject(v) {
		return js.Undefined()
	}
	return v.Get(name)
}

func stringProp(v js.Value, name string) string {
	p := prop(v, name)
	if p.Type() != js.TypeString {
		return ""
	}
	return p.String()
}

func floatProp(v js.Value, name string) float64 {
	p := prop(v, name)
	if p.Type() != js.TypeNumber {
		return 0
	}
	return p.Float()
}

func intProp(v js.Value, name string) int {
	return int(floatProp(v, name))
}
