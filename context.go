// Package edgejs embeds a JavaScript engine (QuickJS by default, V8 with
// the "v8" build tag) behind a single-threaded, Web-standards-shaped host
// API: timers, microtasks, Streams, Fetch, Blob/File/FileReader, text and
// base64 codecs, Web Crypto, AbortController, and a minimal process object.
package edgejs

import "github.com/ionlattice/edgejs/internal/core"

// Context owns exactly one JS engine instance (one VM/isolate) for its
// entire lifetime. Contexts are isolated from one another: no state is
// shared except the ambient process environment exposed via process.env.
// Only the goroutine that created a Context — or one serialized through
// external synchronization — may call its methods; the underlying engine
// may be touched from a single thread at a time.
type Context struct {
	handle core.ContextHandle
	logs   []LogEntry
}

// CreateContext builds a new Context: a fresh VM configured with every
// Web API the runtime exposes (see internal/webapi), ready to evaluate
// script.
func CreateContext(cfg Config) (*Context, error) {
	handle, err := newBackend().NewContext(cfg)
	if err != nil {
		return nil, err
	}
	return &Context{handle: handle}, nil
}

// Evaluate runs source to completion on the context's engine, draining the
// microtask queue and any already-ripe timers/fetches before returning the
// value of the last expression evaluated.
func (c *Context) Evaluate(source string) (Value, error) {
	res, err := c.handle.Evaluate(source)
	if res != nil {
		c.logs = append(c.logs, res.Logs...)
	}
	return newValue(res), err
}

// Await evaluates expr — normally a Promise-returning expression — and
// runs the event loop until it settles or the context's configured
// execution timeout elapses. Any `throw` inside expr, or a rejected
// Promise, is reported as an error wrapping the script's message.
func (c *Context) Await(expr string) (Value, error) {
	res, err := c.handle.Await(expr)
	if res != nil {
		c.logs = append(c.logs, res.Logs...)
	}
	return newValue(res), err
}

// SetGlobal assigns a global variable visible to subsequent Evaluate/Await
// calls. Strings, numbers, bools, and JSON-marshalable Go values are
// accepted; the value is converted to its JS equivalent.
func (c *Context) SetGlobal(name string, v any) error {
	return c.handle.SetGlobal(name, v)
}

// RegisterNativeFunction exposes a Go function as a global JS function.
// fn's signature is marshaled via reflection: Go arguments/return values
// convert to/from their JS equivalents, and a non-nil error return becomes
// a thrown JS error.
func (c *Context) RegisterNativeFunction(name string, fn any) error {
	return c.handle.RegisterNativeFunction(name, fn)
}

// Logs drains and returns console.* output captured since the last call.
func (c *Context) Logs() []LogEntry {
	logs := append(c.logs, c.handle.Logs()...)
	c.logs = nil
	return logs
}

// Shutdown releases the context's VM. Pending timers and in-flight
// fetches are cancelled best-effort; the context must not be used after
// Shutdown returns.
func (c *Context) Shutdown() {
	c.handle.Close()
}
