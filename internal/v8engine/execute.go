//go:build v8

package v8engine

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ionlattice/edgejs/internal/core"
	"github.com/ionlattice/edgejs/internal/webapi"
)

// Engine constructs v8Contexts. It is the V8 implementation of
// core.EngineBackend, selected at compile time by the v8 build tag.
type Engine struct{}

// NewEngine returns a V8-backed EngineBackend.
func NewEngine() *Engine {
	return &Engine{}
}

// NewContext builds a fresh V8 isolate configured with every Web API in
// internal/webapi and returns a handle bound to it for the isolate's
// lifetime.
func (e *Engine) NewContext(cfg core.Config) (core.ContextHandle, error) {
	ctx, err := newV8Context(cfg)
	if err != nil {
		return nil, err
	}
	return ctx, nil
}

var _ core.EngineBackend = (*Engine)(nil)
var _ core.ContextHandle = (*v8Context)(nil)

// withWatchdog runs fn under a timer that terminates the isolate's
// execution if it runs longer than the context's configured execution
// timeout, distinguishing a timeout-triggered panic from an ordinary
// script panic in the deferred recovery.
func (c *v8Context) withWatchdog(fn func() error) (panicErr error, timedOut bool) {
	var to atomic.Bool
	timeout := time.Duration(c.cfg.ExecutionTimeout) * time.Millisecond
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	watchdog := time.AfterFunc(timeout, func() {
		to.Store(true)
		c.iso.TerminateExecution()
	})
	defer func() {
		watchdog.Stop()
		if r := recover(); r != nil {
			if to.Load() {
				panicErr = fmt.Errorf("execution timed out (limit: %v)", timeout)
			} else {
				panicErr = fmt.Errorf("script panic: %v", r)
			}
		}
	}()
	if err := fn(); err != nil {
		if to.Load() {
			return fmt.Errorf("execution timed out (limit: %v)", timeout), true
		}
		return err, false
	}
	return nil, to.Load()
}

func (c *v8Context) deadline() time.Time {
	timeout := time.Duration(c.cfg.ExecutionTimeout) * time.Millisecond
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return time.Now().Add(timeout)
}

// Evaluate runs source to completion, drains the microtask queue and any
// already-ripe timers/fetches, and returns the last expression's value.
func (c *v8Context) Evaluate(source string) (res *core.EvalResult, err error) {
	start := time.Now()
	res = &core.EvalResult{}

	panicErr, _ := c.withWatchdog(func() error {
		v, evalErr := c.ctx.RunScript(source, "evaluate.js")
		if evalErr != nil {
			return evalErr
		}
		return c.rt.SetGlobal("__eval_result", v)
	})
	if panicErr != nil {
		res.Error = panicErr
		res.Duration = time.Since(start)
		res.Logs = core.DrainLogs(c.id)
		return res, panicErr
	}

	c.rt.RunMicrotasks()
	if c.eventLoop.HasPending() {
		c.eventLoop.Drain(c.rt, time.Now())
		c.rt.RunMicrotasks()
	}

	jsonStr, serErr := webapi.SerializeGlobal(c.rt, "__eval_result")
	_, _ = c.ctx.RunScript("delete globalThis.__eval_result;", "cleanup.js")
	if serErr != nil {
		res.Error = serErr
		res.Duration = time.Since(start)
		res.Logs = core.DrainLogs(c.id)
		return res, serErr
	}

	res.JSON = jsonStr
	res.Duration = time.Since(start)
	res.Logs = core.DrainLogs(c.id)
	return res, nil
}

// Await evaluates expr, then drains the event loop and microtask queue
// until the resulting value (typically a Promise) settles or the context's
// execution timeout elapses.
func (c *v8Context) Await(expr string) (res *core.EvalResult, err error) {
	start := time.Now()
	res = &core.EvalResult{}
	deadline := c.deadline()

	panicErr, _ := c.withWatchdog(func() error {
		v, evalErr := c.ctx.RunScript(expr, "await.js")
		if evalErr != nil {
			return evalErr
		}
		if setErr := c.rt.SetGlobal("__await_target", v); setErr != nil {
			return setErr
		}
		c.rt.RunMicrotasks()
		if c.eventLoop.HasPending() {
			c.eventLoop.Drain(c.rt, deadline)
		}
		return webapi.AwaitValue(c.rt, "__await_target", deadline, c.eventLoop)
	})
	if panicErr != nil {
		res.Error = panicErr
		res.Duration = time.Since(start)
		res.Logs = core.DrainLogs(c.id)
		return res, panicErr
	}

	jsonStr, serErr := webapi.SerializeGlobal(c.rt, "__await_target")
	_, _ = c.ctx.RunScript("delete globalThis.__await_target;", "cleanup.js")
	res.Duration = time.Since(start)
	res.Logs = core.DrainLogs(c.id)
	if serErr != nil {
		res.Error = serErr
		return res, serErr
	}
	res.JSON = jsonStr
	return res, nil
}

// SetGlobal assigns a global variable visible to subsequent Evaluate calls.
func (c *v8Context) SetGlobal(name string, value any) error {
	return c.rt.SetGlobal(name, value)
}

// RegisterNativeFunction exposes a Go function as a global JS function.
func (c *v8Context) RegisterNativeFunction(name string, fn any) error {
	return c.rt.RegisterFunc(name, fn)
}

// Logs drains and returns console output captured since the last call.
func (c *v8Context) Logs() []core.LogEntry {
	return core.DrainLogs(c.id)
}

// Close releases the underlying isolate and its execution state.
func (c *v8Context) Close() {
	core.ClearExecutionState(c.id)
	c.ctx.Close()
	c.iso.Dispose()
}
