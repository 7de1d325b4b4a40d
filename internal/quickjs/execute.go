//go:build !v8

package quickjs

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ionlattice/edgejs/internal/core"
	"github.com/ionlattice/edgejs/internal/webapi"
	"modernc.org/quickjs"
)

// Engine constructs qjsContexts. It is the QuickJS implementation of
// core.EngineBackend, selected at compile time by the absence of the v8
// build tag.
type Engine struct{}

// NewEngine returns a QuickJS-backed EngineBackend.
func NewEngine() *Engine {
	return &Engine{}
}

// NewContext builds a fresh QuickJS VM configured with every Web API in
// internal/webapi and returns a handle bound to it for the VM's lifetime.
func (e *Engine) NewContext(cfg core.Config) (core.ContextHandle, error) {
	ctx, err := newQJSContext(cfg)
	if err != nil {
		return nil, err
	}
	return ctx, nil
}

var _ core.EngineBackend = (*Engine)(nil)
var _ core.ContextHandle = (*qjsContext)(nil)

// withWatchdog runs fn under a timer that interrupts the VM if it runs
// longer than the context's configured execution timeout, distinguishing a
// timeout-triggered panic from an ordinary script panic in the deferred
// recovery.
func (c *qjsContext) withWatchdog(fn func() error) (panicErr error, timedOut bool) {
	var to atomic.Bool
	timeout := time.Duration(c.cfg.ExecutionTimeout) * time.Millisecond
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	watchdog := time.AfterFunc(timeout, func() {
		to.Store(true)
		c.vm.Interrupt()
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

func (c *qjsContext) deadline() time.Time {
	timeout := time.Duration(c.cfg.ExecutionTimeout) * time.Millisecond
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return time.Now().Add(timeout)
}

// Evaluate runs source to completion, drains the microtask queue and any
// already-ripe timers/fetches, and returns the last expression's value.
func (c *qjsContext) Evaluate(source string) (res *core.EvalResult, err error) {
	start := time.Now()
	res = &core.EvalResult{}

	panicErr, _ := c.withWatchdog(func() error {
		v, evalErr := c.vm.EvalValue(source, quickjs.EvalGlobal)
		if evalErr != nil {
			return evalErr
		}
		setErr := c.rt.SetGlobal("__eval_result", v)
		v.Free()
		return setErr
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
	_ = c.rt.Eval("delete globalThis.__eval_result;")
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
func (c *qjsContext) Await(expr string) (res *core.EvalResult, err error) {
	start := time.Now()
	res = &core.EvalResult{}
	deadline := c.deadline()

	panicErr, _ := c.withWatchdog(func() error {
		v, evalErr := c.vm.EvalValue(expr, quickjs.EvalGlobal)
		if evalErr != nil {
			return evalErr
		}
		setErr := c.rt.SetGlobal("__await_target", v)
		v.Free()
		if setErr != nil {
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
	_ = c.rt.Eval("delete globalThis.__await_target;")
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
func (c *qjsContext) SetGlobal(name string, value any) error {
	return c.rt.SetGlobal(name, value)
}

// RegisterNativeFunction exposes a Go function as a global JS function.
func (c *qjsContext) RegisterNativeFunction(name string, fn any) error {
	return c.rt.RegisterFunc(name, fn)
}

// Logs drains and returns console output captured since the last call.
func (c *qjsContext) Logs() []core.LogEntry {
	return core.DrainLogs(c.id)
}

// Close releases the underlying VM and its execution state.
func (c *qjsContext) Close() {
	core.ClearExecutionState(c.id)
	c.vm.Close()
}
