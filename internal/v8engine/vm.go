//go:build v8

package v8engine

import (
	"fmt"

	"github.com/ionlattice/edgejs/internal/core"
	"github.com/ionlattice/edgejs/internal/eventloop"
	"github.com/ionlattice/edgejs/internal/webapi"
	v8 "github.com/tommie/v8go"
)

// v8Context is a single V8 isolate+context pair backing exactly one
// edgejs.Context for its entire lifetime. There is no pooling.
type v8Context struct {
	iso       *v8.Isolate
	ctx       *v8.Context
	rt        *v8Runtime
	eventLoop *eventloop.EventLoop
	id        uint64
	cfg       core.Config
}

// setupFunc configures a V8 context with one Web API surface.
type setupFunc func(rt core.JSRuntime, el *eventloop.EventLoop) error

// buildSetupFuncs returns every Web API setup function a Context needs, in
// dependency order.
func buildSetupFuncs(cfg core.Config) []setupFunc {
	return []setupFunc{
		webapi.SetupWebAPIs,
		webapi.SetupURLSearchParamsExt,
		webapi.SetupGlobals,
		webapi.SetupEncoding,
		webapi.SetupTimers,
		webapi.SetupAbort,
		webapi.SetupReportError,
		webapi.SetupCrypto,
		webapi.SetupStreams,
		webapi.SetupTextStreams,
		webapi.SetupFormData,
		webapi.SetupBlobExt,
		webapi.SetupBodyTypes,
		webapi.SetupConsole,
		webapi.SetupConsoleExt,
		func(rt core.JSRuntime, el *eventloop.EventLoop) error {
			return webapi.SetupFetch(rt, cfg, el)
		},
		webapi.SetupFileReader,
		webapi.SetupProcess,
		webapi.SetupUnhandledRejection,
	}
}

// newV8Context creates a single V8 isolate+context, runs every setup
// function, and wires it to a fresh execution state and event loop.
func newV8Context(cfg core.Config) (*v8Context, error) {
	var iso *v8.Isolate
	if cfg.MemoryLimitMB > 0 {
		heapSize := uint64(cfg.MemoryLimitMB) * 1024 * 1024
		iso = v8.NewIsolate(v8.WithResourceConstraints(heapSize/2, heapSize))
	} else {
		iso = v8.NewIsolate()
	}
	ctx := v8.NewContext(iso)
	rt := &v8Runtime{iso: iso, ctx: ctx}
	el := eventloop.New()

	for _, setup := range buildSetupFuncs(cfg) {
		if err := setup(rt, el); err != nil {
			ctx.Close()
			iso.Dispose()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	id := core.NewExecutionState(cfg.MaxFetchRequests)
	if err := rt.SetGlobal("__contextID", fmt.Sprint(id)); err != nil {
		core.ClearExecutionState(id)
		ctx.Close()
		iso.Dispose()
		return nil, fmt.Errorf("setting context ID: %w", err)
	}

	return &v8Context{iso: iso, ctx: ctx, rt: rt, eventLoop: el, id: id, cfg: cfg}, nil
}
