//go:build !v8

package quickjs

import (
	"fmt"

	"github.com/ionlattice/edgejs/internal/core"
	"github.com/ionlattice/edgejs/internal/eventloop"
	"github.com/ionlattice/edgejs/internal/webapi"
	"modernc.org/quickjs"
)

// qjsContext is a single QuickJS VM backing exactly one edgejs.Context for
// its entire lifetime. There is no pooling: a Context owns its VM until
// Close is called.
type qjsContext struct {
	vm        *quickjs.VM
	rt        *qjsRuntime
	eventLoop *eventloop.EventLoop
	id        uint64
	cfg       core.Config
}

// setupFunc configures a QuickJS VM with one Web API surface.
type setupFunc func(rt core.JSRuntime, el *eventloop.EventLoop) error

// buildSetupFuncs returns every Web API setup function a Context needs,
// in dependency order (Globals/Encoding before Streams/Fetch, which use
// them internally; UnhandledRejection last since it wraps Promise itself).
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

// newQJSContext creates a single QuickJS VM, runs every setup function, and
// wires it to a fresh execution state and event loop.
func newQJSContext(cfg core.Config) (*qjsContext, error) {
	vm, err := quickjs.NewVM()
	if err != nil {
		return nil, fmt.Errorf("creating QuickJS VM: %w", err)
	}

	if cfg.MemoryLimitMB > 0 {
		vm.SetMemoryLimit(uintptr(cfg.MemoryLimitMB) * 1024 * 1024)
	}

	rt := &qjsRuntime{vm: vm}
	el := eventloop.New()

	for _, setup := range buildSetupFuncs(cfg) {
		if err := setup(rt, el); err != nil {
			vm.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	id := core.NewExecutionState(cfg.MaxFetchRequests)
	if err := rt.SetGlobal("__contextID", fmt.Sprint(id)); err != nil {
		core.ClearExecutionState(id)
		vm.Close()
		return nil, fmt.Errorf("setting context ID: %w", err)
	}

	return &qjsContext{vm: vm, rt: rt, eventLoop: el, id: id, cfg: cfg}, nil
}
