package edgejs

import "github.com/ionlattice/edgejs/internal/core"

// EngineBackend is implemented once per compiled-in JS engine (V8 behind
// the "v8" build tag, QuickJS otherwise) and constructs the ContextHandle
// backing each Context.
type EngineBackend = core.EngineBackend
