package edgejs

import "github.com/ionlattice/edgejs/internal/core"

// Type aliases re-exporting internal/core types so downstream code can use
// edgejs.Config, edgejs.LogEntry, etc. without importing the internal
// package directly.

type EvalResult = core.EvalResult
