//go:build v8

package edgejs

import (
	"github.com/ionlattice/edgejs/internal/core"
	"github.com/ionlattice/edgejs/internal/v8engine"
)

func newBackend() core.EngineBackend {
	return v8engine.NewEngine()
}
