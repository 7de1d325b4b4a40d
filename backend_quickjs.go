//go:build !v8

package edgejs

import (
	"github.com/ionlattice/edgejs/internal/core"
	"github.com/ionlattice/edgejs/internal/quickjs"
)

func newBackend() core.EngineBackend {
	return quickjs.NewEngine()
}
