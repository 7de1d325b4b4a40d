package edgejs

import "github.com/ionlattice/edgejs/internal/core"

// Config holds runtime configuration for a Context's engine instance.
type Config = core.Config
