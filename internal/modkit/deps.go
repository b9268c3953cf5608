// Package modkit provides module wiring and core deps
package modkit

import (
	"locnorm/internal/modkit/repokit"
	"locnorm/internal/platform/config"
	"locnorm/internal/platform/logger"
)

// Deps holds core dependencies passed to modules
// this is wiring only and does not introduce new abstractions
type Deps struct {
	Log logger.Logger
	Cfg config.Conf
	PG  repokit.TxRunner
}

// MustPG returns the transaction runner or panics when a module was wired without one
func (d Deps) MustPG() repokit.TxRunner {
	if d.PG == nil {
		panic("modkit: Deps.PG is nil")
	}
	return d.PG
}
