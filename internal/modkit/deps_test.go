package modkit

import (
	"testing"

	"locnorm/internal/modkit/repokit"
	"locnorm/internal/platform/config"
	kit "locnorm/internal/platform/testkit"
)

type nopTx struct{ repokit.TxRunner }

func TestDeps_MustPG(t *testing.T) {
	t.Parallel()

	var d Deps
	kit.MustPanic(t, func() { _ = d.MustPG() })

	d = Deps{Cfg: config.New(), PG: nopTx{}}
	if d.MustPG() == nil {
		t.Fatal("MustPG returned nil with PG set")
	}
}
