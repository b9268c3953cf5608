package repokit

// Binder turns a Queryer, usually the current transaction, into a repo
// such as the location StorageRepo
type Binder[T any] interface {
	Bind(Queryer) T
}

// BindFunc adapts a constructor like repo.New to Binder
type BindFunc[T any] func(Queryer) T

func (f BindFunc[T]) Bind(q Queryer) T { return f(q) }

// RequireQueryer returns q and panics when it is nil; a nil queryer is a
// wiring bug, not a runtime condition
func RequireQueryer(q Queryer) Queryer {
	if q == nil {
		panic("repokit: bind needs a non nil Queryer")
	}
	return q
}

// MustBind binds b to q after RequireQueryer
func MustBind[T any](b Binder[T], q Queryer) T {
	return b.Bind(RequireQueryer(q))
}
