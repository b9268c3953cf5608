package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"locnorm/internal/adapters/iso3166"
	"locnorm/internal/core/fuzzy"
	"locnorm/internal/services/location/domain"
	"locnorm/internal/services/location/repo/repotest"
)

type fakeRef struct {
	countries []domain.RefCountry
	subs      map[string][]domain.RefSubdivision
}

func (f fakeRef) Countries() []domain.RefCountry { return f.countries }

func (f fakeRef) Subdivisions(alpha2 string) ([]domain.RefSubdivision, error) {
	s, ok := f.subs[alpha2]
	if !ok {
		return nil, domain.ErrNoSubdivisions
	}
	return s, nil
}

func embedded(t *testing.T) iso3166.Reference {
	t.Helper()
	ds, err := iso3166.Embedded()
	require.NoError(t, err)
	return iso3166.NewReference(ds)
}

func newSvc(t *testing.T, ref domain.Reference) (*Service, *repotest.Memory) {
	t.Helper()
	m := repotest.NewMemory()
	return New(m, m, ref, fuzzy.Score, Config{}, nil), m
}

func sp(s string) *string { return &s }

func ip(i int64) *int64 { return &i }

type seedOpt func(*domain.Entity)

func acr(a string) seedOpt  { return func(e *domain.Entity) { e.Acronym = &a } }
func acr3(a string) seedOpt { return func(e *domain.Entity) { e.Acron3 = &a } }

func status(s domain.Status) seedOpt { return func(e *domain.Entity) { e.Status = s } }

func seed(t *testing.T, m *repotest.Memory, k domain.Kind, name string, opts ...seedOpt) int64 {
	t.Helper()
	e := domain.Entity{Kind: k, Name: &name, Status: domain.StatusRaw}
	for _, o := range opts {
		o(&e)
	}
	id, err := m.InsertEntity(context.Background(), e)
	require.NoError(t, err)
	return id
}

func seedLoc(t *testing.T, m *repotest.Memory, l domain.Location) int64 {
	t.Helper()
	id, err := m.InsertLocation(context.Background(), l)
	require.NoError(t, err)
	return id
}

func get(t *testing.T, m *repotest.Memory, k domain.Kind, id int64) domain.Entity {
	t.Helper()
	e, err := m.GetEntity(context.Background(), k, id)
	require.NoError(t, err)
	return e
}

func names(es []domain.Entity) []string {
	out := make([]string, 0, len(es))
	for _, e := range es {
		out = append(out, e.NameOr())
	}
	return out
}
