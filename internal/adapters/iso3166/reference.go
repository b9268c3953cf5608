package iso3166

import (
	"errors"
	"fmt"

	"locnorm/internal/services/location/domain"
)

// Reference adapts a Dataset to the location engine's reference port
type Reference struct {
	ds *Dataset
}

var _ domain.Reference = Reference{}

// NewReference wraps d
func NewReference(d *Dataset) Reference {
	return Reference{ds: d}
}

// Dataset returns the wrapped snapshot
func (r Reference) Dataset() *Dataset { return r.ds }

func (r Reference) Countries() []domain.RefCountry {
	cs := r.ds.Countries()
	out := make([]domain.RefCountry, len(cs))
	for i, c := range cs {
		out[i] = domain.RefCountry{Alpha2: c.Alpha2, Alpha3: c.Alpha3, Name: c.Name}
	}
	return out
}

func (r Reference) Subdivisions(alpha2 string) ([]domain.RefSubdivision, error) {
	subs, err := r.ds.Subdivisions(alpha2)
	if errors.Is(err, ErrNoSubdivisions) {
		return nil, fmt.Errorf("%w: %s", domain.ErrNoSubdivisions, alpha2)
	}
	if err != nil {
		return nil, err
	}
	out := make([]domain.RefSubdivision, len(subs))
	for i, s := range subs {
		out[i] = domain.RefSubdivision{Code: s.Code, Name: s.Name, Acronym: s.Acronym()}
	}
	return out, nil
}
