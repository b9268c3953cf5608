package repo

import (
	"context"
	"errors"

	perr "locnorm/internal/platform/errors"
	"locnorm/internal/platform/store"
	"locnorm/internal/services/location/domain"
)

const locationCols = "id, country_id, state_id, city_id, region"

func scanLocation(r store.Row) (domain.Location, error) {
	var l domain.Location
	err := r.Scan(&l.ID, &l.CountryID, &l.StateID, &l.CityID, &l.Region)
	return l, err
}

// LocationsReferencing lists locations pointing at one entity, by id
func (r *queries) LocationsReferencing(ctx context.Context, k domain.Kind, id int64) ([]domain.Location, error) {
	t, err := tableOf(k)
	if err != nil {
		return nil, err
	}
	return store.Many(ctx, r.q, scanLocation,
		"SELECT "+locationCols+" FROM location_location WHERE "+t.locCol+" = $1 ORDER BY id", id)
}

// FindLocation matches the triple with null equal to null, skipping excludeID
func (r *queries) FindLocation(ctx context.Context, country, state, city *int64, excludeID int64) (domain.Location, bool, error) {
	l, err := store.One(ctx, r.q, scanLocation, `
		SELECT `+locationCols+` FROM location_location
		WHERE country_id IS NOT DISTINCT FROM $1
		  AND state_id IS NOT DISTINCT FROM $2
		  AND city_id IS NOT DISTINCT FROM $3
		  AND id <> $4
		ORDER BY id
		LIMIT 1
	`, country, state, city, excludeID)
	if errors.Is(err, perr.ErrNotFound) {
		return domain.Location{}, false, nil
	}
	if err != nil {
		return domain.Location{}, false, err
	}
	return l, true, nil
}

// LocationWriter creates location rows. Importers and fixtures use it;
// normalization only rewrites or deletes existing rows.
type LocationWriter interface {
	InsertLocation(ctx context.Context, l domain.Location) (int64, error)
}

var _ LocationWriter = (*queries)(nil)

// InsertLocation creates a location row
func (r *queries) InsertLocation(ctx context.Context, l domain.Location) (int64, error) {
	return store.Scalar[int64](ctx, r.q, `
		INSERT INTO location_location (country_id, state_id, city_id, region)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, l.CountryID, l.StateID, l.CityID, l.Region)
}

// SetLocationRef points one reference of a location at id
func (r *queries) SetLocationRef(ctx context.Context, locationID int64, k domain.Kind, id int64) error {
	t, err := tableOf(k)
	if err != nil {
		return err
	}
	err = store.ExecOne(ctx, r.q, "UPDATE location_location SET "+t.locCol+" = $2 WHERE id = $1", locationID, id)
	if errors.Is(err, store.ErrNotOneRow) {
		return perr.NotFoundf("location %d not found", locationID)
	}
	return err
}

// DeleteLocation removes one location row
func (r *queries) DeleteLocation(ctx context.Context, id int64) error {
	err := store.ExecOne(ctx, r.q, "DELETE FROM location_location WHERE id = $1", id)
	if errors.Is(err, store.ErrNotOneRow) {
		return perr.NotFoundf("location %d not found", id)
	}
	return err
}

// CountLocations returns the size of the location graph
func (r *queries) CountLocations(ctx context.Context) (int, error) {
	n, err := store.Scalar[int64](ctx, r.q, "SELECT count(*) FROM location_location")
	return int(n), err
}
