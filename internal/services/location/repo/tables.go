package repo

import (
	perr "locnorm/internal/platform/errors"
	"locnorm/internal/services/location/domain"
)

// table names the sql objects behind one entity kind
type table struct {
	name      string // entity table
	sel       string // select list scanned by scanEntity
	locCol    string // location_location column referencing it
	match     string // *_matched table, empty for cities
	member    string // *_matched_member table
	memberCol string // member column referencing the entity
}

var tables = map[domain.Kind]table{
	domain.KindCountry: {
		name:      "location_country",
		sel:       "id, name, acronym, acron3, NULL::text, status, created_at",
		locCol:    "country_id",
		match:     "location_country_matched",
		member:    "location_country_matched_member",
		memberCol: "country_id",
	},
	domain.KindState: {
		name:      "location_state",
		sel:       "id, name, acronym, NULL::text, region, status, created_at",
		locCol:    "state_id",
		match:     "location_state_matched",
		member:    "location_state_matched_member",
		memberCol: "state_id",
	},
	domain.KindCity: {
		name:   "location_city",
		sel:    "id, name, NULL::text, NULL::text, NULL::text, status, created_at",
		locCol: "city_id",
	},
}

func tableOf(k domain.Kind) (table, error) {
	t, ok := tables[k]
	if !ok {
		return table{}, perr.InvalidArgf("repo: unknown entity kind %q", k)
	}
	return t, nil
}

func matchTableOf(k domain.Kind) (table, error) {
	t, err := tableOf(k)
	if err != nil {
		return t, err
	}
	if t.match == "" {
		return t, perr.InvalidArgf("repo: %s have no match tables", k)
	}
	return t, nil
}
