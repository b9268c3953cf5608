package domain

import (
	"context"
	"errors"
)

// RefCountry is one authoritative country
type RefCountry struct {
	Alpha2 string
	Alpha3 string
	Name   string
}

// RefSubdivision is one authoritative subdivision; Acronym is the code
// segment after the country prefix
type RefSubdivision struct {
	Code    string
	Name    string
	Acronym string
}

// ErrNoSubdivisions is the reference signal for a country with no subdivisions
var ErrNoSubdivisions = errors.New("reference: no subdivisions for country")

// Plan is one operator invocation over an entity kind.
// Actions run in pipeline order regardless of flag order.
type Plan struct {
	Kind         Kind   `flag:"entity" validate:"required,oneof=countries states cities"`
	Clean        bool   `flag:"clean"`
	Unificate    bool   `flag:"unificate"`
	LoadOfficial bool   `flag:"load-official"`
	FuzzyMatch   bool   `flag:"fuzzy-match-enabled"`
	Threshold    int    `flag:"fuzzy-match" validate:"min=0,max=100"`
	Reprocess    bool   `flag:"reprocess"`
	ApplyMatches bool   `flag:"apply-matches"`
	UnsetMatches bool   `flag:"unset-matches"`
	Name         string `flag:"name" validate:"required_if=UnsetMatches true"`
}

// Actions lists the requested steps in pipeline order
func (p Plan) Actions() []Action {
	var out []Action
	if p.Clean {
		out = append(out, ActionClean)
	}
	if p.Unificate {
		out = append(out, ActionUnificate)
	}
	if p.LoadOfficial {
		out = append(out, ActionLoadOfficial)
	}
	if p.FuzzyMatch {
		out = append(out, ActionFuzzyMatch)
	}
	if p.ApplyMatches {
		out = append(out, ActionApplyMatches)
	}
	if p.UnsetMatches {
		out = append(out, ActionUnsetMatches)
	}
	return out
}

// NormalizerPort is the public port of the location module
type NormalizerPort interface {
	Run(ctx context.Context, p Plan) ([]Report, error)

	Clean(ctx context.Context, k Kind) (Report, error)
	Unificate(ctx context.Context, k Kind) (Report, error)
	LoadOfficial(ctx context.Context, k Kind) (Report, error)
	FuzzyMatch(ctx context.Context, k Kind, threshold int, reprocess bool) (Report, error)
	ApplyMatches(ctx context.Context, k Kind, name string) (Report, error)
	UnsetMatches(ctx context.Context, k Kind, name string) (Report, error)
}

// Reference is the authoritative country and subdivision source
type Reference interface {
	Countries() []RefCountry
	Subdivisions(alpha2 string) ([]RefSubdivision, error)
}

// StorageRepo is the tx-bound persistence port
type StorageRepo interface {
	// ListEntities returns rows ordered by name, created_at, id
	ListEntities(ctx context.Context, k Kind, f EntityFilter) ([]Entity, error)
	GetEntity(ctx context.Context, k Kind, id int64) (Entity, error)
	// FindByKey matches the unique key exactly; cities ignore acronym
	FindByKey(ctx context.Context, k Kind, name string, acronym *string) (Entity, bool, error)
	// FindByNameFold matches name case-insensitively and acronym exactly
	FindByNameFold(ctx context.Context, k Kind, name string, acronym *string) (Entity, bool, error)
	InsertEntity(ctx context.Context, e Entity) (int64, error)
	// UpdateEntity writes name, acronym, acron3, region and status
	UpdateEntity(ctx context.Context, e Entity) error
	// SetStatus moves ids to status to; from limits the source statuses when set.
	// Returns how many rows changed.
	SetStatus(ctx context.Context, k Kind, ids []int64, from []Status, to Status) (int, error)
	DeleteEntity(ctx context.Context, k Kind, id int64) error

	LocationsReferencing(ctx context.Context, k Kind, id int64) ([]Location, error)
	// FindLocation matches the triple with null equal to null, skipping excludeID
	FindLocation(ctx context.Context, country, state, city *int64, excludeID int64) (Location, bool, error)
	SetLocationRef(ctx context.Context, locationID int64, k Kind, id int64) error
	DeleteLocation(ctx context.Context, id int64) error
	CountLocations(ctx context.Context) (int, error)

	GetMatch(ctx context.Context, k Kind, officialID int64) (Match, bool, error)
	ListMatches(ctx context.Context, k Kind) ([]Match, error)
	// UpsertMatch returns the match row for officialID, creating it when missing
	UpsertMatch(ctx context.Context, k Kind, officialID int64, score int) (int64, error)
	AddMatchMember(ctx context.Context, k Kind, matchID, memberID int64) error
	// ClearMatchMembers empties the member set and returns what it held
	ClearMatchMembers(ctx context.Context, k Kind, matchID int64) ([]int64, error)
	DeleteMatches(ctx context.Context, k Kind) (int, error)
}
