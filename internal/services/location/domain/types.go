// Package domain holds the entities, lifecycle and ports of location normalization
package domain

import (
	"time"

	perr "locnorm/internal/platform/errors"
	pstr "locnorm/internal/platform/strings"
)

// Status is the closed lifecycle of a location entity
type Status string

const (
	// StatusRaw is an imported value nobody has looked at yet
	StatusRaw Status = "RAW"
	// StatusCleaned has normalized strings but no reconciled identity
	StatusCleaned Status = "CLEANED"
	// StatusMatched is linked to an official record, references not yet rewritten
	StatusMatched Status = "MATCHED"
	// StatusProcessed is a matched record whose references now point at the official one
	StatusProcessed Status = "PROCESSED"
	// StatusOfficial comes from the reference dataset
	StatusOfficial Status = "OFFICIAL"
)

// Statuses lists every lifecycle value in order
var Statuses = []Status{StatusRaw, StatusCleaned, StatusMatched, StatusProcessed, StatusOfficial}

// Valid reports whether s is a known status
func (s Status) Valid() bool {
	for _, v := range Statuses {
		if s == v {
			return true
		}
	}
	return false
}

// CanBecome guards lifecycle moves made by the engine.
// Promotion to OFFICIAL is allowed from anything but PROCESSED.
func (s Status) CanBecome(to Status) bool {
	switch to {
	case StatusCleaned:
		return s == StatusRaw || s == StatusCleaned || s == StatusMatched
	case StatusMatched:
		return s == StatusCleaned || s == StatusMatched
	case StatusProcessed:
		return s == StatusMatched || s == StatusProcessed
	case StatusOfficial:
		return s != StatusProcessed
	}
	return false
}

// Kind names an entity table
type Kind string

const (
	KindCountry Kind = "countries"
	KindState   Kind = "states"
	KindCity    Kind = "cities"
)

// ParseKind accepts the plural CLI names
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindCountry, KindState, KindCity:
		return k, nil
	}
	return "", perr.InvalidArgf("unknown entity %q", s)
}

// Matchable reports whether the kind has an authoritative reference
func (k Kind) Matchable() bool { return k == KindCountry || k == KindState }

// Entity is a Country, State or City row
type Entity struct {
	ID        int64
	Kind      Kind
	Name      *string
	Acronym   *string // countries and states
	Acron3    *string // countries only
	Region    *string // states only
	Status    Status
	CreatedAt time.Time
}

// NameOr returns the name or "" when null
func (e Entity) NameOr() string { return pstr.Deref(e.Name) }

// AcronymOr returns the acronym or "" when null
func (e Entity) AcronymOr() string { return pstr.Deref(e.Acronym) }

// Location points at up to one country, state and city
type Location struct {
	ID        int64
	CountryID *int64
	StateID   *int64
	CityID    *int64
	Region    *string
}

// Ref returns the reference held for kind
func (l Location) Ref(k Kind) *int64 {
	switch k {
	case KindCountry:
		return l.CountryID
	case KindState:
		return l.StateID
	case KindCity:
		return l.CityID
	}
	return nil
}

// With returns a copy of l with the kind reference replaced
func (l Location) With(k Kind, id int64) Location {
	switch k {
	case KindCountry:
		l.CountryID = &id
	case KindState:
		l.StateID = &id
	case KindCity:
		l.CityID = &id
	}
	return l
}

// Refs counts the populated references
func (l Location) Refs() int {
	n := 0
	for _, p := range []*int64{l.CountryID, l.StateID, l.CityID} {
		if p != nil {
			n++
		}
	}
	return n
}

// Compound is true when the triple identifies the row (two or more references)
func (l Location) Compound() bool { return l.Refs() >= 2 }

// Match links one official record to the non-official records matched to it
type Match struct {
	ID         int64
	Kind       Kind
	OfficialID int64
	Score      int
	Members    []int64
}

// EntityFilter narrows ListEntities; zero value lists everything
type EntityFilter struct {
	Statuses []Status
	// NameFold keeps rows whose name equals it case-insensitively
	NameFold string
	// HasName drops rows with a null name
	HasName bool
}
