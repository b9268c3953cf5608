// Package repotest holds an in-process location store for engine tests
package repotest

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"locnorm/internal/modkit/repokit"
	perr "locnorm/internal/platform/errors"
	"locnorm/internal/services/location/domain"
	"locnorm/internal/services/location/repo"
)

var (
	_ domain.StorageRepo                 = (*Memory)(nil)
	_ repo.LocationWriter                = (*Memory)(nil)
	_ repokit.TxRunner                   = (*Memory)(nil)
	_ repokit.Binder[domain.StorageRepo] = (*Memory)(nil)
)

// location_location column referencing each kind
var locCols = map[domain.Kind]string{
	domain.KindCountry: "country_id",
	domain.KindState:   "state_id",
	domain.KindCity:    "city_id",
}

// Memory is an in-process StorageRepo with the same constraints as the schema.
// It is its own TxRunner and Binder: Tx serializes callers and rolls back on error.
type Memory struct {
	mu sync.Mutex
	d  memData

	// Fail, when set, is consulted before every write and every location count;
	// a non-nil result aborts the call
	Fail func(op string, id int64) error
}

type memData struct {
	seq     int64
	clock   time.Time
	ents    map[domain.Kind]map[int64]domain.Entity
	locs    map[int64]domain.Location
	matches map[domain.Kind]map[int64]domain.Match
}

var errUnsupported = errors.New("repotest: memory store does not run sql")

// NewMemory returns an empty store
func NewMemory() *Memory {
	return &Memory{d: memData{
		clock:   time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		ents:    map[domain.Kind]map[int64]domain.Entity{domain.KindCountry: {}, domain.KindState: {}, domain.KindCity: {}},
		locs:    map[int64]domain.Location{},
		matches: map[domain.Kind]map[int64]domain.Match{domain.KindCountry: {}, domain.KindState: {}},
	}}
}

func (d memData) clone() memData {
	out := memData{seq: d.seq, clock: d.clock,
		ents:    map[domain.Kind]map[int64]domain.Entity{},
		locs:    make(map[int64]domain.Location, len(d.locs)),
		matches: map[domain.Kind]map[int64]domain.Match{},
	}
	for k, m := range d.ents {
		c := make(map[int64]domain.Entity, len(m))
		for id, e := range m {
			c[id] = e
		}
		out.ents[k] = c
	}
	for id, l := range d.locs {
		out.locs[id] = l
	}
	for k, m := range d.matches {
		c := make(map[int64]domain.Match, len(m))
		for id, mt := range m {
			mt.Members = slices.Clone(mt.Members)
			c[id] = mt
		}
		out.matches[k] = c
	}
	return out
}

// Bind implements repokit.Binder; the queryer is ignored
func (m *Memory) Bind(repokit.Queryer) domain.StorageRepo { return m }

// Tx runs fn under the store lock and restores the snapshot when fn fails
func (m *Memory) Tx(ctx context.Context, fn func(q repokit.Queryer) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := m.d.clone()
	if err := fn(m); err != nil {
		m.d = snap
		return err
	}
	return nil
}

// Exec accepts session statements such as SET LOCAL and does nothing
func (m *Memory) Exec(context.Context, string, ...any) (repokit.CommandTag, error) {
	return pgconn.NewCommandTag("SET"), nil
}

// Query is not supported
func (m *Memory) Query(context.Context, string, ...any) (repokit.Rows, error) {
	return nil, errUnsupported
}

// QueryRow is not supported
func (m *Memory) QueryRow(context.Context, string, ...any) repokit.Row { return errRow{} }

type errRow struct{}

func (errRow) Scan(...any) error { return errUnsupported }

func (m *Memory) fail(op string, id int64) error {
	if m.Fail == nil {
		return nil
	}
	return m.Fail(op, id)
}

func (m *Memory) next() (int64, time.Time) {
	m.d.seq++
	m.d.clock = m.d.clock.Add(time.Second)
	return m.d.seq, m.d.clock
}

func uniqueViolation(constraint string) error {
	return &pgconn.PgError{Code: "23505", ConstraintName: constraint, Message: "duplicate key value violates unique constraint"}
}

func fkViolation(constraint string) error {
	return &pgconn.PgError{Code: "23503", ConstraintName: constraint, Message: "update or delete violates foreign key constraint"}
}

func eqPtr[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func (m *Memory) kind(k domain.Kind) (map[int64]domain.Entity, error) {
	es, ok := m.d.ents[k]
	if !ok {
		return nil, perr.InvalidArgf("repotest: unknown entity kind %q", k)
	}
	return es, nil
}

func (m *Memory) keyTaken(k domain.Kind, e domain.Entity) bool {
	if e.Name == nil {
		return false
	}
	for id, o := range m.d.ents[k] {
		if id == e.ID || o.Name == nil || *o.Name != *e.Name {
			continue
		}
		if k == domain.KindCity || eqPtr(o.Acronym, e.Acronym) {
			return true
		}
	}
	return false
}

// ListEntities returns rows ordered by name (nulls last), created_at, id
func (m *Memory) ListEntities(_ context.Context, k domain.Kind, f domain.EntityFilter) ([]domain.Entity, error) {
	es, err := m.kind(k)
	if err != nil {
		return nil, err
	}
	var out []domain.Entity
	for _, e := range es {
		if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, e.Status) {
			continue
		}
		if f.NameFold != "" && (e.Name == nil || !strings.EqualFold(*e.Name, f.NameFold)) {
			continue
		}
		if f.HasName && e.Name == nil {
			continue
		}
		out = append(out, e)
	}
	slices.SortFunc(out, func(a, b domain.Entity) int {
		switch {
		case a.Name == nil && b.Name != nil:
			return 1
		case a.Name != nil && b.Name == nil:
			return -1
		case a.Name != nil && *a.Name != *b.Name:
			return strings.Compare(*a.Name, *b.Name)
		case !a.CreatedAt.Equal(b.CreatedAt):
			return a.CreatedAt.Compare(b.CreatedAt)
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}

// GetEntity loads one row or returns a not found error
func (m *Memory) GetEntity(_ context.Context, k domain.Kind, id int64) (domain.Entity, error) {
	es, err := m.kind(k)
	if err != nil {
		return domain.Entity{}, err
	}
	e, ok := es[id]
	if !ok {
		return e, perr.NotFoundf("%s %d not found", k, id)
	}
	return e, nil
}

// FindByKey matches the unique key exactly; cities ignore acronym
func (m *Memory) FindByKey(_ context.Context, k domain.Kind, name string, acronym *string) (domain.Entity, bool, error) {
	es, err := m.kind(k)
	if err != nil {
		return domain.Entity{}, false, err
	}
	for _, e := range es {
		if e.Name != nil && *e.Name == name && (k == domain.KindCity || eqPtr(e.Acronym, acronym)) {
			return e, true, nil
		}
	}
	return domain.Entity{}, false, nil
}

// FindByNameFold matches name case-insensitively and acronym exactly, official rows first
func (m *Memory) FindByNameFold(_ context.Context, k domain.Kind, name string, acronym *string) (domain.Entity, bool, error) {
	es, err := m.kind(k)
	if err != nil {
		return domain.Entity{}, false, err
	}
	var (
		best  domain.Entity
		found bool
	)
	for _, e := range es {
		if e.Name == nil || !strings.EqualFold(*e.Name, name) {
			continue
		}
		if k != domain.KindCity && !eqPtr(e.Acronym, acronym) {
			continue
		}
		if !found || better(e, best, name) {
			best, found = e, true
		}
	}
	return best, found, nil
}

func better(a, b domain.Entity, name string) bool {
	ao, bo := a.Status == domain.StatusOfficial, b.Status == domain.StatusOfficial
	if ao != bo {
		return ao
	}
	ax, bx := *a.Name == name, *b.Name == name
	if ax != bx {
		return ax
	}
	return a.ID < b.ID
}

// InsertEntity creates a row and returns its id
func (m *Memory) InsertEntity(_ context.Context, e domain.Entity) (int64, error) {
	es, err := m.kind(e.Kind)
	if err != nil {
		return 0, err
	}
	if err := m.fail("insert_entity", 0); err != nil {
		return 0, err
	}
	e.ID = 0
	if m.keyTaken(e.Kind, e) {
		return 0, uniqueViolation("ux_" + string(e.Kind) + "_key")
	}
	if e.Status == "" {
		e.Status = domain.StatusRaw
	}
	id, at := m.next()
	e.ID = id
	if e.CreatedAt.IsZero() {
		e.CreatedAt = at
	}
	es[id] = e
	return id, nil
}

// UpdateEntity writes name, acronym, acron3, region and status
func (m *Memory) UpdateEntity(_ context.Context, e domain.Entity) error {
	es, err := m.kind(e.Kind)
	if err != nil {
		return err
	}
	cur, ok := es[e.ID]
	if !ok {
		return perr.NotFoundf("%s %d not found", e.Kind, e.ID)
	}
	if err := m.fail("update_entity", e.ID); err != nil {
		return err
	}
	if m.keyTaken(e.Kind, e) {
		return uniqueViolation("ux_" + string(e.Kind) + "_key")
	}
	e.CreatedAt = cur.CreatedAt
	es[e.ID] = e
	return nil
}

// SetStatus moves ids to status to, optionally only from the given statuses
func (m *Memory) SetStatus(_ context.Context, k domain.Kind, ids []int64, from []domain.Status, to domain.Status) (int, error) {
	es, err := m.kind(k)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, id := range ids {
		e, ok := es[id]
		if !ok || e.Status == to || (len(from) > 0 && !slices.Contains(from, e.Status)) {
			continue
		}
		if err := m.fail("set_status", id); err != nil {
			return n, err
		}
		e.Status = to
		es[id] = e
		n++
	}
	return n, nil
}

// DeleteEntity removes one row; referenced rows fail like a foreign key would
func (m *Memory) DeleteEntity(_ context.Context, k domain.Kind, id int64) error {
	es, err := m.kind(k)
	if err != nil {
		return err
	}
	if _, ok := es[id]; !ok {
		return perr.NotFoundf("%s %d not found", k, id)
	}
	if err := m.fail("delete_entity", id); err != nil {
		return err
	}
	for _, l := range m.d.locs {
		if r := l.Ref(k); r != nil && *r == id {
			return fkViolation("location_location_" + locCols[k] + "_fkey")
		}
	}
	delete(es, id)
	for mid, mt := range m.d.matches[k] {
		if mt.OfficialID == id {
			delete(m.d.matches[k], mid)
			continue
		}
		if i := slices.Index(mt.Members, id); i >= 0 {
			mt.Members = slices.Delete(mt.Members, i, i+1)
			m.d.matches[k][mid] = mt
		}
	}
	return nil
}

func (m *Memory) tripleTaken(l domain.Location) bool {
	if !l.Compound() {
		return false
	}
	for id, o := range m.d.locs {
		if id != l.ID && o.Compound() && sameTriple(o, l) {
			return true
		}
	}
	return false
}

func sameTriple(a, b domain.Location) bool {
	return eqPtr(a.CountryID, b.CountryID) && eqPtr(a.StateID, b.StateID) && eqPtr(a.CityID, b.CityID)
}

func (m *Memory) refsExist(l domain.Location) error {
	for _, k := range []domain.Kind{domain.KindCountry, domain.KindState, domain.KindCity} {
		if r := l.Ref(k); r != nil {
			if _, ok := m.d.ents[k][*r]; !ok {
				return fkViolation("location_location_" + locCols[k] + "_fkey")
			}
		}
	}
	return nil
}

// LocationsReferencing lists locations pointing at one entity, by id
func (m *Memory) LocationsReferencing(_ context.Context, k domain.Kind, id int64) ([]domain.Location, error) {
	if _, err := m.kind(k); err != nil {
		return nil, err
	}
	var out []domain.Location
	for _, l := range m.d.locs {
		if r := l.Ref(k); r != nil && *r == id {
			out = append(out, l)
		}
	}
	slices.SortFunc(out, func(a, b domain.Location) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

// FindLocation matches the triple with null equal to null, skipping excludeID
func (m *Memory) FindLocation(_ context.Context, country, state, city *int64, excludeID int64) (domain.Location, bool, error) {
	want := domain.Location{CountryID: country, StateID: state, CityID: city}
	var (
		best  domain.Location
		found bool
	)
	for id, l := range m.d.locs {
		if id == excludeID || !sameTriple(l, want) {
			continue
		}
		if !found || id < best.ID {
			best, found = l, true
		}
	}
	return best, found, nil
}

// InsertLocation creates a location row
func (m *Memory) InsertLocation(_ context.Context, l domain.Location) (int64, error) {
	if err := m.fail("insert_location", 0); err != nil {
		return 0, err
	}
	if err := m.refsExist(l); err != nil {
		return 0, err
	}
	l.ID = 0
	if m.tripleTaken(l) {
		return 0, uniqueViolation("ux_location_triple")
	}
	id, _ := m.next()
	l.ID = id
	m.d.locs[id] = l
	return id, nil
}

// SetLocationRef points one reference of a location at id
func (m *Memory) SetLocationRef(_ context.Context, locationID int64, k domain.Kind, id int64) error {
	l, ok := m.d.locs[locationID]
	if !ok {
		return perr.NotFoundf("location %d not found", locationID)
	}
	if _, err := m.kind(k); err != nil {
		return err
	}
	if err := m.fail("set_location_ref", locationID); err != nil {
		return err
	}
	l = l.With(k, id)
	if err := m.refsExist(l); err != nil {
		return err
	}
	if m.tripleTaken(l) {
		return uniqueViolation("ux_location_triple")
	}
	m.d.locs[locationID] = l
	return nil
}

// DeleteLocation removes one location row
func (m *Memory) DeleteLocation(_ context.Context, id int64) error {
	if _, ok := m.d.locs[id]; !ok {
		return perr.NotFoundf("location %d not found", id)
	}
	if err := m.fail("delete_location", id); err != nil {
		return err
	}
	delete(m.d.locs, id)
	return nil
}

// CountLocations returns the size of the location graph
func (m *Memory) CountLocations(context.Context) (int, error) {
	if err := m.fail("count_locations", 0); err != nil {
		return 0, err
	}
	return len(m.d.locs), nil
}

func (m *Memory) matchKind(k domain.Kind) (map[int64]domain.Match, error) {
	ms, ok := m.d.matches[k]
	if !ok {
		return nil, perr.InvalidArgf("repotest: %s have no match tables", k)
	}
	return ms, nil
}

// GetMatch loads the match row of an official record with its members
func (m *Memory) GetMatch(_ context.Context, k domain.Kind, officialID int64) (domain.Match, bool, error) {
	ms, err := m.matchKind(k)
	if err != nil {
		return domain.Match{}, false, err
	}
	for _, mt := range ms {
		if mt.OfficialID == officialID {
			mt.Members = slices.Sorted(slices.Values(mt.Members))
			return mt, true, nil
		}
	}
	return domain.Match{}, false, nil
}

// ListMatches loads every match row of a kind ordered by official id
func (m *Memory) ListMatches(_ context.Context, k domain.Kind) ([]domain.Match, error) {
	ms, err := m.matchKind(k)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Match, 0, len(ms))
	for _, mt := range ms {
		mt.Members = slices.Sorted(slices.Values(mt.Members))
		out = append(out, mt)
	}
	slices.SortFunc(out, func(a, b domain.Match) int { return cmp.Compare(a.OfficialID, b.OfficialID) })
	return out, nil
}

// UpsertMatch returns the match row for officialID, creating it when missing
func (m *Memory) UpsertMatch(_ context.Context, k domain.Kind, officialID int64, score int) (int64, error) {
	ms, err := m.matchKind(k)
	if err != nil {
		return 0, err
	}
	if err := m.fail("upsert_match", officialID); err != nil {
		return 0, err
	}
	if _, ok := m.d.ents[k][officialID]; !ok {
		return 0, fkViolation("location_" + strings.TrimSuffix(string(k), "s") + "_matched_official_id_fkey")
	}
	if score < 0 || score > 100 {
		return 0, &pgconn.PgError{Code: "23514", Message: "score out of range"}
	}
	for id, mt := range ms {
		if mt.OfficialID == officialID {
			mt.Score = score
			ms[id] = mt
			return id, nil
		}
	}
	id, _ := m.next()
	ms[id] = domain.Match{ID: id, Kind: k, OfficialID: officialID, Score: score}
	return id, nil
}

// AddMatchMember attaches an entity to a match row; a member belongs to one match only
func (m *Memory) AddMatchMember(_ context.Context, k domain.Kind, matchID, memberID int64) error {
	ms, err := m.matchKind(k)
	if err != nil {
		return err
	}
	mt, ok := ms[matchID]
	if !ok {
		return perr.NotFoundf("match %d not found", matchID)
	}
	if err := m.fail("add_match_member", memberID); err != nil {
		return err
	}
	if slices.Contains(mt.Members, memberID) {
		return nil
	}
	for id, o := range ms {
		if id != matchID && slices.Contains(o.Members, memberID) {
			return uniqueViolation("location_" + strings.TrimSuffix(string(k), "s") + "_matched_member_key")
		}
	}
	mt.Members = append(mt.Members, memberID)
	ms[matchID] = mt
	return nil
}

// ClearMatchMembers empties the member set and returns what it held
func (m *Memory) ClearMatchMembers(_ context.Context, k domain.Kind, matchID int64) ([]int64, error) {
	ms, err := m.matchKind(k)
	if err != nil {
		return nil, err
	}
	mt, ok := ms[matchID]
	if !ok {
		return nil, nil
	}
	out := slices.Sorted(slices.Values(mt.Members))
	mt.Members = nil
	ms[matchID] = mt
	return out, nil
}

// DeleteMatches drops every match row of a kind
func (m *Memory) DeleteMatches(_ context.Context, k domain.Kind) (int, error) {
	ms, err := m.matchKind(k)
	if err != nil {
		return 0, err
	}
	n := len(ms)
	clear(ms)
	return n, nil
}

// Entities returns every row of a kind ordered by id
func (m *Memory) Entities(k domain.Kind) []domain.Entity {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Entity, 0, len(m.d.ents[k]))
	for _, e := range m.d.ents[k] {
		out = append(out, e)
	}
	slices.SortFunc(out, func(a, b domain.Entity) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

// Locations returns the location graph ordered by id
func (m *Memory) Locations() []domain.Location {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Location, 0, len(m.d.locs))
	for _, l := range m.d.locs {
		out = append(out, l)
	}
	slices.SortFunc(out, func(a, b domain.Location) int { return cmp.Compare(a.ID, b.ID) })
	return out
}
