package domain

import "time"

// Action is one step of the pipeline
type Action string

const (
	ActionClean        Action = "clean"
	ActionUnificate    Action = "unificate"
	ActionLoadOfficial Action = "load-official"
	ActionFuzzyMatch   Action = "fuzzy-match"
	ActionApplyMatches Action = "apply-matches"
	ActionUnsetMatches Action = "unset-matches"
)

// Report counts what one action did to one entity kind
type Report struct {
	Entity Kind   `json:"entity"`
	Action Action `json:"action"`

	Scanned   int `json:"scanned"`
	Cleaned   int `json:"cleaned,omitempty"`
	Unchanged int `json:"unchanged,omitempty"`
	Merged    int `json:"merged,omitempty"`
	Deleted   int `json:"deleted,omitempty"`
	Promoted  int `json:"promoted,omitempty"`
	Created   int `json:"created,omitempty"`
	Matched   int `json:"matched,omitempty"`
	Applied   int `json:"applied,omitempty"`
	Unset     int `json:"unset,omitempty"`

	LocationsMoved     int `json:"locations_moved,omitempty"`
	LocationsCollapsed int `json:"locations_collapsed,omitempty"`

	Skipped   int `json:"skipped,omitempty"`
	Anomalies int `json:"anomalies,omitempty"`
	Failed    int `json:"failed,omitempty"`

	Elapsed time.Duration `json:"elapsed_ns"`
}

// Outcomes returns the non-zero counters keyed by metric outcome label
func (r Report) Outcomes() map[string]int {
	all := map[string]int{
		"scanned":             r.Scanned,
		"cleaned":             r.Cleaned,
		"unchanged":           r.Unchanged,
		"merged":              r.Merged,
		"deleted":             r.Deleted,
		"promoted":            r.Promoted,
		"created":             r.Created,
		"matched":             r.Matched,
		"applied":             r.Applied,
		"unset":               r.Unset,
		"locations_moved":     r.LocationsMoved,
		"locations_collapsed": r.LocationsCollapsed,
		"skipped":             r.Skipped,
		"anomalies":           r.Anomalies,
		"failed":              r.Failed,
	}
	for k, v := range all {
		if v == 0 {
			delete(all, k)
		}
	}
	return all
}
