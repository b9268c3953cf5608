package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	perr "locnorm/internal/platform/errors"
	"locnorm/internal/platform/store"
	"locnorm/internal/services/location/domain"
)

// RunResponse is the output of an entity command
type RunResponse struct {
	RunID   string          `json:"run_id"`
	Entity  domain.Kind     `json:"entity"`
	Reports []domain.Report `json:"reports"`
}

// MigrateResponse is the output of the migrate command
type MigrateResponse struct {
	Direction string `json:"direction"`
	From      uint   `json:"from"`
	To        uint   `json:"to"`
	Changed   bool   `json:"changed"`
}

// ErrorResponse is a JSON error response
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
	Field string `json:"field,omitempty"`
}

// outputJSON writes a value as indented JSON
func outputJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printRun(w io.Writer, human bool, resp RunResponse) error {
	if !human {
		return outputJSON(w, resp)
	}
	fmt.Fprintf(w, "run %s (%s)\n", resp.RunID, resp.Entity)
	for _, r := range resp.Reports {
		fmt.Fprintf(w, "  %-14s %s  %s\n", r.Action, r.Elapsed.Round(time.Millisecond), formatOutcomes(r.Outcomes()))
	}
	return nil
}

// formatOutcomes renders counters as "k=v" pairs sorted by key
func formatOutcomes(o map[string]int) string {
	if len(o) == 0 {
		return "nothing to do"
	}
	keys := make([]string, 0, len(o))
	for k := range o {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%d", k, o[k])
	}
	return strings.Join(parts, " ")
}

func printMigrate(w io.Writer, human bool, dir store.MigrateDirection, res store.MigrateResult) error {
	if !human {
		return outputJSON(w, MigrateResponse{Direction: string(dir), From: res.From, To: res.To, Changed: res.Changed})
	}
	if !res.Changed {
		fmt.Fprintf(w, "schema already at version %d\n", res.To)
		return nil
	}
	fmt.Fprintf(w, "migrated %s from version %d to %d\n", dir, res.From, res.To)
	return nil
}

// printError writes err as JSON to out, or as text to errw in human mode
func printError(errw, out io.Writer, human bool, err error) {
	if human {
		fmt.Fprintf(errw, "error: %v\n", err)
		return
	}
	resp := ErrorResponse{Error: err.Error(), Code: perr.CodeOf(err).String()}
	if e, ok := perr.As(err); ok {
		resp.Field = e.Field()
	}
	_ = outputJSON(out, resp)
}
