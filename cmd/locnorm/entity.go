package main

import (
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"locnorm/internal/platform/logger"
	"locnorm/internal/services/location/domain"
	"locnorm/internal/services/location/service"
)

// entityDef describes one entity subcommand
type entityDef struct {
	kind  domain.Kind
	short string
	long  string
	// matchable entities also get the reconciliation flags
	matchable bool
}

var (
	countriesDef = entityDef{
		kind:  domain.KindCountry,
		short: "Normalize countries",
		long: `Normalize country records.

--load-official promotes or creates every ISO 3166-1 country.
--fuzzy-match T links CLEANED countries to the best OFFICIAL name scoring at least T.`,
		matchable: true,
	}
	statesDef = entityDef{
		kind:  domain.KindState,
		short: "Normalize states",
		long: `Normalize state records.

--load-official loads the ISO 3166-2 subdivisions of every OFFICIAL country.
States are matched on "name|acronym" within their country.`,
		matchable: true,
	}
	citiesDef = entityDef{
		kind:  domain.KindCity,
		short: "Normalize cities",
		long: `Normalize city records.

Cities support cleaning and unification only.`,
	}
)

// planFlags holds the raw flag values of one invocation
type planFlags struct {
	clean, unificate, loadOfficial bool
	threshold                      int
	reprocess                      bool
	applyMatches, unsetMatches     bool
	name                           string
}

func newEntityCmd(def entityDef, human *bool) *cobra.Command {
	var f planFlags
	cmd := &cobra.Command{
		Use:   string(def.kind),
		Short: def.short,
		Long:  def.long,
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			plan := f.plan(def.kind, cmd.Flags().Changed("fuzzy-match"))
			return runPlan(cmd, *human, plan)
		},
	}

	fl := cmd.Flags()
	fl.BoolVar(&f.clean, "clean", false, "Clean names and acronyms, merging collisions")
	fl.BoolVar(&f.unificate, "unificate", false, "Merge CLEANED records that share a name")
	if !def.matchable {
		return cmd
	}
	fl.BoolVar(&f.loadOfficial, "load-official", false, "Load the ISO reference list as OFFICIAL records")
	fl.IntVar(&f.threshold, "fuzzy-match", 0, "Match CLEANED records to OFFICIAL ones scoring at least `T` (0-100)")
	fl.BoolVar(&f.reprocess, "reprocess", false, "Discard earlier matches and re-match MATCHED records too")
	fl.BoolVar(&f.applyMatches, "apply-matches", false, "Move location references onto the matched OFFICIAL record")
	fl.BoolVar(&f.unsetMatches, "unset-matches", false, "Clear the matches of the OFFICIAL record given by --name")
	fl.StringVar(&f.name, "name", "", "OFFICIAL record name to restrict apply-matches or unset-matches to")
	return cmd
}

func (f planFlags) plan(k domain.Kind, fuzzy bool) domain.Plan {
	return domain.Plan{
		Kind:         k,
		Clean:        f.clean,
		Unificate:    f.unificate,
		LoadOfficial: f.loadOfficial,
		FuzzyMatch:   fuzzy,
		Threshold:    f.threshold,
		Reprocess:    f.reprocess,
		ApplyMatches: f.applyMatches,
		UnsetMatches: f.unsetMatches,
		Name:         f.name,
	}
}

// runPlan validates before touching the store, then runs and prints what ran
func runPlan(cmd *cobra.Command, human bool, plan domain.Plan) error {
	if err := service.CheckPlan(plan); err != nil {
		return err
	}

	runID := uuid.NewString()
	ctx := logger.WithRun(cmd.Context(), runID, "")

	eng, err := openEngine(ctx)
	if err != nil {
		return err
	}
	defer eng.close()

	reps, runErr := eng.mod.Ports().Normalizer.Run(ctx, plan)
	eng.mod.PushMetrics(ctx, plan.Kind)

	if len(reps) > 0 || runErr == nil {
		if err := printRun(cmd.OutOrStdout(), human, RunResponse{RunID: runID, Entity: plan.Kind, Reports: reps}); err != nil && runErr == nil {
			return err
		}
	}
	return runErr
}
