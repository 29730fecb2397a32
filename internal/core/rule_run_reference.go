package core

import (
	"context"
	"fmt"
)

// NewRunReferenceRule returns the rule validating that runs reference
// existing atmospheres and line lists, and that referenced line lists cover
// the run's wavelength range.
func NewRunReferenceRule() Rule {
	return runReferenceRule{}
}

type runReferenceRule struct{}

func (runReferenceRule) Name() string { return "run_reference" }

func (runReferenceRule) Evaluate(_ context.Context, view TransactionView, _ []Change) (Result, error) {
	res := Result{}
	for _, run := range view.ListRuns() {
		if run.AtmosphereID != nil {
			if _, ok := view.FindAtmosphere(*run.AtmosphereID); !ok {
				res.Violations = append(res.Violations, Violation{
					Rule:     "run_reference",
					Severity: SeverityBlock,
					Message:  fmt.Sprintf("run %s references missing atmosphere %s", run.ID, *run.AtmosphereID),
					Entity:   EntityRun,
					EntityID: run.ID,
				})
			}
		}
		for _, listID := range run.LineListIDs {
			list, ok := view.FindLineList(listID)
			if !ok {
				res.Violations = append(res.Violations, Violation{
					Rule:     "run_reference",
					Severity: SeverityBlock,
					Message:  fmt.Sprintf("run %s references missing line list %s", run.ID, listID),
					Entity:   EntityRun,
					EntityID: run.ID,
				})
				continue
			}
			if !list.Covers(run.LambdaMin, run.LambdaMax) {
				res.Violations = append(res.Violations, Violation{
					Rule:     "run_reference",
					Severity: SeverityWarn,
					Message:  fmt.Sprintf("line list %s covers [%g, %g] but run %s requests [%g, %g]", list.Name, list.MinWave, list.MaxWave, run.ID, run.LambdaMin, run.LambdaMax),
					Entity:   EntityLineList,
					EntityID: list.ID,
				})
			}
		}
	}
	return res, nil
}
