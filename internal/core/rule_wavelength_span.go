package core

import (
	"context"
	"fmt"
)

// maxGridPoints is the largest wavelength grid the synthesis binaries accept
// in a single run. Wider requests must be split into segments.
const maxGridPoints = 1_000_000

// NewWavelengthSpanRule returns the rule enforcing the synthesis grid-size
// limit and basic wavelength sanity on runs.
func NewWavelengthSpanRule() Rule {
	return wavelengthSpanRule{}
}

type wavelengthSpanRule struct{}

func (wavelengthSpanRule) Name() string { return "wavelength_span" }

func (wavelengthSpanRule) Evaluate(_ context.Context, view TransactionView, _ []Change) (Result, error) {
	res := Result{}
	for _, run := range view.ListRuns() {
		if run.LambdaMax <= run.LambdaMin {
			res.Violations = append(res.Violations, Violation{
				Rule:     "wavelength_span",
				Severity: SeverityBlock,
				Message:  fmt.Sprintf("run %s wavelength range [%g, %g] is empty", run.ID, run.LambdaMin, run.LambdaMax),
				Entity:   EntityRun,
				EntityID: run.ID,
			})
			continue
		}
		if points := run.Points(); points > maxGridPoints {
			res.Violations = append(res.Violations, Violation{
				Rule:     "wavelength_span",
				Severity: SeverityBlock,
				Message:  fmt.Sprintf("run %s spans %d grid points, limit is %d", run.ID, points, maxGridPoints),
				Entity:   EntityRun,
				EntityID: run.ID,
			})
		}
	}
	return res, nil
}
