package core

import (
	"context"
	"fmt"
)

// NewMicroturbulenceRule returns the rule rejecting runs with a non-positive
// microturbulent velocity. The opacity stage diverges on zero vmicro.
func NewMicroturbulenceRule() Rule {
	return microturbulenceRule{}
}

type microturbulenceRule struct{}

func (microturbulenceRule) Name() string { return "microturbulence" }

func (microturbulenceRule) Evaluate(_ context.Context, view TransactionView, _ []Change) (Result, error) {
	res := Result{}
	for _, run := range view.ListRuns() {
		if run.VMicro <= 0 {
			res.Violations = append(res.Violations, Violation{
				Rule:     "microturbulence",
				Severity: SeverityBlock,
				Message:  fmt.Sprintf("run %s has non-positive vmicro %g", run.ID, run.VMicro),
				Entity:   EntityRun,
				EntityID: run.ID,
			})
		}
	}
	return res, nil
}
