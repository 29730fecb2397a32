package synth

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// BatchResult pairs one parameter set with the spectrum it produced.
type BatchResult struct {
	Params Params
	// Spectrum is the final output file name within OutPath; empty when the
	// run failed.
	Spectrum string
	Err      error
}

// Batch synthesizes one spectrum per parameter set, running up to limit
// synths concurrently. Each run gets its own Synthesizer since stage state
// is per-run. Results arrive in input order; the first hard error (config or
// context) aborts the batch, while per-run synthesis failures are recorded
// in their result.
func Batch(ctx context.Context, base *RunConfig, sets []Params, models []string, limit int) ([]BatchResult, error) {
	if len(sets) != len(models) {
		return nil, fmt.Errorf("batch: %d parameter sets but %d models", len(sets), len(models))
	}
	if limit <= 0 {
		limit = 1
	}

	results := make([]BatchResult, len(sets))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i := range sets {
		i := i
		g.Go(func() error {
			cfg := *base
			cfg.Params = sets[i]
			cfg.Model = models[i]
			results[i] = BatchResult{Params: sets[i]}

			syn, err := NewSynthesizer(&cfg)
			if err != nil {
				return fmt.Errorf("batch run %d: %w", i, err)
			}
			spec, err := syn.Synth(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				results[i].Err = err
				return nil
			}
			results[i].Spectrum = spec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
