// Command stellarsynth synthesizes a stellar spectrum (or measures
// equivalent widths) from a YAML run config, records the run in the
// persistent store, and uploads the resulting files to blob storage.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"stellarsynth/internal/core"
	"stellarsynth/internal/infra/blob"
	"stellarsynth/internal/infra/persistence"
	"stellarsynth/internal/synth"
)

var exitFunc = os.Exit

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "stellarsynth:", err)
		exitFunc(1)
	}
}

func run(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("stellarsynth", flag.ContinueOnError)
	fs.SetOutput(stdout)
	configPath := fs.String("config", "", "path to the YAML run config (required)")
	mode := fs.String("mode", "synth", "synth|eqwidth")
	dryRun := fs.Bool("dry-run", false, "print the stage input decks and exit without running")
	record := fs.Bool("record", true, "record the run and upload artifacts")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *configPath == "" {
		return fmt.Errorf("-config is required")
	}
	if *mode != "synth" && *mode != "eqwidth" {
		return fmt.Errorf("unknown mode %q", *mode)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	cfg, err := synth.LoadConfig(*configPath)
	if err != nil {
		return err
	}
	syn, err := synth.NewSynthesizer(cfg)
	if err != nil {
		return err
	}

	if *dryRun {
		babsma, bsyn, err := syn.Decks()
		if err != nil {
			return err
		}
		fmt.Fprintln(stdout, "# babsma")
		fmt.Fprint(stdout, babsma)
		fmt.Fprintln(stdout, "# bsyn")
		fmt.Fprint(stdout, bsyn)
		return nil
	}

	ctx := context.Background()
	if !*record {
		result, err := execute(ctx, syn, *mode)
		if err != nil {
			return err
		}
		fmt.Fprintln(stdout, result)
		return nil
	}

	store, err := persistence.Open(core.NewDefaultRulesEngine())
	if err != nil {
		return err
	}
	blobs, err := blob.Open(ctx)
	if err != nil {
		return err
	}
	svc := core.NewService(store,
		core.WithLogger(logger),
		core.WithMetricsRecorder(core.NewExpvarMetricsRecorder("stellarsynth_cli")),
	)

	step := cfg.Step
	if step == 0 {
		step = 0.01
	}
	created, _, err := svc.CreateRun(ctx, core.SynthesisRun{
		Name:       fmt.Sprintf("%s %s", cfg.Model, *mode),
		Teff:       cfg.Params.Teff,
		LogG:       cfg.Params.LogG,
		FeH:        cfg.Params.FeH,
		VMicro:     cfg.Params.VMicro,
		AlphaFe:    cfg.Params.AlphaFe,
		LambdaMin:  cfg.Wave.Min,
		LambdaMax:  cfg.Wave.Max,
		LambdaStep: step,
		Abundances: cfg.Abundances,
	})
	if err != nil {
		return err
	}
	if _, _, err := svc.StartRun(ctx, created.ID); err != nil {
		return err
	}

	result, synthErr := execute(ctx, syn, *mode)
	if synthErr != nil {
		if _, _, err := svc.FailRun(ctx, created.ID, synthErr); err != nil {
			logger.Error("record failure", "id", created.ID, "error", err)
		}
		return synthErr
	}

	kind := "spec"
	contentType := "text/plain"
	if *mode == "eqwidth" {
		kind = "eqw"
	}
	resultPath := filepath.Join(syn.Manager().OutPath(), result)
	f, err := os.Open(resultPath)
	if err != nil {
		return fmt.Errorf("open result: %w", err)
	}
	defer f.Close()
	key := blob.ArtifactKey(created.ID, result)
	info, err := blobs.Put(ctx, key, f, blob.PutOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("upload result: %w", err)
	}
	if _, _, err := svc.AttachArtifact(ctx, core.SpectrumArtifact{
		RunID:       created.ID,
		Kind:        kind,
		BlobKey:     key,
		SizeBytes:   info.Size,
		LambdaMin:   cfg.Wave.Min,
		LambdaMax:   cfg.Wave.Max,
		ContentType: contentType,
	}); err != nil {
		return err
	}
	if _, _, err := svc.CompleteRun(ctx, created.ID); err != nil {
		return err
	}

	logger.Info("run completed", "id", created.ID, "result", resultPath, "blob", key)
	fmt.Fprintln(stdout, resultPath)
	return nil
}

func execute(ctx context.Context, syn *synth.Synthesizer, mode string) (string, error) {
	if mode == "eqwidth" {
		return syn.EqWidth(ctx)
	}
	return syn.Synth(ctx)
}
