package commands

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cwbudde/algo-binspec/internal/linelist"
	"github.com/cwbudde/algo-binspec/internal/logging"
	"github.com/cwbudde/algo-binspec/internal/pipeline"
	"github.com/cwbudde/algo-binspec/internal/status"
	"github.com/cwbudde/algo-binspec/internal/store"
	"github.com/cwbudde/algo-binspec/observation"
	"github.com/cwbudde/algo-binspec/synth"
)

var (
	fitIDsFile string
	fitWorkers int
	fitRunID   string
)

var fitCmd = &cobra.Command{
	Use:   "fit [sobject_id ...]",
	Short: "Fit binary models to stars",
	Long: `Fits every given star and stores the results under one run id.

Each star moves through the status tree (pending, then complete or
failed_<reason>) and gets one row in the result database, also when it fails.

Examples:
  binspec fit 131216001101059
  binspec fit --ids batch.txt --workers 8 --run-id nightly-2024-05-01`,
	RunE: runFit,
}

func init() {
	rootCmd.AddCommand(fitCmd)
	fitCmd.Flags().StringVar(&fitIDsFile, "ids", "", "file with one sobject_id per line")
	fitCmd.Flags().IntVar(&fitWorkers, "workers", 0, "stars fitted in parallel (default: workers from the config)")
	fitCmd.Flags().StringVar(&fitRunID, "run-id", "", "run identifier (default: a new UUID)")
}

func runFit(cmd *cobra.Command, args []string) error {
	ids, err := parseIDs(args)
	if err != nil {
		return err
	}
	if fitIDsFile != "" {
		more, err := readIDs(fitIDsFile)
		if err != nil {
			return err
		}
		ids = append(ids, more...)
	}
	if len(ids) == 0 {
		return errors.New("no sobject_id given")
	}

	net, err := synth.LoadNetwork(cfg.Network.Archive, cfg.Network.Wavelengths, cfg.NetworkOptions()...)
	if err != nil {
		return err
	}
	provider := observation.NewFITSProvider(cfg.Observations.Root)

	tracker, err := status.New(cfg.Status.Dir)
	if err != nil {
		return err
	}
	results, err := store.Open(cfg.Results.DB)
	if err != nil {
		return err
	}
	defer results.Close()

	opts := []pipeline.Option{
		pipeline.WithTracker(tracker),
		pipeline.WithStore(results),
		pipeline.WithLogger(logging.Component(logger, "pipeline")),
		pipeline.WithRunID(fitRunID),
	}
	if cfg.Observations.LSFIndex != "" {
		entries, err := observation.ReadLSFIndex(cfg.Observations.LSFIndex)
		if err != nil {
			return err
		}
		opts = append(opts, pipeline.WithLSFFallback(observation.NewLSFIndex(entries, provider)))
	}
	if cfg.Lines != "" {
		lines, err := linelist.Load(cfg.Lines)
		if err != nil {
			return err
		}
		opts = append(opts, pipeline.WithLines(lines))
	}
	if cfg.Fit.MaskWindows != "" {
		windows, err := linelist.LoadWindows(cfg.Fit.MaskWindows)
		if err != nil {
			return err
		}
		opts = append(opts, pipeline.WithMaskWindows(windows))
	}

	runner, err := pipeline.NewRunner(cfg, net, provider, opts...)
	if err != nil {
		return err
	}

	workers := cfg.Workers
	if fitWorkers > 0 {
		workers = fitWorkers
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info().
		Str("run_id", runner.RunID()).
		Int("stars", len(ids)).
		Int("workers", workers).
		Msg("run started")
	outcomes, runErr := runner.Run(ctx, ids, workers)

	if err := printOutcomes(cmd, runner.RunID(), outcomes); err != nil {
		return err
	}
	return runErr
}

func printOutcomes(cmd *cobra.Command, runID string, outcomes []*pipeline.Outcome) error {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "sobject_id\tstate\treason\titerations\trchi2\tf_contr\trv_1\trv_2\tflags\n")
	fmt.Fprintf(tw, "----------\t-----\t------\t----------\t-----\t-------\t----\t----\t-----\n")
	complete := 0
	for _, out := range outcomes {
		if out == nil {
			continue
		}
		if out.State == status.Complete {
			complete++
		}
		if res := out.Result; res != nil {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%.3f\t%.3f\t%.2f\t%.2f\t%s\n",
				out.ID, out.State, out.Reason, res.Iterations, res.ReducedChi2,
				res.Params.FContr, res.Params.RV1, res.Params.RV2, out.Flags)
			continue
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t-\t-\t-\t-\t-\t%s\n", out.ID, out.State, out.Reason, out.Flags)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(cmd.OutOrStdout(), "\nrun %s: %d of %d stars complete\n", runID, complete, len(outcomes))
	return err
}
