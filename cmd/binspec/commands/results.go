package commands

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/cwbudde/algo-binspec/internal/store"
)

var resultsRun string

var resultsCmd = &cobra.Command{
	Use:   "results",
	Short: "List stored runs or the results of one run",
	Long: `Without --run, lists every run in the result database. With --run, prints
one row per star of that run.

Examples:
  binspec results
  binspec results --run 0190f0c2-7c1e-7b7a-9d51-3f2c8a1b4e77`,
	Args: cobra.NoArgs,
	RunE: runResults,
}

func init() {
	rootCmd.AddCommand(resultsCmd)
	resultsCmd.Flags().StringVar(&resultsRun, "run", "", "run identifier")
}

func runResults(cmd *cobra.Command, _ []string) error {
	s, err := store.Open(cfg.Results.DB)
	if err != nil {
		return err
	}
	defer s.Close()

	if resultsRun == "" {
		runs, err := s.Runs(cmd.Context())
		if err != nil {
			return err
		}
		return printRuns(cmd.OutOrStdout(), runs)
	}
	recs, err := s.List(cmd.Context(), resultsRun)
	if err != nil {
		return err
	}
	return printRecords(cmd.OutOrStdout(), recs)
}

func printRuns(w io.Writer, runs []store.RunSummary) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Run\tStarted\tStars\tFailed\n")
	fmt.Fprintf(tw, "---\t-------\t-----\t------\n")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\n", r.RunID, r.Started.Format(time.RFC3339), r.Stars, r.Failed)
	}
	return tw.Flush()
}

func printRecords(w io.Writer, recs []store.Record) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "sobject_id\tstate\treason\tresidual\trchi2\tf_contr\trv_1\tteff_1\tlogg_1\trv_2\tteff_2\tlogg_2\tfe_h\tflags\n")
	fmt.Fprintf(tw, "----------\t-----\t------\t--------\t-----\t-------\t----\t------\t------\t----\t------\t------\t----\t-----\n")
	for _, r := range recs {
		p := r.Params
		fmt.Fprintf(tw, "%d\t%s\t%s\t%.3f\t%.3f\t%.3f\t%.2f\t%.0f\t%.2f\t%.2f\t%.0f\t%.2f\t%.2f\t%s\n",
			r.SobjectID, r.State, r.Reason, r.Agreement, r.ReducedChi2, p.FContr,
			p.RV1, p.Comp1.Teff, p.Comp1.Logg, p.RV2, p.Comp2.Teff, p.Comp2.Logg, p.Comp1.FeH, r.Flags)
	}
	return tw.Flush()
}
