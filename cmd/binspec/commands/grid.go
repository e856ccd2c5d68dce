package commands

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/floats"

	"github.com/cwbudde/algo-binspec/binary"
	"github.com/cwbudde/algo-binspec/observation"
	"github.com/cwbudde/algo-binspec/synth"
)

var gridCmd = &cobra.Command{
	Use:   "grid sobject_id",
	Short: "Print the degrading grid of each CCD",
	Long: `Reads one star, builds the resolution-degrading grid of every usable CCD
and prints its size and kernel width. Useful to check the instrumental
line-spread function against the resolving power of the network.

Example:
  binspec grid 131216001101059`,
	Args: cobra.ExactArgs(1),
	RunE: runGrid,
}

func init() {
	rootCmd.AddCommand(gridCmd)
}

func runGrid(cmd *cobra.Command, args []string) error {
	ids, err := parseIDs(args)
	if err != nil {
		return err
	}
	net, err := synth.LoadNetwork(cfg.Network.Archive, cfg.Network.Wavelengths, cfg.NetworkOptions()...)
	if err != nil {
		return err
	}
	raw, err := observation.NewFITSProvider(cfg.Observations.Root).Read(ids[0])
	if err != nil {
		return err
	}
	spec, warnings, err := observation.Ingest(raw, cfg.IngestOptions()...)
	for _, w := range warnings {
		logger.Warn().Int64("sobject_id", ids[0]).Int("ccd", w.CCD).Msg(w.Message)
	}
	if err != nil {
		return err
	}
	model, err := binary.NewModel(net, spec, cfg.ModelOptions()...)
	if err != nil {
		return err
	}
	return printGrids(cmd.OutOrStdout(), spec, model)
}

func printGrids(w io.Writer, spec *observation.Spectrum, model *binary.Model) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if _, err := fmt.Fprintf(tw, "CCD\tPixels\tCRVAL [Å]\tCDELT [Å]\tLSF min\tLSF max\tGrid points\tKernel [samples]\tSynth step [Å]\n"); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(tw, "---\t------\t---------\t---------\t-------\t-------\t-----------\t----------------\t--------------\n"); err != nil {
		return err
	}
	grids := model.Grids()
	for _, idx := range model.CCDIndices() {
		c, g := spec.CCDs[idx], grids[idx]
		if _, err := fmt.Fprintf(tw, "%d\t%d\t%.3f\t%.5f\t%.4f\t%.4f\t%d\t%.2f\t%.5f\n",
			idx,
			c.Len(),
			c.Crval,
			c.Cdelt,
			floats.Min(c.LSF),
			floats.Max(c.LSF),
			g.Len(),
			g.KernelWidth,
			g.SynthStep,
		); err != nil {
			return err
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\nflags: %s\n", spec.Flags)
	return err
}
