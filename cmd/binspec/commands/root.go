// Package commands implements the binspec command tree.
package commands

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/cwbudde/algo-binspec/internal/config"
	"github.com/cwbudde/algo-binspec/internal/logging"
)

var (
	configFile string
	envFile    string
	logLevel   string
	logFormat  string

	cfg    *config.Config
	logger zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "binspec",
	Short: "Binary-star spectral fitting",
	Long: `binspec models an observed spectrum as the flux-weighted sum of two
Doppler-shifted synthetic stellar spectra, degraded to the instrumental
resolution and continuum-normalised, and fits the parameters of both stars.

Configuration is read from a YAML file (--config), then BINSPEC_* environment
variables, optionally loaded from a .env file (--env-file).`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

// Execute runs the command tree.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "dotenv file with BINSPEC_* overrides")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug|info|warn|error), overrides log.level")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format (json|console), overrides log.format")
}

func loadConfig(cmd *cobra.Command, _ []string) error {
	c, err := config.Load(configFile, envFile)
	if err != nil {
		return err
	}
	if logLevel != "" {
		c.Log.Level = logLevel
	}
	if logFormat != "" {
		c.Log.Format = logFormat
	}
	if err := c.Validate(); err != nil {
		return err
	}
	cfg = c
	logger = logging.New(c.Log, cmd.ErrOrStderr())
	return nil
}
