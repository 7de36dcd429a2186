// Package cli provides the nutrisense command line interface
package cli

import (
	"github.com/spf13/cobra"
)

var (
	Version = "dev"
	Commit  = "none"
)

// rootOptions holds the flags shared by every command
type rootOptions struct {
	configPath string
}

// NewRootCmd builds the command tree
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:     "nutrisense",
		Version: Version + " (" + Commit + ")",
		Short:   "Nutrition risk prediction service",
		Long: `NutriSense classifies lifestyle survey answers into a nutrition risk,
infers the nutrients worth attention and optionally adds generated advice
and recipe suggestions.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Configuration file path")

	cmd.AddCommand(
		newServeCmd(opts),
		newPredictCmd(opts),
		newHealthCheckCmd(),
	)
	return cmd
}

// Execute runs the root command. This is called by main.main().
func Execute() error {
	return NewRootCmd().Execute()
}
