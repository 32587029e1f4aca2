// Command labxtract converts analyzer report PDFs to workbooks without the
// worker stack: no database, no Temporal.
package main

import (
	"os"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"labxtract/internal/config"
)

var (
	colorRed    = color.New(color.FgRed, color.Bold)
	colorGreen  = color.New(color.FgGreen, color.Bold)
	colorYellow = color.New(color.FgYellow)
	colorCyan   = color.New(color.FgCyan)
)

func main() {
	_ = godotenv.Load(".env")
	if err := newRootCmd(config.Load()).Execute(); err != nil {
		colorRed.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd(cfg config.Config) *cobra.Command {
	var profiles string
	root := &cobra.Command{
		Use:           "labxtract",
		Short:         "Extract lab results from analyzer report PDFs",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&profiles, "profiles", cfg.ProfilesPath, "YAML file with extra or overridden variants")

	root.AddCommand(
		newConvertCmd(cfg, &profiles),
		newDumpCmd(),
		newVariantsCmd(&profiles),
	)
	return root
}
