// gedixr - GEDI L2A/L2B shot extraction
// Extracts, filters and subsets GEDI footprints into GeoParquet or GeoPackage.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gedixr/gedixr/pkg/tui"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

// Global flags
var (
	configFile string
	logLevel   string
	quiet      bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		tui.PrintError(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "gedixr",
	Short: "gedixr - Extract GEDI L2A/L2B shots to GeoParquet",
	Long: `gedixr extracts footprint measurements from GEDI L2A and L2B HDF5 granules,
filters them by acquisition month and quality, optionally subsets them by
regions of interest and writes GeoParquet or GeoPackage files.`,
	Version:       fmt.Sprintf("%s (%s)", version, commit),
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "gedixr %s (%s)\n", version, commit)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Additional config file (applied after the standard locations)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Console log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Disable console logging and progress output")

	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(mergeCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}
