package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gedixr/gedixr/pkg/quality"
	"github.com/gedixr/gedixr/pkg/tui"
	"github.com/gedixr/gedixr/pkg/writer"
)

var profileFlag bool

var inspectCmd = &cobra.Command{
	Use:   "inspect <file.parquet>...",
	Short: "Show rows, columns and metadata of GeoParquet outputs",
	Long: `Show the structure of GeoParquet outputs.

With --profile, also compute per-column statistics and count rows that
fail the numeric quality clauses.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runInspect,
}

func init() {
	inspectCmd.Flags().BoolVar(&profileFlag, "profile", false, "Compute column statistics and audit the quality clauses")
}

func runInspect(cmd *cobra.Command, args []string) error {
	var profiler *quality.Profiler
	if profileFlag {
		var err error
		if profiler, err = quality.NewProfiler(); err != nil {
			return err
		}
		defer profiler.Close()
	}

	out := cmd.OutOrStdout()
	for _, path := range args {
		info, err := writer.Inspect(path)
		if err != nil {
			return err
		}
		var size int64
		if st, err := os.Stat(path); err == nil {
			size = st.Size()
		}
		tui.PrintFileInfo(out, info, size)

		if profiler == nil {
			continue
		}
		prof, err := profiler.Profile(cmd.Context(), path)
		if err != nil {
			return fmt.Errorf("profile %s: %w", path, err)
		}
		fmt.Fprintln(out, prof.Report())
	}
	return nil
}
