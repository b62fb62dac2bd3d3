package main

import (
	"context"
	"fmt"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/gedixr/gedixr/pkg/logging"
	"github.com/gedixr/gedixr/pkg/merge"
	"github.com/gedixr/gedixr/pkg/tui"
	"github.com/gedixr/gedixr/pkg/writer"
)

// Merge flags
var (
	mergeL2A         string
	mergeL2B         string
	mergeOutput      string
	mergeColumns     []string
	mergeCompression string
)

var mergeCmd = &cobra.Command{
	Use:   "merge",
	Short: "Join L2A columns onto an L2B output by shot geometry",
	Long: `Inner-join an L2B GeoParquet output with columns of an L2A output of the
same area. Rows are matched on their point geometry.

Examples:
  gedixr merge --l2a extracted/20240101T1200__L2A_1.parquet --l2b extracted/20240101T1205__L2B_1.parquet
  gedixr merge --l2a a.parquet --l2b b.parquet --columns rh50,rh98 -o merged.parquet`,
	RunE: runMerge,
}

func init() {
	mergeCmd.Flags().StringVar(&mergeL2A, "l2a", "", "L2A GeoParquet file (required)")
	mergeCmd.Flags().StringVar(&mergeL2B, "l2b", "", "L2B GeoParquet file (required)")
	mergeCmd.Flags().StringVarP(&mergeOutput, "output", "o", "", "Output path (default: <l2b>__merged.parquet)")
	mergeCmd.Flags().StringSliceVar(&mergeColumns, "columns", []string{"rh98"}, "L2A columns to add")
	mergeCmd.Flags().StringVar(&mergeCompression, "compression", "", "Parquet compression (none, snappy, gzip, zstd)")

	mergeCmd.MarkFlagRequired("l2a")
	mergeCmd.MarkFlagRequired("l2b")
}

func runMerge(cmd *cobra.Command, args []string) error {
	m, err := loadConfig()
	if err != nil {
		return err
	}
	cfg := m.Get()
	if cmd.Flags().Changed("compression") {
		cfg.Output.Compression = mergeCompression
	}

	out := mergeOutput
	if out == "" {
		out = strings.TrimSuffix(mergeL2B, filepath.Ext(mergeL2B)) + "__merged.parquet"
	}

	log, err := logging.New(logging.Options{Level: cfg.Log.Level, Quiet: cfg.Log.Quiet})
	if err != nil {
		return err
	}
	defer log.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	merger, err := merge.New(log.Logger)
	if err != nil {
		return err
	}
	defer merger.Close()

	res, err := merger.Merge(ctx, merge.Options{
		L2A:         mergeL2A,
		L2B:         mergeL2B,
		Columns:     mergeColumns,
		Output:      out,
		Compression: writer.ParseCompression(cfg.Output.Compression),
	})
	if err != nil {
		return fmt.Errorf("merge failed: %w", err)
	}
	tui.PrintMergeSummary(cmd.OutOrStdout(), res)
	return nil
}
