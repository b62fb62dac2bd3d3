// Package tui renders gedixr command output.
// Simple, streaming, no complex TUI - just clean summaries and a progress bar.
package tui

import (
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/schollz/progressbar/v3"

	"github.com/gedixr/gedixr/pkg/merge"
	"github.com/gedixr/gedixr/pkg/pipeline"
	"github.com/gedixr/gedixr/pkg/writer"
)

// Colors (Swiss minimal)
var (
	accent  = lipgloss.Color("#FF0000")
	muted   = lipgloss.Color("#666666")
	success = lipgloss.Color("#00CC66")
	warning = lipgloss.Color("#FFAA00")
	white   = lipgloss.Color("#FFFFFF")
)

// Styles
var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(white)
	accentStyle  = lipgloss.NewStyle().Foreground(accent).Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(muted)
	successStyle = lipgloss.NewStyle().Foreground(success).Bold(true)
	warnStyle    = lipgloss.NewStyle().Foreground(warning).Bold(true)
	codeStyle    = lipgloss.NewStyle().Background(lipgloss.Color("#1a1a1a")).Foreground(white).Padding(0, 1)
)

// PrintHeader prints the program banner.
func PrintHeader(w io.Writer, version string) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, titleStyle.Render("  GEDIXR")+mutedStyle.Render(" "+version))
	fmt.Fprintln(w, mutedStyle.Render("  GEDI L2A/L2B shot extraction"))
	fmt.Fprintln(w)
}

// PrintRunSummary prints the outcome of an extraction run.
func PrintRunSummary(w io.Writer, res *pipeline.RunResult, dryRun bool) {
	fmt.Fprintln(w)
	if dryRun {
		fmt.Fprintln(w, successStyle.Render("  ✓ DRY RUN"))
		fmt.Fprintf(w, "  %s %s\n", mutedStyle.Render("Files:"), titleStyle.Render(formatNumber(int64(res.Files))))
		fmt.Fprintln(w)
		return
	}

	fmt.Fprintln(w, successStyle.Render("  ✓ EXTRACTION COMPLETE"))
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  %s %s %s\n",
		mutedStyle.Render("Files:"),
		titleStyle.Render(formatNumber(int64(res.Processed))),
		mutedStyle.Render(fmt.Sprintf("processed (%d found, %d skipped, %d failed)", res.Files, res.Skipped, res.Failed)))

	if res.Global != nil {
		printOutput(w, "Shots:", *res.Global)
	}
	for _, o := range res.Regions {
		printOutput(w, o.Region+":", o)
	}

	fmt.Fprintf(w, "  %s %s\n", mutedStyle.Render("Time:"), titleStyle.Render(formatDuration(res.Duration)))
	if res.LogPath != "" {
		fmt.Fprintf(w, "  %s %s\n", mutedStyle.Render("Log:"), codeStyle.Render(res.LogPath))
	}
	if res.Warning != "" {
		fmt.Fprintln(w)
		fmt.Fprintln(w, warnStyle.Render("  ! "+res.Warning))
	}
	fmt.Fprintln(w)
}

func printOutput(w io.Writer, label string, o pipeline.Output) {
	if o.Path == "" {
		fmt.Fprintf(w, "  %s %s %s\n", mutedStyle.Render(label), titleStyle.Render("0"), mutedStyle.Render("(no output)"))
		return
	}
	fmt.Fprintf(w, "  %s %s → %s\n",
		mutedStyle.Render(label),
		titleStyle.Render(formatNumber(int64(o.Rows()))),
		codeStyle.Render(filepath.Base(o.Path)))
	if o.URI != "" {
		fmt.Fprintf(w, "    %s\n", mutedStyle.Render(o.URI))
	}
}

// PrintMergeSummary prints the outcome of a product merge.
func PrintMergeSummary(w io.Writer, res *merge.Result) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, successStyle.Render("  ✓ MERGE COMPLETE"))
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  %s %s / %s\n", mutedStyle.Render("Input:"),
		titleStyle.Render(formatNumber(res.RowsL2A)+" L2A"),
		titleStyle.Render(formatNumber(res.RowsL2B)+" L2B"))
	if res.RowsL2A != res.RowsL2B {
		fmt.Fprintln(w, warnStyle.Render("  ! row counts differ"))
	}
	fmt.Fprintf(w, "  %s %s → %s\n", mutedStyle.Render("Output:"),
		titleStyle.Render(formatNumber(res.RowsWritten)),
		codeStyle.Render(res.Output))
	fmt.Fprintln(w)
}

// PrintFileInfo prints the structure of a GeoParquet file.
func PrintFileInfo(w io.Writer, info *writer.FileInfo, size int64) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, accentStyle.Render("▸ "+filepath.Base(info.Path)))
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  %s %s\n", mutedStyle.Render("Rows:"), titleStyle.Render(fmt.Sprintf("%d", info.NumRows)))
	fmt.Fprintf(w, "  %s %s\n", mutedStyle.Render("Row groups:"), titleStyle.Render(fmt.Sprintf("%d", info.RowGroups)))
	if size > 0 {
		fmt.Fprintf(w, "  %s %s\n", mutedStyle.Render("Size:"), titleStyle.Render(formatBytes(size)))
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, mutedStyle.Render("  ─────────────────────────────────────"))
	for _, c := range info.Columns {
		fmt.Fprintf(w, "  %-24s %s\n", c.Name, mutedStyle.Render(c.Type))
	}
	fmt.Fprintln(w, mutedStyle.Render("  ─────────────────────────────────────"))

	keys := make([]string, 0, len(info.Metadata))
	for k := range info.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "  %s %s\n", mutedStyle.Render(k+":"), info.Metadata[k])
	}
	fmt.Fprintln(w)
}

// PrintError prints a failure line.
func PrintError(w io.Writer, err error) {
	fmt.Fprintln(w, accentStyle.Render("  ✗ "+err.Error()))
}

// ShowProgress creates a progress bar for file processing.
func ShowProgress(w io.Writer, total int64, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions64(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowBytes(false),
		progressbar.OptionShowCount(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "",
			BarEnd:        "",
		}),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
}

func formatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(b)/float64(div), "KMGTPE"[exp])
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
}

func formatNumber(n int64) string {
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}
	if n < 1000000 {
		return fmt.Sprintf("%.1fK", float64(n)/1000)
	}
	return fmt.Sprintf("%.1fM", float64(n)/1000000)
}
