package tui

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/gedixr/gedixr/pkg/pipeline"
	"github.com/gedixr/gedixr/pkg/writer"
)

func TestPrintRunSummary(t *testing.T) {
	var buf bytes.Buffer
	res := &pipeline.RunResult{
		Files:     3,
		Processed: 2,
		Skipped:   1,
		Duration:  1500 * time.Millisecond,
		Regions: []pipeline.Output{
			{Region: "site_a", Path: "/data/extracted/20240101T0000__L2B_1__subset_site_a.parquet"},
			{Region: "site_b"},
		},
		LogPath: "/data/log/20240101T0000__L2B.log",
		Warning: "1 errors occurred during the extraction process; see /data/log/20240101T0000__L2B.log",
	}
	PrintRunSummary(&buf, res, false)
	out := buf.String()

	for _, want := range []string{"EXTRACTION COMPLETE", "site_a:", "20240101T0000__L2B_1__subset_site_a.parquet", "site_b:", "(no output)", "1.5s", res.Warning} {
		if !strings.Contains(out, want) {
			t.Errorf("Summary missing %q:\n%s", want, out)
		}
	}
}

func TestPrintRunSummary_DryRun(t *testing.T) {
	var buf bytes.Buffer
	PrintRunSummary(&buf, &pipeline.RunResult{Files: 12}, true)
	if !strings.Contains(buf.String(), "DRY RUN") || !strings.Contains(buf.String(), "12") {
		t.Errorf("Unexpected dry run output:\n%s", buf.String())
	}
}

func TestPrintFileInfo(t *testing.T) {
	var buf bytes.Buffer
	PrintFileInfo(&buf, &writer.FileInfo{
		Path:     "/x/out.parquet",
		NumRows:  42,
		Columns:  []writer.ColumnInfo{{Name: "shot", Type: "utf8"}},
		Metadata: map[string]string{"geo": "{}"},
	}, 2048)
	out := buf.String()
	for _, want := range []string{"out.parquet", "42", "shot", "geo:", "2.0 KB"} {
		if !strings.Contains(out, want) {
			t.Errorf("Info missing %q:\n%s", want, out)
		}
	}
}

func TestFormatters(t *testing.T) {
	if got := formatNumber(1500); got != "1.5K" {
		t.Errorf("formatNumber(1500) = %s", got)
	}
	if got := formatBytes(3 * 1024 * 1024); got != "3.0 MB" {
		t.Errorf("formatBytes = %s", got)
	}
	if got := formatDuration(90 * time.Second); got != "1m30s" {
		t.Errorf("formatDuration = %s", got)
	}
}
