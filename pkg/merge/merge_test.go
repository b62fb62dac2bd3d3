package merge

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"go.uber.org/zap"

	"github.com/gedixr/gedixr/internal/model"
	"github.com/gedixr/gedixr/pkg/table"
	"github.com/gedixr/gedixr/pkg/writer"
)

func writeProduct(t *testing.T, path string, product model.Product, extra *table.Column, pts []orb.Point) {
	t.Helper()
	ids := make([]string, len(pts))
	times := make([]time.Time, len(pts))
	for i := range pts {
		ids[i] = model.FormatShotID(uint64(i))
		times[i] = time.Date(2020, time.June, 1, 0, 0, 0, 0, time.UTC)
	}
	tbl, err := table.New(
		table.StringColumn(model.ColShot, ids),
		extra,
		table.TimeColumn(model.ColAcqTime, times),
		table.PointColumn(model.ColGeometry, pts),
	)
	if err != nil {
		t.Fatal(err)
	}
	cfg := writer.DefaultConfig()
	cfg.Metadata = writer.RunMetadata{RunID: "run-" + string(product), Product: string(product), QualityFilter: true}
	if err := writer.WriteFile(context.Background(), path, tbl, cfg); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
}

func TestMerge_JoinsOnGeometry(t *testing.T) {
	dir := t.TempDir()
	l2a := filepath.Join(dir, "a.parquet")
	l2b := filepath.Join(dir, "b.parquet")
	out := filepath.Join(dir, "merged", "ab.parquet")

	writeProduct(t, l2a, model.ProductL2A, table.Int64Column("rh98", []int64{1000, 2000, 3000}),
		[]orb.Point{{1, 1}, {2, 2}, {3, 3}})
	writeProduct(t, l2b, model.ProductL2B, table.Float64Column("tcc", []float64{0.5, 0.7}),
		[]orb.Point{{2, 2}, {3, 3}})

	m, err := New(nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer m.Close()

	res, err := m.Merge(context.Background(), Options{L2A: l2a, L2B: l2b, Output: out, Compression: writer.CompressionSnappy})
	if err != nil {
		t.Fatalf("Merge failed: %v", err)
	}
	if res.RowsL2A != 3 || res.RowsL2B != 2 || res.RowsWritten != 2 {
		t.Errorf("Unexpected result %+v", res)
	}

	info, err := writer.Inspect(out)
	if err != nil {
		t.Fatalf("Inspect failed: %v", err)
	}
	if _, ok := info.Metadata[writer.GeoMetadataKey]; !ok {
		t.Error("Expected geo metadata to be carried over")
	}
	if !strings.Contains(info.Metadata[writer.RunMetadataKey], `"run_id":"run-L2B"`) {
		t.Errorf("Expected L2B run metadata, got %q", info.Metadata[writer.RunMetadataKey])
	}
	if info.NumRows != 2 {
		t.Errorf("Expected 2 rows on disk, got %d", info.NumRows)
	}
	entries, _ := os.ReadDir(filepath.Dir(out))
	if len(entries) != 1 {
		t.Errorf("Expected only the merged file in the output dir, got %d entries", len(entries))
	}

	merged, err := writer.ReadParquet(context.Background(), out)
	if err != nil {
		t.Fatalf("ReadParquet failed: %v", err)
	}
	rh, ok := merged.Column("rh98")
	if !ok || rh.Ints[0] != 2000 || rh.Ints[1] != 3000 {
		t.Errorf("Unexpected joined rh98 %+v", rh)
	}
	found := false
	for _, c := range info.Columns {
		if c.Name == "rh98" {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected rh98 column in %v", info.Columns)
	}
}

func TestMerge_RequiresPaths(t *testing.T) {
	m, err := New(nil)
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()
	if _, err := m.Merge(context.Background(), Options{L2A: "a"}); err == nil {
		t.Error("Expected error for missing inputs")
	}
}

func TestRunMetadata(t *testing.T) {
	rm := runMetadata(map[string]string{
		writer.RunMetadataKey: `{"run_id":"r1","product":"L2B","quality_filter":true,"created_at":"2020-01-01T00:00:00Z"}`,
	}, zap.NewNop())
	if rm.RunID != "r1" || rm.Product != "L2B" || !rm.QualityFilter || rm.CreatedAt != "" {
		t.Errorf("Unexpected run metadata %+v", rm)
	}
	if rm := runMetadata(map[string]string{writer.RunMetadataKey: "{"}, zap.NewNop()); rm.RunID != "" {
		t.Errorf("Expected empty metadata for unreadable entry, got %+v", rm)
	}
}
