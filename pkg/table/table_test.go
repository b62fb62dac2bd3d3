package table

import (
	"testing"
	"time"

	"github.com/paulmach/orb"
)

func sampleTable(t *testing.T, ids []string, vals []float64) *Table {
	t.Helper()
	tbl, err := New(StringColumn("shot", ids), Float64Column("elev", vals))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return tbl
}

func TestNew_RejectsMismatchedLengths(t *testing.T) {
	_, err := New(StringColumn("shot", []string{"a", "b"}), Float64Column("elev", []float64{1}))
	if err == nil {
		t.Fatal("Expected error for mismatched column lengths")
	}
}

func TestNew_RejectsDuplicateNames(t *testing.T) {
	_, err := New(Int64Column("x", []int64{1}), Int64Column("x", []int64{2}))
	if err == nil {
		t.Fatal("Expected error for duplicate column names")
	}
}

func TestTake_SelectsRowsInOrder(t *testing.T) {
	tbl := sampleTable(t, []string{"a", "b", "c"}, []float64{1, 2, 3})

	out := tbl.Take([]uint32{2, 0})
	if out.NumRows() != 2 {
		t.Fatalf("Expected 2 rows, got %d", out.NumRows())
	}
	shot, _ := out.Column("shot")
	if shot.Strings[0] != "c" || shot.Strings[1] != "a" {
		t.Errorf("Unexpected shot order: %v", shot.Strings)
	}
	// Input must be untouched.
	orig, _ := tbl.Column("elev")
	if orig.Floats[0] != 1 || len(orig.Floats) != 3 {
		t.Errorf("Input table was modified: %v", orig.Floats)
	}
}

func TestDrop_IgnoresUnknownColumns(t *testing.T) {
	tbl := sampleTable(t, []string{"a"}, []float64{1})
	out := tbl.Drop("elev", "missing")
	if out.Has("elev") {
		t.Error("Expected elev to be dropped")
	}
	if !out.Has("shot") || out.NumRows() != 1 {
		t.Errorf("Unexpected result: cols=%v rows=%d", out.Names(), out.NumRows())
	}
	if !tbl.Has("elev") {
		t.Error("Drop modified its input")
	}
}

func TestConcat_JoinsRows(t *testing.T) {
	a := sampleTable(t, []string{"a"}, []float64{1})
	b := sampleTable(t, []string{"b", "c"}, []float64{2, 3})

	out, err := Concat(a, nil, Empty(), b)
	if err != nil {
		t.Fatalf("Concat failed: %v", err)
	}
	if out.NumRows() != 3 {
		t.Fatalf("Expected 3 rows, got %d", out.NumRows())
	}
	elev, _ := out.Column("elev")
	if elev.Floats[2] != 3 {
		t.Errorf("Expected last elev 3, got %v", elev.Floats[2])
	}
}

func TestConcat_RejectsSchemaMismatch(t *testing.T) {
	a := sampleTable(t, []string{"a"}, []float64{1})
	b, _ := New(StringColumn("shot", []string{"b"}), Int64Column("elev", []int64{2}))
	if _, err := Concat(a, b); err == nil {
		t.Fatal("Expected kind mismatch error")
	}

	c, _ := New(StringColumn("shot", []string{"c"}))
	if _, err := Concat(a, c); err == nil {
		t.Fatal("Expected column count mismatch error")
	}
}

func TestWith_ReplacesColumnInPlace(t *testing.T) {
	tbl := sampleTable(t, []string{"a"}, []float64{1})
	when := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

	out, err := tbl.With(TimeColumn("shot", []time.Time{when}))
	if err != nil {
		t.Fatalf("With failed: %v", err)
	}
	if got := out.Names(); got[0] != "shot" || got[1] != "elev" {
		t.Errorf("Expected column order preserved, got %v", got)
	}
	c, _ := out.Column("shot")
	if c.Kind != KindTime {
		t.Errorf("Expected replaced column kind timestamp, got %s", c.Kind)
	}

	out, err = tbl.With(PointColumn("geometry", []orb.Point{{1, 2}}))
	if err != nil {
		t.Fatalf("With failed: %v", err)
	}
	if out.NumCols() != 3 {
		t.Errorf("Expected 3 columns, got %d", out.NumCols())
	}
}

func TestColumnFloat_ConvertsIntegers(t *testing.T) {
	c := Int64Column("n", []int64{7})
	if !c.Numeric() || c.Float(0) != 7 {
		t.Errorf("Expected numeric view 7, got %v", c.Float(0))
	}
}
