package subset

import (
	"testing"

	"github.com/paulmach/orb"

	"github.com/gedixr/gedixr/internal/model"
	"github.com/gedixr/gedixr/pkg/region"
	"github.com/gedixr/gedixr/pkg/table"
)

func pointTable(t *testing.T, ids []string, pts []orb.Point) *table.Table {
	t.Helper()
	tbl, err := table.New(
		table.StringColumn(model.ColShot, ids),
		table.PointColumn(model.ColGeometry, pts),
	)
	if err != nil {
		t.Fatal(err)
	}
	return tbl
}

func box(t *testing.T, name string, x0, y0, x1, y1 float64) region.Region {
	t.Helper()
	r, err := region.New(name, orb.Polygon{{{x0, y0}, {x1, y0}, {x1, y1}, {x0, y1}, {x0, y0}}})
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func TestAccumulator_Global(t *testing.T) {
	a := New(nil)
	if err := a.Add(pointTable(t, []string{"1", "2"}, []orb.Point{{0, 0}, {1, 1}})); err != nil {
		t.Fatal(err)
	}
	if err := a.Add(table.Empty()); err != nil {
		t.Fatal(err)
	}
	if err := a.Add(pointTable(t, []string{"3"}, []orb.Point{{2, 2}})); err != nil {
		t.Fatal(err)
	}

	res, err := a.Finalize()
	if err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}
	if res.Global.NumRows() != 3 || res.Regions != nil {
		t.Fatalf("Expected 3 global rows, got %d", res.Global.NumRows())
	}
	ids, _ := res.Global.Column(model.ColShot)
	if ids.Strings[2] != "3" {
		t.Errorf("Expected file order to be preserved, got %v", ids.Strings)
	}
}

func TestAccumulator_GlobalEmpty(t *testing.T) {
	res, err := New(nil).Finalize()
	if err != nil {
		t.Fatal(err)
	}
	if !res.Global.IsEmpty() {
		t.Error("Expected empty global result")
	}
}

func TestAccumulator_DisjointRegions(t *testing.T) {
	cat, err := region.NewCatalog(box(t, "west", 0, 0, 10, 10), box(t, "east", 20, 0, 30, 10), box(t, "far", 100, 0, 110, 10))
	if err != nil {
		t.Fatal(err)
	}
	a := New(cat)

	in := pointTable(t,
		[]string{"a", "b", "c", "d"},
		[]orb.Point{{5, 5}, {25, 5}, {15, 5}, {9, 1}},
	)
	if err := a.Add(in); err != nil {
		t.Fatal(err)
	}
	if err := a.Add(pointTable(t, []string{"e"}, []orb.Point{{21, 1}})); err != nil {
		t.Fatal(err)
	}

	res, err := a.Finalize()
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Regions) != 3 {
		t.Fatalf("Expected every region to be listed, got %d", len(res.Regions))
	}
	if res.Regions[0].Table.NumRows() != 2 || res.Regions[1].Table.NumRows() != 2 {
		t.Errorf("Unexpected region sizes %d, %d", res.Regions[0].Table.NumRows(), res.Regions[1].Table.NumRows())
	}
	if !res.Regions[2].Table.IsEmpty() {
		t.Error("Expected far region to be empty")
	}
	total := 0
	for _, r := range res.Regions {
		total += r.Table.NumRows()
	}
	if total != 4 {
		t.Errorf("Disjoint regions must receive each shot at most once, got %d", total)
	}
}

func TestAccumulator_OverlappingRegions(t *testing.T) {
	cat, _ := region.NewCatalog(box(t, "r1", 0, 0, 10, 10), box(t, "r2", 5, 5, 15, 15))
	a := New(cat)

	s, err := a.Split(pointTable(t, []string{"in-both", "r1-only"}, []orb.Point{{7, 7}, {1, 1}}))
	if err != nil {
		t.Fatal(err)
	}
	if s.Rows() != 3 {
		t.Errorf("Expected the shared shot in both parts, got %d rows", s.Rows())
	}
	if err := a.Merge(s); err != nil {
		t.Fatal(err)
	}
	res, _ := a.Finalize()
	ids, _ := res.Regions[1].Table.Column(model.ColShot)
	if len(ids.Strings) != 1 || ids.Strings[0] != "in-both" {
		t.Errorf("Unexpected r2 contents %v", ids.Strings)
	}
}

func TestSplit_RequiresGeometry(t *testing.T) {
	cat, _ := region.NewCatalog(box(t, "r", 0, 0, 1, 1))
	tbl, _ := table.New(table.StringColumn(model.ColShot, []string{"x"}))
	if _, err := New(cat).Split(tbl); err == nil {
		t.Error("Expected error without geometry column")
	}
}
