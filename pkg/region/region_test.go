package region

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"

	gerrors "github.com/gedixr/gedixr/pkg/errors"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return p
}

const square = `{"type":"FeatureCollection","features":[
 {"type":"Feature","properties":{},"geometry":{"type":"Polygon","coordinates":[[[0,0],[10,0],[10,10],[0,10],[0,0]]]}},
 {"type":"Feature","properties":{},"geometry":{"type":"Polygon","coordinates":[[[50,50],[60,50],[60,60],[50,60],[50,50]]]}}
]}`

func TestLoadFile_FirstFeatureOnly(t *testing.T) {
	p := writeFile(t, t.TempDir(), "site_a.shp.geojson", square)
	r, err := LoadFile(p, nil)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if r.Name != "site_a" {
		t.Errorf("Expected name site_a, got %q", r.Name)
	}
	if !r.Contains(orb.Point{5, 5}) {
		t.Error("Expected interior point to be contained")
	}
	if r.Contains(orb.Point{55, 55}) {
		t.Error("Second feature must be ignored")
	}
}

func TestContains_BoundaryInclusive(t *testing.T) {
	r, err := New("sq", orb.Polygon{{{0, 0}, {10, 0}, {10, 10}, {0, 10}, {0, 0}}})
	if err != nil {
		t.Fatal(err)
	}
	for _, p := range []orb.Point{{0, 5}, {10, 10}, {5, 0}} {
		if !r.Contains(p) {
			t.Errorf("Expected boundary point %v to be contained", p)
		}
	}
	if r.Contains(orb.Point{10.0001, 5}) {
		t.Error("Expected outside point to be excluded")
	}
}

func TestContains_HoleBoundaryInclusive(t *testing.T) {
	outer := orb.Ring{{0, 0}, {10, 0}, {10, 10}, {0, 10}, {0, 0}}
	hole := orb.Ring{{4, 4}, {6, 4}, {6, 6}, {4, 6}, {4, 4}}
	r, err := New("donut", orb.Polygon{outer, hole})
	if err != nil {
		t.Fatal(err)
	}
	for _, p := range []orb.Point{{5, 4}, {4, 5}, {6, 6}, {0, 5}, {2, 2}} {
		if !r.Contains(p) {
			t.Errorf("Expected %v to be contained", p)
		}
	}
	if r.Contains(orb.Point{5, 5}) {
		t.Error("Expected hole interior to be excluded")
	}

	mr, err := New("multi-donut", orb.MultiPolygon{{outer, hole}})
	if err != nil {
		t.Fatal(err)
	}
	if !mr.Contains(orb.Point{5, 4}) || mr.Contains(orb.Point{5, 5}) {
		t.Error("Unexpected multipolygon hole handling")
	}
}

func TestContains_MultiPolygon(t *testing.T) {
	mp := orb.MultiPolygon{
		{{{0, 0}, {1, 0}, {1, 1}, {0, 1}, {0, 0}}},
		{{{5, 5}, {6, 5}, {6, 6}, {5, 6}, {5, 5}}},
	}
	r, err := New("mp", mp)
	if err != nil {
		t.Fatal(err)
	}
	if !r.Contains(orb.Point{5.5, 5.5}) || r.Contains(orb.Point{3, 3}) {
		t.Error("Unexpected multipolygon containment")
	}
}

func TestLoadFile_WKT(t *testing.T) {
	p := writeFile(t, t.TempDir(), "plot.wkt", "POLYGON((0 0, 2 0, 2 2, 0 2, 0 0))")
	r, err := LoadFile(p, nil)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if r.Name != "plot" || !r.Contains(orb.Point{1, 1}) {
		t.Errorf("Unexpected region %+v", r)
	}
}

func TestLoadFile_ReprojectsMercator(t *testing.T) {
	body := `{"type":"FeatureCollection",
 "crs":{"type":"name","properties":{"name":"urn:ogc:def:crs:EPSG::3857"}},
 "features":[{"type":"Feature","properties":{},"geometry":{"type":"Polygon",
 "coordinates":[[[0,0],[1113194.9,0],[1113194.9,1118890.0],[0,1118890.0],[0,0]]]}}]}`
	r, err := LoadFile(writeFile(t, t.TempDir(), "merc.geojson", body), nil)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	b := r.Bound()
	if math.Abs(b.Max[0]-10) > 0.01 || math.Abs(b.Max[1]-10) > 0.05 {
		t.Errorf("Expected ~10 degree bounds, got %v", b)
	}
}

func TestLoadFile_RejectsUnknownCRS(t *testing.T) {
	body := `{"type":"Feature","crs":{"type":"name","properties":{"name":"EPSG:32633"}},
 "properties":{},"geometry":{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,0]]]}}`
	_, err := LoadFile(writeFile(t, t.TempDir(), "utm.geojson", body), nil)
	if !gerrors.IsCode(err, gerrors.CodeInvalidRegion) {
		t.Errorf("Expected invalid region error, got %v", err)
	}
}

func TestLoadFile_RejectsPoints(t *testing.T) {
	body := `{"type":"Point","coordinates":[1,2]}`
	_, err := LoadFile(writeFile(t, t.TempDir(), "pt.geojson", body), nil)
	if !gerrors.IsCode(err, gerrors.CodeInvalidRegion) {
		t.Errorf("Expected invalid region error, got %v", err)
	}
}

func TestLoad_RejectsDuplicateNames(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "dup.geojson", square)
	sub := filepath.Join(dir, "sub")
	if err := os.Mkdir(sub, 0755); err != nil {
		t.Fatal(err)
	}
	b := writeFile(t, sub, "dup.v2.geojson", square)

	if _, err := Load([]string{a, b}, nil); !gerrors.IsCode(err, gerrors.CodeInvalidRegion) {
		t.Errorf("Expected duplicate name error, got %v", err)
	}
}

func TestCatalog_Order(t *testing.T) {
	sq := orb.Polygon{{{0, 0}, {1, 0}, {1, 1}, {0, 0}}}
	a, _ := New("b_region", sq)
	b, _ := New("a_region", sq)
	c, err := NewCatalog(a, b)
	if err != nil {
		t.Fatal(err)
	}
	rs := c.Regions()
	if rs[0].Name != "b_region" || rs[1].Name != "a_region" {
		t.Errorf("Expected insertion order, got %s, %s", rs[0].Name, rs[1].Name)
	}
	if _, ok := c.Get("a_region"); !ok {
		t.Error("Expected Get to find a_region")
	}
}
