package geo

import (
	"math"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/gedixr/gedixr/internal/model"
	gerrors "github.com/gedixr/gedixr/pkg/errors"
	"github.com/gedixr/gedixr/pkg/table"
)

func TestBuild_ReplacesCoordinates(t *testing.T) {
	in, err := table.New(
		table.StringColumn(model.ColShot, []string{"a", "b"}),
		table.Float64Column(model.ColLatitude, []float64{1, 2}),
		table.Float64Column(model.ColLongitude, []float64{10, 20}),
		table.StringColumn(model.ColAcqTime, []string{"2019-04-18 00:20:11", "2019-04-18 00:20:11"}),
	)
	if err != nil {
		t.Fatal(err)
	}

	out, err := Build(in, nil)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if out.NumRows() != 2 {
		t.Errorf("Expected 2 rows, got %d", out.NumRows())
	}
	if out.Has(model.ColLatitude) || out.Has(model.ColLongitude) {
		t.Error("Expected coordinate columns to be dropped")
	}
	geom, ok := out.Column(model.ColGeometry)
	if !ok || geom.Kind != table.KindPoint {
		t.Fatal("Missing point geometry column")
	}
	if geom.Points[1] != (orb.Point{20, 2}) {
		t.Errorf("Expected POINT(20 2), got %v", geom.Points[1])
	}
	acq, _ := out.Column(model.ColAcqTime)
	want := time.Date(2019, time.April, 18, 0, 20, 11, 0, time.UTC)
	if acq.Kind != table.KindTime || !acq.Times[0].Equal(want) {
		t.Errorf("Expected parsed acquisition time %v, got %+v", want, acq)
	}
}

func TestBuild_DropsNonFiniteRows(t *testing.T) {
	in, _ := table.New(
		table.StringColumn(model.ColShot, []string{"a", "b", "c", "d"}),
		table.Float64Column(model.ColLatitude, []float64{1, math.NaN(), 3, 4}),
		table.Float64Column(model.ColLongitude, []float64{10, 20, 30, math.Inf(1)}),
	)
	core, logs := observer.New(zap.WarnLevel)

	out, err := Build(in, zap.New(core))
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	shots, _ := out.Column(model.ColShot)
	if len(shots.Strings) != 2 || shots.Strings[0] != "a" || shots.Strings[1] != "c" {
		t.Fatalf("Expected shots [a c], got %v", shots.Strings)
	}
	geom, _ := out.Column(model.ColGeometry)
	if geom.Points[1] != (orb.Point{30, 3}) {
		t.Errorf("Expected POINT(30 3), got %v", geom.Points[1])
	}
	if logs.Len() != 1 {
		t.Fatalf("Expected one warning, got %d", logs.Len())
	}
	if got := logs.All()[0].ContextMap()["dropped"]; got != int64(2) {
		t.Errorf("Expected dropped=2, got %v", got)
	}
}

func TestBuild_AllNonFiniteLeavesNoRows(t *testing.T) {
	in, _ := table.New(
		table.Float64Column(model.ColLatitude, []float64{math.NaN()}),
		table.Float64Column(model.ColLongitude, []float64{10}),
	)
	out, err := Build(in, nil)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if out.NumRows() != 0 || !out.Has(model.ColGeometry) {
		t.Errorf("Expected an empty table with a geometry column, got %d rows", out.NumRows())
	}
}

func TestBuild_MissingCoordinates(t *testing.T) {
	in, _ := table.New(table.Float64Column(model.ColLatitude, []float64{1}))
	_, err := Build(in, nil)
	if !gerrors.IsCode(err, gerrors.CodeGeometryFailed) {
		t.Errorf("Expected geometry error, got %v", err)
	}
}

func TestBounds(t *testing.T) {
	b := Bounds([]orb.Point{{1, 5}, {-3, 2}, {4, -1}})
	if b.Min != (orb.Point{-3, -1}) || b.Max != (orb.Point{4, 5}) {
		t.Errorf("Unexpected bounds %v", b)
	}
}
