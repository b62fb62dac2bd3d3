package h5

import (
	"context"
	"math"
	"path/filepath"
	"testing"

	"gonum.org/v1/hdf5"

	"github.com/gedixr/gedixr/internal/model"
	"github.com/gedixr/gedixr/pkg/extract"
	"github.com/gedixr/gedixr/pkg/quality"
	"github.com/gedixr/gedixr/pkg/table"
)

func writeDataset(t *testing.T, g *hdf5.Group, name string, dims []uint, data interface{}, sample interface{}) {
	t.Helper()
	space, err := hdf5.CreateSimpleDataspace(dims, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer space.Close()
	dtype, err := hdf5.NewDatatypeFromValue(sample)
	if err != nil {
		t.Fatal(err)
	}
	ds, err := g.CreateDataset(name, dtype, space)
	if err != nil {
		t.Fatal(err)
	}
	defer ds.Close()
	if err := ds.Write(data); err != nil {
		t.Fatal(err)
	}
}

func writeGranule(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "GEDI02_A_2019108002011_O01959_03_T03909_02_003_01_V002.h5")
	f, err := hdf5.CreateFile(path, hdf5.F_ACC_TRUNC)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	beam, err := f.CreateGroup("BEAM0101")
	if err != nil {
		t.Fatal(err)
	}
	defer beam.Close()

	shots := []uint64{1, 2, 3}
	writeDataset(t, beam, "shot_number", []uint{3}, &shots, uint64(0))
	flags := []uint8{1, 0, 1}
	writeDataset(t, beam, "quality_flag", []uint{3}, &flags, uint8(0))
	lat := []float32{1.5, 2.5, 3.5}
	writeDataset(t, beam, "lat_lowestmode", []uint{3}, &lat, float32(0))
	rh := make([]float32, 3*4)
	for i := range rh {
		rh[i] = float32(i)
	}
	writeDataset(t, beam, "rh", []uint{3, 4}, &rh, float32(0))
	return path
}

func TestFile_ReadsAndConvertsDatasets(t *testing.T) {
	c, err := Open(writeGranule(t))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer c.Close()

	if !c.Exists("BEAM0101/shot_number") {
		t.Error("Expected shot_number to exist")
	}
	if c.Exists("BEAM0000/shot_number") || c.Exists("BEAM0101/geolocation/lat") {
		t.Error("Expected missing paths to report false")
	}

	ids, err := c.ReadUint64("BEAM0101/shot_number")
	if err != nil || len(ids) != 3 || ids[2] != 3 {
		t.Errorf("ReadUint64 = %v, %v", ids, err)
	}

	class, err := c.Class("BEAM0101/quality_flag")
	if err != nil || class != extract.ClassInteger {
		t.Errorf("Class(quality_flag) = %v, %v", class, err)
	}
	flags, err := c.ReadInt64("BEAM0101/quality_flag")
	if err != nil || flags[1] != 0 || flags[2] != 1 {
		t.Errorf("ReadInt64 = %v, %v", flags, err)
	}

	lat, err := c.ReadFloat64("BEAM0101/lat_lowestmode")
	if err != nil || lat[0] != 1.5 {
		t.Errorf("ReadFloat64 = %v, %v", lat, err)
	}

	m, cols, err := c.ReadMatrix("BEAM0101/rh")
	if err != nil || cols != 4 || len(m) != 12 || m[5] != 5 {
		t.Errorf("ReadMatrix = %v, %d, %v", m, cols, err)
	}

	if n, err := c.Len("BEAM0101/rh"); err != nil || n != 3 {
		t.Errorf("Len = %d, %v", n, err)
	}
}

func TestOpen_RejectsNonHDF5(t *testing.T) {
	if _, err := Open(filepath.Join(t.TempDir(), "missing.h5")); err == nil {
		t.Error("Expected error opening missing file")
	}
}

// writeL2ABeam writes one beam with the stored types of real L2A granules:
// float32 measurements and uint8 flags.
func writeL2ABeam(t *testing.T, path string) {
	t.Helper()
	f, err := hdf5.CreateFile(path, hdf5.F_ACC_TRUNC)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	beam, err := f.CreateGroup("BEAM0101")
	if err != nil {
		t.Fatal(err)
	}
	defer beam.Close()

	n := uint(3)
	shots := []uint64{191970100200186193, 191970100200186194, 191970100200186195}
	writeDataset(t, beam, "shot_number", []uint{n}, &shots, uint64(0))
	lat := []float64{-1.25, -1.5, -1.75}
	writeDataset(t, beam, "lat_lowestmode", []uint{n}, &lat, float64(0))
	lon := []float64{10.5, 10.75, 11}
	writeDataset(t, beam, "lon_lowestmode", []uint{n}, &lon, float64(0))
	elev := []float32{250.5, 251, 900}
	writeDataset(t, beam, "elev_lowestmode", []uint{n}, &elev, float32(0))
	dem := []float32{248, 249, 260}
	writeDataset(t, beam, "digital_elevation_model", []uint{n}, &dem, float32(0))
	degrade := []uint8{0, 0, 0}
	writeDataset(t, beam, "degrade_flag", []uint{n}, &degrade, uint8(0))
	quality := []uint8{1, 0, 1}
	writeDataset(t, beam, "quality_flag", []uint{n}, &quality, uint8(0))
	sens := []float32{0.95, 0.97, 0.99}
	writeDataset(t, beam, "sensitivity", []uint{n}, &sens, float32(0))
	modes := []uint8{2, 1, 3}
	writeDataset(t, beam, "num_detectedmodes", []uint{n}, &modes, uint8(0))
	rh := make([]float32, n*101)
	for i := uint(0); i < n; i++ {
		rh[i*101+98] = 12.375 + float32(i)
	}
	writeDataset(t, beam, "rh", []uint{n, 101}, &rh, float32(0))
}

func TestExtract_RealGranule(t *testing.T) {
	path := filepath.Join(t.TempDir(), "GEDI02_A_2019108002011_O01959_03_T03909_02_003_01_V002.h5")
	writeL2ABeam(t, path)

	spec, err := extract.NewLayerSpec(model.ProductL2A, nil)
	if err != nil {
		t.Fatal(err)
	}
	e := &extract.Extractor{Spec: spec, Beams: model.PowerBeams, Open: Open}
	res, err := e.Extract(context.Background(), model.SourceFile{Path: path, Product: model.ProductL2A})
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if res.BeamsRead != 1 || res.BeamsSkipped != 3 || res.Errors != 0 {
		t.Fatalf("Unexpected beam counts %+v", res)
	}

	col := func(name string) *table.Column {
		c, ok := res.Table.Column(name)
		if !ok {
			t.Fatalf("Missing column %s", name)
		}
		return c
	}
	if got := col(model.ColShot).Strings[0]; got != "191970100200186193" {
		t.Errorf("Unexpected shot id %q", got)
	}
	if got := col(model.ColQualityFlag).Float(1); got != 0 {
		t.Errorf("Expected quality_flag 0 for second shot, got %v", got)
	}
	if got := col(model.ColNumDetectedModes).Float(2); got != 3 {
		t.Errorf("Expected 3 detected modes, got %v", got)
	}
	if got := col(model.ColElev).Float(0); got != 250.5 {
		t.Errorf("Expected elev 250.5, got %v", got)
	}
	if got := col(model.ColSensitivity).Float(0); math.Abs(got-0.95) > 1e-6 {
		t.Errorf("Expected sensitivity 0.95, got %v", got)
	}
	if got := col("rh98").Float(1); got != 1338 {
		t.Errorf("Expected rh98 1338 cm, got %v", got)
	}

	kept, stats, err := quality.Apply(res.Table, nil)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if stats.Removed != 2 || kept.NumRows() != 1 {
		t.Errorf("Expected 1 shot to survive, got %d (%+v)", kept.NumRows(), stats)
	}
}
