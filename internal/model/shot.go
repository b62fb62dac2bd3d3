// Package model defines core data structures for gedixr.
package model

import (
	"fmt"
	"strings"
	"time"
)

// Product identifies a GEDI level-2 product.
type Product string

const (
	ProductL2A Product = "L2A"
	ProductL2B Product = "L2B"
)

// Products lists the supported products in a stable order.
var Products = []Product{ProductL2A, ProductL2B}

// ParseProduct validates a product name (case-insensitive).
func ParseProduct(s string) (Product, error) {
	switch Product(strings.ToUpper(strings.TrimSpace(s))) {
	case ProductL2A:
		return ProductL2A, nil
	case ProductL2B:
		return ProductL2B, nil
	default:
		return "", fmt.Errorf("unknown product %q: expected one of %v", s, Products)
	}
}

// Pattern returns the glob matched against file base names for the product.
func (p Product) Pattern() string {
	switch p {
	case ProductL2A:
		return "*GEDI02_A_*.h5"
	case ProductL2B:
		return "*GEDI02_B_*.h5"
	default:
		return ""
	}
}

// Beam is the name of one GEDI laser channel group inside a granule.
type Beam string

const (
	Beam0000 Beam = "BEAM0000"
	Beam0001 Beam = "BEAM0001"
	Beam0010 Beam = "BEAM0010"
	Beam0011 Beam = "BEAM0011"
	Beam0101 Beam = "BEAM0101"
	Beam0110 Beam = "BEAM0110"
	Beam1000 Beam = "BEAM1000"
	Beam1011 Beam = "BEAM1011"
)

// PowerBeams are the full-power (primary) beams.
var PowerBeams = []Beam{Beam0101, Beam0110, Beam1000, Beam1011}

// CoverageBeams are the coverage (secondary) beams.
var CoverageBeams = []Beam{Beam0000, Beam0001, Beam0010, Beam0011}

// AllBeams returns power beams followed by coverage beams.
func AllBeams() []Beam {
	out := make([]Beam, 0, len(PowerBeams)+len(CoverageBeams))
	out = append(out, PowerBeams...)
	return append(out, CoverageBeams...)
}

// ParseBeams resolves a beam selection. Empty or "all" selects every beam,
// "power" (alias "full") and "coverage" select a group, anything else is a
// comma-separated list of beam names.
func ParseBeams(sel string) ([]Beam, error) {
	switch strings.ToLower(strings.TrimSpace(sel)) {
	case "", "all":
		return AllBeams(), nil
	case "power", "full":
		return append([]Beam(nil), PowerBeams...), nil
	case "coverage":
		return append([]Beam(nil), CoverageBeams...), nil
	}

	known := make(map[Beam]bool)
	for _, b := range AllBeams() {
		known[b] = true
	}

	var beams []Beam
	seen := make(map[Beam]bool)
	for _, part := range strings.Split(sel, ",") {
		b := Beam(strings.ToUpper(strings.TrimSpace(part)))
		if b == "" {
			continue
		}
		if !known[b] {
			return nil, fmt.Errorf("unknown beam %q", part)
		}
		if !seen[b] {
			seen[b] = true
			beams = append(beams, b)
		}
	}
	if len(beams) == 0 {
		return nil, fmt.Errorf("empty beam selection %q", sel)
	}
	return beams, nil
}

// SourceFile is one discovered granule. It is never mutated after discovery.
type SourceFile struct {
	Path     string
	Product  Product
	Acquired time.Time
}

// Standard column names shared by the extraction, filter and output stages.
const (
	ColShot             = "shot"
	ColLatitude         = "latitude"
	ColLongitude        = "longitude"
	ColElev             = "elev"
	ColElevDEM          = "elev_dem_tdx"
	ColDegradeFlag      = "degrade_flag"
	ColQualityFlag      = "quality_flag"
	ColSensitivity      = "sensitivity"
	ColNumDetectedModes = "num_detectedmodes"
	ColAcqTime          = "acq_time"
	ColGeometry         = "geometry"
)

// ShotIDWidth is the fixed width of rendered shot numbers.
const ShotIDWidth = 18

// MaxShotID is the largest shot number that fits ShotIDWidth digits.
const MaxShotID uint64 = 999_999_999_999_999_999

// FormatShotID renders a shot number as a zero-padded decimal string.
func FormatShotID(id uint64) string {
	return fmt.Sprintf("%0*d", ShotIDWidth, id)
}

// CRS is the coordinate reference system of every output geometry.
const CRS = "EPSG:4326"

// RunStampLayout formats the run start time in log and output file names.
const RunStampLayout = "20060102T1504"
