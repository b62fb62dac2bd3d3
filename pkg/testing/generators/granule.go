// Package generators provides test data generation utilities.
package generators

import (
	"fmt"
	"math/rand"
	"path"

	"github.com/gedixr/gedixr/internal/model"
	"github.com/gedixr/gedixr/pkg/extract"
)

// GranuleGenerator builds in-memory granules with the layer layout of a
// product.
type GranuleGenerator struct {
	rng *rand.Rand

	Product      model.Product
	Beams        []model.Beam
	ShotsPerBeam int
	FirstShot    uint64

	// Bounding box for generated footprints.
	MinLon, MaxLon float64
	MinLat, MaxLat float64

	// BadEvery makes every n-th shot of a beam fail the quality predicate
	// (quality flag 0). Zero means every shot is good.
	BadEvery int

	// Coordinates overrides the bounding box. It receives the beam index and
	// the shot index within the beam.
	Coordinates func(beam, shot int) (lon, lat float64)
}

// NewGranuleGenerator creates a generator with sensible defaults.
func NewGranuleGenerator(seed int64, product model.Product) *GranuleGenerator {
	return &GranuleGenerator{
		rng:          rand.New(rand.NewSource(seed)),
		Product:      product,
		Beams:        model.AllBeams(),
		ShotsPerBeam: 10,
		FirstShot:    19590300200000000,
		MinLon:       -10, MaxLon: 10,
		MinLat: -10, MaxLat: 10,
	}
}

// Generate returns a container holding every layer of the product's default
// layer spec for each beam.
func (g *GranuleGenerator) Generate() (*extract.MemContainer, error) {
	spec, err := extract.NewLayerSpec(g.Product, nil)
	if err != nil {
		return nil, err
	}

	c := extract.NewMemContainer()
	for bi, beam := range g.Beams {
		n := g.ShotsPerBeam
		lons := make([]float64, n)
		lats := make([]float64, n)
		for i := 0; i < n; i++ {
			if g.Coordinates != nil {
				lons[i], lats[i] = g.Coordinates(bi, i)
			} else {
				lons[i] = g.MinLon + g.rng.Float64()*(g.MaxLon-g.MinLon)
				lats[i] = g.MinLat + g.rng.Float64()*(g.MaxLat-g.MinLat)
			}
		}
		elev := make([]float64, n)
		for i := range elev {
			elev[i] = 100 + g.rng.Float64()*50
		}

		for _, layer := range spec.Layers {
			p := path.Join(string(beam), layer.Path)
			switch layer.Kind {
			case extract.LayerIdentifier:
				ids := make([]uint64, n)
				for i := range ids {
					ids[i] = g.FirstShot + uint64(bi)*1_000_000 + uint64(i)
				}
				c.Uints[p] = ids
			case extract.LayerPercentileHeight:
				m := make([]float64, n*101)
				for i := 0; i < n; i++ {
					top := 5 + g.rng.Float64()*30
					for b := 0; b < 101; b++ {
						m[i*101+b] = top * float64(b) / 100
					}
				}
				c.Matrices[p] = extract.Matrix{Values: m, Cols: 101}
			default:
				g.fillScalar(c, p, layer.Column, n, lons, lats, elev)
			}
		}
	}
	return c, nil
}

func (g *GranuleGenerator) fillScalar(c *extract.MemContainer, p, column string, n int, lons, lats, elev []float64) {
	switch column {
	case model.ColLongitude:
		c.Floats[p] = lons
	case model.ColLatitude:
		c.Floats[p] = lats
	case model.ColElev:
		c.Floats[p] = elev
	case model.ColElevDEM:
		dem := make([]float64, n)
		for i := range dem {
			dem[i] = elev[i] + g.rng.Float64()*20 - 10
		}
		c.Floats[p] = dem
	case model.ColQualityFlag:
		q := make([]int64, n)
		for i := range q {
			q[i] = 1
			if g.BadEvery > 0 && i%g.BadEvery == 0 {
				q[i] = 0
			}
		}
		c.Ints[p] = q
	case model.ColDegradeFlag:
		c.Ints[p] = make([]int64, n)
	case model.ColNumDetectedModes:
		m := make([]int64, n)
		for i := range m {
			m[i] = 1 + int64(g.rng.Intn(4))
		}
		c.Ints[p] = m
	case "rh100":
		v := make([]int64, n)
		for i := range v {
			v[i] = int64(500 + g.rng.Intn(3000))
		}
		c.Ints[p] = v
	default:
		v := make([]float64, n)
		for i := range v {
			v[i] = g.rng.Float64()
		}
		c.Floats[p] = v
	}
}

// Opener serves pre-built containers by path. Paths listed in Corrupt fail
// to open; unknown paths are an error too.
type Opener struct {
	Files   map[string]*extract.MemContainer
	Corrupt map[string]bool
}

// Open implements extract.Opener.
func (o *Opener) Open(p string) (extract.Container, error) {
	if o.Corrupt[p] {
		return nil, fmt.Errorf("unable to open file %s: file signature not found", p)
	}
	c, ok := o.Files[p]
	if !ok {
		return nil, fmt.Errorf("unable to open file %s: no such file", p)
	}
	return c, nil
}
