// Package region loads the regions of interest that shots are partitioned by.
package region

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
	"github.com/paulmach/orb/project"
	"go.uber.org/zap"

	gerrors "github.com/gedixr/gedixr/pkg/errors"
)

// Region is a named polygonal area in EPSG:4326.
type Region struct {
	Name     string
	Geometry orb.Geometry
	bound    orb.Bound
}

// New validates the geometry and precomputes its bounding box.
func New(name string, g orb.Geometry) (Region, error) {
	switch g.(type) {
	case orb.Polygon, orb.MultiPolygon:
	case orb.Bound:
		g = g.(orb.Bound).ToPolygon()
	default:
		return Region{}, gerrors.New(gerrors.CodeInvalidRegion, "region geometry must be a polygon or multipolygon").
			WithContext("region", name).
			WithContext("type", geometryType(g))
	}
	if name == "" {
		return Region{}, gerrors.New(gerrors.CodeInvalidRegion, "region name is empty")
	}
	return Region{Name: name, Geometry: g, bound: g.Bound()}, nil
}

// Contains reports whether p lies inside the region or on its boundary.
func (r Region) Contains(p orb.Point) bool {
	if !r.bound.Contains(p) {
		return false
	}
	switch g := r.Geometry.(type) {
	case orb.Polygon:
		return polygonIntersects(g, p)
	case orb.MultiPolygon:
		for _, poly := range g {
			if polygonIntersects(poly, p) {
				return true
			}
		}
	}
	return false
}

// polygonIntersects counts hole edges as part of the polygon;
// planar.PolygonContains treats them as outside.
func polygonIntersects(poly orb.Polygon, p orb.Point) bool {
	if len(poly) == 0 || !planar.RingContains(poly[0], p) {
		return false
	}
	for _, hole := range poly[1:] {
		if onRing(hole, p) {
			return true
		}
		if planar.RingContains(hole, p) {
			return false
		}
	}
	return true
}

func onRing(r orb.Ring, p orb.Point) bool {
	if !r.Bound().Contains(p) {
		return false
	}
	for i := 0; i+1 < len(r); i++ {
		if planar.DistanceFromSegmentSquared(r[i], r[i+1], p) == 0 {
			return true
		}
	}
	return false
}

// Bound returns the region's bounding box.
func (r Region) Bound() orb.Bound { return r.bound }

// NameFromPath returns the base name up to its first '.'.
func NameFromPath(path string) string {
	base := filepath.Base(path)
	if i := strings.Index(base, "."); i >= 0 {
		return base[:i]
	}
	return base
}

// Catalog is an ordered set of uniquely named regions.
type Catalog struct {
	regions []Region
	index   map[string]int
}

// NewCatalog builds a catalog, rejecting duplicate names.
func NewCatalog(regions ...Region) (*Catalog, error) {
	c := &Catalog{index: make(map[string]int)}
	for _, r := range regions {
		if _, dup := c.index[r.Name]; dup {
			return nil, gerrors.New(gerrors.CodeInvalidRegion, "duplicate region name").WithContext("region", r.Name)
		}
		c.index[r.Name] = len(c.regions)
		c.regions = append(c.regions, r)
	}
	return c, nil
}

// Load reads one region per vector file, in the given order.
func Load(paths []string, log *zap.Logger) (*Catalog, error) {
	if log == nil {
		log = zap.NewNop()
	}
	regions := make([]Region, 0, len(paths))
	for _, p := range paths {
		r, err := LoadFile(p, log)
		if err != nil {
			return nil, err
		}
		regions = append(regions, r)
	}
	return NewCatalog(regions...)
}

// Len returns the number of regions.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.regions)
}

// Regions returns the regions in order.
func (c *Catalog) Regions() []Region {
	if c == nil {
		return nil
	}
	return append([]Region(nil), c.regions...)
}

// Get returns a region by name.
func (c *Catalog) Get(name string) (Region, bool) {
	i, ok := c.index[name]
	if !ok {
		return Region{}, false
	}
	return c.regions[i], true
}

// LoadFile reads a GeoJSON or WKT file. Only the first feature of a
// collection is used.
func LoadFile(path string, log *zap.Logger) (Region, error) {
	if log == nil {
		log = zap.NewNop()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Region{}, gerrors.Wrap(err, gerrors.CodeInvalidRegion, "failed to read region file").WithContext("path", path)
	}
	name := NameFromPath(path)

	var g orb.Geometry
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wkt", ".txt":
		g, err = wkt.Unmarshal(strings.TrimSpace(string(data)))
	default:
		g, err = decodeGeoJSON(data, name, log)
	}
	if err != nil {
		return Region{}, gerrors.Wrap(err, gerrors.CodeInvalidRegion, "failed to decode region").WithContext("path", path)
	}
	return New(name, g)
}

type legacyCRS struct {
	CRS *struct {
		Properties struct {
			Name string `json:"name"`
		} `json:"properties"`
	} `json:"crs"`
}

func decodeGeoJSON(data []byte, name string, log *zap.Logger) (orb.Geometry, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, err
	}

	var g orb.Geometry
	switch head.Type {
	case "FeatureCollection":
		fc, err := geojson.UnmarshalFeatureCollection(data)
		if err != nil {
			return nil, err
		}
		if len(fc.Features) == 0 {
			return nil, fmt.Errorf("feature collection is empty")
		}
		if len(fc.Features) > 1 {
			log.Warn("region file has more than one feature; using the first",
				zap.String("region", name), zap.Int("features", len(fc.Features)))
		}
		g = fc.Features[0].Geometry
	case "Feature":
		f, err := geojson.UnmarshalFeature(data)
		if err != nil {
			return nil, err
		}
		g = f.Geometry
	default:
		geom, err := geojson.UnmarshalGeometry(data)
		if err != nil {
			return nil, err
		}
		g = geom.Geometry()
	}
	if g == nil {
		return nil, fmt.Errorf("feature has no geometry")
	}

	var crs legacyCRS
	if err := json.Unmarshal(data, &crs); err != nil {
		return nil, err
	}
	if crs.CRS == nil {
		return g, nil
	}
	switch epsgCode(crs.CRS.Properties.Name) {
	case "4326", "CRS84":
		return g, nil
	case "3857", "900913":
		log.Info("reprojecting region to EPSG:4326", zap.String("region", name), zap.String("crs", crs.CRS.Properties.Name))
		return project.Geometry(orb.Clone(g), project.Mercator.ToWGS84), nil
	default:
		return nil, fmt.Errorf("unsupported region crs %q", crs.CRS.Properties.Name)
	}
}

// epsgCode extracts the code from "EPSG:3857", "urn:ogc:def:crs:EPSG::3857"
// or "urn:ogc:def:crs:OGC:1.3:CRS84".
func epsgCode(name string) string {
	name = strings.TrimSpace(name)
	if i := strings.LastIndex(name, ":"); i >= 0 {
		return name[i+1:]
	}
	return name
}

func geometryType(g orb.Geometry) string {
	if g == nil {
		return "none"
	}
	return g.GeoJSONType()
}
