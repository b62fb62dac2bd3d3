// Package extract pulls per-beam measurement layers out of GEDI granules into
// typed shot tables.
package extract

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/gedixr/gedixr/internal/model"
)

// LayerKind selects how a layer is read.
type LayerKind uint8

const (
	// LayerScalar reads a 1-D dataset verbatim.
	LayerScalar LayerKind = iota
	// LayerIdentifier reads shot numbers and renders them as fixed-width strings.
	LayerIdentifier
	// LayerPercentileHeight reads one bin of the 2-D relative height dataset
	// and converts meters to integer centimeters.
	LayerPercentileHeight
)

func (k LayerKind) String() string {
	switch k {
	case LayerScalar:
		return "scalar"
	case LayerIdentifier:
		return "identifier"
	case LayerPercentileHeight:
		return "percentile_height"
	default:
		return "unknown"
	}
}

// Layer maps one output column to a dataset inside a beam group.
type Layer struct {
	Column string
	Kind   LayerKind
	// Path is relative to the beam group, e.g. "geolocation/lat_lowestmode".
	Path string
	// Bin is the percentile index for LayerPercentileHeight.
	Bin int
}

// Variable is a user-facing column=path pair before resolution.
type Variable struct {
	Column string
	Path   string
}

const (
	identifierPath = "shot_number"
	rhMatrixPath   = "rh"
	rhBins         = 101
)

var percentilePath = regexp.MustCompile(`^rh([0-9]+)$`)

var baseVariables = map[model.Product][]Variable{
	model.ProductL2A: {
		{model.ColShot, "shot_number"},
		{model.ColLatitude, "lat_lowestmode"},
		{model.ColLongitude, "lon_lowestmode"},
		{model.ColElev, "elev_lowestmode"},
		{model.ColElevDEM, "digital_elevation_model"},
		{model.ColDegradeFlag, "degrade_flag"},
		{model.ColQualityFlag, "quality_flag"},
		{model.ColSensitivity, "sensitivity"},
		{model.ColNumDetectedModes, "num_detectedmodes"},
	},
	model.ProductL2B: {
		{model.ColShot, "shot_number"},
		{model.ColLatitude, "geolocation/lat_lowestmode"},
		{model.ColLongitude, "geolocation/lon_lowestmode"},
		{model.ColElev, "geolocation/elev_lowestmode"},
		{model.ColElevDEM, "geolocation/digital_elevation_model"},
		{model.ColDegradeFlag, "geolocation/degrade_flag"},
		{model.ColQualityFlag, "l2b_quality_flag"},
		{model.ColSensitivity, "sensitivity"},
		{model.ColNumDetectedModes, "num_detectedmodes"},
	},
}

var defaultVariables = map[model.Product][]Variable{
	model.ProductL2A: {
		{"rh98", "rh98"},
	},
	model.ProductL2B: {
		{"tcc", "cover"},
		{"fhd", "fhd_normal"},
		{"pai", "pai"},
		{"rh100", "rh100"},
	},
}

// DefaultVariables returns the analysis variables extracted when none are
// configured.
func DefaultVariables(product model.Product) []Variable {
	return append([]Variable(nil), defaultVariables[product]...)
}

// ParseVariables parses "column=path" pairs. A bare "path" uses the last path
// element as the column name.
func ParseVariables(specs []string) ([]Variable, error) {
	var out []Variable
	for _, s := range specs {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		col, path, found := strings.Cut(s, "=")
		if !found {
			path = col
			col = path[strings.LastIndex(path, "/")+1:]
		}
		col, path = strings.TrimSpace(col), strings.Trim(strings.TrimSpace(path), "/")
		if col == "" || path == "" {
			return nil, fmt.Errorf("invalid variable %q: expected column=path", s)
		}
		out = append(out, Variable{Column: col, Path: path})
	}
	return out, nil
}

// LayerSpec is the resolved, ordered list of layers for one product.
type LayerSpec struct {
	Product model.Product
	Layers  []Layer
}

// NewLayerSpec combines the product base layers with the analysis variables
// (the product defaults if vars is empty) and resolves each layer kind once.
func NewLayerSpec(product model.Product, vars []Variable) (LayerSpec, error) {
	base, ok := baseVariables[product]
	if !ok {
		return LayerSpec{}, fmt.Errorf("unsupported product %q", product)
	}
	if len(vars) == 0 {
		vars = defaultVariables[product]
	}

	spec := LayerSpec{Product: product}
	seen := make(map[string]bool)
	for _, v := range append(append([]Variable(nil), base...), vars...) {
		if seen[v.Column] {
			return LayerSpec{}, fmt.Errorf("duplicate output column %q", v.Column)
		}
		seen[v.Column] = true

		layer, err := resolve(product, v)
		if err != nil {
			return LayerSpec{}, err
		}
		spec.Layers = append(spec.Layers, layer)
	}
	return spec, nil
}

func resolve(product model.Product, v Variable) (Layer, error) {
	if v.Path == identifierPath {
		return Layer{Column: v.Column, Kind: LayerIdentifier, Path: v.Path}, nil
	}
	if product == model.ProductL2A {
		if m := percentilePath.FindStringSubmatch(v.Path); m != nil {
			bin, err := strconv.Atoi(m[1])
			if err != nil || bin < 0 || bin >= rhBins {
				return Layer{}, fmt.Errorf("variable %q: percentile bin out of range 0..%d", v.Column, rhBins-1)
			}
			return Layer{Column: v.Column, Kind: LayerPercentileHeight, Path: rhMatrixPath, Bin: bin}, nil
		}
	}
	return Layer{Column: v.Column, Kind: LayerScalar, Path: v.Path}, nil
}

// IdentifierLayer returns the layer holding shot numbers.
func (s LayerSpec) IdentifierLayer() (Layer, bool) {
	for _, l := range s.Layers {
		if l.Kind == LayerIdentifier {
			return l, true
		}
	}
	return Layer{}, false
}
