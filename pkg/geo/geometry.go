// Package geo turns filtered shot tables into point-geometry tables.
package geo

import (
	"math"
	"time"

	"github.com/paulmach/orb"
	"go.uber.org/zap"

	"github.com/gedixr/gedixr/internal/model"
	gerrors "github.com/gedixr/gedixr/pkg/errors"
	"github.com/gedixr/gedixr/pkg/extract"
	"github.com/gedixr/gedixr/pkg/table"
)

// Build replaces the longitude and latitude columns with a point geometry
// column in EPSG:4326 and parses the acquisition time. Rows with a
// non-finite coordinate are dropped and logged; the rest keep their order.
func Build(t *table.Table, log *zap.Logger) (*table.Table, error) {
	if log == nil {
		log = zap.NewNop()
	}
	lon, ok := t.Column(model.ColLongitude)
	if !ok {
		return nil, gerrors.New(gerrors.CodeGeometryFailed, "longitude column missing")
	}
	lat, ok := t.Column(model.ColLatitude)
	if !ok {
		return nil, gerrors.New(gerrors.CodeGeometryFailed, "latitude column missing")
	}
	if !lon.Numeric() || !lat.Numeric() {
		return nil, gerrors.New(gerrors.CodeGeometryFailed, "coordinate columns must be numeric")
	}

	n := t.NumRows()
	points := make([]orb.Point, 0, n)
	var keep []uint32
	for i := 0; i < n; i++ {
		x, y := lon.Float(i), lat.Float(i)
		if !finite(x) || !finite(y) {
			if keep == nil {
				keep = make([]uint32, 0, n)
				for j := 0; j < i; j++ {
					keep = append(keep, uint32(j))
				}
			}
			continue
		}
		if keep != nil {
			keep = append(keep, uint32(i))
		}
		points = append(points, orb.Point{x, y})
	}
	if keep != nil {
		log.Warn("dropped shots with non-finite coordinates",
			zap.Int("dropped", n-len(keep)), zap.Int("kept", len(keep)))
		t = t.Take(keep)
	}

	out := t.Drop(model.ColLongitude, model.ColLatitude)

	if acq, ok := out.Column(model.ColAcqTime); ok && acq.Kind == table.KindString {
		times, err := parseTimes(acq.Strings)
		if err != nil {
			return nil, err
		}
		if out, err = out.With(table.TimeColumn(model.ColAcqTime, times)); err != nil {
			return nil, gerrors.Wrap(err, gerrors.CodeGeometryFailed, "failed to replace acquisition time")
		}
	}

	out, err := out.With(table.PointColumn(model.ColGeometry, points))
	if err != nil {
		return nil, gerrors.Wrap(err, gerrors.CodeGeometryFailed, "failed to add geometry column")
	}
	return out, nil
}

func parseTimes(values []string) ([]time.Time, error) {
	out := make([]time.Time, len(values))
	// Every row of a file shares one stamp.
	var last string
	var lastT time.Time
	for i, v := range values {
		if i > 0 && v == last {
			out[i] = lastT
			continue
		}
		ts, err := time.ParseInLocation(extract.AcqTimeLayout, v, time.UTC)
		if err != nil {
			return nil, gerrors.Wrap(err, gerrors.CodeGeometryFailed, "invalid acquisition time").WithContext("value", v)
		}
		out[i], last, lastT = ts, v, ts
	}
	return out, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Bounds returns the bounding box of a point column, or an empty bound for
// no points.
func Bounds(points []orb.Point) orb.Bound {
	if len(points) == 0 {
		return orb.Bound{}
	}
	b := orb.Bound{Min: points[0], Max: points[0]}
	for _, p := range points[1:] {
		b = b.Extend(p)
	}
	return b
}
