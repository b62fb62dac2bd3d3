// Package quality applies the shot quality predicate to extracted tables.
package quality

import (
	"fmt"
	"math"

	"github.com/RoaringBitmap/roaring"
	"go.uber.org/zap"

	"github.com/gedixr/gedixr/internal/model"
	gerrors "github.com/gedixr/gedixr/pkg/errors"
	"github.com/gedixr/gedixr/pkg/table"
)

// MaxDEMDifference is the exclusive bound on |elev - elev_dem_tdx| in meters.
const MaxDEMDifference = 100.0

// FlagColumns are consumed by the filter and never reach the output.
var FlagColumns = []string{model.ColQualityFlag, model.ColDegradeFlag}

// Stats describes one filter application.
type Stats struct {
	Total   int
	Removed int
}

// Percent returns the removed share in percent.
func (s Stats) Percent() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Removed) / float64(s.Total) * 100
}

func (s Stats) String() string {
	return fmt.Sprintf("%05d/%05d (%.2f%%) shots were filtered out", s.Removed, s.Total, s.Percent())
}

// clause selects the passing rows of one predicate term.
type clause struct {
	name string
	// optional clauses pass every row when their columns are gone.
	optional bool
	columns  []string
	keep     func(cols []*table.Column, i int) bool
}

var clauses = []clause{
	{
		name:     "quality_flag == 1",
		optional: true,
		columns:  []string{model.ColQualityFlag},
		keep:     func(c []*table.Column, i int) bool { return c[0].Float(i) == 1 },
	},
	{
		name:     "degrade_flag == 0",
		optional: true,
		columns:  []string{model.ColDegradeFlag},
		keep:     func(c []*table.Column, i int) bool { return c[0].Float(i) == 0 },
	},
	{
		name:    "num_detectedmodes >= 1",
		columns: []string{model.ColNumDetectedModes},
		keep:    func(c []*table.Column, i int) bool { return c[0].Float(i) >= 1 },
	},
	{
		name:    "|elev - elev_dem_tdx| < 100",
		columns: []string{model.ColElev, model.ColElevDEM},
		keep: func(c []*table.Column, i int) bool {
			// NaN compares false.
			return math.Abs(c[0].Float(i)-c[1].Float(i)) < MaxDEMDifference
		},
	},
}

// Apply keeps the rows satisfying every clause and drops the flag columns.
// The input table is not modified. Applying it twice yields the same table.
func Apply(t *table.Table, log *zap.Logger) (*table.Table, Stats, error) {
	if log == nil {
		log = zap.NewNop()
	}
	n := t.NumRows()
	stats := Stats{Total: n}

	var masks []*roaring.Bitmap
	for _, cl := range clauses {
		cols, ok, err := clauseColumns(t, cl)
		if err != nil {
			return nil, stats, err
		}
		if !ok {
			continue
		}
		m := roaring.New()
		for i := 0; i < n; i++ {
			if cl.keep(cols, i) {
				m.Add(uint32(i))
			}
		}
		masks = append(masks, m)
	}

	keep := roaring.FastAnd(masks...)
	if len(masks) == 1 {
		keep = masks[0]
	}
	rows := keep.ToArray()
	stats.Removed = n - len(rows)
	log.Info(stats.String())

	if stats.Removed == 0 {
		return DropFlags(t), stats, nil
	}
	return DropFlags(t.Take(rows)), stats, nil
}

func clauseColumns(t *table.Table, cl clause) ([]*table.Column, bool, error) {
	cols := make([]*table.Column, 0, len(cl.columns))
	for _, name := range cl.columns {
		c, ok := t.Column(name)
		if !ok {
			if cl.optional {
				return nil, false, nil
			}
			return nil, false, gerrors.New(gerrors.CodeFilterFailed, "quality filter column missing").
				WithContext("column", name).
				WithContext("clause", cl.name)
		}
		if !c.Numeric() {
			return nil, false, gerrors.New(gerrors.CodeFilterFailed, "quality filter column is not numeric").
				WithContext("column", name)
		}
		cols = append(cols, c)
	}
	return cols, true, nil
}

// DropFlags removes the flag columns. It is applied whether or not the
// filter runs.
func DropFlags(t *table.Table) *table.Table {
	return t.Drop(FlagColumns...)
}
