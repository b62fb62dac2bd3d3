// Package subset accumulates per-file shot tables globally or per region.
package subset

import (
	"github.com/RoaringBitmap/roaring"

	"github.com/gedixr/gedixr/internal/model"
	gerrors "github.com/gedixr/gedixr/pkg/errors"
	"github.com/gedixr/gedixr/pkg/region"
	"github.com/gedixr/gedixr/pkg/table"
)

// Accumulator collects shot tables across files. Split is pure and may run
// concurrently; Merge must be called from a single goroutine.
type Accumulator struct {
	regions []region.Region

	global    []*table.Table
	collected []*table.Table
}

// New creates an accumulator. A nil or empty catalog accumulates globally.
func New(catalog *region.Catalog) *Accumulator {
	regions := catalog.Regions()
	return &Accumulator{
		regions:   regions,
		collected: make([]*table.Table, len(regions)),
	}
}

// Partitioned reports whether the accumulator splits by region.
func (a *Accumulator) Partitioned() bool {
	return len(a.regions) > 0
}

// Split is one file's contribution.
type Split struct {
	// Global is set when not partitioned.
	Global *table.Table
	// Parts holds one subset per region, nil when the region got no rows.
	Parts []*table.Table
}

// Rows returns the number of rows across all parts.
func (s Split) Rows() int {
	n := s.Global.NumRows()
	for _, p := range s.Parts {
		n += p.NumRows()
	}
	return n
}

// Split assigns the rows of t to regions. A shot inside several regions is
// assigned to each of them.
func (a *Accumulator) Split(t *table.Table) (Split, error) {
	if t.IsEmpty() {
		return Split{}, nil
	}
	if !a.Partitioned() {
		return Split{Global: t}, nil
	}

	geom, ok := t.Column(model.ColGeometry)
	if !ok || geom.Kind != table.KindPoint {
		return Split{}, gerrors.New(gerrors.CodeSubsetFailed, "table has no point geometry column")
	}

	s := Split{Parts: make([]*table.Table, len(a.regions))}
	for ri, r := range a.regions {
		mask := roaring.New()
		for i, p := range geom.Points {
			if r.Contains(p) {
				mask.Add(uint32(i))
			}
		}
		if mask.IsEmpty() {
			continue
		}
		s.Parts[ri] = t.Take(mask.ToArray())
	}
	return s, nil
}

// Merge folds a split into the running collections. Empty parts are ignored.
func (a *Accumulator) Merge(s Split) error {
	if !s.Global.IsEmpty() {
		a.global = append(a.global, s.Global)
	}
	for ri, part := range s.Parts {
		if part.IsEmpty() {
			continue
		}
		if a.collected[ri] == nil {
			a.collected[ri] = part
			continue
		}
		joined, err := table.Concat(a.collected[ri], part)
		if err != nil {
			return gerrors.Wrap(err, gerrors.CodeSubsetFailed, "failed to merge region subset").
				WithContext("region", a.regions[ri].Name)
		}
		a.collected[ri] = joined
	}
	return nil
}

// Add splits and merges t.
func (a *Accumulator) Add(t *table.Table) error {
	s, err := a.Split(t)
	if err != nil {
		return err
	}
	return a.Merge(s)
}

// RegionResult is the collection of one region. Table is empty when no shot
// fell inside the region.
type RegionResult struct {
	Region region.Region
	Table  *table.Table
}

// Result is the finalized accumulation.
type Result struct {
	Global  *table.Table
	Regions []RegionResult
}

// Finalize concatenates the global list once, or returns every region in
// catalog order.
func (a *Accumulator) Finalize() (*Result, error) {
	if !a.Partitioned() {
		t, err := table.Concat(a.global...)
		if err != nil {
			return nil, gerrors.Wrap(err, gerrors.CodeSubsetFailed, "failed to concatenate results")
		}
		return &Result{Global: t}, nil
	}

	res := &Result{Regions: make([]RegionResult, len(a.regions))}
	for i, r := range a.regions {
		t := a.collected[i]
		if t == nil {
			t = table.Empty()
		}
		res.Regions[i] = RegionResult{Region: r, Table: t}
	}
	return res, nil
}
