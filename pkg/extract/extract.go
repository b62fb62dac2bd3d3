package extract

import (
	"context"
	"fmt"
	"math"
	"path"

	"go.uber.org/zap"

	"github.com/gedixr/gedixr/internal/model"
	gerrors "github.com/gedixr/gedixr/pkg/errors"
	"github.com/gedixr/gedixr/pkg/logging"
	"github.com/gedixr/gedixr/pkg/table"
)

// AcqTimeLayout renders the acquisition time column.
const AcqTimeLayout = "2006-01-02 15:04:05"

// Extractor reads the configured layers of the selected beams from granules.
type Extractor struct {
	Spec   LayerSpec
	Beams  []model.Beam
	Open   Opener
	Logger *zap.Logger
}

// Result is the outcome of extracting one file.
type Result struct {
	Table *table.Table
	// Errors counts beams that failed mid-read and were discarded.
	Errors int
	// BeamsRead counts beams merged into Table.
	BeamsRead int
	// BeamsSkipped counts beams absent from the file.
	BeamsSkipped int
}

// Extract opens src and concatenates the tables of every readable beam.
// A file that cannot be opened returns an error. Absent beams are skipped;
// beams that fail mid-read are discarded whole and counted in Result.Errors.
func (e *Extractor) Extract(ctx context.Context, src model.SourceFile) (*Result, error) {
	log := e.logger().With(logging.File(src.Path))

	c, err := e.Open(src.Path)
	if err != nil {
		return nil, gerrors.Wrap(err, gerrors.CodeFileOpen, "failed to open granule").WithContext("file", src.Path)
	}
	defer c.Close()

	idLayer, ok := e.Spec.IdentifierLayer()
	if !ok {
		return nil, gerrors.New(gerrors.CodeExtractFailed, "layer spec has no shot identifier")
	}

	res := &Result{}
	var parts []*table.Table
	for _, beam := range e.Beams {
		if err := ctx.Err(); err != nil {
			return nil, gerrors.ContextCanceled("extract", err)
		}

		if !c.Exists(string(beam)) || !c.Exists(path.Join(string(beam), idLayer.Path)) {
			log.Info("beam not found", logging.Beam(string(beam)))
			res.BeamsSkipped++
			continue
		}

		t, err := e.extractBeam(c, beam, src)
		if err != nil {
			log.Error("beam extraction failed, discarding beam",
				logging.Beam(string(beam)), zap.Error(err))
			res.Errors++
			continue
		}
		parts = append(parts, t)
		res.BeamsRead++
	}

	if len(parts) == 0 {
		res.Table = table.Empty()
		return res, nil
	}
	merged, err := table.Concat(parts...)
	if err != nil {
		return nil, gerrors.Wrap(err, gerrors.CodeExtractFailed, "failed to merge beams").WithContext("file", src.Path)
	}
	res.Table = merged
	return res, nil
}

// extractBeam reads every layer of one beam into an isolated sub-table so a
// failure part-way leaves nothing behind.
func (e *Extractor) extractBeam(c Container, beam model.Beam, src model.SourceFile) (*table.Table, error) {
	cols := make([]*table.Column, 0, len(e.Spec.Layers)+1)
	for _, layer := range e.Spec.Layers {
		col, err := readLayer(c, string(beam), layer)
		if err != nil {
			return nil, fmt.Errorf("layer %s (%s): %w", layer.Column, layer.Path, err)
		}
		cols = append(cols, col)
	}

	n := 0
	if len(cols) > 0 {
		n = cols[0].Len()
	}
	acq := make([]string, n)
	stamp := src.Acquired.UTC().Format(AcqTimeLayout)
	for i := range acq {
		acq[i] = stamp
	}
	cols = append(cols, table.StringColumn(model.ColAcqTime, acq))

	return table.New(cols...)
}

func readLayer(c Container, beam string, layer Layer) (*table.Column, error) {
	p := path.Join(beam, layer.Path)

	switch layer.Kind {
	case LayerIdentifier:
		ids, err := c.ReadUint64(p)
		if err != nil {
			return nil, err
		}
		out := make([]string, len(ids))
		for i, id := range ids {
			if id > model.MaxShotID {
				return nil, fmt.Errorf("shot number %d at index %d exceeds %d digits", id, i, model.ShotIDWidth)
			}
			out[i] = model.FormatShotID(id)
		}
		return table.StringColumn(layer.Column, out), nil

	case LayerPercentileHeight:
		values, cols, err := c.ReadMatrix(p)
		if err != nil {
			return nil, err
		}
		return percentileColumn(layer, values, cols)

	case LayerScalar:
		class, err := c.Class(p)
		if err != nil {
			return nil, err
		}
		if class == ClassInteger {
			v, err := c.ReadInt64(p)
			if err != nil {
				return nil, err
			}
			return table.Int64Column(layer.Column, v), nil
		}
		v, err := c.ReadFloat64(p)
		if err != nil {
			return nil, err
		}
		return table.Float64Column(layer.Column, v), nil
	}
	return nil, fmt.Errorf("unknown layer kind %v", layer.Kind)
}

// percentileColumn selects one bin of a row-major shots x bins matrix and
// converts meters to centimeters, rounding half to even.
func percentileColumn(layer Layer, values []float64, cols int) (*table.Column, error) {
	if cols <= layer.Bin {
		return nil, fmt.Errorf("percentile bin %d outside matrix with %d columns", layer.Bin, cols)
	}
	if len(values)%cols != 0 {
		return nil, fmt.Errorf("matrix size %d not a multiple of %d columns", len(values), cols)
	}
	rows := len(values) / cols
	out := make([]int64, rows)
	for r := 0; r < rows; r++ {
		v := values[r*cols+layer.Bin]
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("non-finite height at shot index %d", r)
		}
		out[r] = int64(math.RoundToEven(v * 100))
	}
	return table.Int64Column(layer.Column, out), nil
}

func (e *Extractor) logger() *zap.Logger {
	if e.Logger == nil {
		return zap.NewNop()
	}
	return e.Logger
}
