package writer

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/apache/arrow/go/v14/arrow"
	"github.com/apache/arrow/go/v14/arrow/array"
	"github.com/apache/arrow/go/v14/parquet/file"
	"github.com/apache/arrow/go/v14/parquet/pqarrow"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"

	"github.com/gedixr/gedixr/internal/model"
	"github.com/gedixr/gedixr/pkg/table"
)

// FileInfo summarizes a written GeoParquet file.
type FileInfo struct {
	Path      string
	NumRows   int64
	RowGroups int
	Columns   []ColumnInfo
	Metadata  map[string]string
}

// ColumnInfo holds column metadata.
type ColumnInfo struct {
	Name string
	Type string
}

// Inspect reads the footer of a Parquet file.
func Inspect(path string) (*FileInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader, err := file.NewParquetReader(f)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	arrowReader, err := pqarrow.NewFileReader(reader, pqarrow.ArrowReadProperties{}, nil)
	if err != nil {
		return nil, err
	}
	schema, err := arrowReader.Schema()
	if err != nil {
		return nil, err
	}

	info := &FileInfo{
		Path:      path,
		NumRows:   reader.NumRows(),
		RowGroups: reader.NumRowGroups(),
		Metadata:  make(map[string]string),
	}
	for _, fld := range schema.Fields() {
		info.Columns = append(info.Columns, ColumnInfo{Name: fld.Name, Type: fld.Type.String()})
	}
	kv := reader.MetaData().KeyValueMetadata()
	keys, values := kv.Keys(), kv.Values()
	for i := range keys {
		info.Metadata[keys[i]] = values[i]
	}
	return info, nil
}

// ReadParquet loads a GeoParquet file written by ParquetWriter back into a
// shot table.
func ReadParquet(ctx context.Context, path string) (*table.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader, err := file.NewParquetReader(f)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	arrowReader, err := pqarrow.NewFileReader(reader, pqarrow.ArrowReadProperties{BatchSize: 8192}, nil)
	if err != nil {
		return nil, err
	}
	tbl, err := arrowReader.ReadTable(ctx)
	if err != nil {
		return nil, err
	}
	defer tbl.Release()

	cols := make([]*table.Column, 0, tbl.NumCols())
	for i := 0; i < int(tbl.NumCols()); i++ {
		c, err := fromChunks(tbl.Column(i))
		if err != nil {
			return nil, err
		}
		cols = append(cols, c)
	}
	return table.New(cols...)
}

func fromChunks(col *arrow.Column) (*table.Column, error) {
	name := col.Name()
	switch col.DataType().ID() {
	case arrow.FLOAT64:
		var out []float64
		for _, chunk := range col.Data().Chunks() {
			out = append(out, chunk.(*array.Float64).Float64Values()...)
		}
		return table.Float64Column(name, out), nil

	case arrow.INT64:
		var out []int64
		for _, chunk := range col.Data().Chunks() {
			out = append(out, chunk.(*array.Int64).Int64Values()...)
		}
		return table.Int64Column(name, out), nil

	case arrow.STRING:
		var out []string
		for _, chunk := range col.Data().Chunks() {
			a := chunk.(*array.String)
			for j := 0; j < a.Len(); j++ {
				out = append(out, a.Value(j))
			}
		}
		return table.StringColumn(name, out), nil

	case arrow.TIMESTAMP:
		unit := col.DataType().(*arrow.TimestampType).Unit
		var out []time.Time
		for _, chunk := range col.Data().Chunks() {
			a := chunk.(*array.Timestamp)
			for j := 0; j < a.Len(); j++ {
				out = append(out, a.Value(j).ToTime(unit))
			}
		}
		return table.TimeColumn(name, out), nil

	case arrow.BINARY:
		var out []orb.Point
		for _, chunk := range col.Data().Chunks() {
			a := chunk.(*array.Binary)
			for j := 0; j < a.Len(); j++ {
				g, err := wkb.Unmarshal(a.Value(j))
				if err != nil {
					return nil, fmt.Errorf("column %s row %d: %w", name, len(out), err)
				}
				p, ok := g.(orb.Point)
				if !ok {
					return nil, fmt.Errorf("column %s row %d: expected point, got %s", name, len(out), g.GeoJSONType())
				}
				out = append(out, p)
			}
		}
		if name != model.ColGeometry {
			return nil, fmt.Errorf("binary column %s is not the geometry column", name)
		}
		return table.PointColumn(name, out), nil
	}
	return nil, fmt.Errorf("column %s has unsupported type %s", name, col.DataType())
}
