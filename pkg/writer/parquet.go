package writer

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/apache/arrow/go/v14/arrow"
	"github.com/apache/arrow/go/v14/arrow/array"
	"github.com/apache/arrow/go/v14/arrow/memory"
	"github.com/apache/arrow/go/v14/parquet"
	"github.com/apache/arrow/go/v14/parquet/compress"
	"github.com/apache/arrow/go/v14/parquet/pqarrow"
	"github.com/paulmach/orb/encoding/wkb"

	"github.com/gedixr/gedixr/internal/model"
	"github.com/gedixr/gedixr/pkg/geo"
	"github.com/gedixr/gedixr/pkg/table"
)

// Parquet key-value metadata keys.
const (
	GeoMetadataKey = "geo"
	RunMetadataKey = "gedixr"
)

// GeoMetadata is the GeoParquet 1.0 file metadata.
type GeoMetadata struct {
	Version       string                       `json:"version"`
	PrimaryColumn string                       `json:"primary_column"`
	Columns       map[string]GeoColumnMetadata `json:"columns"`
}

// GeoColumnMetadata describes one geometry column.
type GeoColumnMetadata struct {
	Encoding      string          `json:"encoding"`
	GeometryTypes []string        `json:"geometry_types"`
	CRS           json.RawMessage `json:"crs,omitempty"`
	Edges         string          `json:"edges,omitempty"`
	BBox          []float64       `json:"bbox,omitempty"`
}

// wgs84 is the PROJJSON identification of EPSG:4326.
var wgs84 = json.RawMessage(`{"$schema":"https://proj.org/schemas/v0.7/projjson.schema.json",` +
	`"type":"GeographicCRS","name":"WGS 84","id":{"authority":"EPSG","code":4326}}`)

// NewGeoMetadata describes the geometry column of t.
func NewGeoMetadata(t *table.Table) GeoMetadata {
	col := GeoColumnMetadata{
		Encoding:      "WKB",
		GeometryTypes: []string{"Point"},
		CRS:           wgs84,
		Edges:         "planar",
	}
	if g, ok := t.Column(model.ColGeometry); ok && len(g.Points) > 0 {
		b := geo.Bounds(g.Points)
		col.BBox = []float64{b.Min[0], b.Min[1], b.Max[0], b.Max[1]}
	}
	return GeoMetadata{
		Version:       "1.0.0",
		PrimaryColumn: model.ColGeometry,
		Columns:       map[string]GeoColumnMetadata{model.ColGeometry: col},
	}
}

// ParquetWriter writes shot tables to GeoParquet using Apache Arrow.
type ParquetWriter struct {
	cfg    Config
	output io.Writer

	allocator memory.Allocator
	schema    *arrow.Schema
	kinds     []table.Kind
	writer    *pqarrow.FileWriter

	mu               sync.Mutex
	totalRowsWritten int64
	closed           bool
}

// arrowSchema maps the table layout to Arrow fields and attaches the file
// metadata.
func arrowSchema(t *table.Table, meta map[string]string) (*arrow.Schema, []table.Kind, error) {
	cols := t.Columns()
	fields := make([]arrow.Field, len(cols))
	kinds := make([]table.Kind, len(cols))
	for i, c := range cols {
		var dt arrow.DataType
		switch c.Kind {
		case table.KindFloat64:
			dt = arrow.PrimitiveTypes.Float64
		case table.KindInt64:
			dt = arrow.PrimitiveTypes.Int64
		case table.KindString:
			dt = arrow.BinaryTypes.String
		case table.KindTime:
			dt = arrow.FixedWidthTypes.Timestamp_us
		case table.KindPoint:
			dt = arrow.BinaryTypes.Binary
		default:
			return nil, nil, fmt.Errorf("column %s has unsupported kind %s", c.Name, c.Kind)
		}
		fields[i] = arrow.Field{Name: c.Name, Type: dt, Nullable: false}
		kinds[i] = c.Kind
	}

	keys := make([]string, 0, len(meta))
	values := make([]string, 0, len(meta))
	for k, v := range meta {
		keys = append(keys, k)
		values = append(values, v)
	}
	md := arrow.NewMetadata(keys, values)
	return arrow.NewSchema(fields, &md), kinds, nil
}

// NewParquetWriter creates a GeoParquet writer for tables laid out like t.
// The geo metadata, including the bounding box, is taken from t.
func NewParquetWriter(output io.Writer, t *table.Table, cfg Config) (*ParquetWriter, error) {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultConfig().BatchSize
	}
	if cfg.RowGroupSize <= 0 {
		cfg.RowGroupSize = DefaultConfig().RowGroupSize
	}

	geoJSON, err := json.Marshal(NewGeoMetadata(t))
	if err != nil {
		return nil, fmt.Errorf("failed to encode geo metadata: %w", err)
	}
	runMeta := cfg.Metadata
	if runMeta.CreatedAt == "" {
		runMeta.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}
	runJSON, err := json.Marshal(runMeta)
	if err != nil {
		return nil, fmt.Errorf("failed to encode run metadata: %w", err)
	}

	schema, kinds, err := arrowSchema(t, map[string]string{
		GeoMetadataKey: string(geoJSON),
		RunMetadataKey: string(runJSON),
	})
	if err != nil {
		return nil, err
	}

	// Map compression type
	var codec compress.Compression
	switch cfg.Compression {
	case CompressionSnappy:
		codec = compress.Codecs.Snappy
	case CompressionGzip:
		codec = compress.Codecs.Gzip
	case CompressionZstd:
		codec = compress.Codecs.Zstd
	case CompressionLZ4:
		codec = compress.Codecs.Lz4
	default:
		codec = compress.Codecs.Uncompressed
	}

	writerProps := parquet.NewWriterProperties(
		parquet.WithCompression(codec),
		parquet.WithDictionaryDefault(false),
		parquet.WithDictionaryFor(model.ColAcqTime, true),
		parquet.WithMaxRowGroupLength(cfg.RowGroupSize),
		parquet.WithDataPageSize(1024*1024), // 1MB
	)

	arrowProps := pqarrow.NewArrowWriterProperties(
		pqarrow.WithStoreSchema(),
	)

	writer, err := pqarrow.NewFileWriter(schema, output, writerProps, arrowProps)
	if err != nil {
		return nil, fmt.Errorf("failed to create parquet writer: %w", err)
	}

	return &ParquetWriter{
		cfg:       cfg,
		output:    output,
		allocator: memory.NewGoAllocator(),
		schema:    schema,
		kinds:     kinds,
		writer:    writer,
	}, nil
}

// Write implements the Writer interface.
func (w *ParquetWriter) Write(ctx context.Context, t *table.Table) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return fmt.Errorf("writer is closed")
	}
	if t.NumCols() != len(w.kinds) {
		return fmt.Errorf("table has %d columns, writer expects %d", t.NumCols(), len(w.kinds))
	}

	n := t.NumRows()
	for start := 0; start < n; start += w.cfg.BatchSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := start + w.cfg.BatchSize
		if end > n {
			end = n
		}
		if err := w.writeBatch(t, start, end); err != nil {
			return err
		}
	}
	return nil
}

// writeBatch converts rows [start, end) to a record batch and writes it.
func (w *ParquetWriter) writeBatch(t *table.Table, start, end int) error {
	cols := t.Columns()
	arrays := make([]arrow.Array, len(cols))
	defer func() {
		for _, a := range arrays {
			if a != nil {
				a.Release()
			}
		}
	}()

	for i, c := range cols {
		if c.Kind != w.kinds[i] {
			return fmt.Errorf("column %s has kind %s, writer expects %s", c.Name, c.Kind, w.kinds[i])
		}
		a, err := w.buildArray(c, start, end)
		if err != nil {
			return err
		}
		arrays[i] = a
	}

	batch := array.NewRecord(w.schema, arrays, int64(end-start))
	defer batch.Release()

	if err := w.writer.Write(batch); err != nil {
		return fmt.Errorf("failed to write record batch: %w", err)
	}
	w.totalRowsWritten += int64(end - start)
	return nil
}

func (w *ParquetWriter) buildArray(c *table.Column, start, end int) (arrow.Array, error) {
	switch c.Kind {
	case table.KindFloat64:
		b := array.NewFloat64Builder(w.allocator)
		defer b.Release()
		b.AppendValues(c.Floats[start:end], nil)
		return b.NewArray(), nil

	case table.KindInt64:
		b := array.NewInt64Builder(w.allocator)
		defer b.Release()
		b.AppendValues(c.Ints[start:end], nil)
		return b.NewArray(), nil

	case table.KindString:
		b := array.NewStringBuilder(w.allocator)
		defer b.Release()
		b.AppendValues(c.Strings[start:end], nil)
		return b.NewArray(), nil

	case table.KindTime:
		b := array.NewTimestampBuilder(w.allocator, arrow.FixedWidthTypes.Timestamp_us.(*arrow.TimestampType))
		defer b.Release()
		b.Reserve(end - start)
		for _, ts := range c.Times[start:end] {
			b.Append(arrow.Timestamp(ts.UnixMicro()))
		}
		return b.NewArray(), nil

	case table.KindPoint:
		b := array.NewBinaryBuilder(w.allocator, arrow.BinaryTypes.Binary)
		defer b.Release()
		b.Reserve(end - start)
		for _, p := range c.Points[start:end] {
			buf, err := wkb.Marshal(p, binary.LittleEndian)
			if err != nil {
				return nil, fmt.Errorf("failed to encode geometry: %w", err)
			}
			b.Append(buf)
		}
		return b.NewArray(), nil
	}
	return nil, fmt.Errorf("column %s has unsupported kind %s", c.Name, c.Kind)
}

// Close closes the writer and releases resources.
func (w *ParquetWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	if err := w.writer.Close(); err != nil {
		return fmt.Errorf("failed to close parquet writer: %w", err)
	}
	return nil
}

// RowsWritten returns the total number of rows written.
func (w *ParquetWriter) RowsWritten() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.totalRowsWritten
}
