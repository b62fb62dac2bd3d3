// Package writer persists shot tables as GeoParquet or GeoPackage files.
package writer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gedixr/gedixr/internal/model"
	gerrors "github.com/gedixr/gedixr/pkg/errors"
	"github.com/gedixr/gedixr/pkg/table"
)

// Writer writes one shot table to an output file.
type Writer interface {
	// Write writes a table. It may be called more than once with tables of
	// the same layout.
	Write(ctx context.Context, t *table.Table) error

	// Close finalizes the file and releases resources.
	Close() error

	// RowsWritten returns the total number of rows written.
	RowsWritten() int64
}

// Format is an output file format.
type Format string

const (
	FormatParquet    Format = "parquet"
	FormatGeoPackage Format = "gpkg"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatParquet, "geoparquet":
		return FormatParquet, nil
	case FormatGeoPackage, "geopackage":
		return FormatGeoPackage, nil
	default:
		return "", fmt.Errorf("unknown output format %q: expected parquet or gpkg", s)
	}
}

// Config holds writer configuration.
type Config struct {
	Format Format

	// BatchSize is the number of rows per record batch.
	BatchSize int

	// Compression type for Parquet output.
	Compression CompressionType

	// RowGroupSize is the maximum number of rows per Parquet row group.
	RowGroupSize int64

	// Layer names the GeoPackage feature table.
	Layer string

	// Metadata is stored with the file.
	Metadata RunMetadata
}

// RunMetadata describes the run that produced a file.
type RunMetadata struct {
	RunID         string `json:"run_id"`
	Product       string `json:"product"`
	QualityFilter bool   `json:"quality_filter"`
	Region        string `json:"region,omitempty"`
	CreatedAt     string `json:"created_at"`
}

// CompressionType represents Parquet compression options.
type CompressionType uint8

const (
	CompressionNone CompressionType = iota
	CompressionSnappy
	CompressionGzip
	CompressionZstd
	CompressionLZ4
)

// String returns the compression type name.
func (c CompressionType) String() string {
	switch c {
	case CompressionSnappy:
		return "snappy"
	case CompressionGzip:
		return "gzip"
	case CompressionZstd:
		return "zstd"
	case CompressionLZ4:
		return "lz4"
	default:
		return "none"
	}
}

// ParseCompression parses a compression type string.
func ParseCompression(s string) CompressionType {
	switch s {
	case "snappy":
		return CompressionSnappy
	case "gzip":
		return CompressionGzip
	case "zstd":
		return CompressionZstd
	case "lz4":
		return CompressionLZ4
	default:
		return CompressionNone
	}
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Format:       FormatParquet,
		BatchSize:    65536,
		Compression:  CompressionSnappy,
		RowGroupSize: 1 << 20,
	}
}

// OutputDir returns the directory outputs are written to.
func OutputDir(root string) string {
	return filepath.Join(root, "extracted")
}

// FileName returns the output path for a run, e.g.
// <root>/extracted/20240101T1200__L2B_1__subset_site.parquet.
// region is empty for the global output.
func FileName(root string, runTime time.Time, product model.Product, qualityFilter bool, region string, format Format) string {
	qf := 0
	if qualityFilter {
		qf = 1
	}
	name := fmt.Sprintf("%s__%s_%d", runTime.Format(model.RunStampLayout), product, qf)
	if region != "" {
		name += "__subset_" + region
	}
	return filepath.Join(OutputDir(root), name+"."+string(format))
}

// Create opens a writer for path in the configured format. Data goes to a
// temporary file that replaces path on a successful Close.
func Create(path string, t *table.Table, cfg Config) (Writer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, gerrors.WriteFailed(path, err)
	}
	tmp := fmt.Sprintf("%s.tmp.%d", path, time.Now().UnixNano())

	var (
		w   Writer
		f   *os.File
		err error
	)
	switch cfg.Format {
	case FormatGeoPackage:
		w, err = NewGeoPackageWriter(tmp, t, cfg)
	case FormatParquet, "":
		f, err = os.Create(tmp)
		if err != nil {
			return nil, gerrors.WriteFailed(path, err)
		}
		w, err = NewParquetWriter(f, t, cfg)
	default:
		return nil, gerrors.New(gerrors.CodeWriteFailed, "unknown output format").WithContext("format", string(cfg.Format))
	}
	if err != nil {
		if f != nil {
			f.Close()
		}
		os.Remove(tmp)
		return nil, gerrors.WriteFailed(path, err)
	}
	return &atomicWriter{Writer: w, f: f, tmp: tmp, path: path}, nil
}

// WriteFile writes t to path in one go. Nothing is left at path on failure.
func WriteFile(ctx context.Context, path string, t *table.Table, cfg Config) error {
	w, err := Create(path, t, cfg)
	if err != nil {
		return err
	}
	if err := w.Write(ctx, t); err != nil {
		w.(*atomicWriter).Abort()
		return gerrors.WriteFailed(path, err)
	}
	if err := w.Close(); err != nil {
		return gerrors.WriteFailed(path, err)
	}
	return nil
}

// atomicWriter renames the temporary file to its final path on Close.
type atomicWriter struct {
	Writer
	f    *os.File
	tmp  string
	path string
}

func (w *atomicWriter) Close() error {
	// Closing the parquet writer also closes the file.
	err := w.Writer.Close()
	if w.f != nil {
		w.f.Close()
	}
	if err != nil {
		os.Remove(w.tmp)
		return err
	}
	if err := os.Rename(w.tmp, w.path); err != nil {
		os.Remove(w.tmp)
		return fmt.Errorf("failed to rename temp file to final path: %w", err)
	}
	return nil
}

// Abort discards the temporary file.
func (w *atomicWriter) Abort() {
	w.Writer.Close()
	if w.f != nil {
		w.f.Close()
	}
	os.Remove(w.tmp)
}
