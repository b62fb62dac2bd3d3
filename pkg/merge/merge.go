// Package merge joins L2B and L2A outputs of the same area on their shot
// geometry using DuckDB.
package merge

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/marcboeker/go-duckdb"
	"go.uber.org/zap"

	"github.com/gedixr/gedixr/internal/model"
	gerrors "github.com/gedixr/gedixr/pkg/errors"
	"github.com/gedixr/gedixr/pkg/writer"
)

// Options configures a merge.
type Options struct {
	// L2A and L2B are GeoParquet files produced by an extract run.
	L2A string
	L2B string
	// Columns are taken from L2A; defaults to rh98.
	Columns []string
	Output  string

	Compression writer.CompressionType
}

// Result describes a completed merge.
type Result struct {
	RowsL2A     int64
	RowsL2B     int64
	RowsWritten int64
	Output      string
}

// Merger runs merges on an in-memory DuckDB.
type Merger struct {
	db  *sql.DB
	log *zap.Logger
}

// New opens an in-memory DuckDB.
func New(log *zap.Logger) (*Merger, error) {
	if log == nil {
		log = zap.NewNop()
	}
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("failed to open duckdb: %w", err)
	}
	return &Merger{db: db, log: log}, nil
}

// Close closes the DuckDB connection.
func (m *Merger) Close() error {
	return m.db.Close()
}

// Merge inner-joins L2B with the chosen L2A columns on geometry and writes
// the result in L2B row order with the L2B run metadata. Differing row
// counts only warn.
func (m *Merger) Merge(ctx context.Context, opts Options) (*Result, error) {
	if opts.L2A == "" || opts.L2B == "" || opts.Output == "" {
		return nil, gerrors.New(gerrors.CodeMergeFailed, "both inputs and an output path are required")
	}
	cols := opts.Columns
	if len(cols) == 0 {
		cols = []string{"rh98"}
	}

	res := &Result{Output: opts.Output}
	var err error
	if res.RowsL2A, err = m.rowCount(ctx, opts.L2A); err != nil {
		return nil, gerrors.Wrap(err, gerrors.CodeMergeFailed, "failed to read L2A input").WithContext("path", opts.L2A)
	}
	if res.RowsL2B, err = m.rowCount(ctx, opts.L2B); err != nil {
		return nil, gerrors.Wrap(err, gerrors.CodeMergeFailed, "failed to read L2B input").WithContext("path", opts.L2B)
	}
	if res.RowsL2A != res.RowsL2B {
		m.log.Warn("L2A and L2B inputs have different row counts; merging on geometry may drop or duplicate shots",
			zap.Int64("l2a_rows", res.RowsL2A), zap.Int64("l2b_rows", res.RowsL2B))
	}

	info, err := writer.Inspect(opts.L2B)
	if err != nil {
		return nil, gerrors.Wrap(err, gerrors.CodeMergeFailed, "failed to read L2B metadata").WithContext("path", opts.L2B)
	}

	selectA := make([]string, 0, len(cols)+1)
	for _, c := range cols {
		selectA = append(selectA, quoteIdent(c))
	}
	selectA = append(selectA, quoteIdent(model.ColGeometry))

	if err := os.MkdirAll(filepath.Dir(opts.Output), 0755); err != nil {
		return nil, gerrors.WriteFailed(opts.Output, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(opts.Output), ".merge-*.parquet")
	if err != nil {
		return nil, gerrors.WriteFailed(opts.Output, err)
	}
	tmp.Close()
	defer os.Remove(tmp.Name())

	// DuckDB cannot attach key-value metadata on COPY; the join is staged
	// uncompressed and rewritten below with the geo and run metadata.
	query := fmt.Sprintf(`
		COPY (
			SELECT b.* EXCLUDE (__b_row), %s
			FROM (SELECT *, row_number() OVER () AS __b_row FROM read_parquet('%s')) AS b
			JOIN (SELECT %s FROM read_parquet('%s')) AS a
			  ON a.%s = b.%s
			ORDER BY b.__b_row
		) TO '%s' (FORMAT PARQUET, COMPRESSION 'uncompressed')
	`,
		prefixed("a", cols),
		escape(opts.L2B),
		strings.Join(selectA, ", "), escape(opts.L2A),
		quoteIdent(model.ColGeometry), quoteIdent(model.ColGeometry),
		escape(tmp.Name()),
	)
	if _, err := m.db.ExecContext(ctx, query); err != nil {
		return nil, gerrors.Wrap(err, gerrors.CodeMergeFailed, "duckdb merge failed")
	}

	joined, err := writer.ReadParquet(ctx, tmp.Name())
	if err != nil {
		return nil, gerrors.Wrap(err, gerrors.CodeMergeFailed, "failed to read merged rows")
	}
	cfg := writer.DefaultConfig()
	cfg.Compression = opts.Compression
	cfg.Metadata = runMetadata(info.Metadata, m.log)
	if err := writer.WriteFile(ctx, opts.Output, joined, cfg); err != nil {
		return nil, err
	}
	res.RowsWritten = int64(joined.NumRows())
	return res, nil
}

// runMetadata recovers the run metadata of the L2B input; a missing or
// unreadable entry yields an empty record.
func runMetadata(meta map[string]string, log *zap.Logger) writer.RunMetadata {
	var rm writer.RunMetadata
	raw, ok := meta[writer.RunMetadataKey]
	if !ok {
		return rm
	}
	if err := json.Unmarshal([]byte(raw), &rm); err != nil {
		log.Warn("ignoring unreadable run metadata", zap.Error(err))
		return writer.RunMetadata{}
	}
	rm.CreatedAt = ""
	return rm
}

func (m *Merger) rowCount(ctx context.Context, path string) (int64, error) {
	var n int64
	err := m.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM read_parquet('%s')`, escape(path))).Scan(&n)
	return n, err
}

func prefixed(alias string, cols []string) string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = alias + "." + quoteIdent(c)
	}
	return strings.Join(out, ", ")
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func escape(s string) string {
	return strings.ReplaceAll(s, `'`, `''`)
}
