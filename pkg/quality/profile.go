package quality

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/marcboeker/go-duckdb"

	"github.com/gedixr/gedixr/internal/model"
)

// ColumnProfile holds value statistics for a single output column.
type ColumnProfile struct {
	Name      string
	Type      string
	NullCount int64
	Distinct  int64
	Entropy   float64 // Shannon entropy in bits
	Min       string
	Max       string
}

// NullPct is the share of null values in percent.
func (c ColumnProfile) NullPct(rows int64) float64 {
	if rows == 0 {
		return 0
	}
	return float64(c.NullCount) / float64(rows) * 100
}

// Profile summarizes a GeoParquet output and audits it against the
// numeric filter clauses.
type Profile struct {
	Path        string
	RowCount    int64
	Columns     []ColumnProfile
	Violations  map[string]int64 // clause name -> rows failing it
	ComputeTime time.Duration
}

// Passed reports whether no row fails an audited clause.
func (p *Profile) Passed() bool {
	for _, n := range p.Violations {
		if n > 0 {
			return false
		}
	}
	return true
}

// auditSQL mirrors the filter clauses that survive into the output; the flag
// columns are dropped on write and cannot be audited.
var auditSQL = []struct {
	name    string
	columns []string
	fail    string
}{
	{"num_detectedmodes >= 1", []string{model.ColNumDetectedModes},
		fmt.Sprintf(`NOT ("%s" >= 1)`, model.ColNumDetectedModes)},
	{"|elev - elev_dem_tdx| < 100", []string{model.ColElev, model.ColElevDEM},
		fmt.Sprintf(`NOT (abs("%s" - "%s") < %g) OR isnan("%s") OR isnan("%s")`,
			model.ColElev, model.ColElevDEM, MaxDEMDifference, model.ColElev, model.ColElevDEM)},
}

// Profiler computes output profiles with an in-memory DuckDB.
type Profiler struct {
	db *sql.DB
}

// NewProfiler opens the DuckDB connection.
func NewProfiler() (*Profiler, error) {
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, err
	}
	return &Profiler{db: db}, nil
}

// Close releases resources.
func (p *Profiler) Close() error {
	return p.db.Close()
}

// Profile reads the file at path. The geometry column is not profiled.
func (p *Profiler) Profile(ctx context.Context, path string) (*Profile, error) {
	start := time.Now()
	src := fmt.Sprintf("read_parquet('%s')", escapePath(path))
	prof := &Profile{Path: path, Violations: make(map[string]int64)}

	if err := p.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+src).Scan(&prof.RowCount); err != nil {
		return nil, fmt.Errorf("row count failed: %w", err)
	}

	rows, err := p.db.QueryContext(ctx, "DESCRIBE SELECT * FROM "+src)
	if err != nil {
		return nil, fmt.Errorf("describe failed: %w", err)
	}
	var names, types []string
	for rows.Next() {
		var name, dtype string
		var null, key, dflt, extra any
		if err := rows.Scan(&name, &dtype, &null, &key, &dflt, &extra); err != nil {
			rows.Close()
			return nil, err
		}
		if name == model.ColGeometry {
			continue
		}
		names = append(names, name)
		types = append(types, dtype)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	present := make(map[string]bool, len(names))
	for i, name := range names {
		present[name] = true
		col, err := p.column(ctx, src, name, types[i])
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", name, err)
		}
		prof.Columns = append(prof.Columns, *col)
	}

	for _, a := range auditSQL {
		ok := true
		for _, c := range a.columns {
			ok = ok && present[c]
		}
		if !ok {
			continue
		}
		var n int64
		if err := p.db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s", src, a.fail)).Scan(&n); err != nil {
			return nil, fmt.Errorf("audit %s: %w", a.name, err)
		}
		prof.Violations[a.name] = n
	}

	prof.ComputeTime = time.Since(start)
	return prof, nil
}

func (p *Profiler) column(ctx context.Context, src, name, dtype string) (*ColumnProfile, error) {
	c := &ColumnProfile{Name: name, Type: dtype}
	var lo, hi sql.NullString
	query := fmt.Sprintf(`
		SELECT
			COUNT(*) - COUNT("%[1]s"),
			COUNT(DISTINCT "%[1]s"),
			COALESCE(entropy("%[1]s"::VARCHAR), 0),
			MIN("%[1]s")::VARCHAR,
			MAX("%[1]s")::VARCHAR
		FROM %[2]s
	`, name, src)
	if err := p.db.QueryRowContext(ctx, query).Scan(&c.NullCount, &c.Distinct, &c.Entropy, &lo, &hi); err != nil {
		return nil, err
	}
	c.Min, c.Max = lo.String, hi.String
	return c, nil
}

// Report renders the profile as a fixed-width table.
func (p *Profile) Report() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s: %d rows\n", p.Path, p.RowCount)
	fmt.Fprintf(&sb, "%-22s %-10s %7s %9s %8s  %s\n", "COLUMN", "TYPE", "NULL%", "DISTINCT", "ENTROPY", "RANGE")
	for _, c := range p.Columns {
		fmt.Fprintf(&sb, "%-22s %-10s %6.1f%% %9d %8.2f  %s .. %s\n",
			truncate(c.Name, 22), truncate(c.Type, 10), c.NullPct(p.RowCount), c.Distinct, c.Entropy,
			truncate(c.Min, 24), truncate(c.Max, 24))
	}
	for _, a := range auditSQL {
		if n, ok := p.Violations[a.name]; ok {
			fmt.Fprintf(&sb, "audit %-28s %d failing\n", a.name, n)
		}
	}
	return sb.String()
}

func escapePath(path string) string {
	return strings.ReplaceAll(path, "'", "''")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}
