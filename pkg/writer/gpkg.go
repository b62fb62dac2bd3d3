package writer

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/paulmach/orb/encoding/wkb"
	_ "modernc.org/sqlite"

	"github.com/gedixr/gedixr/internal/model"
	"github.com/gedixr/gedixr/pkg/geo"
	"github.com/gedixr/gedixr/pkg/table"
)

const (
	gpkgApplicationID = 0x47504B47 // "GPKG"
	gpkgUserVersion   = 10300
	gpkgSRSID         = 4326
	gpkgTimeLayout    = "2006-01-02T15:04:05.000Z"
)

const wgs84WKT = `GEOGCS["WGS 84",DATUM["WGS_1984",SPHEROID["WGS 84",6378137,298.257223563,` +
	`AUTHORITY["EPSG","7030"]],AUTHORITY["EPSG","6326"]],PRIMEM["Greenwich",0,AUTHORITY["EPSG","8901"]],` +
	`UNIT["degree",0.0174532925199433,AUTHORITY["EPSG","9122"]],AUTHORITY["EPSG","4326"]]`

var gpkgSchema = []string{
	fmt.Sprintf("PRAGMA application_id = %d", gpkgApplicationID),
	fmt.Sprintf("PRAGMA user_version = %d", gpkgUserVersion),
	`CREATE TABLE gpkg_spatial_ref_sys (
		srs_name TEXT NOT NULL,
		srs_id INTEGER NOT NULL PRIMARY KEY,
		organization TEXT NOT NULL,
		organization_coordsys_id INTEGER NOT NULL,
		definition TEXT NOT NULL,
		description TEXT)`,
	`CREATE TABLE gpkg_contents (
		table_name TEXT NOT NULL PRIMARY KEY,
		data_type TEXT NOT NULL,
		identifier TEXT UNIQUE,
		description TEXT DEFAULT '',
		last_change DATETIME NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now')),
		min_x DOUBLE, min_y DOUBLE, max_x DOUBLE, max_y DOUBLE,
		srs_id INTEGER,
		CONSTRAINT fk_gc_r_srs_id FOREIGN KEY (srs_id) REFERENCES gpkg_spatial_ref_sys(srs_id))`,
	`CREATE TABLE gpkg_geometry_columns (
		table_name TEXT NOT NULL,
		column_name TEXT NOT NULL,
		geometry_type_name TEXT NOT NULL,
		srs_id INTEGER NOT NULL,
		z TINYINT NOT NULL,
		m TINYINT NOT NULL,
		CONSTRAINT pk_geom_cols PRIMARY KEY (table_name, column_name),
		CONSTRAINT fk_gc_tn FOREIGN KEY (table_name) REFERENCES gpkg_contents(table_name),
		CONSTRAINT fk_gc_srs FOREIGN KEY (srs_id) REFERENCES gpkg_spatial_ref_sys(srs_id))`,
	`INSERT INTO gpkg_spatial_ref_sys VALUES
		('Undefined cartesian SRS', -1, 'NONE', -1, 'undefined', 'undefined cartesian coordinate reference system'),
		('Undefined geographic SRS', 0, 'NONE', 0, 'undefined', 'undefined geographic coordinate reference system'),
		('WGS 84 geodetic', 4326, 'EPSG', 4326, '` + wgs84WKT + `', 'longitude/latitude coordinates in decimal degrees on the WGS 84 spheroid')`,
}

// GeoPackageWriter writes shot tables to a GeoPackage point feature table.
type GeoPackageWriter struct {
	db    *sql.DB
	layer string
	cols  []string
	kinds []table.Kind

	mu               sync.Mutex
	totalRowsWritten int64
	closed           bool
}

// NewGeoPackageWriter creates the GeoPackage at path with a feature table
// laid out like t. The layer extent is taken from t.
func NewGeoPackageWriter(path string, t *table.Table, cfg Config) (*GeoPackageWriter, error) {
	layer := cfg.Layer
	if layer == "" {
		layer = "shots"
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open geopackage: %w", err)
	}
	db.SetMaxOpenConns(1)

	w := &GeoPackageWriter{db: db, layer: layer}
	if err := w.init(t, cfg); err != nil {
		db.Close()
		return nil, err
	}
	return w, nil
}

func (w *GeoPackageWriter) init(t *table.Table, cfg Config) error {
	for _, stmt := range gpkgSchema {
		if _, err := w.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to initialize geopackage: %w", err)
		}
	}

	defs := []string{"fid INTEGER PRIMARY KEY AUTOINCREMENT"}
	for _, c := range t.Columns() {
		var sqlType string
		switch c.Kind {
		case table.KindFloat64:
			sqlType = "DOUBLE"
		case table.KindInt64:
			sqlType = "INTEGER"
		case table.KindString:
			sqlType = "TEXT"
		case table.KindTime:
			sqlType = "DATETIME"
		case table.KindPoint:
			sqlType = "POINT"
		default:
			return fmt.Errorf("column %s has unsupported kind %s", c.Name, c.Kind)
		}
		defs = append(defs, quoteIdent(c.Name)+" "+sqlType)
		w.cols = append(w.cols, c.Name)
		w.kinds = append(w.kinds, c.Kind)
	}
	if _, err := w.db.Exec(fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(w.layer), strings.Join(defs, ", "))); err != nil {
		return fmt.Errorf("failed to create feature table: %w", err)
	}

	var bounds [4]interface{}
	if g, ok := t.Column(model.ColGeometry); ok && len(g.Points) > 0 {
		b := geo.Bounds(g.Points)
		bounds = [4]interface{}{b.Min[0], b.Min[1], b.Max[0], b.Max[1]}
	}
	desc := fmt.Sprintf("GEDI %s shots (run %s)", cfg.Metadata.Product, cfg.Metadata.RunID)
	if _, err := w.db.Exec(
		`INSERT INTO gpkg_contents (table_name, data_type, identifier, description, min_x, min_y, max_x, max_y, srs_id)
		 VALUES (?, 'features', ?, ?, ?, ?, ?, ?, ?)`,
		w.layer, w.layer, desc, bounds[0], bounds[1], bounds[2], bounds[3], gpkgSRSID,
	); err != nil {
		return fmt.Errorf("failed to register contents: %w", err)
	}
	if _, err := w.db.Exec(
		`INSERT INTO gpkg_geometry_columns VALUES (?, ?, 'POINT', ?, 0, 0)`,
		w.layer, model.ColGeometry, gpkgSRSID,
	); err != nil {
		return fmt.Errorf("failed to register geometry column: %w", err)
	}
	return nil
}

// Write implements the Writer interface.
func (w *GeoPackageWriter) Write(ctx context.Context, t *table.Table) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return fmt.Errorf("writer is closed")
	}
	cols := t.Columns()
	if len(cols) != len(w.cols) {
		return fmt.Errorf("table has %d columns, writer expects %d", len(cols), len(w.cols))
	}
	for i, c := range cols {
		if c.Name != w.cols[i] || c.Kind != w.kinds[i] {
			return fmt.Errorf("column %d is %s:%s, writer expects %s:%s", i, c.Name, c.Kind, w.cols[i], w.kinds[i])
		}
	}

	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	quoted := make([]string, len(w.cols))
	marks := make([]string, len(w.cols))
	for i, name := range w.cols {
		quoted[i] = quoteIdent(name)
		marks[i] = "?"
	}
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(w.layer), strings.Join(quoted, ", "), strings.Join(marks, ", ")))
	if err != nil {
		return err
	}
	defer stmt.Close()

	args := make([]interface{}, len(cols))
	for row := 0; row < t.NumRows(); row++ {
		for i, c := range cols {
			v, err := gpkgValue(c, row)
			if err != nil {
				return err
			}
			args[i] = v
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("failed to insert row %d: %w", row, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	w.totalRowsWritten += int64(t.NumRows())
	return nil
}

func gpkgValue(c *table.Column, row int) (interface{}, error) {
	switch c.Kind {
	case table.KindFloat64:
		return c.Floats[row], nil
	case table.KindInt64:
		return c.Ints[row], nil
	case table.KindString:
		return c.Strings[row], nil
	case table.KindTime:
		return c.Times[row].UTC().Format(gpkgTimeLayout), nil
	case table.KindPoint:
		body, err := wkb.Marshal(c.Points[row], binary.LittleEndian)
		if err != nil {
			return nil, err
		}
		return append(GeoPackageHeader(gpkgSRSID), body...), nil
	}
	return nil, fmt.Errorf("column %s has unsupported kind %s", c.Name, c.Kind)
}

// GeoPackageHeader returns the standard GeoPackage binary header for a
// little-endian geometry without envelope.
func GeoPackageHeader(srsID int32) []byte {
	h := make([]byte, 8)
	h[0], h[1] = 'G', 'P'
	h[2] = 0    // version 1
	h[3] = 0x01 // little endian, no envelope, non-empty
	binary.LittleEndian.PutUint32(h[4:], uint32(srsID))
	return h
}

// Close closes the database.
func (w *GeoPackageWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true
	if _, err := w.db.Exec(`UPDATE gpkg_contents SET last_change = ? WHERE table_name = ?`,
		time.Now().UTC().Format(gpkgTimeLayout), w.layer); err != nil {
		w.db.Close()
		return err
	}
	return w.db.Close()
}

// RowsWritten returns the total number of rows written.
func (w *GeoPackageWriter) RowsWritten() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.totalRowsWritten
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
