// Package metrics collects per-run Prometheus metrics and writes them as a
// node-exporter textfile next to the run log.
package metrics

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// File outcomes.
const (
	OutcomeProcessed = "processed"
	OutcomeSkipped   = "skipped"
	OutcomeFailed    = "failed"
)

// Shot stages.
const (
	StageExtracted = "extracted"
	StageFiltered  = "filtered_out"
	StageKept      = "kept"
)

// RunCollector bundles the Prometheus metrics of one extraction run.
type RunCollector struct {
	gatherer prometheus.Gatherer

	Files        *prometheus.CounterVec
	Shots        *prometheus.CounterVec
	Beams        *prometheus.CounterVec
	Errors       prometheus.Counter
	FileDuration prometheus.Histogram
	RowsWritten  *prometheus.GaugeVec
	RunDuration  prometheus.Gauge
}

// NewRunCollector registers run metrics against reg, defaulting to a fresh
// registry when nil.
func NewRunCollector(reg prometheus.Registerer) (*RunCollector, error) {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	c := &RunCollector{
		gatherer: gatherer,
		Files: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gedixr_files_total",
			Help: "Source files seen by the run, labeled by outcome.",
		}, []string{"outcome"}),
		Shots: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gedixr_shots_total",
			Help: "Shots by pipeline stage.",
		}, []string{"stage"}),
		Beams: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gedixr_beams_total",
			Help: "Beams read or missing from source files.",
		}, []string{"state"}),
		Errors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gedixr_errors_total",
			Help: "Recoverable errors counted during the run.",
		}),
		FileDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "gedixr_file_duration_seconds",
			Help:    "Per-file processing time in seconds.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		}),
		RowsWritten: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gedixr_rows_written",
			Help: "Rows written per output, labeled by region (empty for global).",
		}, []string{"region"}),
		RunDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gedixr_run_duration_seconds",
			Help: "Wall time of the run in seconds.",
		}),
	}

	for _, col := range []prometheus.Collector{c.Files, c.Shots, c.Beams, c.Errors, c.FileDuration, c.RowsWritten, c.RunDuration} {
		if err := reg.Register(col); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return nil, fmt.Errorf("register metrics: %w", err)
		}
	}
	return c, nil
}

// ObserveFile records one file outcome and its processing time.
func (c *RunCollector) ObserveFile(outcome string, d time.Duration) {
	if c == nil {
		return
	}
	c.Files.WithLabelValues(outcome).Inc()
	if outcome != OutcomeSkipped {
		c.FileDuration.Observe(d.Seconds())
	}
}

// AddShots adds n shots to a stage.
func (c *RunCollector) AddShots(stage string, n int) {
	if c == nil || n <= 0 {
		return
	}
	c.Shots.WithLabelValues(stage).Add(float64(n))
}

// AddBeams records read and missing beam counts.
func (c *RunCollector) AddBeams(read, missing int) {
	if c == nil {
		return
	}
	c.Beams.WithLabelValues("read").Add(float64(read))
	c.Beams.WithLabelValues("missing").Add(float64(missing))
}

// AddErrors adds n recoverable errors.
func (c *RunCollector) AddErrors(n int) {
	if c == nil || n <= 0 {
		return
	}
	c.Errors.Add(float64(n))
}

// SetRowsWritten records the rows written for a region ("" for global).
func (c *RunCollector) SetRowsWritten(region string, n int) {
	if c == nil {
		return
	}
	c.RowsWritten.WithLabelValues(region).Set(float64(n))
}

// WriteTextfile writes all gathered metrics to path atomically.
func (c *RunCollector) WriteTextfile(path string) error {
	if c == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return prometheus.WriteToTextfile(path, c.gatherer)
}

// TextfileName derives the metrics file from the run log path.
func TextfileName(logPath string) string {
	return strings.TrimSuffix(logPath, filepath.Ext(logPath)) + ".prom"
}
