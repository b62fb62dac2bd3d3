// Package pipeline runs an extraction: discovery, per-file extraction and
// filtering, region accumulation and output.
package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/gedixr/gedixr/internal/model"
	"github.com/gedixr/gedixr/pkg/acquisition"
	gerrors "github.com/gedixr/gedixr/pkg/errors"
	"github.com/gedixr/gedixr/pkg/extract"
	"github.com/gedixr/gedixr/pkg/geo"
	"github.com/gedixr/gedixr/pkg/locate"
	"github.com/gedixr/gedixr/pkg/logging"
	"github.com/gedixr/gedixr/pkg/metrics"
	"github.com/gedixr/gedixr/pkg/quality"
	"github.com/gedixr/gedixr/pkg/region"
	"github.com/gedixr/gedixr/pkg/subset"
	"github.com/gedixr/gedixr/pkg/table"
	"github.com/gedixr/gedixr/pkg/telemetry"
	"github.com/gedixr/gedixr/pkg/writer"
)

// State is the lifecycle state of a run.
type State int

const (
	StateInitializing State = iota
	StateDiscovering
	StateProcessing
	StateFinalizing
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateDiscovering:
		return "discovering"
	case StateProcessing:
		return "processing"
	case StateFinalizing:
		return "finalizing"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Publisher uploads a finished output file and returns its remote location.
type Publisher interface {
	Publish(ctx context.Context, path string) (string, error)
}

// Publishers publishes to each destination in turn and joins their URIs.
type Publishers []Publisher

// Publish implements Publisher. It stops at the first failure.
func (ps Publishers) Publish(ctx context.Context, path string) (string, error) {
	uris := make([]string, 0, len(ps))
	for _, p := range ps {
		uri, err := p.Publish(ctx, path)
		if err != nil {
			return strings.Join(uris, ", "), err
		}
		uris = append(uris, uri)
	}
	return strings.Join(uris, ", "), nil
}

// Options configures a run.
type Options struct {
	// Root is searched for granules and receives the log/ and extracted/
	// directories.
	Root    string
	Product model.Product
	Beams   []model.Beam
	Months  acquisition.MonthRange

	QualityFilter bool
	Spec          extract.LayerSpec
	Regions       *region.Catalog

	// Locator defaults to walking Root, unpacking zip archives when
	// UnpackZip is set.
	Locator   locate.Locator
	UnpackZip bool
	TempDir   string

	// Open reads granules, normally h5.Open.
	Open extract.Opener

	Workers int
	Output  writer.Config
	DryRun  bool

	Log       logging.Options
	Metrics   *metrics.RunCollector
	Publisher Publisher

	// Progress is called after each file with the number of files done.
	// Calls are serialized.
	Progress func(done, total int)

	// Now is the run clock; defaults to time.Now.
	Now func() time.Time
}

// Output is one written (or omitted) result.
type Output struct {
	// Region is empty for the global output.
	Region   string
	Geometry orb.Geometry
	Table    *table.Table
	// Path is empty when nothing was written.
	Path string
	// URI is set when the file was published.
	URI string
}

// Rows returns the number of shots in the output.
func (o Output) Rows() int {
	return o.Table.NumRows()
}

// RunResult describes a finished run.
type RunResult struct {
	RunID    string
	Started  time.Time
	Duration time.Duration
	State    State

	Files     int
	Processed int
	Skipped   int
	Failed    int

	// Global is set for runs without regions.
	Global *Output
	// Regions holds every configured region in catalog order.
	Regions []Output

	ErrorCount int
	Errors     []ErrorRecord
	Warning    string

	LogPath     string
	MetricsPath string
}

// Paths returns the files written by the run.
func (r *RunResult) Paths() []string {
	var out []string
	if r.Global != nil && r.Global.Path != "" {
		out = append(out, r.Global.Path)
	}
	for _, o := range r.Regions {
		if o.Path != "" {
			out = append(out, o.Path)
		}
	}
	return out
}

// Coordinator runs one extraction.
type Coordinator struct {
	opts Options

	mu    sync.Mutex
	state State
}

// New validates opts and fills in defaults.
func New(opts Options) (*Coordinator, error) {
	if opts.Product.Pattern() == "" {
		return nil, gerrors.New(gerrors.CodeInvalidProduct, "unsupported product").WithContext("product", string(opts.Product))
	}
	if opts.Root == "" {
		return nil, fmt.Errorf("root directory is required")
	}
	if opts.Open == nil {
		return nil, fmt.Errorf("no granule opener configured")
	}
	if len(opts.Beams) == 0 {
		opts.Beams = model.AllBeams()
	}
	if opts.Months == (acquisition.MonthRange{}) {
		opts.Months = acquisition.AllYear
	}
	if opts.Spec.Product == "" {
		spec, err := extract.NewLayerSpec(opts.Product, nil)
		if err != nil {
			return nil, err
		}
		opts.Spec = spec
	}
	if opts.Spec.Product != opts.Product {
		return nil, fmt.Errorf("layer spec is for %s, run is for %s", opts.Spec.Product, opts.Product)
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.Output.Format == "" {
		opts.Output = writer.DefaultConfig()
	}
	if opts.Locator == nil {
		opts.Locator = &locate.DirectoryLocator{Root: opts.Root, UnpackArchives: opts.UnpackZip, TempDir: opts.TempDir}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Coordinator{opts: opts}, nil
}

// State returns the current state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Coordinator) setState(s State, log *zap.Logger) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
	if log != nil {
		log.Debug("run state", zap.Stringer("state", s))
	}
}

// Run executes the extraction. Per-file errors are counted and reported in
// RunResult.Warning; zero matching files, output failures and cancellation
// fail the run. On failure the partial result is returned with the error.
func (c *Coordinator) Run(ctx context.Context) (*RunResult, error) {
	opts := c.opts
	start := opts.Now()
	res := &RunResult{RunID: uuid.NewString(), Started: start}
	c.setState(StateInitializing, nil)

	logOpts := opts.Log
	if logOpts.FilePath == "" {
		logOpts.FilePath = logging.FileName(opts.Root, start, string(opts.Product))
	}
	logger, err := logging.New(logOpts)
	if err != nil {
		c.setState(StateFailed, nil)
		res.State = StateFailed
		return res, err
	}
	defer logger.Close()
	res.LogPath = logger.Path()
	log := logger.With(logging.RunID(res.RunID))

	ctx, span := telemetry.StartSpanFromContext(ctx, "gedixr.run",
		attribute.String("run_id", res.RunID),
		attribute.String("product", string(opts.Product)),
	)
	defer span.End()

	fail := func(err error) (*RunResult, error) {
		c.setState(StateFailed, log)
		res.State = StateFailed
		res.Duration = time.Since(start)
		telemetry.RecordError(ctx, err)
		log.Error("run failed", zap.Error(err))
		return res, err
	}

	log.Info("starting extraction",
		zap.String("root", opts.Root),
		zap.String("product", string(opts.Product)),
		zap.Int("beams", len(opts.Beams)),
		zap.Stringer("months", opts.Months),
		zap.Bool("quality_filter", opts.QualityFilter),
		zap.Int("regions", opts.Regions.Len()),
		zap.Int("workers", opts.Workers),
	)

	c.setState(StateDiscovering, log)
	disc, err := opts.Locator.Locate(ctx, opts.Product)
	if err != nil {
		return fail(err)
	}
	defer func() {
		if err := disc.Cleanup(); err != nil {
			log.Warn("failed to remove temporary directories", zap.Error(err))
		}
	}()
	if len(disc.Paths) == 0 {
		return fail(gerrors.NoFiles(string(opts.Product), opts.Root))
	}
	res.Files = len(disc.Paths)
	log.Info("found files", zap.Int("count", res.Files))

	if opts.DryRun {
		c.setState(StateSucceeded, log)
		res.State = StateSucceeded
		res.Duration = time.Since(start)
		return res, nil
	}

	c.setState(StateProcessing, log)
	acc := subset.New(opts.Regions)
	outcomes, err := c.processAll(ctx, disc.Paths, acc, log)
	if err != nil {
		return fail(err)
	}

	tally := NewErrorTally(0)
	for _, out := range outcomes {
		tally.Add(out.errors...)
		switch {
		case out.skipped:
			res.Skipped++
		case out.failed:
			res.Failed++
		default:
			res.Processed++
			if err := acc.Merge(out.split); err != nil {
				log.Error("failed to merge file result", logging.File(out.path), zap.Error(err))
				tally.Add(fileError(out.path, err))
				opts.Metrics.AddErrors(1)
			}
		}
	}

	c.setState(StateFinalizing, log)
	final, err := acc.Finalize()
	if err != nil {
		return fail(err)
	}
	if err := c.writeOutputs(ctx, res, final, log); err != nil {
		return fail(err)
	}

	res.ErrorCount = tally.Count()
	res.Errors = tally.Records()
	res.Warning = tally.Warning(res.LogPath)
	if res.Warning != "" {
		log.Warn(res.Warning)
	}
	res.Duration = time.Since(start)

	if opts.Metrics != nil && res.LogPath != "" {
		opts.Metrics.RunDuration.Set(res.Duration.Seconds())
		path := metrics.TextfileName(res.LogPath)
		if err := opts.Metrics.WriteTextfile(path); err != nil {
			log.Warn("failed to write metrics", zap.Error(err))
		} else {
			res.MetricsPath = path
		}
	}

	span.SetAttributes(attribute.Int("files", res.Files), attribute.Int("errors", res.ErrorCount))
	log.Info("extraction finished",
		zap.Int("processed", res.Processed),
		zap.Int("skipped", res.Skipped),
		zap.Int("failed", res.Failed),
		zap.Int("errors", res.ErrorCount),
		zap.Duration("duration", res.Duration),
	)
	c.setState(StateSucceeded, log)
	res.State = StateSucceeded
	return res, nil
}

// fileOutcome is the contribution of one file, reduced in file order.
type fileOutcome struct {
	path    string
	split   subset.Split
	errors  []ErrorRecord
	skipped bool
	failed  bool
}

// processAll runs the per-file stages on up to Workers goroutines. Outcomes
// are returned in input order. Only cancellation returns an error.
func (c *Coordinator) processAll(ctx context.Context, paths []string, acc *subset.Accumulator, log *zap.Logger) ([]fileOutcome, error) {
	extractor := &extract.Extractor{
		Spec:   c.opts.Spec,
		Beams:  c.opts.Beams,
		Open:   c.opts.Open,
		Logger: log,
	}

	outcomes := make([]fileOutcome, len(paths))
	var (
		progressMu sync.Mutex
		done       int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.Workers)
	for i, path := range paths {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			out, err := c.processFile(gctx, extractor, acc, path, log)
			if err != nil {
				return err
			}
			outcomes[i] = out

			if c.opts.Progress != nil {
				progressMu.Lock()
				done++
				c.opts.Progress(done, len(paths))
				progressMu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, gerrors.ContextCanceled("process files", err)
	}
	return outcomes, nil
}

// processFile runs acquisition filter, extraction, quality filter, geometry
// and region split for one file. Failures are recorded in the outcome.
func (c *Coordinator) processFile(ctx context.Context, extractor *extract.Extractor, acc *subset.Accumulator, path string, log *zap.Logger) (fileOutcome, error) {
	began := time.Now()
	out := fileOutcome{path: path}
	flog := log.With(logging.File(path))
	m := c.opts.Metrics

	ctx, span := telemetry.StartSpanFromContext(ctx, "gedixr.file", attribute.String("file", filepath.Base(path)))
	defer span.End()

	fail := func(err error) (fileOutcome, error) {
		flog.Error("file discarded", zap.Error(err))
		telemetry.RecordError(ctx, err)
		out.errors = append(out.errors, fileError(path, err))
		out.failed = true
		m.AddErrors(1)
		m.ObserveFile(metrics.OutcomeFailed, time.Since(began))
		return out, nil
	}

	acquired, err := acquisition.FromFileName(path)
	if err != nil {
		return fail(err)
	}
	if !c.opts.Months.Contains(acquired) {
		flog.Info("acquisition month outside the requested range, skipping",
			zap.String("acquired", acquired.Format(time.DateOnly)),
			zap.Stringer("months", c.opts.Months))
		out.skipped = true
		m.ObserveFile(metrics.OutcomeSkipped, 0)
		return out, nil
	}

	ex, err := extractor.Extract(ctx, model.SourceFile{Path: path, Product: c.opts.Product, Acquired: acquired})
	if err != nil {
		if gerrors.IsCode(err, gerrors.CodeContextCanceled) {
			return out, err
		}
		return fail(err)
	}
	m.AddBeams(ex.BeamsRead, ex.BeamsSkipped)
	if ex.Errors > 0 {
		out.errors = append(out.errors, ErrorRecord{
			File:      path,
			Code:      gerrors.CodeExtractFailed,
			Count:     ex.Errors,
			Message:   fmt.Sprintf("%d beams discarded", ex.Errors),
			Timestamp: time.Now(),
		})
		m.AddErrors(ex.Errors)
	}

	t := ex.Table
	m.AddShots(metrics.StageExtracted, t.NumRows())
	if !t.IsEmpty() {
		if c.opts.QualityFilter {
			filtered, stats, err := quality.Apply(t, flog)
			if err != nil {
				return fail(err)
			}
			m.AddShots(metrics.StageFiltered, stats.Removed)
			t = filtered
		} else {
			t = quality.DropFlags(t)
		}
	}
	if t.IsEmpty() {
		flog.Info("no shots left in file")
		m.ObserveFile(metrics.OutcomeProcessed, time.Since(began))
		return out, nil
	}

	t, err = geo.Build(t, flog)
	if err != nil {
		return fail(err)
	}
	split, err := acc.Split(t)
	if err != nil {
		return fail(err)
	}
	out.split = split

	m.AddShots(metrics.StageKept, t.NumRows())
	m.ObserveFile(metrics.OutcomeProcessed, time.Since(began))
	span.SetAttributes(attribute.Int("shots", t.NumRows()))
	flog.Debug("file processed", zap.Int("shots", t.NumRows()), zap.Int("assigned", split.Rows()))
	return out, nil
}

// writeOutputs writes the global table or one file per non-empty region and
// publishes what was written.
func (c *Coordinator) writeOutputs(ctx context.Context, res *RunResult, final *subset.Result, log *zap.Logger) error {
	opts := c.opts
	cfg := opts.Output
	cfg.Metadata = writer.RunMetadata{
		RunID:         res.RunID,
		Product:       string(opts.Product),
		QualityFilter: opts.QualityFilter,
		CreatedAt:     res.Started.UTC().Format(time.RFC3339),
	}

	write := func(o *Output) error {
		path := writer.FileName(opts.Root, res.Started, opts.Product, opts.QualityFilter, o.Region, cfg.Format)
		wcfg := cfg
		wcfg.Metadata.Region = o.Region
		if o.Region != "" {
			wcfg.Layer = o.Region
		}

		ctx, span := telemetry.StartSpanFromContext(ctx, "gedixr.write", attribute.String("path", filepath.Base(path)))
		defer span.End()
		if err := writer.WriteFile(ctx, path, o.Table, wcfg); err != nil {
			telemetry.RecordError(ctx, err)
			return err
		}
		o.Path = path
		opts.Metrics.SetRowsWritten(o.Region, o.Rows())
		log.Info("output written", zap.String("path", path), zap.Int("shots", o.Rows()), logging.Region(o.Region))

		if opts.Publisher != nil {
			uri, err := opts.Publisher.Publish(ctx, path)
			if err != nil {
				return gerrors.Wrap(err, gerrors.CodePublishFailed, "failed to publish output").WithContext("path", path)
			}
			o.URI = uri
			log.Info("output published", zap.String("uri", uri))
		}
		return nil
	}

	if final.Regions == nil {
		out := &Output{Table: final.Global}
		res.Global = out
		if out.Table.IsEmpty() {
			log.Info("no shots left after processing, no output written")
			return nil
		}
		return write(out)
	}

	res.Regions = make([]Output, len(final.Regions))
	for i, rr := range final.Regions {
		res.Regions[i] = Output{Region: rr.Region.Name, Geometry: rr.Region.Geometry, Table: rr.Table}
		if rr.Table.IsEmpty() {
			log.Info("no shots intersect region, no output written", logging.Region(rr.Region.Name))
			continue
		}
		if err := write(&res.Regions[i]); err != nil {
			return err
		}
	}
	return nil
}
