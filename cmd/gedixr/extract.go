package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/gedixr/gedixr/internal/model"
	"github.com/gedixr/gedixr/pkg/acquisition"
	"github.com/gedixr/gedixr/pkg/config"
	"github.com/gedixr/gedixr/pkg/extract"
	"github.com/gedixr/gedixr/pkg/h5"
	"github.com/gedixr/gedixr/pkg/locate"
	"github.com/gedixr/gedixr/pkg/logging"
	"github.com/gedixr/gedixr/pkg/metrics"
	"github.com/gedixr/gedixr/pkg/pipeline"
	"github.com/gedixr/gedixr/pkg/region"
	"github.com/gedixr/gedixr/pkg/storage/object"
	"github.com/gedixr/gedixr/pkg/storage/s3"
	"github.com/gedixr/gedixr/pkg/telemetry"
	"github.com/gedixr/gedixr/pkg/tui"
	"github.com/gedixr/gedixr/pkg/writer"
)

// Extract flags
var (
	productFlag     string
	beamsFlag       string
	monthMin        int
	monthMax        int
	subsetVectors   []string
	qualityFilter   bool
	unpackZip       bool
	variablesFlag   []string
	outFormat       string
	compressionFlag string
	workers         int
	tempDir         string
	filesFrom       string
	dryRun          bool
	publish         bool
	publishDir      string
	noProgress      bool
)

var extractCmd = &cobra.Command{
	Use:   "extract <root-dir>",
	Short: "Extract GEDI shots from granules under a directory",
	Long: `Extract shots from every GEDI L2A or L2B granule found under <root-dir>.

Output goes to <root-dir>/extracted, the run log to <root-dir>/log.

Examples:
  gedixr extract /data/gedi --product L2B
  gedixr extract /data/gedi --product L2A --beams power --month-min 6 --month-max 9
  gedixr extract /data/gedi --subset-vector site_a.geojson --subset-vector site_b.wkt
  gedixr extract /data/gedi --variables rh50=rh50,rh98 --format gpkg
  gedixr extract /data/gedi --unpack-zip --workers 4
  gedixr extract /data/gedi --files-from downloaded.txt`,
	Args: cobra.ExactArgs(1),
	RunE: runExtract,
}

func init() {
	f := extractCmd.Flags()
	f.StringVarP(&productFlag, "product", "p", "", "GEDI product (L2A, L2B)")
	f.StringVarP(&beamsFlag, "beams", "b", "", "Beams: all, power, coverage or a comma-separated list")
	f.IntVar(&monthMin, "month-min", 0, "First acquisition month to keep (1-12)")
	f.IntVar(&monthMax, "month-max", 0, "Last acquisition month to keep (1-12)")
	f.StringArrayVar(&subsetVectors, "subset-vector", nil, "Region vector file (GeoJSON or WKT); repeat for several regions")
	f.BoolVar(&qualityFilter, "quality-filter", true, "Apply the shot quality filter")
	f.BoolVar(&unpackZip, "unpack-zip", false, "Extract zip archives under the root before searching")
	f.StringSliceVar(&variablesFlag, "variables", nil, "Layers to extract instead of the defaults (column=path or path)")
	f.StringVarP(&outFormat, "format", "f", "", "Output format (parquet, gpkg)")
	f.StringVar(&compressionFlag, "compression", "", "Parquet compression (none, snappy, gzip, zstd, lz4)")
	f.IntVarP(&workers, "workers", "w", 0, "Files processed concurrently")
	f.StringVar(&tempDir, "temp-dir", "", "Parent directory for unpacked archives")
	f.StringVar(&filesFrom, "files-from", "", "Read granule paths from a file (one per line) instead of searching")
	f.BoolVar(&dryRun, "dry-run", false, "Only count matching files")
	f.BoolVar(&publish, "publish", false, "Upload outputs to the configured S3 bucket")
	f.StringVar(&publishDir, "publish-dir", "", "Copy outputs to this directory")
	f.BoolVar(&noProgress, "no-progress", false, "Hide the progress bar")
}

// applyExtractFlags overrides config values with flags set on the command line.
func applyExtractFlags(cmd *cobra.Command, cfg *config.Config) {
	f := cmd.Flags()
	if f.Changed("product") {
		cfg.Extract.Product = productFlag
	}
	if f.Changed("beams") {
		cfg.Extract.Beams = beamsFlag
	}
	if f.Changed("month-min") {
		cfg.Extract.MonthMin = monthMin
	}
	if f.Changed("month-max") {
		cfg.Extract.MonthMax = monthMax
	}
	if f.Changed("subset-vector") {
		cfg.Extract.Regions = subsetVectors
	}
	if f.Changed("quality-filter") {
		cfg.Extract.QualityFilter = qualityFilter
	}
	if f.Changed("unpack-zip") {
		cfg.Extract.UnpackZip = unpackZip
	}
	if f.Changed("variables") {
		cfg.Extract.Variables = variablesFlag
	}
	if f.Changed("format") {
		cfg.Output.Format = outFormat
	}
	if f.Changed("compression") {
		cfg.Output.Compression = compressionFlag
	}
	if f.Changed("workers") {
		cfg.Extract.Workers = workers
	}
	if f.Changed("temp-dir") {
		cfg.Extract.TempDir = tempDir
	}
	if f.Changed("publish") {
		cfg.Publish.S3.Enabled = publish
	}
	if f.Changed("publish-dir") {
		cfg.Publish.Dir = publishDir
	}
}

func runExtract(cmd *cobra.Command, args []string) error {
	m, err := loadConfig()
	if err != nil {
		return err
	}
	cfg := m.Get()
	applyExtractFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	if !cfg.Log.Quiet {
		tui.PrintHeader(cmd.ErrOrStderr(), version)
	}

	opts, err := buildOptions(cfg, args[0])
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdown, err := telemetry.InitOTLP(ctx, cfg.Telemetry.Enabled, telemetry.FromConfig(cfg.Telemetry, version))
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		shutdown(sctx)
	}()

	if cfg.Metrics.Enabled {
		if opts.Metrics, err = metrics.NewRunCollector(nil); err != nil {
			return err
		}
	}
	if !dryRun {
		if opts.Publisher, err = buildPublisher(ctx, cfg); err != nil {
			return err
		}
	}

	var bar *progressbar.ProgressBar
	if !cfg.Log.Quiet && !noProgress && !dryRun {
		opts.Progress = func(done, total int) {
			if bar == nil {
				bar = tui.ShowProgress(os.Stderr, int64(total), "Extracting")
			}
			bar.Set(done)
		}
	}

	coord, err := pipeline.New(opts)
	if err != nil {
		return err
	}
	res, err := coord.Run(ctx)
	if bar != nil {
		bar.Finish()
	}
	if err != nil {
		if res != nil && res.LogPath != "" {
			return fmt.Errorf("%w (see %s)", err, res.LogPath)
		}
		return err
	}

	tui.PrintRunSummary(cmd.OutOrStdout(), res, dryRun)
	return nil
}

// buildOptions resolves the configuration into run options.
func buildOptions(cfg *config.Config, root string) (pipeline.Options, error) {
	product, err := model.ParseProduct(cfg.Extract.Product)
	if err != nil {
		return pipeline.Options{}, err
	}
	beams, err := model.ParseBeams(cfg.Extract.Beams)
	if err != nil {
		return pipeline.Options{}, err
	}
	months, err := acquisition.NewMonthRange(cfg.Extract.MonthMin, cfg.Extract.MonthMax)
	if err != nil {
		return pipeline.Options{}, err
	}
	vars, err := extract.ParseVariables(cfg.Extract.Variables)
	if err != nil {
		return pipeline.Options{}, err
	}
	spec, err := extract.NewLayerSpec(product, vars)
	if err != nil {
		return pipeline.Options{}, err
	}

	format, err := writer.ParseFormat(cfg.Output.Format)
	if err != nil {
		return pipeline.Options{}, err
	}
	out := writer.DefaultConfig()
	out.Format = format
	out.Compression = writer.ParseCompression(cfg.Output.Compression)
	if cfg.Output.BatchSize > 0 {
		out.BatchSize = cfg.Output.BatchSize
	}
	if cfg.Output.RowGroupSize > 0 {
		out.RowGroupSize = cfg.Output.RowGroupSize
	}

	var catalog *region.Catalog
	if len(cfg.Extract.Regions) > 0 {
		console, err := logging.New(logging.Options{Level: cfg.Log.Level, Quiet: cfg.Log.Quiet})
		if err != nil {
			return pipeline.Options{}, err
		}
		catalog, err = region.Load(cfg.Extract.Regions, console.Logger)
		console.Close()
		if err != nil {
			return pipeline.Options{}, err
		}
	}

	opts := pipeline.Options{
		Root:          root,
		Product:       product,
		Beams:         beams,
		Months:        months,
		QualityFilter: cfg.Extract.QualityFilter,
		Spec:          spec,
		Regions:       catalog,
		UnpackZip:     cfg.Extract.UnpackZip,
		TempDir:       cfg.Extract.TempDir,
		Open:          h5.Open,
		Workers:       cfg.Extract.Workers,
		Output:        out,
		DryRun:        dryRun,
		Log:           logging.Options{Level: cfg.Log.Level, Quiet: cfg.Log.Quiet},
	}

	if filesFrom != "" {
		paths, err := readFileList(filesFrom)
		if err != nil {
			return pipeline.Options{}, err
		}
		opts.Locator = &locate.ListLocator{Paths: paths}
	}
	return opts, nil
}

// buildPublisher returns nil when no destination is configured.
func buildPublisher(ctx context.Context, cfg *config.Config) (pipeline.Publisher, error) {
	var pubs pipeline.Publishers
	if cfg.Publish.Dir != "" {
		dir, err := object.NewLocalStorage(cfg.Publish.Dir)
		if err != nil {
			return nil, err
		}
		pubs = append(pubs, dir)
	}
	if cfg.Publish.S3.Enabled {
		client, err := s3.NewClient(ctx, s3.FromConfig(cfg.Publish.S3))
		if err != nil {
			return nil, err
		}
		pubs = append(pubs, client)
	}
	switch len(pubs) {
	case 0:
		return nil, nil
	case 1:
		return pubs[0], nil
	}
	return pubs, nil
}

// readFileList reads one path per line, ignoring blanks and # comments.
func readFileList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file list: %w", err)
	}
	defer f.Close()

	var paths []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		paths = append(paths, line)
	}
	return paths, sc.Err()
}
