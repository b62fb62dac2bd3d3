// Package logging builds the run logger: a console core plus an optional
// per-run log file, both backed by zap.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/gedixr/gedixr/internal/model"
)

// Options configures a run logger.
type Options struct {
	// Level for the console core. The file core always records debug.
	Level string
	// FilePath is the per-run log file. Empty disables file logging.
	FilePath string
	// Quiet disables the console core.
	Quiet bool
}

// Logger wraps a zap logger with the file it writes to.
type Logger struct {
	*zap.Logger
	path string
	file *os.File
}

// New creates a logger. The parent directory of FilePath is created on demand.
func New(opts Options) (*Logger, error) {
	level := zapcore.InfoLevel
	if opts.Level != "" {
		if err := level.UnmarshalText([]byte(opts.Level)); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", opts.Level, err)
		}
	}

	var cores []zapcore.Core
	if !opts.Quiet {
		enc := zap.NewDevelopmentEncoderConfig()
		enc.EncodeTime = zapcore.TimeEncoderOfLayout(time.TimeOnly)
		enc.EncodeLevel = zapcore.CapitalColorLevelEncoder
		cores = append(cores, zapcore.NewCore(
			zapcore.NewConsoleEncoder(enc),
			zapcore.Lock(os.Stderr),
			level,
		))
	}

	l := &Logger{path: opts.FilePath}
	if opts.FilePath != "" {
		if err := os.MkdirAll(filepath.Dir(opts.FilePath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		f, err := os.OpenFile(opts.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		l.file = f

		enc := zap.NewProductionEncoderConfig()
		enc.EncodeTime = zapcore.ISO8601TimeEncoder
		cores = append(cores, zapcore.NewCore(
			zapcore.NewConsoleEncoder(enc),
			zapcore.AddSync(f),
			zapcore.DebugLevel,
		))
	}

	if len(cores) == 0 {
		l.Logger = zap.NewNop()
	} else {
		l.Logger = zap.New(zapcore.NewTee(cores...))
	}
	return l, nil
}

// Path returns the log file path, or "" when file logging is off.
func (l *Logger) Path() string { return l.path }

// Close flushes and closes the log file.
func (l *Logger) Close() error {
	_ = l.Logger.Sync()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// FileName returns the per-run log file name for a product and start time.
func FileName(root string, start time.Time, product string) string {
	return filepath.Join(root, "log", fmt.Sprintf("%s__%s.log", start.Format(model.RunStampLayout), product))
}

// Field helpers shared by pipeline stages.

func File(path string) zap.Field   { return zap.String("file", filepath.Base(path)) }
func Beam(beam string) zap.Field   { return zap.String("beam", beam) }
func RunID(id string) zap.Field    { return zap.String("run_id", id) }
func Region(name string) zap.Field { return zap.String("region", name) }
