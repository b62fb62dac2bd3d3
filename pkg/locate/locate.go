// Package locate discovers candidate granule files for a run.
package locate

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/gedixr/gedixr/internal/model"
	gerrors "github.com/gedixr/gedixr/pkg/errors"
)

// Locator finds granules of one product.
type Locator interface {
	// Locate returns the candidate files. The caller must call Cleanup on the
	// returned Discovery, also when the run fails later on.
	Locate(ctx context.Context, product model.Product) (*Discovery, error)
}

// Discovery is the outcome of a Locate call.
type Discovery struct {
	Paths []string

	// Temporary directories created while unpacking archives.
	tempDirs []string
}

// Cleanup removes all temporary directories. It is safe to call more than once.
func (d *Discovery) Cleanup() error {
	if d == nil {
		return nil
	}
	var errs gerrors.MultiError
	for _, dir := range d.tempDirs {
		if err := os.RemoveAll(dir); err != nil {
			errs.Add(fmt.Errorf("failed to remove %s: %w", dir, err))
		}
	}
	d.tempDirs = nil
	return errs.Combined()
}

// TempDirs returns the temporary directories still owned by the discovery.
func (d *Discovery) TempDirs() []string {
	return append([]string(nil), d.tempDirs...)
}

// MatchProduct reports whether a file name matches the product pattern.
func MatchProduct(product model.Product, path string) bool {
	ok, err := filepath.Match(product.Pattern(), filepath.Base(path))
	return err == nil && ok
}

// DirectoryLocator walks a root directory recursively.
type DirectoryLocator struct {
	Root string

	// UnpackArchives extracts every zip archive under Root into its own
	// temporary directory and matches inside those instead of Root.
	UnpackArchives bool

	// TempDir is the parent for unpack directories; empty means os.TempDir().
	TempDir string
}

// Locate implements Locator.
func (l *DirectoryLocator) Locate(ctx context.Context, product model.Product) (*Discovery, error) {
	if product.Pattern() == "" {
		return nil, gerrors.New(gerrors.CodeInvalidProduct, "unsupported product").WithContext("product", string(product))
	}
	info, err := os.Stat(l.Root)
	if err != nil {
		return nil, gerrors.Wrap(err, gerrors.CodeFileOpen, "cannot read root directory").WithContext("root", l.Root)
	}
	if !info.IsDir() {
		return nil, gerrors.New(gerrors.CodeFileOpen, "root is not a directory").WithContext("root", l.Root)
	}

	d := &Discovery{}
	roots := []string{l.Root}

	if l.UnpackArchives {
		archives, err := walkMatching(ctx, l.Root, func(name string) bool {
			return filepath.Ext(name) == ".zip"
		})
		if err != nil {
			return nil, err
		}
		roots = roots[:0]
		for _, archive := range archives {
			dir, err := unpackZip(ctx, archive, l.TempDir)
			if dir != "" {
				d.tempDirs = append(d.tempDirs, dir)
			}
			if err != nil {
				d.Cleanup()
				return nil, err
			}
			roots = append(roots, dir)
		}
	}

	for _, root := range roots {
		paths, err := walkMatching(ctx, root, func(name string) bool {
			return MatchProduct(product, name)
		})
		if err != nil {
			d.Cleanup()
			return nil, err
		}
		d.Paths = append(d.Paths, paths...)
	}
	return d, nil
}

// walkMatching returns regular files below root whose base name satisfies
// keep, in lexical order.
func walkMatching(ctx context.Context, root string, keep func(name string) bool) ([]string, error) {
	var out []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.Type().IsRegular() && keep(d.Name()) {
			out = append(out, path)
		}
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, gerrors.ContextCanceled("locate", err)
		}
		return nil, gerrors.Wrap(err, gerrors.CodeFileOpen, "failed to walk directory").WithContext("root", root)
	}
	sort.Strings(out)
	return out, nil
}

// ListLocator serves an explicit list of local paths, typically produced by a
// download client. Paths not matching the product pattern are dropped.
type ListLocator struct {
	Paths []string
}

// Locate implements Locator.
func (l *ListLocator) Locate(ctx context.Context, product model.Product) (*Discovery, error) {
	if product.Pattern() == "" {
		return nil, gerrors.New(gerrors.CodeInvalidProduct, "unsupported product").WithContext("product", string(product))
	}
	d := &Discovery{}
	for _, p := range l.Paths {
		if MatchProduct(product, p) {
			d.Paths = append(d.Paths, p)
		}
	}
	return d, nil
}
