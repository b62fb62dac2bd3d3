package locate

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"

	gerrors "github.com/gedixr/gedixr/pkg/errors"
)

// unpackZip extracts archive into a fresh temporary directory under parent and
// returns it. The directory is returned even on error so the caller can
// remove it.
func unpackZip(ctx context.Context, archive, parent string) (string, error) {
	dir, err := os.MkdirTemp(parent, "gedixr-unzip-*")
	if err != nil {
		return "", gerrors.Wrap(err, gerrors.CodeArchive, "failed to create temp directory")
	}

	zr, err := zip.OpenReader(archive)
	if err != nil {
		return dir, gerrors.Wrap(err, gerrors.CodeArchive, "failed to open archive").WithContext("archive", archive)
	}
	defer zr.Close()

	for _, f := range zr.File {
		if err := ctx.Err(); err != nil {
			return dir, gerrors.ContextCanceled("unpack", err)
		}
		if err := extractEntry(f, dir); err != nil {
			return dir, gerrors.Wrap(err, gerrors.CodeArchive, "failed to extract archive entry").
				WithContext("archive", archive).
				WithContext("entry", f.Name)
		}
	}
	return dir, nil
}

func extractEntry(f *zip.File, dir string) error {
	target := filepath.Join(dir, filepath.FromSlash(f.Name))
	rel, err := filepath.Rel(dir, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("entry escapes extraction directory")
	}

	if f.FileInfo().IsDir() {
		return os.MkdirAll(target, 0755)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return err
	}

	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
