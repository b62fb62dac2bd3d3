// Package h5 reads GEDI granules through the HDF5 C library.
package h5

import (
	"fmt"
	"strings"

	"gonum.org/v1/hdf5"

	"github.com/gedixr/gedixr/pkg/extract"
)

// File is an open granule. It implements extract.Container.
type File struct {
	f *hdf5.File
}

var _ extract.Container = (*File)(nil)

// Open opens a granule read-only.
func Open(path string) (extract.Container, error) {
	f, err := hdf5.OpenFile(path, hdf5.F_ACC_RDONLY)
	if err != nil {
		return nil, fmt.Errorf("unable to open %s: %w", path, err)
	}
	return &File{f: f}, nil
}

// Exists checks every path prefix so missing intermediate groups do not
// raise library errors.
func (h *File) Exists(path string) bool {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	for i := range parts {
		if !h.f.LinkExists(strings.Join(parts[:i+1], "/")) {
			return false
		}
	}
	return true
}

func (h *File) Class(path string) (extract.ValueClass, error) {
	ds, err := h.f.OpenDataset(path)
	if err != nil {
		return 0, err
	}
	defer ds.Close()

	dt, err := ds.Datatype()
	if err != nil {
		return 0, err
	}
	defer dt.Close()

	switch dt.Class() {
	case hdf5.T_INTEGER:
		return extract.ClassInteger, nil
	case hdf5.T_FLOAT:
		return extract.ClassFloat, nil
	default:
		return 0, fmt.Errorf("dataset %s has unsupported type class %v", path, dt.Class())
	}
}

func (h *File) Len(path string) (int, error) {
	ds, err := h.f.OpenDataset(path)
	if err != nil {
		return 0, err
	}
	defer ds.Close()

	dims, err := dimensions(ds)
	if err != nil {
		return 0, err
	}
	return int(dims[0]), nil
}

func (h *File) ReadUint64(path string) ([]uint64, error) {
	return read1D[uint64](h.f, path)
}

func (h *File) ReadInt64(path string) ([]int64, error) {
	return read1D[int64](h.f, path)
}

func (h *File) ReadFloat64(path string) ([]float64, error) {
	return read1D[float64](h.f, path)
}

func (h *File) ReadMatrix(path string) ([]float64, int, error) {
	ds, err := h.f.OpenDataset(path)
	if err != nil {
		return nil, 0, err
	}
	defer ds.Close()

	dims, err := dimensions(ds)
	if err != nil {
		return nil, 0, err
	}
	if len(dims) != 2 {
		return nil, 0, fmt.Errorf("dataset %s has rank %d, expected 2", path, len(dims))
	}
	out, err := readAll[float64](ds, int(dims[0]*dims[1]))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return out, int(dims[1]), nil
}

func (h *File) Close() error {
	return h.f.Close()
}

type number interface {
	~int8 | ~int16 | ~int32 | ~int64 | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~float32 | ~float64
}

// read1D reads a rank-1 dataset and widens it to T.
func read1D[T int64 | uint64 | float64](f *hdf5.File, path string) ([]T, error) {
	ds, err := f.OpenDataset(path)
	if err != nil {
		return nil, err
	}
	defer ds.Close()

	dims, err := dimensions(ds)
	if err != nil {
		return nil, err
	}
	if len(dims) != 1 {
		return nil, fmt.Errorf("dataset %s has rank %d, expected 1", path, len(dims))
	}
	out, err := readAll[T](ds, int(dims[0]))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return out, nil
}

// readAll reads n elements of ds into T. H5Dread is handed the stored
// datatype as memory type, so the buffer must match the stored element
// exactly; the values are widened afterwards.
func readAll[T int64 | uint64 | float64](ds *hdf5.Dataset, n int) ([]T, error) {
	dt, err := ds.Datatype()
	if err != nil {
		return nil, err
	}
	defer dt.Close()

	switch {
	case dt.Equal(hdf5.T_NATIVE_INT8):
		return readAs[int8, T](ds, n)
	case dt.Equal(hdf5.T_NATIVE_UINT8):
		return readAs[uint8, T](ds, n)
	case dt.Equal(hdf5.T_NATIVE_INT16):
		return readAs[int16, T](ds, n)
	case dt.Equal(hdf5.T_NATIVE_UINT16):
		return readAs[uint16, T](ds, n)
	case dt.Equal(hdf5.T_NATIVE_INT32):
		return readAs[int32, T](ds, n)
	case dt.Equal(hdf5.T_NATIVE_UINT32):
		return readAs[uint32, T](ds, n)
	case dt.Equal(hdf5.T_NATIVE_INT64):
		return readAs[int64, T](ds, n)
	case dt.Equal(hdf5.T_NATIVE_UINT64):
		return readAs[uint64, T](ds, n)
	case dt.Equal(hdf5.T_NATIVE_FLOAT):
		return readAs[float32, T](ds, n)
	case dt.Equal(hdf5.T_NATIVE_DOUBLE):
		return readAs[float64, T](ds, n)
	}
	return nil, fmt.Errorf("unsupported stored type (class %v, %d bytes, non-native byte order?)", dt.Class(), dt.Size())
}

func readAs[S number, T int64 | uint64 | float64](ds *hdf5.Dataset, n int) ([]T, error) {
	raw := make([]S, n)
	if n > 0 {
		if err := ds.Read(&raw); err != nil {
			return nil, err
		}
	}
	out := make([]T, n)
	for i, v := range raw {
		out[i] = T(v)
	}
	return out, nil
}

func dimensions(ds *hdf5.Dataset) ([]uint, error) {
	space := ds.Space()
	defer space.Close()

	dims, _, err := space.SimpleExtentDims()
	if err != nil {
		return nil, err
	}
	if len(dims) == 0 {
		return nil, fmt.Errorf("scalar dataset")
	}
	return dims, nil
}
