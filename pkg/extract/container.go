package extract

import (
	"fmt"
	"sort"
	"strings"
)

// ValueClass is the numeric class of a stored dataset.
type ValueClass uint8

const (
	ClassInteger ValueClass = iota
	ClassFloat
)

// Container is read access to one hierarchical granule. Paths are
// slash-separated and absolute from the file root, e.g.
// "BEAM0101/geolocation/lat_lowestmode".
type Container interface {
	// Exists reports whether a group or dataset exists at path.
	Exists(path string) bool
	// Class returns the numeric class of a dataset.
	Class(path string) (ValueClass, error)
	// Len returns the first dimension of a dataset.
	Len(path string) (int, error)
	ReadUint64(path string) ([]uint64, error)
	ReadInt64(path string) ([]int64, error)
	ReadFloat64(path string) ([]float64, error)
	// ReadMatrix reads a 2-D dataset row-major and returns its column count.
	ReadMatrix(path string) (values []float64, cols int, err error)
	Close() error
}

// Opener opens a granule by path.
type Opener func(path string) (Container, error)

// MemContainer is an in-memory Container. It backs tests and dry runs.
type MemContainer struct {
	Uints    map[string][]uint64
	Ints     map[string][]int64
	Floats   map[string][]float64
	Matrices map[string]Matrix
	closed   bool
}

// Matrix is a row-major 2-D dataset.
type Matrix struct {
	Values []float64
	Cols   int
}

// NewMemContainer returns an empty container.
func NewMemContainer() *MemContainer {
	return &MemContainer{
		Uints:    make(map[string][]uint64),
		Ints:     make(map[string][]int64),
		Floats:   make(map[string][]float64),
		Matrices: make(map[string]Matrix),
	}
}

func (m *MemContainer) paths() []string {
	var out []string
	for p := range m.Uints {
		out = append(out, p)
	}
	for p := range m.Ints {
		out = append(out, p)
	}
	for p := range m.Floats {
		out = append(out, p)
	}
	for p := range m.Matrices {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

func (m *MemContainer) Exists(path string) bool {
	path = strings.Trim(path, "/")
	for _, p := range m.paths() {
		if p == path || strings.HasPrefix(p, path+"/") {
			return true
		}
	}
	return false
}

func (m *MemContainer) Class(path string) (ValueClass, error) {
	if _, ok := m.Floats[path]; ok {
		return ClassFloat, nil
	}
	if _, ok := m.Matrices[path]; ok {
		return ClassFloat, nil
	}
	if _, ok := m.Ints[path]; ok {
		return ClassInteger, nil
	}
	if _, ok := m.Uints[path]; ok {
		return ClassInteger, nil
	}
	return 0, fmt.Errorf("dataset %s not found", path)
}

func (m *MemContainer) Len(path string) (int, error) {
	if v, ok := m.Uints[path]; ok {
		return len(v), nil
	}
	if v, ok := m.Ints[path]; ok {
		return len(v), nil
	}
	if v, ok := m.Floats[path]; ok {
		return len(v), nil
	}
	if v, ok := m.Matrices[path]; ok && v.Cols > 0 {
		return len(v.Values) / v.Cols, nil
	}
	return 0, fmt.Errorf("dataset %s not found", path)
}

func (m *MemContainer) ReadUint64(path string) ([]uint64, error) {
	if v, ok := m.Uints[path]; ok {
		return append([]uint64(nil), v...), nil
	}
	if v, ok := m.Ints[path]; ok {
		out := make([]uint64, len(v))
		for i, x := range v {
			out[i] = uint64(x)
		}
		return out, nil
	}
	return nil, fmt.Errorf("integer dataset %s not found", path)
}

func (m *MemContainer) ReadInt64(path string) ([]int64, error) {
	if v, ok := m.Ints[path]; ok {
		return append([]int64(nil), v...), nil
	}
	if v, ok := m.Uints[path]; ok {
		out := make([]int64, len(v))
		for i, x := range v {
			out[i] = int64(x)
		}
		return out, nil
	}
	return nil, fmt.Errorf("integer dataset %s not found", path)
}

func (m *MemContainer) ReadFloat64(path string) ([]float64, error) {
	if v, ok := m.Floats[path]; ok {
		return append([]float64(nil), v...), nil
	}
	return nil, fmt.Errorf("float dataset %s not found", path)
}

func (m *MemContainer) ReadMatrix(path string) ([]float64, int, error) {
	v, ok := m.Matrices[path]
	if !ok {
		return nil, 0, fmt.Errorf("matrix dataset %s not found", path)
	}
	return append([]float64(nil), v.Values...), v.Cols, nil
}

func (m *MemContainer) Close() error {
	m.closed = true
	return nil
}

// Closed reports whether Close was called.
func (m *MemContainer) Closed() bool { return m.closed }
