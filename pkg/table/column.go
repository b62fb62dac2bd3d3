// Package table provides the typed columnar shot tables that flow between
// the extraction, filter, geometry and output stages.
//
// Tables are immutable once built: every operation returns a new table and
// may share column storage with its input.
package table

import (
	"fmt"
	"math"
	"time"

	"github.com/paulmach/orb"
)

// Kind is the physical type of a column.
type Kind uint8

const (
	KindFloat64 Kind = iota
	KindInt64
	KindString
	KindTime
	KindPoint
)

func (k Kind) String() string {
	switch k {
	case KindFloat64:
		return "float64"
	case KindInt64:
		return "int64"
	case KindString:
		return "string"
	case KindTime:
		return "timestamp"
	case KindPoint:
		return "point"
	default:
		return "unknown"
	}
}

// Column is a named, typed value array. Only the slice matching Kind is used.
type Column struct {
	Name string
	Kind Kind

	Floats  []float64
	Ints    []int64
	Strings []string
	Times   []time.Time
	Points  []orb.Point
}

// Float64Column creates a float column.
func Float64Column(name string, values []float64) *Column {
	return &Column{Name: name, Kind: KindFloat64, Floats: values}
}

// Int64Column creates an integer column.
func Int64Column(name string, values []int64) *Column {
	return &Column{Name: name, Kind: KindInt64, Ints: values}
}

// StringColumn creates a string column.
func StringColumn(name string, values []string) *Column {
	return &Column{Name: name, Kind: KindString, Strings: values}
}

// TimeColumn creates a timestamp column.
func TimeColumn(name string, values []time.Time) *Column {
	return &Column{Name: name, Kind: KindTime, Times: values}
}

// PointColumn creates a point geometry column.
func PointColumn(name string, values []orb.Point) *Column {
	return &Column{Name: name, Kind: KindPoint, Points: values}
}

// Len returns the number of values.
func (c *Column) Len() int {
	switch c.Kind {
	case KindFloat64:
		return len(c.Floats)
	case KindInt64:
		return len(c.Ints)
	case KindString:
		return len(c.Strings)
	case KindTime:
		return len(c.Times)
	case KindPoint:
		return len(c.Points)
	default:
		return 0
	}
}

// Numeric reports whether the column can be read with Float.
func (c *Column) Numeric() bool {
	return c.Kind == KindFloat64 || c.Kind == KindInt64
}

// Float returns row i as float64 for numeric columns and NaN otherwise.
func (c *Column) Float(i int) float64 {
	switch c.Kind {
	case KindFloat64:
		return c.Floats[i]
	case KindInt64:
		return float64(c.Ints[i])
	default:
		return math.NaN()
	}
}

// Take returns a new column holding the given rows in order.
func (c *Column) Take(rows []uint32) *Column {
	out := &Column{Name: c.Name, Kind: c.Kind}
	switch c.Kind {
	case KindFloat64:
		out.Floats = make([]float64, len(rows))
		for i, r := range rows {
			out.Floats[i] = c.Floats[r]
		}
	case KindInt64:
		out.Ints = make([]int64, len(rows))
		for i, r := range rows {
			out.Ints[i] = c.Ints[r]
		}
	case KindString:
		out.Strings = make([]string, len(rows))
		for i, r := range rows {
			out.Strings[i] = c.Strings[r]
		}
	case KindTime:
		out.Times = make([]time.Time, len(rows))
		for i, r := range rows {
			out.Times[i] = c.Times[r]
		}
	case KindPoint:
		out.Points = make([]orb.Point, len(rows))
		for i, r := range rows {
			out.Points[i] = c.Points[r]
		}
	}
	return out
}

// concatColumns joins same-named, same-kind columns into one freshly
// allocated column.
func concatColumns(parts []*Column) (*Column, error) {
	first := parts[0]
	total := 0
	for _, p := range parts {
		if p.Kind != first.Kind {
			return nil, fmt.Errorf("column %q: kind %s does not match %s", p.Name, p.Kind, first.Kind)
		}
		total += p.Len()
	}

	out := &Column{Name: first.Name, Kind: first.Kind}
	switch first.Kind {
	case KindFloat64:
		out.Floats = make([]float64, 0, total)
		for _, p := range parts {
			out.Floats = append(out.Floats, p.Floats...)
		}
	case KindInt64:
		out.Ints = make([]int64, 0, total)
		for _, p := range parts {
			out.Ints = append(out.Ints, p.Ints...)
		}
	case KindString:
		out.Strings = make([]string, 0, total)
		for _, p := range parts {
			out.Strings = append(out.Strings, p.Strings...)
		}
	case KindTime:
		out.Times = make([]time.Time, 0, total)
		for _, p := range parts {
			out.Times = append(out.Times, p.Times...)
		}
	case KindPoint:
		out.Points = make([]orb.Point, 0, total)
		for _, p := range parts {
			out.Points = append(out.Points, p.Points...)
		}
	}
	return out, nil
}
