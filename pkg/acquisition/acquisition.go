// Package acquisition decodes granule acquisition times from file names and
// filters granules by month of year.
package acquisition

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	gerrors "github.com/gedixr/gedixr/pkg/errors"
)

var (
	// Product letter followed by YYYYDDDHHMMSS, e.g. "GEDI02_B_2019108002011_...".
	productToken = regexp.MustCompile(`[AB]_([0-9]{13})`)
	bareToken    = regexp.MustCompile(`[0-9]{13}`)
)

// FromFileName decodes the acquisition time embedded in a granule name.
// The result is in UTC.
func FromFileName(path string) (time.Time, error) {
	name := filepath.Base(path)

	token := ""
	if m := productToken.FindStringSubmatch(name); m != nil {
		token = m[1]
	} else if m := bareToken.FindString(name); m != "" {
		token = m
	}
	if token == "" {
		return time.Time{}, gerrors.New(gerrors.CodeInvalidAcquisition, "no acquisition token in file name").
			WithContext("file", name)
	}

	t, err := decode(token)
	if err != nil {
		return time.Time{}, gerrors.Wrap(err, gerrors.CodeInvalidAcquisition, "invalid acquisition token").
			WithContext("file", name).
			WithContext("token", token)
	}
	return t, nil
}

// decode parses YYYYDDDHHMMSS.
func decode(token string) (time.Time, error) {
	field := func(from, to int) int {
		v, _ := strconv.Atoi(token[from:to])
		return v
	}
	year := field(0, 4)
	doy := field(4, 7)
	hour, minute, sec := field(7, 9), field(9, 11), field(11, 13)

	daysInYear := 365
	if time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC).YearDay() == 366 {
		daysInYear = 366
	}
	if doy < 1 || doy > daysInYear {
		return time.Time{}, fmt.Errorf("day of year %d out of range", doy)
	}
	if hour > 23 || minute > 59 || sec > 59 {
		return time.Time{}, fmt.Errorf("time of day %02d:%02d:%02d out of range", hour, minute, sec)
	}

	return time.Date(year, time.January, 1, hour, minute, sec, 0, time.UTC).AddDate(0, 0, doy-1), nil
}

// MonthRange is an inclusive month-of-year window. It is a plain range, not a
// seasonal wrap-around: NewMonthRange swaps the bounds if min > max.
type MonthRange struct {
	Min time.Month
	Max time.Month
}

// AllYear keeps every month.
var AllYear = MonthRange{Min: time.January, Max: time.December}

// NewMonthRange validates and orders the bounds.
func NewMonthRange(min, max int) (MonthRange, error) {
	if min < 1 || min > 12 || max < 1 || max > 12 {
		return MonthRange{}, fmt.Errorf("month range [%d, %d] outside 1..12", min, max)
	}
	if min > max {
		min, max = max, min
	}
	return MonthRange{Min: time.Month(min), Max: time.Month(max)}, nil
}

// Contains reports whether t's month lies inside the range.
func (r MonthRange) Contains(t time.Time) bool {
	lo, hi := r.Min, r.Max
	if lo > hi {
		lo, hi = hi, lo
	}
	m := t.Month()
	return m >= lo && m <= hi
}

func (r MonthRange) String() string {
	return fmt.Sprintf("month_min=%d, month_max=%d", r.Min, r.Max)
}
