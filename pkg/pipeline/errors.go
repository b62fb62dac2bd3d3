package pipeline

import (
	"fmt"
	"time"

	gerrors "github.com/gedixr/gedixr/pkg/errors"
)

// ErrorRecord is one recoverable error counted during a run.
type ErrorRecord struct {
	// File is the source granule, Beam is set for beam-level failures.
	File string
	Beam string
	Code gerrors.Code
	// Count is usually 1; extraction reports several discarded beams at once.
	Count     int
	Message   string
	Timestamp time.Time
}

// ErrorTally counts recoverable errors. It is owned by the goroutine that
// reduces file outcomes and is threaded through the run by value of its
// owner, never shared between workers.
type ErrorTally struct {
	count     int
	records   []ErrorRecord
	maxStored int
}

// NewErrorTally creates a tally keeping at most maxStored records.
func NewErrorTally(maxStored int) *ErrorTally {
	if maxStored <= 0 {
		maxStored = 1000
	}
	return &ErrorTally{maxStored: maxStored}
}

// Add folds records into the tally.
func (t *ErrorTally) Add(recs ...ErrorRecord) {
	for _, r := range recs {
		if r.Count <= 0 {
			r.Count = 1
		}
		t.count += r.Count
		if len(t.records) < t.maxStored {
			t.records = append(t.records, r)
		}
	}
}

// Count returns the number of errors.
func (t *ErrorTally) Count() int {
	return t.count
}

// Records returns the stored records.
func (t *ErrorTally) Records() []ErrorRecord {
	return append([]ErrorRecord(nil), t.records...)
}

// Warning returns the summary warning, or "" when nothing failed.
func (t *ErrorTally) Warning(logPath string) string {
	if t.count == 0 {
		return ""
	}
	if logPath == "" {
		logPath = "the console output"
	}
	return fmt.Sprintf("%d errors occurred during the extraction process; see %s", t.count, logPath)
}

func fileError(file string, err error) ErrorRecord {
	return ErrorRecord{
		File:      file,
		Code:      gerrors.GetCode(err),
		Count:     1,
		Message:   err.Error(),
		Timestamp: time.Now(),
	}
}
