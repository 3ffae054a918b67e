package batch

import (
	"fmt"
	"sort"
	"time"
)

// FailureKind classifies why a row produced no output.
type FailureKind int

const (
	// RowSkipped: the row had no usable name.
	RowSkipped FailureKind = iota
	// RenderFailure: measuring, rasterizing or encoding failed.
	RenderFailure
	// WriteFailure: the output file could not be written.
	WriteFailure
	// Cancelled: the batch was stopped before the row was dispatched.
	Cancelled
)

func (k FailureKind) String() string {
	switch k {
	case RowSkipped:
		return "row_skipped"
	case RenderFailure:
		return "render_failure"
	case WriteFailure:
		return "write_failure"
	case Cancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("FailureKind(%d)", int(k))
	}
}

// Success is a row that was rendered and written.
type Success struct {
	Row  int
	Name string
	Path string
}

// Failure is a row that produced no output file.
type Failure struct {
	Row    int
	Name   string
	Kind   FailureKind
	Reason string
}

func (f Failure) Error() string {
	return fmt.Sprintf("row %d: %s: %s", f.Row, f.Kind, f.Reason)
}

// Report is the outcome of every input row, each list ordered by Row.
// len(Successes)+len(Failures) always equals Total.
type Report struct {
	Successes   []Success
	Failures    []Failure
	Total       int
	Interrupted bool
	Elapsed     time.Duration
}

// OK reports whether every row succeeded.
func (r *Report) OK() bool { return len(r.Failures) == 0 && !r.Interrupted }

// Count returns the number of failures of kind k.
func (r *Report) Count(k FailureKind) int {
	n := 0
	for _, f := range r.Failures {
		if f.Kind == k {
			n++
		}
	}
	return n
}

func (r *Report) sort() {
	sort.Slice(r.Successes, func(i, j int) bool { return r.Successes[i].Row < r.Successes[j].Row })
	sort.Slice(r.Failures, func(i, j int) bool { return r.Failures[i].Row < r.Failures[j].Row })
}

// SetupError aborts a batch before any row is dispatched. Resource names
// what could not be prepared: "font", "template", "output_dir" or "config".
type SetupError struct {
	Resource string
	Err      error
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("setup %s: %v", e.Resource, e.Err)
}

func (e *SetupError) Unwrap() error { return e.Err }
