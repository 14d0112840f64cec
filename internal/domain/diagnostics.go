package domain

import (
	"fmt"
	"sort"
)

// Reason classifies a recoverable or fatal condition.
type Reason string

const (
	ReasonInputUnreadable    Reason = "INPUT_UNREADABLE"
	ReasonParseError         Reason = "PARSE_ERROR"
	ReasonKeyUnresolved      Reason = "KEY_UNRESOLVED"
	ReasonTimeOutOfRange     Reason = "TIME_OUT_OF_RANGE"
	ReasonInvariantViolation Reason = "INVARIANT_VIOLATION"
	ReasonFiltered           Reason = "FILTERED"
)

// Rejection records one row-level problem.
type Rejection struct {
	Stream Stream
	Source string
	Line   int
	Reason Reason
	Detail string
}

// StreamCounts are the per-stream figures every report notes.
type StreamCounts struct {
	RowsIn         int
	RowsRejected   int
	KeysUnresolved int
	RowsFiltered   int
}

// Sink receives row-level diagnostics from the ingester and normalizer.
type Sink interface {
	Accept(stream Stream)
	Reject(r Rejection)
}

// Diagnostics accumulates rejections and per-stream counts for one run.
// A Diagnostics is owned by a single run and is not safe for concurrent use.
type Diagnostics struct {
	Rejections []Rejection
	counts     map[Stream]*StreamCounts
}

// NewDiagnostics returns an empty sink.
func NewDiagnostics() *Diagnostics {
	return &Diagnostics{counts: make(map[Stream]*StreamCounts)}
}

func (d *Diagnostics) stream(s Stream) *StreamCounts {
	c, ok := d.counts[s]
	if !ok {
		c = &StreamCounts{}
		d.counts[s] = c
	}
	return c
}

// Accept counts one decoded row.
func (d *Diagnostics) Accept(s Stream) {
	d.stream(s).RowsIn++
}

// Reject records a rejection. PARSE_ERROR rows were never accepted, so they
// count toward rows_in as well as rows_rejected.
func (d *Diagnostics) Reject(r Rejection) {
	c := d.stream(r.Stream)
	switch r.Reason {
	case ReasonParseError:
		c.RowsIn++
		c.RowsRejected++
	case ReasonKeyUnresolved:
		c.RowsRejected++
		c.KeysUnresolved++
	case ReasonFiltered:
		c.RowsFiltered++
	}
	d.Rejections = append(d.Rejections, r)
}

// Counts returns the figures for one stream.
func (d *Diagnostics) Counts(s Stream) StreamCounts {
	if c, ok := d.counts[s]; ok {
		return *c
	}
	return StreamCounts{}
}

// CountByReason tallies rejections per reason.
func (d *Diagnostics) CountByReason() map[Reason]int {
	out := make(map[Reason]int)
	for _, r := range d.Rejections {
		out[r.Reason]++
	}
	return out
}

// Merge folds another run's diagnostics into d.
func (d *Diagnostics) Merge(o *Diagnostics) {
	for s, c := range o.counts {
		dst := d.stream(s)
		dst.RowsIn += c.RowsIn
		dst.RowsRejected += c.RowsRejected
		dst.KeysUnresolved += c.KeysUnresolved
		dst.RowsFiltered += c.RowsFiltered
	}
	d.Rejections = append(d.Rejections, o.Rejections...)
}

// StreamsSeen returns the streams with any counts, in Streams order.
func (d *Diagnostics) StreamsSeen() []Stream {
	out := make([]Stream, 0, len(d.counts))
	for s := range d.counts {
		out = append(out, s)
	}
	rank := make(map[Stream]int, len(Streams))
	for i, s := range Streams {
		rank[s] = i
	}
	sort.Slice(out, func(i, j int) bool { return rank[out[i]] < rank[out[j]] })
	return out
}

// InputError is the fatal INPUT_UNREADABLE condition.
type InputError struct {
	Source string
	Err    error
}

func (e *InputError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ReasonInputUnreadable, e.Source, e.Err)
}

func (e *InputError) Unwrap() error { return e.Err }

// OutputError reports an output that could not be written.
type OutputError struct {
	Target string
	Err    error
}

func (e *OutputError) Error() string {
	return fmt.Sprintf("write %s: %v", e.Target, e.Err)
}

func (e *OutputError) Unwrap() error { return e.Err }
