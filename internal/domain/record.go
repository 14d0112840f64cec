package domain

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Stream tags the input stream a record came from.
type Stream string

const (
	StreamPlan   Stream = "PLAN"
	StreamDynDep Stream = "DYN_DEP"
	StreamDynArr Stream = "DYN_ARR"
	StreamObs    Stream = "OBS"
)

// Streams lists every stream tag in reporting order.
var Streams = []Stream{StreamPlan, StreamDynDep, StreamDynArr, StreamObs}

// Side is the reconciliation side a stream folds into.
type Side string

const (
	SidePlan Side = "plan"
	SideDyn  Side = "dyn"
)

// Side returns the fold side for the stream.
func (s Stream) Side() Side {
	if s == StreamPlan {
		return SidePlan
	}
	return SideDyn
}

// Valid reports whether s is a known stream tag.
func (s Stream) Valid() bool {
	switch s {
	case StreamPlan, StreamDynDep, StreamDynArr, StreamObs:
		return true
	default:
		return false
	}
}

// RawRecord is a single row from one input stream, after payload merging.
// It is immutable after ingestion.
type RawRecord struct {
	Stream    Stream
	Source    string // path the row was read from
	Line      int    // 1-based physical line or spreadsheet row
	Seq       int    // row order within the source, used to break arrival ties
	ArrivalTS time.Time
	Fields    map[string]string
}

// Get returns the trimmed value of a field, or "" when absent.
func (r RawRecord) Get(name string) string {
	return strings.TrimSpace(r.Fields[name])
}

var icaoAirportRe = regexp.MustCompile(`^[A-Z]{4}$`)

// FlightKey is the canonical identity of one flight leg on one civil day.
// ExecDate is formatted YYYY-MM-DD so the key is comparable and usable as a map key.
type FlightKey struct {
	ExecDate   string
	Callsign   string
	DepAirport string
	ArrAirport string
}

// String renders the key as YYYY-MM-DD_<callsign>_<dep>_<arr>.
func (k FlightKey) String() string {
	return fmt.Sprintf("%s_%s_%s_%s", k.ExecDate, k.Callsign, k.DepAirport, k.ArrAirport)
}

// Complete reports whether all four parts are present and well formed.
func (k FlightKey) Complete() bool {
	if _, err := time.ParseInLocation(DateLayout, k.ExecDate, Beijing); err != nil {
		return false
	}
	return k.Callsign != "" && IsAirportICAO(k.DepAirport) && IsAirportICAO(k.ArrAirport)
}

// Date returns the execution date as midnight UTC+8. It returns the zero time
// for an incomplete key.
func (k FlightKey) Date() time.Time {
	d, err := time.ParseInLocation(DateLayout, k.ExecDate, Beijing)
	if err != nil {
		return time.Time{}
	}
	return d
}

// ParseFlightKey is the inverse of FlightKey.String.
func ParseFlightKey(s string) (FlightKey, error) {
	parts := strings.Split(s, "_")
	if len(parts) != 4 {
		return FlightKey{}, fmt.Errorf("parse flight key %q: want 4 parts, got %d", s, len(parts))
	}
	k := FlightKey{ExecDate: parts[0], Callsign: parts[1], DepAirport: parts[2], ArrAirport: parts[3]}
	if !k.Complete() {
		return FlightKey{}, fmt.Errorf("parse flight key %q: incomplete", s)
	}
	return k, nil
}

// IsAirportICAO reports whether code is a four-letter uppercase ICAO location indicator.
func IsAirportICAO(code string) bool {
	return icaoAirportRe.MatchString(code)
}

// NormalizedRecord is a RawRecord lifted to the canonical schema.
type NormalizedRecord struct {
	Key         FlightKey
	KeyResolved bool
	Stream      Stream
	MessageKind string
	ArrivalTS   time.Time
	Seq         int

	AirlineICAO      string
	FlightNumber     string // numeric part with optional suffix letter
	DepAirport       string
	ArrAirport       string
	ActualArrAirport string
	RegNo            string
	CraftType        string
	ScheduleStatus   string

	SOBT *time.Time
	SIBT *time.Time
	ETOT *time.Time
	ATOT *time.Time
	ALDT *time.Time

	// Validation columns produced upstream, consumed by the quality aggregator.
	FormatCheck     string
	LogicCheck      string
	TimelinessCheck string

	RawMessage string
	Raw        RawRecord
	Tags       []Reason
}

// HasTag reports whether the record carries the given reason tag.
func (n NormalizedRecord) HasTag(r Reason) bool {
	for _, t := range n.Tags {
		if t == r {
			return true
		}
	}
	return false
}

// Before orders records by arrival time, then by source row order.
func (n NormalizedRecord) Before(o NormalizedRecord) bool {
	if !n.ArrivalTS.Equal(o.ArrivalTS) {
		return n.ArrivalTS.Before(o.ArrivalTS)
	}
	return n.Seq < o.Seq
}
