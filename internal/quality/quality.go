// Package quality computes per-field coverage and validation rates for a
// target airport, daily and over a month.
package quality

import (
	"fmt"
	"strings"

	"github.com/couchcryptid/flight-recon/internal/domain"
	"github.com/couchcryptid/flight-recon/internal/reconcile"
)

// Field is one entry of the required-field table. Label is the name the
// upstream validation columns use for the field.
type Field struct {
	Name     string
	Label    string
	Required bool
}

// Counts are the additive figures for one field.
type Counts struct {
	Total         int
	Covered       int
	FormatCorrect int
	LogicCorrect  int
	Timely        int
}

// Add returns the element-wise sum.
func (c Counts) Add(o Counts) Counts {
	return Counts{
		Total:         c.Total + o.Total,
		Covered:       c.Covered + o.Covered,
		FormatCorrect: c.FormatCorrect + o.FormatCorrect,
		LogicCorrect:  c.LogicCorrect + o.LogicCorrect,
		Timely:        c.Timely + o.Timely,
	}
}

// Ratio keeps numerator and denominator so sums can be re-rated.
type Ratio struct {
	Num int
	Den int
}

// Defined reports whether the ratio has a denominator.
func (r Ratio) Defined() bool { return r.Den > 0 }

// Value returns the ratio, or 0 when undefined.
func (r Ratio) Value() float64 {
	if r.Den == 0 {
		return 0
	}
	return float64(r.Num) / float64(r.Den)
}

// String renders a percentage with two decimals, or N/A.
func (r Ratio) String() string {
	if !r.Defined() {
		return "N/A"
	}
	return fmt.Sprintf("%.2f%%", 100*r.Value())
}

// FieldReport is one row of a quality report.
type FieldReport struct {
	Field Field
	Counts
}

func (f FieldReport) Coverage() Ratio   { return Ratio{f.Covered, f.Total} }
func (f FieldReport) FormatRate() Ratio { return Ratio{f.FormatCorrect, f.Covered} }
func (f FieldReport) LogicRate() Ratio  { return Ratio{f.LogicCorrect, f.Covered} }
func (f FieldReport) Timeliness() Ratio { return Ratio{f.Timely, f.Covered} }

// Report is the quality report for one airport on one day.
type Report struct {
	Date      string
	Airport   string
	Departure bool
	Flights   int // flights in the audited set
	Cancelled int // flights excluded as cancelled
	Fields    []FieldReport
}

// Row is the audit view of one reconciled flight.
type Row struct {
	Key       domain.FlightKey
	Cancelled bool
	Values    map[string]string
	Format    string
	Logic     string
	Timely    string
}

// Auditor builds daily reports.
type Auditor struct {
	fields    []Field
	getters   map[string]func(domain.FlightState) (string, bool)
	suffixes  []string
	airport   string
	departure bool
}

// NewAuditor validates the field table against the known extractors.
func NewAuditor(fields []Field, airport string, departure bool, emptySuffixes []string) (*Auditor, error) {
	getters := make(map[string]func(domain.FlightState) (string, bool), len(fields))
	for _, f := range fields {
		c, ok := reconcile.Builtin[f.Name]
		if !ok {
			return nil, fmt.Errorf("audit field %q has no extractor", f.Name)
		}
		getters[f.Name] = c.Get
	}
	if emptySuffixes == nil {
		emptySuffixes = DefaultEmptySuffixes
	}
	return &Auditor{
		fields:    fields,
		getters:   getters,
		suffixes:  emptySuffixes,
		airport:   airport,
		departure: departure,
	}, nil
}

// Row derives the audit view of a comparison. Values prefer the dynamic side
// and fall back to the plan; validation text is taken from both sides.
func (a *Auditor) Row(c domain.Comparison) Row {
	r := Row{Key: c.Key, Cancelled: c.Cancelled, Values: make(map[string]string, len(a.fields))}
	for name, get := range a.getters {
		for _, st := range []*domain.FlightState{c.Dyn, c.Plan} {
			if st == nil {
				continue
			}
			if v, ok := get(*st); ok {
				r.Values[name] = v
				break
			}
		}
	}
	r.Format = joinChecks(c, func(s *domain.FlightState) string { return s.FormatCheck })
	r.Logic = joinChecks(c, func(s *domain.FlightState) string { return s.LogicCheck })
	r.Timely = joinChecks(c, func(s *domain.FlightState) string { return s.TimelinessCheck })
	return r
}

func joinChecks(c domain.Comparison, get func(*domain.FlightState) string) string {
	var parts []string
	for _, st := range []*domain.FlightState{c.Plan, c.Dyn} {
		if st == nil {
			continue
		}
		if v := strings.TrimSpace(get(st)); v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, "; ")
}

func (a *Auditor) inScope(k domain.FlightKey) bool {
	if a.departure {
		return k.DepAirport == a.airport
	}
	return k.ArrAirport == a.airport
}

// Daily audits the comparisons of one reporting day.
func (a *Auditor) Daily(date string, cmps []domain.Comparison) Report {
	rows := make([]Row, 0, len(cmps))
	for _, c := range cmps {
		if a.inScope(c.Key) {
			rows = append(rows, a.Row(c))
		}
	}
	return a.Audit(date, rows)
}

// Audit computes the report over in-scope rows. Cancelled rows are counted
// but excluded from every denominator.
func (a *Auditor) Audit(date string, rows []Row) Report {
	rep := Report{Date: date, Airport: a.airport, Departure: a.departure}
	var active []Row
	for _, r := range rows {
		if r.Cancelled {
			rep.Cancelled++
			continue
		}
		active = append(active, r)
	}
	rep.Flights = len(active)

	for _, f := range a.fields {
		fr := FieldReport{Field: f, Counts: Counts{Total: len(active)}}
		for _, r := range active {
			if r.Values[f.Name] == "" {
				continue
			}
			fr.Covered++
			if !Mentions(r.Format, f.Label, a.suffixes) {
				fr.FormatCorrect++
			}
			if !Mentions(r.Logic, f.Label, a.suffixes) {
				fr.LogicCorrect++
			}
			if !Mentions(r.Timely, f.Label, a.suffixes) {
				fr.Timely++
			}
		}
		rep.Fields = append(rep.Fields, fr)
	}
	return rep
}

// MonthlyField is a summed field row with its required-field flag.
type MonthlyField struct {
	FieldReport
	Flagged bool
}

// Monthly is the summation of daily reports.
type Monthly struct {
	Month     string
	Airport   string
	Threshold float64
	Days      []Report
	Flights   int
	Cancelled int
	Fields    []MonthlyField
}

// Summarize sums daily counts and re-derives every rate from the sums, never
// by averaging daily rates. A required field is flagged when its monthly
// coverage is below threshold or undefined.
func Summarize(month string, days []Report, threshold float64) Monthly {
	m := Monthly{Month: month, Threshold: threshold, Days: days}
	index := make(map[string]int)
	for _, d := range days {
		if m.Airport == "" {
			m.Airport = d.Airport
		}
		m.Flights += d.Flights
		m.Cancelled += d.Cancelled
		for _, f := range d.Fields {
			i, ok := index[f.Field.Name]
			if !ok {
				i = len(m.Fields)
				index[f.Field.Name] = i
				m.Fields = append(m.Fields, MonthlyField{FieldReport: FieldReport{Field: f.Field}})
			}
			m.Fields[i].Counts = m.Fields[i].Counts.Add(f.Counts)
		}
	}
	for i := range m.Fields {
		f := &m.Fields[i]
		cov := f.Coverage()
		f.Flagged = f.Field.Required && (!cov.Defined() || cov.Value() < threshold)
	}
	return m
}
