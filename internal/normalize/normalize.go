// Package normalize lifts raw records to the canonical schema and builds
// their FlightKey.
package normalize

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/couchcryptid/flight-recon/internal/domain"
)

// Options carries run-level settings that affect normalization.
type Options struct {
	// ForeignAirline excludes rows whose airline designator matches.
	ForeignAirline *regexp.Regexp
}

// telegramKindRe reads the message kind from an ATS telegram body such as
// "(DEP-CES202-ZSSS0841-ZGGG-DOF/250923)".
var telegramKindRe = regexp.MustCompile(`^\(?\s*([A-Z]{3})-`)

// Normalize is a pure function of the raw record and its stream's mapping.
func Normalize(raw domain.RawRecord, m Mapping, opts Options) domain.NormalizedRecord {
	get := func(field string) string { return m.Lookup(raw, field) }

	n := domain.NormalizedRecord{
		Stream:           raw.Stream,
		ArrivalTS:        raw.ArrivalTS,
		Seq:              raw.Seq,
		DepAirport:       domain.NormalizeCode(get(FieldDepAirport)),
		ArrAirport:       domain.NormalizeCode(get(FieldArrAirport)),
		ActualArrAirport: domain.NormalizeCode(get(FieldActualArrAirport)),
		RegNo:            get(FieldRegNo),
		CraftType:        get(FieldCraftType),
		ScheduleStatus:   domain.NormalizeCode(get(FieldScheduleStatus)),
		FormatCheck:      get(FieldFormatCheck),
		LogicCheck:       get(FieldLogicCheck),
		TimelinessCheck:  get(FieldTimelinessCheck),
		RawMessage:       get(FieldRawMessage),
		Raw:              raw,
	}
	n.MessageKind = messageKind(raw.Stream, get(FieldMessageKind), n.RawMessage)
	if n.MessageKind == "CNL" && n.ScheduleStatus == "" {
		n.ScheduleStatus = "CNL"
	}

	callsign, airline, number := identity(raw.Stream, get(FieldCallsign), get(FieldAirlineICAO), get(FieldFlightNo))
	n.AirlineICAO = airline
	n.FlightNumber = number

	sobtRaw := get(FieldSOBT)
	n.SOBT = domain.ParseTimePtr(sobtRaw)
	n.SIBT = domain.ParseTimePtr(get(FieldSIBT))
	n.ETOT = domain.ParseTimePtr(get(FieldETOT))
	n.ATOT = domain.ParseTimePtr(get(FieldATOT))
	n.ALDT = domain.ParseTimePtr(get(FieldALDT))

	execDate := executionDate(n, sobtRaw)
	if execDate != "" {
		checkWindow(&n, execDate)
	}
	if n.ATOT != nil && n.ALDT != nil && n.ATOT.After(*n.ALDT) {
		n.ALDT = nil
		n.Tags = append(n.Tags, domain.ReasonInvariantViolation)
	}

	n.Key = domain.FlightKey{
		ExecDate:   execDate,
		Callsign:   callsign,
		DepAirport: n.DepAirport,
		ArrAirport: n.ArrAirport,
	}
	n.KeyResolved = n.Key.Complete()
	if !n.KeyResolved {
		n.Tags = append(n.Tags, domain.ReasonKeyUnresolved)
	}
	if opts.ForeignAirline != nil && airline != "" && opts.ForeignAirline.MatchString(airline) {
		n.Tags = append(n.Tags, domain.ReasonFiltered)
	}
	return n
}

func messageKind(stream domain.Stream, column, body string) string {
	if kind := domain.NormalizeCode(column); kind != "" {
		return kind
	}
	if m := telegramKindRe.FindStringSubmatch(strings.TrimSpace(body)); m != nil {
		return m[1]
	}
	switch stream {
	case domain.StreamDynDep:
		return "DEP"
	case domain.StreamDynArr:
		return "ARR"
	case domain.StreamObs:
		return "OBS"
	default:
		return ""
	}
}

// identity returns the full callsign, airline designator and numeric flight
// number. Plan rows may carry a ready-made callsign; dynamic rows always
// compose it.
func identity(stream domain.Stream, callsignCol, airlineCol, flightCol string) (callsign, airline, number string) {
	airline = domain.NormalizeCode(airlineCol)
	number, _ = domain.NumericFlightNumber(flightCol)

	if stream == domain.StreamPlan {
		callsign, _ = domain.PlanCallsign(callsignCol, airline, flightCol)
	} else {
		callsign, _ = domain.ComposeCallsign(airline, flightCol)
	}
	if callsign != "" && (airline == "" || number == "") {
		if a, num, ok := domain.SplitCallsign(callsign); ok {
			if airline == "" {
				airline = a
			}
			if number == "" {
				number = num
			}
		}
	}
	return callsign, airline, number
}

// executionDate applies the preference order DOF, ETOT/ATOT, SOBT (12+
// digits), ALDT. When a full SOBT fixes the day, an ETOT or ATOT outside that
// day's window cannot supply the date and the next candidate is tried.
func executionDate(n domain.NormalizedRecord, sobtRaw string) string {
	dof, hasDOF := domain.ExtractDOF(n.RawMessage)
	if hasDOF {
		return dof
	}
	validSOBT := n.SOBT != nil && domain.ValidSOBTSource(sobtRaw)

	var anchor *time.Time
	if validSOBT {
		d := civilMidnight(*n.SOBT)
		anchor = &d
	}
	plausible := func(t *time.Time) bool {
		return t != nil && (anchor == nil || domain.InWindow(*t, *anchor))
	}

	switch {
	case plausible(n.ETOT):
		return domain.CivilDate(*n.ETOT)
	case plausible(n.ATOT):
		return domain.CivilDate(*n.ATOT)
	case validSOBT:
		return domain.CivilDate(*n.SOBT)
	case n.ALDT != nil:
		return domain.CivilDate(*n.ALDT)
	}
	return ""
}

func civilMidnight(t time.Time) time.Time {
	y, m, d := t.In(domain.Beijing).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, domain.Beijing)
}

// checkWindow nulls every time outside [date-1d, date+2d] and tags the record.
func checkWindow(n *domain.NormalizedRecord, execDate string) {
	date, err := time.ParseInLocation(domain.DateLayout, execDate, domain.Beijing)
	if err != nil {
		return
	}
	for _, t := range []**time.Time{&n.SOBT, &n.SIBT, &n.ETOT, &n.ATOT, &n.ALDT} {
		if *t != nil && !domain.InWindow(**t, date) {
			*t = nil
			if !n.HasTag(domain.ReasonTimeOutOfRange) {
				n.Tags = append(n.Tags, domain.ReasonTimeOutOfRange)
			}
		}
	}
}

// Canonical renders a normalized record back to a raw record keyed by
// canonical field names.
func Canonical(n domain.NormalizedRecord) domain.RawRecord {
	callsign := n.Key.Callsign
	if callsign == "" && n.AirlineICAO != "" {
		callsign = n.AirlineICAO + n.FlightNumber
	}
	return domain.RawRecord{
		Stream:    n.Stream,
		Source:    n.Raw.Source,
		Line:      n.Raw.Line,
		Seq:       n.Seq,
		ArrivalTS: n.ArrivalTS,
		Fields: map[string]string{
			FieldCallsign:         callsign,
			FieldAirlineICAO:      n.AirlineICAO,
			FieldFlightNo:         n.FlightNumber,
			FieldDepAirport:       n.DepAirport,
			FieldArrAirport:       n.ArrAirport,
			FieldActualArrAirport: n.ActualArrAirport,
			FieldRegNo:            n.RegNo,
			FieldCraftType:        n.CraftType,
			FieldSOBT:             domain.FormatTime(n.SOBT),
			FieldSIBT:             domain.FormatTime(n.SIBT),
			FieldETOT:             domain.FormatTime(n.ETOT),
			FieldATOT:             domain.FormatTime(n.ATOT),
			FieldALDT:             domain.FormatTime(n.ALDT),
			FieldScheduleStatus:   n.ScheduleStatus,
			FieldMessageKind:      n.MessageKind,
			FieldRawMessage:       n.RawMessage,
			FieldFormatCheck:      n.FormatCheck,
			FieldLogicCheck:       n.LogicCheck,
			FieldTimelinessCheck:  n.TimelinessCheck,
		},
	}
}

// Normalizer applies the per-stream mappings and reports row-level
// conditions to a diagnostics sink.
type Normalizer struct {
	mappings map[domain.Stream]Mapping
	opts     Options
}

// New creates a Normalizer. Streams missing from mappings use the defaults.
func New(mappings map[domain.Stream]Mapping, opts Options) *Normalizer {
	all := DefaultMappings()
	for s, m := range mappings {
		all[s] = m
	}
	return &Normalizer{mappings: all, opts: opts}
}

// Apply normalizes raw and records its tags in sink. It reports whether the
// record may enter the fold: the key is resolved and the row is not filtered.
func (z *Normalizer) Apply(raw domain.RawRecord, sink domain.Sink) (domain.NormalizedRecord, bool) {
	n := Normalize(raw, z.mappings[raw.Stream], z.opts)
	for _, tag := range n.Tags {
		sink.Reject(domain.Rejection{
			Stream: raw.Stream,
			Source: raw.Source,
			Line:   raw.Line,
			Reason: tag,
			Detail: detail(n, tag),
		})
	}
	return n, n.KeyResolved && !n.HasTag(domain.ReasonFiltered)
}

func detail(n domain.NormalizedRecord, tag domain.Reason) string {
	switch tag {
	case domain.ReasonKeyUnresolved:
		return fmt.Sprintf("incomplete key %s", n.Key)
	case domain.ReasonTimeOutOfRange:
		return fmt.Sprintf("time outside window of %s", n.Key.ExecDate)
	case domain.ReasonInvariantViolation:
		return "atot after aldt; aldt dropped"
	case domain.ReasonFiltered:
		return fmt.Sprintf("airline %s excluded", n.AirlineICAO)
	default:
		return ""
	}
}
