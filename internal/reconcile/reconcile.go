// Package reconcile joins folded plan and dynamic states into per-flight
// comparison records.
package reconcile

import (
	"fmt"
	"sort"
	"strings"

	"github.com/couchcryptid/flight-recon/internal/domain"
)

// Comparator extracts and compares one field of a FlightState.
type Comparator struct {
	Name string
	// Get returns the comparable rendering of the field and whether it is present.
	Get func(domain.FlightState) (string, bool)
	// Eq overrides exact string equality.
	Eq func(plan, dyn string) bool
}

func stringField(get func(domain.FlightState) string) func(domain.FlightState) (string, bool) {
	return func(s domain.FlightState) (string, bool) {
		v := strings.TrimSpace(get(s))
		return v, v != ""
	}
}

func timeField(get func(domain.FlightState) string) func(domain.FlightState) (string, bool) {
	return func(s domain.FlightState) (string, bool) {
		v := get(s)
		return v, v != ""
	}
}

// Builtin comparators by field name. Times compare to the minute.
var Builtin = map[string]Comparator{
	"reg_no":             {Name: "reg_no", Get: stringField(func(s domain.FlightState) string { return s.RegNo })},
	"craft_type":         {Name: "craft_type", Get: stringField(func(s domain.FlightState) string { return s.CraftType })},
	"flight_no":          {Name: "flight_no", Get: stringField(func(s domain.FlightState) string { return s.FlightNo })},
	"actual_arr_airport": {Name: "actual_arr_airport", Get: stringField(func(s domain.FlightState) string { return s.ActualArrAirport })},
	"schedule_status":    {Name: "schedule_status", Get: stringField(func(s domain.FlightState) string { return s.ScheduleStatus })},
	"sobt":               {Name: "sobt", Get: timeField(func(s domain.FlightState) string { return domain.FormatMinute(s.SOBT) })},
	"sibt":               {Name: "sibt", Get: timeField(func(s domain.FlightState) string { return domain.FormatMinute(s.SIBT) })},
	"atot":               {Name: "atot", Get: timeField(func(s domain.FlightState) string { return domain.FormatMinute(s.ATOT) })},
	"aldt":               {Name: "aldt", Get: timeField(func(s domain.FlightState) string { return domain.FormatMinute(s.ALDT) })},
}

// DefaultFields is the compared field set used when none is configured.
var DefaultFields = []string{"reg_no", "craft_type", "sobt", "sibt"}

// Comparators resolves field names to builtin comparators.
func Comparators(fields []string) ([]Comparator, error) {
	if len(fields) == 0 {
		fields = DefaultFields
	}
	out := make([]Comparator, 0, len(fields))
	for _, f := range fields {
		c, ok := Builtin[f]
		if !ok {
			return nil, fmt.Errorf("no comparator for field %q", f)
		}
		out = append(out, c)
	}
	return out, nil
}

// Verdict applies the per-field verdict table.
func (c Comparator) Verdict(plan, dyn *domain.FlightState) domain.FieldVerdict {
	fv := domain.FieldVerdict{Field: c.Name}
	var pok, dok bool
	if plan != nil {
		fv.PlanValue, pok = c.Get(*plan)
	}
	if dyn != nil {
		fv.DynValue, dok = c.Get(*dyn)
	}
	switch {
	case pok && dok:
		eq := c.Eq
		if eq == nil {
			eq = func(p, d string) bool { return p == d }
		}
		if eq(fv.PlanValue, fv.DynValue) {
			fv.Verdict = domain.VerdictMatched
		} else {
			fv.Verdict = domain.VerdictMismatched
		}
	case pok:
		fv.Verdict = domain.VerdictDynMissing
	case dok:
		fv.Verdict = domain.VerdictPlanMissing
	default:
		fv.Verdict = domain.VerdictBothMissing
	}
	return fv
}

// Reconcile full-outer-joins the two sides on FlightKey. The result holds
// one Comparison per key in plan ∪ dyn, ordered by serialized key.
//
// PlanLeadSeconds is plan.LatestArrivalTS - dyn.LatestArrivalTS: negative
// when the plan became known before the dynamic record.
func Reconcile(plan, dyn map[domain.FlightKey]domain.FlightState, fields []Comparator) []domain.Comparison {
	keys := make([]domain.FlightKey, 0, len(plan)+len(dyn))
	for k := range plan {
		keys = append(keys, k)
	}
	for k := range dyn {
		if _, ok := plan[k]; !ok {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })

	out := make([]domain.Comparison, 0, len(keys))
	for _, k := range keys {
		out = append(out, compare(k, plan, dyn, fields))
	}
	return out
}

func compare(k domain.FlightKey, plan, dyn map[domain.FlightKey]domain.FlightState, fields []Comparator) domain.Comparison {
	c := domain.Comparison{Key: k}
	if p, ok := plan[k]; ok {
		c.Plan = &p
	}
	if d, ok := dyn[k]; ok {
		c.Dyn = &d
	}

	switch {
	case c.Plan != nil && c.Dyn != nil:
		c.Overall = domain.OverallMatched
		lead := int64(c.Plan.LatestArrivalTS.Sub(c.Dyn.LatestArrivalTS).Seconds())
		c.PlanLeadSeconds = &lead
	case c.Plan != nil:
		c.Overall = domain.OverallPlanOnly
	default:
		c.Overall = domain.OverallDynOnly
	}

	if c.Plan != nil {
		c.Cancelled = c.Plan.Cancelled
	} else {
		c.Cancelled = c.Dyn.Cancelled
	}

	c.Fields = make([]domain.FieldVerdict, 0, len(fields))
	for _, f := range fields {
		c.Fields = append(c.Fields, f.Verdict(c.Plan, c.Dyn))
	}
	return c
}
