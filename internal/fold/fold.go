// Package fold reduces the records of one flight on one side to a single
// FlightState.
package fold

import (
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/couchcryptid/flight-recon/internal/domain"
	"golang.org/x/sync/errgroup"
)

// snapshot is the forward-filled identity after one record. Everything else
// is read from rec, the latest message.
type snapshot struct {
	rec domain.NormalizedRecord

	flightNo         string
	depAirport       string
	arrAirport       string
	actualArrAirport string
	regNo            string
	craftType        string
}

func fill(prev, next string) string {
	if next != "" {
		return next
	}
	return prev
}

func forwardFill(recs []domain.NormalizedRecord) []snapshot {
	out := make([]snapshot, len(recs))
	var cur snapshot
	for i, r := range recs {
		cur = snapshot{
			rec:              r,
			flightNo:         fill(cur.flightNo, r.FlightNumber),
			depAirport:       fill(cur.depAirport, r.DepAirport),
			arrAirport:       fill(cur.arrAirport, r.ArrAirport),
			actualArrAirport: fill(cur.actualArrAirport, r.ActualArrAirport),
			regNo:            fill(cur.regNo, r.RegNo),
			craftType:        fill(cur.craftType, r.CraftType),
		}
		out[i] = cur
	}
	return out
}

// departs reports whether a dynamic record carries departure-side facts.
// OBS rows count when they hold an actual takeoff time.
func departs(r domain.NormalizedRecord) bool {
	return r.Stream == domain.StreamDynDep || r.MessageKind == "DEP" ||
		(r.Stream == domain.StreamObs && r.ATOT != nil)
}

// arrives reports whether a dynamic record carries arrival-side facts.
func arrives(r domain.NormalizedRecord) bool {
	return r.Stream == domain.StreamDynArr || r.MessageKind == "ARR" ||
		(r.Stream == domain.StreamObs && r.ALDT != nil)
}

// Fold reduces one partition. Records are ordered by arrival time, then
// source order; the input slice is not modified. recs must be non-empty.
func Fold(side domain.Side, key domain.FlightKey, recs []domain.NormalizedRecord) domain.FlightState {
	sorted := slices.Clone(recs)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })
	snaps := forwardFill(sorted)
	last := snaps[len(snaps)-1]

	st := fromSnapshot(side, key, last)

	if side == domain.SideDyn {
		dep, arr := -1, -1
		for i, s := range snaps {
			if departs(s.rec) {
				dep = i
			}
			if arrives(s.rec) {
				arr = i
			}
		}
		if dep >= 0 && arr >= 0 {
			mergeLegs(&st, snaps[dep], snaps[arr])
		}
	}

	if st.ATOT != nil && st.ALDT != nil && st.ATOT.After(*st.ALDT) {
		st.ALDT = nil
		st.Tags = append(st.Tags, domain.ReasonInvariantViolation)
	}

	st.EarliestArrivalTS = sorted[0].ArrivalTS
	st.LatestArrivalTS = last.rec.ArrivalTS
	kinds := make(map[string]bool)
	tags := make(map[domain.Reason]bool)
	for _, t := range st.Tags {
		tags[t] = true
	}
	for _, r := range sorted {
		if r.MessageKind != "" {
			kinds[r.MessageKind] = true
		}
		for _, t := range r.Tags {
			tags[t] = true
		}
	}
	st.Kinds = sortedKeys(kinds)
	st.Tags = sortedKeys(tags)
	st.Cancelled = side == domain.SidePlan && st.ScheduleStatus == "CNL"
	return st
}

func fromSnapshot(side domain.Side, key domain.FlightKey, s snapshot) domain.FlightState {
	return domain.FlightState{
		Key:              key,
		Side:             side,
		FlightNo:         s.flightNo,
		DepAirport:       s.depAirport,
		ArrAirport:       s.arrAirport,
		ActualArrAirport: s.actualArrAirport,
		RegNo:            s.regNo,
		CraftType:        s.craftType,
		ScheduleStatus:   s.rec.ScheduleStatus,
		SOBT:             s.rec.SOBT,
		SIBT:             s.rec.SIBT,
		ATOT:             s.rec.ATOT,
		ALDT:             s.rec.ALDT,
		FormatCheck:      s.rec.FormatCheck,
		LogicCheck:       s.rec.LogicCheck,
		TimelinessCheck:  s.rec.TimelinessCheck,
	}
}

// mergeLegs synthesizes one dynamic state from the latest departure and
// latest arrival records. Arrival-side values win for aircraft identity.
func mergeLegs(st *domain.FlightState, dep, arr snapshot) {
	st.ATOT = dep.rec.ATOT
	st.SOBT = firstTime(dep.rec.SOBT, arr.rec.SOBT)
	st.DepAirport = fill(arr.depAirport, dep.depAirport)

	st.ALDT = arr.rec.ALDT
	st.SIBT = firstTime(arr.rec.SIBT, dep.rec.SIBT)
	st.ArrAirport = fill(dep.arrAirport, arr.arrAirport)
	st.ActualArrAirport = fill(dep.actualArrAirport, arr.actualArrAirport)
	st.RegNo = fill(dep.regNo, arr.regNo)
	st.CraftType = fill(dep.craftType, arr.craftType)

	st.FormatCheck = joinChecks(dep.rec.FormatCheck, arr.rec.FormatCheck)
	st.LogicCheck = joinChecks(dep.rec.LogicCheck, arr.rec.LogicCheck)
	st.TimelinessCheck = joinChecks(dep.rec.TimelinessCheck, arr.rec.TimelinessCheck)
}

// joinChecks combines the validation text of both legs.
func joinChecks(dep, arr string) string {
	dep, arr = strings.TrimSpace(dep), strings.TrimSpace(arr)
	switch {
	case dep == "" || dep == arr:
		return arr
	case arr == "":
		return dep
	default:
		return dep + "; " + arr
	}
}

func firstTime(ts ...*time.Time) *time.Time {
	for _, t := range ts {
		if t != nil {
			return t
		}
	}
	return nil
}

func sortedKeys[K ~string](m map[K]bool) []K {
	if len(m) == 0 {
		return nil
	}
	out := make([]K, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

type partition struct {
	side domain.Side
	key  domain.FlightKey
}

// Folder collects normalized records and folds them per (side, key).
// A Folder is not safe for concurrent Add.
type Folder struct {
	parts map[partition][]domain.NormalizedRecord
}

// New returns an empty Folder.
func New() *Folder {
	return &Folder{parts: make(map[partition][]domain.NormalizedRecord)}
}

// Add files a keyed record under its stream's side.
func (f *Folder) Add(n domain.NormalizedRecord) {
	p := partition{side: n.Stream.Side(), key: n.Key}
	f.parts[p] = append(f.parts[p], n)
}

// Len returns the number of partitions.
func (f *Folder) Len() int { return len(f.parts) }

// States folds both sides concurrently.
func (f *Folder) States() (plan, dyn map[domain.FlightKey]domain.FlightState) {
	var g errgroup.Group
	g.Go(func() error {
		plan = f.side(domain.SidePlan)
		return nil
	})
	g.Go(func() error {
		dyn = f.side(domain.SideDyn)
		return nil
	})
	_ = g.Wait()
	return plan, dyn
}

func (f *Folder) side(side domain.Side) map[domain.FlightKey]domain.FlightState {
	out := make(map[domain.FlightKey]domain.FlightState)
	for p, recs := range f.parts {
		if p.side == side {
			out[p.key] = Fold(side, p.key, recs)
		}
	}
	return out
}
