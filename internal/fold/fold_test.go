package fold

import (
	"testing"
	"time"

	"github.com/couchcryptid/flight-recon/internal/domain"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	day     = time.Date(2025, 9, 23, 0, 0, 0, 0, domain.Beijing)
	csn303  = domain.FlightKey{ExecDate: "2025-09-23", Callsign: "CSN303", DepAirport: "ZGGG", ArrAirport: "ZUUU"}
	ces202  = domain.FlightKey{ExecDate: "2025-09-23", Callsign: "CES202", DepAirport: "ZSSS", ArrAirport: "ZGGG"}
	seqNext = 0
)

func at(h, m int) time.Time { return day.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute) }

func ptr(t time.Time) *time.Time { return &t }

func rec(stream domain.Stream, key domain.FlightKey, arrival time.Time, mod func(*domain.NormalizedRecord)) domain.NormalizedRecord {
	seqNext++
	n := domain.NormalizedRecord{
		Key:         key,
		KeyResolved: true,
		Stream:      stream,
		ArrivalTS:   arrival,
		Seq:         seqNext,
		DepAirport:  key.DepAirport,
		ArrAirport:  key.ArrAirport,
	}
	if mod != nil {
		mod(&n)
	}
	return n
}

func TestFold_ForwardFillReg(t *testing.T) {
	recs := []domain.NormalizedRecord{
		rec(domain.StreamPlan, csn303, at(1, 0), func(n *domain.NormalizedRecord) { n.MessageKind = "FPL" }),
		rec(domain.StreamPlan, csn303, at(2, 0), func(n *domain.NormalizedRecord) { n.MessageKind = "CHG"; n.RegNo = "B-5500" }),
	}
	st := Fold(domain.SidePlan, csn303, recs)
	assert.Equal(t, "B-5500", st.RegNo)

	recs = append(recs, rec(domain.StreamPlan, csn303, at(3, 0), func(n *domain.NormalizedRecord) { n.MessageKind = "DLA" }))
	st = Fold(domain.SidePlan, csn303, recs)
	assert.Equal(t, "B-5500", st.RegNo, "later message without reg keeps the filled value")
	assert.Equal(t, []string{"CHG", "DLA", "FPL"}, st.Kinds)
	assert.Equal(t, at(1, 0), st.EarliestArrivalTS)
	assert.Equal(t, at(3, 0), st.LatestArrivalTS)
}

func TestFold_OrdersByArrivalThenSeq(t *testing.T) {
	a := rec(domain.StreamPlan, csn303, at(2, 0), func(n *domain.NormalizedRecord) { n.CraftType = "A320" })
	b := rec(domain.StreamPlan, csn303, at(2, 0), func(n *domain.NormalizedRecord) { n.CraftType = "A321" })
	c := rec(domain.StreamPlan, csn303, at(1, 0), func(n *domain.NormalizedRecord) { n.CraftType = "B738" })

	st := Fold(domain.SidePlan, csn303, []domain.NormalizedRecord{b, c, a})
	assert.Equal(t, "A321", st.CraftType, "equal arrival resolved by row order")
}

func TestFold_PlanTakesLatestTimes(t *testing.T) {
	recs := []domain.NormalizedRecord{
		rec(domain.StreamPlan, csn303, at(1, 0), func(n *domain.NormalizedRecord) { n.SOBT = ptr(at(8, 0)) }),
		rec(domain.StreamPlan, csn303, at(2, 0), func(n *domain.NormalizedRecord) { n.SOBT = ptr(at(9, 30)); n.SIBT = ptr(at(11, 45)) }),
	}
	st := Fold(domain.SidePlan, csn303, recs)
	assert.Equal(t, at(9, 30), *st.SOBT)
	assert.Equal(t, at(11, 45), *st.SIBT)
}

func TestFold_MergesDepartureAndArrival(t *testing.T) {
	recs := []domain.NormalizedRecord{
		rec(domain.StreamDynDep, ces202, at(8, 42), func(n *domain.NormalizedRecord) {
			n.MessageKind = "DEP"
			n.ATOT = ptr(at(8, 41))
			n.SOBT = ptr(at(8, 30))
			n.RegNo = "B-1234"
			n.CraftType = "A320"
		}),
		rec(domain.StreamDynArr, ces202, at(10, 16), func(n *domain.NormalizedRecord) {
			n.MessageKind = "ARR"
			n.ALDT = ptr(at(10, 15))
			n.RegNo = "B-1299"
			n.ActualArrAirport = "ZGGG"
		}),
	}
	st := Fold(domain.SideDyn, ces202, recs)

	assert.Equal(t, at(8, 41), *st.ATOT)
	assert.Equal(t, at(10, 15), *st.ALDT)
	assert.Equal(t, at(8, 30), *st.SOBT)
	assert.Equal(t, "B-1299", st.RegNo)
	assert.Equal(t, "A320", st.CraftType, "filled from departure when arrival lacks it")
	assert.Equal(t, "ZGGG", st.ActualArrAirport)
	assert.Equal(t, at(10, 16), st.LatestArrivalTS)
	assert.Equal(t, []string{"ARR", "DEP"}, st.Kinds)
}

func TestFold_LateDepartureAfterArrival(t *testing.T) {
	recs := []domain.NormalizedRecord{
		rec(domain.StreamDynArr, ces202, at(10, 16), func(n *domain.NormalizedRecord) { n.ALDT = ptr(at(10, 15)); n.RegNo = "B-1299" }),
		rec(domain.StreamDynDep, ces202, at(10, 30), func(n *domain.NormalizedRecord) { n.ATOT = ptr(at(8, 41)); n.RegNo = "B-1234" }),
	}
	st := Fold(domain.SideDyn, ces202, recs)
	assert.Equal(t, at(10, 15), *st.ALDT)
	assert.Equal(t, at(8, 41), *st.ATOT)
	assert.Equal(t, "B-1299", st.RegNo, "arrival leg is preferred for aircraft identity")
	assert.Equal(t, at(10, 30), st.LatestArrivalTS)
}

func TestFold_SingleLegTakesLatest(t *testing.T) {
	recs := []domain.NormalizedRecord{
		rec(domain.StreamDynDep, ces202, at(8, 42), func(n *domain.NormalizedRecord) { n.ATOT = ptr(at(8, 40)) }),
		rec(domain.StreamDynDep, ces202, at(8, 50), func(n *domain.NormalizedRecord) { n.ATOT = ptr(at(8, 41)) }),
	}
	st := Fold(domain.SideDyn, ces202, recs)
	assert.Equal(t, at(8, 41), *st.ATOT)
	assert.Nil(t, st.ALDT)
}

func TestFold_ObservationCountsForBothLegs(t *testing.T) {
	recs := []domain.NormalizedRecord{
		rec(domain.StreamObs, ces202, at(9, 0), func(n *domain.NormalizedRecord) { n.MessageKind = "OBS"; n.ATOT = ptr(at(8, 41)) }),
		rec(domain.StreamObs, ces202, at(10, 20), func(n *domain.NormalizedRecord) { n.MessageKind = "OBS"; n.ALDT = ptr(at(10, 15)) }),
	}
	st := Fold(domain.SideDyn, ces202, recs)
	require.NotNil(t, st.ATOT)
	require.NotNil(t, st.ALDT)
	assert.Equal(t, at(8, 41), *st.ATOT)
	assert.Equal(t, at(10, 15), *st.ALDT)
}

func TestFold_MergedInvariantViolation(t *testing.T) {
	recs := []domain.NormalizedRecord{
		rec(domain.StreamDynDep, ces202, at(11, 0), func(n *domain.NormalizedRecord) { n.ATOT = ptr(at(10, 50)) }),
		rec(domain.StreamDynArr, ces202, at(10, 16), func(n *domain.NormalizedRecord) { n.ALDT = ptr(at(10, 15)) }),
	}
	st := Fold(domain.SideDyn, ces202, recs)
	assert.Nil(t, st.ALDT)
	assert.Equal(t, []domain.Reason{domain.ReasonInvariantViolation}, st.Tags)
}

func TestFold_Cancelled(t *testing.T) {
	recs := []domain.NormalizedRecord{
		rec(domain.StreamPlan, csn303, at(1, 0), func(n *domain.NormalizedRecord) { n.MessageKind = "FPL" }),
		rec(domain.StreamPlan, csn303, at(5, 0), func(n *domain.NormalizedRecord) { n.MessageKind = "CNL"; n.ScheduleStatus = "CNL" }),
	}
	assert.True(t, Fold(domain.SidePlan, csn303, recs).Cancelled)
	assert.False(t, Fold(domain.SidePlan, csn303, recs[:1]).Cancelled)
}

func TestFold_CancellationFollowsLatestStatus(t *testing.T) {
	fpl := func(h int) domain.NormalizedRecord {
		return rec(domain.StreamPlan, csn303, at(h, 0), func(n *domain.NormalizedRecord) { n.MessageKind = "FPL" })
	}
	cnl := rec(domain.StreamPlan, csn303, at(2, 0), func(n *domain.NormalizedRecord) { n.MessageKind = "CNL"; n.ScheduleStatus = "CNL" })

	tests := []struct {
		name          string
		side          domain.Side
		recs          []domain.NormalizedRecord
		wantStatus    string
		wantCancelled bool
	}{
		{"cancelled last", domain.SidePlan, []domain.NormalizedRecord{fpl(1), cnl}, "CNL", true},
		{"refiled after cancel", domain.SidePlan, []domain.NormalizedRecord{fpl(1), cnl, fpl(3)}, "", false},
		{"dynamic status ignored", domain.SideDyn, []domain.NormalizedRecord{
			rec(domain.StreamDynDep, csn303, at(2, 0), func(n *domain.NormalizedRecord) { n.ScheduleStatus = "CNL" }),
		}, "CNL", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := Fold(tt.side, csn303, tt.recs)
			assert.Equal(t, tt.wantStatus, st.ScheduleStatus)
			assert.Equal(t, tt.wantCancelled, st.Cancelled)
		})
	}
}

func TestFold_ValidationTextFromLatestRecord(t *testing.T) {
	recs := []domain.NormalizedRecord{
		rec(domain.StreamPlan, csn303, at(1, 0), func(n *domain.NormalizedRecord) {
			n.FormatCheck = "SOBT format invalid"
			n.LogicCheck = "SIBT before SOBT"
			n.TimelinessCheck = "RegNo late"
		}),
		rec(domain.StreamPlan, csn303, at(2, 0), nil),
	}
	st := Fold(domain.SidePlan, csn303, recs)
	assert.Empty(t, st.FormatCheck)
	assert.Empty(t, st.LogicCheck)
	assert.Empty(t, st.TimelinessCheck)

	st = Fold(domain.SidePlan, csn303, recs[:1])
	assert.Equal(t, "SOBT format invalid", st.FormatCheck)
}

func TestFold_MergedLegsJoinValidationText(t *testing.T) {
	recs := []domain.NormalizedRecord{
		rec(domain.StreamDynDep, ces202, at(8, 0), func(n *domain.NormalizedRecord) { n.FormatCheck = "ATOT format invalid" }),
		rec(domain.StreamDynDep, ces202, at(8, 42), func(n *domain.NormalizedRecord) { n.ATOT = ptr(at(8, 41)); n.FormatCheck = "RegNo format invalid" }),
		rec(domain.StreamDynArr, ces202, at(10, 16), func(n *domain.NormalizedRecord) {
			n.ALDT = ptr(at(10, 15))
			n.FormatCheck = "SIBT field value is empty"
			n.LogicCheck = "ALDT after SIBT"
		}),
	}
	st := Fold(domain.SideDyn, ces202, recs)
	assert.Equal(t, "RegNo format invalid; SIBT field value is empty", st.FormatCheck)
	assert.Equal(t, "ALDT after SIBT", st.LogicCheck)
	assert.Empty(t, st.TimelinessCheck)
}

func TestFold_IdempotentOnRepeatedLast(t *testing.T) {
	partitions := map[domain.Side][]domain.NormalizedRecord{
		domain.SidePlan: {
			rec(domain.StreamPlan, csn303, at(1, 0), func(n *domain.NormalizedRecord) { n.MessageKind = "FPL"; n.SOBT = ptr(at(8, 0)) }),
			rec(domain.StreamPlan, csn303, at(2, 0), func(n *domain.NormalizedRecord) { n.RegNo = "B-5500"; n.Tags = []domain.Reason{domain.ReasonTimeOutOfRange} }),
		},
		domain.SideDyn: {
			rec(domain.StreamDynDep, ces202, at(8, 42), func(n *domain.NormalizedRecord) { n.ATOT = ptr(at(8, 41)) }),
			rec(domain.StreamDynArr, ces202, at(10, 16), func(n *domain.NormalizedRecord) { n.ALDT = ptr(at(10, 15)); n.RegNo = "B-1299" }),
		},
	}
	for side, recs := range partitions {
		key := recs[0].Key
		once := Fold(side, key, recs)
		again := Fold(side, key, append(append([]domain.NormalizedRecord(nil), recs...), recs[len(recs)-1]))
		if diff := cmp.Diff(once, again); diff != "" {
			t.Errorf("%s: refold mismatch (-once +again):\n%s", side, diff)
		}
		assert.False(t, once.LatestArrivalTS.Before(once.EarliestArrivalTS))
	}
}

func TestFolder_States(t *testing.T) {
	f := New()
	f.Add(rec(domain.StreamPlan, csn303, at(1, 0), nil))
	f.Add(rec(domain.StreamPlan, ces202, at(1, 0), nil))
	f.Add(rec(domain.StreamDynDep, ces202, at(8, 42), nil))
	f.Add(rec(domain.StreamObs, ces202, at(10, 20), nil))

	plan, dyn := f.States()
	assert.Equal(t, 3, f.Len())
	assert.Len(t, plan, 2)
	require.Len(t, dyn, 1)
	assert.Equal(t, domain.SideDyn, dyn[ces202].Side)
	assert.Equal(t, at(10, 20), dyn[ces202].LatestArrivalTS)
}
