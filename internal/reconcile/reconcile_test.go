package reconcile

import (
	"strings"
	"testing"
	"time"

	"github.com/couchcryptid/flight-recon/internal/domain"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day = time.Date(2025, 9, 23, 0, 0, 0, 0, domain.Beijing)

func at(h, m int) *time.Time {
	t := day.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute)
	return &t
}

var (
	cca101 = domain.FlightKey{ExecDate: "2025-09-23", Callsign: "CCA101", DepAirport: "ZBAA", ArrAirport: "ZSPD"}
	ces202 = domain.FlightKey{ExecDate: "2025-09-23", Callsign: "CES202", DepAirport: "ZSSS", ArrAirport: "ZGGG"}
	csn303 = domain.FlightKey{ExecDate: "2025-09-23", Callsign: "CSN303", DepAirport: "ZGGG", ArrAirport: "ZUUU"}
)

func defaultComparators(t *testing.T) []Comparator {
	t.Helper()
	cs, err := Comparators(nil)
	require.NoError(t, err)
	return cs
}

func TestReconcile_PlanOnly(t *testing.T) {
	plan := map[domain.FlightKey]domain.FlightState{
		cca101: {
			Key: cca101, Side: domain.SidePlan,
			RegNo: "B-6001", CraftType: "A333", SOBT: at(8, 0), SIBT: at(10, 15),
			LatestArrivalTS: *at(6, 0),
		},
	}
	cmps := Reconcile(plan, nil, defaultComparators(t))

	require.Len(t, cmps, 1)
	c := cmps[0]
	assert.Equal(t, cca101, c.Key)
	assert.Equal(t, domain.OverallPlanOnly, c.Overall)
	assert.Nil(t, c.PlanLeadSeconds)
	assert.Nil(t, c.Dyn)
	require.Len(t, c.Fields, 4)
	for _, f := range c.Fields {
		assert.Equal(t, domain.VerdictDynMissing, f.Verdict, f.Field)
	}
}

func TestReconcile_MatchedWithRegMismatch(t *testing.T) {
	plan := map[domain.FlightKey]domain.FlightState{
		ces202: {Key: ces202, Side: domain.SidePlan, RegNo: "B-1234", SOBT: at(8, 30), LatestArrivalTS: *at(7, 0)},
	}
	dyn := map[domain.FlightKey]domain.FlightState{
		ces202: {Key: ces202, Side: domain.SideDyn, RegNo: "B-1299", SOBT: at(8, 30), ATOT: at(8, 41), ALDT: at(10, 15), LatestArrivalTS: *at(10, 16)},
	}
	cmps := Reconcile(plan, dyn, defaultComparators(t))

	require.Len(t, cmps, 1)
	c := cmps[0]
	assert.Equal(t, domain.OverallMatched, c.Overall)
	require.NotNil(t, c.PlanLeadSeconds)
	assert.Equal(t, int64(-11760), *c.PlanLeadSeconds)

	reg, _ := c.Field("reg_no")
	assert.Equal(t, domain.VerdictMismatched, reg.Verdict)
	assert.Equal(t, "B-1234", reg.PlanValue)
	assert.Equal(t, "B-1299", reg.DynValue)

	sobt, _ := c.Field("sobt")
	assert.Equal(t, domain.VerdictMatched, sobt.Verdict)
	assert.Equal(t, "2025-09-23 08:30", sobt.PlanValue)
}

func TestComparator_Verdicts(t *testing.T) {
	c := Builtin["reg_no"]
	with := &domain.FlightState{RegNo: " B-1 "}
	other := &domain.FlightState{RegNo: "b-1"}
	empty := &domain.FlightState{}

	tests := []struct {
		name      string
		plan, dyn *domain.FlightState
		want      domain.Verdict
	}{
		{"trimmed equal", with, &domain.FlightState{RegNo: "B-1"}, domain.VerdictMatched},
		{"case sensitive", with, other, domain.VerdictMismatched},
		{"dyn missing", with, empty, domain.VerdictDynMissing},
		{"dyn absent", with, nil, domain.VerdictDynMissing},
		{"plan missing", empty, with, domain.VerdictPlanMissing},
		{"both missing", empty, empty, domain.VerdictBothMissing},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Verdict(tt.plan, tt.dyn).Verdict)
		})
	}
}

func TestComparator_TimeToMinute(t *testing.T) {
	p := day.Add(8*time.Hour + 30*time.Minute + 5*time.Second)
	d := day.Add(8*time.Hour + 30*time.Minute + 55*time.Second)
	fv := Builtin["sobt"].Verdict(&domain.FlightState{SOBT: &p}, &domain.FlightState{SOBT: &d})
	assert.Equal(t, domain.VerdictMatched, fv.Verdict)
}

func TestComparator_EqOverride(t *testing.T) {
	c := Builtin["craft_type"]
	c.Eq = strings.EqualFold
	fv := c.Verdict(&domain.FlightState{CraftType: "a320"}, &domain.FlightState{CraftType: "A320"})
	assert.Equal(t, domain.VerdictMatched, fv.Verdict)
}

func TestComparators_Unknown(t *testing.T) {
	_, err := Comparators([]string{"reg_no", "tail_colour"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tail_colour")
}

func fixture() (plan, dyn map[domain.FlightKey]domain.FlightState) {
	plan = map[domain.FlightKey]domain.FlightState{
		cca101: {Key: cca101, LatestArrivalTS: *at(6, 0)},
		ces202: {Key: ces202, RegNo: "B-1234", LatestArrivalTS: *at(7, 0)},
		csn303: {Key: csn303, ScheduleStatus: "CNL", Cancelled: true, LatestArrivalTS: *at(5, 0)},
	}
	dyn = map[domain.FlightKey]domain.FlightState{
		ces202: {Key: ces202, RegNo: "B-1234", LatestArrivalTS: *at(9, 0)},
		csn303: {Key: csn303, LatestArrivalTS: *at(6, 0)},
		{ExecDate: "2025-09-23", Callsign: "CHH7001", DepAirport: "ZJHK", ArrAirport: "ZGGG"}: {LatestArrivalTS: *at(11, 0)},
	}
	return plan, dyn
}

func TestReconcile_TotalAndDisjoint(t *testing.T) {
	plan, dyn := fixture()
	cmps := Reconcile(plan, dyn, defaultComparators(t))

	seen := make(map[domain.FlightKey]domain.Overall)
	for _, c := range cmps {
		_, dup := seen[c.Key]
		require.False(t, dup, "key %s emitted twice", c.Key)
		seen[c.Key] = c.Overall

		_, inPlan := plan[c.Key]
		_, inDyn := dyn[c.Key]
		switch c.Overall {
		case domain.OverallMatched:
			assert.True(t, inPlan && inDyn)
		case domain.OverallPlanOnly:
			assert.True(t, inPlan && !inDyn)
		case domain.OverallDynOnly:
			assert.True(t, !inPlan && inDyn)
		default:
			t.Fatalf("unexpected overall %q", c.Overall)
		}
	}
	assert.Len(t, seen, 4)

	for i := 1; i < len(cmps); i++ {
		assert.Less(t, cmps[i-1].Key.String(), cmps[i].Key.String())
	}
}

func TestReconcile_Deterministic(t *testing.T) {
	plan, dyn := fixture()
	first := Reconcile(plan, dyn, defaultComparators(t))
	second := Reconcile(plan, dyn, defaultComparators(t))
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("reconcile not deterministic (-first +second):\n%s", diff)
	}
}

func TestReconcile_CancelledCarried(t *testing.T) {
	plan, dyn := fixture()
	for _, c := range Reconcile(plan, dyn, defaultComparators(t)) {
		assert.Equal(t, c.Key == csn303, c.Cancelled, c.Key.String())
	}
}

func TestSummarize(t *testing.T) {
	plan, dyn := fixture()
	s := Summarize(Reconcile(plan, dyn, defaultComparators(t)))

	assert.Equal(t, 4, s.Total)
	assert.Equal(t, 2, s.ByOverall[domain.OverallMatched])
	assert.Equal(t, 1, s.ByOverall[domain.OverallPlanOnly])
	assert.Equal(t, 1, s.ByOverall[domain.OverallDynOnly])
	assert.Equal(t, 1, s.Cancelled)

	// ces202 lead -7200, csn303 lead -3600.
	require.True(t, s.HasLead)
	assert.InDelta(t, -5400, s.MeanLeadSeconds, 1e-9)
	assert.InDelta(t, -5400, s.MedianLeadSeconds, 1e-9)

	require.Len(t, s.Fields, 4)
	assert.Equal(t, FieldHistogram{Field: "reg_no", Matched: 1, Missing: 3}, s.Fields[0])
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(nil)
	assert.Zero(t, s.Total)
	assert.False(t, s.HasLead)
	assert.Empty(t, s.Fields)
}
