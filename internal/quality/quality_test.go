package quality

import (
	"fmt"
	"testing"
	"time"

	"github.com/couchcryptid/flight-recon/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testFields = []Field{
	{Name: "reg_no", Label: "RegNo", Required: true},
	{Name: "sobt", Label: "SOBT", Required: true},
	{Name: "actual_arr_airport", Label: "ActualArrAirport", Required: false},
}

func newAuditor(t *testing.T, departure bool) *Auditor {
	t.Helper()
	a, err := NewAuditor(testFields, "ZGGG", departure, nil)
	require.NoError(t, err)
	return a
}

func fieldReport(t *testing.T, rep Report, name string) FieldReport {
	t.Helper()
	for _, f := range rep.Fields {
		if f.Field.Name == name {
			return f
		}
	}
	t.Fatalf("field %s not in report", name)
	return FieldReport{}
}

func TestMentions(t *testing.T) {
	tests := []struct {
		name   string
		column string
		label  string
		want   bool
	}{
		{"format complaint", "SOBT format invalid", "SOBT", true},
		{"empty value", "SOBT field value is empty", "SOBT", false},
		{"empty value extra spaces", "SOBT   field value is empty", "SOBT", false},
		{"chinese empty value", "SOBT字段值为空", "SOBT", false},
		{"empty then real", "SOBT field value is empty; SOBT later than SIBT", "SOBT", true},
		{"longer identifier", "SOBTX format invalid", "SOBT", false},
		{"prefixed identifier", "ASOBT format invalid", "SOBT", false},
		{"inside sentence", "check failed: SIBT,SOBT order", "SOBT", true},
		{"absent", "RegNo format invalid", "SOBT", false},
		{"empty column", "", "SOBT", false},
		{"chinese label", "计划离港时间格式错误", "计划离港时间", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Mentions(tt.column, tt.label, DefaultEmptySuffixes))
		})
	}
}

// 100 flights cover SOBT; 20 report it empty and 5 report a bad format.
func TestAudit_EmptyValueMentionNotPenalized(t *testing.T) {
	a := newAuditor(t, false)
	rows := make([]Row, 100)
	for i := range rows {
		rows[i] = Row{Values: map[string]string{"sobt": "2025-09-23 08:00"}}
		switch {
		case i < 20:
			rows[i].Format = "SOBT field value is empty"
		case i < 25:
			rows[i].Format = "SOBT format invalid"
		}
	}
	sobt := fieldReport(t, a.Audit("2025-09-23", rows), "sobt")

	assert.Equal(t, 100, sobt.Covered)
	assert.Equal(t, 95, sobt.FormatCorrect)
	assert.Equal(t, "95.00%", sobt.FormatRate().String())
	assert.Equal(t, 100, sobt.LogicCorrect)
}

func TestAudit_RatesAndNA(t *testing.T) {
	a := newAuditor(t, false)
	rows := []Row{
		{Values: map[string]string{"reg_no": "B-1"}, Logic: "RegNo inconsistent with plan"},
		{Values: map[string]string{"reg_no": "B-2"}, Timely: "RegNo late"},
		{Values: map[string]string{}},
		{Values: map[string]string{"reg_no": "B-3"}, Format: "ActualArrAirport format invalid"},
	}
	rep := a.Audit("2025-09-23", rows)
	reg := fieldReport(t, rep, "reg_no")
	assert.Equal(t, Counts{Total: 4, Covered: 3, FormatCorrect: 3, LogicCorrect: 2, Timely: 2}, reg.Counts)
	assert.Equal(t, "75.00%", reg.Coverage().String())
	assert.InDelta(t, 2.0/3.0, reg.LogicRate().Value(), 1e-9)

	aa := fieldReport(t, rep, "actual_arr_airport")
	assert.Equal(t, 0, aa.Covered)
	assert.False(t, aa.FormatRate().Defined())
	assert.Equal(t, "N/A", aa.FormatRate().String())
	assert.Equal(t, "0.00%", aa.Coverage().String())
}

func at(h, m int) *time.Time {
	t := time.Date(2025, 9, 23, h, m, 0, 0, domain.Beijing)
	return &t
}

func comparison(key domain.FlightKey, plan, dyn *domain.FlightState) domain.Comparison {
	c := domain.Comparison{Key: key, Plan: plan, Dyn: dyn}
	if plan != nil {
		c.Cancelled = plan.Cancelled
	}
	return c
}

func TestDaily_FilterAndCancelled(t *testing.T) {
	inbound := domain.FlightKey{ExecDate: "2025-09-23", Callsign: "CES202", DepAirport: "ZSSS", ArrAirport: "ZGGG"}
	cancelled := domain.FlightKey{ExecDate: "2025-09-23", Callsign: "CSN303", DepAirport: "ZUUU", ArrAirport: "ZGGG"}
	outbound := domain.FlightKey{ExecDate: "2025-09-23", Callsign: "CSN304", DepAirport: "ZGGG", ArrAirport: "ZUUU"}

	cmps := []domain.Comparison{
		comparison(inbound,
			&domain.FlightState{RegNo: "B-1234", SOBT: at(8, 30), FormatCheck: "SOBT format invalid"},
			&domain.FlightState{RegNo: "B-1299"}),
		comparison(cancelled, &domain.FlightState{Cancelled: true, RegNo: "B-5500"}, nil),
		comparison(outbound, &domain.FlightState{RegNo: "B-6001"}, nil),
	}

	arr := newAuditor(t, false).Daily("2025-09-23", cmps)
	assert.Equal(t, 1, arr.Flights)
	assert.Equal(t, 1, arr.Cancelled)
	sobt := fieldReport(t, arr, "sobt")
	assert.Equal(t, Counts{Total: 1, Covered: 1, FormatCorrect: 0, LogicCorrect: 1, Timely: 1}, sobt.Counts)

	dep := newAuditor(t, true).Daily("2025-09-23", cmps)
	assert.Equal(t, 1, dep.Flights)
	assert.Equal(t, 0, dep.Cancelled)
	assert.True(t, dep.Departure)
}

func TestAuditor_RowPrefersDynamic(t *testing.T) {
	a := newAuditor(t, false)
	key := domain.FlightKey{ExecDate: "2025-09-23", Callsign: "CES202", DepAirport: "ZSSS", ArrAirport: "ZGGG"}
	r := a.Row(comparison(key,
		&domain.FlightState{RegNo: "B-1234", SOBT: at(8, 30), FormatCheck: "RegNo format invalid"},
		&domain.FlightState{RegNo: "B-1299", LogicCheck: "SOBT later than SIBT", FormatCheck: "SOBT format invalid"},
	))
	assert.Equal(t, "B-1299", r.Values["reg_no"])
	assert.Equal(t, "2025-09-23 08:30", r.Values["sobt"])
	assert.Equal(t, "RegNo format invalid; SOBT format invalid", r.Format)
	assert.Equal(t, "SOBT later than SIBT", r.Logic)
}

func TestNewAuditor_UnknownField(t *testing.T) {
	_, err := NewAuditor([]Field{{Name: "tail_colour", Label: "Colour"}}, "ZGGG", false, nil)
	require.Error(t, err)
}

func TestSummarize_ReRatesFromSums(t *testing.T) {
	field := Field{Name: "sobt", Label: "SOBT", Required: true}
	covered := []int{10, 0, 90, 1}
	correct := []int{9, 0, 45, 1}
	totals := []int{20, 5, 100, 1}

	var days []Report
	sumC, sumK, sumT := 0, 0, 0
	for i := range covered {
		days = append(days, Report{
			Date:    fmt.Sprintf("2025-09-%02d", i+1),
			Airport: "ZGGG",
			Flights: totals[i],
			Fields: []FieldReport{{Field: field, Counts: Counts{
				Total: totals[i], Covered: covered[i], FormatCorrect: correct[i], LogicCorrect: covered[i], Timely: covered[i],
			}}},
		})
		sumC += covered[i]
		sumK += correct[i]
		sumT += totals[i]
	}

	m := Summarize("2025-09", days, 0.30)
	require.Len(t, m.Fields, 1)
	f := m.Fields[0]
	assert.Equal(t, Ratio{Num: sumK, Den: sumC}, f.FormatRate())
	assert.Equal(t, Ratio{Num: sumC, Den: sumT}, f.Coverage())
	assert.InDelta(t, float64(sumK)/float64(sumC), f.FormatRate().Value(), 1e-12)
	assert.Equal(t, 126, m.Flights)
	assert.Equal(t, "ZGGG", m.Airport)
	assert.Len(t, m.Days, 4)
}

func TestSummarize_Flagging(t *testing.T) {
	day := Report{Fields: []FieldReport{
		{Field: Field{Name: "reg_no", Required: true}, Counts: Counts{Total: 10, Covered: 2}},
		{Field: Field{Name: "sobt", Required: true}, Counts: Counts{Total: 10, Covered: 3}},
		{Field: Field{Name: "aldt", Required: true}, Counts: Counts{Total: 0}},
		{Field: Field{Name: "actual_arr_airport", Required: false}, Counts: Counts{Total: 10, Covered: 0}},
	}}
	m := Summarize("2025-09", []Report{day}, 0.30)

	flagged := make(map[string]bool)
	for _, f := range m.Fields {
		flagged[f.Field.Name] = f.Flagged
	}
	assert.Equal(t, map[string]bool{
		"reg_no":             true,
		"sobt":               false,
		"aldt":               true,
		"actual_arr_airport": false,
	}, flagged)
}
