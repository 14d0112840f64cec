package domain

import "time"

// FlightState is the folded view of all records for one FlightKey on one side.
type FlightState struct {
	Key  FlightKey
	Side Side

	FlightNo         string
	DepAirport       string
	ArrAirport       string
	ActualArrAirport string
	RegNo            string
	CraftType        string
	ScheduleStatus   string
	Cancelled        bool

	SOBT *time.Time
	SIBT *time.Time
	ATOT *time.Time
	ALDT *time.Time

	FormatCheck     string
	LogicCheck      string
	TimelinessCheck string

	EarliestArrivalTS time.Time
	LatestArrivalTS   time.Time
	Kinds             []string // sorted, distinct message kinds observed
	Tags              []Reason
}

// Overall is the per-flight reconciliation verdict.
type Overall string

const (
	OverallPlanOnly Overall = "PLAN_ONLY"
	OverallDynOnly  Overall = "DYN_ONLY"
	OverallMatched  Overall = "MATCHED"
)

// Verdict is the per-field comparison outcome.
type Verdict string

const (
	VerdictMatched     Verdict = "MATCHED"
	VerdictMismatched  Verdict = "MISMATCHED"
	VerdictPlanMissing Verdict = "PLAN_MISSING"
	VerdictDynMissing  Verdict = "DYN_MISSING"
	VerdictBothMissing Verdict = "BOTH_MISSING"
)

// Missing reports whether the verdict is one of the three missing-value outcomes.
func (v Verdict) Missing() bool {
	return v == VerdictPlanMissing || v == VerdictDynMissing || v == VerdictBothMissing
}

// FieldVerdict carries one compared field with both side values.
type FieldVerdict struct {
	Field     string
	Verdict   Verdict
	PlanValue string
	DynValue  string
}

// Comparison is the reconciliation record for one FlightKey present in either side.
type Comparison struct {
	Key       FlightKey
	Overall   Overall
	Fields    []FieldVerdict
	Cancelled bool

	// PlanLeadSeconds is plan.LatestArrivalTS - dyn.LatestArrivalTS. It is
	// negative when the plan became known before the dynamic record and nil
	// unless both sides are present.
	PlanLeadSeconds *int64

	Plan *FlightState
	Dyn  *FlightState
}

// Field returns the verdict for a named field.
func (c Comparison) Field(name string) (FieldVerdict, bool) {
	for _, f := range c.Fields {
		if f.Field == name {
			return f, true
		}
	}
	return FieldVerdict{}, false
}
