// Package report renders pipeline results to files.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/couchcryptid/flight-recon/internal/domain"
)

const bom = "\ufeff"

// NormalizedColumns is the header of the per-stream normalized files.
var NormalizedColumns = []string{
	"FlightKey", "MessageType", "FlightNo", "DepAirport", "ArrAirport", "ActualArrAirport",
	"RegNo", "CraftType", "ReceiveTime", "SOBT_EOBT_ATOT", "SIBT_EIBT_AIBT", "RawMessage",
}

func newCSV(w io.Writer, header []string) (*csv.Writer, error) {
	if _, err := io.WriteString(w, bom); err != nil {
		return nil, fmt.Errorf("write bom: %w", err)
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	return cw, nil
}

func first(ts ...*time.Time) *time.Time {
	for _, t := range ts {
		if t != nil {
			return t
		}
	}
	return nil
}

// WriteNormalized writes normalized records as UTF-8 CSV with a BOM.
func WriteNormalized(w io.Writer, recs []domain.NormalizedRecord) error {
	cw, err := newCSV(w, NormalizedColumns)
	if err != nil {
		return err
	}
	for _, n := range recs {
		off, in := first(n.SOBT, n.ETOT), n.SIBT
		if n.Stream.Side() == domain.SideDyn {
			off, in = first(n.ATOT, n.ETOT, n.SOBT), first(n.ALDT, n.SIBT)
		}
		row := []string{
			n.Key.String(),
			n.MessageKind,
			n.Key.Callsign,
			n.DepAirport,
			n.ArrAirport,
			n.ActualArrAirport,
			n.RegNo,
			n.CraftType,
			n.ArrivalTS.In(domain.Beijing).Format(domain.TimeLayout),
			domain.FormatTime(off),
			domain.FormatTime(in),
			n.RawMessage,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write normalized row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ComparisonColumns returns the comparison header for the compared fields.
func ComparisonColumns(fields []string) []string {
	cols := []string{"FlightKey", "overall_verdict", "plan_lead_seconds"}
	for _, f := range fields {
		cols = append(cols, f+"_verdict")
	}
	for _, f := range fields {
		cols = append(cols, "plan_"+f)
	}
	for _, f := range fields {
		cols = append(cols, "dyn_"+f)
	}
	return append(cols, "cancelled")
}

func leadString(c domain.Comparison) string {
	if c.PlanLeadSeconds == nil {
		return ""
	}
	return strconv.FormatInt(*c.PlanLeadSeconds, 10)
}

// WriteComparisons writes one row per comparison.
func WriteComparisons(w io.Writer, cmps []domain.Comparison, fields []string) error {
	cw, err := newCSV(w, ComparisonColumns(fields))
	if err != nil {
		return err
	}
	for _, c := range cmps {
		row := []string{c.Key.String(), string(c.Overall), leadString(c)}
		verdicts := make([]string, len(fields))
		plan := make([]string, len(fields))
		dyn := make([]string, len(fields))
		for i, f := range fields {
			if fv, ok := c.Field(f); ok {
				verdicts[i] = string(fv.Verdict)
				plan[i] = fv.PlanValue
				dyn[i] = fv.DynValue
			}
		}
		row = append(row, verdicts...)
		row = append(row, plan...)
		row = append(row, dyn...)
		row = append(row, strconv.FormatBool(c.Cancelled))
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write comparison row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteDiagnostics writes every rejection followed by per-stream totals.
func WriteDiagnostics(w io.Writer, diag *domain.Diagnostics) error {
	cw, err := newCSV(w, []string{"stream", "source", "line", "reason", "detail"})
	if err != nil {
		return err
	}
	for _, r := range diag.Rejections {
		if err := cw.Write([]string{string(r.Stream), r.Source, strconv.Itoa(r.Line), string(r.Reason), r.Detail}); err != nil {
			return fmt.Errorf("write rejection: %w", err)
		}
	}
	if err := cw.Write(nil); err != nil {
		return fmt.Errorf("write separator: %w", err)
	}
	if err := cw.Write([]string{"stream", "rows_in", "rows_rejected", "keys_unresolved", "rows_filtered"}); err != nil {
		return fmt.Errorf("write totals header: %w", err)
	}
	for _, s := range domain.Streams {
		c := diag.Counts(s)
		row := []string{string(s), strconv.Itoa(c.RowsIn), strconv.Itoa(c.RowsRejected), strconv.Itoa(c.KeysUnresolved), strconv.Itoa(c.RowsFiltered)}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write totals: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
