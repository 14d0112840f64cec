package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/couchcryptid/flight-recon/internal/domain"
	"github.com/couchcryptid/flight-recon/internal/quality"
	"github.com/xuri/excelize/v2"
)

// QualityColumns is the header of every quality sheet.
var QualityColumns = []string{"field", "required", "total", "covered", "coverage", "format_rate", "logic_rate", "timeliness"}

const (
	sheetQuality     = "quality"
	sheetDiagnostics = "diagnostics"
	sheetSummary     = "summary"
)

// RunInfo stamps a workbook with its provenance.
type RunInfo struct {
	RunID   string
	Started string
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func qualityRow(f quality.FieldReport) []any {
	return []any{
		f.Field.Name,
		yesNo(f.Field.Required),
		f.Total,
		f.Covered,
		f.Coverage().String(),
		f.FormatRate().String(),
		f.LogicRate().String(),
		f.Timeliness().String(),
	}
}

func setRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("write %s row %d: %w", sheet, row, err)
	}
	return nil
}

func header(cols []string) []any {
	out := make([]any, len(cols))
	for i, c := range cols {
		out[i] = c
	}
	return out
}

// writeQualitySheet fills sheet with the field rows and returns the next free row.
func writeQualitySheet(f *excelize.File, sheet string, fields []quality.FieldReport) (int, error) {
	if err := setRow(f, sheet, 1, header(QualityColumns)); err != nil {
		return 0, err
	}
	for i, fr := range fields {
		if err := setRow(f, sheet, i+2, qualityRow(fr)); err != nil {
			return 0, err
		}
	}
	return len(fields) + 2, nil
}

// writeDiagnosticsSheet writes the provenance rows followed by per-stream
// counts and counts by reason.
func writeDiagnosticsSheet(f *excelize.File, diag *domain.Diagnostics, info RunInfo, provenance [][]any) error {
	if _, err := f.NewSheet(sheetDiagnostics); err != nil {
		return fmt.Errorf("create diagnostics sheet: %w", err)
	}
	rows := [][]any{
		{"run_id", info.RunID},
		{"started", info.Started},
	}
	rows = append(rows, provenance...)
	rows = append(rows,
		[]any{},
		[]any{"stream", "rows_in", "rows_rejected", "keys_unresolved", "rows_filtered"},
	)
	for _, s := range domain.Streams {
		c := diag.Counts(s)
		rows = append(rows, []any{string(s), c.RowsIn, c.RowsRejected, c.KeysUnresolved, c.RowsFiltered})
	}
	rows = append(rows, []any{}, []any{"reason", "count"})
	byReason := diag.CountByReason()
	for _, r := range []domain.Reason{
		domain.ReasonParseError, domain.ReasonKeyUnresolved, domain.ReasonTimeOutOfRange,
		domain.ReasonInvariantViolation, domain.ReasonFiltered,
	} {
		rows = append(rows, []any{string(r), byReason[r]})
	}
	for i, r := range rows {
		if len(r) == 0 {
			continue
		}
		if err := setRow(f, sheetDiagnostics, i+1, r); err != nil {
			return err
		}
	}
	return nil
}

// WriteDailyWorkbook writes the quality report of one day with a diagnostics sheet.
func WriteDailyWorkbook(w io.Writer, rep quality.Report, diag *domain.Diagnostics, info RunInfo) error {
	f := excelize.NewFile()
	defer f.Close() //nolint:errcheck // in-memory workbook

	if err := f.SetSheetName(f.GetSheetName(0), sheetQuality); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := writeQualitySheet(f, sheetQuality, rep.Fields); err != nil {
		return err
	}
	orientation := "arrival"
	if rep.Departure {
		orientation = "departure"
	}
	if err := writeDiagnosticsSheet(f, diag, info, [][]any{
		{"date", rep.Date},
		{"airport", rep.Airport},
		{"orientation", orientation},
		{"flights", rep.Flights},
		{"cancelled_excluded", rep.Cancelled},
	}); err != nil {
		return err
	}
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// WriteMonthlyWorkbook writes the summary sheet, with flagged required
// fields highlighted, the month's merged diagnostics, then one sheet per day.
func WriteMonthlyWorkbook(w io.Writer, m quality.Monthly, diag *domain.Diagnostics, info RunInfo) error {
	f := excelize.NewFile()
	defer f.Close() //nolint:errcheck // in-memory workbook

	if err := f.SetSheetName(f.GetSheetName(0), sheetSummary); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	flagged, err := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"FFC7CE"}, Pattern: 1},
		Font: &excelize.Font{Color: "9C0006", Bold: true},
	})
	if err != nil {
		return fmt.Errorf("create style: %w", err)
	}

	fields := make([]quality.FieldReport, len(m.Fields))
	for i, mf := range m.Fields {
		fields[i] = mf.FieldReport
	}
	next, err := writeQualitySheet(f, sheetSummary, fields)
	if err != nil {
		return err
	}
	last, _ := excelize.ColumnNumberToName(len(QualityColumns) + 1)
	if err := f.SetCellValue(sheetSummary, last+"1", "flagged"); err != nil {
		return fmt.Errorf("write flagged header: %w", err)
	}
	for i, mf := range m.Fields {
		row := strconv.Itoa(i + 2)
		if err := f.SetCellValue(sheetSummary, last+row, yesNo(mf.Flagged)); err != nil {
			return fmt.Errorf("write flagged: %w", err)
		}
		if mf.Flagged {
			if err := f.SetCellStyle(sheetSummary, "A"+row, last+row, flagged); err != nil {
				return fmt.Errorf("style flagged row: %w", err)
			}
		}
	}

	footer := [][]any{
		{"month", m.Month},
		{"airport", m.Airport},
		{"threshold", fmt.Sprintf("%.2f%%", 100*m.Threshold)},
		{"flights", m.Flights},
		{"cancelled_excluded", m.Cancelled},
		{"run_id", info.RunID},
	}
	for i, r := range footer {
		if err := setRow(f, sheetSummary, next+1+i, r); err != nil {
			return err
		}
	}

	if err := writeDiagnosticsSheet(f, diag, info, [][]any{
		{"month", m.Month},
		{"airport", m.Airport},
		{"days", len(m.Days)},
	}); err != nil {
		return err
	}

	for _, d := range m.Days {
		if _, err := f.NewSheet(d.Date); err != nil {
			return fmt.Errorf("create sheet %s: %w", d.Date, err)
		}
		if _, err := writeQualitySheet(f, d.Date, d.Fields); err != nil {
			return err
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
