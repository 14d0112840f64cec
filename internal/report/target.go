package report

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/couchcryptid/flight-recon/internal/domain"
)

// Target stores finished artifacts. Each name is written once per run and
// replaces any previous content.
type Target interface {
	Put(ctx context.Context, name string, data []byte) error
	Location(name string) string
}

// LocalDir writes artifacts under a directory.
type LocalDir struct {
	Dir string
}

// Put writes data to Dir/name, truncating an existing file.
func (l LocalDir) Put(_ context.Context, name string, data []byte) error {
	path := l.Location(name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil { //nolint:gosec // reports are meant to be shared
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// Location returns the file path for name.
func (l LocalDir) Location(name string) string {
	return filepath.Join(l.Dir, name)
}

// Render writes an artifact through fn and stores it on target. Failures are
// returned as *domain.OutputError.
func Render(ctx context.Context, target Target, name string, fn func(io.Writer) error) error {
	var buf bytes.Buffer
	if err := fn(&buf); err != nil {
		return &domain.OutputError{Target: target.Location(name), Err: err}
	}
	if err := target.Put(ctx, name, buf.Bytes()); err != nil {
		return &domain.OutputError{Target: target.Location(name), Err: err}
	}
	return nil
}

func dayStamp(day time.Time) string { return day.Format("20060102") }

// NormalizedName is the per-stream normalized file for a day.
func NormalizedName(day time.Time, stream domain.Stream) string {
	return fmt.Sprintf("%s_%s_normalized.csv", dayStamp(day), strings.ToLower(string(stream)))
}

// ComparisonName is the comparison report for a day.
func ComparisonName(day time.Time) string { return dayStamp(day) + "_comparison.csv" }

// ComparisonParquetName is the Parquet export of the comparison report.
func ComparisonParquetName(day time.Time) string { return dayStamp(day) + "_comparison.parquet" }

// DiagnosticsName is the row-level diagnostics file for a day.
func DiagnosticsName(day time.Time) string { return dayStamp(day) + "_diagnostics.csv" }

// QualityName is the daily quality workbook.
func QualityName(day time.Time) string { return dayStamp(day) + "_quality.xlsx" }

// MonthlyName is the monthly quality summary workbook.
func MonthlyName(month time.Time) string { return month.Format("200601") + "_quality_summary.xlsx" }
