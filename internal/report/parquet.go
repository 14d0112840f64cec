package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/couchcryptid/flight-recon/internal/domain"
	"github.com/goccy/go-json"
	"github.com/xitongsys/parquet-go-source/writerfile"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"
)

type parquetColumn struct {
	name string
	typ  string
}

func comparisonSchema(fields []string) (string, error) {
	cols := []parquetColumn{
		{"flight_key", "BYTE_ARRAY, convertedtype=UTF8"},
		{"overall_verdict", "BYTE_ARRAY, convertedtype=UTF8"},
		{"plan_lead_seconds", "INT64"},
	}
	for _, f := range fields {
		cols = append(cols, parquetColumn{f + "_verdict", "BYTE_ARRAY, convertedtype=UTF8"})
	}
	for _, f := range fields {
		cols = append(cols, parquetColumn{"plan_" + f, "BYTE_ARRAY, convertedtype=UTF8"})
	}
	for _, f := range fields {
		cols = append(cols, parquetColumn{"dyn_" + f, "BYTE_ARRAY, convertedtype=UTF8"})
	}
	cols = append(cols, parquetColumn{"cancelled", "BOOLEAN"})

	tags := make([]map[string]string, 0, len(cols))
	for _, c := range cols {
		tags = append(tags, map[string]string{
			"Tag": fmt.Sprintf("name=%s, type=%s, repetitiontype=OPTIONAL", c.name, c.typ),
		})
	}
	schema, err := json.Marshal(map[string]any{
		"Tag":    "name=parquet_go_root, repetitiontype=REQUIRED",
		"Fields": tags,
	})
	if err != nil {
		return "", fmt.Errorf("encode parquet schema: %w", err)
	}
	return string(schema), nil
}

// WriteComparisonParquet writes the comparison rows as a Snappy-compressed
// Parquet file with the same columns as the CSV report.
func WriteComparisonParquet(w io.Writer, cmps []domain.Comparison, fields []string) error {
	schema, err := comparisonSchema(fields)
	if err != nil {
		return err
	}
	pfw := writerfile.NewWriterFile(w)
	pw, err := writer.NewJSONWriter(schema, pfw, 4)
	if err != nil {
		return fmt.Errorf("create parquet writer: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for _, c := range cmps {
		row, err := parquetRow(c, fields)
		if err != nil {
			_ = pw.WriteStop()
			return err
		}
		if err := pw.Write(row); err != nil {
			_ = pw.WriteStop()
			return fmt.Errorf("write parquet row %s: %w", c.Key, err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		return fmt.Errorf("finish parquet: %w", err)
	}
	return nil
}

func parquetRow(c domain.Comparison, fields []string) (string, error) {
	row := map[string]any{
		"flight_key":        c.Key.String(),
		"overall_verdict":   string(c.Overall),
		"plan_lead_seconds": nil,
		"cancelled":         c.Cancelled,
	}
	if c.PlanLeadSeconds != nil {
		row["plan_lead_seconds"] = *c.PlanLeadSeconds
	}
	for _, f := range fields {
		fv, _ := c.Field(f)
		row[f+"_verdict"] = optional(string(fv.Verdict))
		row["plan_"+f] = optional(fv.PlanValue)
		row["dyn_"+f] = optional(fv.DynValue)
	}
	b, err := json.Marshal(row)
	if err != nil {
		return "", fmt.Errorf("encode parquet row %s: %w", c.Key, err)
	}
	return string(b), nil
}

func optional(s string) any {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}
