// Command validate re-checks a written comparison report against the
// reconciliation invariants: every FlightKey parses and appears once in key
// order, each row has exactly one overall verdict consistent with its field
// verdicts, plan_lead_seconds is set only for matched flights, and every
// field verdict agrees with the plan and dynamic values beside it.
//
// Usage:
//
//	go run ./cmd/validate -report out/20250923_comparison.csv
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/couchcryptid/flight-recon/internal/domain"
)

const bom = "\ufeff"

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	reportPath := flag.String("report", "", "path to a comparison CSV written by reconcile")
	flag.Parse()

	if *reportPath == "" {
		flag.Usage()
		os.Exit(1)
	}
	if code := run(*reportPath, os.Stdout); code != 0 {
		os.Exit(code)
	}
}

// table is a parsed comparison report.
type table struct {
	header []string
	col    map[string]int
	fields []string // compared fields, from the *_verdict columns
	rows   [][]string
}

func (t *table) get(row []string, name string) string {
	i, ok := t.col[name]
	if !ok || i >= len(row) {
		return ""
	}
	return row[i]
}

func load(path string) (*table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read report: %w", err)
	}
	r := csv.NewReader(strings.NewReader(strings.TrimPrefix(string(data), bom)))
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse report: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("report has no header")
	}
	t := &table{header: records[0], col: make(map[string]int), rows: records[1:]}
	for i, h := range t.header {
		t.col[h] = i
		if f, ok := strings.CutSuffix(h, "_verdict"); ok && h != "overall_verdict" {
			t.fields = append(t.fields, f)
		}
	}
	return t, nil
}

func run(reportPath string, out io.Writer) int {
	fmt.Fprintln(out, "=== Comparison Report Validation ===")
	fmt.Fprintln(out)

	t, err := load(reportPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		return 1
	}

	phases := []*phase{
		validateHeader(t),
		validateKeys(t),
		validateOverall(t),
		validateFieldVerdicts(t),
	}

	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Fprintf(out, "  %-42s %s\n", p.name, status)
	}

	fmt.Fprintln(out)
	fmt.Fprintf(out, "Rows: %d, compared fields: %s\n", len(t.rows), strings.Join(t.fields, ", "))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Fprintf(out, "\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Fprintf(out, "  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Fprintln(out, "\nAll validations passed.")
		return 0
	}
	fmt.Fprintln(out, "\nValidation FAILED.")
	return 1
}

func validateHeader(t *table) *phase {
	p := &phase{name: "Header"}
	for _, want := range []string{"FlightKey", "overall_verdict", "plan_lead_seconds"} {
		if _, ok := t.col[want]; !ok {
			p.errorf("missing column %q", want)
		}
	}
	if len(t.fields) == 0 {
		p.errorf("no *_verdict columns")
	}
	for _, f := range t.fields {
		for _, side := range []string{"plan_", "dyn_"} {
			if _, ok := t.col[side+f]; !ok {
				p.errorf("missing column %q", side+f)
			}
		}
	}
	return p
}

func validateKeys(t *table) *phase {
	p := &phase{name: "FlightKey: parse, unique, ordered"}
	seen := make(map[string]int)
	prev := ""
	for i, row := range t.rows {
		line := i + 2
		key := t.get(row, "FlightKey")
		k, err := domain.ParseFlightKey(key)
		if err != nil {
			p.errorf("line %d: %v", line, err)
			continue
		}
		if !k.Complete() {
			p.errorf("line %d: incomplete key %s", line, key)
		}
		if first, dup := seen[key]; dup {
			p.errorf("line %d: duplicate key %s (first on line %d)", line, key, first)
		}
		seen[key] = line
		if key < prev {
			p.errorf("line %d: %s sorts before %s", line, key, prev)
		}
		prev = key
	}
	return p
}

// allowed lists the field verdicts each overall verdict admits.
var allowed = map[domain.Overall]map[domain.Verdict]bool{
	domain.OverallPlanOnly: {domain.VerdictDynMissing: true, domain.VerdictBothMissing: true},
	domain.OverallDynOnly:  {domain.VerdictPlanMissing: true, domain.VerdictBothMissing: true},
	domain.OverallMatched: {
		domain.VerdictMatched: true, domain.VerdictMismatched: true,
		domain.VerdictPlanMissing: true, domain.VerdictDynMissing: true, domain.VerdictBothMissing: true,
	},
}

func validateOverall(t *table) *phase {
	p := &phase{name: "Overall verdict and plan lead"}
	for i, row := range t.rows {
		line := i + 2
		overall := domain.Overall(t.get(row, "overall_verdict"))
		ok, known := allowed[overall]
		if !known {
			p.errorf("line %d: unknown overall verdict %q", line, overall)
			continue
		}
		for _, f := range t.fields {
			v := domain.Verdict(t.get(row, f+"_verdict"))
			if !ok[v] {
				p.errorf("line %d: %s verdict %s not possible for %s", line, f, v, overall)
			}
		}
		lead := t.get(row, "plan_lead_seconds")
		switch {
		case overall == domain.OverallMatched && lead == "":
			p.errorf("line %d: matched flight without plan_lead_seconds", line)
		case overall != domain.OverallMatched && lead != "":
			p.errorf("line %d: %s flight with plan_lead_seconds %s", line, overall, lead)
		case lead != "":
			if _, err := strconv.ParseInt(lead, 10, 64); err != nil {
				p.errorf("line %d: plan_lead_seconds %q is not an integer", line, lead)
			}
		}
	}
	return p
}

// expected derives the verdict implied by the two recorded values. Values in
// the report are already canonical, so equality is textual.
func expected(plan, dyn string) domain.Verdict {
	switch {
	case plan == "" && dyn == "":
		return domain.VerdictBothMissing
	case plan == "":
		return domain.VerdictPlanMissing
	case dyn == "":
		return domain.VerdictDynMissing
	case plan == dyn:
		return domain.VerdictMatched
	default:
		return domain.VerdictMismatched
	}
}

func validateFieldVerdicts(t *table) *phase {
	p := &phase{name: "Field verdicts agree with values"}
	for i, row := range t.rows {
		line := i + 2
		for _, f := range t.fields {
			got := domain.Verdict(t.get(row, f+"_verdict"))
			want := expected(t.get(row, "plan_"+f), t.get(row, "dyn_"+f))
			if got != want {
				p.errorf("line %d: %s is %s, values imply %s", line, f, got, want)
			}
		}
	}
	return p
}
