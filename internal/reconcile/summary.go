package reconcile

import (
	"sort"

	"github.com/couchcryptid/flight-recon/internal/domain"
)

// FieldHistogram counts verdict classes for one compared field.
type FieldHistogram struct {
	Field      string
	Matched    int
	Mismatched int
	Missing    int
}

// Summary describes a comparison result set.
type Summary struct {
	Total     int
	ByOverall map[domain.Overall]int
	Cancelled int

	// Lead statistics over MATCHED comparisons. HasLead is false when there
	// are none.
	HasLead           bool
	MeanLeadSeconds   float64
	MedianLeadSeconds float64

	Fields []FieldHistogram
}

// Summarize computes counts by overall verdict, mean and median plan lead
// over MATCHED flights, and a per-field verdict histogram.
func Summarize(cmps []domain.Comparison) Summary {
	s := Summary{Total: len(cmps), ByOverall: make(map[domain.Overall]int)}
	var leads []int64
	hist := make(map[string]*FieldHistogram)
	var order []string

	for _, c := range cmps {
		s.ByOverall[c.Overall]++
		if c.Cancelled {
			s.Cancelled++
		}
		if c.Overall == domain.OverallMatched && c.PlanLeadSeconds != nil {
			leads = append(leads, *c.PlanLeadSeconds)
		}
		for _, f := range c.Fields {
			h, ok := hist[f.Field]
			if !ok {
				h = &FieldHistogram{Field: f.Field}
				hist[f.Field] = h
				order = append(order, f.Field)
			}
			switch {
			case f.Verdict == domain.VerdictMatched:
				h.Matched++
			case f.Verdict == domain.VerdictMismatched:
				h.Mismatched++
			case f.Verdict.Missing():
				h.Missing++
			}
		}
	}

	for _, f := range order {
		s.Fields = append(s.Fields, *hist[f])
	}

	if len(leads) > 0 {
		s.HasLead = true
		var sum int64
		for _, l := range leads {
			sum += l
		}
		s.MeanLeadSeconds = float64(sum) / float64(len(leads))
		sort.Slice(leads, func(i, j int) bool { return leads[i] < leads[j] })
		mid := len(leads) / 2
		if len(leads)%2 == 1 {
			s.MedianLeadSeconds = float64(leads[mid])
		} else {
			s.MedianLeadSeconds = float64(leads[mid-1]+leads[mid]) / 2
		}
	}
	return s
}
