package pipeline

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/couchcryptid/flight-recon/internal/config"
	"github.com/couchcryptid/flight-recon/internal/domain"
	"github.com/couchcryptid/flight-recon/internal/fold"
	"github.com/couchcryptid/flight-recon/internal/ingest"
	"github.com/couchcryptid/flight-recon/internal/quality"
	"github.com/couchcryptid/flight-recon/internal/reconcile"
	"github.com/couchcryptid/flight-recon/internal/report"
	"github.com/couchcryptid/storm-data-shared/retry"
)

const (
	publishAttempts   = 3
	publishBackoff    = 200 * time.Millisecond
	publishMaxBackoff = 5 * time.Second
)

// DayResult is the outcome of one reporting day.
type DayResult struct {
	Date        time.Time
	Comparisons []domain.Comparison
	Summary     reconcile.Summary
	Quality     quality.Report
	Diagnostics *domain.Diagnostics
}

// specs expands the configured sources for a day.
func (p *Pipeline) specs(day time.Time) []ingest.Spec {
	out := make([]ingest.Spec, len(p.cfg.Sources))
	for i, s := range p.cfg.Sources {
		out[i] = ingest.Spec{
			Path:                config.ExpandPath(s.Path, day),
			Stream:              domain.Stream(s.Stream),
			Schema:              ingest.Schema(s.Schema),
			PayloadColumn:       s.PayloadColumn,
			MessageColumn:       s.MessageColumn,
			InsertTimeColumn:    s.InsertTimeColumn,
			ImplicitTimeColumns: s.ImplicitTimeCols,
			Encoding:            s.Encoding,
			Delimiter:           s.Delimiter,
			Sheet:               s.Sheet,
		}
	}
	return out
}

// streams returns the configured streams in configuration order, once each.
func (p *Pipeline) streams() []domain.Stream {
	seen := make(map[domain.Stream]bool)
	var out []domain.Stream
	for _, s := range p.cfg.Sources {
		st := domain.Stream(s.Stream)
		if !seen[st] {
			seen[st] = true
			out = append(out, st)
		}
	}
	return out
}

// RunDay ingests, folds and reconciles one reporting day and writes its
// outputs. Only unreadable inputs and unwritable outputs return an error.
func (p *Pipeline) RunDay(ctx context.Context, day time.Time) (*DayResult, error) {
	start := domain.Now()
	date := day.Format(domain.DateLayout)
	logger := p.logger.With("run_id", p.runID, "date", date)
	diag := domain.NewDiagnostics()

	srcs, err := ingest.OpenAll(ctx, p.specs(day), p.opener)
	if err != nil {
		logger.Error("open inputs failed", "error", err)
		return nil, err
	}
	defer srcs.Close() //nolint:errcheck // read-only inputs

	folder := fold.New()
	normalized := make(map[domain.Stream][]domain.NormalizedRecord)
	for raw := range srcs.Records(diag) {
		n, ok := p.normalizer.Apply(raw, diag)
		if !ok {
			continue
		}
		folder.Add(n)
		normalized[n.Stream] = append(normalized[n.Stream], n)
	}
	if err := srcs.Err(); err != nil {
		logger.Error("read inputs failed", "error", err)
		return nil, err
	}
	p.recordDiagnostics(logger, diag)

	plan, dyn := folder.States()
	p.metrics.FlightsFolded.WithLabelValues(string(domain.SidePlan)).Add(float64(len(plan)))
	p.metrics.FlightsFolded.WithLabelValues(string(domain.SideDyn)).Add(float64(len(dyn)))

	cmps := reconcile.Reconcile(plan, dyn, p.comparators)
	summary := reconcile.Summarize(cmps)
	p.recordComparisons(cmps)

	rep := p.auditor.Daily(date, onDate(cmps, date))

	res := &DayResult{Date: day, Comparisons: cmps, Summary: summary, Quality: rep, Diagnostics: diag}
	if err := p.writeDay(ctx, logger, res, normalized); err != nil {
		logger.Error("write outputs failed", "error", err)
		return nil, err
	}
	if p.publisher != nil {
		if err := p.publish(ctx, logger, cmps); err != nil {
			logger.Error("publish comparisons failed", "error", err)
			return nil, err
		}
	}

	p.metrics.DaysProcessed.Inc()
	p.metrics.DayDuration.Observe(domain.Since(start).Seconds())
	p.dayDone(date)

	logger.Info("day reconciled",
		"plan_flights", len(plan),
		"dyn_flights", len(dyn),
		"matched", summary.ByOverall[domain.OverallMatched],
		"plan_only", summary.ByOverall[domain.OverallPlanOnly],
		"dyn_only", summary.ByOverall[domain.OverallDynOnly],
		"cancelled", summary.Cancelled,
		"audited", rep.Flights,
		"duration", domain.Since(start),
	)
	return res, nil
}

// onDate keeps the comparisons whose execution date is the reporting day.
// Inputs for one day may carry neighbouring-day flights.
func onDate(cmps []domain.Comparison, date string) []domain.Comparison {
	out := make([]domain.Comparison, 0, len(cmps))
	for _, c := range cmps {
		if c.Key.ExecDate == date {
			out = append(out, c)
		}
	}
	return out
}

func (p *Pipeline) recordDiagnostics(logger *slog.Logger, diag *domain.Diagnostics) {
	for _, s := range diag.StreamsSeen() {
		c := diag.Counts(s)
		p.metrics.RowsIngested.WithLabelValues(string(s)).Add(float64(c.RowsIn))
		p.metrics.KeysUnresolved.WithLabelValues(string(s)).Add(float64(c.KeysUnresolved))
		logger.Info("stream ingested",
			"stream", s,
			"rows_in", c.RowsIn,
			"rows_rejected", c.RowsRejected,
			"keys_unresolved", c.KeysUnresolved,
			"rows_filtered", c.RowsFiltered,
		)
	}
	for _, r := range diag.Rejections {
		p.metrics.RowsRejected.WithLabelValues(string(r.Stream), string(r.Reason)).Inc()
		logger.Warn("row recovered",
			"stream", r.Stream,
			"source", r.Source,
			"line", r.Line,
			"reason", r.Reason,
			"detail", r.Detail,
		)
	}
}

func (p *Pipeline) recordComparisons(cmps []domain.Comparison) {
	for _, c := range cmps {
		p.metrics.Comparisons.WithLabelValues(string(c.Overall)).Inc()
		for _, f := range c.Fields {
			p.metrics.FieldVerdicts.WithLabelValues(f.Field, string(f.Verdict)).Inc()
		}
	}
}

// writeDay renders every daily artifact. The first failure stops the run.
func (p *Pipeline) writeDay(ctx context.Context, logger *slog.Logger, res *DayResult, normalized map[domain.Stream][]domain.NormalizedRecord) error {
	day := res.Date
	target := p.targets(day.Format("20060102"))
	fields := p.cfg.ComparedFields

	type artifact struct {
		kind string
		name string
		fn   func(io.Writer) error
	}
	var artifacts []artifact
	for _, s := range p.streams() {
		recs := normalized[s]
		artifacts = append(artifacts, artifact{"normalized", report.NormalizedName(day, s), func(w io.Writer) error {
			return report.WriteNormalized(w, recs)
		}})
	}
	artifacts = append(artifacts,
		artifact{"comparison", report.ComparisonName(day), func(w io.Writer) error {
			return report.WriteComparisons(w, res.Comparisons, fields)
		}},
		artifact{"diagnostics", report.DiagnosticsName(day), func(w io.Writer) error {
			return report.WriteDiagnostics(w, res.Diagnostics)
		}},
		artifact{"quality_workbook", report.QualityName(day), func(w io.Writer) error {
			return report.WriteDailyWorkbook(w, res.Quality, res.Diagnostics, p.runInfo())
		}},
	)
	if p.cfg.WriteParquet {
		artifacts = append(artifacts, artifact{"comparison_parquet", report.ComparisonParquetName(day), func(w io.Writer) error {
			return report.WriteComparisonParquet(w, res.Comparisons, fields)
		}})
	}

	for _, a := range artifacts {
		if err := report.Render(ctx, target, a.name, a.fn); err != nil {
			return err
		}
		p.metrics.OutputsWritten.WithLabelValues(a.kind).Inc()
		logger.Debug("output written", "kind", a.kind, "location", target.Location(a.name))
	}
	return nil
}

// publish retries transient broker failures with exponential backoff.
func (p *Pipeline) publish(ctx context.Context, logger *slog.Logger, cmps []domain.Comparison) error {
	backoff := publishBackoff
	for attempt := 1; ; attempt++ {
		err := p.publisher.Publish(ctx, p.runID, cmps)
		if err == nil {
			p.metrics.OutputsWritten.WithLabelValues("kafka").Inc()
			return nil
		}
		if attempt == publishAttempts || ctx.Err() != nil {
			return &domain.OutputError{Target: p.cfg.Kafka.Topic, Err: err}
		}
		logger.Warn("publish failed, retrying", "attempt", attempt, "backoff", backoff, "error", err)
		if !retry.SleepWithContext(ctx, backoff) {
			return &domain.OutputError{Target: p.cfg.Kafka.Topic, Err: ctx.Err()}
		}
		backoff = retry.NextBackoff(backoff, publishMaxBackoff)
	}
}
