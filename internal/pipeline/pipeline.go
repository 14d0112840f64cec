package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/flight-recon/internal/config"
	"github.com/couchcryptid/flight-recon/internal/domain"
	"github.com/couchcryptid/flight-recon/internal/ingest"
	"github.com/couchcryptid/flight-recon/internal/normalize"
	"github.com/couchcryptid/flight-recon/internal/observability"
	"github.com/couchcryptid/flight-recon/internal/quality"
	"github.com/couchcryptid/flight-recon/internal/reconcile"
	"github.com/couchcryptid/flight-recon/internal/report"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Publisher receives the comparisons of each completed day.
type Publisher interface {
	Publish(ctx context.Context, runID string, cmps []domain.Comparison) error
}

// Targets resolves the output target for a group of artifacts: a day stamp
// (YYYYMMDD) for daily outputs, a month stamp (YYYYMM) for the summary.
type Targets func(group string) report.Target

// LocalTargets writes every artifact to one directory.
func LocalTargets(dir string) Targets {
	return func(string) report.Target { return report.LocalDir{Dir: dir} }
}

// Status is the run progress exposed on /status.
type Status struct {
	RunID         string    `json:"run_id"`
	Started       time.Time `json:"started"`
	DaysPlanned   int       `json:"days_planned"`
	DaysCompleted int       `json:"days_completed"`
	LastDate      string    `json:"last_date,omitempty"`
}

// Pipeline runs the reconciliation for one or more reporting days.
type Pipeline struct {
	cfg         *config.Config
	opener      ingest.Opener
	normalizer  *normalize.Normalizer
	comparators []reconcile.Comparator
	auditor     *quality.Auditor
	targets     Targets
	publisher   Publisher
	logger      *slog.Logger
	metrics     *observability.Metrics

	runID   string
	started time.Time
	ready   atomic.Bool

	mu     sync.Mutex
	status Status
}

// New validates the run settings that depend on package tables and builds a
// Pipeline. publisher may be nil.
func New(cfg *config.Config, opener ingest.Opener, targets Targets, publisher Publisher, logger *slog.Logger, metrics *observability.Metrics) (*Pipeline, error) {
	mappings, err := normalize.WithOverrides(cfg.Mappings)
	if err != nil {
		return nil, fmt.Errorf("build mappings: %w", err)
	}
	var opts normalize.Options
	if cfg.ForeignAirlineRegex != "" {
		re, err := regexp.Compile(cfg.ForeignAirlineRegex)
		if err != nil {
			return nil, fmt.Errorf("compile foreign airline pattern: %w", err)
		}
		opts.ForeignAirline = re
	}
	comparators, err := reconcile.Comparators(cfg.ComparedFields)
	if err != nil {
		return nil, err
	}
	fields := make([]quality.Field, len(cfg.AuditFields))
	for i, f := range cfg.AuditFields {
		fields[i] = quality.Field{Name: f.Name, Label: f.Label, Required: f.Required}
	}
	auditor, err := quality.NewAuditor(fields, cfg.TargetAirport, cfg.Orientation == "departure", cfg.EmptyValueSuffixes)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		cfg:         cfg,
		opener:      opener,
		normalizer:  normalize.New(mappings, opts),
		comparators: comparators,
		auditor:     auditor,
		targets:     targets,
		publisher:   publisher,
		logger:      logger,
		metrics:     metrics,
		runID:       uuid.NewString(),
		started:     domain.Now(),
	}
	p.status = Status{RunID: p.runID, Started: p.started}
	return p, nil
}

// RunID identifies this run in logs, workbooks and Kafka headers.
func (p *Pipeline) RunID() string { return p.runID }

// CheckReadiness returns nil once at least one reporting day has completed.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("no reporting day has completed yet")
	}
	return nil
}

// Status returns a snapshot of run progress.
func (p *Pipeline) Status() any {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

func (p *Pipeline) dayDone(date string) {
	p.mu.Lock()
	p.status.DaysCompleted++
	if date > p.status.LastDate {
		p.status.LastDate = date
	}
	p.mu.Unlock()
	p.ready.Store(true)
}

func (p *Pipeline) runInfo() report.RunInfo {
	return report.RunInfo{RunID: p.runID, Started: p.started.Format(domain.TimeLayout)}
}

// Run processes every day the configuration covers: one reporting day, or
// all days of a month followed by the monthly summary.
func (p *Pipeline) Run(ctx context.Context) error {
	days, err := p.cfg.Days()
	if err != nil {
		return err
	}
	p.logger.Info("pipeline started", "run_id", p.runID, "days", len(days), "airport", p.cfg.TargetAirport)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	if p.cfg.Month == "" {
		_, err := p.RunDay(ctx, days[0])
		return err
	}
	_, err = p.RunMonth(ctx, days)
	return err
}

// RunMonth processes the days concurrently, bounded by the configured worker
// count, then writes the monthly summary. The first fatal error cancels the
// remaining days.
func (p *Pipeline) RunMonth(ctx context.Context, days []time.Time) (quality.Monthly, error) {
	if len(days) == 0 {
		return quality.Monthly{}, errors.New("no days to process")
	}
	p.mu.Lock()
	p.status.DaysPlanned = len(days)
	p.mu.Unlock()

	results := make([]*DayResult, len(days))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Workers)
	for i, day := range days {
		g.Go(func() error {
			res, err := p.RunDay(gctx, day)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return quality.Monthly{}, err
	}

	reports := make([]quality.Report, len(results))
	diag := domain.NewDiagnostics()
	for i, r := range results {
		reports[i] = r.Quality
		diag.Merge(r.Diagnostics)
	}
	month := days[0]
	m := quality.Summarize(month.Format("2006-01"), reports, p.cfg.Threshold)

	target := p.targets(month.Format("200601"))
	name := report.MonthlyName(month)
	if err := report.Render(ctx, target, name, func(w io.Writer) error {
		return report.WriteMonthlyWorkbook(w, m, diag, p.runInfo())
	}); err != nil {
		return quality.Monthly{}, err
	}
	p.metrics.OutputsWritten.WithLabelValues("monthly_workbook").Inc()

	flagged := make([]string, 0)
	for _, f := range m.Fields {
		if f.Flagged {
			flagged = append(flagged, f.Field.Name)
		}
	}
	p.logger.Info("monthly summary written",
		"month", m.Month,
		"flights", m.Flights,
		"cancelled", m.Cancelled,
		"flagged", flagged,
		"rows_rejected", len(diag.Rejections),
		"location", target.Location(name),
	)
	return m, nil
}
