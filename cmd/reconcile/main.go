package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/couchcryptid/flight-recon/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/flight-recon/internal/adapter/kafka"
	"github.com/couchcryptid/flight-recon/internal/adapter/objstore"
	"github.com/couchcryptid/flight-recon/internal/config"
	"github.com/couchcryptid/flight-recon/internal/domain"
	"github.com/couchcryptid/flight-recon/internal/ingest"
	"github.com/couchcryptid/flight-recon/internal/observability"
	"github.com/couchcryptid/flight-recon/internal/pipeline"
	"github.com/couchcryptid/flight-recon/internal/report"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
)

// Exit codes.
const (
	exitOK     = 0
	exitInput  = 1
	exitOutput = 2
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("reconcile", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to YAML config (default $CONFIG_PATH or reconcile.yaml)")
	date := fs.String("date", "", "reporting date YYYY-MM-DD (overrides reporting_date)")
	month := fs.String("month", "", "reporting month YYYY-MM (overrides month)")
	if err := fs.Parse(args); err != nil {
		return exitInput
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return exitInput
	}
	if err := applyFlags(cfg, *date, *month); err != nil {
		slog.Error("invalid flags", "error", err)
		return exitInput
	}

	logger := sharedobs.NewLogger(cfg.Log.Level, cfg.Log.Format)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opener := ingest.NewOpener(nil)
	targets := pipeline.LocalTargets(cfg.OutputDir)
	if cfg.ObjectStore.Enabled() {
		store, err := objstore.New(cfg.ObjectStore)
		if err != nil {
			logger.Error("object store init failed", "error", err)
			return exitInput
		}
		opener = ingest.NewOpener(store)
		if cfg.ObjectStore.Bucket != "" {
			if err := store.EnsureBucket(ctx); err != nil {
				logger.Error("object store bucket unavailable", "error", err)
				return exitOutput
			}
			targets = func(group string) report.Target { return store.WithPrefix(group) }
			logger.Info("writing outputs to object store", "location", store.Location(""))
		}
	}

	var publisher pipeline.Publisher
	if cfg.Kafka.Enabled() {
		kp := kafkaadapter.NewPublisher(cfg.Kafka, logger)
		defer func() {
			if err := kp.Close(); err != nil {
				logger.Error("kafka publisher close error", "error", err)
			}
		}()
		publisher = kp
		logger.Info("kafka publication enabled", "topic", cfg.Kafka.Topic, "brokers", cfg.Kafka.Brokers)
	}

	p, err := pipeline.New(cfg, opener, targets, publisher, logger, metrics)
	if err != nil {
		logger.Error("pipeline init failed", "error", err)
		return exitInput
	}

	var srv *httpadapter.Server
	if cfg.HTTPAddr != "" {
		srv = httpadapter.NewServer(cfg.HTTPAddr, p, logger)
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server error", "error", err)
			}
		}()
	}

	runErr := p.Run(ctx)
	code := exitCode(runErr)
	if runErr != nil {
		logger.Error("run failed", "run_id", p.RunID(), "error", runErr, "exit_code", code)
	} else {
		logger.Info("run complete", "run_id", p.RunID())
	}

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("http server shutdown error", "error", err)
		}
	}
	if cfg.MetricsFile != "" {
		if err := observability.WriteTextfile(cfg.MetricsFile); err != nil {
			logger.Error("metrics textfile write failed", "path", cfg.MetricsFile, "error", err)
		}
	}
	return code
}

// applyFlags lets -date and -month replace the configured period. They are
// mutually exclusive.
func applyFlags(cfg *config.Config, date, month string) error {
	if date != "" && month != "" {
		return errors.New("-date and -month are mutually exclusive")
	}
	switch {
	case date != "":
		cfg.ReportingDate, cfg.Month = date, ""
	case month != "":
		cfg.ReportingDate, cfg.Month = "", month
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if _, err := cfg.Days(); err != nil {
		return fmt.Errorf("reporting period: %w", err)
	}
	return nil
}

// exitCode maps a run error onto the process exit status. Any result set,
// even an empty one, exits zero.
func exitCode(err error) int {
	var outErr *domain.OutputError
	switch {
	case err == nil:
		return exitOK
	case errors.As(err, &outErr):
		return exitOutput
	default:
		return exitInput
	}
}
