package listener

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"jobsync/internal/config"
	"jobsync/internal/connectors"
	"jobsync/internal/logging"
	"jobsync/internal/pipeline"
	"jobsync/internal/report"
)

// LastReportKey is the metadata key holding when the last weekly report was written.
const LastReportKey = "last_report_at"

type Syncer interface {
	Run(ctx context.Context, opts pipeline.SyncOptions) (pipeline.SyncResult, error)
}

type Reporter interface {
	Run(ctx context.Context, days int, dryRun bool) (report.Result, error)
}

// Metadata is a small key/value store. *storage.DB satisfies it.
type Metadata interface {
	GetMetadata(ctx context.Context, key string) (*string, error)
	SetMetadata(ctx context.Context, key, value string) error
}

type Service struct {
	sync     Syncer
	reporter Reporter
	meta     Metadata
	cfg      config.Config
	logger   *slog.Logger
	now      func() time.Time
}

// NewService builds the listener. A nil reporter disables weekly reports.
func NewService(sync Syncer, reporter Reporter, meta Metadata, cfg config.Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Service{
		sync:     sync,
		reporter: reporter,
		meta:     meta,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *Service) Run(ctx context.Context) error {
	interval := time.Duration(s.cfg.ListenerIntervalSec) * time.Second
	if interval <= 0 {
		interval = time.Hour
	}
	s.logger.Info("listener started", "interval", interval, "provider", s.cfg.MailProvider)

	for {
		if err := s.RunCycle(ctx); err != nil {
			s.logger.Error("listener cycle error", "err", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(interval):
		}
	}
}

// RunCycle syncs once and writes the weekly report when one is due.
func (s *Service) RunCycle(ctx context.Context) error {
	res, err := s.sync.Run(ctx, pipeline.SyncOptions{Fetch: connectors.OptionsFromConfig(s.cfg)})
	if err != nil {
		return fmt.Errorf("sync: %w", err)
	}
	s.logger.Info("listener cycle done",
		"fetched", res.Fetched,
		"inserted", res.Inserted,
		"updated", res.Updated,
		"failed", res.Failed)

	return s.maybeReport(ctx)
}

func (s *Service) maybeReport(ctx context.Context) error {
	if s.reporter == nil || s.cfg.ReportIntervalDays <= 0 {
		return nil
	}

	now := s.now()
	due, err := s.reportDue(ctx, now)
	if err != nil || !due {
		return err
	}

	res, err := s.reporter.Run(ctx, s.cfg.ReportWindowDays, false)
	if err != nil {
		return fmt.Errorf("weekly report: %w", err)
	}
	if err := s.meta.SetMetadata(ctx, LastReportKey, now.UTC().Format(time.RFC3339)); err != nil {
		return err
	}
	s.logger.Info("weekly report written", "name", res.Report.Name, "report_id", res.ReportID)
	return nil
}

func (s *Service) reportDue(ctx context.Context, now time.Time) (bool, error) {
	last, err := s.meta.GetMetadata(ctx, LastReportKey)
	if err != nil {
		return false, err
	}
	if last == nil {
		return true, nil
	}
	at, err := time.Parse(time.RFC3339, *last)
	if err != nil {
		s.logger.Warn("ignoring unreadable last report time", "value", *last)
		return true, nil
	}
	every := time.Duration(s.cfg.ReportIntervalDays) * 24 * time.Hour
	return now.Sub(at) >= every, nil
}
