package report

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"jobsync/internal"
	"jobsync/internal/llm"
	"jobsync/internal/logging"
	"jobsync/internal/storage"
	"jobsync/internal/tracker"
)

type Summarizer interface {
	Summarize(ctx context.Context, in llm.SummaryInput) (string, error)
}

// RunRecorder keeps an audit trail of executions. *storage.DB satisfies it.
type RunRecorder interface {
	InsertRun(ctx context.Context, run storage.Run) error
}

type Service struct {
	store      tracker.Store
	writer     tracker.ReportWriter
	summarizer Summarizer
	runs       RunRecorder
	logger     *slog.Logger
	now        func() time.Time
}

type Result struct {
	Stats    Stats
	Report   internal.WeeklyReportRow
	ReportID string
	Written  bool
}

func NewService(store tracker.Store, writer tracker.ReportWriter, summarizer Summarizer, runs RunRecorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Service{
		store:      store,
		writer:     writer,
		summarizer: summarizer,
		runs:       runs,
		logger:     logger,
		now:        time.Now,
	}
}

// Run builds the report for the last days days. With dryRun the summary is
// generated but nothing is written.
func (s *Service) Run(ctx context.Context, days int, dryRun bool) (Result, error) {
	started := s.now()
	traceID := uuid.NewString()
	logger := s.logger.With("trace_id", traceID, "days", days)

	result, err := s.run(ctx, logger, days, dryRun)

	if s.runs != nil && !dryRun {
		run := storage.Run{
			TraceID:    traceID,
			Kind:       "report",
			StartedAt:  started,
			FinishedAt: s.now(),
			Counts:     countsForRun(result.Stats),
		}
		if err != nil {
			run.Errors = []string{err.Error()}
		}
		if rerr := s.runs.InsertRun(ctx, run); rerr != nil {
			logger.Warn("could not record report run", "err", rerr)
		}
	}
	return result, err
}

func (s *Service) run(ctx context.Context, logger *slog.Logger, days int, dryRun bool) (Result, error) {
	now := s.now()
	rows, err := s.queryWindow(ctx, days, now)
	if err != nil {
		return Result{}, fmt.Errorf("query tracker: %w", err)
	}

	stats := Aggregate(rows, days, now)
	logger.Info("aggregated applications",
		"total", stats.Total,
		"applied", stats.Count(internal.StatusApplied),
		"interview", stats.Count(internal.StatusInterview),
		"assessment", stats.Count(internal.StatusAssessment),
		"offer", stats.Count(internal.StatusOffer),
		"rejected", stats.Count(internal.StatusRejected),
		"deadlines", len(stats.Deadlines))

	result := Result{Stats: stats}

	summary, err := s.summarizer.Summarize(ctx, SummaryInput(stats))
	if err != nil {
		return result, fmt.Errorf("generate summary: %w", err)
	}
	if strings.TrimSpace(summary) == "" {
		return result, fmt.Errorf("generate summary: %w", llm.ErrMalformedOutput)
	}

	weekRange := WeekRange(now, stats.Days)
	result.Report = internal.WeeklyReportRow{
		Name:      ReportName(weekRange),
		WeekRange: weekRange,
		Summary:   summary,
		CreatedOn: tracker.DateOnly(now),
	}
	if dryRun {
		return result, nil
	}

	id, err := s.writer.CreateReport(ctx, result.Report)
	if err != nil {
		return result, fmt.Errorf("write report: %w", err)
	}
	result.ReportID = id
	result.Written = true
	logger.Info("weekly report written", "report_id", id, "name", result.Report.Name)
	return result, nil
}

// windowQuerier is implemented by stores that can filter by date themselves.
type windowQuerier interface {
	QueryAppliedSince(ctx context.Context, since time.Time) ([]internal.TrackerRow, error)
}

func (s *Service) queryWindow(ctx context.Context, days int, now time.Time) ([]internal.TrackerRow, error) {
	if wq, ok := s.store.(windowQuerier); ok && days > 0 {
		return wq.QueryAppliedSince(ctx, tracker.DateOnly(now).AddDate(0, 0, -days))
	}
	return s.store.QueryAll(ctx)
}

func countsForRun(stats Stats) map[string]int {
	out := map[string]int{"total": stats.Total, "deadlines": len(stats.Deadlines)}
	for status, n := range stats.Counts {
		out[strings.ToLower(string(status))] = n
	}
	return out
}
