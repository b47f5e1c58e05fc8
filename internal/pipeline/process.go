package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"jobsync/internal"
	"jobsync/internal/cache"
	"jobsync/internal/connectors"
	"jobsync/internal/llm"
	"jobsync/internal/logging"
	"jobsync/internal/reconcile"
	"jobsync/internal/storage"
	"jobsync/internal/tracker"
)

// Fetcher yields the messages not yet in the processed set.
type Fetcher interface {
	FetchNew(ctx context.Context, opts connectors.FetchOptions, processed *cache.Set) ([]internal.FetchedMailMessage, connectors.FetchResult, error)
}

// Extractor is the model-backed half of the pipeline. *llm.Extractor satisfies it.
type Extractor interface {
	Classify(ctx context.Context, email internal.ParsedEmail) (llm.Category, error)
	Extract(ctx context.Context, email internal.ParsedEmail) (internal.ApplicationRecord, error)
}

type RunRecorder interface {
	InsertRun(ctx context.Context, run storage.Run) error
}

type SyncService struct {
	fetcher   Fetcher
	extractor Extractor
	store     tracker.Store
	processed cache.Store
	runs      RunRecorder
	logger    *slog.Logger
	now       func() time.Time
}

type SyncOptions struct {
	Fetch  connectors.FetchOptions
	DryRun bool
}

// SyncResult counts what one run did. Actions holds the reconciled plan,
// which is all a dry run produces.
type SyncResult struct {
	TraceID        string
	Fetched        int
	AlreadySeen    int
	NotApplication int
	Extracted      int
	Malformed      int
	Failed         int
	Inserted       int
	Updated        int
	NotesMerged    int
	Skipped        int
	Committed      int
	Actions        []reconcile.Action
	Errors         []string
}

func NewSyncService(fetcher Fetcher, extractor Extractor, store tracker.Store, processed cache.Store, runs RunRecorder, logger *slog.Logger) *SyncService {
	if logger == nil {
		logger = logging.Discard()
	}
	return &SyncService{
		fetcher:   fetcher,
		extractor: extractor,
		store:     store,
		processed: processed,
		runs:      runs,
		logger:    logger,
		now:       time.Now,
	}
}

// Run executes one sync pass. Only errors that stop the whole batch are
// returned; a failure on a single email is logged, counted and left
// unprocessed so the next run picks it up again.
func (s *SyncService) Run(ctx context.Context, opts SyncOptions) (SyncResult, error) {
	started := s.now()
	result := SyncResult{TraceID: uuid.NewString()}
	logger := s.logger.With("trace_id", result.TraceID)

	err := s.run(ctx, logger, opts, &result)
	if err != nil {
		result.Errors = append(result.Errors, err.Error())
	}

	if s.runs != nil && !opts.DryRun {
		run := storage.Run{
			TraceID:    result.TraceID,
			Kind:       "sync",
			StartedAt:  started,
			FinishedAt: s.now(),
			Counts:     result.counts(),
			Errors:     result.Errors,
		}
		if rerr := s.runs.InsertRun(ctx, run); rerr != nil {
			logger.Warn("could not record sync run", "err", rerr)
		}
	}
	return result, err
}

func (s *SyncService) run(ctx context.Context, logger *slog.Logger, opts SyncOptions, result *SyncResult) error {
	seen, err := s.processed.Load(ctx)
	if err != nil {
		return fmt.Errorf("load processed set: %w", err)
	}

	messages, fetched, err := s.fetcher.FetchNew(ctx, opts.Fetch, seen)
	if err != nil {
		return fmt.Errorf("fetch mail: %w", err)
	}
	result.Fetched = fetched.Fetched
	result.AlreadySeen = fetched.Skipped
	logger.Info("fetched mail", "fetched", fetched.Fetched, "new", len(messages), "already_processed", fetched.Skipped)

	records := make([]internal.ApplicationRecord, 0, len(messages))
	for _, msg := range messages {
		if err := ctx.Err(); err != nil {
			return err
		}
		rec, ok := s.extract(ctx, logger, msg, opts.DryRun, result)
		if ok {
			records = append(records, rec)
		}
	}
	if len(records) == 0 {
		logger.Info("no application records to reconcile")
		return nil
	}

	rows, err := s.store.QueryAll(ctx)
	if err != nil {
		return fmt.Errorf("query tracker: %w", err)
	}
	actions := reconcile.Reconcile(records, rows)
	result.Actions = actions

	for _, action := range actions {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.apply(ctx, logger, action, opts.DryRun, result)
	}

	logger.Info("sync finished",
		"inserted", result.Inserted,
		"updated", result.Updated,
		"notes_merged", result.NotesMerged,
		"skipped", result.Skipped,
		"failed", result.Failed)
	return nil
}

// extract turns one message into a record. Emails that will never yield a
// record (not an application, unparseable, malformed model output) are
// committed straight away.
func (s *SyncService) extract(ctx context.Context, logger *slog.Logger, msg internal.FetchedMailMessage, dryRun bool, result *SyncResult) (internal.ApplicationRecord, bool) {
	logger = logger.With("email_id", msg.MessageID)

	email, err := ParseFetched(msg)
	if err != nil {
		logger.Warn("could not parse email", "err", err)
		result.Malformed++
		s.commit(ctx, logger, dryRun, result, msg.MessageID)
		return internal.ApplicationRecord{}, false
	}

	isApplication, err := s.classify(ctx, logger, email)
	if err != nil {
		s.fail(logger, result, msg.MessageID, "classify", err)
		return internal.ApplicationRecord{}, false
	}
	if !isApplication {
		result.NotApplication++
		s.commit(ctx, logger, dryRun, result, msg.MessageID)
		return internal.ApplicationRecord{}, false
	}

	rec, err := s.extractor.Extract(ctx, email)
	if errors.Is(err, llm.ErrMalformedOutput) {
		logger.Warn("discarding malformed extraction", "err", err)
		result.Malformed++
		s.commit(ctx, logger, dryRun, result, msg.MessageID)
		return internal.ApplicationRecord{}, false
	}
	if err != nil {
		s.fail(logger, result, msg.MessageID, "extract", err)
		return internal.ApplicationRecord{}, false
	}

	result.Extracted++
	logger.Debug("extracted record", "company", rec.Company, "job_title", rec.JobTitle, "status", rec.Status)
	return rec, true
}

func (s *SyncService) classify(ctx context.Context, logger *slog.Logger, email internal.ParsedEmail) (bool, error) {
	rules := DetectApplication(email.Subject, email.Text)
	switch rules.Verdict {
	case VerdictApplication:
		return true, nil
	case VerdictNotApplication:
		logger.Debug("not an application", "reason", rules.Reason, "keyword", rules.Keyword)
		return false, nil
	}

	category, err := s.extractor.Classify(ctx, email)
	if err != nil {
		return false, err
	}
	logger.Debug("model classification", "category", category)
	return category == llm.CategoryApplication, nil
}

func (s *SyncService) apply(ctx context.Context, logger *slog.Logger, action reconcile.Action, dryRun bool, result *SyncResult) {
	logger = logger.With("action", action.Kind, "emails", action.SourceEmailIDs)
	if dryRun {
		logger.Info("planned " + describeAction(action))
		return
	}

	rowID, err := ApplyAction(ctx, s.store, action)
	if err != nil {
		result.Failed++
		result.Errors = append(result.Errors, err.Error())
		logger.Error("could not apply action", "err", err)
		return
	}

	switch action.Kind {
	case reconcile.KindInsert:
		result.Inserted++
	case reconcile.KindUpdateStatus:
		result.Updated++
	default:
		result.Skipped++
		if action.NotesChanged {
			result.NotesMerged++
		}
	}
	logger.Info(describeAction(action), "row_id", rowID, "reason", action.Reason)

	s.commit(ctx, logger, false, result, action.SourceEmailIDs...)
}

func (s *SyncService) commit(ctx context.Context, logger *slog.Logger, dryRun bool, result *SyncResult, ids ...string) {
	if dryRun || len(ids) == 0 {
		return
	}
	if err := s.processed.Commit(ctx, ids...); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("commit processed ids: %v", err))
		logger.Error("could not mark emails processed", "err", err)
		return
	}
	result.Committed += len(ids)
}

func (s *SyncService) fail(logger *slog.Logger, result *SyncResult, emailID, op string, err error) {
	result.Failed++
	result.Errors = append(result.Errors, fmt.Sprintf("%s %s: %v", op, emailID, err))
	logger.Error("email left for the next run", "op", op, "rate_limited", llm.IsRateLimited(err), "err", err)
}

func (r SyncResult) counts() map[string]int {
	return map[string]int{
		"fetched":         r.Fetched,
		"already_seen":    r.AlreadySeen,
		"not_application": r.NotApplication,
		"extracted":       r.Extracted,
		"malformed":       r.Malformed,
		"failed":          r.Failed,
		"inserted":        r.Inserted,
		"updated":         r.Updated,
		"notes_merged":    r.NotesMerged,
		"skipped":         r.Skipped,
		"committed":       r.Committed,
	}
}
