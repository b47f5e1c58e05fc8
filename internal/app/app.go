package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"jobsync/internal/cache"
	"jobsync/internal/config"
	"jobsync/internal/connectors"
	gmailconnector "jobsync/internal/connectors/gmail"
	imapconnector "jobsync/internal/connectors/imap"
	"jobsync/internal/llm"
	"jobsync/internal/logging"
	"jobsync/internal/mcptools"
	"jobsync/internal/pipeline"
	"jobsync/internal/report"
	"jobsync/internal/storage"
	"jobsync/internal/tracker"
	"jobsync/internal/tracker/notion"
)

// TrackerBackend pairs the tracker table with the reports table of the same backend.
type TrackerBackend interface {
	tracker.Store
	tracker.ReportWriter
}

func MakeConnector(ctx context.Context, cfg config.Config, provider string) (connectors.MailConnector, error) {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "gmail":
		return gmailconnector.NewConnector(ctx, cfg)
	case "imap":
		return imapconnector.NewConnector(cfg)
	default:
		return nil, fmt.Errorf("unsupported mail provider: %s", provider)
	}
}

func MakeTracker(cfg config.Config, db *storage.DB) (TrackerBackend, error) {
	switch cfg.TrackerBackend {
	case "notion":
		return notion.NewStore(cfg)
	case "sqlite":
		return db.Tracker(), nil
	default:
		return nil, fmt.Errorf("unsupported tracker backend: %s", cfg.TrackerBackend)
	}
}

// MakeProcessedStore uses CACHE_FILE when set and the sqlite table otherwise.
func MakeProcessedStore(cfg config.Config, db *storage.DB) cache.Store {
	if strings.TrimSpace(cfg.CacheFile) != "" {
		return cache.NewFileStore(cfg.CacheFile)
	}
	return db.ProcessedSet()
}

// ProcessedStatus reports the size of the configured processed set and how
// many archived messages it does not contain yet.
func ProcessedStatus(ctx context.Context, cfg config.Config, db *storage.DB) (processed, pending int, err error) {
	set, err := MakeProcessedStore(cfg, db).Load(ctx)
	if err != nil {
		return 0, 0, err
	}
	ids, err := db.ListEmailIDs(ctx)
	if err != nil {
		return 0, 0, err
	}
	for _, id := range ids {
		if !set.Has(id) {
			pending++
		}
	}
	return set.Len(), pending, nil
}

func MakeExtractor(cfg config.Config, logger *slog.Logger) *llm.Extractor {
	return llm.NewExtractor(
		llm.NewClient(cfg),
		llm.NewRetrier(cfg.LLMRetryDelays, logger),
		logger,
		llm.WithMaxInput(cfg.LLMMaxInputChars),
	)
}

// NewSyncService wires the sync pass. A dry run does not archive raw mail.
func NewSyncService(ctx context.Context, cfg config.Config, db *storage.DB, logger *slog.Logger, dryRun bool) (*pipeline.SyncService, error) {
	if err := cfg.Require("OPENROUTER_KEY", cfg.OpenRouterKey); err != nil {
		return nil, err
	}
	conn, err := MakeConnector(ctx, cfg, cfg.MailProvider)
	if err != nil {
		return nil, err
	}
	store, err := MakeTracker(cfg, db)
	if err != nil {
		return nil, err
	}
	archive := db
	if dryRun {
		archive = nil
	}
	fetcher := connectors.NewFetchService(archive, cfg.RawMailDir, conn, logger)
	return pipeline.NewSyncService(fetcher, MakeExtractor(cfg, logger), store, MakeProcessedStore(cfg, db), db, logger), nil
}

func NewReportService(cfg config.Config, db *storage.DB, logger *slog.Logger) (*report.Service, error) {
	if err := cfg.Require("OPENROUTER_KEY", cfg.OpenRouterKey); err != nil {
		return nil, err
	}
	store, err := MakeTracker(cfg, db)
	if err != nil {
		return nil, err
	}
	return report.NewService(store, store, MakeExtractor(cfg, logger), db, logger), nil
}

// NewMCPTools wires the tool server. The tracker and processed set are
// required; mail and model backed tools are left out when their settings are missing.
func NewMCPTools(ctx context.Context, cfg config.Config, db *storage.DB, logger *slog.Logger) (*mcptools.Tools, error) {
	if logger == nil {
		logger = logging.Discard()
	}
	store, err := MakeTracker(cfg, db)
	if err != nil {
		return nil, err
	}
	tools := &mcptools.Tools{
		Tracker:   store,
		Reports:   store,
		Archive:   db,
		Processed: MakeProcessedStore(cfg, db),
		Fetch:     connectors.OptionsFromConfig(cfg),
		Logger:    logger,
	}

	if conn, err := MakeConnector(ctx, cfg, cfg.MailProvider); err != nil {
		logger.Warn("mail tools disabled", "err", err)
	} else {
		tools.Connector = conn
	}
	if sync, err := NewSyncService(ctx, cfg, db, logger, false); err != nil {
		logger.Warn("sync tool disabled", "err", err)
	} else {
		tools.Sync = sync
	}
	if reporter, err := NewReportService(cfg, db, logger); err != nil {
		logger.Warn("report tool disabled", "err", err)
	} else {
		tools.Reporter = reporter
	}
	return tools, nil
}
