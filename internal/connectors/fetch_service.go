package connectors

import (
	"context"
	"log/slog"

	"jobsync/internal"
	"jobsync/internal/cache"
	"jobsync/internal/logging"
	"jobsync/internal/storage"
)

type FetchService struct {
	connector MailConnector
	store     *MailStoreService
	logger    *slog.Logger
}

type FetchResult struct {
	Fetched int
	Skipped int
	Stored  int
}

// NewFetchService archives what it fetches when db is non-nil.
func NewFetchService(db *storage.DB, rawMailDir string, connector MailConnector, logger *slog.Logger) *FetchService {
	if logger == nil {
		logger = logging.Discard()
	}
	svc := &FetchService{connector: connector, logger: logger}
	if db != nil {
		svc.store = NewMailStoreService(db, rawMailDir)
	}
	return svc
}

// FetchNew returns the fetched messages whose ids are not in processed,
// oldest first so that later status emails are folded last.
func (s *FetchService) FetchNew(ctx context.Context, opts FetchOptions, processed *cache.Set) ([]internal.FetchedMailMessage, FetchResult, error) {
	messages, err := s.connector.FetchRecent(ctx, opts)
	if err != nil {
		return nil, FetchResult{}, err
	}

	result := FetchResult{Fetched: len(messages)}
	fresh := make([]internal.FetchedMailMessage, 0, len(messages))
	for i := len(messages) - 1; i >= 0; i-- {
		msg := messages[i]
		if processed != nil && processed.Has(msg.MessageID) {
			result.Skipped++
			continue
		}
		if s.store != nil {
			if _, err := s.store.Store(ctx, msg); err != nil {
				return nil, result, err
			}
			result.Stored++
		}
		fresh = append(fresh, msg)
	}

	s.logger.Debug("fetched mail", "fetched", result.Fetched, "already_processed", result.Skipped, "archived", result.Stored)
	return fresh, result, nil
}
