package connectors

import (
	"context"

	"jobsync/internal"
	"jobsync/internal/config"
)

// FetchOptions bounds one mailbox read.
type FetchOptions struct {
	Label         string
	Max           int
	NewerThanDays int
}

// MailConnector returns recent messages, newest first, each with a stable id.
type MailConnector interface {
	FetchRecent(ctx context.Context, opts FetchOptions) ([]internal.FetchedMailMessage, error)
}

// OptionsFromConfig builds the fetch bounds from MAIL_LABEL, MAIL_FETCH_MAX
// and MAIL_NEWER_THAN_DAYS.
func OptionsFromConfig(cfg config.Config) FetchOptions {
	return FetchOptions{
		Label:         cfg.MailLabel,
		Max:           cfg.MailFetchMax,
		NewerThanDays: cfg.MailNewerThanDays,
	}
}
