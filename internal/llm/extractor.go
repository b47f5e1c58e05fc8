package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"jobsync/internal"
	"jobsync/internal/logging"
	"jobsync/internal/util"
)

type Category string

const (
	CategoryApplication  Category = "APPLICATION"
	CategoryNotification Category = "NOTIFICATION"
	CategoryOther        Category = "OTHER"
)

const (
	extractionTemperature = 0
	summaryTemperature    = 0.3
)

// Extractor wraps the completion provider with the prompts, the retry policy
// and output validation used by the sync and report flows.
type Extractor struct {
	chat     Completer
	retry    *Retrier
	maxInput int
	now      func() time.Time
	logger   *slog.Logger
}

type ExtractorOption func(*Extractor)

func WithClock(now func() time.Time) ExtractorOption {
	return func(e *Extractor) { e.now = now }
}

func WithMaxInput(chars int) ExtractorOption {
	return func(e *Extractor) {
		if chars > 0 {
			e.maxInput = chars
		}
	}
}

func NewExtractor(chat Completer, retry *Retrier, logger *slog.Logger, opts ...ExtractorOption) *Extractor {
	if logger == nil {
		logger = logging.Discard()
	}
	if retry == nil {
		retry = NewRetrier(nil, logger)
	}
	e := &Extractor{
		chat:     chat,
		retry:    retry,
		maxInput: 3000,
		now:      time.Now,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Classify asks the model whether email is about an application the user made.
func (e *Extractor) Classify(ctx context.Context, email internal.ParsedEmail) (Category, error) {
	prompt := fmt.Sprintf(classificationPrompt,
		util.Truncate(email.Subject, 200),
		util.Truncate(email.From, 100),
		util.Truncate(email.Text, 1000))

	answer, err := e.complete(ctx, "classify", prompt, extractionTemperature)
	if err != nil {
		return "", err
	}
	category := ParseCategory(answer)
	e.logger.Debug("classified email", "email_id", email.ID, "category", category)
	return category, nil
}

// Extract pulls one application record out of email. The returned error
// wraps ErrMalformedOutput when the completion is not a valid record.
func (e *Extractor) Extract(ctx context.Context, email internal.ParsedEmail) (internal.ApplicationRecord, error) {
	today := e.now()
	text := email.Text
	if email.Subject != "" {
		text = "Subject: " + email.Subject + "\n\n" + text
	}
	prompt := fmt.Sprintf(extractionPrompt, util.Truncate(text, e.maxInput), today.Format("2006-01-02"))

	answer, err := e.complete(ctx, "extract", prompt, extractionTemperature)
	if err != nil {
		return internal.ApplicationRecord{}, err
	}

	rec, err := ParseRecord(answer, today)
	if err != nil {
		e.logger.Warn("could not parse extraction", "email_id", email.ID, "err", err)
		return internal.ApplicationRecord{}, err
	}
	rec.SourceEmailID = email.ID
	rec.ReceivedAt = email.ReceivedAt
	return rec, nil
}

// Summarize produces the prose weekly summary for the given stats.
func (e *Extractor) Summarize(ctx context.Context, in SummaryInput) (string, error) {
	return e.complete(ctx, "summarize", renderSummaryPrompt(in), summaryTemperature)
}

func (e *Extractor) complete(ctx context.Context, op, prompt string, temperature float64) (string, error) {
	return Call(ctx, e.retry, op, func(ctx context.Context) (string, error) {
		return e.chat.Complete(ctx, Request{Prompt: prompt, Temperature: temperature})
	})
}
