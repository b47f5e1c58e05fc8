package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"jobsync/internal"
	"jobsync/internal/llm"
)

// ParseResult is what a one-shot parse of a single message produced.
// Record is nil when the email was not classified as an application.
type ParseResult struct {
	Email    internal.ParsedEmail
	Rules    DetectResult
	Category llm.Category
	Record   *internal.ApplicationRecord
}

// ParseFile runs classification and extraction for one .eml file without
// touching the tracker or the processed set. A nil extractor stops after the
// keyword rules.
func ParseFile(ctx context.Context, extractor Extractor, path string) (ParseResult, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return ParseResult{}, err
	}
	id := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	email, err := ParseRawEmail(id, raw)
	if err != nil {
		return ParseResult{}, err
	}

	res := ParseResult{Email: email, Rules: DetectApplication(email.Subject, email.Text)}
	switch res.Rules.Verdict {
	case VerdictApplication:
		res.Category = llm.CategoryApplication
	case VerdictNotApplication:
		res.Category = llm.CategoryOther
	default:
		if extractor == nil {
			return res, nil
		}
		res.Category, err = extractor.Classify(ctx, email)
		if err != nil {
			return res, fmt.Errorf("classify: %w", err)
		}
	}

	if res.Category != llm.CategoryApplication || extractor == nil {
		return res, nil
	}
	rec, err := extractor.Extract(ctx, email)
	if err != nil {
		return res, fmt.Errorf("extract: %w", err)
	}
	res.Record = &rec
	return res, nil
}
