package gmail

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"jobsync/internal"
	"jobsync/internal/config"
	"jobsync/internal/connectors"
)

type Connector struct {
	service *gmail.Service
}

var _ connectors.MailConnector = (*Connector)(nil)

func NewConnector(ctx context.Context, cfg config.Config) (*Connector, error) {
	if err := cfg.Require("GMAIL_CLIENT_ID", cfg.GmailClientID); err != nil {
		return nil, err
	}
	if err := cfg.Require("GMAIL_CLIENT_SECRET", cfg.GmailClientSecret); err != nil {
		return nil, err
	}
	if err := cfg.Require("GMAIL_REFRESH_TOKEN", cfg.GmailRefreshToken); err != nil {
		return nil, err
	}

	oauthCfg := &oauth2.Config{
		ClientID:     cfg.GmailClientID,
		ClientSecret: cfg.GmailClientSecret,
		Endpoint:     google.Endpoint,
		RedirectURL:  cfg.GmailRedirectURI,
		Scopes:       []string{gmail.GmailReadonlyScope},
	}

	tokenSource := oauthCfg.TokenSource(ctx, &oauth2.Token{RefreshToken: cfg.GmailRefreshToken})
	svc, err := gmail.NewService(ctx, option.WithTokenSource(tokenSource))
	if err != nil {
		return nil, err
	}

	return &Connector{service: svc}, nil
}

// SearchQuery builds the Gmail search expression for opts.
func SearchQuery(opts connectors.FetchOptions) string {
	if opts.NewerThanDays <= 0 {
		return ""
	}
	return fmt.Sprintf("newer_than:%dd", opts.NewerThanDays)
}

func (c *Connector) FetchRecent(ctx context.Context, opts connectors.FetchOptions) ([]internal.FetchedMailMessage, error) {
	listCall := c.service.Users.Messages.List("me").Context(ctx)
	if opts.Label != "" {
		listCall = listCall.LabelIds(opts.Label)
	}
	if opts.Max > 0 {
		listCall = listCall.MaxResults(int64(opts.Max))
	}
	if q := SearchQuery(opts); q != "" {
		listCall = listCall.Q(q)
	}
	listResp, err := listCall.Do()
	if err != nil {
		return nil, fmt.Errorf("list gmail messages: %w", err)
	}

	out := make([]internal.FetchedMailMessage, 0, len(listResp.Messages))
	for _, msgRef := range listResp.Messages {
		if msgRef.Id == "" {
			continue
		}

		rawResp, err := c.service.Users.Messages.Get("me", msgRef.Id).Format("raw").Context(ctx).Do()
		if err != nil {
			return nil, fmt.Errorf("get gmail message %s: %w", msgRef.Id, err)
		}
		if rawResp.Raw == "" {
			continue
		}
		rawBytes, err := decodeBase64URL(rawResp.Raw)
		if err != nil {
			return nil, err
		}

		metaResp, err := c.service.Users.Messages.Get("me", msgRef.Id).Format("metadata").MetadataHeaders("Subject", "From", "Date").Context(ctx).Do()
		if err != nil {
			return nil, fmt.Errorf("get gmail headers %s: %w", msgRef.Id, err)
		}
		headers := map[string]string{}
		if metaResp.Payload != nil {
			for _, h := range metaResp.Payload.Headers {
				headers[strings.ToLower(h.Name)] = h.Value
			}
		}

		out = append(out, internal.FetchedMailMessage{
			Provider:   "gmail",
			MessageID:  msgRef.Id,
			Subject:    headers["subject"],
			From:       headers["from"],
			ReceivedAt: receivedAt(rawResp.InternalDate, headers["date"]),
			Raw:        rawBytes,
		})
	}

	return out, nil
}

// receivedAt prefers Gmail's internal date (epoch millis) over the Date header.
func receivedAt(internalDateMs int64, dateHeader string) time.Time {
	if internalDateMs > 0 {
		return time.UnixMilli(internalDateMs).UTC()
	}
	if dateHeader != "" {
		if t, err := mailDate(dateHeader); err == nil {
			return t.UTC()
		}
	}
	return time.Now().UTC()
}

func decodeBase64URL(input string) ([]byte, error) {
	decoded, err := base64.RawURLEncoding.DecodeString(input)
	if err == nil {
		return decoded, nil
	}
	decoded, err = base64.URLEncoding.DecodeString(input)
	if err == nil {
		return decoded, nil
	}
	return nil, fmt.Errorf("decode gmail raw payload: %w", err)
}

func mailDate(value string) (time.Time, error) {
	layouts := []string{time.RFC1123Z, time.RFC1123, time.RFC822Z, time.RFC822, time.RFC850, time.ANSIC, "Mon, 2 Jan 2006 15:04:05 -0700"}
	for _, layout := range layouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported date format")
}
