package pipeline

import (
	"bytes"
	"fmt"
	"net/mail"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/jhillyerd/enmime"
	pdf "github.com/ledongthuc/pdf"

	"jobsync/internal"
	"jobsync/internal/util"
)

// ParseRawEmail decodes an RFC 822 message into the text view used for
// classification and extraction. The HTML part is only used when there is no
// plain text part. Text from PDF attachments is appended after the body.
func ParseRawEmail(id string, raw []byte) (internal.ParsedEmail, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return internal.ParsedEmail{}, fmt.Errorf("read envelope: %w", err)
	}

	body := strings.TrimSpace(env.Text)
	if env.HTML != "" && !hasPlainPart(env) {
		body = htmlToText(env.HTML)
	}

	parts := []string{}
	if body != "" {
		parts = append(parts, body)
	}

	attachmentNames := make([]string, 0, len(env.Attachments))
	for _, att := range env.Attachments {
		filename := strings.TrimSpace(att.FileName)
		if filename == "" {
			filename = "attachment"
		}
		attachmentNames = append(attachmentNames, filename)

		if !strings.HasSuffix(strings.ToLower(filename), ".pdf") {
			continue
		}
		text, err := pdfText(att.Content)
		if err != nil || text == "" {
			continue
		}
		parts = append(parts, "Attachment "+filename+":\n"+text)
	}

	email := internal.ParsedEmail{
		ID:              id,
		Subject:         strings.TrimSpace(env.GetHeader("Subject")),
		From:            strings.TrimSpace(env.GetHeader("From")),
		Text:            strings.Join(parts, "\n\n"),
		AttachmentNames: attachmentNames,
	}
	if date, err := mail.ParseDate(env.GetHeader("Date")); err == nil {
		email.ReceivedAt = date.UTC()
	}
	return email, nil
}

// ParseFetched parses a fetched message, preferring the connector's metadata
// over the headers found in the raw body.
func ParseFetched(msg internal.FetchedMailMessage) (internal.ParsedEmail, error) {
	email, err := ParseRawEmail(msg.MessageID, msg.Raw)
	if err != nil {
		return internal.ParsedEmail{}, err
	}
	email.Subject = util.FirstNonEmpty(msg.Subject, email.Subject)
	email.From = util.FirstNonEmpty(msg.From, email.From)
	if !msg.ReceivedAt.IsZero() {
		email.ReceivedAt = msg.ReceivedAt
	}
	return email, nil
}

// hasPlainPart reports whether the sender supplied a text/plain body. enmime
// fills Text from the HTML part otherwise.
func hasPlainPart(env *enmime.Envelope) bool {
	if env.Root == nil {
		return env.Text != ""
	}
	part := env.Root.BreadthMatchFirst(func(p *enmime.Part) bool {
		return p.ContentType == "text/plain" && p.Disposition != "attachment"
	})
	return part != nil
}

var blockTags = "p, div, br, li, tr, h1, h2, h3, h4, h5, h6, table, section, article"

func htmlToText(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	doc.Find("script, style, head").Remove()
	doc.Find(blockTags).Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml("\n")
	})
	doc.Find("td, th").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml(" ")
	})

	lines := util.SplitLines(doc.Text())
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if line = util.CollapseSpaces(line); line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

func pdfText(content []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", err
	}

	out := []string{}
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			continue
		}
		out = append(out, util.SplitLines(text)...)
	}
	return strings.Join(out, "\n"), nil
}
