package notion

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	gnt "github.com/dstotijn/go-notion"

	"jobsync/internal"
	"jobsync/internal/config"
	"jobsync/internal/tracker"
)

// Property names of the tracker and reports databases.
const (
	propTitle         = "Title"
	propCompany       = "Company"
	propJobTitle      = "Job Title"
	propStatus        = "Status"
	propAppliedOn     = "Applied On"
	propNotes         = "Notes"
	propApplicationID = "Application ID"

	propReportName      = "Name"
	propReportWeekRange = "Week Range"
	propReportSummary   = "Summary"
	propReportCreatedOn = "Created On"
)

// Notion caps a single rich text object at 2000 characters.
const maxRichTextLen = 2000

const queryPageSize = 100

// Store keeps tracker rows as pages of a Notion database.
type Store struct {
	api               *gnt.Client
	databaseID        string
	reportsDatabaseID string
}

var (
	_ tracker.Store        = (*Store)(nil)
	_ tracker.ReportWriter = (*Store)(nil)
)

func NewStore(cfg config.Config) (*Store, error) {
	if err := cfg.Require("NOTION_TOKEN", cfg.NotionToken); err != nil {
		return nil, err
	}
	if err := cfg.Require("NOTION_DATABASE_ID", cfg.NotionDatabaseID); err != nil {
		return nil, err
	}
	return newStore(cfg, &http.Client{Timeout: 30 * time.Second}), nil
}

func newStore(cfg config.Config, httpClient *http.Client) *Store {
	return &Store{
		api:               gnt.NewClient(cfg.NotionToken, gnt.WithHTTPClient(httpClient)),
		databaseID:        cfg.NotionDatabaseID,
		reportsDatabaseID: cfg.NotionReportsDatabaseID,
	}
}

// QueryAll pages through the whole tracker database.
func (s *Store) QueryAll(ctx context.Context) ([]internal.TrackerRow, error) {
	var out []internal.TrackerRow
	query := &gnt.DatabaseQuery{PageSize: queryPageSize}
	for {
		resp, err := s.api.QueryDatabase(ctx, s.databaseID, query)
		if err != nil {
			return nil, fmt.Errorf("query tracker database: %w", err)
		}
		for _, page := range resp.Results {
			if page.Archived {
				continue
			}
			out = append(out, rowFromPage(page))
		}
		if !resp.HasMore || resp.NextCursor == nil || *resp.NextCursor == "" {
			break
		}
		query = &gnt.DatabaseQuery{PageSize: queryPageSize, StartCursor: *resp.NextCursor}
	}
	return out, nil
}

func (s *Store) Insert(ctx context.Context, row internal.TrackerRow) (string, error) {
	props := rowProperties(row)
	page, err := s.api.CreatePage(ctx, gnt.CreatePageParams{
		ParentType:             gnt.ParentTypeDatabase,
		ParentID:               s.databaseID,
		DatabasePageProperties: &props,
	})
	if err != nil {
		return "", fmt.Errorf("create tracker page: %w", err)
	}
	return page.ID, nil
}

func (s *Store) Update(ctx context.Context, rowID string, upd internal.RowUpdate) error {
	if upd.Empty() {
		return nil
	}
	props := gnt.DatabasePageProperties{}
	if upd.Status != nil {
		props[propStatus] = gnt.DatabasePageProperty{Status: &gnt.SelectOptions{Name: string(*upd.Status)}}
	}
	if upd.Notes != nil {
		props[propNotes] = gnt.DatabasePageProperty{RichText: richText(*upd.Notes)}
	}
	if _, err := s.api.UpdatePage(ctx, rowID, gnt.UpdatePageParams{DatabasePageProperties: props}); err != nil {
		return fmt.Errorf("update tracker page %s: %w", rowID, err)
	}
	return nil
}

func (s *Store) CreateReport(ctx context.Context, report internal.WeeklyReportRow) (string, error) {
	if strings.TrimSpace(s.reportsDatabaseID) == "" {
		return "", fmt.Errorf("missing required env var: NOTION_WEEKLY_REPORTS_DB_ID")
	}
	props := gnt.DatabasePageProperties{
		propReportName:      {Title: richText(report.Name)},
		propReportWeekRange: {RichText: richText(report.WeekRange)},
		propReportSummary:   {RichText: richText(report.Summary)},
		propReportCreatedOn: {Date: &gnt.Date{Start: gnt.NewDateTime(report.CreatedOn, false)}},
	}
	page, err := s.api.CreatePage(ctx, gnt.CreatePageParams{
		ParentType:             gnt.ParentTypeDatabase,
		ParentID:               s.reportsDatabaseID,
		DatabasePageProperties: &props,
	})
	if err != nil {
		return "", fmt.Errorf("create report page: %w", err)
	}
	return page.ID, nil
}

func rowProperties(row internal.TrackerRow) gnt.DatabasePageProperties {
	props := gnt.DatabasePageProperties{
		propTitle:  {Title: richText(pageTitle(row))},
		propStatus: {Status: &gnt.SelectOptions{Name: string(row.Status)}},
	}
	if row.Company != "" {
		props[propCompany] = gnt.DatabasePageProperty{RichText: richText(row.Company)}
	}
	if row.JobTitle != "" {
		props[propJobTitle] = gnt.DatabasePageProperty{RichText: richText(row.JobTitle)}
	}
	if row.Notes != "" {
		props[propNotes] = gnt.DatabasePageProperty{RichText: richText(row.Notes)}
	}
	if !row.AppliedOn.IsZero() {
		props[propAppliedOn] = gnt.DatabasePageProperty{Date: &gnt.Date{Start: gnt.NewDateTime(row.AppliedOn, false)}}
	}
	if row.ApplicationID != "" {
		props[propApplicationID] = gnt.DatabasePageProperty{RichText: richText(row.ApplicationID)}
	}
	return props
}

func pageTitle(row internal.TrackerRow) string {
	switch {
	case row.Company == "":
		return row.JobTitle
	case row.JobTitle == "":
		return row.Company
	default:
		return row.Company + " - " + row.JobTitle
	}
}

func rowFromPage(page gnt.Page) internal.TrackerRow {
	row := internal.TrackerRow{RowID: page.ID}
	props, ok := page.Properties.(gnt.DatabasePageProperties)
	if !ok {
		return row
	}
	row.Company = plainText(props[propCompany].RichText)
	row.JobTitle = plainText(props[propJobTitle].RichText)
	row.Notes = plainText(props[propNotes].RichText)
	row.ApplicationID = plainText(props[propApplicationID].RichText)

	status := props[propStatus].Status
	if status == nil {
		status = props[propStatus].Select
	}
	if status != nil {
		row.Status, _ = internal.ParseStatus(status.Name)
	}
	if date := props[propAppliedOn].Date; date != nil {
		row.AppliedOn = tracker.DateOnly(date.Start.Time)
	}
	return row
}

// richText splits s into chunks Notion accepts.
func richText(s string) []gnt.RichText {
	var out []gnt.RichText
	runes := []rune(s)
	for len(runes) > 0 {
		n := min(len(runes), maxRichTextLen)
		out = append(out, gnt.RichText{Text: &gnt.Text{Content: string(runes[:n])}})
		runes = runes[n:]
	}
	return out
}

func plainText(parts []gnt.RichText) string {
	var b strings.Builder
	for _, part := range parts {
		switch {
		case part.PlainText != "":
			b.WriteString(part.PlainText)
		case part.Text != nil:
			b.WriteString(part.Text.Content)
		}
	}
	return strings.TrimSpace(b.String())
}
