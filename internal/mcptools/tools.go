package mcptools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"jobsync/internal"
	"jobsync/internal/cache"
	"jobsync/internal/connectors"
	"jobsync/internal/logging"
	"jobsync/internal/pipeline"
	"jobsync/internal/reconcile"
	"jobsync/internal/report"
	"jobsync/internal/storage"
	"jobsync/internal/tracker"
)

const dateLayout = "2006-01-02"

type Syncer interface {
	Run(ctx context.Context, opts pipeline.SyncOptions) (pipeline.SyncResult, error)
}

type Reporter interface {
	Run(ctx context.Context, days int, dryRun bool) (report.Result, error)
}

// Archive resolves an archived message. *storage.DB satisfies it.
type Archive interface {
	GetEmail(ctx context.Context, id string) (*storage.EmailRow, error)
}

// Tools holds the handlers exposed over MCP. A nil dependency leaves its
// tools unregistered.
type Tools struct {
	Tracker   tracker.Store
	Reports   tracker.ReportWriter
	Connector connectors.MailConnector
	Archive   Archive
	Processed cache.Store
	Sync      Syncer
	Reporter  Reporter
	Fetch     connectors.FetchOptions
	Logger    *slog.Logger

	now func() time.Time
}

func (t *Tools) logger() *slog.Logger {
	if t.Logger == nil {
		return logging.Discard()
	}
	return t.Logger
}

func (t *Tools) clock() time.Time {
	if t.now != nil {
		return t.now()
	}
	return time.Now()
}

type applicationView struct {
	RowID         string `json:"row_id"`
	Company       string `json:"company"`
	JobTitle      string `json:"job_title"`
	Status        string `json:"status"`
	AppliedOn     string `json:"applied_on,omitempty"`
	Notes         string `json:"notes,omitempty"`
	ApplicationID string `json:"app_id,omitempty"`
}

func viewOf(row internal.TrackerRow) applicationView {
	v := applicationView{
		RowID:         row.RowID,
		Company:       row.Company,
		JobTitle:      row.JobTitle,
		Status:        string(row.Status),
		Notes:         row.Notes,
		ApplicationID: row.ApplicationID,
	}
	if !row.AppliedOn.IsZero() {
		v.AppliedOn = row.AppliedOn.Format(dateLayout)
	}
	return v
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	blob, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(blob)), nil
}

func parseDay(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	return time.Parse(dateLayout, raw)
}

// CreateApplication reconciles one record against the tracker and applies
// the resulting action, so an existing match is updated rather than duplicated.
func (t *Tools) CreateApplication(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	company, err := req.RequireString("company")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	title, err := req.RequireString("job_title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rawStatus, err := req.RequireString("status")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	appliedOn, err := parseDay(req.GetString("applied_on", ""))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("applied_on must be YYYY-MM-DD: %v", err)), nil
	}
	status, _ := internal.ParseStatus(rawStatus)

	rec := internal.ApplicationRecord{
		Company:       company,
		JobTitle:      title,
		Status:        status,
		AppliedOn:     appliedOn,
		Notes:         req.GetString("notes", ""),
		ApplicationID: strings.TrimSpace(req.GetString("app_id", "")),
		ReceivedAt:    t.clock(),
	}
	return t.reconcileOne(ctx, rec)
}

// UpdateApplication moves the row carrying app_id forward. The status
// progression still applies, so stale updates are reported and skipped.
func (t *Tools) UpdateApplication(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	appID, err := req.RequireString("app_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	row, found, err := t.findByID(ctx, appID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Error finding application: %v", err)), nil
	}
	if !found {
		return mcp.NewToolResultError(fmt.Sprintf("No existing application found with ID: %s", appID)), nil
	}

	rec := internal.ApplicationRecord{
		Company:       row.Company,
		JobTitle:      row.JobTitle,
		Status:        row.Status,
		AppliedOn:     row.AppliedOn,
		Notes:         req.GetString("notes", ""),
		ApplicationID: appID,
		ReceivedAt:    t.clock(),
	}
	if raw := req.GetString("status", ""); strings.TrimSpace(raw) != "" {
		rec.Status, _ = internal.ParseStatus(raw)
	}
	return t.reconcileOne(ctx, rec)
}

func (t *Tools) reconcileOne(ctx context.Context, rec internal.ApplicationRecord) (*mcp.CallToolResult, error) {
	rows, err := t.Tracker.QueryAll(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Error reading tracker: %v", err)), nil
	}
	actions := reconcile.Reconcile([]internal.ApplicationRecord{rec}, rows)
	if len(actions) != 1 {
		return nil, fmt.Errorf("reconcile returned %d actions for one record", len(actions))
	}
	action := actions[0]

	id, err := pipeline.ApplyAction(ctx, t.Tracker, action)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Error writing job application: %v", err)), nil
	}
	t.logger().Info("mcp tracker write", "kind", action.Kind, "company", rec.Company, "title", rec.JobTitle, "row_id", id)

	switch {
	case action.Kind == reconcile.KindInsert:
		return mcp.NewToolResultText(fmt.Sprintf("Created job application: %s - %s (%s)", rec.Company, rec.JobTitle, id)), nil
	case action.Kind == reconcile.KindUpdateStatus:
		return mcp.NewToolResultText(fmt.Sprintf("Updated job application: %s - %s -> %s", rec.Company, rec.JobTitle, action.Status)), nil
	case action.NotesChanged:
		return mcp.NewToolResultText(fmt.Sprintf("Appended notes to %s - %s (%s)", rec.Company, rec.JobTitle, action.Reason)), nil
	default:
		return mcp.NewToolResultText(fmt.Sprintf("Skipped %s - %s: %s", rec.Company, rec.JobTitle, action.Reason)), nil
	}
}

func (t *Tools) findByID(ctx context.Context, appID string) (internal.TrackerRow, bool, error) {
	rows, err := t.Tracker.QueryAll(ctx)
	if err != nil {
		return internal.TrackerRow{}, false, err
	}
	row, found := reconcile.BuildIndex(rows).Lookup(reconcile.MatchKey{ApplicationID: appID})
	return row, found, nil
}

func (t *Tools) FindApplication(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	appID, err := req.RequireString("app_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	row, found, err := t.findByID(ctx, appID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Error finding application: %v", err)), nil
	}
	if !found {
		return mcp.NewToolResultText(fmt.Sprintf("No existing application found with ID: %s", appID)), nil
	}
	return jsonResult(viewOf(row))
}

// ListApplications returns the tracker rows, newest first. days > 0 keeps
// only rows applied within that many days.
func (t *Tools) ListApplications(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rows, err := t.Tracker.QueryAll(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Error reading tracker: %v", err)), nil
	}
	days := req.GetInt("days", 0)
	from := tracker.DateOnly(t.clock()).AddDate(0, 0, -days)

	views := make([]applicationView, 0, len(rows))
	for _, row := range rows {
		if days > 0 && (row.AppliedOn.IsZero() || tracker.DateOnly(row.AppliedOn).Before(from)) {
			continue
		}
		views = append(views, viewOf(row))
	}
	sort.SliceStable(views, func(i, j int) bool { return views[i].AppliedOn > views[j].AppliedOn })
	return jsonResult(views)
}

func (t *Tools) CreateWeeklyReport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	weekRange, err := req.RequireString("week_range")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	summary, err := req.RequireString("summary")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	createdOn, err := parseDay(req.GetString("created_on", ""))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("created_on must be YYYY-MM-DD: %v", err)), nil
	}
	if createdOn.IsZero() {
		createdOn = t.clock()
	}

	id, err := t.Reports.CreateReport(ctx, internal.WeeklyReportRow{
		Name:      title,
		WeekRange: weekRange,
		Summary:   summary,
		CreatedOn: createdOn,
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Error creating weekly report: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Created weekly report: %s (%s)", title, id)), nil
}

// RunWeeklyReport aggregates the window, asks the model for a summary and
// writes the report unless dry_run is set.
func (t *Tools) RunWeeklyReport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	days := req.GetInt("days", 7)
	res, err := t.Reporter.Run(ctx, days, req.GetBool("dry_run", false))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Error running weekly report: %v", err)), nil
	}
	return jsonResult(map[string]any{
		"name":       res.Report.Name,
		"week_range": res.Report.WeekRange,
		"summary":    res.Report.Summary,
		"total":      res.Stats.Total,
		"written":    res.Written,
		"report_id":  res.ReportID,
	})
}

func (t *Tools) fetchOptions(req mcp.CallToolRequest) connectors.FetchOptions {
	return connectors.FetchOptions{
		Label:         req.GetString("label", t.Fetch.Label),
		Max:           req.GetInt("max", t.Fetch.Max),
		NewerThanDays: req.GetInt("days", t.Fetch.NewerThanDays),
	}
}

type emailView struct {
	ID         string `json:"id"`
	Subject    string `json:"subject"`
	From       string `json:"from,omitempty"`
	ReceivedAt string `json:"received_at,omitempty"`
	Processed  bool   `json:"processed"`
}

func (t *Tools) RecentEmails(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	messages, err := t.Connector.FetchRecent(ctx, t.fetchOptions(req))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Error fetching emails: %v", err)), nil
	}
	processed := cache.NewSet()
	if t.Processed != nil {
		if processed, err = t.Processed.Load(ctx); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Error loading processed set: %v", err)), nil
		}
	}

	views := make([]emailView, 0, len(messages))
	for _, msg := range messages {
		v := emailView{ID: msg.MessageID, Subject: msg.Subject, From: msg.From, Processed: processed.Has(msg.MessageID)}
		if !msg.ReceivedAt.IsZero() {
			v.ReceivedAt = msg.ReceivedAt.UTC().Format(time.RFC3339)
		}
		views = append(views, v)
	}
	return jsonResult(views)
}

// EmailContent renders an archived message to plain text.
func (t *Tools) EmailContent(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("email_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	row, err := t.Archive.GetEmail(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Error reading archive: %v", err)), nil
	}
	if row == nil || row.RawRef == "" {
		return mcp.NewToolResultError(fmt.Sprintf("email %s is not archived", id)), nil
	}
	raw, err := os.ReadFile(row.RawRef)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Error reading raw message: %v", err)), nil
	}
	email, err := pipeline.ParseRawEmail(id, raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Error parsing message: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Subject: %s\nFrom: %s\n\n%s", email.Subject, email.From, email.Text)), nil
}

func (t *Tools) MarkProcessed(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("email_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := t.Processed.Commit(ctx, id); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Error marking email processed: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Marked email %s as processed", id)), nil
}

// SyncEmails runs one full sync pass and reports its counts.
func (t *Tools) SyncEmails(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	opts := pipeline.SyncOptions{Fetch: t.fetchOptions(req), DryRun: req.GetBool("dry_run", false)}
	res, err := t.Sync.Run(ctx, opts)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Error syncing emails: %v", err)), nil
	}

	planned := make([]string, 0, len(res.Actions))
	for _, a := range res.Actions {
		planned = append(planned, fmt.Sprintf("%s %s / %s status=%s", a.Kind, a.Record.Company, a.Record.JobTitle, a.Record.Status))
	}
	return jsonResult(map[string]any{
		"fetched":   res.Fetched,
		"new":       res.Fetched - res.AlreadySeen,
		"extracted": res.Extracted,
		"inserted":  res.Inserted,
		"updated":   res.Updated,
		"skipped":   res.Skipped,
		"failed":    res.Failed,
		"dry_run":   opts.DryRun,
		"actions":   planned,
		"errors":    res.Errors,
	})
}
