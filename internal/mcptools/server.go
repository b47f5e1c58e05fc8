package mcptools

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const ServerName = "jobsync"

// NewServer registers every tool whose dependencies are set.
func NewServer(t *Tools, version string) *server.MCPServer {
	s := server.NewMCPServer(ServerName, version, server.WithToolCapabilities(false))

	if t.Tracker != nil {
		s.AddTool(mcp.NewTool("create_job_application",
			mcp.WithDescription("Create a job application entry, or update the matching one"),
			mcp.WithString("company", mcp.Required()),
			mcp.WithString("job_title", mcp.Required()),
			mcp.WithString("status", mcp.Required(), mcp.Description("Applied, Interview, Assessment, Offer or Rejected")),
			mcp.WithString("applied_on", mcp.Description("YYYY-MM-DD")),
			mcp.WithString("notes"),
			mcp.WithString("app_id", mcp.Description("application or requisition id from the email")),
		), t.CreateApplication)
		s.AddTool(mcp.NewTool("update_job_application",
			mcp.WithDescription("Advance the status or append notes on the application with this id"),
			mcp.WithString("app_id", mcp.Required()),
			mcp.WithString("status"),
			mcp.WithString("notes"),
		), t.UpdateApplication)
		s.AddTool(mcp.NewTool("find_application_by_id",
			mcp.WithDescription("Find an application by id to check for duplicates"),
			mcp.WithString("app_id", mcp.Required()),
		), t.FindApplication)
		s.AddTool(mcp.NewTool("list_applications",
			mcp.WithDescription("List tracked applications, newest first"),
			mcp.WithNumber("days", mcp.Description("only applications from the last N days; 0 for all")),
		), t.ListApplications)
	}

	if t.Reports != nil {
		s.AddTool(mcp.NewTool("create_weekly_report",
			mcp.WithDescription("Create a weekly report entry"),
			mcp.WithString("title", mcp.Required()),
			mcp.WithString("week_range", mcp.Required()),
			mcp.WithString("summary", mcp.Required()),
			mcp.WithString("created_on", mcp.Description("YYYY-MM-DD, defaults to today")),
		), t.CreateWeeklyReport)
	}
	if t.Reporter != nil {
		s.AddTool(mcp.NewTool("run_weekly_report",
			mcp.WithDescription("Summarise the report window and write the weekly report"),
			mcp.WithNumber("days", mcp.Description("window in days")),
			mcp.WithBoolean("dry_run"),
		), t.RunWeeklyReport)
	}

	if t.Connector != nil {
		s.AddTool(mcp.NewTool("get_recent_emails",
			mcp.WithDescription("Fetch recent emails from the configured mailbox"),
			mcp.WithString("label"),
			mcp.WithNumber("max"),
			mcp.WithNumber("days"),
		), t.RecentEmails)
	}
	if t.Archive != nil {
		s.AddTool(mcp.NewTool("get_email_content",
			mcp.WithDescription("Get the text of an archived email"),
			mcp.WithString("email_id", mcp.Required()),
		), t.EmailContent)
	}
	if t.Processed != nil {
		s.AddTool(mcp.NewTool("mark_email_processed",
			mcp.WithDescription("Mark an email as processed"),
			mcp.WithString("email_id", mcp.Required()),
		), t.MarkProcessed)
	}
	if t.Sync != nil {
		s.AddTool(mcp.NewTool("sync_job_emails",
			mcp.WithDescription("Run one sync pass over new job emails"),
			mcp.WithString("label"),
			mcp.WithNumber("max"),
			mcp.WithNumber("days"),
			mcp.WithBoolean("dry_run"),
		), t.SyncEmails)
	}

	return s
}
