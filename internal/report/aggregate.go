package report

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"jobsync/internal"
	"jobsync/internal/llm"
	"jobsync/internal/tracker"
	"jobsync/internal/util"
)

const (
	DefaultWindowDays = 7
	maxEntries        = 10
	entryNotesLen     = 100
	deadlineNotesLen  = 200
)

var deadlinePattern = regexp.MustCompile(`(?i)\b(deadline|due|by|before|respond by|complete by)\b`)

type Entry struct {
	Company   string
	JobTitle  string
	Status    internal.Status
	AppliedOn time.Time
	Notes     string
}

type Deadline struct {
	Company  string
	JobTitle string
	Note     string
}

// Stats is the weekly activity snapshot handed to the summariser.
type Stats struct {
	Days      int
	From      time.Time
	To        time.Time
	Total     int
	Counts    map[internal.Status]int
	Entries   []Entry
	Deadlines []Deadline
}

func (s Stats) Count(status internal.Status) int {
	return s.Counts[status]
}

// Aggregate counts the rows whose applied date lies within
// [now - windowDays, now], compared by calendar day. Undated rows are left out.
func Aggregate(rows []internal.TrackerRow, windowDays int, now time.Time) Stats {
	if windowDays <= 0 {
		windowDays = DefaultWindowDays
	}
	to := tracker.DateOnly(now)
	from := to.AddDate(0, 0, -windowDays)

	var inWindow []internal.TrackerRow
	for _, row := range rows {
		if row.AppliedOn.IsZero() {
			continue
		}
		day := tracker.DateOnly(row.AppliedOn)
		if day.Before(from) || day.After(to) {
			continue
		}
		inWindow = append(inWindow, row)
	}
	tracker.SortByAppliedOn(inWindow)

	stats := Stats{
		Days:   windowDays,
		From:   from,
		To:     to,
		Total:  len(inWindow),
		Counts: tracker.StatusCounts(inWindow),
	}

	for _, row := range inWindow {
		if len(stats.Entries) < maxEntries {
			stats.Entries = append(stats.Entries, Entry{
				Company:   orUnknown(row.Company),
				JobTitle:  orUnknown(row.JobTitle),
				Status:    row.Status,
				AppliedOn: row.AppliedOn,
				Notes:     util.Truncate(strings.TrimSpace(row.Notes), entryNotesLen),
			})
		}
		if deadlinePattern.MatchString(row.Notes) {
			stats.Deadlines = append(stats.Deadlines, Deadline{
				Company:  orUnknown(row.Company),
				JobTitle: orUnknown(row.JobTitle),
				Note:     util.Truncate(strings.TrimSpace(row.Notes), deadlineNotesLen),
			})
		}
	}

	return stats
}

// WeekRange labels the days-long period ending on now, e.g. "Oct 09 – Oct 15".
func WeekRange(now time.Time, days int) string {
	if days <= 0 {
		days = DefaultWindowDays
	}
	end := tracker.DateOnly(now)
	start := end.AddDate(0, 0, -(days - 1))
	return fmt.Sprintf("%s – %s", start.Format("Jan 02"), end.Format("Jan 02"))
}

func ReportName(weekRange string) string {
	return fmt.Sprintf("Weekly Summary (%s)", weekRange)
}

// SummaryInput renders stats into the summary prompt fields.
func SummaryInput(stats Stats) llm.SummaryInput {
	return llm.SummaryInput{
		Days:          stats.Days,
		Total:         stats.Total,
		Applied:       stats.Count(internal.StatusApplied),
		Interview:     stats.Count(internal.StatusInterview),
		Assessment:    stats.Count(internal.StatusAssessment),
		Offer:         stats.Count(internal.StatusOffer),
		Rejected:      stats.Count(internal.StatusRejected),
		EntriesText:   formatEntries(stats.Entries),
		DeadlinesText: formatDeadlines(stats.Deadlines),
	}
}

func formatEntries(entries []Entry) string {
	if len(entries) == 0 {
		return "No recent applications found."
	}
	var b strings.Builder
	for i, e := range entries {
		fmt.Fprintf(&b, "%d. **%s** - %s\n", i+1, e.Company, e.JobTitle)
		fmt.Fprintf(&b, "   Status: %s | Applied: %s\n", e.Status, e.AppliedOn.Format("2006-01-02"))
		if e.Notes != "" {
			fmt.Fprintf(&b, "   Notes: %s\n", e.Notes)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatDeadlines(deadlines []Deadline) string {
	if len(deadlines) == 0 {
		return "No upcoming deadlines found."
	}
	var b strings.Builder
	for i, d := range deadlines {
		fmt.Fprintf(&b, "%d. **%s** - %s\n   Note: %s\n\n", i+1, d.Company, d.JobTitle, d.Note)
	}
	return strings.TrimRight(b.String(), "\n")
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return "Unknown"
	}
	return s
}
