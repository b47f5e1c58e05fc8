package report

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobsync/internal"
	"jobsync/internal/llm"
	"jobsync/internal/storage"
	"jobsync/internal/tracker"
)

var now = time.Date(2026, time.October, 15, 18, 30, 0, 0, time.UTC)

func daysAgo(n int) time.Time {
	return time.Date(2026, time.October, 15-n, 0, 0, 0, 0, time.UTC)
}

func TestAggregateEmpty(t *testing.T) {
	stats := Aggregate(nil, 7, now)
	assert.Equal(t, 0, stats.Total)
	require.Len(t, stats.Counts, 5)
	for _, s := range internal.Statuses {
		assert.Equal(t, 0, stats.Count(s), s)
	}
	assert.Empty(t, stats.Entries)
	assert.Empty(t, stats.Deadlines)
}

func TestAggregateCountsPerStatus(t *testing.T) {
	rows := []internal.TrackerRow{
		{Company: "A", Status: internal.StatusApplied, AppliedOn: daysAgo(0)},
		{Company: "B", Status: internal.StatusApplied, AppliedOn: daysAgo(2)},
		{Company: "C", Status: internal.StatusApplied, AppliedOn: daysAgo(7)},
		{Company: "D", Status: internal.StatusInterview, AppliedOn: daysAgo(3)},
		{Company: "E", Status: internal.StatusInterview, AppliedOn: daysAgo(4)},
	}

	stats := Aggregate(rows, 7, now)
	assert.Equal(t, 5, stats.Total)
	assert.Equal(t, map[internal.Status]int{
		internal.StatusApplied:    3,
		internal.StatusInterview:  2,
		internal.StatusOffer:      0,
		internal.StatusRejected:   0,
		internal.StatusAssessment: 0,
	}, stats.Counts)
	assert.Equal(t, "A", stats.Entries[0].Company)
}

func TestAggregateWindowBounds(t *testing.T) {
	rows := []internal.TrackerRow{
		{Company: "edge", Status: internal.StatusApplied, AppliedOn: daysAgo(7)},
		{Company: "old", Status: internal.StatusApplied, AppliedOn: daysAgo(8)},
		{Company: "future", Status: internal.StatusApplied, AppliedOn: now.AddDate(0, 0, 1)},
		{Company: "undated", Status: internal.StatusApplied},
		{Company: "odd", Status: internal.Status("Ghosted"), AppliedOn: daysAgo(1)},
	}

	stats := Aggregate(rows, 7, now)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.Count(internal.StatusApplied))
	assert.Equal(t, daysAgo(7), stats.From)
	assert.Equal(t, daysAgo(0), stats.To)
}

func TestAggregateEntriesAndDeadlines(t *testing.T) {
	var rows []internal.TrackerRow
	for i := 0; i < 12; i++ {
		rows = append(rows, internal.TrackerRow{Company: "Co", JobTitle: "Eng", Status: internal.StatusApplied, AppliedOn: daysAgo(i % 5)})
	}
	rows = append(rows,
		internal.TrackerRow{Company: "Stripe", JobTitle: "BE", Status: internal.StatusAssessment, AppliedOn: daysAgo(1), Notes: "Complete the take-home by Friday. " + strings.Repeat("x", 300)},
		internal.TrackerRow{Company: "Nearby", JobTitle: "Ops", Status: internal.StatusApplied, AppliedOn: daysAgo(1), Notes: "Office in Abbey Road"},
	)

	stats := Aggregate(rows, 7, now)
	assert.Len(t, stats.Entries, 10)
	require.Len(t, stats.Deadlines, 1)
	assert.Equal(t, "Stripe", stats.Deadlines[0].Company)
	assert.Len(t, []rune(stats.Deadlines[0].Note), 200)
	for _, e := range stats.Entries {
		assert.LessOrEqual(t, len([]rune(e.Notes)), 100)
	}
}

func TestWeekRangeAndName(t *testing.T) {
	assert.Equal(t, "Oct 09 – Oct 15", WeekRange(now, 7))
	assert.Equal(t, "Oct 15 – Oct 15", WeekRange(now, 1))
	assert.Equal(t, "Weekly Summary (Oct 09 – Oct 15)", ReportName(WeekRange(now, 7)))
}

func TestSummaryInput(t *testing.T) {
	in := SummaryInput(Aggregate(nil, 7, now))
	assert.Equal(t, 7, in.Days)
	assert.Equal(t, "No recent applications found.", in.EntriesText)
	assert.Equal(t, "No upcoming deadlines found.", in.DeadlinesText)

	in = SummaryInput(Aggregate([]internal.TrackerRow{
		{Company: "", JobTitle: "SWE", Status: internal.StatusOffer, AppliedOn: daysAgo(1), Notes: "Respond by Monday"},
	}, 7, now))
	assert.Equal(t, 1, in.Offer)
	assert.Contains(t, in.EntriesText, "**Unknown** - SWE")
	assert.Contains(t, in.DeadlinesText, "Respond by Monday")
}

type fakeSummarizer struct {
	out   string
	err   error
	calls int
}

func (f *fakeSummarizer) Summarize(context.Context, llm.SummaryInput) (string, error) {
	f.calls++
	return f.out, f.err
}

type fakeRuns struct{ runs []storage.Run }

func (f *fakeRuns) InsertRun(_ context.Context, run storage.Run) error {
	f.runs = append(f.runs, run)
	return nil
}

func newTestService(store *tracker.MemoryStore, sum Summarizer, runs RunRecorder) *Service {
	svc := NewService(store, store, sum, runs, nil)
	svc.now = func() time.Time { return now }
	return svc
}

func TestServiceWritesReport(t *testing.T) {
	store := tracker.NewMemoryStore(
		internal.TrackerRow{RowID: "1", Company: "Google", JobTitle: "SWE", Status: internal.StatusInterview, AppliedOn: daysAgo(2)},
	)
	runs := &fakeRuns{}
	svc := newTestService(store, &fakeSummarizer{out: "- 🎯 One interview"}, runs)

	res, err := svc.Run(context.Background(), 7, false)
	require.NoError(t, err)
	assert.True(t, res.Written)
	assert.NotEmpty(t, res.ReportID)

	reports := store.Reports()
	require.Len(t, reports, 1)
	assert.Equal(t, "Weekly Summary (Oct 09 – Oct 15)", reports[0].Name)
	assert.Equal(t, "- 🎯 One interview", reports[0].Summary)
	assert.Equal(t, daysAgo(0), reports[0].CreatedOn)

	require.Len(t, runs.runs, 1)
	assert.Equal(t, "report", runs.runs[0].Kind)
	assert.Equal(t, 1, runs.runs[0].Counts["interview"])
	assert.Empty(t, runs.runs[0].Errors)
}

func TestServiceSummaryFailureWritesNothing(t *testing.T) {
	store := tracker.NewMemoryStore()
	runs := &fakeRuns{}
	svc := newTestService(store, &fakeSummarizer{err: errors.New("provider down")}, runs)

	_, err := svc.Run(context.Background(), 7, false)
	require.Error(t, err)
	assert.Empty(t, store.Reports())
	require.Len(t, runs.runs, 1)
	assert.NotEmpty(t, runs.runs[0].Errors)
}

func TestServiceDryRun(t *testing.T) {
	store := tracker.NewMemoryStore()
	runs := &fakeRuns{}
	svc := newTestService(store, &fakeSummarizer{out: "- quiet week"}, runs)

	res, err := svc.Run(context.Background(), 7, true)
	require.NoError(t, err)
	assert.False(t, res.Written)
	assert.Equal(t, "- quiet week", res.Report.Summary)
	assert.Empty(t, store.Reports())
	assert.Empty(t, runs.runs)
}

func TestServiceUsesSQLiteWindowQuery(t *testing.T) {
	ctx := context.Background()
	db, err := storage.Open(filepath.Join(t.TempDir(), "report.db"))
	require.NoError(t, err)
	defer db.Close()

	table := db.Tracker()
	for _, row := range []internal.TrackerRow{
		{Company: "Google", JobTitle: "SWE", Status: internal.StatusApplied, AppliedOn: daysAgo(7)},
		{Company: "Meta", JobTitle: "PM", Status: internal.StatusOffer, AppliedOn: daysAgo(1)},
		{Company: "Stripe", JobTitle: "SRE", Status: internal.StatusApplied, AppliedOn: daysAgo(8)},
		{Company: "Acme", JobTitle: "QA", Status: internal.StatusApplied},
	} {
		_, err := table.Insert(ctx, row)
		require.NoError(t, err)
	}

	svc := NewService(table, table, &fakeSummarizer{out: "- two applications"}, db, nil)
	svc.now = func() time.Time { return now }

	res, err := svc.Run(ctx, 7, false)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Stats.Total)
	assert.Equal(t, 1, res.Stats.Count(internal.StatusOffer))

	reports, err := db.ListWeeklyReports(ctx, 5)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, "- two applications", reports[0].Summary)

	runs, err := db.ListRuns(ctx, "report", 5)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, 2, runs[0].Counts["total"])
}
