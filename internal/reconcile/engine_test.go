package reconcile

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobsync/internal"
)

func day(n int) time.Time {
	return time.Date(2026, time.October, n, 9, 0, 0, 0, time.UTC)
}

func rec(company, title string, status internal.Status, on time.Time, emailID string) internal.ApplicationRecord {
	return internal.ApplicationRecord{
		Company:       company,
		JobTitle:      title,
		Status:        status,
		AppliedOn:     on,
		ReceivedAt:    on,
		SourceEmailID: emailID,
	}
}

// apply mimics a tracker store so that successive runs can be chained.
func apply(t *testing.T, rows []internal.TrackerRow, actions []Action) []internal.TrackerRow {
	t.Helper()
	out := append([]internal.TrackerRow(nil), rows...)
	for _, a := range actions {
		switch {
		case a.Kind == KindInsert:
			row := a.Row
			row.RowID = fmt.Sprintf("row-%d", len(out)+1)
			out = append(out, row)
		case a.Writes():
			found := false
			for i := range out {
				if out[i].RowID != a.RowID {
					continue
				}
				found = true
				upd := a.Update()
				if upd.Status != nil {
					out[i].Status = *upd.Status
				}
				if upd.Notes != nil {
					out[i].Notes = *upd.Notes
				}
			}
			require.True(t, found, "row %s not found", a.RowID)
		}
	}
	return out
}

func kinds(actions []Action) []Kind {
	out := make([]Kind, 0, len(actions))
	for _, a := range actions {
		out = append(out, a.Kind)
	}
	return out
}

func TestReconcileInsertThenUpdateAcrossRuns(t *testing.T) {
	first := Reconcile([]internal.ApplicationRecord{
		rec("Google", "SWE", internal.StatusApplied, day(1), "m1"),
	}, nil)
	require.Len(t, first, 1)
	assert.Equal(t, KindInsert, first[0].Kind)

	rows := apply(t, nil, first)

	second := Reconcile([]internal.ApplicationRecord{
		rec("  google ", "swe", internal.StatusInterview, day(3), "m2"),
	}, rows)
	require.Len(t, second, 1)
	assert.Equal(t, KindUpdateStatus, second[0].Kind)
	assert.Equal(t, internal.StatusInterview, second[0].Status)
	assert.Equal(t, rows[0].RowID, second[0].RowID)
	assert.Equal(t, []string{"m2"}, second[0].SourceEmailIDs)
}

func TestReconcileStaleStatusIsSkipped(t *testing.T) {
	existing := []internal.TrackerRow{
		{RowID: "r1", Company: "Meta", JobTitle: "PM", Status: internal.StatusOffer, AppliedOn: day(1)},
	}

	actions := Reconcile([]internal.ApplicationRecord{
		rec("Meta", "PM", internal.StatusApplied, day(5), "m1"),
	}, existing)

	require.Len(t, actions, 1)
	assert.Equal(t, KindSkip, actions[0].Kind)
	assert.Equal(t, ReasonStaleStatus, actions[0].Reason)
	assert.False(t, actions[0].Writes())

	rows := apply(t, existing, actions)
	assert.Equal(t, internal.StatusOffer, rows[0].Status)
}

func TestReconcileIsIdempotent(t *testing.T) {
	batch := []internal.ApplicationRecord{
		rec("Google", "SWE", internal.StatusApplied, day(1), "m1"),
		rec("Google", "SWE", internal.StatusInterview, day(3), "m2"),
		rec("Meta", "PM", internal.StatusApplied, day(2), "m3"),
		rec("Stripe", "Backend Engineer", internal.StatusRejected, day(4), "m4"),
	}
	batch[1].Notes = "Onsite on Friday"
	batch[2].Notes = "Remote, London"

	existing := []internal.TrackerRow{
		{RowID: "r0", Company: "Stripe", JobTitle: "Backend Engineer", Status: internal.StatusAssessment, Notes: "Take-home due"},
	}

	first := Reconcile(batch, existing)
	rows := apply(t, existing, first)

	second := Reconcile(batch, rows)
	for _, a := range second {
		assert.Equal(t, KindSkip, a.Kind, "action %+v", a)
		assert.False(t, a.Writes(), "action %+v", a)
	}
}

func TestReconcileCoalescesBatchInEitherOrder(t *testing.T) {
	orders := map[string][]internal.ApplicationRecord{
		"applied first": {
			rec("Google", "SWE", internal.StatusApplied, day(1), "m1"),
			rec("Google", "SWE", internal.StatusInterview, day(3), "m2"),
		},
		"interview first": {
			rec("Google", "SWE", internal.StatusInterview, day(1), "m1"),
			rec("Google", "SWE", internal.StatusApplied, day(3), "m2"),
		},
		"input reversed": {
			rec("Google", "SWE", internal.StatusInterview, day(3), "m2"),
			rec("Google", "SWE", internal.StatusApplied, day(1), "m1"),
		},
	}

	for name, batch := range orders {
		t.Run(name, func(t *testing.T) {
			actions := Reconcile(batch, nil)
			require.Len(t, actions, 1)
			assert.Equal(t, KindInsert, actions[0].Kind)
			assert.Equal(t, internal.StatusInterview, actions[0].Row.Status)
			assert.ElementsMatch(t, []string{"m1", "m2"}, actions[0].SourceEmailIDs)
		})
	}

	t.Run("against existing row", func(t *testing.T) {
		existing := []internal.TrackerRow{{RowID: "r1", Company: "Google", JobTitle: "SWE", Status: internal.StatusApplied}}
		actions := Reconcile(orders["interview first"], existing)
		require.Len(t, actions, 1)
		assert.Equal(t, KindUpdateStatus, actions[0].Kind)
		assert.Equal(t, internal.StatusInterview, actions[0].Status)
	})
}

func TestReconcileUnmatchable(t *testing.T) {
	existing := []internal.TrackerRow{
		{RowID: "r1", Company: "", JobTitle: "", Status: internal.StatusApplied, ApplicationID: "A-1"},
		{RowID: "r2", Company: "Google", JobTitle: "SWE", Status: internal.StatusApplied},
	}

	for _, rows := range [][]internal.TrackerRow{nil, existing} {
		r := rec("  ", "", internal.StatusOffer, day(2), "m9")
		r.ApplicationID = "A-1"
		actions := Reconcile([]internal.ApplicationRecord{r}, rows)
		require.Len(t, actions, 1)
		assert.Equal(t, KindSkip, actions[0].Kind)
		assert.Equal(t, ReasonUnmatchable, actions[0].Reason)
		assert.Equal(t, []string{"m9"}, actions[0].SourceEmailIDs)
	}
}

func TestReconcileUnrecognizedStatus(t *testing.T) {
	actions := Reconcile([]internal.ApplicationRecord{
		rec("Google", "SWE", internal.Status("Ghosted"), day(2), "m1"),
	}, nil)
	require.Len(t, actions, 1)
	assert.Equal(t, KindSkip, actions[0].Kind)
	assert.Equal(t, ReasonUnrecognizedStatus, actions[0].Reason)
}

func TestReconcileEndToEndExample(t *testing.T) {
	actions := Reconcile([]internal.ApplicationRecord{
		rec("Google", "SWE", internal.StatusApplied, day(1), "m1"),
		rec("Google", "SWE", internal.StatusInterview, day(3), "m2"),
		rec("Meta", "PM", internal.StatusApplied, day(2), "m3"),
	}, nil)

	require.Equal(t, []Kind{KindInsert, KindInsert}, kinds(actions))
	assert.Equal(t, "Google", actions[0].Row.Company)
	assert.Equal(t, internal.StatusInterview, actions[0].Row.Status)
	assert.Equal(t, day(1), actions[0].Row.AppliedOn)
	assert.Equal(t, "Meta", actions[1].Row.Company)
	assert.Equal(t, internal.StatusApplied, actions[1].Row.Status)
}

func TestReconcilePrefersApplicationID(t *testing.T) {
	existing := []internal.TrackerRow{
		{RowID: "r1", Company: "Acme", JobTitle: "Data Engineer", Status: internal.StatusApplied, ApplicationID: "REF-1"},
		{RowID: "r2", Company: "Acme", JobTitle: "Data Engineer II", Status: internal.StatusApplied, ApplicationID: "REF-2"},
	}

	r := rec("ACME Corp", "Data Eng", internal.StatusAssessment, day(4), "m1")
	r.ApplicationID = "REF-2"
	actions := Reconcile([]internal.ApplicationRecord{r}, existing)
	require.Len(t, actions, 1)
	assert.Equal(t, KindUpdateStatus, actions[0].Kind)
	assert.Equal(t, "r2", actions[0].RowID)

	t.Run("case sensitive id falls back to name", func(t *testing.T) {
		r := rec("Acme", "Data Engineer", internal.StatusInterview, day(4), "m2")
		r.ApplicationID = "ref-2"
		actions := Reconcile([]internal.ApplicationRecord{r}, existing)
		require.Len(t, actions, 1)
		assert.Equal(t, "r1", actions[0].RowID)
	})
}

func TestReconcileSharedIDWithoutRowKeepsPositionsApart(t *testing.T) {
	swe := rec("Google", "SWE", internal.StatusApplied, day(1), "m1")
	swe.ApplicationID = "X"
	backend := rec("Google", "Backend", internal.StatusInterview, day(2), "m2")
	backend.ApplicationID = "X"
	again := rec("Google", "SWE", internal.StatusInterview, day(3), "m3")
	again.ApplicationID = "Y"

	actions := Reconcile([]internal.ApplicationRecord{swe, backend, again}, nil)
	require.Equal(t, []Kind{KindInsert, KindInsert}, kinds(actions))
	assert.Equal(t, "SWE", actions[0].Row.JobTitle)
	assert.Equal(t, internal.StatusInterview, actions[0].Row.Status)
	assert.ElementsMatch(t, []string{"m1", "m3"}, actions[0].SourceEmailIDs)
	assert.Equal(t, "Backend", actions[1].Row.JobTitle)
	assert.Equal(t, internal.StatusInterview, actions[1].Row.Status)
	assert.Equal(t, []string{"m2"}, actions[1].SourceEmailIDs)
}

func TestReconcileRejectedFromAnyStateAndTerminal(t *testing.T) {
	existing := []internal.TrackerRow{
		{RowID: "r1", Company: "A", JobTitle: "X", Status: internal.StatusOffer},
		{RowID: "r2", Company: "B", JobTitle: "Y", Status: internal.StatusRejected},
	}
	actions := Reconcile([]internal.ApplicationRecord{
		rec("A", "X", internal.StatusRejected, day(2), "m1"),
		rec("B", "Y", internal.StatusInterview, day(3), "m2"),
	}, existing)

	require.Len(t, actions, 2)
	assert.Equal(t, KindUpdateStatus, actions[0].Kind)
	assert.Equal(t, internal.StatusRejected, actions[0].Status)
	assert.Equal(t, KindSkip, actions[1].Kind)
	assert.Equal(t, ReasonStaleStatus, actions[1].Reason)
}

func TestReconcileMergesNotesOnNoChange(t *testing.T) {
	existing := []internal.TrackerRow{
		{RowID: "r1", Company: "Google", JobTitle: "SWE", Status: internal.StatusInterview, Notes: "Recruiter: Ann"},
	}
	r := rec("Google", "SWE", internal.StatusInterview, day(6), "m1")
	r.Notes = "Second round booked"

	actions := Reconcile([]internal.ApplicationRecord{r}, existing)
	require.Len(t, actions, 1)
	a := actions[0]
	assert.Equal(t, KindSkip, a.Kind)
	assert.Equal(t, ReasonNoChange, a.Reason)
	assert.True(t, a.NotesChanged)
	assert.Equal(t, "Recruiter: Ann\n\n[Update 2026-10-06] Second round booked", a.Notes)

	upd := a.Update()
	assert.Nil(t, upd.Status)
	require.NotNil(t, upd.Notes)

	t.Run("notes already present", func(t *testing.T) {
		r.Notes = "Recruiter: Ann"
		actions := Reconcile([]internal.ApplicationRecord{r}, existing)
		assert.False(t, actions[0].NotesChanged)
		assert.False(t, actions[0].Writes())
	})
}

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to internal.Status
		want     bool
	}{
		{internal.StatusApplied, internal.StatusAssessment, true},
		{internal.StatusApplied, internal.StatusOffer, true},
		{internal.StatusInterview, internal.StatusApplied, false},
		{internal.StatusOffer, internal.StatusInterview, false},
		{internal.StatusAssessment, internal.StatusRejected, true},
		{internal.StatusRejected, internal.StatusOffer, false},
		{internal.StatusApplied, internal.StatusApplied, false},
		{internal.Status("Ghosted"), internal.StatusInterview, true},
		{internal.StatusApplied, internal.Status("Ghosted"), false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}
