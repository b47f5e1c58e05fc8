package tracker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobsync/internal"
	"jobsync/internal/util"
)

func TestMemoryStoreInsertAndUpdate(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	id, err := store.Insert(ctx, internal.TrackerRow{Company: "Google", JobTitle: "SWE", Status: internal.StatusApplied})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	interview := internal.StatusInterview
	require.NoError(t, store.Update(ctx, id, internal.RowUpdate{Status: &interview, Notes: util.StringPtr("Onsite")}))

	rows, err := store.QueryAll(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, internal.StatusInterview, rows[0].Status)
	assert.Equal(t, "Onsite", rows[0].Notes)

	err = store.Update(ctx, "missing", internal.RowUpdate{Status: &interview})
	assert.ErrorIs(t, err, ErrRowNotFound)
}

func TestStatusCounts(t *testing.T) {
	counts := StatusCounts([]internal.TrackerRow{
		{Status: internal.StatusApplied},
		{Status: internal.StatusApplied},
		{Status: internal.Status("Ghosted")},
	})
	assert.Len(t, counts, 5)
	assert.Equal(t, 2, counts[internal.StatusApplied])
	assert.Equal(t, 0, counts[internal.StatusOffer])
}

func TestSortByAppliedOn(t *testing.T) {
	d := func(n int) time.Time { return time.Date(2026, 10, n, 0, 0, 0, 0, time.UTC) }
	rows := []internal.TrackerRow{{RowID: "a", AppliedOn: d(1)}, {RowID: "b"}, {RowID: "c", AppliedOn: d(5)}}
	SortByAppliedOn(rows)
	assert.Equal(t, "c", rows[0].RowID)
	assert.Equal(t, "a", rows[1].RowID)
	assert.Equal(t, "b", rows[2].RowID)
}
