package tracker

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"jobsync/internal"
)

// Store is the application tracker table.
type Store interface {
	QueryAll(ctx context.Context) ([]internal.TrackerRow, error)
	Insert(ctx context.Context, row internal.TrackerRow) (string, error)
	Update(ctx context.Context, rowID string, upd internal.RowUpdate) error
}

// ReportWriter stores generated weekly reports.
type ReportWriter interface {
	CreateReport(ctx context.Context, report internal.WeeklyReportRow) (string, error)
}

var ErrRowNotFound = errors.New("tracker row not found")

// MemoryStore is an in-process tracker used for dry runs and tests.
type MemoryStore struct {
	mu      sync.Mutex
	rows    []internal.TrackerRow
	reports []internal.WeeklyReportRow
}

var (
	_ Store        = (*MemoryStore)(nil)
	_ ReportWriter = (*MemoryStore)(nil)
)

func NewMemoryStore(rows ...internal.TrackerRow) *MemoryStore {
	return &MemoryStore{rows: append([]internal.TrackerRow(nil), rows...)}
}

func (m *MemoryStore) QueryAll(context.Context) ([]internal.TrackerRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]internal.TrackerRow(nil), m.rows...), nil
}

func (m *MemoryStore) Insert(_ context.Context, row internal.TrackerRow) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if row.RowID == "" {
		row.RowID = uuid.NewString()
	}
	m.rows = append(m.rows, row)
	return row.RowID, nil
}

func (m *MemoryStore) Update(_ context.Context, rowID string, upd internal.RowUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.rows {
		if m.rows[i].RowID != rowID {
			continue
		}
		applyUpdate(&m.rows[i], upd)
		return nil
	}
	return fmt.Errorf("%w: %s", ErrRowNotFound, rowID)
}

func (m *MemoryStore) CreateReport(_ context.Context, report internal.WeeklyReportRow) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports = append(m.reports, report)
	return uuid.NewString(), nil
}

func (m *MemoryStore) Reports() []internal.WeeklyReportRow {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]internal.WeeklyReportRow(nil), m.reports...)
}

func applyUpdate(row *internal.TrackerRow, upd internal.RowUpdate) {
	if upd.Status != nil {
		row.Status = *upd.Status
	}
	if upd.Notes != nil {
		row.Notes = *upd.Notes
	}
}

// StatusCounts returns the number of rows per known status. Every status is
// present in the result, unknown ones are not counted.
func StatusCounts(rows []internal.TrackerRow) map[internal.Status]int {
	out := make(map[internal.Status]int, len(internal.Statuses))
	for _, s := range internal.Statuses {
		out[s] = 0
	}
	for _, row := range rows {
		if row.Status.Valid() {
			out[row.Status]++
		}
	}
	return out
}

// SortByAppliedOn orders rows newest first, with undated rows last.
func SortByAppliedOn(rows []internal.TrackerRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i].AppliedOn, rows[j].AppliedOn
		if a.IsZero() != b.IsZero() {
			return !a.IsZero()
		}
		return a.After(b)
	})
}

// DateOnly drops the clock part of t, keeping its calendar day.
func DateOnly(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
