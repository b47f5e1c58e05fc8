package storage

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"jobsync/internal"
	"jobsync/internal/tracker"
)

// TrackerTable is the local sqlite tracker backend.
type TrackerTable struct {
	db *DB
}

var (
	_ tracker.Store        = (*TrackerTable)(nil)
	_ tracker.ReportWriter = (*TrackerTable)(nil)
)

func (d *DB) Tracker() *TrackerTable {
	return &TrackerTable{db: d}
}

func (t *TrackerTable) QueryAll(ctx context.Context) ([]internal.TrackerRow, error) {
	return t.query(ctx, trackerColumns().OrderBy("rowid ASC"))
}

// QueryAppliedSince returns rows applied on or after since, newest first.
func (t *TrackerTable) QueryAppliedSince(ctx context.Context, since time.Time) ([]internal.TrackerRow, error) {
	return t.query(ctx, trackerColumns().
		Where(sq.NotEq{"appliedOn": ""}).
		Where(sq.GtOrEq{"appliedOn": since.Format(dateLayout)}).
		OrderBy("appliedOn DESC"))
}

func (t *TrackerTable) query(ctx context.Context, builder sq.SelectBuilder) ([]internal.TrackerRow, error) {
	q, args, err := builder.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := t.db.conn.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.TrackerRow
	for rows.Next() {
		var row internal.TrackerRow
		var status, appliedOn string
		if err := rows.Scan(&row.RowID, &row.Company, &row.JobTitle, &status, &appliedOn, &row.Notes, &row.ApplicationID); err != nil {
			return nil, err
		}
		row.Status = internal.Status(status)
		if appliedOn != "" {
			if parsed, err := time.Parse(dateLayout, appliedOn); err == nil {
				row.AppliedOn = parsed
			}
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (t *TrackerTable) Insert(ctx context.Context, row internal.TrackerRow) (string, error) {
	id := uuid.NewString()
	q, args, err := sq.Insert("tracker_rows").
		Columns("id", "company", "jobTitle", "status", "appliedOn", "notes", "applicationId").
		Values(id, row.Company, row.JobTitle, string(row.Status), formatDate(row.AppliedOn), row.Notes, row.ApplicationID).
		ToSql()
	if err != nil {
		return "", err
	}
	if _, err := t.db.conn.ExecContext(ctx, q, args...); err != nil {
		return "", err
	}
	return id, nil
}

func (t *TrackerTable) Update(ctx context.Context, rowID string, upd internal.RowUpdate) error {
	if upd.Empty() {
		return nil
	}
	builder := sq.Update("tracker_rows").
		Set("updatedAt", sq.Expr("CURRENT_TIMESTAMP")).
		Where(sq.Eq{"id": rowID})
	if upd.Status != nil {
		builder = builder.Set("status", string(*upd.Status))
	}
	if upd.Notes != nil {
		builder = builder.Set("notes", *upd.Notes)
	}

	q, args, err := builder.ToSql()
	if err != nil {
		return err
	}
	res, err := t.db.conn.ExecContext(ctx, q, args...)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", tracker.ErrRowNotFound, rowID)
	}
	return nil
}

func (t *TrackerTable) CreateReport(ctx context.Context, report internal.WeeklyReportRow) (string, error) {
	return t.db.InsertWeeklyReport(ctx, report)
}

func trackerColumns() sq.SelectBuilder {
	return sq.Select("id", "company", "jobTitle", "status", "appliedOn", "notes", "applicationId").From("tracker_rows")
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateLayout)
}
