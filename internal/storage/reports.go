package storage

import (
	"context"
	"encoding/json"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"jobsync/internal"
)

func (d *DB) InsertWeeklyReport(ctx context.Context, report internal.WeeklyReportRow) (string, error) {
	id := uuid.NewString()
	_, err := d.conn.ExecContext(ctx,
		`INSERT INTO weekly_reports (id, name, weekRange, summary, createdOn) VALUES (?, ?, ?, ?, ?)`,
		id, report.Name, report.WeekRange, report.Summary, formatDate(report.CreatedOn))
	if err != nil {
		return "", err
	}
	return id, nil
}

func (d *DB) ListWeeklyReports(ctx context.Context, limit int) ([]internal.WeeklyReportRow, error) {
	builder := sq.Select("name", "weekRange", "summary", "createdOn").
		From("weekly_reports").
		OrderBy("createdAt DESC")
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}
	q, args, err := builder.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := d.conn.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.WeeklyReportRow
	for rows.Next() {
		var r internal.WeeklyReportRow
		var createdOn string
		if err := rows.Scan(&r.Name, &r.WeekRange, &r.Summary, &createdOn); err != nil {
			return nil, err
		}
		r.CreatedOn, _ = time.Parse(dateLayout, createdOn)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Run is one sync or report execution, kept for auditing.
type Run struct {
	TraceID    string
	Kind       string
	StartedAt  time.Time
	FinishedAt time.Time
	Counts     map[string]int
	Errors     []string
}

func (d *DB) InsertRun(ctx context.Context, run Run) error {
	if run.TraceID == "" {
		run.TraceID = uuid.NewString()
	}
	countsJSON, _ := json.Marshal(run.Counts)
	errs := run.Errors
	if errs == nil {
		errs = []string{}
	}
	errorsJSON, _ := json.Marshal(errs)

	q, args, err := sq.Insert("runs").
		Columns("traceId", "kind", "startedAt", "finishedAt", "countsJson", "errorsJson").
		Values(run.TraceID, run.Kind, run.StartedAt.UTC().Format(timestampLayout), run.FinishedAt.UTC().Format(timestampLayout), string(countsJSON), string(errorsJSON)).
		ToSql()
	if err != nil {
		return err
	}
	_, err = d.conn.ExecContext(ctx, q, args...)
	return err
}

// ListRuns returns the latest runs, optionally of one kind.
func (d *DB) ListRuns(ctx context.Context, kind string, limit int) ([]Run, error) {
	builder := sq.Select("traceId", "kind", "startedAt", "finishedAt", "countsJson", "errorsJson").
		From("runs").
		OrderBy("id DESC")
	if kind != "" {
		builder = builder.Where(sq.Eq{"kind": kind})
	}
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}
	q, args, err := builder.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := d.conn.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var run Run
		var started, finished, countsJSON, errorsJSON string
		if err := rows.Scan(&run.TraceID, &run.Kind, &started, &finished, &countsJSON, &errorsJSON); err != nil {
			return nil, err
		}
		run.StartedAt = parseTimestamp(started)
		run.FinishedAt = parseTimestamp(finished)
		_ = json.Unmarshal([]byte(countsJSON), &run.Counts)
		_ = json.Unmarshal([]byte(errorsJSON), &run.Errors)
		out = append(out, run)
	}
	return out, rows.Err()
}
