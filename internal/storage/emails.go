package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"

	"jobsync/internal"
)

// EmailRow is an archived message. ID is the provider's stable message id.
type EmailRow struct {
	ID         string
	Provider   string
	MessageID  string
	Subject    string
	Sender     string
	ReceivedAt time.Time
	Hash       string
	RawRef     string
}

func (d *DB) UpsertEmail(ctx context.Context, msg internal.FetchedMailMessage, hash, rawRef string) (EmailRow, error) {
	received := ""
	if !msg.ReceivedAt.IsZero() {
		received = msg.ReceivedAt.UTC().Format(timestampLayout)
	}
	_, err := d.conn.ExecContext(ctx, `
INSERT INTO emails (id, provider, messageId, subject, sender, receivedAt, hash, rawRef)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
  subject=excluded.subject,
  sender=excluded.sender,
  receivedAt=excluded.receivedAt,
  hash=excluded.hash,
  rawRef=excluded.rawRef,
  updatedAt=CURRENT_TIMESTAMP
`, msg.MessageID, msg.Provider, msg.MessageID, msg.Subject, msg.From, received, hash, rawRef)
	if err != nil {
		return EmailRow{}, err
	}

	row, err := d.GetEmail(ctx, msg.MessageID)
	if err != nil {
		return EmailRow{}, err
	}
	if row == nil {
		return EmailRow{}, errors.New("failed to upsert email")
	}
	return *row, nil
}

func (d *DB) GetEmail(ctx context.Context, id string) (*EmailRow, error) {
	q, args, err := emailColumns().Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, err
	}
	row, err := scanEmail(d.conn.QueryRowContext(ctx, q, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// ListUnprocessedEmails returns archived messages that were never committed
// to the processed set, oldest first.
func (d *DB) ListUnprocessedEmails(ctx context.Context, limit int) ([]EmailRow, error) {
	builder := emailColumns().
		Where("id NOT IN (SELECT emailId FROM processed_emails)").
		OrderBy("receivedAt ASC")
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

	var out []EmailRow
	for rows.Next() {
		row, err := scanEmail(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// ListEmailIDs returns the ids of every archived message.
func (d *DB) ListEmailIDs(ctx context.Context) ([]string, error) {
	q, args, err := sq.Select("id").From("emails").OrderBy("receivedAt ASC").ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := d.conn.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func emailColumns() sq.SelectBuilder {
	return sq.Select("id", "provider", "messageId", "COALESCE(subject, '')", "COALESCE(sender, '')", "COALESCE(receivedAt, '')", "hash", "rawRef").
		From("emails")
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEmail(s scanner) (EmailRow, error) {
	var row EmailRow
	var received string
	if err := s.Scan(&row.ID, &row.Provider, &row.MessageID, &row.Subject, &row.Sender, &received, &row.Hash, &row.RawRef); err != nil {
		return EmailRow{}, err
	}
	row.ReceivedAt = parseTimestamp(received)
	return row, nil
}

func parseTimestamp(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	if t, err := time.Parse(timestampLayout, value); err == nil {
		return t
	}
	if t, err := time.Parse("2006-01-02 15:04:05", value); err == nil {
		return t.UTC()
	}
	return time.Time{}
}
