package storage

import (
	"context"

	"jobsync/internal/cache"
)

// ProcessedSet persists the processed email ids in the processed_emails table.
type ProcessedSet struct {
	db *DB
}

var _ cache.Store = (*ProcessedSet)(nil)

func (d *DB) ProcessedSet() *ProcessedSet {
	return &ProcessedSet{db: d}
}

func (p *ProcessedSet) Load(ctx context.Context) (*cache.Set, error) {
	rows, err := p.db.conn.QueryContext(ctx, `SELECT emailId FROM processed_emails`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	set := cache.NewSet()
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		set.Add(id)
	}
	return set, rows.Err()
}

func (p *ProcessedSet) Commit(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	tx, err := p.db.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO processed_emails (emailId) VALUES (?) ON CONFLICT(emailId) DO NOTHING`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, err := stmt.ExecContext(ctx, id); err != nil {
			return err
		}
	}
	return tx.Commit()
}
