package pipeline

import (
	"context"
	"fmt"

	"jobsync/internal/reconcile"
	"jobsync/internal/tracker"
)

// ApplyAction performs the store write an action describes and returns the id
// of the row it touched. Skips without a notes change are a no-op.
func ApplyAction(ctx context.Context, store tracker.Store, action reconcile.Action) (string, error) {
	switch {
	case action.Kind == reconcile.KindInsert:
		id, err := store.Insert(ctx, action.Row)
		if err != nil {
			return "", fmt.Errorf("insert %s / %s: %w", action.Row.Company, action.Row.JobTitle, err)
		}
		return id, nil
	case action.Writes():
		if err := store.Update(ctx, action.RowID, action.Update()); err != nil {
			return "", fmt.Errorf("update row %s: %w", action.RowID, err)
		}
		return action.RowID, nil
	default:
		return action.RowID, nil
	}
}

// describeAction is the one-line form used by dry runs and logs.
func describeAction(a reconcile.Action) string {
	switch a.Kind {
	case reconcile.KindInsert:
		return fmt.Sprintf("insert %q / %q as %s", a.Row.Company, a.Row.JobTitle, a.Row.Status)
	case reconcile.KindUpdateStatus:
		return fmt.Sprintf("update %s: %s -> %s", a.RowID, a.Row.Status, a.Status)
	default:
		if a.NotesChanged {
			return fmt.Sprintf("skip %q / %q (%s), append notes to %s", a.Record.Company, a.Record.JobTitle, a.Reason, a.RowID)
		}
		return fmt.Sprintf("skip %q / %q (%s)", a.Record.Company, a.Record.JobTitle, a.Reason)
	}
}
