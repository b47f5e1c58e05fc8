package reconcile

import (
	"sort"
	"strings"
	"time"

	"jobsync/internal"
)

type Kind string

const (
	KindInsert       Kind = "insert"
	KindUpdateStatus Kind = "update_status"
	KindSkip         Kind = "skip"
)

const (
	ReasonUnmatchable        = "unmatchable"
	ReasonUnrecognizedStatus = "unrecognized status"
	ReasonStaleStatus        = "stale status"
	ReasonNoChange           = "no change"
)

// Action is one decision for the caller to apply to the tracker store.
//
// Record holds the coalesced record the action was derived from. For inserts
// Row is the row to create. For updates, and for "no change" skips whose notes
// grew, RowID, Status and Notes describe the write.
type Action struct {
	Kind           Kind
	Reason         string
	Record         internal.ApplicationRecord
	Row            internal.TrackerRow
	RowID          string
	Status         internal.Status
	Notes          string
	NotesChanged   bool
	SourceEmailIDs []string
}

// Writes reports whether applying the action touches the store.
func (a Action) Writes() bool {
	return a.Kind == KindInsert || a.Kind == KindUpdateStatus || a.NotesChanged
}

// Update returns the row mutation for update actions and note-only skips.
func (a Action) Update() internal.RowUpdate {
	var upd internal.RowUpdate
	if a.Kind == KindUpdateStatus {
		status := a.Status
		upd.Status = &status
	}
	if a.NotesChanged {
		notes := a.Notes
		upd.Notes = &notes
	}
	return upd
}

type noteEntry struct {
	text string
	at   time.Time
}

type group struct {
	rec     internal.ApplicationRecord
	row     *internal.TrackerRow
	notes   []noteEntry
	sources []string
	last    time.Time
	seeded  bool
}

type slot struct {
	action *Action
	group  *group
}

// Reconcile turns a batch of extracted records into tracker actions against
// the existing rows. It performs no I/O.
func Reconcile(records []internal.ApplicationRecord, existing []internal.TrackerRow) []Action {
	return ReconcileIndex(records, BuildIndex(existing))
}

func ReconcileIndex(records []internal.ApplicationRecord, idx *Index) []Action {
	sorted := chronological(records)

	slots := make([]slot, 0, len(sorted))
	byRow := map[string]*group{}
	byName := map[string]*group{}

	for _, rec := range sorted {
		key, ok := KeyOf(rec)
		if !ok {
			slots = append(slots, slot{action: skip(rec, ReasonUnmatchable)})
			continue
		}
		if !rec.Status.Valid() {
			slots = append(slots, slot{action: skip(rec, ReasonUnrecognizedStatus)})
			continue
		}

		var g *group
		if row, found := idx.Lookup(key); found {
			g = byRow[row.RowID]
			if g == nil {
				rowCopy := row
				g = &group{row: &rowCopy}
				byRow[row.RowID] = g
				slots = append(slots, slot{group: g})
			}
		} else {
			// New rows group on company and title only. A shared id without
			// a tracker row does not merge two different positions.
			g = byName[key.nameKey()]
			if g == nil {
				g = &group{}
				byName[key.nameKey()] = g
				slots = append(slots, slot{group: g})
			}
		}
		g.fold(rec)
	}

	out := make([]Action, 0, len(slots))
	for _, s := range slots {
		if s.action != nil {
			out = append(out, *s.action)
			continue
		}
		out = append(out, s.group.decide())
	}
	return out
}

func (g *group) fold(rec internal.ApplicationRecord) {
	at := eventTime(rec)
	if !g.seeded {
		g.seeded = true
		g.rec = rec
		g.rec.Notes = ""
	} else {
		if CanTransition(g.rec.Status, rec.Status) {
			g.rec.Status = rec.Status
		}
		if g.rec.Company == "" {
			g.rec.Company = rec.Company
		}
		if g.rec.JobTitle == "" {
			g.rec.JobTitle = rec.JobTitle
		}
		if g.rec.ApplicationID == "" {
			g.rec.ApplicationID = rec.ApplicationID
		}
		if g.rec.AppliedOn.IsZero() || (!rec.AppliedOn.IsZero() && rec.AppliedOn.Before(g.rec.AppliedOn)) {
			g.rec.AppliedOn = rec.AppliedOn
		}
	}
	if at.After(g.last) {
		g.last = at
		g.rec.ReceivedAt = rec.ReceivedAt
	}
	g.sources = append(g.sources, rec.SourceEmailID)

	note := strings.TrimSpace(rec.Notes)
	if note == "" {
		return
	}
	for _, n := range g.notes {
		if n.text == note {
			return
		}
	}
	g.notes = append(g.notes, noteEntry{text: note, at: at})
}

func (g *group) decide() Action {
	action := Action{Record: g.rec, SourceEmailIDs: compact(g.sources)}
	texts := make([]string, 0, len(g.notes))
	for _, n := range g.notes {
		texts = append(texts, n.text)
	}
	action.Record.Notes = strings.Join(texts, "\n\n")

	if g.row == nil {
		action.Kind = KindInsert
		action.Status = g.rec.Status
		action.Row = internal.TrackerRow{
			Company:       strings.TrimSpace(g.rec.Company),
			JobTitle:      strings.TrimSpace(g.rec.JobTitle),
			Status:        g.rec.Status,
			AppliedOn:     g.rec.AppliedOn,
			Notes:         action.Record.Notes,
			ApplicationID: strings.TrimSpace(g.rec.ApplicationID),
		}
		return action
	}

	row := *g.row
	action.RowID = row.RowID
	action.Row = row

	if g.rec.Status != row.Status {
		if !CanTransition(row.Status, g.rec.Status) {
			action.Kind = KindSkip
			action.Reason = ReasonStaleStatus
			return action
		}
		action.Kind = KindUpdateStatus
		action.Status = g.rec.Status
		action.Notes, action.NotesChanged = mergeNotes(row.Notes, g.notes)
		return action
	}

	action.Kind = KindSkip
	action.Reason = ReasonNoChange
	action.Status = row.Status
	action.Notes, action.NotesChanged = mergeNotes(row.Notes, g.notes)
	return action
}

// mergeNotes appends every new note that the stored text does not already
// contain, tagged with the date it was reported. Stored text is never rewritten.
func mergeNotes(stored string, notes []noteEntry) (string, bool) {
	out := strings.TrimSpace(stored)
	changed := false
	for _, n := range notes {
		if n.text == "" || strings.Contains(out, n.text) {
			continue
		}
		if out == "" {
			out = n.text
		} else {
			label := ""
			if !n.at.IsZero() {
				label = "[Update " + n.at.Format("2006-01-02") + "] "
			}
			out = out + "\n\n" + label + n.text
		}
		changed = true
	}
	if !changed {
		return stored, false
	}
	return out, true
}

func skip(rec internal.ApplicationRecord, reason string) *Action {
	return &Action{
		Kind:           KindSkip,
		Reason:         reason,
		Record:         rec,
		SourceEmailIDs: compact([]string{rec.SourceEmailID}),
	}
}

func chronological(records []internal.ApplicationRecord) []internal.ApplicationRecord {
	out := append([]internal.ApplicationRecord(nil), records...)
	sort.SliceStable(out, func(i, j int) bool {
		return eventTime(out[i]).Before(eventTime(out[j]))
	})
	return out
}

func eventTime(rec internal.ApplicationRecord) time.Time {
	if !rec.ReceivedAt.IsZero() {
		return rec.ReceivedAt
	}
	return rec.AppliedOn
}

func compact(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := map[string]struct{}{}
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
