package reconcile

import (
	"strings"

	"jobsync/internal"
	"jobsync/internal/util"
)

// MatchKey identifies the tracker row a record belongs to. ApplicationID is
// compared exactly; Company and JobTitle are stored normalised.
type MatchKey struct {
	ApplicationID string
	Company       string
	JobTitle      string
}

// KeyOf returns false when the record has neither a company nor a job title.
func KeyOf(rec internal.ApplicationRecord) (MatchKey, bool) {
	key := MatchKey{
		ApplicationID: strings.TrimSpace(rec.ApplicationID),
		Company:       util.NormalizeKey(rec.Company),
		JobTitle:      util.NormalizeKey(rec.JobTitle),
	}
	if key.Company == "" && key.JobTitle == "" {
		return MatchKey{}, false
	}
	return key, true
}

func (k MatchKey) nameKey() string {
	return k.Company + "\x00" + k.JobTitle
}

func (k MatchKey) String() string {
	if k.ApplicationID != "" {
		return "id:" + k.ApplicationID
	}
	return k.Company + "/" + k.JobTitle
}

// Index resolves match keys against the existing tracker rows.
type Index struct {
	rows    []internal.TrackerRow
	byAppID map[string]int
	byName  map[string]int
}

func BuildIndex(rows []internal.TrackerRow) *Index {
	idx := &Index{
		rows:    append([]internal.TrackerRow(nil), rows...),
		byAppID: map[string]int{},
		byName:  map[string]int{},
	}

	for i, row := range idx.rows {
		if id := strings.TrimSpace(row.ApplicationID); id != "" {
			if _, ok := idx.byAppID[id]; !ok {
				idx.byAppID[id] = i
			}
		}
		name := MatchKey{Company: util.NormalizeKey(row.Company), JobTitle: util.NormalizeKey(row.JobTitle)}
		if name.Company == "" && name.JobTitle == "" {
			continue
		}
		if _, ok := idx.byName[name.nameKey()]; !ok {
			idx.byName[name.nameKey()] = i
		}
	}

	return idx
}

// Lookup prefers the application id and falls back to company and job title.
// When duplicate rows exist the first one wins.
func (i *Index) Lookup(key MatchKey) (internal.TrackerRow, bool) {
	if key.ApplicationID != "" {
		if pos, ok := i.byAppID[key.ApplicationID]; ok {
			return i.rows[pos], true
		}
	}
	if pos, ok := i.byName[key.nameKey()]; ok {
		return i.rows[pos], true
	}
	return internal.TrackerRow{}, false
}

func (i *Index) Len() int { return len(i.rows) }
