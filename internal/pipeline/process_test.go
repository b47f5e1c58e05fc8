package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"jobsync/internal"
	"jobsync/internal/cache"
	"jobsync/internal/connectors"
	"jobsync/internal/llm"
	"jobsync/internal/reconcile"
	"jobsync/internal/tracker"
)

type fakeConnector struct {
	messages []internal.FetchedMailMessage
}

func (f *fakeConnector) FetchRecent(context.Context, connectors.FetchOptions) ([]internal.FetchedMailMessage, error) {
	return f.messages, nil
}

// fakeExtractor answers per email id. Ids missing from records are treated
// as non-applications by Classify.
type fakeExtractor struct {
	records    map[string]internal.ApplicationRecord
	errs       map[string]error
	classified []string
	extracted  []string
}

func (f *fakeExtractor) Classify(_ context.Context, email internal.ParsedEmail) (llm.Category, error) {
	f.classified = append(f.classified, email.ID)
	if _, ok := f.records[email.ID]; ok {
		return llm.CategoryApplication, nil
	}
	if _, ok := f.errs[email.ID]; ok {
		return llm.CategoryApplication, nil
	}
	return llm.CategoryOther, nil
}

func (f *fakeExtractor) Extract(_ context.Context, email internal.ParsedEmail) (internal.ApplicationRecord, error) {
	f.extracted = append(f.extracted, email.ID)
	if err, ok := f.errs[email.ID]; ok {
		return internal.ApplicationRecord{}, err
	}
	rec := f.records[email.ID]
	rec.SourceEmailID = email.ID
	rec.ReceivedAt = email.ReceivedAt
	return rec, nil
}

type failingStore struct {
	*tracker.MemoryStore
	failInsert string
}

func (s *failingStore) Insert(ctx context.Context, row internal.TrackerRow) (string, error) {
	if row.Company == s.failInsert {
		return "", errors.New("notion: 502 bad gateway")
	}
	return s.MemoryStore.Insert(ctx, row)
}

func rawMail(subject, body string) []byte {
	return []byte("From: recruiter@example.com\r\nSubject: " + subject + "\r\nContent-Type: text/plain\r\n\r\n" + body + "\r\n")
}

func message(id, subject, body string, day int) internal.FetchedMailMessage {
	return internal.FetchedMailMessage{
		Provider:   "gmail",
		MessageID:  id,
		Subject:    subject,
		ReceivedAt: time.Date(2026, time.October, day, 10, 0, 0, 0, time.UTC),
		Raw:        rawMail(subject, body),
	}
}

// newestFirst mirrors the order connectors return messages in.
func newestFirst(msgs ...internal.FetchedMailMessage) []internal.FetchedMailMessage {
	out := make([]internal.FetchedMailMessage, 0, len(msgs))
	for i := len(msgs) - 1; i >= 0; i-- {
		out = append(out, msgs[i])
	}
	return out
}

func record(company, title string, status internal.Status, day int) internal.ApplicationRecord {
	return internal.ApplicationRecord{
		Company:   company,
		JobTitle:  title,
		Status:    status,
		AppliedOn: time.Date(2026, time.October, day, 0, 0, 0, 0, time.UTC),
	}
}

func newService(conn *fakeConnector, ext *fakeExtractor, store tracker.Store, processed cache.Store) *SyncService {
	fetcher := connectors.NewFetchService(nil, "", conn, nil)
	return NewSyncService(fetcher, ext, store, processed, nil, nil)
}

func loadSet(t *testing.T, store cache.Store) *cache.Set {
	t.Helper()
	set, err := store.Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	return set
}

func TestSyncInsertsThenUpdatesAcrossRuns(t *testing.T) {
	ctx := context.Background()
	conn := &fakeConnector{messages: newestFirst(
		message("m1", "Thank you for applying", "Backend Engineer at Acme", 1),
	)}
	ext := &fakeExtractor{records: map[string]internal.ApplicationRecord{
		"m1": record("Acme", "Backend Engineer", internal.StatusApplied, 1),
		"m2": record("acme ", "backend engineer", internal.StatusInterview, 1),
	}}
	store := tracker.NewMemoryStore()
	processed := cache.NewMemoryStore()
	svc := newService(conn, ext, store, processed)

	res, err := svc.Run(ctx, SyncOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if res.Inserted != 1 || res.Committed != 1 {
		t.Fatalf("result=%+v", res)
	}

	conn.messages = newestFirst(
		message("m1", "Thank you for applying", "Backend Engineer at Acme", 1),
		message("m2", "Interview invitation", "Let's talk on Friday", 4),
	)
	res, err = svc.Run(ctx, SyncOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if res.AlreadySeen != 1 || res.Updated != 1 || res.Inserted != 0 {
		t.Fatalf("result=%+v", res)
	}

	rows, _ := store.QueryAll(ctx)
	if len(rows) != 1 || rows[0].Status != internal.StatusInterview {
		t.Fatalf("rows=%+v", rows)
	}
	if set := loadSet(t, processed); !set.Has("m1") || !set.Has("m2") {
		t.Fatalf("processed=%v", set.IDs())
	}
}

func TestSyncIsolatesFailures(t *testing.T) {
	ctx := context.Background()
	rateLimited := fmt.Errorf("extract: gave up after 4 attempts: %w", &llm.ProviderError{StatusCode: 429, Message: "rate limited", RateLimited: true})
	conn := &fakeConnector{messages: newestFirst(
		message("ok", "Application received", "Data Engineer", 1),
		message("limited", "Application received", "SRE", 2),
		message("garbled", "Application received", "???", 3),
		message("alert", "Job alert: 5 new jobs", "Be the first to apply", 4),
		message("down", "Application received", "PM", 5),
	)}
	ext := &fakeExtractor{
		records: map[string]internal.ApplicationRecord{
			"ok":   record("Globex", "Data Engineer", internal.StatusApplied, 1),
			"down": record("Initech", "PM", internal.StatusApplied, 5),
		},
		errs: map[string]error{
			"limited": rateLimited,
			"garbled": fmt.Errorf("decode record: %w", llm.ErrMalformedOutput),
		},
	}
	store := &failingStore{MemoryStore: tracker.NewMemoryStore(), failInsert: "Initech"}
	processed := cache.NewMemoryStore()

	res, err := newService(conn, ext, store, processed).Run(ctx, SyncOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if res.Inserted != 1 || res.Malformed != 1 || res.NotApplication != 1 || res.Failed != 2 {
		t.Fatalf("result=%+v", res)
	}
	if len(res.Errors) != 2 {
		t.Fatalf("errors=%v", res.Errors)
	}

	set := loadSet(t, processed)
	for _, id := range []string{"ok", "garbled", "alert"} {
		if !set.Has(id) {
			t.Fatalf("%s should be processed: %v", id, set.IDs())
		}
	}
	for _, id := range []string{"limited", "down"} {
		if set.Has(id) {
			t.Fatalf("%s must be retried next run", id)
		}
	}
	for _, id := range ext.extracted {
		if id == "alert" {
			t.Fatal("job alert reached extraction")
		}
	}
}

func TestSyncFallsBackToModelClassification(t *testing.T) {
	conn := &fakeConnector{messages: newestFirst(
		message("chat", "Coffee next week?", "Let me know", 1),
		message("ack", "Your candidacy at Hooli", "We have your CV", 2),
	)}
	ext := &fakeExtractor{records: map[string]internal.ApplicationRecord{
		"ack": record("Hooli", "Engineer", internal.StatusApplied, 2),
	}}
	store := tracker.NewMemoryStore()

	res, err := newService(conn, ext, store, cache.NewMemoryStore()).Run(context.Background(), SyncOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if strings.Join(ext.classified, ",") != "chat,ack" {
		t.Fatalf("classified=%v", ext.classified)
	}
	if res.NotApplication != 1 || res.Inserted != 1 {
		t.Fatalf("result=%+v", res)
	}
}

func TestSyncDryRunWritesNothing(t *testing.T) {
	conn := &fakeConnector{messages: newestFirst(
		message("m1", "Application received", "Backend", 1),
		message("m2", "Weekly newsletter", "Community update", 2),
	)}
	ext := &fakeExtractor{records: map[string]internal.ApplicationRecord{
		"m1": record("Acme", "Backend", internal.StatusApplied, 1),
	}}
	store := tracker.NewMemoryStore()
	processed := cache.NewMemoryStore()

	res, err := newService(conn, ext, store, processed).Run(context.Background(), SyncOptions{DryRun: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Actions) != 1 || res.Actions[0].Kind != reconcile.KindInsert {
		t.Fatalf("actions=%+v", res.Actions)
	}
	rows, _ := store.QueryAll(context.Background())
	if len(rows) != 0 {
		t.Fatalf("rows=%+v", rows)
	}
	if set := loadSet(t, processed); set.Len() != 0 {
		t.Fatalf("processed=%v", set.IDs())
	}
}

func TestApplyActionNotesOnlySkip(t *testing.T) {
	ctx := context.Background()
	store := tracker.NewMemoryStore()
	id, err := store.Insert(ctx, internal.TrackerRow{Company: "Acme", JobTitle: "SWE", Status: internal.StatusInterview, Notes: "Panel"})
	if err != nil {
		t.Fatal(err)
	}
	rows, _ := store.QueryAll(ctx)

	rec := record("Acme", "SWE", internal.StatusInterview, 2)
	rec.Notes = "Bring portfolio"
	rec.ReceivedAt = rec.AppliedOn
	actions := reconcile.Reconcile([]internal.ApplicationRecord{rec}, rows)
	if len(actions) != 1 || !actions[0].NotesChanged {
		t.Fatalf("actions=%+v", actions)
	}

	got, err := ApplyAction(ctx, store, actions[0])
	if err != nil {
		t.Fatal(err)
	}
	if got != id {
		t.Fatalf("row id=%q want %q", got, id)
	}
	rows, _ = store.QueryAll(ctx)
	if rows[0].Status != internal.StatusInterview || !strings.Contains(rows[0].Notes, "[Update 2026-10-02] Bring portfolio") {
		t.Fatalf("row=%+v", rows[0])
	}
}
