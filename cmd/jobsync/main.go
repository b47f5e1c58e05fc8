package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"jobsync/internal"
	"jobsync/internal/app"
	"jobsync/internal/config"
	"jobsync/internal/connectors"
	"jobsync/internal/listener"
	"jobsync/internal/logging"
	"jobsync/internal/pipeline"
	"jobsync/internal/storage"
	"jobsync/internal/tracker"
)

func main() {
	cfg, err := config.Load()
	must(err)

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}
	logger := logging.New(cfg.LogLevel)

	db, err := storage.Open(cfg.DBPath)
	must(err)
	defer db.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cmd := os.Args[1]
	switch cmd {
	case "mail:sync":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		provider := fs.String("provider", cfg.MailProvider, "gmail|imap")
		label := fs.String("label", cfg.MailLabel, "mailbox/label")
		max := fs.Int("max", cfg.MailFetchMax, "max messages")
		days := fs.Int("days", cfg.MailNewerThanDays, "only mail newer than N days")
		dryRun := fs.Bool("dry-run", false, "print planned actions without writing")
		_ = fs.Parse(os.Args[2:])

		cfg.MailProvider = *provider
		svc, err := app.NewSyncService(ctx, cfg, db, logger, *dryRun)
		must(err)
		opts := pipeline.SyncOptions{
			Fetch:  connectors.FetchOptions{Label: *label, Max: *max, NewerThanDays: *days},
			DryRun: *dryRun,
		}
		res, err := svc.Run(ctx, opts)
		must(err)
		if *dryRun {
			for _, a := range res.Actions {
				fmt.Printf("  %s %s / %s status=%s reason=%q emails=%s\n", a.Kind, a.Record.Company, a.Record.JobTitle, a.Record.Status, a.Reason, strings.Join(a.SourceEmailIDs, ","))
			}
		}
		fmt.Printf("mail sync done fetched=%d new=%d extracted=%d inserted=%d updated=%d skipped=%d failed=%d dryRun=%t\n",
			res.Fetched, res.Fetched-res.AlreadySeen, res.Extracted, res.Inserted, res.Updated, res.Skipped, res.Failed, *dryRun)
	case "report:weekly":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		days := fs.Int("days", cfg.ReportWindowDays, "window in days")
		dryRun := fs.Bool("dry-run", false, "print the summary without writing it")
		_ = fs.Parse(os.Args[2:])

		svc, err := app.NewReportService(cfg, db, logger)
		must(err)
		res, err := svc.Run(ctx, *days, *dryRun)
		must(err)
		if res.Written {
			must(db.SetMetadata(ctx, listener.LastReportKey, time.Now().UTC().Format(time.RFC3339)))
		}
		fmt.Printf("%s\n\n%s\n\nreport done total=%d written=%t id=%s\n", res.Report.Name, res.Report.Summary, res.Stats.Total, res.Written, res.ReportID)
	case "export:xlsx":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		out := fs.String("out", filepath.Join(cfg.OutputDir, "tracker.xlsx"), "output xlsx path")
		_ = fs.Parse(os.Args[2:])

		store, err := app.MakeTracker(cfg, db)
		must(err)
		rows, err := store.QueryAll(ctx)
		must(err)
		must(pipeline.ExportTrackerXLSX(rows, *out))
		counts := tracker.StatusCounts(rows)
		fmt.Printf("exported %d rows to %s applied=%d interview=%d offer=%d rejected=%d\n", len(rows), *out, counts[internal.StatusApplied], counts[internal.StatusInterview], counts[internal.StatusOffer], counts[internal.StatusRejected])
	case "mail:listen":
		sync, err := app.NewSyncService(ctx, cfg, db, logger, false)
		must(err)
		reporter, err := app.NewReportService(cfg, db, logger)
		must(err)
		must(listener.NewService(sync, reporter, db, cfg, logger).Run(ctx))
	case "parse":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		input := fs.String("input", "", "path to an .eml file")
		rulesOnly := fs.Bool("rules-only", false, "stop after the keyword rules")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*input) == "" {
			must(fmt.Errorf("--input is required"))
		}

		var extractor pipeline.Extractor
		if !*rulesOnly {
			must(cfg.Require("OPENROUTER_KEY", cfg.OpenRouterKey))
			extractor = app.MakeExtractor(cfg, logger)
		}
		res, err := pipeline.ParseFile(ctx, extractor, *input)
		must(err)
		fmt.Printf("subject=%q rules=%s category=%s\n", res.Email.Subject, res.Rules.Verdict, res.Category)
		if res.Record != nil {
			blob, err := json.MarshalIndent(res.Record, "", "  ")
			must(err)
			fmt.Println(string(blob))
		}
	case "cache:status":
		processed, pending, err := app.ProcessedStatus(ctx, cfg, db)
		must(err)
		runs, err := db.ListRuns(ctx, "sync", 1)
		must(err)
		fmt.Printf("processed=%d archived_unprocessed=%d\n", processed, pending)
		if len(runs) > 0 {
			fmt.Printf("last sync %s counts=%v errors=%d\n", runs[0].FinishedAt.Format("2006-01-02 15:04"), runs[0].Counts, len(runs[0].Errors))
		}
	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Println("usage: jobsync <command>")
	fmt.Println("commands:")
	fmt.Println("  mail:sync [--provider=gmail|imap] [--label=INBOX] [--max=10] [--days=7] [--dry-run]")
	fmt.Println("  report:weekly [--days=7] [--dry-run]")
	fmt.Println("  export:xlsx [--out=./out/tracker.xlsx]")
	fmt.Println("  mail:listen")
	fmt.Println("  parse --input=mail.eml [--rules-only]")
	fmt.Println("  cache:status")
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
