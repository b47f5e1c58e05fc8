package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"jobsync/internal/app"
	"jobsync/internal/config"
	"jobsync/internal/listener"
	"jobsync/internal/logging"
	"jobsync/internal/storage"
)

func main() {
	cfg, err := config.Load()
	must(err)
	logger := logging.New(cfg.LogLevel)

	db, err := storage.Open(cfg.DBPath)
	must(err)
	defer db.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	sync, err := app.NewSyncService(ctx, cfg, db, logger, false)
	must(err)
	reporter, err := app.NewReportService(cfg, db, logger)
	must(err)

	svc := listener.NewService(sync, reporter, db, cfg, logger)
	must(svc.Run(ctx))
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
