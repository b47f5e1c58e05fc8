package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mark3labs/mcp-go/server"

	"jobsync/internal/app"
	"jobsync/internal/config"
	"jobsync/internal/logging"
	"jobsync/internal/mcptools"
	"jobsync/internal/storage"
)

const version = "1.0.0"

func main() {
	cfg, err := config.Load()
	must(err)
	// stdout carries the protocol.
	logger := logging.NewWithWriter(os.Stderr, cfg.LogLevel)

	db, err := storage.Open(cfg.DBPath)
	must(err)
	defer db.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	tools, err := app.NewMCPTools(ctx, cfg, db, logger)
	must(err)

	logger.Info("mcp server started", "tracker", cfg.TrackerBackend, "provider", cfg.MailProvider)
	must(server.ServeStdio(mcptools.NewServer(tools, version)))
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
