package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/deskmate/deskmate-backend/internal/app"
	"github.com/deskmate/deskmate-backend/internal/pdftext"
	"github.com/deskmate/deskmate-backend/internal/platform/logger"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, cfgWarnings := app.LoadConfig()

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	for _, w := range cfgWarnings {
		log.Warn("Configuration value clamped", "detail", w)
	}

	a, err := app.New(log, cfg, app.WithPDFExtractor(pdftext.Extract))
	if err != nil {
		log.Fatal("App init failed", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Run(ctx); err != nil {
		log.Error("HTTP server failed", "error", err)
	}
	a.Close(context.Background())
}
