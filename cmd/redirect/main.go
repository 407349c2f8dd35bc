package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"tinylink/pkg/app"
	"tinylink/pkg/config"
	"tinylink/pkg/logging"
)

func main() {
	envFile := flag.String("env", ".env", "optional env file")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger := logging.NewLogger(logging.LogLevel(cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error(ctx, "failed to start", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	if err := app.Serve(ctx, cfg.Server.RedirectAddr, a.RedirectRouter(), cfg.Server.ShutdownTimeout, logger); err != nil {
		logger.Error(ctx, "server error", "error", err)
		os.Exit(1)
	}
}
