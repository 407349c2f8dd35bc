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
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage of %s:\n", os.Args[0])
		flag.PrintDefaults()
		fmt.Fprintln(flag.CommandLine.Output(), config.Usage())
	}
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

	deleteAuth, err := a.DeleteAuth(ctx)
	if err != nil {
		logger.Error(ctx, "failed to create delete authenticator", "error", err)
		os.Exit(1)
	}
	if deleteAuth == nil {
		logger.Warn(ctx, "no OIDC_ISSUER or ADMIN_KEY_HASH set, link deletion is disabled")
	}

	if err := app.Serve(ctx, cfg.Server.HTTPAddr, a.APIRouter(deleteAuth), cfg.Server.ShutdownTimeout, logger); err != nil {
		logger.Error(ctx, "server error", "error", err)
		os.Exit(1)
	}
}
