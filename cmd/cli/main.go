package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/fieldvisit/internal/buildinfo"
	"github.com/dmitrijs2005/fieldvisit/internal/client/cli"
	"github.com/dmitrijs2005/fieldvisit/internal/client/config"
	"github.com/dmitrijs2005/fieldvisit/internal/logging"
)

func main() {

	buildinfo.PrintBuildData(os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadConfig(os.Args[1:])
	if err != nil {
		log.Fatalf("%v", err)
	}

	logger := logging.NewTextLogger(os.Stderr, slog.LevelWarn)
	app, err := cli.NewApp(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("%v", err)
	}

	app.Run(ctx)

}
