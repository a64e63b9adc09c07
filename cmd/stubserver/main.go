package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/fieldvisit/internal/buildinfo"
	"github.com/dmitrijs2005/fieldvisit/internal/logging"
	"github.com/dmitrijs2005/fieldvisit/internal/stubserver"
)

func main() {

	buildinfo.PrintBuildData(os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	cfg, err := stubserver.LoadConfig(os.Args[1:])
	if err != nil {
		log.Fatalf("%v", err)
	}

	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))
	if err := stubserver.New(cfg, logger).Run(ctx); err != nil {
		log.Printf("%v", err)
		os.Exit(1)
	}

}
