package config

import (
	"flag"
	"io"
	"time"

	"github.com/dmitrijs2005/fieldvisit/internal/flagx"
)

// parseFlags overlays cfg with the flags it knows about:
//
//	-p string   portal base URL
//	-r string   refresh ("live") base URL
//	-d string   data directory
//	-t int      request timeout in seconds
//	-m string   metrics listen address
func parseFlags(cfg *Config, args []string) error {
	args = flagx.FilterArgs(args, []string{"-p", "-r", "-d", "-t", "-m"})

	fs := flag.NewFlagSet("fieldvisit", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.PortalBaseURL, "p", cfg.PortalBaseURL, "portal base URL")
	fs.StringVar(&cfg.RefreshBaseURL, "r", cfg.RefreshBaseURL, "refresh base URL")
	fs.StringVar(&cfg.DataDir, "d", cfg.DataDir, "data directory")
	fs.StringVar(&cfg.MetricsAddr, "m", cfg.MetricsAddr, "metrics listen address")
	timeout := fs.Int("t", int(cfg.RequestTimeout.Seconds()), "request timeout (in seconds)")

	if err := fs.Parse(args); err != nil {
		return err
	}

	fs.Visit(func(f *flag.Flag) {
		if f.Name == "t" {
			cfg.RequestTimeout = time.Duration(*timeout) * time.Second
		}
	})
	return nil
}
