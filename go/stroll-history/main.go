// stroll-history speaks the stdio tool protocol over partitioned local
// market-data stores. It takes no arguments; configuration comes from the
// environment (STROLL_DATA, LOG_LEVEL, CACHE_SIZE).
package main

import (
	"context"
	"os"

	flags "github.com/jessevdk/go-flags"
	log "github.com/sirupsen/logrus"
	"github.com/strollhq/stroll-history/go/rpc"
	"github.com/strollhq/stroll-history/go/service"
)

func main() {
	var cfg service.Config
	if _, err := flags.NewParser(&cfg, flags.HelpFlag).Parse(); err != nil {
		fatal("parsing configuration", err)
	}
	if err := cfg.InitLogging(); err != nil {
		fatal("initializing logging", err)
	}

	var svc, err = service.NewService(cfg)
	if err != nil {
		fatal("starting service", err)
	}
	defer func() { _ = svc.Close() }()

	// Stdout is the protocol channel; all diagnostics go to stderr.
	var server = rpc.NewServer(svc, cfg.MaxInFlight)
	if err = server.Run(context.Background(), os.Stdin, os.Stdout); err != nil {
		fatal("serving", err)
	}
	log.Info("transport closed; shutting down")
}

// fatal emits one structured diagnostic line on stderr and exits 1.
func fatal(msg string, err error) {
	log.SetFormatter(&log.JSONFormatter{})
	log.SetOutput(os.Stderr)
	log.WithField("err", err.Error()).Fatal(msg)
}
