package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/vroomly/rentclient/internal/buildinfo"
	"github.com/vroomly/rentclient/internal/client/cli"
	"github.com/vroomly/rentclient/internal/client/config"
	"github.com/vroomly/rentclient/internal/filex"
	"github.com/vroomly/rentclient/internal/logging"
)

func main() {

	buildinfo.PrintBuildData(os.Stdout)

	cfg, err := config.LoadConfig(os.Args[1:])
	if err != nil {
		log.Fatalf("%v", err)
	}

	if cfg.LogFile != "" {
		if _, err := filex.EnsureParentDir(cfg.LogFile); err != nil {
			log.Fatalf("%v", err)
		}
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFile)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := cli.NewApp(ctx, cfg, logger, os.Stdin, os.Stdout)
	if err != nil {
		log.Fatalf("%v", err)
	}

	if err := app.Run(ctx); err != nil {
		log.Fatalf("%v", err)
	}
}
