package main

import (
	"context"
	"flag"
	"os"

	"github.com/addisride/dispatch/config"
	_ "github.com/addisride/dispatch/docs"
	"github.com/addisride/dispatch/internal/app"
	"github.com/addisride/dispatch/pkg/logger"
)

var configPath = flag.String("config-path", "", "Path to the config yaml file (optional; environment wins)")

func main() {
	flag.Parse()

	ctx := context.Background()
	log := logger.InitLogger("dispatch", logger.LevelInfo)

	cfg, err := config.NewConfig(*configPath)
	if err != nil {
		log.Error(ctx, "failed to configure application", err)
		os.Exit(1)
	}

	if cfg.Log.Level != "" {
		log = logger.InitLogger("dispatch", cfg.Log.Level)
	}

	application, err := app.NewApplication(ctx, *cfg, log)
	if err != nil {
		log.Error(ctx, "failed to init application", err)
		os.Exit(1)
	}

	if err := application.Run(ctx); err != nil {
		log.Error(ctx, "failed to run application", err)
		os.Exit(1)
	}
}
