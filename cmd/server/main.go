// Package main starts the KeyShield server.
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/keyshield/keyshield/internal/app"
	"github.com/keyshield/keyshield/internal/config"
	"github.com/keyshield/keyshield/internal/logging"
	log "github.com/sirupsen/logrus"
)

func init() {
	logging.SetupBaseLogger()
}

func main() {
	var configPath string
	var migrateOnly bool
	flag.StringVar(&configPath, "config", config.DefaultConfigPath, "Configure File Path")
	flag.BoolVar(&migrateOnly, "migrate", false, "Run database migrations and exit")
	flag.Parse()

	if errLoad := godotenv.Load(".env"); errLoad != nil && !errors.Is(errLoad, os.ErrNotExist) {
		log.WithError(errLoad).Warn("failed to load .env file")
	}

	appCfg := config.AppConfig{ConfigPath: config.ResolveConfigPath(configPath)}
	cfg, err := config.LoadConfig(appCfg.ConfigPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if errLog := logging.ConfigureLogOutput(cfg); errLog != nil {
		log.Fatalf("failed to configure logging: %v", errLog)
	}
	defer logging.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if migrateOnly {
		if errMigrate := app.Migrate(ctx, cfg); errMigrate != nil {
			log.Fatalf("migration failed: %v", errMigrate)
		}
		return
	}

	log.Infof("starting keyshield with config=%s", appCfg.ConfigPath)
	if errRun := app.RunServer(ctx, cfg); errRun != nil {
		log.Errorf("server stopped: %v", errRun)
		logging.Close()
		os.Exit(1)
	}
}
