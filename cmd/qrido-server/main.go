package main

import (
	"context"
	"flag"
	"io"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/qrido/qrido-server/internal/app"
	"github.com/qrido/qrido-server/internal/config"
)

func main() {
	var (
		configPath string
		migrate    bool
	)
	flag.StringVar(&configPath, "config", "", "path to the configuration file")
	flag.BoolVar(&migrate, "migrate", false, "run database migrations and exit")
	flag.Parse()

	appCfg := config.AppConfig{ConfigPath: configPath}
	setupLogging(config.ResolveConfigPath(configPath))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if migrate {
		if errMigrate := app.Migrate(ctx, appCfg); errMigrate != nil {
			log.Fatalf("migrate: %v", errMigrate)
		}
		log.Info("migrations applied")
		return
	}

	if errRun := app.RunServer(ctx, appCfg); errRun != nil {
		log.Fatalf("server: %v", errRun)
	}
}

// setupLogging configures logrus from the config file. Errors fall back to
// stderr logging so a broken log section never hides the real failure.
func setupLogging(configPath string) {
	cfg, errLoad := config.Load(configPath)
	if errLoad != nil {
		log.SetLevel(log.InfoLevel)
		return
	}

	level, errParse := log.ParseLevel(cfg.Log.Level)
	if errParse != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	if cfg.Log.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.Log.File,
			MaxSize:    cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
			MaxAge:     cfg.Log.MaxAgeDays,
			Compress:   true,
		}
		log.SetOutput(io.MultiWriter(os.Stdout, rotator))
	}
}
