package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shop/internal/app"
)

// setupLogger настраивает формат и уровень логирования для сервиса.
func setupLogger(lookup envLookup) []string {
	var warnings []string

	format, _ := lookupTrimmed(lookup, envLogFormat)
	switch strings.ToLower(format) {
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	case "", "text":
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	default:
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
		warnings = append(warnings, envLogFormat+"="+format+" ignored: use text|json")
	}

	level := log.InfoLevel
	if raw, ok := lookupTrimmed(lookup, envLogLevel); ok {
		parsed, err := log.ParseLevel(raw)
		if err != nil {
			warnings = append(warnings, envLogLevel+"="+raw+" ignored: "+err.Error())
		} else {
			level = parsed
		}
	}
	log.SetLevel(level)
	return warnings
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.WithError(err).Warn("failed to load .env")
	}

	warnings := setupLogger(os.LookupEnv)
	cfg, cfgWarnings := readConfig()
	for _, w := range append(warnings, cfgWarnings...) {
		log.Warn(w)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithFields(log.Fields{
		"http_addr":      cfg.HTTPAddr,
		"metrics_addr":   cfg.MetricsAddr,
		"grpc_addr":      cfg.GRPCAddr,
		"storage_driver": cfg.StorageDriver,
		"cache_enabled":  cfg.RedisAddr != "",
		"kafka_enabled":  cfg.KafkaBrokers != "",
	}).Info("запускаем shop api")

	if err := app.Run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Fatal("приложение завершилось с ошибкой")
	}

	log.Info("shop api остановлен")
}
