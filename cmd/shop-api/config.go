package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/vladislavdragonenkov/shop/internal/app"
)

const (
	envHTTPAddr                    = "SHOP_HTTP_ADDR"
	envMetricsAddr                 = "SHOP_METRICS_ADDR"
	envGRPCAddr                    = "SHOP_GRPC_ADDR"
	envStorageDriver               = "SHOP_STORAGE_DRIVER"
	envPostgresDSN                 = "SHOP_POSTGRES_DSN"
	envDatabaseURL                 = "DATABASE_URL"
	envPostgresAutoMigrate         = "SHOP_POSTGRES_AUTO_MIGRATE"
	envRedisAddr                   = "SHOP_REDIS_ADDR"
	envRedisPassword               = "SHOP_REDIS_PASSWORD"
	envRedisDB                     = "SHOP_REDIS_DB"
	envCacheTTL                    = "SHOP_CACHE_TTL"
	envKafkaBrokers                = "KAFKA_BROKERS"
	envKafkaTopic                  = "SHOP_KAFKA_TOPIC"
	envOutboxPollInterval          = "SHOP_OUTBOX_POLL_INTERVAL"
	envOutboxBatchSize             = "SHOP_OUTBOX_BATCH_SIZE"
	envOutboxMaxAttempts           = "SHOP_OUTBOX_MAX_ATTEMPTS"
	envOutboxRetryDelay            = "SHOP_OUTBOX_RETRY_DELAY"
	envIdempotencyTTL              = "SHOP_IDEMPOTENCY_TTL"
	envIdempotencyCleanupInterval  = "SHOP_IDEMPOTENCY_CLEANUP_INTERVAL"
	envIdempotencyCleanupBatchSize = "SHOP_IDEMPOTENCY_CLEANUP_BATCH_SIZE"
	envRequestTimeout              = "SHOP_REQUEST_TIMEOUT"
	envLogLevel                    = "SHOP_LOG_LEVEL"
	envLogFormat                   = "SHOP_LOG_FORMAT"
)

type envLookup func(string) (string, bool)

func readConfig() (app.Config, []string) {
	return readConfigFromEnv(os.LookupEnv)
}

// readConfigFromEnv накладывает переменные окружения на DefaultConfig.
// Некорректные значения не применяются и возвращаются как предупреждения.
func readConfigFromEnv(lookup envLookup) (app.Config, []string) {
	cfg := app.DefaultConfig()
	var warnings []string

	warn := func(key, value string, err error) {
		warnings = append(warnings, fmt.Sprintf("%s=%q ignored: %v", key, value, err))
	}
	positiveInt := func(v int) bool { return v > 0 }
	positiveDuration := func(v time.Duration) bool { return v > 0 }

	setString(lookup, envHTTPAddr, &cfg.HTTPAddr)
	setString(lookup, envMetricsAddr, &cfg.MetricsAddr)
	if v, ok := lookup(envGRPCAddr); ok {
		// Пустое значение явно отключает gRPC.
		cfg.GRPCAddr = strings.TrimSpace(v)
	}
	if v, ok := lookupTrimmed(lookup, envStorageDriver); ok {
		cfg.StorageDriver = strings.ToLower(v)
	}
	if !setString(lookup, envPostgresDSN, &cfg.PostgresDSN) {
		setString(lookup, envDatabaseURL, &cfg.PostgresDSN)
	}
	if v, ok := lookupTrimmed(lookup, envPostgresAutoMigrate); ok {
		if parsed, err := parseBool(v); err != nil {
			warn(envPostgresAutoMigrate, v, err)
		} else {
			cfg.PostgresAutoMigrate = parsed
		}
	}

	setString(lookup, envRedisAddr, &cfg.RedisAddr)
	if v, ok := lookup(envRedisPassword); ok {
		cfg.RedisPassword = v
	}
	if v, ok := lookupTrimmed(lookup, envRedisDB); ok {
		if parsed, err := parseInt(v, func(v int) bool { return v >= 0 }, "must be >= 0"); err != nil {
			warn(envRedisDB, v, err)
		} else {
			cfg.RedisDB = parsed
		}
	}
	setDuration(lookup, envCacheTTL, &cfg.CacheTTL, positiveDuration, "must be > 0", warn)

	setString(lookup, envKafkaBrokers, &cfg.KafkaBrokers)
	setString(lookup, envKafkaTopic, &cfg.KafkaTopic)

	setDuration(lookup, envOutboxPollInterval, &cfg.OutboxPollInterval, positiveDuration, "must be > 0", warn)
	setInt(lookup, envOutboxBatchSize, &cfg.OutboxBatchSize, positiveInt, "must be > 0", warn)
	setInt(lookup, envOutboxMaxAttempts, &cfg.OutboxMaxAttempts, positiveInt, "must be > 0", warn)
	setDuration(lookup, envOutboxRetryDelay, &cfg.OutboxRetryDelay, func(v time.Duration) bool { return v >= 0 }, "must be >= 0", warn)

	setDuration(lookup, envIdempotencyTTL, &cfg.IdempotencyTTL, positiveDuration, "must be > 0", warn)
	setDuration(lookup, envIdempotencyCleanupInterval, &cfg.IdempotencyCleanupInterval, positiveDuration, "must be > 0", warn)
	setInt(lookup, envIdempotencyCleanupBatchSize, &cfg.IdempotencyCleanupBatchSize, positiveInt, "must be > 0", warn)

	setDuration(lookup, envRequestTimeout, &cfg.RequestTimeout, positiveDuration, "must be > 0", warn)

	return cfg, warnings
}

func lookupTrimmed(lookup envLookup, key string) (string, bool) {
	v, ok := lookup(key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func setString(lookup envLookup, key string, dst *string) bool {
	v, ok := lookupTrimmed(lookup, key)
	if ok {
		*dst = v
	}
	return ok
}

func setInt(lookup envLookup, key string, dst *int, valid func(int) bool, rule string, warn func(key, value string, err error)) {
	v, ok := lookupTrimmed(lookup, key)
	if !ok {
		return
	}
	parsed, err := parseInt(v, valid, rule)
	if err != nil {
		warn(key, v, err)
		return
	}
	*dst = parsed
}

func setDuration(lookup envLookup, key string, dst *time.Duration, valid func(time.Duration) bool, rule string, warn func(key, value string, err error)) {
	v, ok := lookupTrimmed(lookup, key)
	if !ok {
		return
	}
	parsed, err := parseDuration(v, valid, rule)
	if err != nil {
		warn(key, v, err)
		return
	}
	*dst = parsed
}

func parseBool(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid bool value %q", raw)
	}
}

func parseInt(raw string, valid func(int) bool, rule string) (int, error) {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid int value %q: %w", raw, err)
	}
	if valid != nil && !valid(value) {
		return 0, fmt.Errorf("invalid int value %d: %s", value, rule)
	}
	return value, nil
}

func parseDuration(raw string, valid func(time.Duration) bool, rule string) (time.Duration, error) {
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid duration value %q: %w", raw, err)
	}
	if valid != nil && !valid(value) {
		return 0, fmt.Errorf("invalid duration value %s: %s", value, rule)
	}
	return value, nil
}
