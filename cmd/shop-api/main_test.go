package main

import (
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/shop/internal/app"
)

func mapLookup(values map[string]string) envLookup {
	return func(key string) (string, bool) {
		value, ok := values[key]
		return value, ok
	}
}

func TestReadConfigFromEnv_Defaults(t *testing.T) {
	cfg, warnings := readConfigFromEnv(mapLookup(nil))

	assert.Empty(t, warnings)
	assert.Equal(t, app.DefaultConfig(), cfg)
}

func TestReadConfigFromEnv_Overrides(t *testing.T) {
	cfg, warnings := readConfigFromEnv(mapLookup(map[string]string{
		envHTTPAddr:                    "0.0.0.0:8080",
		envGRPCAddr:                    "0.0.0.0:50052",
		envMetricsAddr:                 "0.0.0.0:9091",
		envStorageDriver:               " PoStGrEs ",
		envPostgresDSN:                 " postgres://shop:shop@db:5432/shop?sslmode=disable ",
		envPostgresAutoMigrate:         "off",
		envRedisAddr:                   "redis:6379",
		envRedisPassword:               "secret",
		envRedisDB:                     "2",
		envCacheTTL:                    "30s",
		envKafkaBrokers:                "k1:9092,k2:9092",
		envKafkaTopic:                  "shop.orders",
		envOutboxPollInterval:          "2s",
		envOutboxBatchSize:             "42",
		envOutboxMaxAttempts:           "7",
		envOutboxRetryDelay:            "0s",
		envIdempotencyTTL:              "1h",
		envIdempotencyCleanupInterval:  "30m",
		envIdempotencyCleanupBatchSize: "123",
		envRequestTimeout:              "3s",
	}))
	require.Empty(t, warnings)

	assert.Equal(t, app.Config{
		HTTPAddr:                    "0.0.0.0:8080",
		MetricsAddr:                 "0.0.0.0:9091",
		GRPCAddr:                    "0.0.0.0:50052",
		StorageDriver:               app.StorageDriverPostgres,
		PostgresDSN:                 "postgres://shop:shop@db:5432/shop?sslmode=disable",
		PostgresAutoMigrate:         false,
		RedisAddr:                   "redis:6379",
		RedisPassword:               "secret",
		RedisDB:                     2,
		CacheTTL:                    30 * time.Second,
		KafkaBrokers:                "k1:9092,k2:9092",
		KafkaTopic:                  "shop.orders",
		OutboxPollInterval:          2 * time.Second,
		OutboxBatchSize:             42,
		OutboxMaxAttempts:           7,
		OutboxRetryDelay:            0,
		IdempotencyTTL:              time.Hour,
		IdempotencyCleanupInterval:  30 * time.Minute,
		IdempotencyCleanupBatchSize: 123,
		RequestTimeout:              3 * time.Second,
	}, cfg)
}

func TestReadConfigFromEnv_PostgresDSNSources(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{name: "none", env: nil, want: ""},
		{name: "database url", env: map[string]string{envDatabaseURL: "postgres://fallback"}, want: "postgres://fallback"},
		{
			name: "shop dsn wins",
			env:  map[string]string{envDatabaseURL: "postgres://fallback", envPostgresDSN: "postgres://primary"},
			want: "postgres://primary",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg, _ := readConfigFromEnv(mapLookup(tc.env))
			assert.Equal(t, tc.want, cfg.PostgresDSN)
		})
	}
}

func TestReadConfigFromEnv_EmptyGRPCAddrDisablesServer(t *testing.T) {
	cfg, warnings := readConfigFromEnv(mapLookup(map[string]string{envGRPCAddr: "  "}))

	assert.Empty(t, warnings)
	assert.Empty(t, cfg.GRPCAddr)
}

func TestReadConfigFromEnv_InvalidValuesKeepDefaults(t *testing.T) {
	invalid := map[string]string{
		envPostgresAutoMigrate:         "sometimes",
		envRedisDB:                     "-1",
		envCacheTTL:                    "0s",
		envOutboxPollInterval:          "-1s",
		envOutboxBatchSize:             "0",
		envOutboxMaxAttempts:           "many",
		envOutboxRetryDelay:            "soon",
		envIdempotencyTTL:              "forever",
		envIdempotencyCleanupInterval:  "hourly",
		envIdempotencyCleanupBatchSize: "0",
		envRequestTimeout:              "-5s",
	}

	cfg, warnings := readConfigFromEnv(mapLookup(invalid))

	assert.Len(t, warnings, len(invalid))
	for key := range invalid {
		assert.True(t, containsKey(warnings, key), "no warning for %s", key)
	}
	assert.Equal(t, app.DefaultConfig(), cfg)
}

func containsKey(warnings []string, key string) bool {
	for _, w := range warnings {
		if len(w) >= len(key) && w[:len(key)] == key {
			return true
		}
	}
	return false
}

func TestSetupLogger(t *testing.T) {
	t.Cleanup(func() {
		log.SetLevel(log.InfoLevel)
		log.SetFormatter(&log.TextFormatter{})
	})

	warnings := setupLogger(mapLookup(map[string]string{envLogLevel: "debug", envLogFormat: "json"}))
	assert.Empty(t, warnings)
	assert.Equal(t, log.DebugLevel, log.GetLevel())
	assert.IsType(t, &log.JSONFormatter{}, log.StandardLogger().Formatter)

	warnings = setupLogger(mapLookup(map[string]string{envLogLevel: "loud", envLogFormat: "xml"}))
	assert.Len(t, warnings, 2)
	assert.Equal(t, log.InfoLevel, log.GetLevel())
}

func TestParseHelpers(t *testing.T) {
	positive := func(v int) bool { return v > 0 }
	nonNegative := func(v time.Duration) bool { return v >= 0 }

	for raw, want := range map[string]bool{" YES ": true, "on": true, "off": false, "0": false} {
		got, err := parseBool(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, got, raw)
	}
	_, err := parseBool("sometimes")
	assert.Error(t, err)

	n, err := parseInt(" 12 ", positive, "must be > 0")
	require.NoError(t, err)
	assert.Equal(t, 12, n)
	_, err = parseInt("0", positive, "must be > 0")
	assert.ErrorContains(t, err, "must be > 0")

	d, err := parseDuration(" 250ms ", nonNegative, "must be >= 0")
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, d)
	_, err = parseDuration("-1ms", nonNegative, "must be >= 0")
	assert.Error(t, err)
}
