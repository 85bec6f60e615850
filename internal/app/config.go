package app

import (
	"time"

	"github.com/vladislavdragonenkov/shop/internal/messaging/kafka"
)

const (
	// StorageDriverMemory хранит данные в памяти процесса.
	StorageDriverMemory = "memory"
	// StorageDriverPostgres хранит данные в PostgreSQL.
	StorageDriverPostgres = "postgres"
)

// Config описывает настройки запуска приложения.
type Config struct {
	HTTPAddr    string
	MetricsAddr string
	// GRPCAddr: адрес gRPC health-сервера; пустая строка отключает его.
	GRPCAddr string

	StorageDriver       string
	PostgresDSN         string
	PostgresAutoMigrate bool

	// RedisAddr: адрес кэша каталога; пустая строка отключает кэш.
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CacheTTL      time.Duration

	// KafkaBrokers: список брокеров через запятую; пустая строка отключает публикацию событий.
	KafkaBrokers string
	KafkaTopic   string

	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxMaxAttempts  int
	OutboxRetryDelay   time.Duration

	IdempotencyTTL              time.Duration
	IdempotencyCleanupInterval  time.Duration
	IdempotencyCleanupBatchSize int

	RequestTimeout time.Duration
}

// DefaultConfig возвращает настройки для локального запуска без внешних зависимостей.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:    ":8000",
		MetricsAddr: ":9090",
		GRPCAddr:    ":50051",

		StorageDriver:       StorageDriverMemory,
		PostgresAutoMigrate: true,

		CacheTTL: 5 * time.Minute,

		KafkaTopic: kafka.TopicOrderEvents,

		OutboxPollInterval: time.Second,
		OutboxBatchSize:    100,
		OutboxMaxAttempts:  3,
		OutboxRetryDelay:   50 * time.Millisecond,

		IdempotencyTTL:              24 * time.Hour,
		IdempotencyCleanupInterval:  10 * time.Minute,
		IdempotencyCleanupBatchSize: 500,

		RequestTimeout: 10 * time.Second,
	}
}
