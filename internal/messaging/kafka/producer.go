package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"
)

const (
	defaultClientID    = "shop-api"
	defaultSendRetries = 5
)

// Producer отправляет события заказов синхронно и ждёт подтверждения всех реплик.
type Producer struct {
	sync   sarama.SyncProducer
	logger *log.Entry
	now    func() time.Time
}

// ProducerOption настраивает Producer.
type ProducerOption func(*producerSettings)

type producerSettings struct {
	clientID string
	retries  int
	logger   *log.Entry
}

// WithClientID задаёт client.id, под которым сервис виден брокерам.
func WithClientID(id string) ProducerOption {
	return func(s *producerSettings) {
		if id != "" {
			s.clientID = id
		}
	}
}

// WithSendRetries задаёт число повторов отправки внутри sarama.
func WithSendRetries(n int) ProducerOption {
	return func(s *producerSettings) {
		if n > 0 {
			s.retries = n
		}
	}
}

// WithProducerLogger подменяет логгер producer.
func WithProducerLogger(logger *log.Entry) ProducerOption {
	return func(s *producerSettings) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func newSettings(opts []ProducerOption) producerSettings {
	s := producerSettings{
		clientID: defaultClientID,
		retries:  defaultSendRetries,
		logger:   log.WithField("component", "kafka-producer"),
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// saramaConfig собирает idempotent-конфигурацию: при Idempotent sarama требует
// acks=all и не более одного запроса в полёте на соединение.
func (s producerSettings) saramaConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.ClientID = s.clientID
	cfg.Producer.Idempotent = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Net.MaxOpenRequests = 1
	cfg.Producer.Retry.Max = s.retries
	cfg.Producer.Return.Successes = true
	cfg.Producer.Compression = sarama.CompressionSnappy
	return cfg
}

// NewProducer подключается к брокерам.
func NewProducer(brokers []string, opts ...ProducerOption) (*Producer, error) {
	settings := newSettings(opts)
	sync, err := sarama.NewSyncProducer(brokers, settings.saramaConfig())
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	return &Producer{sync: sync, logger: settings.logger, now: time.Now}, nil
}

func newProducer(sync sarama.SyncProducer, opts ...ProducerOption) *Producer {
	return &Producer{sync: sync, logger: newSettings(opts).logger, now: time.Now}
}

// PublishEvent кладёт event в topic как JSON. Сообщения с одинаковым key
// попадают в одну партицию и читаются по порядку.
func (p *Producer) PublishEvent(topic, key string, event any, headers ...sarama.RecordHeader) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event for %s: %w", topic, err)
	}

	fields := log.Fields{"topic": topic, "key": key}
	partition, offset, err := p.sync.SendMessage(&sarama.ProducerMessage{
		Topic:     topic,
		Key:       sarama.StringEncoder(key),
		Value:     sarama.ByteEncoder(body),
		Headers:   headers,
		Timestamp: p.now(),
	})
	if err != nil {
		p.logger.WithError(err).WithFields(fields).Error("kafka rejected event")
		return fmt.Errorf("send message to %s: %w", topic, err)
	}

	fields["partition"] = partition
	fields["offset"] = offset
	p.logger.WithFields(fields).Debug("event delivered")
	return nil
}

// Close сбрасывает буферы и закрывает соединения с брокерами.
func (p *Producer) Close() error {
	if p == nil || p.sync == nil {
		return nil
	}
	if err := p.sync.Close(); err != nil {
		return fmt.Errorf("close kafka producer: %w", err)
	}
	return nil
}
