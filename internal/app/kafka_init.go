package app

import (
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shop/internal/messaging/kafka"
)

// parseBrokers разбирает KAFKA_BROKERS: адреса через запятую, пустые пропускаются.
func parseBrokers(raw string) []string {
	var brokers []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			brokers = append(brokers, part)
		}
	}
	return brokers
}

// initKafkaProducer подключает producer для outbox. Без брокеров возвращает
// nil, nil: сервис работает без публикации событий.
func initKafkaProducer(raw string, logger *log.Entry) (*kafka.Producer, error) {
	brokers := parseBrokers(raw)
	if len(brokers) == 0 {
		return nil, nil
	}

	producer, err := kafka.NewProducer(brokers, kafka.WithProducerLogger(logger.WithField("layer", "kafka")))
	if err != nil {
		logger.WithError(err).WithField("brokers", brokers).Warn("kafka is unreachable, order events will not be published")
		return nil, err
	}
	logger.WithField("brokers", brokers).Info("kafka producer connected")
	return producer, nil
}

func closeKafkaProducer(producer *kafka.Producer, logger *log.Entry) {
	if producer == nil {
		return
	}
	if err := producer.Close(); err != nil {
		logger.WithError(err).Warn("kafka producer close failed")
		return
	}
	logger.Info("kafka producer closed")
}
