package notify

import (
	"context"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/bookhive/lending-service/pkg/circuit_breaker"
	"github.com/bookhive/lending-service/pkg/kafka"
)

// KafkaDispatcher publishes notification and history events synchronously.
// The circuit breaker turns a dead broker into fast failures instead of a
// produce timeout on every return.
type KafkaDispatcher struct {
	producer sarama.SyncProducer
	cb       circuit_breaker.CircuitBreaker
	log      *zap.Logger
}

func NewKafkaDispatcher(producer sarama.SyncProducer, log *zap.Logger) *KafkaDispatcher {
	const (
		recordLength     = 20
		timeout          = 10 * time.Second
		percentile       = 0.5
		recoveryRequests = 3
	)
	return &KafkaDispatcher{
		producer: producer,
		cb:       circuit_breaker.New(recordLength, timeout, percentile, recoveryRequests),
		log:      log.Named("dispatch"),
	}
}

func (d *KafkaDispatcher) NotifyUser(_ context.Context, username, message string) error {
	event := kafka.NotificationEvent{
		Username:  username,
		Message:   message,
		CreatedAt: time.Now().UTC(),
	}
	return d.cb.Call(func() error {
		return kafka.Publish(d.producer, kafka.NotificationsTopic, event)
	})
}

func (d *KafkaDispatcher) Record(_ context.Context, event kafka.HistoryEvent) error {
	return d.cb.Call(func() error {
		return kafka.Publish(d.producer, kafka.HistoryTopic, event)
	})
}
