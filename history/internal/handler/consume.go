package handler

import (
	"context"
	"encoding/json"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/bookhive/lending-service/pkg/kafka"
)

type appendEntry func(ctx context.Context, event kafka.HistoryEvent) error

type Consumer struct {
	appendHandler appendEntry
	log           *zap.Logger
	ready         chan bool
}

func NewConsumer(appendHandler appendEntry, log *zap.Logger) *Consumer {
	return &Consumer{
		appendHandler: appendHandler,
		log:           log.Named("consumer"),
		ready:         make(chan bool),
	}
}

func (consumer *Consumer) Setup(sarama.ConsumerGroupSession) error {
	// Mark the consumer as ready
	close(consumer.ready)
	return nil
}

func (consumer *Consumer) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

func (consumer *Consumer) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case message, ok := <-claim.Messages():
			if !ok {
				consumer.log.Warn("message channel was closed")
				return nil
			}
			var event kafka.HistoryEvent
			if err := json.Unmarshal(message.Value, &event); err != nil {
				consumer.log.Error("unmarshal history event", zap.Error(err))
				session.MarkMessage(message, "")
				continue
			}

			if err := consumer.appendHandler(context.Background(), event); err != nil {
				consumer.log.Error("consumer.appendHandler", zap.Error(err))
				continue
			}

			session.MarkMessage(message, "")
		case <-session.Context().Done():
			return nil
		}
	}
}
