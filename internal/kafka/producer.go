package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"ms-bidding/internal/logger"
	"ms-bidding/internal/models"

	"github.com/segmentio/kafka-go"
)

// Producer streams every bidding event to the bid-events topic so other
// services (notifications, analytics, settlement) can consume them durably.
// Messages are keyed by gig id: one gig's events land on one partition in
// commit order, mirroring the per-gig lock's linearization.
type Producer struct {
	Writer *kafka.Writer
	Topic  string
	Logger *logger.Logger
}

func NewProducer(brokers []string, topic string, log *logger.Logger) *Producer {
	writer := kafka.NewWriter(kafka.WriterConfig{
		Brokers: brokers,
		Topic:   topic,
	})
	return &Producer{Writer: writer, Topic: topic, Logger: log}
}

// Publish implements the event sink side consumed by the services. Delivery
// failures are logged and swallowed: the stream is an integration feed, not
// part of the bid transaction.
func (p *Producer) Publish(event models.Event) {
	msgBytes, err := json.Marshal(event)
	if err != nil {
		p.Logger.Error("KAFKA", fmt.Sprintf("marshal %s event: %v", event.Type, err))
		return
	}

	key := event.Room
	if scoped, ok := event.Data.(models.GigScoped); ok {
		key = scoped.GigKey()
	}

	err = p.Writer.WriteMessages(context.Background(), kafka.Message{
		Key:   []byte(key),
		Value: msgBytes,
	})
	if err != nil {
		p.Logger.Error("KAFKA", fmt.Sprintf("publish %s: %v", event.Type, err))
		return
	}
	p.Logger.LogKafka("PUBLISH", p.Topic, event.Type+" key="+key)
}

func (p *Producer) Close() error {
	return p.Writer.Close()
}
