// Package tradefeed publishes executed trades to Kafka. Delivery is best
// effort: a failed publish is logged and dropped, never retried, so slow
// downstream consumers cannot stall matching.
package tradefeed

import (
	"context"
	"encoding/json"

	ledgerv1 "github.com/diznq/core-se/internal/domain/ledger/v1"
	"github.com/diznq/core-se/pkg/config"
	"github.com/diznq/core-se/pkg/errors"
	"github.com/diznq/core-se/pkg/logger"
	"github.com/oklog/ulid/v2"
	"github.com/segmentio/kafka-go"
)

// TradeEvent is one published fill. ID is a ULID, so events sort by
// publication time across books.
type TradeEvent struct {
	ID     string `json:"id"`
	Book   string `json:"book"`
	Tick   int64  `json:"tick"`
	Price  int64  `json:"price"`
	Volume int64  `json:"volume"`
}

// messageWriter is the slice of kafka.Writer the publisher depends on.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher writes trade events to the trade topic, keyed by book name
// so one book's trades stay ordered within a partition.
type Publisher struct {
	kafkaWriter messageWriter
	logger      *logger.Logger
}

// NewPublisher creates a Kafka publisher on the trade topic.
func NewPublisher(cfg config.KafkaConfig, log *logger.Logger) *Publisher {
	kafkaWriter := kafka.NewWriter(kafka.WriterConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.TradeTopic,
		Balancer: &kafka.Hash{},
	})

	return &Publisher{
		kafkaWriter: kafkaWriter,
		logger:      log,
	}
}

// PublishTrade publishes one fill of the named book.
func (p *Publisher) PublishTrade(ctx context.Context, book string, tx ledgerv1.Tx) error {
	event := TradeEvent{
		ID:     ulid.Make().String(),
		Book:   book,
		Tick:   tx.Time,
		Price:  tx.Price,
		Volume: tx.Volume,
	}

	value, err := json.Marshal(event)
	if err != nil {
		return errors.NewTracer("failed to encode trade event").Wrap(err)
	}

	msg := kafka.Message{
		Key:   []byte(book),
		Value: value,
	}

	if err := p.kafkaWriter.WriteMessages(ctx, msg); err != nil {
		p.logger.Error(err,
			logger.Field{Key: "book", Value: book},
			logger.Field{Key: "event_id", Value: event.ID},
		)
		return errors.NewTracer(string(errors.TradePublishError)).Wrap(err)
	}
	return nil
}

// Close shuts the underlying Kafka writer down.
func (p *Publisher) Close() error {
	if err := p.kafkaWriter.Close(); err != nil {
		p.logger.Error(err, logger.Field{Key: "operation", Value: "Close"})
		return err
	}
	return nil
}
