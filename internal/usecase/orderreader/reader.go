// Package orderreader consumes order requests from Kafka and decodes
// them for the engine.
package orderreader

import (
	"context"
	"encoding/json"

	"github.com/diznq/core-se/pkg/config"
	"github.com/diznq/core-se/pkg/errors"
	"github.com/diznq/core-se/pkg/logger"
	"github.com/segmentio/kafka-go"
)

// Request actions.
const (
	ActionPlace   = "place"
	ActionCancel  = "cancel"
	ActionDeposit = "deposit"
)

// Request is one decoded order-topic message. Place carries the book
// pair, side, price, volume and optional TTL; cancel carries the book
// pair and order id; deposit carries an asset and amount.
type Request struct {
	Action  string `json:"action"`
	Account string `json:"account"`
	Base    string `json:"base,omitempty"`
	Quote   string `json:"quote,omitempty"`
	Side    string `json:"side,omitempty"`
	Price   int64  `json:"price,omitempty"`
	Volume  int64  `json:"volume,omitempty"`
	TTL     int64  `json:"ttl,omitempty"`
	OrderID int64  `json:"order_id,omitempty"`
	Asset   string `json:"asset,omitempty"`
	Amount  int64  `json:"amount,omitempty"`
}

// Reader consumes the order topic.
type Reader struct {
	kafkaReader *kafka.Reader
	logger      *logger.Logger
}

// NewReader creates a Kafka reader on the order topic.
func NewReader(cfg config.KafkaConfig, log *logger.Logger) *Reader {
	kafkaReader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       cfg.OrderTopic,
		GroupID:     cfg.GroupID,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafka.LastOffset,
	})

	return &Reader{
		kafkaReader: kafkaReader,
		logger:      log,
	}
}

// ReadRequest reads and decodes the next order request. A message that
// fails to decode is returned with an OrderDecodeError so the caller can
// skip it without stopping the consumer.
func (r *Reader) ReadRequest(ctx context.Context) (kafka.Message, *Request, error) {
	msg, err := r.kafkaReader.ReadMessage(ctx)
	if err != nil {
		return kafka.Message{}, nil, err
	}

	var request Request
	if err := json.Unmarshal(msg.Value, &request); err != nil {
		r.logger.Error(err,
			logger.Field{Key: "operation", Value: "UnmarshalRequest"},
			logger.Field{Key: "offset", Value: msg.Offset},
		)
		return msg, nil, errors.NewErrorDetails("failed to decode order request", string(errors.OrderDecodeError), "")
	}

	r.logger.Debug("order request",
		logger.Field{Key: "action", Value: request.Action},
		logger.Field{Key: "account", Value: request.Account},
		logger.Field{Key: "offset", Value: msg.Offset},
	)

	return msg, &request, nil
}

// Close shuts the underlying Kafka reader down.
func (r *Reader) Close() error {
	if err := r.kafkaReader.Close(); err != nil {
		r.logger.Error(err, logger.Field{Key: "operation", Value: "Close"})
		return err
	}
	return nil
}
