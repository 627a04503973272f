package tradefeed

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"testing"

	ledgerv1 "github.com/diznq/core-se/internal/domain/ledger/v1"
	"github.com/diznq/core-se/pkg/errors"
	"github.com/diznq/core-se/pkg/logger"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	messages []kafka.Message
	fail     error
	closed   bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.fail != nil {
		return w.fail
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func newTestPublisher(t *testing.T, writer messageWriter) *Publisher {
	t.Helper()

	log, err := logger.NewLogger(logger.WithLoggingLevel(logger.ErrorLevel))
	require.NoError(t, err)

	return &Publisher{kafkaWriter: writer, logger: log}
}

func TestPublisher_PublishTrade(t *testing.T) {
	writer := &fakeWriter{}
	p := newTestPublisher(t, writer)

	err := p.PublishTrade(context.Background(), "gold/usd", ledgerv1.Tx{Time: 7, Price: 5, Volume: 3})
	require.NoError(t, err)

	require.Len(t, writer.messages, 1)
	assert.Equal(t, []byte("gold/usd"), writer.messages[0].Key)

	var event TradeEvent
	require.NoError(t, json.Unmarshal(writer.messages[0].Value, &event))
	assert.NotEmpty(t, event.ID)
	assert.Equal(t, "gold/usd", event.Book)
	assert.Equal(t, int64(7), event.Tick)
	assert.Equal(t, int64(5), event.Price)
	assert.Equal(t, int64(3), event.Volume)
}

func TestPublisher_PublishTrade_WriteFailurePreservesCause(t *testing.T) {
	cause := stderrors.New("broker unreachable")
	p := newTestPublisher(t, &fakeWriter{fail: cause})

	err := p.PublishTrade(context.Background(), "gold/usd", ledgerv1.Tx{Time: 1, Price: 5, Volume: 2})

	require.Error(t, err)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, string(errors.TradePublishError), err.Error())
}

func TestPublisher_Close(t *testing.T) {
	writer := &fakeWriter{}
	p := newTestPublisher(t, writer)

	require.NoError(t, p.Close())
	assert.True(t, writer.closed)
}
