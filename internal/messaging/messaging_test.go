package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Aidin1998/dexter/pkg/models"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func sampleReport() models.SettlementReport {
	return models.SettlementReport{
		Status:    "Order swapped in Liquidity Pool: buy 2 received 47.6 token B",
		Outcome:   models.OutcomePoolFilled,
		Order:     models.NewOrder(models.Buy, 50, 2),
		AmountOut: 47.6,
		SettledAt: time.Now(),
	}
}

func TestKafkaPublisher_Publish(t *testing.T) {
	w := &fakeWriter{}
	p := newKafkaPublisher(w, TopicSettlements, zap.NewNop())
	r := sampleReport()

	require.NoError(t, p.Publish(context.Background(), r))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, r.Order.ID.String(), string(w.msgs[0].Key))

	var msg SettlementMessage
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &msg))
	assert.Equal(t, MsgOrderSettled, msg.Type)
	assert.Equal(t, r.Order.ID.String(), msg.OrderID)
	assert.Equal(t, models.OutcomePoolFilled, msg.Outcome)
	assert.Equal(t, "50", msg.Price.String())
	assert.Equal(t, "47.6", msg.AmountOut.String())
	assert.NotEmpty(t, msg.MessageID)

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestKafkaPublisher_WriteError(t *testing.T) {
	boom := errors.New("broker down")
	p := newKafkaPublisher(&fakeWriter{err: boom}, TopicSettlements, zap.NewNop())
	err := p.Publish(context.Background(), sampleReport())
	assert.ErrorIs(t, err, boom)
}

func TestNewKafkaPublisher_RequiresBrokers(t *testing.T) {
	_, err := NewKafkaPublisher(&KafkaConfig{}, zap.NewNop())
	assert.Error(t, err)

	p, err := NewKafkaPublisher(nil, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, TopicSettlements, p.topic)
}

func TestCompression(t *testing.T) {
	assert.Equal(t, kafka.Gzip, compression("gzip"))
	assert.Equal(t, kafka.Zstd, compression("zstd"))
	assert.Equal(t, kafka.Snappy, compression("unknown"))
}

type failingPublisher struct{ err error }

func (p failingPublisher) Publish(context.Context, models.SettlementReport) error { return p.err }

func TestMessageBus_FansOut(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	w := &fakeWriter{}
	boom := errors.New("boom")
	bus := NewMessageBus(
		NewLogPublisher(zap.New(core)),
		nil,
		failingPublisher{err: boom},
		newKafkaPublisher(w, TopicSettlements, zap.NewNop()),
	)

	err := bus.Publish(context.Background(), sampleReport())
	assert.ErrorIs(t, err, boom)
	// the failure does not stop later publishers
	assert.Len(t, w.msgs, 1)
	require.Equal(t, 1, logs.FilterMessage("order settled").Len())
	assert.Equal(t, "pool_filled", logs.All()[0].ContextMap()["outcome"])
}

func TestMessageBus_Empty(t *testing.T) {
	assert.NoError(t, NewMessageBus().Publish(context.Background(), sampleReport()))
}
