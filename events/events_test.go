package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/stock-ledger/ledger"
)

type fakeWriter struct {
	messages []kafka.Message
	deadline bool
	err      error
	closed   bool
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	_, w.deadline = ctx.Deadline()
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func sampleEvent() ledger.Event {
	return ledger.Event{
		Type:     ledger.EventDistributionAllocated,
		LotID:    7,
		EntryID:  3,
		Quantity: 30,
		Stocks:   30,
		Actor:    "pharmacist-1",
		At:       time.Date(2025, time.January, 3, 8, 0, 0, 0, time.UTC),
	}
}

func TestMessage(t *testing.T) {
	msg, err := message(sampleEvent())
	require.NoError(t, err)

	assert.Equal(t, "lot-7", string(msg.Key))
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, headerType, msg.Headers[0].Key)
	assert.Equal(t, "distribution.allocated", string(msg.Headers[0].Value))
	assert.True(t, msg.Time.Equal(sampleEvent().At))

	var decoded ledger.Event
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, ledger.EntryID(3), decoded.EntryID)
	assert.Equal(t, 30, decoded.Stocks)
}

func TestKafkaPublisher_Notify(t *testing.T) {
	w := &fakeWriter{}
	p := &KafkaPublisher{writer: w}

	require.NoError(t, p.Notify(context.Background(), sampleEvent()))
	require.Len(t, w.messages, 1)
	assert.True(t, w.deadline, "writes are bounded by a timeout")

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestKafkaPublisher_WriteError(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker down")}
	p := &KafkaPublisher{writer: w}

	err := p.Notify(context.Background(), sampleEvent())

	assert.ErrorContains(t, err, "broker down")
	assert.ErrorContains(t, err, "distribution.allocated")
}

func TestLogNotifier(t *testing.T) {
	logger, hook := test.NewNullLogger()
	n := NewLogNotifier(logger)

	require.NoError(t, n.Notify(context.Background(), sampleEvent()))

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.InfoLevel, entry.Level)
	assert.Equal(t, "stock event", entry.Message)
	assert.Equal(t, ledger.EventDistributionAllocated, entry.Data["event"])
	assert.Equal(t, ledger.EntryID(3), entry.Data["entry_id"])
	assert.NotContains(t, entry.Data, "dispensing_id")
}
