package kafka_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/settle/event"
	"github.com/xraph/settle/host"
	"github.com/xraph/settle/internal/settletest"
	settlekafka "github.com/xraph/settle/publish/kafka"
	"github.com/xraph/settle/settlement"
	"github.com/xraph/settle/types"
)

type fakeWriter struct {
	mu      sync.Mutex
	batches [][]kafka.Message
	err     error
	closed  bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.batches = append(w.batches, msgs)
	return nil
}

func (w *fakeWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

func split(h *settletest.Harness) error {
	return h.Invoke(settletest.Signers("payer"), func(env *host.Env) error {
		return settlement.At("router").Split(env, settletest.Asset, "payer",
			[]types.Address{"a", "b"}, []types.BasisPoints{3000, 7000}, types.NewAmount(10))
	})
}

func TestPublisherBatchesPerInvocation(t *testing.T) {
	h := settletest.New(t)
	h.Fund(100, "payer")

	w := &fakeWriter{}
	require.NoError(t, h.RT.Plugins().Register(settlekafka.NewWithWriter(w)))
	require.NoError(t, split(h))

	require.Len(t, w.batches, 1)
	batch := w.batches[0]
	require.Len(t, batch, 3)

	assert.Equal(t, "settle.asset.transfer", batch[0].Topic)
	assert.Equal(t, "settle.asset.transfer", batch[1].Topic)
	assert.Equal(t, "settle.settlement.split", batch[2].Topic)
	assert.Equal(t, []byte("router"), batch[2].Key)
	assert.Equal(t, []byte(settletest.Asset), batch[0].Key)

	var body struct {
		Contract string `json:"contract"`
		Topic    string `json:"topic"`
		Payload  struct {
			Payer  string `json:"payer"`
			Amount string `json:"amount"`
		} `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(batch[2].Value, &body))
	assert.Equal(t, "router", body.Contract)
	assert.Equal(t, string(event.TopicSplit), body.Topic)
	assert.Equal(t, "payer", body.Payload.Payer)
	assert.Equal(t, "10", body.Payload.Amount)

	require.Len(t, batch[2].Headers, 2)
	assert.Equal(t, "invocation_id", batch[2].Headers[1].Key)
	assert.Equal(t, batch[0].Headers[1].Value, batch[2].Headers[1].Value)
}

func TestPublisherSkipsRolledBackEvents(t *testing.T) {
	h := settletest.New(t)
	w := &fakeWriter{}
	require.NoError(t, h.RT.Plugins().Register(settlekafka.NewWithWriter(w)))

	require.Error(t, split(h), "payer is unfunded")
	assert.Empty(t, w.batches)
}

func TestPublisherWriteFailureDoesNotRollBack(t *testing.T) {
	h := settletest.New(t)
	h.Fund(100, "payer")
	w := &fakeWriter{err: errors.New("broker unavailable")}
	require.NoError(t, h.RT.Plugins().Register(settlekafka.NewWithWriter(w)))

	require.NoError(t, split(h))
	assert.Equal(t, int64(90), h.Balance("payer"))
}

func TestPublisherPrefixAndShutdown(t *testing.T) {
	w := &fakeWriter{}
	p := settlekafka.NewWithWriter(w, settlekafka.WithPrefix("prod"))
	assert.Equal(t, "prod.invoice.paid", p.Topic(event.TopicInvoicePaid))
	assert.Equal(t, "invoice.paid", settlekafka.NewWithWriter(w, settlekafka.WithPrefix("")).Topic(event.TopicInvoicePaid))

	require.NoError(t, p.OnShutdown(context.Background()))
	assert.True(t, w.closed)
}

func TestNewBuildsWriter(t *testing.T) {
	p := settlekafka.New([]string{"localhost:9092"})
	assert.Equal(t, "kafka-publisher", p.Name())
	assert.Equal(t, "settle.exchange.listed", p.Topic(event.TopicListed))
}
