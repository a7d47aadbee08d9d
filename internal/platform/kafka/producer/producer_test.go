package producer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRequiresBrokers(t *testing.T) {
	_, err := New(DefaultConfig(" , "), nil)
	require.Error(t, err)
}

func TestSplitBrokers(t *testing.T) {
	assert.Equal(t, []string{"a:9092", "b:9092"}, splitBrokers(" a:9092, ,b:9092 "))
}

func TestRecordOrdersHeaders(t *testing.T) {
	rec := record(&Message{
		Topic:   "idmanager.issuance.events",
		Key:     []byte("conn-1"),
		Value:   []byte(`{}`),
		Headers: map[string]string{"type": "offer_sent", "content-type": "application/json"},
	})

	require.Len(t, rec.Headers, 2)
	assert.Equal(t, "content-type", rec.Headers[0].Key)
	assert.Equal(t, "type", rec.Headers[1].Key)
	assert.Equal(t, "conn-1", string(rec.Key))
}

func TestClosedProducerRejectsWork(t *testing.T) {
	p, err := New(DefaultConfig("127.0.0.1:1"), nil)
	require.NoError(t, err)
	require.NoError(t, p.Close())
	require.NoError(t, p.Close())

	assert.ErrorIs(t, p.Produce(t.Context(), &Message{Topic: "t"}), ErrClosed)
	assert.ErrorIs(t, p.Ping(t.Context()), ErrClosed)
}
