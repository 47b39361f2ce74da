package stream

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessage_CarriesEnqueueTimestamp(t *testing.T) {
	tx := streamTx("tx-m1")

	before := time.Now().UTC()
	msg := NewMessage(tx)

	assert.Equal(t, "tx-m1", msg.TransactionID)
	assert.False(t, msg.EnqueuedAt.Before(before))

	encoded, err := msg.Encode()
	require.NoError(t, err)

	decoded, err := DecodeMessage(encoded)
	require.NoError(t, err)
	assert.Equal(t, msg.TransactionID, decoded.TransactionID)
	assert.Equal(t, tx.CustomerID, decoded.Transaction.CustomerID)
	assert.WithinDuration(t, msg.EnqueuedAt, decoded.EnqueuedAt, time.Second)
}

func TestDecodeMessage_RejectsGarbage(t *testing.T) {
	_, err := DecodeMessage([]byte("{truncated"))
	assert.Error(t, err)
}
