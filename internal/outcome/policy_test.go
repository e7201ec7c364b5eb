package outcome

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPolicies(t *testing.T) {
	cause := errors.New("connection reset")

	optimistic := OptimisticSuccessPolicy{}
	assert.True(t, optimistic.AcceptAmbiguous(OpCreateOrder, cause))
	assert.True(t, optimistic.AcceptAmbiguous(OpCapturePayment, cause))
	assert.False(t, optimistic.AcceptAmbiguous(Operation("update_status"), cause))

	strict := StrictPolicy{}
	assert.False(t, strict.AcceptAmbiguous(OpCreateOrder, cause))
	assert.False(t, strict.AcceptAmbiguous(OpCapturePayment, cause))
}

func TestForName(t *testing.T) {
	p, err := ForName("strict")
	require.NoError(t, err)
	assert.Equal(t, "strict", p.Name())

	p, err = ForName("")
	require.NoError(t, err)
	assert.Equal(t, "optimistic", p.Name())

	_, err = ForName("lenient")
	assert.Error(t, err)
}

func TestIDGenerator_DistinctIDs(t *testing.T) {
	fixed := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	g := &IDGenerator{Now: func() time.Time { return fixed }}

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := g.OrderID()
		assert.NotEmpty(t, id)
		assert.True(t, IsFallbackOrderID(id))
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}

	assert.Contains(t, g.TransactionID(), "TXN-")
	assert.Contains(t, g.CashTransactionID(), "CASH-")
}
