package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestComputeTotals(t *testing.T) {
	items := []OrderItem{
		{MenuItemID: "a", Name: "Margherita", Price: decimal.NewFromInt(10), Quantity: 2},
		{MenuItemID: "b", Name: "Tiramisu", Price: decimal.NewFromInt(5), Quantity: 1},
	}

	subtotal, tax, total := ComputeTotals(items, decimal.NewFromFloat(0.10))

	assert.True(t, subtotal.Equal(decimal.NewFromInt(25)), "subtotal = %s", subtotal)
	assert.True(t, tax.Equal(decimal.RequireFromString("2.5")), "tax = %s", tax)
	assert.True(t, total.Equal(decimal.RequireFromString("27.5")), "total = %s", total)
}

func TestDraftOrder_WithItemsCopies(t *testing.T) {
	items := []OrderItem{{MenuItemID: "a", Name: "Soup", Price: decimal.NewFromInt(4), Quantity: 3}}
	draft := DraftOrder{CustomerName: "Ada"}.WithItems(items, decimal.Zero)

	items[0].Quantity = 99
	assert.Equal(t, 3, draft.Items[0].Quantity)
	assert.True(t, draft.Total.Equal(decimal.NewFromInt(12)))
}

func TestParseOrderStatus(t *testing.T) {
	status, err := ParseOrderStatus("confirmed")
	assert.NoError(t, err)
	assert.Equal(t, OrderStatusConfirmed, status)

	_, err = ParseOrderStatus("lost")
	assert.Error(t, err)
}

func TestSubmittedOrder_Clone(t *testing.T) {
	order := SubmittedOrder{ID: "1", Items: []OrderItem{{Name: "Soup", Quantity: 1}}}
	clone := order.Clone()
	clone.Items[0].Quantity = 5
	assert.Equal(t, 1, order.Items[0].Quantity)
}
