package reconcile

import (
	"testing"
	"time"

	"bistro/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

var fixedNow = time.Date(2026, time.June, 2, 18, 30, 0, 0, time.UTC)

func localOrder() models.SubmittedOrder {
	return models.SubmittedOrder{
		ID:           "42",
		OrderNumber:  "A-42",
		Status:       models.OrderStatusPending,
		CustomerName: "Ada",
		Total:        decimal.RequireFromString("27.5"),
		Items:        []models.OrderItem{{MenuItemID: "a", Name: "Soup", Price: decimal.NewFromInt(10), Quantity: 2}},
		CreatedAt:    fixedNow.Add(-time.Hour),
		UpdatedAt:    fixedNow.Add(-time.Hour),
	}
}

func TestApply(t *testing.T) {
	r := Reconciler{Now: func() time.Time { return fixedNow }}

	tests := []struct {
		name   string
		body   string
		verify func(t *testing.T, merged models.SubmittedOrder)
	}{
		{
			name: "body without status",
			body: `{"success":true}`,
			verify: func(t *testing.T, merged models.SubmittedOrder) {
				assert.Equal(t, models.OrderStatusConfirmed, merged.Status)
				assert.Equal(t, "A-42", merged.OrderNumber)
				assert.Len(t, merged.Items, 1)
			},
		},
		{
			name: "stale echoed status",
			body: `{"id":"42","status":"pending"}`,
			verify: func(t *testing.T, merged models.SubmittedOrder) {
				assert.Equal(t, models.OrderStatusConfirmed, merged.Status)
			},
		},
		{
			name: "empty body",
			body: ``,
			verify: func(t *testing.T, merged models.SubmittedOrder) {
				assert.Equal(t, models.OrderStatusConfirmed, merged.Status)
				assert.Equal(t, "Ada", merged.CustomerName)
			},
		},
		{
			name: "server returns identity fields",
			body: `{"data":{"id":"42","customerName":"Ada L.","total":30}}`,
			verify: func(t *testing.T, merged models.SubmittedOrder) {
				assert.Equal(t, "Ada L.", merged.CustomerName)
				assert.True(t, merged.Total.Equal(decimal.NewFromInt(30)))
				assert.Equal(t, "A-42", merged.OrderNumber)
			},
		},
		{
			name: "server timestamp wins",
			body: `{"id":"42","updatedAt":"2026-06-02T18:00:00Z"}`,
			verify: func(t *testing.T, merged models.SubmittedOrder) {
				assert.Equal(t, 18, merged.UpdatedAt.Hour())
				assert.Equal(t, 0, merged.UpdatedAt.Minute())
			},
		},
		{
			name: "local timestamp refreshed",
			body: `{}`,
			verify: func(t *testing.T, merged models.SubmittedOrder) {
				assert.Equal(t, fixedNow, merged.UpdatedAt)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			local := localOrder()
			merged := r.Apply(local, []byte(tt.body), models.OrderStatusConfirmed)
			tt.verify(t, merged)
			assert.Equal(t, models.OrderStatusPending, local.Status)
		})
	}
}
