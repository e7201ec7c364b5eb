package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus represents the possible states of an order
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusPreparing OrderStatus = "preparing"
	OrderStatusReady     OrderStatus = "ready"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

var orderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusConfirmed,
	OrderStatusPreparing,
	OrderStatusReady,
	OrderStatusDelivered,
	OrderStatusCompleted,
	OrderStatusCancelled,
}

// Valid reports whether s is a known status
func (s OrderStatus) Valid() bool {
	for _, known := range orderStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// ParseOrderStatus validates a status coming from user input
func ParseOrderStatus(s string) (OrderStatus, error) {
	status := OrderStatus(s)
	if !status.Valid() {
		return "", fmt.Errorf("unknown order status: %q", s)
	}
	return status, nil
}

// PaymentMethod is how the customer settles the order
type PaymentMethod string

const (
	PaymentMethodCash       PaymentMethod = "cash"
	PaymentMethodCreditCard PaymentMethod = "credit_card"
)

// OrderItem represents an item in an order
type OrderItem struct {
	MenuItemID          string          `json:"menuItemId"`
	Name                string          `json:"name"`
	Price               decimal.Decimal `json:"price"`
	Quantity            int             `json:"quantity"`
	SpecialInstructions string          `json:"specialInstructions,omitempty"`
}

// LineTotal returns price times quantity
func (i OrderItem) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// DraftOrder is the immutable input of one checkout attempt
type DraftOrder struct {
	CustomerName        string
	ContactPhone        string
	Email               string
	Items               []OrderItem
	IsDelivery          bool
	DeliveryAddress     string
	TableNumber         string
	PaymentMethod       PaymentMethod
	SpecialInstructions string
	Subtotal            decimal.Decimal
	Tax                 decimal.Decimal
	Total               decimal.Decimal
}

// ComputeTotals sums the line items and applies taxRate, rounding tax to cents
func ComputeTotals(items []OrderItem, taxRate decimal.Decimal) (subtotal, tax, total decimal.Decimal) {
	subtotal = decimal.Zero
	for _, item := range items {
		subtotal = subtotal.Add(item.LineTotal())
	}
	tax = subtotal.Mul(taxRate).Round(2)
	total = subtotal.Add(tax)
	return subtotal, tax, total
}

// WithItems returns a copy of the draft carrying items and recomputed totals
func (d DraftOrder) WithItems(items []OrderItem, taxRate decimal.Decimal) DraftOrder {
	out := d
	out.Items = append([]OrderItem(nil), items...)
	out.Subtotal, out.Tax, out.Total = ComputeTotals(out.Items, taxRate)
	return out
}

// IDSource records where a submitted order's identifier came from
type IDSource string

const (
	IDSourceAuthoritative IDSource = "authoritative"
	IDSourceFallback      IDSource = "fallback"
)

// SubmittedOrder is an order the backend accepted (or is assumed to have accepted)
type SubmittedOrder struct {
	ID           string          `json:"id"`
	OrderNumber  string          `json:"orderNumber"`
	Status       OrderStatus     `json:"status"`
	CustomerName string          `json:"customerName,omitempty"`
	Total        decimal.Decimal `json:"total"`
	Items        []OrderItem     `json:"items"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt,omitempty"`
	IDSource     IDSource        `json:"-"`
}

// Clone returns a deep copy so cached views never share item slices
func (o SubmittedOrder) Clone() SubmittedOrder {
	out := o
	out.Items = append([]OrderItem(nil), o.Items...)
	return out
}

// IsFallback reports whether the id was synthesized client-side
func (o SubmittedOrder) IsFallback() bool {
	return o.IDSource == IDSourceFallback
}
