package models

import "github.com/shopspring/decimal"

// CartItem is one line in the customer's cart
type CartItem struct {
	ItemID   string          `json:"itemId"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
}

// LineTotal returns price times quantity
func (c CartItem) LineTotal() decimal.Decimal {
	return c.Price.Mul(decimal.NewFromInt(int64(c.Quantity)))
}

// ToOrderItem converts the cart line into an order line
func (c CartItem) ToOrderItem() OrderItem {
	return OrderItem{
		MenuItemID: c.ItemID,
		Name:       c.Name,
		Price:      c.Price,
		Quantity:   c.Quantity,
	}
}

// OrderItemsFromCart converts a cart into order lines
func OrderItemsFromCart(items []CartItem) []OrderItem {
	out := make([]OrderItem, 0, len(items))
	for _, item := range items {
		out = append(out, item.ToOrderItem())
	}
	return out
}
