// Package checkout turns a cart into a submitted order and drives the
// payment and confirmation steps that follow it.
package checkout

import (
	"fmt"
	"net/mail"
	"strings"

	"bistro/internal/apperrors"
	"bistro/internal/models"

	"github.com/shopspring/decimal"
)

// ContactForm is what the customer fills in at checkout
type ContactForm struct {
	CustomerName    string
	ContactPhone    string
	Email           string
	IsDelivery      bool
	DeliveryAddress string
	TableNumber     string
	PaymentMethod   models.PaymentMethod
}

// Validate checks the required contact fields
func (f ContactForm) Validate() error {
	if strings.TrimSpace(f.CustomerName) == "" {
		return apperrors.Invalid("customerName", "Please enter your name")
	}
	if strings.TrimSpace(f.ContactPhone) == "" {
		return apperrors.Invalid("contactPhone", "Please enter a contact phone number")
	}
	if email := strings.TrimSpace(f.Email); email != "" {
		if _, err := mail.ParseAddress(email); err != nil {
			return apperrors.Invalid("email", "Please enter a valid email address")
		}
	}
	if f.IsDelivery && strings.TrimSpace(f.DeliveryAddress) == "" {
		return apperrors.Invalid("deliveryAddress", "Please enter a delivery address")
	}
	if !f.IsDelivery && strings.TrimSpace(f.TableNumber) == "" {
		return apperrors.Invalid("tableNumber", "Please enter your table number")
	}
	switch f.PaymentMethod {
	case models.PaymentMethodCash, models.PaymentMethodCreditCard:
	default:
		return apperrors.Invalid("paymentMethod", "Please choose a payment method")
	}
	return nil
}

// BuildDraft assembles the immutable input of one checkout attempt. An empty
// cart is not rejected here; the orchestrator tries to recover items first.
func BuildDraft(items []models.CartItem, instructions string, form ContactForm, taxRate decimal.Decimal) (models.DraftOrder, error) {
	if err := form.Validate(); err != nil {
		return models.DraftOrder{}, err
	}

	draft := models.DraftOrder{
		CustomerName:        strings.TrimSpace(form.CustomerName),
		ContactPhone:        strings.TrimSpace(form.ContactPhone),
		Email:               strings.TrimSpace(form.Email),
		IsDelivery:          form.IsDelivery,
		PaymentMethod:       form.PaymentMethod,
		SpecialInstructions: strings.TrimSpace(instructions),
	}
	if form.IsDelivery {
		draft.DeliveryAddress = strings.TrimSpace(form.DeliveryAddress)
	} else {
		draft.TableNumber = strings.TrimSpace(form.TableNumber)
	}
	return draft.WithItems(models.OrderItemsFromCart(items), taxRate), nil
}

const unknownItemName = "Unknown item"

// RepairItems patches malformed line items with safe placeholders. With
// repair disabled the first malformed item is reported as a ValidationError
// instead. The returned notes describe every patch applied.
func RepairItems(items []models.OrderItem, repair bool) ([]models.OrderItem, []string, error) {
	out := make([]models.OrderItem, len(items))
	var notes []string

	for i, item := range items {
		var problems []string

		if strings.TrimSpace(item.Name) == "" {
			problems = append(problems, "missing name")
			item.Name = unknownItemName
		}
		if strings.TrimSpace(item.MenuItemID) == "" {
			problems = append(problems, "missing menu item id")
			item.MenuItemID = fmt.Sprintf("item-%d", i+1)
		}
		if item.Price.IsNegative() {
			problems = append(problems, "negative price")
			item.Price = decimal.Zero
		}
		if item.Quantity <= 0 {
			problems = append(problems, "non-positive quantity")
			item.Quantity = 1
		}

		if len(problems) > 0 {
			note := fmt.Sprintf("item %d: %s", i+1, strings.Join(problems, ", "))
			if !repair {
				return nil, nil, apperrors.Invalid("items", "Your cart contains an invalid item (%s). Please remove it and try again.", note)
			}
			notes = append(notes, note)
		}
		out[i] = item
	}
	return out, notes, nil
}
