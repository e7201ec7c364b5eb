package payment

import (
	"errors"
	"testing"
	"time"

	"bistro/internal/apperrors"
	"bistro/internal/models"

	"github.com/stretchr/testify/assert"
)

var may2026 = time.Date(2026, time.May, 14, 10, 0, 0, 0, time.UTC)

func validCard() *models.CardDetails {
	return &models.CardDetails{
		Number:     "4111 1111 1111 1111",
		ExpMonth:   12,
		ExpYear:    2028,
		CVC:        "123",
		HolderName: "Ada Lovelace",
	}
}

func fieldOf(t *testing.T, err error) string {
	t.Helper()
	var validation *apperrors.ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected a validation error, got %v", err)
	}
	return validation.Field
}

func TestValidateCard(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*models.CardDetails)
		field  string
	}{
		{"spaced number", func(c *models.CardDetails) {}, ""},
		{"dashed number", func(c *models.CardDetails) { c.Number = "4111-1111-1111-1111" }, ""},
		{"short number", func(c *models.CardDetails) { c.Number = "4111-1111" }, "cardNumber"},
		{"letters", func(c *models.CardDetails) { c.Number = "4111 1111 1111 111x" }, "cardNumber"},
		{"month zero", func(c *models.CardDetails) { c.ExpMonth = 0 }, "expMonth"},
		{"month thirteen", func(c *models.CardDetails) { c.ExpMonth = 13 }, "expMonth"},
		{"current month", func(c *models.CardDetails) { c.ExpMonth, c.ExpYear = 5, 2026 }, ""},
		{"last month", func(c *models.CardDetails) { c.ExpMonth, c.ExpYear = 4, 2026 }, "expiry"},
		{"last year", func(c *models.CardDetails) { c.ExpMonth, c.ExpYear = 12, 2025 }, "expiry"},
		{"two digit year", func(c *models.CardDetails) { c.ExpMonth, c.ExpYear = 6, 26 }, ""},
		{"cvc short", func(c *models.CardDetails) { c.CVC = "12" }, "cvc"},
		{"cvc four", func(c *models.CardDetails) { c.CVC = "1234" }, ""},
		{"cvc letters", func(c *models.CardDetails) { c.CVC = "12a" }, "cvc"},
		{"holder blank", func(c *models.CardDetails) { c.HolderName = "   " }, "cardholderName"},
		{"holder one letter", func(c *models.CardDetails) { c.HolderName = " A " }, "cardholderName"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			card := validCard()
			tt.modify(card)
			err := ValidateCard(card, may2026)
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			assert.Equal(t, tt.field, fieldOf(t, err))
		})
	}
}

func TestValidateCard_Nil(t *testing.T) {
	assert.Equal(t, "card", fieldOf(t, ValidateCard(nil, may2026)))
}

func TestMaskCardNumber(t *testing.T) {
	assert.Equal(t, "**** **** **** 1111", MaskCardNumber("4111111111111111"))
	assert.Equal(t, "***", MaskCardNumber("123"))
}
