package payment

import (
	"strings"
	"time"
	"unicode/utf8"

	"bistro/internal/apperrors"
	"bistro/internal/models"
)

// NormalizeCardNumber strips the spaces and dashes customers type between
// digit groups
func NormalizeCardNumber(number string) string {
	return strings.Map(func(r rune) rune {
		if r == ' ' || r == '-' {
			return -1
		}
		return r
	}, number)
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// expiryYear accepts both two- and four-digit years
func expiryYear(year int) int {
	if year >= 0 && year < 100 {
		return 2000 + year
	}
	return year
}

// ValidateCard checks card fields locally before anything is sent. A card
// expiring in the current month is still valid.
func ValidateCard(card *models.CardDetails, now time.Time) error {
	if card == nil {
		return apperrors.Invalid("card", "Please enter your card details")
	}

	number := NormalizeCardNumber(card.Number)
	if len(number) != 16 || !allDigits(number) {
		return apperrors.Invalid("cardNumber", "Card number must be 16 digits")
	}

	if card.ExpMonth < 1 || card.ExpMonth > 12 {
		return apperrors.Invalid("expMonth", "Expiry month must be between 1 and 12")
	}
	year := expiryYear(card.ExpYear)
	if year < now.Year() || (year == now.Year() && card.ExpMonth < int(now.Month())) {
		return apperrors.Invalid("expiry", "Card has expired")
	}

	cvc := strings.TrimSpace(card.CVC)
	if len(cvc) < 3 || len(cvc) > 4 || !allDigits(cvc) {
		return apperrors.Invalid("cvc", "CVC must be 3 or 4 digits")
	}

	if utf8.RuneCountInString(strings.TrimSpace(card.HolderName)) < 2 {
		return apperrors.Invalid("cardholderName", "Please enter the name on the card")
	}
	return nil
}

// MaskCardNumber renders a normalized PAN with all but the last four digits hidden
func MaskCardNumber(number string) string {
	if len(number) < 4 {
		return strings.Repeat("*", len(number))
	}
	last4 := number[len(number)-4:]
	return "**** **** **** " + last4
}
