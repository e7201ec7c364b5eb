package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// ErrEmptyBody is returned when a response carried no payload
var ErrEmptyBody = errors.New("empty response body")

// flexibleID accepts identifiers encoded as JSON strings or numbers
type flexibleID string

func (f *flexibleID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || bytes.Equal(b, []byte("null")):
		*f = ""
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexibleID(s)
	default:
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return fmt.Errorf("identifier is neither string nor number: %s", b)
		}
		*f = flexibleID(n.String())
	}
	return nil
}

// object is one JSON object whose members are decoded on demand, so a
// member of an unexpected type never hides the others
type object map[string]json.RawMessage

func asObject(raw json.RawMessage) object {
	var obj object
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil
	}
	return obj
}

func (o object) id(key string) string {
	raw, ok := o[key]
	if !ok {
		return ""
	}
	var id flexibleID
	if err := id.UnmarshalJSON(raw); err != nil {
		return ""
	}
	return string(id)
}

func (o object) str(key string) string {
	var s string
	if err := json.Unmarshal(o[key], &s); err != nil {
		return ""
	}
	return s
}

// OrderFields are the order attributes a response explicitly carried. Zero
// values (and nil Total/Items) mean the field was absent.
type OrderFields struct {
	ID           string
	OrderNumber  string
	Status       OrderStatus
	CustomerName string
	Total        *decimal.Decimal
	Items        []OrderItem
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// DecodeOrderResponse reads an order payload. The backend contract is an
// order object at the top level, under "data", or under "order", checked in
// that order. ok is false when the body parsed but carried no identifier.
// Optional fields that cannot be read are reported as absent.
func DecodeOrderResponse(body []byte) (fields OrderFields, ok bool, err error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return OrderFields{}, false, ErrEmptyBody
	}

	var top object
	if err := json.Unmarshal(body, &top); err != nil {
		return OrderFields{}, false, fmt.Errorf("malformed order response: %w", err)
	}

	for _, candidate := range []object{top, asObject(top["data"]), asObject(top["order"])} {
		if candidate != nil && candidate.id("id") != "" {
			return candidate.fields(), true, nil
		}
	}
	// no identifier anywhere; still report whatever the top level carried
	return top.fields(), false, nil
}

func (o object) fields() OrderFields {
	out := OrderFields{
		ID:           o.id("id"),
		OrderNumber:  o.id("orderNumber"),
		CustomerName: o.str("customerName"),
		CreatedAt:    parseTime(o["createdAt"]),
		UpdatedAt:    parseTime(o["updatedAt"]),
	}
	if status := OrderStatus(o.str("status")); status.Valid() {
		out.Status = status
	}
	if total, ok := parseDecimal(o["total"]); ok {
		out.Total = &total
	}
	if raw := bytes.TrimSpace(o["items"]); len(raw) > 0 && !bytes.Equal(raw, []byte("null")) {
		var items []OrderItem
		if err := json.Unmarshal(raw, &items); err == nil {
			out.Items = items
		}
	}
	return out
}

func parseDecimal(raw json.RawMessage) (decimal.Decimal, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return decimal.Decimal{}, false
	}
	var d decimal.Decimal
	if err := d.UnmarshalJSON(raw); err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}

// parseTime accepts RFC 3339 strings and epoch timestamps, either as JSON
// numbers or numeric strings. Epoch values above 1e11 are milliseconds.
func parseTime(raw json.RawMessage) time.Time {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return time.Time{}
	}

	var s string
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &s); err != nil || s == "" {
			return time.Time{}
		}
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05"} {
			if t, err := time.Parse(layout, s); err == nil {
				return t
			}
		}
	} else {
		s = string(raw)
	}

	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}
	}
	if n > 1e11 {
		return time.UnixMilli(n)
	}
	return time.Unix(n, 0)
}

// ToSubmitted converts decoded fields into an order, filling absent
// attributes from fallback
func (f OrderFields) ToSubmitted(fallback SubmittedOrder) SubmittedOrder {
	out := fallback.Clone()
	if f.ID != "" {
		out.ID = f.ID
	}
	if f.OrderNumber != "" {
		out.OrderNumber = f.OrderNumber
	}
	if f.Status != "" {
		out.Status = f.Status
	}
	if f.CustomerName != "" {
		out.CustomerName = f.CustomerName
	}
	if f.Total != nil {
		out.Total = *f.Total
	}
	if f.Items != nil {
		out.Items = append([]OrderItem(nil), f.Items...)
	}
	if !f.CreatedAt.IsZero() {
		out.CreatedAt = f.CreatedAt
	}
	if !f.UpdatedAt.IsZero() {
		out.UpdatedAt = f.UpdatedAt
	}
	return out
}

// DecodeTransactionID extracts a payment transaction id from a response
// body, at the top level or under "data"
func DecodeTransactionID(body []byte) (string, bool) {
	var top object
	if err := json.Unmarshal(body, &top); err != nil {
		return "", false
	}
	if id := top.id("transactionId"); id != "" {
		return id, true
	}
	if data := asObject(top["data"]); data != nil {
		if id := data.id("transactionId"); id != "" {
			return id, true
		}
	}
	return "", false
}
