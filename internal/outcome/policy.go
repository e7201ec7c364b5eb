// Package outcome decides what to do when the client cannot tell whether a
// remote mutation took effect, and synthesizes the identifiers used when
// success is assumed.
package outcome

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Operation names the step whose outcome is ambiguous
type Operation string

const (
	OpCreateOrder    Operation = "create_order"
	OpCapturePayment Operation = "capture_payment"
)

// Policy decides whether an ambiguous outcome counts as success
type Policy interface {
	Name() string
	AcceptAmbiguous(op Operation, cause error) bool
}

// OptimisticSuccessPolicy assumes success for order creation and payment
// capture so a customer is never stranded mid-checkout when the order may
// already exist. Duplicates are possible without server-side idempotency keys.
type OptimisticSuccessPolicy struct{}

func (OptimisticSuccessPolicy) Name() string { return "optimistic" }

func (OptimisticSuccessPolicy) AcceptAmbiguous(op Operation, cause error) bool {
	return op == OpCreateOrder || op == OpCapturePayment
}

// StrictPolicy refuses to assume anything; ambiguous outcomes surface as
// errors and the caller must reconcile with the backend.
type StrictPolicy struct{}

func (StrictPolicy) Name() string { return "strict" }

func (StrictPolicy) AcceptAmbiguous(op Operation, cause error) bool { return false }

// ForName maps a configured policy name to a Policy
func ForName(name string) (Policy, error) {
	switch strings.ToLower(name) {
	case "", "optimistic":
		return OptimisticSuccessPolicy{}, nil
	case "strict":
		return StrictPolicy{}, nil
	default:
		return nil, fmt.Errorf("unknown outcome policy: %s", name)
	}
}

// IDGenerator synthesizes client-side identifiers
type IDGenerator struct {
	Now func() time.Time
}

// NewIDGenerator uses the wall clock
func NewIDGenerator() *IDGenerator {
	return &IDGenerator{Now: time.Now}
}

func (g *IDGenerator) stamp(prefix string) string {
	now := time.Now
	if g != nil && g.Now != nil {
		now = g.Now
	}
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("%s-%d-%s", prefix, now().UnixMilli(), suffix)
}

// OrderID returns a fallback order identifier, unique per call
func (g *IDGenerator) OrderID() string {
	return g.stamp("ORD")
}

// TransactionID returns a fallback transaction identifier
func (g *IDGenerator) TransactionID() string {
	return g.stamp("TXN")
}

// CashTransactionID returns the local id of a cash settlement
func (g *IDGenerator) CashTransactionID() string {
	return g.stamp("CASH")
}

// IsFallbackOrderID reports whether id was synthesized by OrderID
func IsFallbackOrderID(id string) bool {
	return strings.HasPrefix(id, "ORD-")
}
