// Package reconcile keeps cached order views consistent with the status
// mutations staff make against them.
package reconcile

import (
	"time"

	"bistro/internal/models"
)

// Reconciler merges a server response into the local copy of an order
type Reconciler struct {
	Now func() time.Time
}

// Apply merges body, the response to a successful mutation of local, into
// local. Identity fields stay as they were unless the body carries them.
// The status is always forced to intended: a 2xx means the transition
// happened even when the echoed body is stale.
func (r Reconciler) Apply(local models.SubmittedOrder, body []byte, intended models.OrderStatus) models.SubmittedOrder {
	merged := local.Clone()

	// an unreadable body contributes nothing
	if fields, _, err := models.DecodeOrderResponse(body); err == nil {
		merged = fields.ToSubmitted(local)
	}

	if intended != "" {
		merged.Status = intended
	}
	if merged.UpdatedAt.Equal(local.UpdatedAt) {
		merged.UpdatedAt = r.now()
	}
	return merged
}

func (r Reconciler) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}
