package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"bistro/internal/models"
	"bistro/internal/storage"

	"github.com/shopspring/decimal"
)

// pendingOrder is the stored form of an order that still awaits payment.
// DraftTotal ties it to the cart it was created from.
type pendingOrder struct {
	Order      models.SubmittedOrder `json:"order"`
	IDSource   models.IDSource       `json:"idSource"`
	DraftTotal decimal.Decimal       `json:"draftTotal"`
}

func (f *Flow) savePending(ctx context.Context, order models.SubmittedOrder, draftTotal decimal.Decimal) {
	if f.pending == nil {
		return
	}
	data, err := json.Marshal(pendingOrder{Order: order, IDSource: order.IDSource, DraftTotal: draftTotal})
	if err != nil {
		f.log.Error("checkout_pending", order.ID, "failed to encode pending order", err)
		return
	}
	if err := f.pending.Set(ctx, storage.KeyPendingOrder, string(data)); err != nil {
		f.log.Error("checkout_pending", order.ID, "failed to save pending order", err)
	}
}

// restorePending returns the stored unpaid order when it was created from a
// cart with the same total as draft. A stale entry is discarded.
func (f *Flow) restorePending(ctx context.Context, draft models.DraftOrder) *models.SubmittedOrder {
	if f.pending == nil {
		return nil
	}
	raw, err := f.pending.Get(ctx, storage.KeyPendingOrder)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			f.log.Error("checkout_pending", "", "failed to read pending order", err)
		}
		return nil
	}

	var saved pendingOrder
	if err := json.Unmarshal([]byte(raw), &saved); err != nil || saved.Order.ID == "" {
		f.forgetPending(ctx)
		return nil
	}
	if !saved.DraftTotal.Equal(draft.Total) {
		f.log.Info("checkout_pending", saved.Order.ID, "cart changed since the pending order was created, starting over",
			slog.String("pending_total", saved.DraftTotal.StringFixed(2)),
			slog.String("cart_total", draft.Total.StringFixed(2)))
		f.forgetPending(ctx)
		return nil
	}

	order := saved.Order
	order.IDSource = saved.IDSource
	f.current = &order
	return &order
}

func (f *Flow) forgetPending(ctx context.Context) {
	if f.pending == nil {
		return
	}
	if err := f.pending.Delete(ctx, storage.KeyPendingOrder); err != nil && !errors.Is(err, storage.ErrNotFound) {
		f.log.Error("checkout_pending", "", "failed to forget pending order", err)
	}
}
