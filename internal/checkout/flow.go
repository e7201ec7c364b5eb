package checkout

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"bistro/internal/cart"
	"bistro/internal/logger"
	"bistro/internal/models"
	"bistro/internal/monitoring"
	"bistro/internal/payment"
	"bistro/internal/storage"

	"github.com/shopspring/decimal"
)

// Result is what a checkout produced. Order is set as soon as an order
// exists, even when payment then failed.
type Result struct {
	Order   *models.SubmittedOrder
	Payment models.PaymentResult
	// NavigationErr is set when the confirmation view could not be reached;
	// the checkout itself still succeeded
	NavigationErr error
}

// Flow runs one customer's checkout session: order creation, payment and
// the redirect to the confirmation view. The order created in a session is
// kept so a retry after a failed payment only retries the payment.
type Flow struct {
	cart         *cart.Store
	orchestrator *Orchestrator
	payments     *payment.Processor
	redirect     *Redirector
	taxRate      decimal.Decimal
	log          *logger.Logger
	monitor      *monitoring.Monitor
	now          func() time.Time

	// pending, when set, keeps the unpaid order across processes
	pending storage.Store

	mu      sync.Mutex
	current *models.SubmittedOrder
}

func NewFlow(c *cart.Store, o *Orchestrator, p *payment.Processor, r *Redirector, taxRate decimal.Decimal, log *logger.Logger, monitor *monitoring.Monitor) *Flow {
	if log == nil {
		log = logger.Nop()
	}
	return &Flow{
		cart:         c,
		orchestrator: o,
		payments:     p,
		redirect:     r,
		taxRate:      taxRate,
		log:          log,
		monitor:      monitor,
		now:          time.Now,
	}
}

// PersistPending keeps the order awaiting payment in store, so a checkout
// started by another Flow over the same store retries payment instead of
// creating a second order
func (f *Flow) PersistPending(store storage.Store) *Flow {
	f.pending = store
	return f
}

// Pending returns the order created in this session that still awaits payment
func (f *Flow) Pending() *models.SubmittedOrder {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.current == nil {
		return nil
	}
	order := f.current.Clone()
	return &order
}

// Reset abandons the session. An order already created stays on the backend.
func (f *Flow) Reset() {
	f.mu.Lock()
	f.current = nil
	f.mu.Unlock()
	f.forgetPending(context.Background())
}

// Checkout validates the form and card, creates the order if this session
// has none yet, pays for it and navigates to the confirmation view. The cart
// is cleared only once payment succeeded.
func (f *Flow) Checkout(ctx context.Context, form ContactForm, card *models.CardDetails) (*Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	start := f.now()
	result, err := f.checkout(ctx, form, card)

	label := "success"
	if err != nil {
		label = "failed"
	}
	f.monitor.CheckoutFinished(label, f.now().Sub(start))
	return result, err
}

func (f *Flow) checkout(ctx context.Context, form ContactForm, card *models.CardDetails) (*Result, error) {
	draft, err := BuildDraft(f.cart.Items(), f.cart.Instructions(), form, f.taxRate)
	if err != nil {
		return nil, err
	}
	if form.PaymentMethod == models.PaymentMethodCreditCard {
		if err := payment.ValidateCard(card, f.payments.Now()); err != nil {
			return nil, err
		}
	}

	order := f.current
	if order == nil {
		order = f.restorePending(ctx, draft)
	}
	if order == nil {
		order, err = f.orchestrator.Submit(ctx, draft)
		if err != nil {
			return nil, err
		}
		f.current = order
		f.savePending(ctx, *order, draft.Total)
	} else {
		f.log.Info("checkout", order.ID, "retrying payment for existing order")
	}

	amount := order.Total
	if amount.IsZero() {
		amount = draft.Total
	}
	paid, err := f.payments.Pay(ctx, payment.Request{
		OrderID:       order.ID,
		Method:        form.PaymentMethod,
		Amount:        amount,
		IsDelivery:    form.IsDelivery,
		Card:          card,
		FallbackOrder: order.IsFallback(),
	})
	result := &Result{Order: order, Payment: paid}
	if err != nil {
		f.log.Warn("checkout", order.ID, "payment failed, order kept for retry", slog.String("error", err.Error()))
		return result, err
	}

	f.current = nil
	f.forgetPending(ctx)
	f.cart.Clear()
	f.log.Info("checkout", order.ID, "checkout complete",
		slog.String("transaction_id", paid.TransactionID),
		slog.Bool("simulated", paid.Simulated))

	if f.redirect != nil {
		result.NavigationErr = f.redirect.ToConfirmation(ctx, *order)
		if result.NavigationErr != nil {
			f.log.Error("checkout", order.ID, "confirmation view unreachable", result.NavigationErr)
		}
	}
	return result, nil
}
