package checkout

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"bistro/internal/apperrors"
	"bistro/internal/cart"
	"bistro/internal/models"
	"bistro/internal/monitoring"
	"bistro/internal/outcome"
	"bistro/internal/payment"
	"bistro/internal/storage"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingNavigator struct {
	visited []string
	err     error
}

func (n *recordingNavigator) Navigate(ctx context.Context, order models.SubmittedOrder) error {
	n.visited = append(n.visited, order.ID)
	return n.err
}

func newFlow(t *testing.T, h *harness, nav Navigator) (*Flow, *cart.Store, *monitoring.Monitor) {
	t.Helper()
	c := cart.Open(context.Background(), h.durable, nil)
	for _, item := range scenarioCart() {
		c.Add(item)
	}
	flow, monitor := flowOver(h, c, nav)
	return flow, c, monitor
}

// flowOver builds a Flow on an existing cart, as a fresh process would
func flowOver(h *harness, c *cart.Store, nav Navigator) (*Flow, *monitoring.Monitor) {
	monitor := monitoring.NewMonitor()
	o := NewOrchestrator(h.tokens, h.client, Options{
		TaxRate:     tenPercent,
		RepairItems: true,
		Policy:      outcome.OptimisticSuccessPolicy{},
		Attempts:    h.attempts,
		Monitor:     monitor,
	})
	p := payment.NewProcessor(h.tokens, h.client, payment.Options{
		Monitor: monitor,
		Now:     func() time.Time { return time.Date(2026, time.May, 1, 0, 0, 0, 0, time.UTC) },
	})
	return NewFlow(c, o, p, NewRedirector(nav, 2, time.Millisecond, nil), tenPercent, nil, monitor), monitor
}

func cardForm() ContactForm {
	form := dineInForm()
	form.PaymentMethod = models.PaymentMethodCreditCard
	return form
}

func card() *models.CardDetails {
	return &models.CardDetails{Number: "4111 1111 1111 1111", ExpMonth: 9, ExpYear: 2027, CVC: "321", HolderName: "Ada L"}
}

func TestFlow_CashCheckout(t *testing.T) {
	h := newHarness(t, respond(http.StatusCreated, `{"id":"900"}`))
	nav := &recordingNavigator{}
	flow, c, monitor := newFlow(t, h, nav)

	result, err := flow.Checkout(context.Background(), dineInForm(), nil)
	require.NoError(t, err)
	assert.Equal(t, "900", result.Order.ID)
	assert.True(t, result.Payment.Success)
	assert.NoError(t, result.NavigationErr)
	assert.Equal(t, []string{"900"}, nav.visited)

	assert.True(t, c.IsEmpty())
	assert.Nil(t, flow.Pending())
	submitted, _ := monitor.GetMetric("orders_authoritative")
	assert.Equal(t, 1, submitted)
	last, _ := monitor.GetMetric("last_checkout_result")
	assert.Equal(t, "success", last)
}

func TestFlow_PaymentRetryReusesOrder(t *testing.T) {
	h := newHarness(t, respond(http.StatusCreated, `{"id":"901","total":27.5}`))
	h.backend.setPaymentHandler(respond(http.StatusPaymentRequired, `{"message":"Card declined"}`))
	flow, c, _ := newFlow(t, h, &recordingNavigator{})

	result, err := flow.Checkout(context.Background(), cardForm(), card())
	var hard *apperrors.HardFailure
	require.True(t, errors.As(err, &hard))
	assert.Equal(t, "901", result.Order.ID)
	assert.False(t, result.Payment.Success)
	assert.False(t, c.IsEmpty())
	require.NotNil(t, flow.Pending())

	h.backend.setPaymentHandler(nil)

	result, err = flow.Checkout(context.Background(), cardForm(), card())
	require.NoError(t, err)
	assert.Equal(t, "901", result.Order.ID)
	assert.Equal(t, "txn-1", result.Payment.TransactionID)
	assert.Equal(t, 1, h.backend.orderCount())
	assert.True(t, c.IsEmpty())

	require.Len(t, h.backend.payments, 2)
	assert.Equal(t, "901", h.backend.payments[1]["orderId"])
}

func TestFlow_InvalidCardBlocksSubmission(t *testing.T) {
	h := newHarness(t, respond(http.StatusCreated, `{"id":"1"}`))
	flow, _, _ := newFlow(t, h, &recordingNavigator{})

	bad := card()
	bad.CVC = "1"
	_, err := flow.Checkout(context.Background(), cardForm(), bad)

	var validation *apperrors.ValidationError
	require.True(t, errors.As(err, &validation))
	assert.Equal(t, "cvc", validation.Field)
	assert.Zero(t, h.backend.orderCount())
}

func TestFlow_NavigationFailureIsNotCheckoutFailure(t *testing.T) {
	h := newHarness(t, respond(http.StatusCreated, `{"id":"902"}`))
	nav := &recordingNavigator{err: errors.New("tab closed")}
	flow, c, _ := newFlow(t, h, nav)

	result, err := flow.Checkout(context.Background(), dineInForm(), nil)
	require.NoError(t, err)
	assert.ErrorIs(t, result.NavigationErr, ErrNavigationFailed)
	assert.Len(t, nav.visited, 2)
	assert.True(t, c.IsEmpty())
}

func TestFlow_Reset(t *testing.T) {
	h := newHarness(t, respond(http.StatusCreated, `{"id":"903"}`))
	h.backend.setPaymentHandler(respond(http.StatusBadRequest, `{"error":"nope"}`))
	flow, _, _ := newFlow(t, h, &recordingNavigator{})

	_, err := flow.Checkout(context.Background(), cardForm(), card())
	require.Error(t, err)
	require.NotNil(t, flow.Pending())

	flow.Reset()
	assert.Nil(t, flow.Pending())
}

func TestFlow_PendingOrderSurvivesNewFlow(t *testing.T) {
	h := newHarness(t, respond(http.StatusCreated, `{"id":"904","total":27.5}`))
	h.backend.setPaymentHandler(respond(http.StatusPaymentRequired, `{"message":"Card declined"}`))
	first, _, _ := newFlow(t, h, &recordingNavigator{})
	first.PersistPending(h.durable)

	_, err := first.Checkout(context.Background(), cardForm(), card())
	require.Error(t, err)
	_, err = h.durable.Get(context.Background(), storage.KeyPendingOrder)
	require.NoError(t, err)

	h.backend.setPaymentHandler(nil)
	reopened := cart.Open(context.Background(), h.durable, nil)
	second, _ := flowOver(h, reopened, &recordingNavigator{})
	second.PersistPending(h.durable)

	result, err := second.Checkout(context.Background(), cardForm(), card())
	require.NoError(t, err)
	assert.Equal(t, "904", result.Order.ID)
	assert.Equal(t, 1, h.backend.orderCount())
	assert.True(t, reopened.IsEmpty())

	_, err = h.durable.Get(context.Background(), storage.KeyPendingOrder)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestFlow_PendingOrderDiscardedWhenCartChanged(t *testing.T) {
	h := newHarness(t, respond(http.StatusCreated, `{"id":"905"}`))
	h.backend.setPaymentHandler(respond(http.StatusPaymentRequired, `{"message":"Card declined"}`))
	first, c, _ := newFlow(t, h, &recordingNavigator{})
	first.PersistPending(h.durable)

	_, err := first.Checkout(context.Background(), cardForm(), card())
	require.Error(t, err)

	c.Add(models.CartItem{ItemID: "c", Name: "Bread", Price: decimal.NewFromInt(3), Quantity: 1})
	h.backend.setPaymentHandler(nil)
	second, _ := flowOver(h, cart.Open(context.Background(), h.durable, nil), &recordingNavigator{})
	second.PersistPending(h.durable)

	_, err = second.Checkout(context.Background(), cardForm(), card())
	require.NoError(t, err)
	assert.Equal(t, 2, h.backend.orderCount())
}
