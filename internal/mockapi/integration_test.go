package mockapi_test

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"bistro/internal/cart"
	"bistro/internal/checkout"
	"bistro/internal/client"
	"bistro/internal/csrf"
	"bistro/internal/mockapi"
	"bistro/internal/models"
	"bistro/internal/outcome"
	"bistro/internal/payment"
	"bistro/internal/reconcile"
	"bistro/internal/session"
	"bistro/internal/storage"

	"github.com/dgrijalva/jwt-go"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "integration-secret"

type stack struct {
	mock   *mockapi.Server
	url    string
	client *client.ApiClient
	guard  *session.Guard
	tokens *csrf.Manager
	cart   *cart.Store
	flow   *checkout.Flow
	book   *reconcile.OrderBook
}

func newStack(t *testing.T, accessToken, refreshToken string) *stack {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mock := mockapi.NewServer(mockapi.Options{Secret: secret, RequireAuth: true})
	server := httptest.NewServer(mock.Router())
	t.Cleanup(func() {
		mock.Close()
		server.Close()
	})

	c, err := client.New(server.URL, client.WithTimeout(5*time.Second))
	require.NoError(t, err)

	if accessToken == "" {
		accessToken, refreshToken, err = mock.IssueTokens("staff")
		require.NoError(t, err)
	}
	sess := session.NewContext(accessToken, refreshToken)
	guard := session.NewGuard(c, sess, session.NewHTTPRefresher(c), session.Options{})
	tokens := csrf.NewManager(guard, c, sess, storage.NewMemoryStore(10*time.Minute), nil, nil)
	guard.OnLogout(tokens.Invalidate)

	durable := storage.NewMemoryStore(0)
	shopping := cart.Open(context.Background(), durable, nil)
	taxRate := decimal.RequireFromString("0.10")

	orchestrator := checkout.NewOrchestrator(tokens, guard, checkout.Options{
		TaxRate:     taxRate,
		RepairItems: true,
		Policy:      outcome.OptimisticSuccessPolicy{},
		Recovery:    []checkout.ItemSource{cart.PersistedSource{Store: durable}},
		Attempts:    checkout.NewAttemptLog(durable, nil),
	})
	payments := payment.NewProcessor(tokens, guard, payment.Options{})
	nav := checkout.NavigatorFunc(func(ctx context.Context, order models.SubmittedOrder) error { return nil })

	return &stack{
		mock:   mock,
		url:    server.URL,
		client: c,
		guard:  guard,
		tokens: tokens,
		cart:   shopping,
		flow:   checkout.NewFlow(shopping, orchestrator, payments, checkout.NewRedirector(nav, 3, time.Millisecond, nil), taxRate, nil, nil),
		book:   reconcile.NewOrderBook(tokens, guard, reconcile.Reconciler{}, nil, nil),
	}
}

func (s *stack) fillCart() {
	s.cart.Add(models.CartItem{ItemID: "a", Name: "Soup", Price: decimal.NewFromInt(10), Quantity: 2})
	s.cart.Add(models.CartItem{ItemID: "b", Name: "Bread", Price: decimal.NewFromInt(5), Quantity: 1})
}

func form(method models.PaymentMethod) checkout.ContactForm {
	return checkout.ContactForm{
		CustomerName:  "Ada",
		ContactPhone:  "555-0100",
		TableNumber:   "7",
		PaymentMethod: method,
	}
}

func visa() *models.CardDetails {
	return &models.CardDetails{Number: "4111 1111 1111 1111", ExpMonth: 12, ExpYear: time.Now().Year() + 2, CVC: "123", HolderName: "Ada Lovelace"}
}

func TestCheckout_CardEndToEnd(t *testing.T) {
	s := newStack(t, "", "")
	s.fillCart()

	result, err := s.flow.Checkout(context.Background(), form(models.PaymentMethodCreditCard), visa())
	require.NoError(t, err)

	orders := s.mock.Orders()
	require.Len(t, orders, 1)
	assert.Equal(t, orders[0].ID, result.Order.ID)
	assert.False(t, result.Order.IsFallback())
	assert.True(t, orders[0].Total.Equal(decimal.RequireFromString("27.5")))
	assert.True(t, result.Payment.Success)
	assert.False(t, result.Payment.Simulated)
	assert.Equal(t, 1, s.mock.Payments())
	assert.True(t, s.cart.IsEmpty())
}

func TestCheckout_DeclinedCardThenRetry(t *testing.T) {
	s := newStack(t, "", "")
	s.fillCart()

	declined := visa()
	declined.Number = "4000 0000 0000 0002"
	result, err := s.flow.Checkout(context.Background(), form(models.PaymentMethodCreditCard), declined)
	require.Error(t, err)
	assert.Equal(t, "Card declined", result.Payment.Error)
	assert.False(t, s.cart.IsEmpty())

	result, err = s.flow.Checkout(context.Background(), form(models.PaymentMethodCreditCard), visa())
	require.NoError(t, err)
	assert.True(t, result.Payment.Success)
	assert.Len(t, s.mock.Orders(), 1)
}

func TestCheckout_ExpiredAccessTokenRefreshed(t *testing.T) {
	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"kind": "access",
		"sub":  "staff",
		"exp":  time.Now().Add(-time.Minute).Unix(),
	})
	access, err := expired.SignedString([]byte(secret))
	require.NoError(t, err)
	refresh, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"kind": "refresh",
		"sub":  "staff",
		"exp":  time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(secret))
	require.NoError(t, err)

	s := newStack(t, access, refresh)
	s.fillCart()

	result, err := s.flow.Checkout(context.Background(), form(models.PaymentMethodCash), nil)
	require.NoError(t, err)
	assert.False(t, result.Order.IsFallback())
	assert.NotEqual(t, access, s.guard.Session().AccessToken())
}

func TestCheckout_LostResponseFallsBack(t *testing.T) {
	s := newStack(t, "", "")
	s.fillCart()
	s.mock.InjectFault(mockapi.Fault{Method: "POST", Path: "/api/orders", Drop: true, AfterHandler: true, Times: 1})

	result, err := s.flow.Checkout(context.Background(), form(models.PaymentMethodCash), nil)
	require.NoError(t, err)

	// the backend created the order but the client only has a fallback id
	assert.True(t, result.Order.IsFallback())
	assert.Len(t, s.mock.Orders(), 1)
	assert.True(t, result.Payment.Success)
}

func TestCheckout_CardPaysForFallbackOrder(t *testing.T) {
	s := newStack(t, "", "")
	s.fillCart()
	s.mock.InjectFault(mockapi.Fault{Method: "POST", Path: "/api/orders", Drop: true, AfterHandler: true, Times: 1})

	result, err := s.flow.Checkout(context.Background(), form(models.PaymentMethodCreditCard), visa())
	require.NoError(t, err)

	require.True(t, result.Order.IsFallback())
	assert.True(t, result.Payment.Success)
	assert.True(t, result.Payment.Simulated)
	assert.NotEmpty(t, result.Payment.TransactionID)
	assert.Len(t, s.mock.Orders(), 1)
	assert.Equal(t, 0, s.mock.Payments())
	assert.True(t, s.cart.IsEmpty())
}

func TestStaff_TransitionReachesFeed(t *testing.T) {
	s := newStack(t, "", "")
	s.fillCart()
	_, err := s.flow.Checkout(context.Background(), form(models.PaymentMethodCash), nil)
	require.NoError(t, err)

	require.NoError(t, s.book.Load(context.Background()))
	orders := s.book.List()
	require.Len(t, orders, 1)
	id := orders[0].ID

	// a second book only learns about the change through the stream
	watcher := reconcile.NewOrderBook(s.tokens, s.guard, reconcile.Reconciler{}, nil, nil)
	require.NoError(t, watcher.Load(context.Background()))
	feed, err := reconcile.NewFeed(s.url, watcher, s.guard.Session(), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	received := make(chan reconcile.StatusEvent, 1)
	go feed.Run(ctx, func(ev reconcile.StatusEvent, applied bool) {
		received <- ev
	})

	require.Eventually(t, func() bool { return s.mock.Subscribers() == 1 }, 2*time.Second, 10*time.Millisecond)

	merged, err := s.book.Transition(context.Background(), id, models.OrderStatusConfirmed)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusConfirmed, merged.Status)
	assert.Equal(t, models.OrderStatusConfirmed, s.mock.Orders()[0].Status)

	select {
	case ev := <-received:
		assert.Equal(t, id, ev.OrderID)
		assert.Equal(t, models.OrderStatusConfirmed, ev.Status)
	case <-ctx.Done():
		t.Fatal("status event never arrived")
	}
	stored, _ := watcher.Get(id)
	assert.Equal(t, models.OrderStatusConfirmed, stored.Status)
}
