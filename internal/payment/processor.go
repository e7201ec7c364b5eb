// Package payment captures payment for an order that already exists.
package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"bistro/internal/apperrors"
	"bistro/internal/client"
	"bistro/internal/csrf"
	"bistro/internal/logger"
	"bistro/internal/models"
	"bistro/internal/monitoring"
	"bistro/internal/outcome"

	"github.com/shopspring/decimal"
)

const (
	CardPath = "/api/payments/process-card"
	CashPath = "/api/payments/cash"
)

// Request is one payment attempt against an order
type Request struct {
	OrderID    string
	Method     models.PaymentMethod
	Amount     decimal.Decimal
	IsDelivery bool
	Card       *models.CardDetails
	// FallbackOrder marks an order id the client synthesized; the backend
	// may not know it
	FallbackOrder bool
}

// Options configure a Processor
type Options struct {
	Policy  outcome.Policy
	IDs     *outcome.IDGenerator
	Logger  *logger.Logger
	Monitor *monitoring.Monitor
	Now     func() time.Time
}

// Processor settles orders by cash or card
type Processor struct {
	tokens  *csrf.Manager
	doer    client.Doer
	policy  outcome.Policy
	ids     *outcome.IDGenerator
	log     *logger.Logger
	monitor *monitoring.Monitor
	now     func() time.Time
}

func NewProcessor(tokens *csrf.Manager, doer client.Doer, opts Options) *Processor {
	p := &Processor{
		tokens:  tokens,
		doer:    doer,
		policy:  opts.Policy,
		ids:     opts.IDs,
		log:     opts.Logger,
		monitor: opts.Monitor,
		now:     opts.Now,
	}
	if p.policy == nil {
		p.policy = outcome.OptimisticSuccessPolicy{}
	}
	if p.ids == nil {
		p.ids = outcome.NewIDGenerator()
	}
	if p.log == nil {
		p.log = logger.Nop()
	}
	if p.now == nil {
		p.now = time.Now
	}
	return p
}

// Pay settles req. A failed result is always accompanied by an error
// describing why; a successful one may be Simulated when the outcome policy
// assumed a capture it could not confirm.
func (p *Processor) Pay(ctx context.Context, req Request) (models.PaymentResult, error) {
	if req.OrderID == "" {
		return models.PaymentResult{}, apperrors.Invalid("orderId", "There is no order to pay for")
	}

	switch req.Method {
	case models.PaymentMethodCash:
		return p.payCash(ctx, req), nil
	case models.PaymentMethodCreditCard:
		result, err := p.payCard(ctx, req)
		p.monitor.PaymentProcessed(string(req.Method), resultLabel(result, err))
		return result, err
	default:
		return models.PaymentResult{}, apperrors.Invalid("paymentMethod", "Please choose a payment method")
	}
}

// Now is the processor's clock, used for card expiry checks
func (p *Processor) Now() time.Time {
	return p.now()
}

func resultLabel(result models.PaymentResult, err error) string {
	switch {
	case err != nil || !result.Success:
		return "failed"
	case result.Simulated:
		return "simulated"
	default:
		return "captured"
	}
}

type cashPayload struct {
	OrderID string  `json:"orderId"`
	Amount  float64 `json:"amount"`
}

// payCash always succeeds: cash is collected in person, so registering it
// with the backend is informational only
func (p *Processor) payCash(ctx context.Context, req Request) models.PaymentResult {
	result := models.PaymentResult{Success: true, TransactionID: p.ids.CashTransactionID()}

	resp, err := p.tokens.Send(ctx, p.doer, client.NewRequest(http.MethodPost, CashPath, cashPayload{
		OrderID: req.OrderID,
		Amount:  req.Amount.InexactFloat64(),
	}))
	switch {
	case err != nil:
		p.log.Warn("payment_cash", req.OrderID, "cash registration failed", slog.String("error", err.Error()))
	case !resp.OK():
		p.log.Warn("payment_cash", req.OrderID, "cash registration refused", slog.Int("status", resp.StatusCode))
	default:
		p.log.Info("payment_cash", req.OrderID, "cash payment registered", slog.String("transaction_id", result.TransactionID))
	}

	p.monitor.PaymentProcessed(string(models.PaymentMethodCash), "captured")
	return result
}

type cardInfo struct {
	CardNumberLast4 string `json:"cardNumberLast4"`
	CardToken       string `json:"cardToken"`
	ExpMonth        int    `json:"expMonth"`
	ExpYear         int    `json:"expYear"`
	CardholderName  string `json:"cardholderName"`
}

type cardPayload struct {
	OrderID    string   `json:"orderId"`
	Amount     float64  `json:"amount"`
	CardInfo   cardInfo `json:"cardInfo"`
	IsDelivery bool     `json:"isDelivery"`
}

func newCardPayload(req Request) cardPayload {
	number := NormalizeCardNumber(req.Card.Number)
	return cardPayload{
		OrderID: req.OrderID,
		Amount:  req.Amount.InexactFloat64(),
		CardInfo: cardInfo{
			CardNumberLast4: number[len(number)-4:],
			CardToken:       MaskCardNumber(number),
			ExpMonth:        req.Card.ExpMonth,
			ExpYear:         expiryYear(req.Card.ExpYear),
			CardholderName:  req.Card.HolderName,
		},
		IsDelivery: req.IsDelivery,
	}
}

func (p *Processor) payCard(ctx context.Context, req Request) (models.PaymentResult, error) {
	if err := ValidateCard(req.Card, p.now()); err != nil {
		return failed(err), err
	}

	resp, err := p.tokens.Send(ctx, p.doer, client.NewRequest(http.MethodPost, CardPath, newCardPayload(req)))
	if err != nil {
		var security *apperrors.SecurityTokenError
		var auth *apperrors.AuthenticationError
		if errors.As(err, &security) || errors.As(err, &auth) {
			return failed(err), err
		}
		return p.ambiguous(req, err)
	}

	if txn, ok := models.DecodeTransactionID(resp.Body); ok && resp.BodyErr == nil {
		if !resp.OK() {
			p.log.Warn("payment_capture", req.OrderID, "transaction id recovered from error response",
				slog.Int("status", resp.StatusCode))
		}
		p.log.Info("payment_capture", req.OrderID, "card payment captured", slog.String("transaction_id", txn))
		return models.PaymentResult{Success: true, TransactionID: txn}, nil
	}

	if resp.OK() {
		return p.ambiguous(req, errors.New("capture response carried no transaction id"))
	}

	if req.FallbackOrder && resp.StatusCode == http.StatusNotFound {
		return p.ambiguous(req, fmt.Errorf("backend does not know fallback order %s", req.OrderID))
	}

	err = apperrors.Classify(resp.StatusCode, resp.Body)
	p.log.Error("payment_capture", req.OrderID, "card payment declined", err, slog.Int("status", resp.StatusCode))
	return failed(err), err
}

func (p *Processor) ambiguous(req Request, cause error) (models.PaymentResult, error) {
	if !p.policy.AcceptAmbiguous(outcome.OpCapturePayment, cause) {
		err := &apperrors.AmbiguousOutcomeError{Op: "capture payment", Cause: cause}
		return failed(err), err
	}

	txn := p.ids.TransactionID()
	p.log.Warn("payment_capture", req.OrderID, "assuming payment was captured",
		slog.String("policy", p.policy.Name()),
		slog.String("transaction_id", txn),
		slog.String("cause", cause.Error()))
	return models.PaymentResult{Success: true, TransactionID: txn, Simulated: true}, nil
}

func failed(err error) models.PaymentResult {
	return models.PaymentResult{Success: false, Error: apperrors.UserMessage(err)}
}
