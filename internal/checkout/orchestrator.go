package checkout

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"bistro/internal/apperrors"
	"bistro/internal/client"
	"bistro/internal/csrf"
	"bistro/internal/logger"
	"bistro/internal/models"
	"bistro/internal/monitoring"
	"bistro/internal/outcome"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrdersPath is the order collection endpoint
const OrdersPath = "/api/orders"

// deliveryType is required by the backend whatever the actual delivery mode
const deliveryType = "STANDARD"

// submission outcomes, also used as metric labels
const (
	outcomeAuthoritative = "authoritative"
	outcomeRecovered     = "recovered_from_error"
	outcomeFallback      = "fallback"
	outcomeFailed        = "failed"
)

// ItemSource is an alternate place line items can be recovered from when the
// draft arrives with none
type ItemSource interface {
	LineItems(ctx context.Context) ([]models.CartItem, error)
}

// Options configure an Orchestrator
type Options struct {
	TaxRate     decimal.Decimal
	RepairItems bool
	Policy      outcome.Policy
	IDs         *outcome.IDGenerator
	Recovery    []ItemSource
	Attempts    *AttemptLog
	Logger      *logger.Logger
	Monitor     *monitoring.Monitor
	Now         func() time.Time
}

// Orchestrator creates orders. Each Submit makes exactly one creation
// request (plus whatever single replay the CSRF manager or session guard
// performs); it never resubmits on its own.
type Orchestrator struct {
	tokens   *csrf.Manager
	doer     client.Doer
	taxRate  decimal.Decimal
	repair   bool
	policy   outcome.Policy
	ids      *outcome.IDGenerator
	recovery []ItemSource
	attempts *AttemptLog
	log      *logger.Logger
	monitor  *monitoring.Monitor
	now      func() time.Time
}

// NewOrchestrator dispatches through doer, normally the session guard, with
// tokens supplying a fresh anti-forgery token per request
func NewOrchestrator(tokens *csrf.Manager, doer client.Doer, opts Options) *Orchestrator {
	o := &Orchestrator{
		tokens:   tokens,
		doer:     doer,
		taxRate:  opts.TaxRate,
		repair:   opts.RepairItems,
		policy:   opts.Policy,
		ids:      opts.IDs,
		recovery: opts.Recovery,
		attempts: opts.Attempts,
		log:      opts.Logger,
		monitor:  opts.Monitor,
		now:      opts.Now,
	}
	if o.policy == nil {
		o.policy = outcome.OptimisticSuccessPolicy{}
	}
	if o.ids == nil {
		o.ids = outcome.NewIDGenerator()
	}
	if o.log == nil {
		o.log = logger.Nop()
	}
	if o.now == nil {
		o.now = time.Now
	}
	return o
}

type orderItemPayload struct {
	MenuItemID          string  `json:"menuItemId"`
	Name                string  `json:"name"`
	Price               float64 `json:"price"`
	Quantity            int     `json:"quantity"`
	SpecialInstructions string  `json:"specialInstructions,omitempty"`
}

type orderPayload struct {
	CustomerName        string             `json:"customerName"`
	ContactPhone        string             `json:"contactPhone"`
	Email               string             `json:"email,omitempty"`
	Items               []orderItemPayload `json:"items"`
	IsDelivery          bool               `json:"isDelivery"`
	DeliveryAddress     string             `json:"deliveryAddress,omitempty"`
	TableNumber         string             `json:"tableNumber,omitempty"`
	PaymentMethod       string             `json:"paymentMethod"`
	SpecialInstructions string             `json:"specialInstructions,omitempty"`
	Subtotal            float64            `json:"subtotal"`
	Tax                 float64            `json:"tax"`
	Total               float64            `json:"total"`
	DeliveryType        string             `json:"deliveryType"`
}

func newOrderPayload(d models.DraftOrder) orderPayload {
	items := make([]orderItemPayload, 0, len(d.Items))
	for _, item := range d.Items {
		items = append(items, orderItemPayload{
			MenuItemID:          item.MenuItemID,
			Name:                item.Name,
			Price:               item.Price.InexactFloat64(),
			Quantity:            item.Quantity,
			SpecialInstructions: item.SpecialInstructions,
		})
	}
	return orderPayload{
		CustomerName:        d.CustomerName,
		ContactPhone:        d.ContactPhone,
		Email:               d.Email,
		Items:               items,
		IsDelivery:          d.IsDelivery,
		DeliveryAddress:     d.DeliveryAddress,
		TableNumber:         d.TableNumber,
		PaymentMethod:       string(d.PaymentMethod),
		SpecialInstructions: d.SpecialInstructions,
		Subtotal:            d.Subtotal.InexactFloat64(),
		Tax:                 d.Tax.InexactFloat64(),
		Total:               d.Total.InexactFloat64(),
		DeliveryType:        deliveryType,
	}
}

// Submit creates the order described by draft and resolves its identifier.
// The returned order's IDSource tells whether the id came from the backend
// or was synthesized under the outcome policy.
func (o *Orchestrator) Submit(ctx context.Context, draft models.DraftOrder) (*models.SubmittedOrder, error) {
	attemptID := uuid.NewString()
	attempt := Attempt{AttemptID: attemptID, At: o.now()}

	order, status, err := o.submit(ctx, attemptID, draft, &attempt)

	attempt.Status = status
	if err != nil {
		attempt.Outcome = outcomeFailed
		attempt.Error = err.Error()
		o.log.Error("order_submit", attemptID, "order submission failed", err, slog.Int("status", status))
	} else {
		attempt.OrderID = order.ID
		o.log.Info("order_submit", attemptID, "order submitted",
			slog.String("order_id", order.ID),
			slog.String("outcome", attempt.Outcome))
	}
	o.attempts.Record(ctx, attempt)
	o.monitor.OrderSubmitted(attempt.Outcome)
	return order, err
}

func (o *Orchestrator) submit(ctx context.Context, attemptID string, draft models.DraftOrder, attempt *Attempt) (*models.SubmittedOrder, int, error) {
	if len(draft.Items) == 0 {
		recovered := o.recoverItems(ctx, attemptID)
		if len(recovered) == 0 {
			return nil, 0, apperrors.Invalid("items", "Your cart is empty")
		}
		draft = draft.WithItems(models.OrderItemsFromCart(recovered), o.taxRate)
	}

	items, notes, err := RepairItems(draft.Items, o.repair)
	if err != nil {
		return nil, 0, err
	}
	if len(notes) > 0 {
		o.log.Warn("order_submit", attemptID, "repaired malformed line items",
			slog.String("repairs", strings.Join(notes, "; ")))
		draft = draft.WithItems(items, o.taxRate)
	}
	attempt.ItemCount = len(draft.Items)
	attempt.Total = draft.Total.StringFixed(2)

	req := client.NewRequest(http.MethodPost, OrdersPath, newOrderPayload(draft))
	resp, err := o.tokens.Send(ctx, o.doer, req)

	status := 0
	if resp != nil {
		status = resp.StatusCode
	}

	if err != nil {
		var security *apperrors.SecurityTokenError
		var auth *apperrors.AuthenticationError
		if errors.As(err, &security) || errors.As(err, &auth) {
			return nil, status, err
		}
		// the request may have reached the backend
		return o.ambiguous(attemptID, draft, attempt, status, err)
	}

	fields, found, decodeErr := models.DecodeOrderResponse(resp.Body)
	if resp.BodyErr != nil {
		found, decodeErr = false, resp.BodyErr
	}

	switch {
	case resp.OK() && found:
		attempt.Outcome = outcomeAuthoritative
		return o.authoritative(draft, fields), status, nil
	case resp.OK():
		cause := decodeErr
		if cause == nil {
			cause = errors.New("response carried no order identifier")
		}
		return o.ambiguous(attemptID, draft, attempt, status, cause)
	case found:
		// the backend reported an error but still returned the order it created
		o.log.Warn("order_submit", attemptID, "order id recovered from error response",
			slog.Int("status", status), slog.String("order_id", fields.ID))
		attempt.Outcome = outcomeRecovered
		return o.authoritative(draft, fields), status, nil
	default:
		return nil, status, apperrors.Classify(resp.StatusCode, resp.Body)
	}
}

func (o *Orchestrator) recoverItems(ctx context.Context, attemptID string) []models.CartItem {
	for i, source := range o.recovery {
		items, err := source.LineItems(ctx)
		if err != nil {
			o.log.Warn("order_submit", attemptID, "cart recovery source failed",
				slog.Int("source", i), slog.String("error", err.Error()))
			continue
		}
		if len(items) > 0 {
			o.log.Info("order_submit", attemptID, "recovered empty cart",
				slog.Int("source", i), slog.Int("items", len(items)))
			return items
		}
	}
	return nil
}

func (o *Orchestrator) ambiguous(attemptID string, draft models.DraftOrder, attempt *Attempt, status int, cause error) (*models.SubmittedOrder, int, error) {
	if !o.policy.AcceptAmbiguous(outcome.OpCreateOrder, cause) {
		return nil, status, &apperrors.AmbiguousOutcomeError{Op: "create order", Cause: cause}
	}

	order := o.draftOrder(draft)
	order.ID = o.ids.OrderID()
	order.OrderNumber = order.ID
	order.IDSource = models.IDSourceFallback

	o.log.Warn("order_submit", attemptID, "assuming order was created",
		slog.String("policy", o.policy.Name()),
		slog.String("fallback_id", order.ID),
		slog.String("cause", cause.Error()))
	attempt.Outcome = outcomeFallback
	return &order, status, nil
}

func (o *Orchestrator) authoritative(draft models.DraftOrder, fields models.OrderFields) *models.SubmittedOrder {
	order := fields.ToSubmitted(o.draftOrder(draft))
	if order.OrderNumber == "" {
		order.OrderNumber = order.ID
	}
	order.IDSource = models.IDSourceAuthoritative
	return &order
}

// draftOrder is the local view of a just-created order
func (o *Orchestrator) draftOrder(draft models.DraftOrder) models.SubmittedOrder {
	now := o.now()
	return models.SubmittedOrder{
		Status:       models.OrderStatusPending,
		CustomerName: draft.CustomerName,
		Total:        draft.Total,
		Items:        append([]models.OrderItem(nil), draft.Items...),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}
