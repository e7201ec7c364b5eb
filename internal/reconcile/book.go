package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"

	"bistro/internal/apperrors"
	"bistro/internal/client"
	"bistro/internal/csrf"
	"bistro/internal/logger"
	"bistro/internal/models"
	"bistro/internal/monitoring"
)

const ordersPath = "/api/orders"

// ErrUnknownOrder is returned for operations on an order the book does not hold
var ErrUnknownOrder = errors.New("order not found in book")

// OrderPatch is a partial update of an order. Empty fields are left alone.
type OrderPatch struct {
	CustomerName        string             `json:"customerName,omitempty"`
	Status              models.OrderStatus `json:"status,omitempty"`
	SpecialInstructions string             `json:"specialInstructions,omitempty"`
}

// OrderBook is the staff view of orders. Mutations change the local copy
// first and roll it back if the backend call fails.
type OrderBook struct {
	mu     sync.RWMutex
	orders map[string]models.SubmittedOrder
	ids    []string

	tokens     *csrf.Manager
	doer       client.Doer
	reconciler Reconciler
	log        *logger.Logger
	monitor    *monitoring.Monitor
}

func NewOrderBook(tokens *csrf.Manager, doer client.Doer, reconciler Reconciler, log *logger.Logger, monitor *monitoring.Monitor) *OrderBook {
	if log == nil {
		log = logger.Nop()
	}
	return &OrderBook{
		orders:     make(map[string]models.SubmittedOrder),
		tokens:     tokens,
		doer:       doer,
		reconciler: reconciler,
		log:        log,
		monitor:    monitor,
	}
}

type listEnvelope struct {
	Data   []json.RawMessage `json:"data"`
	Orders []json.RawMessage `json:"orders"`
}

// Load replaces the book with the backend's order list
func (b *OrderBook) Load(ctx context.Context) error {
	resp, err := b.doer.Do(ctx, client.NewRequest(http.MethodGet, ordersPath, nil))
	if err != nil {
		return fmt.Errorf("failed to load orders: %w", err)
	}
	if !resp.OK() {
		return apperrors.Classify(resp.StatusCode, resp.Body)
	}

	raw, err := decodeList(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to decode orders: %w", err)
	}

	orders := make(map[string]models.SubmittedOrder, len(raw))
	ids := make([]string, 0, len(raw))
	for _, item := range raw {
		fields, ok, err := models.DecodeOrderResponse(item)
		if err != nil || !ok {
			b.log.Warn("orders_load", "", "skipping order without identifier")
			continue
		}
		order := fields.ToSubmitted(models.SubmittedOrder{Status: models.OrderStatusPending})
		order.IDSource = models.IDSourceAuthoritative
		if _, dup := orders[order.ID]; !dup {
			ids = append(ids, order.ID)
		}
		orders[order.ID] = order
	}

	b.mu.Lock()
	b.orders, b.ids = orders, ids
	b.mu.Unlock()

	b.log.Info("orders_load", "", "orders loaded", slog.Int("count", len(ids)))
	return nil
}

func decodeList(body []byte) ([]json.RawMessage, error) {
	var list []json.RawMessage
	if err := json.Unmarshal(body, &list); err == nil {
		return list, nil
	}
	var env listEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, err
	}
	if env.Data != nil {
		return env.Data, nil
	}
	return env.Orders, nil
}

// Put adds or replaces an order, e.g. one just created at checkout
func (b *OrderBook) Put(order models.SubmittedOrder) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.orders[order.ID]; !ok {
		b.ids = append(b.ids, order.ID)
	}
	b.orders[order.ID] = order.Clone()
}

// Get returns a copy of the order with id
func (b *OrderBook) Get(id string) (models.SubmittedOrder, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	order, ok := b.orders[id]
	if !ok {
		return models.SubmittedOrder{}, false
	}
	return order.Clone(), true
}

// List returns copies of all orders in load order
func (b *OrderBook) List() []models.SubmittedOrder {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]models.SubmittedOrder, 0, len(b.ids))
	for _, id := range b.ids {
		out = append(out, b.orders[id].Clone())
	}
	return out
}

// Transition moves an order to status
func (b *OrderBook) Transition(ctx context.Context, id string, status models.OrderStatus) (models.SubmittedOrder, error) {
	if !status.Valid() {
		return models.SubmittedOrder{}, apperrors.Invalid("status", "Unknown order status %q", status)
	}
	body := map[string]models.OrderStatus{"status": status}
	path := fmt.Sprintf("%s/%s/status", ordersPath, url.PathEscape(id))

	merged, err := b.mutate(ctx, "status_transition", id, client.NewRequest(http.MethodPut, path, body), status,
		func(o *models.SubmittedOrder) { o.Status = status })

	result := "applied"
	if err != nil {
		result = "rolled_back"
	}
	b.monitor.StatusTransition(string(status), result)
	return merged, err
}

// Update applies patch to an order
func (b *OrderBook) Update(ctx context.Context, id string, patch OrderPatch) (models.SubmittedOrder, error) {
	if patch.Status != "" && !patch.Status.Valid() {
		return models.SubmittedOrder{}, apperrors.Invalid("status", "Unknown order status %q", patch.Status)
	}
	path := fmt.Sprintf("%s/%s", ordersPath, url.PathEscape(id))

	return b.mutate(ctx, "order_update", id, client.NewRequest(http.MethodPut, path, patch), patch.Status,
		func(o *models.SubmittedOrder) {
			if patch.CustomerName != "" {
				o.CustomerName = patch.CustomerName
			}
			if patch.Status != "" {
				o.Status = patch.Status
			}
		})
}

// mutate applies change locally, sends req, and either reconciles the
// response into the book or restores the pre-mutation copy
func (b *OrderBook) mutate(ctx context.Context, action, id string, req *client.Request, intended models.OrderStatus, change func(*models.SubmittedOrder)) (models.SubmittedOrder, error) {
	b.mu.Lock()
	local, ok := b.orders[id]
	if !ok {
		b.mu.Unlock()
		return models.SubmittedOrder{}, ErrUnknownOrder
	}
	local = local.Clone()
	optimistic := local.Clone()
	change(&optimistic)
	b.orders[id] = optimistic
	b.mu.Unlock()

	resp, err := b.tokens.Send(ctx, b.doer, req)
	if err == nil && !resp.OK() {
		err = apperrors.Classify(resp.StatusCode, resp.Body)
	} else if err != nil && !isClassified(err) {
		err = &apperrors.AmbiguousOutcomeError{Op: action, Cause: err}
	}

	if err != nil {
		b.restore(id, local)
		b.log.Error(action, id, "mutation failed, local change rolled back", err)
		return local, err
	}

	if intended == "" {
		intended = optimistic.Status
	}
	merged := b.reconciler.Apply(optimistic, resp.Body, intended)

	b.mu.Lock()
	if _, still := b.orders[id]; still {
		b.orders[id] = merged
	}
	b.mu.Unlock()

	b.log.Info(action, id, "order updated", slog.String("status", string(merged.Status)))
	return merged.Clone(), nil
}

func isClassified(err error) bool {
	var security *apperrors.SecurityTokenError
	var auth *apperrors.AuthenticationError
	return errors.As(err, &security) || errors.As(err, &auth)
}

func (b *OrderBook) restore(id string, order models.SubmittedOrder) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.orders[id]; !ok {
		b.ids = append(b.ids, id)
	}
	b.orders[id] = order
}

// Delete removes an order. A 404 means it is already gone and counts as
// success.
func (b *OrderBook) Delete(ctx context.Context, id string) error {
	b.mu.Lock()
	local, ok := b.orders[id]
	if !ok {
		b.mu.Unlock()
		return ErrUnknownOrder
	}
	position := b.remove(id)
	b.mu.Unlock()

	path := fmt.Sprintf("%s/%s", ordersPath, url.PathEscape(id))
	resp, err := b.tokens.Send(ctx, b.doer, client.NewRequest(http.MethodDelete, path, nil))
	if err == nil && !resp.OK() && resp.StatusCode != http.StatusNotFound {
		err = apperrors.Classify(resp.StatusCode, resp.Body)
	} else if err != nil && !isClassified(err) {
		err = &apperrors.AmbiguousOutcomeError{Op: "order_delete", Cause: err}
	}

	if err != nil {
		b.mu.Lock()
		b.insert(position, local)
		b.mu.Unlock()
		b.log.Error("order_delete", id, "delete failed, order restored", err)
		return err
	}
	b.log.Info("order_delete", id, "order deleted")
	return nil
}

// remove drops id and returns where it was; b.mu must be held
func (b *OrderBook) remove(id string) int {
	delete(b.orders, id)
	for i, existing := range b.ids {
		if existing == id {
			b.ids = append(b.ids[:i], b.ids[i+1:]...)
			return i
		}
	}
	return len(b.ids)
}

// insert puts order back at position; b.mu must be held
func (b *OrderBook) insert(position int, order models.SubmittedOrder) {
	if _, ok := b.orders[order.ID]; ok {
		b.orders[order.ID] = order
		return
	}
	if position > len(b.ids) {
		position = len(b.ids)
	}
	b.ids = append(b.ids, "")
	copy(b.ids[position+1:], b.ids[position:])
	b.ids[position] = order.ID
	b.orders[order.ID] = order
}

// ApplyEvent records a status change pushed by the backend. Events for
// orders the book does not hold are ignored.
func (b *OrderBook) ApplyEvent(ev StatusEvent) bool {
	if !ev.Status.Valid() {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	order, ok := b.orders[ev.OrderID]
	if !ok {
		return false
	}
	order.Status = ev.Status
	order.UpdatedAt = b.reconciler.now()
	b.orders[ev.OrderID] = order
	return true
}
