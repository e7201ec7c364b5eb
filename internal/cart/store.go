// Package cart holds the customer's line items and keeps them in durable
// client storage across restarts.
package cart

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"bistro/internal/logger"
	"bistro/internal/models"
	"bistro/internal/storage"

	"github.com/shopspring/decimal"
)

// Store is the cart. Every mutation writes the whole cart through to
// storage; a failed write is logged and the in-memory cart stays valid.
type Store struct {
	mu           sync.RWMutex
	items        []models.CartItem
	instructions string
	store        storage.Store
	log          *logger.Logger
}

// Open hydrates a cart from storage, starting empty when nothing usable is
// stored
func Open(ctx context.Context, store storage.Store, log *logger.Logger) *Store {
	if log == nil {
		log = logger.Nop()
	}
	s := &Store{store: store, log: log}
	s.items = s.load(ctx)

	if text, err := store.Get(ctx, storage.KeySpecialInstructions); err == nil {
		s.instructions = text
	}
	return s
}

func (s *Store) load(ctx context.Context) []models.CartItem {
	items, err := readItems(ctx, s.store)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		s.log.Error("cart_hydrate", "", "stored cart unreadable, starting empty", err)
	}
	return items
}

func readItems(ctx context.Context, store storage.Store) ([]models.CartItem, error) {
	raw, err := store.Get(ctx, storage.KeyCart)
	if err != nil {
		return nil, err
	}
	var items []models.CartItem
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, err
	}
	return items, nil
}

// Add merges item into an existing line with the same id or appends it. A
// non-positive quantity removes the line, the same as SetQuantity.
func (s *Store) Add(item models.CartItem) {
	if item.Quantity <= 0 {
		s.SetQuantity(item.ItemID, item.Quantity)
		return
	}
	if item.Price.IsNegative() {
		s.log.Warn("cart_add", "", "negative price clamped to zero", slog.String("item_id", item.ItemID))
		item.Price = decimal.Zero
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.items {
		if s.items[i].ItemID == item.ItemID {
			s.items[i].Quantity += item.Quantity
			s.persistLocked()
			return
		}
	}
	s.items = append(s.items, item)
	s.persistLocked()
}

// SetQuantity sets a line's quantity; n <= 0 removes the line
func (s *Store) SetQuantity(itemID string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.items {
		if s.items[i].ItemID != itemID {
			continue
		}
		if n <= 0 {
			s.items = append(s.items[:i], s.items[i+1:]...)
		} else {
			s.items[i].Quantity = n
		}
		s.persistLocked()
		return
	}
}

// Remove drops a line
func (s *Store) Remove(itemID string) {
	s.SetQuantity(itemID, 0)
}

// Clear empties the cart and forgets the special instructions
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = nil
	s.instructions = ""
	s.persistLocked()
	if err := s.store.Delete(context.Background(), storage.KeySpecialInstructions); err != nil {
		s.log.Error("cart_persist", "", "failed to clear special instructions", err)
	}
}

// Items returns a copy of the lines
func (s *Store) Items() []models.CartItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.CartItem(nil), s.items...)
}

// LineItems lets the cart serve as a recovery source for checkout
func (s *Store) LineItems(ctx context.Context) ([]models.CartItem, error) {
	return s.Items(), nil
}

// Subtotal is the sum of price times quantity
func (s *Store) Subtotal() decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := decimal.Zero
	for _, item := range s.items {
		total = total.Add(item.LineTotal())
	}
	return total
}

// Count is the sum of quantities
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, item := range s.items {
		count += item.Quantity
	}
	return count
}

// IsEmpty reports whether the cart has no lines
func (s *Store) IsEmpty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items) == 0
}

// SetInstructions stores the order-level special instructions under their own key
func (s *Store) SetInstructions(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.instructions = text
	if err := s.store.Set(context.Background(), storage.KeySpecialInstructions, text); err != nil {
		s.log.Error("cart_persist", "", "failed to persist special instructions", err)
	}
}

// Instructions returns the order-level special instructions
func (s *Store) Instructions() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.instructions
}

func (s *Store) persistLocked() {
	items := s.items
	if items == nil {
		items = []models.CartItem{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		s.log.Error("cart_persist", "", "failed to encode cart", err)
		return
	}
	if err := s.store.Set(context.Background(), storage.KeyCart, string(data)); err != nil {
		s.log.Error("cart_persist", "", "failed to persist cart", err, slog.Int("lines", len(items)))
	}
}

// PersistedSource reads the cart straight from storage, bypassing any
// in-memory copy. Checkout uses it to recover a cart that was emptied in
// memory but survived on disk.
type PersistedSource struct {
	Store storage.Store
}

func (p PersistedSource) LineItems(ctx context.Context) ([]models.CartItem, error) {
	items, err := readItems(ctx, p.Store)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	return items, err
}
