// Package storage provides the key/value stores that stand in for durable
// and session-scoped client storage.
package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when the key holds no value
var ErrNotFound = errors.New("storage: key not found")

// Store persists opaque string values under fixed keys
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Well-known keys
const (
	KeyCart                = "bistro.cart"
	KeySpecialInstructions = "bistro.special_instructions"
	KeyOrderDebugLog       = "bistro.order_debug_log"
	KeyCSRFToken           = "bistro.csrf_token"
	KeySession             = "bistro.session"
	KeyPendingOrder        = "bistro.pending_order"
)
