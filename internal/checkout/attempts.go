package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"bistro/internal/logger"
	"bistro/internal/storage"
)

const maxAttempts = 5

// Attempt is one order-creation attempt as recorded for debugging
type Attempt struct {
	AttemptID string    `json:"attemptId"`
	At        time.Time `json:"at"`
	ItemCount int       `json:"itemCount"`
	Total     string    `json:"total"`
	Outcome   string    `json:"outcome"`
	OrderID   string    `json:"orderId,omitempty"`
	Status    int       `json:"status,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// AttemptLog keeps the most recent order-creation attempts in durable storage
type AttemptLog struct {
	mu    sync.Mutex
	store storage.Store
	log   *logger.Logger
}

func NewAttemptLog(store storage.Store, log *logger.Logger) *AttemptLog {
	if log == nil {
		log = logger.Nop()
	}
	return &AttemptLog{store: store, log: log}
}

// Record appends a to the log, dropping the oldest entries beyond five.
// Storage failures are logged and swallowed.
func (l *AttemptLog) Record(ctx context.Context, a Attempt) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	entries, err := l.read(ctx)
	if err != nil {
		l.log.Warn("attempt_log", a.AttemptID, "discarding unreadable attempt log")
		entries = nil
	}
	entries = append(entries, a)
	if len(entries) > maxAttempts {
		entries = entries[len(entries)-maxAttempts:]
	}

	data, err := json.Marshal(entries)
	if err != nil {
		l.log.Error("attempt_log", a.AttemptID, "failed to encode attempt log", err)
		return
	}
	if err := l.store.Set(ctx, storage.KeyOrderDebugLog, string(data)); err != nil {
		l.log.Error("attempt_log", a.AttemptID, "failed to persist attempt log", err)
	}
}

// Recent returns the recorded attempts, oldest first
func (l *AttemptLog) Recent(ctx context.Context) ([]Attempt, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.read(ctx)
}

func (l *AttemptLog) read(ctx context.Context) ([]Attempt, error) {
	raw, err := l.store.Get(ctx, storage.KeyOrderDebugLog)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var entries []Attempt
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil, err
	}
	return entries, nil
}
