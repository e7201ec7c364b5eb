package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"bistro/internal/logger"
	"bistro/internal/models"

	"github.com/cenkalti/backoff/v5"
)

// ErrNavigationFailed is the terminal state of a confirmation redirect that
// never succeeded
var ErrNavigationFailed = errors.New("could not open the order confirmation")

// Navigator shows the confirmation view for an order
type Navigator interface {
	Navigate(ctx context.Context, order models.SubmittedOrder) error
}

// NavigatorFunc adapts a function to Navigator
type NavigatorFunc func(ctx context.Context, order models.SubmittedOrder) error

func (f NavigatorFunc) Navigate(ctx context.Context, order models.SubmittedOrder) error {
	return f(ctx, order)
}

// Redirector retries a single Navigator with bounded exponential backoff
type Redirector struct {
	nav         Navigator
	maxAttempts uint
	initial     time.Duration
	log         *logger.Logger
}

func NewRedirector(nav Navigator, maxAttempts int, initial time.Duration, log *logger.Logger) *Redirector {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Redirector{nav: nav, maxAttempts: uint(maxAttempts), initial: initial, log: log}
}

// ToConfirmation navigates to the confirmation view of order. Exhausting the
// attempts yields an error wrapping ErrNavigationFailed.
func (r *Redirector) ToConfirmation(ctx context.Context, order models.SubmittedOrder) error {
	b := backoff.NewExponentialBackOff()
	if r.initial > 0 {
		b.InitialInterval = r.initial
	}

	attempt := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		if err := r.nav.Navigate(ctx, order); err != nil {
			r.log.Warn("confirmation_redirect", order.ID, "navigation failed",
				slog.Int("attempt", attempt), slog.String("error", err.Error()))
			return struct{}{}, err
		}
		return struct{}{}, nil
	}, backoff.WithBackOff(b), backoff.WithMaxTries(r.maxAttempts))
	if err != nil {
		return fmt.Errorf("%w after %d attempts: %v", ErrNavigationFailed, attempt, err)
	}
	return nil
}
