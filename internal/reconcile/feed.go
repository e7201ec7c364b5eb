package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"bistro/internal/logger"
	"bistro/internal/models"
	"bistro/internal/session"

	"github.com/gorilla/websocket"
)

// StreamPath is the websocket endpoint pushing status changes
const StreamPath = "/api/orders/stream"

// StatusEvent is one server-pushed status change
type StatusEvent struct {
	OrderID string             `json:"orderId"`
	Status  models.OrderStatus `json:"status"`
	At      time.Time          `json:"at,omitempty"`
}

// Feed applies server-pushed status changes to an OrderBook
type Feed struct {
	url    string
	dialer *websocket.Dialer
	book   *OrderBook
	sess   *session.Context
	log    *logger.Logger
}

// NewFeed derives the websocket URL from the REST base URL
func NewFeed(baseURL string, book *OrderBook, sess *session.Context, log *logger.Logger) (*Feed, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path += StreamPath

	if log == nil {
		log = logger.Nop()
	}
	return &Feed{
		url:    u.String(),
		dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		book:   book,
		sess:   sess,
		log:    log,
	}, nil
}

// Run reads events until ctx is done or the connection fails. onEvent, if
// set, sees every event after it was applied.
func (f *Feed) Run(ctx context.Context, onEvent func(StatusEvent, bool)) error {
	header := http.Header{}
	if f.sess != nil {
		if token := f.sess.AccessToken(); token != "" {
			header.Set("Authorization", "Bearer "+token)
		}
	}

	conn, resp, err := f.dialer.DialContext(ctx, f.url, header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("order stream refused with status %d: %w", resp.StatusCode, err)
		}
		return fmt.Errorf("failed to open order stream: %w", err)
	}
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
			conn.Close()
		case <-done:
		}
	}()

	f.log.Info("order_stream", "", "subscribed to order stream", slog.String("url", f.url))
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) && closeErr.Code == websocket.CloseNormalClosure {
				return nil
			}
			return fmt.Errorf("order stream closed: %w", err)
		}

		var ev StatusEvent
		if err := json.Unmarshal(message, &ev); err != nil {
			f.log.Warn("order_stream", "", "skipping malformed event", slog.String("error", err.Error()))
			continue
		}

		applied := f.book.ApplyEvent(ev)
		f.log.Debug("order_stream", ev.OrderID, "status event",
			slog.String("status", string(ev.Status)), slog.Bool("applied", applied))
		if onEvent != nil {
			onEvent(ev, applied)
		}
	}
}
