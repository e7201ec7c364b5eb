package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"bistro/internal/cart"
	"bistro/internal/checkout"
	"bistro/internal/client"
	"bistro/internal/config"
	"bistro/internal/csrf"
	"bistro/internal/database"
	"bistro/internal/logger"
	"bistro/internal/monitoring"
	"bistro/internal/outcome"
	"bistro/internal/payment"
	"bistro/internal/reconcile"
	"bistro/internal/session"
	"bistro/internal/storage"

	"github.com/jinzhu/gorm"
	"github.com/spf13/cobra"
)

type appOpener func(cmd *cobra.Command) (*app, error)

// app holds the wired client components for one command invocation
type app struct {
	cfg     *config.Config
	log     *logger.Logger
	monitor *monitoring.Monitor
	db      *gorm.DB
	durable storage.Store
	client  *client.ApiClient
	guard   *session.Guard
	tokens  *csrf.Manager
	cart    *cart.Store
	policy  outcome.Policy
	ids     *outcome.IDGenerator
}

type savedSession struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

func newApp(ctx context.Context, configPath, apiURL string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if apiURL != "" {
		cfg.API.BaseURL = apiURL
	}

	log := logger.New("bistro", cfg.LogLevel)
	policy, err := outcome.ForName(cfg.Checkout.Policy)
	if err != nil {
		return nil, err
	}

	db, err := database.Open(cfg.Database.Dialect, cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open client storage: %w", err)
	}
	durable := storage.NewDBStore(db)

	c, err := client.New(cfg.API.BaseURL, client.WithTimeout(cfg.API.Timeout))
	if err != nil {
		db.Close()
		return nil, err
	}

	monitor := monitoring.NewMonitor()
	sess := loadSession(ctx, durable, cfg)
	guard := session.NewGuard(c, sess, session.NewHTTPRefresher(c), session.Options{
		MinRefreshInterval: cfg.Session.RefreshInterval,
		MaxFailures:        cfg.Session.MaxFailures,
		Logger:             log,
		Monitor:            monitor,
	})
	tokens := csrf.NewManager(guard, c, sess, storage.NewMemoryStore(cfg.CSRF.SessionTTL), log, monitor)

	guard.OnLogout(tokens.Invalidate)
	guard.OnLogout(c.ClearCookies)
	guard.OnLogout(func() {
		if err := durable.Delete(context.Background(), storage.KeySession); err != nil {
			log.Error("session_logout", "", "failed to forget saved session", err)
		}
	})

	return &app{
		cfg:     cfg,
		log:     log,
		monitor: monitor,
		db:      db,
		durable: durable,
		client:  c,
		guard:   guard,
		tokens:  tokens,
		cart:    cart.Open(ctx, durable, log),
		policy:  policy,
		ids:     outcome.NewIDGenerator(),
	}, nil
}

// loadSession prefers configured tokens over the ones saved by login
func loadSession(ctx context.Context, durable storage.Store, cfg *config.Config) *session.Context {
	if cfg.Session.AccessToken != "" {
		return session.NewContext(cfg.Session.AccessToken, cfg.Session.RefreshToken)
	}
	raw, err := durable.Get(ctx, storage.KeySession)
	if err != nil {
		return session.NewContext("", "")
	}
	var saved savedSession
	if err := json.Unmarshal([]byte(raw), &saved); err != nil {
		return session.NewContext("", "")
	}
	return session.NewContext(saved.AccessToken, saved.RefreshToken)
}

// saveSession persists rotated tokens so the next invocation reuses them
func (a *app) saveSession(ctx context.Context) {
	sess := a.guard.Session()
	if sess.LoggedOut() || sess.AccessToken() == "" {
		return
	}
	data, err := json.Marshal(savedSession{AccessToken: sess.AccessToken(), RefreshToken: sess.RefreshToken()})
	if err != nil {
		return
	}
	if err := a.durable.Set(ctx, storage.KeySession, string(data)); err != nil {
		a.log.Error("session_save", "", "failed to save session", err)
	}
}

func (a *app) Close() {
	a.saveSession(context.Background())
	a.db.Close()
}

func (a *app) attempts() *checkout.AttemptLog {
	return checkout.NewAttemptLog(a.durable, a.log)
}

func (a *app) orchestrator() *checkout.Orchestrator {
	return checkout.NewOrchestrator(a.tokens, a.guard, checkout.Options{
		TaxRate:     a.cfg.Checkout.TaxRate,
		RepairItems: a.cfg.Checkout.RepairItems,
		Policy:      a.policy,
		IDs:         a.ids,
		Recovery:    []checkout.ItemSource{cart.PersistedSource{Store: a.durable}},
		Attempts:    a.attempts(),
		Logger:      a.log,
		Monitor:     a.monitor,
	})
}

func (a *app) processor() *payment.Processor {
	return payment.NewProcessor(a.tokens, a.guard, payment.Options{
		Policy:  a.policy,
		IDs:     a.ids,
		Logger:  a.log,
		Monitor: a.monitor,
	})
}

func (a *app) flow(nav checkout.Navigator) *checkout.Flow {
	redirect := checkout.NewRedirector(nav, a.cfg.Navigation.MaxAttempts, a.cfg.Navigation.InitialInterval, a.log)
	return checkout.NewFlow(a.cart, a.orchestrator(), a.processor(), redirect, a.cfg.Checkout.TaxRate, a.log, a.monitor).
		PersistPending(a.durable)
}

func (a *app) book() *reconcile.OrderBook {
	return reconcile.NewOrderBook(a.tokens, a.guard, reconcile.Reconciler{Now: time.Now}, a.log, a.monitor)
}
