package main

import (
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"bistro/internal/config"
	"bistro/internal/logger"
	"bistro/internal/mockapi"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

func mockServerCmd(configPath *string) *cobra.Command {
	var port int
	var requireAuth bool

	cmd := &cobra.Command{
		Use:   "mock-server",
		Short: "Run the mock restaurant backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			log := logger.New("bistro-mock", cfg.LogLevel)
			gin.SetMode(gin.ReleaseMode)

			mock := mockapi.NewServer(mockapi.Options{
				RequireAuth: requireAuth,
				TaxRate:     cfg.Checkout.TaxRate,
				Logger:      log,
			})
			defer mock.Close()

			server := &http.Server{
				Addr:    fmt.Sprintf(":%d", port),
				Handler: mock.Router(),
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				log.Info("mock_server", "", fmt.Sprintf("listening on %s", server.Addr))
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				if err != nil {
					return fmt.Errorf("mock server failed: %w", err)
				}
			case <-ctx.Done():
				log.Info("mock_server", "", "shutting down")
			}
			shutdownServer(server, log)
			return nil
		},
	}
	cmd.Flags().IntVar(&port, "port", 8080, "Port to listen on")
	cmd.Flags().BoolVar(&requireAuth, "require-auth", false, "Require a bearer token on order and payment routes")
	return cmd
}
