package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"bistro/internal/logger"
	"bistro/internal/monitoring"

	"github.com/gin-gonic/gin"
)

// startMetricsServer exposes the monitor's prometheus registry
func startMetricsServer(port int, path string, monitor *monitoring.Monitor, log *logger.Logger) *http.Server {
	metricsRouter := gin.New()
	metricsRouter.Use(gin.Recovery())
	metricsRouter.GET(path, gin.WrapH(monitor.Handler()))

	metricsServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: metricsRouter,
	}

	go func() {
		log.Info("metrics_server", "", fmt.Sprintf("metrics on :%d%s", port, path))
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics_server", "", "metrics server error", err)
		}
	}()
	return metricsServer
}

func shutdownServer(server *http.Server, log *logger.Logger) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown", "", "server shutdown error", err)
	}
}
