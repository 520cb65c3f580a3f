// Package main is the entry point for the agent daemon.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/agentmesh/a2a-client/internal/agentd"
	"github.com/agentmesh/a2a-client/internal/config"
	"github.com/agentmesh/a2a-client/pkg/logger"
)

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("starting agent daemon")

	srv := agentd.NewServer(agentd.ServerConfig{
		RateLimitRequests: cfg.RateLimitRequests,
		RateLimitWindow:   cfg.RateLimitWindow,
		Executor: agentd.ExecutorConfig{
			ChunkDelay:   cfg.AgentChunkDelay,
			TextChunks:   cfg.AgentTextChunks,
			EmitTools:    cfg.AgentEmitTools,
			EmitArtifact: cfg.AgentEmitArtifact,
		},
	}, log)

	server := &http.Server{
		Addr:        ":" + cfg.ServerPort,
		Handler:     srv.Router(),
		ReadTimeout: cfg.ServerReadTimeout,
		// WriteTimeout stays zero so SSE responses can outlive any
		// fixed deadline.
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info("server listening", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", zap.Error(err))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server stopped")
}
