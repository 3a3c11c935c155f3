// Package main запускает HTTP-сервер сервиса сапатарии.
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
	"golang.org/x/sync/errgroup"

	"github.com/bcastroea/sapatariacapacita-backend/internal/auth"
	"github.com/bcastroea/sapatariacapacita-backend/internal/config"
	"github.com/bcastroea/sapatariacapacita-backend/internal/events"
	"github.com/bcastroea/sapatariacapacita-backend/internal/handler"
	"github.com/bcastroea/sapatariacapacita-backend/internal/metrics"
	"github.com/bcastroea/sapatariacapacita-backend/internal/middleware"
	"github.com/bcastroea/sapatariacapacita-backend/internal/repository"
	"github.com/bcastroea/sapatariacapacita-backend/internal/service"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	codec, err := auth.NewCodec(cfg.JWTSecret)
	if err != nil {
		sugar.Fatalw("credential codec initialization error", "error", err.Error())
	}

	var repo service.Repository
	if cfg.DatabaseURI != "" {
		pg, err := repository.NewPostgresRepository(cfg.DatabaseURI)
		if err != nil {
			sugar.Fatalw("database initialization error", "error", err.Error())
		}
		repo = pg
	} else {
		sugar.Warn("DATABASE_URI is not set, using in-memory storage")
		repo = repository.NewMemoryRepository()
	}

	var publisher events.Publisher = events.NopPublisher{}
	if brokers := cfg.Brokers(); len(brokers) > 0 {
		kp, err := events.NewKafkaPublisher(brokers, cfg.KafkaTopic, logger)
		if err != nil {
			sugar.Fatalw("kafka initialization error", "error", err.Error())
		}
		publisher = kp
		sugar.Infow("publishing order events", "brokers", brokers, "topic", cfg.KafkaTopic)
	}

	m := metrics.New()

	svc := service.NewService(repo, codec, publisher, m, logger)
	defer svc.Close()

	if cfg.BootstrapAdmin() {
		bootCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		admin, created, err := svc.EnsureAdmin(bootCtx, cfg.AdminName, cfg.AdminEmail, cfg.AdminPassword)
		cancel()
		if err != nil {
			sugar.Fatalw("admin bootstrap error", "error", err.Error())
		}
		if created {
			sugar.Infow("administrator created", "id", admin.ID, "email", admin.Email)
		}
	}

	authMiddleware := middleware.NewAuthMiddleware(codec)
	h := handler.NewHandler(svc, logger, authMiddleware, m)

	r := h.SetupRouter()

	server := &http.Server{
		Addr:              cfg.RunAddress,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	// Запуск HTTP-сервера
	g.Go(func() error {
		sugar.Infow("starting sapataria server", "addr", cfg.RunAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}
