// Package main запускает HTTP-сервер магазина цифровых товаров.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tatlight/backend/internal/config"
	"github.com/tatlight/backend/internal/gateway"
	"github.com/tatlight/backend/internal/handler"
	"github.com/tatlight/backend/internal/loyalty"
	"github.com/tatlight/backend/internal/middleware"
	"github.com/tatlight/backend/internal/model"
	"github.com/tatlight/backend/internal/repository"
	"github.com/tatlight/backend/internal/service"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	ledger := loyalty.NewLedger(loyalty.Config{
		PointsPerUnit: decimal.NewFromFloat(cfg.PointsPerUnit),
		Tiers: []loyalty.TierLevel{
			{Tier: model.TierBronze, MinPoints: 0, Discount: 0},
			{Tier: model.TierSilver, MinPoints: cfg.SilverMinPoints, Discount: cfg.SilverDiscount},
			{Tier: model.TierGold, MinPoints: cfg.GoldMinPoints, Discount: cfg.GoldDiscount},
			{Tier: model.TierPlatinum, MinPoints: cfg.PlatinumMinPoints, Discount: cfg.PlatinumDiscount},
		},
	})

	repo, err := repository.NewPostgresRepository(cfg.DatabaseURI, ledger)
	if err != nil {
		sugar.Fatalw("database initialization error", "error", err.Error())
	}
	defer repo.Close()

	var gatewayClient *gateway.Client
	if cfg.GatewayAddress != "" {
		gatewayClient = gateway.NewClient(cfg.GatewayAddress)
	}

	svc := service.NewService(repo, gatewayClient, ledger, cfg.OrderNumberPrefix)
	defer svc.Close()

	authMiddleware := middleware.NewAuthMiddleware(cfg.AuthSecret)
	h := handler.NewHandler(svc, logger, authMiddleware)

	r := h.SetupRouter()

	server := &http.Server{
		Addr:    cfg.RunAddress,
		Handler: r,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	// Запуск HTTP-сервера
	g.Go(func() error {
		sugar.Infow("starting store server", "addr", cfg.RunAddress)
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
