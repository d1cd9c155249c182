package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"bapflow/cmd/server/config"
	"bapflow/internal/adapters/httpapi"
	"bapflow/internal/bpp"
	"bapflow/internal/confirm"
	"bapflow/internal/observability"
	"bapflow/internal/payment"
	"bapflow/internal/protocol"
	"bapflow/internal/realtime"
	"bapflow/internal/registry"
	"bapflow/internal/transport"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func run(ctx context.Context) error {
	appCfg, err := config.LoadApp()
	if err != nil {
		return err
	}

	logger, err := buildLogger(appCfg.Production)
	if err != nil {
		return err
	}
	defer logger.Sync()

	httpCfg, err := config.LoadHTTP()
	if err != nil {
		return err
	}
	registryCfg, err := config.LoadRegistry()
	if err != nil {
		return err
	}
	paymentCfg, err := config.LoadPayment()
	if err != nil {
		return err
	}
	bppCfg, err := config.LoadBpp()
	if err != nil {
		return err
	}

	orderStore, cleanupOrders := buildOrderStore(ctx, logger)
	defer cleanupOrders()

	callbackStore, cleanupCallbacks, err := buildCallbackStore(ctx)
	if err != nil {
		return err
	}
	defer cleanupCallbacks()

	registryClient := registry.NewClient(
		transport.NewClient(transport.Options{Timeout: registryCfg.Timeout}),
		registryCfg.BaseURL,
	)

	paymentHeader := http.Header{}
	if paymentCfg.APIKey != "" {
		paymentHeader.Set("Authorization", "Basic "+paymentCfg.APIKey)
	}
	if paymentCfg.MerchantID != "" {
		paymentHeader.Set("x-merchantid", paymentCfg.MerchantID)
	}
	paymentClient := payment.NewClient(
		transport.NewClient(transport.Options{Timeout: paymentCfg.Timeout, Header: paymentHeader}),
		paymentCfg.BaseURL,
	)

	var breaker *transport.CircuitBreaker
	if bppCfg.BreakerMaxFailures > 0 {
		breaker = transport.NewCircuitBreaker(transport.CircuitBreakerConfig{
			MaxFailures:  bppCfg.BreakerMaxFailures,
			ResetTimeout: bppCfg.BreakerReset,
		})
	}
	bppClient := bpp.NewClient(transport.NewClient(transport.Options{
		Timeout: bppCfg.Timeout,
		Retry:   transport.RetryPolicy{MaxAttempts: bppCfg.RetryMaxAttempts, BaseDelay: 100 * time.Millisecond},
		Breaker: breaker,
	}))

	service := confirm.NewService(confirm.Deps{
		Contexts:   protocol.NewContextFactory(appCfg.Identity),
		Registry:   registryClient,
		Payments:   paymentClient,
		Bpp:        confirm.NewConfirmClient(bppClient),
		Orders:     orderStore,
		Callbacks:  callbackStore,
		Production: appCfg.Production,
		Logger:     logger,
	})

	hub := realtime.NewHub()
	go hub.Run(ctx)

	metrics := observability.NewMetrics()
	limiter := transport.NewRateLimiter(httpCfg.RateLimitInterval, httpCfg.RateLimitBurst, metrics.AddRateLimitWait)

	server := httpapi.NewServer(service, callbackStore, hub, metrics, limiter, logger)
	srv := &http.Server{
		Addr:    httpCfg.Addr,
		Handler: server.Router(),
	}

	logger.Info("server listening", zap.String("addr", httpCfg.Addr), zap.String("env", appCfg.Env))

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown", zap.Error(err))
		}
		return nil
	case err := <-errCh:
		return err
	}
}

func buildLogger(production bool) (*zap.Logger, error) {
	if production {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
