package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/oneonone97/Ecom-sub000/internal/config"
	apphttp "github.com/oneonone97/Ecom-sub000/internal/http"
	"github.com/oneonone97/Ecom-sub000/internal/modules/cart"
	"github.com/oneonone97/Ecom-sub000/internal/modules/catalog"
	"github.com/oneonone97/Ecom-sub000/internal/modules/checkout"
	"github.com/oneonone97/Ecom-sub000/internal/modules/events"
	"github.com/oneonone97/Ecom-sub000/internal/modules/orders"
	"github.com/oneonone97/Ecom-sub000/internal/modules/payments"
	"github.com/oneonone97/Ecom-sub000/pkg/kafka"
	"github.com/oneonone97/Ecom-sub000/pkg/metrics"
)

func main() {
	cfg := config.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	if cfg.DBDSN == "" {
		log.Fatal("DB_DSN environment variable is required")
	}
	db, err := gorm.Open(mysql.Open(cfg.DBDSN), &gorm.Config{})
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	phonepe := payments.NewPhonePe(payments.PhonePeConfig{
		BaseURL:     cfg.PhonePeBaseURL,
		MerchantID:  cfg.PhonePeMerchant,
		SaltKey:     cfg.PhonePeSaltKey,
		SaltIndex:   cfg.PhonePeSaltIndex,
		RedirectURL: cfg.BaseURL + "/payment/return",
		CallbackURL: cfg.BaseURL + "/webhooks/phonepe",
		Timeout:     cfg.GatewayTimeout,
	})
	razorpay := payments.NewRazorpay(payments.RazorpayConfig{
		BaseURL:       cfg.RazorpayBaseURL,
		KeyID:         cfg.RazorpayKeyID,
		KeySecret:     cfg.RazorpayKeySecret,
		WebhookSecret: cfg.RazorpayWebhookSecret,
		Timeout:       cfg.GatewayTimeout,
	})
	gateways := payments.NewFactory(cfg.DefaultGateway, phonepe, razorpay)

	svc := checkout.NewService(checkout.Deps{
		Store:                 orders.NewStore(db),
		Catalog:               catalog.NewRepo(db),
		Stock:                 catalog.NewLedger(db),
		Carts:                 cart.NewRepo(db),
		Events:                payments.NewEventStore(db),
		Gateways:              gateways,
		Logger:                logger,
		Metrics:               metrics.NewCheckoutMetrics(),
		GatewayTimeout:        cfg.GatewayTimeout,
		ReserveStockOnFailure: cfg.StockReserveOnFailure,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// outbox drain; no-op when KAFKA_BROKERS is unset
	publisher := events.NewPublisher(db, kafka.NewClient(cfg.KafkaBrokers), logger)
	go publisher.Run(ctx)

	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: apphttp.NewRouter(logger, svc),
	}

	go func() {
		logger.Info("listening", "addr", cfg.ListenAddr, "default_gateway", gateways.DefaultName())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server stopped", "err", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "err", err)
	}
}
