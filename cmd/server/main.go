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

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/velora/storefront/internal/cart"
	"github.com/velora/storefront/internal/config"
	"github.com/velora/storefront/internal/es"
	"github.com/velora/storefront/internal/events"
	"github.com/velora/storefront/internal/handlers"
	"github.com/velora/storefront/internal/logging"
	"github.com/velora/storefront/internal/order"
	"github.com/velora/storefront/internal/payment"
	httpserver "github.com/velora/storefront/internal/transport/http"
)

func main() {
	configuration, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger := logging.New(configuration.LOG_LEVEL)

	db, err := config.InitDB(context.Background())
	if err != nil {
		log.Fatalf("database init error: %v", err)
	}

	jwtSecret := []byte(configuration.JWT_SECRET)

	prod := events.NewProducer([]string{configuration.KAFKA_ADDRESS})

	esClient, err := es.NewClient(configuration)
	if err != nil {
		log.Fatal(err)
	}

	paymentClient, err := payment.NewClient(payment.Config{
		APIURL:        configuration.PAYMENT_API_URL,
		AccessToken:   configuration.PAYMENT_ACCESS_TOKEN,
		ProductID:     configuration.PAYMENT_PRODUCT_ID,
		WebhookSecret: configuration.PAYMENT_WEBHOOK_SECRET,
		BaseURL:       configuration.BASE_URL,
	})
	if err != nil {
		log.Fatal(err)
	}

	e := echo.New()
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover(), middleware.RequestID())

	deps := httpserver.Deps{
		CartHandler: &handlers.CartHandler{
			Carts:     cart.NewService(db, prod, logger),
			JWTSecret: jwtSecret,
		},
		OrderHandler: &handlers.OrderHandler{
			DB:        db,
			Orders:    order.NewService(db, prod, logger),
			Payments:  paymentClient,
			JWTSecret: jwtSecret,
			Log:       logger,
		},
		ProductHandler: &handlers.ProductHandler{DB: db, Producer: prod},
		UserHandler: &handlers.UserHandler{
			DB:        db,
			JWTSecret: jwtSecret,
			Log:       logger,
		},
		SearchHandler:  &handlers.SearchHandler{ES: esClient, Index: "product"},
		WebhookHandler: &handlers.WebhookHandler{
			Reconciler: payment.NewReconciler(db, logger),
			Secret:     []byte(configuration.PAYMENT_WEBHOOK_SECRET),
			Log:        logger,
		},
	}

	httpserver.Register(e, &deps)

	srv := &http.Server{
		Addr:         ":8080",
		Handler:      e,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("http server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("server shutdown error: %v", err)
	}

	if sqlDB, err := db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			log.Printf("db close error: %v", err)
		}
	}

	if err := prod.Close(); err != nil {
		log.Printf("kafka close error: %v", err)
	}

	log.Println("shutdown complete")
}
