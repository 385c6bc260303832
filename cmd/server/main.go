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

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/Antone-2/supplies-core/internal/cart"
	"github.com/Antone-2/supplies-core/internal/catalog"
	"github.com/Antone-2/supplies-core/internal/config"
	"github.com/Antone-2/supplies-core/internal/events"
	"github.com/Antone-2/supplies-core/internal/httpapi"
	"github.com/Antone-2/supplies-core/internal/mongodb"
	"github.com/Antone-2/supplies-core/internal/order"
	"github.com/Antone-2/supplies-core/internal/payment/pesapal"
)

// pesapalGateway adapts the gateway client to the order package interface.
type pesapalGateway struct {
	client *pesapal.Client
}

func (g pesapalGateway) InitiatePayment(ctx context.Context, req order.PaymentRequest) (string, error) {
	return g.client.InitiatePayment(ctx, pesapal.InitiateRequest{
		MerchantReference: req.MerchantReference,
		Amount:            req.Amount,
		Currency:          req.Currency,
		Phone:             req.Phone,
		Email:             req.Email,
		Description:       req.Description,
	})
}

func (g pesapalGateway) CheckPaymentStatus(ctx context.Context, trackingID string) (int, error) {
	code, err := g.client.CheckPaymentStatus(ctx, trackingID)
	return int(code), err
}

func main() {
	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Mongo: carts and the product catalog.
	bootCtx, bootCancel := context.WithTimeout(ctx, 15*time.Second)
	defer bootCancel()

	db, err := mongodb.Connect(bootCtx, cfg.MongoURI, cfg.MongoDatabase)
	if err != nil {
		log.Fatalf("mongo connection failed: %v", err)
	}

	cartRepo := cart.NewMongoRepository(db)
	if err := cartRepo.CreateIndexes(bootCtx); err != nil {
		log.Fatalf("cart index creation failed: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()

	cartService := cart.NewService(cartRepo, cart.NewRedisCache(redisClient), catalog.NewMongoCatalog(db))

	// Postgres: orders.
	creds := &order.Credentials{
		Host:              cfg.PostgresHost,
		Port:              cfg.PostgresPort,
		User:              cfg.PostgresUser,
		Password:          cfg.PostgresPassword,
		DBName:            cfg.PostgresDB,
		MigrationsDirPath: cfg.MigrationsDirPath,
	}
	orderRepo, err := order.NewPostgresRepository(creds)
	if err != nil {
		log.Fatalf("postgres connection failed: %v", err)
	}
	defer orderRepo.Close()

	if err := orderRepo.RunMigrations(creds); err != nil {
		log.Fatalf("migrations failed: %v", err)
	}

	publisher := events.NewKafkaPublisher(cfg.KafkaBrokers...)
	defer publisher.Close()

	gateway := pesapalGateway{client: pesapal.NewClient(pesapal.Config{
		BaseURL: cfg.PesapalBaseURL,
		Credentials: pesapal.Credentials{
			ConsumerKey:    cfg.PesapalConsumerKey,
			ConsumerSecret: cfg.PesapalConsumerSecret,
		},
		Timeout:    cfg.PesapalTimeout,
		MaxRetries: cfg.PesapalMaxRetries,
	})}

	methods := []order.PaymentMethod{
		{Name: "pesapal"},
	}

	assembler := order.NewAssembler(orderRepo, cartService, gateway, publisher, methods, cfg.Currency)
	lifecycle := order.NewLifecycle(orderRepo, publisher, methods)

	poller := order.NewPaymentPoller(orderRepo, gateway, assembler, lifecycle, cfg.PaymentPollTick)
	go poller.Run(ctx)

	cartHandler := httpapi.NewCartHandler(cartService, cfg.RequestTimeout)
	orderHandler := httpapi.NewOrderHandler(assembler, lifecycle, cfg.RequestTimeout)
	webhookHandler := httpapi.NewWebhookHandler(lifecycle, cfg.RequestTimeout)

	// Setup router
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(middleware.Compress(5))
	r.Use(httpapi.IdentityMiddleware)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/guest", cartHandler.NewGuest)

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", cartHandler.GetCart)
			r.Post("/items", cartHandler.AddItem)
			r.Put("/items/{product_id}", cartHandler.UpdateQuantity)
			r.Delete("/items/{product_id}", cartHandler.RemoveItem)
			r.Delete("/", cartHandler.ClearCart)
			r.Post("/merge", cartHandler.MergeCart)
		})

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", orderHandler.CreateOrder)
			r.Get("/", orderHandler.ListOrders)
			r.Get("/track/{id}", orderHandler.TrackOrder)
			r.Get("/{id}", orderHandler.GetOrder)

			r.Group(func(r chi.Router) {
				r.Use(httpapi.RequireAdmin(cfg.AdminToken))
				r.Get("/all", orderHandler.ListAllOrders)
				r.Put("/{id}", orderHandler.UpdateStatus)
				r.Post("/{id}/refund", orderHandler.Refund)
			})
		})

		r.Post("/payments/webhook", webhookHandler.HandleNotification)
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      otelhttp.NewHandler(r, "storefront"),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("storefront starting on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("server forced to shutdown: %v", err)
	}

	log.Println("server exited")
}
