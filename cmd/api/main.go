package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/joao-fontenele/storefront-api/internal/auth"
	"github.com/joao-fontenele/storefront-api/internal/cart"
	"github.com/joao-fontenele/storefront-api/internal/catalog"
	"github.com/joao-fontenele/storefront-api/internal/config"
	"github.com/joao-fontenele/storefront-api/internal/messaging"
	"github.com/joao-fontenele/storefront-api/internal/orders"
	"github.com/joao-fontenele/storefront-api/internal/telemetry"
)

func main() {
	cfg, err := config.LoadAPI()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger := telemetry.NewLogger(cfg.ServiceName, cfg.LogLevel)

	ctx := context.Background()

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, cfg.ServiceName, cfg.ServiceVersion, cfg.OTLPEndpoint)
	if err != nil {
		logger.Error("failed to init tracer provider", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(context.Background()) }()

	metricsHandler, shutdownMeter, err := telemetry.InitMeterProvider(cfg.ServiceName, cfg.ServiceVersion)
	if err != nil {
		logger.Error("failed to init meter provider", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownMeter(context.Background()) }()

	db, err := telemetry.OpenDB(ctx, cfg.PostgresURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	var publisher orders.Publisher
	if len(cfg.KafkaBrokers) > 0 {
		producer := messaging.NewProducer(cfg.KafkaBrokers, cfg.OrderPlacedTopic)
		defer func() { _ = producer.Close() }()
		publisher = producer
		logger.Info("publishing order events", "brokers", cfg.KafkaBrokers, "topic", cfg.OrderPlacedTopic)
	}

	products := catalog.NewProductRepository(db)

	var productCache catalog.Cache
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Error("invalid REDIS_URL", "error", err)
			os.Exit(1)
		}
		client := redis.NewClient(opts)
		defer func() { _ = client.Close() }()

		if err := client.Ping(ctx).Err(); err != nil {
			logger.Warn("redis not reachable, product cache will fall through", "error", err)
		}
		productCache = catalog.NewCachedProducts(products, client, cfg.ProductCacheTTL, logger)
	}

	orderStore := orders.NewPostgresStore(db)
	orderService, err := orders.NewService(orderStore, orderStore, orders.Options{
		TxTimeout:    cfg.OrderTxTimeout,
		MaxAttempts:  cfg.OrderMaxAttempts,
		PlaceTimeout: cfg.OrderPlaceTimeout,
	})
	if err != nil {
		logger.Error("failed to create order service", "error", err)
		os.Exit(1)
	}

	orderHandler, err := orders.NewHandler(orderService, publisher, logger)
	if err != nil {
		logger.Error("failed to create order handler", "error", err)
		os.Exit(1)
	}

	tokens := auth.NewTokens(cfg.JWTSecret, cfg.TokenTTL)
	authHandler := auth.NewHandler(auth.NewUserRepository(db), tokens, auth.NewPasswords(cfg.BcryptCost), logger)
	authed := auth.NewMiddleware(tokens, logger).Require

	catalogHandler := catalog.NewHandler(products, productCache, logger)
	cartHandler := cart.NewHandler(cart.NewRepository(db), logger)

	mux := http.NewServeMux()
	route := func(pattern string, h http.HandlerFunc) {
		mux.HandleFunc(pattern, telemetry.WithHTTPRoute(h))
	}

	route("GET /api/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok", "service": cfg.ServiceName})
	})

	route("POST /api/auth/register", authHandler.HandleRegister)
	route("POST /api/auth/login", authHandler.HandleLogin)
	route("GET /api/auth/me", authed(authHandler.HandleMe))

	route("GET /api/products", catalogHandler.HandleList)
	route("GET /api/products/{id}", catalogHandler.HandleGet)
	route("POST /api/products", authed(catalogHandler.HandleCreate))
	route("PATCH /api/products/{id}", authed(catalogHandler.HandleUpdatePrice))
	route("DELETE /api/products/{id}", authed(catalogHandler.HandleDelete))

	route("GET /api/cart", authed(cartHandler.HandleGet))
	route("POST /api/cart", authed(cartHandler.HandleAdd))
	route("PUT /api/cart/{itemId}", authed(cartHandler.HandleUpdate))
	route("DELETE /api/cart/{itemId}", authed(cartHandler.HandleRemove))
	route("DELETE /api/cart", authed(cartHandler.HandleClear))

	route("POST /api/orders", authed(orderHandler.HandlePlace))
	route("GET /api/orders", authed(orderHandler.HandleList))
	route("GET /api/orders/{id}", authed(orderHandler.HandleGet))

	mux.Handle("GET /metrics", metricsHandler)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      otelhttp.NewHandler(mux, cfg.ServiceName),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.WriteTimeout(),
	}

	go func() {
		logger.Info("starting storefront api", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}
