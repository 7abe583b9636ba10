package main

import (
	"context"
	"log"
	netHttp "net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/stefans1510/fitness-shop/internal/notification"
	"github.com/stefans1510/fitness-shop/internal/payment"
	"github.com/stefans1510/fitness-shop/internal/repository"
	"github.com/stefans1510/fitness-shop/internal/service"
	"github.com/stefans1510/fitness-shop/internal/transport/http"
	"github.com/stefans1510/fitness-shop/internal/transport/http/handler"
	transportKafka "github.com/stefans1510/fitness-shop/internal/transport/kafka"
	"github.com/stefans1510/fitness-shop/pkg/config"
	"github.com/stefans1510/fitness-shop/pkg/db"
	"github.com/stefans1510/fitness-shop/pkg/kafka"
	"github.com/stefans1510/fitness-shop/pkg/mylogger"
	"github.com/stefans1510/fitness-shop/pkg/outbox"
	"github.com/stefans1510/fitness-shop/pkg/utils"
	"go.uber.org/zap"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf(".env not found: %v\n", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.MustLoad()

	tp, err := utils.InitTracer(ctx, "fitness-shop")
	if err != nil {
		log.Fatalf("failed to init tracer: %v", err)
	}

	pool, err := db.NewPostgresDB(cfg.Postgres.URL)
	if err != nil {
		log.Fatalf("failed to create pool: %v", err)
	}

	logger, err := config.NewLogger(config.LoggerConfig{
		Level: "info",
		Env:   cfg.Env,
	})
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer func() {
		if err := logger.Sync(); err != nil {
			log.Printf("failed to sync logger: %v", err)
		}
	}()

	rdb := redis.NewClient(&redis.Options{
		Addr: cfg.Redis.Addr,
	})

	productRepo := repository.NewProductRepository(pool, logger)
	reservationRepo := repository.NewStockReservationRepository(pool, logger)
	orderRepo := repository.NewOrderRepository(pool, logger)
	couponRepo := repository.NewCouponRepository(pool, logger)
	outboxRepo := outbox.NewRepository(pool, logger)

	kafkaProducer, err := kafka.NewProducer(cfg.Kafka.Brokers)
	if err != nil {
		log.Fatalf("error creating kafka producer: %v", err)
	}

	hub := notification.NewHub(logger)

	cartService := service.NewCartService(rdb, logger)
	couponService := service.NewCouponService(couponRepo, logger)
	inventoryService := service.NewInventoryService(pool, productRepo, reservationRepo, logger)
	orderService := service.NewOrderService(
		pool, orderRepo, productRepo, outboxRepo,
		cartService, couponService, inventoryService,
		cfg.Kafka.OrderTopic, logger,
	)

	stripeClient := payment.NewStripeClient(cfg.Stripe.BaseURL, cfg.Stripe.SecretKey, logger)

	paymentService := service.NewPaymentService(
		pool, orderRepo, productRepo, outboxRepo,
		cartService, couponService, inventoryService,
		stripeClient, hub,
		cfg.Kafka.OrderTopic, cfg.Shipping.DefaultPrice, logger,
	)

	outboxProcessor := outbox.NewProcessor(pool, outboxRepo, kafkaProducer, logger)
	go outboxProcessor.Start(ctx)

	consumer := transportKafka.NewConsumer(
		paymentService,
		cfg.Kafka.GroupID,
		[]string{cfg.Kafka.PaymentTopic},
		logger,
	)
	go consumer.Start(ctx, cfg.Kafka.Brokers)

	app := fiber.New()
	app.Use(otelfiber.Middleware())
	app.Use(limiter.New(limiter.Config{
		Max:        20,
		Expiration: 5 * time.Second,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests. Try again later.",
			})
		},
	}))

	handlers := &http.Handlers{
		Product: handler.NewProductHandler(productRepo, inventoryService, logger),
		Cart:    handler.NewCartHandler(cartService, logger),
		Order:   handler.NewOrderHandler(orderService, logger),
		Payment: handler.NewPaymentHandler(
			paymentService, kafkaProducer,
			cfg.Stripe.WebhookSecret, cfg.Kafka.PaymentTopic, logger,
		),
		Inventory: handler.NewInventoryHandler(reservationRepo, logger),
	}

	http.RegisterRoutes(app, handlers)

	go func() {
		log.Println("HTTP service listening on " + cfg.HTTP.Port)
		if err := app.Listen(cfg.HTTP.Port); err != nil {
			log.Fatalf("Error listening on HTTP port %v: %v\n", cfg.HTTP.Port, err)
		}
	}()

	// The fiber app runs on fasthttp; websocket upgrades need net/http, so the
	// notification hub gets its own listener.
	wsPort := utils.ParseWithFallback("WS_PORT", ":5001")
	wsMux := netHttp.NewServeMux()
	wsMux.HandleFunc("/ws", hub.ServeWS)
	wsServer := &netHttp.Server{
		Addr:    wsPort,
		Handler: wsMux,
	}

	go func() {
		log.Println("Notification hub listening on " + wsPort)
		if err := wsServer.ListenAndServe(); err != nil && err != netHttp.ErrServerClosed {
			log.Fatalf("Error listening on WS port %v: %v\n", wsPort, err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	mylogger.Info(shutdownCtx, logger, "Shutting down fitness-shop")

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("Error shutting down HTTP app: %v\n", err)
	}

	if err := wsServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error shutting down notification hub: %v\n", err)
	}

	if err := kafkaProducer.Close(); err != nil {
		log.Printf("Error closing kafka producer: %v\n", err)
	}

	if err := rdb.Close(); err != nil {
		log.Printf("Error closing redis client: %v\n", err)
	}

	if err := tp.Shutdown(shutdownCtx); err != nil {
		mylogger.Warn(
			shutdownCtx,
			logger,
			"Failed to shut down telemetry",
			zap.Error(err),
		)
	}

	pool.Close()
}
