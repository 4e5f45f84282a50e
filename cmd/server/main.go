package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"venue-order-service/config"
	"venue-order-service/internal/api"
	"venue-order-service/internal/broker"
	"venue-order-service/internal/notify"
	"venue-order-service/internal/payment"
	"venue-order-service/internal/redisclient"
	"venue-order-service/internal/service"
	"venue-order-service/internal/store"
	"venue-order-service/internal/util"
	"venue-order-service/internal/worker"

	"github.com/gin-gonic/gin"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting venue order service")

	tp, err := util.InitTracer("venue-order-service", cfg.Observ.JaegerEndpoint)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("Error shutting down tracer: %v", err)
		}
	}()

	db, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("Database connected")

	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()
	log.Println("Redis connected")

	producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrder)
	defer producer.Close()
	log.Println("Kafka producer initialized")

	eventPublisher := broker.NewEventPublisher(producer)

	provider := payment.NewStripeProvider(cfg.Stripe.SecretKey, cfg.Stripe.Currency)
	notifier := notify.NewExpoNotifier()

	lockTTL := time.Duration(cfg.Business.ConfirmLockTTLSeconds) * time.Second
	cacheTTL := time.Duration(cfg.Business.OrderCacheTTLSeconds) * time.Second

	engine := service.NewConfirmationEngine(db, provider, notifier, redisClient, redisClient, eventPublisher, lockTTL)
	orderService := service.NewOrderService(db, provider, notifier, redisClient, eventPublisher, cacheTTL)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	geofenceConsumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicGeofence, cfg.Kafka.ConsumerGroup)
	geofenceWorker := worker.NewGeofenceWorker(geofenceConsumer, engine)
	go func() {
		if err := geofenceWorker.Start(workerCtx); err != nil {
			log.Printf("Geofence worker error: %v", err)
		}
	}()

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()
	handler := api.NewHandler(engine, orderService, api.NewJWTVerifier(cfg.Auth.JWTSecret))
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Printf("Starting HTTP server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	workerCancel()
	geofenceWorker.Stop()

	log.Println("Server exited")
}
