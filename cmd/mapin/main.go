package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	authsvc "mapin/internal/app/services/auth"
	socialsvc "mapin/internal/app/services/social"
	"mapin/internal/domain/chat"
	"mapin/internal/domain/event"
	"mapin/internal/infra/broker/kafka"
	"mapin/internal/infra/config"
	mongodb "mapin/internal/infra/db/mongo"
	ginserver "mapin/internal/infra/http/gin"
	"mapin/internal/infra/obs"
	"mapin/internal/infra/outbox"
	"mapin/internal/infra/ratelimit"
	"mapin/internal/infra/security"
	"mapin/internal/infra/storage/memory"
	"mapin/internal/infra/storage/s3"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("configuration invalid", "error", err)
		os.Exit(1)
	}
	logger := obs.NewLogger(cfg.Env)

	app, cleanup, err := buildApplication(ctx, cfg, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	server := ginserver.NewServer(cfg, obs.Middleware{Logger: logger}, obs.HealthHandlers{
		Ready: app.ready,
	}, app.handlers)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown failed", "error", err)
		}
	}()

	logger.Info("HTTP server starting", "addr", cfg.HTTPAddr, "env", cfg.Env)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("http server failed", "error", err)
		os.Exit(1)
	}
	logger.Info("HTTP server stopped")
}

type application struct {
	handlers ginserver.Handlers
	ready    func() error
}

// buildApplication wires stores, services and handlers. Mongo, Kafka, Redis
// and S3 are all optional: missing configuration selects in-memory or no-op
// fallbacks so local development needs no infrastructure.
func buildApplication(ctx context.Context, cfg config.Config, logger *slog.Logger) (application, func(), error) {
	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	var (
		chatStore   chat.Store
		eventStore  event.Store
		outboxStore outbox.Store
		ready       = func() error { return nil }
	)
	if cfg.MongoURI != "" {
		client, err := mongodb.New(cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			cleanup()
			return application{}, nil, err
		}
		cleanups = append(cleanups, func() { client.Close(context.Background()) })
		chatStore = mongodb.NewChatStore(client.DB, logger)
		eventStore = mongodb.NewEventStore(client.DB, logger)
		outboxStore = outbox.NewMongoStore(client.DB)
		ready = func() error {
			pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return client.Ping(pingCtx)
		}
		logger.Info("mongo storage selected", "db", cfg.MongoDB)
	} else {
		chatStore = memory.NewChatStore()
		eventStore = memory.NewEventStore()
		outboxStore = memory.NewOutbox()
		logger.Warn("no MONGO_URI, using in-memory storage")
	}

	sink := outbox.Sink{Store: outboxStore}

	var producer outbox.Producer
	if len(cfg.KafkaBrokers) > 0 {
		kafkaProducer, err := kafka.NewProducer(cfg.KafkaBrokers, nil)
		if err != nil {
			cleanup()
			return application{}, nil, err
		}
		cleanups = append(cleanups, func() { kafkaProducer.Close() })
		producer = kafkaProducer
		logger.Info("kafka producer connected", "brokers", cfg.KafkaBrokers)
	} else {
		producer = outbox.LogProducer{Logger: logger}
		logger.Warn("no KAFKA_BROKERS, outbox events will be dropped")
	}

	worker := &outbox.Worker{
		Store:       outboxStore,
		Producer:    producer,
		Interval:    cfg.OutboxPollInterval,
		TopicPrefix: cfg.KafkaTopicPrefix,
		Backoff:     cfg.RetryBackoff,
	}
	go func() {
		if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("outbox worker stopped", "error", err)
		}
	}()

	var limiter *ratelimit.Limiter
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		cleanups = append(cleanups, func() { redisClient.Close() })
		limiter = ratelimit.New(redisClient, logger)
		logger.Info("redis rate limiting enabled", "addr", cfg.RedisAddr)
	}

	var uploader s3.Uploader = s3.NoopUploader{}
	if cfg.S3Endpoint != "" {
		client, err := s3.NewClient(cfg.S3Endpoint, cfg.S3UseSSL, cfg.S3AccessKey, cfg.S3SecretKey, cfg.S3Bucket, cfg.S3PublicEndpoint, logger)
		if err != nil {
			cleanup()
			return application{}, nil, err
		}
		uploader = client
		logger.Info("s3 media storage enabled", "bucket", cfg.S3Bucket)
	} else {
		logger.Warn("no S3_ENDPOINT, media uploads disabled")
	}

	users := memory.NewUserRepository()
	sessions := memory.NewSessionStore()
	authService := &authsvc.Service{
		Users:      users,
		Sessions:   sessions,
		Passwords:  security.BcryptHasher{},
		Tokens:     security.RandomTokenGenerator{},
		SessionTTL: cfg.SessionTTL,
		Logger:     logger,
	}
	socialService := &socialsvc.Service{
		Store:  memory.NewSocialStore(),
		Logger: logger,
	}

	conversations := &chat.ConversationRepository{Store: chatStore, Events: sink, Logger: logger}
	messages := &chat.MessageRepository{Store: chatStore, Events: sink, Logger: logger}

	handlers := ginserver.Handlers{
		Auth:           ginserver.AuthHandler{Service: authService, Logger: logger},
		Chat:           ginserver.ChatHandler{Conversations: conversations, Messages: messages, Logger: logger},
		Event:          ginserver.EventHandler{Store: eventStore, Events: sink, Logger: logger},
		Media:          ginserver.MediaHandler{Uploader: uploader, Logger: logger},
		Link:           ginserver.LinkHandler{},
		Social:         ginserver.SocialHandler{Service: socialService, Logger: logger},
		WS:             ginserver.WSHandler{Conversations: conversations, Messages: messages, Logger: logger},
		AuthMiddleware: ginserver.AuthMiddleware{Service: authService, Logger: logger}.Handle,
		Limiter:        limiter,
	}
	return application{handlers: handlers, ready: ready}, cleanup, nil
}
