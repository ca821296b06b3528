package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/vtrnguyen/orisharin-server/config"
	"github.com/vtrnguyen/orisharin-server/internal/api"
	"github.com/vtrnguyen/orisharin-server/internal/auth"
	"github.com/vtrnguyen/orisharin-server/internal/cache"
	"github.com/vtrnguyen/orisharin-server/internal/dispatch"
	"github.com/vtrnguyen/orisharin-server/internal/logger"
	"github.com/vtrnguyen/orisharin-server/internal/media"
	"github.com/vtrnguyen/orisharin-server/internal/notify"
	"github.com/vtrnguyen/orisharin-server/internal/presence"
	"github.com/vtrnguyen/orisharin-server/internal/repository"
	"github.com/vtrnguyen/orisharin-server/internal/service"
	"github.com/vtrnguyen/orisharin-server/internal/ws"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()

	zl, err := logger.New(cfg.AppEnv == "development")
	if err != nil {
		log.Fatalf("logger init: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	mc, err := repository.NewMongoClient(cfg)
	if err != nil {
		zl.Fatalw("mongo init failed", "err", err)
	}
	defer func() { _ = mc.Disconnect(context.Background()) }()

	db := mc.Database(cfg.MongoDB)
	convRepo := repository.NewConversationRepository(db.Collection("conversations"))
	msgRepo := repository.NewMessageRepository(db.Collection("messages"))
	userRepo := repository.NewUserRepository(db.Collection("users"))

	registry := presence.NewRegistry()
	dispatcher := dispatch.NewDispatcher(convRepo, registry, zl)

	var mirror *cache.PresenceMirror
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer rdb.Close()
		mirror = cache.NewPresenceMirror(rdb, cfg.RedisPrefix, 24*time.Hour)
	}

	var sink *notify.Sink
	var pusher service.Pusher
	if len(cfg.KafkaBrokers) > 0 {
		sink = notify.NewSink(cfg.KafkaBrokers, cfg.KafkaNotifyTopic, zl)
		defer func() { _ = sink.Close() }()
		pusher = sink
	}

	var storage media.Store
	if cfg.S3Bucket != "" {
		st, err := media.NewS3Store(context.Background(), cfg.S3Region, cfg.S3Bucket)
		if err != nil {
			zl.Fatalw("s3 init failed", "err", err)
		}
		storage = st
	}

	validator, err := auth.NewJWTValidator(cfg.JWTAlg, cfg.JWTSecret, cfg.JWTPublicKeyPath)
	if err != nil {
		zl.Fatalw("jwt validator init failed", "err", err)
	}

	msgSvc := service.NewMessageService(msgRepo, convRepo, userRepo, dispatcher, storage, zl)
	convSvc := service.NewConversationService(convRepo, msgRepo, userRepo, dispatcher, pusher, zl)
	convSvc.SetSystemWriter(msgSvc)

	wsServer := ws.NewServer(registry, validator, msgSvc, dispatcher, mirror, ws.Config{
		PingInterval:  cfg.WSPingInterval,
		WriteDeadline: cfg.WSWriteDeadline,
		MaxMsgSize:    cfg.WSMaxMsgSize,
		SendBuffer:    cfg.WSSendBuffer,
	}, zl)

	handlers := api.NewHandlers(convSvc, msgSvc, registry, storage, zl)
	app := api.NewServer(validator, handlers, wsServer)

	go func() {
		if err := app.Listen(":" + cfg.AppPort); err != nil {
			zl.Fatalw("server listen failed", "err", err)
		}
	}()
	zl.Infow("server started", "port", cfg.AppPort, "env", cfg.AppEnv)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	_ = app.ShutdownWithContext(ctx)
	registry.Drain()
	zl.Infow("server stopped")
}
