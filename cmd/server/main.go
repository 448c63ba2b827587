// Package main runs the bot's webhook and admin HTTP server with graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/countmein/backend/config"
	"github.com/countmein/backend/internal/admin"
	"github.com/countmein/backend/internal/bot"
	"github.com/countmein/backend/internal/middleware"
	"github.com/countmein/backend/internal/polls"
	"github.com/countmein/backend/internal/session"
	"github.com/countmein/backend/internal/users"
	"github.com/countmein/backend/pkg/database"
	"github.com/countmein/backend/pkg/queue"
	"github.com/countmein/backend/pkg/redis"
	"github.com/countmein/backend/pkg/response"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), int32(cfg.Database.MaxConns), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	pollRepo := polls.NewRepository(pool, cfg.Bot.TxRetries, logger)
	userRepo := users.NewRepository(pool)
	sessions := session.NewStore(rdb.Client)
	outbox := queue.NewQueue(rdb.Client, cfg.Worker.MaxRetries, logger)

	pollBot := bot.New(pollRepo, userRepo, sessions, outbox, bot.Config{
		TitleMaxLength: cfg.Bot.TitleMaxLength,
		MaxOptions:     cfg.Bot.MaxOptions,
		SessionTTL:     cfg.Bot.SessionTTL,
		ListLimit:      cfg.Bot.ListLimit,
		InlineLimit:    cfg.Bot.InlineLimit,
		DeliverDelay:   cfg.Bot.DeliverDelay,
		BotUsername:    cfg.Telegram.BotUsername,
		ThumbURL:       cfg.Telegram.ThumbURL,
	}, logger)
	webhookHandler := bot.NewHandler(pollBot, logger)

	loc, err := time.LoadLocation(cfg.Admin.TimeZone)
	if err != nil {
		logger.Warn("unknown admin time zone, using UTC", zap.String("tz", cfg.Admin.TimeZone), zap.Error(err))
		loc = time.UTC
	}
	adminHandler := admin.NewHandler(pollRepo, userRepo, loc, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(logger))

	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	router.POST("/telegram/webhook", middleware.WebhookSecret(cfg.Telegram.WebhookSecret), webhookHandler.Webhook)

	// Operator pages (ADMIN_API_KEY required)
	ops := router.Group("")
	ops.Use(middleware.OperatorKey(cfg.Admin.APIKey))
	{
		ops.GET("/poll/:id", adminHandler.Poll)
		ops.GET("/polls", adminHandler.List)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
