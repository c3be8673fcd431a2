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

	"marketchat/backend/internal/api/handler"
	"marketchat/backend/internal/api/middleware"
	"marketchat/backend/internal/chat"
	"marketchat/backend/internal/chathub"
	"marketchat/backend/internal/config"
	"marketchat/backend/internal/localization"
	"marketchat/backend/internal/notification"
	"marketchat/backend/internal/storage"
	"marketchat/backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	cfg, dotenv, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logg, err := logger.New(cfg.LogLevel, cfg.IsDevelopment())
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = logg.Sync() }()
	if !dotenv {
		logg.Debug("no .env file loaded")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Storage
	store, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		logg.Fatal("failed to open storage", zap.Error(err))
	}
	defer store.Close()
	if err := store.Migrate(); err != nil {
		logg.Fatal("failed to run migrations", zap.Error(err))
	}
	logg.Info("database and redis connections established, migrations complete")

	loc, err := localization.NewLocalizer(cfg.LocalesDir)
	if err != nil {
		logg.Fatal("failed to load locales", zap.String("dir", cfg.LocalesDir), zap.Error(err))
	}

	// 2. Hub and services
	hub := chathub.NewDispatcher(chathub.NewRegistry(), chathub.NewPresence(), logg.Named("hub"))
	notifications := notification.NewService(store, hub, loc, logg.Named("notification"))
	chats := chat.NewService(store, hub, notifications, logg.Named("chat"), cfg.PageLimit)

	// 3. HTTP
	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.IsDevelopment() {
		r.Use(gin.Logger())
	}

	h := handler.NewHandler(hub, chats, notifications, middleware.NewTokens(cfg.JWTSecret, cfg.JWTTTL), logg.Named("http"))
	h.SendBuffer = cfg.SendBuffer
	h.DevTokens = cfg.IsDevelopment()
	h.Register(r)

	server := &http.Server{
		Addr:           cfg.HTTPAddr,
		Handler:        r,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		logg.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Fatal("http server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logg.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logg.Error("graceful shutdown failed", zap.Error(err))
	}
}
