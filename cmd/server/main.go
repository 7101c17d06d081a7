package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/mod-ship/Mod-ai-assistant/internal/api"
	"github.com/mod-ship/Mod-ai-assistant/internal/auth"
	"github.com/mod-ship/Mod-ai-assistant/internal/conversation"
	"github.com/mod-ship/Mod-ai-assistant/internal/providers"
	"github.com/mod-ship/Mod-ai-assistant/internal/storage"
	"github.com/mod-ship/Mod-ai-assistant/internal/utils"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("config: no .env file loaded: %v", err)
	}

	cfg, err := utils.LoadConfig()
	if err != nil {
		log.Fatalf("config: failed to load: %v", err)
	}

	logger := utils.MustNewLogger(cfg.Logging)
	defer logger.Sync()
	sugar := logger.Sugar()

	ctx := context.Background()

	kv, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		sugar.Fatalw("storage: failed to open backend", "backend", cfg.Storage.Backend, "error", err)
	}
	defer func() {
		if err := kv.Close(context.Background()); err != nil {
			sugar.Warnw("storage: close error", "error", err)
		}
	}()

	store, err := conversation.NewStore(ctx, kv, cfg.Limits, sugar)
	if err != nil {
		sugar.Fatalw("conversation store: failed to load", "error", err)
	}

	authService, err := auth.NewService(ctx, kv, cfg.JWTSecret, 24*time.Hour, sugar)
	if err != nil {
		sugar.Fatalw("auth service: failed to initialise", "error", err)
	}

	modelRouter := providers.NewRouter(cfg.Providers, sugar)

	router := setupRouter(store, modelRouter, authService, cfg, sugar)

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 180 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		sugar.Infow("server listening", "addr", server.Addr, "storage", cfg.Storage.Backend)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			sugar.Fatalw("server crashed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		sugar.Warnw("graceful shutdown failed", "error", err)
	}

	sugar.Info("server stopped cleanly")
}

func setupRouter(
	store *conversation.Store,
	modelRouter *providers.Router,
	authService *auth.Service,
	cfg *utils.Config,
	sugar *zap.SugaredLogger,
) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	})

	api.NewHandler(store, modelRouter, authService, cfg.Limits.ContextTokenBudget, sugar).RegisterRoutes(router)

	return router
}
