package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hemisphere-atlas/internal/config"
	"hemisphere-atlas/internal/database"
	"hemisphere-atlas/internal/handlers"
	"hemisphere-atlas/internal/logger"
	"hemisphere-atlas/internal/middleware"
	"hemisphere-atlas/internal/router"
	"hemisphere-atlas/internal/services"
	"hemisphere-atlas/internal/session"
	"hemisphere-atlas/internal/websocket"
	"hemisphere-atlas/internal/worker"
)

func main() {
	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()

	log := logger.NewZapLogger(cfg.LogFile, cfg.IsProduction())
	defer log.Sync()
	log.Info("main", "starting Hemisphere Atlas", map[string]interface{}{"env": cfg.Env})

	// ──── Step 2: Initialize Redis (optional) ────
	redisClient, err := database.NewRedisClient(cfg.RedisURL)
	if err != nil {
		log.Error("main", "redis connection failed", map[string]interface{}{"error": err})
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		log.Info("main", "redis connected, websocket fan-out via pub/sub", nil)
	} else {
		log.Info("main", "no REDIS_URL, websocket updates stay in-process", nil)
	}

	// ──── Step 3: Initialize Gemini Client ────
	if cfg.GeminiAPIKey == "" {
		log.Warn("main", "GEMINI_API_KEY is not set, generation requests will fail", nil)
	}
	gemini := services.NewGeminiGenerator(cfg.GeminiAPIKey, cfg.GeminiModel, cfg.GeminiConcurrentReqs, log)
	defer gemini.Close()
	generation := services.NewGenerationService(gemini, log)

	// ──── Step 4: Templates, WebSocket Hub, Sessions ────
	tmpl := handlers.NewTemplateRenderer()
	wsHub := websocket.NewHub(redisClient, log)
	publisher := handlers.NewViewPublisher(wsHub, tmpl, log)
	sessions := session.NewStore(generation, publisher, cfg.SessionTTL, log)

	// ──── Step 5: Start Generation Worker Pool ────
	workerPool := worker.NewPool(sessions, log, cfg.WorkerCount, cfg.JobQueueSize)
	workerPool.Start()
	log.Info("main", "worker pool started", map[string]interface{}{
		"workers": cfg.WorkerCount,
		"queue":   cfg.JobQueueSize,
	})

	// ──── Step 6: Start HTTP Server ────
	sessionMW := middleware.NewSession(cfg.SessionTTL, cfg.IsProduction())
	generationLimiter := middleware.NewRateLimiter(cfg.GenerationRateLimit, time.Minute)
	defer generationLimiter.Stop()

	widgetHandler := handlers.NewWidgetHandler(sessions, workerPool, generationLimiter, tmpl, log)
	pageHandler := handlers.NewPageHandler(widgetHandler)
	wsHub.OnConnect(widgetHandler.ReplayViews)

	r := router.New(
		sessionMW,
		generationLimiter,
		pageHandler,
		widgetHandler,
		wsHub.HandleWebSocket,
		log,
	)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 35 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	done := make(chan struct{})
	go func() {
		defer close(done)
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Info("main", "shutting down", nil)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			log.Error("main", "http shutdown failed", map[string]interface{}{"error": err})
		}
		workerPool.Stop()
	}()

	log.Info("main", "ready", map[string]interface{}{
		"url": fmt.Sprintf("http://localhost:%s", cfg.Port),
		"ws":  fmt.Sprintf("ws://localhost:%s/api/v1/ws", cfg.Port),
	})

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Error("main", "server error", map[string]interface{}{"error": err})
		os.Exit(1)
	}
	<-done
}
