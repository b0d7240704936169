package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/rajanikanta17/Realtime-Code-Editor/internal/api"
	"github.com/rajanikanta17/Realtime-Code-Editor/internal/config"
	"github.com/rajanikanta17/Realtime-Code-Editor/internal/events"
	"github.com/rajanikanta17/Realtime-Code-Editor/internal/metrics"
	"github.com/rajanikanta17/Realtime-Code-Editor/internal/routers"
	"github.com/rajanikanta17/Realtime-Code-Editor/internal/session"
	storemongo "github.com/rajanikanta17/Realtime-Code-Editor/internal/store/mongo"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("invalid configuration: ", err)
	}

	mongoClient, err := storemongo.NewClient(context.Background(), cfg.MongoURI, cfg.DBName)
	if err != nil {
		logger.Fatal("failed to connect to mongo", zap.Error(err))
	}

	// A dead store at startup is a degraded condition, not a fatal one: the
	// session layer runs live on in-memory state and retries persistence on
	// the next mutating event.
	pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	if err := mongoClient.Ping(pingCtx); err != nil {
		logger.Warn("mongo unreachable at startup, continuing degraded", zap.Error(err))
	}
	cancelPing()

	roomRepo, err := storemongo.NewRoomRepo(mongoClient, cfg.RoomsCollection)
	if err != nil {
		logger.Fatal("failed to initialize room repository", zap.Error(err))
	}

	publisher := events.NewPublisher(cfg.RedisAddr, cfg.EventsChannel, logger)
	defer publisher.Close()

	manager := session.NewManager(logger, roomRepo, publisher, cfg.StoreTimeout)

	reaper := session.NewReaper(manager, logger, cfg.ReapSchedule)
	if err := reaper.Start(); err != nil {
		logger.Fatal("failed to start room reaper", zap.Error(err))
	}
	defer reaper.Stop()

	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Logger,
		middleware.Recoverer,
	)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}))
	r.Use(metrics.Middleware())

	handlers := api.NewHandlers(logger, manager, roomRepo)
	r.Mount("/", routers.New(handlers))

	addr := ":" + cfg.Port
	server := &http.Server{
		Addr:        addr,
		Handler:     r,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		logger.Info("collab session broker listening", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, syscall.SIGINT, syscall.SIGTERM)
	<-shutdownChan

	logger.Info("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}
	if err := mongoClient.Disconnect(ctx); err != nil {
		logger.Error("mongo disconnect failed", zap.Error(err))
	}

	logger.Info("exited")
}
