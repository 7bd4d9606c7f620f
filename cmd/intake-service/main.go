package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/tripflow/platform/pkg/access"
	"github.com/tripflow/platform/pkg/common/config"
	"github.com/tripflow/platform/pkg/common/database"
	"github.com/tripflow/platform/pkg/common/kafka"
	"github.com/tripflow/platform/pkg/common/logger"
	"github.com/tripflow/platform/pkg/common/models"
	"github.com/tripflow/platform/pkg/delivery"
	"github.com/tripflow/platform/pkg/intake"
	"github.com/tripflow/platform/pkg/middleware"
	"github.com/tripflow/platform/pkg/pipeline"
	"github.com/tripflow/platform/pkg/render"
	"github.com/tripflow/platform/pkg/session"
	"github.com/tripflow/platform/pkg/trip"
)

func main() {
	logger.Init()
	cfg := config.Load()

	db, err := database.GetPostgres()
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to connect to postgres")
	}

	tripRepo := trip.NewRepository(db)
	if err := tripRepo.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("failed to migrate trip tables")
	}
	accessRepo := access.NewRepository(db)
	if err := accessRepo.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("failed to migrate user tables")
	}

	producer := kafka.NewProducer(cfg.LifecycleTopic)
	defer producer.Close()

	gate := access.NewService(accessRepo, producer)

	var sessions intake.SessionStore
	if cfg.SessionBackend == "redis" {
		sessions = session.NewRedisStore(database.GetRedis(), cfg.SessionTTL)
	} else {
		sessions = session.NewMemoryStore()
	}

	prompts, err := intake.LoadPrompts(cfg.PromptCatalogPath)
	if err != nil {
		logger.Log.WithError(err).Warn("prompt catalog not loaded, using defaults")
	}

	renderer := render.NewExcelRenderer(cfg.ArtifactDir)
	deliverer := delivery.NewEmailDeliverer(
		cfg.SMTPHost, cfg.SMTPPort,
		cfg.SMTPUser, cfg.SMTPPassword,
		cfg.SMTPFrom, cfg.DeliveryEmail,
	)

	pipe := pipeline.New(tripRepo, renderer, deliverer, producer)
	drafts := intake.NewTripDraftStore(tripRepo)
	machine := intake.NewMachine(sessions, gate, drafts, pipe, producer, prompts)

	intakeHandler := intake.NewHTTPHandler(machine, tripRepo, cfg.MaxRequestBody)
	accessHandler := access.NewHTTPHandler(gate)

	router := mux.NewRouter()
	router.Use(middleware.Recovery, middleware.Logging)

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	}).Methods(http.MethodGet)

	router.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ready"}`))
	}).Methods(http.MethodGet)

	api := router.PathPrefix("/api/v1").Subrouter()
	intakeHandler.Register(api)
	accessHandler.Register(api)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Log.WithFields(map[string]interface{}{
			"host": cfg.ServerHost,
			"port": cfg.ServerPort,
		}).Info("Intake Service started")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("failed to start server")
		}
	}()

	producer.PublishEvent(context.Background(), models.EventServiceStarted, "intake-service", nil)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down Intake Service...")
	producer.PublishEvent(context.Background(), models.EventServiceStopped, "intake-service", nil)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Log.WithError(err).Error("server forced to shutdown")
	}

	database.ClosePostgres()
	database.CloseRedis()

	logger.Log.Info("Intake Service stopped")
}
