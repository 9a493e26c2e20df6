package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Dias221467/TimeCapsule/internal/app"
	"github.com/Dias221467/TimeCapsule/internal/config"
	"github.com/Dias221467/TimeCapsule/internal/handlers"
	capsulecron "github.com/Dias221467/TimeCapsule/internal/scheduler"
	"github.com/Dias221467/TimeCapsule/pkg/logger"
	"github.com/Dias221467/TimeCapsule/pkg/middleware"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

func main() {
	// Load configuration from .env file
	cfg := config.LoadConfig()

	logger.InitLogger(cfg.LogLevel)
	logger.Log.Info("Logger initialized")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		logger.Log.Fatalf("Startup error: %v", err)
	}
	defer a.Close(context.Background())

	scheduler, err := capsulecron.StartCapsuleCronJobs(cfg, a.UnlockSweeper, a.ReminderSweeper)
	if err != nil {
		logger.Log.Fatalf("Scheduler error: %v", err)
	}

	// --- Handlers ---
	userHandler := handlers.NewUserHandler(a.Users, cfg)
	capsuleHandler := handlers.NewCapsuleHandler(a.Capsules, cfg.MaxUploadSize, cfg.Location)
	notificationHandler := handlers.NewNotificationHandler(a.Notifications)
	templateHandler := handlers.NewTemplateHandler(a.Templates)
	adminHandler := handlers.NewAdminHandler(a.UnlockSweeper, a.ReminderSweeper)

	// Initialize Gorilla Mux router
	router := mux.NewRouter()
	router.Use(middleware.LoggingMiddleware)
	router.Use(middleware.MetricsMiddleware)

	router.HandleFunc("/health", handlers.HealthHandler(func(ctx context.Context) error {
		return a.DB.Client().Ping(ctx, readpref.Primary())
	})).Methods("GET")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	// Register User routes
	router.HandleFunc("/users/register", userHandler.RegisterUserHandler).Methods("POST")
	router.HandleFunc("/users/login", userHandler.LoginUserHandler).Methods("POST")

	// Capsule routes
	capsuleRoutes := router.PathPrefix("/capsules").Subrouter()
	capsuleRoutes.Use(middleware.AuthMiddleware(cfg.JWTSecret))
	capsuleRoutes.HandleFunc("", capsuleHandler.CreateCapsuleHandler).Methods("POST")
	capsuleRoutes.HandleFunc("", capsuleHandler.GetCapsulesHandler).Methods("GET")
	capsuleRoutes.HandleFunc("/{id}", capsuleHandler.GetCapsuleHandler).Methods("GET")
	capsuleRoutes.HandleFunc("/{id}", capsuleHandler.UpdateCapsuleHandler).Methods("PUT")
	capsuleRoutes.HandleFunc("/{id}", capsuleHandler.DeleteCapsuleHandler).Methods("DELETE")

	// Notification routes
	notificationRoutes := router.PathPrefix("/notifications").Subrouter()
	notificationRoutes.Use(middleware.AuthMiddleware(cfg.JWTSecret))
	notificationRoutes.HandleFunc("", notificationHandler.GetUserNotificationsHandler).Methods("GET")
	notificationRoutes.HandleFunc("/{id}/read", notificationHandler.MarkAsReadHandler).Methods("POST")

	// Template routes
	templateRoutes := router.PathPrefix("/templates").Subrouter()
	templateRoutes.Use(middleware.AuthMiddleware(cfg.JWTSecret))
	templateRoutes.HandleFunc("", templateHandler.GetTemplatesHandler).Methods("GET")

	// Admin routes
	adminRoutes := router.PathPrefix("/admin").Subrouter()
	adminRoutes.Use(middleware.AuthMiddleware(cfg.JWTSecret), middleware.RequireOperator(cfg.OperatorEmails))
	adminRoutes.HandleFunc("/sweeps/unlock", adminHandler.RunUnlockSweepHandler).Methods("POST")
	adminRoutes.HandleFunc("/sweeps/reminders", adminHandler.RunReminderSweepHandler).Methods("POST")

	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           c.Handler(router),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Log.Infof("Server running on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Fatalf("Server error: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Log.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.WithError(err).Error("HTTP shutdown failed")
	}

	// Wait for a running sweep to finish.
	select {
	case <-scheduler.Stop().Done():
	case <-shutdownCtx.Done():
		logger.Log.Warn("Sweep still running at shutdown")
	}
}
