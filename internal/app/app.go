// Package app assembles repositories, services and sweeps from configuration.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/Dias221467/TimeCapsule/internal/config"
	"github.com/Dias221467/TimeCapsule/internal/database"
	"github.com/Dias221467/TimeCapsule/internal/jobs"
	"github.com/Dias221467/TimeCapsule/internal/repository"
	"github.com/Dias221467/TimeCapsule/internal/services"
	"github.com/Dias221467/TimeCapsule/pkg/email"
	"github.com/Dias221467/TimeCapsule/pkg/logger"
	"github.com/Dias221467/TimeCapsule/pkg/storage"
	"go.mongodb.org/mongo-driver/mongo"
)

type App struct {
	Config *config.Config
	DB     *mongo.Database

	Users         *services.UserService
	Templates     *services.TemplateService
	Capsules      *services.CapsuleService
	Notifications *services.NotificationService

	UnlockSweeper   *jobs.UnlockSweeper
	ReminderSweeper *jobs.ReminderSweeper
}

// New connects to MongoDB, ensures indexes, seeds templates and wires every service.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	db, err := database.ConnectDB(cfg)
	if err != nil {
		return nil, err
	}
	a, err := build(ctx, cfg, db)
	if err != nil {
		_ = db.Client().Disconnect(context.Background())
		return nil, err
	}
	return a, nil
}

func build(ctx context.Context, cfg *config.Config, db *mongo.Database) (*App, error) {
	if err := database.EnsureIndexes(ctx, db); err != nil {
		return nil, err
	}

	store, err := NewStorage(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("storage setup: %w", err)
	}

	userRepo := repository.NewUserRepository(db)
	capsuleRepo := repository.NewCapsuleRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	templateRepo := repository.NewTemplateRepository(db)

	var classifier services.Classifier
	if cfg.OpenAIAPIKey != "" {
		classifier = services.NewOpenAIClassifier(cfg.OpenAIAPIKey, cfg.OpenAIModel)
	} else {
		logger.Log.Warn("OPENAI_API_KEY not set, every capsule gets the default emotion")
	}
	mailer := email.NewSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPSender, cfg.EmailTimeout)

	templates := services.NewTemplateService(templateRepo)
	if err := templates.SeedDefaults(ctx); err != nil {
		return nil, err
	}
	notifications := services.NewNotificationService(notificationRepo, userRepo, mailer, cfg.AppBaseURL, time.Now)

	return &App{
		Config:        cfg,
		DB:            db,
		Users:         services.NewUserService(userRepo),
		Templates:     templates,
		Capsules:      services.NewCapsuleService(capsuleRepo, services.NewEmotionService(classifier, cfg.ClassifyTimeout), templates, store, time.Now),
		Notifications: notifications,

		UnlockSweeper:   jobs.NewUnlockSweeper(capsuleRepo, notifications, time.Now, cfg.UnlockBatchSize),
		ReminderSweeper: jobs.NewReminderSweeper(capsuleRepo, notifications, time.Now, cfg.ReminderLeadDays, cfg.Location),
	}, nil
}

// Close disconnects the MongoDB client.
func (a *App) Close(ctx context.Context) error {
	return a.DB.Client().Disconnect(ctx)
}

// NewStorage picks the media backend named by STORAGE_DRIVER.
func NewStorage(ctx context.Context, cfg *config.Config) (storage.Storage, error) {
	switch cfg.StorageDriver {
	case "s3":
		logger.Log.WithField("bucket", cfg.S3Bucket).Info("Using S3 media storage")
		return storage.NewS3Storage(ctx, cfg.S3Bucket, cfg.S3Region, cfg.S3Endpoint)
	case "local", "":
		logger.Log.WithField("dir", cfg.UploadDir).Info("Using local media storage")
		return storage.NewLocalStorage(cfg.UploadDir)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}
}
