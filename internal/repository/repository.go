package repository

import (
	"context"
	"errors"
	"time"

	"github.com/Dias221467/TimeCapsule/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	// ErrNotFound is returned when no document matches, including ownership mismatches.
	ErrNotFound = errors.New("document not found")
	// ErrCapsuleUnlocked is returned when a write targets a capsule that is already unlocked.
	ErrCapsuleUnlocked = errors.New("capsule is unlocked")
	// ErrDuplicate is returned on unique index violations.
	ErrDuplicate = errors.New("duplicate key")
)

// CapsuleRepository persists capsules, their media and template assignment.
type CapsuleRepository interface {
	// CreateCapsule inserts the capsule, its media and its template assignment
	// atomically. A zero templateID stores no assignment.
	CreateCapsule(ctx context.Context, capsule *models.Capsule, media []models.Media, templateID primitive.ObjectID) error
	GetCapsule(ctx context.Context, userID, id primitive.ObjectID) (*models.CapsuleView, error)
	ListCapsules(ctx context.Context, userID primitive.ObjectID, status models.CapsuleStatus) ([]models.CapsuleView, error)
	// UpdateLockedCapsule applies upd only while the capsule is still locked.
	UpdateLockedCapsule(ctx context.Context, userID, id primitive.ObjectID, upd models.CapsuleUpdate, now time.Time) (*models.Capsule, error)
	// DeleteCapsule removes the capsule with its media and template assignment and returns the removed media.
	DeleteCapsule(ctx context.Context, userID, id primitive.ObjectID) ([]models.Media, error)

	FindDueForUnlock(ctx context.Context, now time.Time, limit int64) ([]models.Capsule, error)
	// MarkUnlocked flips is_unlocked from false to true. It reports false when
	// the capsule was already unlocked (or is gone), so only one caller wins.
	MarkUnlocked(ctx context.Context, id primitive.ObjectID, now time.Time) (bool, error)
	FindLockedUnlockingBetween(ctx context.Context, from, to time.Time) ([]models.Capsule, error)
}

// NotificationRepository is the append-only notification ledger.
type NotificationRepository interface {
	CreateNotification(ctx context.Context, notif *models.Notification) error
	Exists(ctx context.Context, userID, capsuleID primitive.ObjectID, notifType string) (bool, error)
	GetUserNotifications(ctx context.Context, userID primitive.ObjectID, limit int64) ([]models.NotificationView, error)
	MarkAsRead(ctx context.Context, id, userID primitive.ObjectID) error
}

// TemplateRepository stores emotion templates.
type TemplateRepository interface {
	GetTemplateByEmotion(ctx context.Context, emotion string) (*models.EmotionTemplate, error)
	GetAllTemplates(ctx context.Context) ([]models.EmotionTemplate, error)
	// SeedTemplates inserts templates whose emotion is not stored yet.
	SeedTemplates(ctx context.Context, templates []models.EmotionTemplate) (int, error)
}

// UserRepository stores user accounts.
type UserRepository interface {
	CreateUser(ctx context.Context, user *models.User) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
}
