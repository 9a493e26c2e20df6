package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/Dias221467/TimeCapsule/internal/models"
	"github.com/Dias221467/TimeCapsule/internal/repository"
	"github.com/Dias221467/TimeCapsule/pkg/email"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	defaultFeedLimit = 20
	maxFeedLimit     = 100
	excerptLength    = 100
)

// Mailer is the email capability used for capsule notifications.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

type NotificationService struct {
	repo   repository.NotificationRepository
	users  repository.UserRepository
	mailer Mailer
	appURL string
	now    Clock
}

func NewNotificationService(repo repository.NotificationRepository, users repository.UserRepository, mailer Mailer, appURL string, now Clock) *NotificationService {
	if now == nil {
		now = time.Now
	}
	return &NotificationService{
		repo:   repo,
		users:  users,
		mailer: mailer,
		appURL: appURL,
		now:    now,
	}
}

// SendUnlockNotification emails the owner and records an "unlocked" entry.
// The entry is only recorded once the email went out.
func (s *NotificationService) SendUnlockNotification(ctx context.Context, capsule models.Capsule) error {
	user, err := s.users.GetUserByID(ctx, capsule.UserID)
	if err != nil {
		return fmt.Errorf("failed to load capsule owner: %w", err)
	}

	subject, body, err := email.RenderUnlock(email.UnlockData{
		Name:    user.Name,
		Title:   capsule.Title,
		Excerpt: email.Excerpt(capsule.Message, excerptLength),
		AppURL:  s.appURL,
	})
	if err != nil {
		return err
	}
	if err := s.mailer.Send(ctx, user.Email, subject, body); err != nil {
		return fmt.Errorf("%w: %v", ErrExternalService, err)
	}

	return s.record(ctx, &models.Notification{
		UserID:    capsule.UserID,
		CapsuleID: capsule.ID,
		Type:      models.NotificationUnlocked,
		Message:   fmt.Sprintf("Your time capsule %q is ready to unlock!", capsule.Title),
	})
}

// SendReminderNotification emails an upcoming-unlock reminder and records an
// "unlock_reminder" entry tagged with the lead time that fired.
func (s *NotificationService) SendReminderNotification(ctx context.Context, capsule models.Capsule, leadDays int) error {
	user, err := s.users.GetUserByID(ctx, capsule.UserID)
	if err != nil {
		return fmt.Errorf("failed to load capsule owner: %w", err)
	}

	days := DaysUntil(s.now(), capsule.UnlockAt)
	subject, body, err := email.RenderReminder(email.ReminderData{
		Name:     user.Name,
		Title:    capsule.Title,
		DaysLeft: days,
		AppURL:   s.appURL,
	})
	if err != nil {
		return err
	}
	if err := s.mailer.Send(ctx, user.Email, subject, body); err != nil {
		return fmt.Errorf("%w: %v", ErrExternalService, err)
	}

	return s.record(ctx, &models.Notification{
		UserID:    capsule.UserID,
		CapsuleID: capsule.ID,
		Type:      models.NotificationUnlockReminder,
		LeadDays:  leadDays,
		Message:   fmt.Sprintf("Your time capsule %q unlocks in %d %s!", capsule.Title, days, pluralDays(days)),
	})
}

// HasNotification reports whether notifType was already recorded for the capsule.
func (s *NotificationService) HasNotification(ctx context.Context, userID, capsuleID primitive.ObjectID, notifType string) (bool, error) {
	return s.repo.Exists(ctx, userID, capsuleID, notifType)
}

// GetUserNotifications returns the user's feed, newest first.
func (s *NotificationService) GetUserNotifications(ctx context.Context, userID primitive.ObjectID, limit int) ([]models.NotificationView, error) {
	if limit <= 0 {
		limit = defaultFeedLimit
	}
	if limit > maxFeedLimit {
		limit = maxFeedLimit
	}
	notifications, err := s.repo.GetUserNotifications(ctx, userID, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return notifications, nil
}

// MarkNotificationAsRead sets the read flag on one of the user's notifications.
func (s *NotificationService) MarkNotificationAsRead(ctx context.Context, id string, userID primitive.ObjectID) error {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: notification not found", ErrNotFound)
	}
	err = s.repo.MarkAsRead(ctx, objID, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%w: notification not found", ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return nil
}

func (s *NotificationService) record(ctx context.Context, notif *models.Notification) error {
	notif.CreatedAt = s.now().UTC()
	if err := s.repo.CreateNotification(ctx, notif); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	logrus.WithFields(logrus.Fields{
		"userID":    notif.UserID.Hex(),
		"capsuleID": notif.CapsuleID.Hex(),
		"type":      notif.Type,
	}).Info("Notification sent")
	return nil
}

// DaysUntil rounds the time left up to whole days, never below one.
func DaysUntil(now, unlockAt time.Time) int {
	days := int(math.Ceil(unlockAt.Sub(now).Hours() / 24))
	if days < 1 {
		return 1
	}
	return days
}

func pluralDays(n int) string {
	if n == 1 {
		return "day"
	}
	return "days"
}
