// Package memrepo is an in-memory implementation of the repository contracts.
// It keeps the same semantics as the MongoDB store (atomic create, conditional
// unlock, ownership checks) and backs the service and job tests.
package memrepo

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Dias221467/TimeCapsule/internal/models"
	"github.com/Dias221467/TimeCapsule/internal/repository"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Store holds every collection behind one mutex.
type Store struct {
	mu sync.Mutex

	capsules      map[primitive.ObjectID]models.Capsule
	media         map[primitive.ObjectID][]models.Media
	assignments   map[primitive.ObjectID]primitive.ObjectID
	templates     []models.EmotionTemplate
	notifications []models.Notification
	users         map[primitive.ObjectID]models.User

	// CreateErr makes CreateCapsule fail without persisting anything.
	CreateErr error
	// NotificationErr makes CreateNotification fail.
	NotificationErr error
}

func New() *Store {
	return &Store{
		capsules:    make(map[primitive.ObjectID]models.Capsule),
		media:       make(map[primitive.ObjectID][]models.Media),
		assignments: make(map[primitive.ObjectID]primitive.ObjectID),
		users:       make(map[primitive.ObjectID]models.User),
	}
}

var (
	_ repository.CapsuleRepository      = (*Store)(nil)
	_ repository.NotificationRepository = (*Store)(nil)
	_ repository.TemplateRepository     = (*Store)(nil)
	_ repository.UserRepository         = (*Store)(nil)
)

// Capsules

func (s *Store) CreateCapsule(_ context.Context, capsule *models.Capsule, media []models.Media, templateID primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.CreateErr != nil {
		return s.CreateErr
	}
	if capsule.ID.IsZero() {
		capsule.ID = primitive.NewObjectID()
	}
	stored := make([]models.Media, len(media))
	for i := range media {
		if media[i].ID.IsZero() {
			media[i].ID = primitive.NewObjectID()
		}
		media[i].CapsuleID = capsule.ID
		stored[i] = media[i]
	}

	c := *capsule
	c.EmotionTags = append([]string(nil), capsule.EmotionTags...)
	s.capsules[c.ID] = c
	s.media[c.ID] = stored
	if !templateID.IsZero() {
		s.assignments[c.ID] = templateID
	}
	return nil
}

func (s *Store) GetCapsule(_ context.Context, userID, id primitive.ObjectID) (*models.CapsuleView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.capsules[id]
	if !ok || c.UserID != userID {
		return nil, repository.ErrNotFound
	}
	v := s.viewLocked(c)
	return &v, nil
}

// GetCapsuleByID returns a stored capsule regardless of owner.
func (s *Store) GetCapsuleByID(_ context.Context, id primitive.ObjectID) (*models.Capsule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.capsules[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &c, nil
}

func (s *Store) ListCapsules(_ context.Context, userID primitive.ObjectID, status models.CapsuleStatus) ([]models.CapsuleView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	views := []models.CapsuleView{}
	for _, c := range s.capsules {
		if c.UserID != userID {
			continue
		}
		if status == models.CapsuleStatusLocked && c.IsUnlocked {
			continue
		}
		if status == models.CapsuleStatusUnlocked && !c.IsUnlocked {
			continue
		}
		views = append(views, s.viewLocked(c))
	}
	sort.Slice(views, func(i, j int) bool {
		if views[i].CreatedAt.Equal(views[j].CreatedAt) {
			return views[i].ID.Hex() > views[j].ID.Hex()
		}
		return views[i].CreatedAt.After(views[j].CreatedAt)
	})
	return views, nil
}

func (s *Store) UpdateLockedCapsule(_ context.Context, userID, id primitive.ObjectID, upd models.CapsuleUpdate, now time.Time) (*models.Capsule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.capsules[id]
	if !ok || c.UserID != userID {
		return nil, repository.ErrNotFound
	}
	if c.IsUnlocked {
		return nil, repository.ErrCapsuleUnlocked
	}
	if upd.Title != nil {
		c.Title = *upd.Title
	}
	if upd.Message != nil {
		c.Message = *upd.Message
	}
	if upd.PersonTag != nil {
		c.PersonTag = *upd.PersonTag
	}
	if upd.UnlockAt != nil {
		c.UnlockAt = *upd.UnlockAt
	}
	c.UpdatedAt = now
	s.capsules[id] = c
	return &c, nil
}

func (s *Store) DeleteCapsule(_ context.Context, userID, id primitive.ObjectID) ([]models.Media, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.capsules[id]
	if !ok || c.UserID != userID {
		return nil, repository.ErrNotFound
	}
	removed := s.media[id]
	delete(s.capsules, id)
	delete(s.media, id)
	delete(s.assignments, id)
	return removed, nil
}

func (s *Store) FindDueForUnlock(_ context.Context, now time.Time, limit int64) ([]models.Capsule, error) {
	return s.filterCapsules(limit, func(c models.Capsule) bool {
		return !c.IsUnlocked && !c.UnlockAt.After(now)
	}), nil
}

func (s *Store) MarkUnlocked(_ context.Context, id primitive.ObjectID, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.capsules[id]
	if !ok || c.IsUnlocked {
		return false, nil
	}
	c.IsUnlocked = true
	c.UnlockedAt = &now
	c.UpdatedAt = now
	s.capsules[id] = c
	return true, nil
}

func (s *Store) FindLockedUnlockingBetween(_ context.Context, from, to time.Time) ([]models.Capsule, error) {
	return s.filterCapsules(0, func(c models.Capsule) bool {
		return !c.IsUnlocked && !c.UnlockAt.Before(from) && !c.UnlockAt.After(to)
	}), nil
}

// Media returns the stored media rows for a capsule.
func (s *Store) Media(capsuleID primitive.ObjectID) []models.Media {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Media(nil), s.media[capsuleID]...)
}

// CapsuleCount returns the number of stored capsules.
func (s *Store) CapsuleCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.capsules)
}

func (s *Store) filterCapsules(limit int64, keep func(models.Capsule) bool) []models.Capsule {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.Capsule
	for _, c := range s.capsules {
		if keep(c) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UnlockAt.Before(out[j].UnlockAt) })
	if limit > 0 && int64(len(out)) > limit {
		out = out[:limit]
	}
	return out
}

func (s *Store) viewLocked(c models.Capsule) models.CapsuleView {
	v := models.CapsuleView{
		Capsule: c,
		Media:   append([]models.Media{}, s.media[c.ID]...),
	}
	if tid, ok := s.assignments[c.ID]; ok {
		for i := range s.templates {
			if s.templates[i].ID == tid {
				t := s.templates[i]
				v.Template = &t
				break
			}
		}
	}
	return v
}

// Notifications

func (s *Store) CreateNotification(_ context.Context, notif *models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.NotificationErr != nil {
		return s.NotificationErr
	}
	if notif.ID.IsZero() {
		notif.ID = primitive.NewObjectID()
	}
	if notif.CreatedAt.IsZero() {
		notif.CreatedAt = time.Now()
	}
	s.notifications = append(s.notifications, *notif)
	return nil
}

func (s *Store) Exists(_ context.Context, userID, capsuleID primitive.ObjectID, notifType string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, n := range s.notifications {
		if n.UserID == userID && n.CapsuleID == capsuleID && n.Type == notifType {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) GetUserNotifications(_ context.Context, userID primitive.ObjectID, limit int64) ([]models.NotificationView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []models.NotificationView{}
	for i := len(s.notifications) - 1; i >= 0; i-- {
		n := s.notifications[i]
		if n.UserID != userID {
			continue
		}
		out = append(out, models.NotificationView{Notification: n, CapsuleTitle: s.capsules[n.CapsuleID].Title})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) MarkAsRead(_ context.Context, id, userID primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.notifications {
		if s.notifications[i].ID == id && s.notifications[i].UserID == userID {
			s.notifications[i].Read = true
			return nil
		}
	}
	return repository.ErrNotFound
}

// Notifications returns a copy of the ledger filtered by type; empty type returns all.
func (s *Store) Notifications(notifType string) []models.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.Notification
	for _, n := range s.notifications {
		if notifType == "" || n.Type == notifType {
			out = append(out, n)
		}
	}
	return out
}

// Templates

func (s *Store) GetTemplateByEmotion(_ context.Context, emotion string) (*models.EmotionTemplate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range s.templates {
		if t.EmotionName == emotion {
			return &t, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *Store) GetAllTemplates(_ context.Context) ([]models.EmotionTemplate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := append([]models.EmotionTemplate{}, s.templates...)
	sort.Slice(out, func(i, j int) bool { return out[i].EmotionName < out[j].EmotionName })
	return out, nil
}

func (s *Store) SeedTemplates(_ context.Context, templates []models.EmotionTemplate) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inserted := 0
outer:
	for _, t := range templates {
		for _, existing := range s.templates {
			if existing.EmotionName == t.EmotionName {
				continue outer
			}
		}
		if t.ID.IsZero() {
			t.ID = primitive.NewObjectID()
		}
		s.templates = append(s.templates, t)
		inserted++
	}
	return inserted, nil
}

// Users

func (s *Store) CreateUser(_ context.Context, user *models.User) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if strings.EqualFold(u.Email, user.Email) {
			return nil, repository.ErrDuplicate
		}
	}
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	s.users[user.ID] = *user
	return user, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *Store) GetUserByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}
