package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode"

	"github.com/Dias221467/TimeCapsule/internal/models"
	"github.com/Dias221467/TimeCapsule/internal/repository"
	"github.com/Dias221467/TimeCapsule/pkg/logger"
	"github.com/Dias221467/TimeCapsule/pkg/storage"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MediaUpload is one attachment received with a create request.
type MediaUpload struct {
	FileName    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// CreateCapsuleInput carries the fields of a new capsule.
type CreateCapsuleInput struct {
	Title     string
	Message   string
	PersonTag string
	UnlockAt  time.Time
	Media     []MediaUpload
}

// CreateCapsuleResult is what the caller gets back after creation.
type CreateCapsuleResult struct {
	CapsuleID         primitive.ObjectID      `json:"capsule_id"`
	Emotions          []string                `json:"emotions"`
	Template          *models.EmotionTemplate `json:"template,omitempty"`
	TemplateDefaulted bool                    `json:"template_defaulted"`
}

// CapsuleService encapsulates the capsule lifecycle.
type CapsuleService struct {
	repo      repository.CapsuleRepository
	emotions  *EmotionService
	templates *TemplateService
	storage   storage.Storage
	now       Clock
}

// NewCapsuleService creates a new instance of CapsuleService. A nil clock means time.Now.
func NewCapsuleService(repo repository.CapsuleRepository, emotions *EmotionService, templates *TemplateService, store storage.Storage, now Clock) *CapsuleService {
	if now == nil {
		now = time.Now
	}
	return &CapsuleService{
		repo:      repo,
		emotions:  emotions,
		templates: templates,
		storage:   store,
		now:       now,
	}
}

// CreateCapsule validates the input, classifies the message, stores the media
// and persists capsule, media and template assignment atomically.
func (s *CapsuleService) CreateCapsule(ctx context.Context, owner primitive.ObjectID, in CreateCapsuleInput) (*CreateCapsuleResult, error) {
	now := s.now()
	title := strings.TrimSpace(in.Title)
	message := strings.TrimSpace(in.Message)

	if title == "" || message == "" || in.UnlockAt.IsZero() {
		return nil, fmt.Errorf("%w: title, message, and unlock date are required", ErrValidation)
	}
	if !in.UnlockAt.After(now) {
		return nil, fmt.Errorf("%w: unlock date must be in the future", ErrValidation)
	}
	if err := checkText(title, message, in.PersonTag); err != nil {
		return nil, err
	}

	emotions := s.emotions.DetectEmotions(ctx, message)

	var templateID primitive.ObjectID
	match, err := s.templates.TemplateFor(ctx, emotions)
	if err != nil {
		logger.Log.WithError(err).Warn("No template available, capsule created without one")
	} else {
		templateID = match.Template.ID
	}

	media, err := s.storeMedia(ctx, owner, in.Media, now)
	if err != nil {
		return nil, err
	}

	capsule := &models.Capsule{
		UserID:      owner,
		Title:       title,
		Message:     message,
		EmotionTags: emotions,
		PersonTag:   strings.TrimSpace(in.PersonTag),
		UnlockAt:    in.UnlockAt.UTC(),
		IsUnlocked:  false,
		CreatedAt:   now.UTC(),
		UpdatedAt:   now.UTC(),
	}

	if err := s.repo.CreateCapsule(ctx, capsule, media, templateID); err != nil {
		s.removeMedia(ctx, media)
		logger.Log.WithError(err).WithField("userID", owner.Hex()).Error("Failed to create capsule")
		return nil, fmt.Errorf("%w: failed to create time capsule: %v", ErrPersistence, err)
	}

	logger.Log.WithFields(logrus.Fields{
		"capsuleID": capsule.ID.Hex(),
		"userID":    owner.Hex(),
		"emotions":  emotions,
	}).Info("Capsule created in service layer")

	return &CreateCapsuleResult{
		CapsuleID:         capsule.ID,
		Emotions:          emotions,
		Template:          match.Template,
		TemplateDefaulted: match.Defaulted,
	}, nil
}

// ListCapsules returns the owner's capsules filtered by status ("all", "locked", "unlocked").
func (s *CapsuleService) ListCapsules(ctx context.Context, owner primitive.ObjectID, status string) ([]models.CapsuleView, error) {
	st, ok := models.ParseCapsuleStatus(status)
	if !ok {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, status)
	}

	capsules, err := s.repo.ListCapsules(ctx, owner, st)
	if err != nil {
		logger.Log.WithError(err).WithField("userID", owner.Hex()).Error("Failed to list capsules")
		return nil, fmt.Errorf("%w: failed to fetch time capsules: %v", ErrPersistence, err)
	}
	return capsules, nil
}

// GetCapsule retrieves one capsule owned by owner.
func (s *CapsuleService) GetCapsule(ctx context.Context, owner primitive.ObjectID, id string) (*models.CapsuleView, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: time capsule not found", ErrNotFound)
	}

	capsule, err := s.repo.GetCapsule(ctx, owner, objID)
	if err != nil {
		return nil, translateRepoError(err)
	}
	return capsule, nil
}

// UpdateCapsule edits a locked capsule.
func (s *CapsuleService) UpdateCapsule(ctx context.Context, owner primitive.ObjectID, id string, upd models.CapsuleUpdate) (*models.Capsule, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: time capsule not found", ErrNotFound)
	}

	// State is checked before the payload so an unlocked capsule always reports InvalidState.
	existing, err := s.repo.GetCapsule(ctx, owner, objID)
	if err != nil {
		return nil, translateRepoError(err)
	}
	if existing.IsUnlocked {
		return nil, fmt.Errorf("%w: cannot update unlocked time capsule", ErrInvalidState)
	}

	now := s.now()
	upd, err = normalizeUpdate(upd, now)
	if err != nil {
		return nil, err
	}

	updated, err := s.repo.UpdateLockedCapsule(ctx, owner, objID, upd, now.UTC())
	if err != nil {
		return nil, translateRepoError(err)
	}

	logger.Log.WithField("capsuleID", id).Info("Capsule updated successfully in service layer")
	return updated, nil
}

// DeleteCapsule removes a capsule, its media rows and stored files.
func (s *CapsuleService) DeleteCapsule(ctx context.Context, owner primitive.ObjectID, id string) error {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: time capsule not found", ErrNotFound)
	}

	removed, err := s.repo.DeleteCapsule(ctx, owner, objID)
	if err != nil {
		return translateRepoError(err)
	}
	s.removeMedia(ctx, removed)

	logger.Log.WithField("capsuleID", id).Info("Capsule deleted successfully in service layer")
	return nil
}

func (s *CapsuleService) storeMedia(ctx context.Context, owner primitive.ObjectID, uploads []MediaUpload, now time.Time) ([]models.Media, error) {
	media := make([]models.Media, 0, len(uploads))
	for _, up := range uploads {
		key := storage.ObjectKey(owner.Hex(), up.FileName)
		ref, err := s.storage.Save(ctx, key, up.ContentType, up.Body)
		if err != nil {
			s.removeMedia(ctx, media)
			logger.Log.WithError(err).WithField("file", up.FileName).Error("Failed to store media")
			return nil, fmt.Errorf("%w: failed to store %q: %v", ErrPersistence, up.FileName, err)
		}
		media = append(media, models.Media{
			FilePath:    ref,
			FileType:    models.MediaTypeFromContentType(up.ContentType),
			FileName:    up.FileName,
			FileSize:    up.Size,
			ContentType: up.ContentType,
			CreatedAt:   now.UTC(),
		})
	}
	return media, nil
}

// removeMedia deletes stored objects best-effort; failures only leave orphaned files.
func (s *CapsuleService) removeMedia(ctx context.Context, media []models.Media) {
	for _, m := range media {
		if err := s.storage.Delete(ctx, m.FilePath); err != nil {
			logger.Log.WithError(err).WithField("file", m.FilePath).Warn("Failed to delete stored media")
		}
	}
}

func normalizeUpdate(upd models.CapsuleUpdate, now time.Time) (models.CapsuleUpdate, error) {
	if upd.IsEmpty() {
		return upd, fmt.Errorf("%w: nothing to update", ErrValidation)
	}
	if upd.Title != nil {
		t := strings.TrimSpace(*upd.Title)
		if t == "" {
			return upd, fmt.Errorf("%w: title cannot be empty", ErrValidation)
		}
		upd.Title = &t
	}
	if upd.Message != nil {
		m := strings.TrimSpace(*upd.Message)
		if m == "" {
			return upd, fmt.Errorf("%w: message cannot be empty", ErrValidation)
		}
		upd.Message = &m
	}
	if upd.PersonTag != nil {
		p := strings.TrimSpace(*upd.PersonTag)
		upd.PersonTag = &p
	}
	if err := checkText(deref(upd.Title), deref(upd.Message), deref(upd.PersonTag)); err != nil {
		return upd, err
	}
	if upd.UnlockAt != nil {
		if !upd.UnlockAt.After(now) {
			return upd, fmt.Errorf("%w: unlock date must be in the future", ErrValidation)
		}
		u := upd.UnlockAt.UTC()
		upd.UnlockAt = &u
	}
	return upd, nil
}

// checkText rejects control characters. Title and person tag end up in email
// headers and must stay on one line; the message may contain line breaks and tabs.
func checkText(title, message, personTag string) error {
	if hasControl(title, false) {
		return fmt.Errorf("%w: title contains control characters", ErrValidation)
	}
	if hasControl(personTag, false) {
		return fmt.Errorf("%w: person tag contains control characters", ErrValidation)
	}
	if hasControl(message, true) {
		return fmt.Errorf("%w: message contains control characters", ErrValidation)
	}
	return nil
}

func hasControl(s string, allowLineBreaks bool) bool {
	return strings.IndexFunc(s, func(r rune) bool {
		if allowLineBreaks && (r == '\n' || r == '\r' || r == '\t') {
			return false
		}
		return unicode.IsControl(r)
	}) >= 0
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func translateRepoError(err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return fmt.Errorf("%w: time capsule not found", ErrNotFound)
	case errors.Is(err, repository.ErrCapsuleUnlocked):
		return fmt.Errorf("%w: cannot update unlocked time capsule", ErrInvalidState)
	default:
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
}
