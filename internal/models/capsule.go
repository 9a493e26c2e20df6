package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Capsule is a memory sealed until UnlockAt.
type Capsule struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID      primitive.ObjectID `bson:"user_id" json:"user_id"`
	Title       string             `bson:"title" json:"title"`
	Message     string             `bson:"message" json:"message"`
	EmotionTags []string           `bson:"emotion_tags,omitempty" json:"emotion_tags,omitempty"`
	PersonTag   string             `bson:"person_tag,omitempty" json:"person_tag,omitempty"`
	UnlockAt    time.Time          `bson:"unlock_at" json:"unlock_at"`
	IsUnlocked  bool               `bson:"is_unlocked" json:"is_unlocked"`
	UnlockedAt  *time.Time         `bson:"unlocked_at,omitempty" json:"unlocked_at,omitempty"`
	CreatedAt   time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time          `bson:"updated_at" json:"updated_at"`
}

// CapsuleView is a capsule together with its media and resolved template.
type CapsuleView struct {
	Capsule  `bson:",inline"`
	Media    []Media          `bson:"media" json:"media"`
	Template *EmotionTemplate `bson:"template,omitempty" json:"template,omitempty"`
}

// CapsuleUpdate carries the editable fields; nil means unchanged.
type CapsuleUpdate struct {
	Title     *string    `json:"title,omitempty"`
	Message   *string    `json:"message,omitempty"`
	PersonTag *string    `json:"person_tag,omitempty"`
	UnlockAt  *time.Time `json:"unlock_date,omitempty"`
}

// IsEmpty reports whether the update changes nothing.
func (u CapsuleUpdate) IsEmpty() bool {
	return u.Title == nil && u.Message == nil && u.PersonTag == nil && u.UnlockAt == nil
}

// CapsuleStatus filters capsule listings.
type CapsuleStatus string

const (
	CapsuleStatusAll      CapsuleStatus = "all"
	CapsuleStatusLocked   CapsuleStatus = "locked"
	CapsuleStatusUnlocked CapsuleStatus = "unlocked"
)

// ParseCapsuleStatus maps the query value to a status; empty means all.
func ParseCapsuleStatus(s string) (CapsuleStatus, bool) {
	switch CapsuleStatus(s) {
	case "", CapsuleStatusAll:
		return CapsuleStatusAll, true
	case CapsuleStatusLocked:
		return CapsuleStatusLocked, true
	case CapsuleStatusUnlocked:
		return CapsuleStatusUnlocked, true
	}
	return "", false
}

// CapsuleTemplate links a capsule to the template chosen at creation.
type CapsuleTemplate struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	CapsuleID  primitive.ObjectID `bson:"capsule_id" json:"capsule_id"`
	TemplateID primitive.ObjectID `bson:"template_id" json:"template_id"`
	CreatedAt  time.Time          `bson:"created_at" json:"created_at"`
}
