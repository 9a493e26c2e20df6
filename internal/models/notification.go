package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Notification types. A record of a given type for (user, capsule) means it was already sent.
const (
	NotificationUnlocked       = "unlocked"
	NotificationUnlockReminder = "unlock_reminder"
)

type Notification struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID    primitive.ObjectID `bson:"user_id" json:"user_id"`
	CapsuleID primitive.ObjectID `bson:"capsule_id" json:"capsule_id"`
	Type      string             `bson:"type" json:"type"`                               // "unlocked", "unlock_reminder"
	LeadDays  int                `bson:"lead_days,omitempty" json:"lead_days,omitempty"` // reminder interval that fired
	Message   string             `bson:"message" json:"message"`
	Read      bool               `bson:"is_read" json:"is_read"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
}

// NotificationView is a feed entry joined with its capsule title.
type NotificationView struct {
	Notification `bson:",inline"`
	CapsuleTitle string `bson:"capsule_title,omitempty" json:"capsule_title,omitempty"`
}
