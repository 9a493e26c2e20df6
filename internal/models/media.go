package models

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Media types derived from the declared content type.
const (
	MediaTypeImage = "image"
	MediaTypeAudio = "audio"
	MediaTypeVideo = "video"
	MediaTypeOther = "other"
)

// Media is a file attached to a capsule at creation time.
type Media struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	CapsuleID   primitive.ObjectID `bson:"capsule_id" json:"capsule_id"`
	FilePath    string             `bson:"file_path" json:"file_path"`
	FileType    string             `bson:"file_type" json:"file_type"`
	FileName    string             `bson:"file_name" json:"file_name"`
	FileSize    int64              `bson:"file_size" json:"file_size"`
	ContentType string             `bson:"content_type,omitempty" json:"content_type,omitempty"`
	CreatedAt   time.Time          `bson:"created_at" json:"created_at"`
}

// MediaTypeFromContentType classifies a MIME type by its prefix.
func MediaTypeFromContentType(contentType string) string {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	switch {
	case strings.HasPrefix(ct, "image/"):
		return MediaTypeImage
	case strings.HasPrefix(ct, "audio/"):
		return MediaTypeAudio
	case strings.HasPrefix(ct, "video/"):
		return MediaTypeVideo
	default:
		return MediaTypeOther
	}
}
