package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DefaultEmotion is used when classification fails or no template matches.
const DefaultEmotion = "peace"

// Emotions is the vocabulary the classifier may return.
var Emotions = []string{
	"joy", "sadness", "love", "nostalgia", "pride", "regret",
	"excitement", "peace", "anger", "fear", "surprise", "disgust",
}

// IsKnownEmotion reports whether e belongs to Emotions.
func IsKnownEmotion(e string) bool {
	for _, known := range Emotions {
		if known == e {
			return true
		}
	}
	return false
}

type EmotionTemplate struct {
	ID          primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	EmotionName string             `json:"emotion_name" bson:"emotion_name"`
	Data        TemplateData       `json:"template_data" bson:"template_data"`
	CreatedAt   time.Time          `json:"created_at" bson:"created_at"`
}

// TemplateData describes how a capsule is presented when opened.
type TemplateData struct {
	Theme           string `bson:"theme" json:"theme"`
	PrimaryColor    string `bson:"primary_color" json:"primary_color"`
	BackgroundColor string `bson:"background_color" json:"background_color"`
	Icon            string `bson:"icon" json:"icon"`
	Greeting        string `bson:"greeting" json:"greeting"`
}
