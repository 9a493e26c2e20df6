package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Dias221467/TimeCapsule/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoTemplateRepository struct {
	collection *mongo.Collection
}

func NewTemplateRepository(db *mongo.Database) *MongoTemplateRepository {
	return &MongoTemplateRepository{
		collection: db.Collection(EmotionTemplatesCollection),
	}
}

func (r *MongoTemplateRepository) GetTemplateByEmotion(ctx context.Context, emotion string) (*models.EmotionTemplate, error) {
	var template models.EmotionTemplate

	err := r.collection.FindOne(ctx, bson.M{"emotion_name": emotion}).Decode(&template)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch template by emotion: %w", err)
	}

	return &template, nil
}

func (r *MongoTemplateRepository) GetAllTemplates(ctx context.Context) ([]models.EmotionTemplate, error) {
	opts := options.Find().SetSort(bson.D{{Key: "emotion_name", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch templates: %w", err)
	}
	defer cursor.Close(ctx)

	templates := []models.EmotionTemplate{}
	for cursor.Next(ctx) {
		var template models.EmotionTemplate
		if err := cursor.Decode(&template); err != nil {
			return nil, fmt.Errorf("failed to decode template: %w", err)
		}
		templates = append(templates, template)
	}

	return templates, cursor.Err()
}

// SeedTemplates upserts by emotion name without touching templates already stored.
func (r *MongoTemplateRepository) SeedTemplates(ctx context.Context, templates []models.EmotionTemplate) (int, error) {
	inserted := 0
	for _, t := range templates {
		if t.CreatedAt.IsZero() {
			t.CreatedAt = time.Now()
		}
		res, err := r.collection.UpdateOne(ctx,
			bson.M{"emotion_name": t.EmotionName},
			bson.M{"$setOnInsert": bson.M{
				"emotion_name":  t.EmotionName,
				"template_data": t.Data,
				"created_at":    t.CreatedAt,
			}},
			options.Update().SetUpsert(true),
		)
		if err != nil {
			return inserted, fmt.Errorf("failed to seed template %q: %w", t.EmotionName, err)
		}
		if res.UpsertedCount > 0 {
			inserted++
		}
	}
	return inserted, nil
}
