package database

import (
	"context"
	"fmt"
	"time"

	"github.com/Dias221467/TimeCapsule/internal/config"
	"github.com/Dias221467/TimeCapsule/internal/repository"
	"github.com/Dias221467/TimeCapsule/pkg/logger"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const connectTimeout = 10 * time.Second

// ConnectDB opens the client, verifies it with a ping and returns the configured database.
func ConnectDB(cfg *config.Config) (*mongo.Database, error) {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	logger.Log.WithField("db", cfg.DBName).Info("Connected to MongoDB")
	return client.Database(cfg.DBName), nil
}

// EnsureIndexes creates the indexes the sweeps and lookups rely on. It is idempotent.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	indexes := map[string][]mongo.IndexModel{
		repository.CapsulesCollection: {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "is_unlocked", Value: 1}, {Key: "unlock_at", Value: 1}}},
		},
		repository.CapsuleMediaCollection: {
			{Keys: bson.D{{Key: "capsule_id", Value: 1}}},
		},
		repository.CapsuleTemplatesCollection: {
			{Keys: bson.D{{Key: "capsule_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		repository.EmotionTemplatesCollection: {
			{Keys: bson.D{{Key: "emotion_name", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		repository.NotificationsCollection: {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "capsule_id", Value: 1}, {Key: "type", Value: 1}}},
		},
		repository.UsersCollection: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
	}

	for coll, models := range indexes {
		if _, err := db.Collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("failed to create indexes on %s: %w", coll, err)
		}
	}
	return nil
}
