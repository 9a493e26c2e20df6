package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Dias221467/TimeCapsule/internal/models"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoNotificationRepository struct {
	collection *mongo.Collection
}

func NewNotificationRepository(db *mongo.Database) *MongoNotificationRepository {
	return &MongoNotificationRepository{
		collection: db.Collection(NotificationsCollection),
	}
}

// CreateNotification appends a record to the ledger
func (r *MongoNotificationRepository) CreateNotification(ctx context.Context, notif *models.Notification) error {
	if notif.CreatedAt.IsZero() {
		notif.CreatedAt = time.Now()
	}
	if notif.ID.IsZero() {
		notif.ID = primitive.NewObjectID()
	}

	_, err := r.collection.InsertOne(ctx, notif)
	if err != nil {
		logrus.WithError(err).Error("Failed to insert notification")
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

// Exists reports whether a notification of notifType was recorded for the capsule
func (r *MongoNotificationRepository) Exists(ctx context.Context, userID, capsuleID primitive.ObjectID, notifType string) (bool, error) {
	filter := bson.M{
		"user_id":    userID,
		"capsule_id": capsuleID,
		"type":       notifType,
	}
	err := r.collection.FindOne(ctx, filter, options.FindOne().SetProjection(bson.M{"_id": 1})).Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check notification: %w", err)
	}
	return true, nil
}

// GetUserNotifications returns the newest notifications for a user with capsule titles
func (r *MongoNotificationRepository) GetUserNotifications(ctx context.Context, userID primitive.ObjectID, limit int64) ([]models.NotificationView, error) {
	cursor, err := r.collection.Aggregate(ctx, notificationFeedPipeline(userID, limit))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch notifications: %w", err)
	}
	defer cursor.Close(ctx)

	notifications := []models.NotificationView{}
	if err := cursor.All(ctx, &notifications); err != nil {
		return nil, fmt.Errorf("failed to decode notifications: %w", err)
	}
	return notifications, nil
}

// MarkAsRead sets the read flag on a notification owned by userID
func (r *MongoNotificationRepository) MarkAsRead(ctx context.Context, id, userID primitive.ObjectID) error {
	res, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id, "user_id": userID},
		bson.M{"$set": bson.M{"is_read": true}},
	)
	if err != nil {
		return fmt.Errorf("failed to mark notification as read: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func notificationFeedPipeline(userID primitive.ObjectID, limit int64) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"user_id": userID}}},
		{{Key: "$sort", Value: bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}}},
		{{Key: "$limit", Value: limit}},
		{{Key: "$lookup", Value: bson.M{
			"from":         CapsulesCollection,
			"localField":   "capsule_id",
			"foreignField": "_id",
			"as":           "capsule",
		}}},
		{{Key: "$addFields", Value: bson.M{"capsule_title": bson.M{"$arrayElemAt": bson.A{"$capsule.title", 0}}}}},
		{{Key: "$project", Value: bson.M{"capsule": 0}}},
	}
}
