package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Dias221467/TimeCapsule/internal/models"
	"github.com/Dias221467/TimeCapsule/pkg/logger"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection names shared by the capsule store.
const (
	CapsulesCollection         = "capsules"
	CapsuleMediaCollection     = "capsule_media"
	CapsuleTemplatesCollection = "capsule_templates"
	EmotionTemplatesCollection = "emotion_templates"
	NotificationsCollection    = "notifications"
	UsersCollection            = "users"
)

// MongoCapsuleRepository handles database operations related to capsules.
type MongoCapsuleRepository struct {
	client      *mongo.Client
	capsules    *mongo.Collection
	media       *mongo.Collection
	assignments *mongo.Collection
}

// NewCapsuleRepository creates a new instance of MongoCapsuleRepository.
func NewCapsuleRepository(db *mongo.Database) *MongoCapsuleRepository {
	return &MongoCapsuleRepository{
		client:      db.Client(),
		capsules:    db.Collection(CapsulesCollection),
		media:       db.Collection(CapsuleMediaCollection),
		assignments: db.Collection(CapsuleTemplatesCollection),
	}
}

// CreateCapsule inserts the capsule, its media and its template assignment in one transaction.
func (r *MongoCapsuleRepository) CreateCapsule(ctx context.Context, capsule *models.Capsule, media []models.Media, templateID primitive.ObjectID) error {
	if capsule.ID.IsZero() {
		capsule.ID = primitive.NewObjectID()
	}
	for i := range media {
		if media[i].ID.IsZero() {
			media[i].ID = primitive.NewObjectID()
		}
		media[i].CapsuleID = capsule.ID
	}
	assignment := models.CapsuleTemplate{
		ID:         primitive.NewObjectID(),
		CapsuleID:  capsule.ID,
		TemplateID: templateID,
		CreatedAt:  capsule.CreatedAt,
	}

	err := r.withTransaction(ctx, func(sc mongo.SessionContext) error {
		if _, err := r.capsules.InsertOne(sc, capsule); err != nil {
			return fmt.Errorf("insert capsule: %w", err)
		}
		if len(media) > 0 {
			docs := make([]interface{}, len(media))
			for i := range media {
				docs[i] = media[i]
			}
			if _, err := r.media.InsertMany(sc, docs); err != nil {
				return fmt.Errorf("insert capsule media: %w", err)
			}
		}
		if templateID.IsZero() {
			return nil
		}
		if _, err := r.assignments.InsertOne(sc, assignment); err != nil {
			return fmt.Errorf("insert template assignment: %w", err)
		}
		return nil
	})
	if err != nil {
		logger.Log.WithError(err).WithField("capsuleID", capsule.ID.Hex()).Error("Capsule creation transaction failed")
		return err
	}

	logger.Log.WithFields(map[string]interface{}{
		"capsuleID": capsule.ID.Hex(),
		"media":     len(media),
	}).Info("Capsule created successfully")
	return nil
}

// GetCapsule fetches one capsule owned by userID together with media and template.
func (r *MongoCapsuleRepository) GetCapsule(ctx context.Context, userID, id primitive.ObjectID) (*models.CapsuleView, error) {
	views, err := r.aggregateViews(ctx, bson.M{"_id": id, "user_id": userID})
	if err != nil {
		return nil, err
	}
	if len(views) == 0 {
		return nil, ErrNotFound
	}
	return &views[0], nil
}

// ListCapsules returns the user's capsules newest first.
func (r *MongoCapsuleRepository) ListCapsules(ctx context.Context, userID primitive.ObjectID, status models.CapsuleStatus) ([]models.CapsuleView, error) {
	views, err := r.aggregateViews(ctx, capsuleStatusFilter(userID, status))
	if err != nil {
		return nil, err
	}

	logger.Log.WithFields(map[string]interface{}{
		"user_id": userID.Hex(),
		"status":  status,
		"count":   len(views),
	}).Debug("Capsules fetched")
	return views, nil
}

// UpdateLockedCapsule applies upd while is_unlocked is still false.
func (r *MongoCapsuleRepository) UpdateLockedCapsule(ctx context.Context, userID, id primitive.ObjectID, upd models.CapsuleUpdate, now time.Time) (*models.Capsule, error) {
	filter := bson.M{"_id": id, "user_id": userID, "is_unlocked": false}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var updated models.Capsule
	err := r.capsules.FindOneAndUpdate(ctx, filter, bson.M{"$set": capsuleUpdateSet(upd, now)}, opts).Decode(&updated)
	if err == nil {
		logger.Log.WithField("capsuleID", id.Hex()).Info("Capsule updated successfully")
		return &updated, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("failed to update capsule: %w", err)
	}

	// Nothing matched: tell a missing capsule apart from an unlocked one.
	var existing models.Capsule
	err = r.capsules.FindOne(ctx, bson.M{"_id": id, "user_id": userID}).Decode(&existing)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch capsule: %w", err)
	}
	return nil, ErrCapsuleUnlocked
}

// DeleteCapsule removes a capsule and cascades to media and template assignment.
func (r *MongoCapsuleRepository) DeleteCapsule(ctx context.Context, userID, id primitive.ObjectID) ([]models.Media, error) {
	var removed []models.Media

	err := r.withTransaction(ctx, func(sc mongo.SessionContext) error {
		removed = nil
		res, err := r.capsules.DeleteOne(sc, bson.M{"_id": id, "user_id": userID})
		if err != nil {
			return fmt.Errorf("delete capsule: %w", err)
		}
		if res.DeletedCount == 0 {
			return ErrNotFound
		}

		cursor, err := r.media.Find(sc, bson.M{"capsule_id": id})
		if err != nil {
			return fmt.Errorf("find capsule media: %w", err)
		}
		if err := cursor.All(sc, &removed); err != nil {
			return fmt.Errorf("decode capsule media: %w", err)
		}

		if _, err := r.media.DeleteMany(sc, bson.M{"capsule_id": id}); err != nil {
			return fmt.Errorf("delete capsule media: %w", err)
		}
		if _, err := r.assignments.DeleteMany(sc, bson.M{"capsule_id": id}); err != nil {
			return fmt.Errorf("delete template assignment: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Log.WithField("capsuleID", id.Hex()).Info("Capsule deleted successfully")
	return removed, nil
}

// FindDueForUnlock returns locked capsules whose unlock time has passed, oldest first.
func (r *MongoCapsuleRepository) FindDueForUnlock(ctx context.Context, now time.Time, limit int64) ([]models.Capsule, error) {
	filter := bson.M{
		"is_unlocked": false,
		"unlock_at":   bson.M{"$lte": now},
	}
	opts := options.Find().SetSort(bson.D{{Key: "unlock_at", Value: 1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}
	return r.findCapsules(ctx, filter, opts)
}

// MarkUnlocked is a compare-and-set on is_unlocked.
func (r *MongoCapsuleRepository) MarkUnlocked(ctx context.Context, id primitive.ObjectID, now time.Time) (bool, error) {
	res, err := r.capsules.UpdateOne(ctx,
		bson.M{"_id": id, "is_unlocked": false},
		bson.M{"$set": bson.M{"is_unlocked": true, "unlocked_at": now, "updated_at": now}},
	)
	if err != nil {
		return false, fmt.Errorf("failed to unlock capsule: %w", err)
	}
	return res.ModifiedCount == 1, nil
}

// FindLockedUnlockingBetween returns locked capsules with unlock_at in [from, to].
func (r *MongoCapsuleRepository) FindLockedUnlockingBetween(ctx context.Context, from, to time.Time) ([]models.Capsule, error) {
	filter := bson.M{
		"is_unlocked": false,
		"unlock_at":   bson.M{"$gte": from, "$lte": to},
	}
	return r.findCapsules(ctx, filter, options.Find().SetSort(bson.D{{Key: "unlock_at", Value: 1}}))
}

func (r *MongoCapsuleRepository) findCapsules(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.Capsule, error) {
	cursor, err := r.capsules.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch capsules: %w", err)
	}
	defer cursor.Close(ctx)

	var capsules []models.Capsule
	if err := cursor.All(ctx, &capsules); err != nil {
		return nil, fmt.Errorf("failed to decode capsules: %w", err)
	}
	return capsules, nil
}

func (r *MongoCapsuleRepository) aggregateViews(ctx context.Context, match bson.M) ([]models.CapsuleView, error) {
	cursor, err := r.capsules.Aggregate(ctx, capsuleViewPipeline(match))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch capsules: %w", err)
	}
	defer cursor.Close(ctx)

	views := []models.CapsuleView{}
	if err := cursor.All(ctx, &views); err != nil {
		return nil, fmt.Errorf("failed to decode capsules: %w", err)
	}
	return views, nil
}

func (r *MongoCapsuleRepository) withTransaction(ctx context.Context, fn func(sc mongo.SessionContext) error) error {
	session, err := r.client.StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}

// capsuleViewPipeline joins media and the assigned template onto matching capsules.
func capsuleViewPipeline(match bson.M) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$sort", Value: bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}}},
		{{Key: "$lookup", Value: bson.M{
			"from":         CapsuleMediaCollection,
			"localField":   "_id",
			"foreignField": "capsule_id",
			"as":           "media",
		}}},
		{{Key: "$lookup", Value: bson.M{
			"from":         CapsuleTemplatesCollection,
			"localField":   "_id",
			"foreignField": "capsule_id",
			"as":           "assignment",
		}}},
		{{Key: "$lookup", Value: bson.M{
			"from":         EmotionTemplatesCollection,
			"localField":   "assignment.template_id",
			"foreignField": "_id",
			"as":           "template",
		}}},
		{{Key: "$addFields", Value: bson.M{"template": bson.M{"$arrayElemAt": bson.A{"$template", 0}}}}},
		{{Key: "$project", Value: bson.M{"assignment": 0}}},
	}
}

func capsuleStatusFilter(userID primitive.ObjectID, status models.CapsuleStatus) bson.M {
	filter := bson.M{"user_id": userID}
	switch status {
	case models.CapsuleStatusLocked:
		filter["is_unlocked"] = false
	case models.CapsuleStatusUnlocked:
		filter["is_unlocked"] = true
	}
	return filter
}

func capsuleUpdateSet(upd models.CapsuleUpdate, now time.Time) bson.M {
	set := bson.M{"updated_at": now}
	if upd.Title != nil {
		set["title"] = *upd.Title
	}
	if upd.Message != nil {
		set["message"] = *upd.Message
	}
	if upd.PersonTag != nil {
		set["person_tag"] = *upd.PersonTag
	}
	if upd.UnlockAt != nil {
		set["unlock_at"] = *upd.UnlockAt
	}
	return set
}
