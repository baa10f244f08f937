package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"vocalsilence/internal/model"
)

// InteractionRepo is the append-only audit log of processed messages
type InteractionRepo interface {
	Append(ctx context.Context, entry *model.InteractionLog) error
	ListByParticipant(ctx context.Context, participantID string, limit int64) ([]*model.InteractionLog, error)
}

type interactionRepo struct {
	collection *mongo.Collection
}

func NewInteractionRepo(db *mongo.Database) InteractionRepo {
	return &interactionRepo{
		collection: db.Collection("interaction_logs"),
	}
}

func (r *interactionRepo) Append(ctx context.Context, entry *model.InteractionLog) error {
	if entry.ID == "" {
		entry.ID = primitive.NewObjectID().Hex()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := r.collection.InsertOne(ctx, entry)
	return err
}

// ListByParticipant returns the newest entries first.
func (r *interactionRepo) ListByParticipant(ctx context.Context, participantID string, limit int64) ([]*model.InteractionLog, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}
	cursor, err := r.collection.Find(ctx, bson.M{"participantId": participantID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var entries []*model.InteractionLog
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}
