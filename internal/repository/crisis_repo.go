package repository

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"vocalsilence/internal/model"
)

// CrisisHistoryRepo keeps closed crisis episodes, append-only
type CrisisHistoryRepo interface {
	Append(ctx context.Context, episode *model.CrisisEpisode) error
	ListByParticipant(ctx context.Context, participantID string) ([]*model.CrisisEpisode, error)
}

type crisisHistoryRepo struct {
	collection *mongo.Collection
}

func NewCrisisHistoryRepo(db *mongo.Database) CrisisHistoryRepo {
	return &crisisHistoryRepo{
		collection: db.Collection("crisis_history"),
	}
}

// Append stores a closed episode. Storing the same episode twice is a no-op.
func (r *crisisHistoryRepo) Append(ctx context.Context, episode *model.CrisisEpisode) error {
	_, err := r.collection.InsertOne(ctx, episode)
	if mongo.IsDuplicateKeyError(err) {
		return nil
	}
	return err
}

func (r *crisisHistoryRepo) ListByParticipant(ctx context.Context, participantID string) ([]*model.CrisisEpisode, error) {
	opts := options.Find().SetSort(bson.D{{Key: "openedAt", Value: -1}})
	cursor, err := r.collection.Find(ctx, bson.M{"participantId": participantID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var episodes []*model.CrisisEpisode
	if err := cursor.All(ctx, &episodes); err != nil {
		return nil, err
	}
	return episodes, nil
}
