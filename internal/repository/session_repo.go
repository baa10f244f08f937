package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"vocalsilence/internal/model"
)

// SessionRepo stores the per-participant session aggregate.
// The active crisis episode is embedded, so one write commits both.
type SessionRepo interface {
	Get(ctx context.Context, participantID string) (*model.Session, error)
	Save(ctx context.Context, session *model.Session) error
	Delete(ctx context.Context, participantID string) error
	ListByState(ctx context.Context, state model.State, limit int64) ([]*model.Session, error)
}

type sessionRepo struct {
	collection *mongo.Collection
}

// NewSessionRepo creates a new session repository
func NewSessionRepo(db *mongo.Database) SessionRepo {
	return &sessionRepo{
		collection: db.Collection("sessions"),
	}
}

// Get returns nil, nil when the participant has no session (implicit WELCOME).
func (r *sessionRepo) Get(ctx context.Context, participantID string) (*model.Session, error) {
	var session model.Session
	err := r.collection.FindOne(ctx, bson.M{"_id": participantID}).Decode(&session)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *sessionRepo) Save(ctx context.Context, session *model.Session) error {
	session.UpdatedAt = time.Now().UTC()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = session.UpdatedAt
	}
	_, err := r.collection.ReplaceOne(ctx,
		bson.M{"_id": session.ParticipantID},
		session,
		options.Replace().SetUpsert(true),
	)
	return err
}

func (r *sessionRepo) Delete(ctx context.Context, participantID string) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"_id": participantID})
	return err
}

func (r *sessionRepo) ListByState(ctx context.Context, state model.State, limit int64) ([]*model.Session, error) {
	opts := options.Find().SetSort(bson.D{{Key: "updatedAt", Value: -1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}
	cursor, err := r.collection.Find(ctx, bson.M{"state": state}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var sessions []*model.Session
	if err := cursor.All(ctx, &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}
