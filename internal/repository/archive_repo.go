package repository

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"vocalsilence/internal/model"
)

// ErrArchiveExists is returned when a key was already written.
var ErrArchiveExists = errors.New("archive record already exists")

// ArchiveRepo is a write-once store for completed phase snapshots
type ArchiveRepo interface {
	Put(ctx context.Context, record *model.ArchiveRecord) error
	Get(ctx context.Context, key string) (*model.ArchiveRecord, error)
}

type archiveRepo struct {
	collection *mongo.Collection
}

func NewArchiveRepo(db *mongo.Database) ArchiveRepo {
	return &archiveRepo{
		collection: db.Collection("archives"),
	}
}

// Put inserts a record under its key. The key is the document _id, so a
// second write for the same key fails with ErrArchiveExists.
func (r *archiveRepo) Put(ctx context.Context, record *model.ArchiveRecord) error {
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	_, err := r.collection.InsertOne(ctx, record)
	if mongo.IsDuplicateKeyError(err) {
		return ErrArchiveExists
	}
	return err
}

func (r *archiveRepo) Get(ctx context.Context, key string) (*model.ArchiveRecord, error) {
	var record model.ArchiveRecord
	err := r.collection.FindOne(ctx, bson.M{"_id": key}).Decode(&record)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}
