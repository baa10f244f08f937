package repository

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// EnsureIndexes creates the secondary indexes used by the list queries.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	specs := map[string][]mongo.IndexModel{
		"sessions": {
			{Keys: bson.D{{Key: "state", Value: 1}, {Key: "updatedAt", Value: -1}}},
		},
		"crisis_history": {
			{Keys: bson.D{{Key: "participantId", Value: 1}, {Key: "openedAt", Value: -1}}},
		},
		"interaction_logs": {
			{Keys: bson.D{{Key: "participantId", Value: 1}, {Key: "createdAt", Value: -1}}},
		},
		"archives": {
			{Keys: bson.D{{Key: "participantId", Value: 1}, {Key: "phase", Value: 1}}},
		},
		"questionnaires": {
			{Keys: bson.D{{Key: "active", Value: 1}, {Key: "createdAt", Value: -1}}},
		},
	}
	for coll, models := range specs {
		if _, err := db.Collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("create indexes on %s: %w", coll, err)
		}
	}
	return nil
}
