package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"vocalsilence/internal/questionnaire"
)

// QuestionnaireRepo handles MongoDB operations for published catalogs
type QuestionnaireRepo interface {
	Publish(ctx context.Context, catalog *questionnaire.Catalog) (string, error)
	GetActive(ctx context.Context) (*questionnaire.Catalog, error)
}

type questionnaireDoc struct {
	ID        primitive.ObjectID    `bson:"_id,omitempty"`
	Catalog   questionnaire.Catalog `bson:",inline"`
	Active    bool                  `bson:"active"`
	CreatedAt time.Time             `bson:"createdAt"`
}

type questionnaireRepo struct {
	collection *mongo.Collection
}

// NewQuestionnaireRepo creates a new questionnaire repository
func NewQuestionnaireRepo(db *mongo.Database) QuestionnaireRepo {
	return &questionnaireRepo{
		collection: db.Collection("questionnaires"),
	}
}

// Publish stores a catalog and makes it the only active one.
func (r *questionnaireRepo) Publish(ctx context.Context, catalog *questionnaire.Catalog) (string, error) {
	doc := questionnaireDoc{
		ID:        primitive.NewObjectID(),
		Catalog:   *catalog,
		Active:    true,
		CreatedAt: time.Now().UTC(),
	}
	if _, err := r.collection.InsertOne(ctx, doc); err != nil {
		return "", err
	}

	_, err := r.collection.UpdateMany(ctx,
		bson.M{"_id": bson.M{"$ne": doc.ID}, "active": true},
		bson.M{"$set": bson.M{"active": false}},
	)
	if err != nil {
		return "", err
	}
	return doc.ID.Hex(), nil
}

// GetActive returns the newest active catalog, or nil, nil when none was published.
func (r *questionnaireRepo) GetActive(ctx context.Context) (*questionnaire.Catalog, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "createdAt", Value: -1}})

	var doc questionnaireDoc
	err := r.collection.FindOne(ctx, bson.M{"active": true}, opts).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &doc.Catalog, nil
}
