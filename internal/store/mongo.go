package store

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/arjun/expense-tracker/backend/internal/expense"
	"github.com/arjun/expense-tracker/backend/internal/models"
)

// MongoStore handles expense item persistence in MongoDB.
type MongoStore struct {
	col *mongo.Collection
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{col: db.Collection("items")}
}

// filter compiles an ItemQuery to a bson document. The search string is
// meta-quoted so it always means a literal substring, never a pattern.
func filter(q expense.ItemQuery) bson.M {
	f := bson.M{"user_id": q.UserID}

	created := bson.M{}
	if q.Window.HasStart {
		created["$gte"] = q.Window.Start
	}
	if q.Window.HasEnd {
		created["$lte"] = q.Window.End
	}
	if len(created) > 0 {
		f["created_at"] = created
	}

	if q.Search != "" {
		f["name"] = primitive.Regex{Pattern: regexp.QuoteMeta(q.Search), Options: "i"}
	}
	return f
}

// InsertMany bulk-inserts a batch, stamping each record's creation time,
// and returns the stored records with their assigned IDs.
func (s *MongoStore) InsertMany(ctx context.Context, items []models.Item) ([]models.Item, error) {
	now := time.Now().UTC()
	docs := make([]interface{}, len(items))
	for i := range items {
		items[i].CreatedAt = now
		docs[i] = items[i]
	}

	res, err := s.col.InsertMany(ctx, docs)
	if err != nil {
		return nil, fmt.Errorf("mongo insert many: %w", err)
	}
	for i, id := range res.InsertedIDs {
		items[i].ID = id.(primitive.ObjectID)
	}
	return items, nil
}

// Find returns the matching page of items, newest first.
func (s *MongoStore) Find(ctx context.Context, q expense.ItemQuery) ([]models.Item, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if q.Skip > 0 {
		opts.SetSkip(q.Skip)
	}
	if q.Limit > 0 {
		opts.SetLimit(q.Limit)
	}

	cur, err := s.col.Find(ctx, filter(q), opts)
	if err != nil {
		return nil, fmt.Errorf("mongo find: %w", err)
	}
	defer cur.Close(ctx)

	var items []models.Item
	if err := cur.All(ctx, &items); err != nil {
		return nil, fmt.Errorf("mongo decode: %w", err)
	}
	return items, nil
}

// Count returns the number of matching items, ignoring Skip/Limit.
func (s *MongoStore) Count(ctx context.Context, q expense.ItemQuery) (int64, error) {
	n, err := s.col.CountDocuments(ctx, filter(q))
	if err != nil {
		return 0, fmt.Errorf("mongo count: %w", err)
	}
	return n, nil
}

// SumTotal aggregates totalprice over every matching item, ignoring
// Skip/Limit.
func (s *MongoStore) SumTotal(ctx context.Context, q expense.ItemQuery) (float64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: filter(q)}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: nil},
			{Key: "total", Value: bson.D{{Key: "$sum", Value: "$totalprice"}}},
		}}},
	}

	cur, err := s.col.Aggregate(ctx, pipeline)
	if err != nil {
		return 0, fmt.Errorf("mongo aggregate: %w", err)
	}
	defer cur.Close(ctx)

	var out []struct {
		Total float64 `bson:"total"`
	}
	if err := cur.All(ctx, &out); err != nil {
		return 0, fmt.Errorf("mongo decode: %w", err)
	}
	if len(out) == 0 {
		return 0, nil
	}
	return out[0].Total, nil
}
