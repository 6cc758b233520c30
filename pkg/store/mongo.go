package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/dotsetgreg/factkeeper/pkg/facts"
)

const factsCollection = "facts"

// MongoBackend keeps one document per fact, keyed by fact id.
type MongoBackend struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// NewMongoBackend connects, pings and ensures the series index.
func NewMongoBackend(ctx context.Context, uri, database string) (*MongoBackend, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	b := &MongoBackend{
		client:     client,
		collection: client.Database(database).Collection(factsCollection),
	}
	_, err = b.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "subject_key", Value: 1}, {Key: "data_type", Value: 1}, {Key: "created_at", Value: -1}},
		Options: options.Index().SetName("facts_series_idx"),
	})
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("create mongo index: %w", err)
	}
	return b, nil
}

func (b *MongoBackend) Name() string { return "mongo" }

func (b *MongoBackend) Save(ctx context.Context, f facts.Fact) error {
	_, err := b.collection.ReplaceOne(ctx, bson.M{"_id": f.ID}, f, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("save fact: %w", err)
	}
	return nil
}

func (b *MongoBackend) Get(ctx context.Context, id string) (facts.Fact, error) {
	var f facts.Fact
	err := b.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&f)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return facts.Fact{}, ErrNotFound
	}
	if err != nil {
		return facts.Fact{}, fmt.Errorf("get fact: %w", err)
	}
	return f, nil
}

func (b *MongoBackend) List(ctx context.Context, subjectKey string) ([]facts.Fact, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: 1}})
	return b.find(ctx, bson.M{"subject_key": subjectKey}, opts)
}

func (b *MongoBackend) DeleteAll(ctx context.Context, subjectKey string) error {
	if _, err := b.collection.DeleteMany(ctx, bson.M{"subject_key": subjectKey}); err != nil {
		return fmt.Errorf("delete facts: %w", err)
	}
	return nil
}

func (b *MongoBackend) Search(ctx context.Context, query string, limit int) ([]facts.Fact, error) {
	tokens := tokenize(query)
	if len(tokens) == 0 {
		return nil, nil
	}

	or := bson.A{}
	for _, tok := range tokens {
		or = append(or,
			bson.M{"content": bson.M{"$regex": regexp.QuoteMeta(tok), "$options": "i"}},
			bson.M{"keywords": tok},
			bson.M{"data_type": tok},
		)
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(searchCandidateLimit)

	candidates, err := b.find(ctx, bson.M{"$or": or}, opts)
	if err != nil {
		return nil, err
	}
	return rank(candidates, query, limit), nil
}

func (b *MongoBackend) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]facts.Fact, error) {
	cursor, err := b.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find facts: %w", err)
	}
	defer cursor.Close(ctx)

	out := []facts.Fact{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode facts: %w", err)
	}
	return out, nil
}

func (b *MongoBackend) Close() error {
	if b == nil || b.client == nil {
		return nil
	}
	return b.client.Disconnect(context.Background())
}
