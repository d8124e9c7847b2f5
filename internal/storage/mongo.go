package storage

import (
	"context"
	"errors"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Mongo struct {
	client *mongo.Client
	col    *mongo.Collection
	now    func() time.Time
}

type cacheDoc struct {
	Key       string     `bson:"key"`
	Value     []byte     `bson:"value"`
	ExpiresAt *time.Time `bson:"expires_at,omitempty"`
	CreatedAt time.Time  `bson:"created_at"`
}

func NewMongo(ctx context.Context, uri string, database string) (*Mongo, error) {
	if uri == "" {
		return nil, errors.New("MONGO_URL is empty")
	}
	if database == "" {
		database = "tmdbbot"
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	col := client.Database(database).Collection("cache")
	_, _ = col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{bson.E{Key: "key", Value: 1}}, Options: options.Index().SetUnique(true)},
		// Server-side sweep; entries without expires_at are never touched.
		{Keys: bson.D{bson.E{Key: "expires_at", Value: 1}}, Options: options.Index().SetExpireAfterSeconds(0)},
	})
	return &Mongo{client: client, col: col, now: time.Now}, nil
}

func (m *Mongo) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if m == nil {
		return errors.New("mongo not configured")
	}
	now := m.now()
	set := bson.M{
		"key":        key,
		"value":      value,
		"created_at": now,
	}
	update := bson.M{"$set": set}
	if exp := expiry(now, ttl); !exp.IsZero() {
		set["expires_at"] = exp
	} else {
		update["$unset"] = bson.M{"expires_at": ""}
	}
	_, err := m.col.UpdateOne(ctx, bson.M{"key": key}, update, options.Update().SetUpsert(true))
	return err
}

func (m *Mongo) Get(ctx context.Context, key string) ([]byte, error) {
	if m == nil {
		return nil, errors.New("mongo not configured")
	}
	var doc cacheDoc
	err := m.col.FindOne(ctx, bson.M{"key": key}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, err
	}
	if doc.ExpiresAt != nil && expired(*doc.ExpiresAt, m.now()) {
		// The TTL monitor runs about once a minute; evict now so stale
		// entries never surface in between.
		_, _ = m.col.DeleteOne(ctx, bson.M{"key": key, "expires_at": doc.ExpiresAt})
		return nil, ErrMiss
	}
	return doc.Value, nil
}

func (m *Mongo) Delete(ctx context.Context, key string) error {
	if m == nil {
		return nil
	}
	_, err := m.col.DeleteOne(ctx, bson.M{"key": key})
	return err
}

func (m *Mongo) Count(ctx context.Context, prefix string) (int, error) {
	if m == nil {
		return 0, errors.New("mongo not configured")
	}
	filter := bson.M{
		"key": bson.M{"$regex": "^" + regexp.QuoteMeta(prefix)},
		"$or": bson.A{
			bson.M{"expires_at": bson.M{"$exists": false}},
			bson.M{"expires_at": bson.M{"$gt": m.now()}},
		},
	}
	n, err := m.col.CountDocuments(ctx, filter)
	return int(n), err
}

func (m *Mongo) Sweep(ctx context.Context) (int, error) {
	if m == nil {
		return 0, nil
	}
	res, err := m.col.DeleteMany(ctx, bson.M{"expires_at": bson.M{"$lte": m.now()}})
	if err != nil {
		return 0, err
	}
	return int(res.DeletedCount), nil
}

func (m *Mongo) Close(ctx context.Context) error {
	if m == nil {
		return nil
	}
	return m.client.Disconnect(ctx)
}
