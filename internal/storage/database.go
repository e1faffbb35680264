package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/IshaanNene/Holocron/internal/types"
)

// MongoStore keeps each collection as a MongoDB collection keyed by slug.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
	logger *slog.Logger
}

// NewMongoStore connects to MongoDB and pings the server.
func NewMongoStore(uri, database string, logger *slog.Logger) (*MongoStore, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongodb connect: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongodb ping: %w", err)
	}

	return &MongoStore{
		client: client,
		db:     client.Database(database),
		logger: logger.With("component", "mongo_storage"),
	}, nil
}

func (s *MongoStore) Name() string { return "mongodb" }

func (s *MongoStore) wrap(op string, err error) error {
	return &types.StorageError{Backend: "mongodb", Op: op, Err: err}
}

func (s *MongoStore) Exists(ctx context.Context, coll types.Collection, slug string) (bool, error) {
	if err := checkCollection(s.Name(), coll); err != nil {
		return false, err
	}
	n, err := s.db.Collection(string(coll)).CountDocuments(ctx, bson.M{"_id": slug}, options.Count().SetLimit(1))
	if err != nil {
		return false, s.wrap("exists", err)
	}
	return n > 0, nil
}

func (s *MongoStore) Get(ctx context.Context, coll types.Collection, slug string, out any) error {
	if err := checkCollection(s.Name(), coll); err != nil {
		return err
	}
	raw, err := s.db.Collection(string(coll)).FindOne(ctx, bson.M{"_id": slug}).Raw()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return types.ErrNotFound
	}
	if err != nil {
		return s.wrap("get", err)
	}
	return s.decode(raw, out)
}

// Upsert replaces the document with _id slug. The record is converted
// through relaxed extended JSON so integers stay integers.
func (s *MongoStore) Upsert(ctx context.Context, coll types.Collection, slug string, record any) error {
	if err := checkCollection(s.Name(), coll); err != nil {
		return err
	}
	data, err := json.Marshal(record)
	if err != nil {
		return s.wrap("upsert", err)
	}
	var doc bson.D
	if err := bson.UnmarshalExtJSON(data, false, &doc); err != nil {
		return s.wrap("upsert", err)
	}
	doc = append(bson.D{{Key: "_id", Value: slug}}, doc...)

	_, err = s.db.Collection(string(coll)).ReplaceOne(ctx, bson.M{"_id": slug}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return s.wrap("upsert", err)
	}
	s.logger.Debug("record stored in mongodb", "collection", coll, "slug", slug)
	return nil
}

func (s *MongoStore) Slugs(ctx context.Context, coll types.Collection) ([]string, error) {
	var slugs []string
	err := s.each(ctx, coll, options.Find().SetProjection(bson.M{"_id": 1}), func(slug string, _ bson.Raw) error {
		slugs = append(slugs, slug)
		return nil
	})
	return slugs, err
}

func (s *MongoStore) Each(ctx context.Context, coll types.Collection, fn func(slug string, doc []byte) error) error {
	return s.each(ctx, coll, options.Find(), func(slug string, raw bson.Raw) error {
		doc, err := bson.MarshalExtJSON(raw, false, false)
		if err != nil {
			return s.wrap("each", err)
		}
		return fn(slug, doc)
	})
}

func (s *MongoStore) each(ctx context.Context, coll types.Collection, opts *options.FindOptions, fn func(slug string, raw bson.Raw) error) error {
	if err := checkCollection(s.Name(), coll); err != nil {
		return err
	}
	cur, err := s.db.Collection(string(coll)).Find(ctx, bson.M{}, opts.SetSort(bson.M{"_id": 1}))
	if err != nil {
		return s.wrap("find", err)
	}
	defer cur.Close(ctx)

	for cur.Next(ctx) {
		slug, ok := cur.Current.Lookup("_id").StringValueOK()
		if !ok {
			continue
		}
		if err := fn(slug, cur.Current); err != nil {
			return err
		}
	}
	if err := cur.Err(); err != nil {
		return s.wrap("find", err)
	}
	return nil
}

func (s *MongoStore) decode(raw bson.Raw, out any) error {
	data, err := bson.MarshalExtJSON(raw, false, false)
	if err != nil {
		return s.wrap("get", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return s.wrap("get", err)
	}
	return nil
}

func (s *MongoStore) Close() error {
	s.logger.Info("mongodb storage closing")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// --- Multi-Store Fan-Out ---

// MultiStore writes records to several backends. Reads are served by the
// first backend.
type MultiStore struct {
	backends []Store
	logger   *slog.Logger
}

// NewMultiStore creates a store that fans out to multiple backends.
func NewMultiStore(backends []Store, logger *slog.Logger) *MultiStore {
	return &MultiStore{
		backends: backends,
		logger:   logger.With("component", "multi_storage"),
	}
}

func (s *MultiStore) Name() string { return "multi" }

func (s *MultiStore) primary() (Store, error) {
	if len(s.backends) == 0 {
		return nil, &types.StorageError{Backend: "multi", Err: errors.New("no backends configured")}
	}
	return s.backends[0], nil
}

func (s *MultiStore) Exists(ctx context.Context, coll types.Collection, slug string) (bool, error) {
	p, err := s.primary()
	if err != nil {
		return false, err
	}
	return p.Exists(ctx, coll, slug)
}

func (s *MultiStore) Get(ctx context.Context, coll types.Collection, slug string, out any) error {
	p, err := s.primary()
	if err != nil {
		return err
	}
	return p.Get(ctx, coll, slug, out)
}

func (s *MultiStore) Slugs(ctx context.Context, coll types.Collection) ([]string, error) {
	p, err := s.primary()
	if err != nil {
		return nil, err
	}
	return p.Slugs(ctx, coll)
}

func (s *MultiStore) Each(ctx context.Context, coll types.Collection, fn func(slug string, doc []byte) error) error {
	p, err := s.primary()
	if err != nil {
		return err
	}
	return p.Each(ctx, coll, fn)
}

func (s *MultiStore) Upsert(ctx context.Context, coll types.Collection, slug string, record any) error {
	var firstErr error
	for _, backend := range s.backends {
		if err := backend.Upsert(ctx, coll, slug, record); err != nil {
			s.logger.Error("backend upsert failed", "backend", backend.Name(), "slug", slug, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// Backends returns the wrapped stores in fan-out order.
func (s *MultiStore) Backends() []Store {
	return s.backends
}

func (s *MultiStore) Close() error {
	var firstErr error
	for _, backend := range s.backends {
		if err := backend.Close(); err != nil {
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
