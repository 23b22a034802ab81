package database

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	// revisionField holds the compare-and-swap counter used by Update.
	revisionField     = "_rev"
	maxUpdateAttempts = 5
)

// MongoStore implements Store on MongoDB. Documents are keyed by _id.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
}

// NewMongoStore connects to uri and verifies the connection with a ping.
func NewMongoStore(ctx context.Context, uri, database string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo.Connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	return &MongoStore{client: client, db: client.Database(database)}, nil
}

// EnsureIndex creates an index over fields if it does not exist yet.
func (s *MongoStore) EnsureIndex(ctx context.Context, collection string, fields []string, unique, sparse bool) error {
	keys := bson.D{}
	for _, f := range fields {
		keys = append(keys, bson.E{Key: mongoField(f), Value: 1})
	}
	opts := options.Index().SetUnique(unique)
	if sparse {
		opts = opts.SetSparse(true)
	}
	if _, err := s.db.Collection(collection).Indexes().CreateOne(ctx, mongo.IndexModel{Keys: keys, Options: opts}); err != nil {
		return fmt.Errorf("failed to create index on %s %v: %w", collection, fields, err)
	}
	return nil
}

// Get retrieves a document by id into dst.
func (s *MongoStore) Get(ctx context.Context, collection, id string, dst interface{}) error {
	err := s.db.Collection(collection).FindOne(ctx, bson.M{"_id": id}).Decode(dst)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
		}
		return fmt.Errorf("failed to get %s/%s: %w", collection, id, err)
	}
	return nil
}

// Create inserts doc under id. Duplicate keys, including unique secondary
// indexes, are reported as ErrAlreadyExists.
func (s *MongoStore) Create(ctx context.Context, collection, id string, doc interface{}) error {
	m, err := toMongoDocument(id, doc)
	if err != nil {
		return err
	}
	if _, err := s.db.Collection(collection).InsertOne(ctx, m); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%s/%s: %w", collection, id, ErrAlreadyExists)
		}
		return fmt.Errorf("failed to create %s/%s: %w", collection, id, err)
	}
	return nil
}

// Set replaces the document, inserting it when absent.
func (s *MongoStore) Set(ctx context.Context, collection, id string, doc interface{}) error {
	m, err := toMongoDocument(id, doc)
	if err != nil {
		return err
	}
	_, err = s.db.Collection(collection).ReplaceOne(ctx, bson.M{"_id": id}, m, options.Replace().SetUpsert(true))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%s/%s: %w", collection, id, ErrAlreadyExists)
		}
		return fmt.Errorf("failed to set %s/%s: %w", collection, id, err)
	}
	return nil
}

// Delete removes a document by id.
func (s *MongoStore) Delete(ctx context.Context, collection, id string) error {
	res, err := s.db.Collection(collection).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete %s/%s: %w", collection, id, err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
	}
	return nil
}

// Find decodes every matching document into the slice dst points to.
func (s *MongoStore) Find(ctx context.Context, collection string, q Query, dst interface{}) error {
	if _, _, err := sliceTarget(dst); err != nil {
		return err
	}

	opts := options.Find()
	if q.OrderBy != "" {
		dir := 1
		if q.Descending {
			dir = -1
		}
		opts.SetSort(bson.D{{Key: mongoField(q.OrderBy), Value: dir}})
	}
	if q.Offset > 0 {
		opts.SetSkip(int64(q.Offset))
	}
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}

	cursor, err := s.db.Collection(collection).Find(ctx, mongoFilter(q.Filters), opts)
	if err != nil {
		return fmt.Errorf("failed to query %s: %w", collection, err)
	}
	if err := cursor.All(ctx, dst); err != nil {
		return fmt.Errorf("failed to decode %s: %w", collection, err)
	}
	return nil
}

// Count returns the number of documents matching the query filters.
func (s *MongoStore) Count(ctx context.Context, collection string, q Query) (int64, error) {
	n, err := s.db.Collection(collection).CountDocuments(ctx, mongoFilter(q.Filters))
	if err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", collection, err)
	}
	return n, nil
}

// Update applies mutate with optimistic concurrency on the _rev counter.
func (s *MongoStore) Update(ctx context.Context, collection, id string, dst interface{}, mutate func() error) error {
	coll := s.db.Collection(collection)
	target := reflect.ValueOf(dst)
	if target.Kind() != reflect.Ptr || target.IsNil() {
		return fmt.Errorf("update destination must be a non-nil pointer, got %T", dst)
	}

	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		var current bson.M
		if err := coll.FindOne(ctx, bson.M{"_id": id}).Decode(&current); err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				return fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
			}
			return fmt.Errorf("failed to get %s/%s: %w", collection, id, err)
		}
		rev, _ := current[revisionField].(int64)

		raw, err := bson.Marshal(current)
		if err != nil {
			return fmt.Errorf("failed to re-encode %s/%s: %w", collection, id, err)
		}
		target.Elem().Set(reflect.Zero(target.Elem().Type()))
		if err := bson.Unmarshal(raw, dst); err != nil {
			return fmt.Errorf("failed to decode %s/%s: %w", collection, id, err)
		}

		if err := mutate(); err != nil {
			return err
		}

		next, err := toMongoDocument(id, dst)
		if err != nil {
			return err
		}
		next[revisionField] = rev + 1

		filter := bson.M{"_id": id, revisionField: rev}
		if rev == 0 {
			filter[revisionField] = bson.M{"$exists": false}
		}
		res, err := coll.ReplaceOne(ctx, filter, next)
		if err != nil {
			return fmt.Errorf("failed to update %s/%s: %w", collection, id, err)
		}
		if res.MatchedCount == 1 {
			return nil
		}
	}
	return fmt.Errorf("%s/%s: %w", collection, id, ErrConflict)
}

// Close disconnects the client.
func (s *MongoStore) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Disconnect(context.Background())
}

func toMongoDocument(id string, doc interface{}) (bson.M, error) {
	raw, err := bson.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode document %s: %w", id, err)
	}
	var m bson.M
	if err := bson.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("failed to encode document %s: %w", id, err)
	}
	m["_id"] = id
	return m, nil
}

var mongoOperators = map[Operator]string{
	OpEqual:          "$eq",
	OpIn:             "$in",
	OpGreaterThan:    "$gt",
	OpGreaterOrEqual: "$gte",
	OpLessThan:       "$lt",
	OpLessOrEqual:    "$lte",
}

func mongoFilter(filters []Filter) bson.M {
	out := bson.M{}
	for _, f := range filters {
		field := mongoField(f.Field)
		cond, ok := out[field].(bson.M)
		if !ok {
			cond = bson.M{}
			out[field] = cond
		}
		cond[mongoOperators[f.Op]] = f.Value
	}
	return out
}

func mongoField(field string) string {
	if field == "id" {
		return "_id"
	}
	return field
}
