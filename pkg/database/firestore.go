package database

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/firestore/apiv1/firestorepb"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreStore implements Store on Cloud Firestore.
type FirestoreStore struct {
	client *firestore.Client
}

// NewFirestoreStore wraps an initialized Firestore client.
func NewFirestoreStore(client *firestore.Client) *FirestoreStore {
	return &FirestoreStore{client: client}
}

// Get retrieves a document by id into dst.
func (s *FirestoreStore) Get(ctx context.Context, collection, id string, dst interface{}) error {
	snap, err := s.client.Collection(collection).Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
		}
		return fmt.Errorf("failed to get %s/%s: %w", collection, id, err)
	}
	if err := snap.DataTo(dst); err != nil {
		return fmt.Errorf("failed to decode %s/%s: %w", collection, id, err)
	}
	return nil
}

// Create adds a document and fails if the id already exists.
func (s *FirestoreStore) Create(ctx context.Context, collection, id string, doc interface{}) error {
	_, err := s.client.Collection(collection).Doc(id).Create(ctx, doc)
	if err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return fmt.Errorf("%s/%s: %w", collection, id, ErrAlreadyExists)
		}
		return fmt.Errorf("failed to create %s/%s: %w", collection, id, err)
	}
	return nil
}

// Set overwrites the document with doc.
func (s *FirestoreStore) Set(ctx context.Context, collection, id string, doc interface{}) error {
	if _, err := s.client.Collection(collection).Doc(id).Set(ctx, doc); err != nil {
		return fmt.Errorf("failed to set %s/%s: %w", collection, id, err)
	}
	return nil
}

// Delete removes a document. Firestore deletes are idempotent, so existence is checked first.
func (s *FirestoreStore) Delete(ctx context.Context, collection, id string) error {
	ref := s.client.Collection(collection).Doc(id)
	if _, err := ref.Get(ctx); err != nil {
		if status.Code(err) == codes.NotFound {
			return fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
		}
		return fmt.Errorf("failed to get %s/%s: %w", collection, id, err)
	}
	if _, err := ref.Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *FirestoreStore) query(collection string, q Query) firestore.Query {
	query := s.client.Collection(collection).Query
	for _, f := range q.Filters {
		query = query.Where(f.Field, string(f.Op), f.Value)
	}
	if q.OrderBy != "" {
		dir := firestore.Asc
		if q.Descending {
			dir = firestore.Desc
		}
		query = query.OrderBy(q.OrderBy, dir)
	}
	if q.Offset > 0 {
		query = query.Offset(q.Offset)
	}
	if q.Limit > 0 {
		query = query.Limit(q.Limit)
	}
	return query
}

// Find runs q and appends every decoded document to the slice dst points to.
func (s *FirestoreStore) Find(ctx context.Context, collection string, q Query, dst interface{}) error {
	slice, elemType, err := sliceTarget(dst)
	if err != nil {
		return err
	}

	iter := s.query(collection, q).Documents(ctx)
	defer iter.Stop()

	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to iterate %s: %w", collection, err)
		}
		elem := reflect.New(elemType)
		if err := snap.DataTo(elem.Interface()); err != nil {
			return fmt.Errorf("failed to decode %s/%s: %w", collection, snap.Ref.ID, err)
		}
		slice.Set(reflect.Append(slice, elem.Elem()))
	}
	return nil
}

// Count uses a server-side count aggregation.
func (s *FirestoreStore) Count(ctx context.Context, collection string, q Query) (int64, error) {
	q.Offset, q.Limit, q.OrderBy = 0, 0, ""
	query := s.query(collection, q)
	results, err := query.NewAggregationQuery().WithCount("all").Get(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", collection, err)
	}
	count, ok := results["all"]
	if !ok {
		return 0, fmt.Errorf("count aggregation for %s returned no result", collection)
	}
	value, ok := count.(*firestorepb.Value)
	if !ok {
		return 0, fmt.Errorf("unexpected count aggregation type %T", count)
	}
	return value.GetIntegerValue(), nil
}

// Update runs mutate inside a Firestore transaction.
func (s *FirestoreStore) Update(ctx context.Context, collection, id string, dst interface{}, mutate func() error) error {
	ref := s.client.Collection(collection).Doc(id)
	return s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		// A retried transaction must not see fields left over from the failed attempt.
		if err := resetTarget(dst); err != nil {
			return err
		}
		snap, err := tx.Get(ref)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
			}
			return fmt.Errorf("failed to get %s/%s: %w", collection, id, err)
		}
		if err := snap.DataTo(dst); err != nil {
			return fmt.Errorf("failed to decode %s/%s: %w", collection, id, err)
		}
		if err := mutate(); err != nil {
			return err
		}
		return tx.Set(ref, dst)
	})
}

// Close closes the Firestore client.
func (s *FirestoreStore) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// resetTarget zeroes the struct dst points to.
func resetTarget(dst interface{}) error {
	rv := reflect.ValueOf(dst)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return fmt.Errorf("update destination must be a non-nil pointer, got %T", dst)
	}
	rv.Elem().Set(reflect.Zero(rv.Elem().Type()))
	return nil
}

func sliceTarget(dst interface{}) (reflect.Value, reflect.Type, error) {
	rv := reflect.ValueOf(dst)
	if rv.Kind() != reflect.Ptr || rv.Elem().Kind() != reflect.Slice {
		return reflect.Value{}, nil, fmt.Errorf("find destination must be a pointer to a slice, got %T", dst)
	}
	slice := rv.Elem()
	elemType := slice.Type().Elem()
	if elemType.Kind() != reflect.Struct {
		return reflect.Value{}, nil, fmt.Errorf("find destination elements must be structs, got %s", elemType)
	}
	slice.SetLen(0)
	return slice, elemType, nil
}
