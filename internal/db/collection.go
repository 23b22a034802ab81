package db

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"o3-ttgifts-backend/pkg/database"
)

// Re-exported storage errors so callers only need this package.
var (
	ErrNotFound      = database.ErrNotFound
	ErrAlreadyExists = database.ErrAlreadyExists
)

// IsNotFound reports whether err means the document does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, database.ErrNotFound)
}

// newID returns a fresh document ID.
func newID() string {
	return uuid.NewString()
}

// collection is a typed view over one store collection.
type collection[T any] struct {
	store database.Store
	name  string
}

func (c collection[T]) get(ctx context.Context, id string) (*T, error) {
	var doc T
	if err := c.store.Get(ctx, c.name, id, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

func (c collection[T]) create(ctx context.Context, id string, doc *T) error {
	return c.store.Create(ctx, c.name, id, doc)
}

func (c collection[T]) set(ctx context.Context, id string, doc *T) error {
	return c.store.Set(ctx, c.name, id, doc)
}

func (c collection[T]) delete(ctx context.Context, id string) error {
	return c.store.Delete(ctx, c.name, id)
}

func (c collection[T]) find(ctx context.Context, q database.Query) ([]*T, error) {
	var docs []T
	if err := c.store.Find(ctx, c.name, q, &docs); err != nil {
		return nil, err
	}
	out := make([]*T, len(docs))
	for i := range docs {
		out[i] = &docs[i]
	}
	return out, nil
}

func (c collection[T]) first(ctx context.Context, q database.Query) (*T, error) {
	q.Limit = 1
	docs, err := c.find(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, database.ErrNotFound
	}
	return docs[0], nil
}

func (c collection[T]) count(ctx context.Context, filters ...database.Filter) (int64, error) {
	return c.store.Count(ctx, c.name, database.Query{Filters: filters})
}

// update runs mutate atomically against the stored document and returns the result.
func (c collection[T]) update(ctx context.Context, id string, mutate func(*T) error) (*T, error) {
	var doc T
	err := c.store.Update(ctx, c.name, id, &doc, func() error {
		return mutate(&doc)
	})
	if err != nil {
		return nil, err
	}
	return &doc, nil
}
