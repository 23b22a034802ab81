package database

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when a document does not exist.
	ErrNotFound = errors.New("document not found")
	// ErrAlreadyExists is returned by Create when the document id is taken.
	ErrAlreadyExists = errors.New("document already exists")
	// ErrConflict is returned when an atomic update could not be applied
	// after repeated concurrent modifications.
	ErrConflict = errors.New("document modified concurrently")
)

// Operator is a comparison applied by a query filter.
type Operator string

const (
	OpEqual          Operator = "=="
	OpIn             Operator = "in"
	OpGreaterThan    Operator = ">"
	OpGreaterOrEqual Operator = ">="
	OpLessThan       Operator = "<"
	OpLessOrEqual    Operator = "<="
)

// Filter restricts a query to documents whose Field compares to Value.
// Field is the stored field name (the firestore/bson tag name).
type Filter struct {
	Field string
	Op    Operator
	Value interface{}
}

// Where builds a Filter.
func Where(field string, op Operator, value interface{}) Filter {
	return Filter{Field: field, Op: op, Value: value}
}

// Query describes a collection scan. A zero Limit means no limit.
type Query struct {
	Filters    []Filter
	OrderBy    string
	Descending bool
	Offset     int
	Limit      int
}

// Store is a document database holding named collections of documents
// keyed by string ids. Documents are tagged structs; dst arguments are
// pointers to a struct (Get, Update) or to a slice of structs (Find).
type Store interface {
	Get(ctx context.Context, collection, id string, dst interface{}) error
	// Create inserts doc under id and fails with ErrAlreadyExists if the id is taken.
	Create(ctx context.Context, collection, id string, doc interface{}) error
	// Set writes doc under id, replacing any existing document.
	Set(ctx context.Context, collection, id string, doc interface{}) error
	Delete(ctx context.Context, collection, id string) error
	Find(ctx context.Context, collection string, q Query, dst interface{}) error
	Count(ctx context.Context, collection string, q Query) (int64, error)
	// Update atomically loads the document into dst, runs mutate and writes dst back.
	// When mutate returns an error nothing is written and that error is returned as is.
	Update(ctx context.Context, collection, id string, dst interface{}, mutate func() error) error
	Close() error
}
