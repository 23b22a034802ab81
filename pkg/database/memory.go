package database

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"
	"reflect"
	"sort"
	"sync"
)

// MemoryStore is a process-local Store used for tests and local development.
// Documents are kept gob-encoded so callers never share memory with the store.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]map[string][]byte
	// types records the document type last written to each collection; Count
	// needs it to decode documents for filtering.
	types map[string]reflect.Type
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string]map[string][]byte),
		types:       make(map[string]reflect.Type),
	}
}

func (s *MemoryStore) collection(name string) map[string][]byte {
	c, ok := s.collections[name]
	if !ok {
		c = make(map[string][]byte)
		s.collections[name] = c
	}
	return c
}

func (s *MemoryStore) rememberType(collection string, doc interface{}) {
	t := reflect.TypeOf(doc)
	for t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t != nil && t.Kind() == reflect.Struct {
		s.types[collection] = t
	}
}

// Get decodes the stored document into dst.
func (s *MemoryStore) Get(_ context.Context, collection, id string, dst interface{}) error {
	s.mu.RLock()
	data, ok := s.collections[collection][id]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
	}
	return decodeInto(data, dst)
}

// Create stores doc under id unless the id is taken.
func (s *MemoryStore) Create(_ context.Context, collection, id string, doc interface{}) error {
	data, err := encode(doc)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.collection(collection)
	if _, exists := c[id]; exists {
		return fmt.Errorf("%s/%s: %w", collection, id, ErrAlreadyExists)
	}
	c[id] = data
	s.rememberType(collection, doc)
	return nil
}

// Set stores doc under id, replacing any previous document.
func (s *MemoryStore) Set(_ context.Context, collection, id string, doc interface{}) error {
	data, err := encode(doc)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.collection(collection)[id] = data
	s.rememberType(collection, doc)
	s.mu.Unlock()
	return nil
}

// Delete removes a document.
func (s *MemoryStore) Delete(_ context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.collection(collection)
	if _, ok := c[id]; !ok {
		return fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
	}
	delete(c, id)
	return nil
}

// Find evaluates the query against every document in the collection.
func (s *MemoryStore) Find(_ context.Context, collection string, q Query, dst interface{}) error {
	slice, elemType, err := sliceTarget(dst)
	if err != nil {
		return err
	}
	matches, err := s.scan(collection, q.Filters, elemType)
	if err != nil {
		return err
	}

	if q.OrderBy != "" {
		sort.SliceStable(matches, func(i, j int) bool {
			a, _ := fieldByName(matches[i], q.OrderBy)
			b, _ := fieldByName(matches[j], q.OrderBy)
			c := compareValues(normalize(a), normalize(b))
			if q.Descending {
				return c > 0
			}
			return c < 0
		})
	}

	if q.Offset > 0 {
		if q.Offset >= len(matches) {
			matches = nil
		} else {
			matches = matches[q.Offset:]
		}
	}
	if q.Limit > 0 && len(matches) > q.Limit {
		matches = matches[:q.Limit]
	}

	for _, m := range matches {
		slice.Set(reflect.Append(slice, m))
	}
	return nil
}

// Count returns the number of documents matching the filters.
func (s *MemoryStore) Count(_ context.Context, collection string, q Query) (int64, error) {
	s.mu.RLock()
	elemType, ok := s.types[collection]
	s.mu.RUnlock()
	if !ok {
		return 0, nil
	}
	matches, err := s.scan(collection, q.Filters, elemType)
	if err != nil {
		return 0, err
	}
	return int64(len(matches)), nil
}

// Update holds the store lock across the read-modify-write.
func (s *MemoryStore) Update(_ context.Context, collection, id string, dst interface{}, mutate func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.collection(collection)
	data, ok := c[id]
	if !ok {
		return fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
	}
	if err := decodeInto(data, dst); err != nil {
		return err
	}
	if err := mutate(); err != nil {
		return err
	}
	next, err := encode(dst)
	if err != nil {
		return err
	}
	c[id] = next
	return nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) scan(collection string, filters []Filter, elemType reflect.Type) ([]reflect.Value, error) {
	s.mu.RLock()
	docs := s.collections[collection]
	ids := make([]string, 0, len(docs))
	for id := range docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	payloads := make([][]byte, 0, len(ids))
	for _, id := range ids {
		payloads = append(payloads, docs[id])
	}
	s.mu.RUnlock()

	var out []reflect.Value
	for _, data := range payloads {
		elem := reflect.New(elemType)
		if err := decodeInto(data, elem.Interface()); err != nil {
			return nil, err
		}
		ok, err := matchesAll(elem.Elem(), filters)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, elem.Elem())
		}
	}
	return out, nil
}

func encode(doc interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(doc); err != nil {
		return nil, fmt.Errorf("memory store: encode %T: %w", doc, err)
	}
	return buf.Bytes(), nil
}

func decodeInto(data []byte, dst interface{}) error {
	rv := reflect.ValueOf(dst)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return fmt.Errorf("memory store: destination must be a non-nil pointer, got %T", dst)
	}
	rv.Elem().Set(reflect.Zero(rv.Elem().Type()))
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(dst); err != nil {
		return fmt.Errorf("memory store: decode %T: %w", dst, err)
	}
	return nil
}
