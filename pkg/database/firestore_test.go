package database

import (
	"context"
	"os"
	"testing"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResetTargetClearsStaleFields(t *testing.T) {
	expires := time.Now()
	doc := testDoc{ID: "a", Owner: "u1", ExpiresAt: &expires, Tags: []string{"x"}}

	require.NoError(t, resetTarget(&doc))
	assert.Equal(t, testDoc{}, doc)

	assert.Error(t, resetTarget(doc))
	var nilDoc *testDoc
	assert.Error(t, resetTarget(nilDoc))
}

// newEmulatorStore connects to the Firestore emulator, or skips the test when
// FIRESTORE_EMULATOR_HOST is unset.
func newEmulatorStore(t *testing.T) *FirestoreStore {
	t.Helper()
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}
	client, err := firestore.NewClient(context.Background(), "ttgifts-test")
	require.NoError(t, err)
	s := NewFirestoreStore(client)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestFirestoreStoreCount(t *testing.T) {
	s := newEmulatorStore(t)
	ctx := context.Background()
	collection := "count_" + time.Now().Format("150405.000000")

	for _, d := range []testDoc{{ID: "a", Owner: "u1"}, {ID: "b", Owner: "u1"}, {ID: "c", Owner: "u2"}} {
		d := d
		require.NoError(t, s.Create(ctx, collection, d.ID, &d))
	}

	n, err := s.Count(ctx, collection, Query{Filters: []Filter{Where("owner", OpEqual, "u1")}, Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestFirestoreStoreUpdateStartsFromStoredDocument(t *testing.T) {
	s := newEmulatorStore(t)
	ctx := context.Background()
	collection := "update_" + time.Now().Format("150405.000000")

	require.NoError(t, s.Create(ctx, collection, "a", &testDoc{ID: "a", Owner: "u1", Score: 1}))

	// dst carries a field the stored document does not have.
	expires := time.Now()
	dst := testDoc{ExpiresAt: &expires, Owner: "stale"}
	require.NoError(t, s.Update(ctx, collection, "a", &dst, func() error {
		dst.Score++
		return nil
	}))

	var got testDoc
	require.NoError(t, s.Get(ctx, collection, "a", &got))
	assert.Equal(t, 2, got.Score)
	assert.Equal(t, "u1", got.Owner)
	assert.Nil(t, got.ExpiresAt)
}
