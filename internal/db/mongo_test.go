package db

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/ukydev/fleetmasterpro/internal/models"
)

func TestConnectMongo_BadURI(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	client, err := ConnectMongo(ctx, "mongodb://bad:uri")
	if err == nil {
		t.Error("expected error for bad URI, got nil")
	}
	if client != nil {
		t.Error("expected nil client on error")
	}
}

func TestWrapMongoErr(t *testing.T) {
	assert.NoError(t, wrapMongoErr("op", nil))
	assert.ErrorIs(t, wrapMongoErr("op", mongo.ErrNoDocuments), ErrNotFound)

	plain := errors.New("bad filter")
	err := wrapMongoErr("find cars", plain)
	assert.ErrorIs(t, err, plain)
	assert.NotErrorIs(t, err, ErrRemote)
	assert.Contains(t, err.Error(), "find cars")

	dup := mongo.WriteException{WriteErrors: []mongo.WriteError{{Code: 11000, Message: "duplicate key"}}}
	assert.ErrorIs(t, wrapMongoErr("insert", dup), ErrConflict)
}

// newIntegrationStore connects to MONGO_URI or skips the test.
func newIntegrationStore(t *testing.T) *MongoStore {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	uri := os.Getenv("MONGO_URI")
	if uri == "" || uri == "uri" {
		t.Skip("MONGO_URI not set or invalid, skipping integration test")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client, err := ConnectMongo(ctx, uri)
	if err != nil {
		t.Skipf("failed to connect: %v, skipping integration test", err)
	}

	store := NewMongoStore(client, "fleet_test_"+uuid.NewString()[:8], false)
	require.NoError(t, store.EnsureIndexes(ctx))
	t.Cleanup(func() {
		_ = store.database.Drop(context.Background())
		_ = store.Close(context.Background())
	})
	return store
}

func TestMongoStore_Integration(t *testing.T) {
	store := newIntegrationStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveCar(ctx, models.Car{ID: "car-1", Brand: "Toyota", Model: "Camry"}))
	car, err := store.GetCar(ctx, "car-1")
	require.NoError(t, err)
	assert.Equal(t, "Toyota", car.Brand)

	_, err = store.GetCar(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	entry := models.MaintenanceEntry{ID: "e1", CarID: "car-1", StartDate: time.Now()}
	require.NoError(t, store.InsertEntry(ctx, entry))
	entry.ID = "e2"
	assert.ErrorIs(t, store.InsertEntry(ctx, entry), ErrConflict)
	require.NoError(t, store.DeleteEntry(ctx, "car-1"))
	assert.ErrorIs(t, store.DeleteEntry(ctx, "car-1"), ErrNotFound)

	require.NoError(t, store.SetDraftID(ctx, "car-1", "p1"))
	id, err := store.GetDraftID(ctx, "car-1")
	require.NoError(t, err)
	assert.Equal(t, "p1", id)
	require.NoError(t, store.ClearDraftID(ctx, "car-1"))
	_, err = store.GetDraftID(ctx, "car-1")
	assert.ErrorIs(t, err, ErrNotFound)

	user := models.User{ID: "u1", Username: "alice", PasswordHash: "hash"}
	require.NoError(t, store.InsertUser(ctx, user))
	got, err := store.FindUserByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "hash", got.PasswordHash)
	require.NoError(t, store.UpdateLastLogin(ctx, "u1"))
}
