package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
)

func setupMongo(t *testing.T) *MongoRepository {
	if testing.Short() {
		t.Skip("skipping MongoDB container test in short mode")
	}
	ctx := context.Background()

	mongoContainer, err := mongodb.Run(ctx, "mongo:7")
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := mongoContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})

	uri, err := mongoContainer.ConnectionString(ctx)
	require.NoError(t, err)

	db, disconnect, err := ConnectMongoDB(ctx, uri, "testdb")
	require.NoError(t, err)
	t.Cleanup(func() { _ = disconnect(ctx) })

	repo := NewMongoRepository(db)
	require.NoError(t, repo.CreateIndexes(ctx))
	return repo
}

func TestMongoRepository_SaveAndLoad(t *testing.T) {
	repo := setupMongo(t)
	ctx := context.Background()

	_, err := repo.Load(ctx, "alice")
	require.ErrorIs(t, err, ErrCartNotFound)

	cart := newTestCart("alice")
	require.NoError(t, repo.Save(ctx, cart))

	loaded, err := repo.Load(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, loaded.Items, 1)
	assert.Equal(t, "1", loaded.Items[0].ProductID)
	assert.Equal(t, "89.99", loaded.Items[0].Product.Price.StringFixed(2))
	assert.Equal(t, 2, loaded.Items[0].Quantity)

	// second save keeps created_at and replaces items
	created := loaded.CreatedAt
	loaded.Items[0].Quantity = 5
	require.NoError(t, repo.Save(ctx, loaded))

	again, err := repo.Load(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 5, again.Items[0].Quantity)
	assert.True(t, created.Equal(again.CreatedAt))
}

func TestMongoRepository_Clear(t *testing.T) {
	repo := setupMongo(t)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, newTestCart("bob")))
	require.NoError(t, repo.Clear(ctx, "bob"))
	require.NoError(t, repo.Clear(ctx, "bob"))

	_, err := repo.Load(ctx, "bob")
	assert.ErrorIs(t, err, ErrCartNotFound)
}

func TestMongoRepository_ClearIfUnmodifiedSince(t *testing.T) {
	repo := setupMongo(t)
	ctx := context.Background()
	saved := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return saved }

	require.NoError(t, repo.Save(ctx, newTestCart("carol")))

	cleared, err := repo.ClearIfUnmodifiedSince(ctx, "carol", saved.Add(-time.Minute))
	require.NoError(t, err)
	assert.False(t, cleared)

	cleared, err = repo.ClearIfUnmodifiedSince(ctx, "carol", saved.Add(time.Minute))
	require.NoError(t, err)
	assert.True(t, cleared)
}
