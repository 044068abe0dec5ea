package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cardvault_server/models"
)

type testItem struct {
	PK         string `dynamodbav:"PK"`
	SK         string `dynamodbav:"SK"`
	EntityType string `dynamodbav:"EntityType"`
	GSI1SK     string `dynamodbav:"GSI1SK,omitempty"`
	Name       string `dynamodbav:"name"`
	Count      int    `dynamodbav:"count"`
	Flag       bool   `dynamodbav:"flag"`
	UpdatedAt  string `dynamodbav:"updatedAt,omitempty"`
}

func TestLocalStore_PutGetDelete(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	key := models.Key{PK: "P#1", SK: "S#1"}

	var missing testItem
	found, err := store.GetItem(ctx, key, &missing)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, store.PutItem(ctx, testItem{PK: key.PK, SK: key.SK, Name: "first", Count: 2}))
	require.NoError(t, store.PutItem(ctx, testItem{PK: key.PK, SK: key.SK, Name: "second", Count: 3}))

	var got testItem
	found, err = store.GetItem(ctx, key, &got)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "second", got.Name)
	assert.Equal(t, 3, got.Count)

	require.NoError(t, store.DeleteItem(ctx, key))
	require.NoError(t, store.DeleteItem(ctx, key), "deleting twice is not an error")
	found, err = store.GetItem(ctx, key, &got)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestLocalStore_PutItemRequiresKey(t *testing.T) {
	err := newTestStore(t).PutItem(context.Background(), testItem{Name: "no key"})
	assert.Error(t, err)
}

func TestLocalStore_QueryByPrefix(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	for _, sk := range []string{"POST#2024-01-02", "POST#2024-01-01", "POST#2024-01-03", "MEMBER#u1"} {
		require.NoError(t, store.PutItem(ctx, testItem{PK: "GUILD#g", SK: sk}))
	}
	// Same prefix in a different partition must not leak in.
	require.NoError(t, store.PutItem(ctx, testItem{PK: "GUILD#g#POST#p", SK: "POST#2024-01-04"}))

	t.Run("descending", func(t *testing.T) {
		var items []testItem
		require.NoError(t, store.QueryByPrefix(ctx, "GUILD#g", "POST#", QueryOptions{}, &items))
		require.Len(t, items, 3)
		assert.Equal(t, "POST#2024-01-03", items[0].SK)
		assert.Equal(t, "POST#2024-01-02", items[1].SK)
		assert.Equal(t, "POST#2024-01-01", items[2].SK)
	})

	t.Run("ascending with limit", func(t *testing.T) {
		var items []testItem
		require.NoError(t, store.QueryByPrefix(ctx, "GUILD#g", "POST#", QueryOptions{Limit: 2, Ascending: true}, &items))
		require.Len(t, items, 2)
		assert.Equal(t, "POST#2024-01-01", items[0].SK)
		assert.Equal(t, "POST#2024-01-02", items[1].SK)
	})

	t.Run("no matches", func(t *testing.T) {
		var items []testItem
		require.NoError(t, store.QueryByPrefix(ctx, "GUILD#g", "LIKE#", QueryOptions{}, &items))
		assert.Empty(t, items)
	})
}

func TestLocalStore_UpdateCounter(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	store.Now = stepClock()
	key := models.Key{PK: "P", SK: "S"}

	_, err := store.UpdateCounter(ctx, key, "count", 1)
	assert.ErrorIs(t, err, ErrNotFound, "counters never create items")

	require.NoError(t, store.PutItem(ctx, testItem{PK: "P", SK: "S", Count: 5}))
	value, err := store.UpdateCounter(ctx, key, "count", -2)
	require.NoError(t, err)
	assert.Equal(t, 3, value)

	var got testItem
	_, err = store.GetItem(ctx, key, &got)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Count)
	assert.NotEmpty(t, got.UpdatedAt)
}

func TestLocalStore_UpdateCounterConcurrent(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	key := models.Key{PK: "P", SK: "S"}
	require.NoError(t, store.PutItem(ctx, testItem{PK: "P", SK: "S"}))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.UpdateCounter(ctx, key, "count", 1)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	var got testItem
	_, err := store.GetItem(ctx, key, &got)
	require.NoError(t, err)
	assert.Equal(t, 20, got.Count)
}

func TestLocalStore_UpdateFields(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	key := models.Key{PK: "P", SK: "S"}

	err := store.UpdateFields(ctx, key, map[string]interface{}{"name": "x"}, nil)
	assert.ErrorIs(t, err, ErrConditionFailed)

	require.NoError(t, store.PutItem(ctx, testItem{PK: "P", SK: "S", Name: "old", Count: 7}))

	require.NoError(t, store.UpdateFields(ctx, key, map[string]interface{}{"flag": true}, map[string]interface{}{"flag": false}))
	err = store.UpdateFields(ctx, key, map[string]interface{}{"flag": true}, map[string]interface{}{"flag": false})
	assert.ErrorIs(t, err, ErrConditionFailed, "stale expectation is rejected")

	require.NoError(t, store.UpdateFields(ctx, key, map[string]interface{}{"name": "new"}, nil))

	var got testItem
	_, err = store.GetItem(ctx, key, &got)
	require.NoError(t, err)
	assert.Equal(t, "new", got.Name)
	assert.True(t, got.Flag)
	assert.Equal(t, 7, got.Count, "fields not named are untouched")
}

func TestLocalStore_DeleteItems(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	var keys []models.Key
	for i := 0; i < 60; i++ {
		key := models.Key{PK: "P", SK: models.LikeSK(string(rune('a'+i%26)) + string(rune('a'+i/26)))}
		keys = append(keys, key)
		require.NoError(t, store.PutItem(ctx, testItem{PK: key.PK, SK: key.SK}))
	}
	require.NoError(t, store.DeleteItems(ctx, keys))

	var items []testItem
	require.NoError(t, store.QueryByPrefix(ctx, "P", "", QueryOptions{}, &items))
	assert.Empty(t, items)
}

func TestLocalStore_ListByEntityType(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.PutItem(ctx, testItem{PK: "GUILD#a", SK: "METADATA", EntityType: "GUILD", GSI1SK: "2024-01-01"}))
	require.NoError(t, store.PutItem(ctx, testItem{PK: "GUILD#b", SK: "METADATA", EntityType: "GUILD", GSI1SK: "2024-01-03"}))
	require.NoError(t, store.PutItem(ctx, testItem{PK: "GUILD#c", SK: "METADATA", EntityType: "GUILD", GSI1SK: "2024-01-02"}))
	require.NoError(t, store.PutItem(ctx, testItem{PK: "GUILD#a", SK: "MEMBER#u", EntityType: "MEMBER"}))

	var guilds []testItem
	require.NoError(t, store.ListByEntityType(ctx, "GUILD", 0, &guilds))
	require.Len(t, guilds, 3)
	assert.Equal(t, []string{"GUILD#b", "GUILD#c", "GUILD#a"}, []string{guilds[0].PK, guilds[1].PK, guilds[2].PK})

	var limited []testItem
	require.NoError(t, store.ListByEntityType(ctx, "GUILD", 2, &limited))
	assert.Len(t, limited, 2)
}

func TestLocalStore_TransactWrite(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	counter := models.Key{PK: "P", SK: "COUNTER"}
	require.NoError(t, store.PutItem(ctx, testItem{PK: counter.PK, SK: counter.SK}))

	t.Run("applies every op", func(t *testing.T) {
		err := store.TransactWrite(ctx,
			AddOp(counter, "count", 1),
			PutOp(testItem{PK: "P", SK: "CHILD#1"}, CondNotExists),
		)
		require.NoError(t, err)

		var got testItem
		_, err = store.GetItem(ctx, counter, &got)
		require.NoError(t, err)
		assert.Equal(t, 1, got.Count)
	})

	t.Run("rolls back on a failed condition", func(t *testing.T) {
		err := store.TransactWrite(ctx,
			AddOp(counter, "count", 1),
			PutOp(testItem{PK: "P", SK: "CHILD#1"}, CondNotExists),
		)
		var condErr *ConditionFailedError
		require.True(t, errors.As(err, &condErr))
		assert.Equal(t, 1, condErr.Index)
		assert.ErrorIs(t, err, ErrConditionFailed)

		var got testItem
		_, err = store.GetItem(ctx, counter, &got)
		require.NoError(t, err)
		assert.Equal(t, 1, got.Count, "counter write was rolled back")
	})

	t.Run("add requires the item to exist", func(t *testing.T) {
		err := store.TransactWrite(ctx,
			AddOp(models.Key{PK: "P", SK: "MISSING"}, "count", 1),
			PutOp(testItem{PK: "P", SK: "CHILD#2"}, CondNone),
		)
		index, failed := failedOpIndex(err)
		require.True(t, failed)
		assert.Equal(t, 0, index)

		var child testItem
		found, err := store.GetItem(ctx, models.Key{PK: "P", SK: "CHILD#2"}, &child)
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("conditional delete and check", func(t *testing.T) {
		err := store.TransactWrite(ctx,
			CheckOp(counter, CondExists),
			DeleteOp(models.Key{PK: "P", SK: "CHILD#1"}, CondExists),
		)
		require.NoError(t, err)

		err = store.TransactWrite(ctx, DeleteOp(models.Key{PK: "P", SK: "CHILD#1"}, CondExists))
		index, failed := failedOpIndex(err)
		require.True(t, failed)
		assert.Equal(t, 0, index)
	})
}
