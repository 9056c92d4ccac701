package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/affiliatehq/reporting-service/internal/config"
)

func TestFileStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := NewFileStore(config.StorageConfig{Directory: t.TempDir()})
	assert.NoError(t, err)
	defer store.Close()

	_, found, err := store.Get(ctx, "team_config")
	assert.NoError(t, err)
	assert.False(t, found)

	assert.NoError(t, store.Put(ctx, "team_config", `{"default_team":"Unassigned"}`))

	value, found, err := store.Get(ctx, "team_config")
	assert.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, `{"default_team":"Unassigned"}`, value)

	assert.NoError(t, store.Put(ctx, "team_config", `{}`))
	value, _, _ = store.Get(ctx, "team_config")
	assert.Equal(t, `{}`, value)

	assert.NoError(t, store.Delete(ctx, "team_config"))
	_, found, err = store.Get(ctx, "team_config")
	assert.NoError(t, err)
	assert.False(t, found)

	// Deleting a missing key is not an error
	assert.NoError(t, store.Delete(ctx, "never_existed"))
}

func TestFileStore_KeysCannotEscapeDirectory(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, err := NewFileStore(config.StorageConfig{Directory: dir})
	assert.NoError(t, err)

	assert.NoError(t, store.Put(ctx, "../escape", "x"))

	value, found, err := store.Get(ctx, "../escape")
	assert.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "x", value)
}

func TestNewStore_UnsupportedType(t *testing.T) {
	_, err := NewStore(config.StorageConfig{Type: "carrier-pigeon"})
	assert.Error(t, err)
}
