package filestore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/nursingcollective/cartengine/pkg/storage"
	"github.com/stretchr/testify/require"
)

func TestStorePersistsAcrossInstances(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "local.json")

	first, err := New(path)
	require.NoError(t, err)
	require.NoError(t, first.Set(ctx, "florencebot_guest_cart", []byte(`{"items":[]}`)))
	require.NoError(t, first.Set(ctx, "accessToken", []byte("tok")))

	second, err := New(path)
	require.NoError(t, err)
	got, err := second.Get(ctx, "florencebot_guest_cart")
	require.NoError(t, err)
	require.JSONEq(t, `{"items":[]}`, string(got))

	require.NoError(t, second.Delete(ctx, "accessToken"))
	_, err = first.Get(ctx, "accessToken")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestStoreMissingFileIsEmpty(t *testing.T) {
	store, err := New(filepath.Join(t.TempDir(), "local.json"))
	require.NoError(t, err)
	require.NoError(t, store.Ping(context.Background()))
	_, err = store.Get(context.Background(), "anything")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestStoreCorruptFileSurfacesError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "local.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	store, err := New(path)
	require.NoError(t, err)
	_, err = store.Get(context.Background(), "k")
	require.Error(t, err)
	require.NotErrorIs(t, err, storage.ErrNotFound)
	require.Error(t, store.Ping(context.Background()))
}

func TestNewRequiresPath(t *testing.T) {
	_, err := New("")
	require.Error(t, err)
}
