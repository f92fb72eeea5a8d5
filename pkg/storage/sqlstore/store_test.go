package sqlstore

import (
	"context"
	"testing"
	"time"

	"github.com/nursingcollective/cartengine/pkg/config"
	"github.com/nursingcollective/cartengine/pkg/db"
	"github.com/nursingcollective/cartengine/pkg/logger"
	"github.com/nursingcollective/cartengine/pkg/migrate"
	"github.com/nursingcollective/cartengine/pkg/storage"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()
	client, err := db.New(ctx, config.StorageDriverSQLite, "file::memory:", config.DBConfig{}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, migrate.MaybeRun(ctx, config.DBConfig{AutoMigrate: true}, logger.Nop(), client))
	return New(client)
}

func TestStoreUpsertAndDelete(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	_, err := store.Get(ctx, "florencebot_guest_cart")
	require.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, store.Set(ctx, "florencebot_guest_cart", []byte(`{"items":[]}`)))
	store.now = func() time.Time { return time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC) }
	require.NoError(t, store.Set(ctx, "florencebot_guest_cart", []byte(`{"items":[{"product_id":"p1"}]}`)))

	got, err := store.Get(ctx, "florencebot_guest_cart")
	require.NoError(t, err)
	require.JSONEq(t, `{"items":[{"product_id":"p1"}]}`, string(got))

	var count int64
	require.NoError(t, store.client.DB().Model(&LocalEntry{}).Count(&count).Error)
	require.EqualValues(t, 1, count)

	require.NoError(t, store.Delete(ctx, "florencebot_guest_cart"))
	require.NoError(t, store.Delete(ctx, "florencebot_guest_cart"))
	_, err = store.Get(ctx, "florencebot_guest_cart")
	require.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, store.Ping(ctx))
}
