package state

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/leapstack-labs/leapdict/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store := NewSQLiteStore(testutil.NewTestLogger(t))
	require.NoError(t, store.Open(context.Background(), ":memory:"))
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStore_OpenMigrates(t *testing.T) {
	store := setupTestStore(t)

	version, err := store.GetMigrationVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)

	rows, err := store.db.Query("SELECT 1 FROM loads LIMIT 1")
	require.NoError(t, err)
	_ = rows.Close()
}

func TestSQLiteStore_OpenFileCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.db")
	store := NewSQLiteStore(nil)
	require.NoError(t, store.Open(context.Background(), path))
	require.NoError(t, store.Close())

	// Reopening an existing database applies nothing.
	store = NewSQLiteStore(nil)
	require.NoError(t, store.Open(context.Background(), path))
	version, err := store.GetMigrationVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)
	require.NoError(t, store.Close())
}

func TestSQLiteStore_RecordAndList(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	records := []LoadRecord{
		{Dictionary: "events", Source: "node(203.0.113.5:9000, events)", Path: "remote", Rows: 10, StartedAt: base, Duration: 40 * time.Millisecond},
		{Dictionary: "users", Source: "node(127.0.0.1:9000, users)", Path: "local", Rows: 3, StartedAt: base.Add(time.Second), Duration: time.Millisecond},
		{Dictionary: "events", Source: "node(203.0.113.5:9000, events)", Path: "remote", StartedAt: base.Add(2 * time.Second), Duration: time.Second, Error: "connection refused"},
	}
	for _, rec := range records {
		require.NoError(t, store.RecordLoad(ctx, rec))
	}

	tests := []struct {
		name       string
		dictionary string
		limit      int
		wantRows   []int
		wantFailed []bool
	}{
		{name: "all", wantRows: []int{0, 3, 10}, wantFailed: []bool{true, false, false}},
		{name: "one dictionary", dictionary: "events", wantRows: []int{0, 10}, wantFailed: []bool{true, false}},
		{name: "limit", limit: 1, wantRows: []int{0}, wantFailed: []bool{true}},
		{name: "unknown dictionary", dictionary: "missing"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.ListLoads(ctx, tt.dictionary, tt.limit)
			require.NoError(t, err)
			require.Len(t, got, len(tt.wantRows))
			for i, rec := range got {
				assert.NotEmpty(t, rec.ID)
				assert.Equal(t, tt.wantRows[i], rec.Rows)
				assert.Equal(t, tt.wantFailed[i], rec.Failed())
			}
		})
	}

	latest, err := store.ListLoads(ctx, "events", 1)
	require.NoError(t, err)
	require.Len(t, latest, 1)
	assert.Equal(t, "connection refused", latest[0].Error)
	assert.Equal(t, time.Second, latest[0].Duration)
	assert.True(t, base.Add(2*time.Second).Equal(latest[0].StartedAt))
}

func TestSQLiteStore_NotOpened(t *testing.T) {
	store := NewSQLiteStore(nil)
	assert.Error(t, store.RecordLoad(context.Background(), LoadRecord{}))
	_, err := store.ListLoads(context.Background(), "", 0)
	assert.Error(t, err)
	assert.Error(t, store.Migrate(context.Background()))
	assert.NoError(t, store.Close())
}
