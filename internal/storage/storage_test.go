package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aatumaykin/berrus-helper/internal/config"
	"github.com/aatumaykin/berrus-helper/internal/game"
	"github.com/aatumaykin/berrus-helper/internal/logger"
)

func createTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New(logger.Config{Level: "error", Format: "text", Output: "stdout"})
	require.NoError(t, err)
	return log
}

// backends returns a fresh instance of every KV implementation.
func backends(t *testing.T) map[string]KV {
	t.Helper()
	dir := t.TempDir()

	db, err := OpenSQLite(filepath.Join(dir, "db", "berrus.db"))
	require.NoError(t, err)

	kvs := map[string]KV{
		"memory": NewMemory(),
		"sqlite": db,
		"file":   NewFile(filepath.Join(dir, "state"), createTestLogger(t)),
	}
	t.Cleanup(func() {
		for _, kv := range kvs {
			_ = kv.Close()
		}
	})
	return kvs
}

func TestKV_Contract(t *testing.T) {
	ctx := context.Background()

	for name, kv := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := kv.Get(ctx, KeySettings)
			assert.ErrorIs(t, err, ErrNotFound)

			keys, err := kv.Keys(ctx)
			require.NoError(t, err)
			assert.Empty(t, keys)

			require.NoError(t, kv.Set(ctx, KeySettings, []byte(`{"a":1}`)))
			require.NoError(t, kv.Set(ctx, KeyJobTimers, []byte(`{}`)))
			require.NoError(t, kv.Set(ctx, KeySettings, []byte(`{"a":2}`)))

			got, err := kv.Get(ctx, KeySettings)
			require.NoError(t, err)
			assert.JSONEq(t, `{"a":2}`, string(got))

			keys, err = kv.Keys(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{KeyJobTimers, KeySettings}, keys)

			require.NoError(t, kv.Delete(ctx, KeySettings))
			require.NoError(t, kv.Delete(ctx, KeySettings), "deleting an absent key is fine")
			_, err = kv.Get(ctx, KeySettings)
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestLoadSave(t *testing.T) {
	ctx := context.Background()

	for name, kv := range backends(t) {
		t.Run(name, func(t *testing.T) {
			state := game.NewJobTimerState()
			found, err := Load(ctx, kv, KeyJobTimers, &state)
			require.NoError(t, err)
			assert.False(t, found)
			assert.NotNil(t, state.ActiveJobs, "defaults are kept when absent")

			in := game.NewJobTimerState()
			in.Add(game.NewTimedJob("job-1", game.Pesca, "Trucha", 1000, 30_000))
			require.NoError(t, Save(ctx, kv, KeyJobTimers, in))

			var out game.JobTimerState
			found, err = Load(ctx, kv, KeyJobTimers, &out)
			require.NoError(t, err)
			assert.True(t, found)
			assert.Equal(t, in, out)
		})
	}
}

func TestLoad_CorruptDocument(t *testing.T) {
	ctx := context.Background()
	kv := NewMemory()
	require.NoError(t, kv.Set(ctx, KeySettings, []byte("{not json")))

	var s game.Settings
	_, err := Load(ctx, kv, KeySettings, &s)
	assert.Error(t, err)
}

func TestMemory_CopiesValues(t *testing.T) {
	ctx := context.Background()
	kv := NewMemory()

	value := []byte("abc")
	require.NoError(t, kv.Set(ctx, "k", value))
	value[0] = 'x'

	got, err := kv.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))
}

func TestFile_AtomicWriteLeavesNoTemp(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	kv := NewFile(dir, createTestLogger(t))

	require.NoError(t, kv.Set(ctx, KeyCurrentSession, []byte(`{"startedAt":1}`)))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "currentSession.json", entries[0].Name())
}

func TestFile_RejectsPathKeys(t *testing.T) {
	ctx := context.Background()
	kv := NewFile(t.TempDir(), createTestLogger(t))

	for _, key := range []string{"", "../escape", "a/b", ".hidden"} {
		assert.Error(t, kv.Set(ctx, key, []byte("{}")), key)
	}
}

func TestSQLite_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "berrus.db")

	db, err := OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, db.Set(ctx, KeyPriceHistories, []byte(`{}`)))
	require.NoError(t, db.Close())

	db, err = OpenSQLite(path)
	require.NoError(t, err)
	defer db.Close()

	got, err := db.Get(ctx, KeyPriceHistories)
	require.NoError(t, err)
	assert.Equal(t, "{}", string(got))
}

func TestOpen(t *testing.T) {
	log := createTestLogger(t)
	dir := t.TempDir()

	kv, err := Open(config.StorageConfig{Driver: "memory"}, log)
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, kv)

	kv, err = Open(config.StorageConfig{Driver: "file", Path: dir}, log)
	require.NoError(t, err)
	assert.IsType(t, &File{}, kv)

	kv, err = Open(config.StorageConfig{Driver: "sqlite", Path: filepath.Join(dir, "x.db")}, log)
	require.NoError(t, err)
	assert.IsType(t, &SQLite{}, kv)
	require.NoError(t, kv.Close())

	_, err = Open(config.StorageConfig{Driver: "redis"}, log)
	assert.Error(t, err)
}
