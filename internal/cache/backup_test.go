package cache

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotCopiesCacheFile(t *testing.T) {
	dir := t.TempDir()
	cachePath := filepath.Join(dir, "cache.db")
	require.NoError(t, os.WriteFile(cachePath, []byte("pending records"), 0o644))

	logger := zerolog.New(io.Discard)
	storage := filepath.Join(dir, "backups")
	svc := NewBackupService(cachePath, BackupOptions{StoragePath: storage}, &logger)

	require.NoError(t, svc.Snapshot())

	files, err := os.ReadDir(storage)
	require.NoError(t, err)
	require.Len(t, files, 1)

	data, err := os.ReadFile(filepath.Join(storage, files[0].Name()))
	require.NoError(t, err)
	assert.Equal(t, "pending records", string(data))
}

func TestSnapshotFailsWithoutCacheFile(t *testing.T) {
	dir := t.TempDir()
	logger := zerolog.New(io.Discard)
	svc := NewBackupService(filepath.Join(dir, "missing.db"), BackupOptions{StoragePath: filepath.Join(dir, "backups")}, &logger)
	assert.Error(t, svc.Snapshot())
}

func TestPruneRemovesExpiredSnapshots(t *testing.T) {
	dir := t.TempDir()
	storage := filepath.Join(dir, "backups")
	require.NoError(t, os.MkdirAll(storage, 0o755))

	old := filepath.Join(storage, "cache_20200101_000000.db")
	require.NoError(t, os.WriteFile(old, []byte("old"), 0o644))
	stale := time.Now().AddDate(0, 0, -30)
	require.NoError(t, os.Chtimes(old, stale, stale))

	fresh := filepath.Join(storage, "cache_now.db")
	require.NoError(t, os.WriteFile(fresh, []byte("fresh"), 0o644))

	logger := zerolog.New(io.Discard)
	svc := NewBackupService(filepath.Join(dir, "cache.db"), BackupOptions{StoragePath: storage, RetentionDays: 14}, &logger)
	svc.prune()

	files, err := os.ReadDir(storage)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "cache_now.db", files[0].Name())
}
