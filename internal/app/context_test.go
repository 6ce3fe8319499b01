package app_test

import (
	"bytes"
	"context"
	"log"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"launchboard/internal/app"
	"launchboard/internal/config"
	"launchboard/internal/db"
	"launchboard/internal/domain"
	"launchboard/internal/repo"
)

func progress(v int) *int { return &v }

func TestOpenSQLitePersistsAcrossOpens(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	a, err := app.Open(ctx, dir, nil, nil)
	require.NoError(t, err)
	_, err = a.Engine.UpdateTask(ctx, "2.2", domain.TaskPatch{Progress: progress(85)})
	require.NoError(t, err)
	require.NoError(t, a.Close(ctx))
	assert.FileExists(t, db.Path(dir))

	b, err := app.Open(ctx, dir, nil, nil)
	require.NoError(t, err)
	defer b.Close(ctx)
	ref, ok := b.Engine.TaskByID("2.2")
	require.True(t, ok)
	assert.Equal(t, 85, ref.Progress)
	assert.Len(t, b.Engine.ActivityLog(), 1)
}

func TestOpenReadsWorkspaceConfig(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	doc := "storage:\n  driver: memory\nactivity:\n  max_entries: 1\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "launchboard.yml"), []byte(doc), 0o644))

	a, err := app.Open(ctx, dir, nil, nil)
	require.NoError(t, err)
	defer a.Close(ctx)
	assert.Equal(t, config.DriverMemory, a.Config.Storage.Driver)
	for i := 0; i < 3; i++ {
		_, err := a.Engine.UpdateTask(ctx, "1.2", domain.TaskPatch{Progress: progress(i)})
		require.NoError(t, err)
	}
	assert.Len(t, a.Engine.ActivityLog(), 1)
	assert.NoFileExists(t, db.Path(dir))
}

func TestOpenRedis(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	ctx := context.Background()
	cfg := config.Default()
	cfg.Storage.Driver = config.DriverRedis
	cfg.Storage.RedisAddr = mr.Addr()
	cfg.Storage.RedisPrefix = "lb:"

	var buf bytes.Buffer
	a, err := app.Open(ctx, t.TempDir(), cfg, log.New(&buf, "", 0))
	require.NoError(t, err)
	require.NoError(t, a.Engine.DeleteTask(ctx, "3.3"))
	require.NoError(t, a.Close(ctx))

	assert.True(t, mr.Exists("lb:sc-launch-control-data"))
	assert.True(t, mr.Exists("lb:sc-launch-control-log"))
	assert.Empty(t, buf.String())
}

func TestOpenRedisUnreachable(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	addr := mr.Addr()
	mr.Close()

	cfg := config.Default()
	cfg.Storage.Driver = config.DriverRedis
	cfg.Storage.RedisAddr = addr
	_, err = app.Open(context.Background(), t.TempDir(), cfg, nil)
	assert.Error(t, err)
}

func TestOpenAppliesConfiguredProject(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default()
	cfg.Storage.Driver = config.DriverMemory
	cfg.Project.Name = "Apollo"
	cfg.Project.LaunchDate = "2030-01-01"

	a, err := app.Open(ctx, t.TempDir(), cfg, nil)
	require.NoError(t, err)
	defer a.Close(ctx)
	snap := a.Engine.Snapshot()
	assert.Equal(t, "Apollo", snap.Name)
	assert.Equal(t, "2030-01-01", snap.LaunchDate)

	require.NoError(t, a.Engine.ResetToDefault(ctx))
	assert.Equal(t, "Apollo", a.Engine.Snapshot().Name)
}

func TestResetStaysClearedAfterClose(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	a, err := app.Open(ctx, dir, nil, nil)
	require.NoError(t, err)
	require.NoError(t, a.Engine.DeleteTask(ctx, "1.1"))
	require.NoError(t, a.Engine.ResetToDefault(ctx))
	require.NoError(t, a.Close(ctx))

	b, err := app.Open(ctx, dir, nil, nil)
	require.NoError(t, err)
	defer b.Close(ctx)
	for _, key := range []string{b.Config.Storage.SnapshotKey, b.Config.Storage.LogKey} {
		_, err := b.KV.Get(ctx, key)
		assert.ErrorIs(t, err, repo.ErrNotFound, key)
	}
}
