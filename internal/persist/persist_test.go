package persist_test

import (
	"bytes"
	"context"
	"errors"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"launchboard/internal/events"
	"launchboard/internal/persist"
	"launchboard/internal/repo"
	"launchboard/internal/seed"
)

type brokenKV struct{ repo.KV }

func (brokenKV) Get(context.Context, string) (string, error) { return "", errors.New("disk on fire") }

func newAdapter(kv repo.KV) (persist.Adapter, *bytes.Buffer) {
	var buf bytes.Buffer
	return persist.Adapter{KV: kv, Logger: log.New(&buf, "", 0)}, &buf
}

func TestRoundTrip(t *testing.T) {
	ctx := context.Background()
	a, logs := newAdapter(repo.NewMemory())
	p := seed.Default()
	entries := []events.Entry{
		{ID: "log-2", Timestamp: "2026-03-02T10:00:00Z", Action: events.TaskUpdated, TaskID: "1.2", TaskTitle: "Define pricing tiers", Workstream: "Product", Changes: []string{"progress: 60% → 80%"}},
		{ID: "log-1", Timestamp: "2026-03-01T10:00:00Z", Action: events.MilestoneUpdated, MilestoneID: "ms-beta", MilestoneTitle: "Public beta", Changes: []string{"status: completed"}},
	}

	require.NoError(t, a.SaveProject(ctx, p))
	require.NoError(t, a.SaveLog(ctx, entries))

	gotProject, ok := a.LoadProject(ctx)
	require.True(t, ok)
	assert.Equal(t, p, gotProject)
	gotLog, ok := a.LoadLog(ctx)
	require.True(t, ok)
	assert.Equal(t, entries, gotLog)
	assert.Empty(t, logs.String())
}

func TestMissingRecordsAreSilent(t *testing.T) {
	a, logs := newAdapter(repo.NewMemory())
	_, ok := a.LoadProject(context.Background())
	assert.False(t, ok)
	_, ok = a.LoadLog(context.Background())
	assert.False(t, ok)
	assert.Empty(t, logs.String())
}

func TestParseFailureWarnsAndFallsBack(t *testing.T) {
	ctx := context.Background()
	kv := repo.NewMemory()
	require.NoError(t, kv.Set(ctx, persist.DefaultSnapshotKey, "{not json"))
	require.NoError(t, kv.Set(ctx, persist.DefaultLogKey, `{"not":"a list"}`))
	a, logs := newAdapter(kv)

	_, ok := a.LoadProject(ctx)
	assert.False(t, ok)
	_, ok = a.LoadLog(ctx)
	assert.False(t, ok)
	assert.Contains(t, logs.String(), "warning: parse sc-launch-control-data")
	assert.Contains(t, logs.String(), "warning: parse sc-launch-control-log")
}

func TestReadFailureWarns(t *testing.T) {
	a, logs := newAdapter(brokenKV{repo.NewMemory()})
	_, ok := a.LoadProject(context.Background())
	assert.False(t, ok)
	assert.Contains(t, logs.String(), "disk on fire")
}

func TestCustomKeysAndClear(t *testing.T) {
	ctx := context.Background()
	kv := repo.NewMemory()
	a, _ := newAdapter(kv)
	a.SnapshotKey = "snap"
	a.LogKey = "log"
	require.NoError(t, a.SaveProject(ctx, seed.Default()))
	require.NoError(t, a.SaveLog(ctx, nil))

	raw, err := kv.Get(ctx, "log")
	require.NoError(t, err)
	assert.Equal(t, "[]", raw)

	require.NoError(t, a.Clear(ctx))
	_, err = kv.Get(ctx, "snap")
	assert.ErrorIs(t, err, repo.ErrNotFound)
	_, err = kv.Get(ctx, "log")
	assert.ErrorIs(t, err, repo.ErrNotFound)
}
