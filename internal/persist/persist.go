// Package persist reads and writes the project snapshot and the activity log
// as two JSON records in key-value storage.
package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"launchboard/internal/domain"
	"launchboard/internal/events"
	"launchboard/internal/repo"
)

const (
	DefaultSnapshotKey = "sc-launch-control-data"
	DefaultLogKey      = "sc-launch-control-log"
)

type Adapter struct {
	KV          repo.KV
	SnapshotKey string
	LogKey      string
	Logger      *log.Logger
}

func (a Adapter) logger() *log.Logger {
	if a.Logger != nil {
		return a.Logger
	}
	return log.Default()
}

func (a Adapter) snapshotKey() string {
	if a.SnapshotKey == "" {
		return DefaultSnapshotKey
	}
	return a.SnapshotKey
}

func (a Adapter) logKey() string {
	if a.LogKey == "" {
		return DefaultLogKey
	}
	return a.LogKey
}

// LoadProject returns the stored snapshot. ok is false when nothing usable is
// stored; read and parse failures are reported as warnings, never returned.
func (a Adapter) LoadProject(ctx context.Context) (domain.Project, bool) {
	var p domain.Project
	if !a.load(ctx, a.snapshotKey(), &p) {
		return domain.Project{}, false
	}
	return p, true
}

// LoadLog returns the stored activity log, newest first.
func (a Adapter) LoadLog(ctx context.Context) ([]events.Entry, bool) {
	var entries []events.Entry
	if !a.load(ctx, a.logKey(), &entries) {
		return nil, false
	}
	return entries, true
}

func (a Adapter) load(ctx context.Context, key string, out any) bool {
	raw, err := a.KV.Get(ctx, key)
	if errors.Is(err, repo.ErrNotFound) {
		return false
	}
	if err != nil {
		a.logger().Printf("warning: read %s: %v; using defaults", key, err)
		return false
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		a.logger().Printf("warning: parse %s: %v; using defaults", key, err)
		return false
	}
	return true
}

func (a Adapter) SaveProject(ctx context.Context, p domain.Project) error {
	return a.save(ctx, a.snapshotKey(), p)
}

func (a Adapter) SaveLog(ctx context.Context, entries []events.Entry) error {
	if entries == nil {
		entries = []events.Entry{}
	}
	return a.save(ctx, a.logKey(), entries)
}

func (a Adapter) save(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	if err := a.KV.Set(ctx, key, string(data)); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

// Clear removes both records.
func (a Adapter) Clear(ctx context.Context) error {
	if err := a.KV.Delete(ctx, a.snapshotKey()); err != nil {
		return fmt.Errorf("delete %s: %w", a.snapshotKey(), err)
	}
	if err := a.KV.Delete(ctx, a.logKey()); err != nil {
		return fmt.Errorf("delete %s: %w", a.logKey(), err)
	}
	return nil
}
