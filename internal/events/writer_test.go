package events

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedLog(max int) *Log {
	n := 0
	l := NewLog(max, nil)
	l.Now = func() time.Time { return time.Date(2026, 3, 2, 10, 30, 0, 0, time.FixedZone("BRT", -3*3600)) }
	l.NewID = func() string {
		n++
		return fmt.Sprintf("log-%d", n)
	}
	return l
}

func TestAppendIsNewestFirst(t *testing.T) {
	l := fixedLog(0)
	first := l.Append(Entry{Action: TaskCreated, TaskID: "1", TaskTitle: "one", Workstream: "Product"})
	l.Append(Entry{Action: TaskDeleted, TaskID: "2", TaskTitle: "two", Workstream: "Engineering"})

	entries := l.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "log-2", entries[0].ID)
	assert.Equal(t, "log-1", entries[1].ID)
	assert.Equal(t, "2026-03-02T13:30:00Z", first.Timestamp)
}

func TestAppendCopiesChanges(t *testing.T) {
	l := fixedLog(0)
	changes := []string{"status: a → b"}
	l.Append(Entry{Action: TaskUpdated, Changes: changes})
	changes[0] = "mutated"
	got := l.Entries()
	assert.Equal(t, "status: a → b", got[0].Changes[0])
	got[0].Changes[0] = "mutated again"
	assert.Equal(t, "status: a → b", l.Entries()[0].Changes[0])
}

func TestMaxDropsOldest(t *testing.T) {
	l := fixedLog(2)
	for i := 0; i < 3; i++ {
		l.Append(Entry{Action: TaskUpdated})
	}
	entries := l.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "log-3", entries[0].ID)
	assert.Equal(t, "log-2", entries[1].ID)
}

func TestFilter(t *testing.T) {
	l := fixedLog(0)
	l.Append(Entry{Action: TaskCreated, Workstream: "Product"})
	l.Append(Entry{Action: TaskUpdated, Workstream: "Engineering"})
	l.Append(Entry{Action: TaskUpdated, Workstream: "Product"})

	assert.Len(t, l.Filter(Filter{Workstream: "Product"}), 2)
	assert.Len(t, l.Filter(Filter{Action: TaskUpdated}), 2)
	assert.Len(t, l.Filter(Filter{Workstream: "Product", Action: TaskUpdated}), 1)
	limited := l.Filter(Filter{Limit: 1})
	require.Len(t, limited, 1)
	assert.Equal(t, "log-3", limited[0].ID)
	assert.NotNil(t, l.Filter(Filter{Workstream: "Nobody"}))
}

func TestDefaultIDs(t *testing.T) {
	l := NewLog(0, nil)
	e := l.Append(Entry{Action: MilestoneUpdated, MilestoneTitle: "Beta"})
	assert.True(t, strings.HasPrefix(e.ID, "log-"))
	assert.Equal(t, "Beta", e.Subject())
}
