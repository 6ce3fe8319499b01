package events

import (
	"time"

	"github.com/google/uuid"
)

type Action string

const (
	TaskCreated      Action = "task_created"
	TaskUpdated      Action = "task_updated"
	TaskDeleted      Action = "task_deleted"
	MilestoneUpdated Action = "milestone_updated"
)

func (a Action) Valid() bool {
	switch a {
	case TaskCreated, TaskUpdated, TaskDeleted, MilestoneUpdated:
		return true
	}
	return false
}

// Entry is one immutable activity-log record.
type Entry struct {
	ID             string   `json:"id"`
	Timestamp      string   `json:"timestamp" format:"date-time"`
	Action         Action   `json:"action" enum:"task_created,task_updated,task_deleted,milestone_updated"`
	TaskID         string   `json:"taskId,omitempty"`
	TaskTitle      string   `json:"taskTitle,omitempty"`
	MilestoneID    string   `json:"milestoneId,omitempty"`
	MilestoneTitle string   `json:"milestoneTitle,omitempty"`
	Workstream     string   `json:"workstream"`
	Changes        []string `json:"changes,omitempty"`
}

// Subject returns the task or milestone title the entry is about.
func (e Entry) Subject() string {
	if e.TaskTitle != "" {
		return e.TaskTitle
	}
	return e.MilestoneTitle
}

// Log is the newest-first activity log. Max > 0 caps its length; the oldest
// entries are dropped first.
type Log struct {
	Max   int
	Now   func() time.Time
	NewID func() string

	entries []Entry
}

func NewLog(max int, entries []Entry) *Log {
	l := &Log{Max: max}
	l.Reset(entries)
	return l
}

func (l *Log) now() time.Time {
	if l.Now != nil {
		return l.Now()
	}
	return time.Now()
}

func (l *Log) newID() string {
	if l.NewID != nil {
		return l.NewID()
	}
	return "log-" + uuid.NewString()
}

// Append stamps e with an id and timestamp and puts it at the head of the log.
func (l *Log) Append(e Entry) Entry {
	e.ID = l.newID()
	e.Timestamp = l.now().UTC().Format(time.RFC3339)
	if e.Changes != nil {
		e.Changes = append([]string{}, e.Changes...)
	}
	l.entries = append([]Entry{e}, l.entries...)
	l.trim()
	return e
}

func (l *Log) trim() {
	if l.Max > 0 && len(l.entries) > l.Max {
		l.entries = l.entries[:l.Max]
	}
}

// Reset replaces the log contents; entries must already be newest-first.
func (l *Log) Reset(entries []Entry) {
	l.entries = append([]Entry{}, entries...)
	l.trim()
}

// Entries returns a copy of the log, newest first.
func (l *Log) Entries() []Entry {
	return l.Filter(Filter{})
}

type Filter struct {
	Workstream string
	Action     Action
	Limit      int
}

func (l *Log) Filter(f Filter) []Entry {
	out := []Entry{}
	for _, e := range l.entries {
		if f.Workstream != "" && e.Workstream != f.Workstream {
			continue
		}
		if f.Action != "" && e.Action != f.Action {
			continue
		}
		if e.Changes != nil {
			e.Changes = append([]string{}, e.Changes...)
		}
		out = append(out, e)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out
}
