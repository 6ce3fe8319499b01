package domain

import (
	"fmt"
	"time"
)

// DateLayout is the calendar-date format used for due dates and milestone dates.
const DateLayout = "2006-01-02"

type Status string

const (
	StatusNotStarted Status = "not-started"
	StatusInProgress Status = "in-progress"
	StatusUrgent     Status = "urgent"
	StatusCompleted  Status = "completed"
)

// Valid reports whether s is one of the four task statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusNotStarted, StatusInProgress, StatusUrgent, StatusCompleted:
		return true
	}
	return false
}

type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

type Subtask struct {
	ID        string `json:"id" yaml:"id"`
	Title     string `json:"title" yaml:"title"`
	Completed bool   `json:"completed" yaml:"completed"`
}

type Task struct {
	ID          string    `json:"id" yaml:"id"`
	Title       string    `json:"title" yaml:"title"`
	Status      Status    `json:"status" yaml:"status" enum:"not-started,in-progress,urgent,completed"`
	Priority    Priority  `json:"priority" yaml:"priority" enum:"low,medium,high,critical"`
	DueDate     string    `json:"dueDate" yaml:"due_date" format:"date"`
	Assignees   []string  `json:"assignees" yaml:"assignees"`
	Progress    int       `json:"progress" yaml:"progress" minimum:"0" maximum:"100"`
	Description string    `json:"description" yaml:"description"`
	Subtasks    []Subtask `json:"subtasks" yaml:"subtasks"`
}

// Due parses DueDate as a UTC calendar date.
func (t Task) Due() (time.Time, bool) {
	return ParseDate(t.DueDate)
}

// Clone returns a deep copy of the task.
func (t Task) Clone() Task {
	c := t
	c.Assignees = cloneStrings(t.Assignees)
	if t.Subtasks != nil {
		c.Subtasks = append([]Subtask{}, t.Subtasks...)
	}
	return c
}

type Workstream struct {
	ID          string   `json:"id" yaml:"id"`
	Name        string   `json:"name" yaml:"name"`
	Color       string   `json:"color" yaml:"color"`
	Icon        string   `json:"icon" yaml:"icon"`
	Leads       []string `json:"leads" yaml:"leads"`
	Description string   `json:"description" yaml:"description"`
	Tasks       []Task   `json:"tasks" yaml:"tasks"`
}

// Clone returns a deep copy of the workstream and its tasks.
func (w Workstream) Clone() Workstream {
	c := w
	c.Leads = cloneStrings(w.Leads)
	if w.Tasks != nil {
		c.Tasks = make([]Task, len(w.Tasks))
		for i, t := range w.Tasks {
			c.Tasks[i] = t.Clone()
		}
	}
	return c
}

type Milestone struct {
	ID       string `json:"id" yaml:"id"`
	Title    string `json:"title" yaml:"title"`
	Date     string `json:"date" yaml:"date" format:"date"`
	Owner    string `json:"owner" yaml:"owner"`
	Status   string `json:"status" yaml:"status" enum:"completed,pending"`
	Critical bool   `json:"critical" yaml:"critical"`
}

const (
	MilestoneCompleted = "completed"
	MilestonePending   = "pending"
)

type TeamMember struct {
	ID     string `json:"id" yaml:"id"`
	Name   string `json:"name" yaml:"name"`
	Role   string `json:"role" yaml:"role"`
	Avatar string `json:"avatar" yaml:"avatar"`
	Color  string `json:"color" yaml:"color"`
}

type Decision struct {
	ID           string   `json:"id" yaml:"id"`
	Title        string   `json:"title" yaml:"title"`
	Details      string   `json:"details" yaml:"details"`
	Participants []string `json:"participants" yaml:"participants"`
	Date         string   `json:"date" yaml:"date"`
}

type Risk struct {
	ID         string `json:"id" yaml:"id"`
	Title      string `json:"title" yaml:"title"`
	Impact     string `json:"impact" yaml:"impact"`
	Mitigation string `json:"mitigation" yaml:"mitigation"`
	Owner      string `json:"owner" yaml:"owner"`
}

type CriticalPathStep struct {
	ID          string `json:"id" yaml:"id"`
	Step        string `json:"step" yaml:"step"`
	Description string `json:"description" yaml:"description"`
	Status      string `json:"status" yaml:"status"`
	TargetDate  string `json:"targetDate" yaml:"target_date"`
}

// Project is the aggregate root: one live snapshot of everything the
// dashboard tracks.
type Project struct {
	Name         string             `json:"name" yaml:"name"`
	LaunchDate   string             `json:"launchDate" yaml:"launch_date"`
	Workstreams  []Workstream       `json:"workstreams" yaml:"workstreams"`
	Team         []TeamMember       `json:"team" yaml:"team"`
	Milestones   []Milestone        `json:"milestones" yaml:"milestones"`
	Decisions    []Decision         `json:"decisions" yaml:"decisions"`
	Risks        []Risk             `json:"risks" yaml:"risks"`
	CriticalPath []CriticalPathStep `json:"criticalPath" yaml:"critical_path"`
}

// Clone returns a deep copy. Consumers only ever see clones of the live snapshot.
func (p Project) Clone() Project {
	c := p
	if p.Workstreams != nil {
		c.Workstreams = make([]Workstream, len(p.Workstreams))
		for i, ws := range p.Workstreams {
			c.Workstreams[i] = ws.Clone()
		}
	}
	if p.Team != nil {
		c.Team = append([]TeamMember{}, p.Team...)
	}
	if p.Milestones != nil {
		c.Milestones = append([]Milestone{}, p.Milestones...)
	}
	if p.Decisions != nil {
		c.Decisions = make([]Decision, len(p.Decisions))
		for i, d := range p.Decisions {
			d.Participants = cloneStrings(d.Participants)
			c.Decisions[i] = d
		}
	}
	if p.Risks != nil {
		c.Risks = append([]Risk{}, p.Risks...)
	}
	if p.CriticalPath != nil {
		c.CriticalPath = append([]CriticalPathStep{}, p.CriticalPath...)
	}
	return c
}

// TaskCount returns the number of tasks across all workstreams.
func (p Project) TaskCount() int {
	n := 0
	for _, ws := range p.Workstreams {
		n += len(ws.Tasks)
	}
	return n
}

// Validate checks the structural invariants of a snapshot.
func (p Project) Validate() error {
	wsIDs := map[string]bool{}
	taskIDs := map[string]string{}
	for _, ws := range p.Workstreams {
		if ws.ID == "" {
			return fmt.Errorf("workstream %q has empty id", ws.Name)
		}
		if wsIDs[ws.ID] {
			return fmt.Errorf("duplicate workstream id %s", ws.ID)
		}
		wsIDs[ws.ID] = true
		for _, t := range ws.Tasks {
			if t.ID == "" {
				return fmt.Errorf("workstream %s has a task with empty id", ws.ID)
			}
			if owner, ok := taskIDs[t.ID]; ok {
				return fmt.Errorf("task %s appears in workstreams %s and %s", t.ID, owner, ws.ID)
			}
			taskIDs[t.ID] = ws.ID
			if !t.Status.Valid() {
				return fmt.Errorf("task %s has invalid status %q", t.ID, t.Status)
			}
			if !t.Priority.Valid() {
				return fmt.Errorf("task %s has invalid priority %q", t.ID, t.Priority)
			}
			if t.Progress < 0 || t.Progress > 100 {
				return fmt.Errorf("task %s progress %d out of range", t.ID, t.Progress)
			}
		}
	}
	return nil
}

// TaskRef is a task decorated with its owning workstream.
type TaskRef struct {
	Task
	WorkstreamID    string `json:"workstreamId"`
	WorkstreamName  string `json:"workstreamName"`
	WorkstreamColor string `json:"workstreamColor"`
}

// NewTaskRef decorates t with ws metadata. The task is copied.
func NewTaskRef(t Task, ws Workstream) TaskRef {
	return TaskRef{
		Task:            t.Clone(),
		WorkstreamID:    ws.ID,
		WorkstreamName:  ws.Name,
		WorkstreamColor: ws.Color,
	}
}

type UpcomingTask struct {
	TaskRef
	DaysUntilDue int `json:"daysUntilDue"`
}

type WorkstreamSummary struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Color          string `json:"color"`
	TaskCount      int    `json:"taskCount"`
	CompletedCount int    `json:"completedCount"`
	Progress       int    `json:"progress"`
}

type MemberSummary struct {
	Member         TeamMember `json:"member"`
	Tasks          []TaskRef  `json:"tasks"`
	CompletedCount int        `json:"completedCount"`
	Progress       int        `json:"progress"`
}

type Stats struct {
	TotalTasks        int `json:"totalTasks"`
	CompletedTasks    int `json:"completedTasks"`
	InProgressTasks   int `json:"inProgressTasks"`
	OpenCriticalTasks int `json:"openCriticalTasks"`
	Workstreams       int `json:"workstreams"`
	OverallProgress   int `json:"overallProgress"`
}

type AlertState string

const (
	AlertDone     AlertState = "done"
	AlertOverdue  AlertState = "overdue"
	AlertNear     AlertState = "near"
	AlertUpcoming AlertState = "upcoming"
)

type MilestoneAlert struct {
	Milestone Milestone  `json:"milestone"`
	State     AlertState `json:"state"`
	DaysUntil int        `json:"daysUntil"`
}

// TaskPatch is a partial task update. Nil pointers and nil slices are
// "omitted"; an empty non-nil slice clears the field.
type TaskPatch struct {
	Title       *string   `json:"title,omitempty"`
	Status      *Status   `json:"status,omitempty"`
	Priority    *Priority `json:"priority,omitempty"`
	DueDate     *string   `json:"dueDate,omitempty"`
	Assignees   []string  `json:"assignees,omitempty"`
	Progress    *int      `json:"progress,omitempty"`
	Description *string   `json:"description,omitempty"`
	Subtasks    []Subtask `json:"subtasks,omitempty"`
}

// Apply returns t with the patch merged over it. t is not modified.
func (p TaskPatch) Apply(t Task) Task {
	out := t.Clone()
	if p.Title != nil {
		out.Title = *p.Title
	}
	if p.Status != nil {
		out.Status = *p.Status
	}
	if p.Priority != nil {
		out.Priority = *p.Priority
	}
	if p.DueDate != nil {
		out.DueDate = *p.DueDate
	}
	if p.Assignees != nil {
		out.Assignees = cloneStrings(p.Assignees)
	}
	if p.Progress != nil {
		out.Progress = *p.Progress
	}
	if p.Description != nil {
		out.Description = *p.Description
	}
	if p.Subtasks != nil {
		out.Subtasks = append([]Subtask{}, p.Subtasks...)
	}
	return out
}

type MilestonePatch struct {
	Title    *string `json:"title,omitempty"`
	Date     *string `json:"date,omitempty"`
	Owner    *string `json:"owner,omitempty"`
	Status   *string `json:"status,omitempty"`
	Critical *bool   `json:"critical,omitempty"`
}

func (p MilestonePatch) Apply(m Milestone) Milestone {
	if p.Title != nil {
		m.Title = *p.Title
	}
	if p.Date != nil {
		m.Date = *p.Date
	}
	if p.Owner != nil {
		m.Owner = *p.Owner
	}
	if p.Status != nil {
		m.Status = *p.Status
	}
	if p.Critical != nil {
		m.Critical = *p.Critical
	}
	return m
}

// ParseDate parses a YYYY-MM-DD date (or a full RFC 3339 timestamp) and
// returns the start of that day in UTC.
func ParseDate(s string) (time.Time, bool) {
	if d, err := time.Parse(DateLayout, s); err == nil {
		return d, true
	}
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return StartOfDay(ts), true
	}
	return time.Time{}, false
}

// StartOfDay truncates t to midnight UTC.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	return append([]string{}, in...)
}
