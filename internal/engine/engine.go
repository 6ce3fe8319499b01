package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"launchboard/internal/domain"
	"launchboard/internal/events"
	"launchboard/internal/seed"
)

var (
	ErrNotFound = errors.New("not found")
	ErrInvalid  = errors.New("invalid input")
)

// Store is where the engine keeps its snapshot and activity log between runs.
// persist.Adapter is the production implementation.
type Store interface {
	LoadProject(ctx context.Context) (domain.Project, bool)
	LoadLog(ctx context.Context) ([]events.Entry, bool)
	SaveProject(ctx context.Context, p domain.Project) error
	SaveLog(ctx context.Context, entries []events.Entry) error
	Clear(ctx context.Context) error
}

// ProjectOverride replaces the snapshot's name and launch date. Empty fields
// keep whatever the snapshot holds.
type ProjectOverride struct {
	Name       string
	LaunchDate string
}

func (o ProjectOverride) apply(p *domain.Project) {
	if o.Name != "" {
		p.Name = o.Name
	}
	if o.LaunchDate != "" {
		p.LaunchDate = o.LaunchDate
	}
}

type Options struct {
	Store         Store
	MaxLogEntries int
	Logger        *log.Logger
	Now           func() time.Time
	// Seed builds the initial snapshot; defaults to seed.Default.
	Seed          func() domain.Project

	Project ProjectOverride
}

// Engine is the project store. All methods are safe for concurrent use.
type Engine struct {
	Now    func() time.Time
	Logger *log.Logger

	store    Store
	seed     func() domain.Project
	override ProjectOverride

	mu      sync.RWMutex
	project domain.Project
	log     *events.Log

	// dirty is set while memory holds changes the store has not accepted.
	dirty bool
}

// New builds an engine from whatever the store holds, falling back to the seed
// snapshot and an empty log.
func New(ctx context.Context, opts Options) *Engine {
	e := &Engine{
		Now:    opts.Now,
		Logger: opts.Logger,
		store:    opts.Store,
		seed:     opts.Seed,
		override: opts.Project,
	}
	if e.seed == nil {
		e.seed = seed.Default
	}
	e.log = events.NewLog(opts.MaxLogEntries, nil)
	e.log.Now = e.now

	e.project = e.seed()
	if e.store != nil {
		if p, ok := e.store.LoadProject(ctx); ok {
			e.project = p
		}
		if entries, ok := e.store.LoadLog(ctx); ok {
			e.log.Reset(entries)
		}
	}
	e.override.apply(&e.project)
	return e
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e *Engine) logger() *log.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return log.Default()
}

// persist writes both records after a mutation. Callers hold the write lock.
func (e *Engine) persist(ctx context.Context) {
	e.dirty = true
	if e.store == nil {
		return
	}
	failed := false
	if err := e.store.SaveProject(ctx, e.project); err != nil {
		e.logger().Printf("warning: save project: %v", err)
		failed = true
	}
	if err := e.store.SaveLog(ctx, e.log.Entries()); err != nil {
		e.logger().Printf("warning: save activity log: %v", err)
		failed = true
	}
	e.dirty = failed
}

// Close flushes state the store has not yet accepted. It writes nothing when
// storage already matches memory, so a reset stays cleared.
func (e *Engine) Close(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.store == nil || !e.dirty {
		return nil
	}
	if err := e.store.SaveProject(ctx, e.project); err != nil {
		return fmt.Errorf("flush project: %w", err)
	}
	if err := e.store.SaveLog(ctx, e.log.Entries()); err != nil {
		return fmt.Errorf("flush activity log: %w", err)
	}
	e.dirty = false
	return nil
}

// locate returns the workstream and task indexes of the first task with id.
func (e *Engine) locate(taskID string) (int, int, bool) {
	for wi, ws := range e.project.Workstreams {
		for ti, t := range ws.Tasks {
			if t.ID == taskID {
				return wi, ti, true
			}
		}
	}
	return -1, -1, false
}

func clampProgress(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func validatePatch(patch domain.TaskPatch) error {
	if patch.Status != nil && !patch.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalid, *patch.Status)
	}
	if patch.Priority != nil && !patch.Priority.Valid() {
		return fmt.Errorf("%w: unknown priority %q", ErrInvalid, *patch.Priority)
	}
	return nil
}

// UpdateTask merges patch into the first task with taskID and logs what
// changed. An unknown id changes nothing but is still logged.
func (e *Engine) UpdateTask(ctx context.Context, taskID string, patch domain.TaskPatch) (domain.Task, error) {
	if err := validatePatch(patch); err != nil {
		return domain.Task{}, err
	}
	if patch.Progress != nil {
		p := clampProgress(*patch.Progress)
		patch.Progress = &p
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	wi, ti, found := e.locate(taskID)
	var old domain.Task
	wsName := ""
	if found {
		old = e.project.Workstreams[wi].Tasks[ti]
		wsName = e.project.Workstreams[wi].Name
	}
	updated := patch.Apply(old)

	entry := events.Entry{
		Action:     events.TaskUpdated,
		TaskID:     taskID,
		TaskTitle:  firstNonEmpty(deref(patch.Title), old.Title, taskID),
		Workstream: wsName,
		Changes:    []string{"task updated"},
	}
	if found {
		if changes := describeTaskChanges(old, patch); len(changes) > 0 {
			entry.Changes = changes
		}
		e.project.Workstreams[wi].Tasks[ti] = updated
	}
	e.log.Append(entry)
	e.persist(ctx)

	if !found {
		return domain.Task{}, fmt.Errorf("task %s: %w", taskID, ErrNotFound)
	}
	return updated.Clone(), nil
}

func describeTaskChanges(old domain.Task, patch domain.TaskPatch) []string {
	var changes []string
	if patch.Status != nil && *patch.Status != "" && *patch.Status != old.Status {
		changes = append(changes, fmt.Sprintf("status: %s → %s", old.Status, *patch.Status))
	}
	if patch.Progress != nil && *patch.Progress != old.Progress {
		changes = append(changes, fmt.Sprintf("progress: %d%% → %d%%", old.Progress, *patch.Progress))
	}
	if patch.Title != nil && *patch.Title != "" && *patch.Title != old.Title {
		changes = append(changes, fmt.Sprintf("title: %s → %s", old.Title, *patch.Title))
	}
	if patch.Priority != nil && *patch.Priority != "" && *patch.Priority != old.Priority {
		changes = append(changes, fmt.Sprintf("priority: %s → %s", old.Priority, *patch.Priority))
	}
	return changes
}

// AddTask appends task to the end of the workstream's task list.
func (e *Engine) AddTask(ctx context.Context, workstreamID string, task domain.Task) error {
	if task.ID == "" {
		return fmt.Errorf("%w: task id is required", ErrInvalid)
	}
	if task.Status == "" {
		task.Status = domain.StatusNotStarted
	}
	if task.Priority == "" {
		task.Priority = domain.PriorityMedium
	}
	if !task.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalid, task.Status)
	}
	if !task.Priority.Valid() {
		return fmt.Errorf("%w: unknown priority %q", ErrInvalid, task.Priority)
	}
	task.Progress = clampProgress(task.Progress)
	if task.Assignees == nil {
		task.Assignees = []string{}
	}
	if task.Subtasks == nil {
		task.Subtasks = []domain.Subtask{}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, _, dup := e.locate(task.ID); dup {
		return fmt.Errorf("%w: task %s already exists", ErrInvalid, task.ID)
	}
	wsIdx := -1
	for i, ws := range e.project.Workstreams {
		if ws.ID == workstreamID {
			wsIdx = i
			break
		}
	}
	entry := events.Entry{
		Action:     events.TaskCreated,
		TaskID:     task.ID,
		TaskTitle:  task.Title,
		Workstream: workstreamID,
	}
	if wsIdx >= 0 {
		ws := &e.project.Workstreams[wsIdx]
		entry.Workstream = firstNonEmpty(ws.Name, workstreamID)
		ws.Tasks = append(ws.Tasks, task.Clone())
	}
	e.log.Append(entry)
	e.persist(ctx)

	if wsIdx < 0 {
		return fmt.Errorf("workstream %s: %w", workstreamID, ErrNotFound)
	}
	return nil
}

// DeleteTask removes every task with taskID.
func (e *Engine) DeleteTask(ctx context.Context, taskID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	entry := events.Entry{Action: events.TaskDeleted, TaskID: taskID}
	found := false
	for wi := range e.project.Workstreams {
		ws := &e.project.Workstreams[wi]
		kept := make([]domain.Task, 0, len(ws.Tasks))
		for _, t := range ws.Tasks {
			if t.ID == taskID {
				entry.TaskTitle = t.Title
				entry.Workstream = ws.Name
				found = true
				continue
			}
			kept = append(kept, t)
		}
		if len(kept) != len(ws.Tasks) {
			ws.Tasks = kept
		}
	}
	e.log.Append(entry)
	e.persist(ctx)

	if !found {
		return fmt.Errorf("task %s: %w", taskID, ErrNotFound)
	}
	return nil
}

// UpdateMilestone merges patch into the milestone with milestoneID.
func (e *Engine) UpdateMilestone(ctx context.Context, milestoneID string, patch domain.MilestonePatch) (domain.Milestone, error) {
	if s := patch.Status; s != nil && *s != domain.MilestoneCompleted && *s != domain.MilestonePending {
		return domain.Milestone{}, fmt.Errorf("%w: unknown milestone status %q", ErrInvalid, *s)
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	idx := -1
	for i, m := range e.project.Milestones {
		if m.ID == milestoneID {
			idx = i
			break
		}
	}
	entry := events.Entry{
		Action:         events.MilestoneUpdated,
		MilestoneID:    milestoneID,
		MilestoneTitle: milestoneID,
		Changes:        []string{"updated"},
	}
	if patch.Status != nil && *patch.Status != "" {
		entry.Changes = []string{"status: " + *patch.Status}
	}
	var updated domain.Milestone
	if idx >= 0 {
		old := e.project.Milestones[idx]
		entry.MilestoneTitle = firstNonEmpty(old.Title, milestoneID)
		updated = patch.Apply(old)
		e.project.Milestones[idx] = updated
	}
	e.log.Append(entry)
	e.persist(ctx)

	if idx < 0 {
		return domain.Milestone{}, fmt.Errorf("milestone %s: %w", milestoneID, ErrNotFound)
	}
	return updated, nil
}

// ResetToDefault restores the seed snapshot, empties the log and removes both
// records from storage. A failed removal is logged; the in-memory reset stands
// and the next Close retries by writing the seed state.
func (e *Engine) ResetToDefault(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.project = e.seed()
	e.override.apply(&e.project)
	e.log.Reset(nil)
	e.dirty = false
	if e.store == nil {
		return nil
	}
	if err := e.store.Clear(ctx); err != nil {
		e.logger().Printf("warning: clear storage: %v", err)
		e.dirty = true
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
