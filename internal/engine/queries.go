package engine

import (
	"math"
	"sort"
	"strings"
	"time"

	"launchboard/internal/domain"
	"launchboard/internal/events"
)

// nearWindowDays is how close a pending critical milestone must be to count as near.
const nearWindowDays = 14

const day = 24 * time.Hour

func (e *Engine) today() time.Time {
	return domain.StartOfDay(e.now())
}

// daysBetween rounds up, so anything later on the same day counts as one day.
func daysBetween(from, to time.Time) int {
	return int(math.Ceil(to.Sub(from).Hours() / 24))
}

// Snapshot returns a deep copy of the current project.
func (e *Engine) Snapshot() domain.Project {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.project.Clone()
}

// ActivityLog returns the activity log, newest first.
func (e *Engine) ActivityLog() []events.Entry {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.log.Entries()
}

// ActivityFor returns log entries matching f, newest first. Empty filter fields
// match everything and a Limit <= 0 returns every match.
func (e *Engine) ActivityFor(f events.Filter) []events.Entry {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.log.Filter(f)
}

// TasksByStatus lists tasks with exactly status, in workstream then task order.
func (e *Engine) TasksByStatus(status domain.Status) []domain.TaskRef {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.collect(func(t domain.Task) bool { return t.Status == status })
}

// AllTasks lists every task in workstream then task order.
func (e *Engine) AllTasks() []domain.TaskRef {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.collect(func(domain.Task) bool { return true })
}

func (e *Engine) collect(keep func(domain.Task) bool) []domain.TaskRef {
	out := []domain.TaskRef{}
	for _, ws := range e.project.Workstreams {
		for _, t := range ws.Tasks {
			if keep(t) {
				out = append(out, domain.NewTaskRef(t, ws))
			}
		}
	}
	return out
}

// UpcomingDeadlines lists tasks due between today and today+windowDays
// inclusive, soonest first. Tasks with unparsable due dates are skipped.
func (e *Engine) UpcomingDeadlines(windowDays int) []domain.UpcomingTask {
	if windowDays < 0 {
		windowDays = 0
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	today := e.today()
	until := today.Add(time.Duration(windowDays) * day)
	return e.dueTasks(today, func(due time.Time, _ domain.Task) bool {
		return !due.Before(today) && !due.After(until)
	})
}

// OverdueTasks lists incomplete tasks whose due date is before today, most
// overdue first. DaysUntilDue is negative.
func (e *Engine) OverdueTasks() []domain.UpcomingTask {
	e.mu.RLock()
	defer e.mu.RUnlock()
	today := e.today()
	return e.dueTasks(today, func(due time.Time, t domain.Task) bool {
		return due.Before(today) && t.Status != domain.StatusCompleted
	})
}

func (e *Engine) dueTasks(today time.Time, keep func(time.Time, domain.Task) bool) []domain.UpcomingTask {
	type dated struct {
		due  time.Time
		task domain.UpcomingTask
	}
	var found []dated
	for _, ws := range e.project.Workstreams {
		for _, t := range ws.Tasks {
			due, ok := t.Due()
			if !ok || !keep(due, t) {
				continue
			}
			found = append(found, dated{due: due, task: domain.UpcomingTask{
				TaskRef:      domain.NewTaskRef(t, ws),
				DaysUntilDue: daysBetween(today, due),
			}})
		}
	}
	sort.SliceStable(found, func(i, j int) bool { return found[i].due.Before(found[j].due) })
	out := make([]domain.UpcomingTask, len(found))
	for i, d := range found {
		out[i] = d.task
	}
	return out
}

// TasksDueBetween lists tasks due on any day in [from, to], in snapshot order.
func (e *Engine) TasksDueBetween(from, to time.Time) []domain.TaskRef {
	from, to = domain.StartOfDay(from), domain.StartOfDay(to)
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.collect(func(t domain.Task) bool {
		due, ok := t.Due()
		return ok && !due.Before(from) && !due.After(to)
	})
}

// MilestonesBetween lists milestones dated on any day in [from, to].
func (e *Engine) MilestonesBetween(from, to time.Time) []domain.Milestone {
	from, to = domain.StartOfDay(from), domain.StartOfDay(to)
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := []domain.Milestone{}
	for _, m := range e.project.Milestones {
		d, ok := domain.ParseDate(m.Date)
		if ok && !d.Before(from) && !d.After(to) {
			out = append(out, m)
		}
	}
	return out
}

// MilestoneAlerts classifies every critical milestone against today.
func (e *Engine) MilestoneAlerts() []domain.MilestoneAlert {
	e.mu.RLock()
	defer e.mu.RUnlock()
	today := e.today()
	out := []domain.MilestoneAlert{}
	for _, m := range e.project.Milestones {
		if !m.Critical {
			continue
		}
		alert := domain.MilestoneAlert{Milestone: m, State: domain.AlertUpcoming}
		d, ok := domain.ParseDate(m.Date)
		if ok {
			alert.DaysUntil = daysBetween(today, d)
		}
		switch {
		case m.Status == domain.MilestoneCompleted:
			alert.State = domain.AlertDone
		case ok && alert.DaysUntil < 0:
			alert.State = domain.AlertOverdue
		case ok && alert.DaysUntil <= nearWindowDays:
			alert.State = domain.AlertNear
		}
		out = append(out, alert)
	}
	return out
}

// OverallProgress is the rounded mean progress of every task, 0 with no tasks.
func (e *Engine) OverallProgress() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	var tasks []domain.Task
	for _, ws := range e.project.Workstreams {
		tasks = append(tasks, ws.Tasks...)
	}
	return meanProgress(tasks)
}

func meanProgress(tasks []domain.Task) int {
	if len(tasks) == 0 {
		return 0
	}
	sum := 0
	for _, t := range tasks {
		sum += t.Progress
	}
	return int(math.Round(float64(sum) / float64(len(tasks))))
}

func completedCount(tasks []domain.Task) int {
	n := 0
	for _, t := range tasks {
		if t.Status == domain.StatusCompleted {
			n++
		}
	}
	return n
}

func (e *Engine) WorkstreamSummaries() []domain.WorkstreamSummary {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]domain.WorkstreamSummary, 0, len(e.project.Workstreams))
	for _, ws := range e.project.Workstreams {
		out = append(out, domain.WorkstreamSummary{
			ID:             ws.ID,
			Name:           ws.Name,
			Color:          ws.Color,
			TaskCount:      len(ws.Tasks),
			CompletedCount: completedCount(ws.Tasks),
			Progress:       meanProgress(ws.Tasks),
		})
	}
	return out
}

func (e *Engine) Stats() domain.Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	var all []domain.Task
	for _, ws := range e.project.Workstreams {
		all = append(all, ws.Tasks...)
	}
	s := domain.Stats{
		TotalTasks:      len(all),
		CompletedTasks:  completedCount(all),
		Workstreams:     len(e.project.Workstreams),
		OverallProgress: meanProgress(all),
	}
	for _, t := range all {
		if t.Status == domain.StatusInProgress {
			s.InProgressTasks++
		}
		if t.Priority == domain.PriorityCritical && t.Status != domain.StatusCompleted {
			s.OpenCriticalTasks++
		}
	}
	return s
}

func (e *Engine) WorkstreamByID(id string) (domain.Workstream, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, ws := range e.project.Workstreams {
		if ws.ID == id {
			return ws.Clone(), true
		}
	}
	return domain.Workstream{}, false
}

// TaskByID returns the first task with id, decorated with its workstream.
func (e *Engine) TaskByID(id string) (domain.TaskRef, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	wi, ti, ok := e.locate(id)
	if !ok {
		return domain.TaskRef{}, false
	}
	ws := e.project.Workstreams[wi]
	return domain.NewTaskRef(ws.Tasks[ti], ws), true
}

func (e *Engine) TeamMember(id string) (domain.TeamMember, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.member(id)
}

func (e *Engine) member(id string) (domain.TeamMember, bool) {
	for _, m := range e.project.Team {
		if m.ID == id {
			return m, true
		}
	}
	return domain.TeamMember{}, false
}

// TasksForMember lists the tasks assigned to a team member. Assignees are
// free-text names, so a task matches when the member's first name and an
// assignee contain one another, ignoring case.
func (e *Engine) TasksForMember(memberID string) (domain.MemberSummary, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	m, ok := e.member(memberID)
	if !ok {
		return domain.MemberSummary{}, false
	}
	first := firstName(m.Name)
	refs := e.collect(func(t domain.Task) bool {
		for _, a := range t.Assignees {
			if assigneeMatches(first, a) {
				return true
			}
		}
		return false
	})
	tasks := make([]domain.Task, len(refs))
	for i, r := range refs {
		tasks[i] = r.Task
	}
	return domain.MemberSummary{
		Member:         m,
		Tasks:          refs,
		CompletedCount: completedCount(tasks),
		Progress:       meanProgress(tasks),
	}, true
}

func firstName(name string) string {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return ""
	}
	return strings.ToLower(fields[0])
}

func assigneeMatches(first, assignee string) bool {
	a := strings.ToLower(strings.TrimSpace(assignee))
	if first == "" || a == "" {
		return false
	}
	return strings.Contains(a, first) || strings.Contains(first, a)
}

// DaysToLaunch counts whole days from today to the project launch date. ok is
// false when the snapshot has no parsable launch date.
func (e *Engine) DaysToLaunch() (int, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	launch, ok := domain.ParseDate(e.project.LaunchDate)
	if !ok {
		return 0, false
	}
	return daysBetween(e.today(), launch), true
}
