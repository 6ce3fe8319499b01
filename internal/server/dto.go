package server

import (
	"launchboard/internal/domain"
)

// Request payloads

type CreateTaskRequest struct {
	ID          string           `json:"id"`
	Title       string           `json:"title"`
	Status      string           `json:"status,omitempty" enum:"not-started,in-progress,urgent,completed"`
	Priority    string           `json:"priority,omitempty" enum:"low,medium,high,critical"`
	DueDate     string           `json:"dueDate,omitempty" format:"date"`
	Assignees   []string         `json:"assignees,omitempty"`
	Progress    int              `json:"progress,omitempty"`
	Description string           `json:"description,omitempty"`
	Subtasks    []domain.Subtask `json:"subtasks,omitempty"`
}

func (r CreateTaskRequest) task() domain.Task {
	return domain.Task{
		ID:          r.ID,
		Title:       r.Title,
		Status:      domain.Status(r.Status),
		Priority:    domain.Priority(r.Priority),
		DueDate:     r.DueDate,
		Assignees:   r.Assignees,
		Progress:    r.Progress,
		Description: r.Description,
		Subtasks:    r.Subtasks,
	}
}

// UpdateTaskRequest is a partial update; an empty array clears a list field.
type UpdateTaskRequest struct {
	Title       *string          `json:"title,omitempty"`
	Status      *string          `json:"status,omitempty" enum:"not-started,in-progress,urgent,completed"`
	Priority    *string          `json:"priority,omitempty" enum:"low,medium,high,critical"`
	DueDate     *string          `json:"dueDate,omitempty"`
	Assignees   []string         `json:"assignees,omitempty"`
	Progress    *int             `json:"progress,omitempty"`
	Description *string          `json:"description,omitempty"`
	Subtasks    []domain.Subtask `json:"subtasks,omitempty"`
}

func (r UpdateTaskRequest) patch() domain.TaskPatch {
	p := domain.TaskPatch{
		Title:       r.Title,
		DueDate:     r.DueDate,
		Assignees:   r.Assignees,
		Progress:    r.Progress,
		Description: r.Description,
		Subtasks:    r.Subtasks,
	}
	if r.Status != nil {
		s := domain.Status(*r.Status)
		p.Status = &s
	}
	if r.Priority != nil {
		pr := domain.Priority(*r.Priority)
		p.Priority = &pr
	}
	return p
}

type UpdateMilestoneRequest struct {
	Title    *string `json:"title,omitempty"`
	Date     *string `json:"date,omitempty"`
	Owner    *string `json:"owner,omitempty"`
	Status   *string `json:"status,omitempty" enum:"completed,pending"`
	Critical *bool   `json:"critical,omitempty"`
}

func (r UpdateMilestoneRequest) patch() domain.MilestonePatch {
	return domain.MilestonePatch{
		Title:    r.Title,
		Date:     r.Date,
		Owner:    r.Owner,
		Status:   r.Status,
		Critical: r.Critical,
	}
}

// Response payloads

type HealthResponse struct {
	Status  string `json:"status"`
	Project string `json:"project"`
}

type ProgressResponse struct {
	Stats       domain.Stats               `json:"stats"`
	Workstreams []domain.WorkstreamSummary `json:"workstreams"`
	LaunchDate  string                     `json:"launchDate"`
	DaysLeft    int                        `json:"daysLeft"`
}
