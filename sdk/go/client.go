package launchboardsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Client is a minimal launchboard HTTP API client.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

type Subtask struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Completed bool   `json:"completed"`
}

// Task is a task decorated with its workstream. UpdateTask returns it without
// the workstream fields.
type Task struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Status          string    `json:"status"`
	Priority        string    `json:"priority"`
	DueDate         string    `json:"dueDate"`
	Assignees       []string  `json:"assignees"`
	Progress        int       `json:"progress"`
	Description     string    `json:"description"`
	Subtasks        []Subtask `json:"subtasks"`
	WorkstreamID    string    `json:"workstreamId,omitempty"`
	WorkstreamName  string    `json:"workstreamName,omitempty"`
	WorkstreamColor string    `json:"workstreamColor,omitempty"`
	DaysUntilDue    *int      `json:"daysUntilDue,omitempty"`
}

// NewTask is the body for AddTask. Empty fields take server defaults.
type NewTask struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Status      string    `json:"status,omitempty"`
	Priority    string    `json:"priority,omitempty"`
	DueDate     string    `json:"dueDate,omitempty"`
	Assignees   []string  `json:"assignees,omitempty"`
	Progress    int       `json:"progress,omitempty"`
	Description string    `json:"description,omitempty"`
	Subtasks    []Subtask `json:"subtasks,omitempty"`
}

// TaskUpdate is a partial update; nil fields are left unchanged. A non-empty
// Subtasks replaces the whole checklist.
type TaskUpdate struct {
	Title       *string   `json:"title,omitempty"`
	Status      *string   `json:"status,omitempty"`
	Priority    *string   `json:"priority,omitempty"`
	DueDate     *string   `json:"dueDate,omitempty"`
	Assignees   []string  `json:"assignees,omitempty"`
	Progress    *int      `json:"progress,omitempty"`
	Description *string   `json:"description,omitempty"`
	Subtasks    []Subtask `json:"subtasks,omitempty"`
}

type MilestoneUpdate struct {
	Title    *string `json:"title,omitempty"`
	Date     *string `json:"date,omitempty"`
	Owner    *string `json:"owner,omitempty"`
	Status   *string `json:"status,omitempty"`
	Critical *bool   `json:"critical,omitempty"`
}

type Milestone struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Date     string `json:"date"`
	Owner    string `json:"owner"`
	Status   string `json:"status"`
	Critical bool   `json:"critical"`
}

type MilestoneAlert struct {
	Milestone Milestone `json:"milestone"`
	State     string    `json:"state"`
	DaysUntil int       `json:"daysUntil"`
}

type Workstream struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Color       string   `json:"color"`
	Icon        string   `json:"icon"`
	Leads       []string `json:"leads"`
	Description string   `json:"description"`
	Tasks       []Task   `json:"tasks"`
}

type WorkstreamSummary struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Color          string `json:"color"`
	TaskCount      int    `json:"taskCount"`
	CompletedCount int    `json:"completedCount"`
	Progress       int    `json:"progress"`
}

type TeamMember struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Role   string `json:"role"`
	Avatar string `json:"avatar"`
	Color  string `json:"color"`
}

type MemberTasks struct {
	Member         TeamMember `json:"member"`
	Tasks          []Task     `json:"tasks"`
	CompletedCount int        `json:"completedCount"`
	Progress       int        `json:"progress"`
}

// Stats mirrors GET /stats.
type Stats struct {
	Stats struct {
		TotalTasks        int `json:"totalTasks"`
		CompletedTasks    int `json:"completedTasks"`
		InProgressTasks   int `json:"inProgressTasks"`
		OpenCriticalTasks int `json:"openCriticalTasks"`
		Workstreams       int `json:"workstreams"`
		OverallProgress   int `json:"overallProgress"`
	} `json:"stats"`
	Workstreams []WorkstreamSummary `json:"workstreams"`
	LaunchDate  string              `json:"launchDate"`
	DaysLeft    int                 `json:"daysLeft"`
}

// Activity is one activity-log entry.
type Activity struct {
	ID             string   `json:"id"`
	Timestamp      string   `json:"timestamp"`
	Action         string   `json:"action"`
	TaskID         string   `json:"taskId,omitempty"`
	TaskTitle      string   `json:"taskTitle,omitempty"`
	MilestoneID    string   `json:"milestoneId,omitempty"`
	MilestoneTitle string   `json:"milestoneTitle,omitempty"`
	Workstream     string   `json:"workstream"`
	Changes        []string `json:"changes,omitempty"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error: status=%d code=%s message=%s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// Stats returns dashboard counters and the launch countdown.
func (c *Client) Stats(ctx context.Context) (Stats, error) {
	var resp Stats
	err := c.do(ctx, http.MethodGet, "stats", nil, &resp)
	return resp, err
}

// Workstreams lists workstreams with progress.
func (c *Client) Workstreams(ctx context.Context) ([]WorkstreamSummary, error) {
	var resp []WorkstreamSummary
	err := c.do(ctx, http.MethodGet, "workstreams", nil, &resp)
	return resp, err
}

func (c *Client) Workstream(ctx context.Context, id string) (Workstream, error) {
	var resp Workstream
	err := c.do(ctx, http.MethodGet, "workstreams/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// Tasks lists tasks; an empty status lists all of them.
func (c *Client) Tasks(ctx context.Context, status string) ([]Task, error) {
	endpoint := "tasks"
	if status != "" {
		endpoint += "?status=" + url.QueryEscape(status)
	}
	var resp []Task
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) Task(ctx context.Context, id string) (Task, error) {
	var resp Task
	err := c.do(ctx, http.MethodGet, "tasks/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// AddTask appends a task to a workstream.
func (c *Client) AddTask(ctx context.Context, workstreamID string, task NewTask) (Task, error) {
	var resp Task
	endpoint := fmt.Sprintf("workstreams/%s/tasks", url.PathEscape(workstreamID))
	err := c.do(ctx, http.MethodPost, endpoint, task, &resp)
	return resp, err
}

func (c *Client) UpdateTask(ctx context.Context, id string, update TaskUpdate) (Task, error) {
	var resp Task
	err := c.do(ctx, http.MethodPatch, "tasks/"+url.PathEscape(id), update, &resp)
	return resp, err
}

func (c *Client) DeleteTask(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "tasks/"+url.PathEscape(id), nil, nil)
}

// Deadlines lists tasks due within days; days < 0 uses the server default.
func (c *Client) Deadlines(ctx context.Context, days int) ([]Task, error) {
	endpoint := "deadlines"
	if days >= 0 {
		endpoint += "?days=" + strconv.Itoa(days)
	}
	var resp []Task
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) Overdue(ctx context.Context) ([]Task, error) {
	var resp []Task
	err := c.do(ctx, http.MethodGet, "overdue", nil, &resp)
	return resp, err
}

func (c *Client) Team(ctx context.Context) ([]TeamMember, error) {
	var resp []TeamMember
	err := c.do(ctx, http.MethodGet, "team", nil, &resp)
	return resp, err
}

func (c *Client) MemberTasks(ctx context.Context, memberID string) (MemberTasks, error) {
	var resp MemberTasks
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("team/%s/tasks", url.PathEscape(memberID)), nil, &resp)
	return resp, err
}

func (c *Client) Milestones(ctx context.Context) ([]Milestone, error) {
	var resp []Milestone
	err := c.do(ctx, http.MethodGet, "milestones", nil, &resp)
	return resp, err
}

func (c *Client) MilestoneAlerts(ctx context.Context) ([]MilestoneAlert, error) {
	var resp []MilestoneAlert
	err := c.do(ctx, http.MethodGet, "milestones/alerts", nil, &resp)
	return resp, err
}

func (c *Client) UpdateMilestone(ctx context.Context, id string, update MilestoneUpdate) (Milestone, error) {
	var resp Milestone
	err := c.do(ctx, http.MethodPatch, "milestones/"+url.PathEscape(id), update, &resp)
	return resp, err
}

// Activity returns recent log entries, optionally for one workstream name.
func (c *Client) Activity(ctx context.Context, workstream string, limit int) ([]Activity, error) {
	q := url.Values{}
	if workstream != "" {
		q.Set("workstream", workstream)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	endpoint := "activity"
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	var resp []Activity
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// Reset restores the seed project and clears the activity log.
func (c *Client) Reset(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "reset", nil, nil)
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/v0/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(b)}
		var env struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(b, &env) == nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
		}
		return apiErr
	}
	if out != nil && resp.StatusCode != http.StatusNoContent {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
