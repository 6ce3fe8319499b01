package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"path"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"launchboard/internal/domain"
	"launchboard/internal/engine"
	"launchboard/internal/events"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   *engine.Engine
	BasePath string
	// WindowDays is the default look-ahead for /deadlines.
	WindowDays int
	Logger     *log.Logger
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"not_found"`
	Message string         `json:"message" example:"task 9.9: not found"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

type requestKey struct{}
type bodyBytesKey struct{}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the launchboard API.
func New(cfg Config) (http.Handler, error) {
	if cfg.Engine == nil {
		return nil, errors.New("server: engine is required")
	}
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	if cfg.WindowDays <= 0 {
		cfg.WindowDays = 30
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	huma.DefaultArrayNullable = false
	// Override Huma errors to use the envelope.
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			// Schema/request validation errors should be 400 bad_request
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			bodyBytes, _ := io.ReadAll(r.Body)
			r.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
			ctx := context.WithValue(r.Context(), requestKey{}, r)
			ctx = context.WithValue(ctx, bodyBytesKey{}, bodyBytes)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	})
	hcfg := huma.DefaultConfig("Launchboard API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = "" // custom Swagger UI below
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	h := handlers{e: cfg.Engine, windowDays: cfg.WindowDays, logger: cfg.Logger}
	registerDocs(router, basePath)
	registerHealth(group, h)
	registerProject(group, h)
	registerWorkstreams(group, h)
	registerTasks(group, h)
	registerDeadlines(group, h)
	registerTeam(group, h)
	registerMilestones(group, h)
	registerActivity(group, h)
	registerReset(group, h)
	registerOpenAPI(router, api, basePath)

	return router, nil
}

type handlers struct {
	e          *engine.Engine
	windowDays int
	logger     *log.Logger
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func (h handlers) handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, engine.ErrNotFound):
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	case errors.Is(err, engine.ErrInvalid):
		return newAPIError(http.StatusBadRequest, "bad_request", err.Error(), nil)
	default:
		h.logger.Printf("api: %v", err)
		return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": err.Error()})
	}
}

func notFound(kind, id string) huma.StatusError {
	return newAPIError(http.StatusNotFound, "not_found", fmt.Sprintf("%s %s not found", kind, id), map[string]any{"id": id})
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func registerDocs(r chi.Router, basePath string) {
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var (
		once sync.Once
		spec []byte
	)
	specPath := path.Join(basePath, "openapi.json")
	r.Get(specPath, func(w http.ResponseWriter, r *http.Request) {
		once.Do(func() {
			oas := api.OpenAPI()
			ensureDefaultErrorResponses(oas)
			spec, _ = json.Marshal(oas)
		})
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

func ensureDefaultErrorResponses(oas *huma.OpenAPI) {
	if oas == nil || oas.Paths == nil {
		return
	}
	var errSchema *huma.Schema
	if oas.Components != nil && oas.Components.Schemas != nil {
		errSchema = oas.Components.Schemas.Schema(reflect.TypeOf(apiError{}), true, "ApiError")
	}
	for _, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
		} {
			if op == nil {
				continue
			}
			if op.Responses == nil {
				op.Responses = map[string]*huma.Response{}
			}
			op.Responses["default"] = &huma.Response{
				Description: "Error",
				Content: map[string]*huma.MediaType{
					"application/json": {Schema: errSchema},
				},
			}
		}
	}
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>Launchboard API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.onload = () => {
        SwaggerUIBundle({
          url: '%s',
          dom_id: '#swagger-ui'
        });
      };
    </script>
  </body>
</html>`, specURL)
}

func registerHealth(api huma.API, h handlers) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body HealthResponse `json:"body"`
	}, error) {
		return &struct {
			Body HealthResponse `json:"body"`
		}{Body: HealthResponse{Status: "ok", Project: h.e.Snapshot().Name}}, nil
	})
}

func registerProject(api huma.API, h handlers) {
	huma.Register(api, huma.Operation{
		OperationID: "get-project",
		Method:      http.MethodGet,
		Path:        "/project",
		Summary:     "Full project snapshot",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body domain.Project `json:"body"`
	}, error) {
		return &struct {
			Body domain.Project `json:"body"`
		}{Body: h.e.Snapshot()}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-stats",
		Method:      http.MethodGet,
		Path:        "/stats",
		Summary:     "Dashboard counters, per-workstream progress and launch countdown",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body ProgressResponse `json:"body"`
	}, error) {
		resp := ProgressResponse{
			Stats:       h.e.Stats(),
			Workstreams: h.e.WorkstreamSummaries(),
			LaunchDate:  h.e.Snapshot().LaunchDate,
		}
		resp.DaysLeft, _ = h.e.DaysToLaunch()
		return &struct {
			Body ProgressResponse `json:"body"`
		}{Body: resp}, nil
	})
}

func registerWorkstreams(api huma.API, h handlers) {
	huma.Register(api, huma.Operation{
		OperationID: "list-workstreams",
		Method:      http.MethodGet,
		Path:        "/workstreams",
		Summary:     "List workstreams with progress",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.WorkstreamSummary `json:"body"`
	}, error) {
		return &struct {
			Body []domain.WorkstreamSummary `json:"body"`
		}{Body: h.e.WorkstreamSummaries()}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-workstream",
		Method:      http.MethodGet,
		Path:        "/workstreams/{id}",
		Summary:     "Get workstream",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body domain.Workstream `json:"body"`
	}, error) {
		ws, ok := h.e.WorkstreamByID(input.ID)
		if !ok {
			return nil, notFound("workstream", input.ID)
		}
		return &struct {
			Body domain.Workstream `json:"body"`
		}{Body: ws}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-task",
		Method:        http.MethodPost,
		Path:          "/workstreams/{id}/tasks",
		Summary:       "Add a task to a workstream",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID   string            `path:"id"`
		Body CreateTaskRequest `json:"body"`
	}) (*struct {
		Body domain.TaskRef `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		if err := h.e.AddTask(ctx, input.ID, input.Body.task()); err != nil {
			return nil, h.handleError(err)
		}
		ref, ok := h.e.TaskByID(input.Body.ID)
		if !ok {
			return nil, notFound("task", input.Body.ID)
		}
		return &struct {
			Body domain.TaskRef `json:"body"`
		}{Body: ref}, nil
	})
}

func registerTasks(api huma.API, h handlers) {
	huma.Register(api, huma.Operation{
		OperationID: "list-tasks",
		Method:      http.MethodGet,
		Path:        "/tasks",
		Summary:     "List tasks, optionally by status",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Status string `query:"status" doc:"not-started, in-progress, urgent or completed"`
	}) (*struct {
		Body []domain.TaskRef `json:"body"`
	}, error) {
		if input.Status == "" {
			return &struct {
				Body []domain.TaskRef `json:"body"`
			}{Body: h.e.AllTasks()}, nil
		}
		status := domain.Status(input.Status)
		if !status.Valid() {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid status", map[string]any{"status": input.Status})
		}
		return &struct {
			Body []domain.TaskRef `json:"body"`
		}{Body: h.e.TasksByStatus(status)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-task",
		Method:      http.MethodGet,
		Path:        "/tasks/{id}",
		Summary:     "Get task",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body domain.TaskRef `json:"body"`
	}, error) {
		ref, ok := h.e.TaskByID(input.ID)
		if !ok {
			return nil, notFound("task", input.ID)
		}
		return &struct {
			Body domain.TaskRef `json:"body"`
		}{Body: ref}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-task",
		Method:      http.MethodPatch,
		Path:        "/tasks/{id}",
		Summary:     "Update task fields",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID   string            `path:"id"`
		Body UpdateTaskRequest `json:"body"`
	}) (*struct {
		Body domain.Task `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		t, err := h.e.UpdateTask(ctx, input.ID, input.Body.patch())
		if err != nil {
			return nil, h.handleError(err)
		}
		return &struct {
			Body domain.Task `json:"body"`
		}{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-task",
		Method:        http.MethodDelete,
		Path:          "/tasks/{id}",
		Summary:       "Delete task",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct{}, error) {
		if err := h.e.DeleteTask(ctx, input.ID); err != nil {
			return nil, h.handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerDeadlines(api huma.API, h handlers) {
	huma.Register(api, huma.Operation{
		OperationID: "upcoming-deadlines",
		Method:      http.MethodGet,
		Path:        "/deadlines",
		Summary:     "Tasks due within a window of days, soonest first",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Days string `query:"days" doc:"window size in days; defaults to the configured window"`
	}) (*struct {
		Body []domain.UpcomingTask `json:"body"`
	}, error) {
		days := h.windowDays
		if input.Days != "" {
			parsed, err := strconv.Atoi(input.Days)
			if err != nil || parsed < 0 {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid days", map[string]any{"days": input.Days})
			}
			days = parsed
		}
		return &struct {
			Body []domain.UpcomingTask `json:"body"`
		}{Body: h.e.UpcomingDeadlines(days)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "overdue-tasks",
		Method:      http.MethodGet,
		Path:        "/overdue",
		Summary:     "Incomplete tasks past their due date",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.UpcomingTask `json:"body"`
	}, error) {
		return &struct {
			Body []domain.UpcomingTask `json:"body"`
		}{Body: h.e.OverdueTasks()}, nil
	})
}

func registerTeam(api huma.API, h handlers) {
	huma.Register(api, huma.Operation{
		OperationID: "list-team",
		Method:      http.MethodGet,
		Path:        "/team",
		Summary:     "List team members",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.TeamMember `json:"body"`
	}, error) {
		team := h.e.Snapshot().Team
		if team == nil {
			team = []domain.TeamMember{}
		}
		return &struct {
			Body []domain.TeamMember `json:"body"`
		}{Body: team}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-team-member",
		Method:      http.MethodGet,
		Path:        "/team/{id}",
		Summary:     "Get team member",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body domain.TeamMember `json:"body"`
	}, error) {
		m, ok := h.e.TeamMember(input.ID)
		if !ok {
			return nil, notFound("team member", input.ID)
		}
		return &struct {
			Body domain.TeamMember `json:"body"`
		}{Body: m}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-member-tasks",
		Method:      http.MethodGet,
		Path:        "/team/{id}/tasks",
		Summary:     "Tasks assigned to a team member",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body domain.MemberSummary `json:"body"`
	}, error) {
		sum, ok := h.e.TasksForMember(input.ID)
		if !ok {
			return nil, notFound("team member", input.ID)
		}
		return &struct {
			Body domain.MemberSummary `json:"body"`
		}{Body: sum}, nil
	})
}

func registerMilestones(api huma.API, h handlers) {
	huma.Register(api, huma.Operation{
		OperationID: "list-milestones",
		Method:      http.MethodGet,
		Path:        "/milestones",
		Summary:     "List milestones",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.Milestone `json:"body"`
	}, error) {
		ms := h.e.Snapshot().Milestones
		if ms == nil {
			ms = []domain.Milestone{}
		}
		return &struct {
			Body []domain.Milestone `json:"body"`
		}{Body: ms}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "milestone-alerts",
		Method:      http.MethodGet,
		Path:        "/milestones/alerts",
		Summary:     "Critical milestones classified as done, overdue, near or upcoming",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.MilestoneAlert `json:"body"`
	}, error) {
		return &struct {
			Body []domain.MilestoneAlert `json:"body"`
		}{Body: h.e.MilestoneAlerts()}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-milestone",
		Method:      http.MethodPatch,
		Path:        "/milestones/{id}",
		Summary:     "Update milestone fields",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID   string                 `path:"id"`
		Body UpdateMilestoneRequest `json:"body"`
	}) (*struct {
		Body domain.Milestone `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		m, err := h.e.UpdateMilestone(ctx, input.ID, input.Body.patch())
		if err != nil {
			return nil, h.handleError(err)
		}
		return &struct {
			Body domain.Milestone `json:"body"`
		}{Body: m}, nil
	})
}

func registerActivity(api huma.API, h handlers) {
	huma.Register(api, huma.Operation{
		OperationID: "list-activity",
		Method:      http.MethodGet,
		Path:        "/activity",
		Summary:     "Activity log, newest first",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Workstream string `query:"workstream" doc:"workstream name"`
		Action     string `query:"action" doc:"task_created, task_updated, task_deleted or milestone_updated"`
		Limit      int    `query:"limit" default:"50"`
	}) (*struct {
		Body []events.Entry `json:"body"`
	}, error) {
		action := events.Action(input.Action)
		if action != "" && !action.Valid() {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid action", map[string]any{"action": input.Action})
		}
		return &struct {
			Body []events.Entry `json:"body"`
		}{Body: h.e.ActivityFor(events.Filter{
			Workstream: input.Workstream,
			Action:     action,
			Limit:      normalizeLimit(input.Limit),
		})}, nil
	})
}

func registerReset(api huma.API, h handlers) {
	huma.Register(api, huma.Operation{
		OperationID:   "reset-project",
		Method:        http.MethodPost,
		Path:          "/reset",
		Summary:       "Restore the seed snapshot and clear the activity log",
		DefaultStatus: http.StatusNoContent,
	}, func(ctx context.Context, _ *struct{}) (*struct{}, error) {
		if err := h.e.ResetToDefault(ctx); err != nil {
			return nil, h.handleError(err)
		}
		return &struct{}{}, nil
	})
}

func bodyBytes(ctx context.Context) []byte {
	if buf, ok := ctx.Value(bodyBytesKey{}).([]byte); ok {
		return buf
	}
	req, ok := ctx.Value(requestKey{}).(*http.Request)
	if !ok || req == nil {
		return nil
	}
	data, _ := io.ReadAll(req.Body)
	return data
}

func normalizeLimit(in int) int {
	if in <= 0 {
		return 50
	}
	if in > 1000 {
		return 1000
	}
	return in
}
