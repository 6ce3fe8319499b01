package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net"
	"net/http"
	"sync"
	"testing"
	"time"

	"launchboard/internal/domain"
	"launchboard/internal/engine"
	"launchboard/internal/events"
	"launchboard/internal/persist"
	"launchboard/internal/repo"
)

type testServer struct {
	URL    string
	Engine *engine.Engine
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T) (*testServer, func()) {
	t.Helper()
	var logs bytes.Buffer
	logger := log.New(&logs, "", 0)
	e := engine.New(context.Background(), engine.Options{
		Store:  persist.Adapter{KV: repo.NewMemory(), Logger: logger},
		Logger: logger,
		Now:    func() time.Time { return time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC) },
	})
	handler, err := New(Config{Engine: e, BasePath: "/v0", WindowDays: 7, Logger: logger})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String(),
		Engine: e,
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
		},
	}
	return testSrv, func() { testSrv.Close() }
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func decodeError(t *testing.T, data []byte) apiErrorBody {
	t.Helper()
	var env struct {
		Error apiErrorBody `json:"error"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("unmarshal error envelope: %v (%s)", err, data)
	}
	return env.Error
}

func TestTaskLifecycle(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/workstreams/ws-operations/tasks", map[string]any{
		"id":        "4.4",
		"title":     "Staff launch-day war room",
		"priority":  "high",
		"dueDate":   "2026-03-05",
		"assignees": []string{"Carla"},
	})
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create task status %d: %s", res.StatusCode, data)
	}
	var created domain.TaskRef
	if err := json.Unmarshal(data, &created); err != nil {
		t.Fatalf("unmarshal task: %v", err)
	}
	if created.WorkstreamName != "Operations" || created.Status != domain.StatusNotStarted {
		t.Fatalf("unexpected task: %+v", created)
	}

	res, data = doJSON(t, client, http.MethodPatch, srv.URL+"/v0/tasks/4.4", map[string]any{
		"status":   "in-progress",
		"progress": 140,
	})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("update status %d: %s", res.StatusCode, data)
	}
	var updated domain.Task
	_ = json.Unmarshal(data, &updated)
	if updated.Progress != 100 || updated.Status != domain.StatusInProgress || updated.Title != "Staff launch-day war room" {
		t.Fatalf("unexpected update: %+v", updated)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/deadlines", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("deadlines status %d: %s", res.StatusCode, data)
	}
	var upcoming []domain.UpcomingTask
	_ = json.Unmarshal(data, &upcoming)
	if len(upcoming) != 2 || upcoming[0].ID != "4.4" || upcoming[0].DaysUntilDue != 3 || upcoming[1].ID != "2.1" {
		t.Fatalf("unexpected deadlines: %s", data)
	}

	res, data = doJSON(t, client, http.MethodDelete, srv.URL+"/v0/tasks/4.4", nil)
	if res.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status %d: %s", res.StatusCode, data)
	}
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/tasks/4.4", nil)
	if res.StatusCode != http.StatusNotFound || decodeError(t, data).Code != "not_found" {
		t.Fatalf("expected not_found, got %d %s", res.StatusCode, data)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/activity?limit=10", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("activity status %d: %s", res.StatusCode, data)
	}
	var entries []events.Entry
	_ = json.Unmarshal(data, &entries)
	if len(entries) != 3 || entries[0].Action != events.TaskDeleted || entries[2].Action != events.TaskCreated {
		t.Fatalf("unexpected activity: %s", data)
	}
	if entries[1].Changes[0] != "status: not-started → in-progress" {
		t.Fatalf("unexpected changes: %v", entries[1].Changes)
	}
}

func TestErrorEnvelope(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPatch, srv.URL+"/v0/tasks/9.9", map[string]any{"progress": 10})
	if res.StatusCode != http.StatusNotFound || decodeError(t, data).Code != "not_found" {
		t.Fatalf("missing task: %d %s", res.StatusCode, data)
	}

	res, data = doJSON(t, client, http.MethodPatch, srv.URL+"/v0/tasks/1.2", map[string]any{"status": "blocked"})
	if res.StatusCode != http.StatusBadRequest || decodeError(t, data).Code != "bad_request" {
		t.Fatalf("bad status: %d %s", res.StatusCode, data)
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/workstreams/ws-product/tasks", map[string]any{"id": "1.1", "title": "dup"})
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("duplicate id: %d %s", res.StatusCode, data)
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/workstreams/ws-nope/tasks", map[string]any{"id": "9.1", "title": "orphan"})
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("missing workstream: %d %s", res.StatusCode, data)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/tasks?status=done", nil)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad filter: %d %s", res.StatusCode, data)
	}
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/deadlines?days=soon", nil)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad days: %d %s", res.StatusCode, data)
	}
}

func TestReadRoutes(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodGet, srv.URL+"/v0/health", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("health %d", res.StatusCode)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/stats", nil)
	var progress ProgressResponse
	_ = json.Unmarshal(data, &progress)
	if res.StatusCode != http.StatusOK || progress.Stats.TotalTasks != 14 || len(progress.Workstreams) != 4 || progress.DaysLeft != 54 {
		t.Fatalf("stats %d: %s", res.StatusCode, data)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/tasks?status=urgent", nil)
	var urgent []domain.TaskRef
	_ = json.Unmarshal(data, &urgent)
	if res.StatusCode != http.StatusOK || len(urgent) != 1 || urgent[0].ID != "2.1" {
		t.Fatalf("urgent %d: %s", res.StatusCode, data)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/tasks", nil)
	var all []domain.TaskRef
	_ = json.Unmarshal(data, &all)
	if res.StatusCode != http.StatusOK || len(all) != 14 {
		t.Fatalf("all tasks %d: %d", res.StatusCode, len(all))
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/workstreams/ws-engineering", nil)
	var ws domain.Workstream
	_ = json.Unmarshal(data, &ws)
	if res.StatusCode != http.StatusOK || ws.Name != "Engineering" || len(ws.Tasks) != 4 {
		t.Fatalf("workstream %d: %s", res.StatusCode, data)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/team/tm-juliana/tasks", nil)
	var member domain.MemberSummary
	_ = json.Unmarshal(data, &member)
	if res.StatusCode != http.StatusOK || len(member.Tasks) != 3 {
		t.Fatalf("member tasks %d: %s", res.StatusCode, data)
	}
	res, _ = doJSON(t, client, http.MethodGet, srv.URL+"/v0/team/tm-ghost", nil)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("ghost member %d", res.StatusCode)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/milestones/alerts", nil)
	var alerts []domain.MilestoneAlert
	_ = json.Unmarshal(data, &alerts)
	if res.StatusCode != http.StatusOK || len(alerts) != 4 {
		t.Fatalf("alerts %d: %s", res.StatusCode, data)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/openapi.json", nil)
	if res.StatusCode != http.StatusOK || !bytes.Contains(data, []byte("/v0/tasks/{id}")) {
		t.Fatalf("openapi %d", res.StatusCode)
	}
}

func TestMilestoneUpdateAndReset(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPatch, srv.URL+"/v0/milestones/ms-beta", map[string]any{"status": "completed"})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("milestone %d: %s", res.StatusCode, data)
	}
	var m domain.Milestone
	_ = json.Unmarshal(data, &m)
	if m.Status != domain.MilestoneCompleted || m.Title != "Public beta" {
		t.Fatalf("unexpected milestone: %+v", m)
	}
	if got := srv.Engine.ActivityLog(); len(got) != 1 || got[0].Changes[0] != "status: completed" {
		t.Fatalf("unexpected log: %+v", got)
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/reset", nil)
	if res.StatusCode != http.StatusNoContent {
		t.Fatalf("reset %d: %s", res.StatusCode, data)
	}
	if len(srv.Engine.ActivityLog()) != 0 {
		t.Fatalf("log not cleared")
	}
	for _, ms := range srv.Engine.Snapshot().Milestones {
		if ms.ID == "ms-beta" && ms.Status != domain.MilestonePending {
			t.Fatalf("milestone not reset")
		}
	}
}

func TestActivityActionFilter(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	for _, id := range []string{"1.2", "2.2"} {
		res, data := doJSON(t, client, http.MethodPatch, srv.URL+"/v0/tasks/"+id, map[string]any{"progress": 90})
		if res.StatusCode != http.StatusOK {
			t.Fatalf("update %s: %d %s", id, res.StatusCode, data)
		}
	}
	res, data := doJSON(t, client, http.MethodDelete, srv.URL+"/v0/tasks/3.3", nil)
	if res.StatusCode != http.StatusNoContent {
		t.Fatalf("delete: %d %s", res.StatusCode, data)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/activity?action=task_updated", nil)
	var updates []events.Entry
	_ = json.Unmarshal(data, &updates)
	if res.StatusCode != http.StatusOK || len(updates) != 2 || updates[0].TaskID != "2.2" {
		t.Fatalf("updates %d: %s", res.StatusCode, data)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/activity?action=task_deleted&workstream=Marketing", nil)
	var deletes []events.Entry
	_ = json.Unmarshal(data, &deletes)
	if res.StatusCode != http.StatusOK || len(deletes) != 1 || deletes[0].TaskID != "3.3" {
		t.Fatalf("deletes %d: %s", res.StatusCode, data)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/activity?action=archived", nil)
	if res.StatusCode != http.StatusBadRequest || decodeError(t, data).Code != "bad_request" {
		t.Fatalf("bad action: %d %s", res.StatusCode, data)
	}
}

func TestOpenAPIConcurrentFetch(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	var wg sync.WaitGroup
	bodies := make([][]byte, 8)
	for i := range bodies {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := srv.Client().Get(srv.URL + "/v0/openapi.json")
			if err != nil {
				t.Errorf("fetch: %v", err)
				return
			}
			defer res.Body.Close()
			bodies[i], _ = io.ReadAll(res.Body)
		}(i)
	}
	wg.Wait()
	for i, b := range bodies {
		if len(b) == 0 || !bytes.Equal(b, bodies[0]) {
			t.Fatalf("response %d differs from the first", i)
		}
	}
}
