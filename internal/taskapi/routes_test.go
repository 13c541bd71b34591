package taskapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/weather-cache-api/internal/coordinator"
	"github.com/i474232898/weather-cache-api/internal/queue"
	"github.com/i474232898/weather-cache-api/internal/taskstatus"
)

const testToken = "secret"

type fakeDispatcher struct {
	err    error
	taskID string
	jobs   []queue.Job
}

func (f *fakeDispatcher) Dispatch(_ context.Context, job queue.Job) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.jobs = append(f.jobs, job)
	return f.taskID, nil
}

type fakeStatuses struct {
	status taskstatus.Status
}

func (f *fakeStatuses) Get(_ context.Context, taskID string) (taskstatus.Status, error) {
	st := f.status
	st.TaskID = taskID
	return st, nil
}

func newTestApp(dispatcher *fakeDispatcher, statuses *fakeStatuses) *fiber.App {
	app := fiber.New()
	RegisterRoutes(app, dispatcher, statuses, testToken)
	return app
}

func postTasks(t *testing.T, app *fiber.App, body string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/tasks", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatalf("invalid JSON body %q: %v", raw, err)
	}
	return m
}

// TestDispatchValidation verifies the required-field checks and their exact
// error messages.
func TestDispatchValidation(t *testing.T) {
	app := newTestApp(&fakeDispatcher{taskID: "t1"}, &fakeStatuses{})

	tests := []struct {
		name    string
		body    string
		status  int
		message string
	}{
		{
			name:    "missing querystring",
			body:    `{"task_type":"upload_history","token":"secret"}`,
			status:  http.StatusBadRequest,
			message: "Bad request: Specify querystring",
		},
		{
			name:    "missing task_type",
			body:    `{"querystring":{"q":"Paris"},"token":"secret"}`,
			status:  http.StatusBadRequest,
			message: "Bad request: Specify task_type",
		},
		{
			name:    "missing token",
			body:    `{"querystring":{"q":"Paris"},"task_type":"upload_history"}`,
			status:  http.StatusBadRequest,
			message: "Bad request: Specify access token",
		},
		{
			name:    "wrong token",
			body:    `{"querystring":{"q":"Paris"},"task_type":"upload_history","token":"nope"}`,
			status:  http.StatusUnauthorized,
			message: "Invalid access token",
		},
		{
			name:    "empty querystring without location",
			body:    `{"querystring":{},"task_type":"upload_history","token":"secret"}`,
			status:  http.StatusBadRequest,
			message: "Bad request: Specify location",
		},
		{
			name:    "unknown task type",
			body:    `{"querystring":{"q":"Paris"},"task_type":"upload_snow","token":"secret"}`,
			status:  http.StatusMethodNotAllowed,
			message: "not allowed method",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp := postTasks(t, app, tc.body)
			if resp.StatusCode != tc.status {
				t.Fatalf("expected status %d, got %d", tc.status, resp.StatusCode)
			}
			body := decodeBody(t, resp)
			if body["error"] != tc.message {
				t.Fatalf("expected error %q, got %v", tc.message, body["error"])
			}
		})
	}
}

// TestDispatchAccepted verifies the 202 path and the job shape handed to the
// dispatcher.
func TestDispatchAccepted(t *testing.T) {
	dispatcher := &fakeDispatcher{taskID: "task-42"}
	app := newTestApp(dispatcher, &fakeStatuses{})

	resp := postTasks(t, app,
		`{"querystring":{"q":"Paris"},"task_type":"upload_history","token":"secret","dates":["2024-01-01","2024-01-02"]}`)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected status %d, got %d", http.StatusAccepted, resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if body["task_id"] != "task-42" {
		t.Fatalf("expected task_id task-42, got %v", body["task_id"])
	}

	if len(dispatcher.jobs) != 1 {
		t.Fatalf("expected one dispatched job, got %d", len(dispatcher.jobs))
	}
	job := dispatcher.jobs[0]
	if job.TaskType != queue.TypeUploadHistory {
		t.Fatalf("unexpected task type %q", job.TaskType)
	}
	if job.Query.Location != "Paris" || job.Query.Lang != "en" {
		t.Fatalf("unexpected query %+v", job.Query)
	}
	if len(job.Dates) != 2 {
		t.Fatalf("expected 2 dates, got %v", job.Dates)
	}
}

// TestDispatchLocationOverride verifies that a top-level location fills an
// otherwise empty querystring.
func TestDispatchLocationOverride(t *testing.T) {
	dispatcher := &fakeDispatcher{taskID: "task-8"}
	app := newTestApp(dispatcher, &fakeStatuses{})

	resp := postTasks(t, app,
		`{"querystring":{},"task_type":"upload_history","token":"secret","location":"Berlin","dates":["2024-01-01"]}`)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected status %d, got %d", http.StatusAccepted, resp.StatusCode)
	}
	if len(dispatcher.jobs) != 1 {
		t.Fatalf("expected one dispatched job, got %d", len(dispatcher.jobs))
	}
	if dispatcher.jobs[0].Query.Location != "Berlin" {
		t.Fatalf("expected location Berlin, got %q", dispatcher.jobs[0].Query.Location)
	}
}

// TestDispatchForecastClampsDays verifies that oversized day counts are
// capped before the job is published.
func TestDispatchForecastClampsDays(t *testing.T) {
	dispatcher := &fakeDispatcher{taskID: "task-7"}
	app := newTestApp(dispatcher, &fakeStatuses{})

	resp := postTasks(t, app,
		`{"querystring":{"q":"Paris"},"task_type":"upload_forecast","token":"secret","days":14}`)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected status %d, got %d", http.StatusAccepted, resp.StatusCode)
	}
	if len(dispatcher.jobs) != 1 {
		t.Fatalf("expected one dispatched job, got %d", len(dispatcher.jobs))
	}
	if dispatcher.jobs[0].Days != 3 {
		t.Fatalf("expected clamped days 3, got %d", dispatcher.jobs[0].Days)
	}
}

// TestDispatchBusy verifies that a flag held elsewhere maps to 201 with the
// processing warning.
func TestDispatchBusy(t *testing.T) {
	dispatcher := &fakeDispatcher{err: coordinator.ErrTaskInProcessing}
	app := newTestApp(dispatcher, &fakeStatuses{})

	resp := postTasks(t, app,
		`{"querystring":{"q":"Paris"},"task_type":"upload_history","token":"secret"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected status %d, got %d", http.StatusCreated, resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if body["warning"] != "task in processing" {
		t.Fatalf("expected processing warning, got %v", body)
	}
}

// TestStatusLookup verifies the status envelope shape.
func TestStatusLookup(t *testing.T) {
	statuses := &fakeStatuses{status: taskstatus.Status{
		TaskStatus: taskstatus.StateSuccess,
		TaskResult: "cached 1 of 1 dates",
	}}
	app := newTestApp(&fakeDispatcher{}, statuses)

	req := httptest.NewRequest(http.MethodGet, "/tasks/task-42", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}

	body := decodeBody(t, resp)
	st, ok := body["current_task_status"].(map[string]any)
	if !ok {
		t.Fatalf("expected current_task_status object, got %v", body)
	}
	if st["task_id"] != "task-42" {
		t.Fatalf("expected task_id task-42, got %v", st["task_id"])
	}
	if st["task_status"] != taskstatus.StateSuccess {
		t.Fatalf("expected status %q, got %v", taskstatus.StateSuccess, st["task_status"])
	}
}
