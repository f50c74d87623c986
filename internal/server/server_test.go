package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskboard/internal/models"
	"taskboard/internal/services/task"
	"taskboard/internal/storage/sqlite"
)

var testNow = time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

func setupServer(t *testing.T, staticDir string) *Server {
	t.Helper()
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "tasks.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	now := func() time.Time { return testNow }
	svc := task.NewService(store, nil, task.Options{DoneColumnID: "done", Now: now})
	srv := New(store, svc, nil, staticDir)
	srv.now = now
	return srv
}

func doRequest(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.Engine().ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

type taskEnvelope struct {
	Task models.Task `json:"task"`
}

type tasksEnvelope struct {
	Tasks []models.Task `json:"tasks"`
	Count int           `json:"count"`
}

type columnsEnvelope struct {
	Columns []models.Column `json:"columns"`
}

func createTask(t *testing.T, srv *Server, body map[string]any) models.Task {
	t.Helper()
	w := doRequest(t, srv, http.MethodPost, "/api/tasks", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[taskEnvelope](t, w).Task
}

// ==================== Health ====================

func TestHealth(t *testing.T) {
	srv := setupServer(t, "")

	w := doRequest(t, srv, http.MethodGet, "/api/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

// ==================== Columns ====================

func TestColumnEndpoints(t *testing.T) {
	srv := setupServer(t, "")

	w := doRequest(t, srv, http.MethodGet, "/api/columns", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[columnsEnvelope](t, w).Columns, len(models.DefaultColumns))

	w = doRequest(t, srv, http.MethodPost, "/api/columns", map[string]any{"name": "Blocked", "color": "#ef4444"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[struct {
		Column models.Column `json:"column"`
	}](t, w).Column
	assert.Equal(t, "Blocked", created.Name)
	assert.Equal(t, int64(3), created.OrderIndex)

	w = doRequest(t, srv, http.MethodPut, "/api/columns/"+created.ID, map[string]any{"name": "Waiting"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"name":"Waiting"`)
	assert.Contains(t, w.Body.String(), `"color":"#ef4444"`)

	w = doRequest(t, srv, http.MethodPut, "/api/columns/reorder", map[string]any{
		"column_orders": []map[string]any{
			{"id": created.ID, "order_index": 0},
			{"id": "todo", "order_index": 3},
		},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	columns := decode[columnsEnvelope](t, w).Columns
	require.Len(t, columns, 4)
	assert.Equal(t, created.ID, columns[0].ID)
	assert.Equal(t, "todo", columns[3].ID)

	w = doRequest(t, srv, http.MethodDelete, "/api/columns/"+created.ID, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestColumnErrors(t *testing.T) {
	srv := setupServer(t, "")
	createTask(t, srv, map[string]any{"title": "Pinned", "column_id": "todo"})

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
	}{
		{"empty name", http.MethodPost, "/api/columns", map[string]any{"name": "  "}, http.StatusBadRequest},
		{"malformed body", http.MethodPost, "/api/columns", "nope", http.StatusBadRequest},
		{"update unknown", http.MethodPut, "/api/columns/missing", map[string]any{"name": "x"}, http.StatusNotFound},
		{"delete unknown", http.MethodDelete, "/api/columns/missing", nil, http.StatusNotFound},
		{"delete with tasks", http.MethodDelete, "/api/columns/todo", nil, http.StatusConflict},
		{"reorder unknown", http.MethodPut, "/api/columns/reorder", map[string]any{
			"column_orders": []map[string]any{{"id": "missing", "order_index": 9}},
		}, http.StatusNotFound},
		{"reorder duplicate", http.MethodPut, "/api/columns/reorder", map[string]any{
			"column_orders": []map[string]any{{"id": "todo", "order_index": 1}},
		}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(t, srv, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			assert.Contains(t, w.Body.String(), `"error"`)
		})
	}
}

// ==================== Tasks ====================

func TestTaskLifecycle(t *testing.T) {
	srv := setupServer(t, "")

	created := createTask(t, srv, map[string]any{
		"title":       "Write report",
		"description": "quarterly numbers",
		"due_date":    "2024-01-10",
		"priority":    "high",
	})
	assert.Equal(t, "todo", created.ColumnID)
	assert.Equal(t, models.PriorityHigh, created.Priority)
	require.NotNil(t, created.DueDate)
	assert.Equal(t, time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC), *created.DueDate)

	w := doRequest(t, srv, http.MethodGet, "/api/tasks/"+created.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, created, decode[taskEnvelope](t, w).Task)

	w = doRequest(t, srv, http.MethodPut, "/api/tasks/"+created.ID, map[string]any{
		"column_id": "in-progress",
		"due_date":  "",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	updated := decode[taskEnvelope](t, w).Task
	assert.Equal(t, "in-progress", updated.ColumnID)
	assert.Nil(t, updated.DueDate)
	assert.Equal(t, "Write report", updated.Title)

	w = doRequest(t, srv, http.MethodPost, "/api/tasks/"+created.ID+"/complete", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	done := decode[taskEnvelope](t, w).Task
	assert.Equal(t, "done", done.ColumnID)
	require.NotNil(t, done.CompletedAt)
	assert.Equal(t, testNow, *done.CompletedAt)

	w = doRequest(t, srv, http.MethodGet, "/api/tasks?column=done", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[tasksEnvelope](t, w).Tasks, 1)

	w = doRequest(t, srv, http.MethodDelete, "/api/tasks/"+created.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(t, srv, http.MethodGet, "/api/tasks/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTaskScheduleFields(t *testing.T) {
	srv := setupServer(t, "")

	created := createTask(t, srv, map[string]any{
		"title":            "Swim",
		"due_date":         "2024-01-01",
		"duration_hours":   1,
		"duration_minutes": 15,
		"start_time":       "07:00",
		"end_time":         "08:15",
		"recurrence":       map[string]any{"unit": "weekly"},
	})
	require.NotNil(t, created.DurationHours)
	assert.Equal(t, 1, *created.DurationHours)
	require.NotNil(t, created.DurationMinutes)
	assert.Equal(t, 15, *created.DurationMinutes)
	require.NotNil(t, created.StartTime)
	assert.Equal(t, "07:00", *created.StartTime)

	w := doRequest(t, srv, http.MethodPost, "/api/tasks/"+created.ID+"/materialize?as_of=2024-01-08", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	occurrences := decode[tasksEnvelope](t, w).Tasks
	require.Len(t, occurrences, 1)
	assert.Equal(t, created.DurationHours, occurrences[0].DurationHours)
	assert.Equal(t, created.EndTime, occurrences[0].EndTime)

	w = doRequest(t, srv, http.MethodPut, "/api/tasks/"+created.ID, map[string]any{
		"duration_hours": 0,
		"end_time":       "",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	updated := decode[taskEnvelope](t, w).Task
	assert.Nil(t, updated.DurationHours)
	assert.Nil(t, updated.EndTime)
	assert.Equal(t, created.StartTime, updated.StartTime)

	w = doRequest(t, srv, http.MethodPut, "/api/tasks/"+created.ID, map[string]any{"duration_minutes": 90})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = doRequest(t, srv, http.MethodPut, "/api/tasks/"+created.ID, map[string]any{"end_time": "06:00"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateTaskRejections(t *testing.T) {
	srv := setupServer(t, "")

	tests := []struct {
		name string
		body map[string]any
	}{
		{"missing title", map[string]any{"description": "no title"}},
		{"unknown priority", map[string]any{"title": "x", "priority": "urgent"}},
		{"bad due date", map[string]any{"title": "x", "due_date": "10/01/2024"}},
		{"unknown column", map[string]any{"title": "x", "column_id": "nowhere"}},
		{"zero interval", map[string]any{"title": "x", "recurrence": map[string]any{"unit": "daily", "interval": 0}}},
		{"unknown unit", map[string]any{"title": "x", "recurrence": map[string]any{"unit": "hourly"}}},
		{"weekday out of range", map[string]any{"title": "x", "recurrence": map[string]any{"unit": "weekly", "weekdays": []int{7}}}},
		{"bad end date", map[string]any{"title": "x", "recurrence": map[string]any{"unit": "daily", "end_date": "soon"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(t, srv, http.MethodPost, "/api/tasks", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
		})
	}

	w := doRequest(t, srv, http.MethodGet, "/api/tasks", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[tasksEnvelope](t, w).Tasks, "rejected requests must not persist anything")
}

func TestUpdateUnknownTask(t *testing.T) {
	srv := setupServer(t, "")

	w := doRequest(t, srv, http.MethodPut, "/api/tasks/missing", map[string]any{"title": "x"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doRequest(t, srv, http.MethodGet, "/api/tasks?recurring=maybe", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// ==================== Recurrence ====================

func TestRecurringTaskEndpoints(t *testing.T) {
	srv := setupServer(t, "")

	parent := createTask(t, srv, map[string]any{
		"title":    "Water plants",
		"due_date": "2024-01-01",
		"recurrence": map[string]any{
			"unit":            "daily",
			"interval":        2,
			"max_occurrences": 4,
		},
	})
	require.True(t, parent.IsRecurring)
	require.NotNil(t, parent.Recurrence)
	assert.Equal(t, 2, parent.Recurrence.Interval)

	w := doRequest(t, srv, http.MethodGet, "/api/tasks/"+parent.ID+"/occurrences?from=2024-01-01&to=2024-01-06", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	preview := decode[struct {
		Occurrences []time.Time `json:"occurrences"`
	}](t, w)
	assert.Equal(t, []time.Time{
		time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC),
	}, preview.Occurrences)

	w = doRequest(t, srv, http.MethodPost, "/api/tasks/generate-recurring?as_of=2024-01-06T00:00:00Z", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	first := decode[tasksEnvelope](t, w)
	assert.Equal(t, 2, first.Count)
	assert.Contains(t, w.Body.String(), "Generated 2 recurring tasks")

	w = doRequest(t, srv, http.MethodPost, "/api/tasks/generate-recurring?as_of=2024-01-06T00:00:00Z", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, decode[tasksEnvelope](t, w).Count, "repeating the same as_of creates nothing")

	w = doRequest(t, srv, http.MethodPost, "/api/tasks/"+parent.ID+"/materialize?as_of=2024-02-01", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	second := decode[tasksEnvelope](t, w)
	require.Equal(t, 2, second.Count, "max_occurrences caps the series across batches")
	assert.Equal(t, time.Date(2024, 1, 9, 0, 0, 0, 0, time.UTC), *second.Tasks[1].DueDate)

	w = doRequest(t, srv, http.MethodGet, "/api/tasks?parent="+parent.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	children := decode[tasksEnvelope](t, w).Tasks
	require.Len(t, children, 4)
	for _, child := range children {
		assert.False(t, child.IsRecurring)
		require.NotNil(t, child.ParentTaskID)
		assert.Equal(t, parent.ID, *child.ParentTaskID)
	}
}

func TestRecurrenceErrors(t *testing.T) {
	srv := setupServer(t, "")
	plain := createTask(t, srv, map[string]any{"title": "One-off"})

	w := doRequest(t, srv, http.MethodPost, "/api/tasks/"+plain.ID+"/materialize", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(t, srv, http.MethodGet, "/api/tasks/"+plain.ID+"/occurrences", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(t, srv, http.MethodPost, "/api/tasks/missing/materialize", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doRequest(t, srv, http.MethodPost, "/api/tasks/generate-recurring?as_of=yesterday", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(t, srv, http.MethodGet, "/api/tasks/"+plain.ID+"/occurrences?from=2024-02-01&to=2024-01-01", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPreview(t *testing.T) {
	srv := setupServer(t, "")

	w := doRequest(t, srv, http.MethodPost, "/api/recurrence/preview", map[string]any{
		"base":       "2024-01-31",
		"recurrence": map[string]any{"unit": "monthly"},
		"to":         "2024-04-30",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	out := decode[struct {
		Occurrences []time.Time `json:"occurrences"`
		DTStart     time.Time   `json:"dtstart"`
		RRule       string      `json:"rrule"`
		RDates      []time.Time `json:"rdates"`
	}](t, w)
	assert.Equal(t, []time.Time{
		time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 4, 30, 0, 0, 0, 0, time.UTC),
	}, out.Occurrences)
	assert.Equal(t, "FREQ=MONTHLY;INTERVAL=1;WKST=SU;BYSETPOS=-1;BYMONTHDAY=28,29,30,31", out.RRule)
	assert.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), out.DTStart)
	assert.Empty(t, out.RDates)

	w = doRequest(t, srv, http.MethodPost, "/api/recurrence/preview", map[string]any{
		"base":       "2024-01-01",
		"recurrence": map[string]any{"unit": "monthly", "month_days": []int{}},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(t, srv, http.MethodPost, "/api/recurrence/preview", map[string]any{
		"recurrence": map[string]any{"unit": "daily"},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code, "base is required")
}

// ==================== Export ====================

func TestExport(t *testing.T) {
	srv := setupServer(t, "")
	createTask(t, srv, map[string]any{"title": "Exported", "due_date": "2024-03-01"})

	w := doRequest(t, srv, http.MethodGet, "/api/export", nil)
	require.Equal(t, http.StatusOK, w.Code)
	out := decode[struct {
		Columns    []models.Column `json:"columns"`
		Tasks      []models.Task   `json:"tasks"`
		ExportDate time.Time       `json:"export_date"`
	}](t, w)
	assert.Len(t, out.Columns, 3)
	require.Len(t, out.Tasks, 1)
	assert.Equal(t, "Exported", out.Tasks[0].Title)
	assert.Equal(t, testNow, out.ExportDate)

	w = doRequest(t, srv, http.MethodGet, "/api/calendar.ics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasPrefix(w.Header().Get("Content-Type"), "text/calendar"))
	body := w.Body.String()
	assert.Contains(t, body, "BEGIN:VCALENDAR")
	assert.Contains(t, body, "SUMMARY:Exported")
}

// ==================== Static ====================

func TestStaticFallback(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html>board</html>"), 0o644))
	srv := setupServer(t, dir)

	w := doRequest(t, srv, http.MethodGet, "/calendar", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "board")

	w = doRequest(t, srv, http.MethodGet, "/api/nothing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":"endpoint not found"}`, w.Body.String())
}

func TestAPIOnlyMode(t *testing.T) {
	srv := setupServer(t, "")

	w := doRequest(t, srv, http.MethodGet, "/calendar", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, statusFor(sqlite.ErrTaskNotFound))
	assert.Equal(t, http.StatusConflict, statusFor(sqlite.ErrColumnHasTasks))
	assert.Equal(t, http.StatusBadRequest, statusFor(task.ErrEmptyTitle))
	assert.Equal(t, http.StatusInternalServerError, statusFor(context.DeadlineExceeded))
}
