package web_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/caseway/caseway/pkg/engine"
	"github.com/caseway/caseway/pkg/models"
	"github.com/caseway/caseway/pkg/persistence/file"
	"github.com/caseway/caseway/pkg/services"
	"github.com/caseway/caseway/pkg/testutil"
	"github.com/caseway/caseway/pkg/web"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestApp(t *testing.T) *fiber.App {
	t.Helper()

	store := file.NewPersistence(t.TempDir())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	eng := engine.New(engine.Config{Persistence: store, Logger: logger})
	handlers := web.NewAPIHandlers(
		services.NewDefinition(store),
		services.NewRuntime(store, eng),
		validator.New(validator.WithRequiredStructEnabled()),
	)

	app := fiber.New()

	d := app.Group("/definitions")
	d.Get("/", handlers.GetDefinitions)
	d.Post("/", handlers.DeployDefinition)
	d.Get("/:id", handlers.GetDefinition)
	d.Delete("/:id", handlers.DeleteDefinition)
	d.Post("/:id/instances", handlers.StartInstance)

	i := app.Group("/instances")
	i.Get("/", handlers.GetInstances)
	i.Get("/:id", handlers.GetInstance)
	i.Get("/:id/history", handlers.GetInstanceHistory)
	i.Get("/:id/tasks", handlers.GetInstanceTasks)
	i.Post("/:id/terminate", handlers.TerminateInstance)
	i.Post("/:id/suspend", handlers.SuspendInstance)
	i.Post("/:id/resume", handlers.ResumeInstance)

	tasks := app.Group("/tasks")
	tasks.Get("/:id", handlers.GetTask)
	tasks.Post("/:id/claim", handlers.ClaimTask)
	tasks.Post("/:id/release", handlers.ReleaseTask)
	tasks.Post("/:id/complete", handlers.CompleteTask)

	return app
}

func jsonRequest(t *testing.T, app *fiber.App, method, path string, payload any) *http.Response {
	t.Helper()

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, body)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := app.Test(req)
	require.NoError(t, err)

	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()

	var out T

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &out))

	return out
}

func deployRequest() web.DeployDefinitionRequest {
	return web.DeployDefinitionRequest{
		Name: "Expense approval",
		Steps: []models.Step{
			testutil.StartStep("s"),
			testutil.HumanStep("review", "Review expense"),
			testutil.EndStep("end"),
		},
		Links: []models.Link{
			testutil.LinkTo("s", "review"),
			testutil.LinkTo("review", "end"),
		},
	}
}

func TestDeployDefinition(t *testing.T) {
	app := setupTestApp(t)

	resp := jsonRequest(t, app, http.MethodPost, "/definitions/", deployRequest())
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	def := decode[models.ProcessDefinition](t, resp)
	assert.NotEmpty(t, def.ID)
	assert.Equal(t, "Expense approval", def.Name)
	assert.True(t, def.Active)
}

func TestDeployDefinition_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*web.DeployDefinitionRequest)
		wantMsg string
	}{
		{
			name:   "missing name",
			mutate: func(r *web.DeployDefinitionRequest) { r.Name = "" },
		},
		{
			name:   "no steps",
			mutate: func(r *web.DeployDefinitionRequest) { r.Steps = nil },
		},
		{
			name: "bad guard",
			mutate: func(r *web.DeployDefinitionRequest) {
				r.Links[0].Guard = "((("
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := setupTestApp(t)
			req := deployRequest()
			tt.mutate(&req)

			resp := jsonRequest(t, app, http.MethodPost, "/definitions/", req)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestStartInstanceAndCompleteTask(t *testing.T) {
	app := setupTestApp(t)

	resp := jsonRequest(t, app, http.MethodPost, "/definitions/", deployRequest())
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	def := decode[models.ProcessDefinition](t, resp)

	resp = jsonRequest(t, app, http.MethodPost, "/definitions/"+def.ID+"/instances",
		web.StartInstanceRequest{Variables: map[string]any{"amount": 99}})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	instance := decode[models.ProcessInstance](t, resp)
	assert.Equal(t, models.InstanceStatusActive, instance.Status)

	resp = jsonRequest(t, app, http.MethodGet, "/instances/"+instance.ID+"/tasks", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	taskList := decode[map[string][]models.Task](t, resp)
	require.Len(t, taskList["tasks"], 1)
	taskID := taskList["tasks"][0].ID

	resp = jsonRequest(t, app, http.MethodPost, "/tasks/"+taskID+"/claim",
		web.ClaimTaskRequest{UserID: "alice"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = jsonRequest(t, app, http.MethodPost, "/tasks/"+taskID+"/complete",
		web.CompleteTaskRequest{Performer: "alice", Variables: map[string]any{"approved": true}})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = jsonRequest(t, app, http.MethodGet, "/instances/"+instance.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	final := decode[models.ProcessInstance](t, resp)
	assert.Equal(t, models.InstanceStatusCompleted, final.Status)

	// Completing a closed task conflicts.
	resp = jsonRequest(t, app, http.MethodPost, "/tasks/"+taskID+"/complete", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestStartInstance_UnknownDefinition(t *testing.T) {
	app := setupTestApp(t)

	resp := jsonRequest(t, app, http.MethodPost, "/definitions/missing/instances", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGetInstance_NotFound(t *testing.T) {
	app := setupTestApp(t)

	resp := jsonRequest(t, app, http.MethodGet, "/instances/missing", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGetInstances_UnknownStatus(t *testing.T) {
	app := setupTestApp(t)

	resp := jsonRequest(t, app, http.MethodGet, "/instances/?status=archived", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSuspendResumeEndpoints(t *testing.T) {
	app := setupTestApp(t)

	resp := jsonRequest(t, app, http.MethodPost, "/definitions/", deployRequest())
	def := decode[models.ProcessDefinition](t, resp)

	resp = jsonRequest(t, app, http.MethodPost, "/definitions/"+def.ID+"/instances", nil)
	instance := decode[models.ProcessInstance](t, resp)

	resp = jsonRequest(t, app, http.MethodPost, "/instances/"+instance.ID+"/suspend", nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	// Suspending twice conflicts.
	resp = jsonRequest(t, app, http.MethodPost, "/instances/"+instance.ID+"/suspend", nil)
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = jsonRequest(t, app, http.MethodPost, "/instances/"+instance.ID+"/resume", nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = jsonRequest(t, app, http.MethodPost, "/instances/"+instance.ID+"/terminate",
		web.TerminateInstanceRequest{Reason: "withdrawn"})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = jsonRequest(t, app, http.MethodGet, "/instances/"+instance.ID, nil)
	final := decode[models.ProcessInstance](t, resp)
	assert.Equal(t, models.InstanceStatusTerminated, final.Status)
}
