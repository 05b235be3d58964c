package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HenryGill4/OpCentrix-sub006/internal/application"
	"github.com/HenryGill4/OpCentrix-sub006/internal/domain"
	"github.com/HenryGill4/OpCentrix-sub006/internal/infrastructure/lock"
	"github.com/HenryGill4/OpCentrix-sub006/internal/infrastructure/memory"
	"github.com/HenryGill4/OpCentrix-sub006/pkg/errors"
	"github.com/HenryGill4/OpCentrix-sub006/pkg/logging"
	"github.com/HenryGill4/OpCentrix-sub006/pkg/middleware"
)

var day = time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

func hour(h int) time.Time {
	return day.Add(time.Duration(h) * time.Hour)
}

func seededRepositories() (*memory.Store, application.Repositories) {
	store := memory.NewStore()
	store.SeedMachines(
		&domain.Machine{
			MachineID:            "TI1",
			Name:                 "TruPrint 3000 #1",
			CurrentMaterial:      string(domain.MaterialTi64Grade5),
			SupportedMaterials:   []domain.Material{domain.MaterialTi64Grade5, domain.MaterialInconel718},
			IsActive:             true,
			Priority:             1,
			OperatingCostPerHour: 100,
		},
		&domain.Machine{
			MachineID:       "IN1",
			Name:            "TruPrint 3000 #2",
			CurrentMaterial: string(domain.MaterialInconel718),
			IsActive:        true,
			Priority:        2,
		},
	)
	store.SeedStages(
		&domain.ProductionStage{StageID: "sls", Name: "SLS Printing", DisplayOrder: 1, IsActive: true},
		&domain.ProductionStage{StageID: "post", Name: "Post-processing", DisplayOrder: 2, IsActive: true},
	)
	store.SeedRequirements("P1",
		domain.PartStageRequirement{StageID: "sls", ExecutionOrder: 1, EstimatedHours: 4},
		domain.PartStageRequirement{StageID: "post", ExecutionOrder: 2, EstimatedHours: 2},
	)
	return store, application.Repositories{
		Jobs:       store.Jobs(),
		Machines:   store.Machines(),
		Parts:      store.Parts(),
		Stages:     store.Stages(),
		Executions: store.Executions(),
	}
}

func newTestRouter(repos application.Repositories) *gin.Engine {
	gin.SetMode(gin.TestMode)
	middleware.InitValidator(Validations()...)

	logger := logging.NewNop()
	locker := lock.NewKeyedLocker()
	engine := application.NewEngine(application.DefaultEngineConfig(), repos.Machines)
	service := application.NewSchedulingService(repos, engine, locker, nil, logger)
	tracker := application.NewStageExecutionTracker(repos, engine.Changeover, locker, nil, logger)

	router := gin.New()
	SetupRoutes(router, NewHandlers(service, tracker, logger))
	return router
}

func requestJSON(t *testing.T, router *gin.Engine, method, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()

	var body *bytes.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, body)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func jobBody(id, machine string, startHour, endHour int) map[string]any {
	return map[string]any{
		"jobId":          id,
		"machineId":      machine,
		"partId":         "P1",
		"partNumber":     "BRKT-001",
		"scheduledStart": hour(startHour),
		"scheduledEnd":   hour(endHour),
		"slsParameters": map[string]any{
			"laserPowerWatts":         200,
			"scanSpeedMmPerSec":       1200,
			"layerThicknessMicrons":   30,
			"hatchSpacingMicrons":     120,
			"buildTemperatureCelsius": 180,
			"argonPurityPercent":      99.99,
			"oxygenContentPpm":        50,
			"slsMaterial":             string(domain.MaterialTi64Grade5),
		},
	}
}

func TestScheduleJobHandler(t *testing.T) {
	_, repos := seededRepositories()
	router := newTestRouter(repos)

	resp := requestJSON(t, router, http.MethodPost, "/api/v1/jobs", jobBody("J1", "TI1", 8, 12))
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	created := decode[application.ScheduleJobResult](t, resp)
	require.NotNil(t, created.Job)
	assert.Equal(t, "J1", created.Job.JobID)
	assert.Equal(t, "Scheduled", created.Job.Status)
	assert.True(t, created.Validation.OK)

	t.Run("overlap is a conflict", func(t *testing.T) {
		resp := requestJSON(t, router, http.MethodPost, "/api/v1/jobs", jobBody("J2", "TI1", 10, 14))
		require.Equal(t, http.StatusConflict, resp.Code)
		result := decode[application.ScheduleJobResult](t, resp)
		assert.Nil(t, result.Job)
		assert.False(t, result.Validation.OK)
		assert.NotEmpty(t, result.Validation.Errors)
	})

	t.Run("touching job is accepted", func(t *testing.T) {
		resp := requestJSON(t, router, http.MethodPost, "/api/v1/jobs", jobBody("J3", "TI1", 12, 16))
		assert.Equal(t, http.StatusCreated, resp.Code)
	})

	t.Run("bad parameters are unprocessable", func(t *testing.T) {
		body := jobBody("J4", "TI1", 20, 22)
		body["slsParameters"].(map[string]any)["laserPowerWatts"] = 0
		resp := requestJSON(t, router, http.MethodPost, "/api/v1/jobs", body)
		require.Equal(t, http.StatusUnprocessableEntity, resp.Code)
		result := decode[application.ScheduleJobResult](t, resp)
		assert.Contains(t, strings.Join(result.Validation.Errors, "\n"), "Laser power")
	})

	t.Run("duplicate id", func(t *testing.T) {
		resp := requestJSON(t, router, http.MethodPost, "/api/v1/jobs", jobBody("J1", "TI1", 30, 34))
		assert.Equal(t, http.StatusConflict, resp.Code)
		apiErr := decode[middleware.APIErrorResponse](t, resp)
		assert.Equal(t, errors.CodeConflict, apiErr.Code)
	})

	t.Run("unknown machine", func(t *testing.T) {
		resp := requestJSON(t, router, http.MethodPost, "/api/v1/jobs", jobBody("J5", "GHOST", 8, 12))
		assert.Equal(t, http.StatusNotFound, resp.Code)
	})

	t.Run("missing fields", func(t *testing.T) {
		resp := requestJSON(t, router, http.MethodPost, "/api/v1/jobs", map[string]any{"jobId": "J6"})
		require.Equal(t, http.StatusBadRequest, resp.Code)
		apiErr := decode[middleware.APIErrorResponse](t, resp)
		assert.Equal(t, errors.CodeValidationError, apiErr.Code)
		assert.Contains(t, apiErr.Details, "machineId")
		assert.Contains(t, apiErr.Details, "scheduledStart")
	})

	t.Run("get job", func(t *testing.T) {
		resp := requestJSON(t, router, http.MethodGet, "/api/v1/jobs/J1", nil)
		require.Equal(t, http.StatusOK, resp.Code)
		job := decode[application.JobDTO](t, resp)
		assert.Equal(t, 4.0, job.DurationHours)

		resp = requestJSON(t, router, http.MethodGet, "/api/v1/jobs/nope", nil)
		assert.Equal(t, http.StatusNotFound, resp.Code)
	})
}

func TestValidateJobHandler(t *testing.T) {
	store, repos := seededRepositories()
	existing, err := domain.NewJob("J1", "TI1", "P1", domain.NewTimeRange(hour(8), hour(12)), hour(0))
	require.NoError(t, err)
	store.SeedJobs(existing)
	router := newTestRouter(repos)

	resp := requestJSON(t, router, http.MethodPost, "/api/v1/schedule/validate", jobBody("", "TI1", 11, 13))
	require.Equal(t, http.StatusOK, resp.Code)
	result := decode[application.ValidationResultDTO](t, resp)
	assert.False(t, result.OK)
	assert.True(t, result.HasConflicts())

	resp = requestJSON(t, router, http.MethodPost, "/api/v1/schedule/validate", jobBody("", "TI1", 12, 13))
	require.Equal(t, http.StatusOK, resp.Code)
	assert.True(t, decode[application.ValidationResultDTO](t, resp).OK)

	// nothing was stored
	jobs, err := repos.Jobs.FindByMachine(context.Background(), "TI1", domain.NewTimeRange(hour(0), hour(24)))
	require.NoError(t, err)
	assert.Len(t, jobs, 1)
}

func TestSchedulerViewHandler(t *testing.T) {
	_, repos := seededRepositories()
	router := newTestRouter(repos)

	tests := []struct {
		name     string
		query    string
		wantCode int
	}{
		{"day view", "mode=day&start=2025-03-10", http.StatusOK},
		{"hour view with timestamp", "mode=HOUR&start=2025-03-10T08:00:00Z", http.StatusOK},
		{"default mode", "start=2025-03-10", http.StatusOK},
		{"unknown mode", "mode=month", http.StatusBadRequest},
		{"bad start", "mode=day&start=yesterday", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := requestJSON(t, router, http.MethodGet, "/api/v1/schedule/view?"+tt.query, nil)
			assert.Equal(t, tt.wantCode, resp.Code, resp.Body.String())
		})
	}

	resp := requestJSON(t, router, http.MethodGet, "/api/v1/schedule/view?mode=day&start=2025-03-10", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	view := decode[map[string]any](t, resp)
	assert.Equal(t, "day", view["mode"])
}

func TestMachineRowHandler(t *testing.T) {
	store, repos := seededRepositories()
	for _, w := range [][2]int{{8, 12}, {10, 14}} {
		j := &domain.Job{
			JobID:          fmt.Sprintf("J%d", w[0]),
			MachineID:      "TI1",
			PartID:         "P1",
			ScheduledStart: hour(w[0]),
			ScheduledEnd:   hour(w[1]),
			Status:         domain.JobStatusScheduled,
			Quantity:       1,
		}
		store.SeedJobs(j)
	}
	router := newTestRouter(repos)

	q := url.Values{}
	q.Set("from", "2025-03-10")
	q.Set("to", "2025-03-11")
	resp := requestJSON(t, router, http.MethodGet, "/api/v1/machines/TI1/row?"+q.Encode(), nil)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	row := decode[application.MachineRowDTO](t, resp)
	assert.Equal(t, 2, row.MaxLayers)
	assert.Len(t, row.Jobs, 2)

	resp = requestJSON(t, router, http.MethodGet, "/api/v1/machines/TI1/row?from=2025-03-10", nil)
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = requestJSON(t, router, http.MethodGet, "/api/v1/machines/TI1/row?from=2025-03-11&to=2025-03-10", nil)
	require.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, "BAD_REQUEST", decode[middleware.APIErrorResponse](t, resp).Code)

	resp = requestJSON(t, router, http.MethodGet, "/api/v1/machines/TI1/row?from=yesterday&to=2025-03-10", nil)
	require.Equal(t, http.StatusBadRequest, resp.Code)
	apiErr := decode[middleware.APIErrorResponse](t, resp)
	assert.Equal(t, "VALIDATION_ERROR", apiErr.Code)
	assert.Contains(t, apiErr.Details["from"], `"yesterday"`)

	resp = requestJSON(t, router, http.MethodGet, "/api/v1/machines/GHOST/row?"+q.Encode(), nil)
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestChangeoverHandler(t *testing.T) {
	_, repos := seededRepositories()
	router := newTestRouter(repos)

	tests := []struct {
		name        string
		machine     string
		from, to    string
		wantCode    int
		wantMinutes int
	}{
		{"cross family", "TI1", string(domain.MaterialTi64Grade5), string(domain.MaterialInconel718), http.StatusOK, 180},
		{"same family", "TI1", string(domain.MaterialTi64Grade5), string(domain.MaterialTi64ELIGrade23), http.StatusOK, 45},
		{"same material", "TI1", string(domain.MaterialTi64Grade5), string(domain.MaterialTi64Grade5), http.StatusOK, 0},
		{"loaded material is the default from", "IN1", "", string(domain.MaterialTi64Grade5), http.StatusOK, 180},
		{"unknown machine", "GHOST", string(domain.MaterialTi64Grade5), string(domain.MaterialInconel718), http.StatusNotFound, 0},
		{"missing to", "TI1", string(domain.MaterialTi64Grade5), "", http.StatusBadRequest, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := url.Values{}
			if tt.from != "" {
				q.Set("from", tt.from)
			}
			if tt.to != "" {
				q.Set("to", tt.to)
			}
			resp := requestJSON(t, router, http.MethodGet, "/api/v1/machines/"+tt.machine+"/changeover?"+q.Encode(), nil)
			require.Equal(t, tt.wantCode, resp.Code, resp.Body.String())
			if tt.wantCode == http.StatusOK {
				assert.Equal(t, tt.wantMinutes, decode[application.ChangeoverDTO](t, resp).Minutes)
			}
		})
	}
}

func TestListMachinesHandler(t *testing.T) {
	_, repos := seededRepositories()
	router := newTestRouter(repos)

	resp := requestJSON(t, router, http.MethodGet, "/api/v1/machines", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	body := decode[struct {
		Machines []application.MachineDTO `json:"machines"`
		Count    int                      `json:"count"`
	}](t, resp)
	require.Equal(t, 2, body.Count)
	assert.Equal(t, "TI1", body.Machines[0].MachineID)
}

type failingMachineRepo struct {
	domain.MachineRepository
}

func (failingMachineRepo) FindAll(context.Context) ([]*domain.Machine, error) {
	return nil, domain.ErrRepositoryUnavailable
}

func TestListMachinesHandler_RepositoryDown(t *testing.T) {
	_, repos := seededRepositories()
	repos.Machines = failingMachineRepo{MachineRepository: repos.Machines}
	router := newTestRouter(repos)

	resp := requestJSON(t, router, http.MethodGet, "/api/v1/machines", nil)
	require.Equal(t, http.StatusServiceUnavailable, resp.Code)
	apiErr := decode[middleware.APIErrorResponse](t, resp)
	assert.Equal(t, errors.CodeServiceUnavailable, apiErr.Code)
}

func TestPunchHandlers(t *testing.T) {
	store, repos := seededRepositories()
	job, err := domain.NewJob("J1", "TI1", "P1", domain.NewTimeRange(hour(8), hour(12)), hour(0))
	require.NoError(t, err)
	job.SlsMaterial = string(domain.MaterialTi64Grade5)
	store.SeedJobs(job)
	router := newTestRouter(repos)

	resp := requestJSON(t, router, http.MethodPost, "/api/v1/jobs/J1/stages/sls/punch-in", map[string]any{"operatorName": "Ada Lovelace"})
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	in := decode[application.PunchResult](t, resp)
	assert.True(t, in.OK)
	require.NotNil(t, in.Execution)
	assert.Equal(t, "Ada Lovelace", in.Execution.OperatorName)

	t.Run("second operator on the same stage", func(t *testing.T) {
		resp := requestJSON(t, router, http.MethodPost, "/api/v1/jobs/J1/stages/sls/punch-in", map[string]any{"operatorName": "Grace Hopper"})
		require.Equal(t, http.StatusConflict, resp.Code)
		assert.Equal(t, application.PunchStageActive, decode[application.PunchResult](t, resp).Reason)
	})

	t.Run("unknown job", func(t *testing.T) {
		resp := requestJSON(t, router, http.MethodPost, "/api/v1/jobs/NOPE/stages/sls/punch-in", map[string]any{"operatorName": "Grace Hopper"})
		require.Equal(t, http.StatusNotFound, resp.Code)
		assert.Equal(t, application.PunchNotFound, decode[application.PunchResult](t, resp).Reason)
	})

	t.Run("missing operator", func(t *testing.T) {
		resp := requestJSON(t, router, http.MethodPost, "/api/v1/jobs/J1/stages/post/punch-in", map[string]any{})
		assert.Equal(t, http.StatusBadRequest, resp.Code)
	})

	t.Run("delete is refused while a stage is active", func(t *testing.T) {
		resp := requestJSON(t, router, http.MethodDelete, "/api/v1/jobs/J1", nil)
		assert.Equal(t, http.StatusConflict, resp.Code)
	})

	resp = requestJSON(t, router, http.MethodPost, "/api/v1/jobs/J1/stages/sls/punch-out", nil)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	out := decode[application.PunchResult](t, resp)
	assert.True(t, out.OK)
	assert.Equal(t, "post", out.NextStageID)

	resp = requestJSON(t, router, http.MethodPost, "/api/v1/jobs/J1/stages/sls/punch-out", map[string]any{"notes": "again"})
	require.Equal(t, http.StatusConflict, resp.Code)
	assert.Equal(t, application.PunchNotActive, decode[application.PunchResult](t, resp).Reason)

	resp = requestJSON(t, router, http.MethodGet, "/api/v1/jobs/J1/executions", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	executions := decode[struct {
		Executions []application.ExecutionDTO `json:"executions"`
		Count      int                        `json:"count"`
	}](t, resp)
	require.Equal(t, 1, executions.Count)
	assert.Equal(t, "Completed", executions.Executions[0].Status)

	resp = requestJSON(t, router, http.MethodDelete, "/api/v1/jobs/J1", nil)
	assert.Equal(t, http.StatusNoContent, resp.Code)
	resp = requestJSON(t, router, http.MethodGet, "/api/v1/jobs/J1", nil)
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestEstimateAndCompatibilityHandlers(t *testing.T) {
	store, repos := seededRepositories()
	job, err := domain.NewJob("J1", "IN1", "P1", domain.NewTimeRange(hour(8), hour(12)), hour(0))
	require.NoError(t, err)
	job.SLSParameters = domain.SLSParameters{
		LaserPowerWatts:       200,
		ScanSpeedMmPerSec:     1200,
		LayerThicknessMicrons: 30,
		SlsMaterial:           string(domain.MaterialTi64Grade5),
	}
	store.SeedJobs(job)
	router := newTestRouter(repos)

	resp := requestJSON(t, router, http.MethodPost, "/api/v1/jobs/J1/estimate", nil)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	estimate := decode[application.CostEstimateDTO](t, resp)
	assert.Equal(t, "J1", estimate.JobID)
	assert.Equal(t, 180, estimate.ChangeoverMinutes)
	assert.NotEmpty(t, estimate.Total)

	resp = requestJSON(t, router, http.MethodGet, "/api/v1/jobs/J1/compatibility", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	compat := decode[application.CompatibilityDTO](t, resp)
	assert.Equal(t, "IN1", compat.MachineID)

	resp = requestJSON(t, router, http.MethodPost, "/api/v1/jobs/NOPE/estimate", nil)
	assert.Equal(t, http.StatusNotFound, resp.Code)
}
