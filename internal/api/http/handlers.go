package http

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/HenryGill4/OpCentrix-sub006/internal/application"
	"github.com/HenryGill4/OpCentrix-sub006/internal/domain"
	"github.com/HenryGill4/OpCentrix-sub006/internal/scheduling"
	"github.com/HenryGill4/OpCentrix-sub006/pkg/logging"
	"github.com/HenryGill4/OpCentrix-sub006/pkg/middleware"
)

// Handlers holds the HTTP handlers for the scheduling service
type Handlers struct {
	service *application.SchedulingService
	tracker *application.StageExecutionTracker
	logger  *logging.Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(service *application.SchedulingService, tracker *application.StageExecutionTracker, logger *logging.Logger) *Handlers {
	return &Handlers{service: service, tracker: tracker, logger: logger}
}

// Validations are the request tags this API registers on gin's validator.
func Validations() []middleware.CustomValidation {
	return []middleware.CustomValidation{
		{
			Tag: "viewmode",
			Fn: func(fl validator.FieldLevel) bool {
				_, err := scheduling.ParseViewMode(fl.Field().String())
				return err == nil
			},
			Message: "must be one of: week, day, hour",
		},
	}
}

func (h *Handlers) responder(c *gin.Context) *middleware.ErrorResponder {
	return middleware.NewErrorResponder(c, h.logger.Logger)
}

// JobRequest is the body of POST /jobs and POST /schedule/validate
type JobRequest struct {
	JobID          string                       `json:"jobId" binding:"omitempty,max=64"`
	MachineID      string                       `json:"machineId" binding:"required"`
	PartID         string                       `json:"partId" binding:"required"`
	PartNumber     string                       `json:"partNumber"`
	ScheduledStart time.Time                    `json:"scheduledStart" binding:"required"`
	ScheduledEnd   time.Time                    `json:"scheduledEnd" binding:"required"`
	Quantity       int                          `json:"quantity" binding:"gte=0"`
	Priority       int                          `json:"priority" binding:"gte=0"`
	Parameters     application.SLSParametersDTO `json:"slsParameters"`
	Costs          application.CostInputsDTO    `json:"costInputs"`
}

func (r JobRequest) command() application.ScheduleJobCommand {
	return application.ScheduleJobCommand{
		JobID:          strings.TrimSpace(r.JobID),
		MachineID:      r.MachineID,
		PartID:         r.PartID,
		PartNumber:     r.PartNumber,
		ScheduledStart: r.ScheduledStart,
		ScheduledEnd:   r.ScheduledEnd,
		Quantity:       r.Quantity,
		Priority:       r.Priority,
		Parameters:     domain.SLSParameters(r.Parameters),
		Costs:          domain.CostInputs(r.Costs),
	}
}

// ValidateJob handles POST /api/v1/schedule/validate
func (h *Handlers) ValidateJob(c *gin.Context) {
	responder := h.responder(c)

	var req JobRequest
	if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
		responder.RespondWithAppError(appErr)
		return
	}

	result, err := h.service.ValidateJob(c.Request.Context(), req.command())
	if err != nil {
		responder.RespondWithError(err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// ScheduleJob handles POST /api/v1/jobs
func (h *Handlers) ScheduleJob(c *gin.Context) {
	responder := h.responder(c)

	var req JobRequest
	if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
		responder.RespondWithAppError(appErr)
		return
	}

	result, err := h.service.ScheduleJob(c.Request.Context(), req.command())
	if err != nil {
		responder.RespondWithError(err)
		return
	}

	switch {
	case result.Job != nil:
		c.JSON(http.StatusCreated, result)
	case result.Validation.HasConflicts():
		c.JSON(http.StatusConflict, result)
	default:
		c.JSON(http.StatusUnprocessableEntity, result)
	}
}

// GetJob handles GET /api/v1/jobs/:jobId
func (h *Handlers) GetJob(c *gin.Context) {
	job, err := h.service.GetJob(c.Request.Context(), application.GetJobQuery{JobID: c.Param("jobId")})
	if err != nil {
		h.responder(c).RespondWithError(err)
		return
	}

	c.JSON(http.StatusOK, job)
}

// DeleteJob handles DELETE /api/v1/jobs/:jobId
func (h *Handlers) DeleteJob(c *gin.Context) {
	jobID := c.Param("jobId")
	if err := h.service.DeleteJob(c.Request.Context(), application.DeleteJobCommand{JobID: jobID}); err != nil {
		h.responder(c).RespondWithError(err)
		return
	}

	c.Status(http.StatusNoContent)
}

// GetJobExecutions handles GET /api/v1/jobs/:jobId/executions
func (h *Handlers) GetJobExecutions(c *gin.Context) {
	jobID := c.Param("jobId")
	executions, err := h.service.GetJobExecutions(c.Request.Context(), application.GetJobQuery{JobID: jobID})
	if err != nil {
		h.responder(c).RespondWithError(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"jobId":      jobID,
		"executions": executions,
		"count":      len(executions),
	})
}

// EstimateJob handles POST /api/v1/jobs/:jobId/estimate
func (h *Handlers) EstimateJob(c *gin.Context) {
	estimate, err := h.service.EstimateJob(c.Request.Context(), application.GetJobQuery{JobID: c.Param("jobId")})
	if err != nil {
		h.responder(c).RespondWithError(err)
		return
	}

	c.JSON(http.StatusOK, estimate)
}

// JobCompatibility handles GET /api/v1/jobs/:jobId/compatibility
func (h *Handlers) JobCompatibility(c *gin.Context) {
	result, err := h.service.JobCompatibility(c.Request.Context(), application.GetJobQuery{JobID: c.Param("jobId")})
	if err != nil {
		h.responder(c).RespondWithError(err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// ListMachines handles GET /api/v1/machines
func (h *Handlers) ListMachines(c *gin.Context) {
	machines, err := h.service.ListMachines(c.Request.Context())
	if err != nil {
		h.responder(c).RespondWithError(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"machines": machines,
		"count":    len(machines),
	})
}

// rowQuery is the query string of GET /machines/:machineId/row
type rowQuery struct {
	From string `form:"from" binding:"required"`
	To   string `form:"to" binding:"required"`
}

// GetMachineRow handles GET /api/v1/machines/:machineId/row
func (h *Handlers) GetMachineRow(c *gin.Context) {
	responder := h.responder(c)

	var q rowQuery
	if appErr := middleware.BindQuery(c, &q); appErr != nil {
		responder.RespondWithAppError(appErr)
		return
	}
	from, ok := timeParam(responder, "from", q.From)
	if !ok {
		return
	}
	to, ok := timeParam(responder, "to", q.To)
	if !ok {
		return
	}
	if !to.After(from) {
		responder.RespondBadRequest("to must be after from")
		return
	}

	row, rowErr := h.service.GetMachineRow(c.Request.Context(), application.GetMachineRowQuery{
		MachineID: c.Param("machineId"),
		From:      from,
		To:        to,
	})
	if rowErr != nil {
		responder.RespondWithError(rowErr)
		return
	}

	c.JSON(http.StatusOK, row)
}

// changeoverQuery is the query string of GET /machines/:machineId/changeover.
// An empty from means the machine's loaded material.
type changeoverQuery struct {
	From string `form:"from"`
	To   string `form:"to" binding:"required"`
}

// GetChangeover handles GET /api/v1/machines/:machineId/changeover
func (h *Handlers) GetChangeover(c *gin.Context) {
	responder := h.responder(c)

	var q changeoverQuery
	if appErr := middleware.BindQuery(c, &q); appErr != nil {
		responder.RespondWithAppError(appErr)
		return
	}

	result, err := h.service.CalculateOptimalPowderChangeoverTime(c.Request.Context(), application.ChangeoverQuery{
		MachineID:    c.Param("machineId"),
		FromMaterial: strings.TrimSpace(q.From),
		ToMaterial:   strings.TrimSpace(q.To),
	})
	if err != nil {
		responder.RespondWithError(err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// viewQuery is the query string of GET /schedule/view
type viewQuery struct {
	Mode  string `form:"mode" binding:"omitempty,viewmode"`
	Start string `form:"start"`
}

// GetSchedulerView handles GET /api/v1/schedule/view
func (h *Handlers) GetSchedulerView(c *gin.Context) {
	responder := h.responder(c)

	var q viewQuery
	if appErr := middleware.BindQuery(c, &q); appErr != nil {
		responder.RespondWithAppError(appErr)
		return
	}
	if q.Mode == "" {
		q.Mode = string(scheduling.ViewWeek)
	}

	start := time.Now().UTC().Truncate(24 * time.Hour)
	if q.Start != "" {
		parsed, ok := timeParam(responder, "start", q.Start)
		if !ok {
			return
		}
		start = parsed
	}

	view, err := h.service.GetSchedulerView(c.Request.Context(), application.GetSchedulerViewQuery{
		Mode:      q.Mode,
		StartDate: start,
	})
	if err != nil {
		responder.RespondWithError(err)
		return
	}

	c.JSON(http.StatusOK, view)
}

// PunchInRequest is the body of a punch-in
type PunchInRequest struct {
	OperatorName string `json:"operatorName" binding:"required,operator_name"`
	Notes        string `json:"notes" binding:"max=2000"`
}

// PunchIn handles POST /api/v1/jobs/:jobId/stages/:stageId/punch-in
func (h *Handlers) PunchIn(c *gin.Context) {
	responder := h.responder(c)

	var req PunchInRequest
	if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
		responder.RespondWithAppError(appErr)
		return
	}

	result, err := h.tracker.PunchIn(c.Request.Context(), application.PunchInCommand{
		JobID:        c.Param("jobId"),
		StageID:      c.Param("stageId"),
		OperatorName: req.OperatorName,
		Notes:        req.Notes,
	})
	if err != nil {
		responder.RespondWithError(err)
		return
	}

	c.JSON(punchStatus(result, http.StatusCreated), result)
}

// PunchOutRequest is the optional body of a punch-out
type PunchOutRequest struct {
	Notes string `json:"notes" binding:"max=2000"`
}

// PunchOut handles POST /api/v1/jobs/:jobId/stages/:stageId/punch-out
func (h *Handlers) PunchOut(c *gin.Context) {
	responder := h.responder(c)

	var req PunchOutRequest
	if c.Request.ContentLength > 0 {
		if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}
	}

	result, err := h.tracker.PunchOut(c.Request.Context(), application.PunchOutCommand{
		JobID:   c.Param("jobId"),
		StageID: c.Param("stageId"),
		Notes:   req.Notes,
	})
	if err != nil {
		responder.RespondWithError(err)
		return
	}

	c.JSON(punchStatus(result, http.StatusOK), result)
}

// punchStatus maps a punch refusal to its HTTP status. The body is always the
// result so clients can show the message.
func punchStatus(result *application.PunchResult, ok int) int {
	if result.OK {
		return ok
	}
	switch result.Reason {
	case application.PunchInvalid:
		return http.StatusBadRequest
	case application.PunchNotFound:
		return http.StatusNotFound
	default:
		return http.StatusConflict
	}
}

// timeParam parses a query time, answering with a validation error on
// failure. RFC 3339 timestamps and plain dates (UTC midnight) are accepted.
func timeParam(responder *middleware.ErrorResponder, field, value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC(), true
	}
	if t, err := time.Parse(time.DateOnly, value); err == nil {
		return t, true
	}
	responder.RespondValidationError("validation failed", map[string]string{
		field: fmt.Sprintf("must be an RFC 3339 time or a YYYY-MM-DD date, got %q", value),
	})
	return time.Time{}, false
}
