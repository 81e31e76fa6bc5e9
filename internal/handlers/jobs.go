package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/tradelink-hq/tradelink/internal/middleware"
	"github.com/tradelink-hq/tradelink/internal/realtime"
	"github.com/tradelink-hq/tradelink/internal/services"
	"github.com/tradelink-hq/tradelink/pkg/errors"
	"github.com/tradelink-hq/tradelink/pkg/response"
)

// JobHandler exposes job posting and application endpoints.
type JobHandler struct {
	jobs *services.JobService
}

// NewJobHandler constructs a job handler.
func NewJobHandler(db *gorm.DB, hub *realtime.Hub) (*JobHandler, error) {
	notifications, err := services.NewNotificationService(db, hub)
	if err != nil {
		return nil, err
	}
	jobs, err := services.NewJobService(db, notifications)
	if err != nil {
		return nil, err
	}
	return &JobHandler{jobs: jobs}, nil
}

// List returns job postings with optional filters.
func (h *JobHandler) List(c *gin.Context) {
	limit := parseIntQuery(c, "limit", 25)
	offset := parseIntQuery(c, "offset", 0)

	items, total, err := h.jobs.List(requestContext(c), services.ListJobsInput{
		CompanyID: c.Query("company_id"),
		Status:    c.Query("status"),
		Search:    c.Query("search"),
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	page := 1
	if limit > 0 {
		page = offset/limit + 1
	}
	response.SuccessWithMeta(c, http.StatusOK, items, response.PageMeta(page, limit, total))
}

// Get returns a single job posting.
func (h *JobHandler) Get(c *gin.Context) {
	job, err := h.jobs.Get(requestContext(c), strings.TrimSpace(c.Param("id")))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, job)
}

type createJobRequest struct {
	Title       string `json:"title" validate:"required,max=255"`
	Description string `json:"description"`
	Location    string `json:"location" validate:"max=120"`
	Remote      bool   `json:"remote"`
	SalaryMin   int    `json:"salary_min" validate:"min=0"`
	SalaryMax   int    `json:"salary_max" validate:"min=0"`
}

// Create publishes a job posting.
func (h *JobHandler) Create(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	var payload createJobRequest
	if !bindAndValidate(c, &payload) {
		return
	}

	job, err := h.jobs.Create(requestContext(c), userID, services.CreateJobInput{
		Title:       payload.Title,
		Description: payload.Description,
		Location:    payload.Location,
		Remote:      payload.Remote,
		SalaryMin:   payload.SalaryMin,
		SalaryMax:   payload.SalaryMax,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, job)
}

type updateJobRequest struct {
	Title       *string `json:"title" validate:"omitempty,max=255"`
	Description *string `json:"description"`
	Location    *string `json:"location" validate:"omitempty,max=120"`
	Remote      *bool   `json:"remote"`
	SalaryMin   *int    `json:"salary_min" validate:"omitempty,min=0"`
	SalaryMax   *int    `json:"salary_max" validate:"omitempty,min=0"`
}

// Update edits a job posting.
func (h *JobHandler) Update(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	var payload updateJobRequest
	if !bindAndValidate(c, &payload) {
		return
	}

	job, err := h.jobs.Update(requestContext(c), strings.TrimSpace(c.Param("id")), userID, services.UpdateJobInput{
		Title:       payload.Title,
		Description: payload.Description,
		Location:    payload.Location,
		Remote:      payload.Remote,
		SalaryMin:   payload.SalaryMin,
		SalaryMax:   payload.SalaryMax,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, job)
}

// Close marks a job posting as closed.
func (h *JobHandler) Close(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	job, err := h.jobs.Close(requestContext(c), strings.TrimSpace(c.Param("id")), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, job)
}

type applyRequest struct {
	CoverNote string `json:"cover_note" validate:"max=4000"`
}

// Apply submits an application to a job posting.
func (h *JobHandler) Apply(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	var payload applyRequest
	if !bindAndValidate(c, &payload) {
		return
	}

	application, err := h.jobs.Apply(requestContext(c), strings.TrimSpace(c.Param("id")), userID, payload.CoverNote)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, application)
}

// ListApplications returns applications for a job posting.
func (h *JobHandler) ListApplications(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	items, err := h.jobs.ListApplications(requestContext(c), strings.TrimSpace(c.Param("id")), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, items)
}

type decideRequest struct {
	Status string `json:"status" validate:"required,oneof=accepted rejected"`
}

// Decide accepts or rejects an application.
func (h *JobHandler) Decide(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	var payload decideRequest
	if !bindAndValidate(c, &payload) {
		return
	}

	application, err := h.jobs.Decide(requestContext(c), strings.TrimSpace(c.Param("applicationId")), userID, payload.Status)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, application)
}
