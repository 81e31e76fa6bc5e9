package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/tradelink-hq/tradelink/internal/models"
	apperrors "github.com/tradelink-hq/tradelink/pkg/errors"
)

// JobDTO represents the API-friendly job payload.
type JobDTO struct {
	ID          string      `json:"id"`
	CompanyID   string      `json:"company_id"`
	Company     *CompanyDTO `json:"company,omitempty"`
	PostedBy    string      `json:"posted_by"`
	Title       string      `json:"title"`
	Description string      `json:"description,omitempty"`
	Location    string      `json:"location,omitempty"`
	Remote      bool        `json:"remote"`
	SalaryMin   int         `json:"salary_min,omitempty"`
	SalaryMax   int         `json:"salary_max,omitempty"`
	Status      string      `json:"status"`
	CreatedAt   time.Time   `json:"created_at"`
}

// ApplicationDTO represents the API-friendly job application payload.
type ApplicationDTO struct {
	ID          string    `json:"id"`
	JobID       string    `json:"job_id"`
	ApplicantID string    `json:"applicant_id"`
	Applicant   *UserDTO  `json:"applicant,omitempty"`
	CoverNote   string    `json:"cover_note,omitempty"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

// CreateJobInput defines attributes required to publish a job posting.
type CreateJobInput struct {
	Title       string
	Description string
	Location    string
	Remote      bool
	SalaryMin   int
	SalaryMax   int
}

// UpdateJobInput defines attributes editable on a job posting. Nil fields are
// left untouched.
type UpdateJobInput struct {
	Title       *string
	Description *string
	Location    *string
	Remote      *bool
	SalaryMin   *int
	SalaryMax   *int
}

// ListJobsInput defines filters for browsing job postings.
type ListJobsInput struct {
	CompanyID string
	Status    string
	Search    string
	Limit     int
	Offset    int
}

// JobService manages job postings and applications.
type JobService struct {
	db            *gorm.DB
	notifications *NotificationService
}

// NewJobService constructs a JobService.
func NewJobService(db *gorm.DB, notifications *NotificationService) (*JobService, error) {
	if db == nil {
		return nil, errors.New("job service: db is required")
	}
	return &JobService{db: db, notifications: notifications}, nil
}

// Create publishes a job posting on behalf of the poster's company.
func (s *JobService) Create(ctx context.Context, posterID string, input CreateJobInput) (*JobDTO, error) {
	ctx = ensureContext(ctx)

	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, apperrors.NewBadRequest("Job title is required")
	}
	if input.SalaryMax > 0 && input.SalaryMin > input.SalaryMax {
		return nil, apperrors.NewBadRequest("Salary range is inverted")
	}

	var poster models.User
	if err := s.db.WithContext(ctx).First(&poster, "id = ?", posterID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("job service: load poster: %w", err)
	}
	if poster.CompanyID == nil {
		return nil, apperrors.NewBadRequest("Join a company before posting jobs")
	}

	job := models.Job{
		CompanyID:   *poster.CompanyID,
		PostedBy:    poster.ID,
		Title:       title,
		Description: strings.TrimSpace(input.Description),
		Location:    strings.TrimSpace(input.Location),
		Remote:      input.Remote,
		SalaryMin:   input.SalaryMin,
		SalaryMax:   input.SalaryMax,
		Status:      models.JobStatusOpen,
	}

	if err := s.db.WithContext(ctx).Create(&job).Error; err != nil {
		return nil, fmt.Errorf("job service: create job: %w", err)
	}

	dto := mapJob(job)
	return &dto, nil
}

// Get returns a single job posting by id.
func (s *JobService) Get(ctx context.Context, jobID string) (*JobDTO, error) {
	ctx = ensureContext(ctx)

	var job models.Job
	if err := s.db.WithContext(ctx).Preload("Company").First(&job, "id = ?", jobID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("job service: load job: %w", err)
	}

	dto := mapJob(job)
	return &dto, nil
}

// List returns job postings ordered by recency.
func (s *JobService) List(ctx context.Context, input ListJobsInput) ([]JobDTO, int64, error) {
	ctx = ensureContext(ctx)

	query := s.db.WithContext(ctx).Model(&models.Job{})
	if companyID := strings.TrimSpace(input.CompanyID); companyID != "" {
		query = query.Where("company_id = ?", companyID)
	}
	if status := strings.TrimSpace(input.Status); status != "" {
		query = query.Where("status = ?", status)
	}
	if search := strings.TrimSpace(input.Search); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		query = query.Where("LOWER(title) LIKE ? OR LOWER(location) LIKE ?", like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("job service: count jobs: %w", err)
	}

	var rows []models.Job
	if err := query.
		Preload("Company").
		Order("created_at DESC").
		Limit(clampLimit(input.Limit, 25, 100)).
		Offset(max(0, input.Offset)).
		Find(&rows).Error; err != nil {
		return nil, 0, fmt.Errorf("job service: list jobs: %w", err)
	}

	items := make([]JobDTO, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapJob(row))
	}
	return items, total, nil
}

// Update edits a job posting. Only members of the posting company may edit
// it; the status field changes through Close, not here.
func (s *JobService) Update(ctx context.Context, jobID, userID string, input UpdateJobInput) (*JobDTO, error) {
	ctx = ensureContext(ctx)

	job, err := s.loadJobForCompanyMember(ctx, jobID, userID)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			return nil, apperrors.NewBadRequest("Job title is required")
		}
		updates["title"] = title
	}
	if input.Description != nil {
		updates["description"] = strings.TrimSpace(*input.Description)
	}
	if input.Location != nil {
		updates["location"] = strings.TrimSpace(*input.Location)
	}
	if input.Remote != nil {
		updates["remote"] = *input.Remote
	}

	salaryMin := job.SalaryMin
	salaryMax := job.SalaryMax
	if input.SalaryMin != nil {
		salaryMin = *input.SalaryMin
	}
	if input.SalaryMax != nil {
		salaryMax = *input.SalaryMax
	}
	if salaryMax > 0 && salaryMin > salaryMax {
		return nil, apperrors.NewBadRequest("Salary range is inverted")
	}
	if input.SalaryMin != nil {
		updates["salary_min"] = salaryMin
	}
	if input.SalaryMax != nil {
		updates["salary_max"] = salaryMax
	}

	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(job).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("job service: update job: %w", err)
		}
	}

	return s.Get(ctx, jobID)
}

// Close marks an open job posting as closed. Only members of the posting
// company may close it.
func (s *JobService) Close(ctx context.Context, jobID, userID string) (*JobDTO, error) {
	ctx = ensureContext(ctx)

	job, err := s.loadJobForCompanyMember(ctx, jobID, userID)
	if err != nil {
		return nil, err
	}

	if job.Status != models.JobStatusClosed {
		if err := s.db.WithContext(ctx).Model(job).Update("status", models.JobStatusClosed).Error; err != nil {
			return nil, fmt.Errorf("job service: close job: %w", err)
		}
		job.Status = models.JobStatusClosed
	}

	dto := mapJob(*job)
	return &dto, nil
}

// Apply submits an application. A user applies to a given job at most once;
// duplicates yield a conflict.
func (s *JobService) Apply(ctx context.Context, jobID, applicantID, coverNote string) (*ApplicationDTO, error) {
	ctx = ensureContext(ctx)

	var job models.Job
	if err := s.db.WithContext(ctx).First(&job, "id = ?", jobID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("job service: load job: %w", err)
	}
	if job.Status != models.JobStatusOpen {
		return nil, apperrors.NewBadRequest("Job posting is closed")
	}
	if job.PostedBy == applicantID {
		return nil, apperrors.NewBadRequest("You cannot apply to your own posting")
	}

	application := models.JobApplication{
		JobID:       job.ID,
		ApplicantID: applicantID,
		CoverNote:   strings.TrimSpace(coverNote),
		Status:      models.ApplicationStatusPending,
	}

	if err := s.db.WithContext(ctx).Create(&application).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, apperrors.NewConflict("You have already applied to this job")
		}
		return nil, fmt.Errorf("job service: create application: %w", err)
	}

	s.notify(ctx, CreateNotificationInput{
		UserID:    job.PostedBy,
		SenderID:  applicantID,
		Type:      models.NotificationSystem,
		Title:     "New application",
		Message:   fmt.Sprintf("A new application arrived for %q", job.Title),
		ActionURL: "/jobs/" + job.ID + "/applications",
		Metadata:  map[string]any{"job_id": job.ID, "application_id": application.ID},
	})

	dto := mapApplication(application)
	return &dto, nil
}

// ListApplications returns applications for a job. Restricted to members of
// the posting company.
func (s *JobService) ListApplications(ctx context.Context, jobID, userID string) ([]ApplicationDTO, error) {
	ctx = ensureContext(ctx)

	if _, err := s.loadJobForCompanyMember(ctx, jobID, userID); err != nil {
		return nil, err
	}

	var rows []models.JobApplication
	if err := s.db.WithContext(ctx).
		Preload("Applicant").
		Where("job_id = ?", jobID).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("job service: list applications: %w", err)
	}

	items := make([]ApplicationDTO, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapApplication(row))
	}
	return items, nil
}

// Decide accepts or rejects a pending application and notifies the applicant.
// Decisions are final; a decided application cannot change status again.
func (s *JobService) Decide(ctx context.Context, applicationID, userID, status string) (*ApplicationDTO, error) {
	ctx = ensureContext(ctx)

	if status != models.ApplicationStatusAccepted && status != models.ApplicationStatusRejected {
		return nil, apperrors.NewBadRequest("Decision must be accepted or rejected")
	}

	var application models.JobApplication
	if err := s.db.WithContext(ctx).Preload("Job").First(&application, "id = ?", applicationID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("job service: load application: %w", err)
	}
	if application.Job == nil {
		return nil, apperrors.ErrNotFound
	}

	if _, err := s.loadJobForCompanyMember(ctx, application.JobID, userID); err != nil {
		return nil, err
	}
	if application.Status != models.ApplicationStatusPending {
		return nil, apperrors.NewConflict("Application has already been decided")
	}

	if err := s.db.WithContext(ctx).Model(&application).Update("status", status).Error; err != nil {
		return nil, fmt.Errorf("job service: decide application: %w", err)
	}
	application.Status = status

	title := "Application accepted"
	if status == models.ApplicationStatusRejected {
		title = "Application update"
	}
	s.notify(ctx, CreateNotificationInput{
		UserID:    application.ApplicantID,
		SenderID:  userID,
		Type:      models.NotificationSystem,
		Title:     title,
		Message:   fmt.Sprintf("Your application for %q was %s", application.Job.Title, status),
		ActionURL: "/jobs/" + application.JobID,
		Metadata:  map[string]any{"job_id": application.JobID, "application_id": application.ID},
	})

	dto := mapApplication(application)
	return &dto, nil
}

func (s *JobService) loadJobForCompanyMember(ctx context.Context, jobID, userID string) (*models.Job, error) {
	var job models.Job
	if err := s.db.WithContext(ctx).First(&job, "id = ?", jobID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("job service: load job: %w", err)
	}

	var membership int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND company_id = ?", userID, job.CompanyID).
		Count(&membership).Error; err != nil {
		return nil, fmt.Errorf("job service: check membership: %w", err)
	}
	if membership == 0 {
		return nil, apperrors.ErrForbidden
	}
	return &job, nil
}

func (s *JobService) notify(ctx context.Context, input CreateNotificationInput) {
	if s.notifications == nil {
		return
	}
	// Notification delivery is best effort; failures never abort the
	// triggering operation.
	_, _ = s.notifications.Create(ctx, input)
}

func mapJob(row models.Job) JobDTO {
	dto := JobDTO{
		ID:          row.ID,
		CompanyID:   row.CompanyID,
		PostedBy:    row.PostedBy,
		Title:       row.Title,
		Description: row.Description,
		Location:    row.Location,
		Remote:      row.Remote,
		SalaryMin:   row.SalaryMin,
		SalaryMax:   row.SalaryMax,
		Status:      row.Status,
		CreatedAt:   row.CreatedAt,
	}
	if row.Company != nil {
		company := mapCompany(*row.Company)
		dto.Company = &company
	}
	return dto
}

func mapApplication(row models.JobApplication) ApplicationDTO {
	dto := ApplicationDTO{
		ID:          row.ID,
		JobID:       row.JobID,
		ApplicantID: row.ApplicantID,
		CoverNote:   row.CoverNote,
		Status:      row.Status,
		CreatedAt:   row.CreatedAt,
	}
	if row.Applicant != nil {
		applicant := mapUser(*row.Applicant)
		dto.Applicant = &applicant
	}
	return dto
}
