package models

// Job statuses.
const (
	JobStatusOpen   = "open"
	JobStatusClosed = "closed"
)

// Application statuses.
const (
	ApplicationStatusPending  = "pending"
	ApplicationStatusAccepted = "accepted"
	ApplicationStatusRejected = "rejected"
)

// Job is a posting published by a company.
type Job struct {
	BaseModel

	CompanyID string   `gorm:"type:uuid;index;not null" json:"company_id"`
	Company   *Company `json:"company,omitempty"`
	PostedBy  string   `gorm:"type:uuid;not null" json:"posted_by"`

	Title       string `gorm:"type:varchar(255);not null" json:"title"`
	Description string `gorm:"type:text" json:"description"`
	Location    string `gorm:"type:varchar(120)" json:"location"`
	Remote      bool   `gorm:"default:false" json:"remote"`

	SalaryMin int `json:"salary_min"`
	SalaryMax int `json:"salary_max"`

	Status string `gorm:"type:varchar(32);default:'open';index" json:"status"`

	Applications []JobApplication `gorm:"foreignKey:JobID" json:"applications,omitempty"`
}

// JobApplication links an applicant to a job posting. One application per
// (job, applicant) pair.
type JobApplication struct {
	BaseModel

	JobID string `gorm:"type:uuid;uniqueIndex:idx_job_applicant;not null" json:"job_id"`
	Job   *Job   `json:"job,omitempty"`

	ApplicantID string `gorm:"type:uuid;uniqueIndex:idx_job_applicant;not null" json:"applicant_id"`
	Applicant   *User  `gorm:"foreignKey:ApplicantID" json:"applicant,omitempty"`

	CoverNote string `gorm:"type:text" json:"cover_note"`
	Status    string `gorm:"type:varchar(32);default:'pending';index" json:"status"`
}
