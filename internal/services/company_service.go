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

// CompanyDTO represents the API-friendly company payload.
type CompanyDTO struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Industry  string    `json:"industry,omitempty"`
	Website   string    `json:"website,omitempty"`
	About     string    `json:"about,omitempty"`
	Location  string    `json:"location,omitempty"`
	Logo      string    `json:"logo,omitempty"`
	Verified  bool      `json:"verified"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateCompanyInput defines attributes required to register a company.
type CreateCompanyInput struct {
	Name     string
	Industry string
	Website  string
	About    string
	Location string
	Logo     string
}

// UpdateCompanyInput carries optional company changes; nil fields are left
// untouched.
type UpdateCompanyInput struct {
	Industry *string
	Website  *string
	About    *string
	Location *string
	Logo     *string
}

// ListCompaniesInput defines filters for browsing companies.
type ListCompaniesInput struct {
	Search string
	Limit  int
	Offset int
}

// CompanyService manages marketplace company profiles.
type CompanyService struct {
	db *gorm.DB
}

// NewCompanyService constructs a CompanyService.
func NewCompanyService(db *gorm.DB) (*CompanyService, error) {
	if db == nil {
		return nil, errors.New("company service: db is required")
	}
	return &CompanyService{db: db}, nil
}

// Create registers a company and assigns the creating user to it.
func (s *CompanyService) Create(ctx context.Context, creatorID string, input CreateCompanyInput) (*CompanyDTO, error) {
	ctx = ensureContext(ctx)

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperrors.NewBadRequest("Company name is required")
	}

	company := models.Company{
		Name:     name,
		Industry: strings.TrimSpace(input.Industry),
		Website:  strings.TrimSpace(input.Website),
		About:    strings.TrimSpace(input.About),
		Location: strings.TrimSpace(input.Location),
		Logo:     strings.TrimSpace(input.Logo),
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&company).Error; err != nil {
			if isUniqueConstraintError(err) {
				return apperrors.NewConflict("Company name is already taken")
			}
			return fmt.Errorf("create company: %w", err)
		}
		if creatorID != "" {
			if err := tx.Model(&models.User{}).
				Where("id = ?", creatorID).
				Update("company_id", company.ID).Error; err != nil {
				return fmt.Errorf("assign creator: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, fmt.Errorf("company service: %w", err)
	}

	dto := mapCompany(company)
	return &dto, nil
}

// Get returns a single company by id.
func (s *CompanyService) Get(ctx context.Context, companyID string) (*CompanyDTO, error) {
	ctx = ensureContext(ctx)

	var company models.Company
	if err := s.db.WithContext(ctx).First(&company, "id = ?", companyID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("company service: load company: %w", err)
	}

	dto := mapCompany(company)
	return &dto, nil
}

// List returns companies ordered by name, optionally filtered by a search
// term matched against name and industry.
func (s *CompanyService) List(ctx context.Context, input ListCompaniesInput) ([]CompanyDTO, int64, error) {
	ctx = ensureContext(ctx)

	query := s.db.WithContext(ctx).Model(&models.Company{})
	if search := strings.TrimSpace(input.Search); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		query = query.Where("LOWER(name) LIKE ? OR LOWER(industry) LIKE ?", like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("company service: count companies: %w", err)
	}

	var rows []models.Company
	if err := query.
		Order("name ASC").
		Limit(clampLimit(input.Limit, 25, 100)).
		Offset(max(0, input.Offset)).
		Find(&rows).Error; err != nil {
		return nil, 0, fmt.Errorf("company service: list companies: %w", err)
	}

	items := make([]CompanyDTO, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapCompany(row))
	}
	return items, total, nil
}

// Update applies the provided changes. Only members of the company may update
// it.
func (s *CompanyService) Update(ctx context.Context, companyID, userID string, input UpdateCompanyInput) (*CompanyDTO, error) {
	ctx = ensureContext(ctx)

	var company models.Company
	if err := s.db.WithContext(ctx).First(&company, "id = ?", companyID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("company service: load company: %w", err)
	}

	var membership int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND company_id = ?", userID, companyID).
		Count(&membership).Error; err != nil {
		return nil, fmt.Errorf("company service: check membership: %w", err)
	}
	if membership == 0 {
		return nil, apperrors.ErrForbidden
	}

	updates := map[string]any{}
	if input.Industry != nil {
		updates["industry"] = strings.TrimSpace(*input.Industry)
	}
	if input.Website != nil {
		updates["website"] = strings.TrimSpace(*input.Website)
	}
	if input.About != nil {
		updates["about"] = strings.TrimSpace(*input.About)
	}
	if input.Location != nil {
		updates["location"] = strings.TrimSpace(*input.Location)
	}
	if input.Logo != nil {
		updates["logo"] = strings.TrimSpace(*input.Logo)
	}

	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(&company).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("company service: update company: %w", err)
		}
	}

	return s.Get(ctx, companyID)
}

func mapCompany(row models.Company) CompanyDTO {
	return CompanyDTO{
		ID:        row.ID,
		Name:      row.Name,
		Industry:  row.Industry,
		Website:   row.Website,
		About:     row.About,
		Location:  row.Location,
		Logo:      row.Logo,
		Verified:  row.Verified,
		CreatedAt: row.CreatedAt,
	}
}
