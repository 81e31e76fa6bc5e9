package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/tradelink-hq/tradelink/internal/models"
	"github.com/tradelink-hq/tradelink/pkg/crypto"
	apperrors "github.com/tradelink-hq/tradelink/pkg/errors"
)

// UserDTO represents the API-friendly user payload.
type UserDTO struct {
	ID          string      `json:"id"`
	Email       string      `json:"email"`
	DisplayName string      `json:"display_name"`
	Headline    string      `json:"headline,omitempty"`
	Avatar      string      `json:"avatar,omitempty"`
	CompanyID   *string     `json:"company_id,omitempty"`
	Company     *CompanyDTO `json:"company,omitempty"`
	LastSeenAt  *time.Time  `json:"last_seen_at,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
}

// RegisterUserInput defines attributes required to create an account.
type RegisterUserInput struct {
	Email       string
	Password    string
	DisplayName string
	Headline    string
}

// UpdateProfileInput carries optional profile changes; nil fields are left
// untouched.
type UpdateProfileInput struct {
	DisplayName *string
	Headline    *string
	Avatar      *string
}

// UserService manages accounts and profiles.
type UserService struct {
	db *gorm.DB
}

// NewUserService constructs a UserService.
func NewUserService(db *gorm.DB) (*UserService, error) {
	if db == nil {
		return nil, errors.New("user service: db is required")
	}
	return &UserService{db: db}, nil
}

// Register creates an account with a bcrypt-hashed password.
func (s *UserService) Register(ctx context.Context, input RegisterUserInput) (*UserDTO, error) {
	ctx = ensureContext(ctx)

	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" {
		return nil, apperrors.NewBadRequest("Email is required")
	}
	if len(input.Password) < 8 {
		return nil, apperrors.NewBadRequest("Password must be at least 8 characters")
	}

	hash, err := crypto.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("user service: hash password: %w", err)
	}

	user := models.User{
		Email:       email,
		Password:    hash,
		DisplayName: strings.TrimSpace(defaultIfEmpty(input.DisplayName, email)),
		Headline:    strings.TrimSpace(input.Headline),
		IsActive:    true,
	}

	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, apperrors.NewConflict("Email is already registered")
		}
		return nil, fmt.Errorf("user service: create user: %w", err)
	}

	dto := mapUser(user)
	return &dto, nil
}

// Authenticate verifies credentials and stamps the last-seen time. Both an
// unknown email and a wrong password yield ErrInvalidCredentials.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*UserDTO, error) {
	ctx = ensureContext(ctx)
	email = strings.ToLower(strings.TrimSpace(email))

	var user models.User
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("user service: load user: %w", err)
	}

	if !user.IsActive {
		return nil, apperrors.ErrForbidden
	}
	if !crypto.VerifyPassword(user.Password, password) {
		return nil, apperrors.ErrInvalidCredentials
	}

	now := time.Now().UTC()
	if err := s.db.WithContext(ctx).Model(&user).Update("last_seen_at", now).Error; err != nil {
		return nil, fmt.Errorf("user service: stamp last seen: %w", err)
	}
	user.LastSeenAt = &now

	dto := mapUser(user)
	return &dto, nil
}

// Get returns a single user by id.
func (s *UserService) Get(ctx context.Context, userID string) (*UserDTO, error) {
	ctx = ensureContext(ctx)

	var user models.User
	if err := s.db.WithContext(ctx).Preload("Company").First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("user service: load user: %w", err)
	}

	dto := mapUser(user)
	return &dto, nil
}

// UpdateProfile applies the provided profile changes.
func (s *UserService) UpdateProfile(ctx context.Context, userID string, input UpdateProfileInput) (*UserDTO, error) {
	ctx = ensureContext(ctx)

	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("user service: load user: %w", err)
	}

	updates := map[string]any{}
	if input.DisplayName != nil {
		updates["display_name"] = strings.TrimSpace(*input.DisplayName)
	}
	if input.Headline != nil {
		updates["headline"] = strings.TrimSpace(*input.Headline)
	}
	if input.Avatar != nil {
		updates["avatar"] = strings.TrimSpace(*input.Avatar)
	}

	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(&user).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("user service: update profile: %w", err)
		}
	}

	return s.Get(ctx, userID)
}

func mapUser(row models.User) UserDTO {
	dto := UserDTO{
		ID:          row.ID,
		Email:       row.Email,
		DisplayName: row.DisplayName,
		Headline:    row.Headline,
		Avatar:      row.Avatar,
		CompanyID:   row.CompanyID,
		LastSeenAt:  row.LastSeenAt,
		CreatedAt:   row.CreatedAt,
	}
	if row.Company != nil {
		company := mapCompany(*row.Company)
		dto.Company = &company
	}
	return dto
}
