package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/tradelink-hq/tradelink/internal/middleware"
	"github.com/tradelink-hq/tradelink/internal/services"
	"github.com/tradelink-hq/tradelink/pkg/errors"
	"github.com/tradelink-hq/tradelink/pkg/response"
)

// ProfileHandler exposes user profile endpoints.
type ProfileHandler struct {
	users *services.UserService
}

// NewProfileHandler constructs a profile handler.
func NewProfileHandler(db *gorm.DB) (*ProfileHandler, error) {
	users, err := services.NewUserService(db)
	if err != nil {
		return nil, err
	}
	return &ProfileHandler{users: users}, nil
}

// Get returns a user's public profile.
func (h *ProfileHandler) Get(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	user, err := h.users.Get(requestContext(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, user)
}

type updateProfileRequest struct {
	DisplayName *string `json:"display_name" validate:"omitempty,max=120"`
	Headline    *string `json:"headline" validate:"omitempty,max=255"`
	Avatar      *string `json:"avatar"`
}

// Update applies profile changes for the current user.
func (h *ProfileHandler) Update(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	var payload updateProfileRequest
	if !bindAndValidate(c, &payload) {
		return
	}

	user, err := h.users.UpdateProfile(requestContext(c), userID, services.UpdateProfileInput{
		DisplayName: payload.DisplayName,
		Headline:    payload.Headline,
		Avatar:      payload.Avatar,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, user)
}
