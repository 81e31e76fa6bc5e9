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

// CompanyHandler exposes company profile endpoints.
type CompanyHandler struct {
	companies *services.CompanyService
}

// NewCompanyHandler constructs a company handler.
func NewCompanyHandler(db *gorm.DB) (*CompanyHandler, error) {
	companies, err := services.NewCompanyService(db)
	if err != nil {
		return nil, err
	}
	return &CompanyHandler{companies: companies}, nil
}

// List returns companies with optional search and pagination.
func (h *CompanyHandler) List(c *gin.Context) {
	limit := parseIntQuery(c, "limit", 25)
	offset := parseIntQuery(c, "offset", 0)

	items, total, err := h.companies.List(requestContext(c), services.ListCompaniesInput{
		Search: c.Query("search"),
		Limit:  limit,
		Offset: offset,
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

// Get returns a single company.
func (h *CompanyHandler) Get(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	company, err := h.companies.Get(requestContext(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, company)
}

type createCompanyRequest struct {
	Name     string `json:"name" validate:"required,max=255"`
	Industry string `json:"industry" validate:"max=120"`
	Website  string `json:"website" validate:"omitempty,url"`
	About    string `json:"about"`
	Location string `json:"location" validate:"max=120"`
	Logo     string `json:"logo"`
}

// Create registers a company owned by the current user.
func (h *CompanyHandler) Create(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	var payload createCompanyRequest
	if !bindAndValidate(c, &payload) {
		return
	}

	company, err := h.companies.Create(requestContext(c), userID, services.CreateCompanyInput{
		Name:     payload.Name,
		Industry: payload.Industry,
		Website:  payload.Website,
		About:    payload.About,
		Location: payload.Location,
		Logo:     payload.Logo,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, company)
}

type updateCompanyRequest struct {
	Industry *string `json:"industry" validate:"omitempty,max=120"`
	Website  *string `json:"website" validate:"omitempty,url"`
	About    *string `json:"about"`
	Location *string `json:"location" validate:"omitempty,max=120"`
	Logo     *string `json:"logo"`
}

// Update applies company profile changes.
func (h *CompanyHandler) Update(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	var payload updateCompanyRequest
	if !bindAndValidate(c, &payload) {
		return
	}

	company, err := h.companies.Update(requestContext(c), strings.TrimSpace(c.Param("id")), userID, services.UpdateCompanyInput{
		Industry: payload.Industry,
		Website:  payload.Website,
		About:    payload.About,
		Location: payload.Location,
		Logo:     payload.Logo,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, company)
}
