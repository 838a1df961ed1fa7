package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/forma-labs/corsi-admin-api/internal/models"
	"github.com/forma-labs/corsi-admin-api/internal/service"
	appErrors "github.com/forma-labs/corsi-admin-api/pkg/errors"
	"github.com/forma-labs/corsi-admin-api/pkg/response"
)

// CompanyHandler exposes company endpoints.
type CompanyHandler struct {
	companies *service.CompanyService
	cache     *service.CacheService
}

// NewCompanyHandler constructs CompanyHandler.
func NewCompanyHandler(companies *service.CompanyService, cache *service.CacheService) *CompanyHandler {
	return &CompanyHandler{companies: companies, cache: cache}
}

// List godoc
// @Summary List companies
// @Tags Companies
// @Produce json
// @Param search query string false "Search by name or VAT number"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /companies [get]
func (h *CompanyHandler) List(c *gin.Context) {
	var filter models.CompanyFilter
	filter.Search = strings.TrimSpace(c.Query("search"))
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	companies, pagination, err := h.companies.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, companies, pagination)
}

// Get godoc
// @Summary Get company
// @Tags Companies
// @Produce json
// @Param id path string true "Company ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /companies/{id} [get]
func (h *CompanyHandler) Get(c *gin.Context) {
	company, err := h.companies.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, company, nil)
}

// Create godoc
// @Summary Create company
// @Tags Companies
// @Accept json
// @Produce json
// @Param payload body service.CompanyRequest true "Company payload"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /companies [post]
func (h *CompanyHandler) Create(c *gin.Context) {
	var req service.CompanyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	company, err := h.companies.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, company)
}

// Update godoc
// @Summary Update company
// @Tags Companies
// @Accept json
// @Produce json
// @Param id path string true "Company ID"
// @Param payload body service.CompanyRequest true "Company payload"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /companies/{id} [put]
func (h *CompanyHandler) Update(c *gin.Context) {
	var req service.CompanyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	company, err := h.companies.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	_ = h.cache.Invalidate(c.Request.Context(), participantCachePattern)
	response.JSON(c, http.StatusOK, company, nil)
}

// Delete godoc
// @Summary Delete company
// @Tags Companies
// @Produce json
// @Param id path string true "Company ID"
// @Success 204
// @Security BearerAuth
// @Router /companies/{id} [delete]
func (h *CompanyHandler) Delete(c *gin.Context) {
	if err := h.companies.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
