package handler

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/forma-labs/corsi-admin-api/internal/models"
	"github.com/forma-labs/corsi-admin-api/internal/service"
	appErrors "github.com/forma-labs/corsi-admin-api/pkg/errors"
	"github.com/forma-labs/corsi-admin-api/pkg/response"
	"github.com/forma-labs/corsi-admin-api/pkg/spreadsheet"
)

const participantCachePattern = "participants:*"

// ParticipantHandler exposes participant endpoints including the bulk
// spreadsheet import and the workbook export.
type ParticipantHandler struct {
	participants *service.ParticipantService
	importer     *service.ImportService
	exporter     *service.ExportService
	auth         *service.AuthService
	cache        *service.CacheService
	metrics      *service.MetricsService
	maxUpload    int64
}

// NewParticipantHandler constructs ParticipantHandler.
func NewParticipantHandler(
	participants *service.ParticipantService,
	importer *service.ImportService,
	exporter *service.ExportService,
	auth *service.AuthService,
	cache *service.CacheService,
	metrics *service.MetricsService,
	maxUpload int64,
) *ParticipantHandler {
	if maxUpload <= 0 {
		maxUpload = 10 << 20
	}
	return &ParticipantHandler{
		participants: participants,
		importer:     importer,
		exporter:     exporter,
		auth:         auth,
		cache:        cache,
		metrics:      metrics,
		maxUpload:    maxUpload,
	}
}

// List godoc
// @Summary List participants
// @Tags Participants
// @Produce json
// @Param search query string false "Search by name or tax code"
// @Param companyId query string false "Filter by company"
// @Param courseId query string false "Filter by course enrollment"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /participants [get]
func (h *ParticipantHandler) List(c *gin.Context) {
	filter := h.parseFilter(c)

	cacheKey := participantListCacheKey(filter)
	if h.cache.Enabled() {
		var cached struct {
			Participants []models.ParticipantDetail `json:"participants"`
			Pagination   *models.Pagination         `json:"pagination"`
		}
		if hit, _ := h.cache.Get(c.Request.Context(), cacheKey, &cached); hit {
			response.JSON(c, http.StatusOK, cached.Participants, cached.Pagination)
			return
		}
	}

	participants, pagination, err := h.participants.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	if h.cache.Enabled() {
		payload := struct {
			Participants []models.ParticipantDetail `json:"participants"`
			Pagination   *models.Pagination         `json:"pagination"`
		}{participants, pagination}
		_ = h.cache.Set(c.Request.Context(), cacheKey, payload, 0)
	}

	response.JSON(c, http.StatusOK, participants, pagination)
}

// Get godoc
// @Summary Get participant detail
// @Tags Participants
// @Produce json
// @Param id path string true "Participant ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /participants/{id} [get]
func (h *ParticipantHandler) Get(c *gin.Context) {
	participant, err := h.participants.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, participant, nil)
}

// Create godoc
// @Summary Create participant
// @Tags Participants
// @Accept json
// @Produce json
// @Param payload body service.ParticipantRequest true "Participant payload"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /participants [post]
func (h *ParticipantHandler) Create(c *gin.Context) {
	var req service.ParticipantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	participant, err := h.participants.Create(c.Request.Context(), req, actorIDFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	_ = h.cache.Invalidate(c.Request.Context(), participantCachePattern)
	response.Created(c, participant)
}

// Update godoc
// @Summary Update participant
// @Tags Participants
// @Accept json
// @Produce json
// @Param id path string true "Participant ID"
// @Param payload body service.ParticipantRequest true "Participant payload"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /participants/{id} [put]
func (h *ParticipantHandler) Update(c *gin.Context) {
	var req service.ParticipantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	participant, err := h.participants.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	_ = h.cache.Invalidate(c.Request.Context(), participantCachePattern)
	response.JSON(c, http.StatusOK, participant, nil)
}

// Delete godoc
// @Summary Delete participant
// @Tags Participants
// @Produce json
// @Param id path string true "Participant ID"
// @Success 204
// @Security BearerAuth
// @Router /participants/{id} [delete]
func (h *ParticipantHandler) Delete(c *gin.Context) {
	if err := h.participants.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	_ = h.cache.Invalidate(c.Request.Context(), participantCachePattern)
	response.NoContent(c)
}

// Import godoc
// @Summary Bulk import participants from a spreadsheet
// @Tags Participants
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "XLSX or CSV file"
// @Param courseId query string false "Enroll imported participants into this course"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /participants/import [post]
func (h *ParticipantHandler) Import(c *gin.Context) {
	rows, err := h.readUpload(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	start := time.Now()
	outcome := h.importer.Import(c.Request.Context(), rows, actorIDFromContext(c), c.Query("courseId"))
	h.metrics.RecordImportRun(outcome.Imported, outcome.Errors, outcome.DateErrors, time.Since(start))

	if payload, err := json.Marshal(outcome); err == nil {
		h.auth.RecordImportAudit(c.Request.Context(), actorIDFromContext(c), payload, c.ClientIP(), c.Request.UserAgent())
	}
	_ = h.cache.Invalidate(c.Request.Context(), participantCachePattern)

	response.JSON(c, http.StatusOK, outcome, nil)
}

// ImportToCourse godoc
// @Summary Bulk import participants and enroll them into a course
// @Tags Courses
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Course ID"
// @Param file formData file true "XLSX or CSV file"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /courses/{id}/import [post]
func (h *ParticipantHandler) ImportToCourse(c *gin.Context) {
	rows, err := h.readUpload(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	start := time.Now()
	outcome := h.importer.Import(c.Request.Context(), rows, actorIDFromContext(c), c.Param("id"))
	h.metrics.RecordImportRun(outcome.Imported, outcome.Errors, outcome.DateErrors, time.Since(start))

	if payload, err := json.Marshal(outcome); err == nil {
		h.auth.RecordImportAudit(c.Request.Context(), actorIDFromContext(c), payload, c.ClientIP(), c.Request.UserAgent())
	}
	_ = h.cache.Invalidate(c.Request.Context(), participantCachePattern)

	response.JSON(c, http.StatusOK, outcome, nil)
}

// Export godoc
// @Summary Download participants as an XLSX workbook
// @Tags Participants
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param search query string false "Search by name or tax code"
// @Param companyId query string false "Filter by company"
// @Param courseId query string false "Filter by course enrollment"
// @Success 200 {file} binary
// @Security BearerAuth
// @Router /participants/export [get]
func (h *ParticipantHandler) Export(c *gin.Context) {
	filter := h.parseFilter(c)
	workbook, err := h.exporter.ParticipantsWorkbook(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	filename := fmt.Sprintf("partecipanti_%s.xlsx", time.Now().UTC().Format("20060102"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", workbook)
}

// Template godoc
// @Summary Download the empty import template
// @Tags Participants
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Success 200 {file} binary
// @Security BearerAuth
// @Router /participants/template [get]
func (h *ParticipantHandler) Template(c *gin.Context) {
	workbook, err := h.exporter.Template()
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="template_partecipanti.xlsx"`)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", workbook)
}

func (h *ParticipantHandler) readUpload(c *gin.Context) ([]spreadsheet.Row, error) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "missing file upload")
	}
	if fileHeader.Size > h.maxUpload {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file exceeds maximum allowed size")
	}
	file, err := fileHeader.Open()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open upload")
	}
	defer file.Close() //nolint:errcheck

	data, err := io.ReadAll(io.LimitReader(file, h.maxUpload+1))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read upload")
	}
	if int64(len(data)) > h.maxUpload {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file exceeds maximum allowed size")
	}

	rows, err := spreadsheet.ReadTable(fileHeader.Filename, data)
	if err != nil {
		if strings.Contains(err.Error(), "unsupported file type") {
			return nil, appErrors.Clone(appErrors.ErrUnsupportedFile, err.Error())
		}
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}
	return rows, nil
}

func (h *ParticipantHandler) parseFilter(c *gin.Context) models.ParticipantFilter {
	var filter models.ParticipantFilter
	filter.Search = strings.TrimSpace(c.Query("search"))
	filter.CompanyID = c.Query("companyId")
	filter.CourseID = c.Query("courseId")
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")
	return filter
}

func participantListCacheKey(filter models.ParticipantFilter) string {
	return fmt.Sprintf("participants:list:%s:%s:%s:%d:%d:%s:%s",
		filter.Search, filter.CompanyID, filter.CourseID, filter.Page, filter.PageSize, filter.SortBy, filter.SortOrder)
}
