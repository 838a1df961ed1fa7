package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forma-labs/corsi-admin-api/internal/middleware"
	"github.com/forma-labs/corsi-admin-api/internal/models"
	"github.com/forma-labs/corsi-admin-api/internal/service"
	appErrors "github.com/forma-labs/corsi-admin-api/pkg/errors"
)

type reportServiceMock struct {
	createResp  *models.ReportJob
	createErr   error
	statusResp  *models.ReportJob
	statusErr   error
	download    *service.ReportDownload
	downloadErr error
	gotActorID  string
}

func (m *reportServiceMock) CreateJob(ctx context.Context, req service.ReportRequest, actorID string) (*models.ReportJob, error) {
	m.gotActorID = actorID
	return m.createResp, m.createErr
}

func (m *reportServiceMock) GetStatus(ctx context.Context, id string) (*models.ReportJob, error) {
	return m.statusResp, m.statusErr
}

func (m *reportServiceMock) ResolveDownload(ctx context.Context, token string) (*service.ReportDownload, error) {
	return m.download, m.downloadErr
}

func newGinContext(method, path string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	return c, w
}

func TestReportHandlerCreate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &reportServiceMock{
		createResp: &models.ReportJob{ID: "job-1", Status: models.ReportStatusQueued},
	}
	handler := NewReportHandler(mockSvc)

	payload, _ := json.Marshal(service.ReportRequest{
		Type:     models.ReportTypeRegister,
		CourseID: "course-1",
		Format:   models.ReportFormatPDF,
	})
	c, w := newGinContext(http.MethodPost, "/reports", payload)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "admin-1"})

	handler.Create(c)

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "admin-1", mockSvc.gotActorID)

	var envelope struct {
		Data models.ReportJob `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, "job-1", envelope.Data.ID)
	assert.Equal(t, models.ReportStatusQueued, envelope.Data.Status)
}

func TestReportHandlerCreateInvalidPayload(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewReportHandler(&reportServiceMock{})

	c, w := newGinContext(http.MethodPost, "/reports", []byte("{not json"))
	handler.Create(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReportHandlerStatusNotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewReportHandler(&reportServiceMock{statusErr: appErrors.ErrNotFound})

	c, w := newGinContext(http.MethodGet, "/reports/ghost", nil)
	c.Params = gin.Params{{Key: "id", Value: "ghost"}}
	handler.Status(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestReportHandlerDownloadInvalidToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewReportHandler(&reportServiceMock{
		downloadErr: appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token"),
	})

	c, w := newGinContext(http.MethodGet, "/reports/export/bad-token", nil)
	c.Params = gin.Params{{Key: "token", Value: "bad-token"}}
	handler.Download(c)

	assert.Equal(t, http.StatusForbidden, w.Code)
}
