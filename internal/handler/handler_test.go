package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sangmeshafzalpur/minimini/internal/dto"
	"github.com/sangmeshafzalpur/minimini/internal/middleware"
	"github.com/sangmeshafzalpur/minimini/internal/models"
	"github.com/sangmeshafzalpur/minimini/internal/service"
	appErrors "github.com/sangmeshafzalpur/minimini/pkg/errors"
)

type timetableServiceMock struct {
	generateReq  dto.GenerateTimetableRequest
	generateResp *dto.GenerateTimetableResponse
	previewResp  *dto.PreviewResponse
	saveReq      dto.SaveTimetableRequest
	saveActor    string
	listQuery    dto.TimetableQuery
	detail       *dto.TimetableDetail
	deletedID    string
	flushed      bool
	err          error
}

func (m *timetableServiceMock) Generate(ctx context.Context, req dto.GenerateTimetableRequest) (*dto.GenerateTimetableResponse, error) {
	m.generateReq = req
	return m.generateResp, m.err
}

func (m *timetableServiceMock) Preview(ctx context.Context, req dto.PreviewDayRequest) (*dto.PreviewResponse, error) {
	return m.previewResp, m.err
}

func (m *timetableServiceMock) Save(ctx context.Context, req dto.SaveTimetableRequest, actorID string) (*dto.TimetableDetail, error) {
	m.saveReq = req
	m.saveActor = actorID
	return m.detail, m.err
}

func (m *timetableServiceMock) List(ctx context.Context, query dto.TimetableQuery) (*models.TimetableSummary, error) {
	m.listQuery = query
	if m.err != nil {
		return nil, m.err
	}
	return &models.TimetableSummary{AcademicKey: query.AcademicKey}, nil
}

func (m *timetableServiceMock) Get(ctx context.Context, id string) (*dto.TimetableDetail, error) {
	return m.detail, m.err
}

func (m *timetableServiceMock) Delete(ctx context.Context, id string) error {
	m.deletedID = id
	return m.err
}

func (m *timetableServiceMock) Publish(ctx context.Context, id string) (*models.Timetable, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &models.Timetable{ID: id, Status: models.TimetableStatusPublished}, nil
}

func (m *timetableServiceMock) FlushGenerationCache(ctx context.Context) error {
	m.flushed = m.err == nil
	return m.err
}

type exportServiceMock struct {
	enqueueID    string
	enqueueReq   dto.CreateExportRequest
	enqueueActor string
	status       *dto.ExportStatusResponse
	download     *service.ExportDownload
	err          error
}

func (m *exportServiceMock) Enqueue(ctx context.Context, timetableID string, req dto.CreateExportRequest, actorID string) (*models.TimetableExport, error) {
	m.enqueueID, m.enqueueReq, m.enqueueActor = timetableID, req, actorID
	if m.err != nil {
		return nil, m.err
	}
	return &models.TimetableExport{ID: "exp-1", TimetableID: timetableID, Format: models.ExportFormat(req.Format), Status: models.ExportStatusQueued}, nil
}

func (m *exportServiceMock) Status(ctx context.Context, id string) (*dto.ExportStatusResponse, error) {
	return m.status, m.err
}

func (m *exportServiceMock) ResolveDownload(ctx context.Context, token string) (*service.ExportDownload, error) {
	return m.download, m.err
}

func newGinContext(method, path string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	return c, w
}

func adminClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin}
}

func validGeneratePayload() []byte {
	return []byte(`{"academicYear":"2025-26","semesterType":"Even","semester":4,"branch":"CSE","classNo":"2","workingDays":5,"periodsPerDay":7,"scheduleType":"Morning","subjects":[{"name":"DS","type":"Theory","count":4,"faculty":"T1"}],"rooms":["C-101"],"divisions":["A","B"]}`)
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestTimetableHandlerGenerate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &timetableServiceMock{generateResp: &dto.GenerateTimetableResponse{ProposalID: "proposal-1", Mode: "preview", Cached: true}}
	handler := NewTimetableHandler(mockSvc)

	c, w := newGinContext(http.MethodPost, "/timetables/generate", validGeneratePayload())
	handler.Generate(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"A", "B"}, mockSvc.generateReq.Divisions)
	assert.Equal(t, "CSE", mockSvc.generateReq.Branch)
	assert.Equal(t, 7, mockSvc.generateReq.PeriodsPerDay)
	assert.Equal(t, "HIT", w.Header().Get("X-Cache"))

	body := decodeEnvelope(t, w)
	data := body["data"].(map[string]interface{})
	assert.Equal(t, "proposal-1", data["proposalId"])
	assert.Equal(t, true, body["meta"].(map[string]interface{})["cache_hit"])
}

func TestTimetableHandlerGenerateInvalidJSON(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewTimetableHandler(&timetableServiceMock{})

	c, w := newGinContext(http.MethodPost, "/timetables/generate", []byte(`{"divisions":`))
	handler.Generate(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTimetableHandlerGenerateServiceError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewTimetableHandler(&timetableServiceMock{err: appErrors.Clone(appErrors.ErrValidation, "No rooms provided.")})

	c, w := newGinContext(http.MethodPost, "/timetables/generate", validGeneratePayload())
	handler.Generate(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
	body := decodeEnvelope(t, w)
	assert.Equal(t, "No rooms provided.", body["error"].(map[string]interface{})["message"])
}

func TestTimetableHandlerPreview(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewTimetableHandler(&timetableServiceMock{previewResp: &dto.PreviewResponse{Warning: "w"}})

	payload := []byte(`{"workingDays":1,"periodsPerDay":4,"scheduleType":"Morning","rooms":["C-101"]}`)
	c, w := newGinContext(http.MethodPost, "/timetables/preview", payload)
	handler.Preview(c)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestTimetableHandlerSave(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &timetableServiceMock{detail: &dto.TimetableDetail{Timetable: models.Timetable{ID: "tt-1"}}}
	handler := NewTimetableHandler(mockSvc)

	c, w := newGinContext(http.MethodPost, "/timetables", []byte(`{"proposalId":"proposal-1","publish":true}`))
	c.Set(middleware.ContextUserKey, adminClaims())
	handler.Save(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "proposal-1", mockSvc.saveReq.ProposalID)
	assert.True(t, mockSvc.saveReq.Publish)
	assert.Equal(t, "admin-1", mockSvc.saveActor)
}

func TestTimetableHandlerSaveRequiresClaims(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewTimetableHandler(&timetableServiceMock{})

	c, w := newGinContext(http.MethodPost, "/timetables", []byte(`{"proposalId":"proposal-1"}`))
	handler.Save(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestTimetableHandlerSaveExpiredProposal(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewTimetableHandler(&timetableServiceMock{err: appErrors.ErrProposalExpired})

	c, w := newGinContext(http.MethodPost, "/timetables", []byte(`{"proposalId":"gone"}`))
	c.Set(middleware.ContextUserKey, adminClaims())
	handler.Save(c)
	require.Equal(t, http.StatusGone, w.Code)
}

func TestTimetableHandlerList(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &timetableServiceMock{}
	handler := NewTimetableHandler(mockSvc)

	c, w := newGinContext(http.MethodGet, "/timetables?academicKey=2025-26/EVEN/4/CSE/2", nil)
	handler.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2025-26/EVEN/4/CSE/2", mockSvc.listQuery.AcademicKey)
}

func TestTimetableHandlerGetPublishDelete(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &timetableServiceMock{detail: &dto.TimetableDetail{Timetable: models.Timetable{ID: "tt-1"}}}
	handler := NewTimetableHandler(mockSvc)

	c, w := newGinContext(http.MethodGet, "/timetables/tt-1", nil)
	c.Params = gin.Params{{Key: "id", Value: "tt-1"}}
	handler.Get(c)
	require.Equal(t, http.StatusOK, w.Code)

	c, w = newGinContext(http.MethodPost, "/timetables/tt-1/publish", nil)
	c.Params = gin.Params{{Key: "id", Value: "tt-1"}}
	handler.Publish(c)
	require.Equal(t, http.StatusOK, w.Code)
	data := decodeEnvelope(t, w)["data"].(map[string]interface{})
	assert.Equal(t, string(models.TimetableStatusPublished), data["status"])

	c, _ = newGinContext(http.MethodDelete, "/timetables/tt-1", nil)
	c.Params = gin.Params{{Key: "id", Value: "tt-1"}}
	handler.Delete(c)
	assert.Equal(t, http.StatusNoContent, c.Writer.Status())
	assert.Equal(t, "tt-1", mockSvc.deletedID)
}

func TestTimetableHandlerPublishConflict(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewTimetableHandler(&timetableServiceMock{err: appErrors.ErrPublished})

	c, w := newGinContext(http.MethodPost, "/timetables/tt-1/publish", nil)
	c.Params = gin.Params{{Key: "id", Value: "tt-1"}}
	handler.Publish(c)
	require.Equal(t, http.StatusConflict, w.Code)
}

func TestTimetableHandlerFlushCache(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &timetableServiceMock{}
	handler := NewTimetableHandler(mockSvc)

	c, w := newGinContext(http.MethodDelete, "/timetables/cache", nil)
	handler.FlushCache(c)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.True(t, mockSvc.flushed)

	disabled := NewTimetableHandler(&timetableServiceMock{err: appErrors.Clone(appErrors.ErrPreconditionFailed, "generation cache is disabled")})
	c, w = newGinContext(http.MethodDelete, "/timetables/cache", nil)
	disabled.FlushCache(c)
	require.Equal(t, http.StatusPreconditionFailed, w.Code)
	assert.Equal(t, "PRECONDITION_FAILED", decodeEnvelope(t, w)["error"].(map[string]interface{})["code"])
}

func TestTimetableRoutesUnauthorized(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewTimetableHandler(&timetableServiceMock{})
	router := gin.New()
	router.POST("/timetables/generate", middleware.RBAC(string(models.RoleAdmin)), handler.Generate)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/timetables/generate", bytes.NewReader(validGeneratePayload()))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestTimetableRoutesForbidden(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewTimetableHandler(&timetableServiceMock{})
	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "teacher-1", Role: models.RoleTeacher})
		c.Next()
	})
	router.POST("/timetables/generate", middleware.RBAC(string(models.RoleAdmin), string(models.RoleSuperAdmin)), handler.Generate)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/timetables/generate", bytes.NewReader(validGeneratePayload()))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestExportHandlerCreate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &exportServiceMock{}
	handler := NewExportHandler(mockSvc)

	c, w := newGinContext(http.MethodPost, "/timetables/tt-1/exports", []byte(`{"format":"csv","division":"A"}`))
	c.Params = gin.Params{{Key: "id", Value: "tt-1"}}
	c.Set(middleware.ContextUserKey, adminClaims())
	handler.Create(c)

	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "tt-1", mockSvc.enqueueID)
	assert.Equal(t, "A", mockSvc.enqueueReq.Division)
	assert.Equal(t, "admin-1", mockSvc.enqueueActor)
}

func TestExportHandlerStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	expires := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	handler := NewExportHandler(&exportServiceMock{status: &dto.ExportStatusResponse{
		Export:      models.TimetableExport{ID: "exp-1", Status: models.ExportStatusFinished},
		DownloadURL: "/api/v1/exports/token",
		ExpiresAt:   &expires,
	}})

	c, w := newGinContext(http.MethodGet, "/exports/jobs/exp-1", nil)
	c.Params = gin.Params{{Key: "id", Value: "exp-1"}}
	handler.Status(c)
	require.Equal(t, http.StatusOK, w.Code)
	data := decodeEnvelope(t, w)["data"].(map[string]interface{})
	assert.Equal(t, "/api/v1/exports/token", data["downloadUrl"])
}

func TestExportHandlerDownload(t *testing.T) {
	gin.SetMode(gin.TestMode)
	path := filepath.Join(t.TempDir(), "grid.csv")
	require.NoError(t, os.WriteFile(path, []byte("Division,Day\nA,Monday\n"), 0o600))
	file, err := os.Open(path)
	require.NoError(t, err)

	handler := NewExportHandler(&exportServiceMock{download: &service.ExportDownload{
		File:     file,
		Filename: "grid.csv",
		Format:   models.ExportFormatCSV,
	}})

	c, w := newGinContext(http.MethodGet, "/exports/token", nil)
	c.Params = gin.Params{{Key: "token", Value: "token"}}
	handler.Download(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `attachment; filename="grid.csv"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Equal(t, "Division,Day\nA,Monday\n", w.Body.String())
}

func TestExportHandlerDownloadForbidden(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewExportHandler(&exportServiceMock{err: appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token")})

	c, w := newGinContext(http.MethodGet, "/exports/bad", nil)
	c.Params = gin.Params{{Key: "token", Value: "bad"}}
	handler.Download(c)
	require.Equal(t, http.StatusForbidden, w.Code)
}

type pingerStub struct{ err error }

func (p pingerStub) PingContext(context.Context) error { return p.err }

func TestMetricsHandlerReadiness(t *testing.T) {
	gin.SetMode(gin.TestMode)

	c, w := newGinContext(http.MethodGet, "/ready", nil)
	NewMetricsHandler(nil, pingerStub{}).Ready(c)
	require.Equal(t, http.StatusOK, w.Code)

	c, w = newGinContext(http.MethodGet, "/ready", nil)
	NewMetricsHandler(nil, pingerStub{err: errors.New("down")}).Ready(c)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)

	c, w = newGinContext(http.MethodGet, "/metrics", nil)
	NewMetricsHandler(nil, nil).Prometheus(c)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.True(t, c.IsAborted())
	assert.Empty(t, w.Body.String())
}

func TestMetricsHandlerPrometheusAndSummary(t *testing.T) {
	gin.SetMode(gin.TestMode)
	metrics := service.NewMetricsService()
	metrics.ObserveGeneration("divisions", "ok", 20*time.Millisecond, 2)
	handler := NewMetricsHandler(metrics, nil)

	c, w := newGinContext(http.MethodGet, "/metrics", nil)
	handler.Prometheus(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "timetable_unplaced_sessions_total 2")

	c, w = newGinContext(http.MethodGet, "/metrics/summary", nil)
	handler.Summary(c)
	require.Equal(t, http.StatusOK, w.Code)
}
