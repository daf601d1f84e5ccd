package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/csv"
	"encoding/json"
	"errors"
	"image"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codecurser/park-vision-control-system/internal/api/handler"
	"github.com/codecurser/park-vision-control-system/internal/api/middleware"
	"github.com/codecurser/park-vision-control-system/internal/domain"
	"github.com/codecurser/park-vision-control-system/internal/metrics"
	"github.com/codecurser/park-vision-control-system/internal/ocr"
	"github.com/codecurser/park-vision-control-system/internal/plate"
	"github.com/codecurser/park-vision-control-system/internal/preprocess"
	"github.com/codecurser/park-vision-control-system/internal/repository/localstore"
	"github.com/codecurser/park-vision-control-system/internal/service"
)

type testServer struct {
	router   *gin.Engine
	reading  ocr.Recognition
	ocrErr   error
	operator string
	admin    string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store, err := localstore.Open(t.TempDir())
	require.NoError(t, err)

	ts := &testServer{reading: ocr.Recognition{Text: "ABC123", Confidence: 91}}
	rec := ocr.Func(func(context.Context, image.Image) (ocr.Recognition, error) {
		return ts.reading, ts.ocrErr
	})

	m := metrics.New()
	auth := service.NewAuthService(localstore.NewUserRepository(store), "router-test-secret", time.Hour)
	entries := service.NewEntryService(localstore.NewEntryStore(store), service.NewEntryLog(), m)
	lpr := service.NewLPRService(rec, plate.DefaultPolicy, entries, m)
	ts.router = SetupRouter(auth, entries, lpr, middleware.NewAuthMiddleware(auth), handler.NewWebSocketManager(), m)

	ctx := context.Background()
	require.NoError(t, auth.EnsureAdmin(ctx, "admin", "admin-pass"))
	_, err = auth.Register(ctx, domain.RegisterUserDTO{Username: "operator", Password: "operator-pass"})
	require.NoError(t, err)

	ts.admin = ts.login(t, "admin", "admin-pass")
	ts.operator = ts.login(t, "operator", "operator-pass")
	return ts
}

func (ts *testServer) do(method, path, token string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func (ts *testServer) login(t *testing.T, user, pass string) string {
	t.Helper()
	w := ts.do(http.MethodPost, "/auth/login", "", domain.LoginUserDTO{Username: user, Password: pass})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp domain.AuthResponseDTO
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Token
}

func frameDataURL(t *testing.T) string {
	t.Helper()
	data, err := preprocess.EncodePNG(image.NewNRGBA(image.Rect(0, 0, 40, 16)))
	require.NoError(t, err)
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(data)
}

func TestCapture_EndToEnd(t *testing.T) {
	ts := newTestServer(t)
	req := domain.CaptureRequestDTO{ImageBase64: frameDataURL(t), EntryType: "entry", CameraID: "north"}

	w := ts.do(http.MethodPost, "/api/v1/captures", ts.operator, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var res domain.CaptureResultDTO
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, "A8C123", res.DetectedPlate)
	require.NotNil(t, res.Entry)
	assert.Equal(t, domain.EntryTypeEntry, res.Entry.EntryType)

	w = ts.do(http.MethodPost, "/api/v1/captures", ts.operator, req)
	assert.Equal(t, http.StatusConflict, w.Code)

	req.EntryType = "Exit"
	w = ts.do(http.MethodPost, "/api/v1/captures", ts.operator, req)
	assert.Equal(t, http.StatusCreated, w.Code)

	w = ts.do(http.MethodGet, "/api/v1/entries?type=Exit", ts.operator, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var listed []domain.ParkingEntry
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listed))
	require.Len(t, listed, 1)
	assert.Equal(t, "A8C123", listed[0].PlateNumber)

	w = ts.do(http.MethodGet, "/api/v1/entries/summary", ts.operator, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"total":2,"entries":1,"exits":1,"today":2}`, w.Body.String())
}

func TestCapture_ErrorMapping(t *testing.T) {
	ts := newTestServer(t)
	valid := domain.CaptureRequestDTO{ImageBase64: frameDataURL(t), EntryType: "Entry"}

	w := ts.do(http.MethodPost, "/api/v1/captures", ts.operator, domain.CaptureRequestDTO{ImageBase64: frameDataURL(t), EntryType: "Parked"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(http.MethodPost, "/api/v1/captures", ts.operator, domain.CaptureRequestDTO{ImageBase64: "!!!", EntryType: "Entry"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	ts.ocrErr = errors.New("engine down")
	w = ts.do(http.MethodPost, "/api/v1/captures", ts.operator, valid)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), "OCR Processing Failed")

	ts.ocrErr = nil
	ts.reading = ocr.Recognition{Text: "A1", Confidence: 95}
	w = ts.do(http.MethodPost, "/api/v1/captures", ts.operator, valid)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "length", body["rule"])
}

func TestPreview_DoesNotLog(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(http.MethodPost, "/api/v1/captures/preview", ts.operator, domain.PreviewRequestDTO{ImageBase64: frameDataURL(t)})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = ts.do(http.MethodGet, "/api/v1/entries", ts.operator, nil)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestExport(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(http.MethodPost, "/api/v1/captures", ts.operator, domain.CaptureRequestDTO{ImageBase64: frameDataURL(t), EntryType: "Entry"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = ts.do(http.MethodGet, "/api/v1/entries/export?search=a8c", ts.operator, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), `filename="parking-logs-`)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/csv")

	rows, err := csv.NewReader(w.Body).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"Plate Number", "Entry Type", "Timestamp"}, rows[0])
	assert.Equal(t, "A8C123", rows[1][0])

	w = ts.do(http.MethodGet, "/api/v1/entries/export?search=zzz", ts.operator, nil)
	rows, err = csv.NewReader(w.Body).ReadAll()
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	w = ts.do(http.MethodGet, "/api/v1/entries?range=yesterday", ts.operator, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuthAndRoles(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodGet, "/api/v1/entries", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = ts.do(http.MethodGet, "/api/v1/entries", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = ts.do(http.MethodPost, "/api/v1/entries/refresh", ts.operator, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = ts.do(http.MethodPost, "/api/v1/entries/refresh", ts.admin, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = ts.do(http.MethodPost, "/auth/register", "", domain.RegisterUserDTO{Username: "operator", Password: "whatever1"})
	assert.Equal(t, http.StatusConflict, w.Code)
	w = ts.do(http.MethodPost, "/auth/login", "", domain.LoginUserDTO{Username: "operator", Password: "nope"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestMe_ReportsRole(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodGet, "/api/v1/me", ts.operator, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var op domain.ProfileDTO
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &op))
	assert.Equal(t, "operator", op.Username)
	assert.Equal(t, domain.RoleOperator, op.Role)
	assert.False(t, op.CanRefresh)

	w = ts.do(http.MethodGet, "/api/v1/me", ts.admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var admin domain.ProfileDTO
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &admin))
	assert.Equal(t, domain.RoleAdmin, admin.Role)
	assert.True(t, admin.CanRefresh)

	w = ts.do(http.MethodGet, "/api/v1/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRegister_YieldsOperatorWithoutHash(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodPost, "/auth/register", "", domain.RegisterUserDTO{Username: "night-shift", Password: "secret-1"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.NotContains(t, w.Body.String(), "password")
	var p domain.ProfileDTO
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &p))
	assert.Equal(t, domain.RoleOperator, p.Role)
	assert.NotZero(t, p.UserID)

	w = ts.do(http.MethodPost, "/auth/register", "", map[string]string{"username": "x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid payload")
}

func TestHealthAndMetrics(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)

	w = ts.do(http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "smartpark_http_requests_total")
}
