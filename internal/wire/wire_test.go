package wire

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"car-rental/internal/adaptor"
	"car-rental/internal/usecase"
	"car-rental/pkg/middleware"
	"car-rental/pkg/utils"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "test-secret"

func testRouter() http.Handler {
	config := &utils.Config{JWT: utils.JWTConfig{Secret: testSecret}}
	handler := adaptor.NewHandler(&usecase.Service{}, zap.NewNop())
	return setupRouter(handler, config, nil, zap.NewNop())
}

func token(t *testing.T, role string) string {
	t.Helper()
	tok, err := middleware.IssueToken(testSecret, uuid.New(), role, time.Hour)
	require.NoError(t, err)
	return "Bearer " + tok
}

func TestHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	testRouter().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	router := testRouter()
	routes := []struct{ method, path string }{
		{http.MethodPost, "/api/bookings"},
		{http.MethodGet, "/api/user/bookings"},
		{http.MethodPut, "/api/bookings/" + uuid.NewString() + "/approve"},
		{http.MethodPut, "/api/bookings/" + uuid.NewString() + "/start"},
		{http.MethodPut, "/api/bookings/" + uuid.NewString() + "/return"},
		{http.MethodPut, "/api/cars/" + uuid.NewString() + "/availability"},
		{http.MethodGet, "/api/user/balance"},
		{http.MethodPost, "/api/withdrawals"},
		{http.MethodPost, "/api/reports"},
		{http.MethodGet, "/api/staff/withdrawals"},
		{http.MethodGet, "/api/staff/reports"},
	}

	for _, rt := range routes {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(rt.method, rt.path, nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "%s %s", rt.method, rt.path)
	}
}

func TestStaffRoutesRejectRegularUsers(t *testing.T) {
	router := testRouter()
	paths := []string{"/api/staff/withdrawals", "/api/staff/reports"}

	for _, path := range paths {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("Authorization", token(t, "user"))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusForbidden, rec.Code, path)
	}
}

func TestWebhookNeedsNoToken(t *testing.T) {
	rec := httptest.NewRecorder()
	testRouter().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/payments/payos/webhook", nil))

	// the route exists for POST only, and is not behind auth
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
