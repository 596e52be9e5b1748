package routes

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redirect10-prog/siteForge-ai/internal/app/http/middleware"
	"github.com/redirect10-prog/siteForge-ai/internal/domain/plans"
	"github.com/redirect10-prog/siteForge-ai/internal/domain/users"
)

var secret = []byte("routes-test-secret-012345")

func newRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterRoutes(r, Handlers{Secret: secret, Limits: plans.DefaultTable()})
	return r
}

func serve(r *gin.Engine, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealthAndPlans(t *testing.T) {
	r := newRouter()

	w := serve(r, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	w = serve(r, http.MethodGet, "/plans", "")
	require.Equal(t, http.StatusOK, w.Code)
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.NotEmpty(t, out)
}

func TestMetricsExposed(t *testing.T) {
	w := serve(newRouter(), http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuthenticatedRoutesNeedToken(t *testing.T) {
	r := newRouter()
	for _, path := range []string{"/me", "/me/usage", "/websites", "/uploads"} {
		assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodGet, path, "").Code, path)
	}
	assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodPost, "/generate-image", "").Code)
}

func TestAdminRoutesNeedAdminRole(t *testing.T) {
	r := newRouter()
	tok, err := middleware.IssueToken(secret, middleware.Claims{UserID: 2, Role: users.RoleUser}, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, serve(r, http.MethodGet, "/admin/users", tok).Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodGet, "/admin/stats", "").Code)
}

func TestPreflightIsEmptySuccess(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORS([]string{"https://app.siteforge.test"}))
	RegisterRoutes(r, Handlers{Secret: secret, Limits: plans.DefaultTable()})

	for _, path := range []string{"/generate-website", "/generate-image", "/edit-website", "/generate-backend"} {
		req := httptest.NewRequest(http.MethodOptions, path, nil)
		req.Header.Set("Origin", "https://app.siteforge.test")
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		req.Header.Set("Access-Control-Request-Headers", "Authorization, Content-Type")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNoContent, w.Code, path)
		assert.Empty(t, w.Body.String(), path)
		assert.Equal(t, "https://app.siteforge.test", w.Header().Get("Access-Control-Allow-Origin"), path)
	}
}
