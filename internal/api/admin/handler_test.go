package admin

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type recordingTiers struct {
	userID uint
	tier   string
}

func (r *recordingTiers) SetTier(_ context.Context, userID uint, tier string) error {
	r.userID, r.tier = userID, tier
	return nil
}

func newRouter(t *testing.T) (sqlmock.Sqlmock, *recordingTiers, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	tiers := &recordingTiers{}
	h := &Handler{DB: db, Tiers: tiers}
	r := gin.New()
	r.PUT("/admin/users/:id/tier", h.SetUserTier)
	r.GET("/admin/stats", h.GetAdminStats)
	return mock, tiers, r
}

func put(r http.Handler, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPut, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestSetUserTier(t *testing.T) {
	mock, tiers, r := newRouter(t)
	mock.ExpectQuery(`SELECT "id" FROM "users" WHERE "users"."id" = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(5))

	w := put(r, "/admin/users/5/tier", `{"tier":"business"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, uint(5), tiers.userID)
	assert.Equal(t, "business", tiers.tier)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetUserTierValidation(t *testing.T) {
	_, tiers, r := newRouter(t)
	assert.Equal(t, http.StatusBadRequest, put(r, "/admin/users/5/tier", `{"tier":"gold"}`).Code)
	assert.Equal(t, http.StatusBadRequest, put(r, "/admin/users/abc/tier", `{"tier":"pro"}`).Code)
	assert.Empty(t, tiers.tier)
}

func TestSetUserTierUnknownUser(t *testing.T) {
	mock, tiers, r := newRouter(t)
	mock.ExpectQuery(`SELECT "id" FROM "users"`).WillReturnRows(sqlmock.NewRows([]string{"id"}))
	assert.Equal(t, http.StatusNotFound, put(r, "/admin/users/9/tier", `{"tier":"pro"}`).Code)
	assert.Empty(t, tiers.tier)
}

func TestGetAdminStats(t *testing.T) {
	mock, _, r := newRouter(t)
	mock.ExpectQuery(`SELECT count\(\*\) FROM "users"`).WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(10))
	mock.ExpectQuery(`SELECT count\(\*\) FROM "generated_websites"`).WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(25))
	mock.ExpectQuery(`SELECT count\(\*\) FROM "generated_websites" WHERE created_at >= \$1`).WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))
	mock.ExpectQuery(`SELECT COALESCE\(user_subscriptions.tier, 'free'\) AS tier`).
		WillReturnRows(sqlmock.NewRows([]string{"tier", "count"}).AddRow("free", 6).AddRow("pro", 3).AddRow("legacy", 1))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin/stats", nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"total_users":10,"total_websites":25,"recent_websites":7,"users_per_tier":{"free":7,"pro":3}}`, w.Body.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}
