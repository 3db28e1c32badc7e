package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quadriparlanti/qp-api/internal/models"
	"github.com/quadriparlanti/qp-api/internal/service"
)

func newMetricsRouter(svc *service.MetricsService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewMetricsHandler(svc)
	r := gin.New()
	r.GET("/api/v1/analytics/system", h.Snapshot)
	r.GET("/health", h.Health)
	return r
}

func TestSnapshotReportsRuntimeCounters(t *testing.T) {
	svc := service.NewMetricsService()
	svc.ObserveHTTPRequest(http.MethodGet, "/api/v1/public/works", http.StatusOK, 10*time.Millisecond)
	svc.ObserveDBQuery("works_list", 2*time.Millisecond)
	svc.RecordCacheOperation(true, time.Millisecond)
	svc.RecordCacheOperation(false, time.Millisecond)

	r := newMetricsRouter(svc)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/analytics/system", nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var snapshot models.SystemMetrics
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snapshot))
	assert.Equal(t, uint64(1), snapshot.RequestsTotal)
	assert.Equal(t, uint64(1), snapshot.DBQueryCount)
	assert.Equal(t, uint64(1), snapshot.CacheHits)
	assert.Equal(t, uint64(1), snapshot.CacheMisses)
	assert.InDelta(t, 0.5, snapshot.CacheHitRatio, 0.01)
	assert.Greater(t, snapshot.Goroutines, 0)
	assert.False(t, snapshot.GeneratedAt.IsZero())
}

func TestSnapshotUnavailableWithoutService(t *testing.T) {
	r := newMetricsRouter(nil)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/analytics/system", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
