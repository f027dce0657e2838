package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/commerce-metrics-api/internal/models"
	"github.com/noah-isme/commerce-metrics-api/internal/service"
	appErrors "github.com/noah-isme/commerce-metrics-api/pkg/errors"
)

type staticValidator map[string]models.Role

func (v staticValidator) ValidateToken(token string) (*models.JWTClaims, error) {
	role, ok := v[token]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
	}
	return &models.JWTClaims{Role: role}, nil
}

func guarded() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	validator := staticValidator{"op": models.RoleOperator, "view": models.RoleViewer}
	r.POST("/reload", JWT(validator), RequireRoles(models.RoleOperator), func(c *gin.Context) {
		c.Status(http.StatusAccepted)
	})
	return r
}

func TestJWTAndRoles(t *testing.T) {
	cases := []struct {
		name   string
		header string
		want   int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"malformed header", "Token op", http.StatusUnauthorized},
		{"empty bearer", "Bearer  ", http.StatusUnauthorized},
		{"unknown token", "Bearer nope", http.StatusUnauthorized},
		{"viewer forbidden", "Bearer view", http.StatusForbidden},
		{"operator allowed", "bearer op", http.StatusAccepted},
	}
	r := guarded()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/reload", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tc.want, w.Code)
		})
	}
}

func TestRequireRolesWithoutJWT(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/", RequireRoles(models.RoleViewer), func(c *gin.Context) { c.Status(http.StatusOK) })
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestResponseMeta(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	var meta map[string]interface{}
	r.Use(WithResponseMeta())
	r.GET("/", func(c *gin.Context) {
		SetCacheHit(c, true)
		SetSnapshotVersion(c, "v1")
		SetSnapshotVersion(c, "")
		meta = ExtractMeta(c)
		c.Status(http.StatusOK)
	})
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, true, meta["cache_hit"])
	assert.Equal(t, "v1", meta["snapshot_version"])
	assert.Contains(t, meta, "processing_time_ms")
}

func TestMetricsMiddlewareRouteLabels(t *testing.T) {
	gin.SetMode(gin.TestMode)
	metricsSvc := service.NewMetricsService()
	r := gin.New()
	r.Use(Metrics(metricsSvc, "/api/v1/"))
	r.GET("/api/v1/metrics/revenue", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/api/v1/metrics/exports/:id", func(c *gin.Context) { c.Status(http.StatusNotFound) })
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, path := range []string{"/api/v1/metrics/revenue", "/api/v1/metrics/exports/abc", "/health", "/wp-admin"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}
	assert.Equal(t, uint64(4), metricsSvc.Snapshot().RequestsTotal)

	w := httptest.NewRecorder()
	metricsSvc.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := w.Body.String()
	assert.Contains(t, body, `http_requests_total{method="GET",path="metrics/revenue",status="200"} 1`)
	assert.Contains(t, body, `http_requests_total{method="GET",path="metrics/exports/:id",status="404"} 1`)
	assert.Contains(t, body, `http_requests_total{method="GET",path="/health",status="200"} 1`)
	assert.Contains(t, body, `http_requests_total{method="GET",path="unmatched",status="404"} 1`)
}

func TestRouteLabel(t *testing.T) {
	cases := []struct {
		method, fullPath, prefix, want string
	}{
		{http.MethodGet, "/api/v1/metrics/summary", "/api/v1", "metrics/summary"},
		{http.MethodPost, "/api/v1/snapshots/reload", "/api/v1", "snapshots/reload"},
		{http.MethodGet, "/api/v10/metrics/summary", "/api/v1", "/api/v10/metrics/summary"},
		{http.MethodGet, "/metrics", "", "/metrics"},
		{http.MethodGet, "", "/api/v1", "unmatched"},
		{http.MethodOptions, "", "/api/v1", "preflight"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, RouteLabel(tc.method, tc.fullPath, tc.prefix), tc.fullPath)
	}
}
