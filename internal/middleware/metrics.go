package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/commerce-metrics-api/internal/service"
)

const (
	routeUnmatched = "unmatched"
	routePreflight = "preflight"
)

// Metrics records latency and status per route. Routes under apiPrefix are labelled without it,
// so "/api/v1/metrics/revenue" is reported as "metrics/revenue".
func Metrics(metricsSvc *service.MetricsService, apiPrefix string) gin.HandlerFunc {
	prefix := strings.TrimRight(apiPrefix, "/")
	return func(c *gin.Context) {
		if metricsSvc == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()
		route := RouteLabel(c.Request.Method, c.FullPath(), prefix)
		metricsSvc.ObserveHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}

// RouteLabel maps a matched gin route to its metrics label. Unrouted requests collapse into one
// label to keep cardinality bounded.
func RouteLabel(method, fullPath, apiPrefix string) string {
	switch {
	case method == http.MethodOptions && fullPath == "":
		return routePreflight
	case fullPath == "":
		return routeUnmatched
	case apiPrefix != "" && strings.HasPrefix(fullPath, apiPrefix+"/"):
		return strings.TrimPrefix(fullPath, apiPrefix+"/")
	default:
		return fullPath
	}
}
