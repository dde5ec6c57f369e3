package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	InitMetrics()
	InitMetrics() // registering twice must not panic

	r := gin.New()
	r.Use(MetricsMiddleware())
	r.GET("/api/v1/transactions/:hash", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	before := testutil.ToFloat64(RESTRequestMetricsTotal.WithLabelValues(http.MethodGet, "/api/v1/transactions/:hash", "404"))
	for i := 0; i < 2; i++ {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/transactions/0xabc", nil))
	}
	after := testutil.ToFloat64(RESTRequestMetricsTotal.WithLabelValues(http.MethodGet, "/api/v1/transactions/:hash", "404"))
	assert.Equal(t, before+2, after)
	assert.Equal(t, float64(0), testutil.ToFloat64(inFlightRESTRequests))
}
