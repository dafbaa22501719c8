package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGinMiddlewareRecordsRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	reg := prometheus.NewRegistry()
	m, err := newHTTPMetrics(reg)
	require.NoError(t, err)

	r := gin.New()
	r.Use(GinMiddleware(m))
	r.GET("/api/merchants/:merchantId/bookings", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/merchants/42/bookings", nil)
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	}

	got := testutil.ToFloat64(m.requests.WithLabelValues(http.MethodGet, "/api/merchants/:merchantId/bookings", "200"))
	assert.Equal(t, float64(2), got)

	families, err := reg.Gather()
	require.NoError(t, err)

	var histogram *dto.MetricFamily
	for _, mf := range families {
		if mf.GetName() == "marketplace_http_request_duration_seconds" {
			histogram = mf
		}
	}
	require.NotNil(t, histogram)
	require.Len(t, histogram.GetMetric(), 1)
	assert.Equal(t, uint64(2), histogram.GetMetric()[0].GetHistogram().GetSampleCount())
}

func TestNewHTTPMetricsReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := newHTTPMetrics(reg)
	require.NoError(t, err)
	second, err := newHTTPMetrics(reg)
	require.NoError(t, err)

	first.Observe(http.MethodPost, "/api/platform-fees", http.StatusCreated, 0)
	got := testutil.ToFloat64(second.requests.WithLabelValues(http.MethodPost, "/api/platform-fees", "201"))
	assert.Equal(t, float64(1), got)
}

func TestUnmatchedRouteLabel(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := newHTTPMetrics(reg)
	require.NoError(t, err)

	m.Observe(http.MethodGet, "", http.StatusNotFound, 0)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.requests.WithLabelValues(http.MethodGet, "unmatched", "404")))
}
