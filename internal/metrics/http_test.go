package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scrape returns the exposition text currently served by provider.
func scrape(t *testing.T, provider *Provider) string {
	t.Helper()
	w := httptest.NewRecorder()
	provider.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	return w.Body.String()
}

// assertMetricLine checks for a sample matching name, a partial label pattern and
// value. The exporter adds OTel scope labels, hence the regex.
func assertMetricLine(t *testing.T, output, name, labels, value string) {
	t.Helper()
	assert.Regexp(t, name+`\{[^}]*`+labels+`[^}]*\} `+value, output)
}

func TestHTTPMetricsMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	provider, err := NewProvider("test_app")
	require.NoError(t, err)
	defer func() {
		assert.NoError(t, provider.Shutdown(context.Background()))
	}()

	router := gin.New()
	router.Use(HTTPMetricsMiddleware(provider.MeterProvider(), "test_app"))
	router.GET("/v1/titles/:id", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"id": c.Param("id")})
	})
	router.POST("/v1/titles/:id/restock", func(c *gin.Context) {
		c.JSON(http.StatusConflict, gin.H{"error": "conflict"})
	})

	for _, path := range []string{"/v1/titles/1", "/v1/titles/2", "/v1/titles/3"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/titles/1/restock", nil))
	require.Equal(t, http.StatusConflict, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nowhere", nil))
	require.Equal(t, http.StatusNotFound, w.Code)

	output := scrape(t, provider)

	assertMetricLine(t, output, `test_app_http_requests_total`,
		`method="GET".*path="/v1/titles/:id".*status_code="200"`, `3`)
	assertMetricLine(t, output, `test_app_http_requests_total`,
		`method="POST".*path="/v1/titles/:id/restock".*status_code="409"`, `1`)
	assertMetricLine(t, output, `test_app_http_requests_total`,
		`path="unknown".*status_code="404"`, `1`)
	assertMetricLine(t, output, `test_app_http_requests_in_flight`, ``, `0`)
}

func TestRouteTemplate(t *testing.T) {
	assert.Equal(t, "/v1/titles/:id", routeTemplate("/v1/titles/:id"))
	assert.Equal(t, "unknown", routeTemplate(""))
}
