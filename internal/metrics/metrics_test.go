package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func get(t *testing.T, h http.Handler, path string) (int, string) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return rec.Code, string(body)
}

func TestHandler_Readyz(t *testing.T) {
	price, redis := false, false
	h := Handler(prometheus.NewRegistry(), Checks{
		"price": func() bool { return price },
		"redis": func() bool { return redis },
	})

	code, body := get(t, h, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "not ready: price,redis", body)

	price = true
	_, body = get(t, h, "/readyz")
	assert.Equal(t, "not ready: redis", body)

	redis = true
	code, body = get(t, h, "/readyz")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body)

	code, _ = get(t, h, "/healthz")
	assert.Equal(t, http.StatusOK, code)
}

func TestHandler_MetricsFromRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "estimator_test_total", Help: "test"})
	reg.MustRegister(c)
	c.Inc()

	code, body := get(t, Handler(reg, nil), "/metrics")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "estimator_test_total 1")

	code, _ = get(t, Handler(reg, nil), "/readyz")
	assert.Equal(t, http.StatusOK, code)
}
