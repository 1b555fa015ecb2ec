package middleware

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/judgeproxy/internal/logging"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(ClientFromContext(r.Context())))
	})
}

func TestAPIKeyAuth(t *testing.T) {
	h := APIKeyAuth(map[string]string{"web": "k1"})(okHandler())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/paul", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/paul", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/paul", nil)
	req.Header.Set("Authorization", "Bearer k1")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "web", rec.Body.String())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAPIKeyAuth_DisabledWhenNoKeys(t *testing.T) {
	rec := httptest.NewRecorder()
	APIKeyAuth(nil)(okHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/paul", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimit(t *testing.T) {
	h := RateLimit(NewRateLimiter(2, 0))(okHandler())
	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/paul", nil)
		req.RemoteAddr = "203.0.113.9:5555"
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{200, 200, 429}, codes)
}

func TestRateLimiter_Sweep(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	rl.Allow("a")
	rl.now = func() time.Time { return time.Now().Add(time.Hour) }
	assert.Equal(t, 1, rl.Sweep(10*time.Minute))
	assert.Equal(t, 0, rl.Sweep(10*time.Minute))
}

func TestHealthHandler(t *testing.T) {
	h := HealthHandler(map[string]HealthChecker{
		"ok":  CheckFunc(func(context.Context) error { return nil }),
		"bad": CheckFunc(func(context.Context) error { return errors.New("down") }),
	})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"down"`)
}

func TestValidateURL(t *testing.T) {
	assert.NoError(t, ValidateURL("https://github.com/acme/widget"))
	assert.Error(t, ValidateURL(""))
	assert.Error(t, ValidateURL("ftp://github.com/x"))
	assert.Error(t, ValidateURL("http://localhost:8080/x"))
	assert.Error(t, ValidateURL("http://192.168.1.2/x"))
	assert.Error(t, ValidateURL("https:///nohost"))
}

func TestValidateIDs(t *testing.T) {
	assert.NoError(t, ValidateJudgeID("receive_data"))
	assert.Error(t, ValidateJudgeID("Paul Graham"))
	assert.NoError(t, ValidateUserID("someone@gmail.com"))
	assert.Error(t, ValidateUserID(strings.Repeat("a", 300)))
	assert.Equal(t, "abc", SanitizeString(" a\x00b\x07c "))
}

func TestMetricsMiddleware(t *testing.T) {
	m := NewMetrics()
	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/api/{judge}", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNotFound) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/paul", nil))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("GET", "/api/{judge}", "404")))

	m.ObserveDispatch("paul", "completed", time.Second, 10)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.dispatches.WithLabelValues("paul", "completed")))
	assert.Equal(t, 10.0, testutil.ToFloat64(m.tokens.WithLabelValues("paul")))

	m.TrackStoreSize("paul", func() int { return 3 })
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `judgeproxy_store_entries{store="paul"} 3`)
}

func TestLogging(t *testing.T) {
	var buf bytes.Buffer
	log, err := logging.New(logging.Options{Out: &buf})
	require.NoError(t, err)

	h := Logging(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/paul", nil))
	assert.Contains(t, buf.String(), "status=418")
	assert.Contains(t, buf.String(), "path=/api/paul")
}
