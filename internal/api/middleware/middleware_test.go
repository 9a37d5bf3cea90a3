package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func setupTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return gin.New()
}

func serve(router *gin.Engine, method, path, remote string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if remote != "" {
		req.RemoteAddr = remote
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestCORS(t *testing.T) {
	router := setupTestRouter()
	router.Use(CORS(DefaultCORSConfig()))
	router.POST("/api/results", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	tests := []struct {
		name           string
		method         string
		origin         string
		wantStatus     int
		wantCORSHeader bool
	}{
		{
			name:           "callback from page origin",
			method:         "POST",
			origin:         "http://app.local",
			wantStatus:     http.StatusOK,
			wantCORSHeader: true,
		},
		{
			name:           "preflight OPTIONS request",
			method:         "OPTIONS",
			origin:         "http://app.local",
			wantStatus:     http.StatusNoContent,
			wantCORSHeader: true,
		},
		{
			name:           "no origin header",
			method:         "POST",
			wantStatus:     http.StatusOK,
			wantCORSHeader: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/api/results", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			if tt.method == "OPTIONS" {
				req.Header.Set("Access-Control-Request-Method", "POST")
			}

			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantCORSHeader {
				assert.NotEmpty(t, w.Header().Get("Access-Control-Allow-Origin"))
			} else {
				assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
			}
		})
	}
}

func TestRateLimit(t *testing.T) {
	router := setupTestRouter()
	router.Use(RateLimit(RateLimitConfig{RequestsPerSecond: 2, Burst: 2}))
	router.POST("/api/execute", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 2; i++ {
		w := serve(router, "POST", "/api/execute", "192.168.1.1:1234")
		assert.Equal(t, http.StatusOK, w.Code, "Request %d should succeed", i+1)
	}

	w := serve(router, "POST", "/api/execute", "192.168.1.1:1234")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.JSONEq(t, `{"success":false,"data":null,"error":{"code":"RATE_LIMITED","message":"rate limit exceeded"}}`, w.Body.String())
}

func TestRateLimitDifferentClients(t *testing.T) {
	router := setupTestRouter()
	router.Use(RateLimit(RateLimitConfig{RequestsPerSecond: 1, Burst: 1}))
	router.GET("/api/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, serve(router, "GET", "/api/health", "192.168.1.1:1234").Code)
	assert.Equal(t, http.StatusOK, serve(router, "GET", "/api/health", "192.168.1.2:1234").Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(router, "GET", "/api/health", "192.168.1.1:1234").Code)
}

func TestRateLimitExemptRoutes(t *testing.T) {
	router := setupTestRouter()
	cfg := DefaultRateLimitConfig()
	cfg.RequestsPerSecond = 1
	cfg.Burst = 1
	router.Use(RateLimit(cfg))
	router.POST("/api/results", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, serve(router, "POST", "/api/results", "192.168.1.1:1234").Code)
	}
}

func TestGlobalRateLimit(t *testing.T) {
	router := setupTestRouter()
	router.Use(GlobalRateLimit(RateLimitConfig{RequestsPerSecond: 2, Burst: 2}))
	router.GET("/api/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, serve(router, "GET", "/api/health", "10.0.0.1:1").Code)
	assert.Equal(t, http.StatusOK, serve(router, "GET", "/api/health", "10.0.0.2:1").Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(router, "GET", "/api/health", "10.0.0.3:1").Code)
}

func TestLimitSelectsMode(t *testing.T) {
	tests := []struct {
		name   string
		global bool
		want   int
	}{
		{name: "per client", global: false, want: http.StatusOK},
		{name: "global", global: true, want: http.StatusTooManyRequests},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := setupTestRouter()
			router.Use(Limit(RateLimitConfig{RequestsPerSecond: 1, Burst: 1, Global: tt.global}))
			router.GET("/api/health", func(c *gin.Context) { c.Status(http.StatusOK) })

			assert.Equal(t, http.StatusOK, serve(router, "GET", "/api/health", "10.0.0.1:1").Code)
			assert.Equal(t, tt.want, serve(router, "GET", "/api/health", "10.0.0.2:1").Code)
		})
	}
}

func TestLogger(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	router := setupTestRouter()
	router.Use(Logger(zap.New(core), 20*time.Millisecond))
	router.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/slow", func(c *gin.Context) {
		time.Sleep(30 * time.Millisecond)
		c.Status(http.StatusOK)
	})
	router.GET("/fail", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	serve(router, "GET", "/ok", "")
	serve(router, "GET", "/slow", "")
	serve(router, "GET", "/fail", "")

	entries := logs.All()
	if assert.Len(t, entries, 3) {
		assert.Equal(t, "Request served", entries[0].Message)
		assert.Equal(t, "Slow request", entries[1].Message)
		assert.Equal(t, "Request failed", entries[2].Message)
	}
}

func TestDefaultConfigs(t *testing.T) {
	cors := DefaultCORSConfig()
	assert.Contains(t, cors.AllowOrigins, "*")
	assert.Contains(t, cors.AllowMethods, "POST")
	assert.Equal(t, 12*time.Hour, cors.MaxAge)

	rl := DefaultRateLimitConfig()
	assert.Equal(t, 100, rl.RequestsPerSecond)
	assert.Equal(t, 200, rl.Burst)
	assert.Contains(t, rl.Exempt, "/api/results")
}

func BenchmarkRateLimit(b *testing.B) {
	router := setupTestRouter()
	router.Use(RateLimit(DefaultRateLimitConfig()))
	router.GET("/test", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest("GET", "/test", nil)
	req.RemoteAddr = "192.168.1.1:1234"

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
	}
}
