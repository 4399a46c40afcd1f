package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/AnshRaj112/chatooz-backend/internal/logging"
	"github.com/AnshRaj112/chatooz-backend/internal/metrics"
)

var ok = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func do(h http.Handler, method, path string, mutate ...func(*http.Request)) *httptest.ResponseRecorder {
	r := httptest.NewRequest(method, path, nil)
	r.RemoteAddr = "10.0.0.1:1234"
	for _, m := range mutate {
		m(r)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	return rec
}

func TestKeyedLimiter(t *testing.T) {
	l := NewKeyedLimiter(rate.Every(time.Hour), 2)

	assert.True(t, l.Allow("a"))
	assert.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"))
	assert.True(t, l.Allow("b"))

	now := time.Now()
	l.now = func() time.Time { return now.Add(limiterTTL + time.Minute) }
	l.Sweep()
	assert.Equal(t, 0, l.size())
}

func TestAuthRateLimit(t *testing.T) {
	l := NewLimits(false)
	h := AuthRateLimit(l)(ok)

	assert.Equal(t, http.StatusOK, do(h, http.MethodPost, "/api/auth/signin").Code)
	assert.Equal(t, http.StatusOK, do(h, http.MethodPost, "/api/auth/signin").Code)
	rec := do(h, http.MethodPost, "/api/auth/signin")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), "Too many login attempts")

	// Other routes are not counted.
	assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "/api/profile").Code)
}

func TestChatHistoryRateLimit_SeparateBuckets(t *testing.T) {
	l := NewLimits(false)
	l.Anon = NewKeyedLimiter(rate.Every(time.Hour), 1)
	h := ChatHistoryRateLimit(l)(ok)

	assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "/api/chat/history").Code)
	assert.Equal(t, http.StatusTooManyRequests, do(h, http.MethodGet, "/api/chat/history").Code)

	rec := do(h, http.MethodGet, "/api/chat/history", func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer abc")
	})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "20", rec.Header().Get("X-RateLimit-Limit"))
}

func TestSecurityHeadersAndHostCheck(t *testing.T) {
	h := SecurityHeaders(HostCheck("api.example.com")(ok))

	rec := do(h, http.MethodGet, "http://api.example.com:8080/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	rec = do(h, http.MethodGet, "http://evil.example.com/health")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRedisRateLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	h := RedisRateLimit(rdb, "lookup", 2, time.Minute, ByIP(false))(ok)

	assert.Equal(t, "1", do(h, http.MethodPost, "/x").Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, http.StatusOK, do(h, http.MethodPost, "/x").Code)
	assert.Equal(t, http.StatusTooManyRequests, do(h, http.MethodPost, "/x").Code)

	mr.FastForward(time.Minute + time.Second)
	assert.Equal(t, http.StatusOK, do(h, http.MethodPost, "/x").Code)

	mr.Close()
	assert.Equal(t, http.StatusOK, do(h, http.MethodPost, "/x").Code)
}

func TestCORSPreflight(t *testing.T) {
	h := CORS([]string{"http://localhost:3000"})(ok)

	rec := do(h, http.MethodOptions, "/api/auth/signin", func(r *http.Request) {
		r.Header.Set("Origin", "http://localhost:3000")
		r.Header.Set("Access-Control-Request-Method", http.MethodPost)
	})
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = do(h, http.MethodGet, "/health", func(r *http.Request) {
		r.Header.Set("Origin", "http://evil.com")
	})
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestObserveUsesRoutePattern(t *testing.T) {
	m := metrics.New()
	r := chi.NewRouter()
	r.Use(Observe(logging.Discard(), m))
	r.Get("/api/items/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	rec := do(r, http.MethodGet, "/api/items/42")
	require.Equal(t, http.StatusTeapot, rec.Code)

	scrape := httptest.NewRecorder()
	m.Handler().ServeHTTP(scrape, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, scrape.Body.String(), `route="/api/items/{id}"`)
}
