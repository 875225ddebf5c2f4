package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequestID(t *testing.T) {
	var seen string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFrom(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	RequestID(inner).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get("X-Request-ID"))
}

func TestClientKey(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/v1/name/push/7", nil)
	r.RemoteAddr = "203.0.113.9:55121"
	assert.Equal(t, "addr:203.0.113.9", ClientKey(r))

	r = httptest.NewRequest(http.MethodGet, "/v1/name/push/7?s=abc123", nil)
	assert.Equal(t, "tok:abc123", ClientKey(r))
}

func TestChain_Order(t *testing.T) {
	var order []string
	mk := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := Chain(okHandler(), mk("outer"), mk("inner"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, []string{"outer", "inner"}, order)
}

func TestLogging_PassesThrough(t *testing.T) {
	rec := httptest.NewRecorder()
	Logging(nil)(okHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimiter_AllowsThenRejects(t *testing.T) {
	l := NewRateLimiter(1, 2)
	h := l.Middleware(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/?s=client", nil)

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "ERR_RATE\n", rec.Body.String())
}

func TestRateLimiter_PerClientBuckets(t *testing.T) {
	l := NewRateLimiter(1, 1)
	h := l.Middleware(okHandler())

	// Exhaust client a.
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/?s=a", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/?s=a", nil))
	require.Equal(t, http.StatusTooManyRequests, rec.Code)

	// Client b is unaffected.
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/?s=b", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAdminKey(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("sekr1t"), bcrypt.MinCost)
	require.NoError(t, err)

	h := AdminKey(string(hash))(okHandler())

	t.Run("valid header key", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodDelete, "/api/v1/admin/scores/k1", nil)
		req.Header.Set("X-Admin-Key", "sekr1t")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("valid bearer token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodDelete, "/api/v1/admin/scores/k1", nil)
		req.Header.Set("Authorization", "Bearer sekr1t")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("wrong key", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodDelete, "/api/v1/admin/scores/k1", nil)
		req.Header.Set("X-Admin-Key", "nope")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("missing key", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/v1/admin/scores/k1", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("disabled without hash", func(t *testing.T) {
		disabled := AdminKey("")(okHandler())
		rec := httptest.NewRecorder()
		disabled.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/v1/admin/scores/k1", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
