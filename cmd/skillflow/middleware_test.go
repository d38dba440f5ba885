package main

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/skillflow/config"
	"github.com/BaSui01/skillflow/types"
)

func TestSecurityHeaders(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	handler := SecurityHeaders()(inner)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "strict-origin-when-cross-origin", w.Header().Get("Referrer-Policy"))
	assert.Equal(t, "1; mode=block", w.Header().Get("X-XSS-Protection"))
	assert.Equal(t, "default-src 'self'", w.Header().Get("Content-Security-Policy"))
}

func TestRequestID_InjectsIntoContext(t *testing.T) {
	var seen string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = types.RequestID(r.Context())
	})

	handler := RequestID()(inner)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	handler.ServeHTTP(w, r)

	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, w.Header().Get("X-Request-ID"))
}

func TestRequestID_PreservesClientID(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	handler := RequestID()(inner)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Request-ID", "req-from-client")
	handler.ServeHTTP(w, r)

	assert.Equal(t, "req-from-client", w.Header().Get("X-Request-ID"))
}

func TestChain_OrderAndComposition(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	handler := Chain(inner, SecurityHeaders(), RequestID())

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/test", nil)
	handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestAPIKeyAuth(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := APIKeyAuth([]string{"secret-key"}, []string{"/health"}, zap.NewNop())(inner)

	t.Run("valid key", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/api/v1/skills", nil)
		r.Header.Set("X-API-Key", "secret-key")
		handler.ServeHTTP(w, r)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("missing key", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/api/v1/skills", nil)
		handler.ServeHTTP(w, r)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "UNAUTHORIZED")
	})

	t.Run("skip path bypasses auth", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/health", nil)
		handler.ServeHTTP(w, r)
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestJWTAuth(t *testing.T) {
	cfg := config.AuthConfig{JWTSecret: "test-secret", JWTIssuer: "skillflow"}

	var gotTenant, gotUser string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotTenant, _ = types.TenantID(r.Context())
		gotUser, _ = types.UserID(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	handler := JWTAuth(cfg, []string{"/health"}, zap.NewNop())(inner)

	signToken := func(t *testing.T, claims jwt.MapClaims) string {
		t.Helper()
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
		signed, err := token.SignedString([]byte("test-secret"))
		require.NoError(t, err)
		return signed
	}

	t.Run("valid token injects identity", func(t *testing.T) {
		tokenStr := signToken(t, jwt.MapClaims{
			"iss":       "skillflow",
			"tenant_id": "acme",
			"user_id":   "u-42",
			"exp":       time.Now().Add(time.Hour).Unix(),
		})

		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/api/v1/skills/textkit/invoke", nil)
		r.Header.Set("Authorization", "Bearer "+tokenStr)
		handler.ServeHTTP(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "acme", gotTenant)
		assert.Equal(t, "u-42", gotUser)
	})

	t.Run("missing header", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/api/v1/skills", nil)
		handler.ServeHTTP(w, r)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("wrong issuer rejected", func(t *testing.T) {
		tokenStr := signToken(t, jwt.MapClaims{
			"iss": "someone-else",
			"exp": time.Now().Add(time.Hour).Unix(),
		})

		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/api/v1/skills", nil)
		r.Header.Set("Authorization", "Bearer "+tokenStr)
		handler.ServeHTTP(w, r)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("expired token rejected", func(t *testing.T) {
		tokenStr := signToken(t, jwt.MapClaims{
			"iss": "skillflow",
			"exp": time.Now().Add(-time.Hour).Unix(),
		})

		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/api/v1/skills", nil)
		r.Header.Set("Authorization", "Bearer "+tokenStr)
		handler.ServeHTTP(w, r)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestCORS(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	t.Run("wildcard", func(t *testing.T) {
		handler := CORS("*")(inner)
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Origin", "https://example.com")
		handler.ServeHTTP(w, r)
		assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("exact origin match", func(t *testing.T) {
		handler := CORS("https://app.example.com")(inner)
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Origin", "https://app.example.com")
		handler.ServeHTTP(w, r)
		assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("mismatched origin gets no header", func(t *testing.T) {
		handler := CORS("https://app.example.com")(inner)
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Origin", "https://evil.example.com")
		handler.ServeHTTP(w, r)
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("preflight", func(t *testing.T) {
		handler := CORS("*")(inner)
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodOptions, "/", nil)
		r.Header.Set("Origin", "https://example.com")
		handler.ServeHTTP(w, r)
		assert.Equal(t, http.StatusNoContent, w.Code)
	})

	t.Run("unconfigured rejects preflight", func(t *testing.T) {
		handler := CORS("")(inner)
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodOptions, "/", nil)
		r.Header.Set("Origin", "https://example.com")
		handler.ServeHTTP(w, r)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"/health", "/health"},
		{"/api/v1/skills", "/api/v1/skills"},
		{"/api/v1/skills/health", "/api/v1/skills/health"},
		{"/api/v1/skills/deepl", "/api/v1/skills/:name"},
		{"/api/v1/skills/deepl/invoke", "/api/v1/skills/:name/invoke"},
		{"/api/v1/events/stream", "/api/v1/events/stream"},
		{"/api/v1/audit", "/api/v1/audit"},
		{"/other/123456", "/other/:id"},
		{"/other/abcdef0123456789", "/other/:id"},
		{"/other/plain", "/other/plain"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, normalizePath(tt.in), "path %s", tt.in)
	}
}

func TestRateLimiter(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := RateLimiter(t.Context(), 1, 2, zap.NewNop())(inner)

	codes := make([]int, 0, 4)
	for i := 0; i < 4; i++ {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.RemoteAddr = "10.0.0.1:1234"
		handler.ServeHTTP(w, r)
		codes = append(codes, w.Code)
	}

	// burst=2 放行前两个，之后被限
	assert.Equal(t, http.StatusOK, codes[0])
	assert.Equal(t, http.StatusOK, codes[1])
	assert.Equal(t, http.StatusTooManyRequests, codes[2])
	assert.Equal(t, http.StatusTooManyRequests, codes[3])

	// 不同 IP 独立限流
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.0.0.2:1234"
	handler.ServeHTTP(w, r)
	assert.Equal(t, http.StatusOK, w.Code)
}
