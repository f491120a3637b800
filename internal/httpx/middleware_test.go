package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"libraryapi/internal/platform/crypto"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func silenceLogs(t *testing.T) *[]string {
	t.Helper()
	var lines []string
	prev := logf
	logf = func(format string, args ...any) { lines = append(lines, fmt.Sprintf(format, args...)) }
	t.Cleanup(func() { logf = prev })
	return &lines
}

func TestCORSMiddleware(t *testing.T) {
	handler := CORSMiddleware([]string{"http://localhost:3000"})(okHandler())

	t.Run("allowed origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/books", nil)
		req.Header.Set("Origin", "http://localhost:3000")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
		assert.Equal(t, "X-Request-Id", w.Header().Get("Access-Control-Expose-Headers"))
		assert.Equal(t, "Origin", w.Header().Get("Vary"))
	})

	t.Run("disallowed origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/books", nil)
		req.Header.Set("Origin", "http://evil.com")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("preflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/transactions", nil)
		req.Header.Set("Origin", "http://localhost:3000")
		req.Header.Set("Access-Control-Request-Method", http.MethodPatch)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "PATCH")
		assert.Equal(t, "600", w.Header().Get("Access-Control-Max-Age"))
	})

	t.Run("preflight from unknown origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/transactions", nil)
		req.Header.Set("Origin", "http://evil.com")
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Methods"))
	})
}

func TestSecurityHeadersMiddleware(t *testing.T) {
	for _, hsts := range []bool{true, false} {
		t.Run(fmt.Sprintf("hsts=%t", hsts), func(t *testing.T) {
			w := httptest.NewRecorder()
			SecurityHeadersMiddleware(hsts)(okHandler()).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

			assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
			assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
			assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
			assert.Equal(t, hsts, w.Header().Get("Strict-Transport-Security") != "")
		})
	}
}

func TestRequestSizeLimitMiddleware(t *testing.T) {
	handler := RequestSizeLimitMiddleware(1024)(okHandler())

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/books", bytes.NewBuffer(make([]byte, 512))))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/books", bytes.NewBuffer(make([]byte, 2048))))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "PAYLOAD_TOO_LARGE", resp.Error.Code)
}

func TestRequestIDMiddleware(t *testing.T) {
	var seen string
	handler := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFrom(r)
	}))

	tests := []struct {
		name     string
		incoming string
		keep     bool
	}{
		{"caller id kept", "req-123", true},
		{"missing id generated", "", false},
		{"unsafe id replaced", "bad id\nforged=1", false},
		{"overlong id replaced", strings.Repeat("a", 65), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.incoming != "" {
				req.Header.Set("X-Request-Id", tt.incoming)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.NotEmpty(t, seen)
			assert.Equal(t, seen, w.Header().Get("X-Request-Id"))
			assert.Equal(t, tt.keep, seen == tt.incoming)
		})
	}
}

func TestAccessLogMiddleware(t *testing.T) {
	lines := silenceLogs(t)
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("done"))
	})
	handler := Chain(inner, RequestIDMiddleware, AccessLogMiddleware, AuthMiddleware("s", nil))

	token, _, err := crypto.GenerateToken("s", "lib-1", "LIBRARIAN", time.Hour)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/transactions", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-Request-Id", "req-log")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	require.Len(t, *lines, 1)
	line := (*lines)[0]
	for _, want := range []string{"status=201", "bytes=4", "request_id=req-log", "user_id=lib-1", "role=LIBRARIAN"} {
		assert.Contains(t, line, want)
	}

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Len(t, *lines, 1)
}

func TestRecoveryMiddleware(t *testing.T) {
	lines := silenceLogs(t)
	handler := RequestIDMiddleware(AccessLogMiddleware(RecoveryMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))))

	req := httptest.NewRequest(http.MethodGet, "/transactions", nil)
	req.Header.Set("X-Request-Id", "req-panic")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "INTERNAL_ERROR", resp.Error.Code)

	require.Len(t, *lines, 2)
	assert.Contains(t, (*lines)[0], "panic recovered: request_id=req-panic")
	assert.Contains(t, (*lines)[1], "status=500")
}

type fakeBlacklist struct {
	revoked map[string]bool
	err     error
}

func (f fakeBlacklist) IsBlacklisted(_ context.Context, jti string) (bool, error) {
	return f.revoked[jti], f.err
}

func TestAuthMiddleware(t *testing.T) {
	const secret = "test-secret"
	token, jti, err := crypto.GenerateToken(secret, "student-1", "STUDENT", time.Hour)
	require.NoError(t, err)

	var gotUser, gotRole, gotJTI string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser, gotRole, gotJTI = UserIDFrom(r), RoleFrom(r), TokenIDFrom(r)
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name      string
		header    string
		blacklist BlacklistRepository
		want      int
	}{
		{"valid token", "Bearer " + token, fakeBlacklist{}, http.StatusOK},
		{"missing header", "", fakeBlacklist{}, http.StatusUnauthorized},
		{"garbage token", "Bearer not-a-jwt", fakeBlacklist{}, http.StatusUnauthorized},
		{"revoked token", "Bearer " + token, fakeBlacklist{revoked: map[string]bool{jti: true}}, http.StatusUnauthorized},
		{"blacklist unavailable", "Bearer " + token, fakeBlacklist{err: errors.New("db down")}, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			AuthMiddleware(secret, tt.blacklist)(inner).ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
		})
	}

	assert.Equal(t, "student-1", gotUser)
	assert.Equal(t, "STUDENT", gotRole)
	assert.Equal(t, jti, gotJTI)
}

func TestRequireRole(t *testing.T) {
	handler := RequireRole("ADMIN", "LIBRARIAN")(okHandler())

	tests := []struct {
		name   string
		userID string
		role   string
		want   int
	}{
		{"anonymous", "", "", http.StatusUnauthorized},
		{"student", "u1", "STUDENT", http.StatusForbidden},
		{"librarian", "u2", "LIBRARIAN", http.StatusOK},
		{"admin", "u3", "ADMIN", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/transactions/reconcile", nil)
			if tt.userID != "" {
				req = req.WithContext(ContextWithUser(req.Context(), tt.userID, tt.role))
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	send := func(h http.Handler, remote, forwarded string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/books", nil)
		req.RemoteAddr = remote
		if forwarded != "" {
			req.Header.Set("X-Forwarded-For", forwarded)
		}
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		return w
	}

	t.Run("behind a trusted proxy", func(t *testing.T) {
		rl := NewRateLimitMiddleware(1, 2, true)
		defer rl.Stop()
		handler := rl.Middleware(okHandler())

		codes := make([]int, 0, 3)
		var last *httptest.ResponseRecorder
		for i := 0; i < 3; i++ {
			last = send(handler, "192.0.2.1:4000", "10.0.0.1, 172.16.0.1")
			codes = append(codes, last.Code)
		}
		assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
		assert.Equal(t, "1", last.Header().Get("Retry-After"))

		assert.Equal(t, http.StatusOK, send(handler, "192.0.2.1:4000", "10.0.0.2").Code,
			"other clients keep their own bucket")
	})

	t.Run("forwarded header ignored without proxy", func(t *testing.T) {
		rl := NewRateLimitMiddleware(1, 1, false)
		defer rl.Stop()
		handler := rl.Middleware(okHandler())

		assert.Equal(t, http.StatusOK, send(handler, "192.0.2.9:4000", "10.0.0.1").Code)
		assert.Equal(t, http.StatusTooManyRequests, send(handler, "192.0.2.9:5000", "10.0.0.2").Code)
	})
}

func TestChain_Order(t *testing.T) {
	var order []string
	mw := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	Chain(okHandler(), mw("outer"), mw("inner")).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "outer,inner", strings.Join(order, ","))
}
