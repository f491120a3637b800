package httpx

import (
	"log"
	"net"
	"net/http"
	"time"
)

// logf is the package logger; tests may swap it to capture lines.
var logf = log.Printf

// statusWriter records what was sent so outer middleware can log it. One
// instance is shared by the whole chain, see trackWriter.
type statusWriter struct {
	http.ResponseWriter
	status  int
	written int64
	userID  string
	role    string
}

// trackWriter reuses a statusWriter installed further out in the chain.
func trackWriter(w http.ResponseWriter) *statusWriter {
	if sw, ok := w.(*statusWriter); ok {
		return sw
	}
	return &statusWriter{ResponseWriter: w}
}

func (sw *statusWriter) WriteHeader(code int) {
	if sw.status != 0 {
		return
	}
	sw.status = code
	sw.ResponseWriter.WriteHeader(code)
}

func (sw *statusWriter) Write(b []byte) (int, error) {
	if sw.status == 0 {
		sw.WriteHeader(http.StatusOK)
	}
	n, err := sw.ResponseWriter.Write(b)
	sw.written += int64(n)
	return n, err
}

func (sw *statusWriter) Unwrap() http.ResponseWriter { return sw.ResponseWriter }

// noteIdentity lets AuthMiddleware report the caller to the access log,
// which only sees the request from before authentication.
func noteIdentity(w http.ResponseWriter, userID, role string) {
	if sw, ok := w.(*statusWriter); ok {
		sw.userID, sw.role = userID, role
	}
}

// AccessLogMiddleware writes one line per request. Probe endpoints are
// skipped.
func AccessLogMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/healthz" || r.URL.Path == "/readyz" {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		sw := trackWriter(w)
		next.ServeHTTP(sw, r)

		status := sw.status
		if status == 0 {
			status = http.StatusOK
		}
		logf("access method=%s path=%s route=%q status=%d bytes=%d duration_ms=%d request_id=%s user_id=%s role=%s remote=%s",
			r.Method, r.URL.Path, r.Pattern, status, sw.written,
			time.Since(start).Milliseconds(), RequestIDFrom(r), sw.userID, sw.role, remoteHost(r))
	})
}

func remoteHost(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
