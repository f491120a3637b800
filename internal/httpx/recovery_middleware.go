package httpx

import (
	"net/http"
	"runtime/debug"
)

// RecoveryMiddleware turns a handler panic into a 500 envelope unless the
// handler already started its response. http.ErrAbortHandler is re-raised
// so the server can drop the connection.
func RecoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := trackWriter(w)
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			logf("panic recovered: request_id=%s method=%s path=%s panic=%v\n%s",
				RequestIDFrom(r), r.Method, r.URL.Path, rec, debug.Stack())
			if sw.status == 0 {
				JSONError(sw, r, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred", nil)
			}
		}()
		next.ServeHTTP(sw, r)
	})
}
