// Package testutil holds fixtures shared by repository and handler tests.
package testutil

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	jsoniter "github.com/json-iterator/go"

	"libraryapi/internal/httpx"
	"libraryapi/internal/platform/crypto"
	"libraryapi/internal/platform/database"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// NewSQLiteDB returns a migrated private in-memory database closed at test end.
func NewSQLiteDB(t testing.TB) *database.DB {
	t.Helper()
	db, err := database.OpenSQLite("")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(db.Close)
	if err := database.Migrate(context.Background(), db); err != nil {
		t.Fatalf("migrate sqlite: %v", err)
	}
	return db
}

// GenerateTestToken generates a JWT token for testing
func GenerateTestToken(secret, userID, role string) string {
	token, _, _ := crypto.GenerateToken(secret, userID, role, time.Hour)
	return token
}

// GenerateExpiredToken generates an expired JWT token for testing
func GenerateExpiredToken(secret, userID, role string) string {
	token, _, _ := crypto.GenerateToken(secret, userID, role, -time.Hour)
	return token
}

// AsUser attaches an authenticated identity to req as AuthMiddleware would.
func AsUser(req *http.Request, userID, role string) *http.Request {
	return req.WithContext(httpx.ContextWithUser(req.Context(), userID, role))
}

// MakeRequest creates an HTTP request with the given method, path, and body
func MakeRequest(method, path string, body interface{}) *http.Request {
	var bodyReader io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			bodyReader = bytes.NewBufferString(b)
		default:
			jsonBody, _ := json.Marshal(body)
			bodyReader = bytes.NewBuffer(jsonBody)
		}
	}
	req := httptest.NewRequest(method, path, bodyReader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}

// Envelope is the decoded shape of every JSON response.
type Envelope struct {
	Success bool                `json:"success"`
	Data    jsoniter.RawMessage `json:"data"`
	Meta    map[string]any      `json:"meta"`
	Cached  *bool               `json:"cached,omitempty"`
	Error   struct {
		Code    string              `json:"code"`
		Message string              `json:"message"`
		Details []httpx.ErrorDetail `json:"details"`
	} `json:"error"`
}

// DecodeEnvelope decodes a recorded response, failing the test on bad JSON.
func DecodeEnvelope(t testing.TB, w *httptest.ResponseRecorder) Envelope {
	t.Helper()
	var env Envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return env
}

// DecodeData decodes the data member of a recorded response into dst.
func DecodeData(t testing.TB, w *httptest.ResponseRecorder, dst interface{}) Envelope {
	t.Helper()
	env := DecodeEnvelope(t, w)
	if err := json.Unmarshal(env.Data, dst); err != nil {
		t.Fatalf("decode data %s: %v", env.Data, err)
	}
	return env
}
