package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

// TestCORSMiddleware_Headers は通常のリクエストにCORSヘッダーが付くことを検証する。
func TestCORSMiddleware_Headers(t *testing.T) {
	var nextCalled bool
	handler := NewCORSMiddleware("http://localhost:8081")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		nextCalled = true
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/events", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if !nextCalled {
		t.Error("next handler not called")
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:8081" {
		t.Errorf("Allow-Origin = %q, want configured origin", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Headers"); got != "Content-Type, Authorization" {
		t.Errorf("Allow-Headers = %q, want Content-Type and Authorization", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Methods"); got == "" {
		t.Error("Allow-Methods not set")
	}
}

// TestCORSMiddleware_Preflight はOPTIONSプリフライトが204で応答されることを検証する。
func TestCORSMiddleware_Preflight(t *testing.T) {
	handler := NewCORSMiddleware("http://localhost:8081")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("next handler must not be called for preflight")
	}))

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/events", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:8081" {
		t.Errorf("Allow-Origin = %q on preflight, want configured origin", got)
	}
}
