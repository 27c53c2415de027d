package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCORS(t *testing.T) {
	handler := CORS([]string{"https://hr.example.com"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	tests := []struct {
		name       string
		method     string
		origin     string
		wantOrigin string
		wantCode   int
	}{
		{"whitelisted", http.MethodGet, "https://hr.example.com", "https://hr.example.com", http.StatusTeapot},
		{"localhost with port", http.MethodGet, "http://localhost:5173", "http://localhost:5173", http.StatusTeapot},
		{"bare localhost", http.MethodGet, "http://localhost", "http://localhost", http.StatusTeapot},
		{"localhost lookalike", http.MethodGet, "http://localhost.evil.com", "", http.StatusTeapot},
		{"unknown origin", http.MethodGet, "https://evil.com", "", http.StatusTeapot},
		{"no origin", http.MethodGet, "", "", http.StatusTeapot},
		{"preflight", http.MethodOptions, "https://hr.example.com", "https://hr.example.com", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/status", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantCode {
				t.Errorf("expected status %d, got %d", tt.wantCode, rec.Code)
			}
			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.wantOrigin {
				t.Errorf("expected allow origin %q, got %q", tt.wantOrigin, got)
			}
		})
	}
}

func TestSecurityHeaders(t *testing.T) {
	handler := SecurityHeaders()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Header().Get("X-Frame-Options") != "DENY" {
		t.Error("expected X-Frame-Options DENY")
	}
	if rec.Header().Get("Content-Security-Policy") == "" {
		t.Error("expected a content security policy")
	}
}
