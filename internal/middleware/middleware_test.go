package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/nordveil/sitechat/internal/service"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequireAdmin_MissingToken(t *testing.T) {
	svc := service.NewAuthService("test-secret", 1)
	h := RequireAdmin(svc)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/v1/admin/stats", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}

func TestRequireAdmin_BadHeaderFormat(t *testing.T) {
	svc := service.NewAuthService("test-secret", 1)
	h := RequireAdmin(svc)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/v1/admin/stats", nil)
	req.Header.Set("Authorization", "Token abc")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}

func TestRequireAdmin_ValidToken(t *testing.T) {
	svc := service.NewAuthService("test-secret", 1)
	token, err := svc.SignToken("admin")
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}

	h := RequireAdmin(svc)(okHandler())
	req := httptest.NewRequest(http.MethodGet, "/v1/admin/stats", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestRequireAdmin_WrongRole(t *testing.T) {
	svc := service.NewAuthService("test-secret", 1)
	token, err := svc.SignToken("viewer")
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}

	h := RequireAdmin(svc)(okHandler())
	req := httptest.NewRequest(http.MethodGet, "/v1/admin/stats", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", rec.Code)
	}
}

func TestRateLimit_PassesWithinBudget(t *testing.T) {
	limiter := service.NewWindowLimiter(2, time.Minute)
	h := RateLimit(limiter)(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/v1/chat", nil)
	req.RemoteAddr = "10.0.0.1:54321"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestRateLimit_RejectsOverBudget(t *testing.T) {
	limiter := service.NewWindowLimiter(1, time.Minute)
	h := RateLimit(limiter)(okHandler())

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/v1/chat", nil)
		req.RemoteAddr = "10.0.0.1:54321"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if i == 1 {
			if rec.Code != http.StatusTooManyRequests {
				t.Errorf("expected 429, got %d", rec.Code)
			}
			if rec.Header().Get("Retry-After") == "" {
				t.Error("expected Retry-After header")
			}
		}
	}
}
