package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hearthhq/hearth/internal/auth"
	"github.com/hearthhq/hearth/internal/model"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequireParent(t *testing.T) {
	handler := RequireParent(okHandler())

	req := httptest.NewRequest("POST", "/api/tasks", nil)
	ctx := auth.WithAuth(req.Context(), auth.AuthContext{UserID: 1, FamilyID: 1, Role: model.RoleParent})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req.WithContext(ctx))
	if rec.Code != http.StatusOK {
		t.Errorf("parent: status = %d, want %d", rec.Code, http.StatusOK)
	}

	req = httptest.NewRequest("POST", "/api/tasks", nil)
	ctx = auth.WithAuth(req.Context(), auth.AuthContext{UserID: 2, FamilyID: 1, Role: model.RoleChild})
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req.WithContext(ctx))
	if rec.Code != http.StatusForbidden {
		t.Errorf("child: status = %d, want %d", rec.Code, http.StatusForbidden)
	}
}

func TestRequireSharedSecret(t *testing.T) {
	handler := RequireSharedSecret("s3cret")(okHandler())

	req := httptest.NewRequest("POST", "/internal/cron/reminders", nil)
	req.Header.Set("X-Cron-Secret", "s3cret")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("valid secret: status = %d, want %d", rec.Code, http.StatusOK)
	}

	req = httptest.NewRequest("POST", "/internal/cron/reminders", nil)
	req.Header.Set("X-Cron-Secret", "wrong")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong secret: status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestRequireSharedSecretUnset(t *testing.T) {
	// No configured secret disables the endpoints entirely.
	handler := RequireSharedSecret("")(okHandler())

	req := httptest.NewRequest("POST", "/internal/cron/reminders", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}
