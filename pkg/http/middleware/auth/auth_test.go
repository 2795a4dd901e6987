package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

const secret = "test-secret"

func TestAuthMiddleware(t *testing.T) {
	admin, err := GenerateToken(secret, "ops@example.com", RoleAdmin, time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	viewer, _ := GenerateToken(secret, "viewer@example.com", "viewer", time.Hour)
	expired, _ := GenerateToken(secret, "ops@example.com", RoleAdmin, -time.Minute)
	foreign, _ := GenerateToken("other-secret", "ops@example.com", RoleAdmin, time.Hour)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{name: "admin", header: "Bearer " + admin, want: http.StatusOK},
		{name: "missing", header: "", want: http.StatusUnauthorized},
		{name: "not bearer", header: "Basic abc", want: http.StatusUnauthorized},
		{name: "wrong role", header: "Bearer " + viewer, want: http.StatusForbidden},
		{name: "expired", header: "Bearer " + expired, want: http.StatusUnauthorized},
		{name: "wrong secret", header: "Bearer " + foreign, want: http.StatusUnauthorized},
	}

	h := NewAuthMiddleware(secret, RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := FromContext(r.Context())
		if !ok || claims.Subject != "ops@example.com" {
			t.Errorf("claims = %+v", claims)
		}
		w.WriteHeader(http.StatusOK)
	}))

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/admin/orders", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			h.ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}
