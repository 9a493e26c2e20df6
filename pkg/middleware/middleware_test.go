package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	jwtutil "github.com/Dias221467/TimeCapsule/pkg/jwt"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthMiddleware(t *testing.T) {
	var seen *jwtutil.Claims
	handler := AuthMiddleware("secret")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetUserFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	token, err := jwtutil.GenerateToken("user-1", "ann@example.com", "secret", time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"bad token", "Bearer nope", http.StatusUnauthorized},
		{"valid token", "Bearer " + token, http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = nil
			req := httptest.NewRequest(http.MethodGet, "/capsules", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			assert.Equal(t, tt.status, rr.Code)
			if tt.status == http.StatusNoContent {
				require.NotNil(t, seen)
				assert.Equal(t, "user-1", seen.UserID)
			} else {
				assert.Nil(t, seen)
			}
		})
	}
}

func TestLoggingAndMetricsMiddlewareKeepStatus(t *testing.T) {
	r := mux.NewRouter()
	r.Use(LoggingMiddleware, MetricsMiddleware)
	r.HandleFunc("/capsules/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/capsules/abc", nil))
	assert.Equal(t, http.StatusTeapot, rr.Code)
}

func TestRequireOperator(t *testing.T) {
	handler := RequireOperator([]string{" Ops@Example.com "})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name   string
		claims *jwtutil.Claims
		status int
	}{
		{"no claims", nil, http.StatusUnauthorized},
		{"regular user", &jwtutil.Claims{UserID: "u1", Email: "ann@example.com"}, http.StatusForbidden},
		{"operator", &jwtutil.Claims{UserID: "u2", Email: "ops@example.com"}, http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/admin/sweeps/unlock", nil)
			if tt.claims != nil {
				req = req.WithContext(WithUser(req.Context(), tt.claims))
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)
			assert.Equal(t, tt.status, rr.Code)
		})
	}
}

func TestRequireOperatorWithEmptyListDeniesEveryone(t *testing.T) {
	handler := RequireOperator(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	req := httptest.NewRequest(http.MethodPost, "/admin/sweeps/unlock", nil)
	req = req.WithContext(WithUser(req.Context(), &jwtutil.Claims{UserID: "u1", Email: "ann@example.com"}))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusForbidden, rr.Code)
}
