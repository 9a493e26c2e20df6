package middleware

import (
	"context"
	"net/http"
	"strings"

	jwtutil "github.com/Dias221467/TimeCapsule/pkg/jwt"
	"github.com/sirupsen/logrus"
)

type contextKey string

const userContextKey contextKey = "user"

// AuthMiddleware validates the bearer token and stores its claims in the request context.
func AuthMiddleware(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || strings.TrimSpace(token) == "" {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			claims, err := jwtutil.ParseToken(strings.TrimSpace(token), secret)
			if err != nil {
				logrus.WithError(err).Debug("Rejected bearer token")
				http.Error(w, "Invalid token", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), claims)))
		})
	}
}

// GetUserFromContext returns the authenticated claims or nil.
func GetUserFromContext(ctx context.Context) *jwtutil.Claims {
	claims, _ := ctx.Value(userContextKey).(*jwtutil.Claims)
	return claims
}

// WithUser stores the authenticated claims in ctx.
func WithUser(ctx context.Context, claims *jwtutil.Claims) context.Context {
	return context.WithValue(ctx, userContextKey, claims)
}

// RequireOperator lets through only authenticated users whose email is in
// operators. It must run after AuthMiddleware.
func RequireOperator(operators []string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(operators))
	for _, e := range operators {
		allowed[strings.ToLower(strings.TrimSpace(e))] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := GetUserFromContext(r.Context())
			if claims == nil {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			if _, ok := allowed[strings.ToLower(claims.Email)]; !ok {
				logrus.WithField("userID", claims.UserID).Warn("Operator route denied")
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
