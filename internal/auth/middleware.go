package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

type contextKey string

const operatorIDKey contextKey = "operator_id"

// OperatorFromContext retrieves the authenticated operator ID from the
// request context. Returns uuid.Nil if no operator is set.
func OperatorFromContext(ctx context.Context) uuid.UUID {
	if id, ok := ctx.Value(operatorIDKey).(uuid.UUID); ok {
		return id
	}
	return uuid.Nil
}

// WithOperatorID stores the operator ID in the request context.
func WithOperatorID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, operatorIDKey, id)
}

// BearerAuth returns an HTTP middleware that validates the Authorization
// header as a Bearer session token and stores the authenticated operator ID
// in the request context.
func BearerAuth(jwtService *JWTService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				unauthorized(w, "missing authorization header")
				return
			}

			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				unauthorized(w, "malformed authorization header")
				return
			}

			operatorID, _, err := jwtService.ValidateToken(token)
			if err != nil {
				unauthorized(w, "invalid or expired token")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithOperatorID(r.Context(), operatorID)))
		})
	}
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"` + message + `"}`))
}
