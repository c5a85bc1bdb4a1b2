package api

import (
	"encoding/json"
	"net/http"

	"github.com/mailpost/newsletter/internal/auth"
	"github.com/mailpost/newsletter/internal/logger"
	"github.com/mailpost/newsletter/internal/storage"
)

// loginRequest is the JSON body for operator login.
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// loginResponse carries the issued session token.
type loginResponse struct {
	Token string `json:"token"`
}

// LoginHandler handles POST /api/v1/login. Failed attempts count against
// the per-username rate limit; a successful login resets it.
func LoginHandler(queries storage.Querier, jwtService *auth.JWTService, limiter *auth.RateLimiter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		log := logger.FromContext(ctx)

		var req loginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Username == "" || req.Password == "" {
			respondError(w, http.StatusBadRequest, "username and password are required")
			return
		}

		if err := limiter.CheckLogin(ctx, req.Username); err != nil {
			log.Warn().Str("username", req.Username).Msg("login rate limit exceeded")
			respondError(w, http.StatusTooManyRequests, "too many failed login attempts")
			return
		}

		operator, err := queries.GetOperatorByUsername(ctx, req.Username)
		if err != nil {
			_ = limiter.RecordFailedLogin(ctx, req.Username)
			respondError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}

		if err := auth.VerifyPassword(operator.PasswordHash, req.Password); err != nil {
			_ = limiter.RecordFailedLogin(ctx, req.Username)
			log.Warn().Str("username", req.Username).Msg("login failed")
			respondError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}

		_ = limiter.ResetLogin(ctx, req.Username)

		token, err := jwtService.GenerateToken(operator.ID, operator.Username)
		if err != nil {
			log.Error().Err(err).Msg("failed to sign session token")
			respondError(w, http.StatusInternalServerError, "internal server error")
			return
		}

		respondJSON(w, http.StatusOK, loginResponse{Token: token})
	}
}
