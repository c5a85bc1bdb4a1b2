package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mailpost/newsletter/internal/domain"
	"github.com/mailpost/newsletter/internal/logger"
	"github.com/mailpost/newsletter/internal/mailer"
	"github.com/mailpost/newsletter/internal/storage"
)

// txBeginner opens transactions. Satisfied by *pgxpool.Pool.
type txBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// subscribeRequest is the JSON body for a new subscription.
type subscribeRequest struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// SubscribeHandler handles POST /subscriptions. It stores the subscriber in
// pending_confirmation state together with a confirmation token, then sends
// the confirmation email. Re-subscribing an existing address issues a fresh
// token.
func SubscribeHandler(db txBeginner, queries storage.Querier, mail mailer.Client, baseURL string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		log := logger.FromContext(ctx)

		var req subscribeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		var errs []string
		email, err := domain.ParseEmail(req.Email)
		if err != nil {
			errs = append(errs, err.Error())
		}
		name, err := domain.ParseName(req.Name)
		if err != nil {
			errs = append(errs, err.Error())
		}
		if len(errs) > 0 {
			respondValidationErrors(w, errs)
			return
		}

		token := uuid.NewString()

		tx, err := db.Begin(ctx)
		if err != nil {
			log.Error().Err(err).Msg("failed to begin subscription transaction")
			respondError(w, http.StatusInternalServerError, "internal server error")
			return
		}

		if err := queries.CreateSubscriber(ctx, tx, storage.CreateSubscriberParams{
			Email: email.String(),
			Name:  name.String(),
		}); err != nil {
			_ = tx.Rollback(ctx)
			log.Error().Err(err).Msg("failed to store subscriber")
			respondError(w, http.StatusInternalServerError, "internal server error")
			return
		}

		if err := queries.StoreConfirmationToken(ctx, tx, token, email.String()); err != nil {
			_ = tx.Rollback(ctx)
			log.Error().Err(err).Msg("failed to store confirmation token")
			respondError(w, http.StatusInternalServerError, "internal server error")
			return
		}

		if err := tx.Commit(ctx); err != nil {
			log.Error().Err(err).Msg("failed to commit subscription")
			respondError(w, http.StatusInternalServerError, "internal server error")
			return
		}

		link := fmt.Sprintf("%s/subscriptions/confirm?token=%s", baseURL, token)
		body := fmt.Sprintf(
			`Welcome!<br/>Click <a href="%s">here</a> to confirm your subscription.`, link)
		if err := mail.Send(ctx, domain.Subscriber{Email: email, Name: name}, "Confirm your subscription", body); err != nil {
			log.Error().Err(err).Str("subscriber_email", email.String()).Msg("failed to send confirmation email")
			respondError(w, http.StatusInternalServerError, "internal server error")
			return
		}

		respondJSON(w, http.StatusOK, map[string]string{"status": "pending_confirmation"})
	}
}

// ConfirmSubscriptionHandler handles GET /subscriptions/confirm. A valid
// token flips the subscriber to confirmed, making it eligible for issue
// delivery from the next publish onward.
func ConfirmSubscriptionHandler(queries storage.Querier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		log := logger.FromContext(ctx)

		token := r.URL.Query().Get("token")
		if token == "" {
			respondError(w, http.StatusBadRequest, "token is required")
			return
		}

		email, err := queries.GetSubscriberEmailByToken(ctx, token)
		if err != nil {
			log.Warn().Err(err).Msg("confirmation attempted with unknown token")
			respondError(w, http.StatusUnauthorized, "unknown confirmation token")
			return
		}

		if err := queries.ConfirmSubscriber(ctx, email); err != nil {
			log.Error().Err(err).Msg("failed to confirm subscriber")
			respondError(w, http.StatusInternalServerError, "internal server error")
			return
		}

		respondJSON(w, http.StatusOK, map[string]string{"status": "confirmed"})
	}
}
