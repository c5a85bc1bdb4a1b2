package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mailpost/newsletter/internal/auth"
	"github.com/mailpost/newsletter/internal/idempotency"
	"github.com/mailpost/newsletter/internal/logger"
	"github.com/mailpost/newsletter/internal/metrics"
	"github.com/mailpost/newsletter/internal/storage"
)

// issuesLocation is where a successful publish redirects to.
const issuesLocation = "/admin/issues"

// PublishStore is the idempotency protocol used by the publish handler.
// Implemented by idempotency.Store.
type PublishStore interface {
	TryBegin(ctx context.Context, operatorID uuid.UUID, key idempotency.Key) (*idempotency.NextAction, error)
	SaveResponse(ctx context.Context, tx pgx.Tx, operatorID uuid.UUID, key idempotency.Key, resp *idempotency.Response) error
}

// publishRequest is the JSON body for publishing a newsletter issue.
type publishRequest struct {
	Title          string `json:"title"`
	Content        string `json:"content"`
	IdempotencyKey string `json:"idempotency_key"`
}

// PublishIssueHandler handles POST /api/v1/admin/newsletters.
//
// The idempotency key linearizes request attempts: the uniqueness-
// constrained insert in TryBegin guarantees that two concurrent requests
// with the same (operator, key) never both run the business logic. The
// winner inserts the issue and its delivery queue rows and freezes the
// response, all committed atomically; every later attempt replays the
// frozen response byte for byte.
func PublishIssueHandler(store PublishStore, queries storage.Querier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		log := logger.FromContext(ctx)

		var req publishRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		var errs []string
		if req.Title == "" {
			errs = append(errs, "title is required")
		}
		if req.Content == "" {
			errs = append(errs, "content is required")
		}
		key, err := idempotency.ParseKey(req.IdempotencyKey)
		if err != nil {
			errs = append(errs, err.Error())
		}
		if len(errs) > 0 {
			metrics.PublishRequestsTotal.WithLabelValues("invalid").Inc()
			respondValidationErrors(w, errs)
			return
		}

		operatorID := auth.OperatorFromContext(ctx)

		action, err := store.TryBegin(ctx, operatorID, key)
		if errors.Is(err, idempotency.ErrInFlight) {
			metrics.PublishRequestsTotal.WithLabelValues("in_flight").Inc()
			w.Header().Set("Retry-After", "1")
			respondError(w, http.StatusConflict, "a request with this idempotency key is already in flight")
			return
		}
		if err != nil {
			log.Error().Err(err).Msg("failed to claim idempotency key")
			metrics.PublishRequestsTotal.WithLabelValues("error").Inc()
			respondError(w, http.StatusInternalServerError, "internal server error")
			return
		}

		if action.Saved != nil {
			log.Info().Str("idempotency_key", key.String()).Msg("replaying saved publish response")
			metrics.PublishRequestsTotal.WithLabelValues("replayed").Inc()
			writeFrozenResponse(w, action.Saved)
			return
		}

		tx := action.Tx
		issueID := uuid.New()

		if err := queries.InsertIssue(ctx, tx, storage.InsertIssueParams{
			ID:      issueID,
			Title:   req.Title,
			Content: req.Content,
		}); err != nil {
			_ = tx.Rollback(ctx)
			log.Error().Err(err).Msg("failed to store newsletter issue")
			metrics.PublishRequestsTotal.WithLabelValues("error").Inc()
			respondError(w, http.StatusInternalServerError, "internal server error")
			return
		}

		enqueued, err := queries.EnqueueDeliveries(ctx, tx, issueID)
		if err != nil {
			_ = tx.Rollback(ctx)
			log.Error().Err(err).Msg("failed to enqueue delivery tasks")
			metrics.PublishRequestsTotal.WithLabelValues("error").Inc()
			respondError(w, http.StatusInternalServerError, "internal server error")
			return
		}

		resp := &idempotency.Response{
			StatusCode: http.StatusSeeOther,
			Headers: []idempotency.HeaderPair{
				{Name: "Location", Value: []byte(issuesLocation)},
			},
		}

		// Commits the issue, the queue rows, and the frozen response in one
		// transaction: either a duplicate request finds the complete record
		// to replay, or it finds nothing and may re-run safely.
		if err := store.SaveResponse(ctx, tx, operatorID, key, resp); err != nil {
			log.Error().Err(err).Msg("failed to save publish response")
			metrics.PublishRequestsTotal.WithLabelValues("error").Inc()
			respondError(w, http.StatusInternalServerError, "internal server error")
			return
		}

		log.Info().
			Stringer("issue_id", issueID).
			Int64("deliveries_enqueued", enqueued).
			Msg("newsletter issue published")
		metrics.PublishRequestsTotal.WithLabelValues("published").Inc()
		metrics.DeliveriesEnqueuedTotal.Add(float64(enqueued))

		writeFrozenResponse(w, resp)
	}
}

// writeFrozenResponse replays a frozen response byte for byte: same status,
// same headers in original order, same body.
func writeFrozenResponse(w http.ResponseWriter, resp *idempotency.Response) {
	for _, h := range resp.Headers {
		w.Header().Add(h.Name, string(h.Value))
	}
	w.WriteHeader(resp.StatusCode)
	if len(resp.Body) > 0 {
		_, _ = w.Write(resp.Body)
	}
}

// issueResponse is the JSON form of a newsletter issue with delivery status.
type issueResponse struct {
	ID          uuid.UUID `json:"id"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	PublishedAt time.Time `json:"published_at"`
	Status      string    `json:"status"`
}

// ListIssuesHandler handles GET /api/v1/admin/issues. Issues with remaining
// delivery queue rows are reported as IN PROGRESS.
func ListIssuesHandler(queries storage.Querier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		issues, err := queries.ListIssues(r.Context())
		if err != nil {
			log := logger.FromContext(r.Context())
			log.Error().Err(err).Msg("failed to list issues")
			respondError(w, http.StatusInternalServerError, "internal server error")
			return
		}

		out := make([]issueResponse, 0, len(issues))
		for _, issue := range issues {
			out = append(out, issueResponse{
				ID:          issue.ID,
				Title:       issue.Title,
				Content:     issue.Content,
				PublishedAt: issue.PublishedAt,
				Status:      issue.Status,
			})
		}
		respondJSON(w, http.StatusOK, out)
	}
}
