package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrInFlight is returned by TryBegin when another request holds the key in
// a still-open transaction. Callers should surface it as a retryable
// condition, never as success or permanent failure.
var ErrInFlight = errors.New("a request with this idempotency key is already in flight")

// HeaderPair is one response header as originally written. Order is
// preserved so replays are byte-exact.
type HeaderPair struct {
	Name  string `json:"name"`
	Value []byte `json:"value"`
}

// Response is a frozen HTTP response.
type Response struct {
	StatusCode int
	Headers    []HeaderPair
	Body       []byte
}

// NextAction is the outcome of TryBegin. Exactly one field is set: Tx when
// the caller won the key and must run the request, Saved when a completed
// response exists and must be replayed.
type NextAction struct {
	Tx    pgx.Tx
	Saved *Response
}

// Store persists idempotency records in PostgreSQL, using the primary key on
// (operator_id, key) as a distributed lock. Correctness holds across process
// restarts and concurrent instances; there is no in-memory state.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a Store over the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// TryBegin attempts to claim key for operatorID. It opens a transaction and
// inserts a pending record with insert-or-ignore semantics:
//
//   - insert affected a row: the caller owns the key for the lifetime of the
//     returned transaction and must finish with SaveResponse.
//   - insert affected no rows and a completed record exists: the frozen
//     response is returned for replay.
//   - insert affected no rows and the record is still pending: a concurrent
//     duplicate is in flight; ErrInFlight is returned.
func (s *Store) TryBegin(ctx context.Context, operatorID uuid.UUID, key Key) (*NextAction, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}

	tag, err := tx.Exec(ctx, `
		INSERT INTO idempotency (operator_id, key, created_at)
		VALUES ($1, $2, now())
		ON CONFLICT DO NOTHING`,
		operatorID, key.String(),
	)
	if err != nil {
		_ = tx.Rollback(ctx)
		return nil, fmt.Errorf("insert idempotency record: %w", err)
	}

	if tag.RowsAffected() > 0 {
		return &NextAction{Tx: tx}, nil
	}

	// Somebody else owns or has completed this key.
	_ = tx.Rollback(ctx)

	saved, err := s.getSavedResponse(ctx, operatorID, key)
	if err != nil {
		return nil, err
	}
	if saved == nil {
		return nil, ErrInFlight
	}
	return &NextAction{Saved: saved}, nil
}

// SaveResponse completes the pending record claimed by TryBegin and commits
// tx. Business writes performed earlier on tx and the cached response are
// published atomically; a crash beforehand rolls everything back, leaving
// the key claimable again.
func (s *Store) SaveResponse(ctx context.Context, tx pgx.Tx, operatorID uuid.UUID, key Key, resp *Response) error {
	headers, err := json.Marshal(resp.Headers)
	if err != nil {
		_ = tx.Rollback(ctx)
		return fmt.Errorf("encode response headers: %w", err)
	}

	tag, err := tx.Exec(ctx, `
		UPDATE idempotency
		SET response_status_code = $3,
		    response_headers = $4,
		    response_body = $5
		WHERE operator_id = $1 AND key = $2`,
		operatorID, key.String(), int16(resp.StatusCode), headers, resp.Body,
	)
	if err != nil {
		_ = tx.Rollback(ctx)
		return fmt.Errorf("update idempotency record: %w", err)
	}
	if tag.RowsAffected() != 1 {
		_ = tx.Rollback(ctx)
		return fmt.Errorf("expected one pending idempotency record, updated %d", tag.RowsAffected())
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit idempotency record: %w", err)
	}
	return nil
}

// getSavedResponse reads a completed record, returning nil when the record
// is still pending or has vanished (owner rolled back between our conflict
// and this read).
func (s *Store) getSavedResponse(ctx context.Context, operatorID uuid.UUID, key Key) (*Response, error) {
	var (
		status      *int16
		headersJSON []byte
		body        []byte
	)
	err := s.pool.QueryRow(ctx, `
		SELECT response_status_code, response_headers, response_body
		FROM idempotency
		WHERE operator_id = $1 AND key = $2`,
		operatorID, key.String(),
	).Scan(&status, &headersJSON, &body)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read idempotency record: %w", err)
	}
	if status == nil {
		return nil, nil
	}

	var headers []HeaderPair
	if len(headersJSON) > 0 {
		if err := json.Unmarshal(headersJSON, &headers); err != nil {
			return nil, fmt.Errorf("decode response headers: %w", err)
		}
	}

	return &Response{
		StatusCode: int(*status),
		Headers:    headers,
		Body:       body,
	}, nil
}
