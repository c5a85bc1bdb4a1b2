package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is satisfied by *pgxpool.Pool, *pgx.Conn, and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Querier is the query interface used by handlers and the delivery worker.
// Methods that must participate in a caller-owned transaction take the
// transaction explicitly.
type Querier interface {
	InsertIssue(ctx context.Context, tx pgx.Tx, arg InsertIssueParams) error
	EnqueueDeliveries(ctx context.Context, tx pgx.Tx, issueID uuid.UUID) (int64, error)
	GetIssue(ctx context.Context, id uuid.UUID) (NewsletterIssue, error)
	ListIssues(ctx context.Context) ([]IssueSummary, error)

	CreateOperator(ctx context.Context, arg CreateOperatorParams) (Operator, error)
	GetOperatorByUsername(ctx context.Context, username string) (Operator, error)

	CreateSubscriber(ctx context.Context, tx pgx.Tx, arg CreateSubscriberParams) error
	StoreConfirmationToken(ctx context.Context, tx pgx.Tx, token string, email string) error
	GetSubscriberEmailByToken(ctx context.Context, token string) (string, error)
	ConfirmSubscriber(ctx context.Context, email string) error

	CountDeliveryQueue(ctx context.Context) (int64, error)
}

// Queries holds a database handle and implements Querier.
type Queries struct {
	db DBTX
}

// New creates a Queries instance bound to the given database handle.
func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// InsertIssueParams are the fields of a new newsletter issue.
type InsertIssueParams struct {
	ID      uuid.UUID
	Title   string
	Content string
}

// InsertIssue stores a new immutable newsletter issue inside tx.
func (q *Queries) InsertIssue(ctx context.Context, tx pgx.Tx, arg InsertIssueParams) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO newsletter_issues (id, title, content, published_at)
		VALUES ($1, $2, $3, now())`,
		arg.ID, arg.Title, arg.Content,
	)
	if err != nil {
		return fmt.Errorf("insert newsletter issue: %w", err)
	}
	return nil
}

// EnqueueDeliveries inserts one delivery queue row per currently confirmed
// subscriber inside tx. The confirmed set is evaluated at this instant;
// subscribers confirmed later are not retroactively included for this issue.
// Returns the number of rows enqueued.
func (q *Queries) EnqueueDeliveries(ctx context.Context, tx pgx.Tx, issueID uuid.UUID) (int64, error) {
	tag, err := tx.Exec(ctx, `
		INSERT INTO issue_delivery_queue (issue_id, subscriber_email)
		SELECT $1, email
		FROM subscribers
		WHERE status = $2`,
		issueID, SubscriberStatusConfirmed,
	)
	if err != nil {
		return 0, fmt.Errorf("enqueue deliveries: %w", err)
	}
	return tag.RowsAffected(), nil
}

// GetIssue fetches an issue by id.
func (q *Queries) GetIssue(ctx context.Context, id uuid.UUID) (NewsletterIssue, error) {
	var issue NewsletterIssue
	err := q.db.QueryRow(ctx, `
		SELECT id, title, content, published_at
		FROM newsletter_issues
		WHERE id = $1`,
		id,
	).Scan(&issue.ID, &issue.Title, &issue.Content, &issue.PublishedAt)
	if err != nil {
		return NewsletterIssue{}, fmt.Errorf("get issue %s: %w", id, err)
	}
	return issue, nil
}

// ListIssues returns all issues, newest first, each annotated with
// IN PROGRESS while delivery queue rows for it remain.
func (q *Queries) ListIssues(ctx context.Context) ([]IssueSummary, error) {
	rows, err := q.db.Query(ctx, `
		SELECT i.id, i.title, i.content, i.published_at,
		       EXISTS (
		           SELECT 1 FROM issue_delivery_queue q
		           WHERE q.issue_id = i.id
		       ) AS in_progress
		FROM newsletter_issues i
		ORDER BY i.published_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list issues: %w", err)
	}
	defer rows.Close()

	var issues []IssueSummary
	for rows.Next() {
		var s IssueSummary
		var inProgress bool
		if err := rows.Scan(&s.ID, &s.Title, &s.Content, &s.PublishedAt, &inProgress); err != nil {
			return nil, fmt.Errorf("scan issue row: %w", err)
		}
		s.Status = IssueStatusPublished
		if inProgress {
			s.Status = IssueStatusInProgress
		}
		issues = append(issues, s)
	}
	return issues, rows.Err()
}

// CreateOperatorParams are the fields of a new operator account.
type CreateOperatorParams struct {
	Username     string
	PasswordHash string
}

// CreateOperator stores a new operator account.
func (q *Queries) CreateOperator(ctx context.Context, arg CreateOperatorParams) (Operator, error) {
	var op Operator
	err := q.db.QueryRow(ctx, `
		INSERT INTO operators (id, username, password_hash, created_at)
		VALUES ($1, $2, $3, now())
		RETURNING id, username, password_hash, created_at`,
		uuid.New(), arg.Username, arg.PasswordHash,
	).Scan(&op.ID, &op.Username, &op.PasswordHash, &op.CreatedAt)
	if err != nil {
		return Operator{}, fmt.Errorf("create operator: %w", err)
	}
	return op, nil
}

// GetOperatorByUsername fetches an operator account by username.
func (q *Queries) GetOperatorByUsername(ctx context.Context, username string) (Operator, error) {
	var op Operator
	err := q.db.QueryRow(ctx, `
		SELECT id, username, password_hash, created_at
		FROM operators
		WHERE username = $1`,
		username,
	).Scan(&op.ID, &op.Username, &op.PasswordHash, &op.CreatedAt)
	if err != nil {
		return Operator{}, fmt.Errorf("get operator %q: %w", username, err)
	}
	return op, nil
}

// CreateSubscriberParams are the fields of a new subscriber.
type CreateSubscriberParams struct {
	Email string
	Name  string
}

// CreateSubscriber stores a new subscriber in pending_confirmation state
// inside tx. Re-subscribing an existing address is a no-op.
func (q *Queries) CreateSubscriber(ctx context.Context, tx pgx.Tx, arg CreateSubscriberParams) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO subscribers (email, name, status, subscribed_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (email) DO NOTHING`,
		arg.Email, arg.Name, SubscriberStatusPending,
	)
	if err != nil {
		return fmt.Errorf("create subscriber: %w", err)
	}
	return nil
}

// StoreConfirmationToken associates a confirmation token with a subscriber
// inside tx.
func (q *Queries) StoreConfirmationToken(ctx context.Context, tx pgx.Tx, token string, email string) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO confirmation_tokens (token, subscriber_email)
		VALUES ($1, $2)`,
		token, email,
	)
	if err != nil {
		return fmt.Errorf("store confirmation token: %w", err)
	}
	return nil
}

// GetSubscriberEmailByToken resolves a confirmation token to the subscriber
// email it was issued for.
func (q *Queries) GetSubscriberEmailByToken(ctx context.Context, token string) (string, error) {
	var email string
	err := q.db.QueryRow(ctx, `
		SELECT subscriber_email
		FROM confirmation_tokens
		WHERE token = $1`,
		token,
	).Scan(&email)
	if err != nil {
		return "", fmt.Errorf("get subscriber by token: %w", err)
	}
	return email, nil
}

// ConfirmSubscriber marks a subscriber as confirmed, making it eligible for
// issue delivery.
func (q *Queries) ConfirmSubscriber(ctx context.Context, email string) error {
	_, err := q.db.Exec(ctx, `
		UPDATE subscribers
		SET status = $2
		WHERE email = $1`,
		email, SubscriberStatusConfirmed,
	)
	if err != nil {
		return fmt.Errorf("confirm subscriber: %w", err)
	}
	return nil
}

// CountDeliveryQueue returns the number of pending delivery tasks.
func (q *Queries) CountDeliveryQueue(ctx context.Context) (int64, error) {
	var n int64
	err := q.db.QueryRow(ctx, `SELECT count(*) FROM issue_delivery_queue`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count delivery queue: %w", err)
	}
	return n, nil
}
