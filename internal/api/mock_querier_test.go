package api

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mailpost/newsletter/internal/storage"
)

// errNotFound is a sentinel error for not-found simulation.
var errNotFound = errors.New("not found")

// mockQuerier implements storage.Querier for testing.
type mockQuerier struct {
	// Issue methods
	insertIssueFn       func(ctx context.Context, tx pgx.Tx, arg storage.InsertIssueParams) error
	enqueueDeliveriesFn func(ctx context.Context, tx pgx.Tx, issueID uuid.UUID) (int64, error)
	getIssueFn          func(ctx context.Context, id uuid.UUID) (storage.NewsletterIssue, error)
	listIssuesFn        func(ctx context.Context) ([]storage.IssueSummary, error)

	// Operator methods
	createOperatorFn        func(ctx context.Context, arg storage.CreateOperatorParams) (storage.Operator, error)
	getOperatorByUsernameFn func(ctx context.Context, username string) (storage.Operator, error)

	// Subscriber methods
	createSubscriberFn          func(ctx context.Context, tx pgx.Tx, arg storage.CreateSubscriberParams) error
	storeConfirmationTokenFn    func(ctx context.Context, tx pgx.Tx, token string, email string) error
	getSubscriberEmailByTokenFn func(ctx context.Context, token string) (string, error)
	confirmSubscriberFn         func(ctx context.Context, email string) error

	// Delivery queue methods
	countDeliveryQueueFn func(ctx context.Context) (int64, error)
}

// --- Issue methods ---

func (m *mockQuerier) InsertIssue(ctx context.Context, tx pgx.Tx, arg storage.InsertIssueParams) error {
	if m.insertIssueFn != nil {
		return m.insertIssueFn(ctx, tx, arg)
	}
	return nil
}

func (m *mockQuerier) EnqueueDeliveries(ctx context.Context, tx pgx.Tx, issueID uuid.UUID) (int64, error) {
	if m.enqueueDeliveriesFn != nil {
		return m.enqueueDeliveriesFn(ctx, tx, issueID)
	}
	return 0, nil
}

func (m *mockQuerier) GetIssue(ctx context.Context, id uuid.UUID) (storage.NewsletterIssue, error) {
	if m.getIssueFn != nil {
		return m.getIssueFn(ctx, id)
	}
	return storage.NewsletterIssue{}, nil
}

func (m *mockQuerier) ListIssues(ctx context.Context) ([]storage.IssueSummary, error) {
	if m.listIssuesFn != nil {
		return m.listIssuesFn(ctx)
	}
	return nil, nil
}

// --- Operator methods ---

func (m *mockQuerier) CreateOperator(ctx context.Context, arg storage.CreateOperatorParams) (storage.Operator, error) {
	if m.createOperatorFn != nil {
		return m.createOperatorFn(ctx, arg)
	}
	return storage.Operator{}, nil
}

func (m *mockQuerier) GetOperatorByUsername(ctx context.Context, username string) (storage.Operator, error) {
	if m.getOperatorByUsernameFn != nil {
		return m.getOperatorByUsernameFn(ctx, username)
	}
	return storage.Operator{}, nil
}

// --- Subscriber methods ---

func (m *mockQuerier) CreateSubscriber(ctx context.Context, tx pgx.Tx, arg storage.CreateSubscriberParams) error {
	if m.createSubscriberFn != nil {
		return m.createSubscriberFn(ctx, tx, arg)
	}
	return nil
}

func (m *mockQuerier) StoreConfirmationToken(ctx context.Context, tx pgx.Tx, token string, email string) error {
	if m.storeConfirmationTokenFn != nil {
		return m.storeConfirmationTokenFn(ctx, tx, token, email)
	}
	return nil
}

func (m *mockQuerier) GetSubscriberEmailByToken(ctx context.Context, token string) (string, error) {
	if m.getSubscriberEmailByTokenFn != nil {
		return m.getSubscriberEmailByTokenFn(ctx, token)
	}
	return "", errNotFound
}

func (m *mockQuerier) ConfirmSubscriber(ctx context.Context, email string) error {
	if m.confirmSubscriberFn != nil {
		return m.confirmSubscriberFn(ctx, email)
	}
	return nil
}

// --- Delivery queue methods ---

func (m *mockQuerier) CountDeliveryQueue(ctx context.Context) (int64, error) {
	if m.countDeliveryQueueFn != nil {
		return m.countDeliveryQueueFn(ctx)
	}
	return 0, nil
}

// fakeTx satisfies pgx.Tx for handler tests. Only Commit and Rollback are
// implemented; the mock querier never touches the transaction itself.
type fakeTx struct {
	pgx.Tx
	committed  bool
	rolledBack bool
}

func (t *fakeTx) Commit(ctx context.Context) error {
	t.committed = true
	return nil
}

func (t *fakeTx) Rollback(ctx context.Context) error {
	t.rolledBack = true
	return nil
}
