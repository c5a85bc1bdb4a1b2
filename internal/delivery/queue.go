// Package delivery drains the issue delivery queue: it claims one queue row
// at a time under a row lock, sends the issue to the subscriber, and removes
// the row on terminal outcomes. Any number of worker processes may run
// concurrently; coordination happens entirely through row locks.
package delivery

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrEmptyQueue is returned by Dequeue when no unclaimed row exists.
var ErrEmptyQueue = errors.New("delivery queue is empty")

// Task is one claimed delivery. The queue row stays locked by the task's
// open transaction until Complete or Abandon is called; a crashed holder
// releases the lock implicitly, leaving the row claimable again.
type Task struct {
	tx pgx.Tx

	IssueID         uuid.UUID
	SubscriberEmail string
	SubscriberName  string
}

// Queue claims and settles delivery tasks stored in PostgreSQL.
type Queue struct {
	pool *pgxpool.Pool
}

// NewQueue creates a Queue over the given connection pool.
func NewQueue(pool *pgxpool.Pool) *Queue {
	return &Queue{pool: pool}
}

// Dequeue claims a single queue row joined with the subscriber's stored
// contact data. SKIP LOCKED makes concurrent workers each claim a distinct
// row instead of blocking on rows locked by another worker's transaction.
// Only the queue row is locked, so unrelated workers never contend on the
// subscriber row.
func (q *Queue) Dequeue(ctx context.Context) (*Task, error) {
	tx, err := q.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin dequeue transaction: %w", err)
	}

	task := &Task{tx: tx}
	err = tx.QueryRow(ctx, `
		SELECT q.issue_id, q.subscriber_email, s.name
		FROM issue_delivery_queue q
		INNER JOIN subscribers s ON q.subscriber_email = s.email
		LIMIT 1
		FOR UPDATE OF q SKIP LOCKED`,
	).Scan(&task.IssueID, &task.SubscriberEmail, &task.SubscriberName)
	if errors.Is(err, pgx.ErrNoRows) {
		_ = tx.Rollback(ctx)
		return nil, ErrEmptyQueue
	}
	if err != nil {
		_ = tx.Rollback(ctx)
		return nil, fmt.Errorf("select delivery task: %w", err)
	}

	return task, nil
}

// Complete deletes the claimed row and commits, settling the task
// terminally. The row's absence is what marks the delivery as done.
func (q *Queue) Complete(ctx context.Context, task *Task) error {
	_, err := task.tx.Exec(ctx, `
		DELETE FROM issue_delivery_queue
		WHERE issue_id = $1 AND subscriber_email = $2`,
		task.IssueID, task.SubscriberEmail,
	)
	if err != nil {
		_ = task.tx.Rollback(ctx)
		return fmt.Errorf("delete delivery task: %w", err)
	}

	if err := task.tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit delivery task: %w", err)
	}
	return nil
}

// Abandon rolls the claim back, releasing the row lock so another worker can
// retry the task.
func (q *Queue) Abandon(ctx context.Context, task *Task) error {
	if err := task.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("rollback delivery task: %w", err)
	}
	return nil
}
