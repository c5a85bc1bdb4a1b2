package delivery

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mailpost/newsletter/internal/domain"
	"github.com/mailpost/newsletter/internal/mailer"
	"github.com/mailpost/newsletter/internal/metrics"
	"github.com/mailpost/newsletter/internal/storage"
)

// Outcome reports what one worker cycle did.
type Outcome int

const (
	// TaskCompleted means a queue row was claimed and settled.
	TaskCompleted Outcome = iota
	// EmptyQueue means no unclaimed row existed.
	EmptyQueue
)

// TaskSource claims and settles delivery tasks. Implemented by Queue.
type TaskSource interface {
	Dequeue(ctx context.Context) (*Task, error)
	Complete(ctx context.Context, task *Task) error
	Abandon(ctx context.Context, task *Task) error
}

// issueStore is the slice of storage.Querier the worker needs.
type issueStore interface {
	GetIssue(ctx context.Context, id uuid.UUID) (storage.NewsletterIssue, error)
	CountDeliveryQueue(ctx context.Context) (int64, error)
}

// Config tunes the worker loop.
type Config struct {
	// PollInterval is the sleep after finding the queue empty.
	PollInterval time.Duration
	// ErrorBackoff is the sleep after an unexpected dequeue/store error.
	ErrorBackoff time.Duration
}

// Worker repeatedly executes delivery tasks until its context is cancelled.
type Worker struct {
	queue        TaskSource
	store        issueStore
	mail         mailer.Client
	log          zerolog.Logger
	pollInterval time.Duration
	errorBackoff time.Duration
}

// NewWorker creates a Worker. Zero durations in cfg fall back to 10s poll
// interval and 1s error backoff.
func NewWorker(queue TaskSource, store issueStore, mail mailer.Client, log zerolog.Logger, cfg Config) *Worker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 10 * time.Second
	}
	if cfg.ErrorBackoff <= 0 {
		cfg.ErrorBackoff = 1 * time.Second
	}
	return &Worker{
		queue:        queue,
		store:        store,
		mail:         mail,
		log:          log,
		pollInterval: cfg.PollInterval,
		errorBackoff: cfg.ErrorBackoff,
	}
}

// ExecuteTask runs one worker cycle: claim a row, attempt the delivery,
// settle the row. Send failures and permanently invalid recipients are
// terminal: the row is deleted after exactly one attempt either way, so a
// bad address or a rejected message can never block the queue. Only
// store-level errors leave the row in place for a later retry.
func (w *Worker) ExecuteTask(ctx context.Context) (Outcome, error) {
	task, err := w.queue.Dequeue(ctx)
	if errors.Is(err, ErrEmptyQueue) {
		return EmptyQueue, nil
	}
	if err != nil {
		return 0, err
	}

	if err := w.attempt(ctx, task); err != nil {
		// Unexpected store failure: release the claim, row stays owed.
		_ = w.queue.Abandon(ctx, task)
		return 0, err
	}

	if err := w.queue.Complete(ctx, task); err != nil {
		return 0, err
	}
	return TaskCompleted, nil
}

// attempt performs the delivery for a claimed task. A nil return means the
// task reached a terminal outcome and its row must be deleted.
func (w *Worker) attempt(ctx context.Context, task *Task) error {
	log := w.log.With().
		Stringer("issue_id", task.IssueID).
		Str("subscriber_email", task.SubscriberEmail).
		Logger()

	email, emailErr := domain.ParseEmail(task.SubscriberEmail)
	name, nameErr := domain.ParseName(task.SubscriberName)
	if emailErr != nil || nameErr != nil {
		// Stored contact details went invalid after confirmation. Terminal:
		// an undeliverable address must not block the queue forever.
		log.Error().
			AnErr("email_error", emailErr).
			AnErr("name_error", nameErr).
			Msg("skipping subscriber with invalid stored contact details")
		metrics.DeliveryAttemptsTotal.WithLabelValues("invalid_recipient").Inc()
		return nil
	}

	issue, err := w.store.GetIssue(ctx, task.IssueID)
	if err != nil {
		return err
	}

	start := time.Now()
	sendErr := w.mail.Send(ctx, domain.Subscriber{Email: email, Name: name}, issue.Title, issue.Content)
	metrics.DeliveryDuration.Observe(time.Since(start).Seconds())

	if sendErr != nil {
		// At-most-one-attempt policy: a failed send is logged and dropped,
		// never re-queued.
		log.Error().Err(sendErr).Msg("failed to deliver issue to a confirmed subscriber, skipping")
		metrics.DeliveryAttemptsTotal.WithLabelValues("send_failed").Inc()
		return nil
	}

	log.Info().Dur("duration", time.Since(start)).Msg("issue delivered")
	metrics.DeliveryAttemptsTotal.WithLabelValues("sent").Inc()
	return nil
}

// Run loops until ctx is cancelled: draining continuously while tasks
// remain, sleeping pollInterval when the queue is empty, and backing off
// errorBackoff after unexpected errors.
func (w *Worker) Run(ctx context.Context) {
	w.log.Info().
		Dur("poll_interval", w.pollInterval).
		Dur("error_backoff", w.errorBackoff).
		Msg("delivery worker started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("delivery worker stopping")
			return
		default:
		}

		outcome, err := w.ExecuteTask(ctx)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				continue
			}
			w.log.Error().Err(err).Msg("delivery cycle failed")
			w.sleep(ctx, w.errorBackoff)
		case outcome == EmptyQueue:
			w.refreshQueueDepth(ctx)
			w.sleep(ctx, w.pollInterval)
		default:
			// Task completed: loop immediately to drain the backlog.
		}
	}
}

func (w *Worker) sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func (w *Worker) refreshQueueDepth(ctx context.Context) {
	count, err := w.store.CountDeliveryQueue(ctx)
	if err != nil {
		w.log.Debug().Err(err).Msg("failed to refresh queue depth gauge")
		return
	}
	metrics.DeliveryQueueDepth.Set(float64(count))
}
