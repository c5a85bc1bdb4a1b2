//go:build integration

package storage_test

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/mailpost/newsletter/internal/storage"
)

func TestSubscriberLifecycle(t *testing.T) {
	_, queries := setupTestDB(t)
	ctx := context.Background()
	email := uniqueEmail(t)
	token := uuid.NewString()

	tx, err := sharedDB.Pool.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := queries.CreateSubscriber(ctx, tx, storage.CreateSubscriberParams{
		Email: email,
		Name:  "Ursula",
	}); err != nil {
		t.Fatalf("create subscriber: %v", err)
	}
	if err := queries.StoreConfirmationToken(ctx, tx, token, email); err != nil {
		t.Fatalf("store token: %v", err)
	}
	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("commit: %v", err)
	}

	got, err := queries.GetSubscriberEmailByToken(ctx, token)
	if err != nil {
		t.Fatalf("resolve token: %v", err)
	}
	if got != email {
		t.Errorf("token resolved to %q, want %q", got, email)
	}

	if err := queries.ConfirmSubscriber(ctx, email); err != nil {
		t.Fatalf("confirm subscriber: %v", err)
	}

	var status string
	err = sharedDB.Pool.QueryRow(ctx, `SELECT status FROM subscribers WHERE email = $1`, email).Scan(&status)
	if err != nil {
		t.Fatalf("read status: %v", err)
	}
	if status != storage.SubscriberStatusConfirmed {
		t.Errorf("status = %q, want %q", status, storage.SubscriberStatusConfirmed)
	}
}

func TestCreateSubscriber_ResubscribeIsNoOp(t *testing.T) {
	_, queries := setupTestDB(t)
	ctx := context.Background()
	email := uniqueEmail(t)

	createConfirmedSubscriber(t, queries, email, "Ursula")

	// A second subscription for the same address must not reset it to
	// pending or fail the transaction.
	tx, err := sharedDB.Pool.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := queries.CreateSubscriber(ctx, tx, storage.CreateSubscriberParams{
		Email: email,
		Name:  "Ursula again",
	}); err != nil {
		t.Fatalf("re-subscribe: %v", err)
	}
	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("commit: %v", err)
	}

	var status string
	err = sharedDB.Pool.QueryRow(ctx, `SELECT status FROM subscribers WHERE email = $1`, email).Scan(&status)
	if err != nil {
		t.Fatalf("read status: %v", err)
	}
	if status != storage.SubscriberStatusConfirmed {
		t.Errorf("re-subscribe changed status to %q", status)
	}
}

func TestOperatorRoundTrip(t *testing.T) {
	_, queries := setupTestDB(t)
	ctx := context.Background()

	created := createTestOperator(t, queries)

	got, err := queries.GetOperatorByUsername(ctx, created.Username)
	if err != nil {
		t.Fatalf("get operator: %v", err)
	}
	if got.ID != created.ID {
		t.Errorf("ID = %s, want %s", got.ID, created.ID)
	}
	if got.PasswordHash != created.PasswordHash {
		t.Error("password hash mismatch")
	}

	if _, err := queries.GetOperatorByUsername(ctx, "no-such-operator"); err == nil {
		t.Error("expected error for unknown operator")
	}
}

func TestEnqueueDeliveries_OnlyConfirmedSubscribers(t *testing.T) {
	_, queries := setupTestDB(t)
	ctx := context.Background()
	clearSubscribers(t)

	createConfirmedSubscriber(t, queries, uniqueEmail(t), "Confirmed One")
	createConfirmedSubscriber(t, queries, uniqueEmail(t), "Confirmed Two")

	// Pending subscriber must not receive the issue.
	tx, err := sharedDB.Pool.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := queries.CreateSubscriber(ctx, tx, storage.CreateSubscriberParams{
		Email: uniqueEmail(t),
		Name:  "Still Pending",
	}); err != nil {
		t.Fatalf("create pending subscriber: %v", err)
	}
	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("commit: %v", err)
	}

	issueID, enqueued := publishTestIssue(t, queries, "Issue for confirmed", "<p>body</p>")
	if enqueued != 2 {
		t.Errorf("enqueued = %d, want 2", enqueued)
	}
	if n := queueCountForIssue(t, issueID); n != 2 {
		t.Errorf("queue rows = %d, want 2", n)
	}
}

func TestGetIssue(t *testing.T) {
	_, queries := setupTestDB(t)
	ctx := context.Background()

	issueID, _ := publishTestIssue(t, queries, "Readable issue", "<p>content</p>")

	issue, err := queries.GetIssue(ctx, issueID)
	if err != nil {
		t.Fatalf("get issue: %v", err)
	}
	if issue.Title != "Readable issue" {
		t.Errorf("title = %q, want %q", issue.Title, "Readable issue")
	}
	if issue.Content != "<p>content</p>" {
		t.Errorf("content = %q, want %q", issue.Content, "<p>content</p>")
	}

	if _, err := queries.GetIssue(ctx, uuid.New()); err == nil {
		t.Error("expected error for unknown issue")
	}
}

func TestListIssues_StatusTracksQueue(t *testing.T) {
	_, queries := setupTestDB(t)
	ctx := context.Background()
	clearSubscribers(t)

	createConfirmedSubscriber(t, queries, uniqueEmail(t), "Reader")
	issueID, enqueued := publishTestIssue(t, queries, "Status-tracked issue", "<p>body</p>")
	if enqueued != 1 {
		t.Fatalf("enqueued = %d, want 1", enqueued)
	}

	statusOf := func() string {
		t.Helper()
		issues, err := queries.ListIssues(ctx)
		if err != nil {
			t.Fatalf("list issues: %v", err)
		}
		for _, issue := range issues {
			if issue.ID == issueID {
				return issue.Status
			}
		}
		t.Fatalf("issue %s missing from listing", issueID)
		return ""
	}

	if got := statusOf(); got != storage.IssueStatusInProgress {
		t.Errorf("status with queue rows = %q, want %q", got, storage.IssueStatusInProgress)
	}

	clearDeliveryQueue(t)

	if got := statusOf(); got != storage.IssueStatusPublished {
		t.Errorf("status after drain = %q, want %q", got, storage.IssueStatusPublished)
	}
}

func TestCountDeliveryQueue(t *testing.T) {
	_, queries := setupTestDB(t)
	ctx := context.Background()
	clearSubscribers(t)

	createConfirmedSubscriber(t, queries, uniqueEmail(t), "Reader One")
	createConfirmedSubscriber(t, queries, uniqueEmail(t), "Reader Two")
	publishTestIssue(t, queries, "Counted issue", "<p>body</p>")

	n, err := queries.CountDeliveryQueue(ctx)
	if err != nil {
		t.Fatalf("count queue: %v", err)
	}
	if n != 2 {
		t.Errorf("queue depth = %d, want 2", n)
	}
}
