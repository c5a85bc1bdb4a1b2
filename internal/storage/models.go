package storage

import (
	"time"

	"github.com/google/uuid"
)

// Subscriber lifecycle states. Only confirmed subscribers receive issues.
const (
	SubscriberStatusPending   = "pending_confirmation"
	SubscriberStatusConfirmed = "confirmed"
)

// Issue delivery states derived from the delivery queue: an issue with
// remaining queue rows is still in progress.
const (
	IssueStatusPublished  = "PUBLISHED"
	IssueStatusInProgress = "IN PROGRESS"
)

// Operator is an authenticated newsletter author.
type Operator struct {
	ID           uuid.UUID
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

// Subscriber is a stored newsletter recipient. Name and Email are persisted
// raw and re-validated through the domain package before use.
type Subscriber struct {
	Email        string
	Name         string
	Status       string
	SubscribedAt time.Time
}

// NewsletterIssue is an immutable published issue.
type NewsletterIssue struct {
	ID          uuid.UUID
	Title       string
	Content     string
	PublishedAt time.Time
}

// IssueSummary is a NewsletterIssue annotated with its delivery status.
type IssueSummary struct {
	NewsletterIssue
	Status string
}
