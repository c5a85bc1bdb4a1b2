package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5"

	"github.com/mailpost/newsletter/internal/domain"
	"github.com/mailpost/newsletter/internal/storage"
)

// fakeBeginner hands out fakeTx transactions.
type fakeBeginner struct {
	tx  *fakeTx
	err error
}

func (b *fakeBeginner) Begin(ctx context.Context) (pgx.Tx, error) {
	if b.err != nil {
		return nil, b.err
	}
	return b.tx, nil
}

// recordingMailer captures sent messages.
type recordingMailer struct {
	mu      sync.Mutex
	sent    []sentMessage
	sendErr error
}

type sentMessage struct {
	to      domain.Subscriber
	subject string
	html    string
}

func (m *recordingMailer) Send(ctx context.Context, to domain.Subscriber, subject, htmlContent string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return m.sendErr
	}
	m.sent = append(m.sent, sentMessage{to: to, subject: subject, html: htmlContent})
	return nil
}

func subscribeRequestOf(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/subscriptions", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestSubscribeHandler_Valid(t *testing.T) {
	tx := &fakeTx{}
	var storedToken string
	mock := &mockQuerier{
		createSubscriberFn: func(ctx context.Context, gotTx pgx.Tx, arg storage.CreateSubscriberParams) error {
			if gotTx != tx {
				t.Error("subscriber created outside the transaction")
			}
			if arg.Email != "ursula@example.com" {
				t.Errorf("expected email ursula@example.com, got %s", arg.Email)
			}
			if arg.Name != "Ursula" {
				t.Errorf("expected name Ursula, got %s", arg.Name)
			}
			return nil
		},
		storeConfirmationTokenFn: func(ctx context.Context, gotTx pgx.Tx, token string, email string) error {
			storedToken = token
			return nil
		},
	}
	mail := &recordingMailer{}

	rec := httptest.NewRecorder()
	handler := SubscribeHandler(&fakeBeginner{tx: tx}, mock, mail, "https://news.example.com")
	handler.ServeHTTP(rec, subscribeRequestOf(`{"email":"ursula@example.com","name":"Ursula"}`))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d; body: %s", rec.Code, rec.Body.String())
	}
	if !tx.committed {
		t.Error("expected transaction to be committed")
	}
	if storedToken == "" {
		t.Fatal("expected a confirmation token to be stored")
	}
	if len(mail.sent) != 1 {
		t.Fatalf("expected 1 confirmation email, got %d", len(mail.sent))
	}
	wantLink := "https://news.example.com/subscriptions/confirm?token=" + storedToken
	if !strings.Contains(mail.sent[0].html, wantLink) {
		t.Errorf("confirmation email does not contain link %q: %s", wantLink, mail.sent[0].html)
	}
}

func TestSubscribeHandler_InvalidInput(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing email", `{"name":"Ursula"}`},
		{"malformed email", `{"email":"not-an-email","name":"Ursula"}`},
		{"missing name", `{"email":"ursula@example.com"}`},
		{"forbidden name characters", `{"email":"ursula@example.com","name":"<script>"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			beginner := &fakeBeginner{err: errNotFound}
			mail := &recordingMailer{}

			rec := httptest.NewRecorder()
			handler := SubscribeHandler(beginner, &mockQuerier{}, mail, "https://news.example.com")
			handler.ServeHTTP(rec, subscribeRequestOf(tt.body))

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected status 400, got %d; body: %s", rec.Code, rec.Body.String())
			}
			if len(mail.sent) != 0 {
				t.Error("no email may be sent for invalid input")
			}
		})
	}
}

func TestSubscribeHandler_StoreErrorRollsBack(t *testing.T) {
	tx := &fakeTx{}
	mock := &mockQuerier{
		storeConfirmationTokenFn: func(ctx context.Context, gotTx pgx.Tx, token string, email string) error {
			return errNotFound
		},
	}
	mail := &recordingMailer{}

	rec := httptest.NewRecorder()
	handler := SubscribeHandler(&fakeBeginner{tx: tx}, mock, mail, "https://news.example.com")
	handler.ServeHTTP(rec, subscribeRequestOf(`{"email":"ursula@example.com","name":"Ursula"}`))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", rec.Code)
	}
	if !tx.rolledBack {
		t.Error("expected transaction to be rolled back")
	}
	if len(mail.sent) != 0 {
		t.Error("no email may be sent when the subscription is not stored")
	}
}

func TestSubscribeHandler_SendFailure(t *testing.T) {
	tx := &fakeTx{}
	mail := &recordingMailer{sendErr: errNotFound}

	rec := httptest.NewRecorder()
	handler := SubscribeHandler(&fakeBeginner{tx: tx}, &mockQuerier{}, mail, "https://news.example.com")
	handler.ServeHTTP(rec, subscribeRequestOf(`{"email":"ursula@example.com","name":"Ursula"}`))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", rec.Code)
	}
	// The subscription itself stays committed; only the email failed. The
	// subscriber can re-subscribe to receive a fresh token.
	if !tx.committed {
		t.Error("expected subscription to remain committed")
	}
}

func TestConfirmSubscriptionHandler_Valid(t *testing.T) {
	confirmed := ""
	mock := &mockQuerier{
		getSubscriberEmailByTokenFn: func(ctx context.Context, token string) (string, error) {
			if token != "tok-1" {
				t.Errorf("expected token tok-1, got %s", token)
			}
			return "ursula@example.com", nil
		},
		confirmSubscriberFn: func(ctx context.Context, email string) error {
			confirmed = email
			return nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/subscriptions/confirm?token=tok-1", nil)
	rec := httptest.NewRecorder()

	handler := ConfirmSubscriptionHandler(mock)
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d; body: %s", rec.Code, rec.Body.String())
	}
	if confirmed != "ursula@example.com" {
		t.Errorf("expected ursula@example.com confirmed, got %q", confirmed)
	}
}

func TestConfirmSubscriptionHandler_UnknownToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/subscriptions/confirm?token=bogus", nil)
	rec := httptest.NewRecorder()

	handler := ConfirmSubscriptionHandler(&mockQuerier{})
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rec.Code)
	}
}

func TestConfirmSubscriptionHandler_MissingToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/subscriptions/confirm", nil)
	rec := httptest.NewRecorder()

	handler := ConfirmSubscriptionHandler(&mockQuerier{})
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
}
