// Package notify defines the best-effort side channels of the service:
// email notifications and persistent user alerts. Implementations never
// return errors into the caller; they report success as a bool.
package notify

import (
	"context"
	"time"
)

// Recipient identifies who a notification is about.
type Recipient struct {
	UserID   string
	Username string
	Email    string
}

// Problem is one reportable row/field issue.
type Problem struct {
	Row   int    `json:"row"`
	Field string `json:"field"`
	Error string `json:"error"`
}

// Notifier sends email notifications.
type Notifier interface {
	NotifyValidationErrors(ctx context.Context, to Recipient, product string, problems []Problem) bool
	NotifySaveErrors(ctx context.Context, to Recipient, product string, problems []Problem) bool

	// Send delivers a plain message to a list of addresses.
	Send(ctx context.Context, to []string, subject, body string) bool
}

// Alert is a persistent, user-visible message.
type Alert struct {
	ID        int64     `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user"`
	Message   string    `db:"message" json:"message"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// MaxAlertLength is the stored message limit.
const MaxAlertLength = 255

// Alerter creates alerts; a nil result means the alert was not stored.
type Alerter interface {
	CreateAlert(ctx context.Context, userID, message string) *Alert
}

// AlertRepository persists alerts.
type AlertRepository interface {
	Create(ctx context.Context, a *Alert) error
	ListByUser(ctx context.Context, userID string, limit int) ([]*Alert, error)
}
