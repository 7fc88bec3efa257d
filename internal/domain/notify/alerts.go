package notify

import (
	"context"
	"unicode/utf8"

	"sage/pkg/logger"
)

// AlertService stores alerts and swallows storage failures.
type AlertService struct {
	repo AlertRepository
}

func NewAlertService(repo AlertRepository) *AlertService {
	return &AlertService{repo: repo}
}

// CreateAlert stores message for userID, truncated to MaxAlertLength runes.
// It returns nil when userID is empty or the write fails.
func (s *AlertService) CreateAlert(ctx context.Context, userID, message string) *Alert {
	if userID == "" {
		return nil
	}
	if utf8.RuneCountInString(message) > MaxAlertLength {
		message = string([]rune(message)[:MaxAlertLength])
	}
	a := &Alert{UserID: userID, Message: message}
	if err := s.repo.Create(ctx, a); err != nil {
		logger.Warn(ctx, "alert not stored", "user_id", userID, "error", err)
		return nil
	}
	return a
}

// List returns the latest alerts of userID.
func (s *AlertService) List(ctx context.Context, userID string, limit int) ([]*Alert, error) {
	return s.repo.ListByUser(ctx, userID, limit)
}

// NopNotifier reports every send as failed. Used when mail is not configured.
type NopNotifier struct{}

func (NopNotifier) NotifyValidationErrors(context.Context, Recipient, string, []Problem) bool {
	return false
}

func (NopNotifier) NotifySaveErrors(context.Context, Recipient, string, []Problem) bool {
	return false
}

func (NopNotifier) Send(context.Context, []string, string, string) bool { return false }
