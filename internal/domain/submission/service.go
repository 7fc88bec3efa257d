package submission

import (
	"context"
	"fmt"
	"time"

	"sage/internal/core/apperror"
	"sage/internal/domain"
	"sage/internal/domain/notify"
)

// DateLayout is the dashboard date rendering.
const DateLayout = "02/01/2006"

const dashboardSize = 3

// AlertLister returns the caller's alerts.
type AlertLister interface {
	List(ctx context.Context, userID string, limit int) ([]*notify.Alert, error)
}

// Service reads and records submissions.
type Service struct {
	repo   Repository
	alerts AlertLister
	now    func() time.Time
}

func NewService(repo Repository, alerts AlertLister) *Service {
	return &Service{repo: repo, alerts: alerts, now: time.Now}
}

// Record stores s. It satisfies the ingestor's audit hook.
func (s *Service) Record(ctx context.Context, sub *Submission) error {
	if sub.SubmissionTime.IsZero() {
		sub.SubmissionTime = s.now()
	}
	if err := s.repo.Create(ctx, sub); err != nil {
		return fmt.Errorf("record submission: %w", err)
	}
	return nil
}

func (s *Service) Get(ctx context.Context, id int64) (*Submission, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, f Filter) (domain.ListResult[*Submission], error) {
	if err := checkRange(f); err != nil {
		return domain.ListResult[*Submission]{}, err
	}
	return s.repo.List(ctx, f)
}

// Dashboard summarises recent activity for the caller.
type Dashboard struct {
	NewSubmissions   int64           `json:"new_submissions"`
	TotalSubmissions int64           `json:"total_submissions"`
	Delayed          int64           `json:"delayed_submissions"`
	LastSubmissions  []Entry         `json:"last_submissions"`
	DelayedRecords   []Entry         `json:"delayed_records"`
	Alerts           []*notify.Alert `json:"alerts"`
}

// Dashboard counts submissions made today, in total and past their catalog
// deadline, and lists the latest of each. userID scopes the alerts.
func (s *Service) Dashboard(ctx context.Context, f Filter, userID string) (*Dashboard, error) {
	if err := checkRange(f); err != nil {
		return nil, err
	}
	now := s.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	var (
		d   Dashboard
		err error
	)
	if d.NewSubmissions, err = s.repo.Count(ctx, f, today); err != nil {
		return nil, err
	}
	if d.TotalSubmissions, err = s.repo.Count(ctx, f, time.Time{}); err != nil {
		return nil, err
	}
	if d.Delayed, err = s.repo.CountDelayed(ctx, f); err != nil {
		return nil, err
	}
	if d.LastSubmissions, err = s.repo.Latest(ctx, f, dashboardSize); err != nil {
		return nil, err
	}
	if d.DelayedRecords, err = s.repo.LatestDelayed(ctx, f, dashboardSize); err != nil {
		return nil, err
	}
	formatDates(d.LastSubmissions)
	formatDates(d.DelayedRecords)

	d.Alerts = []*notify.Alert{}
	if userID != "" {
		alerts, err := s.alerts.List(ctx, userID, dashboardSize)
		if err != nil {
			return nil, err
		}
		d.Alerts = alerts
	}
	return &d, nil
}

func checkRange(f Filter) error {
	if f.From != nil && f.To != nil && f.From.After(*f.To) {
		return apperror.NewValidation("from_date must not be after to_date").WithDetail("field", "from_date")
	}
	return nil
}

func formatDates(entries []Entry) {
	for i := range entries {
		entries[i].Date = entries[i].SubmissionTime.Format(DateLayout)
	}
}
