package submission

import (
	"context"
	"time"

	"sage/internal/domain"
)

// Repository persists submissions.
type Repository interface {
	Create(ctx context.Context, s *Submission) error
	GetByID(ctx context.Context, id int64) (*Submission, error)
	List(ctx context.Context, f Filter) (domain.ListResult[*Submission], error)

	// Count returns matching submissions; since further limits to
	// submission_time >= since when non-zero.
	Count(ctx context.Context, f Filter, since time.Time) (int64, error)
	// CountDelayed counts submissions made after their catalog's deadline.
	CountDelayed(ctx context.Context, f Filter) (int64, error)
	Latest(ctx context.Context, f Filter, limit int) ([]Entry, error)
	LatestDelayed(ctx context.Context, f Filter, limit int) ([]Entry, error)
}
