package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"sage/internal/domain"
	"sage/internal/domain/notify"
	"sage/internal/domain/submission"
	"sage/internal/infrastructure/http/v1/dto"
)

// SubmissionService reads the bulk-save audit trail.
type SubmissionService interface {
	Get(ctx context.Context, id int64) (*submission.Submission, error)
	List(ctx context.Context, f submission.Filter) (domain.ListResult[*submission.Submission], error)
	Dashboard(ctx context.Context, f submission.Filter, userID string) (*submission.Dashboard, error)
}

// AlertLister lists in-app alerts of a user.
type AlertLister interface {
	List(ctx context.Context, userID string, limit int) ([]*notify.Alert, error)
}

// defaultAlertLimit caps the alert listing when no limit is given.
const defaultAlertLimit = 50

// SubmissionHandler handles submission history, the dashboard and alerts.
type SubmissionHandler struct {
	*BaseHandler
	submissions SubmissionService
	alerts      AlertLister
}

// NewSubmissionHandler creates a new submission handler.
func NewSubmissionHandler(submissions SubmissionService, alerts AlertLister) *SubmissionHandler {
	return &SubmissionHandler{BaseHandler: NewBaseHandler(), submissions: submissions, alerts: alerts}
}

// List handles GET /submissions and GET /products/:id/submissions
func (h *SubmissionHandler) List(c *gin.Context) {
	f, ok := h.filter(c)
	if !ok {
		return
	}
	if c.Param("id") != "" {
		pid, ok := h.ParamID(c, "id")
		if !ok {
			return
		}
		f.ProductID = &pid
	}
	res, err := h.submissions.List(c.Request.Context(), f)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, res)
}

// Get handles GET /submissions/:id
func (h *SubmissionHandler) Get(c *gin.Context) {
	id, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	s, err := h.submissions.Get(c.Request.Context(), id)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, s)
}

// Dashboard handles GET /dashboard
func (h *SubmissionHandler) Dashboard(c *gin.Context) {
	f, ok := h.filter(c)
	if !ok {
		return
	}
	d, err := h.submissions.Dashboard(c.Request.Context(), f, h.GetUserID(c))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, d)
}

// Alerts handles GET /alerts
func (h *SubmissionHandler) Alerts(c *gin.Context) {
	limit := h.ParseIntQuery(c, "limit", defaultAlertLimit)
	alerts, err := h.alerts.List(c.Request.Context(), h.GetUserID(c), limit)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, alerts)
}

func (h *SubmissionHandler) filter(c *gin.Context) (submission.Filter, bool) {
	var q dto.SubmissionQuery
	if !h.BindQuery(c, &q) {
		return submission.Filter{}, false
	}
	f, err := q.ToFilter()
	if err != nil {
		h.Error(c, err)
		return submission.Filter{}, false
	}
	return f, true
}
