package homologation

import (
	"context"
	"fmt"
	"html/template"
	"math"
	"strings"
	"time"

	"sage/internal/core/apperror"
	"sage/internal/domain"
	"sage/internal/domain/schema"
	"sage/pkg/logger"
)

// --- Configuration ---

// Config returns the configuration, creating an empty one on first use.
func (s *Service) Config(ctx context.Context) (*Config, error) {
	cfg, err := s.configs.Get(ctx)
	if apperror.IsNotFound(err) {
		cfg = &Config{Key: ConfigKey}
		if err := s.configs.Save(ctx, cfg); err != nil {
			return nil, err
		}
		return cfg, nil
	}
	return cfg, err
}

// SaveConfig replaces the configuration. Empty passwords keep the stored ones.
func (s *Service) SaveConfig(ctx context.Context, in *Config) (*Config, error) {
	if err := in.Validate(ctx); err != nil {
		return nil, err
	}
	current, err := s.Config(ctx)
	if err != nil {
		return nil, err
	}
	in.Key = ConfigKey
	if in.DBPassword == "" {
		in.DBPassword = current.DBPassword
	}
	if in.SFTPPassword == "" {
		in.SFTPPassword = current.SFTPPassword
	}
	in.LastReportAt = current.LastReportAt
	if err := s.configs.Save(ctx, in); err != nil {
		return nil, err
	}
	return in, nil
}

// SaveFlags updates only the feature flags.
func (s *Service) SaveFlags(ctx context.Context, f Flags) (*Config, error) {
	cfg, err := s.Config(ctx)
	if err != nil {
		return nil, err
	}
	cfg.Flags = f
	if err := s.configs.Save(ctx, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Flags returns the feature flags, or NotFound when nothing was configured.
func (s *Service) Flags(ctx context.Context) (*Flags, error) {
	cfg, err := s.configs.Get(ctx)
	if err != nil {
		return nil, err
	}
	return &cfg.Flags, nil
}

// --- Periodic report ---

var reportTmpl = template.Must(template.New("report").Parse(
	`<h2>Homologation Report</h2>
<table>
<tr><th>Status</th><th>Count</th></tr>
{{range .}}<tr><td>{{.Status}}</td><td>{{.Count}}</td></tr>
{{end}}</table>
`))

// ReportDue reports whether the periodic report should be sent at now.
func ReportDue(cfg *Config, now time.Time) bool {
	if cfg == nil || !cfg.AlertConfiguration || !cfg.Frequency.Valid() {
		return false
	}
	if cfg.LastReportAt == nil {
		return true
	}
	return !now.Before(cfg.LastReportAt.Add(cfg.Frequency.Interval()))
}

// SendReportIfDue emails the status histogram when the configured period
// elapsed. It returns whether a report was sent.
func (s *Service) SendReportIfDue(ctx context.Context) (bool, error) {
	cfg, err := s.configs.Get(ctx)
	if apperror.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	now := s.now()
	if !ReportDue(cfg, now) {
		return false, nil
	}
	to := cfg.Recipients()
	if len(to) == 0 {
		return false, nil
	}

	counts, err := s.repo.StatusCounts(ctx)
	if err != nil {
		return false, err
	}
	var body strings.Builder
	if err := reportTmpl.Execute(&body, counts); err != nil {
		return false, fmt.Errorf("render report: %w", err)
	}
	if !s.notifier.Send(ctx, to, "Homologation Report", body.String()) {
		logger.Warn(ctx, "homologation report not sent", "recipients", len(to))
		return false, nil
	}

	cfg.LastReportAt = &now
	if err := s.configs.Save(ctx, cfg); err != nil {
		return true, err
	}
	return true, nil
}

// --- Dashboard ---

// CorporateAlert flags a corporate with open work.
type CorporateAlert struct {
	Distributor string `json:"distributor"`
	Message     string `json:"message"`
	Status      string `json:"status"`
}

// Dashboard summarises homologation progress.
type Dashboard struct {
	StatusCounts      map[string]int64    `json:"status_counts"`
	TotalProducts     int64               `json:"total_catalogs"`
	StatusPercentages map[string]float64  `json:"status_percentages"`
	Corporates        []CorporateProgress `json:"-"`
	Alerts            []CorporateAlert    `json:"pending_alerts"`
}

// Dashboard counts homologated, pending and rejected products overall and
// per corporate.
func (s *Service) Dashboard(ctx context.Context) (*Dashboard, error) {
	all, err := s.products.List(ctx, schema.ProductFilter{ListFilter: domain.ListFilter{Limit: 1}})
	if err != nil {
		return nil, err
	}
	yes := true
	done, err := s.products.List(ctx, schema.ProductFilter{ListFilter: domain.ListFilter{Limit: 1}, IsHomologated: &yes})
	if err != nil {
		return nil, err
	}
	counts, err := s.repo.StatusCounts(ctx)
	if err != nil {
		return nil, err
	}
	var rejected int64
	for _, c := range counts {
		if c.Status == StatusRejected {
			rejected = c.Count
		}
	}

	d := &Dashboard{
		StatusCounts: map[string]int64{
			"Pending":  all.TotalCount - done.TotalCount,
			"Active":   done.TotalCount,
			"Rejected": rejected,
		},
		TotalProducts:     all.TotalCount,
		StatusPercentages: map[string]float64{"Homologated": 0, "Pending": 0, "Rejected": 0},
		Alerts:            []CorporateAlert{},
	}
	if all.TotalCount > 0 {
		pct := func(n int64) float64 {
			return math.Round(float64(n)/float64(all.TotalCount)*100*100) / 100
		}
		d.StatusPercentages["Homologated"] = pct(done.TotalCount)
		d.StatusPercentages["Pending"] = pct(all.TotalCount - done.TotalCount)
		d.StatusPercentages["Rejected"] = pct(rejected)
	}

	if d.Corporates, err = s.repo.CorporateProgress(ctx); err != nil {
		return nil, err
	}
	for _, c := range d.Corporates {
		if c.Pending > 0 {
			d.Alerts = append(d.Alerts, CorporateAlert{c.Corporate, fmt.Sprintf("has %d pending homologations", c.Pending), "Pending"})
		}
		if c.Rejected > 0 {
			d.Alerts = append(d.Alerts, CorporateAlert{c.Corporate, fmt.Sprintf("has %d products with issues", c.Rejected), "Rejected"})
		}
	}
	return d, nil
}
