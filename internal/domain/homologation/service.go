package homologation

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"sage/internal/core/apperror"
	appctx "sage/internal/core/context"
	"sage/internal/core/tx"
	"sage/internal/domain"
	"sage/internal/domain/notify"
	"sage/internal/domain/schema"
	"sage/pkg/logger"
)

// DefaultTopN is the number of candidates the matcher returns.
const DefaultTopN = 5

// Products is the slice of the product store homologation needs.
type Products interface {
	GetByID(ctx context.Context, id int64) (*schema.Product, error)
	List(ctx context.Context, filter schema.ProductFilter) (domain.ListResult[*schema.Product], error)
	SetHomologated(ctx context.Context, id int64, homologated bool) error
}

// ServiceConfig wires the Service.
type ServiceConfig struct {
	Items     ItemRepository
	Repo      Repository
	Configs   ConfigRepository
	Products  Products
	Notifier  notify.Notifier
	TxManager tx.Manager
	Metrics   domain.Metrics
	TopN      int
}

// Service runs matching and review.
type Service struct {
	items    ItemRepository
	repo     Repository
	configs  ConfigRepository
	products Products
	notifier notify.Notifier
	txm      tx.Manager
	metrics  domain.Metrics
	topN     int
	now      func() time.Time
}

func NewService(cfg ServiceConfig) *Service {
	s := &Service{
		items:    cfg.Items,
		repo:     cfg.Repo,
		configs:  cfg.Configs,
		products: cfg.Products,
		notifier: cfg.Notifier,
		txm:      cfg.TxManager,
		metrics:  cfg.Metrics,
		topN:     cfg.TopN,
		now:      time.Now,
	}
	if s.notifier == nil {
		s.notifier = notify.NopNotifier{}
	}
	if s.metrics == nil {
		s.metrics = domain.NopMetrics{}
	}
	if s.topN <= 0 {
		s.topN = DefaultTopN
	}
	return s
}

// --- Listings ---

// PendingProducts lists products not yet homologated.
func (s *Service) PendingProducts(ctx context.Context, f domain.ListFilter) (domain.ListResult[*schema.Product], error) {
	no := false
	return s.products.List(ctx, schema.ProductFilter{ListFilter: f, IsHomologated: &no})
}

// AllPendingProducts pages through every non-homologated product.
func (s *Service) AllPendingProducts(ctx context.Context) ([]*schema.Product, error) {
	var out []*schema.Product
	f := domain.ListFilter{OrderBy: "id", Limit: 500}
	for {
		page, err := s.PendingProducts(ctx, f)
		if err != nil {
			return nil, err
		}
		out = append(out, page.Items...)
		if len(page.Items) < f.Limit {
			return out, nil
		}
		f.Offset += f.Limit
	}
}

func (s *Service) ListItems(ctx context.Context, f ItemFilter) (domain.ListResult[*OfficialItem], error) {
	return s.items.List(ctx, f)
}

func (s *Service) CreateItem(ctx context.Context, o *OfficialItem) error {
	if err := o.Validate(ctx); err != nil {
		return err
	}
	return s.items.Create(ctx, o)
}

func (s *Service) List(ctx context.Context, f Filter) (domain.ListResult[*Homologation], error) {
	return s.repo.List(ctx, f)
}

// --- Manual homologation ---

// Homologate approves productID against itemID on behalf of the caller,
// creating the link if needed, and marks the product homologated.
func (s *Service) Homologate(ctx context.Context, productID, itemID int64) (*Homologation, bool, error) {
	product, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return nil, false, err
	}
	item, err := s.items.GetByID(ctx, itemID)
	if err != nil {
		return nil, false, err
	}

	var (
		h       *Homologation
		created bool
		changed bool
	)
	err = s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		existing, err := s.repo.FindPair(ctx, productID, itemID)
		switch {
		case err == nil:
			changed = existing.Status != StatusApproved
			existing.Status = StatusApproved
			existing.HomologatedBy = caller(ctx)
			existing.HomologatedAt = s.now()
			h = existing
			if err := s.repo.Update(ctx, h); err != nil {
				return err
			}
		case apperror.IsNotFound(err):
			h = &Homologation{
				ProductID:      productID,
				OfficialItemID: itemID,
				Status:         StatusApproved,
				HomologatedBy:  caller(ctx),
				HomologatedAt:  s.now(),
			}
			if err := s.repo.Create(ctx, h); err != nil {
				return err
			}
			created, changed = true, true
		default:
			return err
		}
		if !product.IsHomologated {
			return s.products.SetHomologated(ctx, productID, true)
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	if changed {
		s.announce(ctx, h, product, item)
	}
	return h, created, nil
}

// --- Review ---

// ReviewInput is a partial update of a homologation.
type ReviewInput struct {
	Status         *Status
	OfficialItemID *int64
	Confidence     *decimal.Decimal
}

// Review updates a homologation as the caller. Approving marks the product
// homologated; moving to approved or rejected emails the configured addresses.
func (s *Service) Review(ctx context.Context, id int64, in ReviewInput) (*Homologation, error) {
	h, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	before := h.Status
	if in.Status != nil {
		if !in.Status.Valid() {
			return nil, apperror.NewValidation("invalid status").WithDetail("field", "status")
		}
		h.Status = *in.Status
	}
	if in.OfficialItemID != nil {
		if _, err := s.items.GetByID(ctx, *in.OfficialItemID); err != nil {
			return nil, err
		}
		h.OfficialItemID = *in.OfficialItemID
	}
	if in.Confidence != nil {
		if in.Confidence.IsNegative() || in.Confidence.GreaterThan(decimal.NewFromInt(100)) {
			return nil, apperror.NewValidation("confidence_score must be between 0 and 100").
				WithDetail("field", "confidence_score")
		}
		c := in.Confidence.Round(2)
		h.Confidence = &c
	}
	h.HomologatedBy = caller(ctx)
	h.HomologatedAt = s.now()

	err = s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Update(ctx, h); err != nil {
			return err
		}
		if h.Status == StatusApproved {
			return s.products.SetHomologated(ctx, h.ProductID, true)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if h.Status != before && h.Status.Final() {
		product, perr := s.products.GetByID(ctx, h.ProductID)
		item, ierr := s.items.GetByID(ctx, h.OfficialItemID)
		if perr == nil && ierr == nil {
			s.announce(ctx, h, product, item)
		}
	}
	return h, nil
}

// --- Automatic matching ---

// MatchReport is one product's best candidate.
type MatchReport struct {
	ProductID          int64  `json:"product_id"`
	ProductName        string `json:"product_name"`
	ProductDomain      string `json:"product_domain"`
	ProductDescription string `json:"product_description"`
	HomologationID     *int64 `json:"homologation_id"`
	BestMatch          Match  `json:"best_match"`
}

// Train builds a matcher from approved or auto-approvable matches and the
// active official items.
func (s *Service) Train(ctx context.Context) (*Matcher, error) {
	pairs, err := s.repo.TrainingPairs(ctx, AutoApproveScore.InexactFloat64())
	if err != nil {
		return nil, err
	}
	items, err := s.items.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	corpus := make([]Document, 0, 2*len(pairs))
	for _, p := range pairs {
		corpus = append(corpus, ProductDocument(p.ProductName, p.ProductDescription, p.ProductDomain))
	}
	for _, p := range pairs {
		corpus = append(corpus, Document(p.ItemName+" "+p.ItemDescription+" "+p.ItemCategory+" "+p.ItemBrand))
	}
	return Train(corpus, items), nil
}

// FindMatches returns the best candidates of one product.
func (s *Service) FindMatches(ctx context.Context, productID int64) ([]Match, error) {
	p, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	m, err := s.Train(ctx)
	if err != nil {
		return nil, err
	}
	return m.Find(ProductDocument(p.SchemaName, p.Description, p.Domain), s.topN), nil
}

// AutoMatch scores every non-homologated product. The best candidate is
// stored when it scores above PersistScore and no link to it exists yet,
// approved at AutoApproveScore and pending below. Only candidates above
// ReportScore are returned.
func (s *Service) AutoMatch(ctx context.Context) ([]MatchReport, error) {
	products, err := s.AllPendingProducts(ctx)
	if err != nil {
		return nil, err
	}
	m, err := s.Train(ctx)
	if err != nil {
		return nil, err
	}
	s.metrics.Count(ctx, domain.MetricMatchRuns, 1)

	out := []MatchReport{}
	for _, p := range products {
		matches := m.Find(ProductDocument(p.SchemaName, p.Description, p.Domain), s.topN)
		if len(matches) == 0 {
			continue
		}
		best := matches[0]
		s.metrics.Observe(ctx, domain.MetricMatchScore, best.Confidence.InexactFloat64())

		hid, err := s.persistBest(ctx, p, best)
		if err != nil {
			return nil, err
		}
		if best.Confidence.GreaterThan(ReportScore) {
			out = append(out, MatchReport{
				ProductID:          p.ID,
				ProductName:        p.SchemaName,
				ProductDomain:      p.Domain,
				ProductDescription: p.Description,
				HomologationID:     hid,
				BestMatch:          best,
			})
		}
	}
	logger.Info(ctx, "auto-match finished", "products", len(products), "reported", len(out))
	return out, nil
}

func (s *Service) persistBest(ctx context.Context, p *schema.Product, best Match) (*int64, error) {
	existing, err := s.repo.FindPair(ctx, p.ID, best.Item.ID)
	if err == nil {
		return &existing.ID, nil
	}
	if !apperror.IsNotFound(err) {
		return nil, err
	}
	if !best.Confidence.GreaterThan(PersistScore) {
		return nil, nil
	}

	score := best.Confidence
	h := &Homologation{
		ProductID:      p.ID,
		OfficialItemID: best.Item.ID,
		Confidence:     &score,
		IsAutomatic:    true,
		Status:         StatusPending,
		HomologatedAt:  s.now(),
	}
	if score.GreaterThanOrEqual(AutoApproveScore) {
		h.Status = StatusApproved
	}
	if err := s.repo.Create(ctx, h); err != nil {
		return nil, err
	}
	s.metrics.Count(ctx, domain.MetricMatchesPersisted, 1, "status", string(h.Status))
	if h.Status.Final() {
		s.announce(ctx, h, p, best.Item)
	}
	return &h.ID, nil
}

// announce emails a status change to the configured addresses, best-effort.
func (s *Service) announce(ctx context.Context, h *Homologation, p *schema.Product, item *OfficialItem) {
	cfg, err := s.configs.Get(ctx)
	if err != nil {
		if !apperror.IsNotFound(err) {
			logger.Warn(ctx, "homologation config unavailable", "error", err)
		}
		return
	}
	to := cfg.Recipients()
	if len(to) == 0 {
		return
	}
	subject := fmt.Sprintf("Homologation Status Update: %s - %s", p.SchemaName, h.Status)
	if !s.notifier.Send(ctx, to, subject, statusBody(h, p, item)) {
		logger.Warn(ctx, "homologation status email not sent", "homologation_id", h.ID)
	}
}

func statusBody(h *Homologation, p *schema.Product, item *OfficialItem) string {
	origin := "Manual"
	if h.IsAutomatic {
		origin = "Automatic"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Homologation status updated for %s\n", p.SchemaName)
	fmt.Fprintf(&b, "Product: %s\n", p.SchemaName)
	fmt.Fprintf(&b, "Official Product: %s\n", item.Name)
	fmt.Fprintf(&b, "Official Product SKU: %s\n", item.SKU)
	fmt.Fprintf(&b, "Homologation Status: %s\n", h.Status)
	fmt.Fprintf(&b, "Homologation Origin: %s\n", origin)
	if h.IsAutomatic && h.Confidence != nil {
		fmt.Fprintf(&b, "Confidence Score: %s\n", h.Confidence.StringFixed(2))
	}
	by := "-"
	if h.HomologatedBy != nil {
		by = *h.HomologatedBy
	}
	fmt.Fprintf(&b, "Homologated By: %s\n", by)
	return b.String()
}

func caller(ctx context.Context) *string {
	u := appctx.GetUser(ctx)
	if u == nil {
		return nil
	}
	name := u.Username
	if name == "" {
		name = u.UserID
	}
	if name == "" {
		return nil
	}
	return &name
}

// --- Bulk imports ---

// ItemHeaders are the columns of an official catalog upload.
var ItemHeaders = []string{"sku", "name", "description", "category", "brand", "is_active"}

// LinkHeaders are the columns of a homologation upload.
var LinkHeaders = []string{"product_id", "official_catalog_id"}

// ImportItems creates official items from spreadsheet rows keyed by
// ItemHeaders. The import is all-or-nothing.
func (s *Service) ImportItems(ctx context.Context, headers []string, rows [][]string) ([]*OfficialItem, error) {
	idx, err := columnIndex(headers, ItemHeaders)
	if err != nil {
		return nil, err
	}
	var added []*OfficialItem
	err = s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		for i, r := range rows {
			o := &OfficialItem{
				SKU:         cell(r, idx["sku"]),
				Name:        cell(r, idx["name"]),
				Description: cell(r, idx["description"]),
				Category:    cell(r, idx["category"]),
				Brand:       cell(r, idx["brand"]),
				IsActive:    true,
			}
			if v := cell(r, idx["is_active"]); v != "" {
				b, err := strconv.ParseBool(strings.ToLower(v))
				if err != nil {
					return apperror.NewValidation(fmt.Sprintf("row %d: invalid is_active value %q", i+2, v))
				}
				o.IsActive = b
			}
			if err := o.Validate(ctx); err != nil {
				return err
			}
			if err := s.items.Create(ctx, o); err != nil {
				if apperror.HasCode(err, apperror.CodeDuplicate) || apperror.HasCode(err, apperror.CodeConflict) {
					return apperror.NewDuplicate("official item", "sku", o.SKU)
				}
				return err
			}
			added = append(added, o)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if cfg, cerr := s.configs.Get(ctx); cerr == nil && cfg.AlertConfiguration {
		var b strings.Builder
		b.WriteString("The file has been successfully uploaded.\n\nSummary of added catalogs:\n")
		for _, o := range added {
			fmt.Fprintf(&b, "SKU: %s, Name: %s\n", o.SKU, o.Name)
		}
		s.notifier.Send(ctx, s.uploadRecipients(ctx, cfg), "Official Catalog Upload Summary", b.String())
	}
	return added, nil
}

// ImportLinks approves product to official item links from spreadsheet rows.
// Rows that reference unknown records are reported and skipped.
func (s *Service) ImportLinks(ctx context.Context, headers []string, rows [][]string) (int, []string, error) {
	idx, err := columnIndex(headers, LinkHeaders)
	if err != nil {
		return 0, nil, err
	}
	var (
		done int
		errs []string
	)
	for i, r := range rows {
		pid, perr := strconv.ParseInt(cell(r, idx["product_id"]), 10, 64)
		iid, ierr := strconv.ParseInt(cell(r, idx["official_catalog_id"]), 10, 64)
		if perr != nil || ierr != nil {
			errs = append(errs, fmt.Sprintf("Row %d: product_id and official_catalog_id must be integers", i+2))
			continue
		}
		if _, _, err := s.Homologate(ctx, pid, iid); err != nil {
			if ae, ok := apperror.AsAppError(err); ok && ae.Code == apperror.CodeNotFound {
				errs = append(errs, fmt.Sprintf("Row %d: %s", i+2, ae.Message))
				continue
			}
			return done, errs, err
		}
		done++
	}
	return done, errs, nil
}

func (s *Service) uploadRecipients(ctx context.Context, cfg *Config) []string {
	to := cfg.Recipients()
	if u := appctx.GetUser(ctx); u != nil && u.Email != "" {
		to = append(to, u.Email)
	}
	return to
}

func columnIndex(headers, required []string) (map[string]int, error) {
	idx := make(map[string]int, len(headers))
	for i, h := range headers {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, r := range required {
		if _, ok := idx[r]; !ok {
			return nil, apperror.NewValidation("file must contain columns: " + strings.Join(required, ", "))
		}
	}
	return idx, nil
}

func cell(row []string, i int) string {
	if i < len(row) {
		return strings.TrimSpace(row[i])
	}
	return ""
}
