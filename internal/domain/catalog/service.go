package catalog

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"math"
	"strconv"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"sage/internal/core/apperror"
	"sage/internal/core/tx"
	"sage/internal/domain"
	"sage/internal/domain/materialize"
	"sage/internal/domain/schema"
	"sage/pkg/logger"
)

// Materializer creates a product's physical table.
type Materializer interface {
	Materialize(ctx context.Context, productID int64) (*materialize.Result, error)
}

// ProductGetter loads a product.
type ProductGetter interface {
	GetByID(ctx context.Context, id int64) (*schema.Product, error)
}

// Service manages catalogs.
type Service struct {
	repo         Repository
	products     ProductGetter
	materializer Materializer
	txm          tx.Manager
}

func NewService(repo Repository, products ProductGetter, m Materializer, txm tx.Manager) *Service {
	return &Service{repo: repo, products: products, materializer: m, txm: txm}
}

// Created is the result of Create. APIKey is only ever returned here.
type Created struct {
	Catalog     *Catalog            `json:"catalog"`
	Table       *materialize.Result `json:"table"`
	PlainAPIKey string              `json:"api_key,omitempty"`
}

// Create stores the catalog and materializes its product's table in the
// same transaction; a storage failure rolls both back and surfaces the
// storage message. withAPIKey issues a machine-submission key.
func (s *Service) Create(ctx context.Context, c *Catalog, withAPIKey bool) (*Created, error) {
	c.ApplyDefaults()
	if err := c.Validate(ctx); err != nil {
		return nil, err
	}
	if _, err := s.products.GetByID(ctx, c.ProductID); err != nil {
		return nil, err
	}

	out := &Created{Catalog: c}
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, c); err != nil {
			return fmt.Errorf("create catalog: %w", err)
		}
		if withAPIKey {
			key, err := s.issueKey(ctx, c.ID)
			if err != nil {
				return err
			}
			out.PlainAPIKey = key
		}
		res, err := s.materializer.Materialize(ctx, c.ProductID)
		if err != nil {
			return err
		}
		out.Table = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "catalog created", "catalog_id", c.ID, "product_id", c.ProductID, "table", out.Table.Table)
	return out, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*Catalog, error) {
	return s.repo.GetByID(ctx, id)
}

// Update changes catalog settings. The product link is fixed after creation.
func (s *Service) Update(ctx context.Context, c *Catalog) error {
	current, err := s.repo.GetByID(ctx, c.ID)
	if err != nil {
		return err
	}
	if c.ProductID != 0 && c.ProductID != current.ProductID {
		return apperror.NewConflict("a catalog cannot move to another product")
	}
	c.ProductID = current.ProductID
	c.APIKeyHash = current.APIKeyHash
	c.ApplyDefaults()
	if err := c.Validate(ctx); err != nil {
		return err
	}
	return s.repo.Update(ctx, c)
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}

func (s *Service) List(ctx context.Context, f Filter) (domain.ListResult[*Catalog], error) {
	return s.repo.List(ctx, f)
}

// FirstByProduct returns the product's first catalog.
func (s *Service) FirstByProduct(ctx context.Context, productID int64) (*Catalog, error) {
	return s.repo.FirstByProduct(ctx, productID)
}

// --- API keys ---

// RotateAPIKey issues a fresh key, replacing any previous one.
func (s *Service) RotateAPIKey(ctx context.Context, id int64) (string, error) {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return "", err
	}
	return s.issueKey(ctx, id)
}

// issueKey generates "<catalog id>.<secret>" and stores the bcrypt hash of the secret.
func (s *Service) issueKey(ctx context.Context, id int64) (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", apperror.NewInternal(err)
	}
	secret := base64.RawURLEncoding.EncodeToString(buf)
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", apperror.NewInternal(err)
	}
	if err := s.repo.SetAPIKeyHash(ctx, id, string(hash)); err != nil {
		return "", fmt.Errorf("store api key: %w", err)
	}
	return strconv.FormatInt(id, 10) + "." + secret, nil
}

// VerifyAPIKey resolves a key to its catalog.
func (s *Service) VerifyAPIKey(ctx context.Context, key string) (*Catalog, error) {
	idPart, secret, ok := strings.Cut(key, ".")
	if !ok || secret == "" {
		return nil, apperror.NewUnauthorized("malformed API key")
	}
	id, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil {
		return nil, apperror.NewUnauthorized("malformed API key")
	}
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, apperror.NewUnauthorized("invalid API key")
		}
		return nil, err
	}
	if c.APIKeyHash == nil || bcrypt.CompareHashAndPassword([]byte(*c.APIKeyHash), []byte(secret)) != nil {
		return nil, apperror.NewUnauthorized("invalid API key")
	}
	return c, nil
}

// --- Summary ---

// CorporateSummary is one of the top corporates.
type CorporateSummary struct {
	Corporate     string           `json:"corporate"`
	TotalCatalogs int64            `json:"total_catalogs"`
	StatusSummary map[string]int64 `json:"status_summary"`
}

// StatusSummary is the catalog status dashboard.
type StatusSummary struct {
	StatusCounts      map[Status]int64   `json:"status_counts"`
	TotalCatalogs     int64              `json:"total_catalogs"`
	StatusPercentages map[string]float64 `json:"status_percentages"`
	TopCorporates     []CorporateSummary `json:"top_corporates"`
}

// Active catalogs are reported as "Homologated"; Delayed is left out of percentages.
func (s *Service) Summary(ctx context.Context) (*StatusSummary, error) {
	counts, err := s.countsByStatus(ctx, "")
	if err != nil {
		return nil, err
	}
	out := &StatusSummary{StatusCounts: counts, StatusPercentages: map[string]float64{}, TopCorporates: []CorporateSummary{}}
	for _, n := range counts {
		out.TotalCatalogs += n
	}
	if out.TotalCatalogs > 0 {
		pct := func(n int64) float64 {
			return math.Round(float64(n)/float64(out.TotalCatalogs)*100*100) / 100
		}
		out.StatusPercentages["Homologated"] = pct(counts[StatusActive])
		out.StatusPercentages["Pending"] = pct(counts[StatusPending])
		out.StatusPercentages["Rejected"] = pct(counts[StatusRejected])
	}

	top, err := s.repo.TopCorporates(ctx, 3)
	if err != nil {
		return nil, err
	}
	for _, corp := range top {
		cc, err := s.countsByStatus(ctx, corp.Corporate)
		if err != nil {
			return nil, err
		}
		out.TopCorporates = append(out.TopCorporates, CorporateSummary{
			Corporate:     corp.Corporate,
			TotalCatalogs: corp.Total,
			StatusSummary: map[string]int64{
				"Homologated": cc[StatusActive],
				"Pending":     cc[StatusPending],
				"Rejected":    cc[StatusRejected],
			},
		})
	}
	return out, nil
}

func (s *Service) countsByStatus(ctx context.Context, corporate string) (map[Status]int64, error) {
	rows, err := s.repo.StatusCounts(ctx, corporate)
	if err != nil {
		return nil, err
	}
	counts := make(map[Status]int64, len(Statuses))
	for _, st := range Statuses {
		counts[st] = 0
	}
	for _, r := range rows {
		counts[r.Status] = r.Count
	}
	return counts, nil
}
