package schema

import (
	"context"
	"fmt"

	"sage/internal/core/apperror"
	"sage/internal/core/tx"
	"sage/internal/domain"
	"sage/pkg/logger"
)

// ExpressionChecker compiles a custom rule expression, returning an error
// when it does not type-check.
type ExpressionChecker func(expr string) error

// Service is the CRUD surface of the Schema Definition Store.
type Service struct {
	products ProductRepository
	fields   FieldRepository
	rules    RuleRepository
	tables   TableInfoRepository
	uploads  UploadedFileRepository
	txm      tx.Manager
	checkExp ExpressionChecker
	hooks    *domain.HookRegistry[*Product]
}

// Config wires the Service.
type Config struct {
	Products   ProductRepository
	Fields     FieldRepository
	Rules      RuleRepository
	Tables     TableInfoRepository
	Uploads    UploadedFileRepository
	TxManager  tx.Manager
	Expression ExpressionChecker
}

func NewService(cfg Config) *Service {
	return &Service{
		products: cfg.Products,
		fields:   cfg.Fields,
		rules:    cfg.Rules,
		tables:   cfg.Tables,
		uploads:  cfg.Uploads,
		txm:      cfg.TxManager,
		checkExp: cfg.Expression,
		hooks:    domain.NewHookRegistry[*Product](),
	}
}

// ProductHooks exposes product lifecycle hooks.
func (s *Service) ProductHooks() *domain.HookRegistry[*Product] {
	return s.hooks
}

// --- Products ---

func (s *Service) CreateProduct(ctx context.Context, p *Product) error {
	if err := p.Validate(ctx); err != nil {
		return err
	}
	if err := s.hooks.Run(ctx, domain.BeforeCreate, p); err != nil {
		return err
	}
	if err := s.products.Create(ctx, p); err != nil {
		return fmt.Errorf("create product: %w", err)
	}
	return s.hooks.Run(ctx, domain.AfterCreate, p)
}

func (s *Service) GetProduct(ctx context.Context, id int64) (*Product, error) {
	return s.products.GetByID(ctx, id)
}

func (s *Service) ListProducts(ctx context.Context, filter ProductFilter) (domain.ListResult[*Product], error) {
	return s.products.List(ctx, filter)
}

// UpdateProduct changes descriptive attributes. The schema name is frozen
// once the product has a physical table.
func (s *Service) UpdateProduct(ctx context.Context, p *Product) error {
	if err := p.Validate(ctx); err != nil {
		return err
	}
	current, err := s.products.GetByID(ctx, p.ID)
	if err != nil {
		return err
	}
	if current.SchemaName != p.SchemaName {
		materialized, err := s.IsMaterialized(ctx, p.ID)
		if err != nil {
			return err
		}
		if materialized {
			return apperror.NewConflict("schema_name cannot change after the table is created").
				WithDetail("product_id", p.ID)
		}
	}
	p.IsHomologated = current.IsHomologated
	if err := s.hooks.Run(ctx, domain.BeforeUpdate, p); err != nil {
		return err
	}
	if err := s.products.Update(ctx, p); err != nil {
		return fmt.Errorf("update product: %w", err)
	}
	return s.hooks.Run(ctx, domain.AfterUpdate, p)
}

func (s *Service) DeleteProduct(ctx context.Context, id int64) error {
	p, err := s.products.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.hooks.Run(ctx, domain.BeforeDelete, p); err != nil {
		return err
	}
	return s.products.Delete(ctx, id)
}

// IsMaterialized reports whether a snapshot exists for the product.
func (s *Service) IsMaterialized(ctx context.Context, productID int64) (bool, error) {
	_, err := s.tables.GetByProduct(ctx, productID)
	if apperror.IsNotFound(err) {
		return false, nil
	}
	return err == nil, err
}

// --- Fields ---

// Fields returns the product's fields in creation order with rules attached.
func (s *Service) Fields(ctx context.Context, productID int64) ([]*Field, error) {
	if _, err := s.products.GetByID(ctx, productID); err != nil {
		return nil, err
	}
	return s.fields.ListByProduct(ctx, productID)
}

func (s *Service) GetField(ctx context.Context, productID, fieldID int64) (*Field, error) {
	f, err := s.fields.GetByID(ctx, productID, fieldID)
	if err != nil {
		return nil, err
	}
	rule, err := s.rules.GetByField(ctx, fieldID)
	if err != nil && !apperror.IsNotFound(err) {
		return nil, err
	}
	f.Rule = rule
	return f, nil
}

// CreateField adds a column definition. Changes after materialization are
// recorded in metadata only; the physical table catches up through Sync.
func (s *Service) CreateField(ctx context.Context, f *Field) error {
	if err := f.Validate(ctx); err != nil {
		return err
	}
	if !f.FieldType.Known() {
		logger.Warn(ctx, "unknown field type stored as TEXT", "field", f.Name, "field_type", f.FieldType)
	}
	return s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		if _, err := s.products.GetByID(ctx, f.ProductID); err != nil {
			return err
		}
		if err := s.ensureUniqueName(ctx, f); err != nil {
			return err
		}
		if err := s.fields.Create(ctx, f); err != nil {
			return fmt.Errorf("create field: %w", err)
		}
		s.noteDrift(ctx, f.ProductID, "field added", f.Name)
		return nil
	})
}

func (s *Service) UpdateField(ctx context.Context, f *Field) error {
	if err := f.Validate(ctx); err != nil {
		return err
	}
	return s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		if _, err := s.fields.GetByID(ctx, f.ProductID, f.ID); err != nil {
			return err
		}
		if err := s.ensureUniqueName(ctx, f); err != nil {
			return err
		}
		if err := s.fields.Update(ctx, f); err != nil {
			return fmt.Errorf("update field: %w", err)
		}
		s.noteDrift(ctx, f.ProductID, "field updated", f.Name)
		return nil
	})
}

func (s *Service) DeleteField(ctx context.Context, productID, fieldID int64) error {
	f, err := s.fields.GetByID(ctx, productID, fieldID)
	if err != nil {
		return err
	}
	if err := s.fields.Delete(ctx, productID, fieldID); err != nil {
		return fmt.Errorf("delete field: %w", err)
	}
	s.noteDrift(ctx, productID, "field deleted", f.Name)
	return nil
}

func (s *Service) ensureUniqueName(ctx context.Context, f *Field) error {
	exists, err := s.fields.ExistsByName(ctx, f.ProductID, f.Name, f.ID)
	if err != nil {
		return err
	}
	if exists {
		return apperror.NewDuplicate("product field", "name", f.Name)
	}
	return nil
}

func (s *Service) noteDrift(ctx context.Context, productID int64, change, name string) {
	materialized, err := s.IsMaterialized(ctx, productID)
	if err != nil || !materialized {
		return
	}
	logger.Info(ctx, "physical table not altered; run sync to add new columns",
		"product_id", productID, "change", change, "field", name)
}

// --- Validation rules ---

// CreateRule attaches a rule to an existing field. The field must exist and
// must not already carry a rule.
func (s *Service) CreateRule(ctx context.Context, productID int64, r *ValidationRule) error {
	if err := s.validateRule(ctx, r); err != nil {
		return err
	}
	return s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		if _, err := s.fields.GetByID(ctx, productID, r.FieldID); err != nil {
			return err
		}
		existing, err := s.rules.GetByField(ctx, r.FieldID)
		if err != nil && !apperror.IsNotFound(err) {
			return err
		}
		if existing != nil {
			return apperror.NewConflict("product field already has a validation rule").
				WithDetail("validation_rule_id", existing.ID)
		}
		if err := s.rules.Create(ctx, r); err != nil {
			return fmt.Errorf("create validation rule: %w", err)
		}
		return nil
	})
}

func (s *Service) GetRule(ctx context.Context, productID, fieldID, ruleID int64) (*ValidationRule, error) {
	if _, err := s.fields.GetByID(ctx, productID, fieldID); err != nil {
		return nil, err
	}
	return s.rules.GetByID(ctx, fieldID, ruleID)
}

func (s *Service) UpdateRule(ctx context.Context, productID int64, r *ValidationRule) error {
	if err := s.validateRule(ctx, r); err != nil {
		return err
	}
	if _, err := s.GetRule(ctx, productID, r.FieldID, r.ID); err != nil {
		return err
	}
	if err := s.rules.Update(ctx, r); err != nil {
		return fmt.Errorf("update validation rule: %w", err)
	}
	return nil
}

func (s *Service) DeleteRule(ctx context.Context, productID, fieldID, ruleID int64) error {
	if _, err := s.GetRule(ctx, productID, fieldID, ruleID); err != nil {
		return err
	}
	return s.rules.Delete(ctx, fieldID, ruleID)
}

func (s *Service) validateRule(ctx context.Context, r *ValidationRule) error {
	if err := r.Validate(ctx); err != nil {
		return err
	}
	if r.CustomExpression != nil && *r.CustomExpression != "" && s.checkExp != nil {
		if err := s.checkExp(*r.CustomExpression); err != nil {
			return apperror.NewValidation("invalid custom_expression: " + err.Error()).
				WithDetail("field", "custom_expression")
		}
	}
	return nil
}
