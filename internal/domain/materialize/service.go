package materialize

import (
	"context"
	"fmt"
	"slices"
	"time"

	"sage/internal/core/apperror"
	"sage/internal/core/tx"
	"sage/internal/domain"
	"sage/internal/domain/schema"
	"sage/pkg/logger"
)

// Executor is the physical storage boundary used for DDL.
type Executor interface {
	TableExists(ctx context.Context, table string) (bool, error)
	Exec(ctx context.Context, stmt string) error
	ColumnNames(ctx context.Context, table string) ([]string, error)

	// LockTable serializes materialization of one table until the
	// surrounding transaction ends.
	LockTable(ctx context.Context, table string) error
}

// FieldLister loads field definitions with their rules in creation order.
type FieldLister interface {
	ListByProduct(ctx context.Context, productID int64) ([]*schema.Field, error)
}

// ProductGetter loads a product.
type ProductGetter interface {
	GetByID(ctx context.Context, id int64) (*schema.Product, error)
}

// Result describes one Materialize call.
type Result struct {
	Table           string   `json:"table"`
	Created         bool     `json:"created"`
	SnapshotCreated bool     `json:"snapshot_created"`
	Statements      []string `json:"statements,omitempty"`
}

// SyncResult describes one Sync call.
type SyncResult struct {
	Table      string   `json:"table"`
	Added      []string `json:"added"`
	Orphaned   []string `json:"orphaned,omitempty"`
	Statements []string `json:"statements,omitempty"`
}

// Service is the Table Materializer.
type Service struct {
	products ProductGetter
	fields   FieldLister
	tables   schema.TableInfoRepository
	exec     Executor
	txm      tx.Manager
	metrics  domain.Metrics
	log      *logger.Logger
}

// Config wires the Service.
type Config struct {
	Products  ProductGetter
	Fields    FieldLister
	Tables    schema.TableInfoRepository
	Executor  Executor
	TxManager tx.Manager
	Metrics   domain.Metrics
	Logger    *logger.Logger
}

func NewService(cfg Config) *Service {
	m := cfg.Metrics
	if m == nil {
		m = domain.NopMetrics{}
	}
	log := cfg.Logger
	if log == nil {
		log = logger.Default()
	}
	return &Service{
		products: cfg.Products,
		fields:   cfg.Fields,
		tables:   cfg.Tables,
		exec:     cfg.Executor,
		txm:      cfg.TxManager,
		metrics:  m,
		log:      log.WithComponent("materializer"),
	}
}

// Materialize creates the product's table and constraints unless the table
// already exists, then records the snapshot if missing. It is safe to call
// repeatedly. All statements share one transaction, so a failing constraint
// leaves no partial table behind.
func (s *Service) Materialize(ctx context.Context, productID int64) (*Result, error) {
	start := time.Now()
	product, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	table := product.TableName()
	res := &Result{Table: table}

	err = s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.exec.LockTable(ctx, table); err != nil {
			return apperror.NewStorage("lock table", err)
		}
		exists, err := s.exec.TableExists(ctx, table)
		if err != nil {
			return apperror.NewStorage("check table", err)
		}

		fields, err := s.fields.ListByProduct(ctx, productID)
		if err != nil {
			return fmt.Errorf("list fields: %w", err)
		}

		if !exists {
			res.Statements = Plan(table, fields)
			if err := s.run(ctx, table, res.Statements); err != nil {
				return err
			}
			res.Created = true
		}

		names := make([]string, len(fields))
		for i, f := range fields {
			names[i] = f.Name
		}
		res.SnapshotCreated, err = s.tables.CreateIfAbsent(ctx, &schema.TableInfo{
			ProductID: productID,
			TableName: table,
			Fields:    names,
		})
		if err != nil {
			return fmt.Errorf("record table info: %w", err)
		}
		return nil
	})
	if err != nil {
		s.metrics.Count(ctx, domain.MetricMaterializations, 1, "outcome", "error")
		return nil, err
	}

	outcome := "exists"
	if res.Created {
		outcome = "created"
	}
	s.metrics.Count(ctx, domain.MetricMaterializations, 1, "outcome", outcome)
	s.metrics.Observe(ctx, domain.MetricMaterializeMillis, float64(time.Since(start).Milliseconds()))
	s.log.WithContext(ctx).Infow("materialized product", "product_id", productID, "table", table,
		"created", res.Created, "statements", len(res.Statements))
	return res, nil
}

// Sync adds a column (and its constraints) for every field that has no
// physical column yet. Existing columns are never altered or dropped;
// columns without a field are reported as orphaned.
func (s *Service) Sync(ctx context.Context, productID int64) (*SyncResult, error) {
	product, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	table := product.TableName()
	res := &SyncResult{Table: table, Added: []string{}}

	err = s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.exec.LockTable(ctx, table); err != nil {
			return apperror.NewStorage("lock table", err)
		}
		exists, err := s.exec.TableExists(ctx, table)
		if err != nil {
			return apperror.NewStorage("check table", err)
		}
		if !exists {
			return apperror.NewNotFound("product table", table)
		}

		columns, err := s.exec.ColumnNames(ctx, table)
		if err != nil {
			return apperror.NewStorage("list columns", err)
		}
		fields, err := s.fields.ListByProduct(ctx, productID)
		if err != nil {
			return fmt.Errorf("list fields: %w", err)
		}

		known := make(map[string]bool, len(fields))
		for _, f := range fields {
			known[f.Name] = true
			if slices.Contains(columns, f.Name) {
				continue
			}
			res.Added = append(res.Added, f.Name)
			res.Statements = append(res.Statements, AddColumnSQL(table, f))
			res.Statements = append(res.Statements, ConstraintSQL(table, f)...)
		}
		for _, c := range columns {
			if !known[c] {
				res.Orphaned = append(res.Orphaned, c)
			}
		}
		return s.run(ctx, table, res.Statements)
	})
	if err != nil {
		return nil, err
	}

	s.log.WithContext(ctx).Infow("synced product table", "product_id", productID, "table", table,
		"added", res.Added, "orphaned", res.Orphaned)
	return res, nil
}

func (s *Service) run(ctx context.Context, table string, stmts []string) error {
	log := s.log.WithContext(ctx)
	for _, stmt := range stmts {
		log.Debugw("ddl", "table", table, "sql", stmt)
		if err := s.exec.Exec(ctx, stmt); err != nil {
			log.Errorw("ddl failed", "table", table, "sql", stmt, "error", err)
			if apperror.IsAppError(err) {
				return err
			}
			return apperror.NewStorage("ddl", err)
		}
		s.metrics.Count(ctx, domain.MetricDDLStatements, 1)
	}
	return nil
}
