package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"sage/internal/core/apperror"
	appctx "sage/internal/core/context"
	"sage/internal/core/fieldtype"
	"sage/internal/core/tx"
	"sage/internal/domain"
	"sage/internal/domain/catalog"
	"sage/internal/domain/notify"
	"sage/internal/domain/schema"
	"sage/internal/domain/submission"
	"sage/pkg/logger"
)

// Policy decides what happens to a value that cannot be coerced.
type Policy string

const (
	// PolicyNull stores null and reports the loss.
	PolicyNull Policy = "null"
	// PolicyReject fails the whole save.
	PolicyReject Policy = "reject"
)

// ParsePolicy maps a config string to a Policy; unknown values fall back to PolicyNull.
func ParsePolicy(s string) Policy {
	if Policy(s) == PolicyReject {
		return PolicyReject
	}
	return PolicyNull
}

// RowWriter inserts coerced rows into a materialized table in one statement.
type RowWriter interface {
	InsertRows(ctx context.Context, table string, columns []string, rows [][]any) (int64, error)
}

// Schema loads products, their fields and snapshots.
type Schema interface {
	GetProduct(ctx context.Context, id int64) (*schema.Product, error)
	Fields(ctx context.Context, productID int64) ([]*schema.Field, error)
}

// TableLookup returns the materialization snapshot of a product.
type TableLookup interface {
	GetByProduct(ctx context.Context, productID int64) (*schema.TableInfo, error)
}

// CatalogFinder resolves the catalog a submission is filed under.
type CatalogFinder interface {
	FirstByProduct(ctx context.Context, productID int64) (*catalog.Catalog, error)
}

// SubmissionRecorder stores the audit record of a bulk save.
type SubmissionRecorder interface {
	Record(ctx context.Context, s *submission.Submission) error
}

// Config wires the Service.
type Config struct {
	Policy      Policy
	Schema      Schema
	Tables      TableLookup
	Writer      RowWriter
	Catalogs    CatalogFinder
	Submissions SubmissionRecorder
	Notifier    notify.Notifier
	Alerter     notify.Alerter
	Validator   *Validator
	TxManager   tx.Manager
	Metrics     domain.Metrics
}

// Service validates uploads and writes rows to product tables.
type Service struct {
	cfg Config
}

func NewService(cfg Config) *Service {
	if cfg.Policy == "" {
		cfg.Policy = PolicyNull
	}
	if cfg.Metrics == nil {
		cfg.Metrics = domain.NopMetrics{}
	}
	if cfg.Notifier == nil {
		cfg.Notifier = notify.NopNotifier{}
	}
	if cfg.Validator == nil {
		cfg.Validator = NewValidator(MustExpressions())
	}
	return &Service{cfg: cfg}
}

// Report is the outcome of a validate-only run.
type Report struct {
	Errors       []FieldError `json:"errors"`
	EmailSent    bool         `json:"email_sent"`
	AlertCreated bool         `json:"alert_created"`
}

// Valid reports whether no errors were found.
func (r *Report) Valid() bool { return len(r.Errors) == 0 }

// SaveResult is the outcome of a save.
type SaveResult struct {
	RowsInserted   int64        `json:"rows_inserted"`
	CoercionLosses []FieldError `json:"coercion_losses,omitempty"`
}

// target is a product resolved for ingestion.
type target struct {
	product *schema.Product
	table   string
	fields  []*schema.Field
}

func (s *Service) resolve(ctx context.Context, productID int64) (*target, error) {
	p, err := s.cfg.Schema.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if _, err := s.cfg.Tables.GetByProduct(ctx, productID); err != nil {
		if apperror.IsNotFound(err) {
			return nil, apperror.NewNotFound("table", productID).
				WithDetail("reason", "No dynamic table found for this product")
		}
		return nil, err
	}
	fields, err := s.cfg.Schema.Fields(ctx, productID)
	if err != nil {
		return nil, err
	}
	return &target{product: p, table: p.TableName(), fields: fields}, nil
}

// ValidateOnly checks rows without storing them. On errors the caller is
// notified by email and alert, best-effort.
func (s *Service) ValidateOnly(ctx context.Context, productID int64, headers []string, rows [][]any) (*Report, error) {
	t, err := s.resolve(ctx, productID)
	if err != nil {
		return nil, err
	}
	errs := s.cfg.Validator.ValidateRows(headers, rows, t.fields)
	return s.report(ctx, t, len(rows), errs), nil
}

// ValidateRecords is ValidateOnly for rows keyed by column name.
func (s *Service) ValidateRecords(ctx context.Context, productID int64, records []map[string]any) (*Report, error) {
	t, err := s.resolve(ctx, productID)
	if err != nil {
		return nil, err
	}
	errs := s.cfg.Validator.ValidateRecords(records, t.fields)
	return s.report(ctx, t, len(records), errs), nil
}

func (s *Service) report(ctx context.Context, t *target, rows int, errs []FieldError) *Report {
	s.cfg.Metrics.Count(ctx, domain.MetricRowsValidated, int64(rows), "product", t.product.SchemaName)
	rep := &Report{Errors: errs}
	if rep.Errors == nil {
		rep.Errors = []FieldError{}
		return rep
	}
	s.cfg.Metrics.Count(ctx, domain.MetricValidationErrors, int64(len(errs)), "product", t.product.SchemaName)

	to := recipient(ctx)
	rep.EmailSent = s.cfg.Notifier.NotifyValidationErrors(ctx, to, t.product.SchemaName, problems(errs))
	msg := fmt.Sprintf("Excel validation failed for %s. %d errors detected.", t.product.SchemaName, len(errs))
	rep.AlertCreated = s.alert(ctx, to.UserID, msg)
	s.countNotification(ctx, "validation", rep.EmailSent)
	return rep
}

// SaveRow coerces one named row and inserts it.
func (s *Service) SaveRow(ctx context.Context, productID int64, values map[string]any) (*SaveResult, error) {
	t, err := s.resolve(ctx, productID)
	if err != nil {
		return nil, err
	}
	if err := rejectUnknown(values, t.fields); err != nil {
		return nil, err
	}

	row, losses := s.coerceRow(t.fields, 1, func(_ int, f *schema.Field) any { return values[f.Name] })
	if err := s.checkLosses(ctx, losses); err != nil {
		return nil, err
	}

	n, err := s.cfg.Writer.InsertRows(ctx, t.table, columns(t.fields), [][]any{row})
	if err != nil {
		s.cfg.Metrics.Count(ctx, domain.MetricIngestFailures, 1, "product", t.product.SchemaName)
		return nil, err
	}
	s.cfg.Metrics.Count(ctx, domain.MetricRowsInserted, n, "product", t.product.SchemaName)
	return &SaveResult{RowsInserted: n, CoercionLosses: losses}, nil
}

// SaveBulk coerces and inserts rows in one statement, then files a
// submission holding raw as received. Rows are either positional lists in
// field order or objects keyed by field name. The insert and the audit
// record commit together; on failure nothing is stored and the caller is
// notified best-effort.
func (s *Service) SaveBulk(ctx context.Context, productID int64, rows []any, raw json.RawMessage) (*SaveResult, error) {
	t, err := s.resolve(ctx, productID)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, apperror.NewValidation("no rows to save")
	}

	coerced := make([][]any, 0, len(rows))
	var losses []FieldError
	for i, r := range rows {
		get, err := cellGetter(r, t.fields, i+1)
		if err != nil {
			return nil, err
		}
		row, l := s.coerceRow(t.fields, i+1, get)
		coerced = append(coerced, row)
		losses = append(losses, l...)
	}
	if err := s.checkLosses(ctx, losses); err != nil {
		return nil, s.saveFailed(ctx, t, err)
	}

	var inserted int64
	err = s.cfg.TxManager.RunInTransaction(ctx, func(ctx context.Context) error {
		n, err := s.cfg.Writer.InsertRows(ctx, t.table, columns(t.fields), coerced)
		if err != nil {
			return err
		}
		inserted = n

		sub := &submission.Submission{
			ProductID:     t.product.ID,
			Domain:        t.product.Domain,
			RowCount:      n,
			SubmittedData: raw,
		}
		if uid := appctx.GetUserID(ctx); uid != "" {
			sub.SubmittedBy = &uid
		}
		c, err := s.cfg.Catalogs.FirstByProduct(ctx, t.product.ID)
		switch {
		case err == nil:
			sub.CatalogID = &c.ID
		case !apperror.IsNotFound(err):
			return err
		}
		return s.cfg.Submissions.Record(ctx, sub)
	})
	if err != nil {
		return nil, s.saveFailed(ctx, t, err)
	}

	s.cfg.Metrics.Count(ctx, domain.MetricRowsInserted, inserted, "product", t.product.SchemaName)
	logger.Info(ctx, "bulk save", "product_id", t.product.ID, "rows", inserted, "coercion_losses", len(losses))
	return &SaveResult{RowsInserted: inserted, CoercionLosses: losses}, nil
}

func (s *Service) saveFailed(ctx context.Context, t *target, cause error) error {
	s.cfg.Metrics.Count(ctx, domain.MetricIngestFailures, 1, "product", t.product.SchemaName)
	logger.Error(ctx, "bulk save failed", "product_id", t.product.ID, "error", cause)

	to := recipient(ctx)
	probs := []notify.Problem{{Error: cause.Error()}}
	if ae, ok := apperror.AsAppError(cause); ok {
		if fe, ok := ae.Details["errors"].([]FieldError); ok {
			probs = problems(fe)
		}
	}
	sent := s.cfg.Notifier.NotifySaveErrors(ctx, to, t.product.SchemaName, probs)
	created := s.alert(ctx, to.UserID, fmt.Sprintf("Excel data save failed for %s. Error: %s", t.product.SchemaName, cause.Error()))
	s.countNotification(ctx, "save", sent)

	ae, ok := apperror.AsAppError(cause)
	if !ok || ae.Code == apperror.CodeInternal {
		ae = apperror.NewSaveFailed(cause)
	}
	return ae.WithDetail("email_sent", sent).WithDetail("alert_created", created)
}

// coerceRow converts every field of one row, collecting failures.
func (s *Service) coerceRow(fields []*schema.Field, rowNo int, get cellFunc) ([]any, []FieldError) {
	row := make([]any, len(fields))
	var losses []FieldError
	for i, f := range fields {
		out := fieldtype.Coerce(f.FieldType, get(i, f), f.DateFormat())
		if places := f.DecimalPlaces(); places != nil && f.FieldType == fieldtype.Decimal {
			out = fieldtype.WithinPlaces(out, *places)
		}
		if !out.OK() {
			losses = append(losses, FieldError{Row: rowNo, Field: f.Name, Error: out.Reason})
			continue
		}
		row[i] = out.Value
	}
	return row, losses
}

func (s *Service) checkLosses(ctx context.Context, losses []FieldError) error {
	if len(losses) == 0 {
		return nil
	}
	if s.cfg.Policy == PolicyReject {
		ae := apperror.NewValidationFailed(fmt.Sprintf("%d values could not be converted", len(losses)), losses)
		ae.Code = apperror.CodeCoercionFailed
		return ae
	}
	s.cfg.Metrics.Count(ctx, domain.MetricCoercionLosses, int64(len(losses)))
	return nil
}

func (s *Service) alert(ctx context.Context, userID, msg string) bool {
	if s.cfg.Alerter == nil {
		return false
	}
	return s.cfg.Alerter.CreateAlert(ctx, userID, msg) != nil
}

func (s *Service) countNotification(ctx context.Context, kind string, sent bool) {
	result := "failed"
	if sent {
		result = "sent"
	}
	s.cfg.Metrics.Count(ctx, domain.MetricNotifications, 1, "kind", kind, "result", result)
}

// cellFunc returns the raw value of the i-th field f.
type cellFunc func(i int, f *schema.Field) any

// cellGetter adapts a positional or keyed row. Short positional rows are
// padded with nulls; keyed rows may only name known fields.
func cellGetter(r any, fields []*schema.Field, rowNo int) (cellFunc, error) {
	width := len(fields)
	switch row := r.(type) {
	case []any:
		if len(row) > width {
			return nil, apperror.NewValidation(
				fmt.Sprintf("row %d has %d values, the product has %d fields", rowNo, len(row), width)).
				WithDetail("row", rowNo)
		}
		return func(i int, _ *schema.Field) any {
			if i < len(row) {
				return row[i]
			}
			return nil
		}, nil
	case map[string]any:
		if err := rejectUnknown(row, fields); err != nil {
			return nil, err.WithDetail("row", rowNo)
		}
		return func(_ int, f *schema.Field) any { return row[f.Name] }, nil
	}
	return nil, apperror.NewValidation(fmt.Sprintf("row %d must be a list or an object", rowNo)).WithDetail("row", rowNo)
}

// rejectUnknown fails on the first key, in sorted order, that names no field.
func rejectUnknown(values map[string]any, fields []*schema.Field) *apperror.AppError {
	byName := make(map[string]bool, len(fields))
	for _, f := range fields {
		byName[f.Name] = true
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if !byName[k] {
			return apperror.NewValidation("unknown field "+k).WithDetail("field", k)
		}
	}
	return nil
}

func columns(fields []*schema.Field) []string {
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = f.Name
	}
	return out
}

func recipient(ctx context.Context) notify.Recipient {
	u := appctx.GetUser(ctx)
	if u == nil {
		return notify.Recipient{}
	}
	return notify.Recipient{UserID: u.UserID, Username: u.Username, Email: u.Email}
}
