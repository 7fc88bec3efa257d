package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sage/internal/core/apperror"
	appctx "sage/internal/core/context"
	"sage/internal/core/fieldtype"
	"sage/internal/domain/catalog"
	"sage/internal/domain/notify"
	"sage/internal/domain/schema"
	"sage/internal/domain/submission"
)

type stubSchema struct {
	product *schema.Product
	fields  []*schema.Field
}

func (s stubSchema) GetProduct(_ context.Context, id int64) (*schema.Product, error) {
	if s.product == nil || s.product.ID != id {
		return nil, apperror.NewNotFound("product", id)
	}
	return s.product, nil
}
func (s stubSchema) Fields(context.Context, int64) ([]*schema.Field, error) { return s.fields, nil }

type stubTables struct{ materialized bool }

func (t stubTables) GetByProduct(_ context.Context, id int64) (*schema.TableInfo, error) {
	if !t.materialized {
		return nil, apperror.NewNotFound("table info", id)
	}
	return &schema.TableInfo{ProductID: id, TableName: "product_1"}, nil
}

type recordingWriter struct {
	table   string
	columns []string
	rows    [][]any
	err     error
}

func (w *recordingWriter) InsertRows(_ context.Context, table string, cols []string, rows [][]any) (int64, error) {
	if w.err != nil {
		return 0, w.err
	}
	w.table, w.columns = table, cols
	w.rows = append(w.rows, rows...)
	return int64(len(rows)), nil
}

type stubCatalogs struct{}

func (stubCatalogs) FirstByProduct(context.Context, int64) (*catalog.Catalog, error) {
	return &catalog.Catalog{ID: 7}, nil
}

type recordingSubmissions struct {
	subs []*submission.Submission
	err  error
}

func (r *recordingSubmissions) Record(_ context.Context, s *submission.Submission) error {
	if r.err != nil {
		return r.err
	}
	r.subs = append(r.subs, s)
	return nil
}

type recordingNotifier struct {
	notify.NopNotifier
	validation [][]notify.Problem
	save       [][]notify.Problem
	ok         bool
}

func (n *recordingNotifier) NotifyValidationErrors(_ context.Context, _ notify.Recipient, _ string, p []notify.Problem) bool {
	n.validation = append(n.validation, p)
	return n.ok
}
func (n *recordingNotifier) NotifySaveErrors(_ context.Context, _ notify.Recipient, _ string, p []notify.Problem) bool {
	n.save = append(n.save, p)
	return n.ok
}

type recordingAlerter struct{ messages []string }

func (a *recordingAlerter) CreateAlert(_ context.Context, userID, msg string) *notify.Alert {
	if userID == "" {
		return nil
	}
	a.messages = append(a.messages, msg)
	return &notify.Alert{UserID: userID, Message: msg}
}

// rollbackTx runs fn and reports whether it committed.
type rollbackTx struct{ committed bool }

func (t *rollbackTx) RunInTransaction(ctx context.Context, fn func(context.Context) error) error {
	err := fn(ctx)
	t.committed = err == nil
	return err
}

type fixture struct {
	svc      *Service
	writer   *recordingWriter
	subs     *recordingSubmissions
	notifier *recordingNotifier
	alerter  *recordingAlerter
	tx       *rollbackTx
}

func newFixture(policy Policy, fields []*schema.Field) *fixture {
	f := &fixture{
		writer:   &recordingWriter{},
		subs:     &recordingSubmissions{},
		notifier: &recordingNotifier{ok: true},
		alerter:  &recordingAlerter{},
		tx:       &rollbackTx{},
	}
	f.svc = NewService(Config{
		Policy:      policy,
		Schema:      stubSchema{product: &schema.Product{ID: 1, SchemaName: "Widgets", Domain: "retail"}, fields: fields},
		Tables:      stubTables{materialized: true},
		Writer:      f.writer,
		Catalogs:    stubCatalogs{},
		Submissions: f.subs,
		Notifier:    f.notifier,
		Alerter:     f.alerter,
		Validator:   newTestValidator(),
		TxManager:   f.tx,
	})
	return f
}

func userCtx() context.Context {
	return appctx.WithUser(context.Background(), &appctx.UserContext{UserID: "u1", Email: "u1@example.com"})
}

func plainFields() []*schema.Field {
	return []*schema.Field{
		{ID: 1, Name: "name", FieldType: fieldtype.Varchar, IsNull: true},
		{ID: 2, Name: "age", FieldType: fieldtype.Int, IsNull: true},
	}
}

func TestSaveBulk_CoercionLossStoresNull(t *testing.T) {
	f := newFixture(PolicyNull, plainFields())
	raw := json.RawMessage(`[["Amy","30"],["Bob","abc"]]`)

	res, err := f.svc.SaveBulk(userCtx(), 1, []any{[]any{"Amy", "30"}, []any{"Bob", "abc"}}, raw)
	require.NoError(t, err)

	assert.EqualValues(t, 2, res.RowsInserted)
	assert.Equal(t, "product_1", f.writer.table)
	assert.Equal(t, []string{"name", "age"}, f.writer.columns)
	assert.Equal(t, [][]any{{"Amy", int64(30)}, {"Bob", nil}}, f.writer.rows)
	require.Len(t, res.CoercionLosses, 1)
	assert.Equal(t, 2, res.CoercionLosses[0].Row)

	require.Len(t, f.subs.subs, 1)
	sub := f.subs.subs[0]
	assert.JSONEq(t, string(raw), string(sub.SubmittedData))
	assert.EqualValues(t, 7, *sub.CatalogID)
	assert.Equal(t, "u1", *sub.SubmittedBy)
	assert.Equal(t, "retail", sub.Domain)
	assert.True(t, f.tx.committed)
}

func TestSaveBulk_ListAndObjectRowsMatch(t *testing.T) {
	fields := append(plainFields(), &schema.Field{ID: 3, Name: "price", FieldType: fieldtype.Decimal, IsNull: true})

	lists := newFixture(PolicyNull, fields)
	_, err := lists.svc.SaveBulk(userCtx(), 1, []any{[]any{"Amy", 30.0, "9.99"}, []any{"Bob"}}, nil)
	require.NoError(t, err)

	objects := newFixture(PolicyNull, fields)
	_, err = objects.svc.SaveBulk(userCtx(), 1, []any{
		map[string]any{"price": "9.99", "age": 30.0, "name": "Amy"},
		map[string]any{"name": "Bob"},
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, lists.writer.rows, objects.writer.rows)
	assert.True(t, decimal.RequireFromString("9.99").Equal(lists.writer.rows[0][2].(decimal.Decimal)))
}

func TestSaveBulk_RejectPolicy(t *testing.T) {
	f := newFixture(PolicyReject, plainFields())

	_, err := f.svc.SaveBulk(userCtx(), 1, []any{[]any{"Bob", "abc"}}, nil)
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeCoercionFailed))
	assert.Empty(t, f.writer.rows)
	require.Len(t, f.notifier.save, 1)
	assert.Equal(t, "age", f.notifier.save[0][0].Field)
}

func TestSaveBulk_FailureRollsBackAndNotifies(t *testing.T) {
	f := newFixture(PolicyNull, plainFields())
	f.writer.err = apperror.NewStorage("insert", errors.New(`new row violates check constraint "check_age_max"`))

	_, err := f.svc.SaveBulk(userCtx(), 1, []any{[]any{"Amy", "300"}}, nil)
	require.Error(t, err)

	ae, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeStorage, ae.Code)
	assert.Equal(t, true, ae.Details["email_sent"])
	assert.Equal(t, true, ae.Details["alert_created"])
	assert.False(t, f.tx.committed)
	assert.Empty(t, f.subs.subs)
	require.Len(t, f.alerter.messages, 1)
	assert.Contains(t, f.alerter.messages[0], "Excel data save failed for Widgets. Error: ")
}

func TestSaveBulk_AuditFailureIsFatal(t *testing.T) {
	f := newFixture(PolicyNull, plainFields())
	f.subs.err = errors.New("audit down")

	_, err := f.svc.SaveBulk(userCtx(), 1, []any{[]any{"Amy", "3"}}, nil)
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeSaveFailed))
	assert.False(t, f.tx.committed)
}

func TestSaveBulk_TooManyValues(t *testing.T) {
	f := newFixture(PolicyNull, plainFields())

	_, err := f.svc.SaveBulk(userCtx(), 1, []any{[]any{"Amy", "3", "extra"}}, nil)
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}

func priceFields() []*schema.Field {
	return []*schema.Field{{
		ID: 1, Name: "price", FieldType: fieldtype.Decimal, IsNull: true,
		Rule: &schema.ValidationRule{HasMaxDecimal: true, MaxDecimalPlaces: intp(2)},
	}}
}

func TestSaveBulk_ExcessDecimalPlacesRejected(t *testing.T) {
	f := newFixture(PolicyReject, priceFields())

	_, err := f.svc.SaveBulk(userCtx(), 1, []any{[]any{"1.234"}}, nil)
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeCoercionFailed))
	assert.Empty(t, f.writer.rows)
	require.Len(t, f.notifier.save, 1)
	assert.Equal(t, "price", f.notifier.save[0][0].Field)
	assert.Equal(t, "Maximum 2 decimal places allowed", f.notifier.save[0][0].Error)
}

func TestSaveBulk_ExcessDecimalPlacesStoredAsNull(t *testing.T) {
	f := newFixture(PolicyNull, priceFields())

	res, err := f.svc.SaveBulk(userCtx(), 1, []any{[]any{"1.234"}, []any{"1.23"}, []any{1.5}}, nil)
	require.NoError(t, err)
	require.Len(t, f.writer.rows, 3)
	assert.Nil(t, f.writer.rows[0][0])
	assert.True(t, decimal.RequireFromString("1.23").Equal(f.writer.rows[1][0].(decimal.Decimal)))
	assert.True(t, decimal.RequireFromString("1.5").Equal(f.writer.rows[2][0].(decimal.Decimal)))
	require.Len(t, res.CoercionLosses, 1)
	assert.Equal(t, 1, res.CoercionLosses[0].Row)
	assert.Equal(t, "Maximum 2 decimal places allowed", res.CoercionLosses[0].Error)
}

func TestSaveRow_ExcessDecimalPlacesRejected(t *testing.T) {
	f := newFixture(PolicyReject, priceFields())

	_, err := f.svc.SaveRow(userCtx(), 1, map[string]any{"price": "0.001"})
	assert.True(t, apperror.HasCode(err, apperror.CodeCoercionFailed))
	assert.Empty(t, f.writer.rows)
}

func TestSaveBulk_NonFiniteFloatIsCoercionLoss(t *testing.T) {
	f := newFixture(PolicyNull, []*schema.Field{{ID: 1, Name: "ratio", FieldType: fieldtype.Float, IsNull: true}})

	res, err := f.svc.SaveBulk(userCtx(), 1, []any{[]any{"NaN"}, []any{"+Inf"}, []any{"0.5"}}, nil)
	require.NoError(t, err)
	assert.Equal(t, [][]any{{nil}, {nil}, {0.5}}, f.writer.rows)
	assert.Len(t, res.CoercionLosses, 2)
}

func TestSaveBulk_ObjectRowUnknownField(t *testing.T) {
	f := newFixture(PolicyNull, plainFields())

	_, err := f.svc.SaveBulk(userCtx(), 1, []any{
		map[string]any{"name": "Amy", "age": "30"},
		map[string]any{"name": "Bob", "colour": "red"},
	}, nil)
	require.Error(t, err)
	ae, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeValidation, ae.Code)
	assert.Equal(t, "unknown field colour", ae.Message)
	assert.Equal(t, "colour", ae.Details["field"])
	assert.Equal(t, 2, ae.Details["row"])
	assert.Empty(t, f.writer.rows)
}

func TestSaveBulk_PreciseDecimalFromJSONNumber(t *testing.T) {
	f := newFixture(PolicyNull, []*schema.Field{{ID: 1, Name: "amount", FieldType: fieldtype.Decimal, IsNull: true}})

	_, err := f.svc.SaveBulk(userCtx(), 1, []any{[]any{json.Number("12345678901234567.89")}}, nil)
	require.NoError(t, err)
	assert.Equal(t, "12345678901234567.89", f.writer.rows[0][0].(decimal.Decimal).String())
}

func TestSaveRow_UnknownField(t *testing.T) {
	f := newFixture(PolicyNull, plainFields())

	_, err := f.svc.SaveRow(userCtx(), 1, map[string]any{"colour": "red"})
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	res, err := f.svc.SaveRow(userCtx(), 1, map[string]any{"name": "Amy", "age": "41"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, res.RowsInserted)
	assert.Equal(t, []any{"Amy", int64(41)}, f.writer.rows[0])
}

func TestValidateOnly_NotifiesOnErrors(t *testing.T) {
	f := newFixture(PolicyNull, nameAgeFields())

	rep, err := f.svc.ValidateOnly(userCtx(), 1, nil, [][]any{{"Alexander", 200}})
	require.NoError(t, err)

	assert.Len(t, rep.Errors, 2)
	assert.True(t, rep.EmailSent)
	assert.True(t, rep.AlertCreated)
	assert.Equal(t, []string{"Excel validation failed for Widgets. 2 errors detected."}, f.alerter.messages)
}

func TestValidateOnly_CleanUploadSendsNothing(t *testing.T) {
	f := newFixture(PolicyNull, nameAgeFields())

	rep, err := f.svc.ValidateOnly(userCtx(), 1, []string{"name", "age"}, [][]any{{"Amy", 30}})
	require.NoError(t, err)
	assert.True(t, rep.Valid())
	assert.NotNil(t, rep.Errors)
	assert.Empty(t, f.notifier.validation)
}

func TestValidateOnly_RequiresTable(t *testing.T) {
	f := newFixture(PolicyNull, nameAgeFields())
	f.svc.cfg.Tables = stubTables{}

	_, err := f.svc.ValidateOnly(userCtx(), 1, nil, nil)
	assert.True(t, apperror.IsNotFound(err))
}

func TestParsePolicy(t *testing.T) {
	assert.Equal(t, PolicyReject, ParsePolicy("reject"))
	assert.Equal(t, PolicyNull, ParsePolicy("null"))
	assert.Equal(t, PolicyNull, ParsePolicy("whatever"))
}
